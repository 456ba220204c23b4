// Package logtail follows the server's log stream. The server pushes
// plain text lines over a WebSocket, starting with a replay of the most
// recent lines; the tail keeps a bounded buffer so the UI can show a
// scrollback window without unbounded growth.
package logtail

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

const (
	logsPath = "/ws/logs"

	// DefaultCapacity bounds how many lines the tail retains.
	DefaultCapacity = 500
)

// Tail is a live view of the server's log stream.
type Tail struct {
	logger   *logger.Logger
	capacity int

	mu    sync.Mutex
	lines []string
	conn  *websocket.Conn

	updates chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewTail creates a tail with the default capacity. A nil logger is
// replaced with a no-op logger.
func NewTail(log *logger.Logger) *Tail {
	return NewTailWithCapacity(log, DefaultCapacity)
}

// NewTailWithCapacity creates a tail retaining at most capacity lines.
func NewTailWithCapacity(log *logger.Logger, capacity int) *Tail {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Tail{
		logger:   log,
		capacity: capacity,
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Follow dials the log endpoint and appends lines until the stream ends
// or the context is cancelled. It blocks; run it in its own goroutine.
func (t *Tail) Follow(ctx context.Context, baseURL string) error {
	wsURL, err := logsURL(baseURL)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil) //nolint:bodyclose
	if err != nil {
		if resp != nil {
			return errors.Wrapf(errors.ErrCodeDialFailed, err, "failed to dial %s (status %d)", wsURL, resp.StatusCode)
		}

		return errors.Wrapf(errors.ErrCodeDialFailed, err, "failed to dial %s", wsURL)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.done:
		}
	}()

	t.logger.Debug("following server logs", zap.String("url", wsURL))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Close()

			if ctx.Err() != nil {
				return nil
			}

			return errors.Wrap(errors.ErrCodeStreamClosed, "log stream closed", err)
		}

		t.append(string(payload))
	}
}

// Close stops the tail. Retained lines stay readable afterwards.
func (t *Tail) Close() {
	t.once.Do(func() {
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()

		close(t.done)
	})
}

// Done returns a channel closed when the tail has stopped.
func (t *Tail) Done() <-chan struct{} {
	return t.done
}

// Updates signals after new lines arrive. The channel carries at most one
// pending notification; consumers re-read Lines on each signal.
func (t *Tail) Updates() <-chan struct{} {
	return t.updates
}

// Lines returns a copy of the retained lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.lines))
	copy(out, t.lines)

	return out
}

func (t *Tail) append(line string) {
	t.mu.Lock()

	t.lines = append(t.lines, line)
	if overflow := len(t.lines) - t.capacity; overflow > 0 {
		t.lines = t.lines[overflow:]
	}

	t.mu.Unlock()

	select {
	case t.updates <- struct{}{}:
	default:
	}
}

func logsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid server URL %q", base)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported URL scheme %q", u.Scheme)
	}

	u.Path = logsPath

	return u.String(), nil
}
