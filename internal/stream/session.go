package stream

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

// eventBuffer bounds the dispatch channel so a slow consumer briefly
// lags instead of blocking the socket read on every message.
const eventBuffer = 64

// Session is a single open backtest run. Events arrive on Events() in
// the order the server sent them; the channel is closed after the
// terminal event is delivered or the session is closed.
type Session struct {
	conn   *websocket.Conn
	logger *logger.Logger

	events chan types.StreamEvent
	done   chan struct{}

	mu        sync.Mutex
	state     State
	isClosed  bool
	closeOnce sync.Once
}

func newSession(log *logger.Logger) *Session {
	return &Session{
		logger: log,
		events: make(chan types.StreamEvent, eventBuffer),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
}

// Events returns the ordered event channel. The channel is closed when
// the session ends for any reason.
func (s *Session) Events() <-chan types.StreamEvent {
	return s.events
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Done returns a channel closed when the session has fully ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close terminates the session. It is safe to call multiple times and
// from any goroutine. No reconnection is attempted.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.isClosed = true
		s.mu.Unlock()

		if s.conn != nil {
			s.conn.Close()
		}

		close(s.done)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isClosed
}

// readLoop reads messages until a terminal event, a transport error, or
// Close. It is the only writer to the events channel, which preserves
// arrival order.
func (s *Session) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed() {
				return
			}

			// Transport failure mid-stream surfaces as a terminal
			// error event so consumers see a single end-of-stream
			// shape for every failure mode.
			s.logger.Warn("backtest stream transport error", zap.Error(err))
			s.setState(StateFailed)
			s.deliver(types.StreamEvent{
				Type: types.EventTypeError,
				Err: &types.ErrorPayload{
					Message: errors.Wrap(errors.ErrCodeStreamClosed, "stream closed unexpectedly", err).Error(),
				},
			})

			return
		}

		event, err := types.ParseStreamEvent(payload)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeUnknownMessageType) {
				s.logger.Debug("ignoring unknown stream message type", zap.Error(err))
			} else {
				s.logger.Warn("dropping malformed stream message", zap.Error(err))
			}

			continue
		}

		if event.Terminal() {
			if event.Type == types.EventTypeResult {
				s.setState(StateFinalizing)
			} else {
				s.setState(StateFailed)
			}

			s.deliver(event)

			return
		}

		if !s.deliver(event) {
			return
		}
	}
}

// deliver sends an event to the consumer, giving up if the session is
// closed while the channel is full.
func (s *Session) deliver(event types.StreamEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

// watchContext closes the session when the caller's context is
// cancelled before the session ends on its own.
func (s *Session) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.logger.Debug("backtest session cancelled", zap.Error(ctx.Err()))
		s.Close()
	case <-s.done:
	}
}
