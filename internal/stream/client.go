// Package stream implements the WebSocket client for a live backtest run.
// A session dials the backtest endpoint, sends the run config as the first
// message, and delivers decoded events in arrival order on a single channel
// until a terminal event or external cancellation closes it.
package stream

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

const backtestPath = "/ws/backtest"

// Client opens backtest streaming sessions against a single server.
// At most one session is open at a time; opening a new session closes
// the previous one first.
type Client struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *logger.Logger

	mu      sync.Mutex
	session *Session
}

// NewClient creates a streaming client for the given server base URL
// (for example "ws://localhost:8000"). A nil logger is replaced with a
// no-op logger.
func NewClient(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		logger:  log,
	}
}

// Open starts a new backtest session. The run config is validated, sent
// as the first message after the dial succeeds, and the returned session
// begins delivering events immediately. If a previous session is still
// open it is closed before the new dial.
func (c *Client) Open(ctx context.Context, config types.RunConfig) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && !c.session.State().Terminal() && !c.session.closed() {
		c.logger.Warn("closing previous backtest session before opening a new one",
			zap.String("symbol", config.Symbol))
		c.session.Close()
	}

	wsURL, err := backtestURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	session := newSession(c.logger)
	session.setState(StateConnecting)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil) //nolint:bodyclose
	if err != nil {
		session.setState(StateFailed)

		if resp != nil {
			return nil, errors.Wrapf(errors.ErrCodeDialFailed, err, "failed to dial %s (status %d)", wsURL, resp.StatusCode)
		}

		return nil, errors.Wrapf(errors.ErrCodeDialFailed, err, "failed to dial %s", wsURL)
	}

	if err := conn.WriteJSON(config); err != nil {
		session.setState(StateFailed)
		conn.Close()

		return nil, errors.Wrap(errors.ErrCodeHandshakeFailed, "failed to send run config", err)
	}

	session.conn = conn
	session.setState(StateStreaming)
	c.session = session

	go session.readLoop()
	go session.watchContext(ctx)

	c.logger.Info("backtest session opened",
		zap.String("url", wsURL),
		zap.String("symbol", config.Symbol),
		zap.String("strategy", config.StrategyID))

	return session, nil
}

// Session returns the most recently opened session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// State returns the state of the current session, or StateIdle when no
// session has been opened yet or the last one is fully closed.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.closed() {
		return StateIdle
	}

	return c.session.State()
}

func backtestURL(base string) (string, error) {
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

	u.Path = backtestPath

	return u.String(), nil
}
