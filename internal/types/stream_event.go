package types

import (
	"encoding/json"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// EventType is the wire discriminator of a stream message.
type EventType string

const (
	EventTypeProgress   EventType = "progress"
	EventTypeTradeEvent EventType = "trade_event"
	EventTypeResult     EventType = "result"
	EventTypeError      EventType = "error"
)

// ProgressPayload is a periodic snapshot of the running simulation. Each
// message fully supersedes the previous one.
type ProgressPayload struct {
	Percent      int     `json:"percent"`
	Qty          int     `json:"qty"`
	AvgPrice     float64 `json:"avg_price"`
	BuyAmt       float64 `json:"buy_amt"`
	CurrentPrice float64 `json:"current_price"`
	EvalAmt      float64 `json:"eval_amt"`
	EvalPnl      float64 `json:"eval_pnl"`
	ReturnRate   float64 `json:"return_rate"`
	TradeCount   int     `json:"trade_count"`
}

// TradeSide is the direction of a filled order.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeEvent reports one simulated fill. Optional fields stay absent on the
// wire when the simulator did not compute them; absent values must never
// overwrite previously merged ones.
type TradeEvent struct {
	EventID    string                  `json:"event_id"`
	Timestamp  string                  `json:"timestamp"`
	Symbol     string                  `json:"symbol"`
	StrategyID string                  `json:"strategy_id"`
	EventType  string                  `json:"event_type"`
	Side       TradeSide               `json:"side"`
	Price      float64                 `json:"price"`
	Qty        int                     `json:"qty"`
	OrderID    string                  `json:"order_id"`
	PositionID optional.Option[string] `json:"position_id"`
	// Pnl and PnlPct are only present on closing fills.
	Pnl    optional.Option[float64] `json:"pnl"`
	PnlPct optional.Option[float64] `json:"pnl_pct"`
	// Meta carries per-event decision metrics (signal values, reward/risk,
	// order type) keyed by metric name.
	Meta map[string]any `json:"meta"`
}

// ResultMetrics are the authoritative summary figures of a finished run.
type ResultMetrics struct {
	TotalReturn float64 `json:"total_return"`
	TotalAsset  int64   `json:"total_asset"`
	MDD         float64 `json:"mdd"`
	TradeCount  int     `json:"trade_count"`
}

// DailyStat is one per-day equity record of a finished run.
type DailyStat struct {
	Date        string  `json:"date"`
	TotalAsset  float64 `json:"total_asset"`
	Cash        float64 `json:"cash"`
	HoldingsVal float64 `json:"holdings_val"`
	PnlDaily    float64 `json:"pnl_daily"`
}

// ResultPayload is the terminal success message. It supersedes all prior
// partial state of the session.
type ResultPayload struct {
	Metrics      ResultMetrics `json:"metrics"`
	History      []TradeEvent  `json:"history"`
	DailyStats   []DailyStat   `json:"daily_stats"`
	DetailedLogs []string      `json:"detailed_logs"`
}

// ErrorPayload is the terminal failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// StreamEvent is the decoded form of one stream message. Exactly one payload
// field matching Type is non-nil.
type StreamEvent struct {
	Type     EventType
	Progress *ProgressPayload
	Trade    *TradeEvent
	Result   *ResultPayload
	Err      *ErrorPayload
}

// Terminal reports whether no further session messages follow this one.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventTypeResult || e.Type == EventTypeError
}

// envelope is the raw wire shape: {type, data|result|message}.
type envelope struct {
	Type    EventType       `json:"type"`
	Data    json.RawMessage `json:"data"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

// ParseStreamEvent validates and coerces one wire message into a typed
// StreamEvent. Unknown type discriminators return ErrCodeUnknownMessageType
// so the caller can skip them without treating them as failures.
func ParseStreamEvent(raw []byte) (StreamEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return StreamEvent{}, errors.Wrap(errors.ErrCodeMalformedMessage, "failed to decode stream message", err)
	}

	switch env.Type {
	case EventTypeProgress:
		var p ProgressPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return StreamEvent{}, errors.Wrap(errors.ErrCodeMalformedMessage, "failed to decode progress payload", err)
		}

		return StreamEvent{Type: EventTypeProgress, Progress: &p}, nil

	case EventTypeTradeEvent:
		var t TradeEvent
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return StreamEvent{}, errors.Wrap(errors.ErrCodeMalformedMessage, "failed to decode trade event payload", err)
		}

		return StreamEvent{Type: EventTypeTradeEvent, Trade: &t}, nil

	case EventTypeResult:
		var r ResultPayload
		if err := json.Unmarshal(env.Result, &r); err != nil {
			return StreamEvent{}, errors.Wrap(errors.ErrCodeMalformedMessage, "failed to decode result payload", err)
		}

		return StreamEvent{Type: EventTypeResult, Result: &r}, nil

	case EventTypeError:
		return StreamEvent{Type: EventTypeError, Err: &ErrorPayload{Message: env.Message}}, nil

	default:
		return StreamEvent{}, errors.Newf(errors.ErrCodeUnknownMessageType, "unknown stream message type %q", env.Type)
	}
}
