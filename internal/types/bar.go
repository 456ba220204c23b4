package types

import (
	"github.com/moznion/go-optional"
)

// PnlClass classifies a row's profit figure for display styling.
type PnlClass string

const (
	PnlClassFlat     PnlClass = "flat"
	PnlClassPositive PnlClass = "positive"
	PnlClassNegative PnlClass = "negative"
)

// RewardRiskHighlightThreshold marks rows whose reward/risk ratio clears the
// bar worth calling out in the table.
const RewardRiskHighlightThreshold = 2.0

// MarketFields are the per-bar values set once when the baseline dataset is
// loaded. They are never overwritten afterwards.
type MarketFields struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	// MA holds the precomputed moving averages keyed by period.
	MA map[int]float64 `json:"ma"`
}

// MutableFields are the per-bar values merged from trade and decision events.
// Later matching events overwrite earlier ones field by field; absent values
// never overwrite present ones.
type MutableFields struct {
	Side   optional.Option[TradeSide] `json:"side"`
	Qty    optional.Option[int]       `json:"qty"`
	Price  optional.Option[float64]   `json:"price"`
	Pnl    optional.Option[float64]   `json:"pnl"`
	PnlPct optional.Option[float64]   `json:"pnl_pct"`
	// Decision holds decision metrics merged key-wise from event metadata.
	Decision map[string]float64 `json:"decision"`
}

// DisplayAttrs are derived presentation attributes recomputed after every
// merge. They carry no state of their own.
type DisplayAttrs struct {
	PnlClass            PnlClass `json:"pnl_class"`
	RewardRiskHighlight bool     `json:"reward_risk_highlight"`
}

// BarRow is one row of the reconciled bar table, keyed by its normalized
// TimeKey. Exactly one row exists per key.
type BarRow struct {
	Key     TimeKey       `json:"key"`
	Market  MarketFields  `json:"market"`
	Mutable MutableFields `json:"mutable"`
	Display DisplayAttrs  `json:"display"`
}

// RecomputeDisplay refreshes the derived attributes from the mutable fields.
func (r *BarRow) RecomputeDisplay() {
	r.Display = DisplayAttrs{PnlClass: PnlClassFlat, RewardRiskHighlight: false}

	if r.Mutable.Pnl.IsSome() {
		switch pnl := r.Mutable.Pnl.Unwrap(); {
		case pnl > 0:
			r.Display.PnlClass = PnlClassPositive
		case pnl < 0:
			r.Display.PnlClass = PnlClassNegative
		}
	}

	if rr, ok := r.Mutable.Decision["reward_risk"]; ok {
		r.Display.RewardRiskHighlight = rr >= RewardRiskHighlightThreshold
	}
}

// BaselineRow is one row of the preloaded tabular dataset as the server
// returns it, before normalization into a BarRow.
type BaselineRow struct {
	Date   string  `json:"date"`
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	// MA carries precomputed moving averages keyed by period, when available.
	MA map[int]float64 `json:"ma"`
}
