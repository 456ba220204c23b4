// Package reconcile owns the per-bar row table for one loaded dataset and
// merges streamed trade events onto the preloaded market-data baseline.
package reconcile

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/types"
	"go.uber.org/zap"
)

// Table reconciles streamed trade events against a baseline bar table. It
// exclusively owns the row index for the lifetime of one loaded dataset and
// is rebuilt wholesale on instrument or timeframe change.
//
// Table is not safe for concurrent use; all mutation happens on the session
// dispatch queue.
type Table struct {
	granularity types.Granularity
	rows        []*types.BarRow
	index       map[types.TimeKey]*types.BarRow
	lastTouched types.TimeKey
	dropped     int
	logger      *logger.Logger
}

// NewTable creates an empty table. A nil logger falls back to a no-op logger.
func NewTable(log *logger.Logger) *Table {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Table{
		granularity: types.GranularityDaily,
		rows:        nil,
		index:       make(map[types.TimeKey]*types.BarRow),
		lastTouched: "",
		dropped:     0,
		logger:      log,
	}
}

// LoadBaseline atomically replaces the table with the given baseline rows and
// rebuilds the key index. Rows sharing a time key collapse onto one row, last
// one wins, so the one-row-per-key invariant holds no matter the input.
func (t *Table) LoadBaseline(baseline []types.BaselineRow, g types.Granularity) {
	rows := make([]*types.BarRow, 0, len(baseline))
	index := make(map[types.TimeKey]*types.BarRow, len(baseline))

	for _, b := range baseline {
		key := types.NewTimeKey(b.Date, b.Time, g)

		row := &types.BarRow{
			Key: key,
			Market: types.MarketFields{
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
				MA:     b.MA,
			},
		}
		row.RecomputeDisplay()

		if _, exists := index[key]; exists {
			t.logger.Warn("duplicate baseline time key, keeping last row", zap.String("key", string(key)))

			for i, existing := range rows {
				if existing.Key == key {
					rows[i] = row
					break
				}
			}
		} else {
			rows = append(rows, row)
		}

		index[key] = row
	}

	t.granularity = g
	t.rows = rows
	t.index = index
	t.lastTouched = ""
	t.dropped = 0
}

// ApplyTradeEvent merges one trade event into its matching row. Events whose
// normalized timestamp has no baseline row are dropped without mutating any
// state; the drop is counted and logged rather than surfaced to the user.
// Applying the same event twice leaves the row in the same observable state
// as applying it once.
func (t *Table) ApplyTradeEvent(ev *types.TradeEvent) bool {
	key, err := types.NormalizeTimestamp(ev.Timestamp, t.granularity)
	if err != nil {
		t.dropped++
		t.logger.Debug("trade event with unparsable timestamp dropped", zap.String("timestamp", ev.Timestamp))

		return false
	}

	row, ok := t.index[key]
	if !ok {
		t.dropped++
		t.logger.Debug("trade event without matching baseline row dropped",
			zap.String("key", string(key)),
			zap.String("event_id", ev.EventID),
		)

		return false
	}

	mergeEvent(&row.Mutable, ev)
	row.RecomputeDisplay()
	t.lastTouched = key

	return true
}

// mergeEvent copies every present field of the event into the row's mutable
// fields. Absent values never overwrite present ones.
func mergeEvent(m *types.MutableFields, ev *types.TradeEvent) {
	if ev.Side != "" {
		m.Side = optional.Some(ev.Side)
	}

	if ev.Qty != 0 {
		m.Qty = optional.Some(ev.Qty)
	}

	if ev.Price != 0 {
		m.Price = optional.Some(ev.Price)
	}

	if ev.Pnl.IsSome() {
		m.Pnl = optional.Some(ev.Pnl.Unwrap())
	}

	if ev.PnlPct.IsSome() {
		m.PnlPct = optional.Some(ev.PnlPct.Unwrap())
	}

	for k, v := range ev.Meta {
		f, ok := v.(float64)
		if !ok {
			continue
		}

		if m.Decision == nil {
			m.Decision = make(map[string]float64)
		}

		m.Decision[k] = f
	}
}

// Row returns the row for a key, or nil when no such row exists.
func (t *Table) Row(key types.TimeKey) *types.BarRow {
	return t.index[key]
}

// Rows returns the rows in baseline order.
func (t *Table) Rows() []*types.BarRow {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Granularity returns the granularity the baseline was loaded at.
func (t *Table) Granularity() types.Granularity {
	return t.granularity
}

// LastTouched returns the key of the most recently merged row, used by the
// view to auto-scroll. Empty until the first successful merge.
func (t *Table) LastTouched() types.TimeKey {
	return t.lastTouched
}

// DroppedEvents returns how many events were discarded for want of a
// matching baseline row since the last baseline load.
func (t *Table) DroppedEvents() int {
	return t.dropped
}

// Clear discards the entire table. Used on instrument/timeframe switch.
func (t *Table) Clear() {
	t.rows = nil
	t.index = make(map[types.TimeKey]*types.BarRow)
	t.lastTouched = ""
	t.dropped = 0
}
