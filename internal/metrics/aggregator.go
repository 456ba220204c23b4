// Package metrics derives the live summary panel from the latest stream
// snapshot.
package metrics

import (
	"strings"

	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/shopspring/decimal"
)

// Summary is the aggregated state behind the summary panel. Each Progress
// message fully supersedes the previous one; a terminal Result supersedes
// every Progress no matter the arrival order.
type Summary struct {
	Started      bool
	Final        bool
	Failed       bool
	ErrMessage   string
	Percent      int
	Qty          int
	AvgPrice     float64
	BuyAmt       float64
	CurrentPrice float64
	EvalAmt      float64
	EvalPnl      float64
	ReturnRate   float64
	TradeCount   int
	TotalAsset   int64
	MDD          float64
}

// Reduce folds one stream event into the summary. It is a pure function of
// (summary, event); trade events do not touch the panel, progress snapshots
// replace it wholesale, and terminal messages freeze it.
func Reduce(s Summary, ev types.StreamEvent) Summary {
	switch ev.Type {
	case types.EventTypeProgress:
		// Result.metrics is authoritative by message type. A straggling
		// progress snapshot never dents a finalized summary.
		if s.Final || s.Failed {
			return s
		}

		p := ev.Progress

		return Summary{
			Started:      true,
			Percent:      p.Percent,
			Qty:          p.Qty,
			AvgPrice:     p.AvgPrice,
			BuyAmt:       p.BuyAmt,
			CurrentPrice: p.CurrentPrice,
			EvalAmt:      p.EvalAmt,
			EvalPnl:      p.EvalPnl,
			ReturnRate:   p.ReturnRate,
			TradeCount:   p.TradeCount,
		}

	case types.EventTypeResult:
		m := ev.Result.Metrics
		s.Started = true
		s.Final = true
		s.Percent = 100
		s.ReturnRate = m.TotalReturn
		s.TradeCount = m.TradeCount
		s.TotalAsset = m.TotalAsset
		s.EvalAmt = float64(m.TotalAsset)
		s.MDD = m.MDD

		return s

	case types.EventTypeError:
		s.Started = true
		s.Failed = true
		s.ErrMessage = ev.Err.Message

		return s

	default:
		return s
	}
}

// Placeholder is shown for fields that have no value yet.
const Placeholder = "-"

// DisplayFields are the formatted strings the summary panel renders.
type DisplayFields struct {
	Percent    string
	Qty        string
	AvgPrice   string
	BuyAmt     string
	EvalAmt    string
	EvalPnl    string
	ReturnRate string
	TradeCount string
}

// Display formats the summary for the panel. Before the first snapshot every
// field is a placeholder rather than a misleading zero.
func (s Summary) Display() DisplayFields {
	if !s.Started {
		return DisplayFields{
			Percent:    Placeholder,
			Qty:        Placeholder,
			AvgPrice:   Placeholder,
			BuyAmt:     Placeholder,
			EvalAmt:    Placeholder,
			EvalPnl:    Placeholder,
			ReturnRate: Placeholder,
			TradeCount: Placeholder,
		}
	}

	return DisplayFields{
		Percent:    FormatPercent(float64(s.Percent), 0),
		Qty:        FormatAmount(float64(s.Qty)),
		AvgPrice:   FormatAmount(s.AvgPrice),
		BuyAmt:     FormatAmount(s.BuyAmt),
		EvalAmt:    FormatAmount(s.EvalAmt),
		EvalPnl:    FormatAmount(s.EvalPnl),
		ReturnRate: FormatPercent(s.ReturnRate, 1),
		TradeCount: FormatAmount(float64(s.TradeCount)),
	}
}

// FormatAmount renders a monetary amount rounded to whole units with
// thousands separators, e.g. 1234567.8 -> "1,234,568".
func FormatAmount(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)

	s := d.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}

		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}

	return b.String()
}

// FormatPercent renders a rate with the given number of decimal places and a
// trailing percent sign, e.g. (3.24, 1) -> "3.2%".
func FormatPercent(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String() + "%"
}
