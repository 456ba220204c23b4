package types

import (
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// ChartTime is a point on the chart's time axis. The server encodes daily
// bars as "YYYY-MM-DD" strings and intraday bars as unix-second numbers, so
// decoding has to accept both.
type ChartTime struct {
	time.Time
}

// NewChartTime wraps a time.Time.
func NewChartTime(t time.Time) ChartTime {
	return ChartTime{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChartTime) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		t, err := time.Parse("2006-01-02", asString)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeMalformedMessage, err, "invalid chart date %q", asString)
		}

		c.Time = t

		return nil
	}

	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedMessage, "chart time is neither a date string nor a unix timestamp", err)
	}

	c.Time = time.Unix(int64(asNumber), 0).UTC()

	return nil
}

// MarshalJSON implements json.Marshaler. Midnight instants are written back
// as date strings, everything else as unix seconds.
func (c ChartTime) MarshalJSON() ([]byte, error) {
	if h, m, s := c.Clock(); h == 0 && m == 0 && s == 0 {
		return json.Marshal(c.Format("2006-01-02"))
	}

	return json.Marshal(c.Unix())
}

// Candle is one OHLCV bar of the chart dataset.
type Candle struct {
	Time   ChartTime `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SeriesPoint is one value of an indicator line series.
type SeriesPoint struct {
	Time  ChartTime `json:"time"`
	Value float64   `json:"value"`
}

// ChartDataset is the complete chart payload for one symbol and timeframe.
type ChartDataset struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
	// MAData maps series names like "ma_20" to their line points.
	MAData  map[string][]SeriesPoint `json:"ma_data"`
	RSI     []SeriesPoint            `json:"rsi"`
	Markers []TradeEvent             `json:"markers"`
}

// Granularity derives the dataset's granularity from its timeframe.
func (d *ChartDataset) Granularity() Granularity {
	return GranularityForTimeframe(d.Timeframe)
}
