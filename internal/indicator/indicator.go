// Package indicator computes the chart's line series from raw candles.
// The math mirrors what the backtest server precomputes, so locally
// derived series can fill in whenever a chart payload arrives without
// them.
package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// DefaultMAPeriods is the standard set of moving averages shown on the
// chart.
var DefaultMAPeriods = []int{5, 10, 20, 60, 120, 200}

// DefaultRSIPeriod is the lookback window of the RSI series.
const DefaultRSIPeriod = 14

// SeriesName returns the chart series name for a moving average period.
func SeriesName(period int) string {
	return fmt.Sprintf("ma_%d", period)
}

// SMA computes a simple moving average over the candle closes. The series
// starts at the first bar with a full window; shorter inputs yield an
// empty series rather than an error.
func SMA(candles []types.Candle, period int) ([]types.SeriesPoint, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "moving average period must be positive, got %d", period)
	}

	if len(candles) < period {
		return nil, nil
	}

	points := make([]types.SeriesPoint, 0, len(candles)-period+1)

	var sum float64
	for i, candle := range candles {
		sum += candle.Close

		if i >= period {
			sum -= candles[i-period].Close
		}

		if i >= period-1 {
			points = append(points, types.SeriesPoint{
				Time:  candle.Time,
				Value: sum / float64(period),
			})
		}
	}

	return points, nil
}

// MASeries computes one series per period, keyed by the chart series
// name. Periods longer than the dataset are simply absent from the map.
func MASeries(candles []types.Candle, periods []int) (map[string][]types.SeriesPoint, error) {
	series := make(map[string][]types.SeriesPoint, len(periods))

	for _, period := range periods {
		points, err := SMA(candles, period)
		if err != nil {
			return nil, err
		}

		if len(points) > 0 {
			series[SeriesName(period)] = points
		}
	}

	return series, nil
}

// RSI computes the relative strength index using a plain rolling mean of
// gains and losses, matching the server's calculation. Bars where both
// means are zero produce no point.
func RSI(candles []types.Candle, period int) ([]types.SeriesPoint, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "rsi period must be positive, got %d", period)
	}

	if len(candles) <= period {
		return nil, nil
	}

	gains := make([]float64, len(candles))
	losses := make([]float64, len(candles))

	for i := 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	points := make([]types.SeriesPoint, 0, len(candles)-period)

	var gainSum, lossSum float64
	for i := 1; i < len(candles); i++ {
		gainSum += gains[i]
		lossSum += losses[i]

		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}

		if i < period {
			continue
		}

		meanGain := gainSum / float64(period)
		meanLoss := lossSum / float64(period)

		var value float64

		switch {
		case meanLoss == 0 && meanGain == 0:
			continue
		case meanLoss == 0:
			value = 100
		default:
			rs := meanGain / meanLoss
			value = 100 - 100/(1+rs)
		}

		points = append(points, types.SeriesPoint{
			Time:  candles[i].Time,
			Value: value,
		})
	}

	return points, nil
}

// Enrich fills in any series the dataset arrived without, computing them
// from its own candles. Series already present are left untouched.
func Enrich(dataset *types.ChartDataset) error {
	if dataset == nil || len(dataset.Candles) == 0 {
		return nil
	}

	if dataset.MAData == nil {
		dataset.MAData = make(map[string][]types.SeriesPoint)
	}

	for _, period := range DefaultMAPeriods {
		name := SeriesName(period)
		if _, ok := dataset.MAData[name]; ok {
			continue
		}

		points, err := SMA(dataset.Candles, period)
		if err != nil {
			return err
		}

		if len(points) > 0 {
			dataset.MAData[name] = points
		}
	}

	if len(dataset.RSI) == 0 {
		points, err := RSI(dataset.Candles, DefaultRSIPeriod)
		if err != nil {
			return err
		}

		dataset.RSI = points
	}

	return nil
}
