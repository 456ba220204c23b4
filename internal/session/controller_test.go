package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/metrics"
	"github.com/rxtech-lab/argo-console/internal/stream"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// fakeFetcher serves canned datasets keyed by symbol. A per-symbol gate
// channel, when present, blocks the fetch until the test releases it.
type fakeFetcher struct {
	datasets map[string]*types.ChartDataset
	gates    map[string]chan struct{}
}

func (f *fakeFetcher) GetChartData(_ context.Context, symbol string, _ string) (*types.ChartDataset, error) {
	if gate, ok := f.gates[symbol]; ok {
		<-gate
	}

	dataset, ok := f.datasets[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no data for symbol %s", symbol)
	}

	return dataset, nil
}

// recordingSurface captures the last push of each chart layer.
type recordingSurface struct {
	candles []types.Candle
	markers []types.Marker
	cleared int
}

func (r *recordingSurface) SetCandles(candles []types.Candle)            { r.candles = candles }
func (r *recordingSurface) SetVolume(_ []types.SeriesPoint)              {}
func (r *recordingSurface) SetIndicator(_ string, _ []types.SeriesPoint) {}
func (r *recordingSurface) RemoveIndicator(_ string)                     {}
func (r *recordingSurface) SetMarkers(markers []types.Marker)            { r.markers = markers }
func (r *recordingSurface) ClearAll()                                    { r.cleared++ }

func dailyDataset(symbol string, dates ...string) *types.ChartDataset {
	candles := make([]types.Candle, 0, len(dates))
	ma := make([]types.SeriesPoint, 0, len(dates))

	for i, date := range dates {
		t, _ := time.Parse("2006-01-02", date)
		point := types.NewChartTime(t)
		candles = append(candles, types.Candle{
			Time:   point,
			Open:   100 + float64(i),
			High:   110 + float64(i),
			Low:    95 + float64(i),
			Close:  105 + float64(i),
			Volume: 1000,
		})
		ma = append(ma, types.SeriesPoint{Time: point, Value: 102 + float64(i)})
	}

	return &types.ChartDataset{
		Symbol:    symbol,
		Timeframe: "D",
		Candles:   candles,
		MAData:    map[string][]types.SeriesPoint{"ma_5": ma},
	}
}

type ControllerTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func (suite *ControllerTestSuite) SetupTest() {
	suite.logger = logger.NewNopLogger()
}

func (suite *ControllerTestSuite) waitFor(condition func(Snapshot) bool, c *Controller, msg string) Snapshot {
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if condition(snap) {
			return snap
		}

		time.Sleep(5 * time.Millisecond)
	}

	suite.FailNow(msg)

	return Snapshot{}
}

func (suite *ControllerTestSuite) TestBaselineLoadPopulatesTableAndChart() {
	fetcher := &fakeFetcher{datasets: map[string]*types.ChartDataset{
		"005930": dailyDataset("005930", "2024-01-02", "2024-01-03", "2024-01-04"),
	}}
	surface := &recordingSurface{}
	controller := NewController(fetcher, nil, surface, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "005930", "D")

	snap := suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 3 }, controller, "baseline was not applied")

	suite.Equal(types.TimeKey("20240102"), snap.Rows[0].Key)
	suite.InDelta(105.0, snap.Rows[0].Market.Close, 1e-9)
	suite.InDelta(102.0, snap.Rows[0].Market.MA[5], 1e-9)
	suite.Len(surface.candles, 3)
}

func (suite *ControllerTestSuite) TestStaleBaselineFetchDiscarded() {
	slowGate := make(chan struct{})
	fetcher := &fakeFetcher{
		datasets: map[string]*types.ChartDataset{
			"AAA": dailyDataset("AAA", "2024-01-02"),
			"BBB": dailyDataset("BBB", "2024-02-01", "2024-02-02"),
		},
		gates: map[string]chan struct{}{"AAA": slowGate},
	}
	controller := NewController(fetcher, nil, nil, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "AAA", "D")
	controller.LoadBaseline(context.Background(), "BBB", "D")

	snap := suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 2 }, controller, "second baseline was not applied")
	suite.Equal(types.TimeKey("20240201"), snap.Rows[0].Key)

	// Release the fetch that started under the old generation. Its result
	// must be discarded, not applied over the newer dataset.
	close(slowGate)
	time.Sleep(50 * time.Millisecond)

	snap = controller.Snapshot()
	suite.Len(snap.Rows, 2)
	suite.Equal(types.TimeKey("20240201"), snap.Rows[0].Key)
	suite.Equal(types.TimeKey("20240202"), snap.Rows[1].Key)
}

// backtestScript drives one mock streaming connection.
type backtestScript func(conn *websocket.Conn)

func newBacktestServer(script backtestScript) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws/backtest", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var config types.RunConfig
		if err := conn.ReadJSON(&config); err != nil {
			return
		}

		script(conn)
	})

	return httptest.NewServer(router)
}

func runConfig() types.RunConfig {
	return types.RunConfig{
		Symbol:      "005930",
		StartDate:   "20240101",
		EndDate:     "20240131",
		StrategyID:  "golden_cross",
		InitialCash: 10_000_000,
	}
}

func (suite *ControllerTestSuite) TestRunLifecycleAppliesEventsAndResult() {
	server := newBacktestServer(func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{
			"type": "progress",
			"data": map[string]any{"percent": 50, "eval_amt": 10_200_000.0, "return_rate": 2.0, "trade_count": 1},
		})
		_ = conn.WriteJSON(map[string]any{
			"type": "trade_event",
			"data": map[string]any{
				"event_id":  "evt-1",
				"timestamp": "20240103 ",
				"symbol":    "005930",
				"side":      "BUY",
				"price":     105.0,
				"qty":       10,
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"type": "result",
			"result": map[string]any{
				"metrics": map[string]any{"total_return": 4.5, "total_asset": 10_450_000, "mdd": -2.0, "trade_count": 2},
				"history": []map[string]any{
					{"event_id": "evt-1", "timestamp": "20240103 ", "symbol": "005930", "side": "BUY", "price": 105.0, "qty": 10},
					{"event_id": "evt-2", "timestamp": "20240104 ", "symbol": "005930", "side": "SELL", "price": 110.0, "qty": 10, "pnl": 50.0, "pnl_pct": 4.7},
				},
			},
		})
	})
	defer server.Close()

	fetcher := &fakeFetcher{datasets: map[string]*types.ChartDataset{
		"005930": dailyDataset("005930", "2024-01-02", "2024-01-03", "2024-01-04"),
	}}
	surface := &recordingSurface{}
	controller := NewController(fetcher, stream.NewClient(server.URL, suite.logger), surface, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "005930", "D")
	suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 3 }, controller, "baseline was not applied")

	err := controller.StartRun(context.Background(), runConfig())
	suite.Require().NoError(err)

	snap := suite.waitFor(func(s Snapshot) bool {
		return s.State == stream.StateIdle && s.Summary.Final
	}, controller, "run did not finish")

	suite.InDelta(4.5, snap.Summary.ReturnRate, 1e-9)
	suite.Equal(int64(10_450_000), snap.Summary.TotalAsset)
	suite.Equal(100, snap.Summary.Percent)
	suite.Require().NotNil(snap.LastResult)
	suite.Len(snap.LastResult.History, 2)

	// The buy fill merged into the Jan 3 row and the sell into Jan 4.
	suite.Equal(types.TradeSideBuy, snap.Rows[1].Mutable.Side.Unwrap())
	suite.Equal(types.TradeSideSell, snap.Rows[2].Mutable.Side.Unwrap())
	suite.InDelta(50.0, snap.Rows[2].Mutable.Pnl.Unwrap(), 1e-9)
	suite.Equal(types.PnlClassPositive, snap.Rows[2].Display.PnlClass)

	// Markers were rebuilt from the authoritative result history.
	suite.Len(snap.Markers, 2)
	suite.Equal(types.MarkerShapeArrowUp, snap.Markers[0].Style.Shape)
	suite.Equal(types.MarkerShapeArrowDown, snap.Markers[1].Style.Shape)
	suite.Len(surface.markers, 2)
}

func (suite *ControllerTestSuite) TestStartRunWhileActiveReturnsError() {
	release := make(chan struct{})
	server := newBacktestServer(func(conn *websocket.Conn) {
		<-release
		_ = conn.WriteJSON(map[string]any{
			"type":   "result",
			"result": map[string]any{"metrics": map[string]any{}},
		})
	})
	defer server.Close()
	defer close(release)

	controller := NewController(nil, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	err := controller.StartRun(context.Background(), runConfig())
	suite.Require().NoError(err)

	err = controller.StartRun(context.Background(), runConfig())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSessionAlreadyOpen))
}

func (suite *ControllerTestSuite) TestErrorRunEndsFailedThenIdle() {
	server := newBacktestServer(func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "simulation blew up"})
	})
	defer server.Close()

	controller := NewController(nil, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	err := controller.StartRun(context.Background(), runConfig())
	suite.Require().NoError(err)

	snap := suite.waitFor(func(s Snapshot) bool {
		return s.State == stream.StateIdle && s.Summary.Failed
	}, controller, "run did not fail")

	suite.Equal("simulation blew up", snap.Summary.ErrMessage)
}

func (suite *ControllerTestSuite) TestCancelRunReturnsToIdle() {
	server := newBacktestServer(func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	controller := NewController(nil, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	err := controller.StartRun(context.Background(), runConfig())
	suite.Require().NoError(err)

	controller.CancelRun()

	suite.waitFor(func(s Snapshot) bool { return s.State == stream.StateIdle }, controller, "cancel did not return to idle")
}

func (suite *ControllerTestSuite) TestEditMarkerTime() {
	dataset := dailyDataset("005930", "2024-01-02", "2024-01-03")
	dataset.Markers = []types.TradeEvent{
		{EventID: "evt-1", Timestamp: "20240102 ", Side: types.TradeSideBuy, Price: 100, Qty: 5},
	}

	fetcher := &fakeFetcher{datasets: map[string]*types.ChartDataset{"005930": dataset}}
	surface := &recordingSurface{}
	controller := NewController(fetcher, nil, surface, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "005930", "D")
	suite.waitFor(func(s Snapshot) bool { return len(s.Markers) == 1 }, controller, "baseline markers missing")

	newTime := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	suite.Require().NoError(controller.EditMarkerTime("evt-1", newTime))

	snap := controller.Snapshot()
	suite.True(snap.Markers[0].Time.Equal(newTime))

	err := controller.EditMarkerTime("missing", newTime)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarkerNotFound))
}

func (suite *ControllerTestSuite) TestIndicatorToggleRoundTrip() {
	controller := NewController(nil, nil, nil, suite.logger)
	defer controller.Close()

	suite.True(controller.IndicatorVisible("ma_5"))

	controller.SetIndicatorVisible("ma_5", false)
	suite.False(controller.IndicatorVisible("ma_5"))

	controller.SetIndicatorVisible("ma_5", true)
	suite.True(controller.IndicatorVisible("ma_5"))
}

func (suite *ControllerTestSuite) TestStartRunKeepsBaselineRows() {
	server := newBacktestServer(func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{
			"type": "trade_event",
			"data": map[string]any{
				"event_id":  "evt-1",
				"timestamp": "20240103 ",
				"symbol":    "005930",
				"side":      "BUY",
				"price":     105.0,
				"qty":       10,
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"type":   "result",
			"result": map[string]any{"metrics": map[string]any{"total_return": 1.0, "trade_count": 1}},
		})
	})
	defer server.Close()

	fetcher := &fakeFetcher{datasets: map[string]*types.ChartDataset{
		"005930": dailyDataset("005930", "2024-01-02", "2024-01-03", "2024-01-04"),
	}}
	controller := NewController(fetcher, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "005930", "D")
	suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 3 }, controller, "baseline was not applied")

	suite.Require().NoError(controller.StartRun(context.Background(), runConfig()))

	snap := suite.waitFor(func(s Snapshot) bool {
		return s.State == stream.StateIdle && s.Summary.Final
	}, controller, "run did not finish")

	// The run merges onto the loaded baseline instead of replacing it.
	suite.Len(snap.Rows, 3)
	suite.InDelta(105.0, snap.Rows[0].Market.Close, 1e-9)
	suite.Equal(types.TradeSideBuy, snap.Rows[1].Mutable.Side.Unwrap())
}

func (suite *ControllerTestSuite) TestStartRunDoesNotDiscardInFlightBaselineFetch() {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		datasets: map[string]*types.ChartDataset{
			"005930": dailyDataset("005930", "2024-01-02", "2024-01-03"),
		},
		gates: map[string]chan struct{}{"005930": gate},
	}

	release := make(chan struct{})
	server := newBacktestServer(func(conn *websocket.Conn) {
		<-release
		_ = conn.WriteJSON(map[string]any{
			"type":   "result",
			"result": map[string]any{"metrics": map[string]any{}},
		})
	})
	defer server.Close()
	defer close(release)

	controller := NewController(fetcher, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	// The run command loads the baseline and starts the run back to back,
	// so the fetch is still in flight when the stream opens.
	controller.LoadBaseline(context.Background(), "005930", "D")
	suite.Require().NoError(controller.StartRun(context.Background(), runConfig()))

	close(gate)

	snap := suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 2 }, controller, "baseline fetch was discarded")
	suite.Equal(types.TimeKey("20240102"), snap.Rows[0].Key)
}

func (suite *ControllerTestSuite) TestReplayedTradeEventYieldsOneMarker() {
	trade := map[string]any{
		"type": "trade_event",
		"data": map[string]any{
			"event_id":  "evt-1",
			"timestamp": "20240103 ",
			"symbol":    "005930",
			"side":      "BUY",
			"price":     105.0,
			"qty":       10,
		},
	}

	server := newBacktestServer(func(conn *websocket.Conn) {
		_ = conn.WriteJSON(trade)
		_ = conn.WriteJSON(trade)
		_ = conn.WriteJSON(map[string]any{
			"type": "progress",
			"data": map[string]any{"percent": 99},
		})
	})
	defer server.Close()

	fetcher := &fakeFetcher{datasets: map[string]*types.ChartDataset{
		"005930": dailyDataset("005930", "2024-01-02", "2024-01-03"),
	}}
	controller := NewController(fetcher, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	controller.LoadBaseline(context.Background(), "005930", "D")
	suite.waitFor(func(s Snapshot) bool { return len(s.Rows) == 2 }, controller, "baseline was not applied")

	suite.Require().NoError(controller.StartRun(context.Background(), runConfig()))

	snap := suite.waitFor(func(s Snapshot) bool { return s.Summary.Percent == 99 }, controller, "events were not applied")

	suite.Len(snap.Markers, 1)
	suite.Equal("evt-1", snap.Markers[0].ID)
}

func (suite *ControllerTestSuite) TestSummaryPlaceholdersUntilFirstProgress() {
	release := make(chan struct{})
	server := newBacktestServer(func(conn *websocket.Conn) {
		<-release
		_ = conn.WriteJSON(map[string]any{
			"type": "progress",
			"data": map[string]any{"percent": 42},
		})
	})
	defer server.Close()
	defer close(release)

	controller := NewController(nil, stream.NewClient(server.URL, suite.logger), nil, suite.logger)
	defer controller.Close()

	suite.Require().NoError(controller.StartRun(context.Background(), runConfig()))

	snap := suite.waitFor(func(s Snapshot) bool { return s.State == stream.StateStreaming }, controller, "stream did not open")
	suite.False(snap.Summary.Started)
	suite.Equal(metrics.Placeholder, snap.Summary.Display().Percent)
}

func (suite *ControllerTestSuite) TestCloseIsIdempotent() {
	controller := NewController(nil, nil, nil, suite.logger)

	controller.Close()
	suite.NotPanics(controller.Close)
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}
