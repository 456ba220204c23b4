// Package session coordinates one console session: the chart baseline, the
// live backtest stream, and the stores derived from them. All state changes
// run on a single dispatch goroutine, and every asynchronous completion
// carries the generation it started under so results belonging to an
// abandoned context are discarded instead of applied.
package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/markers"
	"github.com/rxtech-lab/argo-console/internal/metrics"
	"github.com/rxtech-lab/argo-console/internal/reconcile"
	"github.com/rxtech-lab/argo-console/internal/render"
	"github.com/rxtech-lab/argo-console/internal/stream"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

// ChartFetcher loads the immutable chart baseline for a symbol.
type ChartFetcher interface {
	GetChartData(ctx context.Context, symbol string, timeframe string) (*types.ChartDataset, error)
}

// StreamOpener starts a backtest streaming session.
type StreamOpener interface {
	Open(ctx context.Context, config types.RunConfig) (*stream.Session, error)
}

// Snapshot is a read-only view of the controller state, taken on the
// dispatch goroutine so it is internally consistent.
type Snapshot struct {
	Generation uint64
	State      stream.State
	Summary    metrics.Summary
	Rows       []*types.BarRow
	Markers    []types.Marker
	LastResult *types.ResultPayload
}

// Controller owns the per-session stores and serializes every mutation
// through one dispatch goroutine.
type Controller struct {
	logger  *logger.Logger
	fetcher ChartFetcher
	opener  StreamOpener

	table       *reconcile.Table
	markerStore *markers.Store
	renderer    *render.Renderer
	summary     metrics.Summary

	generation uint64
	state      stream.State
	runSession *stream.Session
	liveTrades []types.TradeEvent
	lastResult *types.ResultPayload

	commands  chan func()
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewController creates a controller. The surface may be nil when no chart
// is attached (headless runs); renderer pushes then become no-ops at the
// renderer level. A nil logger is replaced with a no-op logger.
func NewController(fetcher ChartFetcher, opener StreamOpener, surface render.ChartSurface, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Controller{
		logger:      log,
		fetcher:     fetcher,
		opener:      opener,
		table:       reconcile.NewTable(log),
		markerStore: markers.NewStore(log),
		renderer:    render.NewRenderer(surface),
		state:       stream.StateIdle,
		commands:    make(chan func(), 256),
		closed:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

// Close stops the dispatch goroutine and any open stream session. Safe to
// call more than once.
func (c *Controller) Close() {
	c.dispatch(func() {
		if c.runSession != nil {
			c.runSession.Close()
		}
	})
	c.closeOnce.Do(func() { close(c.closed) })
	c.wg.Wait()
}

func (c *Controller) loop() {
	defer c.wg.Done()

	for {
		select {
		case fn := <-c.commands:
			fn()
		case <-c.closed:
			// Drain anything already queued so callers blocked in
			// dispatch are released.
			for {
				select {
				case fn := <-c.commands:
					fn()
				default:
					return
				}
			}
		}
	}
}

// dispatch runs fn on the dispatch goroutine and waits for it.
func (c *Controller) dispatch(fn func()) {
	done := make(chan struct{})

	select {
	case c.commands <- func() { fn(); close(done) }:
	case <-c.closed:
		return
	}

	select {
	case <-done:
	case <-c.closed:
	}
}

// post runs fn on the dispatch goroutine without waiting.
func (c *Controller) post(fn func()) {
	select {
	case c.commands <- fn:
	case <-c.closed:
	}
}

// Snapshot returns a consistent copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot

	c.dispatch(func() {
		snap = Snapshot{
			Generation: c.generation,
			State:      c.state,
			Summary:    c.summary,
			Rows:       c.table.Rows(),
			Markers:    c.markerStore.Markers(),
			LastResult: c.lastResult,
		}
	})

	return snap
}

// SetIndicatorVisible toggles one chart indicator. The toggle survives
// dataset replacement.
func (c *Controller) SetIndicatorVisible(name string, visible bool) {
	c.dispatch(func() {
		c.renderer.SetIndicatorVisible(name, visible)
	})
}

// IndicatorVisible reports the current toggle state of an indicator.
func (c *Controller) IndicatorVisible(name string) bool {
	visible := true

	c.dispatch(func() {
		visible = c.renderer.Visible(name)
	})

	return visible
}

// EditMarkerTime moves a marker to a new time and re-renders the marker
// layer. Unknown marker ids leave the chart untouched.
func (c *Controller) EditMarkerTime(id string, newTime time.Time) error {
	var err error

	c.dispatch(func() {
		err = c.markerStore.EditTime(id, newTime)
		if err == nil {
			c.renderer.RenderMarkers(c.markerStore.Markers())
		}
	})

	return err
}

// LoadBaseline fetches chart data for the symbol and, when the fetch
// completes under the same generation it started in, replaces the bar
// table, markers, and chart content. Switching symbols starts a new
// generation, so a slow earlier fetch can never clobber the newer one.
func (c *Controller) LoadBaseline(ctx context.Context, symbol string, timeframe string) {
	var gen uint64

	c.dispatch(func() {
		c.generation++
		gen = c.generation
		c.resetSessionState()
	})

	c.logger.Info("loading chart baseline",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Uint64("generation", gen))

	go func() {
		dataset, err := c.fetcher.GetChartData(ctx, symbol, timeframe)

		c.post(func() {
			if gen != c.generation {
				c.logger.Debug("discarding stale chart fetch",
					zap.String("symbol", symbol),
					zap.Uint64("fetch_generation", gen),
					zap.Uint64("current_generation", c.generation))

				return
			}

			if err != nil {
				c.logger.Error("chart baseline fetch failed",
					zap.String("symbol", symbol),
					zap.Error(err))

				return
			}

			c.applyBaseline(dataset)
		})
	}()
}

func (c *Controller) applyBaseline(dataset *types.ChartDataset) {
	granularity := dataset.Granularity()
	maIndex := indexMASeries(dataset.MAData)

	rows := make([]types.BaselineRow, 0, len(dataset.Candles))
	for _, candle := range dataset.Candles {
		rows = append(rows, baselineRow(candle, granularity, maIndex))
	}

	c.table.LoadBaseline(rows, granularity)
	c.markerStore.FromEvents(dataset.Markers, granularity)
	c.renderer.Render(render.NewViewModel(dataset, c.markerStore.Markers()))

	c.logger.Info("chart baseline applied",
		zap.String("symbol", dataset.Symbol),
		zap.Int("bars", len(dataset.Candles)),
		zap.Int("markers", len(c.markerStore.Markers())))
}

// StartRun opens a backtest stream for the config. It fails with
// ErrCodeSessionAlreadyOpen while a previous run is still active.
func (c *Controller) StartRun(ctx context.Context, config types.RunConfig) error {
	var startErr error

	c.dispatch(func() {
		if !c.state.CanStart() {
			startErr = errors.Newf(errors.ErrCodeSessionAlreadyOpen, "a run is already active in state %q", c.state)
			return
		}

		// The baseline table and chart stay loaded; the run's events
		// merge onto them. Only the previous run's transient state goes.
		c.state = stream.StateConnecting
		c.summary = metrics.Summary{}
		c.liveTrades = nil
		c.lastResult = nil
	})

	if startErr != nil {
		return startErr
	}

	session, err := c.opener.Open(ctx, config)
	if err != nil {
		c.dispatch(func() {
			c.state = stream.StateIdle
		})

		return err
	}

	var gen uint64

	c.dispatch(func() {
		gen = c.generation
		c.state = stream.StateStreaming
		c.runSession = session
	})

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		for event := range session.Events() {
			event := event
			c.post(func() { c.applyEvent(gen, event) })
		}

		c.post(func() { c.finishRun(gen) })
	}()

	return nil
}

// CancelRun closes the active stream session, if any. The stores keep
// whatever state the run produced so far.
func (c *Controller) CancelRun() {
	c.dispatch(func() {
		if c.runSession != nil {
			c.runSession.Close()
		}
	})
}

func (c *Controller) applyEvent(gen uint64, event types.StreamEvent) {
	if gen != c.generation {
		c.logger.Debug("discarding stale stream event",
			zap.String("type", string(event.Type)),
			zap.Uint64("event_generation", gen),
			zap.Uint64("current_generation", c.generation))

		return
	}

	c.summary = metrics.Reduce(c.summary, event)

	switch event.Type {
	case types.EventTypeProgress:

	case types.EventTypeTradeEvent:
		c.table.ApplyTradeEvent(event.Trade)
		c.mergeLiveTrade(*event.Trade)
		c.markerStore.BulkReplace(c.liveTrades)
		c.renderer.RenderMarkers(c.markerStore.Markers())

	case types.EventTypeResult:
		c.state = stream.StateFinalizing
		c.lastResult = event.Result

		for i := range event.Result.History {
			c.table.ApplyTradeEvent(&event.Result.History[i])
		}

		c.markerStore.BulkReplace(event.Result.History)
		c.renderer.RenderMarkers(c.markerStore.Markers())

	case types.EventTypeError:
		c.state = stream.StateFailed
	}
}

// mergeLiveTrade replaces a replayed event in place so the marker layer
// stays one marker per fill.
func (c *Controller) mergeLiveTrade(ev types.TradeEvent) {
	if ev.EventID != "" {
		for i := range c.liveTrades {
			if c.liveTrades[i].EventID == ev.EventID {
				c.liveTrades[i] = ev
				return
			}
		}
	}

	c.liveTrades = append(c.liveTrades, ev)
}

func (c *Controller) finishRun(gen uint64) {
	if gen != c.generation {
		return
	}

	c.runSession = nil
	c.state = stream.StateIdle
}

func (c *Controller) resetSessionState() {
	if c.runSession != nil {
		c.runSession.Close()
		c.runSession = nil
	}

	c.state = stream.StateIdle
	c.summary = metrics.Summary{}
	c.liveTrades = nil
	c.lastResult = nil
	c.markerStore.Clear()
	c.renderer.Clear()
}

// indexMASeries turns "ma_N" named line series into per-period lookups
// keyed by the point's unix time.
func indexMASeries(maData map[string][]types.SeriesPoint) map[int]map[int64]float64 {
	index := make(map[int]map[int64]float64, len(maData))

	for name, points := range maData {
		period, ok := maPeriod(name)
		if !ok {
			continue
		}

		byTime := make(map[int64]float64, len(points))
		for _, point := range points {
			byTime[point.Time.Unix()] = point.Value
		}

		index[period] = byTime
	}

	return index
}

func maPeriod(name string) (int, bool) {
	const prefix = "ma_"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}

	period, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil || period <= 0 {
		return 0, false
	}

	return period, true
}

func baselineRow(candle types.Candle, granularity types.Granularity, maIndex map[int]map[int64]float64) types.BaselineRow {
	row := types.BaselineRow{
		Date:   candle.Time.Format("20060102"),
		Open:   candle.Open,
		High:   candle.High,
		Low:    candle.Low,
		Close:  candle.Close,
		Volume: candle.Volume,
		MA:     make(map[int]float64),
	}

	if granularity == types.GranularityIntraday {
		row.Time = candle.Time.Format("150405")
	}

	for period, byTime := range maIndex {
		if value, ok := byTime[candle.Time.Unix()]; ok {
			row.MA[period] = value
		}
	}

	return row
}
