// Package render pushes finalized chart datasets to a chart surface.
package render

import (
	"sort"

	"github.com/rxtech-lab/argo-console/internal/types"
)

// ChartSurface is the drawing target for chart series. Implementations wrap
// whatever actually draws (a browser chart, a test fake); the renderer only
// hands them finalized, wholesale datasets.
//
// SetMarkers is only ever called with markers ascending by time.
type ChartSurface interface {
	SetCandles(candles []types.Candle)
	SetVolume(points []types.SeriesPoint)
	SetIndicator(name string, points []types.SeriesPoint)
	RemoveIndicator(name string)
	SetMarkers(markers []types.Marker)
	ClearAll()
}

// ViewModel is an immutable snapshot of everything the chart shows. It is
// built once per render and never mutated afterwards.
type ViewModel struct {
	Symbol     string
	Timeframe  string
	Candles    []types.Candle
	Volume     []types.SeriesPoint
	Indicators map[string][]types.SeriesPoint
	Markers    []types.Marker
}

// NewViewModel assembles a snapshot from a chart dataset and the current
// marker list. Volume is derived from the candles; MA series and RSI become
// named indicator series.
func NewViewModel(ds *types.ChartDataset, markers []types.Marker) ViewModel {
	volume := make([]types.SeriesPoint, 0, len(ds.Candles))
	for _, c := range ds.Candles {
		volume = append(volume, types.SeriesPoint{Time: c.Time, Value: c.Volume})
	}

	indicators := make(map[string][]types.SeriesPoint, len(ds.MAData)+1)
	for name, points := range ds.MAData {
		indicators[name] = points
	}

	if len(ds.RSI) > 0 {
		indicators["rsi"] = ds.RSI
	}

	return ViewModel{
		Symbol:     ds.Symbol,
		Timeframe:  ds.Timeframe,
		Candles:    ds.Candles,
		Volume:     volume,
		Indicators: indicators,
		Markers:    markers,
	}
}

// Renderer pushes view models to a chart surface. Every render replaces all
// series wholesale; datasets are bounded to a few hundred bars, so
// correctness wins over incremental diffing. Per-indicator visibility
// toggles survive dataset replacement until explicitly reset.
type Renderer struct {
	surface    ChartSurface
	visibility map[string]bool
	current    ViewModel
	hasData    bool
}

// NopSurface discards every push. It stands in for a real chart surface in
// headless runs.
type NopSurface struct{}

func (NopSurface) SetCandles(_ []types.Candle)                  {}
func (NopSurface) SetVolume(_ []types.SeriesPoint)              {}
func (NopSurface) SetIndicator(_ string, _ []types.SeriesPoint) {}
func (NopSurface) RemoveIndicator(_ string)                     {}
func (NopSurface) SetMarkers(_ []types.Marker)                  {}
func (NopSurface) ClearAll()                                    {}

// NewRenderer creates a renderer bound to a surface. A nil surface is
// replaced with NopSurface.
func NewRenderer(surface ChartSurface) *Renderer {
	if surface == nil {
		surface = NopSurface{}
	}

	return &Renderer{
		surface:    surface,
		visibility: make(map[string]bool),
		current:    ViewModel{},
		hasData:    false,
	}
}

// Render replaces every series on the surface with the snapshot's data.
// Hidden indicators are removed rather than drawn; their toggle state is
// remembered for the next render.
func (r *Renderer) Render(vm ViewModel) {
	r.current = vm
	r.hasData = true

	r.surface.SetCandles(vm.Candles)
	r.surface.SetVolume(vm.Volume)

	for _, name := range sortedIndicatorNames(vm.Indicators) {
		if r.Visible(name) {
			r.surface.SetIndicator(name, vm.Indicators[name])
		} else {
			r.surface.RemoveIndicator(name)
		}
	}

	r.surface.SetMarkers(vm.Markers)
}

// RenderMarkers replaces only the marker layer, used after marker edits when
// the rest of the chart is unchanged.
func (r *Renderer) RenderMarkers(markers []types.Marker) {
	if r.hasData {
		r.current.Markers = markers
	}

	r.surface.SetMarkers(markers)
}

// SetIndicatorVisible toggles one indicator series and applies the change to
// the surface immediately when a dataset is loaded.
func (r *Renderer) SetIndicatorVisible(name string, visible bool) {
	r.visibility[name] = visible

	if !r.hasData {
		return
	}

	points, ok := r.current.Indicators[name]
	if !ok {
		return
	}

	if visible {
		r.surface.SetIndicator(name, points)
	} else {
		r.surface.RemoveIndicator(name)
	}
}

// Visible reports whether an indicator is toggled on. Indicators default to
// visible until toggled off.
func (r *Renderer) Visible(name string) bool {
	v, ok := r.visibility[name]
	if !ok {
		return true
	}

	return v
}

// Clear wipes the surface and drops the current dataset. Visibility toggles
// survive; they only go back to defaults via ResetVisibility.
func (r *Renderer) Clear() {
	r.current = ViewModel{}
	r.hasData = false
	r.surface.ClearAll()
}

// ResetVisibility returns every indicator toggle to its default.
func (r *Renderer) ResetVisibility() {
	r.visibility = make(map[string]bool)
}

// sortedIndicatorNames keeps series application deterministic.
func sortedIndicatorNames(indicators map[string][]types.SeriesPoint) []string {
	names := make([]string, 0, len(indicators))
	for name := range indicators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
