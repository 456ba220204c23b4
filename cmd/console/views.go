package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-console/internal/metrics"
	"github.com/rxtech-lab/argo-console/internal/types"
)

// chartStatus implements render.ChartSurface for the terminal. There is no
// drawable chart here, so it tracks what a chart would be showing and the
// dashboard reports it as a status line. Pushes arrive from the controller's
// dispatch goroutine while View reads from the UI goroutine, hence the lock.
type chartStatus struct {
	mu         sync.Mutex
	candles    int
	markers    int
	indicators map[string]int
}

func newChartStatus() *chartStatus {
	return &chartStatus{indicators: make(map[string]int)}
}

func (c *chartStatus) SetCandles(candles []types.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.candles = len(candles)
}

func (c *chartStatus) SetVolume(_ []types.SeriesPoint) {}

func (c *chartStatus) SetIndicator(name string, points []types.SeriesPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indicators[name] = len(points)
}

func (c *chartStatus) RemoveIndicator(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.indicators, name)
}

func (c *chartStatus) SetMarkers(markers []types.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markers = len(markers)
}

func (c *chartStatus) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.candles = 0
	c.markers = 0
	c.indicators = make(map[string]int)
}

// StatusLine summarizes what the chart surface currently holds.
func (c *chartStatus) StatusLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.candles == 0 {
		return "chart: no data"
	}

	names := make([]string, 0, len(c.indicators))
	for name := range c.indicators {
		names = append(names, name)
	}
	sort.Strings(names)

	line := fmt.Sprintf("chart: %d bars, %d markers", c.candles, c.markers)
	if len(names) > 0 {
		line += ", indicators: " + strings.Join(names, " ")
	}

	return line
}

// NewBarTable creates the reconciled bar table view.
func NewBarTable() table.Model {
	columns := []table.Column{
		{Title: "Time", Width: 17},
		{Title: "Close", Width: 12},
		{Title: "Side", Width: 6},
		{Title: "Qty", Width: 6},
		{Title: "Price", Width: 12},
		{Title: "PnL", Width: 12},
		{Title: "R/R", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// NewLogViewport creates the server log scrollback view.
func NewLogViewport() viewport.Model {
	vp := viewport.New(80, 8)
	return vp
}

// UpdateBarTableRows rebuilds the table rows from the reconciled bars.
func UpdateBarTableRows(t table.Model, bars []*types.BarRow) table.Model {
	rows := make([]table.Row, 0, len(bars))

	for _, bar := range bars {
		rows = append(rows, table.Row{
			string(bar.Key),
			metrics.FormatAmount(bar.Market.Close),
			formatSide(bar),
			formatQty(bar),
			formatPrice(bar),
			formatPnl(bar),
			formatRewardRisk(bar),
		})
	}

	t.SetRows(rows)

	return t
}

func formatSide(bar *types.BarRow) string {
	if bar.Mutable.Side.IsNone() {
		return ""
	}

	return string(bar.Mutable.Side.Unwrap())
}

func formatQty(bar *types.BarRow) string {
	if bar.Mutable.Qty.IsNone() {
		return ""
	}

	return fmt.Sprintf("%d", bar.Mutable.Qty.Unwrap())
}

func formatPrice(bar *types.BarRow) string {
	if bar.Mutable.Price.IsNone() {
		return ""
	}

	return metrics.FormatAmount(bar.Mutable.Price.Unwrap())
}

func formatPnl(bar *types.BarRow) string {
	if bar.Mutable.Pnl.IsNone() {
		return ""
	}

	text := metrics.FormatAmount(bar.Mutable.Pnl.Unwrap())
	if bar.Mutable.PnlPct.IsSome() {
		text += fmt.Sprintf(" (%s)", metrics.FormatPercent(bar.Mutable.PnlPct.Unwrap(), 1))
	}

	return StylePnl(text, bar.Display.PnlClass)
}

func formatRewardRisk(bar *types.BarRow) string {
	rr, ok := bar.Mutable.Decision["reward_risk"]
	if !ok {
		return ""
	}

	text := fmt.Sprintf("%.1f", rr)
	if bar.Display.RewardRiskHighlight {
		return HighlightStyle.Render(text)
	}

	return text
}

// RenderMetricsPanel renders the live metrics panel.
func RenderMetricsPanel(summary metrics.Summary) string {
	fields := summary.Display()

	var b strings.Builder

	fmt.Fprintf(&b, "Progress    %s\n", fields.Percent)
	fmt.Fprintf(&b, "Position    %s @ %s\n", fields.Qty, fields.AvgPrice)
	fmt.Fprintf(&b, "Invested    %s\n", fields.BuyAmt)
	fmt.Fprintf(&b, "Valuation   %s\n", fields.EvalAmt)

	pnlClass := types.PnlClassFlat
	switch {
	case summary.Started && summary.EvalPnl > 0:
		pnlClass = types.PnlClassPositive
	case summary.Started && summary.EvalPnl < 0:
		pnlClass = types.PnlClassNegative
	}

	fmt.Fprintf(&b, "PnL         %s\n", StylePnl(fields.EvalPnl, pnlClass))
	fmt.Fprintf(&b, "Return      %s\n", fields.ReturnRate)
	fmt.Fprintf(&b, "Trades      %s", fields.TradeCount)

	if summary.Final {
		fmt.Fprintf(&b, "\nMDD         %s", metrics.FormatPercent(summary.MDD, 2))
		fmt.Fprintf(&b, "\nFinal asset %s", metrics.FormatAmount(float64(summary.TotalAsset)))
	}

	return PanelStyle.Render(b.String())
}
