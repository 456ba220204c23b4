package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-console/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	// ProfitStyle for positive profit figures.
	ProfitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// LossStyle for negative profit figures.
	LossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// HighlightStyle for rows whose reward/risk cleared the threshold.
	HighlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))

	// PanelStyle frames the metrics panel.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// StylePnl renders a formatted profit figure in its class color.
func StylePnl(text string, class types.PnlClass) string {
	switch class {
	case types.PnlClassPositive:
		return ProfitStyle.Render(text)
	case types.PnlClassNegative:
		return LossStyle.Render(text)
	default:
		return text
	}
}
