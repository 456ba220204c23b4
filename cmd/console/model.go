package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-console/internal/config"
	"github.com/rxtech-lab/argo-console/internal/dataset"
	"github.com/rxtech-lab/argo-console/internal/indicator"
	"github.com/rxtech-lab/argo-console/internal/logtail"
	"github.com/rxtech-lab/argo-console/internal/session"
	"github.com/rxtech-lab/argo-console/internal/stream"
)

// Application states.
const (
	StatePreparing = iota
	StateStreaming
	StateFinished
)

const snapshotInterval = 200 * time.Millisecond

// Deps bundles everything the dashboard needs from the run command.
type Deps struct {
	Config     config.Config
	Controller *session.Controller
	Dataset    *dataset.Client
	Tail       *logtail.Tail
	Chart      *chartStatus

	Ctx    context.Context
	Cancel context.CancelFunc
}

// Model is the main Bubble Tea model for the backtest dashboard.
type Model struct {
	state int
	deps  Deps

	progressBar progress.Model
	barTable    table.Model
	logView     viewport.Model

	snapshot   session.Snapshot
	err        error
	exportPath string
	exportErr  error
	width      int
	height     int
}

// NewModel creates a new Model with initial state.
func NewModel(deps Deps) Model {
	return Model{
		state:       StatePreparing,
		deps:        deps,
		progressBar: progress.New(progress.WithDefaultGradient()),
		barTable:    NewBarTable(),
		logView:     NewLogViewport(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startRun(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(snapshotInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// startRun makes sure the dataset exists on the server, loads the chart
// baseline, and opens the backtest stream.
func (m Model) startRun() tea.Cmd {
	cfg := m.deps.Config

	return func() tea.Msg {
		if err := m.deps.Dataset.Preload(m.deps.Ctx, cfg.Run.Symbol, cfg.Run.StartDate, cfg.Run.EndDate); err != nil {
			return startErrorMsg{Err: err}
		}

		m.deps.Controller.LoadBaseline(m.deps.Ctx, cfg.Run.Symbol, cfg.Chart.Timeframe)

		if err := m.deps.Controller.StartRun(m.deps.Ctx, cfg.Run); err != nil {
			return startErrorMsg{Err: err}
		}

		return runStartedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.deps.Controller.CancelRun()
			m.deps.Cancel()

			return m, tea.Quit
		case "c":
			if m.state == StateStreaming {
				m.deps.Controller.CancelRun()
			}

			return m, nil
		case "r":
			visible := m.deps.Controller.IndicatorVisible("rsi")
			m.deps.Controller.SetIndicatorVisible("rsi", !visible)

			return m, nil
		case "e":
			if m.state == StateFinished && m.snapshot.LastResult != nil {
				return m, m.exportResult()
			}

			return m, nil
		case "m":
			visible := m.deps.Controller.IndicatorVisible(indicator.SeriesName(indicator.DefaultMAPeriods[0]))
			for _, period := range indicator.DefaultMAPeriods {
				m.deps.Controller.SetIndicatorVisible(indicator.SeriesName(period), !visible)
			}

			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.barTable.SetWidth(msg.Width)
		m.barTable.SetHeight(max(6, msg.Height-22))
		m.logView.Width = msg.Width
		m.progressBar.Width = min(msg.Width-4, 60)

		return m, nil

	case tickMsg:
		return m.refresh()

	case snapshotMsg:
		m.snapshot = msg.Snapshot

		return m, nil

	case runStartedMsg:
		m.state = StateStreaming

		return m, nil

	case startErrorMsg:
		m.err = msg.Err
		m.state = StateFinished

		return m, nil

	case exportDoneMsg:
		m.exportPath = msg.Path
		m.exportErr = msg.Err

		return m, nil
	}

	var cmd tea.Cmd
	m.barTable, cmd = m.barTable.Update(msg)

	return m, cmd
}

// exportResult saves the finished run's spreadsheet next to the configured
// export directory.
func (m Model) exportResult() tea.Cmd {
	history := m.snapshot.LastResult.History
	cfg := m.deps.Config

	return func() tea.Msg {
		path, err := m.deps.Dataset.ExportResult(m.deps.Ctx, cfg.ExportDir, history, cfg.Run)

		return exportDoneMsg{Path: path, Err: err}
	}
}

// refresh pulls a fresh controller snapshot and the latest log lines.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.snapshot = m.deps.Controller.Snapshot()
	m.barTable = UpdateBarTableRows(m.barTable, m.snapshot.Rows)

	lines := m.deps.Tail.Lines()
	atBottom := m.logView.AtBottom()
	m.logView.SetContent(strings.Join(lines, "\n"))

	if atBottom {
		m.logView.GotoBottom()
	}

	if m.state == StateStreaming && (m.snapshot.Summary.Final || m.snapshot.Summary.Failed) {
		m.state = StateFinished
	}

	return m, tick()
}

// View implements tea.Model.
func (m Model) View() string {
	cfg := m.deps.Config

	var s strings.Builder

	s.WriteString(TitleStyle.Render(fmt.Sprintf("Argo Console - %s (%s)", cfg.Run.Symbol, cfg.Chart.Timeframe)))
	s.WriteString("  ")
	s.WriteString(HelpStyle.Render(m.stateLabel()))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	if m.snapshot.Summary.Failed {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Run failed: %s", m.snapshot.Summary.ErrMessage)))
		s.WriteString("\n\n")
	}

	s.WriteString(m.progressBar.ViewAs(float64(m.snapshot.Summary.Percent) / 100))
	s.WriteString("\n\n")

	s.WriteString(RenderMetricsPanel(m.snapshot.Summary))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(m.deps.Chart.StatusLine()))
	s.WriteString("\n\n")

	if len(m.snapshot.Rows) == 0 {
		s.WriteString("Waiting for chart data...\n")
	} else {
		s.WriteString(m.barTable.View())
		s.WriteString("\n")
	}

	if m.exportErr != nil {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Export failed: %v", m.exportErr)))
		s.WriteString("\n")
	} else if m.exportPath != "" {
		s.WriteString(HelpStyle.Render(fmt.Sprintf("Exported result to %s", m.exportPath)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(TitleStyle.Render("Server Logs"))
	s.WriteString("\n")
	s.WriteString(m.logView.View())
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("q: quit | c: cancel run | e: export result | m: toggle MAs | r: toggle RSI"))

	return s.String()
}

func (m Model) stateLabel() string {
	switch m.state {
	case StatePreparing:
		return "preparing"
	case StateStreaming:
		return fmt.Sprintf("streaming (%s)", m.snapshot.State)
	default:
		if m.snapshot.Summary.Failed {
			return "failed"
		}

		if m.snapshot.State == stream.StateIdle && m.snapshot.Summary.Final {
			return "finished"
		}

		return "stopped"
	}
}
