package main

import (
	"time"

	"github.com/rxtech-lab/argo-console/internal/session"
)

// tickMsg drives the periodic snapshot refresh.
type tickMsg time.Time

// snapshotMsg carries a fresh controller snapshot into the model.
type snapshotMsg struct {
	Snapshot session.Snapshot
}

// runStartedMsg signals that the backtest stream is open.
type runStartedMsg struct{}

// startErrorMsg indicates the preload or stream open failed.
type startErrorMsg struct {
	Err error
}

// exportDoneMsg reports where the result spreadsheet was written.
type exportDoneMsg struct {
	Path string
	Err  error
}
