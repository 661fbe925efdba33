package model

import (
	"panelctl/internal/api"
	"panelctl/pkg/logging"
)

// LoginResultMsg reports the end of a handshake started from the UI.
type LoginResultMsg struct {
	Err error
}

// LogoutResultMsg reports a finished logout. Err is the server's complaint;
// the session is gone locally either way.
type LogoutResultMsg struct {
	Err error
}

// ActionResultMsg carries the outcome of a start/stop/restart.
type ActionResultMsg struct {
	Outcome api.ActionOutcome
	Err     error
}

// RefreshResultMsg reports a manual refresh.
type RefreshResultMsg struct {
	Count int
	Err   error
}

// LogsOpenedMsg reports whether following a unit started.
type LogsOpenedMsg struct {
	Unit string
	Err  error
}

// ClearStatusBarMsg removes the toast with sequence Seq. Newer toasts stay.
type ClearStatusBarMsg struct {
	Seq int
}

// NewLogEntryMsg carries one of panelctl's own log entries.
type NewLogEntryMsg struct {
	Entry logging.LogEntry
}

// ChannelClosedMsg is sent when the reporter channel closes.
type ChannelClosedMsg struct{}
