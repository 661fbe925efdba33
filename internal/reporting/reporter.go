package reporting

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/api"
)

// SessionState is the authentication state of the session gateway.
type SessionState string

const (
	SessionLoggedOut      SessionState = "LoggedOut"
	SessionAuthenticating SessionState = "Authenticating"
	SessionLoggedIn       SessionState = "LoggedIn"
)

// String makes SessionState satisfy the fmt.Stringer interface.
func (s SessionState) String() string {
	return string(s)
}

// LogLine is one journal line of the unit currently being followed.
// Generation identifies the log subscription the line was read from.
type LogLine struct {
	Unit       string
	Text       string
	Generation uint64
}

// String provides a compact representation for debugging.
func (l LogLine) String() string {
	return fmt.Sprintf("LogLine(%s#%d: %q)", l.Unit, l.Generation, l.Text)
}

// Reporter is the rendering sink. Every method is a pure projection of the
// event it receives: the reporter never calls back into the session, and a
// call for one concern never touches another (a new service list does not
// reset the log view and vice versa).
//
// Implementations must be safe for concurrent use; stream goroutines call
// them directly.
type Reporter interface {
	// ReplaceServices replaces the whole visible list, in server order.
	ReplaceServices(services []api.ServiceRecord, at time.Time)
	// ResetLogs clears the log view and starts following unit.
	ResetLogs(unit string, generation uint64)
	// AppendLogLine appends one line to the log view.
	AppendLogLine(line LogLine)
	// ReportAction shows the result of a start/stop/restart.
	ReportAction(outcome api.ActionOutcome)
	// ReportSession shows an authentication state change. err is set when
	// the transition was caused by a failure.
	ReportSession(state SessionState, err error)
	// ReportStreamError shows that a subscription ended on its own.
	ReportStreamError(stream string, err error)
}

// ServicesMsg carries a replacement service list to the TUI.
type ServicesMsg struct {
	Services []api.ServiceRecord
	At       time.Time
}

// LogResetMsg tells the TUI that a new log target was selected.
type LogResetMsg struct {
	Unit       string
	Generation uint64
}

// LogLineMsg carries one log line to the TUI.
type LogLineMsg struct {
	Line LogLine
}

// ActionOutcomeMsg carries an action result to the TUI.
type ActionOutcomeMsg struct {
	Outcome api.ActionOutcome
}

// SessionMsg carries a session state change to the TUI.
type SessionMsg struct {
	State SessionState
	Err   error
}

// StreamErrorMsg tells the TUI that a stream gave up.
type StreamErrorMsg struct {
	Stream string
	Err    error
}

var (
	_ tea.Msg = ServicesMsg{}
	_ tea.Msg = LogLineMsg{}
)

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) ReplaceServices([]api.ServiceRecord, time.Time) {}
func (NopReporter) ResetLogs(string, uint64)                        {}
func (NopReporter) AppendLogLine(LogLine)                           {}
func (NopReporter) ReportAction(api.ActionOutcome)                  {}
func (NopReporter) ReportSession(SessionState, error)               {}
func (NopReporter) ReportStreamError(string, error)                 {}
