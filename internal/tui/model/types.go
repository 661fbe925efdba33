package model

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/pkg/logging"
)

// AppMode represents the current mode of the application
type AppMode int

const (
	ModeLogin AppMode = iota
	ModeDashboard
	ModeHelpOverlay
	ModeQuitting
)

// String provides a human-readable representation of the AppMode.
func (m AppMode) String() string {
	switch m {
	case ModeLogin:
		return "Login"
	case ModeDashboard:
		return "Dashboard"
	case ModeHelpOverlay:
		return "HelpOverlay"
	case ModeQuitting:
		return "Quitting"
	default:
		return "Unknown"
	}
}

// MessageType represents the type of status bar message
type MessageType int

const (
	StatusBarInfo MessageType = iota
	StatusBarSuccess
	StatusBarError
	StatusBarWarning
)

// Constants for UI
const (
	MaxActivityLogLines = 1000
	StatusMessageTTL    = 4 * time.Second
)

// Gateway is what the UI drives. *session.Gateway satisfies it.
type Gateway interface {
	Login(ctx context.Context, secret []byte) error
	Logout(ctx context.Context) error
	State() reporting.SessionState
	Act(ctx context.Context, unit string, action api.Action) (api.ActionOutcome, error)
	Refresh(ctx context.Context) ([]api.ServiceRecord, error)
	OpenLogs(unit string, tail int) error
	CloseLogs()
}

// TUIConfig carries everything the UI needs from bootstrap.
type TUIConfig struct {
	DebugMode bool
	ColorMode string
	ServerURL string
	TailLines int
	Gateway   Gateway
	// Updates is the reporter channel the gateway's components write to.
	Updates <-chan tea.Msg
	// LogChannel carries panelctl's own log entries.
	LogChannel <-chan logging.LogEntry
	// Secret, when set, is submitted on start instead of prompting.
	Secret []byte
}

// KeyMap defines all the key bindings for the application
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Start     key.Binding
	Stop      key.Binding
	Restart   key.Binding
	Refresh   key.Binding
	OpenLogs  key.Binding
	CloseLogs key.Binding
	CopyLogs  key.Binding
	Logout    key.Binding
	Help      key.Binding
	Quit      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
}

// Model represents the state of the TUI application
type Model struct {
	// Terminal dimensions
	Width  int
	Height int

	// Global application state
	CurrentAppMode AppMode
	LastAppMode    AppMode
	DebugMode      bool
	ColorMode      string
	ServerURL      string
	TailLines      int

	Gateway      Gateway
	SessionState reporting.SessionState
	// LoginError is shown under the secret input after a failed attempt.
	LoginError string

	// Service list, replaced wholesale on every snapshot
	Services      []api.ServiceRecord
	ServicesAt    time.Time
	SelectedIndex int
	// Pending tracks units with an action in flight.
	Pending map[string]api.Action

	// Log pane for the selected unit
	LogUnit       string
	LogGeneration uint64
	LogLines      []string
	LogDirty      bool
	LogViewport   viewport.Model

	// Activity log of panelctl's own messages
	ActivityLog []string

	// Status bar toast
	StatusBarMessage     string
	StatusBarMessageType MessageType
	StatusBarSeq         int

	// Components
	SecretInput textinput.Model
	Spinner     spinner.Model
	Keys        KeyMap

	// Channels
	Updates    <-chan tea.Msg
	LogChannel <-chan logging.LogEntry

	// PendingSecret is submitted by Init when set.
	PendingSecret []byte

	// Now is the clock used for relative timestamps.
	Now func() time.Time
	// Clipboard writes the log buffer for the copy key.
	Clipboard func(string) error
}

// SelectedService returns the highlighted unit, if any.
func (m *Model) SelectedService() (api.ServiceRecord, bool) {
	if m.SelectedIndex < 0 || m.SelectedIndex >= len(m.Services) {
		return api.ServiceRecord{}, false
	}
	return m.Services[m.SelectedIndex], true
}

// SetStatusMessage shows a toast and schedules its removal.
func (m *Model) SetStatusMessage(message string, msgType MessageType, ttl time.Duration) tea.Cmd {
	m.StatusBarSeq++
	seq := m.StatusBarSeq
	m.StatusBarMessage = message
	m.StatusBarMessageType = msgType
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return ClearStatusBarMsg{Seq: seq}
	})
}

// AddRawLineToActivityLog appends to the activity log, dropping the oldest
// lines past MaxActivityLogLines.
func AddRawLineToActivityLog(m *Model, line string) {
	m.ActivityLog = append(m.ActivityLog, line)
	if over := len(m.ActivityLog) - MaxActivityLogLines; over > 0 {
		m.ActivityLog = m.ActivityLog[over:]
	}
}
