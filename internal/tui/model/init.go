package model

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/tui/design"
)

// DefaultKeyMap returns a KeyMap with the default bindings used by the TUI.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "select up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "select down"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start unit"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop unit"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart unit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh list"),
		),
		OpenLogs: key.NewBinding(
			key.WithKeys("enter", "l"),
			key.WithHelp("enter/l", "follow logs"),
		),
		CloseLogs: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close logs"),
		),
		CopyLogs: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy logs"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "logout"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll logs up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdown", "scroll logs down"),
		),
	}
}

// InitializeModel builds the initial model in login mode.
func InitializeModel(cfg TUIConfig) *Model {
	ti := textinput.New()
	ti.Placeholder = "secret"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 1024
	ti.Width = 40
	ti.Prompt = "Secret: "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(design.ColorPrimary)

	tail := cfg.TailLines
	if tail <= 0 {
		tail = 200
	}

	return &Model{
		CurrentAppMode: ModeLogin,
		LastAppMode:    ModeLogin,
		DebugMode:      cfg.DebugMode,
		ColorMode:      cfg.ColorMode,
		ServerURL:      cfg.ServerURL,
		TailLines:      tail,
		Gateway:        cfg.Gateway,
		SessionState:   reporting.SessionLoggedOut,
		Pending:        make(map[string]api.Action),
		LogViewport:    viewport.New(0, 0),
		SecretInput:    ti,
		Spinner:        s,
		Keys:           DefaultKeyMap(),
		Updates:        cfg.Updates,
		LogChannel:     cfg.LogChannel,
		PendingSecret:  cfg.Secret,
		Now:            time.Now,
		Clipboard:      clipboard.WriteAll,
	}
}
