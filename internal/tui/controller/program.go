package controller

import (
	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/tui/model"
)

// NewProgram creates the Bubble Tea program for the dashboard.
func NewProgram(cfg model.TUIConfig) *tea.Program {
	m := model.InitializeModel(cfg)
	return tea.NewProgram(NewAppModel(m), tea.WithAltScreen())
}
