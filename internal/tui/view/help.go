package view

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

func renderHelpOverlay(m *model.Model) string {
	k := m.Keys
	groups := [][]key.Binding{
		{k.Up, k.Down, k.Refresh},
		{k.Start, k.Stop, k.Restart},
		{k.OpenLogs, k.CloseLogs, k.PageUp, k.PageDown, k.CopyLogs},
		{k.Logout, k.Help, k.Quit},
	}

	var b strings.Builder
	b.WriteString(design.TitleStyle.Render("Keyboard shortcuts"))
	b.WriteString("\n")
	for i, group := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, binding := range group {
			h := binding.Help()
			keyCol := lipgloss.NewStyle().Bold(true).Width(12).Render(h.Key)
			b.WriteString(keyCol + design.TextSecondaryStyle.Render(h.Desc) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(design.DimStyle.Render("press ? or esc to close"))

	box := design.CenteredOverlayContainerStyle.Render(b.String())
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, box)
}
