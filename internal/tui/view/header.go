package view

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"panelctl/internal/reporting"
	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

func renderHeader(m *model.Model, width int) string {
	title := "panelctl"
	if m.ServerURL != "" {
		title = fmt.Sprintf("panelctl · %s", m.ServerURL)
	}
	if m.DebugMode {
		title += " [debug]"
	}

	left := design.HeaderStyle.Render(title)
	right := design.HeaderStyle.Render(sessionBadge(m.SessionState))

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	filler := design.HeaderStyle.Padding(0).Width(gap).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

func sessionBadge(state reporting.SessionState) string {
	switch state {
	case reporting.SessionLoggedIn:
		return design.TextSuccessStyle.Render("● logged in")
	case reporting.SessionAuthenticating:
		return design.TextWarningStyle.Render("◐ authenticating")
	default:
		return design.TextSecondaryStyle.Render("○ logged out")
	}
}
