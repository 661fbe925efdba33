package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"panelctl/internal/reporting"
	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

func renderLogin(m *model.Model) string {
	var b strings.Builder

	b.WriteString(design.TitleStyle.Render("panelctl"))
	b.WriteString("\n")
	if m.ServerURL != "" {
		b.WriteString(design.SubtitleStyle.Render(m.ServerURL))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.SessionState == reporting.SessionAuthenticating {
		b.WriteString(m.Spinner.View())
		b.WriteString(" Authenticating...")
	} else {
		b.WriteString(design.InputFocusedStyle.Render(m.SecretInput.View()))
	}

	if m.LoginError != "" {
		b.WriteString("\n")
		b.WriteString(design.TextErrorStyle.Render(m.LoginError))
	}

	b.WriteString("\n\n")
	b.WriteString(design.DimStyle.Render("enter: login • ctrl+c: quit"))

	box := design.CenteredOverlayContainerStyle.Render(b.String())
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, box)
}
