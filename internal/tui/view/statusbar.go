package view

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

func renderStatusBar(m *model.Model, width int) string {
	style := design.StatusBarStyle
	text := m.StatusBarMessage
	switch m.StatusBarMessageType {
	case model.StatusBarSuccess:
		style = design.StatusBarSuccessStyle
	case model.StatusBarError:
		style = design.StatusBarErrorStyle
	case model.StatusBarWarning:
		style = design.StatusBarWarningStyle
	case model.StatusBarInfo:
		if text != "" {
			style = design.StatusBarInfoStyle
		}
	}
	if text == "" {
		text = "? help • q quit"
	}

	right := UpdatedLabel(m)
	leftWidth := width - lipgloss.Width(right) - 2*design.SpaceSM
	if leftWidth < 1 {
		leftWidth = 1
	}
	left := style.Width(leftWidth).MaxWidth(leftWidth).Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, design.StatusBarStyle.Render(right))
}

// UpdatedLabel describes how fresh the service list is.
func UpdatedLabel(m *model.Model) string {
	if m.ServicesAt.IsZero() {
		return "no data yet"
	}
	return fmt.Sprintf("updated %s", humanize.RelTime(m.ServicesAt, m.Now(), "ago", "from now"))
}
