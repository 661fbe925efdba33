package view

import (
	"fmt"
	"strings"

	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
	"panelctl/pkg/logging"
)

func renderLogsPanel(m *model.Model, layout Layout) string {
	style := design.PanelStyle
	var body string
	switch {
	case m.LogUnit == "":
		body = renderActivity(m, layout.LogsHeight)
	default:
		style = design.PanelFocusedStyle
		title := design.TitleStyle.MarginBottom(0).Render(
			fmt.Sprintf("Logs: %s (%d lines)", m.LogUnit, len(m.LogLines)))
		body = title + "\n" + m.LogViewport.View()
	}
	return style.Width(layout.Width).Height(layout.LogsHeight).Render(body)
}

// renderActivity shows the tail of panelctl's own log while no unit is
// followed.
func renderActivity(m *model.Model, height int) string {
	title := design.TitleStyle.MarginBottom(0).Render("Activity")
	lines := m.ActivityLog
	visible := height - 1
	if visible < 0 {
		visible = 0
	}
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	if len(lines) == 0 {
		return title + "\n" + design.DimStyle.Render("Select a unit and press enter to follow its logs")
	}
	return title + "\n" + strings.Join(lines, "\n")
}

// LogPaneContent renders the followed unit's lines for the viewport.
func LogPaneContent(lines []string) string {
	styled := make([]string, len(lines))
	for i, l := range lines {
		styled[i] = styleLogLine(l)
	}
	return strings.Join(styled, "\n")
}

func styleLogLine(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error"), strings.Contains(lower, "failed"):
		return design.LogErrorStyle.Render(line)
	case strings.Contains(lower, "warn"):
		return design.LogWarnStyle.Render(line)
	default:
		return line
	}
}

// FormatLogEntry renders one of panelctl's own log entries for the
// activity pane.
func FormatLogEntry(entry logging.LogEntry) string {
	line := fmt.Sprintf("%s [%s] %s: %s",
		entry.Timestamp.Format("15:04:05"), entry.Level, entry.Subsystem, entry.Message)
	if entry.Err != nil {
		line += ": " + entry.Err.Error()
	}
	switch entry.Level {
	case logging.LevelError:
		return design.LogErrorStyle.Render(line)
	case logging.LevelWarn:
		return design.LogWarnStyle.Render(line)
	case logging.LevelDebug:
		return design.LogDebugStyle.Render(line)
	default:
		return line
	}
}
