package view

import (
	"github.com/charmbracelet/lipgloss"

	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

const (
	// headerHeight is the header line plus its bottom gap.
	headerHeight = 2
	// statusBarHeight is the single status line.
	statusBarHeight = 1
	// minLogPaneHeight keeps the log pane usable on short terminals.
	minLogPaneHeight = 5
)

// Render renders the UI according to the current model state.
func Render(m *model.Model) string {
	if m.Width == 0 || m.Height == 0 {
		return design.DimStyle.Render("Initializing... (waiting for window size)")
	}

	switch m.CurrentAppMode {
	case model.ModeQuitting:
		return design.TextSecondaryStyle.Render("Closing session...")
	case model.ModeLogin:
		return renderLogin(m)
	case model.ModeHelpOverlay:
		return renderHelpOverlay(m)
	default:
		return renderDashboard(m)
	}
}

// Layout splits the terminal between the service list and the log pane.
// It returns the inner dimensions of both panels.
type Layout struct {
	Width          int
	ServicesHeight int
	LogsHeight     int
}

// ComputeLayout sizes the dashboard panels for the current terminal.
func ComputeLayout(m *model.Model) Layout {
	frameW := design.PanelStyle.GetHorizontalFrameSize()
	frameH := design.PanelStyle.GetVerticalFrameSize()

	width := m.Width - frameW
	if width < design.MinPanelWidth {
		width = design.MinPanelWidth
	}

	available := m.Height - headerHeight - statusBarHeight - 2*frameH
	if available < 2 {
		available = 2
	}

	// The list takes what it needs, capped at 40% when logs are open.
	services := len(m.Services) + 1
	if m.LogUnit != "" {
		limit := available * 40 / 100
		if limit < 3 {
			limit = 3
		}
		if services > limit {
			services = limit
		}
	}
	if services > available-minLogPaneHeight {
		services = max(available-minLogPaneHeight, 2)
	}
	logs := available - services
	if logs < 1 {
		logs = 1
	}
	return Layout{Width: width, ServicesHeight: services, LogsHeight: logs}
}

func renderDashboard(m *model.Model) string {
	layout := ComputeLayout(m)

	header := renderHeader(m, m.Width)
	servicesPanel := renderServicesPanel(m, layout)
	logsPanel := renderLogsPanel(m, layout)
	statusBar := renderStatusBar(m, m.Width)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		servicesPanel,
		logsPanel,
		statusBar,
	)
}
