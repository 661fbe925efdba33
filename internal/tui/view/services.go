package view

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"panelctl/internal/api"
	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
)

const (
	unitColumnWidth  = 32
	stateColumnWidth = 20
)

func renderServicesPanel(m *model.Model, layout Layout) string {
	style := design.PanelStyle
	if m.LogUnit == "" {
		style = design.PanelFocusedStyle
	}
	body := renderServiceRows(m, layout.Width, layout.ServicesHeight)
	return style.Width(layout.Width).Height(layout.ServicesHeight).Render(body)
}

func renderServiceRows(m *model.Model, width, height int) string {
	if len(m.Services) == 0 {
		return design.DimStyle.Render("No services")
	}

	title := design.TitleStyle.MarginBottom(0).Render(fmt.Sprintf("Services (%d)", len(m.Services)))
	rows := []string{title}

	visible := height - 1
	if visible < 1 {
		visible = 1
	}
	start := scrollOffset(m.SelectedIndex, len(m.Services), visible)
	end := start + visible
	if end > len(m.Services) {
		end = len(m.Services)
	}

	for i := start; i < end; i++ {
		rows = append(rows, renderServiceRow(m, m.Services[i], i == m.SelectedIndex, width))
	}
	return strings.Join(rows, "\n")
}

// scrollOffset keeps the selected row inside a window of visible rows.
func scrollOffset(selected, total, visible int) int {
	if total <= visible || selected < visible {
		return 0
	}
	start := selected - visible + 1
	if start+visible > total {
		start = total - visible
	}
	return start
}

func renderServiceRow(m *model.Model, svc api.ServiceRecord, selected bool, width int) string {
	stateStyle := design.GetStateStyle(svc.ActiveState)
	icon := stateStyle.Render(design.StateIcon(svc.ActiveState))

	state := string(svc.ActiveState)
	if svc.SubState != "" {
		state += "/" + svc.SubState
	}
	if action, ok := m.Pending[svc.Unit]; ok {
		state = fmt.Sprintf("%s %s...", m.Spinner.View(), action)
	}

	unit := runewidth.FillRight(runewidth.Truncate(svc.Unit, unitColumnWidth, "…"), unitColumnWidth)
	stateCol := runewidth.FillRight(runewidth.Truncate(state, stateColumnWidth, "…"), stateColumnWidth)

	descWidth := width - unitColumnWidth - stateColumnWidth - 6
	desc := ""
	if descWidth > 0 {
		desc = runewidth.Truncate(svc.Description, descWidth, "…")
	}

	line := fmt.Sprintf("%s %s %s %s", icon, unit, stateStyle.Render(stateCol), design.TextSecondaryStyle.Render(desc))
	if selected {
		return design.ListItemSelectedStyle.Width(width).Render(line)
	}
	return design.ListItemStyle.Width(width).Render(line)
}
