package controller

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/tui/model"
)

func handleKey(m *model.Model, msg tea.KeyMsg) (*model.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return quit(m)
	}

	switch m.CurrentAppMode {
	case model.ModeLogin:
		return handleLoginKey(m, msg)
	case model.ModeHelpOverlay:
		return handleHelpKey(m, msg)
	case model.ModeQuitting:
		return m, nil
	default:
		return handleDashboardKey(m, msg)
	}
}

func quit(m *model.Model) (*model.Model, tea.Cmd) {
	m.CurrentAppMode = model.ModeQuitting
	return m, tea.Quit
}

func handleLoginKey(m *model.Model, msg tea.KeyMsg) (*model.Model, tea.Cmd) {
	if m.SessionState == reporting.SessionAuthenticating {
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		value := m.SecretInput.Value()
		if value == "" {
			m.LoginError = "Secret must not be empty"
			return m, nil
		}
		secret := []byte(value)
		m.SecretInput.Reset()
		m.LoginError = ""
		m.SessionState = reporting.SessionAuthenticating
		return m, model.LoginCmd(m.Gateway, secret)
	}
	var cmd tea.Cmd
	m.SecretInput, cmd = m.SecretInput.Update(msg)
	return m, cmd
}

func handleHelpKey(m *model.Model, msg tea.KeyMsg) (*model.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return quit(m)
	case key.Matches(msg, m.Keys.Help), key.Matches(msg, m.Keys.CloseLogs):
		m.CurrentAppMode = m.LastAppMode
	}
	return m, nil
}

func handleDashboardKey(m *model.Model, msg tea.KeyMsg) (*model.Model, tea.Cmd) {
	k := m.Keys
	switch {
	case key.Matches(msg, k.Quit):
		return quit(m)

	case key.Matches(msg, k.Help):
		m.LastAppMode = m.CurrentAppMode
		m.CurrentAppMode = model.ModeHelpOverlay
		return m, nil

	case key.Matches(msg, k.Up):
		if m.SelectedIndex > 0 {
			m.SelectedIndex--
		}
		return m, nil

	case key.Matches(msg, k.Down):
		if m.SelectedIndex < len(m.Services)-1 {
			m.SelectedIndex++
		}
		return m, nil

	case key.Matches(msg, k.Start):
		return dispatchAction(m, api.ActionStart)
	case key.Matches(msg, k.Stop):
		return dispatchAction(m, api.ActionStop)
	case key.Matches(msg, k.Restart):
		return dispatchAction(m, api.ActionRestart)

	case key.Matches(msg, k.Refresh):
		return m, model.RefreshCmd(m.Gateway)

	case key.Matches(msg, k.OpenLogs):
		svc, ok := m.SelectedService()
		if !ok {
			return m, nil
		}
		m.LogUnit = svc.Unit
		resizeLogViewport(m)
		return m, model.OpenLogsCmd(m.Gateway, svc.Unit, m.TailLines)

	case key.Matches(msg, k.CloseLogs):
		if m.LogUnit == "" {
			return m, nil
		}
		m.LogUnit = ""
		m.LogLines = nil
		m.LogViewport.SetContent("")
		resizeLogViewport(m)
		return m, model.CloseLogsCmd(m.Gateway)

	case key.Matches(msg, k.CopyLogs):
		return copyLogs(m)

	case key.Matches(msg, k.Logout):
		return m, model.LogoutCmd(m.Gateway)

	case key.Matches(msg, k.PageUp), key.Matches(msg, k.PageDown):
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func dispatchAction(m *model.Model, action api.Action) (*model.Model, tea.Cmd) {
	svc, ok := m.SelectedService()
	if !ok {
		return m, nil
	}
	if pending, busy := m.Pending[svc.Unit]; busy {
		return m, m.SetStatusMessage(fmt.Sprintf("%s %s already in progress", pending, svc.Unit), model.StatusBarWarning, model.StatusMessageTTL)
	}
	m.Pending[svc.Unit] = action
	status := m.SetStatusMessage(fmt.Sprintf("%s %s...", action, svc.Unit), model.StatusBarInfo, model.StatusMessageTTL)
	return m, tea.Batch(status, model.ActionCmd(m.Gateway, svc.Unit, action))
}

func copyLogs(m *model.Model) (*model.Model, tea.Cmd) {
	if m.LogUnit == "" || len(m.LogLines) == 0 {
		return m, m.SetStatusMessage("No logs to copy", model.StatusBarWarning, model.StatusMessageTTL)
	}
	if err := m.Clipboard(strings.Join(m.LogLines, "\n")); err != nil {
		return m, m.SetStatusMessage(fmt.Sprintf("Copy failed: %v", err), model.StatusBarError, model.StatusMessageTTL)
	}
	return m, m.SetStatusMessage(fmt.Sprintf("Copied %d lines of %s", len(m.LogLines), m.LogUnit), model.StatusBarSuccess, model.StatusMessageTTL)
}
