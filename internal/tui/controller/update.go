package controller

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/reporting"
	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
	"panelctl/internal/tui/view"
	"panelctl/pkg/logging"
)

const controllerSubsystem = "TUI"

func initCmds(m *model.Model) tea.Cmd {
	cmds := []tea.Cmd{
		model.ChannelReaderCmd(m.Updates),
		model.ListenForLogEntriesCmd(m.LogChannel),
		textinput.Blink,
		m.Spinner.Tick,
	}
	if len(m.PendingSecret) > 0 && m.Gateway != nil {
		secret := m.PendingSecret
		m.PendingSecret = nil
		m.SessionState = reporting.SessionAuthenticating
		cmds = append(cmds, model.LoginCmd(m.Gateway, secret))
	}
	return tea.Batch(cmds...)
}

// Update is the central message router.
func Update(msg tea.Msg, m *model.Model) (*model.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return handleWindowSize(m, msg)
	case tea.KeyMsg:
		return handleKey(m, msg)

	// Reporter events. Each handler re-arms the channel reader.
	case reporting.ServicesMsg:
		handleServices(m, msg)
		return m, model.ChannelReaderCmd(m.Updates)
	case reporting.LogResetMsg:
		handleLogReset(m, msg)
		return m, model.ChannelReaderCmd(m.Updates)
	case reporting.LogLineMsg:
		handleLogLine(m, msg)
		return m, model.ChannelReaderCmd(m.Updates)
	case reporting.ActionOutcomeMsg:
		model.AddRawLineToActivityLog(m, design.TextSecondaryStyle.Render(msg.Outcome.Summary()))
		return m, model.ChannelReaderCmd(m.Updates)
	case reporting.SessionMsg:
		cmd := handleSession(m, msg)
		return m, tea.Batch(cmd, model.ChannelReaderCmd(m.Updates))
	case reporting.StreamErrorMsg:
		cmd := m.SetStatusMessage(fmt.Sprintf("%s stream: %v", msg.Stream, msg.Err), model.StatusBarWarning, model.StatusMessageTTL)
		return m, tea.Batch(cmd, model.ChannelReaderCmd(m.Updates))
	case model.ChannelClosedMsg:
		return m, nil

	// Command results.
	case model.LoginResultMsg:
		return handleLoginResult(m, msg)
	case model.LogoutResultMsg:
		return handleLogoutResult(m, msg)
	case model.ActionResultMsg:
		return handleActionResult(m, msg)
	case model.RefreshResultMsg:
		if msg.Err != nil {
			return m, m.SetStatusMessage(fmt.Sprintf("Refresh failed: %v", msg.Err), model.StatusBarError, model.StatusMessageTTL)
		}
		return m, m.SetStatusMessage(fmt.Sprintf("Refreshed %d services", msg.Count), model.StatusBarInfo, model.StatusMessageTTL)
	case model.LogsOpenedMsg:
		if msg.Err != nil {
			if m.LogUnit == msg.Unit {
				m.LogUnit = ""
			}
			return m, m.SetStatusMessage(fmt.Sprintf("Cannot follow %s: %v", msg.Unit, msg.Err), model.StatusBarError, model.StatusMessageTTL)
		}
		return m, nil

	case model.ClearStatusBarMsg:
		if msg.Seq == m.StatusBarSeq {
			m.StatusBarMessage = ""
			m.StatusBarMessageType = model.StatusBarInfo
		}
		return m, nil

	case model.NewLogEntryMsg:
		model.AddRawLineToActivityLog(m, view.FormatLogEntry(msg.Entry))
		return m, model.ListenForLogEntriesCmd(m.LogChannel)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if m.CurrentAppMode == model.ModeLogin {
		var cmd tea.Cmd
		m.SecretInput, cmd = m.SecretInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func handleWindowSize(m *model.Model, msg tea.WindowSizeMsg) (*model.Model, tea.Cmd) {
	m.Width = msg.Width
	m.Height = msg.Height
	resizeLogViewport(m)
	return m, nil
}

func resizeLogViewport(m *model.Model) {
	layout := view.ComputeLayout(m)
	m.LogViewport.Width = layout.Width
	// One row goes to the pane title.
	m.LogViewport.Height = max(layout.LogsHeight-1, 1)
}

func handleServices(m *model.Model, msg reporting.ServicesMsg) {
	selected := ""
	if svc, ok := m.SelectedService(); ok {
		selected = svc.Unit
	}

	m.Services = msg.Services
	m.ServicesAt = msg.At

	// Keep the highlight on the same unit when it is still listed.
	m.SelectedIndex = clampIndex(m.SelectedIndex, len(m.Services))
	for i, svc := range m.Services {
		if svc.Unit == selected {
			m.SelectedIndex = i
			break
		}
	}
	resizeLogViewport(m)
}

func handleLogReset(m *model.Model, msg reporting.LogResetMsg) {
	m.LogUnit = msg.Unit
	m.LogGeneration = msg.Generation
	m.LogLines = nil
	m.LogViewport.SetContent("")
	m.LogViewport.GotoTop()
	resizeLogViewport(m)
}

func handleLogLine(m *model.Model, msg reporting.LogLineMsg) {
	// Lines from an earlier subscription arrive late after a switch.
	if msg.Line.Generation != m.LogGeneration || msg.Line.Unit != m.LogUnit {
		return
	}
	follow := m.LogViewport.AtBottom()
	m.LogLines = append(m.LogLines, msg.Line.Text)
	if over := len(m.LogLines) - reporting.DefaultLogBufferLines; over > 0 {
		m.LogLines = m.LogLines[over:]
	}
	m.LogViewport.SetContent(view.LogPaneContent(m.LogLines))
	if follow {
		m.LogViewport.GotoBottom()
	}
}

func handleSession(m *model.Model, msg reporting.SessionMsg) tea.Cmd {
	m.SessionState = msg.State
	switch msg.State {
	case reporting.SessionLoggedIn:
		m.LoginError = ""
		if m.CurrentAppMode == model.ModeLogin {
			m.CurrentAppMode = model.ModeDashboard
		}
	case reporting.SessionLoggedOut:
		wasIn := m.CurrentAppMode != model.ModeLogin
		enterLogin(m)
		if msg.Err != nil {
			m.LoginError = msg.Err.Error()
		}
		if wasIn && msg.Err != nil {
			logging.Warn(controllerSubsystem, "Session ended: %v", msg.Err)
			return m.SetStatusMessage("Session ended, please log in again", model.StatusBarWarning, model.StatusMessageTTL)
		}
	}
	return nil
}

// enterLogin drops all session-scoped view state and shows the prompt.
func enterLogin(m *model.Model) {
	m.CurrentAppMode = model.ModeLogin
	m.LastAppMode = model.ModeLogin
	m.Services = nil
	m.ServicesAt = time.Time{}
	m.SelectedIndex = 0
	m.LogUnit = ""
	m.LogLines = nil
	m.LogViewport.SetContent("")
	for unit := range m.Pending {
		delete(m.Pending, unit)
	}
	m.SecretInput.Reset()
	m.SecretInput.Focus()
}

func handleLoginResult(m *model.Model, msg model.LoginResultMsg) (*model.Model, tea.Cmd) {
	if msg.Err != nil {
		m.SessionState = reporting.SessionLoggedOut
		m.LoginError = fmt.Sprintf("Login failed: %v", msg.Err)
		m.CurrentAppMode = model.ModeLogin
		m.SecretInput.Focus()
		return m, nil
	}
	m.SessionState = reporting.SessionLoggedIn
	m.LoginError = ""
	m.CurrentAppMode = model.ModeDashboard
	m.SecretInput.Blur()
	resizeLogViewport(m)
	return m, m.SetStatusMessage("Logged in", model.StatusBarSuccess, model.StatusMessageTTL)
}

func handleLogoutResult(m *model.Model, msg model.LogoutResultMsg) (*model.Model, tea.Cmd) {
	m.SessionState = reporting.SessionLoggedOut
	enterLogin(m)
	if msg.Err != nil {
		return m, m.SetStatusMessage(fmt.Sprintf("Logged out locally: %v", msg.Err), model.StatusBarWarning, model.StatusMessageTTL)
	}
	return m, m.SetStatusMessage("Logged out", model.StatusBarInfo, model.StatusMessageTTL)
}

func handleActionResult(m *model.Model, msg model.ActionResultMsg) (*model.Model, tea.Cmd) {
	delete(m.Pending, msg.Outcome.Unit)
	if msg.Err != nil {
		return m, m.SetStatusMessage(fmt.Sprintf("%s %s: %v", msg.Outcome.Action, msg.Outcome.Unit, msg.Err), model.StatusBarError, model.StatusMessageTTL)
	}
	if !msg.Outcome.OK {
		return m, m.SetStatusMessage(msg.Outcome.Summary(), model.StatusBarError, model.StatusMessageTTL)
	}
	return m, m.SetStatusMessage(msg.Outcome.Summary(), model.StatusBarSuccess, model.StatusMessageTTL)
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
