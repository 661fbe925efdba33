package model

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"panelctl/internal/api"
	"panelctl/pkg/logging"
)

// commandTimeout bounds every blocking gateway call started from the UI.
const commandTimeout = 30 * time.Second

// ChannelReaderCmd waits for the next reporter message.
func ChannelReaderCmd(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return ChannelClosedMsg{}
		}
		return msg
	}
}

// ListenForLogEntriesCmd waits for the next log entry.
func ListenForLogEntriesCmd(ch <-chan logging.LogEntry) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return nil
		}
		return NewLogEntryMsg{Entry: entry}
	}
}

// LoginCmd runs the handshake. The gateway zeroes secret.
func LoginCmd(g Gateway, secret []byte) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return LoginResultMsg{Err: g.Login(ctx, secret)}
	}
}

// LogoutCmd ends the session.
func LogoutCmd(g Gateway) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return LogoutResultMsg{Err: g.Logout(ctx)}
	}
}

// ActionCmd dispatches a lifecycle action.
func ActionCmd(g Gateway, unit string, action api.Action) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		outcome, err := g.Act(ctx, unit, action)
		if outcome.Unit == "" {
			outcome.Unit = unit
		}
		if outcome.Action == "" {
			outcome.Action = action
		}
		return ActionResultMsg{Outcome: outcome, Err: err}
	}
}

// RefreshCmd fetches the service list once.
func RefreshCmd(g Gateway) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		services, err := g.Refresh(ctx)
		return RefreshResultMsg{Count: len(services), Err: err}
	}
}

// CloseLogsCmd stops following the current unit. Closing waits for the log
// stream's goroutines, which may be waiting on the update channel, so it
// must not run inside Update.
func CloseLogsCmd(g Gateway) tea.Cmd {
	return func() tea.Msg {
		g.CloseLogs()
		return nil
	}
}

// OpenLogsCmd starts following unit.
func OpenLogsCmd(g Gateway, unit string, tail int) tea.Cmd {
	return func() tea.Msg {
		return LogsOpenedMsg{Unit: unit, Err: g.OpenLogs(unit, tail)}
	}
}
