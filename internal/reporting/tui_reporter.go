package reporting

import (
	"time"

	"panelctl/internal/api"
	"panelctl/pkg/logging"
)

// TUIReporter is an implementation of Reporter that sends updates to a channel
// for the TUI to process.
type TUIReporter struct {
	updates *BufferedChannel
}

// NewTUIReporter creates a TUIReporter that sends updates to the provided channel.
func NewTUIReporter(updates *BufferedChannel) *TUIReporter {
	if updates == nil {
		logging.Error("TUI", nil, "NewTUIReporter called with nil channel, using a private one")
		updates = NewBufferedChannel(1, NewPriorityBufferStrategy(BufferActionDrop), 0)
	}
	return &TUIReporter{updates: updates}
}

func (t *TUIReporter) send(msg interface{}) {
	if !t.updates.Send(msg) {
		logging.Debug("TUI", "TUI channel full, dropped %s", messageType(msg))
	}
}

// ReplaceServices implements Reporter.
func (t *TUIReporter) ReplaceServices(services []api.ServiceRecord, at time.Time) {
	cp := make([]api.ServiceRecord, len(services))
	copy(cp, services)
	t.send(ServicesMsg{Services: cp, At: at})
}

// ResetLogs implements Reporter.
func (t *TUIReporter) ResetLogs(unit string, generation uint64) {
	t.send(LogResetMsg{Unit: unit, Generation: generation})
}

// AppendLogLine implements Reporter.
func (t *TUIReporter) AppendLogLine(line LogLine) {
	t.send(LogLineMsg{Line: line})
}

// ReportAction implements Reporter.
func (t *TUIReporter) ReportAction(outcome api.ActionOutcome) {
	t.send(ActionOutcomeMsg{Outcome: outcome})
}

// ReportSession implements Reporter.
func (t *TUIReporter) ReportSession(state SessionState, err error) {
	t.send(SessionMsg{State: state, Err: err})
}

// ReportStreamError implements Reporter.
func (t *TUIReporter) ReportStreamError(stream string, err error) {
	t.send(StreamErrorMsg{Stream: stream, Err: err})
}
