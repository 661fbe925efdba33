package reporting

import (
	"sync"
	"time"

	"panelctl/internal/api"
)

// Recorder is a Reporter that keeps everything it is told. It backs the
// library API and the tests; the last snapshot and the log view are the
// same projections the TUI renders.
type Recorder struct {
	mu sync.Mutex

	services      []api.ServiceRecord
	servicesAt    time.Time
	snapshots     int
	history       [][]api.ServiceRecord
	logUnit       string
	logGeneration uint64
	logLines      []LogLine
	outcomes      []api.ActionOutcome
	sessions      []SessionMsg
	streamErrors  []StreamErrorMsg
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ReplaceServices implements Reporter.
func (r *Recorder) ReplaceServices(services []api.ServiceRecord, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append([]api.ServiceRecord(nil), services...)
	r.servicesAt = at
	r.snapshots++
	r.history = append(r.history, r.services)
}

// ResetLogs implements Reporter.
func (r *Recorder) ResetLogs(unit string, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logUnit = unit
	r.logGeneration = generation
	r.logLines = nil
}

// AppendLogLine implements Reporter. Lines from another generation are
// ignored, as a renderer would.
func (r *Recorder) AppendLogLine(line LogLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if line.Generation != r.logGeneration {
		return
	}
	r.logLines = append(r.logLines, line)
}

// ReportAction implements Reporter.
func (r *Recorder) ReportAction(outcome api.ActionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

// ReportSession implements Reporter.
func (r *Recorder) ReportSession(state SessionState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, SessionMsg{State: state, Err: err})
}

// ReportStreamError implements Reporter.
func (r *Recorder) ReportStreamError(stream string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamErrors = append(r.streamErrors, StreamErrorMsg{Stream: stream, Err: err})
}

// Services returns the last reported list.
func (r *Recorder) Services() []api.ServiceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.ServiceRecord(nil), r.services...)
}

// Snapshots returns how many lists were reported.
func (r *Recorder) Snapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots
}

// History returns every reported list, oldest first.
func (r *Recorder) History() [][]api.ServiceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]api.ServiceRecord, len(r.history))
	for i, list := range r.history {
		out[i] = append([]api.ServiceRecord(nil), list...)
	}
	return out
}

// LogUnit returns the unit of the current log view.
func (r *Recorder) LogUnit() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logUnit
}

// LogTexts returns the text of the current log view.
func (r *Recorder) LogTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logLines))
	for i, l := range r.logLines {
		out[i] = l.Text
	}
	return out
}

// Outcomes returns every reported action result.
func (r *Recorder) Outcomes() []api.ActionOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.ActionOutcome(nil), r.outcomes...)
}

// SessionStates returns every reported session state, in order.
func (r *Recorder) SessionStates() []SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionState, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.State
	}
	return out
}

// StreamErrors returns every reported stream failure.
func (r *Recorder) StreamErrors() []StreamErrorMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StreamErrorMsg(nil), r.streamErrors...)
}

// Fanout forwards every call to each reporter in turn.
type Fanout []Reporter

func (f Fanout) ReplaceServices(services []api.ServiceRecord, at time.Time) {
	for _, r := range f {
		r.ReplaceServices(services, at)
	}
}

func (f Fanout) ResetLogs(unit string, generation uint64) {
	for _, r := range f {
		r.ResetLogs(unit, generation)
	}
}

func (f Fanout) AppendLogLine(line LogLine) {
	for _, r := range f {
		r.AppendLogLine(line)
	}
}

func (f Fanout) ReportAction(outcome api.ActionOutcome) {
	for _, r := range f {
		r.ReportAction(outcome)
	}
}

func (f Fanout) ReportSession(state SessionState, err error) {
	for _, r := range f {
		r.ReportSession(state, err)
	}
}

func (f Fanout) ReportStreamError(stream string, err error) {
	for _, r := range f {
		r.ReportStreamError(stream, err)
	}
}
