package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"panelctl/internal/api"
	"panelctl/pkg/logging"
)

// ConsoleReporter is an implementation of Reporter for the CLI. Data
// (service tables, log lines) goes to out; state changes and errors go
// through pkg/logging.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer

	// last is the previous snapshot, used to print only what changed.
	last       map[string]api.ServiceRecord
	onlyChange bool
	// logsOnly drops service snapshots so out carries journal lines only.
	logsOnly bool
}

// NewConsoleReporter creates a ConsoleReporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// NewChangesOnlyReporter creates a ConsoleReporter that prints the full
// table for the first snapshot and one line per changed unit afterwards.
func NewChangesOnlyReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, onlyChange: true}
}

// NewLogsOnlyReporter creates a ConsoleReporter that prints journal lines
// and ignores service snapshots.
func NewLogsOnlyReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, logsOnly: true}
}

// ReplaceServices implements Reporter.
func (c *ConsoleReporter) ReplaceServices(services []api.ServiceRecord, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.logsOnly {
		return
	}

	if c.onlyChange && c.last != nil {
		for _, svc := range services {
			prev, seen := c.last[svc.Unit]
			if !seen || prev.ActiveState != svc.ActiveState || prev.SubState != svc.SubState {
				fmt.Fprintf(c.out, "%s  %-40s %s/%s\n", at.Format(time.TimeOnly), svc.Unit, svc.ActiveState, svc.SubState)
			}
		}
		c.remember(services)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"UNIT", "ACTIVE", "SUB", "ENABLED", "DESCRIPTION"})
	for _, svc := range services {
		t.AppendRow(table.Row{svc.Unit, svc.ActiveState, svc.SubState, svc.UnitFileState, svc.Description})
	}
	t.SetCaption("%d services at %s", len(services), at.Format(time.TimeOnly))
	t.Render()
	c.remember(services)
}

func (c *ConsoleReporter) remember(services []api.ServiceRecord) {
	c.last = make(map[string]api.ServiceRecord, len(services))
	for _, svc := range services {
		c.last[svc.Unit] = svc
	}
}

// ResetLogs implements Reporter.
func (c *ConsoleReporter) ResetLogs(unit string, generation uint64) {
	logging.Info("LogStream", "Following logs of %s", unit)
}

// AppendLogLine implements Reporter.
func (c *ConsoleReporter) AppendLogLine(line LogLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line.Text)
}

// ReportAction implements Reporter.
func (c *ConsoleReporter) ReportAction(outcome api.ActionOutcome) {
	if outcome.OK {
		logging.Info("Dispatcher", "%s", outcome.Summary())
		return
	}
	logging.Error("Dispatcher", nil, "%s", outcome.Summary())
}

// ReportSession implements Reporter.
func (c *ConsoleReporter) ReportSession(state SessionState, err error) {
	if err != nil {
		logging.Error("Session", err, "Session is now %s", state)
		return
	}
	logging.Debug("Session", "Session is now %s", state)
}

// ReportStreamError implements Reporter.
func (c *ConsoleReporter) ReportStreamError(stream string, err error) {
	logging.Error(stream, err, "Stream ended")
}
