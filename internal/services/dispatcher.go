package services

import (
	"context"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/pkg/logging"
)

// Dispatcher sends start, stop and restart requests. It is stateless: one
// request per call, no retry, no deduplication.
type Dispatcher struct {
	client   ActionClient
	reporter reporting.Reporter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(client ActionClient, reporter reporting.Reporter) *Dispatcher {
	if reporter == nil {
		reporter = reporting.NopReporter{}
	}
	return &Dispatcher{client: client, reporter: reporter}
}

// Act performs action on unit. A non-OK outcome is returned with a nil
// error; the error is reserved for requests that never got an answer
// (*api.TransportError) or invalid input.
func (d *Dispatcher) Act(ctx context.Context, unit string, action api.Action) (api.ActionOutcome, error) {
	logging.Debug("Dispatcher", "Requesting %s of %s", action, unit)

	outcome, err := d.client.ServiceAction(ctx, unit, action)
	if err != nil {
		logging.Error("Dispatcher", err, "%s %s failed", action, unit)
		outcome.Unit, outcome.Action = unit, action
		outcome.OK = false
		outcome.Error = err.Error()
		d.reporter.ReportAction(outcome)
		return outcome, err
	}

	if outcome.OK {
		logging.Info("Dispatcher", "%s %s succeeded", action, unit)
	} else {
		logging.Warn("Dispatcher", "%s", outcome.Summary())
	}
	d.reporter.ReportAction(outcome)
	return outcome, nil
}
