package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/stream"
	"panelctl/pkg/logging"
)

const (
	logSubsystem = "LogStream"
	logEvent     = "log"

	// DefaultTailLines is how much history the server sends on open.
	DefaultTailLines = 200
)

// LogStream follows the journal of one unit at a time. Opening a new unit
// closes the previous subscription first and starts a new buffer
// generation, so the log view only ever holds lines of the selected unit.
type LogStream struct {
	client    StreamClient
	buffer    *reporting.LineBuffer
	reporter  reporting.Reporter
	opts      stream.Options
	transport Transport

	mu       sync.Mutex
	sub      *stream.Subscription
	consumed chan struct{}
	unit     string

	errMu sync.Mutex
	err   error
}

// NewLogStream creates a closed LogStream.
func NewLogStream(client StreamClient, buffer *reporting.LineBuffer, reporter reporting.Reporter, transport Transport, opts stream.Options) *LogStream {
	if reporter == nil {
		reporter = reporting.NopReporter{}
	}
	if buffer == nil {
		buffer = reporting.NewLineBuffer(0)
	}
	if transport == "" {
		transport = TransportSSE
	}
	if opts.Name == "" {
		opts.Name = logSubsystem
	}
	return &LogStream{
		client:    client,
		buffer:    buffer,
		reporter:  reporter,
		opts:      opts,
		transport: transport,
	}
}

// Open starts following unit, replaying up to tail lines of history
// (DefaultTailLines when tail is negative). Any previous subscription is
// closed, and its goroutines have exited, before the buffer is reset.
func (l *LogStream) Open(ctx context.Context, unit string, tail int) error {
	unit = strings.TrimSpace(unit)
	if unit == "" || strings.Contains(unit, "/") {
		return fmt.Errorf("%w: %q", api.ErrInvalidUnit, unit)
	}
	if tail < 0 {
		tail = DefaultTailLines
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()

	gen := l.buffer.Reset(unit)
	l.reporter.ResetLogs(unit, gen)
	l.unit = unit
	l.setErr(nil)

	var dial stream.DialFunc
	endpoints := l.client.Endpoints()
	switch l.transport {
	case TransportWebSocket:
		dial = stream.DialWebSocket(l.client, logEvent, endpoints.LogsSocket, url.PathEscape(unit))
	default:
		dial = stream.DialSSE(l.client, endpoints.Logs, func(resumed bool) url.Values {
			lines := tail
			if resumed {
				lines = 0
			}
			return url.Values{"unit": {unit}, "lines": {strconv.Itoa(lines)}}
		})
	}

	sub := stream.Subscribe(ctx, dial, l.opts)
	done := make(chan struct{})
	l.sub, l.consumed = sub, done
	go l.consume(sub, done, unit, gen)

	logging.Info(logSubsystem, "Following %s (tail %d, %s)", unit, tail, l.transport)
	return nil
}

// Close stops following and clears the buffer. It returns once no further
// line can be appended. Closing a closed stream is a no-op.
func (l *LogStream) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub == nil {
		return
	}
	unit := l.unit
	l.closeLocked()
	gen := l.buffer.Reset("")
	l.reporter.ResetLogs("", gen)
	l.unit = ""
	logging.Info(logSubsystem, "Stopped following %s", unit)
}

func (l *LogStream) closeLocked() {
	if l.sub == nil {
		return
	}
	l.sub.Close()
	<-l.consumed
	l.sub, l.consumed = nil, nil
}

// State reports whether a subscription is live.
func (l *LogStream) State() StreamState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub == nil {
		return StreamClosed
	}
	select {
	case <-l.consumed:
		return StreamClosed
	default:
		return StreamOpen
	}
}

// Unit returns the unit being followed, or "" when closed.
func (l *LogStream) Unit() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unit
}

// Lines returns the buffered lines of the current unit.
func (l *LogStream) Lines() []string {
	return l.buffer.Lines()
}

// Buffer returns the underlying line buffer.
func (l *LogStream) Buffer() *reporting.LineBuffer { return l.buffer }

// Done returns a channel closed when the current subscription stops, or
// nil when closed.
func (l *LogStream) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.consumed == nil {
		return nil
	}
	return l.consumed
}

// Err returns why the last subscription stopped on its own.
func (l *LogStream) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *LogStream) setErr(err error) {
	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
}

func (l *LogStream) consume(sub *stream.Subscription, done chan struct{}, unit string, gen uint64) {
	defer close(done)
	for ev := range sub.Events() {
		text, ok := l.decode(ev)
		if !ok {
			continue
		}
		if l.buffer.Append(gen, text) {
			l.reporter.AppendLogLine(reporting.LogLine{Unit: unit, Text: text, Generation: gen})
		}
	}
	// mu may be held by Close waiting on done; only errMu is safe here.
	if err := sub.Err(); err != nil {
		l.setErr(err)
		l.reporter.ReportStreamError(logSubsystem, err)
	}
}

func (l *LogStream) decode(ev stream.Event) (string, bool) {
	if ev.Name != logEvent {
		logging.Debug(logSubsystem, "Ignoring %q event", ev.Name)
		return "", false
	}
	if l.transport == TransportWebSocket {
		return strings.TrimRight(ev.Data, "\r\n"), true
	}
	var payload struct {
		Line *string `json:"line"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil || payload.Line == nil {
		if err == nil {
			err = fmt.Errorf(`missing "line" field`)
		}
		logging.Error(logSubsystem, &api.MalformedPayloadError{Source: "log event", Err: err}, "Dropping log event")
		return "", false
	}
	return *payload.Line, true
}
