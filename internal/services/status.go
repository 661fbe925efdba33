package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/stream"
	"panelctl/pkg/logging"
)

const (
	statusSubsystem = "StatusStream"
	statusEvent     = "status"
)

var errMissingServices = errors.New(`missing "services" field`)

// StatusStream keeps the service list current from the server's status
// stream. Each event is a full replacement of the list.
type StatusStream struct {
	client   StatusClient
	store    *Store
	reporter reporting.Reporter
	opts     stream.Options

	// OnEnd is called from the consumer goroutine, after State has become
	// Closed, when the subscription stops without Close being called. It
	// may call Close.
	OnEnd func(err error)

	mu       sync.Mutex
	sub      *stream.Subscription
	consumed chan struct{}
	now      func() time.Time

	errMu sync.Mutex
	err   error
}

// NewStatusStream creates a closed StatusStream writing into store.
func NewStatusStream(client StatusClient, store *Store, reporter reporting.Reporter, opts stream.Options) *StatusStream {
	if reporter == nil {
		reporter = reporting.NopReporter{}
	}
	if opts.Name == "" {
		opts.Name = statusSubsystem
	}
	return &StatusStream{
		client:   client,
		store:    store,
		reporter: reporter,
		opts:     opts,
		now:      time.Now,
	}
}

// Open subscribes to the status stream. Opening an open stream is a no-op.
func (s *StatusStream) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		select {
		case <-s.consumed:
			// Ended on its own; replace it.
		default:
			return nil
		}
	}

	s.setErr(nil)
	dial := stream.DialSSE(s.client, s.client.Endpoints().StatusStream, nil)
	s.sub = stream.Subscribe(ctx, dial, s.opts)
	s.consumed = make(chan struct{})
	go s.consume(s.sub, s.consumed)
	logging.Info(statusSubsystem, "Status stream opened")
	return nil
}

// Close ends the subscription and returns once no further snapshot can be
// applied. Closing a closed stream is a no-op.
func (s *StatusStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return
	}
	s.sub.Close()
	<-s.consumed
	s.sub = nil
	s.consumed = nil
	logging.Info(statusSubsystem, "Status stream closed")
}

// State reports whether a subscription is live.
func (s *StatusStream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return StreamClosed
	}
	select {
	case <-s.consumed:
		return StreamClosed
	default:
		return StreamOpen
	}
}

// Done returns a channel closed when the current subscription stops, or
// nil when closed.
func (s *StatusStream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed == nil {
		return nil
	}
	return s.consumed
}

// Err returns why the last subscription stopped on its own.
func (s *StatusStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *StatusStream) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Refresh fetches the list once and replaces the store contents. On
// failure the previous list is kept.
func (s *StatusStream) Refresh(ctx context.Context) ([]api.ServiceRecord, error) {
	services, err := s.client.Services(ctx)
	if err != nil {
		logging.Warn(statusSubsystem, "Refresh failed, keeping previous list: %v", err)
		return nil, err
	}
	s.apply(services, SourceRefresh)
	return services, nil
}

// Store returns the store the stream writes into.
func (s *StatusStream) Store() *Store { return s.store }

func (s *StatusStream) consume(sub *stream.Subscription, done chan struct{}) {
	for ev := range sub.Events() {
		s.handle(ev)
	}
	err := sub.Err()
	if err != nil {
		s.setErr(err)
		s.reporter.ReportStreamError(statusSubsystem, err)
	}
	close(done)
	if err != nil && s.OnEnd != nil {
		s.OnEnd(err)
	}
}

func (s *StatusStream) handle(ev stream.Event) {
	if ev.Name != statusEvent {
		logging.Debug(statusSubsystem, "Ignoring %q event", ev.Name)
		return
	}
	services, err := decodeStatus(ev.Data)
	if err != nil {
		logging.Error(statusSubsystem, err, "Dropping status event")
		return
	}
	s.apply(services, SourceStream)
}

func (s *StatusStream) apply(services []api.ServiceRecord, source Source) {
	at := s.now()
	s.store.Replace(services, at, source)
	s.reporter.ReplaceServices(services, at)
	logging.Debug(statusSubsystem, "Applied %d services from %s", len(services), source)
}

func decodeStatus(data string) ([]api.ServiceRecord, error) {
	var snap api.StatusSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, &api.MalformedPayloadError{Source: "status event", Err: err}
	}
	if snap.Services == nil {
		return nil, &api.MalformedPayloadError{Source: "status event", Err: errMissingServices}
	}
	return snap.Services, nil
}
