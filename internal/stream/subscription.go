package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"panelctl/internal/api"
	"panelctl/pkg/logging"
)

// Source yields events from one established connection.
type Source interface {
	Next() (Event, error)
	Close() error
}

// DialFunc establishes a connection. resumed is true when an earlier
// connection of the same subscription delivered at least one event, so the
// caller can avoid asking the server to replay history.
type DialFunc func(ctx context.Context, resumed bool) (Source, error)

// Options tunes a subscription.
type Options struct {
	// Name identifies the subscription in logs.
	Name string
	// InitialInterval is the first reconnect delay.
	InitialInterval time.Duration
	// MaxInterval caps the reconnect delay.
	MaxInterval time.Duration
	// MaxElapsedTime bounds how long reconnection is attempted after a
	// connection is lost. Zero retries until the subscription is closed.
	MaxElapsedTime time.Duration
	// Buffer is the capacity of the events channel.
	Buffer int
}

// DefaultOptions returns the reconnect policy used when none is configured.
func DefaultOptions(name string) Options {
	return Options{
		Name:            name,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Buffer:          64,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Name)
	if o.InitialInterval <= 0 {
		o.InitialInterval = d.InitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	if o.Buffer <= 0 {
		o.Buffer = d.Buffer
	}
	if o.Name == "" {
		o.Name = "Stream"
	}
	return o
}

// Subscription is a live, reconnecting stream of events. Events are
// delivered in arrival order on Events, which is closed when the
// subscription ends.
type Subscription struct {
	opts   Options
	dial   DialFunc
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe starts a subscription in the background. The first connection
// attempt is made asynchronously; failures surface through Err once Done is
// closed.
func Subscribe(ctx context.Context, dial DialFunc, opts Options) *Subscription {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		opts:   opts,
		dial:   dial,
		events: make(chan Event, opts.Buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the subscription has stopped and Events is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns why the subscription stopped. It is nil while running and
// after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to exit. The
// underlying connection is released before Close returns. Close is
// idempotent.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}

func (s *Subscription) run(ctx context.Context) {
	resumed := false
	for {
		src, err := s.connect(ctx, resumed)
		if err != nil {
			if ctx.Err() != nil {
				s.finish(nil)
				return
			}
			logging.Error(s.opts.Name, err, "Giving up on stream")
			s.finish(err)
			return
		}

		delivered, readErr := s.pump(ctx, src)
		_ = src.Close()
		if ctx.Err() != nil {
			s.finish(nil)
			return
		}
		resumed = resumed || delivered
		if readErr == nil || errors.Is(readErr, io.EOF) {
			readErr = ErrStreamClosed
		}
		logging.Warn(s.opts.Name, "Stream interrupted (%v), reconnecting", readErr)

		// A server that accepts and immediately drops must not be hammered.
		select {
		case <-ctx.Done():
			s.finish(nil)
			return
		case <-time.After(s.opts.InitialInterval):
		}
	}
}

func (s *Subscription) connect(ctx context.Context, resumed bool) (Source, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxInterval = s.opts.MaxInterval

	attempt := 0
	operation := func() (Source, error) {
		attempt++
		src, err := s.dial(ctx, resumed)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			if IsPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if attempt > 1 {
			logging.Info(s.opts.Name, "Reconnected after %d attempts", attempt)
		}
		return src, nil
	}
	notify := func(err error, next time.Duration) {
		logging.Debug(s.opts.Name, "Connect attempt %d failed (%v), retrying in %s", attempt, err, next.Round(time.Millisecond))
	}

	// Retry falls back to its own 15 minute limit unless told otherwise;
	// zero disables the limit.
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithNotify(notify),
		backoff.WithMaxElapsedTime(s.opts.MaxElapsedTime),
	)
}

func (s *Subscription) pump(ctx context.Context, src Source) (bool, error) {
	delivered := false
	for {
		ev, err := src.Next()
		if err != nil {
			return delivered, err
		}
		select {
		case s.events <- ev:
			delivered = true
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}

// IsPermanent reports whether err means reconnecting cannot help: the
// session is gone (401, 403) or the request itself is wrong (400, 404).
func IsPermanent(err error) bool {
	var te *api.TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
