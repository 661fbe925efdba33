package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"panelctl/internal/api"
	"panelctl/internal/auth"
	"panelctl/internal/reporting"
	"panelctl/internal/services"
	"panelctl/internal/stream"
	"panelctl/pkg/logging"
)

const subsystem = "Session"

// State is the authentication state of a Gateway.
type State = reporting.SessionState

const (
	LoggedOut      = reporting.SessionLoggedOut
	Authenticating = reporting.SessionAuthenticating
	LoggedIn       = reporting.SessionLoggedIn
)

var (
	// ErrLoginInProgress is returned by Login while another handshake runs.
	ErrLoginInProgress = errors.New("session: login already in progress")
	// ErrAlreadyLoggedIn is returned by Login when a session is active.
	ErrAlreadyLoggedIn = errors.New("session: already logged in")
	// ErrNotLoggedIn is returned by operations that need a session.
	ErrNotLoggedIn = errors.New("session: not logged in")
)

// Client is the transport a Gateway drives. api.Client satisfies it.
type Client interface {
	auth.Challenger
	services.ActionClient
	services.StatusClient
	Login(ctx context.Context, nonce, proof string) error
	Logout(ctx context.Context) error
	ResetSession()
}

// Options configures a Gateway.
type Options struct {
	// LoginTimeout bounds the whole handshake.
	LoginTimeout time.Duration
	// Stream is the reconnect policy of both streams. MaxElapsedTime only
	// bounds the log stream.
	Stream stream.Options
	// LogTransport selects how log lines are streamed.
	LogTransport services.Transport
	// LogBufferLines bounds the log view.
	LogBufferLines int
	// TailLines is how much history a log stream starts with.
	TailLines int
}

// Gateway owns the authenticated session. It runs the handshake, gates
// every other component on its outcome and tears all of them down on
// logout. It is safe for concurrent use.
type Gateway struct {
	client   Client
	reporter reporting.Reporter
	opts     Options

	store      *services.Store
	dispatcher *services.Dispatcher
	status     *services.StatusStream
	logs       *services.LogStream

	mu       sync.Mutex
	reportMu sync.Mutex
	state    State
	// streamCtx outlives individual calls; it is cancelled on logout.
	streamCtx    context.Context
	streamCancel context.CancelFunc
}

// NewGateway creates a logged-out Gateway.
func NewGateway(client Client, reporter reporting.Reporter, opts Options) *Gateway {
	if reporter == nil {
		reporter = reporting.NopReporter{}
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = api.DefaultTimeout
	}
	if opts.TailLines <= 0 {
		opts.TailLines = services.DefaultTailLines
	}

	g := &Gateway{
		client:   client,
		reporter: reporter,
		opts:     opts,
		state:    LoggedOut,
		store:    services.NewStore(),
	}
	g.dispatcher = services.NewDispatcher(client, reporter)

	statusOpts := opts.Stream
	statusOpts.Name = "StatusStream"
	// The service list must recover from any outage while logged in, so
	// the status stream retries until logout. Only the log stream gives up.
	statusOpts.MaxElapsedTime = 0
	g.status = services.NewStatusStream(client, g.store, reporter, statusOpts)
	g.status.OnEnd = g.onStatusEnd

	logOpts := opts.Stream
	logOpts.Name = "LogStream"
	g.logs = services.NewLogStream(client, reporting.NewLineBuffer(opts.LogBufferLines), reporter, opts.LogTransport, logOpts)
	return g
}

// State returns the current authentication state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// transition sets the state and reports it. It is called with g.mu held
// and releases it before reporting, so State never waits on a slow
// reporter. reportMu keeps reports in transition order.
func (g *Gateway) transition(s State, err error) {
	g.state = s
	g.reportMu.Lock()
	g.mu.Unlock()
	defer g.reportMu.Unlock()
	g.reporter.ReportSession(s, err)
}

// Login runs the challenge-response handshake with secret. The secret
// slice is zeroed before Login returns, whatever the outcome. On success the
// status stream is opened and the service list is fetched once.
//
// A refused proof returns api.ErrCredentialRejected; an unreachable or
// failing server returns a *api.TransportError. Either way the gateway is
// back to LoggedOut.
func (g *Gateway) Login(ctx context.Context, secret []byte) error {
	if err := g.Authenticate(ctx, secret); err != nil {
		return err
	}

	g.mu.Lock()
	streamCtx := g.streamCtx
	g.mu.Unlock()
	if streamCtx == nil {
		return ErrNotLoggedIn
	}
	if err := g.status.Open(streamCtx); err != nil {
		logging.Error(subsystem, err, "Failed to open status stream")
	}
	if _, err := g.status.Refresh(ctx); err != nil {
		logging.Warn(subsystem, "Initial refresh failed: %v", err)
	}
	return nil
}

// Authenticate is Login without the status stream and the initial fetch.
// One-shot commands use it; Status().Open starts the stream later if
// needed.
func (g *Gateway) Authenticate(ctx context.Context, secret []byte) error {
	defer zero(secret)

	g.mu.Lock()
	switch g.state {
	case Authenticating:
		g.mu.Unlock()
		return ErrLoginInProgress
	case LoggedIn:
		g.mu.Unlock()
		return ErrAlreadyLoggedIn
	}
	g.transition(Authenticating, nil)

	logging.Info(subsystem, "Logging in to %s", g.baseURL())
	err := g.handshake(ctx, secret)

	g.mu.Lock()
	if err != nil {
		g.client.ResetSession()
		g.transition(LoggedOut, err)
		logging.Error(subsystem, err, "Login failed")
		return err
	}
	g.streamCtx, g.streamCancel = context.WithCancel(context.Background())
	g.transition(LoggedIn, nil)
	logging.Info(subsystem, "Logged in")
	return nil
}

// handshake fetches a fresh nonce, derives the key and submits the proof.
func (g *Gateway) handshake(ctx context.Context, secret []byte) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.LoginTimeout)
	defer cancel()

	if len(secret) == 0 {
		return auth.ErrEmptySecret
	}

	responder := auth.NewResponder(g.client)
	nonce, err := responder.FetchNonce(ctx)
	if err != nil {
		return err
	}

	key, err := auth.Derive(secret)
	if err != nil {
		return err
	}
	defer key.Zero()

	proof, err := auth.BuildProof(key, nonce)
	if err != nil {
		return err
	}
	logging.Debug("Auth", "Submitting proof for challenge")
	return g.client.Login(ctx, string(nonce), string(proof))
}

// Logout ends the session. The server call is best effort: its error is
// returned, but the streams are closed, the cookie is dropped and the state
// is LoggedOut regardless.
func (g *Gateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	if g.state != LoggedIn {
		g.mu.Unlock()
		return ErrNotLoggedIn
	}
	g.mu.Unlock()

	var logoutErr error
	if err := g.client.Logout(ctx); err != nil {
		logging.Warn(subsystem, "Server logout failed, logging out locally: %v", err)
		logoutErr = fmt.Errorf("server logout: %w", err)
	}
	g.teardown(nil)
	return logoutErr
}

// teardown closes both streams, drops the credential and transitions to
// LoggedOut. cause is reported with the transition.
func (g *Gateway) teardown(cause error) {
	g.logs.Close()
	g.status.Close()

	g.mu.Lock()
	if g.streamCancel != nil {
		g.streamCancel()
		g.streamCancel = nil
	}
	g.streamCtx = nil
	g.client.ResetSession()
	g.store.Clear()
	if g.state == LoggedOut {
		g.mu.Unlock()
		return
	}
	g.transition(LoggedOut, cause)
	logging.Info(subsystem, "Logged out")
}

// onStatusEnd handles a status stream that gave up. A 401 means the server
// forgot the session; the gateway follows.
func (g *Gateway) onStatusEnd(err error) {
	if !api.IsUnauthorized(err) {
		return
	}
	if g.State() != LoggedIn {
		return
	}
	logging.Warn(subsystem, "Session expired on the server")
	g.teardown(fmt.Errorf("session expired: %w", err))
}

// Dispatcher returns the action dispatcher.
func (g *Gateway) Dispatcher() (*services.Dispatcher, error) {
	if g.State() != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	return g.dispatcher, nil
}

// Act is a shortcut for Dispatcher().Act.
func (g *Gateway) Act(ctx context.Context, unit string, action api.Action) (api.ActionOutcome, error) {
	d, err := g.Dispatcher()
	if err != nil {
		return api.ActionOutcome{Unit: unit, Action: action}, err
	}
	return d.Act(ctx, unit, action)
}

// Status returns the status stream client.
func (g *Gateway) Status() (*services.StatusStream, error) {
	if g.State() != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	return g.status, nil
}

// Logs returns the log stream client.
func (g *Gateway) Logs() (*services.LogStream, error) {
	if g.State() != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	return g.logs, nil
}

// OpenLogs starts following unit, replacing any current log target.
func (g *Gateway) OpenLogs(unit string, tail int) error {
	g.mu.Lock()
	if g.state != LoggedIn {
		g.mu.Unlock()
		return ErrNotLoggedIn
	}
	ctx := g.streamCtx
	g.mu.Unlock()
	if tail <= 0 {
		tail = g.opts.TailLines
	}
	return g.logs.Open(ctx, unit, tail)
}

// CloseLogs stops following the current unit.
func (g *Gateway) CloseLogs() {
	g.logs.Close()
}

// Refresh fetches the service list once. On failure the previous list is
// kept and the error returned.
func (g *Gateway) Refresh(ctx context.Context) ([]api.ServiceRecord, error) {
	if g.State() != LoggedIn {
		return nil, ErrNotLoggedIn
	}
	return g.status.Refresh(ctx)
}

// Services returns the last known service list.
func (g *Gateway) Services() ([]api.ServiceRecord, time.Time) {
	return g.store.Snapshot()
}

// Close logs out if needed. It is meant for shutdown paths.
func (g *Gateway) Close(ctx context.Context) {
	if g.State() == LoggedIn {
		_ = g.Logout(ctx)
		return
	}
	g.teardown(nil)
}

func (g *Gateway) baseURL() string {
	if b, ok := g.client.(interface{ BaseURL() string }); ok {
		return b.BaseURL()
	}
	return "server"
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
