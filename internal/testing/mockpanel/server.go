package mockpanel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"panelctl/internal/api"
	"panelctl/internal/auth"
	"panelctl/pkg/logging"
)

const (
	subsystem       = "MockPanel"
	sessionCookie   = "sid"
	defaultNonceTTL = 120 * time.Second
	defaultTail     = 200
)

// LoginAttempt is one request received on the login endpoint.
type LoginAttempt struct {
	Nonce    string
	HMAC     string
	Accepted bool
}

// ActionCall is one request received on the action endpoint.
type ActionCall struct {
	Unit   string
	Action string
}

type frame struct {
	event string
	data  string
}

type subscriber struct {
	unit string
	ch   chan frame
	drop chan struct{}
}

// Server is an in-process panel server speaking the full protocol:
// single-use expiring nonces, HMAC proof verification, cookie sessions,
// SSE status and log streams and the legacy log WebSocket.
type Server struct {
	mu sync.Mutex

	key            auth.DerivedKey
	nonceTTL       time.Duration
	statusInterval time.Duration
	now            func() time.Time

	nonces   map[string]time.Time
	sessions map[string]bool

	services []api.ServiceRecord
	failing  map[string]string
	logs     map[string][]string

	statusSubs map[*subscriber]bool
	logSubs    map[*subscriber]bool

	challenges int
	logins     []LoginAttempt
	logouts    int
	actions    []ActionCall
	logQueries []string

	failLogout  bool
	dropLogout  bool
	unavailable bool
	listCalls   int

	mux      *http.ServeMux
	upgrader websocket.Upgrader
	ts       *httptest.Server
}

// New creates a server accepting secret and serving no units.
func New(secret string) *Server {
	s, err := FromScenario(Scenario{Secret: secret})
	if err != nil {
		panic(err)
	}
	return s
}

// FromScenario creates a server for sc. It does not listen; use Start or
// mount it as an http.Handler.
func FromScenario(sc Scenario) (*Server, error) {
	key, err := auth.Derive([]byte(sc.Secret))
	if err != nil {
		return nil, fmt.Errorf("deriving mock panel key: %w", err)
	}
	s := &Server{
		key:            key,
		nonceTTL:       sc.NonceTTL,
		statusInterval: sc.StatusInterval,
		now:            time.Now,
		nonces:         make(map[string]time.Time),
		sessions:       make(map[string]bool),
		failing:        make(map[string]string),
		logs:           make(map[string][]string),
		statusSubs:     make(map[*subscriber]bool),
		logSubs:        make(map[*subscriber]bool),
	}
	if s.nonceTTL <= 0 {
		s.nonceTTL = defaultNonceTTL
	}
	for _, def := range sc.Services {
		s.services = append(s.services, def.Record())
		s.logs[def.Unit] = append([]string(nil), def.Logs...)
		if def.FailActions {
			s.failing[def.Unit] = def.Stderr
		}
	}

	endpoints := api.DefaultEndpoints()
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET "+endpoints.Challenge, s.handleChallenge)
	s.mux.HandleFunc("POST "+endpoints.Login, s.handleLogin)
	s.mux.HandleFunc("POST "+endpoints.Logout, s.handleLogout)
	s.mux.HandleFunc("GET "+endpoints.Services, s.authed(s.handleServices))
	s.mux.HandleFunc("POST "+endpoints.Action+"/{unit}/{action}", s.authed(s.handleAction))
	s.mux.HandleFunc("GET "+endpoints.StatusStream, s.authed(s.handleStatusStream))
	s.mux.HandleFunc("GET "+endpoints.Logs, s.authed(s.handleLogStream))
	s.mux.HandleFunc("GET "+endpoints.LogsSocket+"/{unit}", s.authed(s.handleLogSocket))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	unavailable := s.unavailable
	s.mu.Unlock()
	if unavailable {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "error": "unavailable"})
		return
	}
	s.mux.ServeHTTP(w, r)
}

// Start serves on a loopback httptest listener and returns its URL.
func (s *Server) Start() string {
	s.ts = httptest.NewServer(s)
	return s.ts.URL
}

// URL returns the address Start is serving on.
func (s *Server) URL() string {
	if s.ts == nil {
		return ""
	}
	return s.ts.URL
}

// Close ends every open stream and stops the listener.
func (s *Server) Close() {
	s.DropStreams()
	if s.ts != nil {
		s.ts.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	nonce := uuid.NewString()
	s.mu.Lock()
	s.nonces[nonce] = s.now().Add(s.nonceTTL)
	s.challenges++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nonce string `json:"nonce"`
		HMAC  string `json:"hmac"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	expiry, issued := s.nonces[body.Nonce]
	delete(s.nonces, body.Nonce)
	ok := issued && !s.now().After(expiry) &&
		auth.VerifyProof(s.key, auth.Nonce(body.Nonce), auth.Proof(body.HMAC))
	s.logins = append(s.logins, LoginAttempt{Nonce: body.Nonce, HMAC: body.HMAC, Accepted: ok})
	var sid string
	if ok {
		sid = uuid.NewString()
		s.sessions[sid] = true
	}
	s.mu.Unlock()

	if !ok {
		logging.Debug(subsystem, "Rejected login (nonce issued=%v)", issued)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "invalid"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.logouts++
	fail, drop := s.failLogout, s.dropLogout
	if !drop {
		if c, err := r.Cookie(sessionCookie); err == nil {
			delete(s.sessions, c.Value)
		}
	}
	s.mu.Unlock()

	if drop {
		// Cut the connection without a response, as a network failure would.
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "logout failed"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		valid := err == nil && s.sessions[c.Value]
		s.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.listCalls++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": s.wireServices()})
}

// wireServices renders the list with the snake_case keys the real server
// uses.
func (s *Server) wireServices() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, map[string]string{
			"unit":            svc.Unit,
			"description":     svc.Description,
			"active_state":    string(svc.ActiveState),
			"sub_state":       svc.SubState,
			"load_state":      svc.LoadState,
			"unit_file_state": svc.UnitFileState,
		})
	}
	return out
}

func (s *Server) knownUnit(unit string) bool {
	for _, svc := range s.services {
		if svc.Unit == unit {
			return true
		}
	}
	return false
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	unit, action := r.PathValue("unit"), r.PathValue("action")

	s.mu.Lock()
	s.actions = append(s.actions, ActionCall{Unit: unit, Action: action})
	known := s.knownUnit(unit)
	stderr, failing := s.failing[unit]
	s.mu.Unlock()

	if !strings.HasSuffix(unit, ".service") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad unit"})
		return
	}
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "error": "unit not found"})
		return
	}
	if _, err := api.ParseAction(action); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "error": "bad action"})
		return
	}

	if failing {
		s.setState(unit, api.StateFailed, "failed")
		writeJSON(w, http.StatusOK, api.ActionOutcome{OK: false, Code: 1, Stderr: stderr})
		return
	}
	switch api.Action(action) {
	case api.ActionStop:
		s.setState(unit, api.StateInactive, "dead")
	case api.ActionRestart:
		s.setState(unit, api.StateActivating, "start")
		s.setState(unit, api.StateActive, "running")
	default:
		s.setState(unit, api.StateActive, "running")
	}
	writeJSON(w, http.StatusOK, api.ActionOutcome{OK: true, Code: 0})
}

func (s *Server) setState(unit string, state api.ActiveState, sub string) {
	s.mu.Lock()
	for i := range s.services {
		if s.services[i].Unit == unit {
			s.services[i].ActiveState = state
			s.services[i].SubState = sub
		}
	}
	s.mu.Unlock()
	s.broadcastStatus()
}

func (s *Server) statusFrame() frame {
	data, _ := json.Marshal(map[string]interface{}{"services": s.wireServices()})
	return frame{event: "status", data: string(data)}
}

func (s *Server) broadcastStatus() {
	s.broadcast(s.statusSubs, "", s.statusFrame())
}

func (s *Server) broadcast(subs map[*subscriber]bool, unit string, f frame) {
	s.mu.Lock()
	targets := make([]*subscriber, 0, len(subs))
	for sub := range subs {
		if unit == "" || sub.unit == unit {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()
	for _, sub := range targets {
		select {
		case sub.ch <- f:
		case <-sub.drop:
		case <-time.After(time.Second):
			logging.Warn(subsystem, "Subscriber too slow, dropping %s frame", f.event)
		}
	}
}

func (s *Server) register(subs map[*subscriber]bool, unit string) *subscriber {
	sub := &subscriber{unit: unit, ch: make(chan frame, 64), drop: make(chan struct{})}
	s.mu.Lock()
	subs[sub] = true
	s.mu.Unlock()
	return sub
}

func (s *Server) unregister(subs map[*subscriber]bool, sub *subscriber) {
	s.mu.Lock()
	delete(subs, sub)
	s.mu.Unlock()
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()
	return flusher, true
}

func writeFrame(w http.ResponseWriter, f frame) {
	if f.event != "" {
		fmt.Fprintf(w, "event: %s\n", f.event)
	}
	for _, line := range strings.Split(f.data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := startSSE(w)
	if !ok {
		return
	}
	sub := s.register(s.statusSubs, "")
	defer s.unregister(s.statusSubs, sub)

	writeFrame(w, s.statusFrame())
	flusher.Flush()

	var tick <-chan time.Time
	if s.statusInterval > 0 {
		ticker := time.NewTicker(s.statusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.drop:
			return
		case <-tick:
			writeFrame(w, s.statusFrame())
		case f := <-sub.ch:
			writeFrame(w, f)
		}
		flusher.Flush()
	}
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("unit")
	lines := defaultTail
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad lines"})
			return
		}
		lines = n
	}
	if !strings.HasSuffix(unit, ".service") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "bad unit"})
		return
	}
	s.mu.Lock()
	known := s.knownUnit(unit)
	s.logQueries = append(s.logQueries, r.URL.RawQuery)
	s.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "error": "unit not found"})
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}
	sub := s.register(s.logSubs, unit)
	defer s.unregister(s.logSubs, sub)

	for _, line := range s.tail(unit, lines) {
		writeFrame(w, logFrame(line))
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.drop:
			return
		case f := <-sub.ch:
			writeFrame(w, f)
			flusher.Flush()
		}
	}
}

func (s *Server) handleLogSocket(w http.ResponseWriter, r *http.Request) {
	unit := r.PathValue("unit")
	s.mu.Lock()
	known := s.knownUnit(unit)
	s.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"ok": false, "error": "unit not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.register(s.logSubs, unit)
	defer s.unregister(s.logSubs, sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, line := range s.tail(unit, defaultTail) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line+"\n")); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case <-sub.drop:
			return
		case f := <-sub.ch:
			var ev api.LogEvent
			if err := json.Unmarshal([]byte(f.data), &ev); err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ev.Line+"\n")); err != nil {
				return
			}
		}
	}
}

func logFrame(line string) frame {
	data, _ := json.Marshal(api.LogEvent{Line: line})
	return frame{event: "log", data: string(data)}
}

func (s *Server) tail(unit string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.logs[unit]
	if n >= len(all) {
		return append([]string(nil), all...)
	}
	return append([]string(nil), all[len(all)-n:]...)
}
