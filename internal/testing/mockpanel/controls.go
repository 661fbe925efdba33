package mockpanel

import (
	"context"
	"time"

	"panelctl/internal/api"
	"panelctl/internal/auth"
)

// SetServices replaces the unit list and pushes it to status streams.
func (s *Server) SetServices(services []api.ServiceRecord) {
	s.mu.Lock()
	s.services = append([]api.ServiceRecord(nil), services...)
	s.mu.Unlock()
	s.broadcastStatus()
}

// PushStatus sends the current list to every status stream.
func (s *Server) PushStatus() {
	s.broadcastStatus()
}

// PushRawStatus sends an arbitrary frame to every status stream.
func (s *Server) PushRawStatus(event, data string) {
	s.broadcast(s.statusSubs, "", frame{event: event, data: data})
}

// PushLog appends a line to unit's journal and sends it to its log streams.
func (s *Server) PushLog(unit, line string) {
	s.mu.Lock()
	s.logs[unit] = append(s.logs[unit], line)
	s.mu.Unlock()
	s.broadcast(s.logSubs, unit, logFrame(line))
}

// PushRawLog sends an arbitrary frame to unit's log streams.
func (s *Server) PushRawLog(unit, event, data string) {
	s.broadcast(s.logSubs, unit, frame{event: event, data: data})
}

// DropStreams ends every open stream from the server side.
func (s *Server) DropStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.statusSubs {
		closeOnce(sub)
	}
	for sub := range s.logSubs {
		closeOnce(sub)
	}
}

func closeOnce(sub *subscriber) {
	select {
	case <-sub.drop:
	default:
		close(sub.drop)
	}
}

// ExpireSessions revokes every session, as a server restart would.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

// SetFailLogout makes the logout endpoint answer 500.
func (s *Server) SetFailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// SetDropLogout makes the logout endpoint close the connection without
// answering. The session stays valid on the server.
func (s *Server) SetDropLogout(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLogout = drop
}

// SetUnavailable makes every endpoint answer 503, as a panel behind a
// restarting proxy does. Open streams are not affected; see DropStreams.
func (s *Server) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

// ServiceListRequests returns how many times the service list was fetched.
func (s *Server) ServiceListRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// SetFailActions makes actions on unit exit non-zero with stderr.
func (s *Server) SetFailActions(unit, stderr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[unit] = stderr
}

// SetClock replaces the clock used for nonce expiry.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Challenges returns how many nonces were issued.
func (s *Server) Challenges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenges
}

// Logins returns every login request received.
func (s *Server) Logins() []LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LoginAttempt(nil), s.logins...)
}

// Logouts returns how many logout requests were received.
func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

// Actions returns every action request received.
func (s *Server) Actions() []ActionCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionCall(nil), s.actions...)
}

// LogQueries returns the raw query of every log stream request.
func (s *Server) LogQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logQueries...)
}

// ActiveSessions returns how many sessions are valid.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StatusStreams returns how many status streams are connected.
func (s *Server) StatusStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statusSubs)
}

// LogStreams returns how many log streams are connected for unit, or for
// any unit when unit is empty.
func (s *Server) LogStreams(unit string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sub := range s.logSubs {
		if unit == "" || sub.unit == unit {
			n++
		}
	}
	return n
}

// Login performs the challenge-response handshake for c against any panel
// server. Tests that exercise components behind the session gateway use it
// to obtain a session cookie.
func Login(ctx context.Context, c *api.Client, secret string) error {
	key, err := auth.Derive([]byte(secret))
	if err != nil {
		return err
	}
	defer key.Zero()
	nonce, proof, err := auth.NewResponder(c).Prove(ctx, key)
	if err != nil {
		return err
	}
	return c.Login(ctx, string(nonce), string(proof))
}
