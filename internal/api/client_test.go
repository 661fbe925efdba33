package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, UserAgent: "panelctl/test"})
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"no scheme", "panel.local"},
		{"unsupported scheme", "ftp://panel.local"},
		{"no host", "http://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Options{BaseURL: tt.baseURL})
			assert.Error(t, err)
		})
	}
}

func TestClient_Challenge(t *testing.T) {
	var gotUA, gotCorrelation string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/challenge", r.URL.Path)
		gotUA = r.Header.Get("User-Agent")
		gotCorrelation = r.Header.Get(CorrelationHeader)
		writeJSON(w, http.StatusOK, map[string]string{"nonce": "abc"})
	}))

	nonce, err := c.Challenge(WithCorrelationID(context.Background(), "req-1"))
	require.NoError(t, err)
	assert.Equal(t, "abc", nonce)
	assert.Equal(t, "panelctl/test", gotUA)
	assert.Equal(t, "req-1", gotCorrelation)
}

func TestClient_ChallengeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"empty nonce", `{"nonce":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.Challenge(context.Background())
			assert.True(t, IsMalformed(err), "got %v", err)
		})
	}
}

func TestClient_Login(t *testing.T) {
	var received loginRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		if received.HMAC != "good" {
			writeJSON(w, http.StatusUnauthorized, okResponse{OK: false, Error: "invalid"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	}))

	err := c.Login(context.Background(), "n1", "bad")
	assert.ErrorIs(t, err, ErrCredentialRejected)
	assert.False(t, c.HasSession())

	require.NoError(t, c.Login(context.Background(), "n1", "good"))
	assert.Equal(t, loginRequest{Nonce: "n1", HMAC: "good"}, received)
	assert.True(t, c.HasSession())

	c.ResetSession()
	assert.False(t, c.HasSession())
}

func TestClient_LoginOKFalseIsRejection(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okResponse{OK: false})
	}))
	assert.ErrorIs(t, c.Login(context.Background(), "n", "p"), ErrCredentialRejected)
}

func TestClient_LoginServerFailureIsTransport(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, okResponse{Error: "upstream"})
	}))
	err := c.Login(context.Background(), "n", "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialRejected)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.True(t, te.Temporary())
	assert.Contains(t, te.Error(), "upstream")
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Challenge(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_SessionCookieIsSent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/"})
			writeJSON(w, http.StatusOK, okResponse{OK: true})
		case "/api/services":
			if ck, err := r.Cookie("sid"); err != nil || ck.Value != "s1" {
				writeJSON(w, http.StatusUnauthorized, okResponse{Error: "unauthorized"})
				return
			}
			_, _ = w.Write([]byte(`{"services":[
				{"unit":"b.service","active_state":"active","sub_state":"running","load_state":"loaded","unit_file_state":"enabled","description":"B"},
				{"unit":"a.service","activeState":"failed","subState":"failed"}
			]}`))
		}
	}))

	_, err := c.Services(context.Background())
	assert.True(t, IsUnauthorized(err))

	require.NoError(t, c.Login(context.Background(), "n", "p"))
	services, err := c.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "b.service", services[0].Unit, "server order is kept")
	assert.Equal(t, StateActive, services[0].ActiveState)
	assert.Equal(t, "enabled", services[0].UnitFileState)
	assert.Equal(t, StateFailed, services[1].ActiveState)
	assert.Equal(t, "failed", services[1].SubState)
}

func TestClient_ServiceAction(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/service/"), "/")
		require.Len(t, parts, 2)
		switch parts[0] {
		case "ok.service":
			writeJSON(w, http.StatusOK, ActionOutcome{OK: true, Code: 0, Stdout: "done"})
		case "broken.service":
			writeJSON(w, http.StatusOK, ActionOutcome{OK: false, Code: 5, Stderr: "Unit failed"})
		case "missing.service":
			writeJSON(w, http.StatusNotFound, okResponse{Error: "unit not found"})
		case "expired.service":
			writeJSON(w, http.StatusUnauthorized, okResponse{Error: "unauthorized"})
		default:
			writeJSON(w, http.StatusInternalServerError, okResponse{Error: "boom"})
		}
	}))

	t.Run("success", func(t *testing.T) {
		out, err := c.ServiceAction(context.Background(), "ok.service", ActionRestart)
		require.NoError(t, err)
		assert.True(t, out.OK)
		assert.Equal(t, "done", out.Stdout)
		assert.Equal(t, "ok.service", out.Unit)
		assert.Equal(t, ActionRestart, out.Action)
	})

	t.Run("non-zero exit is an outcome", func(t *testing.T) {
		out, err := c.ServiceAction(context.Background(), "broken.service", ActionStart)
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.Equal(t, 5, out.Code)
		assert.Equal(t, "start broken.service failed: Unit failed", out.Summary())
	})

	t.Run("refusal is an outcome", func(t *testing.T) {
		out, err := c.ServiceAction(context.Background(), "missing.service", ActionStop)
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.Equal(t, "unit not found", out.Error)
	})

	t.Run("expired session is transport", func(t *testing.T) {
		_, err := c.ServiceAction(context.Background(), "expired.service", ActionStop)
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("server failure is transport", func(t *testing.T) {
		_, err := c.ServiceAction(context.Background(), "other.service", ActionStop)
		assert.True(t, IsTransport(err))
	})

	t.Run("invalid input never reaches the server", func(t *testing.T) {
		_, err := c.ServiceAction(context.Background(), "", ActionStop)
		assert.ErrorIs(t, err, ErrInvalidUnit)
		_, err = c.ServiceAction(context.Background(), "ok.service", Action("reload"))
		assert.ErrorIs(t, err, ErrInvalidAction)
	})
}

func TestClient_OpenStream(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("unit") == "bad" {
			writeJSON(w, http.StatusBadRequest, okResponse{Error: "bad unit"})
			return
		}
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "50", r.URL.Query().Get("lines"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(":ok\n\n"))
	}))

	resp, err := c.OpenStream(context.Background(), "/api/logs", map[string][]string{"unit": {"a.service"}, "lines": {"50"}})
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = c.OpenStream(context.Background(), "/api/logs", map[string][]string{"unit": {"bad"}})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.False(t, te.Temporary())
}

func TestClient_DialWebSocket(t *testing.T) {
	var sawCookie atomic.Bool
	upgrader := websocket.Upgrader{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/"})
			writeJSON(w, http.StatusOK, okResponse{OK: true})
			return
		}
		if _, err := r.Cookie("sid"); err == nil {
			sawCookie.Store(true)
		}
		assert.Equal(t, "/ws/logs/a.service", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	}))

	require.NoError(t, c.Login(context.Background(), "n", "p"))
	conn, err := c.DialWebSocket(context.Background(), c.Endpoints().LogsSocket, "a.service")
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))
	assert.True(t, sawCookie.Load())
}

func TestEndpoints_WithDefaults(t *testing.T) {
	e := Endpoints{Logs: "/custom/logs"}.WithDefaults()
	assert.Equal(t, "/custom/logs", e.Logs)
	assert.Equal(t, DefaultEndpoints().Challenge, e.Challenge)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Restart ")
	require.NoError(t, err)
	assert.Equal(t, ActionRestart, a)

	_, err = ParseAction("enable")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "  abc  ")
	assert.Equal(t, "abc", CorrelationIDFromContext(ctx))

	ctx = WithCorrelationID(context.Background(), "bad\nid")
	assert.Empty(t, CorrelationIDFromContext(ctx))

	assert.NotEqual(t, GenerateCorrelationID(), GenerateCorrelationID())
}
