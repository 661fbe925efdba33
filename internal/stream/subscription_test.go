package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelctl/internal/api"
)

func fastOptions(name string) Options {
	return Options{
		Name:            name,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		Buffer:          16,
	}
}

func newClient(t *testing.T, h http.Handler) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.NewClient(api.Options{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed early: %v", sub.Err())
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribe_SSE(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ":ok\n\n")
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "event: log\ndata: {\"line\":\"l%d\"}\n\n", i)
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	sub := Subscribe(context.Background(), DialSSE(c, "/api/logs", nil), fastOptions("LogStream"))
	defer sub.Close()

	for i := 0; i < 3; i++ {
		ev := receive(t, sub)
		assert.Equal(t, "log", ev.Name)
		assert.Equal(t, fmt.Sprintf(`{"line":"l%d"}`, i), ev.Data)
	}
}

func TestSubscribe_CloseReleasesConnection(t *testing.T) {
	var open atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		open.Add(1)
		defer open.Add(-1)
		fmt.Fprint(w, "data: hello\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	sub := Subscribe(context.Background(), DialSSE(c, "/s", nil), fastOptions("StatusStream"))
	receive(t, sub)
	assert.Equal(t, int32(1), open.Load())

	sub.Close()
	sub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok, "events channel must be closed after Close")
	assert.NoError(t, sub.Err())
	assert.Eventually(t, func() bool { return open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribe_ReconnectsAfterDrop(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []url.Values
	)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query())
		n := len(queries)
		mu.Unlock()
		fmt.Fprintf(w, "event: log\ndata: conn%d\n\n", n)
		w.(http.Flusher).Flush()
		if n == 1 {
			// Drop the first connection.
			return
		}
		<-r.Context().Done()
	}))

	query := func(resumed bool) url.Values {
		if resumed {
			return url.Values{"lines": {"0"}}
		}
		return url.Values{"lines": {"200"}}
	}
	sub := Subscribe(context.Background(), DialSSE(c, "/api/logs", query), fastOptions("LogStream"))
	defer sub.Close()

	assert.Equal(t, "conn1", receive(t, sub).Data)
	assert.Equal(t, "conn2", receive(t, sub).Data)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, queries, 2)
	assert.Equal(t, "200", queries[0].Get("lines"))
	assert.Equal(t, "0", queries[1].Get("lines"), "reconnect must not replay history")
}

func TestSubscribe_RetriesTransientDialFailures(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "data: up\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	sub := Subscribe(context.Background(), DialSSE(c, "/s", nil), fastOptions("StatusStream"))
	defer sub.Close()

	assert.Equal(t, "up", receive(t, sub).Data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubscribe_PermanentFailureEnds(t *testing.T) {
	tests := []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound}
	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))

			sub := Subscribe(context.Background(), DialSSE(c, "/s", nil), fastOptions("StatusStream"))
			select {
			case <-sub.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("subscription did not end")
			}
			var te *api.TransportError
			require.ErrorAs(t, sub.Err(), &te)
			assert.Equal(t, status, te.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
			sub.Close()
		})
	}
}

func TestSubscribe_GivesUpAfterMaxElapsed(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	opts := fastOptions("StatusStream")
	opts.MaxElapsedTime = 100 * time.Millisecond

	sub := Subscribe(context.Background(), DialSSE(c, "/s", nil), opts)
	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not give up")
	}
	assert.True(t, api.IsTransport(sub.Err()))
}

func TestSubscribe_ZeroMaxElapsedRetriesUntilClosed(t *testing.T) {
	var up atomic.Bool
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: status\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	opts := fastOptions("StatusStream")
	opts.MaxElapsedTime = 0

	sub := Subscribe(context.Background(), DialSSE(c, "/s", nil), opts)
	defer sub.Close()

	// Several times longer than a bounded subscription would last.
	select {
	case <-sub.Done():
		t.Fatalf("subscription gave up during the outage: %v", sub.Err())
	case <-time.After(500 * time.Millisecond):
	}

	up.Store(true)
	assert.Equal(t, "status", receive(t, sub).Name)
}

func TestSubscribe_ParentContextCancel(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ":ok\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	sub := Subscribe(ctx, DialSSE(c, "/s", nil), fastOptions("StatusStream"))
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.NoError(t, sub.Err())
}

func TestSubscribe_WebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closed := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/logs/a.service", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("line one"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("line two"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}))

	sub := Subscribe(context.Background(), DialWebSocket(c, "log", "/ws/logs", "a.service"), fastOptions("LogStream"))
	assert.Equal(t, Event{Name: "log", Data: "line one"}, receive(t, sub))
	assert.Equal(t, Event{Name: "log", Data: "line two"}, receive(t, sub))

	sub.Close()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe the socket closing")
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&api.TransportError{StatusCode: http.StatusUnauthorized}))
	assert.False(t, IsPermanent(&api.TransportError{StatusCode: http.StatusBadGateway}))
	assert.False(t, IsPermanent(&api.TransportError{}))
	assert.False(t, IsPermanent(fmt.Errorf("plain")))
}
