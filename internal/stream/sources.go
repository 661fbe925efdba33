package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Opener starts an HTTP event stream. api.Client satisfies it.
type Opener interface {
	OpenStream(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// WebSocketDialer opens a WebSocket. api.Client satisfies it.
type WebSocketDialer interface {
	DialWebSocket(ctx context.Context, elem ...string) (*websocket.Conn, error)
}

// QueryFunc builds the query for a (re)connection.
type QueryFunc func(resumed bool) url.Values

// DialSSE returns a DialFunc that opens path as a text/event-stream.
func DialSSE(o Opener, path string, query QueryFunc) DialFunc {
	return func(ctx context.Context, resumed bool) (Source, error) {
		var q url.Values
		if query != nil {
			q = query(resumed)
		}
		resp, err := o.OpenStream(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return &sseSource{body: resp.Body, dec: NewDecoder(resp.Body)}, nil
	}
}

type sseSource struct {
	body io.ReadCloser
	dec  *Decoder
}

func (s *sseSource) Next() (Event, error) { return s.dec.Next() }
func (s *sseSource) Close() error         { return s.body.Close() }

// DialWebSocket returns a DialFunc reading text frames from the socket at
// elem. Every frame becomes one Event named name.
func DialWebSocket(d WebSocketDialer, name string, elem ...string) DialFunc {
	return func(ctx context.Context, resumed bool) (Source, error) {
		conn, err := d.DialWebSocket(ctx, elem...)
		if err != nil {
			return nil, err
		}
		ws := &wsSource{conn: conn, name: name}
		// ReadMessage ignores contexts; closing the socket unblocks it.
		ws.stop = context.AfterFunc(ctx, ws.abort)
		return ws, nil
	}
}

type wsSource struct {
	conn *websocket.Conn
	name string
	stop func() bool

	once sync.Once
	err  error
}

func (w *wsSource) Next() (Event, error) {
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return Event{Name: w.name, Data: string(data)}, nil
	}
}

func (w *wsSource) abort() { _ = w.conn.Close() }

func (w *wsSource) Close() error {
	w.once.Do(func() {
		if w.stop != nil {
			w.stop()
		}
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		w.err = w.conn.Close()
	})
	return w.err
}

func deadline() time.Time { return time.Now().Add(time.Second) }
