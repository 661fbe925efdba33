package services

import (
	"context"
	"fmt"

	"panelctl/internal/api"
	"panelctl/internal/stream"
)

// StreamState is the lifecycle state of a stream client.
type StreamState string

const (
	StreamClosed StreamState = "Closed"
	StreamOpen   StreamState = "Open"
)

// Transport selects how log lines are streamed.
type Transport string

const (
	// TransportSSE reads the text/event-stream logs endpoint.
	TransportSSE Transport = "sse"
	// TransportWebSocket reads the legacy per-unit WebSocket.
	TransportWebSocket Transport = "websocket"
)

// ParseTransport validates a transport name. An empty name selects SSE.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case "", TransportSSE:
		return TransportSSE, nil
	case TransportWebSocket:
		return TransportWebSocket, nil
	}
	return "", &UnknownTransportError{Name: s}
}

// UnknownTransportError is returned for an unsupported log transport.
type UnknownTransportError struct {
	Name string
}

func (e *UnknownTransportError) Error() string {
	return fmt.Sprintf("unknown log transport %q (want sse or websocket)", e.Name)
}

// ActionClient performs lifecycle actions. api.Client satisfies it.
type ActionClient interface {
	ServiceAction(ctx context.Context, unit string, action api.Action) (api.ActionOutcome, error)
}

// ServiceLister fetches the full service list. api.Client satisfies it.
type ServiceLister interface {
	Services(ctx context.Context) ([]api.ServiceRecord, error)
}

// StreamClient opens the connections stream clients read from. api.Client
// satisfies it.
type StreamClient interface {
	stream.Opener
	stream.WebSocketDialer
	Endpoints() api.Endpoints
}

// StatusClient is what StatusStream needs from the transport.
type StatusClient interface {
	StreamClient
	ServiceLister
}
