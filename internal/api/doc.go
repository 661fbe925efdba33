// Package api is the HTTP transport between panelctl and a panel server.
//
// It owns the wire types (ServiceRecord, ActionOutcome), the error taxonomy
// shared by every component, and Client, which performs the one-shot calls of
// the protocol and opens the raw connections the stream package builds its
// subscriptions on.
//
// # Session credential
//
// The panel server answers a successful login with a session cookie. Client
// keeps it in a cookie jar it owns exclusively; the jar is attached to every
// subsequent request (including stream connections and WebSocket dials) and
// is emptied by ResetSession when the session gateway logs out. Nothing else
// can read or replace it.
//
// # Endpoints
//
//	GET  /api/auth/challenge            -> {"nonce": "..."}
//	POST /api/auth/login                {"nonce": "...", "hmac": "..."} -> {"ok": true}
//	POST /api/auth/logout
//	GET  /api/services                  -> {"services": [...]}
//	POST /api/service/<unit>/<action>   -> {"ok": true, "code": 0, "stdout": "", "stderr": ""}
//	GET  /api/status/stream             text/event-stream, event "status"
//	GET  /api/logs?unit=<u>&lines=<n>   text/event-stream, event "log"
//	GET  /ws/logs/<unit>                WebSocket, one text frame per line
//
// All paths are configurable through Endpoints.
//
// # Errors
//
//   - ErrCredentialRejected: the server refused the login proof.
//   - *TransportError: any request that failed on the network or returned an
//     unexpected status. IsUnauthorized reports a server-side session expiry.
//   - *MalformedPayloadError: a response or stream event that could not be
//     decoded.
package api
