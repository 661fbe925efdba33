// Package services holds the stateful components that sit between the
// session and the panel server.
//
// # Components
//
// Store: the last known service list, replaced wholesale on every snapshot.
// Snapshots from a manual refresh and from the status stream race; the last
// write wins.
//
// Dispatcher: runs start, stop and restart actions and reports every outcome,
// successful or not. A failed action never touches the streams.
//
// StatusStream: follows the status endpoint and feeds each snapshot into the
// Store and the reporter. It reconnects with backoff and ends for good when
// the server answers 401.
//
// LogStream: follows one unit's journal over SSE or the legacy WebSocket.
// Opening another unit closes the previous subscription first and bumps the
// generation, so lines from the old unit are never shown under the new one.
//
// # Concurrency
//
// Every component is safe for concurrent use. Stream goroutines call the
// reporter directly; Close on either stream blocks until its goroutine has
// returned.
package services
