// Package stream turns long-lived server connections into channels of
// events.
//
// A Subscription owns one background goroutine that dials, reads and
// redials its source. Events are delivered in arrival order on a channel;
// Close cancels the goroutine and returns only once the connection is
// released and the channel is closed, so a consumer never observes an event
// from a subscription it has already closed.
//
// Dropped connections are re-established with exponential backoff, for at
// most Options.MaxElapsedTime or, when that is zero, until Close. Errors
// that reconnecting cannot fix (400, 401, 403, 404) end the subscription
// immediately and are available from Err.
//
// Two sources are provided: DialSSE for text/event-stream endpoints, decoded
// by Decoder, and DialWebSocket for sockets that send one text frame per
// event.
package stream
