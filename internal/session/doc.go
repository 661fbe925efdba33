// Package session owns the authenticated session with a panel server.
//
// A Gateway runs the challenge-response login, then hands out the
// dispatcher and the two stream clients only while the session is live.
// Logout, whether requested or caused by the server forgetting the session,
// closes both streams before the state becomes LoggedOut.
package session
