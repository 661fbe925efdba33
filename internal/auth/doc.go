// Package auth implements the client half of the panel's challenge-response
// login.
//
// The user's long-lived secret never leaves the process. It is reduced to a
// fixed-length DerivedKey (SHA-256), and for every login attempt the server
// issues a single-use nonce. The client proves possession of the key by
// sending HMAC-SHA256(key, nonce) as lowercase hex:
//
//	key, err := auth.Derive(secret)
//	nonce, proof, err := responder.Prove(ctx, key)
//	// submit {nonce, proof}
//
// A nonce is fetched immediately before each proof is computed and is never
// reused, so two logins with the same secret always produce different proofs.
//
// VerifyProof is the server-side counterpart, used by the in-process mock
// server and by tests.
package auth
