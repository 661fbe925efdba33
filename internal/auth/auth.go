package auth

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEnvironment is returned when the digest primitives are not available
	// in this build. No authentication can proceed without them.
	ErrEnvironment = errors.New("auth: SHA-256/HMAC primitives unavailable")
	// ErrEmptySecret is returned when Derive is called with an empty secret.
	ErrEmptySecret = errors.New("auth: secret is empty")
	// ErrEmptyNonce is returned when the server hands out an empty challenge.
	ErrEmptyNonce = errors.New("auth: server returned an empty nonce")
	// ErrInvalidKey is returned when a DerivedKey has the wrong length.
	ErrInvalidKey = errors.New("auth: derived key has invalid length")
)

// KeySize is the length in bytes of a DerivedKey.
const KeySize = sha256.Size

// DerivedKey is the fixed-length digest of the user's secret.
type DerivedKey []byte

// Zero overwrites the key material.
func (k DerivedKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Nonce is a single-use challenge token issued by the server.
type Nonce string

// Proof is the lowercase hex HMAC-SHA256 of a Nonce keyed with a DerivedKey.
type Proof string

// Challenger performs the challenge round trip. api.Client satisfies it.
type Challenger interface {
	Challenge(ctx context.Context) (string, error)
}

// available reports whether the hash primitives are linked into the binary.
var available = func() bool {
	return crypto.SHA256.Available()
}

// Derive turns the secret into a DerivedKey. It is deterministic, keeps no
// copy of secret and never logs it.
func Derive(secret []byte) (DerivedKey, error) {
	if !available() {
		return nil, ErrEnvironment
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	sum := sha256.Sum256(secret)
	key := make(DerivedKey, KeySize)
	copy(key, sum[:])
	for i := range sum {
		sum[i] = 0
	}
	return key, nil
}

// BuildProof computes HMAC-SHA256(key, nonce) as lowercase hex.
func BuildProof(key DerivedKey, nonce Nonce) (Proof, error) {
	if !available() {
		return "", ErrEnvironment
	}
	if len(key) != KeySize {
		return "", ErrInvalidKey
	}
	if nonce == "" {
		return "", ErrEmptyNonce
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	return Proof(hex.EncodeToString(mac.Sum(nil))), nil
}

// VerifyProof checks a proof in constant time. Upper-case hex is accepted.
func VerifyProof(key DerivedKey, nonce Nonce, proof Proof) bool {
	expected, err := BuildProof(key, nonce)
	if err != nil {
		return false
	}
	got := strings.ToLower(string(proof))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// KeyFromHex parses a hex-encoded SHA-256 digest, the form in which panel
// servers store the expected key.
func KeyFromHex(s string) (DerivedKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("auth: decoding key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	return DerivedKey(raw), nil
}

// Responder sequences nonce retrieval and proof construction.
type Responder struct {
	challenger Challenger
}

// NewResponder creates a Responder backed by the given challenger.
func NewResponder(c Challenger) *Responder {
	return &Responder{challenger: c}
}

// FetchNonce performs one challenge round trip.
func (r *Responder) FetchNonce(ctx context.Context) (Nonce, error) {
	raw, err := r.challenger.Challenge(ctx)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", ErrEmptyNonce
	}
	return Nonce(raw), nil
}

// Prove fetches a fresh nonce and binds key to it. Every call performs its
// own round trip; nonces are never cached.
func (r *Responder) Prove(ctx context.Context, key DerivedKey) (Nonce, Proof, error) {
	nonce, err := r.FetchNonce(ctx)
	if err != nil {
		return "", "", fmt.Errorf("fetching challenge: %w", err)
	}
	proof, err := BuildProof(key, nonce)
	if err != nil {
		return "", "", err
	}
	return nonce, proof, nil
}
