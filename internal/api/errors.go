package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors for API operations
var (
	// ErrCredentialRejected is returned when the server refuses a login proof.
	ErrCredentialRejected = errors.New("credential rejected by server")

	// ErrInvalidAction is returned for actions other than start, stop and restart.
	ErrInvalidAction = errors.New("invalid service action")

	// ErrInvalidUnit is returned for unit names that cannot be addressed.
	ErrInvalidUnit = errors.New("invalid unit name")
)

// TransportError reports a request that failed on the network or that the
// server answered with an unexpected status.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %d %s: %v", e.Op, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
		}
		return fmt.Sprintf("%s %s: %d %s", e.Op, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same request may succeed. Network
// failures and 5xx answers are temporary; client errors are not.
func (e *TransportError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// MalformedPayloadError reports a response body or stream event that could
// not be decoded.
type MalformedPayloadError struct {
	Source string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Source, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err carries a 401 from the server, which is
// how an expired session surfaces.
func IsUnauthorized(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusUnauthorized
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is a *MalformedPayloadError.
func IsMalformed(err error) bool {
	var me *MalformedPayloadError
	return errors.As(err, &me)
}
