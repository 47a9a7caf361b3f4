package auth

import (
	"errors"
	"fmt"
)

// Reasons produced by the manager on top of the deep-link reasons.
const (
	ReasonStateMismatch = "state-mismatch"
	ReasonMissingTokens = "missing-tokens"
	ReasonStorage       = "storage-error"
)

var (
	// ErrUnknownLink is returned for deep links not addressed to the auth
	// endpoint. Callers should ignore them.
	ErrUnknownLink = errors.New("deep link is not an auth callback")
	// ErrNetwork wraps transport failures talking to the auth server.
	ErrNetwork = errors.New("network error")
	// ErrParse wraps malformed responses from the auth server.
	ErrParse = errors.New("parse error")
)

// HTTPError is returned when the auth server answers with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("refresh failed: HTTP %d", e.Status)
}

// ValidationError is returned when a callback was rejected. Reason is the
// same string carried by the auth-error event.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "auth callback rejected: " + e.Reason
}
