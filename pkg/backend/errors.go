package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for dispatch failures.
var (
	// ErrNetwork indicates an I/O-level connection failure.
	ErrNetwork = errors.New("backend: network error")

	// ErrProtocol indicates a non-success HTTP status.
	ErrProtocol = errors.New("backend: protocol error")

	// ErrEmptyReply indicates a successful response with no extractable
	// content.
	ErrEmptyReply = errors.New("backend: empty reply")

	// ErrAudioDecodeFailed indicates the synthesis response body could not
	// be decoded as an audio container.
	ErrAudioDecodeFailed = errors.New("backend: audio decode failed")

	// ErrNoEndpoint indicates a local dispatch with no endpoint configured.
	ErrNoEndpoint = errors.New("backend: endpoint required")
)

// APIError is a non-success HTTP response from a backend.
// It unwraps to ErrProtocol.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend: API error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend: API error %d", e.StatusCode)
}

// Unwrap makes errors.Is(err, ErrProtocol) hold for API errors.
func (e *APIError) Unwrap() error { return ErrProtocol }

// IsServerError reports whether the status is 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
