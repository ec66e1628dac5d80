package devfs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupported indicates the backend or stream cannot perform the operation
	ErrUnsupported = errors.New("operation not supported")

	// ErrUnresolvedCapability indicates the operation needs a length that has
	// not been discovered yet
	ErrUnresolvedCapability = errors.New("length not resolved")

	// ErrNotFound indicates no device claims the path
	ErrNotFound = errors.New("no device claims path")

	// ErrShareViolation indicates another opener holds an exclusive lock
	ErrShareViolation = errors.New("file is locked by another opener")

	// ErrClosed indicates the stream has already been closed
	ErrClosed = errors.New("stream closed")
)

// Common operation names for consistent logging and error reporting
const (
	OpProbe    = "probe"
	OpRead     = "read"
	OpWrite    = "write"
	OpSeek     = "seek"
	OpOpen     = "open"
	OpList     = "list"
	OpRemove   = "remove"
	OpTruncate = "truncate"
)

// PathError wraps a device-level failure with the operation and path involved
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// TransportError reports a network failure or an unexpected response status
// from a remote backend. StatusCode is 0 when no response was received.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d %s",
			e.Op, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports a rejected method as [ErrUnsupported] so callers can treat a
// refused write the same as one refused locally
func (e *TransportError) Is(target error) bool {
	return target == ErrUnsupported && e.StatusCode == http.StatusMethodNotAllowed
}

// NewTransportError builds a [TransportError] for a failed round trip
func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{Op: op, URL: url, Err: err}
}

// NewStatusError builds a [TransportError] for an unexpected response status
func NewStatusError(op, url string, status int) *TransportError {
	return &TransportError{Op: op, URL: url, StatusCode: status}
}
