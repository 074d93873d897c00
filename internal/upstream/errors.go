package upstream

import (
	"errors"
	"fmt"
)

// Error variables for source location and version extraction
var (
	// ErrNoSource is returned when a spec records no usable source
	ErrNoSource = errors.New("no usable source")
	// ErrInvalidCheckUpdate is returned when a CHKUPDATE directive cannot be parsed
	ErrInvalidCheckUpdate = errors.New("invalid CHKUPDATE directive")
	// ErrMissingOption is returned when a CHKUPDATE directive lacks a required key
	ErrMissingOption = errors.New("missing required option")
	// ErrInvalidPattern is returned when a version pattern is not a valid regex
	ErrInvalidPattern = errors.New("invalid version pattern")
	// ErrNoLister is returned when no lister is registered for a strategy
	ErrNoLister = errors.New("no lister for strategy")
	// ErrBodyTooLarge is returned when a listing exceeds maxBodySize
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrUnexpectedStatus is returned for non-success HTTP responses
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrCircuitOpen is returned when the breaker for a host is open
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrMaxRetriesExceeded is returned when all retry attempts have failed
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrRequestTimeout is returned when a request times out
	ErrRequestTimeout = errors.New("request timeout")
)

// UnsupportedSchemeError reports a spec whose source cannot be queried for
// versions. Packages with such sources are skipped, not failed.
type UnsupportedSchemeError struct {
	Scheme string
	Reason string
}

func (e *UnsupportedSchemeError) Error() string {
	if e.Scheme == "" {
		return "unsupported source: " + e.Reason
	}
	return fmt.Sprintf("unsupported source %q: %s", e.Scheme, e.Reason)
}

// FetchError reports a listing that could not be retrieved.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func unsupported(scheme, format string, args ...any) error {
	return &UnsupportedSchemeError{Scheme: scheme, Reason: fmt.Sprintf(format, args...)}
}
