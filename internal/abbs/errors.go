package abbs

import (
	"errors"
	"fmt"
)

// Error variables for spec parsing and updating
var (
	// ErrMissingVersion is returned when a spec has no VER assignment or an empty one
	ErrMissingVersion = errors.New("missing or empty VER")
	// ErrMissingSource is returned when a spec records neither SRCS, SRCTBL nor CHKUPDATE
	ErrMissingSource = errors.New("no source recorded (SRCS, SRCTBL or CHKUPDATE)")
	// ErrInvalidRevision is returned when REL is not a non-negative integer
	ErrInvalidRevision = errors.New("REL is not a non-negative integer")
	// ErrUnterminatedQuote is returned when a quoted string is not closed
	ErrUnterminatedQuote = errors.New("unterminated quote")
	// ErrUnterminatedArray is returned when NAME=( is not closed
	ErrUnterminatedArray = errors.New("unterminated array")
	// ErrBadSubstitution is returned for parameter expansions that cannot be evaluated
	ErrBadSubstitution = errors.New("bad substitution")
	// ErrNotAssignment is returned for lines that are not assignments, comments or blank
	ErrNotAssignment = errors.New("expected NAME=value assignment")
	// ErrEmptyVersion is returned when asked to write an empty version
	ErrEmptyVersion = errors.New("new version is empty")
)

// ParseError reports a spec file that cannot be parsed.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WriteError reports a spec file that could not be replaced.
// The original file is left untouched when it is returned.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
