package survey

import (
	"fmt"
	"strings"

	"github.com/obentoo/findupdate/internal/tree"
)

// Status is the terminal state of one package in a run.
type Status int

const (
	// StatusUnchanged means no strictly newer upstream version was found.
	StatusUnchanged Status = iota
	// StatusUpdated means the spec was (or, in dry-run, would be) rewritten.
	StatusUpdated
	// StatusSkipped means the package's source cannot be listed.
	StatusSkipped
	// StatusFailed means the package's pipeline hit an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Outcome is the result of checking one package.
type Outcome struct {
	Package tree.Package
	Status  Status
	// OldVersion is the version recorded in the spec, when it could be read.
	OldVersion string
	// NewVersion is the version the spec was moved to (StatusUpdated only).
	NewVersion string
	// Latest is the greatest version seen upstream, newer or not.
	Latest string
	// Note is extra context for unchanged and skipped outcomes.
	Note string
	// Err is set for failed and skipped outcomes.
	Err error
	// Warnings flag updates that need a human look.
	Warnings []string
	// DryRun is set when an update was computed but not written.
	DryRun bool
}

// Line formats o as one result log line.
func (o Outcome) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", o.Package.Path, o.Status)
	switch o.Status {
	case StatusUpdated:
		fmt.Fprintf(&b, " %s -> %s", o.OldVersion, o.NewVersion)
		if o.DryRun {
			b.WriteString(" (dry-run)")
		}
		if len(o.Warnings) > 0 {
			b.WriteString("; warnings: " + strings.Join(o.Warnings, "; "))
		}
	case StatusUnchanged:
		fmt.Fprintf(&b, " %s", o.OldVersion)
		if o.Note != "" {
			fmt.Fprintf(&b, " (%s)", o.Note)
		}
	case StatusSkipped:
		fmt.Fprintf(&b, " (%s)", o.reason())
	case StatusFailed:
		fmt.Fprintf(&b, " (%s)", o.reason())
	}
	return b.String()
}

func (o Outcome) reason() string {
	if o.Note != "" {
		return o.Note
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return "unknown"
}

// Summary counts outcomes per status.
type Summary struct {
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Total is the number of outcomes counted.
func (s Summary) Total() int {
	return s.Updated + s.Unchanged + s.Skipped + s.Failed
}

// Summarize counts outcomes per status.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusUpdated:
			s.Updated++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
