package survey

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ReportWriter appends one line per outcome to a result log. It is safe
// for concurrent use, though the driver writes from a single goroutine.
type ReportWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewReportWriter writes lines to w.
func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: w}
}

// OpenReport opens path for appending, creating it if needed.
func OpenReport(path string) (*ReportWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}
	return &ReportWriter{w: f, closer: f}, nil
}

// Write appends the line for o.
func (r *ReportWriter) Write(o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.w, o.Line()+"\n"); err != nil {
		return fmt.Errorf("failed to write result log: %w", err)
	}
	return nil
}

// WriteAll appends the lines for outcomes in order.
func (r *ReportWriter) WriteAll(outcomes []Outcome) error {
	for _, o := range outcomes {
		if err := r.Write(o); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file, if the writer opened one.
func (r *ReportWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
