package main

import (
	"fmt"
	"io"

	"github.com/obentoo/findupdate/internal/common/output"
	"github.com/obentoo/findupdate/internal/survey"
)

// displayResults prints every package that needs attention followed by
// the per-status counts. Unchanged packages only appear in the summary.
func displayResults(w io.Writer, outcomes []survey.Outcome, dryRun bool) {
	fmt.Fprintln(w)
	output.Header.Fprintln(w, "Update Results")
	fmt.Fprintln(w)

	for _, o := range outcomes {
		status := o.Status.String()
		switch o.Status {
		case survey.StatusUpdated:
			fmt.Fprintf(w, "  %s %s: %s → %s\n",
				output.FormatStatus(status), output.FormatPackage(o.Package.Path), o.OldVersion, o.NewVersion)
			for _, warning := range o.Warnings {
				output.Fprintf(w, output.Warning, "      ⚠ %s\n", warning)
			}
		case survey.StatusSkipped, survey.StatusFailed:
			reason := o.Note
			if reason == "" && o.Err != nil {
				reason = o.Err.Error()
			}
			fmt.Fprintf(w, "  %s %s: %s\n",
				output.FormatStatus(status), output.FormatPackage(o.Package.Path), reason)
		}
	}

	s := survey.Summarize(outcomes)
	fmt.Fprintln(w)
	output.Summary(w, s.Updated, s.Unchanged, s.Skipped, s.Failed)
	if dryRun && s.Updated > 0 {
		output.Fprintf(w, output.Info, "Dry run: no spec file was modified\n")
	}
}

// printLatest prints "path version" for every package whose upstream
// listing produced a version.
func printLatest(w io.Writer, outcomes []survey.Outcome) {
	for _, o := range outcomes {
		if o.Latest != "" {
			fmt.Fprintf(w, "%s %s\n", o.Package.Path, o.Latest)
		}
	}
}
