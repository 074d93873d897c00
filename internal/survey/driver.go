// Package survey runs the update check over a set of packages: parse each
// spec, locate and list its upstream, pick the newest version and rewrite
// the spec when one is found.
package survey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/obentoo/findupdate/internal/abbs"
	"github.com/obentoo/findupdate/internal/common/logger"
	"github.com/obentoo/findupdate/internal/tree"
	"github.com/obentoo/findupdate/internal/upstream"
	"github.com/obentoo/findupdate/internal/vercmp"
)

// DefaultWorkers is the number of packages checked concurrently.
const DefaultWorkers = 8

// noCandidatesNote marks an unchanged outcome whose listing matched nothing.
const noCandidatesNote = "no candidates found"

// Error variables for driver configuration
var (
	// ErrInvalidWorkers is returned when the worker count is not positive
	ErrInvalidWorkers = errors.New("worker count must be positive")
	// ErrNoExtractor is returned when the driver is created without an extractor
	ErrNoExtractor = errors.New("an extractor is required")
)

// Extractor returns the candidate versions of a source, newest first.
type Extractor interface {
	Extract(ctx context.Context, src *upstream.Source) ([]upstream.Candidate, error)
}

// Locator derives the upstream source of a parsed spec.
type Locator interface {
	Locate(spec *abbs.PackageSpec) (*upstream.Source, error)
}

// Driver checks packages for updates.
type Driver struct {
	extractor  Extractor
	locator    Locator
	normalizer *vercmp.Normalizer
	comply     bool
	dryRun     bool
	workers    int
	log        *logger.Logger
	report     *ReportWriter
	progress   io.Writer
	writeFile  func(path string, data []byte) error
}

// Option is a functional option for configuring Driver
type Option func(*Driver) error

// WithWorkers sets how many packages are checked at once
func WithWorkers(n int) Option {
	return func(d *Driver) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidWorkers, n)
		}
		d.workers = n
		return nil
	}
}

// WithDryRun computes updates without writing any file
func WithDryRun(dryRun bool) Option {
	return func(d *Driver) error {
		d.dryRun = dryRun
		return nil
	}
}

// WithComply normalizes upstream versions to the house style before use
func WithComply(comply bool) Option {
	return func(d *Driver) error {
		d.comply = comply
		return nil
	}
}

// WithNormalizer sets the rules used in comply mode
func WithNormalizer(n *vercmp.Normalizer) Option {
	return func(d *Driver) error {
		d.normalizer = n
		return nil
	}
}

// WithLogger sets the logger for per-package progress messages
func WithLogger(l *logger.Logger) Option {
	return func(d *Driver) error {
		d.log = l
		return nil
	}
}

// WithReport appends every outcome to r once the run finishes
func WithReport(r *ReportWriter) Option {
	return func(d *Driver) error {
		d.report = r
		return nil
	}
}

// WithProgressWriter draws a progress bar on w
func WithProgressWriter(w io.Writer) Option {
	return func(d *Driver) error {
		d.progress = w
		return nil
	}
}

// WithLocator replaces the default locator
func WithLocator(l Locator) Option {
	return func(d *Driver) error {
		d.locator = l
		return nil
	}
}

// WithWriteFunc replaces how rewritten specs are stored
func WithWriteFunc(fn func(path string, data []byte) error) Option {
	return func(d *Driver) error {
		d.writeFile = fn
		return nil
	}
}

// NewDriver creates a driver that lists upstreams with extractor.
func NewDriver(extractor Extractor, opts ...Option) (*Driver, error) {
	if extractor == nil {
		return nil, ErrNoExtractor
	}
	d := &Driver{
		extractor: extractor,
		locator:   upstream.NewLocator(upstream.DefaultEndpoints()),
		workers:   DefaultWorkers,
		writeFile: abbs.WriteFile,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply driver option: %w", err)
		}
	}
	if d.log == nil {
		d.log = logger.New(io.Discard)
	}
	if d.comply && d.normalizer == nil {
		d.normalizer = vercmp.DefaultNormalizer()
	}
	return d, nil
}

// Run checks every package and returns the outcomes sorted by package path.
// A failing package never stops the others.
func (d *Driver) Run(ctx context.Context, pkgs []tree.Package) []Outcome {
	outcomes := make([]Outcome, len(pkgs))
	jobs := make(chan int, len(pkgs))
	var wg sync.WaitGroup

	var bar *progressbar.ProgressBar
	if d.progress != nil && len(pkgs) > 0 {
		bar = progressbar.NewOptions(len(pkgs),
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetDescription("checking"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	workers := min(d.workers, len(pkgs))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				pkg := pkgs[idx]
				if bar != nil {
					bar.Describe(pkg.Path)
				}
				outcomes[idx] = d.Check(ctx, pkg)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	for i := range pkgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(d.progress)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Package.Path < outcomes[j].Package.Path
	})

	if d.report != nil {
		if err := d.report.WriteAll(outcomes); err != nil {
			d.log.Error("%v", err)
		}
	}
	return outcomes
}

// Check runs the pipeline for one package. Panics are turned into a failed
// outcome.
func (d *Driver) Check(ctx context.Context, pkg tree.Package) (out Outcome) {
	out = Outcome{Package: pkg}
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("%s: panic: %v\n%s", pkg.Path, r, debug.Stack())
			out.Status = StatusFailed
			out.Err = fmt.Errorf("internal error: %v", r)
		}
		d.logOutcome(out)
	}()

	d.log.Debug("checking %s", pkg.Path)

	spec, err := abbs.ParseFile(pkg.SpecFile)
	if err != nil {
		return failed(out, err)
	}
	spec.Path = pkg.Path
	out.OldVersion = spec.Version

	src, err := d.locator.Locate(spec)
	if err != nil {
		return classify(out, err)
	}
	d.log.Debug("%s: listing %s (%s)", pkg.Path, src.Listing, src.Strategy)

	candidates, err := d.extractor.Extract(ctx, src)
	if err != nil {
		return classify(out, err)
	}
	if len(candidates) == 0 {
		out.Status = StatusUnchanged
		out.Note = noCandidatesNote
		return out
	}

	// In comply mode candidates are compared in their normalized form.
	versions := make([]string, 0, len(candidates))
	rules := make(map[string]string)
	for _, c := range candidates {
		v := c.Version
		if d.comply {
			nv, rule := d.normalizer.Normalize(v)
			if nv != v && rule != "" {
				if _, seen := rules[nv]; !seen {
					rules[nv] = rule
				}
			}
			v = nv
		}
		versions = append(versions, v)
	}

	out.Latest = vercmp.Greatest(versions)
	newest, ok := vercmp.Newest(versions, spec.Version)
	if !ok {
		out.Status = StatusUnchanged
		return out
	}

	return d.update(out, spec, newest, rules[newest])
}

// update rewrites spec to newVersion, verifying the new text still parses.
func (d *Driver) update(out Outcome, spec *abbs.PackageSpec, newVersion, normalizedBy string) Outcome {
	text, err := abbs.Update(spec, newVersion)
	if err != nil {
		return failed(out, err)
	}

	rewritten, err := abbs.Parse(spec.File, text)
	if err != nil {
		return failed(out, fmt.Errorf("rewritten spec does not parse: %w", err))
	}
	if rewritten.Version != newVersion {
		return failed(out, fmt.Errorf("rewritten spec has version %q, want %q", rewritten.Version, newVersion))
	}

	out.NewVersion = newVersion
	out.Warnings = reviewWarnings(spec, rewritten, normalizedBy)

	if d.dryRun {
		out.Status = StatusUpdated
		out.DryRun = true
		return out
	}
	if err := d.writeFile(spec.File, text); err != nil {
		var we *abbs.WriteError
		if !errors.As(err, &we) {
			err = &abbs.WriteError{Path: spec.File, Err: err}
		}
		return failed(out, err)
	}
	out.Status = StatusUpdated
	return out
}

// classify maps a locate or extract error onto an outcome: unsupported
// sources are skipped, everything else fails.
func classify(out Outcome, err error) Outcome {
	var use *upstream.UnsupportedSchemeError
	if errors.As(err, &use) {
		out.Status = StatusSkipped
		out.Err = err
		return out
	}
	return failed(out, err)
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	return out
}

func (d *Driver) logOutcome(o Outcome) {
	switch o.Status {
	case StatusFailed:
		d.log.Warn("%s", o.Line())
	case StatusUpdated:
		d.log.Info("%s", o.Line())
	default:
		d.log.Debug("%s", o.Line())
	}
}
