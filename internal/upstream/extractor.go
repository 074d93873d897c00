package upstream

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/obentoo/findupdate/internal/vercmp"
)

// Candidate is a version found upstream.
type Candidate struct {
	Version string
	// Entry is the file or tag name the version was extracted from.
	Entry string
}

// Extractor queries listings and turns their entries into candidates.
type Extractor struct {
	listers map[string]Lister
	cache   *ListingCache
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLister replaces the Lister used for a strategy.
func WithLister(strategy string, l Lister) ExtractorOption {
	return func(e *Extractor) {
		e.listers[strategy] = l
	}
}

// WithListingCache sets the cache shared by the extractor's queries.
func WithListingCache(c *ListingCache) ExtractorOption {
	return func(e *Extractor) {
		e.cache = c
	}
}

// NewExtractor creates an Extractor with the built-in listers for every
// strategy, all sharing client.
func NewExtractor(client *RetryableHTTPClient, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		listers: make(map[string]Lister),
		cache:   NewListingCache(),
	}
	for _, strategy := range Strategies() {
		l, err := NewLister(strategy, client)
		if err != nil {
			panic(err)
		}
		e.listers[strategy] = l
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract lists src and returns its candidate versions, newest first.
// An empty result is not an error. Listing failures are *FetchError.
func (e *Extractor) Extract(ctx context.Context, src *Source) ([]Candidate, error) {
	if src.Kind == KindUnsupported {
		return nil, unsupported(src.Strategy, "source kind is unsupported")
	}
	l, ok := e.listers[src.Strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLister, src.Strategy)
	}

	entries, err := e.cache.Do(src.cacheKey(), func() ([]string, error) {
		return l.List(ctx, src)
	})
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: src.Listing, Err: err}
		}
		return nil, err
	}
	return candidates(entries, src.Pattern), nil
}

// candidates applies pattern to entries and returns the distinct versions,
// newest first. Without a capture group the whole entry is the version.
func candidates(entries []string, pattern *regexp.Regexp) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		version := entry
		if pattern != nil {
			m := pattern.FindStringSubmatch(entry)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				version = m[1]
			}
		}
		version = stripVersionPrefix(version)
		if !hasDigit(version) || seen[version] {
			continue
		}
		seen[version] = true
		out = append(out, Candidate{Version: version, Entry: entry})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if cmp := vercmp.Compare(out[i].Version, out[j].Version); cmp != 0 {
			return cmp > 0
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// stripVersionPrefix drops a leading v in tags like v1.2.3.
func stripVersionPrefix(v string) string {
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') && v[1] >= '0' && v[1] <= '9' {
		return v[1:]
	}
	return v
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Versions returns the version strings of cs in order.
func Versions(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Version
	}
	return out
}
