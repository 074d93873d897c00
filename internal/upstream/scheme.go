// Package upstream finds out which versions of a package its upstream has
// published.
//
// Locate turns a parsed spec into a Source: where to list versions and how
// to recognise them. An Extractor then queries the listing with the Lister
// registered for the source's strategy and returns the candidate versions,
// newest first.
package upstream

import (
	"regexp"
	"sort"
	"strings"

	"github.com/obentoo/findupdate/internal/abbs"
)

// Kind classifies a source.
type Kind int

const (
	// KindUnsupported sources cannot be queried for versions.
	KindUnsupported Kind = iota
	// KindArchive sources are versioned files in a listable directory.
	KindArchive
	// KindTagIndex sources are tag or release indexes.
	KindTagIndex
)

func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindTagIndex:
		return "tag-index"
	default:
		return "unsupported"
	}
}

// Listing strategies
const (
	StrategyDirectory = "directory"
	StrategyGitHub    = "github"
	StrategyGitLab    = "gitlab"
	StrategyGitWeb    = "gitweb"
	StrategyGit       = "git"
	StrategyAnitya    = "anitya"
	StrategyHTML      = "html"
)

// versionClass matches the characters a version may be made of after its
// leading digit.
const versionClass = `[0-9A-Za-z._+~-]*?`

// Source describes where the versions of a package are listed.
type Source struct {
	Kind     Kind
	Strategy string
	// Template is the source URL with abbs.Placeholder where the version goes.
	Template string
	// Reference is Template with the current version filled in.
	Reference string
	// Listing is the URL (or file:// directory) that is queried.
	Listing string
	// Pattern selects entries of the listing; capture group 1 is the version.
	Pattern *regexp.Regexp
	// Options carries strategy-specific settings (repo, stable_only, pattern).
	Options map[string]string
}

// cacheKey identifies the raw listing a source needs, so sources that only
// differ in their Pattern share it.
func (s *Source) cacheKey() string {
	key := s.Strategy + " " + s.Listing
	switch s.Strategy {
	case StrategyHTML:
		key += " " + s.Options["pattern"]
	case StrategyAnitya:
		key += " " + s.Options["stable_only"]
	}
	return key
}

// sourceEntry is one SRCS entry: type::[options::]url.
type sourceEntry struct {
	Type    string
	Options map[string]string
	URL     string
}

// parseSourceEntry splits a SRCS token. A bare URL is a tarball (tbl).
func parseSourceEntry(token string) sourceEntry {
	parts := strings.Split(token, "::")
	switch len(parts) {
	case 1:
		return sourceEntry{Type: "tbl", URL: parts[0]}
	case 2:
		return sourceEntry{Type: parts[0], URL: parts[1]}
	}
	return sourceEntry{
		Type:    parts[0],
		Options: parseOptions(strings.Join(parts[1:len(parts)-1], "::")),
		URL:     parts[len(parts)-1],
	}
}

// parseOptions parses k=v;k=v. Items without '=' are ignored.
func parseOptions(s string) map[string]string {
	opts := make(map[string]string)
	for _, item := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		opts[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return opts
}

// patternFromTemplate turns a name containing abbs.Placeholder into an
// anchored regex whose first group captures the version.
func patternFromTemplate(tmpl string) (*regexp.Regexp, error) {
	parts := strings.Split(tmpl, abbs.Placeholder)
	var b strings.Builder
	b.WriteString("^")
	for i, p := range parts {
		switch {
		case i == 1:
			b.WriteString("([0-9]" + versionClass + ")")
		case i > 1:
			b.WriteString("[0-9]" + versionClass)
		}
		b.WriteString(regexp.QuoteMeta(p))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// archiveExtensions are stripped from archive names to recover a tag.
var archiveExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".tgz", ".zip"}

func trimArchiveExtension(name string) string {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// sortedKeys returns map keys in order, for stable messages.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
