package upstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/obentoo/findupdate/internal/abbs"
)

// Endpoints are the base URLs of the hosted services sources may point at.
type Endpoints struct {
	GitHubAPI string
	GitLab    string
	Anitya    string
}

// DefaultEndpoints returns the public service endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GitHubAPI: "https://api.github.com",
		GitLab:    "https://gitlab.com",
		Anitya:    "https://release-monitoring.org",
	}
}

// Locator derives a Source from a parsed spec.
type Locator struct {
	endpoints Endpoints
}

// NewLocator creates a Locator using the given service endpoints.
func NewLocator(endpoints Endpoints) *Locator {
	return &Locator{endpoints: endpoints}
}

// Locate derives a Source using the public endpoints.
func Locate(spec *abbs.PackageSpec) (*Source, error) {
	return NewLocator(DefaultEndpoints()).Locate(spec)
}

// Locate derives where the versions of spec are listed.
//
// A CHKUPDATE directive wins over the source list. Otherwise the first
// SRCS (or SRCTBL) entry decides. Sources that cannot be listed yield an
// *UnsupportedSchemeError; malformed directives yield an *abbs.ParseError.
func (l *Locator) Locate(spec *abbs.PackageSpec) (*Source, error) {
	if spec.CheckUpdate != "" {
		src, err := l.locateCheckUpdate(spec.CheckUpdate)
		if err != nil {
			var use *UnsupportedSchemeError
			if errors.As(err, &use) {
				return nil, err
			}
			line := 0
			if f, ok := spec.Field(abbs.FieldCheckUpdate); ok {
				line = f.Line
			}
			return nil, &abbs.ParseError{Path: spec.File, Line: line, Err: fmt.Errorf("CHKUPDATE: %w", err)}
		}
		return src, nil
	}

	field := abbs.FieldSources
	if _, ok := spec.Field(field); !ok {
		field = abbs.FieldSourceTable
	}
	tmpl, err := spec.Template(field)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(tmpl)
	if len(tokens) == 0 {
		return nil, unsupported("", "%v", ErrNoSource)
	}

	entry := parseSourceEntry(tokens[0])
	switch entry.Type {
	case "tbl", "file":
		return l.locateArchive(entry, spec.Version)
	case "git":
		return l.locateGit(entry)
	case "svn", "bzr", "hg", "fossil":
		return nil, unsupported(entry.Type, "%s checkouts cannot be listed", entry.Type)
	}
	return nil, unsupported(entry.Type, "unknown source type")
}

func (l *Locator) locateCheckUpdate(directive string) (*Source, error) {
	cu, err := ParseCheckUpdate(directive)
	if err != nil {
		return nil, err
	}
	return l.fromCheckUpdate(cu)
}

// locateArchive handles tbl/file entries.
func (l *Locator) locateArchive(entry sourceEntry, version string) (*Source, error) {
	raw := entry.URL
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, unsupported(entry.Type, "source %q is not a URL", raw)
	}
	switch scheme {
	case "http", "https", "file":
	case "ftp":
		return nil, unsupported(scheme, "FTP listings are not supported")
	default:
		return nil, unsupported(scheme, "unknown URL scheme")
	}
	if !strings.Contains(raw, abbs.Placeholder) {
		return nil, unsupported(scheme, "source URL does not reference $VER")
	}

	host, path, _ := strings.Cut(rest, "/")
	if strings.Contains(host, abbs.Placeholder) {
		return nil, unsupported(scheme, "versioned host name")
	}
	if scheme != "file" {
		if src, ok, err := l.locateForge(scheme, host, path); ok || err != nil {
			if src != nil {
				src.Template = raw
				src.Reference = strings.ReplaceAll(raw, abbs.Placeholder, version)
			}
			return src, err
		}
	}

	slash := strings.LastIndexByte(path, '/')
	dir, base := path[:slash+1], path[slash+1:]
	if strings.Contains(dir, abbs.Placeholder) {
		return nil, unsupported(scheme, "versioned directory layout")
	}
	if !strings.Contains(base, abbs.Placeholder) {
		return nil, unsupported(scheme, "file name does not reference $VER")
	}
	pattern, err := patternFromTemplate(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	return &Source{
		Kind:      KindArchive,
		Strategy:  StrategyDirectory,
		Template:  raw,
		Reference: strings.ReplaceAll(raw, abbs.Placeholder, version),
		Listing:   scheme + "://" + host + "/" + dir,
		Pattern:   pattern,
	}, nil
}

// locateForge maps GitHub and GitLab archive or release URLs to the
// project's tag index. ok is false when the URL is not a forge archive.
func (l *Locator) locateForge(scheme, host, path string) (*Source, bool, error) {
	segs := strings.Split(path, "/")

	if host == "github.com" || host == "www.github.com" {
		if len(segs) < 4 {
			return nil, false, nil
		}
		repo := segs[0] + "/" + strings.TrimSuffix(segs[1], ".git")
		var tag string
		switch {
		case segs[2] == "archive" && len(segs) >= 6 && segs[3] == "refs" && segs[4] == "tags":
			tag = trimArchiveExtension(strings.Join(segs[5:], "/"))
		case segs[2] == "archive":
			tag = trimArchiveExtension(strings.Join(segs[3:], "/"))
		case segs[2] == "releases" && len(segs) >= 6 && segs[3] == "download":
			tag = segs[4]
		default:
			return nil, false, nil
		}
		src, err := tagSource(StrategyGitHub, l.githubTagsURL(repo), tag)
		if src != nil {
			src.Options = map[string]string{"repo": repo}
		}
		return src, true, err
	}

	if project, after, ok := strings.Cut(path, "/-/archive/"); ok {
		tag, _, _ := strings.Cut(after, "/")
		instance := scheme + "://" + host
		src, err := tagSource(StrategyGitLab, gitlabTagsURL(instance, project), tag)
		if src != nil {
			src.Options = map[string]string{"repo": project, "instance": instance}
		}
		return src, true, err
	}

	return nil, false, nil
}

// locateGit handles git::commit=tags/<tag>::url entries.
func (l *Locator) locateGit(entry sourceEntry) (*Source, error) {
	commit := entry.Options["commit"]
	tag, ok := strings.CutPrefix(commit, "tags/")
	if !ok {
		return nil, unsupported("git", "source is pinned to a commit or branch, not a tag")
	}
	if strings.Contains(entry.URL, abbs.Placeholder) {
		return nil, unsupported("git", "versioned repository URL")
	}
	return tagSource(StrategyGit, entry.URL, tag)
}

// tagSource builds a tag-index source whose pattern is the tag template.
func tagSource(strategy, listing, tag string) (*Source, error) {
	if !strings.Contains(tag, abbs.Placeholder) {
		return nil, unsupported(strategy, "tag %q does not reference $VER", strings.ReplaceAll(tag, abbs.Placeholder, "$VER"))
	}
	pattern, err := patternFromTemplate(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &Source{
		Kind:     KindTagIndex,
		Strategy: strategy,
		Listing:  listing,
		Pattern:  pattern,
	}, nil
}
