package upstream

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// optionKeyPattern matches CHKUPDATE option names.
var optionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// CheckUpdate is a parsed CHKUPDATE directive: type::key=value;key=value.
type CheckUpdate struct {
	Type    string
	Options map[string]string
}

// ParseCheckUpdate parses a CHKUPDATE directive.
func ParseCheckUpdate(s string) (*CheckUpdate, error) {
	typ, rest, ok := strings.Cut(strings.TrimSpace(s), "::")
	if !ok || typ == "" {
		return nil, fmt.Errorf("%w: %q: expected type::key=value", ErrInvalidCheckUpdate, s)
	}
	cu := &CheckUpdate{Type: typ, Options: make(map[string]string)}
	for _, item := range strings.Split(rest, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || !optionKeyPattern.MatchString(k) {
			return nil, fmt.Errorf("%w: %q: bad option %q", ErrInvalidCheckUpdate, s, item)
		}
		cu.Options[k] = v
	}
	if len(cu.Options) == 0 {
		return nil, fmt.Errorf("%w: %q: no options", ErrInvalidCheckUpdate, s)
	}
	return cu, nil
}

// String renders the directive back in its canonical form.
func (cu *CheckUpdate) String() string {
	items := make([]string, 0, len(cu.Options))
	for _, k := range sortedKeys(cu.Options) {
		items = append(items, k+"="+cu.Options[k])
	}
	return cu.Type + "::" + strings.Join(items, ";")
}

func (cu *CheckUpdate) require(key string) (string, error) {
	v := strings.TrimSpace(cu.Options[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s checks need %q", ErrMissingOption, cu.Type, key)
	}
	return v, nil
}

// optionalPattern compiles the pattern option if present.
func (cu *CheckUpdate) optionalPattern() (*regexp.Regexp, error) {
	p, ok := cu.Options["pattern"]
	if !ok || p == "" {
		return nil, nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// fromCheckUpdate builds a tag-index source from a CHKUPDATE directive.
func (l *Locator) fromCheckUpdate(cu *CheckUpdate) (*Source, error) {
	src := &Source{Kind: KindTagIndex, Strategy: cu.Type, Options: cu.Options}

	switch cu.Type {
	case StrategyAnitya:
		id, err := cu.require("id")
		if err != nil {
			return nil, err
		}
		if _, err := strconv.Atoi(id); err != nil {
			return nil, fmt.Errorf("%w: anitya id %q is not a number", ErrInvalidCheckUpdate, id)
		}
		if _, ok := cu.Options["stable_only"]; !ok {
			cu.Options["stable_only"] = "true"
		}
		src.Listing = strings.TrimRight(l.endpoints.Anitya, "/") + "/api/project/" + id + "/"
		return src, nil

	case StrategyGitHub:
		repo, err := cu.require("repo")
		if err != nil {
			return nil, err
		}
		src.Listing = l.githubTagsURL(repo)

	case StrategyGitLab:
		repo, err := cu.require("repo")
		if err != nil {
			return nil, err
		}
		instance := strings.TrimSpace(cu.Options["instance"])
		if instance == "" {
			instance = l.endpoints.GitLab
		}
		src.Listing = gitlabTagsURL(instance, repo)

	case StrategyGitWeb:
		u, err := cu.require("url")
		if err != nil {
			return nil, err
		}
		src.Listing = strings.TrimRight(u, "/") + "/tags"

	case StrategyGit:
		u, err := cu.require("url")
		if err != nil {
			return nil, err
		}
		src.Listing = u

	case StrategyHTML:
		u, err := cu.require("url")
		if err != nil {
			return nil, err
		}
		p, err := cu.require("pattern")
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: %q has no capture group", ErrInvalidPattern, p)
		}
		src.Listing = u
		// The html lister applies the pattern to the page itself.
		return src, nil

	default:
		return nil, unsupported(cu.Type, "unknown CHKUPDATE type")
	}

	re, err := cu.optionalPattern()
	if err != nil {
		return nil, err
	}
	src.Pattern = re
	return src, nil
}

func (l *Locator) githubTagsURL(repo string) string {
	return strings.TrimRight(l.endpoints.GitHubAPI, "/") + "/repos/" + strings.Trim(repo, "/") + "/tags"
}

func gitlabTagsURL(instance, project string) string {
	return strings.TrimRight(instance, "/") + "/api/v4/projects/" +
		url.PathEscape(strings.Trim(project, "/")) + "/repository/tags"
}
