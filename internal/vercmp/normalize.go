package vercmp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error variables for normalizer rules
var (
	// ErrRuleMissingName is returned when a rule has no name
	ErrRuleMissingName = errors.New("rule is missing a name")
	// ErrRuleMissingPattern is returned when a rule has no match or find pattern
	ErrRuleMissingPattern = errors.New("rule is missing a match or find pattern")
	// ErrNoRules is returned when a rule set is empty
	ErrNoRules = errors.New("no normalizer rules defined")
)

// Rule is one rewriting rule of the house version style.
// A version is rewritten by the first rule whose Match pattern matches the
// whole (lowercased) version: every Find match is replaced with Replace.
type Rule struct {
	Name    string `toml:"name"`
	Match   string `toml:"match"`
	Find    string `toml:"find"`
	Replace string `toml:"replace"`

	match *regexp.Regexp
	find  *regexp.Regexp
}

// DefaultRules returns the built-in rules of the AOSC version styling manual,
// in the order they are tried.
func DefaultRules() []Rule {
	return []Rule{
		{
			// 0.9.1rc1 -> 0.9.1~rc1, 2.16-rc1 -> 2.16~rc1
			Name:    "release-types",
			Match:   `^\d+(?:\.\d+)+[-_~^]*(?:rc|a|alpha|b|beta)\d*$`,
			Find:    `[-_+~^]*((?:rc|alpha|a|beta|b)\S*)`,
			Replace: `~${1}`,
		},
		{
			// 2023-07-18 -> 2023.07.18
			Name:    "dashes",
			Match:   `^\d+(?:-\d+)+$`,
			Find:    `[-_]`,
			Replace: `.`,
		},
		{
			// 10_2 -> 10.2
			Name:    "underscores",
			Match:   `^\d+(?:_[0-9a-zA-Z]+)+$`,
			Find:    `[-_]`,
			Replace: `.`,
		},
		{
			// 1.2.3-p6 -> 1.2.3p6
			Name:    "letter-notation",
			Match:   `^\d+(?:\.\d+)+[-_~+^][a-z]\d+$`,
			Find:    `[-_~+^]`,
			Replace: ``,
		},
		{
			// 5.3-56 -> 5.3+56
			Name:    "revision",
			Match:   `^\d+(?:\.\d+)+(?:-\d+)+$`,
			Find:    `[-_~+^]`,
			Replace: `+`,
		},
	}
}

// compile validates the rule and compiles its patterns.
func (r *Rule) compile() error {
	if r.Name == "" {
		return ErrRuleMissingName
	}
	if r.Match == "" || r.Find == "" {
		return fmt.Errorf("rule %q: %w", r.Name, ErrRuleMissingPattern)
	}
	var err error
	if r.match, err = regexp.Compile(r.Match); err != nil {
		return fmt.Errorf("rule %q: invalid match pattern: %w", r.Name, err)
	}
	if r.find, err = regexp.Compile(r.Find); err != nil {
		return fmt.Errorf("rule %q: invalid find pattern: %w", r.Name, err)
	}
	return nil
}

// Normalizer rewrites version strings to the house style.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer compiles rules into a Normalizer.
func NewNormalizer(rules []Rule) (*Normalizer, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	compiled := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.compile(); err != nil {
			return nil, err
		}
		compiled[i] = r
	}
	return &Normalizer{rules: compiled}, nil
}

// DefaultNormalizer returns a Normalizer using DefaultRules.
func DefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(DefaultRules())
	if err != nil {
		panic(err)
	}
	return n
}

// LowercaseRule names the rewrite of a version that no rule matched but
// that contained upper case letters.
const LowercaseRule = "lowercase"

// Normalize lowercases v and applies the first matching rule.
// Returns the normalized version and the name of the rule that rewrote it:
// LowercaseRule when only the case changed, "" when v is unchanged.
func (n *Normalizer) Normalize(v string) (string, string) {
	lower := strings.ToLower(v)
	for _, r := range n.rules {
		if r.match.MatchString(lower) {
			return r.find.ReplaceAllString(lower, r.Replace), r.Name
		}
	}
	if lower != v {
		return lower, LowercaseRule
	}
	return v, ""
}

// Rules returns the names of the rules in evaluation order.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}
