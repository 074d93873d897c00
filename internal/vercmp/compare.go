// Package vercmp compares upstream version strings and rewrites them to the
// house version style.
package vercmp

import (
	"sort"
	"strings"
)

// token is a maximal run of digits or of letters inside a version string.
type token struct {
	text    string
	numeric bool
}

// tokenize breaks a version into digit and letter runs. Any other byte
// only ends the current run, so "1.0.1" and "1.0rc1" both compare run by
// run and "2023-07-18" equals "2023.07.18".
// "1.2.3a" -> ["1", "2", "3", "a"]
func tokenize(v string) []token {
	var tokens []token
	start := -1
	for i := 0; i <= len(v); i++ {
		if start >= 0 && i < len(v) && isAlnum(v[i]) && isDigit(v[i]) == isDigit(v[start]) {
			continue
		}
		if start >= 0 {
			tokens = append(tokens, token{text: v[start:i], numeric: isDigit(v[start])})
			start = -1
		}
		if i < len(v) && isAlnum(v[i]) {
			start = i
		}
	}
	return tokens
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// compareNumeric compares two digit runs by value without converting them,
// so runs longer than an int64 still order correctly.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareTokens(a, b token) int {
	switch {
	case a.numeric && b.numeric:
		return compareNumeric(a.text, b.text)
	case a.numeric:
		// Numeric runs sort after non-numeric runs at the same position.
		return 1
	case b.numeric:
		return -1
	default:
		return strings.Compare(a.text, b.text)
	}
}

// Compare compares two version strings.
// Returns: -1 if a is older than b, 0 if they are equal, 1 if a is newer.
//
// Leading zeros in numeric runs are insignificant, so "2.0" equals "2.00"
// and "1.02" equals "1.2". Separators are not compared. When one version is
// a token prefix of the other, the longer one is newer, so "1.0rc1" sorts
// after "1.0".
func Compare(a, b string) int {
	ta, tb := tokenize(a), tokenize(b)
	n := min(len(ta), len(tb))
	for i := 0; i < n; i++ {
		if cmp := compareTokens(ta[i], tb[i]); cmp != 0 {
			return cmp
		}
	}
	switch {
	case len(ta) < len(tb):
		return -1
	case len(ta) > len(tb):
		return 1
	}
	return 0
}

// Newer reports whether candidate is strictly newer than current.
func Newer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}

// Greatest returns the greatest version in vs, or "" for an empty slice.
// Among equal versions the first one wins.
func Greatest(vs []string) string {
	best := ""
	for i, v := range vs {
		if i == 0 || Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

// Newest returns the greatest version in vs that is strictly newer than
// current, and false if there is none.
func Newest(vs []string, current string) (string, bool) {
	best := ""
	found := false
	for _, v := range vs {
		if !Newer(v, current) {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

// SortDescending sorts versions newest first. Versions that compare equal
// are ordered by their text so the result is deterministic.
func SortDescending(vs []string) {
	sort.SliceStable(vs, func(i, j int) bool {
		if cmp := Compare(vs[i], vs[j]); cmp != 0 {
			return cmp > 0
		}
		return vs[i] < vs[j]
	})
}
