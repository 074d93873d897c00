package abbs

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Placeholder stands in for plain $VER references when a value is expanded
// as a template (see PackageSpec.Template). It cannot occur in spec text.
const Placeholder = "\x00VER\x00"

// expander evaluates the quoting and parameter expansion subset of bash
// that abbs spec files use.
type expander struct {
	lookup func(name string) (string, bool)
	// placeholders maps variable names to the text emitted for plain
	// $NAME / ${NAME} references. Operator expansions always use the value.
	placeholders map[string]string
}

func newExpander(env map[string]string) *expander {
	return &expander{
		lookup: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
	}
}

// expand evaluates a raw word: quotes are removed, escapes resolved and
// parameters expanded. No word splitting or globbing is performed.
func (x *expander) expand(raw string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(raw); {
		switch c := raw[i]; c {
		case '\'':
			end := strings.IndexByte(raw[i+1:], '\'')
			if end < 0 {
				return "", ErrUnterminatedQuote
			}
			b.WriteString(raw[i+1 : i+1+end])
			i += end + 2
		case '"':
			n, err := x.expandDouble(raw[i+1:], &b)
			if err != nil {
				return "", err
			}
			i += n + 1
		case '\\':
			if i+1 < len(raw) {
				if raw[i+1] != '\n' {
					b.WriteByte(raw[i+1])
				}
				i += 2
			} else {
				b.WriteByte(c)
				i++
			}
		case '$':
			s, n, err := x.expandParam(raw[i:])
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			i += n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// expandDouble expands the body of a double-quoted string. s starts right
// after the opening quote; the returned count includes the closing quote.
func (x *expander) expandDouble(s string, b *strings.Builder) (int, error) {
	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '"':
			return i + 1, nil
		case '\\':
			if i+1 < len(s) && strings.IndexByte("$\"\\`\n", s[i+1]) >= 0 {
				if s[i+1] != '\n' {
					b.WriteByte(s[i+1])
				}
				i += 2
				continue
			}
			b.WriteByte(c)
			i++
		case '$':
			v, n, err := x.expandParam(s[i:])
			if err != nil {
				return 0, err
			}
			b.WriteString(v)
			i += n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return 0, ErrUnterminatedQuote
}

// expandParam expands the parameter reference at the start of s (s[0] is
// '$') and reports how many bytes it consumed.
func (x *expander) expandParam(s string) (string, int, error) {
	if len(s) < 2 {
		return "$", 1, nil
	}
	switch c := s[1]; {
	case c == '{':
		end := matchingBrace(s, 1)
		if end < 0 {
			return "", 0, fmt.Errorf("%w: unterminated ${", ErrBadSubstitution)
		}
		v, err := x.evalBraced(s[2:end])
		return v, end + 1, err
	case isNameStart(c):
		n := 1 + nameLen(s[1:])
		return x.ref(s[1:n]), n, nil
	case isDigit(c):
		// Positional parameters are never set in a spec.
		return "", 2, nil
	}
	return "$", 1, nil
}

// matchingBrace returns the index of the '}' closing the '{' at open.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (x *expander) ref(name string) string {
	if ph, ok := x.placeholders[name]; ok {
		return ph
	}
	v, _ := x.lookup(name)
	return v
}

func (x *expander) value(name string) string {
	v, _ := x.lookup(name)
	return v
}

// evalBraced evaluates the inside of ${...}.
func (x *expander) evalBraced(body string) (string, error) {
	if strings.HasPrefix(body, "#") && len(body) > 1 && nameLen(body[1:]) == len(body)-1 {
		return strconv.Itoa(len(x.value(body[1:]))), nil
	}
	n := nameLen(body)
	if n == 0 || !isNameStart(body[0]) {
		return "", fmt.Errorf("%w: ${%s}", ErrBadSubstitution, body)
	}
	name, op := body[:n], body[n:]
	if op == "" {
		return x.ref(name), nil
	}

	value := x.value(name)
	switch {
	case strings.HasPrefix(op, "%%"):
		pat, err := x.expand(op[2:])
		return trimSuffix(value, pat, true), err
	case strings.HasPrefix(op, "%"):
		pat, err := x.expand(op[1:])
		return trimSuffix(value, pat, false), err
	case strings.HasPrefix(op, "##"):
		pat, err := x.expand(op[2:])
		return trimPrefix(value, pat, true), err
	case strings.HasPrefix(op, "#"):
		pat, err := x.expand(op[1:])
		return trimPrefix(value, pat, false), err
	case strings.HasPrefix(op, "//"):
		return x.substitute(value, op[2:], true)
	case strings.HasPrefix(op, "/"):
		return x.substitute(value, op[1:], false)
	case strings.HasPrefix(op, ":-"):
		if value != "" {
			return value, nil
		}
		return x.expand(op[2:])
	case strings.HasPrefix(op, ":"):
		return substring(value, op[1:], body)
	}
	return "", fmt.Errorf("%w: ${%s}", ErrBadSubstitution, body)
}

func (x *expander) substitute(value, arg string, all bool) (string, error) {
	patRaw, repRaw := arg, ""
	if i := unescapedSlash(arg); i >= 0 {
		patRaw, repRaw = arg[:i], arg[i+1:]
	}
	pat, err := x.expand(patRaw)
	if err != nil {
		return "", err
	}
	rep, err := x.expand(repRaw)
	if err != nil {
		return "", err
	}
	return replaceGlob(value, pat, rep, all), nil
}

func unescapedSlash(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '/':
			return i
		}
	}
	return -1
}

// globMatch reports whether s matches the shell pattern pat.
// Malformed patterns match nothing.
func globMatch(pat, s string) bool {
	ok, err := path.Match(pat, s)
	return err == nil && ok
}

func trimSuffix(value, pat string, longest bool) string {
	if longest {
		for i := 0; i <= len(value); i++ {
			if globMatch(pat, value[i:]) {
				return value[:i]
			}
		}
		return value
	}
	for i := len(value); i >= 0; i-- {
		if globMatch(pat, value[i:]) {
			return value[:i]
		}
	}
	return value
}

func trimPrefix(value, pat string, longest bool) string {
	if longest {
		for i := len(value); i >= 0; i-- {
			if globMatch(pat, value[:i]) {
				return value[i:]
			}
		}
		return value
	}
	for i := 0; i <= len(value); i++ {
		if globMatch(pat, value[:i]) {
			return value[i:]
		}
	}
	return value
}

// replaceGlob replaces the longest match of pat at each position, scanning
// left to right; only the first match unless all is set.
func replaceGlob(value, pat, rep string, all bool) string {
	if pat == "" {
		return value
	}
	var b strings.Builder
	i := 0
	for i < len(value) {
		end := -1
		for j := len(value); j > i; j-- {
			if globMatch(pat, value[i:j]) {
				end = j
				break
			}
		}
		if end < 0 {
			b.WriteByte(value[i])
			i++
			continue
		}
		b.WriteString(rep)
		i = end
		if !all {
			break
		}
	}
	b.WriteString(value[i:])
	return b.String()
}

// substring evaluates ${NAME:offset} and ${NAME:offset:length}.
func substring(value, arg, body string) (string, error) {
	offRaw, lenRaw, hasLen := strings.Cut(arg, ":")
	off, err := strconv.Atoi(strings.TrimSpace(offRaw))
	if err != nil {
		return "", fmt.Errorf("%w: ${%s}", ErrBadSubstitution, body)
	}
	if off < 0 {
		off += len(value)
	}
	off = max(0, min(off, len(value)))
	end := len(value)
	if hasLen {
		l, err := strconv.Atoi(strings.TrimSpace(lenRaw))
		if err != nil {
			return "", fmt.Errorf("%w: ${%s}", ErrBadSubstitution, body)
		}
		if l < 0 {
			end = len(value) + l
		} else {
			end = off + l
		}
		end = min(end, len(value))
		if end < off {
			return "", fmt.Errorf("%w: ${%s}: substring expression < 0", ErrBadSubstitution, body)
		}
	}
	return value[off:end], nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// nameLen returns the length of the variable name at the start of s.
func nameLen(s string) int {
	if s == "" || !isNameStart(s[0]) {
		return 0
	}
	n := 1
	for n < len(s) && isNameChar(s[n]) {
		n++
	}
	return n
}
