// Package abbs reads and rewrites the package spec files of an abbs tree.
//
// A spec file is a small bash script made only of variable assignments:
//
//	VER=1.2.3
//	REL=2
//	SRCS="tbl::https://example.org/foo-$VER.tar.xz"
//	CHKSUMS="sha256::..."
//
// Parse keeps the position of every assignment so that Update can patch a
// single value without disturbing anything else in the file.
package abbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Well-known spec fields
const (
	FieldVersion     = "VER"
	FieldRevision    = "REL"
	FieldSources     = "SRCS"
	FieldSourceTable = "SRCTBL"
	FieldCheckUpdate = "CHKUPDATE"
)

// Field is one NAME=value assignment.
type Field struct {
	Name string
	// Raw is the value exactly as written, quotes included.
	Raw string
	// Value is Raw after quote removal and expansion.
	Value string
	// Start is the byte offset of the name; ValueStart and ValueEnd
	// delimit Raw in the file.
	Start      int
	ValueStart int
	ValueEnd   int
	Line       int

	words []string // raw array elements, nil for scalars
	index int
}

// IsArray reports whether the field was assigned with NAME=(...).
func (f *Field) IsArray() bool {
	return f.words != nil
}

// PackageSpec is a parsed spec file.
type PackageSpec struct {
	// Name is the base name of the package directory.
	Name string
	// Path is the tree-relative package path (section/pkg). It is set by
	// whoever knows the tree root.
	Path string
	// File is the spec file location on disk.
	File string

	Version     string
	Revision    int
	HasRevision bool
	// Source is the expanded SRCS (or legacy SRCTBL) value.
	Source string
	// CheckUpdate is the expanded CHKUPDATE directive, if any.
	CheckUpdate string

	Text   []byte
	Fields []*Field
}

// ParseFile reads and parses the spec file at file.
func ParseFile(file string) (*PackageSpec, error) {
	text, err := os.ReadFile(file)
	if err != nil {
		return nil, &ParseError{Path: file, Err: err}
	}
	return Parse(file, text)
}

// Parse parses spec text. file is used for the package name and errors.
func Parse(file string, text []byte) (*PackageSpec, error) {
	p := &parser{file: file, text: string(text), env: make(map[string]string)}
	if err := p.run(); err != nil {
		return nil, err
	}

	spec := &PackageSpec{
		Name:   filepath.Base(filepath.Dir(file)),
		File:   file,
		Text:   text,
		Fields: p.fields,
	}

	ver, ok := spec.Field(FieldVersion)
	if !ok || strings.TrimSpace(ver.Value) == "" {
		line := 0
		if ok {
			line = ver.Line
		}
		return nil, &ParseError{Path: file, Line: line, Err: ErrMissingVersion}
	}
	spec.Version = strings.TrimSpace(ver.Value)

	if rel, ok := spec.Field(FieldRevision); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rel.Value))
		if err != nil || n < 0 {
			return nil, &ParseError{Path: file, Line: rel.Line, Err: fmt.Errorf("%w: %q", ErrInvalidRevision, rel.Value)}
		}
		spec.Revision = n
		spec.HasRevision = true
	}

	spec.Source = spec.Get(FieldSources)
	if spec.Source == "" {
		spec.Source = spec.Get(FieldSourceTable)
	}
	spec.CheckUpdate = strings.TrimSpace(spec.Get(FieldCheckUpdate))
	if strings.TrimSpace(spec.Source) == "" && spec.CheckUpdate == "" {
		return nil, &ParseError{Path: file, Err: ErrMissingSource}
	}

	return spec, nil
}

// Field returns the effective (last) assignment of name.
func (s *PackageSpec) Field(name string) (*Field, bool) {
	for i := len(s.Fields) - 1; i >= 0; i-- {
		if s.Fields[i].Name == name {
			return s.Fields[i], true
		}
	}
	return nil, false
}

// Get returns the expanded value of name, or "" if it is not assigned.
func (s *PackageSpec) Get(name string) string {
	if f, ok := s.Field(name); ok {
		return f.Value
	}
	return ""
}

// Template re-expands the effective assignment of name with every plain
// $VER / ${VER} reference replaced by Placeholder. Plain references to
// variables that were themselves built from $VER carry the placeholder too.
// Operator expansions such as ${VER%.*} still see the real values.
func (s *PackageSpec) Template(name string) (string, error) {
	f, ok := s.Field(name)
	if !ok {
		return "", nil
	}
	env := make(map[string]string, f.index)
	x := newExpander(env)
	x.placeholders = map[string]string{FieldVersion: Placeholder}
	for _, prev := range s.Fields[:f.index] {
		t, err := expandField(x, prev)
		env[prev.Name] = prev.Value
		if prev.Name == FieldVersion {
			continue
		}
		if err == nil && t != prev.Value {
			x.placeholders[prev.Name] = t
		} else {
			delete(x.placeholders, prev.Name)
		}
	}
	v, err := expandField(x, f)
	if err != nil {
		return "", &ParseError{Path: s.File, Line: f.Line, Err: err}
	}
	return v, nil
}

func expandField(x *expander, f *Field) (string, error) {
	if f.words == nil {
		return x.expand(f.Raw)
	}
	values := make([]string, 0, len(f.words))
	for _, w := range f.words {
		v, err := x.expand(w)
		if err != nil {
			return "", err
		}
		values = append(values, v)
	}
	return strings.Join(values, " "), nil
}

// parser splits spec text into assignments and evaluates them in order.
type parser struct {
	file   string
	text   string
	pos    int
	env    map[string]string
	fields []*Field
}

func (p *parser) errorAt(offset int, err error) error {
	return &ParseError{Path: p.file, Line: p.lineAt(offset), Err: err}
}

func (p *parser) lineAt(offset int) int {
	return 1 + strings.Count(p.text[:offset], "\n")
}

func (p *parser) run() error {
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';':
			p.pos++
		case c == '#':
			p.skipComment()
		case isNameStart(c):
			if err := p.assignment(); err != nil {
				return err
			}
		default:
			return p.errorAt(p.pos, ErrNotAssignment)
		}
	}
	return nil
}

func (p *parser) skipComment() {
	if i := strings.IndexByte(p.text[p.pos:], '\n'); i >= 0 {
		p.pos += i
		return
	}
	p.pos = len(p.text)
}

func (p *parser) assignment() error {
	start := p.pos
	p.pos += nameLen(p.text[p.pos:])
	name := p.text[start:p.pos]
	if p.pos >= len(p.text) || p.text[p.pos] != '=' {
		return p.errorAt(start, fmt.Errorf("%w: %q", ErrNotAssignment, strings.TrimSpace(p.restOfLine(start))))
	}
	p.pos++

	f := &Field{Name: name, Start: start, ValueStart: p.pos, Line: p.lineAt(start), index: len(p.fields)}
	if p.pos < len(p.text) && p.text[p.pos] == '(' {
		words, err := p.scanArray()
		if err != nil {
			return err
		}
		f.words = words
	} else if err := p.scanWord(false); err != nil {
		return err
	}
	f.ValueEnd = p.pos
	f.Raw = p.text[f.ValueStart:f.ValueEnd]

	// Only blanks, a comment, a separator or another assignment may follow.
	for p.pos < len(p.text) && (p.text[p.pos] == ' ' || p.text[p.pos] == '\t' || p.text[p.pos] == '\r') {
		p.pos++
	}
	if p.pos < len(p.text) {
		switch c := p.text[p.pos]; {
		case c == '\n' || c == ';' || c == '#':
		case isNameStart(c) && p.pos > f.ValueEnd:
		default:
			return p.errorAt(p.pos, fmt.Errorf("%w: unexpected %q after %s", ErrNotAssignment, p.restOfLine(p.pos), name))
		}
	}

	value, err := expandField(newExpander(p.env), f)
	if err != nil {
		return p.errorAt(start, fmt.Errorf("%s: %w", name, err))
	}
	f.Value = value
	p.env[name] = value
	p.fields = append(p.fields, f)
	return nil
}

func (p *parser) restOfLine(offset int) string {
	rest := p.text[offset:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// scanWord advances over one shell word. Inside an array a ')' also ends
// the word.
func (p *parser) scanWord(inArray bool) error {
	for p.pos < len(p.text) {
		switch c := p.text[p.pos]; c {
		case ' ', '\t', '\r', '\n', ';':
			return nil
		case ')':
			if inArray {
				return nil
			}
			p.pos++
		case '\'':
			end := strings.IndexByte(p.text[p.pos+1:], '\'')
			if end < 0 {
				return p.errorAt(p.pos, ErrUnterminatedQuote)
			}
			p.pos += end + 2
		case '"':
			if err := p.skipDouble(); err != nil {
				return err
			}
		case '\\':
			p.pos = min(p.pos+2, len(p.text))
		case '$':
			if p.pos+1 < len(p.text) && p.text[p.pos+1] == '{' {
				end := matchingBrace(p.text, p.pos+1)
				if end < 0 {
					return p.errorAt(p.pos, fmt.Errorf("%w: unterminated ${", ErrBadSubstitution))
				}
				p.pos = end + 1
				continue
			}
			p.pos++
		default:
			p.pos++
		}
	}
	return nil
}

func (p *parser) skipDouble() error {
	open := p.pos
	p.pos++
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			p.pos++
			return nil
		default:
			p.pos++
		}
	}
	return p.errorAt(open, ErrUnterminatedQuote)
}

// scanArray advances over NAME=( ... ) and returns the raw elements.
func (p *parser) scanArray() ([]string, error) {
	open := p.pos
	p.pos++
	words := []string{}
	for p.pos < len(p.text) {
		switch c := p.text[p.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == ')':
			p.pos++
			return words, nil
		case c == '#':
			p.skipComment()
		default:
			start := p.pos
			if err := p.scanWord(true); err != nil {
				return nil, err
			}
			if p.pos == start {
				// A stray ';' inside the parentheses.
				p.pos++
				continue
			}
			words = append(words, p.text[start:p.pos])
		}
	}
	return nil, p.errorAt(open, ErrUnterminatedArray)
}
