package abbs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// edit replaces text[start:end] with repl.
type edit struct {
	start, end int
	repl       string
}

// Update returns the spec text with VER set to newVersion. When the version
// changes every REL assignment is removed, which resets the revision to the
// baseline; a line left blank by the removal is dropped with its newline.
// All other bytes are preserved.
func Update(spec *PackageSpec, newVersion string) ([]byte, error) {
	if strings.TrimSpace(newVersion) == "" {
		return nil, ErrEmptyVersion
	}
	ver, ok := spec.Field(FieldVersion)
	if !ok {
		return nil, &ParseError{Path: spec.File, Err: ErrMissingVersion}
	}

	text := string(spec.Text)
	edits := []edit{{start: ver.ValueStart, end: ver.ValueEnd, repl: formatValue(ver.Raw, newVersion)}}
	if newVersion != spec.Version {
		for _, f := range spec.Fields {
			if f.Name == FieldRevision {
				edits = append(edits, removal(text, f))
			}
		}
	}

	// Apply from the end so earlier offsets stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	for _, e := range edits {
		text = text[:e.start] + e.repl + text[e.end:]
	}
	return []byte(text), nil
}

// removal builds the edit deleting assignment f.
func removal(text string, f *Field) edit {
	lineStart := strings.LastIndexByte(text[:f.Start], '\n') + 1
	lineEnd := len(text)
	if i := strings.IndexByte(text[f.ValueEnd:], '\n'); i >= 0 {
		lineEnd = f.ValueEnd + i
	}
	before := text[lineStart:f.Start]
	after := text[f.ValueEnd:lineEnd]
	if isBlank(before) && isBlank(after) {
		if lineEnd < len(text) {
			lineEnd++
		}
		return edit{start: lineStart, end: lineEnd}
	}
	// Shared line: drop the assignment and the blanks that follow it.
	end := f.ValueEnd
	for end < lineEnd && (text[end] == ' ' || text[end] == '\t') {
		end++
	}
	return edit{start: f.Start, end: end}
}

func isBlank(s string) bool {
	return strings.Trim(s, " \t\r") == ""
}

// formatValue renders v the way the existing raw value is quoted.
func formatValue(raw, v string) string {
	switch {
	case len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"':
		return `"` + escapeDouble(v) + `"`
	case len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' && !strings.Contains(v, "'"):
		return "'" + v + "'"
	case isBareWord(v):
		return v
	}
	return `"` + escapeDouble(v) + `"`
}

func escapeDouble(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if strings.IndexByte("$\"\\`", v[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

// isBareWord reports whether v can be written without quotes.
func isBareWord(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if isNameChar(c) || strings.IndexByte(".+-~:@%,/", c) >= 0 {
			continue
		}
		return false
	}
	return v != ""
}

// WriteFile atomically replaces path with data: the bytes go to a temporary
// file in the same directory which is synced, given the original mode and
// renamed over path. On failure the original file is left untouched.
func WriteFile(path string, data []byte) (err error) {
	info, err := os.Stat(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}
