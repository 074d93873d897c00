package abbs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSpec = `# upstream moved to codeberg in 2023
VER=1.2.3
REL=2
SRCS="tbl::https://example.org/releases/foo-$VER.tar.xz"
CHKSUMS="sha256::0123456789abcdef"
CHKUPDATE="anitya::id=1234"
`

func TestParse(t *testing.T) {
	spec, err := Parse("/tree/app-utils/foo/spec", []byte(sampleSpec))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if spec.Name != "foo" {
		t.Errorf("Name = %q, want %q", spec.Name, "foo")
	}
	if spec.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", spec.Version, "1.2.3")
	}
	if !spec.HasRevision || spec.Revision != 2 {
		t.Errorf("Revision = (%d, %v), want (2, true)", spec.Revision, spec.HasRevision)
	}
	if spec.Source != "tbl::https://example.org/releases/foo-1.2.3.tar.xz" {
		t.Errorf("Source = %q", spec.Source)
	}
	if spec.CheckUpdate != "anitya::id=1234" {
		t.Errorf("CheckUpdate = %q", spec.CheckUpdate)
	}
	if len(spec.Fields) != 5 {
		t.Fatalf("len(Fields) = %d, want 5", len(spec.Fields))
	}

	ver, _ := spec.Field("VER")
	if ver.Line != 2 {
		t.Errorf("VER line = %d, want 2", ver.Line)
	}
	if got := sampleSpec[ver.ValueStart:ver.ValueEnd]; got != "1.2.3" {
		t.Errorf("VER value span = %q", got)
	}
	srcs, _ := spec.Field("SRCS")
	if !strings.HasPrefix(srcs.Raw, `"tbl::`) {
		t.Errorf("SRCS raw = %q, want quotes preserved", srcs.Raw)
	}
	if got := sampleSpec[srcs.Start:srcs.ValueEnd]; !strings.HasPrefix(got, "SRCS=") {
		t.Errorf("SRCS assignment span = %q", got)
	}
}

func TestParseQuoting(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
		want  string
	}{
		{"bare", "X=abc", "X", "abc"},
		{"single quotes are literal", "X='$VER ok'", "X", "$VER ok"},
		{"double quotes expand", "VER=1\nX=\"v$VER\"", "X", "v1"},
		{"braces", "VER=1\nX=${VER}.0", "X", "1.0"},
		{"escaped dollar", `X="\$VER"`, "X", "$VER"},
		{"backslash in bare word", `X=a\ b`, "X", "a b"},
		{"line continuation", "X=\"a \\\nb\"", "X", "a b"},
		{"multi-line string", "X=\"a\nb\"", "X", "a\nb"},
		{"mixed segments", "VER=2\nX=a'b'\"c$VER\"", "X", "abc2"},
		{"undefined is empty", "X=a${NOPE}b", "X", "ab"},
		{"hash inside word", "X=a#b", "X", "a#b"},
		{"trailing comment", "X=abc # note", "X", "abc"},
		{"array", "X=(a \"b c\"\n  d)", "X", "a b c d"},
		{"empty", "X=", "X", ""},
		{"two assignments on a line", "A=1 X=2", "X", "2"},
		{"last assignment wins", "X=1\nX=2", "X", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &parser{file: "spec", text: tt.text, env: make(map[string]string)}
			if err := p.run(); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			spec := &PackageSpec{Fields: p.fields}
			if got := spec.Get(tt.field); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  error
		wantLine int
	}{
		{"missing VER", "SRCS=tbl::x\n", ErrMissingVersion, 0},
		{"empty VER", "VER=\nSRCS=tbl::x\n", ErrMissingVersion, 1},
		{"bad REL", "VER=1\nREL=abc\nSRCS=tbl::x\n", ErrInvalidRevision, 2},
		{"negative REL", "VER=1\nREL=-1\nSRCS=tbl::x\n", ErrInvalidRevision, 2},
		{"no source", "VER=1\n", ErrMissingSource, 0},
		{"unterminated double quote", "VER=1\nSRCS=\"tbl::x\n", ErrUnterminatedQuote, 2},
		{"unterminated single quote", "VER='1\n", ErrUnterminatedQuote, 1},
		{"unterminated array", "VER=1\nX=(a b\n", ErrUnterminatedArray, 2},
		{"command line", "VER=1\necho hi\n", ErrNotAssignment, 2},
		{"trailing word", "VER=1 foo\n", ErrNotAssignment, 1},
		{"bad substitution", "VER=1\nX=${VER^^}\n", ErrBadSubstitution, 2},
		{"stray character", "VER=1\n)\n", ErrNotAssignment, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("cat/pkg/spec", []byte(tt.text))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error type = %T, want *ParseError", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("ParseError.Line = %d, want %d", pe.Line, tt.wantLine)
			}
			if pe.Path != "cat/pkg/spec" {
				t.Errorf("ParseError.Path = %q", pe.Path)
			}
		})
	}
}

func TestParseSourceFallbacks(t *testing.T) {
	spec, err := Parse("spec", []byte("VER=1\nSRCTBL=\"https://example.org/a-$VER.tgz\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if spec.Source != "https://example.org/a-1.tgz" {
		t.Errorf("Source = %q, want SRCTBL value", spec.Source)
	}
	if spec.HasRevision {
		t.Error("HasRevision = true for a spec without REL")
	}

	spec, err = Parse("spec", []byte("VER=1\nCHKUPDATE=\"github::repo=o/r\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if spec.Source != "" || spec.CheckUpdate != "github::repo=o/r" {
		t.Errorf("Source = %q, CheckUpdate = %q", spec.Source, spec.CheckUpdate)
	}
}

func TestTemplate(t *testing.T) {
	text := `VER=1.2.3
_MAJOR=${VER%.*}
_TARBALL="foo-$VER.tar.gz"
SRCS="tbl::https://example.org/$_MAJOR/$_TARBALL"
OTHER=x
`
	spec, err := Parse("spec", []byte(text))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, err := spec.Template("SRCS")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}
	want := "tbl::https://example.org/1.2/foo-" + Placeholder + ".tar.gz"
	if got != want {
		t.Errorf("Template() = %q, want %q", got, want)
	}
	if spec.Source != "tbl::https://example.org/1.2/foo-1.2.3.tar.gz" {
		t.Errorf("Source = %q", spec.Source)
	}

	if got, _ := spec.Template("MISSING"); got != "" {
		t.Errorf("Template(MISSING) = %q, want empty", got)
	}
}

func TestParseFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "base", "hello")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	file := filepath.Join(dir, "spec")
	if err := os.WriteFile(file, []byte(sampleSpec), 0644); err != nil {
		t.Fatalf("failed to write spec: %v", err)
	}

	spec, err := ParseFile(file)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if spec.Name != "hello" || spec.File != file {
		t.Errorf("ParseFile() Name = %q, File = %q", spec.Name, spec.File)
	}

	_, err = ParseFile(filepath.Join(dir, "missing"))
	var pe *ParseError
	if !errors.As(err, &pe) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ParseFile(missing) error = %v, want *ParseError wrapping ErrNotExist", err)
	}
}
