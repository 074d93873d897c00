package abbs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func mustParse(t *testing.T, text string) *PackageSpec {
	t.Helper()
	spec, err := Parse("cat/pkg/spec", []byte(text))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return spec
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		version string
		want    string
	}{
		{
			name:    "bare value and REL line removed",
			text:    "VER=1.2.3\nREL=2\nSRCS=\"tbl::https://x/foo-$VER.tar.xz\"\n",
			version: "1.3.0",
			want:    "VER=1.3.0\nSRCS=\"tbl::https://x/foo-$VER.tar.xz\"\n",
		},
		{
			name:    "double quotes preserved",
			text:    "VER=\"1.2\"\nSRCS=tbl::x\n",
			version: "1.3",
			want:    "VER=\"1.3\"\nSRCS=tbl::x\n",
		},
		{
			name:    "single quotes preserved",
			text:    "VER='1.2'\nSRCS=tbl::x\n",
			version: "1.3",
			want:    "VER='1.3'\nSRCS=tbl::x\n",
		},
		{
			name:    "bare value that needs quoting",
			text:    "VER=1.2\nSRCS=tbl::x\n",
			version: "1.3 beta",
			want:    "VER=\"1.3 beta\"\nSRCS=tbl::x\n",
		},
		{
			name:    "same version keeps REL",
			text:    "VER=1.2\nREL=3\nSRCS=tbl::x\n",
			version: "1.2",
			want:    "VER=1.2\nREL=3\nSRCS=tbl::x\n",
		},
		{
			name:    "REL sharing a line",
			text:    "VER=1.2 REL=3\nSRCS=tbl::x\n",
			version: "1.4",
			want:    "VER=1.4 \nSRCS=tbl::x\n",
		},
		{
			name:    "REL at end of file without newline",
			text:    "VER=1.2\nSRCS=tbl::x\nREL=1",
			version: "2.0",
			want:    "VER=2.0\nSRCS=tbl::x\n",
		},
		{
			name:    "comments and unknown fields untouched",
			text:    "# keep me\nVER=1.0  # pinned\nPKGDES=\"A  tool\"\nREL=1\nSRCS=tbl::x\n",
			version: "1.1",
			want:    "# keep me\nVER=1.1  # pinned\nPKGDES=\"A  tool\"\nSRCS=tbl::x\n",
		},
		{
			name:    "every REL assignment removed",
			text:    "REL=1\nVER=1.0\nREL=2\nSRCS=tbl::x\n",
			version: "1.1",
			want:    "VER=1.1\nSRCS=tbl::x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := mustParse(t, tt.text)
			got, err := Update(spec, tt.version)
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Update() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestUpdateEmptyVersion(t *testing.T) {
	spec := mustParse(t, "VER=1\nSRCS=tbl::x\n")
	if _, err := Update(spec, " "); !errors.Is(err, ErrEmptyVersion) {
		t.Errorf("Update() error = %v, want %v", err, ErrEmptyVersion)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		raw, v, want string
	}{
		{`1.0`, `2.0`, `2.0`},
		{`"1.0"`, `2.0~rc1`, `"2.0~rc1"`},
		{`'1.0'`, `it's`, `"it's"`},
		{`1.0`, `a$b`, `"a\$b"`},
		{`1.0`, `2.0+git20230101`, `2.0+git20230101`},
	}
	for _, tt := range tests {
		if got := formatValue(tt.raw, tt.v); got != tt.want {
			t.Errorf("formatValue(%q, %q) = %q, want %q", tt.raw, tt.v, got, tt.want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec")
	if err := os.WriteFile(path, []byte("VER=1\n"), 0640); err != nil {
		t.Fatalf("failed to write spec: %v", err)
	}

	if err := WriteFile(path, []byte("VER=2\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "VER=2\n" {
		t.Errorf("content = %q, want %q", data, "VER=2\n")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temporary file left behind", len(entries))
	}
}

func TestWriteFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec")
	err := WriteFile(path, []byte("VER=2\n"))
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("WriteFile() error = %v, want *WriteError", err)
	}
	if we.Path != path {
		t.Errorf("WriteError.Path = %q, want %q", we.Path, path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("WriteFile() created a file after failing")
	}
}

// =============================================================================
// Property-Based Tests
// =============================================================================

func genSpecVersion() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
		gen.OneConstOf("", "~rc1", "+git20230718", "p3", "a"),
	).Map(func(values []interface{}) string {
		return strings.Join([]string{
			itoa(values[0].(int)), itoa(values[1].(int)),
		}, ".") + values[2].(string)
	})
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func genSpecText() gopter.Gen {
	return gopter.CombineGens(
		genSpecVersion(),
		gen.OneConstOf("%s", `"%s"`, "'%s'"),
		gen.OneConstOf("", "REL=1\n", "REL=12\n"),
		gen.OneConstOf("", "# comment\n", "PKGDES=\"x  y\"\n"),
	).Map(func(values []interface{}) string {
		quoted := strings.Replace(values[1].(string), "%s", values[0].(string), 1)
		return values[3].(string) + "VER=" + quoted + "\n" + values[2].(string) +
			"SRCS=\"tbl::https://example.org/foo-$VER.tar.gz\"\n"
	})
}

// TestPropertyUpdateRoundTrip tests Property 6: an updated spec re-parses
// with the new version and only the VER and REL bytes differ
func TestPropertyUpdateRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Update then Parse yields the new version", prop.ForAll(
		func(text, version string) bool {
			spec, err := Parse("spec", []byte(text))
			if err != nil {
				return false
			}
			out, err := Update(spec, version)
			if err != nil {
				return false
			}
			updated, err := Parse("spec", out)
			if err != nil || updated.Version != version {
				return false
			}
			if version != spec.Version && updated.HasRevision {
				return false
			}
			return updated.Source == strings.ReplaceAll(spec.Source, spec.Version, version)
		},
		genSpecText(),
		genSpecVersion(),
	))

	properties.Property("bytes outside VER and REL are preserved", prop.ForAll(
		func(text, version string) bool {
			spec, err := Parse("spec", []byte(text))
			if err != nil {
				return false
			}
			out, err := Update(spec, version)
			if err != nil {
				return false
			}
			strip := func(s string) string {
				var kept []string
				for _, line := range strings.Split(s, "\n") {
					if strings.HasPrefix(line, "VER=") || strings.HasPrefix(line, "REL=") {
						continue
					}
					kept = append(kept, line)
				}
				return strings.Join(kept, "\n")
			}
			return strip(text) == strip(string(out))
		},
		genSpecText(),
		genSpecVersion(),
	))

	properties.Property("updating to the current version is the identity", prop.ForAll(
		func(text string) bool {
			spec, err := Parse("spec", []byte(text))
			if err != nil {
				return false
			}
			out, err := Update(spec, spec.Version)
			return err == nil && string(out) == text
		},
		genSpecText(),
	))

	properties.TestingRun(t)
}
