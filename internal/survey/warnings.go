package survey

import (
	"fmt"
	"strings"

	"github.com/obentoo/findupdate/internal/abbs"
)

// snapshotMarkers flag versions that name a VCS snapshot rather than a release.
var snapshotMarkers = []string{"+git", "+hg", "+svn", "+bzr"}

// reviewWarnings lists what a maintainer should double-check about moving
// before to after, whose rewritten text parsed as updated.
func reviewWarnings(before, after *abbs.PackageSpec, normalizedBy string) []string {
	var warnings []string
	old := before.Version
	if strings.Contains(old, "+") {
		warnings = append(warnings, fmt.Sprintf("compound version number %q", old))
		for _, marker := range snapshotMarkers {
			if strings.Contains(old, marker) {
				warnings = append(warnings, fmt.Sprintf("version indicates a snapshot (%s) is used", marker))
				break
			}
		}
	}
	if hardcodedSources(before, after) {
		warnings = append(warnings, "hardcoded URLs detected")
	}
	if normalizedBy != "" {
		warnings = append(warnings, fmt.Sprintf("version rewritten by style rule %q, review it", normalizedBy))
	}
	return warnings
}

// hardcodedSources reports whether some source entry did not change with
// the version, which means it will keep fetching the old release.
func hardcodedSources(before, after *abbs.PackageSpec) bool {
	for _, f := range before.Fields {
		if !strings.HasPrefix(f.Name, abbs.FieldSources) {
			continue
		}
		newValue, ok := fieldValue(after, f.Name)
		if !ok {
			continue
		}
		oldTokens := strings.Fields(before.Get(f.Name))
		newTokens := strings.Fields(newValue)
		for i := 0; i < len(oldTokens) && i < len(newTokens); i++ {
			if oldTokens[i] == newTokens[i] {
				return true
			}
		}
	}
	return false
}

func fieldValue(s *abbs.PackageSpec, name string) (string, bool) {
	f, ok := s.Field(name)
	if !ok {
		return "", false
	}
	return f.Value, true
}
