package tree

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// maxIncludeDepth bounds nested groups/ includes in list files.
const maxIncludeDepth = 32

// groupsPrefix marks a list entry that includes another list from the tree.
const groupsPrefix = "groups/"

// Error variables for package filtering
var (
	// ErrInvalidInclude is returned when the include pattern is not a valid regex
	ErrInvalidInclude = errors.New("invalid include pattern")
	// ErrListTooDeep is returned when groups/ includes nest deeper than maxIncludeDepth
	ErrListTooDeep = errors.New("package list nesting too deep")
)

// Filter selects packages by an include regex and/or a package list.
// When both are set a package must satisfy both.
type Filter struct {
	include *regexp.Regexp
	entries []string
	hasList bool
}

// NewFilter builds a Filter. An empty include matches everything; an empty
// listFile means no list restriction. root is the tree root that groups/
// entries are resolved against.
func NewFilter(include, listFile, root string) (*Filter, error) {
	f := &Filter{}
	if include != "" {
		re, err := regexp.Compile(include)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInclude, err)
		}
		f.include = re
	}
	if listFile != "" {
		entries, err := ReadPackageList(listFile, root)
		if err != nil {
			return nil, err
		}
		f.entries = entries
		f.hasList = true
	}
	return f, nil
}

// Match reports whether p passes the filter.
func (f *Filter) Match(p Package) bool {
	if f.include != nil && !f.include.MatchString(p.Path) {
		return false
	}
	if !f.hasList {
		return true
	}
	for _, entry := range f.entries {
		if entryMatches(entry, p) {
			return true
		}
	}
	return false
}

// Apply returns the packages passing the filter, keeping their order.
func (f *Filter) Apply(pkgs []Package) []Package {
	var selected []Package
	for _, p := range pkgs {
		if f.Match(p) {
			selected = append(selected, p)
		}
	}
	return selected
}

// entryMatches matches a list entry against a package by path, by name or
// as a glob over the path.
func entryMatches(entry string, p Package) bool {
	if entry == p.Path || entry == p.Name {
		return true
	}
	if strings.ContainsAny(entry, "*?[{") {
		ok, err := doublestar.Match(entry, p.Path)
		return err == nil && ok
	}
	return false
}

// ReadPackageList reads a package list file. Lines starting with # and
// blank lines are ignored; a groups/<name> entry includes the list at that
// tree-relative location.
func ReadPackageList(listFile, root string) ([]string, error) {
	return readPackageList(listFile, root, 0)
}

func readPackageList(listFile, root string, depth int) ([]string, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("%w: %s", ErrListTooDeep, listFile)
	}
	file, err := os.Open(listFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read package list: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, groupsPrefix) {
			nested, err := readPackageList(filepath.Join(root, filepath.FromSlash(line)), root, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, nested...)
			continue
		}
		entries = append(entries, strings.TrimSuffix(line, "/"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read package list: %w", err)
	}
	return entries, nil
}
