// Package tree enumerates the packages of an abbs tree and selects the ones
// a run should look at.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SpecFileName is the name of the per-package spec file.
const SpecFileName = "spec"

// maxDepth is the deepest level a spec file may sit at below the root
// (section/pkg/spec).
const maxDepth = 3

// Error variables for tree scanning
var (
	// ErrTreeNotFound is returned when the tree root does not exist or is not a directory
	ErrTreeNotFound = errors.New("tree root not found")
)

// skippedDirs are top-level or section-level directories that never hold packages.
var skippedDirs = map[string]bool{
	"groups": true,
	"assets": true,
}

// Package is a package directory found in the tree.
type Package struct {
	// Name is the package directory's base name.
	Name string
	// Path is the tree-relative path using forward slashes (section/pkg).
	Path string
	// Dir is the package directory on disk.
	Dir string
	// SpecFile is the spec file on disk.
	SpecFile string
}

func (p Package) String() string {
	return p.Path
}

// Walk calls fn for every package below root in lexical order. It stops at
// the first error returned by fn. Unreadable subdirectories are skipped.
func Walk(root string, fn func(Package) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTreeNotFound, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrTreeNotFound, root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		depth := 0
		if rel != "." {
			depth = strings.Count(filepath.ToSlash(rel), "/") + 1
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || skippedDirs[name] || depth >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if d.Name() != SpecFileName || depth < 2 {
			return nil
		}
		dir := filepath.Dir(path)
		relDir := filepath.ToSlash(filepath.Dir(rel))
		return fn(Package{
			Name:     filepath.Base(dir),
			Path:     relDir,
			Dir:      dir,
			SpecFile: path,
		})
	})
}

// Scan returns every package below root sorted by path.
func Scan(root string) ([]Package, error) {
	var pkgs []Package
	err := Walk(root, func(p Package) error {
		pkgs = append(pkgs, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Path < pkgs[j].Path })
	return pkgs, nil
}
