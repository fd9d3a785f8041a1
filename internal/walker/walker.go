// Package walker implements the filtered, depth-first archive traversal:
// glob expansion, pre-order-filter / post-order-visit directory walking,
// and a bounded worker pool for hashing files discovered along the way.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Visitor receives callbacks during a walk. A nil method falls back to
// the corresponding Default* predicate/no-op.
type Visitor struct {
	// IsDirWanted decides whether to descend into a directory. Returning
	// false prunes the entire subtree.
	IsDirWanted func(full, root, name string) bool
	// IsFileWanted decides whether to visit a file.
	IsFileWanted func(full, root, name string) bool
	// OnFile is invoked for each accepted file.
	OnFile func(full, root string)
	// OnDir is invoked for each accepted directory after all of its
	// children have been visited (post-order).
	OnDir func(full, root string)
}

func (v Visitor) isDirWanted(full, root, name string) bool {
	if v.IsDirWanted != nil {
		return v.IsDirWanted(full, root, name)
	}
	return DefaultDirWanted(full, root, name)
}

func (v Visitor) isFileWanted(full, root, name string) bool {
	if v.IsFileWanted != nil {
		return v.IsFileWanted(full, root, name)
	}
	return DefaultFileWanted(full, root, name)
}

// trashMarkerName is the default name of the hidden trash directory,
// pruned from ordinary traversal.
const trashMarkerName = ".orphtrash"

// ignoreFileName marks a directory as excluded from traversal entirely.
const ignoreFileName = ".orphignore"

// catalogFileName is the default per-directory hash catalog, never
// visited as a regular file.
const catalogFileName = ".orphdat"

// DefaultDirWanted is the default directory predicate: prune
// `.orphtrash` (case-insensitive), `.git`, and any directory containing
// a `.orphignore` marker file.
func DefaultDirWanted(full, root, name string) bool {
	if strings.EqualFold(name, trashMarkerName) {
		return false
	}
	if name == ".git" {
		return false
	}
	if _, err := os.Stat(filepath.Join(full, ignoreFileName)); err == nil {
		return false
	}
	return true
}

// DefaultFileWanted is the default file predicate: skip the catalog
// file itself and AppleDouble `._*` sidecar files.
func DefaultFileWanted(full, root, name string) bool {
	if name == catalogFileName {
		return false
	}
	if strings.HasPrefix(name, "._") {
		return false
	}
	return true
}

// ExpandGlobs expands each pattern (treated as already "quoted", i.e. a
// literal path is passed through even if it contains glob metacharacters
// that match nothing) into a sorted list of matching roots. An empty
// patterns list defaults to the current directory.
func ExpandGlobs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return []string{"."}, nil
	}
	seen := map[string]bool{}
	var roots []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				roots = append(roots, m)
			}
		}
	}
	sort.Strings(roots)
	return roots, nil
}

// WalkRoot traverses a single root in pre-order-filter / post-order-visit
// fashion: a directory's predicate gates descent, its children are
// visited first, and its own callback fires last. Symbolic
// links are never followed. root is passed to every predicate/callback as
// the traversal's origin, for predicates that want to reason about
// ancestry relative to it.
func WalkRoot(root string, v Visitor) error {
	return walkOne(root, root, v)
}

func walkOne(full, root string, v Visitor) error {
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}

	name := filepath.Base(full)
	if !info.IsDir() {
		if v.isFileWanted(full, root, name) {
			if v.OnFile != nil {
				v.OnFile(full, root)
			}
		}
		return nil
	}

	if full != root {
		if !v.isDirWanted(full, root, name) {
			return nil
		}
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	for _, n := range names {
		if err := walkOne(filepath.Join(full, n), root, v); err != nil {
			return err
		}
	}

	if v.OnDir != nil {
		v.OnDir(full, root)
	}
	return nil
}

// WalkPatterns expands patterns via ExpandGlobs and walks each expanded
// root independently, so a predicate sees `root` as the specific glob
// match it came from rather than some shared ancestor.
func WalkPatterns(patterns []string, v Visitor) error {
	roots, err := ExpandGlobs(patterns)
	if err != nil {
		return err
	}
	for _, r := range roots {
		if err := WalkRoot(r, v); err != nil {
			return err
		}
	}
	return nil
}
