// Package trash implements moving files to and from the hidden
// ".orphtrash" holding area, keeping each file's orphdat catalog record
// attached to it across the move.
package trash

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/whatsoevan/orphdat/internal/ftype"
	"github.com/whatsoevan/orphdat/internal/store"
)

// DefaultName is the hidden trash directory name.
const DefaultName = ".orphtrash"

// Manager performs trash/restore/move operations against a Store,
// keeping file-plane operations (os.Rename et al.) separate from
// catalog-plane bookkeeping (store.Move/Append).
type Manager struct {
	store     *store.Store
	trashName string
}

// New returns a Manager using the given catalog store and trash directory
// name (falls back to DefaultName when empty).
func New(s *store.Store, trashName string) *Manager {
	if trashName == "" {
		trashName = DefaultName
	}
	return &Manager{store: s, trashName: trashName}
}

// localTrashDir is the trash directory immediately sibling to path's
// directory.
func (m *Manager) localTrashDir(path string) string {
	return filepath.Join(filepath.Dir(path), m.trashName)
}

// Trash moves path (and any sidecars that exist beside it) into its
// local trash directory, or removes it outright if it is an empty
// directory. Hash records follow via the store. Every destination is
// checked for a collision before anything moves; the renames then run one
// by one, so an error partway through leaves the files already moved in
// the trash.
func (m *Manager) Trash(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return os.Remove(path)
		}
		return fmt.Errorf("trash: %s is a non-empty directory", path)
	}

	sidecars := ftype.SidecarsOf(path)
	targets := make([]string, 0, 1+len(sidecars))
	targets = append(targets, path)
	targets = append(targets, sidecars...)

	trashDir := m.localTrashDir(path)
	if err := os.MkdirAll(trashDir, 0755); err != nil {
		return err
	}

	// Compute every destination up front so a collision on any one file
	// aborts before any file has moved (spec's "sidecars trash as one
	// unit or not at all").
	dests := make([]string, len(targets))
	for i, t := range targets {
		dest := filepath.Join(trashDir, filepath.Base(t))
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("trash: destination already occupied: %s", dest)
		}
		dests[i] = dest
	}

	for i, t := range targets {
		if err := os.Rename(t, dests[i]); err != nil {
			return err
		}
		if err := m.store.Move(t, dests[i]); err != nil {
			return err
		}
	}
	return nil
}

// TrashWithRoot rewrites path's location under root's top-level trash
// directory, collapsing any intermediate trash-marker segments, and
// creates parent directories as needed. Used by collect-trash to hoist
// scattered per-directory trash into one root-level trash.
func (m *Manager) TrashWithRoot(path, root string) error {
	target, err := store.TrashTarget(root, path, m.trashName)
	if err != nil {
		return err
	}
	if target == path {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return m.Move(path, target)
}

// Restore moves a `.orphtrash` directory (or a file within one) back up
// one level: `root/.../.orphtrash/x → root/.../x`.
func (m *Manager) Restore(path string) error {
	dir, rest := splitAtTrashMarker(path, m.trashName)
	if dir == "" {
		return fmt.Errorf("trash: %s is not inside a %s directory", path, m.trashName)
	}
	dest := filepath.Join(dir, rest)
	return m.Move(path, dest)
}

// CollectTrash hoists every scattered `.orphtrash` directory found under
// root into one top-level root/.orphtrash, preserving each file's
// relative structure, then removes the now-empty per-directory trash
// dirs it drained.
func CollectTrash(m *Manager, root string) error {
	rootTrash := filepath.Join(root, m.trashName)

	var nested []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.EqualFold(d.Name(), m.trashName) {
			return nil
		}
		if path != rootTrash {
			nested = append(nested, path)
		}
		return filepath.SkipDir
	})
	if err != nil {
		return err
	}

	for _, trashDir := range nested {
		var files []string
		err := filepath.WalkDir(trashDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := m.TrashWithRoot(f, root); err != nil {
				return err
			}
		}
		if err := os.Remove(trashDir); err != nil && !os.IsNotExist(err) {
			if rmErr := os.RemoveAll(trashDir); rmErr != nil {
				return rmErr
			}
		}
	}
	return nil
}

// splitAtTrashMarker finds the last path component equal to trashName and
// returns the directory that contains it plus the path remainder after
// it. Returns ("", "") if no such component exists.
func splitAtTrashMarker(path, trashName string) (dir, rest string) {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.EqualFold(parts[i], trashName) {
			dir = strings.Join(parts[:i], string(filepath.Separator))
			if filepath.IsAbs(path) && dir == "" {
				dir = string(filepath.Separator)
			}
			rest = filepath.Join(parts[i+1:]...)
			return dir, rest
		}
	}
	return "", ""
}

// Move relocates old to new, creating parent directories as needed. If
// old is a file and new already exists, the move is refused. If old is a
// directory, its children are moved recursively into new (merging into new
// if it already exists); the catalog file itself is never moved, since each
// child's store.Move carries its record across, and old is removed once it
// is empty.
func (m *Manager) Move(old, new string) error {
	info, err := os.Stat(old)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(new), 0755); err != nil {
			return err
		}
		if _, err := os.Stat(new); err == nil {
			return fmt.Errorf("trash: refusing to overwrite existing file %s", new)
		}
		if err := os.Rename(old, new); err != nil {
			return err
		}
		return m.store.Move(old, new)
	}

	if err := os.MkdirAll(new, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(old)
	if err != nil {
		return err
	}
	catalogName := m.store.CatalogName()
	for _, e := range entries {
		// The catalog file is never moved directly: each sibling move
		// above already relocates its own record via store.Move, which
		// merges into the destination's catalog and leaves the source
		// catalog to self-delete once empty (spec's "store files last").
		if e.Name() == catalogName {
			continue
		}
		if err := m.Move(filepath.Join(old, e.Name()), filepath.Join(new, e.Name())); err != nil {
			return err
		}
	}
	remaining, err := os.ReadDir(old)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return os.Remove(old)
	}
	return nil
}
