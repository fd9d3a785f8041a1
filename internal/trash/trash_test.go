package trash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/whatsoevan/orphdat/internal/orphctx"
	"github.com/whatsoevan/orphdat/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctx := orphctx.New(orphctx.DefaultConfig())
	return New(store.New(ctx), "")
}

func writeFixture(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTrashMovesFileAndSidecar(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "a.jpg"))
	writeFixture(t, filepath.Join(dir, "a.xmp"))

	m := newTestManager(t)
	if err := m.Trash(filepath.Join(dir, "a.jpg")); err != nil {
		t.Fatalf("trash: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.jpg")); !os.IsNotExist(err) {
		t.Errorf("expected original file gone")
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultName, "a.jpg")); err != nil {
		t.Errorf("expected file in trash: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultName, "a.xmp")); err != nil {
		t.Errorf("expected sidecar in trash: %v", err)
	}
}

func TestTrashEmptyDirectoryRemoves(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m := newTestManager(t)
	if err := m.Trash(empty); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Errorf("expected empty directory removed, not trashed")
	}
}

func TestTrashTargetCollapsesTrashSegments(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "A", DefaultName, "1.jpg"))

	m := newTestManager(t)
	if err := m.TrashWithRoot(filepath.Join(root, "A", DefaultName, "1.jpg"), root); err != nil {
		t.Fatalf("trash with root: %v", err)
	}

	want := filepath.Join(root, DefaultName, "A", "1.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected collapsed trash target %s, got err=%v", want, err)
	}
}

func TestRestoreMovesUpOneLevel(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, DefaultName, "1.jpg"))

	m := newTestManager(t)
	if err := m.Restore(filepath.Join(root, DefaultName, "1.jpg")); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "1.jpg")); err != nil {
		t.Errorf("expected file restored to root: %v", err)
	}
}

func TestTrashWithRootScenario(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "A", DefaultName, "1.jpg"))
	writeFixture(t, filepath.Join(root, "A", DefaultName, "2.jpg"))
	writeFixture(t, filepath.Join(root, "B", DefaultName, "3.jpg"))
	writeFixture(t, filepath.Join(root, "B", "C", DefaultName, "4.jpg"))

	m := newTestManager(t)
	scattered := []string{
		filepath.Join(root, "A", DefaultName, "1.jpg"),
		filepath.Join(root, "A", DefaultName, "2.jpg"),
		filepath.Join(root, "B", DefaultName, "3.jpg"),
		filepath.Join(root, "B", "C", DefaultName, "4.jpg"),
	}
	for _, p := range scattered {
		if err := m.TrashWithRoot(p, root); err != nil {
			t.Fatalf("trash with root %s: %v", p, err)
		}
	}

	wantPaths := []string{
		filepath.Join(root, DefaultName, "A", "1.jpg"),
		filepath.Join(root, DefaultName, "A", "2.jpg"),
		filepath.Join(root, DefaultName, "B", "3.jpg"),
		filepath.Join(root, DefaultName, "B", "C", "4.jpg"),
	}
	for _, p := range wantPaths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestCollectTrashScenario(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "A", DefaultName, "1.jpg"))
	writeFixture(t, filepath.Join(root, "A", DefaultName, "2.jpg"))
	writeFixture(t, filepath.Join(root, "B", DefaultName, "3.jpg"))
	writeFixture(t, filepath.Join(root, "B", "C", DefaultName, "4.jpg"))

	m := newTestManager(t)
	if err := CollectTrash(m, root); err != nil {
		t.Fatalf("collect trash: %v", err)
	}

	wantPaths := []string{
		filepath.Join(root, DefaultName, "A", "1.jpg"),
		filepath.Join(root, DefaultName, "A", "2.jpg"),
		filepath.Join(root, DefaultName, "B", "3.jpg"),
		filepath.Join(root, DefaultName, "B", "C", "4.jpg"),
	}
	for _, p := range wantPaths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	gone := []string{
		filepath.Join(root, "A", DefaultName),
		filepath.Join(root, "B", DefaultName),
		filepath.Join(root, "B", "C", DefaultName),
	}
	for _, p := range gone {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s removed after collection, got err=%v", p, err)
		}
	}
}
