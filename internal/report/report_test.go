package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleSummary() Summary {
	return Summary{
		Verb:      "check-hash",
		Root:      "/archive",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  2 * time.Second,
		Actions: []Action{
			{Path: "/archive/a.jpg", Kind: ActionHashed, Size: 100},
			{Path: "/archive/b.jpg", Kind: ActionTrashed, Detail: "duplicate of a.jpg", Size: 200},
			{Path: "/archive/c.jpg", Kind: ActionError, Detail: "permission denied"},
		},
	}
}

func TestWriteProducesHTMLWithExpectedCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")
	if err := Write(path, sampleSummary()); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "1 hashed") || !strings.Contains(content, "1 trashed") || !strings.Contains(content, "1 errors") {
		t.Errorf("expected badge counts in report, got:\n%s", content)
	}
	if !strings.Contains(content, "a.jpg") || !strings.Contains(content, "permission denied") {
		t.Errorf("expected action rows in report")
	}
}

func TestWriteJSONIncludesVerbField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	if err := WriteJSON(path, sampleSummary()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"verb": "check-hash"`) {
		t.Errorf("expected verb field in JSON, got:\n%s", string(data))
	}
}

func TestRelativePathStripsRoot(t *testing.T) {
	got := RelativePath("/archive/2024/a.jpg", "/archive")
	want := filepath.Join("2024", "a.jpg")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
