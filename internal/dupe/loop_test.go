package dupe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/whatsoevan/orphdat/internal/metadata"
	"github.com/whatsoevan/orphdat/internal/orphctx"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/trash"
	"github.com/whatsoevan/orphdat/internal/view"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := store.New(orphctx.New(orphctx.DefaultConfig()))
	return &Session{
		Trash:  trash.New(s, ""),
		Store:  s,
		Logger: view.NewLogger(orphctx.DefaultConfig()),
	}
}

// scripted returns a readLine func that replays lines in order, then
// answers "q" forever once exhausted, so a test's final assertion never
// hangs a forgotten command loop.
func scripted(lines ...string) func(string) string {
	i := 0
	return func(string) string {
		if i >= len(lines) {
			return "q"
		}
		line := lines[i]
		i++
		return line
	}
}

func TestSessionRunQuitLeavesEverythingUntouched(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, []byte("x"))
	writeFile(t, b, []byte("y"))

	g := &Group{Entries: []Entry{
		{Path: a, Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m1"}},
		{Path: b, Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m2"}},
	}}
	g.classify()

	s := newTestSession(t)
	out := s.Run(g, scripted("q"))
	if !out.Quit {
		t.Errorf("expected Quit=true")
	}
	if len(out.Trashed) != 0 || len(out.Kept) != 0 {
		t.Errorf("expected nothing trashed or kept, got %+v", out)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("expected %s untouched: %v", a, err)
	}
}

func TestSessionRunContinueAppliesAutoPlan(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "2024-01-02", "a.jpg")
	bad := filepath.Join(dir, "2024-03-03", "a.jpg")
	writeFile(t, good, []byte("x"))
	writeFile(t, bad, []byte("x"))

	rec := store.HashRecord{MD5: "m", FullMD5: "f"}
	g := &Group{Entries: []Entry{
		{Path: good, Exists: true, HasRecord: true, Record: rec, HasDate: true, DateTaken: mustDate(t, "2024-01-02")},
		{Path: bad, Exists: true, HasRecord: true, Record: rec, HasDate: true, DateTaken: mustDate(t, "2024-01-02")},
	}}
	g.classify()

	s := newTestSession(t)
	out := s.Run(g, scripted("c"))
	if len(out.Trashed) != 1 || out.Trashed[0] != bad {
		t.Errorf("expected %s trashed, got %+v", bad, out.Trashed)
	}
	if len(out.Kept) != 1 || out.Kept[0] != good {
		t.Errorf("expected %s kept, got %+v", good, out.Kept)
	}
}

func TestSessionRunTrashByIndex(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, []byte("x"))
	writeFile(t, b, []byte("x"))

	rec := store.HashRecord{MD5: "m", FullMD5: "f"}
	g := &Group{Entries: []Entry{
		{Path: a, Exists: true, HasRecord: true, Record: rec},
		{Path: b, Exists: true, HasRecord: true, Record: rec},
	}}
	g.classify()

	s := newTestSession(t)
	out := s.Run(g, scripted("t2"))
	if len(out.Trashed) != 1 || out.Trashed[0] != b {
		t.Errorf("expected %s trashed, got %+v", b, out.Trashed)
	}
	if len(out.Kept) != 1 || out.Kept[0] != a {
		t.Errorf("expected %s kept, got %+v", a, out.Kept)
	}
}

// fakeExtractor scripts ReadTags per path and records what WriteTags
// received, so merge tests never shell out to exiftool.
type fakeExtractor struct {
	tags    map[string]metadata.Tags
	written map[string]metadata.Tags
}

func (f *fakeExtractor) ReadTags(path string) (metadata.Tags, error) {
	return f.tags[path], nil
}

func (f *fakeExtractor) WriteTags(path string, tags metadata.Tags) error {
	if f.written == nil {
		f.written = map[string]metadata.Tags{}
	}
	f.written[path] = tags
	return nil
}

func (f *fakeExtractor) DateTaken(path string) (time.Time, bool) {
	return time.Time{}, false
}

func TestSessionRunMergeMetadataWritesUnionIntoFirstEntry(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, []byte("x"))
	writeFile(t, b, []byte("x"))

	rec := store.HashRecord{MD5: "m", FullMD5: "f"}
	g := &Group{Entries: []Entry{
		{Path: a, Exists: true, HasRecord: true, Record: rec},
		{Path: b, Exists: true, HasRecord: true, Record: rec},
	}}
	g.classify()

	fx := &fakeExtractor{tags: map[string]metadata.Tags{
		a: {"IPTC:Keywords": "family"},
		b: {"XMP:Rating": "5"},
	}}
	s := newTestSession(t)
	s.Metadata = fx

	out := s.Run(g, scripted("m1,2", "q"))
	if !out.Quit {
		t.Errorf("expected session to end on q after the merge")
	}

	got := fx.written[a]
	if got["IPTC:Keywords"] != "family" || got["XMP:Rating"] != "5" {
		t.Errorf("expected merged tags written to %s, got %+v", a, got)
	}
	if _, wrote := fx.written[b]; wrote {
		t.Errorf("expected only the first listed entry to receive a write")
	}
}

func TestSessionRunMergeMetadataRejectsInvalidIndexList(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, []byte("x"))
	writeFile(t, b, []byte("x"))

	rec := store.HashRecord{MD5: "m", FullMD5: "f"}
	g := &Group{Entries: []Entry{
		{Path: a, Exists: true, HasRecord: true, Record: rec},
		{Path: b, Exists: true, HasRecord: true, Record: rec},
	}}
	g.classify()

	fx := &fakeExtractor{tags: map[string]metadata.Tags{}}
	s := newTestSession(t)
	s.Metadata = fx

	out := s.Run(g, scripted("m9,2", "q"))
	if !out.Quit {
		t.Errorf("expected session to end on q")
	}
	if len(fx.written) != 0 {
		t.Errorf("expected no write for an out-of-range merge list, got %+v", fx.written)
	}
}
