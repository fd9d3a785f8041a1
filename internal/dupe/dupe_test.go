package dupe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/whatsoevan/orphdat/internal/orphctx"
	"github.com/whatsoevan/orphdat/internal/store"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNameStemAcceptsCameraStyle(t *testing.T) {
	stem, ok := nameStem("IMG_1234.jpg")
	if !ok || stem != "IMG_1234" {
		t.Errorf("got stem=%q ok=%v", stem, ok)
	}
}

func TestNameStemAcceptsTimestampStyle(t *testing.T) {
	stem, ok := nameStem("2024-01-02 10-30-00.jpg")
	if !ok || stem != "2024-01-02 10-30-00" {
		t.Errorf("got stem=%q ok=%v", stem, ok)
	}
}

func TestNameStemFallsBackToFullBasenameWithWarning(t *testing.T) {
	stem, ok := nameStem("vacation-photo.jpg")
	if ok {
		t.Errorf("expected unrecognized stem, got ok=true stem=%q", stem)
	}
	if stem != "vacation-photo" {
		t.Errorf("got %q", stem)
	}
}

func TestDateDirKeyNormalizesTwoDigitYear(t *testing.T) {
	key := dateDirKey(filepath.Join("archive", "240102", "a.jpg"))
	if key != "20240102" {
		t.Errorf("got %q", key)
	}
}

func TestDateDirKeyFindsAncestorWithSeparators(t *testing.T) {
	key := dateDirKey(filepath.Join("archive", "2024-01-02", "sub", "a.jpg"))
	if key != "20240102" {
		t.Errorf("got %q", key)
	}
}

func TestDateDirKeyEmptyWhenNoAncestorMatches(t *testing.T) {
	key := dateDirKey(filepath.Join("archive", "misc", "a.jpg"))
	if key != "" {
		t.Errorf("expected empty key, got %q", key)
	}
}

func TestClassifyPairFull(t *testing.T) {
	a := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1", FullMD5: "f1"}}
	b := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1", FullMD5: "f1"}}
	if got := classifyPair(a, b); got != MatchFull {
		t.Errorf("got %v", got)
	}
}

func TestClassifyPairContentOnly(t *testing.T) {
	a := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1", FullMD5: "f1"}}
	b := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1", FullMD5: "f2"}}
	if got := classifyPair(a, b); got != MatchContent {
		t.Errorf("got %v", got)
	}
}

func TestClassifyPairNone(t *testing.T) {
	a := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1"}}
	b := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m2"}}
	if got := classifyPair(a, b); got != MatchNone {
		t.Errorf("got %v", got)
	}
}

func TestClassifyPairUnknownWithoutRecord(t *testing.T) {
	a := Entry{HasRecord: false}
	b := Entry{HasRecord: true, Record: store.HashRecord{MD5: "m1"}}
	if got := classifyPair(a, b); got != MatchUnknown {
		t.Errorf("got %v", got)
	}
}

func TestGroupByHashFindsDuplicatesAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "photo.jpg")
	b := filepath.Join(dir, "b", "photo-2.jpg")
	content := []byte("fake jpeg bytes for dupe test")
	writeFile(t, a, content)
	writeFile(t, b, content)

	s := store.New(orphctx.New(orphctx.DefaultConfig()))
	if _, err := s.Resolve(a, store.ResolveOptions{}); err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	if _, err := s.Resolve(b, store.ResolveOptions{}); err != nil {
		t.Fatalf("resolve b: %v", err)
	}

	groups, err := GroupByHash([]string{dir}, Populator{Store: s})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(groups[0].Entries))
	}
	if groups[0].Matches[0][1] != MatchFull {
		t.Errorf("expected full match, got %v", groups[0].Matches[0][1])
	}
}

func TestAutoPlanExcludesEntriesWithSidecars(t *testing.T) {
	dir := t.TempDir()
	jpgA := filepath.Join(dir, "a.jpg")
	jpgB := filepath.Join(dir, "b.jpg")
	writeFile(t, jpgA, []byte("x"))
	writeFile(t, jpgB, []byte("x"))
	writeFile(t, filepath.Join(dir, "a.xmp"), []byte("<xmp/>"))

	g := &Group{Entries: []Entry{
		{Path: jpgA, Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m", FullMD5: "f"}, Sidecars: []string{filepath.Join(dir, "a.xmp")}},
		{Path: jpgB, Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m", FullMD5: "f"}},
	}}
	g.classify()

	plan := AutoPlan(g)
	if plan.Actions[0] != ActionNone {
		t.Errorf("expected entry with sidecar to be excluded, got %v", plan.Actions[0])
	}
	if plan.Actions[1] != ActionKeep {
		t.Errorf("expected sole remaining candidate to be kept, got %v", plan.Actions[1])
	}
}

func TestAutoPlanDiscardsDateMismatchedCandidate(t *testing.T) {
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

	plan := AutoPlan(g)
	if plan.Actions[0] != ActionKeep {
		t.Errorf("expected date-matching entry kept, got %v", plan.Actions[0])
	}
	if plan.Actions[1] != ActionTrash {
		t.Errorf("expected date-mismatched entry trashed, got %v", plan.Actions[1])
	}
}

func TestAutoPlanDiscardsDuplicateSuffixWhenDatesAgree(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "IMG1234.jpg")
	copyPath := filepath.Join(dir, "IMG1234-2.jpg")
	writeFile(t, orig, []byte("x"))
	writeFile(t, copyPath, []byte("x"))

	rec := store.HashRecord{MD5: "m", FullMD5: "f"}
	g := &Group{Entries: []Entry{
		{Path: orig, Exists: true, HasRecord: true, Record: rec},
		{Path: copyPath, Exists: true, HasRecord: true, Record: rec},
	}}
	g.classify()

	plan := AutoPlan(g)
	if plan.Actions[1] != ActionTrash {
		t.Errorf("expected suffixed duplicate trashed, got %v", plan.Actions[1])
	}
}

func TestAutoPlanLivePhotoExceptionKeepsBothMovs(t *testing.T) {
	dir := t.TempDir()
	movA := filepath.Join(dir, "a", "IMG_0001.mov")
	movB := filepath.Join(dir, "b", "IMG_0001.mov")
	stillA := filepath.Join(dir, "a", "IMG_0001.heic")
	writeFile(t, movA, []byte("movie bytes"))
	writeFile(t, movB, []byte("movie bytes"))
	writeFile(t, stillA, make([]byte, 20))

	rec := store.HashRecord{MD5: "m", FullMD5: "f", Size: 11}
	g := &Group{Entries: []Entry{
		{Path: movA, Exists: true, HasRecord: true, Record: rec},
		{Path: movB, Exists: true, HasRecord: true, Record: rec},
	}}
	g.classify()

	plan := AutoPlan(g)
	if plan.Actions[0] != ActionKeep || plan.Actions[1] != ActionKeep {
		t.Errorf("expected both movs kept as a live-photo pair, got %v", plan.Actions)
	}
}

func TestAutoPlanAmbiguousMatchLeavesBothUnresolved(t *testing.T) {
	g := &Group{Entries: []Entry{
		{Path: "/a/x.jpg", Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m1"}},
		{Path: "/b/x.jpg", Exists: true, HasRecord: true, Record: store.HashRecord{MD5: "m2"}},
	}}
	g.classify()

	plan := AutoPlan(g)
	if plan.Actions[0] != ActionNone || plan.Actions[1] != ActionNone {
		t.Errorf("expected ambiguous group left for manual review, got %v", plan.Actions)
	}
}

func mustDate(t *testing.T, ymd string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", ymd)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}
