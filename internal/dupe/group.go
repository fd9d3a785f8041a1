// Package dupe is the duplicate-resolution engine: grouping files by
// content hash or by name+date heuristic, classifying pairwise matches,
// proposing an auto-action set, and driving the interactive triage loop.
package dupe

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/whatsoevan/orphdat/internal/ftype"
	"github.com/whatsoevan/orphdat/internal/metadata"
	"github.com/whatsoevan/orphdat/internal/store"
	"github.com/whatsoevan/orphdat/internal/walker"
)

// Match classifies how two entries in a group compare.
type Match int

const (
	MatchUnknown Match = iota
	MatchNone
	MatchContent
	MatchFull
)

func (m Match) String() string {
	switch m {
	case MatchNone:
		return "none"
	case MatchContent:
		return "content"
	case MatchFull:
		return "full"
	default:
		return "unknown"
	}
}

// Entry is one path participating in a DupeGroup.
type Entry struct {
	Path      string
	Exists    bool
	Record    store.HashRecord
	HasRecord bool
	DateTaken time.Time
	HasDate   bool
	Sidecars  []string

	// Err holds a *store.Conflict or *store.InvariantViolation surfaced
	// by Resolve while populating this entry, so Session.Run can prompt
	// or abort on it instead of silently treating the file as unhashed.
	Err error
}

// Group is an ordered set of entries believed to be duplicates of one
// another, plus the pairwise match classification between every pair.
type Group struct {
	Entries []Entry
	Matches [][]Match // Matches[i][j], symmetric, zero diagonal unused
}

func (g *Group) classify() {
	n := len(g.Entries)
	g.Matches = make([][]Match, n)
	for i := range g.Matches {
		g.Matches[i] = make([]Match, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			g.Matches[i][j] = classifyPair(g.Entries[i], g.Entries[j])
		}
	}
}

func classifyPair(a, b Entry) Match {
	if !a.HasRecord || !b.HasRecord {
		return MatchUnknown
	}
	if a.Record.FullMD5 != "" && b.Record.FullMD5 != "" {
		if a.Record.FullMD5 == b.Record.FullMD5 {
			return MatchFull
		}
	}
	if a.Record.MD5 != "" && b.Record.MD5 != "" {
		if a.Record.MD5 == b.Record.MD5 {
			return MatchContent
		}
		return MatchNone
	}
	return MatchUnknown
}

// Populator resolves the per-entry fields a grouping pass leaves blank:
// stat existence, the hash record, the capture date, and sidecars.
type Populator struct {
	Store    *store.Store
	Metadata metadata.Extractor
}

func (p Populator) populate(path string) Entry {
	e := Entry{Path: path, Sidecars: ftype.SidecarsOf(path)}
	if _, err := os.Stat(path); err == nil {
		e.Exists = true
	} else {
		return e
	}
	if rec, err := p.Store.Resolve(path, store.ResolveOptions{}); err == nil {
		e.Record = rec
		e.HasRecord = true
	} else {
		e.Err = err
	}
	if p.Metadata != nil {
		if t, ok := p.Metadata.DateTaken(path); ok {
			e.DateTaken = t
			e.HasDate = true
		}
	}
	return e
}

// GroupByHash walks roots reading every .orphdat catalog and groups
// records whose md5 matches; each group of 2 or more paths becomes a
// Group. Paths and groups are both ordered via ftype.ComparePaths so the
// operator sees a stable archive order across runs.
func GroupByHash(roots []string, p Populator) ([]*Group, error) {
	byHash := map[string][]string{}

	err := walker.WalkPatterns(roots, walker.Visitor{
		OnDir: func(full, root string) {
			recordsDir(full, byHash)
		},
	})
	if err != nil {
		return nil, err
	}

	return buildGroups(byHash, p), nil
}

// recordsDir reads full's catalog (if any) and indexes every record by
// its md5, ignoring read errors (an unreadable catalog simply
// contributes no groups from that directory).
func recordsDir(dir string, byHash map[string][]string) {
	data, err := os.ReadFile(filepath.Join(dir, store.DefaultName))
	if err != nil {
		return
	}
	// Re-parsing here (rather than threading a *store.Store through) is
	// deliberate: this pass only needs the md5 index, not cache-backed
	// Resolve semantics, so it reads the catalog directly the way the
	// engine reads many directories' stores without ever writing them.
	recs, err := parseCatalogForGrouping(data)
	if err != nil {
		return
	}
	for filename, rec := range recs {
		if rec.MD5 == "" {
			continue
		}
		path := filepath.Join(dir, filename)
		byHash[rec.MD5] = append(byHash[rec.MD5], path)
	}
}

func buildGroups(byHash map[string][]string, p Populator) []*Group {
	var groups []*Group
	for _, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		sort.Slice(paths, func(i, j int) bool { return ftype.ComparePaths(paths[i], paths[j]) < 0 })
		g := &Group{}
		for _, path := range paths {
			g.Entries = append(g.Entries, p.populate(path))
		}
		g.classify()
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return ftype.ComparePaths(groups[i].Entries[0].Path, groups[j].Entries[0].Path) < 0
	})
	return groups
}

// nameStemCameraRe and nameStemTimestampRe accept camera-style (four word
// characters then four digits, e.g. IMG_1234) or timestamp-style
// (2024-01-02-10-30-00-ish) stems.
var nameStemCameraRe = regexp.MustCompile(`^[A-Za-z0-9_]{4}\d{4}`)
var nameStemTimestampRe = regexp.MustCompile(`^\d{4}[-_]\d{2}[-_]\d{2}[-_ ]\d{2}[-_]\d{2}[-_]\d{2}`)

// dateDirRe matches an ancestor directory name encoding a capture date,
// e.g. "2024-01-02", "2024_01_02", "240102".
var dateDirRe = regexp.MustCompile(`^(\d{2}|\d{4})[-_]?(\d{2})[-_]?(\d{2})$`)

func nameStem(base string) (stem string, recognized bool) {
	if m := nameStemCameraRe.FindString(base); m != "" {
		return m, true
	}
	if m := nameStemTimestampRe.FindString(base); m != "" {
		return m, true
	}
	return strings.TrimSuffix(base, filepath.Ext(base)), false
}

func dateDirKey(path string) string {
	dir := filepath.Dir(path)
	for dir != "." && dir != string(filepath.Separator) {
		name := filepath.Base(dir)
		if m := dateDirRe.FindStringSubmatch(name); m != nil {
			year := m[1]
			if len(year) == 2 {
				year = "20" + year
			}
			return year + m[2] + m[3]
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// nameKey computes the by-name grouping key:
// lower(ext) + ";" + name_stem + ";" + date_dir_key.
func nameKey(path string) string {
	base := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	stem, _ := nameStem(base)
	return strings.ToLower(ext) + ";" + strings.ToLower(stem) + ";" + dateDirKey(path)
}

// GroupByName walks roots visiting media files (those ftype recognizes)
// and groups them by nameKey, for the --by-name grouping mode.
func GroupByName(roots []string, p Populator) ([]*Group, error) {
	byKey := map[string][]string{}

	err := walker.WalkPatterns(roots, walker.Visitor{
		IsFileWanted: func(full, root, name string) bool {
			if !walker.DefaultFileWanted(full, root, name) {
				return false
			}
			return ftype.MimeOf(full) != ""
		},
		OnFile: func(full, root string) {
			key := nameKey(full)
			byKey[key] = append(byKey[key], full)
		},
	})
	if err != nil {
		return nil, err
	}

	return buildGroups(byKey, p), nil
}

// parseCatalogForGrouping is a read-only JSON/legacy sniff that delegates
// to store.ParseCatalogBytes, so the grouping pass gets a quick index scan
// without going through a Store's cache or write-back side effects.
func parseCatalogForGrouping(data []byte) (map[string]store.HashRecord, error) {
	return store.ParseCatalogBytes(data)
}
