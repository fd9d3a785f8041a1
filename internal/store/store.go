// Package store implements the per-directory "orphdat" catalog: a JSON
// sidecar file caching content/full hashes keyed by lowercased filename,
// with legacy plain-text compatibility and a one-slot in-memory cache for
// sequential access within a directory.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/whatsoevan/orphdat/internal/hashing"
	"github.com/whatsoevan/orphdat/internal/orphctx"
)

// DefaultName is the hidden catalog filename used when Config doesn't
// override it.
const DefaultName = ".orphdat"

var hexRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// HashRecord is the value cached for one media file.
type HashRecord struct {
	Version  int    `json:"version"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Mtime    int64  `json:"mtime"`
	MD5      string `json:"md5"`
	FullMD5  string `json:"full_md5"`
}

// Valid reports whether r satisfies the HashRecord invariants: both
// digests are 32-char hex, the version is at least 1, and size
// is non-negative.
func (r HashRecord) Valid() bool {
	return hexRe.MatchString(r.MD5) && hexRe.MatchString(r.FullMD5) && r.Version >= 1 && r.Size >= 0
}

// ResolveOptions tunes how Resolve treats a caller-supplied candidate.
type ResolveOptions struct {
	// Candidate, if non-nil, is tried before the in-memory cache and the
	// on-disk store.
	Candidate *HashRecord
	// AddOnly accepts any existing candidate without recomputing or
	// validating size/mtime/version.
	AddOnly bool
	// ForceRecalc bypasses every cache and always re-hashes.
	ForceRecalc bool
}

// Conflict describes an on-disk record whose md5 disagrees with a freshly
// computed one in a way that requires an external decision rather than
// a silent upgrade.
type Conflict struct {
	Path     string
	OnDisk   HashRecord
	Computed HashRecord
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("hash mismatch for %s: stored md5=%s (v%d) vs computed md5=%s (v%d)",
		c.Path, c.OnDisk.MD5, c.OnDisk.Version, c.Computed.MD5, c.Computed.Version)
}

// InvariantViolation is returned when full hashes match, the stored
// version is already current, yet the content hashes differ: something
// the algorithm's own invariants say cannot happen.
type InvariantViolation struct {
	Path     string
	OnDisk   HashRecord
	Computed HashRecord
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation for %s: full_md5 matches and version %d is current, "+
		"but md5 differs (stored=%s computed=%s)", e.Path, e.OnDisk.Version, e.OnDisk.MD5, e.Computed.MD5)
}

// Store manages the catalog for a single directory.
type Store struct {
	ctx  *orphctx.Context
	name string // catalog filename, e.g. ".orphdat"
}

// New returns a Store using ctx's configured catalog name (or DefaultName).
func New(ctx *orphctx.Context) *Store {
	name := DefaultName
	if ctx != nil && ctx.Config.OrphdatName != "" {
		name = ctx.Config.OrphdatName
	}
	return &Store{ctx: ctx, name: name}
}

func (s *Store) pathFor(dir string) string {
	return filepath.Join(dir, s.name)
}

// CatalogName returns the catalog filename this Store reads and writes
// (e.g. ".orphdat"), so callers like internal/trash can recognize and
// special-case it during directory moves.
func (s *Store) CatalogName() string {
	return s.name
}

// cacheEntry is the payload kept in orphctx's one-slot cache.
type cacheEntry struct {
	records map[string]HashRecord
}

// load reads dir's catalog, consulting and refreshing the one-slot cache.
// It never fails on a missing file: an absent catalog is an empty set.
func (s *Store) load(dir string) (map[string]HashRecord, error) {
	if s.ctx != nil {
		if cachedDir, data := s.ctx.Cache(); cachedDir == dir {
			if entry, ok := data.(cacheEntry); ok {
				return cloneRecords(entry.records), nil
			}
		}
	}

	records, err := readFile(s.pathFor(dir))
	if err != nil {
		return nil, err
	}
	if s.ctx != nil {
		s.ctx.SwapCache(dir, cacheEntry{records: cloneRecords(records)})
	}
	return records, nil
}

// refreshCache puts dir's just-written records into the one-slot cache.
// Opening any other store already replaces the slot via load; write paths
// call this explicitly so a write immediately followed by a read in the
// same process sees the written records rather than the ones load cached
// before the write.
func (s *Store) refreshCache(dir string, records map[string]HashRecord) {
	if s.ctx != nil {
		s.ctx.SwapCache(dir, cacheEntry{records: cloneRecords(records)})
	}
}

func cloneRecords(in map[string]HashRecord) map[string]HashRecord {
	out := make(map[string]HashRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func readFile(path string) (map[string]HashRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]HashRecord{}, nil
		}
		return nil, err
	}
	return parse(data)
}

// ParseCatalogBytes exposes the JSON/legacy sniffing parse does, for
// callers (internal/dupe's grouping pass) that want a read-only index
// over a catalog's records without a Store's cache or write-back.
func ParseCatalogBytes(data []byte) (map[string]HashRecord, error) {
	return parse(data)
}

// parse sniffs the first non-whitespace byte to decide JSON vs legacy
// format.
func parse(data []byte) (map[string]HashRecord, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return map[string]HashRecord{}, nil
	}
	if trimmed[0] == '{' {
		var raw map[string]HashRecord
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("store: parse JSON: %w", err)
		}
		return raw, nil
	}
	return parseLegacy(data)
}

// parseLegacy reads "name: hexdigest" lines, synthesizing version-0
// records for upgrade on next resolve.
func parseLegacy(data []byte) (map[string]HashRecord, error) {
	records := map[string]HashRecord{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		digest := strings.TrimSpace(line[idx+1:])
		if name == "" || !hexRe.MatchString(digest) {
			continue
		}
		records[strings.ToLower(name)] = HashRecord{
			Version:  0,
			Filename: name,
			MD5:      digest,
			FullMD5:  digest,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// writeAll persists records as pretty, sorted-key JSON, or removes the
// catalog file if records is empty (an empty catalog is never written
// to disk). The write is seek(0)/truncate(0)/write_all/close, so a
// reader never observes a partially written catalog.
func (s *Store) writeAll(dir string, records map[string]HashRecord) error {
	path := s.pathFor(dir)
	if len(records) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		s.refreshCache(dir, records)
		return nil
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range keys {
		r := records[k]
		enc, err := json.Marshal(r)
		if err != nil {
			return err
		}
		var prettied bytes.Buffer
		if err := json.Indent(&prettied, enc, "  ", "  "); err != nil {
			return err
		}
		fmt.Fprintf(&buf, "  %q: %s", k, prettied.String())
		if i < len(keys)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}

	s.refreshCache(dir, records)
	return nil
}

// Resolve is the primary entry point: try the caller's candidate, then
// the in-memory cache, then the on-disk store; accept a
// candidate only if it passes cache validity (matching filename, size,
// mtime, and a current algorithm version). On miss, re-hash via
// internal/hashing.
func (s *Store) Resolve(path string, opts ResolveOptions) (HashRecord, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	key := strings.ToLower(base)

	info, statErr := os.Stat(path)
	if statErr != nil {
		return HashRecord{}, statErr
	}

	tryAccept := func(r HashRecord) (HashRecord, bool) {
		if opts.AddOnly {
			return r, true
		}
		if !strings.EqualFold(r.Filename, base) {
			return HashRecord{}, false
		}
		if r.Size != info.Size() || r.Mtime != info.ModTime().Unix() {
			return HashRecord{}, false
		}
		if !hashing.IsHashVersionCurrent(path, r.Version) {
			return HashRecord{}, false
		}
		return r, true
	}

	if !opts.ForceRecalc {
		if opts.Candidate != nil {
			if r, ok := tryAccept(*opts.Candidate); ok {
				return r, nil
			}
		}

		records, err := s.load(dir)
		if err != nil {
			return HashRecord{}, err
		}
		if existing, ok := records[key]; ok {
			if r, ok := tryAccept(existing); ok {
				return r, nil
			}
			return s.recompute(path, dir, base, key, info, &existing)
		}
	}

	return s.recompute(path, dir, base, key, info, nil)
}

func (s *Store) recompute(path, dir, base, key string, info os.FileInfo, existing *HashRecord) (HashRecord, error) {
	computedCore, err := hashing.CalculateHash(path)
	if err != nil {
		return HashRecord{}, err
	}
	computed := HashRecord{
		Version:  computedCore.Version,
		Filename: base,
		Size:     info.Size(),
		Mtime:    info.ModTime().Unix(),
		MD5:      computedCore.MD5,
		FullMD5:  computedCore.FullMD5,
	}

	if existing != nil && existing.MD5 != computed.MD5 {
		switch {
		case existing.FullMD5 == computed.FullMD5 && !hashing.IsHashVersionCurrent(path, existing.Version):
			// Algorithm evolved; silently upgrade.
		case existing.FullMD5 == computed.FullMD5:
			return HashRecord{}, &InvariantViolation{Path: path, OnDisk: *existing, Computed: computed}
		default:
			return HashRecord{}, &Conflict{Path: path, OnDisk: *existing, Computed: computed}
		}
	}

	records, err := s.load(dir)
	if err != nil {
		return HashRecord{}, err
	}
	records[key] = computed
	if err := s.writeAll(dir, records); err != nil {
		return HashRecord{}, err
	}
	return computed, nil
}

// Verify recomputes path's hash and compares it against whatever is on
// disk without writing anything back: a read-only pass that reports
// mismatches and touches nothing. onDisk is the zero
// value if the catalog has no entry for path yet. The same Conflict/
// InvariantViolation classification Resolve/recompute apply is reused so
// callers see one consistent error taxonomy regardless of verb.
func (s *Store) Verify(path string) (computed HashRecord, onDisk HashRecord, err error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	key := strings.ToLower(base)

	info, statErr := os.Stat(path)
	if statErr != nil {
		return HashRecord{}, HashRecord{}, statErr
	}

	records, err := s.load(dir)
	if err != nil {
		return HashRecord{}, HashRecord{}, err
	}
	existing, hasExisting := records[key]

	computedCore, err := hashing.CalculateHash(path)
	if err != nil {
		return HashRecord{}, HashRecord{}, err
	}
	computed = HashRecord{
		Version:  computedCore.Version,
		Filename: base,
		Size:     info.Size(),
		Mtime:    info.ModTime().Unix(),
		MD5:      computedCore.MD5,
		FullMD5:  computedCore.FullMD5,
	}

	if !hasExisting {
		return computed, HashRecord{}, nil
	}
	if existing.MD5 == computed.MD5 {
		return computed, existing, nil
	}

	switch {
	case existing.FullMD5 == computed.FullMD5 && !hashing.IsHashVersionCurrent(path, existing.Version):
		return computed, existing, nil
	case existing.FullMD5 == computed.FullMD5:
		return computed, existing, &InvariantViolation{Path: path, OnDisk: existing, Computed: computed}
	default:
		return computed, existing, &Conflict{Path: path, OnDisk: existing, Computed: computed}
	}
}

// Write upserts record under path's basename, or deletes the entry when
// record is nil.
func (s *Store) Write(path string, record *HashRecord) error {
	dir := filepath.Dir(path)
	key := strings.ToLower(filepath.Base(path))

	records, err := s.load(dir)
	if err != nil {
		return err
	}
	if record == nil {
		delete(records, key)
	} else {
		records[key] = *record
	}
	return s.writeAll(dir, records)
}

// Move lifts the record for oldPath into newPath's directory's store,
// deleting it from the source. If an identical record
// already occupies the target slot, this degenerates into deleting the
// source entry. If the source store becomes empty it is unlinked.
func (s *Store) Move(oldPath, newPath string) error {
	oldDir := filepath.Dir(oldPath)
	oldKey := strings.ToLower(filepath.Base(oldPath))
	newDir := filepath.Dir(newPath)
	newKey := strings.ToLower(filepath.Base(newPath))

	oldRecords, err := s.load(oldDir)
	if err != nil {
		return err
	}
	record, ok := oldRecords[oldKey]
	if !ok {
		return nil // nothing to move
	}
	record.Filename = filepath.Base(newPath)

	if oldDir == newDir {
		delete(oldRecords, oldKey)
		oldRecords[newKey] = record
		return s.writeAll(oldDir, oldRecords)
	}

	newRecords, err := s.load(newDir)
	if err != nil {
		return err
	}
	if existing, ok := newRecords[newKey]; !ok || existing != record {
		newRecords[newKey] = record
		if err := s.writeAll(newDir, newRecords); err != nil {
			return err
		}
	}

	delete(oldRecords, oldKey)
	return s.writeAll(oldDir, oldRecords)
}

// Append merges source stores' records into target, collapsing identical
// duplicates. A key collision with differing records fails the whole
// operation without writing anything.
func (s *Store) Append(targetDir string, sourceDirs []string) error {
	target, err := s.load(targetDir)
	if err != nil {
		return err
	}
	merged := cloneRecords(target)

	for _, srcDir := range sourceDirs {
		src, err := s.load(srcDir)
		if err != nil {
			return err
		}
		for k, v := range src {
			if existing, ok := merged[k]; ok {
				if existing != v {
					return fmt.Errorf("store: append conflict for key %q between %s and %s", k, targetDir, srcDir)
				}
				continue
			}
			merged[k] = v
		}
	}

	return s.writeAll(targetDir, merged)
}

// PurgeMissing drops every record in dir's catalog whose file no longer
// exists on disk, returning the filenames removed. Used by purge-md5 to
// sweep entries an interactive dupe-resolution pass left behind after
// the operator trashed or deleted a file by hand outside the catalog.
func (s *Store) PurgeMissing(dir string) ([]string, error) {
	records, err := s.load(dir)
	if err != nil {
		return nil, err
	}

	var removed []string
	for key, rec := range records {
		if _, err := os.Stat(filepath.Join(dir, rec.Filename)); os.IsNotExist(err) {
			removed = append(removed, rec.Filename)
			delete(records, key)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.writeAll(dir, records); err != nil {
		return nil, err
	}
	return removed, nil
}

// TrashTarget computes root/.orphtrash/a/b/c/file.ext for a file at
// root/a/b/c/file.ext, collapsing any intermediate trash-marker segments
// so a file already inside a subtree's local trash collapses cleanly into
// the top-level trash.
func TrashTarget(root, path, trashName string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	parts := strings.Split(rel, string(filepath.Separator))
	var cleaned []string
	for _, p := range parts {
		if strings.EqualFold(p, trashName) {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return filepath.Join(append([]string{root, trashName}, cleaned...)...), nil
}

// Trash moves the record for path into the trash root's store, equivalent
// to Move(path, TrashTarget(root, path, trashName)).
func (s *Store) Trash(root, path, trashName string) error {
	target, err := TrashTarget(root, path, trashName)
	if err != nil {
		return err
	}
	return s.Move(path, target)
}

