// Package ftype classifies archive files by extension: MIME type, sidecar
// relations and sort priority. It is a small, read-only table; there is no
// state to thread through a Context.
package ftype

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Info is the per-extension record the registry returns.
type Info struct {
	Mime      string   // empty for unrecognized extensions
	Sidecars  []string // sidecar extensions that accompany a primary of this type, uppercased
	ExtOrder  int      // lower sorts first; a sidecar's order is always > its primary's
}

// table is keyed by uppercased extension without the leading dot.
var table = map[string]Info{
	"JPG":  {Mime: "image/jpeg", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"JPEG": {Mime: "image/jpeg", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"HEIC": {Mime: "image/heic", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"PNG":  {Mime: "image/png", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"TIFF": {Mime: "image/tiff", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"TIF":  {Mime: "image/tiff", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"CR2":  {Mime: "image/x-canon-cr2", Sidecars: []string{"JPG", "XMP"}, ExtOrder: -1},
	"NEF":  {Mime: "image/x-nikon-nef", Sidecars: []string{"JPG", "XMP"}, ExtOrder: -1},
	"MP4":  {Mime: "video/mp4v-es", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"M4V":  {Mime: "video/mp4v-es", Sidecars: []string{"XMP"}, ExtOrder: 0},
	"MOV":  {Mime: "video/quicktime", Sidecars: []string{"XMP"}, ExtOrder: 1},
	"XMP":  {Mime: "application/rdf+xml", Sidecars: nil, ExtOrder: 2},
}

// backupSuffixRe matches a trailing "~YYYYMMDD-HHMMSS"-style backup marker.
var backupSuffixRe = regexp.MustCompile(`~\d{8}-\d{6}$`)

// stripBackupSuffix removes recognized backup markers from a basename
// so that "IMG_0001.jpg.bak", "IMG_0001_original.jpg", "IMG_0001.jpg_original"
// and "IMG_0001.jpg~20240101-120000" all resolve to the same registry entry
// as "IMG_0001.jpg".
func stripBackupSuffix(base string) (stripped string, isBackup bool) {
	if strings.HasSuffix(base, ".bak") {
		return strings.TrimSuffix(base, ".bak"), true
	}
	if strings.HasSuffix(base, "_original") {
		return strings.TrimSuffix(base, "_original"), true
	}
	if backupSuffixRe.MatchString(base) {
		return backupSuffixRe.ReplaceAllString(base, ""), true
	}
	ext := filepath.Ext(base)
	if stem := strings.TrimSuffix(base, ext); strings.HasSuffix(stem, "_original") {
		return strings.TrimSuffix(stem, "_original") + ext, true
	}
	return base, false
}

// extOf returns the uppercased extension (without dot) of path, after
// stripping a recognized backup suffix from the basename.
func extOf(path string) (ext string, isBackup bool) {
	base := filepath.Base(path)
	base, isBackup = stripBackupSuffix(base)
	e := filepath.Ext(base)
	return strings.ToUpper(strings.TrimPrefix(e, ".")), isBackup
}

// Lookup returns the registry entry for path's extension, or the zero Info
// (empty Mime) if the extension is unrecognized.
func Lookup(path string) Info {
	ext, _ := extOf(path)
	return table[ext]
}

// MimeOf returns the MIME type registered for path's extension, or "" if
// unrecognized. Backup suffixes are stripped before matching.
func MimeOf(path string) string {
	return Lookup(path).Mime
}

// SidecarsOf returns the sidecar paths that currently exist on disk next to
// path. Backup files never have sidecars by definition.
func SidecarsOf(path string) []string {
	ext, isBackup := extOf(path)
	if isBackup {
		return nil
	}
	info, ok := table[ext]
	if !ok || len(info.Sidecars) == 0 {
		return nil
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var found []string
	for _, sidecarExt := range info.Sidecars {
		for _, candidateExt := range []string{strings.ToLower(sidecarExt), sidecarExt} {
			candidate := filepath.Join(dir, base+"."+candidateExt)
			if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
				found = append(found, candidate)
				break
			}
		}
	}
	return found
}

// ExtOrder returns the tie-break order for path's extension; unrecognized
// extensions sort after all recognized ones.
func ExtOrder(path string) int {
	ext, _ := extOf(path)
	info, ok := table[ext]
	if !ok {
		return 1 << 30
	}
	return info.ExtOrder
}

// ComparePaths orders two paths the way a directory listing should read:
// ancestor directories first (lexicographic, case-insensitive), then
// basename, then ExtOrder, then the raw extension string. It is the single
// ordering used both within a duplicate group and across groups, giving
// the archive one stable traversal order regardless of caller.
func ComparePaths(a, b string) int {
	aDir, bDir := filepath.Dir(a), filepath.Dir(b)
	if c := strings.Compare(strings.ToLower(aDir), strings.ToLower(bDir)); c != 0 {
		return c
	}
	aBase, bBase := filepath.Base(a), filepath.Base(b)
	aStem := strings.TrimSuffix(aBase, filepath.Ext(aBase))
	bStem := strings.TrimSuffix(bBase, filepath.Ext(bBase))
	if c := strings.Compare(strings.ToLower(aStem), strings.ToLower(bStem)); c != 0 {
		return c
	}
	if oa, ob := ExtOrder(a), ExtOrder(b); oa != ob {
		if oa < ob {
			return -1
		}
		return 1
	}
	aExt, _ := extOf(a)
	bExt, _ := extOf(b)
	return strings.Compare(aExt, bExt)
}
