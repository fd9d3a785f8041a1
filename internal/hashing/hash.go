// Package hashing computes the two digests the rest of orphdat caches: a
// content hash (stable across metadata edits, where the format allows it)
// and a full hash over every byte. Content extraction is pluggable per
// MIME type via a MIME-keyed, interface-based registry of extractors.
package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"log"
	"os"

	"github.com/whatsoevan/orphdat/internal/ftype"
)

// Record is the subset of store.HashRecord this package can produce on its
// own, before the filesystem-derived fields (filename, size, mtime) are
// stitched in by internal/store.
type Record struct {
	Version int
	MD5     string
	FullMD5 string
}

// ByteRange is a half-open [Offset, Offset+Length) span of a file that an
// Extractor considers part of a format's "content."
type ByteRange struct {
	Offset int64
	Length int64
}

// Extractor locates the content-bearing byte ranges of one MIME type.
// Implementations must not mutate or buffer the whole file; size is given
// so an implementation can validate trailing box/segment boundaries.
type Extractor interface {
	// Version is the current algorithm version for this MIME type. Bumping
	// it here is the only step needed to invalidate every previously
	// cached record for the type (internal/store compares against it).
	Version() int
	// Extract returns, in file order, the byte ranges that make up the
	// format's content (pixel/stream data). A non-nil error means the
	// format could not be parsed; the caller falls back to full-file
	// hashing and logs a warning, per spec.
	Extract(r io.ReaderAt, size int64) ([]ByteRange, error)
}

var registry = map[string]Extractor{
	"image/jpeg":      jpegExtractor{},
	"image/png":       pngExtractor{},
	"video/mp4v-es":   mp4Extractor{},
	"video/quicktime": movExtractor{},
	"image/heic":      heicExtractor{},
}

// lastMeaningfulVersion matches the registry's Version() for the MIME type,
// except for MIME types this package has no extractor for, where whole-file
// hashing is the permanent, version-0 algorithm.
func lastMeaningfulVersion(mime string) int {
	if ex, ok := registry[mime]; ok {
		return ex.Version()
	}
	return 0
}

// IsHashVersionCurrent reports whether v is at least as new as the last
// meaningful algorithm version for path's MIME type. Unsupported MIME types
// are always current: their algorithm (whole file) never changes.
func IsHashVersionCurrent(path string, v int) bool {
	mime := ftype.MimeOf(path)
	if _, ok := registry[mime]; !ok {
		return true
	}
	return v >= lastMeaningfulVersion(mime)
}

// CalculateHash opens path, streams the full file once for FullMD5, then
// rewinds and applies the format-specific extractor selected by MIME type.
// If no extractor is registered, or the registered one fails to parse the
// file, MD5 is set equal to FullMD5 and Version reflects the fallback
// (0 for unsupported types, the extractor's declared version when a parse
// failure forced the fallback). A successful content-hash computation
// always yields a record where MD5 reflects pixel/stream data, never
// file bytes outside it.
func CalculateHash(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Record{}, err
	}
	size := info.Size()

	fullSum, err := streamMD5(io.NewSectionReader(f, 0, size))
	if err != nil {
		return Record{}, err
	}
	full := hex.EncodeToString(fullSum)

	mime := ftype.MimeOf(path)
	extractor, ok := registry[mime]
	if !ok {
		return Record{Version: 0, MD5: full, FullMD5: full}, nil
	}

	ranges, err := extractor.Extract(f, size)
	if err != nil {
		// Format error: warn and fall back to whole-file, per spec.
		log.Printf("warning: %s: %v; using full-file hash as content hash", path, err)
		return Record{Version: extractor.Version(), MD5: full, FullMD5: full}, nil
	}

	h := md5.New()
	for _, rg := range ranges {
		if err := copyRange(h, f, rg.Offset, rg.Length); err != nil {
			log.Printf("warning: %s: %v; using full-file hash as content hash", path, err)
			return Record{Version: extractor.Version(), MD5: full, FullMD5: full}, nil
		}
	}
	content := hex.EncodeToString(h.Sum(nil))

	return Record{Version: extractor.Version(), MD5: content, FullMD5: full}, nil
}

// chunkSize is the streaming discipline the spec requires: never load a
// whole file, never a whole bounded range, in memory at once.
const chunkSize = 1024

func streamMD5(r io.Reader) ([]byte, error) {
	h := md5.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// copyRange feeds exactly length bytes starting at offset from r into w, in
// chunkSize pieces.
func copyRange(w io.Writer, r io.ReaderAt, offset, length int64) error {
	sr := io.NewSectionReader(r, offset, length)
	buf := make([]byte, chunkSize)
	_, err := io.CopyBuffer(w, sr, buf)
	return err
}
