// Package metadata is the archive's tag collaborator: it resolves a
// file's capture date for the duplicate engine and reads/writes the
// keyword/rating tags that append-metadata operates on.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Tags is the "tag name → value" mapping append-metadata reads and
// writes; the core never interprets individual tag semantics beyond the
// date fields it looks up by name.
type Tags map[string]string

// Extractor resolves capture dates and reads/writes tag sets for a file.
// Two implementations are provided: ExifToolExtractor shells out to
// exiftool (authoritative, slow), GoexifExtractor decodes EXIF in-process
// (JPEG/HEIC only, fast, read-only).
type Extractor interface {
	ReadTags(path string) (Tags, error)
	WriteTags(path string, tags Tags) error
	DateTaken(path string) (time.Time, bool)
}

// dateFieldsInOrder lists the tag names tried, in preference order:
// EXIF original capture time, Apple Photos' creation date, then
// QuickTime's container-level create date.
var dateFieldsInOrder = []string{
	"ExifIFD:DateTimeOriginal",
	"Keys:CreationDate",
	"Quicktime:CreateDate",
}

// dateLayouts are tried in order against each field's raw value; time
// zones are dropped once parsed.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04:05",
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// bestDate scans tags for the first populated field in dateFieldsInOrder
// that parses as a date.
func bestDate(tags Tags) (time.Time, bool) {
	for _, field := range dateFieldsInOrder {
		raw, ok := tags[field]
		if !ok || raw == "" {
			continue
		}
		if t, ok := parseDate(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExifToolExtractor shells out to exiftool -j/-tag=value, since it's the
// one tool that both reads and writes tags across JPEG/HEIC/video/XMP
// uniformly.
type ExifToolExtractor struct {
	// Path is the exiftool binary to invoke; defaults to "exiftool".
	Path string
}

func (e ExifToolExtractor) binary() string {
	if e.Path == "" {
		return "exiftool"
	}
	return e.Path
}

func (e ExifToolExtractor) ReadTags(path string) (Tags, error) {
	cmd := exec.Command(e.binary(), "-j", "-G1", "-s", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("metadata: exiftool read %s: %w", path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("metadata: parse exiftool output for %s: %w", path, err)
	}
	if len(records) == 0 {
		return Tags{}, nil
	}

	tags := make(Tags, len(records[0]))
	for k, v := range records[0] {
		tags[k] = fmt.Sprintf("%v", v)
	}
	return tags, nil
}

func (e ExifToolExtractor) WriteTags(path string, tags Tags) error {
	args := make([]string, 0, len(tags)+3)
	for k, v := range tags {
		args = append(args, fmt.Sprintf("-%s=%s", k, v))
	}
	args = append(args, "-overwrite_original", path)
	cmd := exec.Command(e.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("metadata: exiftool write %s: %w (%s)", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e ExifToolExtractor) DateTaken(path string) (time.Time, bool) {
	tags, err := e.ReadTags(path)
	if err != nil {
		return time.Time{}, false
	}
	return bestDate(tags)
}

// GoexifExtractor decodes EXIF in-process via rwcarlsen/goexif: try
// DateTimeOriginal, then DateTimeDigitized, then DateTime, parsing the
// classic "2006:01:02 15:04:05" EXIF layout. It only handles JPEG/HEIC
// and never writes; it exists as a fast, dependency-light fallback when
// exiftool is unavailable.
type GoexifExtractor struct{}

func (GoexifExtractor) ReadTags(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("metadata: decode EXIF for %s: %w", path, err)
	}

	tags := Tags{}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if s, err := tag.StringVal(); err == nil {
			tags[string(field)] = s
		}
	}
	return tags, nil
}

func (GoexifExtractor) WriteTags(path string, tags Tags) error {
	return fmt.Errorf("metadata: goexif extractor is read-only, cannot write tags for %s", path)
}

func (GoexifExtractor) DateTaken(path string) (time.Time, bool) {
	tags, err := GoexifExtractor{}.ReadTags(path)
	if err != nil {
		return time.Time{}, false
	}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		raw, ok := tags[string(field)]
		if !ok {
			continue
		}
		if t, err := time.Parse("2006:01:02 15:04:05", raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FallbackExtractor tries a primary Extractor (typically ExifToolExtractor)
// and falls back to a secondary (typically GoexifExtractor) on error.
type FallbackExtractor struct {
	Primary, Secondary Extractor
}

func (f FallbackExtractor) ReadTags(path string) (Tags, error) {
	tags, err := f.Primary.ReadTags(path)
	if err == nil {
		return tags, nil
	}
	return f.Secondary.ReadTags(path)
}

func (f FallbackExtractor) WriteTags(path string, tags Tags) error {
	return f.Primary.WriteTags(path, tags)
}

func (f FallbackExtractor) DateTaken(path string) (time.Time, bool) {
	if t, ok := f.Primary.DateTaken(path); ok {
		return t, true
	}
	return f.Secondary.DateTaken(path)
}

// New builds the default extractor chain: exiftool first, goexif as a
// dependency-light fallback for JPEG/HEIC when exiftool is missing.
func New(exiftoolPath string) Extractor {
	return FallbackExtractor{
		Primary:   ExifToolExtractor{Path: exiftoolPath},
		Secondary: GoexifExtractor{},
	}
}
