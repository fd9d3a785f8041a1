package hashing

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	errInvalidISOBMFF   = errors.New("hashing: invalid ISOBMFF box structure")
	errUnsupportedBrand = errors.New("hashing: unsupported ISOBMFF brand")
	errNoMdat           = errors.New("hashing: no mdat box found")
)

// box is one top-level ISOBMFF box: [size(4 or size64) type(4) data...].
// Honors the 32-bit, 64-bit largesize, and "size==0 means to EOF"
// conventions.
type box struct {
	typ        string
	dataOffset int64
	dataSize   int64
}

func (b box) end() int64 { return b.dataOffset + b.dataSize }

func readBox(r io.ReaderAt, pos, fileSize int64) (box, error) {
	if pos+8 > fileSize {
		return box{}, errInvalidISOBMFF
	}
	var sizeBuf [4]byte
	if _, err := r.ReadAt(sizeBuf[:], pos); err != nil {
		return box{}, err
	}
	size32 := binary.BigEndian.Uint32(sizeBuf[:])

	var typeBuf [4]byte
	if _, err := r.ReadAt(typeBuf[:], pos+4); err != nil {
		return box{}, err
	}
	typ := string(typeBuf[:])

	switch size32 {
	case 0:
		// Size extends to EOF.
		return box{typ: typ, dataOffset: pos + 8, dataSize: fileSize - (pos + 8)}, nil
	case 1:
		if pos+16 > fileSize {
			return box{}, errInvalidISOBMFF
		}
		var largeBuf [8]byte
		if _, err := r.ReadAt(largeBuf[:], pos+8); err != nil {
			return box{}, err
		}
		total := int64(binary.BigEndian.Uint64(largeBuf[:]))
		if total < 16 {
			return box{}, errInvalidISOBMFF
		}
		return box{typ: typ, dataOffset: pos + 16, dataSize: total - 16}, nil
	default:
		total := int64(size32)
		if total < 8 {
			return box{}, errInvalidISOBMFF
		}
		return box{typ: typ, dataOffset: pos + 8, dataSize: total - 8}, nil
	}
}

// readFtyp parses an ftyp box's data (already located at b.dataOffset) into
// its major brand and compatible-brand list.
func readFtyp(r io.ReaderAt, b box) (major string, compatible []string, err error) {
	if b.dataSize < 8 {
		return "", nil, errInvalidISOBMFF
	}
	var majorBuf [4]byte
	if _, err := r.ReadAt(majorBuf[:], b.dataOffset); err != nil {
		return "", nil, err
	}
	major = string(majorBuf[:])

	count := (b.dataSize - 8) / 4
	for i := int64(0); i < count; i++ {
		var buf [4]byte
		if _, err := r.ReadAt(buf[:], b.dataOffset+8+i*4); err != nil {
			return "", nil, err
		}
		compatible = append(compatible, string(buf[:]))
	}
	return major, compatible, nil
}

// promoteBrand applies the rule: if major brand is "isom" and exactly
// one non-isom compatible brand exists, promote that brand instead,
// since "isom" alone is too generic to pick an extractor from.
func promoteBrand(major string, compatible []string) string {
	if major != "isom" {
		return major
	}
	var nonIsom []string
	for _, c := range compatible {
		if c != "isom" {
			nonIsom = append(nonIsom, c)
		}
	}
	if len(nonIsom) == 1 {
		return nonIsom[0]
	}
	return major
}

func brandAccepted(major string, compatible []string, allowed map[string]bool) bool {
	if allowed[major] {
		return true
	}
	for _, c := range compatible {
		if allowed[c] {
			return true
		}
	}
	return false
}

// findMdat walks top-level boxes starting at pos until it finds the first
// mdat, returning its payload range.
func findMdat(r io.ReaderAt, pos, fileSize int64) (ByteRange, error) {
	for pos < fileSize {
		b, err := readBox(r, pos, fileSize)
		if err != nil {
			return ByteRange{}, err
		}
		if b.typ == "mdat" {
			return ByteRange{Offset: b.dataOffset, Length: b.dataSize}, nil
		}
		if b.dataSize < 0 {
			return ByteRange{}, errInvalidISOBMFF
		}
		pos = b.end()
	}
	return ByteRange{}, errNoMdat
}

var mp4Brands = map[string]bool{"mp41": true, "mp42": true, "isom": true}
var movBrands = map[string]bool{"qt  ": true, "isom": true}
var heicBrands = map[string]bool{"mp41": true, "mp42": true, "heic": true}

// mp4Extractor handles video/mp4v-es.
type mp4Extractor struct{}

func (mp4Extractor) Version() int { return 2 }

func (mp4Extractor) Extract(r io.ReaderAt, size int64) ([]ByteRange, error) {
	rg, err := extractISOBMFFMdat(r, size, mp4Brands)
	if err != nil {
		return nil, err
	}
	return []ByteRange{rg}, nil
}

// movExtractor handles video/quicktime.
type movExtractor struct{}

func (movExtractor) Version() int { return 7 }

func (movExtractor) Extract(r io.ReaderAt, size int64) ([]ByteRange, error) {
	rg, err := extractISOBMFFMdat(r, size, movBrands)
	if err != nil {
		return nil, err
	}
	return []ByteRange{rg}, nil
}

func extractISOBMFFMdat(r io.ReaderAt, size int64, allowed map[string]bool) (ByteRange, error) {
	ftypBox, err := readBox(r, 0, size)
	if err != nil || ftypBox.typ != "ftyp" {
		return ByteRange{}, errInvalidISOBMFF
	}
	major, compatible, err := readFtyp(r, ftypBox)
	if err != nil {
		return ByteRange{}, err
	}
	promoted := promoteBrand(major, compatible)
	if !brandAccepted(major, compatible, allowed) && !allowed[promoted] {
		return ByteRange{}, errUnsupportedBrand
	}
	return findMdat(r, ftypBox.end(), size)
}
