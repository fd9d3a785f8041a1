package hashing

import (
	"encoding/binary"
	"errors"
	"io"
)

var errInvalidJPEG = errors.New("hashing: invalid JPEG marker structure")

// jpegExtractor computes the JPEG content hash: verify the SOI marker,
// walk segment headers skipping their payloads, and once SOS is
// reached, treat everything from the SOS marker to EOF (scan header
// plus entropy-coded data) as content. Exif/APPn segments before SOS
// never affect the content hash.
type jpegExtractor struct{}

func (jpegExtractor) Version() int { return 1 }

func (jpegExtractor) Extract(r io.ReaderAt, size int64) ([]ByteRange, error) {
	var soi [2]byte
	if _, err := r.ReadAt(soi[:], 0); err != nil {
		return nil, err
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return nil, errInvalidJPEG
	}

	pos := int64(2)
	for {
		if pos+2 > size {
			return nil, errInvalidJPEG
		}
		var marker [2]byte
		if _, err := r.ReadAt(marker[:], pos); err != nil {
			return nil, err
		}
		if marker[0] != 0xFF {
			return nil, errInvalidJPEG
		}
		tag := marker[1]
		pos += 2

		// Markers with no following length/payload.
		if tag == 0x01 || (tag >= 0xD0 && tag <= 0xD9) {
			if tag == 0xD9 { // EOI before SOS: malformed for our purposes
				return nil, errInvalidJPEG
			}
			continue
		}
		if tag == 0xDA {
			// Start of Scan: everything from the marker itself through EOF
			// is the content hash.
			start := pos - 2
			return []ByteRange{{Offset: start, Length: size - start}}, nil
		}

		if pos+2 > size {
			return nil, errInvalidJPEG
		}
		var lenBuf [2]byte
		if _, err := r.ReadAt(lenBuf[:], pos); err != nil {
			return nil, err
		}
		segLen := int64(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return nil, errInvalidJPEG
		}
		pos += segLen
	}
}
