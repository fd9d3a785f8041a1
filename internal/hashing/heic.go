package hashing

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	errNoPrimaryItem = errors.New("hashing: primary item descriptor not found")
	errUnsupportedIloc = errors.New("hashing: unsupported item-location construction method")
)

// heicExtractor handles image/heic: parse the ISOBMFF box tree to locate
// the primary item (via the 'meta' box's 'pitm'), then follow the
// 'iloc' item-location table to get the coded extents of that item and
// hash those byte ranges in file order.
type heicExtractor struct{}

func (heicExtractor) Version() int { return 6 }

func (heicExtractor) Extract(r io.ReaderAt, size int64) ([]ByteRange, error) {
	ftypBox, err := readBox(r, 0, size)
	if err != nil || ftypBox.typ != "ftyp" {
		return nil, errInvalidISOBMFF
	}
	major, compatible, err := readFtyp(r, ftypBox)
	if err != nil {
		return nil, err
	}
	if !brandAccepted(major, compatible, heicBrands) {
		return nil, errUnsupportedBrand
	}

	metaBox, err := findTopLevelBox(r, ftypBox.end(), size, "meta")
	if err != nil {
		return nil, err
	}

	// 'meta' is a full box: 4 bytes of version/flags precede its children.
	childrenStart := metaBox.dataOffset + 4
	childrenEnd := metaBox.end()

	pitmBox, err := findChildBox(r, childrenStart, childrenEnd, "pitm")
	if err != nil {
		return nil, err
	}
	primaryID, err := readPitmID(r, pitmBox)
	if err != nil {
		return nil, err
	}

	ilocBox, err := findChildBox(r, childrenStart, childrenEnd, "iloc")
	if err != nil {
		return nil, err
	}
	extents, err := readIlocExtents(r, ilocBox, primaryID)
	if err != nil {
		return nil, err
	}
	if len(extents) == 0 {
		return nil, errNoPrimaryItem
	}
	return extents, nil
}

// findTopLevelBox scans boxes from pos to end looking for typ, not
// descending into children (ftyp/mdat/meta/moov are siblings at this
// level).
func findTopLevelBox(r io.ReaderAt, pos, end int64, typ string) (box, error) {
	for pos < end {
		b, err := readBox(r, pos, end)
		if err != nil {
			return box{}, err
		}
		if b.typ == typ {
			return b, nil
		}
		pos = b.end()
	}
	return box{}, errInvalidISOBMFF
}

// findChildBox is identical to findTopLevelBox; named separately because it
// operates on a container box's data region rather than the file's
// top-level box list.
func findChildBox(r io.ReaderAt, pos, end int64, typ string) (box, error) {
	return findTopLevelBox(r, pos, end, typ)
}

func readPitmID(r io.ReaderAt, b box) (uint32, error) {
	if b.dataSize < 4 {
		return 0, errInvalidISOBMFF
	}
	var verFlags [4]byte
	if _, err := r.ReadAt(verFlags[:], b.dataOffset); err != nil {
		return 0, err
	}
	version := verFlags[0]
	if version == 0 {
		var idBuf [2]byte
		if _, err := r.ReadAt(idBuf[:], b.dataOffset+4); err != nil {
			return 0, err
		}
		return uint32(binary.BigEndian.Uint16(idBuf[:])), nil
	}
	var idBuf [4]byte
	if _, err := r.ReadAt(idBuf[:], b.dataOffset+4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(idBuf[:]), nil
}

// readIlocExtents parses the common (construction_method == 0, i.e.
// file-offset-based) form of the 'iloc' box and returns the byte ranges of
// the item matching targetID, in the order they're listed.
func readIlocExtents(r io.ReaderAt, b box, targetID uint32) ([]ByteRange, error) {
	pos := b.dataOffset
	var verFlags [4]byte
	if _, err := r.ReadAt(verFlags[:], pos); err != nil {
		return nil, err
	}
	version := verFlags[0]
	pos += 4

	var sizesByte [2]byte
	if _, err := r.ReadAt(sizesByte[:], pos); err != nil {
		return nil, err
	}
	offsetSize := int(sizesByte[0] >> 4)
	lengthSize := int(sizesByte[0] & 0x0F)
	baseOffsetSize := int(sizesByte[1] >> 4)
	indexSize := int(sizesByte[1] & 0x0F)
	pos += 2

	readUint := func(n int) (uint64, error) {
		if n == 0 {
			return 0, nil
		}
		buf := make([]byte, n)
		if _, err := r.ReadAt(buf, pos); err != nil {
			return 0, err
		}
		pos += int64(n)
		var v uint64
		for _, bb := range buf {
			v = v<<8 | uint64(bb)
		}
		return v, nil
	}

	var itemCount uint32
	if version < 2 {
		var buf [2]byte
		if _, err := r.ReadAt(buf[:], pos); err != nil {
			return nil, err
		}
		itemCount = uint32(binary.BigEndian.Uint16(buf[:]))
		pos += 2
	} else {
		var buf [4]byte
		if _, err := r.ReadAt(buf[:], pos); err != nil {
			return nil, err
		}
		itemCount = binary.BigEndian.Uint32(buf[:])
		pos += 4
	}

	var result []ByteRange
	for i := uint32(0); i < itemCount; i++ {
		var itemID uint32
		if version < 2 {
			v, err := readUint(2)
			if err != nil {
				return nil, err
			}
			itemID = uint32(v)
		} else {
			v, err := readUint(4)
			if err != nil {
				return nil, err
			}
			itemID = uint32(v)
		}

		constructionMethod := uint16(0)
		if version == 1 || version == 2 {
			v, err := readUint(2)
			if err != nil {
				return nil, err
			}
			constructionMethod = uint16(v) & 0x0F
		}

		if _, err := readUint(2); err != nil { // data_reference_index
			return nil, err
		}
		baseOffset, err := readUint(baseOffsetSize)
		if err != nil {
			return nil, err
		}

		var extentCountBuf [2]byte
		if _, err := r.ReadAt(extentCountBuf[:], pos); err != nil {
			return nil, err
		}
		extentCount := binary.BigEndian.Uint16(extentCountBuf[:])
		pos += 2

		var itemExtents []ByteRange
		for e := uint16(0); e < extentCount; e++ {
			if indexSize > 0 && (version == 1 || version == 2) {
				if _, err := readUint(indexSize); err != nil {
					return nil, err
				}
			}
			extOffset, err := readUint(offsetSize)
			if err != nil {
				return nil, err
			}
			extLength, err := readUint(lengthSize)
			if err != nil {
				return nil, err
			}
			itemExtents = append(itemExtents, ByteRange{
				Offset: int64(baseOffset) + int64(extOffset),
				Length: int64(extLength),
			})
		}

		if itemID == targetID {
			if constructionMethod != 0 {
				return nil, errUnsupportedIloc
			}
			result = itemExtents
		}
	}

	return result, nil
}
