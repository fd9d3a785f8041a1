package hashing

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func buildJPEG(exifComment string, scanData []byte) []byte {
	var buf []byte
	buf = append(buf, 0xFF, 0xD8) // SOI

	// APP1/Exif-shaped segment carrying the variable comment.
	payload := append([]byte("Exif\x00\x00"), []byte(exifComment)...)
	segLen := make([]byte, 2)
	binary.BigEndian.PutUint16(segLen, uint16(len(payload)+2))
	buf = append(buf, 0xFF, 0xE1)
	buf = append(buf, segLen...)
	buf = append(buf, payload...)

	// SOS marker + header + compressed scan data.
	buf = append(buf, 0xFF, 0xDA)
	sosLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sosLen, 2)
	buf = append(buf, sosLen...)
	buf = append(buf, scanData...)
	buf = append(buf, 0xFF, 0xD9) // EOI, part of "remainder of file"
	return buf
}

func TestJPEGContentHashStableAcrossMetadataEdit(t *testing.T) {
	dir := t.TempDir()
	scan := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	a := writeTemp(t, dir, "a.jpg", buildJPEG("original comment", scan))
	b := writeTemp(t, dir, "b.jpg", buildJPEG("totally different comment, much longer", scan))

	ra, err := CalculateHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	rb, err := CalculateHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}

	if ra.MD5 != rb.MD5 {
		t.Errorf("content hash changed after metadata-only edit: %s vs %s", ra.MD5, rb.MD5)
	}
	if ra.FullMD5 == rb.FullMD5 {
		t.Errorf("full hash did not change despite different bytes")
	}
	if ra.Version != 1 || rb.Version != 1 {
		t.Errorf("expected jpeg version 1, got %d and %d", ra.Version, rb.Version)
	}
}

func TestJPEGInvalidFallsBackToFullHash(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "bad.jpg", []byte{0x00, 0x01, 0x02})

	r, err := CalculateHash(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MD5 != r.FullMD5 {
		t.Errorf("expected fallback md5 == full_md5 for malformed jpeg")
	}
}

func buildPNG(extraTextChunk bool) []byte {
	var buf []byte
	buf = append(buf, pngSignature...)

	writeChunk := func(typ string, data []byte) {
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
		buf = append(buf, lenBuf...)
		buf = append(buf, []byte(typ)...)
		buf = append(buf, data...)
		buf = append(buf, 0, 0, 0, 0) // fake CRC, never validated
	}

	writeChunk("IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0})
	if extraTextChunk {
		writeChunk("tEXt", []byte("Comment\x00hello"))
	}
	writeChunk("IDAT", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	writeChunk("IEND", nil)
	return buf
}

func TestPNGContentHashIgnoresTextChunks(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.png", buildPNG(false))
	b := writeTemp(t, dir, "b.png", buildPNG(true))

	ra, err := CalculateHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	rb, err := CalculateHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}

	if ra.MD5 != rb.MD5 {
		t.Errorf("content hash changed after adding a tEXt chunk: %s vs %s", ra.MD5, rb.MD5)
	}
	if ra.FullMD5 == rb.FullMD5 {
		t.Errorf("full hash did not change despite added bytes")
	}
}

func TestCalculateHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.jpg", buildJPEG("x", []byte{1, 2, 3}))

	r1, err := CalculateHash(path)
	if err != nil {
		t.Fatalf("first hash: %v", err)
	}
	r2, err := CalculateHash(path)
	if err != nil {
		t.Fatalf("second hash: %v", err)
	}
	if r1 != r2 {
		t.Errorf("CalculateHash not deterministic: %+v vs %+v", r1, r2)
	}
}

func buildMP4(mdatPayload []byte) []byte {
	var buf []byte

	ftypData := append([]byte("isom"), 0, 0, 0, 0)
	ftypData = append(ftypData, []byte("mp42")...)
	ftypLen := make([]byte, 4)
	binary.BigEndian.PutUint32(ftypLen, uint32(8+len(ftypData)))
	buf = append(buf, ftypLen...)
	buf = append(buf, []byte("ftyp")...)
	buf = append(buf, ftypData...)

	moovLen := make([]byte, 4)
	binary.BigEndian.PutUint32(moovLen, 8)
	buf = append(buf, moovLen...)
	buf = append(buf, []byte("moov")...)

	mdatLen := make([]byte, 4)
	binary.BigEndian.PutUint32(mdatLen, uint32(8+len(mdatPayload)))
	buf = append(buf, mdatLen...)
	buf = append(buf, []byte("mdat")...)
	buf = append(buf, mdatPayload...)

	return buf
}

func TestMP4ContentHashOnlyCoversMdat(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("pretend video bytes")
	path := writeTemp(t, dir, "a.mp4", buildMP4(payload))

	r, err := CalculateHash(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if r.Version != 2 {
		t.Errorf("expected mp4 version 2, got %d", r.Version)
	}
	if r.MD5 == r.FullMD5 {
		t.Errorf("expected content hash to differ from full hash (moov box excluded)")
	}
}

func TestIsHashVersionCurrent(t *testing.T) {
	dir := t.TempDir()
	jpg := writeTemp(t, dir, "a.jpg", buildJPEG("c", []byte{1}))
	txt := writeTemp(t, dir, "a.txt", []byte("not media"))

	if IsHashVersionCurrent(jpg, 0) {
		t.Errorf("version 0 should be stale for jpeg (current is 1)")
	}
	if !IsHashVersionCurrent(jpg, 1) {
		t.Errorf("version 1 should be current for jpeg")
	}
	if !IsHashVersionCurrent(txt, 0) {
		t.Errorf("unsupported mime types are always current")
	}
}
