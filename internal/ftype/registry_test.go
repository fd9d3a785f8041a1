package ftype

import "testing"

func TestLookupRecognizesCoreExtensions(t *testing.T) {
	if got := MimeOf("a/b/IMG_0001.JPG"); got != "image/jpeg" {
		t.Errorf("got %q, want image/jpeg", got)
	}
	if got := MimeOf("a/b/clip.mov"); got != "video/quicktime" {
		t.Errorf("got %q, want video/quicktime", got)
	}
	if got := MimeOf("a/b/unknown.xyz"); got != "" {
		t.Errorf("expected empty MIME for unrecognized extension, got %q", got)
	}
}

func TestStripBackupSuffixHandlesAllMarkers(t *testing.T) {
	cases := map[string]string{
		"IMG_0001.jpg.bak":             "IMG_0001.jpg",
		"IMG_0001_original.jpg":        "IMG_0001.jpg",
		"IMG_0001.jpg~20240101-120000": "IMG_0001.jpg",
	}
	for in, want := range cases {
		got, isBackup := stripBackupSuffix(in)
		if !isBackup {
			t.Errorf("%q: expected recognized backup suffix", in)
		}
		if got != want {
			t.Errorf("%q: got %q, want %q", in, got, want)
		}
	}
}

func TestComparePathsOrdersMediaBeforeItsSidecar(t *testing.T) {
	if ComparePaths("a/IMG_0001.jpg", "a/IMG_0001.xmp") >= 0 {
		t.Errorf("expected primary media to sort before its XMP sidecar")
	}
}

func TestExtOrderUnrecognizedSortsLast(t *testing.T) {
	if ExtOrder("a/IMG_0001.jpg") >= ExtOrder("a/unknown.zzz") {
		t.Errorf("expected unrecognized extension to sort after recognized ones")
	}
}
