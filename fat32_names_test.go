package main

import "testing"

// TestSfnRoundTrip verifies that expanding an 8.3 name and
// canonicalising it back reproduces the original 11 bytes.
func TestSfnRoundTrip(t *testing.T) {
	cases := []string{
		"KERNEL  BIN",
		"README     ",
		"A          ",
		"KARLA   TTF",
		"NO_EXT     ",
		"12345678TXT",
	}
	for _, c := range cases {
		name := sfnToFileName([]byte(c))
		var back [11]byte
		if !fileNameToSfn(name, &back) {
			t.Fatalf("%q: canonicalisation of %q failed", c, name)
		}
		if string(back[:]) != c {
			t.Fatalf("round trip %q -> %q -> %q", c, name, string(back[:]))
		}
	}
}

// TestFileNameToSfnRules verifies padding, case folding, dot entries
// and rejection of names no short entry can carry.
func TestFileNameToSfnRules(t *testing.T) {
	var sfn [11]byte

	if !fileNameToSfn("karla.ttf", &sfn) || string(sfn[:]) != "KARLA   TTF" {
		t.Fatalf("karla.ttf -> %q", string(sfn[:]))
	}
	if !fileNameToSfn(".", &sfn) || string(sfn[:]) != ".          " {
		t.Fatalf("dot entry -> %q", string(sfn[:]))
	}
	if !fileNameToSfn("..", &sfn) || string(sfn[:]) != "..         " {
		t.Fatalf("dot-dot entry -> %q", string(sfn[:]))
	}

	for _, bad := range []string{
		"toolongbasename.txt", // more than eight before the dot
		"file.text",           // four-character extension
		"with space",          // space is not a short-name character
		"semi;colon",          // illegal character
		"",
	} {
		if fileNameToSfn(bad, &sfn) {
			t.Fatalf("%q unexpectedly canonicalised", bad)
		}
	}
}

// TestLfnChecksum verifies the shift-add-rotate checksum against the
// classic reference vector and stability across the builder.
func TestLfnChecksum(t *testing.T) {
	// Hand-computed vector: checksum of "FILENAMEEXT".
	if got := fatGetSfnCrc([]byte("FILENAMEEXT")); got != 0xF6 {
		t.Fatalf("checksum of FILENAMEEXT = 0x%02X, expected 0xF6", got)
	}

	// The tilde-mangled short name the builder derives, and its
	// hand-computed checksum.
	sfn := shortNameFor("a long file name.txt")
	if string(sfn[:]) != "ALONGF~1TXT" {
		t.Fatalf("derived short name %q, expected ALONGF~1TXT", string(sfn[:]))
	}
	if got := fatGetSfnCrc(sfn[:]); got != 0x02 {
		t.Fatalf("checksum of ALONGF~1TXT = 0x%02X, expected 0x02", got)
	}
}

// TestLfnExtraction verifies the 13 code units come out of the three
// fixed entry slots in order.
func TestLfnExtraction(t *testing.T) {
	var entry [32]byte
	entry[LFN_SEQ] = 1 | 1<<6
	entry[LFN_ATTR] = ATTR_LFN

	name := "karla.ttf"
	unit := 0
	for _, idx := range lfnIndex {
		for j := 0; j < idx.size; j++ {
			off := idx.offset + j*2
			switch {
			case unit < len(name):
				entry[off] = name[unit]
			case unit == len(name):
				entry[off] = 0
			default:
				entry[off] = 0xFF
				entry[off+1] = 0xFF
			}
			unit++
		}
	}

	var buf [13]byte
	n := fatGetLfnName(entry[:], buf[:])
	if string(buf[:n]) != name {
		t.Fatalf("extracted %q, expected %q", string(buf[:n]), name)
	}
}

// TestNextPathFrag verifies slash-path decomposition including
// repeated separators.
func TestNextPathFrag(t *testing.T) {
	path := "/fonts//karla.ttf"
	frag, pos := nextPathFrag(path, 0)
	if frag != "fonts" {
		t.Fatalf("first fragment %q", frag)
	}
	frag, pos = nextPathFrag(path, pos)
	if frag != "karla.ttf" {
		t.Fatalf("second fragment %q", frag)
	}
	frag, _ = nextPathFrag(path, pos)
	if frag != "" {
		t.Fatalf("trailing fragment %q", frag)
	}
}
