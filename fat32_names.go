// fat32_names.go - FAT32 name handling for the Citrus Engine

/*
 ██████╗ ██╗ ████████╗ ██████╗  ██╗   ██╗ ███████╗     ███████╗ ███╗   ██╗  ██████╗  ██╗ ███╗   ██╗ ███████╗
██╔════╝ ██║ ╚══██╔══╝ ██╔══██╗ ██║   ██║ ██╔════╝     ██╔════╝ ████╗  ██║ ██╔════╝  ██║ ████╗  ██║ ██╔════╝
██║      ██║    ██║    ██████╔╝ ██║   ██║ ███████╗     █████╗   ██╔██╗ ██║ ██║  ███╗ ██║ ██╔██╗ ██║ █████╗
██║      ██║    ██║    ██╔══██╗ ██║   ██║ ╚════██║     ██╔══╝   ██║╚██╗██║ ██║   ██║ ██║ ██║╚██╗██║ ██╔══╝
╚██████╗ ██║    ██║    ██║  ██║ ╚██████╔╝ ███████║     ███████╗ ██║ ╚████║ ╚██████╔╝ ██║ ██║ ╚████║ ███████╗
 ╚═════╝ ╚═╝    ╚═╝    ╚═╝  ╚═╝  ╚═════╝  ╚══════╝     ╚══════╝ ╚═╝  ╚═══╝  ╚═════╝  ╚═╝ ╚═╝  ╚═══╝ ╚══════╝

(c) 2025 - 2026 The CitrusEngine Authors
https://github.com/citrusos/CitrusEngine

License: GPLv3 or later
*/

/*
fat32_names.go - FAT32 Name Handling for the Citrus Engine

Everything about names: canonicalising a path fragment into the 11
byte 8.3 short form (including the dot and dot-dot directory entries),
expanding a short name back into a printable one, pulling the 13 code
units out of a long-name entry at the three fixed slots, and the
shift-add-rotate checksum that ties a long-name chain to its short
entry.
*/

package main

// Directory entry field offsets.
const (
	SFN_NAME      = 0
	SFN_ATTR      = 11
	SFN_NTR       = 12
	SFN_CTIME_TH  = 13
	SFN_CTIME     = 14
	SFN_CDATE     = 16
	SFN_ADATE     = 18
	SFN_CLUSTH    = 20
	SFN_WTIME     = 22
	SFN_WDATE     = 24
	SFN_CLUSTL    = 26
	SFN_FILE_SIZE = 28

	LFN_SEQ     = 0
	LFN_SEQ_MSK = 0x1F
	LFN_ATTR    = 11
	LFN_TYPE    = 12
	LFN_CRC     = 13

	ATTR_RO        = 0x01
	ATTR_HIDD      = 0x02
	ATTR_SYS       = 0x04
	ATTR_VOL_LABEL = 0x08
	ATTR_DIR       = 0x10
	ATTR_ARCH      = 0x20
	ATTR_LFN       = 0x0F

	DIR_ENTRY_SIZE = 32
)

// The three name slots inside one LFN entry: offset and code-unit
// count for each.
var lfnIndex = [3]struct {
	size   int
	offset int
}{
	{size: 5, offset: 1},
	{size: 6, offset: 14},
	{size: 2, offset: 28},
}

func fatToUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	return c
}

func fatToLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 32
	}
	return c
}

// Characters that may never appear in a short name.
var illegalSfnChars = [...]byte{
	0x22, 0x2A, 0x2B, 0x2C, 0x2E, 0x2F, 0x3A, 0x3B,
	0x3C, 0x3D, 0x3E, 0x3F, 0x5B, 0x5C, 0x5D, 0x7C,
}

func isSfnCharValid(c byte) bool {
	for _, ill := range illegalSfnChars {
		if c == ill {
			return false
		}
	}
	return c >= 0x20
}

// sfnToFileName expands an 11-byte short name into its printable
// form: lowercased, space padding stripped, a dot before a non-empty
// extension.
func sfnToFileName(sfn []byte) string {
	var buf []byte

	var i int
	for i = 0; i < 8; i++ {
		if sfn[i] == ' ' {
			break
		}
		buf = append(buf, fatToLower(sfn[i]))
	}

	ext := []byte{}
	for j := 0; j < 3; j++ {
		if sfn[8+j] == ' ' {
			break
		}
		ext = append(ext, fatToLower(sfn[8+j]))
	}

	if len(ext) > 0 {
		buf = append(buf, '.')
		buf = append(buf, ext...)
	}
	return string(buf)
}

// fatDotFileNameToSfn handles the dot and dot-dot entries, which do
// not follow the ordinary canonicalisation rules.
func fatDotFileNameToSfn(name string, sfn *[11]byte) bool {
	if len(name) == 0 || len(name) > 2 {
		return false
	}
	for i := range sfn {
		sfn[i] = ' '
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '.' {
			return false
		}
		sfn[i] = '.'
	}
	return true
}

// fileNameToSfn canonicalises a path fragment to the 11-byte 8.3
// form: uppercase, space padded, extension after the implicit dot.
// Returns false when the fragment cannot be a short name.
func fileNameToSfn(name string, sfn *[11]byte) bool {
	if len(name) == 0 {
		return false
	}
	if name[0] == '.' {
		return fatDotFileNameToSfn(name, sfn)
	}

	pos := 0
	i := 0
	for ; i < 8 && pos < len(name); i++ {
		if name[pos] == '.' {
			break
		}
		if !isSfnCharValid(name[pos]) || name[pos] == ' ' {
			return false
		}
		sfn[i] = fatToUpper(name[pos])
		pos++
	}

	if pos >= len(name) {
		// No extension; pad the rest.
		for ; i < 11; i++ {
			sfn[i] = ' '
		}
		return true
	}
	if name[pos] != '.' {
		// More than eight characters before the dot.
		return false
	}
	pos++

	for ; i < 8; i++ {
		sfn[i] = ' '
	}

	for ; i < 11 && pos < len(name); i++ {
		if !isSfnCharValid(name[pos]) || name[pos] == ' ' {
			return false
		}
		sfn[i] = fatToUpper(name[pos])
		pos++
	}
	if pos < len(name) {
		// Extension longer than three characters.
		return false
	}
	for ; i < 11; i++ {
		sfn[i] = ' '
	}
	return true
}

// fatSfnCompare canonicalises the fragment and byte-compares it with
// the on-disk short name.
func fatSfnCompare(sfn []byte, name string) bool {
	var want [11]byte
	if !fileNameToSfn(name, &want) {
		return false
	}
	for i := 0; i < 11; i++ {
		if sfn[i] != want[i] {
			return false
		}
	}
	return true
}

// fatGetSfnCrc computes the long-name checksum over the 11 short-name
// bytes: rotate right one, add the next byte.
func fatGetSfnCrc(sfn []byte) uint8 {
	var crc uint8
	for i := 0; i < 11; i++ {
		crc = ((crc & 1) << 7) + (crc >> 1) + sfn[i]
	}
	return crc
}

// fatGetLfnName pulls up to 13 code units out of one LFN entry into
// buf, stopping at a NUL unit. Returns the count extracted.
func fatGetLfnName(entry []byte, buf []byte) int {
	cnt := 0
	for _, idx := range lfnIndex {
		for j := 0; j < idx.size; j++ {
			c := entry[idx.offset+j*2]
			if c == 0 {
				return cnt
			}
			buf[cnt] = c
			cnt++
		}
	}
	return cnt
}

// fatLfnCmpFrag checks that frag appears in name at the given offset.
func fatLfnCmpFrag(name string, frag []byte, offset int) bool {
	if offset > len(name)-1 {
		return false
	}
	rest := name[offset:]

	i := 0
	for ; i < len(rest) && i < len(frag); i++ {
		if rest[i] != frag[i] {
			return false
		}
	}
	return i >= len(frag)
}

// isLfn reports whether a directory entry belongs to a long-name
// chain.
func isLfn(entry []byte) bool { return entry[LFN_ATTR] == ATTR_LFN }

// nextPathFrag walks a slash-delimited path. It returns the next
// fragment after pos, or an empty string when the path is exhausted.
func nextPathFrag(path string, pos int) (string, int) {
	for pos < len(path) && path[pos] == '/' {
		pos++
	}
	start := pos
	for pos < len(path) && path[pos] != '/' {
		pos++
	}
	return path[start:pos], pos
}
