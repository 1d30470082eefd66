// pt_entry.go - Page table entry encoding for the Citrus Engine

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

// ARMv7 short-descriptor encodings for the three entry kinds the
// kernel writes: level-1 section, level-1 pointer to a level-2 table,
// and level-2 small page. The attribute types form a closed set
// mirroring the hardware fields; anything the hardware cannot express
// cannot be asked for.

package main

// PteMem selects the memory-type field (TEX/C/B).
type PteMem uint8

const (
	MemStronglyOrdered PteMem = iota
	MemSharable
	MemWriteThrough
	MemWriteBack
	MemNonCache
	MemNonShareable
)

// PteAccess selects the access-permission field (APX/AP).
type PteAccess uint8

const (
	AccessNone PteAccess = iota
	AccessPrivOnly
	AccessNoUserWrite
	AccessFull
	AccessPrivRead
	AccessReadOnly
)

// PteAttr carries every attribute of a level-2 small-page entry.
type PteAttr struct {
	Mem    PteMem
	Access PteAccess
	XN     bool
	NG     bool
	Domain uint8
}

// Level-1 descriptor types.
const (
	LV1_TYPE_PTR     = 0b01
	LV1_TYPE_SECTION = 0b10
	LV1_PTR_BASE_MSK = 0xFFFFFC00

	LV2_TYPE_SMALL    = 0b10
	LV2_SMALL_BASE_MSK = 0xFFFFF000
)

// apBits returns APX<<hi | AP<<lo for the given access kind.
func (a PteAccess) apBits(apShift, apxShift uint) uint32 {
	var apx, ap uint32
	switch a {
	case AccessNone:
		apx, ap = 0, 0b00
	case AccessPrivOnly:
		apx, ap = 0, 0b01
	case AccessNoUserWrite:
		apx, ap = 0, 0b10
	case AccessFull:
		apx, ap = 0, 0b11
	case AccessPrivRead:
		apx, ap = 1, 0b01
	case AccessReadOnly:
		apx, ap = 1, 0b10
	}
	return apx<<apxShift | ap<<apShift
}

// memBits returns TEX<<texShift | CB<<cbShift for the memory type.
func (m PteMem) memBits(texShift, cbShift uint) uint32 {
	var tex, cb uint32
	switch m {
	case MemStronglyOrdered:
		tex, cb = 0b000, 0b00
	case MemSharable:
		tex, cb = 0b000, 0b01
	case MemWriteThrough:
		tex, cb = 0b000, 0b10
	case MemWriteBack:
		tex, cb = 0b000, 0b11
	case MemNonCache:
		tex, cb = 0b001, 0b00
	case MemNonShareable:
		tex, cb = 0b010, 0b00
	}
	return tex<<texShift | cb<<cbShift
}

// EncodeSmall builds a level-2 small-page entry for a physical frame.
func (a PteAttr) EncodeSmall(framePa uint32) uint32 {
	pte := framePa&LV2_SMALL_BASE_MSK | LV2_TYPE_SMALL
	pte |= a.Access.apBits(4, 9)
	pte |= a.Mem.memBits(6, 2)
	if a.XN {
		pte |= 1 << 0
	}
	if a.NG {
		pte |= 1 << 11
	}
	return pte
}

// EncodeSection builds a level-1 1 MiB section entry.
func (a PteAttr) EncodeSection(sectionPa uint32) uint32 {
	pte := sectionPa&0xFFF00000 | LV1_TYPE_SECTION
	pte |= a.Access.apBits(10, 15)
	pte |= a.Mem.memBits(12, 2)
	pte |= uint32(a.Domain&0xF) << 5
	if a.XN {
		pte |= 1 << 4
	}
	if a.NG {
		pte |= 1 << 17
	}
	return pte
}

// lv1PtrEntry builds a level-1 pointer entry to a level-2 table.
func lv1PtrEntry(l2Pa uint32, domain uint8) uint32 {
	return l2Pa&LV1_PTR_BASE_MSK | uint32(domain&0xF)<<5 | LV1_TYPE_PTR
}

// pteIsEmpty reports whether a descriptor maps nothing.
func pteIsEmpty(pte uint32) bool { return pte&0b11 == 0 }
