// pid_bitmap.go - Recursive PID bitmap for the Citrus Engine

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

// A recursive 32-ary bitmap for process id assignment. Level zero is
// one word whose bits say which level-one children still hold a free
// id; each level-one word tracks 32 ids. A set bit means free, so
// allocation is two trailing-zero scans and id reuse is always
// first-free. The table lives in the kernel heap.

package main

import "math/bits"

const (
	PID_LEVELS = 2
	PID_MAX    = 32 * 32 // ids representable by two levels

	// One root word plus 32 leaf words.
	pidTableWords = (PID_MAX - 1) / 31
)

type PidTable struct {
	mm     *MemManager
	baseVA uint32
}

func NewPidTable(mm *MemManager) *PidTable {
	p := &PidTable{mm: mm}
	p.baseVA = mm.Kmalloc(pidTableWords * 4)
	if p.baseVA == 0 {
		mm.m.Panic("cannot allocate PID table")
	}
	// All bits set: every id free.
	for i := uint32(0); i < pidTableWords; i++ {
		mm.m.Bus.KWrite32(p.baseVA+i*4, 0xFFFFFFFF)
	}
	return p
}

func (p *PidTable) word(i uint32) uint32    { return p.mm.m.Bus.KRead32(p.baseVA + i*4) }
func (p *PidTable) setWord(i, v uint32)     { p.mm.m.Bus.KWrite32(p.baseVA+i*4, v) }

// Alloc claims the lowest free id. Returns the id and EOK, or
// -ENOPID when the bitmap is exhausted.
func (p *PidTable) Alloc() (uint32, int) {
	flags := p.mm.m.AtomicEnter()
	defer p.mm.m.AtomicLeave(flags)

	root := p.word(0)
	if root == 0 {
		return 0, -ENOPID
	}
	child := uint32(bits.TrailingZeros32(root))

	leafIdx := 1 + child
	leaf := p.word(leafIdx)
	if leaf == 0 {
		// Violates the summary invariant: the root claimed this
		// subtree had a free id.
		p.mm.m.Panic("PID bitmap summary out of sync")
	}
	bit := uint32(bits.TrailingZeros32(leaf))

	leaf &^= 1 << bit
	p.setWord(leafIdx, leaf)
	if leaf == 0 {
		p.setWord(0, root&^(1<<child))
	}

	return child*32 + bit, EOK
}

// Free releases an id. Releasing an id that is not live is fatal.
func (p *PidTable) Free(pid uint32) {
	flags := p.mm.m.AtomicEnter()
	defer p.mm.m.AtomicLeave(flags)

	if pid >= PID_MAX {
		p.mm.m.Panic("PID %d out of range", pid)
	}
	leafIdx := 1 + pid/32
	bit := pid % 32

	leaf := p.word(leafIdx)
	if leaf&(1<<bit) != 0 {
		p.mm.m.Panic("freeing PID %d twice", pid)
	}

	p.setWord(leafIdx, leaf|1<<bit)
	if leaf == 0 {
		// Subtree went from full to having a free id.
		p.setWord(0, p.word(0)|1<<(pid/32))
	}
}

// AllFree reports whether every id is free again. Test support.
func (p *PidTable) AllFree() bool {
	for i := uint32(0); i < pidTableWords; i++ {
		if p.word(i) != 0xFFFFFFFF {
			return false
		}
	}
	return true
}
