// slob_heap.go - SLOB kernel heap for the Citrus Engine

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
slob_heap.go - Simple List Of Blocks Kernel Heap for the Citrus Engine

The kernel heap over a zone mapped 1:1 into kernel virtual memory.
Free blocks form a single list threaded through the zone in address
order; each node is an eight-byte header {size, next} living in DRAM
in front of its payload. An allocated block carries the sentinel value
in its next slot, which is the only thing validating a later free:
freeing nil, a pointer outside the zone, or a pointer whose header
lacks the sentinel is a silent no-op.

Insertion of a freed block finds its address-order predecessor, then
tries a backward coalesce followed by a forward coalesce, so the list
never holds two adjacent free blocks. Extension appends buddy-fed
pages at the tail by rewriting the terminal node; it is the single
point of contact between the heap and the page allocator.
*/

package main

const (
	SLOB_ALIGN     = 8
	SLOB_MIN_BLOCK = 16
	SLOB_HDR_SIZE  = 8

	// Sentinel planted in the next slot of every live allocation.
	SLOB_ALLOC_MAGIC = 0xC0DEBABE
)

type SlobHeap struct {
	mm *MemManager

	startAddr uint32 // first byte of the managed region
	endAddr   uint32 // one past the last byte

	headVA uint32 // zero-size node fronting the list
	lastVA uint32 // zero-size terminal node

	used  uint32
	total uint32
}

// Node header accessors; the headers live in emulated DRAM.

func (s *SlobHeap) nodeSize(va uint32) uint32     { return s.mm.m.Bus.KRead32(va) }
func (s *SlobHeap) setNodeSize(va, sz uint32)     { s.mm.m.Bus.KWrite32(va, sz) }
func (s *SlobHeap) nodeNext(va uint32) uint32     { return s.mm.m.Bus.KRead32(va + 4) }
func (s *SlobHeap) setNodeNext(va, next uint32)   { s.mm.m.Bus.KWrite32(va+4, next) }

// NewSlobHeap builds the heap over the zone: a head node, one free
// block spanning the region, and the terminal node.
func NewSlobHeap(mm *MemManager, zone *Zone) *SlobHeap {
	s := &SlobHeap{mm: mm}

	s.startAddr = KERNEL_START + zone.start*PAGE_SIZE
	s.endAddr = s.startAddr + zone.pageCnt*PAGE_SIZE

	if s.startAddr&(SLOB_ALIGN-1) != 0 {
		s.startAddr = (s.startAddr + SLOB_ALIGN) &^ (SLOB_ALIGN - 1)
	}
	s.endAddr &^= SLOB_ALIGN - 1

	s.headVA = s.startAddr
	s.lastVA = s.endAddr - SLOB_HDR_SIZE
	first := s.startAddr + SLOB_HDR_SIZE

	s.setNodeSize(s.headVA, 0)
	s.setNodeNext(s.headVA, first)

	s.setNodeSize(first, s.lastVA-first)
	s.setNodeNext(first, s.lastVA)

	s.setNodeSize(s.lastVA, 0)
	s.setNodeNext(s.lastVA, 0)

	s.total = s.lastVA - first
	s.used = 0
	return s
}

// insertFree links a block with its size field already set into the
// address-ordered free list, coalescing with both neighbours.
func (s *SlobHeap) insertFree(node uint32) bool {
	// Find the node whose successor lies past the block.
	it := s.headVA
	for it != 0 {
		if s.nodeNext(it) > node {
			break
		}
		it = s.nodeNext(it)
	}
	if it == 0 {
		return false
	}

	// Backward merge with the predecessor.
	if it != s.headVA && it+s.nodeSize(it) == node {
		s.setNodeSize(it, s.nodeSize(it)+s.nodeSize(node))
		node = it
	}

	// Forward merge with the successor, never with the terminal.
	succ := s.nodeNext(it)
	if node+s.nodeSize(node) == succ && succ != s.lastVA {
		s.setNodeSize(node, s.nodeSize(node)+s.nodeSize(succ))
		s.setNodeNext(node, s.nodeNext(succ))
	} else {
		s.setNodeNext(node, succ)
	}

	if node != it {
		s.setNodeNext(it, node)
	}
	return true
}

// Alloc returns the address of a block of at least size bytes, or
// zero on exhaustion. First fit over the address-ordered list; the
// remainder splits off when it can still hold a minimum block.
func (s *SlobHeap) Alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	flags := s.mm.m.AtomicEnter()
	defer s.mm.m.AtomicLeave(flags)

	size += SLOB_HDR_SIZE
	if size&(SLOB_ALIGN-1) != 0 {
		size = (size + SLOB_ALIGN) &^ (SLOB_ALIGN - 1)
	}

	itPrev := s.headVA
	it := s.nodeNext(itPrev)
	for it != 0 {
		if s.nodeSize(it) >= size {
			break
		}
		itPrev = it
		it = s.nodeNext(it)
	}
	if it == 0 {
		return 0
	}

	s.setNodeNext(itPrev, s.nodeNext(it))

	newSize := s.nodeSize(it) - size
	if newSize >= SLOB_MIN_BLOCK {
		split := it + size
		s.setNodeSize(split, newSize)
		s.insertFree(split)
	} else {
		size = s.nodeSize(it)
	}

	s.used += size
	s.setNodeSize(it, size)
	s.setNodeNext(it, SLOB_ALLOC_MAGIC)

	return it + SLOB_HDR_SIZE
}

// Free returns a block to the heap. Nil pointers, pointers outside
// the zone and pointers without the allocation sentinel are ignored.
func (s *SlobHeap) Free(ptr uint32) {
	if ptr == 0 {
		return
	}

	flags := s.mm.m.AtomicEnter()
	defer s.mm.m.AtomicLeave(flags)

	node := ptr - SLOB_HDR_SIZE
	if node < s.headVA || node >= s.lastVA {
		return
	}
	if s.nodeNext(node) != SLOB_ALLOC_MAGIC {
		return
	}

	s.used -= s.nodeSize(node)
	s.insertFree(node)
}

// Extend grows the heap by pages just handed over from the buddy
// allocator. The new region must begin exactly at the current end of
// the zone; the old terminal node becomes a free block and coalesces
// with a free tail when there is one.
func (s *SlobHeap) Extend(pages uint32) {
	flags := s.mm.m.AtomicEnter()
	defer s.mm.m.AtomicLeave(flags)

	oldLast := s.lastVA
	s.endAddr += pages * PAGE_SIZE
	s.lastVA = s.endAddr - SLOB_HDR_SIZE

	s.setNodeSize(s.lastVA, 0)
	s.setNodeNext(s.lastVA, 0)

	// Retarget whichever free node pointed at the old terminal.
	for it := s.headVA; it != 0; it = s.nodeNext(it) {
		if s.nodeNext(it) == oldLast {
			s.setNodeNext(it, s.lastVA)
			break
		}
	}

	s.setNodeSize(oldLast, pages*PAGE_SIZE)
	s.insertFree(oldLast)

	s.total += pages * PAGE_SIZE
}

// Statistics.

func (s *SlobHeap) Used() uint32      { return s.used }
func (s *SlobHeap) Total() uint32     { return s.total }
func (s *SlobHeap) FreeBytes() uint32 { return s.total - s.used }

// walkFree visits every free node in address order. Test support.
func (s *SlobHeap) walkFree(fn func(va, size uint32)) {
	for it := s.nodeNext(s.headVA); it != 0 && it != s.lastVA; it = s.nodeNext(it) {
		fn(it, s.nodeSize(it))
	}
}
