// mm.go - Memory manager core for the Citrus Engine

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
mm.go - Memory Manager Core for the Citrus Engine

Owns the page frame array and the memory zones. One Page descriptor
exists for every physical DRAM page, created once at boot from the
boot allocator and never destroyed; page-to-address conversion is pure
arithmetic against the fixed kernel base, no map lookup.

After the boot allocator retires, DRAM is partitioned into two
disjoint zones that cover everything past the kernel image: a SLOB
zone for the kernel heap and a power-of-two buddy zone for page
allocation. The kmalloc and page-allocation entry points the rest of
the kernel uses live here and dispatch to the zone allocators.
*/

package main

import "math/bits"

// Page is the per-physical-page descriptor. Exactly one of these
// states holds at any time: free in the buddy at some order, head of
// an allocated run, interior of a run, or owner of level-2 page
// tables (l2Bitmap tracks the three table slots).
type Page struct {
	index    uint32 // position in the page frame array
	order    uint32 // request order while head of an allocated run
	l2Bitmap uint8  // free mask while hosting level-2 tables

	node ListNode[*Page] // buddy free list or process page list
}

// Index returns the page frame number.
func (p *Page) Index() uint32 { return p.index }

// ZoneAlloc is the statistics surface every zone allocator provides.
type ZoneAlloc interface {
	Used() uint32
	Total() uint32
}

// Zone is a contiguous run of page frames owned by one allocator.
type Zone struct {
	start   uint32 // first page frame number
	pageCnt uint32
	alloc   ZoneAlloc
}

type MemManager struct {
	m     *Machine
	boot  *BootAlloc
	pages []Page
	zones []*Zone

	slobZone  *Zone
	buddyZone *Zone
	slob      *SlobHeap
	buddy     *BuddyAlloc

	kernelL1 *Page
}

// Size charged per page descriptor when the array is carved from the
// boot allocator.
const pageStructSize = 16

// NewMemManager runs the full memory bring-up: boot allocator, page
// frame array, boot-allocator retirement, then the SLOB and buddy
// zones.
func NewMemManager(m *Machine) *MemManager {
	mm := &MemManager{m: m, boot: NewBootAlloc(m)}

	// The page frame array is the first and last boot allocation.
	mm.boot.Alloc(DDR_PAGES*pageStructSize, PAGE_SIZE)
	mm.pages = make([]Page, DDR_PAGES)
	for i := range mm.pages {
		p := &mm.pages[i]
		p.index = uint32(i)
		p.node.InitNode(p)
	}

	mm.boot.Retire()
	mm.setupZones()
	return mm
}

func (mm *MemManager) setupZones() {
	kernelUsed := mm.boot.EndVaddr() - KERNEL_START
	if kernelUsed&(PAGE_SIZE-1) != 0 {
		kernelUsed = (kernelUsed + PAGE_SIZE) &^ (PAGE_SIZE - 1)
	}
	kernelPages := kernelUsed / PAGE_SIZE

	// A third of DRAM, rounded up to a power of two, goes to the
	// buddy; the SLOB takes everything between the kernel image and
	// the buddy zone.
	buddyPages := roundUpPowTwo(DDR_PAGES / 3)
	slobPages := DDR_PAGES - kernelPages - buddyPages

	mm.slobZone = &Zone{start: kernelPages, pageCnt: slobPages}
	mm.slob = NewSlobHeap(mm, mm.slobZone)
	mm.slobZone.alloc = mm.slob

	mm.buddyZone = &Zone{start: kernelPages + slobPages, pageCnt: buddyPages}
	mm.buddy = NewBuddyAlloc(mm, mm.buddyZone)
	if mm.buddy == nil {
		mm.m.Panic("cannot initialize buddy allocator")
	}
	mm.buddyZone.alloc = mm.buddy

	mm.zones = []*Zone{mm.slobZone, mm.buddyZone}
}

// Page/address conversions. All arithmetic, no lookups.

func (mm *MemManager) PageToVa(p *Page) uint32 {
	return KERNEL_START + p.index*PAGE_SIZE
}

func (mm *MemManager) PageToPa(p *Page) uint32 {
	return VaToPa(mm.PageToVa(p))
}

// VaToPage returns the descriptor for a page-aligned kernel virtual
// address, or nil when the address is unaligned.
func (mm *MemManager) VaToPage(va uint32) *Page {
	if va&(PAGE_SIZE-1) != 0 {
		return nil
	}
	return &mm.pages[(va-KERNEL_START)/PAGE_SIZE]
}

func (mm *MemManager) PaToPage(pa uint32) *Page {
	return mm.VaToPage(PaToVa(pa))
}

// Kernel heap wrappers.

func (mm *MemManager) Kmalloc(size uint32) uint32 {
	return mm.slob.Alloc(size)
}

func (mm *MemManager) Kzmalloc(size uint32) uint32 {
	va := mm.slob.Alloc(size)
	if va != 0 {
		mm.m.Bus.KZero(va, size)
	}
	return va
}

func (mm *MemManager) Kfree(va uint32) {
	mm.slob.Free(va)
}

// Page allocation wrappers.

func (mm *MemManager) AllocPages(order uint32) *Page {
	return mm.buddy.AllocPages(order)
}

func (mm *MemManager) AllocPage() *Page {
	return mm.buddy.AllocPages(0)
}

func (mm *MemManager) FreePages(p *Page) {
	mm.buddy.FreePages(p)
}

// BytesToOrder returns the smallest order whose block holds the given
// byte count.
func BytesToOrder(bytes uint32) uint32 {
	pages := (bytes + PAGE_SIZE - 1) / PAGE_SIZE
	return PagesToOrder(pages)
}

func PagesToOrder(pages uint32) uint32 {
	return uint32(bits.TrailingZeros32(roundUpPowTwo(pages)))
}

// TotalUsed sums the used statistic across every zone.
func (mm *MemManager) TotalUsed() uint32 {
	used := uint32(0)
	for _, z := range mm.zones {
		if z.alloc != nil {
			used += z.alloc.Used()
		}
	}
	return used
}

// Total sums the allocatable bytes across every zone.
func (mm *MemManager) Total() uint32 {
	total := uint32(0)
	for _, z := range mm.zones {
		if z.alloc != nil {
			total += z.alloc.Total()
		}
	}
	return total
}

func roundUpPowTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	if v&(v-1) == 0 {
		return v
	}
	return 1 << bits.Len32(v)
}

func roundDownPowTwo(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	return 1 << (bits.Len32(v) - 1)
}
