// vm_engine.go - Virtual memory engine for the Citrus Engine

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
vm_engine.go - Virtual Memory Engine for the Citrus Engine

Per-process address spaces over the two-level ARMv7 page table. The
level-1 table is 8 KiB (a two-page buddy block); level-2 tables are
1 KiB, and three of them share one host page tracked by a slot bitmap
on the page descriptor, so a process burning through level-2 tables
costs one buddy page per three tables.

Every page a process ever receives — level-1 block, level-2 hosts,
stack, heap blocks — goes on the space's owned-page list, which is all
the teardown path needs: walk it, hand everything back to the buddy,
invalidate the TLB.

Mapping the same page at the same address with identical attributes is
a no-op; mapping a different frame over a live entry is an invariant
violation and panics rather than silently replacing the translation.
*/

package main

// AddressSpace is the memory image of one process.
type AddressSpace struct {
	ttbrPhys uint32 // physical base of the 8 KiB level-1 table

	dataS, dataE   uint32
	heapS, heapE   uint32
	stackS, stackE uint32

	pageList List[*Page]
	pageCnt  uint32

	// Current host page for level-2 table sub-allocation.
	pt2Host *Page
}

// AddPage records a buddy block on the owned-page list for teardown.
func (as *AddressSpace) AddPage(p *Page) {
	as.pageList.PushFront(&p.node)
	as.pageCnt += 1 << p.order
}

// NewAddressSpace allocates and zeroes the level-1 table and sets the
// initial region bounds: stack at the top of the user half, no heap.
func (mm *MemManager) NewAddressSpace() *AddressSpace {
	as := &AddressSpace{}
	as.pageList.Init()

	l1 := mm.Lv1PtAlloc()
	if l1 == nil {
		return nil
	}
	as.ttbrPhys = mm.PageToPa(l1)
	as.AddPage(l1)

	as.stackS = KERNEL_START
	as.stackE = KERNEL_START
	return as
}

// Page-table page allocation. The level-1 table spans two pages; a
// level-2 host is a single zeroed page carrying three table slots.

func (mm *MemManager) Lv1PtAlloc() *Page {
	p := mm.AllocPages(1)
	if p == nil {
		return nil
	}
	mm.m.Bus.KZero(mm.PageToVa(p), 2*PAGE_SIZE)
	return p
}

func (mm *MemManager) Lv2PtAlloc() *Page {
	p := mm.AllocPages(0)
	if p == nil {
		return nil
	}
	mm.m.Bus.KZero(mm.PageToVa(p), PAGE_SIZE)
	return p
}

// lv2PtInit marks all three table slots of a fresh host page free.
func lv2PtInit(p *Page) { p.l2Bitmap = 0b111 }

// lv2PtFindInPage claims a free level-2 slot in the host page and
// returns its kernel virtual address, or zero when the page is full.
func (mm *MemManager) lv2PtFindInPage(p *Page) uint32 {
	if p == nil {
		return 0
	}
	for i := uint8(0); i < 3; i++ {
		if p.l2Bitmap&(1<<i) != 0 {
			p.l2Bitmap &^= 1 << i
			return mm.PageToVa(p) + 0x400*uint32(i)
		}
	}
	return 0
}

// lv1MapInLv2 writes the level-1 pointer entry for the 1 MiB region
// at vaddr, pointing at the level-2 table.
func (mm *MemManager) lv1MapInLv2(ttbrPa, l2Va, vaddr uint32, domain uint8) {
	if vaddr&0xFFFFF != 0 {
		mm.m.Panic("unaligned page table mapping")
	}
	l1Va := PaToVa(ttbrPa)
	mm.m.Bus.KWrite32(l1Va+(vaddr>>20)*4, lv1PtrEntry(VaToPa(l2Va), domain))
}

func (mm *MemManager) lv1IsMapped(ttbrPa, entry uint32) bool {
	return !pteIsEmpty(mm.m.Bus.KRead32(PaToVa(ttbrPa) + entry*4))
}

// lv2MapPage writes the small-page entry for one 4 KiB frame. The
// level-1 entry for the region must exist.
func (mm *MemManager) lv2MapPage(ttbrPa, frameVa, vaddr uint32, attr PteAttr) bool {
	if vaddr&0xFFF != 0 {
		mm.m.Panic("virtual page address is not aligned")
	}

	l1 := mm.m.Bus.KRead32(PaToVa(ttbrPa) + (vaddr>>20)*4)
	if pteIsEmpty(l1) {
		return false
	}

	l2Va := PaToVa(l1 & LV1_PTR_BASE_MSK)
	entryVa := l2Va + ((vaddr>>12)&0xFF)*4

	pte := attr.EncodeSmall(VaToPa(frameVa))
	old := mm.m.Bus.KRead32(entryVa)
	if !pteIsEmpty(old) {
		if old == pte {
			return true
		}
		mm.m.Panic("remapping live translation at %08x", vaddr)
	}
	mm.m.Bus.KWrite32(entryVa, pte)
	return true
}

// MapIn maps pageCnt consecutive 4 KiB frames starting at the block
// head into the space at vaddr, allocating level-2 tables on demand.
func (mm *MemManager) MapIn(as *AddressSpace, page *Page, pageCnt uint32, vaddr uint32, attr PteAttr) bool {
	if vaddr&0xFFF != 0 {
		mm.m.Panic("unaligned map request")
	}

	idx := page.index
	for ; pageCnt > 0; pageCnt-- {
		if !mm.lv1IsMapped(as.ttbrPhys, vaddr>>20) {
			l2Va := mm.lv2PtFindInPage(as.pt2Host)
			if l2Va == 0 {
				newPage := mm.Lv2PtAlloc()
				if newPage == nil {
					return false
				}
				as.pt2Host = newPage
				as.AddPage(newPage)
				lv2PtInit(newPage)

				l2Va = mm.lv2PtFindInPage(as.pt2Host)
				if l2Va == 0 {
					mm.m.Panic("fresh level-2 host page is full")
				}
			}
			mm.lv1MapInLv2(as.ttbrPhys, l2Va, vaddr&^uint32(0xFFFFF), attr.Domain)
		}

		frame := &mm.pages[idx]
		mm.lv2MapPage(as.ttbrPhys, mm.PageToVa(frame), vaddr, attr)

		vaddr += PAGE_SIZE
		idx++
	}
	return true
}

// SetBreak moves the process heap break. The first call pins the heap
// at the page-aligned end of the data segment. Growth maps one buddy
// block of the rounded-up page count read/write into the user half;
// a zero request or a failed allocation returns the current end.
func (mm *MemManager) SetBreak(as *AddressSpace, bytes uint32) uint32 {
	if as.heapE == 0 {
		hs := as.dataE
		if hs&(PAGE_SIZE-1) != 0 {
			hs = (hs + PAGE_SIZE) &^ (PAGE_SIZE - 1)
		}
		as.heapS = hs
		as.heapE = hs
	}

	if bytes == 0 {
		return as.heapE
	}

	pages := (bytes + PAGE_SIZE - 1) / PAGE_SIZE
	order := PagesToOrder(pages)

	p := mm.AllocPages(order)
	if p == nil {
		return as.heapE
	}
	as.AddPage(p)

	attr := PteAttr{Mem: MemWriteThrough, Access: AccessFull, Domain: USER_DOMAIN}
	mm.MapIn(as, p, 1<<order, as.heapE, attr)

	as.heapE += PAGE_SIZE << order
	return as.heapE
}

// Teardown returns every owned page to the buddy and drops the stale
// translations.
func (mm *MemManager) Teardown(as *AddressSpace) {
	for {
		n := as.pageList.PopFront()
		if n == nil {
			break
		}
		mm.FreePages(n.Owner())
	}
	as.pageCnt = 0
	as.pt2Host = nil
	mm.m.CPU.TLBInvalidate()
}

// USER_DOMAIN is the MMU domain every user mapping carries.
const USER_DOMAIN = 15

// Kernel section table. Built once at boot: 1 MiB sections covering
// DRAM in the kernel half, loaded into TTBR1.

func (mm *MemManager) KernelTableInit() {
	l1 := mm.Lv1PtAlloc()
	if l1 == nil {
		mm.m.Panic("cannot allocate kernel page table")
	}
	mm.kernelL1 = l1

	attr := PteAttr{Mem: MemWriteBack, Access: AccessPrivOnly, Domain: 0}
	l1Va := mm.PageToVa(l1)
	for i := uint32(0); i < DDR_SIZE>>20; i++ {
		va := KERNEL_START + i<<20
		mm.m.Bus.KWrite32(l1Va+(va>>20)*4, attr.EncodeSection(VaToPa(va)))
	}

	mm.m.CPU.SetTTBR1(mm.PageToPa(l1))
	mm.m.CPU.TLBInvalidate()
}

// SetKernelSectionAttr rewrites the attributes of one 1 MiB kernel
// section, leaving its translation in place.
func (mm *MemManager) SetKernelSectionAttr(va uint32, attr PteAttr) {
	if mm.kernelL1 == nil {
		mm.m.Panic("kernel page table not initialized")
	}
	l1Va := mm.PageToVa(mm.kernelL1)
	mm.m.Bus.KWrite32(l1Va+(va>>20)*4, attr.EncodeSection(VaToPa(va&^uint32(0xFFFFF))))
	mm.m.CPU.TLBInvalidate()
}
