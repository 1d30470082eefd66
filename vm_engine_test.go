package main

import "testing"

func testAttr() PteAttr {
	return PteAttr{Mem: MemWriteThrough, Access: AccessFull, Domain: USER_DOMAIN}
}

// readPte walks the two-level table in DRAM and returns the small
// page entry for vaddr, or zero.
func readPte(k *Kernel, as *AddressSpace, vaddr uint32) uint32 {
	bus := k.m.Bus
	l1 := bus.KRead32(PaToVa(as.ttbrPhys) + (vaddr>>20)*4)
	if pteIsEmpty(l1) {
		return 0
	}
	l2Va := PaToVa(l1 & LV1_PTR_BASE_MSK)
	return bus.KRead32(l2Va + ((vaddr>>12)&0xFF)*4)
}

// TestMapInWritesEntries verifies a mapping lands in the level-1 and
// level-2 tables with the requested attribute bits and frame base.
func TestMapInWritesEntries(t *testing.T) {
	k := newTestKernel(t)
	as := k.mm.NewAddressSpace()
	if as == nil {
		t.Fatalf("address space allocation failed")
	}

	page := k.mm.AllocPage()
	if !k.mm.MapIn(as, page, 1, 0x00400000, testAttr()) {
		t.Fatalf("MapIn failed")
	}

	pte := readPte(k, as, 0x00400000)
	if pteIsEmpty(pte) {
		t.Fatalf("no level-2 entry written")
	}
	if pte&LV2_SMALL_BASE_MSK != k.mm.PageToPa(page) {
		t.Fatalf("entry base 0x%08X, expected 0x%08X", pte&LV2_SMALL_BASE_MSK, k.mm.PageToPa(page))
	}
	if pte&0b11 != LV2_TYPE_SMALL {
		t.Fatalf("entry type bits %02b", pte&0b11)
	}
	// Full access: AP = 0b11 at bits 4-5, APX clear.
	if pte&(0b11<<4) != 0b11<<4 || pte&(1<<9) != 0 {
		t.Fatalf("access bits wrong in 0x%08X", pte)
	}
}

// TestMapInIdempotence verifies that remapping the same frame at the
// same address with the same attributes is a no-op, while remapping a
// different frame is an invariant violation.
func TestMapInIdempotence(t *testing.T) {
	k := newTestKernel(t)
	as := k.mm.NewAddressSpace()

	page := k.mm.AllocPage()
	if !k.mm.MapIn(as, page, 1, 0x00400000, testAttr()) {
		t.Fatalf("first MapIn failed")
	}
	if !k.mm.MapIn(as, page, 1, 0x00400000, testAttr()) {
		t.Fatalf("identical remap rejected")
	}

	other := k.mm.AllocPage()
	expectKernelFault(t, func() {
		k.mm.MapIn(as, other, 1, 0x00400000, testAttr())
	})
}

// TestMapInUnaligned verifies that an unaligned target address is
// fatal rather than silently rounded.
func TestMapInUnaligned(t *testing.T) {
	k := newTestKernel(t)
	as := k.mm.NewAddressSpace()
	page := k.mm.AllocPage()

	expectKernelFault(t, func() {
		k.mm.MapIn(as, page, 1, 0x00400100, testAttr())
	})
}

// TestL2TablePacking verifies the three-to-a-page sub-allocation: the
// first three distinct 1 MiB regions share one host page, the fourth
// demands a new one.
func TestL2TablePacking(t *testing.T) {
	k := newTestKernel(t)
	as := k.mm.NewAddressSpace()

	pagesBefore := as.pageList.Len()

	for i := uint32(0); i < 3; i++ {
		p := k.mm.AllocPage()
		if !k.mm.MapIn(as, p, 1, 0x00400000+i<<20, testAttr()) {
			t.Fatalf("map %d failed", i)
		}
	}
	// One host page covers all three level-2 tables.
	if got := as.pageList.Len() - pagesBefore; got != 1 {
		t.Fatalf("three regions consumed %d table pages, expected 1", got)
	}

	p := k.mm.AllocPage()
	if !k.mm.MapIn(as, p, 1, 0x00800000, testAttr()) {
		t.Fatalf("fourth map failed")
	}
	if got := as.pageList.Len() - pagesBefore; got != 2 {
		t.Fatalf("fourth region consumed %d table pages total, expected 2", got)
	}
}

// TestSetBreak verifies the heap break protocol: first call pins the
// heap at the data end, growth maps whole buddy blocks, zero reads
// the current end.
func TestSetBreak(t *testing.T) {
	k := newTestKernel(t)
	as := k.mm.NewAddressSpace()
	as.dataE = 0x00152800 // mid-page data end

	end0 := k.mm.SetBreak(as, 0)
	if end0 != 0x00153000 {
		t.Fatalf("initial break 0x%08X, expected page-aligned 0x00153000", end0)
	}

	end1 := k.mm.SetBreak(as, 5000)
	if end1 != end0+2*PAGE_SIZE {
		t.Fatalf("break after 5000 bytes = 0x%08X, expected 0x%08X", end1, end0+2*PAGE_SIZE)
	}

	// The grown region is mapped.
	if pteIsEmpty(readPte(k, as, end0)) {
		t.Fatalf("first heap page not mapped")
	}
	if pteIsEmpty(readPte(k, as, end0+PAGE_SIZE)) {
		t.Fatalf("second heap page not mapped")
	}

	if got := k.mm.SetBreak(as, 0); got != end1 {
		t.Fatalf("zero-byte break moved the end: 0x%08X", got)
	}
}

// TestTeardownReturnsPages verifies that tearing a space down hands
// every owned page back to the buddy and invalidates the TLB.
func TestTeardownReturnsPages(t *testing.T) {
	k := newTestKernel(t)

	usedBefore := k.mm.buddy.Used()

	as := k.mm.NewAddressSpace()
	as.dataE = 0x00200000
	k.mm.SetBreak(as, 3*PAGE_SIZE)

	p := k.mm.AllocPage()
	as.AddPage(p)
	k.mm.MapIn(as, p, 1, 0x00600000, testAttr())

	if k.mm.buddy.Used() == usedBefore {
		t.Fatalf("setup did not consume buddy pages")
	}

	flushes := k.m.CPU.TLBInvalidateCount()
	k.mm.Teardown(as)

	if k.mm.buddy.Used() != usedBefore {
		t.Fatalf("teardown leaked: used %d, expected %d", k.mm.buddy.Used(), usedBefore)
	}
	if k.m.CPU.TLBInvalidateCount() == flushes {
		t.Fatalf("teardown did not invalidate the TLB")
	}
}
