package main

import "testing"

// newTestKernel boots a fresh kernel on an emulated machine for one
// test. Scheduling starts only when the test asks for it.
func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return NewKernel()
}

// expectKernelFault runs fn and fails the test unless it panics with
// a KernelFault. Any other panic is re-raised.
func expectKernelFault(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a kernel fault, got none")
		}
		if _, ok := r.(*KernelFault); !ok {
			panic(r)
		}
	}()
	fn()
}

// TestBootAllocRetire verifies that the boot allocator refuses to
// serve after retirement.
func TestBootAllocRetire(t *testing.T) {
	m := NewMachine()
	b := NewBootAlloc(m)

	first := b.Alloc(100, 8)
	if first != KERNEL_IMAGE_END {
		t.Fatalf("first boot allocation at 0x%08X, expected 0x%08X", first, uint32(KERNEL_IMAGE_END))
	}

	second := b.Alloc(100, 64)
	if second&63 != 0 {
		t.Fatalf("boot allocation not aligned: 0x%08X", second)
	}
	if second < first+100 {
		t.Fatalf("boot allocator handed out overlapping memory")
	}

	b.Retire()
	expectKernelFault(t, func() { b.Alloc(4, 4) })
}

// TestKernelBoot verifies the full bring-up: zones carved, the page
// array conversions are pure arithmetic, and the reset line is idle.
func TestKernelBoot(t *testing.T) {
	k := newTestKernel(t)

	if k.mm.slobZone.start+k.mm.slobZone.pageCnt != k.mm.buddyZone.start {
		t.Fatalf("zones are not adjacent: slob ends %d, buddy starts %d",
			k.mm.slobZone.start+k.mm.slobZone.pageCnt, k.mm.buddyZone.start)
	}
	if k.mm.buddyZone.start+k.mm.buddyZone.pageCnt != DDR_PAGES {
		t.Fatalf("zones do not cover DRAM")
	}

	p := &k.mm.pages[1234]
	va := k.mm.PageToVa(p)
	if va != KERNEL_START+1234*PAGE_SIZE {
		t.Fatalf("PageToVa: 0x%08X", va)
	}
	if k.mm.VaToPage(va) != p {
		t.Fatalf("VaToPage did not invert PageToVa")
	}
	if k.mm.PaToPage(k.mm.PageToPa(p)) != p {
		t.Fatalf("PaToPage did not invert PageToPa")
	}
	if k.mm.VaToPage(va+1) != nil {
		t.Fatalf("VaToPage accepted an unaligned address")
	}

	if k.m.RSTC.Requested() {
		t.Fatalf("reset requested during boot")
	}
}

// TestKernelPanicPath verifies that a panic drains the console and
// commands a keyed reset.
func TestKernelPanicPath(t *testing.T) {
	k := newTestKernel(t)

	expectKernelFault(t, func() { k.m.Panic("deliberate: %d", 42) })

	if !k.m.RSTC.Requested() {
		t.Fatalf("panic did not command a reset")
	}
}
