package main

import "testing"

// TestPidFirstFree verifies sequential allocation and the first-free
// reuse rule: freeing 47 and 513 hands exactly those back, in that
// order.
func TestPidFirstFree(t *testing.T) {
	k := newTestKernel(t)
	p := NewPidTable(k.mm)

	for i := uint32(0); i < PID_MAX; i++ {
		pid, e := p.Alloc()
		if e != EOK {
			t.Fatalf("allocation %d failed with %d", i, e)
		}
		if pid != i {
			t.Fatalf("allocation %d returned %d", i, pid)
		}
	}

	if _, e := p.Alloc(); e != -ENOPID {
		t.Fatalf("full bitmap returned %d, expected -ENOPID", e)
	}

	p.Free(47)
	p.Free(513)

	pid, _ := p.Alloc()
	if pid != 47 {
		t.Fatalf("first reallocation returned %d, expected 47", pid)
	}
	pid, _ = p.Alloc()
	if pid != 513 {
		t.Fatalf("second reallocation returned %d, expected 513", pid)
	}
}

// TestPidRoundTrip verifies that N alloc/free pairs in arbitrary
// order leave the bitmap all ones and never hand out a live id.
func TestPidRoundTrip(t *testing.T) {
	k := newTestKernel(t)
	p := NewPidTable(k.mm)

	live := map[uint32]bool{}

	// Interleaved pattern: allocate three, free one, repeatedly.
	var order []uint32
	for i := 0; i < 200; i++ {
		for j := 0; j < 3; j++ {
			pid, e := p.Alloc()
			if e != EOK {
				t.Fatalf("allocation failed: %d", e)
			}
			if live[pid] {
				t.Fatalf("live id %d handed out twice", pid)
			}
			live[pid] = true
			order = append(order, pid)
		}
		victim := order[len(order)/2]
		if live[victim] {
			p.Free(victim)
			delete(live, victim)
		}
	}

	for pid := range live {
		p.Free(pid)
	}
	if !p.AllFree() {
		t.Fatalf("bitmap not all ones after releasing every id")
	}
}

// TestPidDoubleFree verifies that releasing a free id is fatal.
func TestPidDoubleFree(t *testing.T) {
	k := newTestKernel(t)
	p := NewPidTable(k.mm)

	pid, _ := p.Alloc()
	p.Free(pid)
	expectKernelFault(t, func() { p.Free(pid) })
}

// TestPidSummaryBits verifies the level-zero invariant across a
// subtree filling up and draining.
func TestPidSummaryBits(t *testing.T) {
	k := newTestKernel(t)
	p := NewPidTable(k.mm)

	// Fill the first subtree completely.
	for i := 0; i < 32; i++ {
		p.Alloc()
	}
	if root := p.word(0); root&1 != 0 {
		t.Fatalf("root bit 0 still set with subtree full: %08X", root)
	}

	p.Free(5)
	if root := p.word(0); root&1 == 0 {
		t.Fatalf("root bit 0 not restored by a free")
	}
	if pid, _ := p.Alloc(); pid != 5 {
		t.Fatalf("reallocation returned %d, expected 5", pid)
	}
}
