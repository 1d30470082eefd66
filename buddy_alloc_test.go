package main

import (
	"math/rand"
	"testing"
)

// testBuddyZone carves a standalone zone out of an allocated block of
// the main buddy, so a test allocator can run over real page frames
// without touching the live one.
func testBuddyZone(t *testing.T, k *Kernel, order uint32) (*Zone, *BuddyAlloc) {
	t.Helper()

	block := k.mm.AllocPages(order)
	if block == nil {
		t.Fatalf("cannot reserve %d pages for the test zone", 1<<order)
	}
	zone := &Zone{start: block.index, pageCnt: 1 << order}
	b := NewBuddyAlloc(k.mm, zone)
	if b == nil {
		t.Fatalf("buddy init failed")
	}
	return zone, b
}

// TestBuddyScenario verifies the canonical round trip on a 1024-page
// zone: allocations of orders 0, 3, 2, 0 account for 14 pages, and
// freeing everything merges back to a single top-order block.
func TestBuddyScenario(t *testing.T) {
	k := newTestKernel(t)
	_, b := testBuddyZone(t, k, 10)

	if b.MaxOrders() != 11 {
		t.Fatalf("MaxOrders = %d, expected 11 for 1024 pages", b.MaxOrders())
	}

	orders := []uint32{0, 3, 2, 0}
	var blocks []*Page
	for _, o := range orders {
		p := b.AllocPages(o)
		if p == nil {
			t.Fatalf("order-%d allocation failed", o)
		}
		blocks = append(blocks, p)
	}

	if want := uint32(1+8+4+1) * PAGE_SIZE; b.Used() != want {
		t.Fatalf("used = %d, expected %d", b.Used(), want)
	}
	if !b.checkParentBits() {
		t.Fatalf("parent-bit law violated after allocations")
	}

	for _, p := range blocks {
		b.FreePages(p)
	}

	if b.Used() != 0 {
		t.Fatalf("used = %d after freeing everything", b.Used())
	}
	for o := uint32(0); o < b.MaxOrders()-1; o++ {
		if n := b.FreeListLen(o); n != 0 {
			t.Fatalf("order %d holds %d blocks, expected empty", o, n)
		}
	}
	if n := b.FreeListLen(b.MaxOrders() - 1); n != 1 {
		t.Fatalf("top order holds %d blocks, expected exactly 1", n)
	}
}

// TestBuddyParentBitLaw drives random allocate/free traffic and
// checks after every operation that each parent bit equals the XOR of
// its children's free states.
func TestBuddyParentBitLaw(t *testing.T) {
	k := newTestKernel(t)
	_, b := testBuddyZone(t, k, 8)

	rng := rand.New(rand.NewSource(1))
	var live []*Page

	for i := 0; i < 400; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			p := b.AllocPages(uint32(rng.Intn(4)))
			if p != nil {
				live = append(live, p)
			}
		} else {
			i := rng.Intn(len(live))
			b.FreePages(live[i])
			live = append(live[:i], live[i+1:]...)
		}

		if !b.checkParentBits() {
			t.Fatalf("parent-bit law violated at step %d", i)
		}
	}
}

// TestBuddyAccounting verifies that the used statistic tracks the sum
// of live block sizes through an arbitrary interleaving.
func TestBuddyAccounting(t *testing.T) {
	k := newTestKernel(t)
	_, b := testBuddyZone(t, k, 8)

	rng := rand.New(rand.NewSource(7))
	type allocation struct {
		page  *Page
		bytes uint32
	}
	var live []allocation
	var liveBytes uint32

	for i := 0; i < 600; i++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			order := uint32(rng.Intn(5))
			p := b.AllocPages(order)
			if p == nil {
				continue
			}
			bytes := uint32(1<<order) * PAGE_SIZE
			live = append(live, allocation{p, bytes})
			liveBytes += bytes
		} else {
			i := rng.Intn(len(live))
			liveBytes -= live[i].bytes
			b.FreePages(live[i].page)
			live = append(live[:i], live[i+1:]...)
		}

		if b.Used() != liveBytes {
			t.Fatalf("used = %d, live = %d", b.Used(), liveBytes)
		}
	}
}

// TestBuddyOOM verifies that exhausting the zone fails the request
// instead of corrupting state.
func TestBuddyOOM(t *testing.T) {
	k := newTestKernel(t)
	_, b := testBuddyZone(t, k, 4)

	top := b.AllocPages(4)
	if top == nil {
		t.Fatalf("top-order allocation failed on an empty zone")
	}
	if p := b.AllocPages(0); p != nil {
		t.Fatalf("allocation succeeded on a full zone")
	}
	b.FreePages(top)
	if p := b.AllocPages(0); p == nil {
		t.Fatalf("allocation failed after the zone was freed")
	}
}

// TestBuddyReuseIsLIFO verifies the O(1) tie-break: a just-freed
// block is the next one handed out at its order.
func TestBuddyReuseIsLIFO(t *testing.T) {
	k := newTestKernel(t)
	_, b := testBuddyZone(t, k, 8)

	a := b.AllocPages(2)
	c := b.AllocPages(2)
	if a == nil || c == nil {
		t.Fatalf("setup allocations failed")
	}

	b.FreePages(a)
	if got := b.AllocPages(2); got != a {
		t.Fatalf("reallocation returned page %d, expected the just-freed %d", got.Index(), a.Index())
	}
}
