package main

import (
	"math/rand"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

type freeNode struct {
	VA   uint32
	Size uint32
}

func snapshotFreeList(s *SlobHeap) []freeNode {
	var out []freeNode
	s.walkFree(func(va, size uint32) {
		out = append(out, freeNode{va, size})
	})
	return out
}

// testSlobZone builds a standalone heap over an allocated buddy block
// so the kernel's own heap stays out of the picture. The zone spans
// half the block, leaving the other half for extension tests.
func testSlobZone(t *testing.T, k *Kernel, order uint32) (*SlobHeap, *Page) {
	t.Helper()
	block := k.mm.AllocPages(order)
	if block == nil {
		t.Fatalf("cannot reserve pages for the test heap")
	}
	zone := &Zone{start: block.index, pageCnt: (1 << order) / 2}
	return NewSlobHeap(k.mm, zone), block
}

// TestSlobCoalesce verifies that freeing an allocation restores the
// free list to exactly its prior shape.
func TestSlobCoalesce(t *testing.T) {
	k := newTestKernel(t)
	s, _ := testSlobZone(t, k, 8)

	before := snapshotFreeList(s)
	usedBefore := s.Used()

	p := s.Alloc(100)
	if p == 0 {
		t.Fatalf("allocation failed on an empty heap")
	}
	s.Free(p)

	if s.Used() != usedBefore {
		t.Fatalf("used = %d after free, expected %d", s.Used(), usedBefore)
	}
	if diff := pretty.Compare(snapshotFreeList(s), before); diff != "" {
		t.Fatalf("free list changed across alloc/free:\n%s", diff)
	}
}

// TestSlobBogusFree verifies the sentinel discipline: freeing nil,
// out-of-zone pointers and pointers without the allocation magic are
// all no-ops.
func TestSlobBogusFree(t *testing.T) {
	k := newTestKernel(t)
	s, _ := testSlobZone(t, k, 8)

	used := s.Used()
	s.Free(0)
	s.Free(KERNEL_START + 64)
	p := s.Alloc(64)
	s.Free(p + 8) // interior pointer, no header magic
	if s.Used() == used {
		t.Fatalf("allocation not charged")
	}
	s.Free(p)
	s.Free(p) // double free: the magic is gone
	if s.Used() != used {
		t.Fatalf("used = %d after bogus frees, expected %d", s.Used(), used)
	}
}

// TestSlobMinimumSplit verifies that a remainder too small to carry a
// header is absorbed into the allocation rather than leaked.
func TestSlobMinimumSplit(t *testing.T) {
	k := newTestKernel(t)
	s, _ := testSlobZone(t, k, 8)

	total := uint32(0)
	s.walkFree(func(va, size uint32) { total = size })

	// Ask for everything minus less than a minimum block.
	p := s.Alloc(total - SLOB_HDR_SIZE - (SLOB_MIN_BLOCK - 8))
	if p == 0 {
		t.Fatalf("allocation failed")
	}
	if got := snapshotFreeList(s); len(got) != 0 {
		t.Fatalf("split left an unusable fragment: %+v", got)
	}
	if s.Used() != total {
		t.Fatalf("used = %d, expected the absorbed %d", s.Used(), total)
	}
}

// TestSlobStress drives mixed random traffic over a 1 MiB heap and
// checks accounting, block disjointness and free-list address order
// at every step.
func TestSlobStress(t *testing.T) {
	k := newTestKernel(t)
	s, _ := testSlobZone(t, k, 9) // 512-page block, 256-page (1 MiB) heap

	rng := rand.New(rand.NewSource(42))

	type block struct {
		va   uint32
		size uint32 // charged size, header included
	}
	var live []block
	var liveBytes uint32

	checkFreeList := func(step int) {
		prev := uint32(0)
		s.walkFree(func(va, size uint32) {
			if va <= prev {
				t.Fatalf("step %d: free list out of address order (0x%08X after 0x%08X)", step, va, prev)
			}
			prev = va
		})
	}

	const steps = 100000
	for i := 0; i < steps; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			want := uint32(1 + rng.Intn(4096))
			va := s.Alloc(want)
			if va == 0 {
				// Heap full at this size; free something.
				if len(live) > 0 {
					j := rng.Intn(len(live))
					liveBytes -= live[j].size
					s.Free(live[j].va)
					live = append(live[:j], live[j+1:]...)
				}
				continue
			}

			charged := s.nodeSize(va - SLOB_HDR_SIZE)
			if charged < want+SLOB_HDR_SIZE {
				t.Fatalf("step %d: charged %d for a %d byte request", i, charged, want)
			}

			// No overlap with any live block.
			for _, b := range live {
				hdr := va - SLOB_HDR_SIZE
				if hdr < b.va-SLOB_HDR_SIZE+b.size && b.va-SLOB_HDR_SIZE < hdr+charged {
					t.Fatalf("step %d: block 0x%08X+%d overlaps 0x%08X+%d", i, hdr, charged, b.va-SLOB_HDR_SIZE, b.size)
				}
			}

			live = append(live, block{va, charged})
			liveBytes += charged
		} else {
			j := rng.Intn(len(live))
			liveBytes -= live[j].size
			s.Free(live[j].va)
			live = append(live[:j], live[j+1:]...)
		}

		if s.Used() != liveBytes {
			t.Fatalf("step %d: used = %d, live = %d", i, s.Used(), liveBytes)
		}
		if i%1000 == 0 {
			checkFreeList(i)
		}
	}

	for _, b := range live {
		s.Free(b.va)
	}
	if s.Used() != 0 {
		t.Fatalf("used = %d after freeing everything", s.Used())
	}
	if got := snapshotFreeList(s); len(got) != 1 {
		t.Fatalf("free list did not coalesce to one block: %+v", got)
	}
}

// TestSlobExtend verifies tail extension: the appended pages merge
// with a free tail and the totals grow by exactly the added bytes.
func TestSlobExtend(t *testing.T) {
	k := newTestKernel(t)
	s, block := testSlobZone(t, k, 8) // heap on first half of the block
	_ = block

	totalBefore := s.Total()

	// With the heap empty the whole region is one free block; the
	// extension must coalesce into it.
	s.Extend(64)

	if s.Total() != totalBefore+64*PAGE_SIZE {
		t.Fatalf("total = %d, expected %d", s.Total(), totalBefore+64*PAGE_SIZE)
	}
	free := snapshotFreeList(s)
	if len(free) != 1 {
		t.Fatalf("extension did not coalesce with the free tail: %+v", free)
	}
	if free[0].Size != totalBefore+64*PAGE_SIZE {
		t.Fatalf("tail block is %d bytes, expected %d", free[0].Size, totalBefore+64*PAGE_SIZE)
	}

	// The grown heap serves an allocation larger than the original
	// region.
	p := s.Alloc(totalBefore + PAGE_SIZE)
	if p == 0 {
		t.Fatalf("allocation from the extended region failed")
	}
}
