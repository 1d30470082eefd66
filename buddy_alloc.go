// buddy_alloc.go - Binary buddy page allocator for the Citrus Engine

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
buddy_alloc.go - Binary Buddy Page Allocator for the Citrus Engine

Power-of-two page allocation over a zone. Each order holds a free list
of head pages; each order above zero holds a bitmap with one parent
bit per pair of buddies at the order below. The parent bit is the XOR
of the two buddies' free states: it is toggled on every split, every
allocation and every free, and a free may merge upward exactly when
the toggle lands the bit on zero (both halves free). That makes the
merge decision O(1) with no scan of the buddy's state.

The bitmaps live in the kernel heap and are addressed through the bus
like every other kernel structure. All mutation happens inside a
masked-interrupt critical section.
*/

package main

import "math/bits"

type buddyOrder struct {
	freeList List[*Page]
	mapVA    uint32 // parent bits for pairs at the order below; 0 for order 0
}

type BuddyAlloc struct {
	mm        *MemManager
	zone      *Zone
	maxOrders uint32
	used      uint32
	orders    []buddyOrder
}

// Words of parent bitmap needed by one order's map.
func buddyOrderMapWords(order, maxOrders uint32) uint32 {
	w := (uint32(1) << (maxOrders - order - 1)) >> 5
	if w == 0 {
		w = 1
	}
	return w
}

// Words for the whole bitmap, all orders above zero.
func buddyMapSize(maxOrders uint32) uint32 {
	numBlocks := uint32(1) << (maxOrders - 2)
	return ((numBlocks << 1) >> 5) + 4
}

// NewBuddyAlloc attaches a buddy allocator to the zone. The zone's
// largest power-of-two prefix becomes the managed region, seeded as a
// single top-order block. Returns nil when the bitmap allocation
// fails.
func NewBuddyAlloc(mm *MemManager, zone *Zone) *BuddyAlloc {
	b := &BuddyAlloc{mm: mm, zone: zone}

	twoPwrPages := roundDownPowTwo(zone.pageCnt)
	b.maxOrders = uint32(bits.TrailingZeros32(twoPwrPages)) + 1

	mapWords := buddyMapSize(b.maxOrders)
	mapVA := mm.Kmalloc(mapWords * 4)
	if mapVA == 0 {
		return nil
	}
	mm.m.Bus.KZero(mapVA, mapWords*4)

	b.orders = make([]buddyOrder, b.maxOrders)
	for i := int(b.maxOrders) - 1; i >= 0; i-- {
		if i > 0 {
			b.orders[i].mapVA = mapVA
			mapVA += buddyOrderMapWords(uint32(i), b.maxOrders) * 4
		}
		b.orders[i].freeList.Init()
	}

	// One block spanning the whole power-of-two region.
	b.orders[b.maxOrders-1].freeList.PushFront(&mm.pages[zone.start].node)
	return b
}

func (b *BuddyAlloc) bus() *MachineBus { return b.mm.m.Bus }

func (b *BuddyAlloc) getBit(bit, mapVA uint32) uint32 {
	return b.bus().KRead32(mapVA+(bit/32)*4) & (1 << (bit % 32))
}

func (b *BuddyAlloc) toggleBit(bit, mapVA uint32) {
	va := mapVA + (bit/32)*4
	b.bus().KWrite32(va, b.bus().KRead32(va)^(1<<(bit%32)))
}

// Parent bit index for a zone-relative page index at the given order.
func parentBit(index, order uint32) uint32 {
	return (index &^ ((1 << (order + 1)) - 1)) >> (order + 1)
}

// AllocPages returns the head page of a 2^order page block, or nil
// when no order can satisfy the request.
func (b *BuddyAlloc) AllocPages(order uint32) *Page {
	flags := b.mm.m.AtomicEnter()
	defer b.mm.m.AtomicLeave(flags)

	// First non-empty order at or above the request.
	currOrder := order
	for currOrder < b.maxOrders && b.orders[currOrder].freeList.Empty() {
		currOrder++
	}
	if currOrder >= b.maxOrders {
		return nil
	}

	node := b.orders[currOrder].freeList.First()
	page := node.Owner()
	pageIndex := page.index - b.zone.start

	// Leaving the free state flips this block's parent bit, unless
	// it sits at the top order, which has no parent.
	if currOrder < b.maxOrders-1 {
		b.toggleBit(parentBit(pageIndex, currOrder), b.orders[currOrder+1].mapVA)
	}

	Remove(node)

	// Split down to the requested order, releasing the upper half at
	// each step.
	for currOrder > order {
		currOrder--
		b.toggleBit(parentBit(pageIndex, currOrder), b.orders[currOrder+1].mapVA)

		buddy := &b.mm.pages[b.zone.start+pageIndex+(1<<currOrder)]
		b.orders[currOrder].freeList.PushFront(&buddy.node)
	}

	page.order = order
	b.used += (1 << order) * PAGE_SIZE
	return page
}

// FreePages returns a block to the allocator. The order is read from
// the head page. Merging walks upward while the toggled parent bit
// reports both halves free.
func (b *BuddyAlloc) FreePages(page *Page) {
	flags := b.mm.m.AtomicEnter()
	defer b.mm.m.AtomicLeave(flags)

	order := page.order
	freeOrder := page.order
	index := page.index - b.zone.start

	for order < b.maxOrders-1 {
		bit := parentBit(index, order)
		bitVal := b.getBit(bit, b.orders[order+1].mapVA)
		b.toggleBit(bit, b.orders[order+1].mapVA)

		// A zero bit before the toggle means the buddy is still
		// allocated; the block cannot merge.
		if bitVal == 0 {
			break
		}

		buddyIndex := index ^ (1 << order)
		Remove(&b.mm.pages[b.zone.start+buddyIndex].node)

		index &^= (1 << (order + 1)) - 1
		order++
	}

	b.orders[order].freeList.PushFront(&b.mm.pages[b.zone.start+index].node)

	if b.used < (1<<freeOrder)*PAGE_SIZE {
		b.mm.m.Panic("buddy accounting underflow")
	}
	b.used -= (1 << freeOrder) * PAGE_SIZE
}

// Statistics.

func (b *BuddyAlloc) Used() uint32  { return b.used }
func (b *BuddyAlloc) Total() uint32 { return b.zone.pageCnt * PAGE_SIZE }
func (b *BuddyAlloc) Free() uint32  { return b.Total() - b.used }

// FreeListLen reports the population of one order's free list.
func (b *BuddyAlloc) FreeListLen(order uint32) int {
	return b.orders[order].freeList.Len()
}

// MaxOrders reports the number of orders the zone supports.
func (b *BuddyAlloc) MaxOrders() uint32 { return b.maxOrders }

// checkParentBits verifies the parent-bit law: every bit equals the
// XOR of its two children's free states. Test support.
func (b *BuddyAlloc) checkParentBits() bool {
	for order := uint32(0); order < b.maxOrders-1; order++ {
		blocks := uint32(1) << (b.maxOrders - 1 - order)
		for n := uint32(0); n < blocks; n += 2 {
			left := b.isFreeAt(order, n<<order)
			right := b.isFreeAt(order, (n+1)<<order)
			bit := b.getBit(parentBit(n<<order, order), b.orders[order+1].mapVA) != 0
			if bit != (left != right) {
				return false
			}
		}
	}
	return true
}

func (b *BuddyAlloc) isFreeAt(order, index uint32) bool {
	target := &b.mm.pages[b.zone.start+index]
	found := false
	b.orders[order].freeList.Iterate(func(n *ListNode[*Page]) bool {
		if n.Owner() == target {
			found = true
			return false
		}
		return true
	})
	return found
}
