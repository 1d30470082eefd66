// boot_alloc.go - Early boot allocator for the Citrus Engine

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

// A bump pointer starting at the first address past the kernel image.
// It exists to break the cycle between building the page frame array
// and bringing up the allocators that need it, and it is retired the
// moment they are live. Allocating after retirement is fatal.

package main

type BootAlloc struct {
	m   *Machine
	ptr uint32
	en  bool
}

func NewBootAlloc(m *Machine) *BootAlloc {
	return &BootAlloc{m: m, ptr: KERNEL_IMAGE_END, en: true}
}

// Alloc reserves size bytes at the given alignment and returns the
// kernel virtual address.
func (b *BootAlloc) Alloc(size, align uint32) uint32 {
	if !b.en {
		b.m.Panic("boot allocator retired")
	}
	if align != 0 && b.ptr&(align-1) != 0 {
		b.ptr = (b.ptr + align) &^ (align - 1)
	}
	ret := b.ptr
	b.ptr += size
	return ret
}

// Retire shuts the allocator down for good.
func (b *BootAlloc) Retire() { b.en = false }

// EndVaddr returns the first unclaimed kernel virtual address. Only
// meaningful after Retire.
func (b *BootAlloc) EndVaddr() uint32 { return b.ptr }
