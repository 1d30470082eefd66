// machine_bus.go - Physical memory bus for the Citrus Engine

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
machine_bus.go - Physical Memory Bus for the Citrus Engine

This module implements the physical address space of the emulated SoC.
It provides a unified interface for 8/16/32-bit memory operations over
two windows: the contiguous DRAM block at DDR_BASE, and the peripheral
window where memory-mapped devices register their read/write callbacks.

Core Features:

    128 MiB of DRAM allocated as one contiguous slice for cache
    locality, addressed little-endian exactly as the ARM core sees it.
    Device regions registered with a start and end address and onRead
    and onWrite callbacks intercepting 32-bit register accesses.
    Kernel-virtual accessors that apply the fixed KERNEL_OFFSET so the
    memory manager can walk its own structures the way the real kernel
    walks kernel logical memory.

Accesses outside DRAM that hit no registered device read as zero and
drop writes, which is how the real bus matrix treats unmapped space.
*/

package main

import (
	"encoding/binary"
)

// BusDevice is one memory-mapped peripheral on the bus. Register
// accesses are always 32 bits wide, as on the real peripheral bridge.
type BusDevice interface {
	ReadReg(pa uint32) uint32
	WriteReg(pa uint32, val uint32)
}

type busRegion struct {
	start, end uint32 // inclusive start, exclusive end
	dev        BusDevice
}

// MachineBus is the physical address space of the machine: the DRAM
// window plus the registered peripheral regions.
type MachineBus struct {
	dram    []byte
	regions []busRegion
}

func NewMachineBus() *MachineBus {
	return &MachineBus{
		dram: make([]byte, DDR_SIZE),
	}
}

// MapDevice registers a peripheral register block on the bus.
func (b *MachineBus) MapDevice(start, end uint32, dev BusDevice) {
	b.regions = append(b.regions, busRegion{start: start, end: end, dev: dev})
}

func (b *MachineBus) findRegion(pa uint32) *busRegion {
	for i := range b.regions {
		r := &b.regions[i]
		if pa >= r.start && pa < r.end {
			return r
		}
	}
	return nil
}

func (b *MachineBus) inDram(pa uint32) bool {
	return pa >= DDR_BASE && pa < DDR_BASE+DDR_SIZE
}

// Dram exposes the raw DRAM slice for bulk block transfers (the disk
// DMA path and test fixtures). Offsets are physical-address minus
// DDR_BASE.
func (b *MachineBus) Dram() []byte { return b.dram }

func (b *MachineBus) Read8(pa uint32) uint8 {
	if b.inDram(pa) {
		return b.dram[pa-DDR_BASE]
	}
	if r := b.findRegion(pa); r != nil {
		return uint8(r.dev.ReadReg(pa))
	}
	return 0
}

func (b *MachineBus) Write8(pa uint32, val uint8) {
	if b.inDram(pa) {
		b.dram[pa-DDR_BASE] = val
		return
	}
	if r := b.findRegion(pa); r != nil {
		r.dev.WriteReg(pa, uint32(val))
	}
}

func (b *MachineBus) Read16(pa uint32) uint16 {
	if b.inDram(pa) {
		return binary.LittleEndian.Uint16(b.dram[pa-DDR_BASE:])
	}
	if r := b.findRegion(pa); r != nil {
		return uint16(r.dev.ReadReg(pa))
	}
	return 0
}

func (b *MachineBus) Write16(pa uint32, val uint16) {
	if b.inDram(pa) {
		binary.LittleEndian.PutUint16(b.dram[pa-DDR_BASE:], val)
		return
	}
	if r := b.findRegion(pa); r != nil {
		r.dev.WriteReg(pa, uint32(val))
	}
}

func (b *MachineBus) Read32(pa uint32) uint32 {
	if b.inDram(pa) {
		return binary.LittleEndian.Uint32(b.dram[pa-DDR_BASE:])
	}
	if r := b.findRegion(pa); r != nil {
		return r.dev.ReadReg(pa)
	}
	return 0
}

func (b *MachineBus) Write32(pa uint32, val uint32) {
	if b.inDram(pa) {
		binary.LittleEndian.PutUint32(b.dram[pa-DDR_BASE:], val)
		return
	}
	if r := b.findRegion(pa); r != nil {
		r.dev.WriteReg(pa, val)
	}
}

// Kernel-virtual accessors. The kernel walks its own heap, page tables
// and bitmaps through these; the offset arithmetic is the whole MMU
// story for the kernel half.

func (b *MachineBus) KRead8(va uint32) uint8        { return b.Read8(VaToPa(va)) }
func (b *MachineBus) KWrite8(va uint32, val uint8)  { b.Write8(VaToPa(va), val) }
func (b *MachineBus) KRead32(va uint32) uint32      { return b.Read32(VaToPa(va)) }
func (b *MachineBus) KWrite32(va uint32, val uint32) { b.Write32(VaToPa(va), val) }

// KSlice returns the DRAM backing a kernel-virtual range for bulk
// operations. The range must lie inside DRAM.
func (b *MachineBus) KSlice(va, size uint32) []byte {
	pa := VaToPa(va)
	return b.dram[pa-DDR_BASE : pa-DDR_BASE+size]
}

// KZero clears a kernel-virtual range.
func (b *MachineBus) KZero(va, size uint32) {
	s := b.KSlice(va, size)
	for i := range s {
		s[i] = 0
	}
}

// Reset clears the whole DRAM block.
func (b *MachineBus) Reset() {
	for i := range b.dram {
		b.dram[i] = 0
	}
}
