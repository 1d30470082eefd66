// cp15.go - CPU state and system coprocessor for the Citrus Engine

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
cp15.go - CPU State and System Coprocessor for the Citrus Engine

Every privileged register the kernel touches with mrc/mcr/mrs/msr on
real silicon is modelled here as a field on the CP15 device: the
program status word with its interrupt mask bits, the saved PSR of the
preempted context, the translation table base registers, the domain
access control register, and the TLB and cache maintenance operations.

Maintenance operations and barriers are counted rather than simulated;
the counters give tests a handle on ordering requirements (a page-table
write must be followed by a TLB invalidate before the mapping may be
observed) without pretending to model a cache hierarchy.
*/

package main

// CPSR mode and mask bits. Matches the ARMv7 layout for the fields the
// kernel cares about.
const (
	PSR_MODE_USR = 0b10000
	PSR_MODE_SVC = 0b10011
	PSR_MODE_MSK = 0b11111

	PSR_IRQ_MASK = 1 << 7 // I bit
	PSR_FIQ_MASK = 1 << 6 // F bit
	PSR_ABT_MASK = 1 << 8 // A bit

	PSR_INT_ALL = PSR_IRQ_MASK | PSR_FIQ_MASK | PSR_ABT_MASK
)

// CP15 models the core's privileged state: status registers, MMU
// control and maintenance operation counters.
type CP15 struct {
	cpsr uint32
	spsr uint32

	ttbr0 uint32
	ttbr1 uint32
	dacr  uint32

	tlbInvalidates   uint32
	icacheInvalidates uint32
	dcacheCleans     uint32
	barriers         uint32
}

func NewCP15() *CP15 {
	return &CP15{cpsr: PSR_MODE_SVC | PSR_INT_ALL}
}

func (c *CP15) CPSR() uint32 { return c.cpsr }
func (c *CP15) SPSR() uint32 { return c.spsr }

func (c *CP15) SetSPSR(v uint32) { c.spsr = v }

// IrqMasked reports whether IRQ delivery is currently inhibited.
func (c *CP15) IrqMasked() bool { return c.cpsr&PSR_IRQ_MASK != 0 }

// AtomicEnter masks IRQ, FIQ and async aborts and returns the previous
// mask bits for AtomicLeave. This is the kernel's critical section
// primitive; it must never nest across a suspension point.
func (c *CP15) AtomicEnter() uint32 {
	prev := c.cpsr & PSR_INT_ALL
	c.cpsr |= PSR_INT_ALL
	return prev
}

// AtomicLeave restores the mask bits saved by AtomicEnter.
func (c *CP15) AtomicLeave(prev uint32) {
	c.cpsr = (c.cpsr &^ PSR_INT_ALL) | prev
}

// IrqDisable masks IRQ delivery without touching FIQ or abort bits.
func (c *CP15) IrqDisable() { c.cpsr |= PSR_IRQ_MASK }

// IrqEnable unmasks IRQ delivery.
func (c *CP15) IrqEnable() { c.cpsr &^= PSR_IRQ_MASK }

// Translation table base registers.

func (c *CP15) SetTTBR0(pa uint32) {
	c.ttbr0 = pa
	c.ISB()
}

func (c *CP15) TTBR0() uint32 { return c.ttbr0 }

func (c *CP15) SetTTBR1(pa uint32) { c.ttbr1 = pa }
func (c *CP15) TTBR1() uint32      { return c.ttbr1 }

func (c *CP15) SetDACR(v uint32) { c.dacr = v }
func (c *CP15) DACR() uint32     { return c.dacr }

// TLBInvalidate drops every cached translation. Page-table writes are
// not observable until this has run.
func (c *CP15) TLBInvalidate() {
	c.tlbInvalidates++
	c.DMB()
	c.ISB()
}

func (c *CP15) ICacheInvalidate() { c.icacheInvalidates++ }
func (c *CP15) DCacheClean()      { c.dcacheCleans++ }
func (c *CP15) DCacheCleanInvalidate() {
	c.dcacheCleans++
	c.icacheInvalidates++
}

// Barriers. The context switch issues all three before jumping so that
// writes made inside a critical section are visible to the next thread.

func (c *CP15) DSB() { c.barriers++ }
func (c *CP15) DMB() { c.barriers++ }
func (c *CP15) ISB() { c.barriers++ }

// Maintenance counters for tests.

func (c *CP15) TLBInvalidateCount() uint32 { return c.tlbInvalidates }
func (c *CP15) BarrierCount() uint32       { return c.barriers }
