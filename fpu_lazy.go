// fpu_lazy.go - Lazy FPU context manager for the Citrus Engine

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
fpu_lazy.go - Lazy FPU Context Manager for the Citrus Engine

The floating point unit starts disabled and stays disabled across
every context switch; its register bank keeps whatever the last owner
left there. A thread touching the FPU while it is off takes the
undefined-instruction exception, and the handler arbitrates: a set
deferred-exception bit is a real fault, a fault with the unit already
enabled is a real fault, and both panic. Otherwise the unit is
enabled, the previous owner's live bank is spilled to its shadow, the
faulting thread's shadow is filled into the bank, and the runqueue
records the new owner.

Threads that never touch the FPU never pay a save or restore, and no
thread can observe another thread's registers.
*/

package main

const (
	FPEXC_EN  = 1 << 30
	FPEXC_DEX = 1 << 29
)

// VFPBank is the hardware register bank: thirty-two single words plus
// the exception control register.
type VFPBank struct {
	regs  [32]uint32
	fpexc uint32
}

func NewVFPBank() *VFPBank { return &VFPBank{} }

func (v *VFPBank) Enabled() bool { return v.fpexc&FPEXC_EN != 0 }
func (v *VFPBank) Enable()       { v.fpexc |= FPEXC_EN }
func (v *VFPBank) Disable()      { v.fpexc &^= FPEXC_EN }

// FPEXC exposes the raw exception control word.
func (v *VFPBank) FPEXC() uint32     { return v.fpexc }
func (v *VFPBank) SetFPEXC(w uint32) { v.fpexc = w }

// TouchFPU models the current thread executing its first floating
// point instruction since being dispatched. With the unit off this is
// the undefined-instruction trap; with it on, nothing happens.
func (k *Kernel) TouchFPU() {
	if !k.m.VFP.Enabled() {
		k.undefException()
	}
}

// FPUWrite stores into a live FPU register from the current thread.
func (k *Kernel) FPUWrite(reg int, val uint32) {
	k.TouchFPU()
	k.m.VFP.regs[reg] = val
}

// FPURead loads a live FPU register from the current thread.
func (k *Kernel) FPURead(reg int) uint32 {
	k.TouchFPU()
	return k.m.VFP.regs[reg]
}

// undefException is the undefined-instruction entry. Anything that is
// not a lazily-disabled FPU access is fatal.
func (k *Kernel) undefException() {
	fpexc := k.m.VFP.FPEXC()

	if fpexc&FPEXC_DEX != 0 {
		k.m.Panic("FPU DEX bit set")
	}
	if fpexc&FPEXC_EN != 0 {
		k.m.Panic("FPU exception with FPU enabled")
	}

	k.m.VFP.Enable()
	k.m.CPU.DSB()

	k.fpuContextSwitch()
}

// fpuContextSwitch migrates the bank to the current thread: spill the
// previous owner's registers to its shadow, fill the current thread's
// shadow into the bank, and record ownership.
func (k *Kernel) fpuContextSwitch() {
	curr := k.rq.curr
	prev := k.rq.lazyFPU

	if prev == curr {
		// The bank already holds this thread's registers; the unit
		// was merely disabled across switches.
		return
	}

	if prev != nil {
		prev.fpuShadow = k.m.VFP.regs
	}
	k.m.VFP.regs = curr.fpuShadow
	k.rq.lazyFPU = curr
}

// LazyFPUOwner reports the thread whose registers are live in the
// bank.
func (k *Kernel) LazyFPUOwner() *Thread { return k.rq.lazyFPU }
