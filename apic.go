// apic.go - Interrupt controller for the Citrus Engine

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
apic.go - Advanced Interrupt Controller for the Citrus Engine

Thirty-two prioritised interrupt lines with per-line handler, enable
bit and pending bit. A line raised or forced while the core has IRQs
masked stays pending and is delivered as soon as the mask drops, which
is exactly the window the scheduler relies on when it forces the tick
line to reschedule from thread context.

After every delivered handler the controller runs the registered IRQ
epilogue. The kernel installs its context-switch tail there, so there
is a single switch implementation no matter what triggered the IRQ.

The write-protect mode register follows the documented workaround for
the chip's unspecified protect behaviour: mode registers accept writes
only when the key has been presented first.
*/

package main

type irqLine struct {
	handler  func()
	enabled  bool
	pending  bool
	priority uint32
}

// APIC is the machine's interrupt controller.
type APIC struct {
	cpu   *CP15
	lines [IRQ_LINE_CNT]irqLine

	// Epilogue runs after every delivered handler, in IRQ context.
	Epilogue func()

	selected   uint32
	wpKeyed    bool
	delivering bool
}

func NewAPIC(cpu *CP15) *APIC {
	return &APIC{cpu: cpu}
}

// AddHandler installs fn on line irq.
func (a *APIC) AddHandler(irq uint32, fn func()) {
	a.lines[irq].handler = fn
}

// Enable opens the line and delivers anything already pending.
func (a *APIC) Enable(irq uint32) {
	a.lines[irq].enabled = true
	a.deliverPending()
}

func (a *APIC) Disable(irq uint32) {
	a.lines[irq].enabled = false
}

func (a *APIC) SetPriority(irq uint32, p uint32) {
	a.lines[irq].priority = p
}

// Force raises the line from software. The scheduler uses this on the
// tick line to request a reschedule from thread context.
func (a *APIC) Force(irq uint32) {
	a.lines[irq].pending = true
	a.deliverPending()
}

// Clear drops a pending request that has not been delivered yet.
func (a *APIC) Clear(irq uint32) {
	a.lines[irq].pending = false
}

// Raise is the hardware side of Force: devices call it when their
// interrupt condition comes true.
func (a *APIC) Raise(irq uint32) {
	a.lines[irq].pending = true
	a.deliverPending()
}

// Poll retries delivery; the CPU calls this when the IRQ mask drops.
func (a *APIC) Poll() {
	a.deliverPending()
}

func (a *APIC) deliverPending() {
	if a.delivering || a.cpu.IrqMasked() {
		return
	}
	a.delivering = true
	for {
		line := a.highestPending()
		if line < 0 {
			break
		}
		l := &a.lines[line]
		l.pending = false
		if l.handler != nil {
			l.handler()
		}
		if a.Epilogue != nil {
			a.Epilogue()
		}
		if a.cpu.IrqMasked() {
			break
		}
	}
	a.delivering = false
}

func (a *APIC) highestPending() int {
	best := -1
	var bestPrio uint32
	for i := range a.lines {
		l := &a.lines[i]
		if l.pending && l.enabled && l.handler != nil {
			if best < 0 || l.priority > bestPrio {
				best = i
				bestPrio = l.priority
			}
		}
	}
	return best
}

// Register interface. The kernel programs the controller through MMIO
// like any other peripheral; the methods above are the device backend.

func (a *APIC) ReadReg(pa uint32) uint32 {
	switch pa {
	case APIC_SSR:
		return a.selected
	case APIC_SMR:
		return a.lines[a.selected&31].priority
	case APIC_WPMR:
		if a.wpKeyed {
			return 1
		}
		return 0
	}
	return 0
}

func (a *APIC) WriteReg(pa uint32, val uint32) {
	switch pa {
	case APIC_SSR:
		a.selected = val & 31
	case APIC_SMR:
		// Mode writes require the protect key to have been
		// presented; unkeyed writes are dropped.
		if a.wpKeyed {
			a.lines[a.selected&31].priority = val & 7
			a.wpKeyed = false
		}
	case APIC_WPMR:
		a.wpKeyed = val == APIC_WPKEY
	case APIC_IECR:
		a.Enable(val & 31)
	case APIC_IDCR:
		a.Disable(val & 31)
	case APIC_ICCR:
		a.Clear(val & 31)
	case APIC_ISCR:
		a.Force(val & 31)
	case APIC_EOI:
		// Level signalling is not modelled; EOI is accepted and
		// ignored.
	}
}
