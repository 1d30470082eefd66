// cpu_timer.go - Periodic interval timer for the Citrus Engine

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
cpu_timer.go - Periodic Interval Timer for the Citrus Engine

An up-counter running at PIT_CLK_PER_US cycles per microsecond with a
programmable top value. Reaching the top raises the tick line on the
interrupt controller and restarts the count. The raw counter value is
readable at any time; the scheduler divides it back down to
microseconds to charge an early-yielding thread for the part of the
slice it actually consumed.

Time advances only through Advance, driven by the machine run loop, so
every schedule in a test is reproducible.
*/

package main

type CPUTimer struct {
	apic *APIC

	raw     uint32 // cycles since the current period started
	top     uint32
	enabled bool
	elapsed bool // period-elapsed status flag
}

func NewCPUTimer(apic *APIC) *CPUTimer {
	return &CPUTimer{apic: apic, top: PIT_TOP}
}

// Init programs the nominal slice period and starts the counter.
func (t *CPUTimer) Init() {
	t.raw = 0
	t.top = PIT_TOP
	t.enabled = true
}

// Advance moves time forward by us microseconds, raising the tick IRQ
// for every elapsed period.
func (t *CPUTimer) Advance(us uint32) {
	if !t.enabled {
		return
	}
	t.raw += us * PIT_CLK_PER_US
	for t.raw >= t.top {
		t.raw -= t.top
		t.elapsed = true
		t.apic.Raise(PIT_IRQ)
	}
}

// Value returns the raw count within the current period.
func (t *CPUTimer) Value() uint32 { return t.raw }

// ValueUs returns microseconds elapsed within the current period.
func (t *CPUTimer) ValueUs() uint32 { return t.raw / PIT_CLK_PER_US }

// ClearFlags acknowledges the period-elapsed condition. The tick
// handler calls this first, mirroring the real ISR.
func (t *CPUTimer) ClearFlags() { t.elapsed = false }

// Register interface.

func (t *CPUTimer) ReadReg(pa uint32) uint32 {
	switch pa {
	case PIT_MR:
		v := t.top
		if t.enabled {
			v |= 1 << 24
		}
		return v
	case PIT_SR:
		if t.elapsed {
			return 1
		}
		return 0
	case PIT_PIVR:
		t.elapsed = false
		return t.raw
	case PIT_PIIR:
		return t.raw
	}
	return 0
}

func (t *CPUTimer) WriteReg(pa uint32, val uint32) {
	if pa == PIT_MR {
		t.top = val & 0x000FFFFF
		t.enabled = val&(1<<24) != 0
	}
}
