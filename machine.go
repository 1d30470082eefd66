// machine.go - Machine assembly and panic path for the Citrus Engine

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
machine.go - Machine Assembly and Panic Path for the Citrus Engine

Builds the SoC: the bus, the core's privileged state, the interrupt
controller, the timer, the serial console, the reset controller and
the floating point bank, wired together the way the board wires them.
The machine also carries the kernel's last-resort paths: kprintf over
the serial console and the panic routine, which prints the failing
location, drains the serial buffer and commands a reset through the
keyed reset-controller register.
*/

package main

import (
	"fmt"
	"os"
	"runtime"
)

type Machine struct {
	Bus   *MachineBus
	CPU   *CP15
	APIC  *APIC
	Timer *CPUTimer
	UART  *UARTConsole
	RSTC  *ResetController
	VFP   *VFPBank
}

func NewMachine() *Machine {
	bus := NewMachineBus()
	cpu := NewCP15()
	apic := NewAPIC(cpu)
	timer := NewCPUTimer(apic)
	uart := NewUARTConsole(apic)
	rstc := NewResetController()

	bus.MapDevice(UART1_BASE, UART1_BASE+0x100, uart)
	bus.MapDevice(PIT_BASE, PIT_BASE+0x10, timer)
	bus.MapDevice(RSTC_BASE, RSTC_BASE+0x10, rstc)
	bus.MapDevice(APIC_BASE, APIC_BASE+0x100, apic)

	return &Machine{
		Bus:   bus,
		CPU:   cpu,
		APIC:  apic,
		Timer: timer,
		UART:  uart,
		RSTC:  rstc,
		VFP:   NewVFPBank(),
	}
}

// AtomicEnter masks interrupts for a critical section.
func (m *Machine) AtomicEnter() uint32 { return m.CPU.AtomicEnter() }

// AtomicLeave restores the mask and delivers anything that pended
// while the section was held.
func (m *Machine) AtomicLeave(flags uint32) {
	m.CPU.AtomicLeave(flags)
	if !m.CPU.IrqMasked() {
		m.APIC.Poll()
	}
}

// Kprintf is the kernel console print routine; everything the kernel
// says goes out through the UART transmitter.
func (m *Machine) Kprintf(format string, args ...any) {
	m.UART.WriteString(fmt.Sprintf(format, args...))
}

// KernelFault is the value carried by a kernel panic. The run loop
// recovers it at top level and reboots the machine.
type KernelFault struct {
	File   string
	Line   int
	Reason string
}

func (f *KernelFault) Error() string {
	return fmt.Sprintf("kernel panic at %s:%d: %s", f.File, f.Line, f.Reason)
}

// Panic prints the failing file, line and reason on the console,
// drains the serial buffer to the host and commands a hardware reset.
// It does not return.
func (m *Machine) Panic(format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	file := "?"
	line := 0
	if _, f, l, ok := runtime.Caller(1); ok {
		file = f
		line = l
	}
	m.Kprintf("\nkernel panic: %s (%s:%d)\n", reason, file, line)

	// Drain the serial buffer while the transmitter reports ready,
	// then pull the reset line through the keyed register.
	for m.Bus.Read32(UART_SR)&UART_SR_TXEMPTY == 0 {
	}
	fmt.Fprint(os.Stderr, m.UART.DrainOutput())
	m.Bus.Write32(RSTC_CR, RSTC_KEY|1)

	panic(&KernelFault{File: file, Line: line, Reason: reason})
}
