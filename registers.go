// registers.go - SoC register map and machine geometry for the Citrus Engine

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
registers.go - SoC Register Map for the Citrus Engine

This module defines the complete physical memory map of the emulated
single-core ARM application processor: the DRAM window, the kernel
virtual window that shadows it, and the memory-mapped peripheral
registers consumed by the kernel core (serial console, periodic timer,
interrupt controller and reset controller). Every address below is a
physical address on the machine bus. The kernel addresses DRAM through
the fixed kernel virtual base; the conversion is pure pointer
arithmetic and is defined here next to the constants it depends on.

The peripheral layout mirrors a SAMA5-class SoC: peripherals live high
in the physical address space, well clear of DRAM, and each device
claims a small aligned register block.
*/

package main

// DRAM geometry. The machine carries 128 MiB of DDR at DDR_BASE. The
// kernel half of every address space maps it 1:1 at KERNEL_START.
const (
	PAGE_SIZE  = 4096
	PAGE_SHIFT = 12

	DDR_BASE  = 0x20000000
	DDR_SIZE  = 0x08000000 // 128 MiB
	DDR_PAGES = DDR_SIZE / PAGE_SIZE

	KERNEL_START  = 0x80000000
	KERNEL_OFFSET = 0x60000000

	// End of the kernel image in kernel virtual memory. The boot
	// allocator starts bumping from here.
	KERNEL_IMAGE_END = KERNEL_START + 0x00200000
)

// VaToPa converts a kernel virtual address to a physical address.
func VaToPa(va uint32) uint32 { return va - KERNEL_OFFSET }

// PaToVa converts a physical address to a kernel virtual address.
func PaToVa(pa uint32) uint32 { return pa + KERNEL_OFFSET }

// Peripheral register blocks.
const (
	UART1_BASE = 0xF8020000
	UART_CR    = UART1_BASE + 0x00 // control
	UART_SR    = UART1_BASE + 0x04 // status
	UART_RHR   = UART1_BASE + 0x08 // receive holding
	UART_THR   = UART1_BASE + 0x0C // transmit holding

	UART_SR_RXRDY   = 1 << 0
	UART_SR_TXEMPTY = 1 << 9

	PIT_BASE = 0xF8048030
	PIT_MR   = PIT_BASE + 0x00 // mode: top value and enable
	PIT_SR   = PIT_BASE + 0x04 // status: period elapsed
	PIT_PIVR = PIT_BASE + 0x08 // value + overflow count, clears flag
	PIT_PIIR = PIT_BASE + 0x0C // value + overflow count, keeps flag

	RSTC_BASE = 0xF8048000
	RSTC_CR   = RSTC_BASE + 0x00
	RSTC_SR   = RSTC_BASE + 0x04

	// Writes to RSTC_CR are ignored unless the key byte is present.
	RSTC_KEY = 0xA5000000

	APIC_BASE = 0xFC020000
	APIC_SSR  = APIC_BASE + 0x00 // interrupt line select
	APIC_SMR  = APIC_BASE + 0x04 // source mode (priority)
	APIC_SVR  = APIC_BASE + 0x08 // source vector
	APIC_IECR = APIC_BASE + 0x10 // interrupt enable command
	APIC_IDCR = APIC_BASE + 0x14 // interrupt disable command
	APIC_ICCR = APIC_BASE + 0x18 // interrupt clear command
	APIC_ISCR = APIC_BASE + 0x1C // interrupt set (force) command
	APIC_EOI  = APIC_BASE + 0x38 // end of interrupt
	APIC_WPMR = APIC_BASE + 0xE4 // write protect mode

	// The datasheet leaves the protect-mode behaviour unspecified;
	// the documented workaround is to present the key before every
	// mode register write. The emulated controller enforces exactly
	// that.
	APIC_WPKEY = 0x41504900
)

// Interrupt lines used by the kernel core.
const (
	IRQ_LINE_CNT = 32

	PIT_IRQ  = 3  // periodic scheduler tick and forced reschedule
	UART_IRQ = 24 // serial console receive
)

// Timer geometry. The periodic timer counts at 11 cycles per µs and
// wraps at the nominal slice length of 1000 µs.
const (
	PIT_CLK_PER_US = 11
	SCHED_SLICE_US = 1000
	PIT_TOP        = SCHED_SLICE_US * PIT_CLK_PER_US
)
