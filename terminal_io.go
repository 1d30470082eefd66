// terminal_io.go - Serial console device for the Citrus Engine

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
terminal_io.go - Serial Console Device for the Citrus Engine

The UART the kernel prints through. Transmit is a byte FIFO the host
side drains (terminal_host.go bridges it to the developer's terminal);
receive is a FIFO the host feeds, raising the UART line when a byte
arrives. The status register exposes the TXEMPTY bit the panic path
spins on while draining the buffer before commanding a reset.
*/

package main

import "sync"

type UARTConsole struct {
	apic *APIC

	mu sync.Mutex
	tx []byte
	rx []byte
}

func NewUARTConsole(apic *APIC) *UARTConsole {
	return &UARTConsole{apic: apic}
}

// WriteByte transmits one byte from the kernel side.
func (u *UARTConsole) WriteByte(b byte) {
	u.mu.Lock()
	u.tx = append(u.tx, b)
	u.mu.Unlock()
}

// WriteString transmits a string from the kernel side.
func (u *UARTConsole) WriteString(s string) {
	u.mu.Lock()
	u.tx = append(u.tx, s...)
	u.mu.Unlock()
}

// DrainOutput hands the accumulated transmit bytes to the host.
func (u *UARTConsole) DrainOutput() string {
	u.mu.Lock()
	out := string(u.tx)
	u.tx = u.tx[:0]
	u.mu.Unlock()
	return out
}

// RouteHostKey feeds one received byte from the host terminal.
func (u *UARTConsole) RouteHostKey(b byte) {
	u.mu.Lock()
	u.rx = append(u.rx, b)
	u.mu.Unlock()
	u.apic.Raise(UART_IRQ)
}

func (u *UARTConsole) rxByte() (byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		return 0, false
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b, true
}

// Register interface.

func (u *UARTConsole) ReadReg(pa uint32) uint32 {
	switch pa {
	case UART_SR:
		// The emulated transmitter never stalls.
		sr := uint32(UART_SR_TXEMPTY)
		u.mu.Lock()
		if len(u.rx) > 0 {
			sr |= UART_SR_RXRDY
		}
		u.mu.Unlock()
		return sr
	case UART_RHR:
		b, _ := u.rxByte()
		return uint32(b)
	}
	return 0
}

func (u *UARTConsole) WriteReg(pa uint32, val uint32) {
	if pa == UART_THR {
		u.WriteByte(byte(val))
	}
}
