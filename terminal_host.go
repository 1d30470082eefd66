// terminal_host.go - Host terminal bridge for the Citrus Engine

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
terminal_host.go - Host Terminal Bridge for the Citrus Engine

Connects the emulated UART to the developer's terminal for
interactive runs. Stdin drops to raw mode so keystrokes arrive
unbuffered; a single reader goroutine blocks on stdin and feeds each
translated byte to the UART receive FIFO until Stop restores the
terminal state. Output is pulled rather than pushed: the run loop
calls Flush to move the transmit FIFO to stdout whenever it comes up
for air.
*/

package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

type TerminalHost struct {
	uart *UARTConsole

	rawState *term.State
	stop     chan struct{}
	stopOnce sync.Once
}

func NewTerminalHost(uart *UARTConsole) *TerminalHost {
	return &TerminalHost{uart: uart, stop: make(chan struct{})}
}

// hostKeyToUart maps raw-mode terminal bytes onto what the console
// expects: Enter arrives as CR, Backspace as DEL.
func hostKeyToUart(b byte) byte {
	switch b {
	case '\r':
		return '\n'
	case 0x7F:
		return 0x08
	}
	return b
}

// Start switches stdin to raw mode and begins forwarding keystrokes
// to the UART. With stdin not attached to a terminal the bridge stays
// inert and the console is output-only.
func (h *TerminalHost) Start() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("terminal host: %w", err)
	}
	h.rawState = state

	go h.readKeys()
	return nil
}

// readKeys blocks on stdin one byte at a time. Stdin has no portable
// interruptible read; a reader still parked in Read when Stop runs is
// abandoned and dies with the process.
func (h *TerminalHost) readKeys() {
	var buf [1]byte
	for {
		n, err := os.Stdin.Read(buf[:])

		select {
		case <-h.stop:
			return
		default:
		}
		if err != nil {
			return
		}
		if n == 1 {
			h.uart.RouteHostKey(hostKeyToUart(buf[0]))
		}
	}
}

// Stop detaches the reader and restores the terminal state. Safe to
// call more than once.
func (h *TerminalHost) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		if h.rawState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), h.rawState)
			h.rawState = nil
		}
	})
}

// Flush drains the UART transmit FIFO to stdout.
func (h *TerminalHost) Flush() {
	if out := h.uart.DrainOutput(); out != "" {
		fmt.Print(out)
	}
}
