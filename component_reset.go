// component_reset.go - Reset controller for the Citrus Engine

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

// The reset controller accepts a software reset command only when the
// 0xA5 key byte accompanies it. The panic path writes the key after
// draining the serial buffer; the host run loop observes Requested and
// tears the machine down.

package main

type ResetController struct {
	requested bool
}

func NewResetController() *ResetController {
	return &ResetController{}
}

// Requested reports whether a keyed reset command has been written.
func (r *ResetController) Requested() bool { return r.requested }

func (r *ResetController) ReadReg(pa uint32) uint32 {
	if pa == RSTC_SR && r.requested {
		return 1
	}
	return 0
}

func (r *ResetController) WriteReg(pa uint32, val uint32) {
	if pa == RSTC_CR && val&0xFF000000 == RSTC_KEY && val&1 != 0 {
		r.requested = true
	}
}
