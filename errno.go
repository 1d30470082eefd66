// errno.go - Kernel error taxonomy for the Citrus Engine

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

// Kernel-internal paths speak small signed codes, like the source they
// descend from: zero is success, a positive code is a condition the
// caller may expect (a clean end of file, a name that did not match),
// and a negative code is a failure. The public filesystem API converts
// codes to the typed errors at the bottom of this file.

package main

import "errors"

// Condition and failure codes. A function documents which of these it
// returns; negated values mark the failure flavour.
const (
	EOK    = 0
	EEOF   = 1 // end of file or cluster chain
	ENOFILE = 2 // directory entry did not match
	EDISK  = 3 // block device read failed
	ENOMEM = 4 // allocator exhausted
	ENOPID = 5 // PID bitmap full
	ENODIR = 6 // path component is not a directory
	EBADFS = 7 // signature, geometry or CRC mismatch
	EINVAL = 8 // bad argument
)

var (
	ErrDisk   = errors.New("disk read error")
	ErrNoFile = errors.New("no such file or directory")
	ErrNoMem  = errors.New("out of memory")
	ErrNoPid  = errors.New("out of process ids")
	ErrNoDir  = errors.New("not a directory")
	ErrBadFs  = errors.New("bad filesystem")
	ErrEOF    = errors.New("end of file")
	// ErrUnexpectedEOF is the truncated flavour: the cluster chain or
	// the directory ended while more data was required.
	ErrUnexpectedEOF = errors.New("unexpected end of file")
	ErrInval         = errors.New("invalid argument")
)

// codeToError maps an internal code to the public error. Positive and
// negative flavours of EEOF map to the expected and unexpected
// variants.
func codeToError(code int) error {
	switch code {
	case EOK:
		return nil
	case EEOF:
		return ErrEOF
	case -EEOF:
		return ErrUnexpectedEOF
	case ENOFILE, -ENOFILE:
		return ErrNoFile
	case EDISK, -EDISK:
		return ErrDisk
	case ENOMEM, -ENOMEM:
		return ErrNoMem
	case ENOPID, -ENOPID:
		return ErrNoPid
	case ENODIR, -ENODIR:
		return ErrNoDir
	case EBADFS, -EBADFS:
		return ErrBadFs
	default:
		return ErrInval
	}
}
