// syscall_dispatch.go - System call dispatch for the Citrus Engine

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
syscall_dispatch.go - System Call Dispatch for the Citrus Engine

The SVC trap saves a fixed register frame and enters here with a
pointer into it: slots zero through three are r0-r3 and double as the
argument words, slot five holds the return address. The SVC number is
not passed in a register; it is recovered by reading the instruction
word at lr minus four, whose low byte is the immediate on a
little-endian bus.

Handlers read arguments from the frame and write their result back to
slot zero. A number with no handler leaves the frame untouched. The
opcode space is stable: 0 create-thread, 1 set-break, 2 alloc-page,
3 kill, 8 sleep, 9 read the saved program status register.
*/

package main

const (
	SYS_CREATE_THREAD = 0
	SYS_SET_BREAK     = 1
	SYS_ALLOC_PAGE    = 2
	SYS_KILL          = 3
	SYS_SLEEP         = 8
	SYS_GET_PSR       = 9
)

// Frame slot indices.
const (
	SVC_FRAME_R0 = iota
	SVC_FRAME_R1
	SVC_FRAME_R2
	SVC_FRAME_R3
	SVC_FRAME_R12
	SVC_FRAME_LR
	SVC_FRAME_PC
	SVC_FRAME_PSR
	SVC_FRAME_WORDS
)

// Class selector packed into the top bits of the stack-size argument
// of create-thread; stacks comfortably fit below this split.
const (
	SYS_CLASS_SHIFT = 29
	SYS_STACK_MSK   = (1 << SYS_CLASS_SHIFT) - 1
)

// Syscall executes an SVC from the current thread: stage the frame
// and the SVC instruction in memory, run the dispatcher against the
// frame, perform the queued switch, and return the rewritten slot
// zero.
func (k *Kernel) Syscall(num uint8, a0, a1, a2, a3 uint32) uint32 {
	bus := k.m.Bus

	// The SVC instruction the dispatcher will decode: condition
	// always, SVC opcode, immediate in the low byte.
	bus.KWrite32(k.svcTextVA, 0xEF000000|uint32(num))
	lr := k.svcTextVA + 4

	frame := k.svcFrameVA
	bus.KWrite32(frame+SVC_FRAME_R0*4, a0)
	bus.KWrite32(frame+SVC_FRAME_R1*4, a1)
	bus.KWrite32(frame+SVC_FRAME_R2*4, a2)
	bus.KWrite32(frame+SVC_FRAME_R3*4, a3)
	bus.KWrite32(frame+SVC_FRAME_R12*4, 0x12121212)
	bus.KWrite32(frame+SVC_FRAME_LR*4, lr)
	bus.KWrite32(frame+SVC_FRAME_PC*4, k.rq.curr.entryPC)
	bus.KWrite32(frame+SVC_FRAME_PSR*4, k.m.CPU.CPSR())

	k.m.CPU.SetSPSR(k.m.CPU.CPSR())
	k.supervisorException(frame)
	k.irqEpilogue()

	return bus.KRead32(frame + SVC_FRAME_R0*4)
}

// supervisorException is the SVC vector target. sp points at slot
// zero of the saved frame.
func (k *Kernel) supervisorException(sp uint32) {
	bus := k.m.Bus

	lr := bus.KRead32(sp + SVC_FRAME_LR*4)
	svcNum := bus.KRead8(lr - 4)

	svc0 := bus.KRead32(sp + SVC_FRAME_R0*4)
	svc1 := bus.KRead32(sp + SVC_FRAME_R1*4)
	svc2 := bus.KRead32(sp + SVC_FRAME_R2*4)
	svc3 := bus.KRead32(sp + SVC_FRAME_R3*4)

	switch svcNum {
	case SYS_CREATE_THREAD:
		body := k.entryBody(svc0)
		stackWords := svc1 & SYS_STACK_MSK
		class := svc1 >> SYS_CLASS_SHIFT
		name := k.readCString(svc2)

		t, err := k.CreateUserThread(body, stackWords, name, svc3, class)
		if err != nil {
			bus.KWrite32(sp+SVC_FRAME_R0*4, 0xFFFFFFFF)
		} else {
			bus.KWrite32(sp+SVC_FRAME_R0*4, t.pid)
		}

	case SYS_SET_BREAK:
		as := k.rq.curr.space
		if as == nil {
			bus.KWrite32(sp+SVC_FRAME_R0*4, 0)
			break
		}
		bus.KWrite32(sp+SVC_FRAME_R0*4, k.mm.SetBreak(as, svc0))

	case SYS_ALLOC_PAGE:
		// Debug aid; the page leaks on purpose.
		k.mm.AllocPage()

	case SYS_KILL:
		t := k.FindThread(svc0)
		if t == nil {
			bus.KWrite32(sp+SVC_FRAME_R0*4, 0xFFFFFFFF)
			break
		}
		k.KillThread(t)
		bus.KWrite32(sp+SVC_FRAME_R0*4, 0)

	case SYS_SLEEP:
		k.ThreadSleep(svc0)

	case SYS_GET_PSR:
		bus.KWrite32(sp+SVC_FRAME_R0*4, k.m.CPU.SPSR())
	}
}

// Entry registry: thread bodies are host functions, so user code
// names them by token rather than address.

func (k *Kernel) RegisterEntry(body ThreadFunc) uint32 {
	k.entryTokens++
	tok := k.entryTokens
	k.entryFns[tok] = body
	return tok
}

func (k *Kernel) entryBody(tok uint32) ThreadFunc {
	return k.entryFns[tok]
}

// readCString copies a NUL-terminated string out of kernel-visible
// memory, bounded by the thread name limit.
func (k *Kernel) readCString(va uint32) string {
	if va == 0 {
		return ""
	}
	var buf []byte
	for i := uint32(0); i < THREAD_MAX_NAME-1; i++ {
		b := k.m.Bus.KRead8(va + i)
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}
