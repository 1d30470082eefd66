// thread.go - Thread control blocks and creation for the Citrus Engine

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
thread.go - Thread Control Blocks and Creation for the Citrus Engine

The control block keeps the saved stack pointer and the owning address
space in its first two fields so the low-level switch path needs no
layout knowledge beyond "word zero, word one". Everything else hangs
off it: the 32-word floating point shadow, the kernel stack, the wake
tick, runtime accounting, the intrusive links for the global thread
list, the ready or sleep queue and the thread group, and the
scheduling class.

A new thread starts from a synthetic trap frame pushed on its stack:
the same data layout the IRQ return path consumes on every context
switch, so first dispatch and re-dispatch are one code path. The frame
holds a privileged or user program status word, the entry point, a
link register aimed at the exit trampoline, recognisable sentinels in
the scratch registers, the argument in r0, and the AAPCS alignment pad
the IRQ epilogue expects.
*/

package main

type ThreadState uint8

const (
	THREAD_RUNNING ThreadState = iota // runnable or on the CPU
	THREAD_SLEEP
	THREAD_WAIT
	THREAD_STOPPED
	THREAD_DEAD
)

const THREAD_MAX_NAME = 64

// Scheduling class selectors carried in the creation flags.
const (
	SCHED_RT   = 0b000
	SCHED_FAIR = 0b001
	SCHED_BACK = 0b010
	SCHED_IDLE = 0b011

	FLAG_CLASS_MSK = 0b111
)

// ThreadFunc is the host-side body of a thread: the machine run loop
// invokes it once for every slice the thread holds the CPU, and it
// acts through the kernel the way the real thread's code would.
type ThreadFunc func(k *Kernel, t *Thread)

type Thread struct {
	// Saved stack pointer and owning address space. The switch path
	// reads exactly these two; keep them first.
	sp    uint32
	space *AddressSpace

	fpuShadow [32]uint32

	stackBase uint32 // kernel VA of the stack allocation
	stackSize uint32 // bytes

	tickToWake uint64

	totalRuntime  uint64 // cumulative µs
	currRuntime   uint32 // µs inside the current window
	windowRuntime uint32 // last completed window

	name string
	pid  uint32

	state      ThreadState
	privileged bool

	class *SchedClass

	// process points at the thread-group leader; a leader points at
	// itself. threadGroup is populated on leaders only.
	process     *Thread
	threadGroup List[*Thread]

	node       ListNode[*Thread] // ready queue or sleep list
	threadNode ListNode[*Thread] // global thread list
	groupNode  ListNode[*Thread] // sibling list of the process

	tcbBlock uint32 // heap charge for this control block

	body    ThreadFunc
	entryPC uint32
	arg     uint32
	pageCnt uint32
	runGen  uint64 // last machine period this body ran in
}

func (t *Thread) Name() string          { return t.name }
func (t *Thread) Pid() uint32           { return t.pid }
func (t *Thread) State() ThreadState    { return t.state }
func (t *Thread) TotalRuntime() uint64  { return t.totalRuntime }
func (t *Thread) WindowRuntime() uint32 { return t.windowRuntime }

// TrapFrame is the synthetic initial frame as a value type. Push lays
// it out on a stack exactly the way the IRQ return path consumes it.
type TrapFrame struct {
	CPSR uint32
	PC   uint32
	R12  uint32
	R3   uint32
	R2   uint32
	R1   uint32
	R0   uint32
	LR   uint32
	Pad  uint32
	R11  uint32
	R10  uint32
	R9   uint32
	R8   uint32
	R7   uint32
	R6   uint32
	R5   uint32
	R4   uint32
}

// TRAP_FRAME_WORDS is the stacked size of the synthetic frame.
const TRAP_FRAME_WORDS = 17

// newTrapFrame fills the frame for a first dispatch: status word for
// the target mode, entry point, exit trampoline in the link register,
// sentinel-filled scratch registers and the argument in r0. The pad
// slot keeps the IRQ path AAPCS-aligned.
func newTrapFrame(entryPC, arg, cpsr uint32) TrapFrame {
	return TrapFrame{
		CPSR: cpsr,
		PC:   entryPC,
		R12:  0x12121212,
		R3:   0x03030303,
		R2:   0x02020202,
		R1:   0x01010101,
		R0:   arg,
		LR:   EXIT_TRAMPOLINE_PC,
		Pad:  0,
		R11:  0x11111111,
		R10:  0x10101010,
		R9:   0x09090909,
		R8:   0x08080808,
		R7:   0x07070707,
		R6:   0x06060606,
		R5:   0x05050505,
		R4:   0x04040404,
	}
}

// Push writes the frame below spVa in stacking order and returns the
// resulting stack pointer.
func (f *TrapFrame) Push(bus *MachineBus, spVa uint32) uint32 {
	words := [TRAP_FRAME_WORDS]uint32{
		f.CPSR, f.PC, f.R12, f.R3, f.R2, f.R1, f.R0, f.LR, f.Pad,
		f.R11, f.R10, f.R9, f.R8, f.R7, f.R6, f.R5, f.R4,
	}
	sp := spVa
	for _, w := range words {
		sp -= 4
		bus.KWrite32(sp, w)
	}
	return sp
}

// readTrapFrame decodes a stacked frame. Test support.
func readTrapFrame(bus *MachineBus, spVa uint32) TrapFrame {
	var words [TRAP_FRAME_WORDS]uint32
	va := spVa + TRAP_FRAME_WORDS*4
	for i := range words {
		va -= 4
		words[i] = bus.KRead32(va)
	}
	return TrapFrame{
		CPSR: words[0], PC: words[1], R12: words[2], R3: words[3],
		R2: words[4], R1: words[5], R0: words[6], LR: words[7],
		Pad: words[8], R11: words[9], R10: words[10], R9: words[11],
		R8: words[12], R7: words[13], R6: words[14], R5: words[15],
		R4: words[16],
	}
}

// Heap charge per control block.
const threadStructSize = 256

func (k *Kernel) initThreadStruct(t *Thread) {
	t.node.InitNode(t)
	t.threadNode.InitNode(t)
	t.groupNode.InitNode(t)
	t.threadGroup.Init()
	t.tickToWake = 0
}

func threadSetName(t *Thread, name string) {
	if len(name) > THREAD_MAX_NAME-1 {
		name = name[:THREAD_MAX_NAME-1]
	}
	t.name = name
}

func (k *Kernel) threadSetClass(t *Thread, flags uint32) {
	t.class = k.schedClass(flags & FLAG_CLASS_MSK)
}

// nextEntryPC hands out a fake text address for a thread entry point;
// the frame needs a program counter even though the body runs on the
// host side.
func (k *Kernel) nextEntry() uint32 {
	k.entryPCCursor += 8
	return k.entryPCCursor
}

// CreateKernelThread builds a privileged thread on a kernel stack of
// stackWords words. PID exhaustion is the only non-fatal failure; a
// heap failure here is fatal because nothing above can recover.
func (k *Kernel) CreateKernelThread(body ThreadFunc, stackWords uint32, name string, arg uint32, flags uint32) (*Thread, error) {
	pid, e := k.pids.Alloc()
	if e < 0 {
		return nil, ErrNoPid
	}

	tcb := k.mm.Kzmalloc(threadStructSize)
	if tcb == 0 {
		k.m.Panic("thread control block allocation failed")
	}

	t := &Thread{tcbBlock: tcb, pid: pid, body: body, arg: arg}
	k.initThreadStruct(t)
	threadSetName(t, name)
	t.privileged = true
	t.process = t

	k.m.CPU.DCacheCleanInvalidate()

	t.stackSize = stackWords * 4
	t.stackBase = k.mm.Kmalloc(t.stackSize)
	if t.stackBase == 0 {
		k.m.Panic("kernel stack allocation failed")
	}
	t.entryPC = k.nextEntry()

	frame := newTrapFrame(t.entryPC, arg, PSR_MODE_SVC)
	t.sp = frame.Push(k.m.Bus, t.stackBase+t.stackSize)

	k.schedAddThread(t)
	k.threadSetClass(t, flags)
	k.schedEnqueueThread(t)

	k.m.CPU.ICacheInvalidate()
	k.m.CPU.DCacheClean()

	return t, nil
}

// FindThread returns the live thread with the given id, or nil.
func (k *Kernel) FindThread(pid uint32) *Thread {
	var found *Thread
	k.rq.threadList.Iterate(func(n *ListNode[*Thread]) bool {
		if n.Owner().pid == pid {
			found = n.Owner()
			return false
		}
		return true
	})
	return found
}
