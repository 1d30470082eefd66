// kernel.go - Kernel boot and run loop for the Citrus Engine

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
kernel.go - Kernel Boot and Run Loop for the Citrus Engine

The boot order is the dependency order: machine, memory manager,
kernel page table, PID bitmap, scheduler with its idle thread, the
reaper, then the disk layer. Interrupts stay masked until SchedStart
puts the idle thread on the CPU; from that point curr is never nil and
every singleton above exists for the life of the machine.

The run loop models one tick of wall time per iteration: the current
thread's host-side body gets its slice, then the timer advances to the
period boundary, the tick IRQ fires, and the IRQ epilogue performs
whatever switch the scheduler queued.
*/

package main

// EXIT_TRAMPOLINE_PC is the link-register target of every synthetic
// first-dispatch frame: falling off a thread function lands on the
// exit path.
const EXIT_TRAMPOLINE_PC = KERNEL_START + 0x1000

type Kernel struct {
	m    *Machine
	mm   *MemManager
	rq   RunQueue
	pids *PidTable

	reapList List[*Thread]

	disks *SysDisk

	// SVC staging area: one frame and one instruction slot.
	svcFrameVA uint32
	svcTextVA  uint32

	entryFns      map[uint32]ThreadFunc
	entryTokens   uint32
	entryPCCursor uint32

	runGen uint64
}

// NewKernel boots the kernel on a fresh machine up to the point where
// SchedStart may run.
func NewKernel() *Kernel {
	m := NewMachine()
	k := &Kernel{
		m:             m,
		entryFns:      make(map[uint32]ThreadFunc),
		entryPCCursor: USER_CODE_BASE,
	}

	k.mm = NewMemManager(m)
	k.mm.KernelTableInit()
	k.pids = NewPidTable(k.mm)
	k.reapList.Init()

	k.svcFrameVA = k.mm.Kmalloc(SVC_FRAME_WORDS * 4)
	k.svcTextVA = k.mm.Kmalloc(8)
	if k.svcFrameVA == 0 || k.svcTextVA == 0 {
		m.Panic("cannot allocate SVC staging area")
	}

	k.schedInit()
	k.reaperInit()

	k.disks = NewSysDisk(k)

	k.Kprintf("citrus engine: %d pages DRAM, %d KiB kernel heap\n",
		DDR_PAGES, k.mm.slob.Total()/1024)
	return k
}

// Machine exposes the underlying hardware model.
func (k *Kernel) Machine() *Machine { return k.m }

// MM exposes the memory manager.
func (k *Kernel) MM() *MemManager { return k.mm }

// Disks exposes the disk layer.
func (k *Kernel) Disks() *SysDisk { return k.disks }

// Kprintf prints through the kernel console.
func (k *Kernel) Kprintf(format string, args ...any) {
	k.m.Kprintf(format, args...)
}

// RunTicks drives the machine for n scheduler periods. Within a
// period the current thread's body runs, and when it yields the CPU
// the freshly dispatched thread runs immediately, the way an
// interrupt return resumes it mid-slice. Whoever holds the CPU when
// the period closes takes the tick. A body runs at most once per
// period.
func (k *Kernel) RunTicks(n int) {
	for i := 0; i < n; i++ {
		k.runGen++
		for hops := 0; hops < 64; hops++ {
			t := k.rq.curr
			if t == nil || t.body == nil || t.state != THREAD_RUNNING || t.runGen == k.runGen {
				break
			}
			t.runGen = k.runGen
			t.body(k, t)
			if k.rq.curr == t {
				break
			}
		}
		k.m.Timer.Advance(SCHED_SLICE_US - k.m.Timer.ValueUs())
	}
}

// ConsumeTime lets a thread body model the CPU time its work costs.
// Crossing a period boundary fires the tick mid-body, exactly like
// being preempted.
func (k *Kernel) ConsumeTime(us uint32) {
	k.m.Timer.Advance(us)
}
