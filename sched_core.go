// sched_core.go - Scheduler core for the Citrus Engine

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
sched_core.go - Scheduler Core for the Citrus Engine

One CPU, one runqueue. The periodic tick runs in IRQ context and
decides whether rq.next should differ from rq.curr; the IRQ epilogue
performs the switch exactly when rq.next is set, so a forced
reschedule from thread context and a preemption share one switch
implementation.

Time accounting charges the nominal slice when the tick fired, or the
raw timer reading converted to microseconds on an early yield. The
charge lands on the global tick counter, the running thread's
cumulative runtime, and a rolling window accumulator; once a second
the accumulator rotates every thread's current runtime into its
window runtime, which is what a CPU meter reads.

Sleeping threads sit on a list sorted by wake tick, shortest first.
The runqueue caches the nearest wake tick so the tick handler touches
the list only when something is actually due.
*/

package main

type RqTime struct {
	tick       uint64 // µs since boot
	tickToWake uint64 // nearest pending wake, 0 when none
	tickWindow uint32 // µs accumulated in the current window
	window     uint32 // length of the last completed window
}

// RunQueue is the per-CPU scheduling state. next and curr stay first;
// the switch path reads nothing else.
type RunQueue struct {
	next *Thread // target of an imminent switch, nil when none
	curr *Thread

	lazyFPU *Thread // thread whose registers sit in the FPU bank

	rtQ, fairQ, backQ List[*Thread]
	idleThread        *Thread

	threadList List[*Thread]
	sleepList  List[*Thread]

	time RqTime

	schedEnable bool
}

// schedInit builds the runqueue, the class chain and the idle thread,
// wires the tick IRQ and programs the timer.
func (k *Kernel) schedInit() {
	rq := &k.rq
	rq.threadList.Init()
	rq.sleepList.Init()
	rq.curr = nil
	rq.next = nil
	rq.schedEnable = true

	for c := &rtClass; c != nil; c = c.next {
		c.init(k)
	}

	if _, err := k.CreateKernelThread(nil, 500, "idle", 0, SCHED_IDLE); err != nil {
		k.m.Panic("cannot create idle thread: %v", err)
	}

	k.m.CPU.IrqDisable()

	k.m.APIC.AddHandler(PIT_IRQ, k.cpuTickHandler)
	// Priority programming goes through the protect-keyed register
	// pair, the way the errata note prescribes.
	k.m.Bus.Write32(APIC_SSR, PIT_IRQ)
	k.m.Bus.Write32(APIC_WPMR, APIC_WPKEY)
	k.m.Bus.Write32(APIC_SMR, 7)
	k.m.APIC.Enable(PIT_IRQ)
	k.m.APIC.Epilogue = k.irqEpilogue

	k.m.Timer.Init()
}

// SchedStart puts the idle thread on the CPU and opens the IRQ gate.
// After this returns, curr is never nil.
func (k *Kernel) SchedStart() {
	k.rq.curr = k.rq.idleThread
	k.m.CPU.IrqEnable()
	k.m.APIC.Poll()
}

// cpuTickHandler is the periodic scheduler interrupt.
func (k *Kernel) cpuTickHandler() {
	k.m.Timer.ClearFlags()
	k.coreSched(false)
}

// coreSched runs inside the IRQ or SVC path and updates rq.next. An
// early yield charges the consumed part of the slice from the raw
// timer; a tick charges the nominal slice.
func (k *Kernel) coreSched(reschedule bool) {
	rq := &k.rq

	var runtime uint32
	if reschedule {
		runtime = k.m.Timer.Value() / PIT_CLK_PER_US
	} else {
		runtime = SCHED_SLICE_US
	}

	rq.time.tick += uint64(runtime)
	rq.time.tickWindow += runtime
	if rq.curr != nil {
		rq.curr.currRuntime += runtime
		rq.curr.totalRuntime += uint64(runtime)
	}

	if rq.time.tickWindow > 1000*1000 {
		rq.time.window = rq.time.tickWindow
		rq.time.tickWindow = 0
		k.schedSaveRuntime()
	}

	if rq.time.tickToWake != 0 && rq.time.tick > rq.time.tickToWake {
		k.enqueueSleepingThreads()
	}

	if !rq.schedEnable {
		return
	}

	next := k.corePickNext()
	if next != rq.curr {
		rq.next = next
	}
}

// corePickNext walks the class chain and returns the first offer. The
// idle class terminates the chain and always offers.
func (k *Kernel) corePickNext() *Thread {
	for c := &rtClass; c != nil; c = c.next {
		if t := c.pickNext(k); t != nil {
			return t
		}
	}
	k.m.Panic("no runnable thread, idle class broken")
	return nil
}

// schedSaveRuntime rotates the per-thread window counters. Runs once
// per accounting window.
func (k *Kernel) schedSaveRuntime() {
	k.rq.threadList.Iterate(func(n *ListNode[*Thread]) bool {
		t := n.Owner()
		t.windowRuntime = t.currRuntime
		t.currRuntime = 0
		return true
	})
}

// enqueueSleepingThreads wakes every thread whose tick has arrived and
// refreshes the nearest-wake hint.
func (k *Kernel) enqueueSleepingThreads() {
	rq := &k.rq
	tick := rq.time.tick

	for {
		n := rq.sleepList.First()
		if n == nil {
			break
		}
		t := n.Owner()
		if t.tickToWake > tick {
			break
		}
		Remove(n)
		t.state = THREAD_RUNNING
		t.class.enqueue(k, t)
	}

	if n := rq.sleepList.First(); n != nil {
		rq.time.tickToWake = n.Owner().tickToWake
	} else {
		rq.time.tickToWake = 0
	}
}

// addSleepList inserts the thread into the sorted sleep list and
// conditionally updates the nearest-wake hint. The thread must not be
// on any other list.
func (k *Kernel) addSleepList(t *Thread) {
	rq := &k.rq
	wake := t.tickToWake

	if rq.time.tickToWake == 0 || wake < rq.time.tickToWake {
		rq.time.tickToWake = wake
	}

	inserted := false
	rq.sleepList.Iterate(func(n *ListNode[*Thread]) bool {
		if n.Owner().tickToWake >= wake {
			rq.sleepList.InsertBefore(&t.node, n)
			inserted = true
			return false
		}
		return true
	})
	if !inserted {
		rq.sleepList.PushBack(&t.node)
	}
}

// ThreadSleep puts the current thread to sleep for us microseconds
// and forces a reschedule.
func (k *Kernel) ThreadSleep(us uint32) {
	curr := k.rq.curr

	curr.tickToWake = k.rq.time.tick + uint64(us)
	curr.class.dequeue(k, curr)
	curr.state = THREAD_SLEEP
	k.addSleepList(curr)

	k.coreSched(true)
}

// Reschedule forces the tick line from software; the handler runs the
// ordinary tick path and the epilogue performs the switch.
func (k *Kernel) Reschedule() {
	k.m.Bus.Write32(APIC_ISCR, PIT_IRQ)
	k.m.CPU.DMB()
	k.m.CPU.DSB()
	k.m.CPU.ISB()
}

// irqEpilogue performs the context switch when one is queued. It runs
// at the tail of every IRQ and SVC, mirroring the single switch
// implementation in the exception return path.
func (k *Kernel) irqEpilogue() {
	rq := &k.rq
	if rq.next == nil {
		return
	}
	next := rq.next
	rq.next = nil

	k.m.CPU.DSB()
	k.m.CPU.DMB()
	k.m.CPU.ISB()

	// Lazy FPU: the bank keeps the old owner's registers but the
	// unit is disabled, so the next touch traps and migrates them.
	k.m.VFP.Disable()

	if rq.curr != nil && next.space != rq.curr.space && next.space != nil {
		k.m.CPU.SetTTBR0(next.space.ttbrPhys)
		k.m.CPU.TLBInvalidate()
	}
	rq.curr = next
}

// schedAddThread links a thread onto the global thread list.
func (k *Kernel) schedAddThread(t *Thread) {
	flags := k.m.AtomicEnter()
	k.rq.threadList.PushFront(&t.threadNode)
	k.m.AtomicLeave(flags)
}

// schedEnqueueThread places a thread on its class's ready queue.
func (k *Kernel) schedEnqueueThread(t *Thread) {
	if t.class == nil {
		k.m.Panic("thread %q has no scheduling class", t.name)
	}
	t.class.enqueue(k, t)
}

// SchedDisable stops the pick-next machinery; ticks and accounting
// keep running. Returns the previous state for SchedEnable.
func (k *Kernel) SchedDisable() bool {
	prev := k.rq.schedEnable
	k.rq.schedEnable = false
	return prev
}

func (k *Kernel) SchedEnable(prev bool) {
	k.rq.schedEnable = prev
}

// KernelTick returns the global tick counter in µs.
func (k *Kernel) KernelTick() uint64 { return k.rq.time.tick }

// CurrThread returns the thread on the CPU.
func (k *Kernel) CurrThread() *Thread { return k.rq.curr }
