// sched_classes.go - Scheduling classes for the Citrus Engine

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

// Four classes in a fixed priority chain: real-time, fair, background
// and idle. The first three are the same structure, an intrusive FIFO
// whose pick-next rotates the head to the tail, giving round robin
// within the class. The idle class terminates the chain and always
// offers its single thread. Queue mutation happens with interrupts
// masked because the tick path walks the same lists.

package main

type SchedClass struct {
	next *SchedClass
	name string

	enqueue  func(k *Kernel, t *Thread)
	dequeue  func(k *Kernel, t *Thread)
	pickNext func(k *Kernel) *Thread
	init     func(k *Kernel)
}

// FIFO helpers shared by the three queue-backed classes.

func fifoEnqueue(k *Kernel, q *List[*Thread], t *Thread) {
	flags := k.m.AtomicEnter()
	q.PushBack(&t.node)
	k.m.AtomicLeave(flags)
}

func fifoDequeue(k *Kernel, t *Thread) {
	flags := k.m.AtomicEnter()
	Remove(&t.node)
	k.m.AtomicLeave(flags)
}

func fifoPickNext(k *Kernel, q *List[*Thread]) *Thread {
	if q.Empty() {
		return nil
	}
	flags := k.m.AtomicEnter()
	n := q.PopFront()
	q.PushBack(n)
	k.m.AtomicLeave(flags)
	return n.Owner()
}

var rtClass = SchedClass{
	next: &fairClass,
	name: "rt",
	init: func(k *Kernel) { k.rq.rtQ.Init() },
	enqueue: func(k *Kernel, t *Thread) { fifoEnqueue(k, &k.rq.rtQ, t) },
	dequeue: fifoDequeue,
	pickNext: func(k *Kernel) *Thread { return fifoPickNext(k, &k.rq.rtQ) },
}

var fairClass = SchedClass{
	next: &backClass,
	name: "fair",
	init: func(k *Kernel) { k.rq.fairQ.Init() },
	enqueue: func(k *Kernel, t *Thread) { fifoEnqueue(k, &k.rq.fairQ, t) },
	dequeue: fifoDequeue,
	pickNext: func(k *Kernel) *Thread { return fifoPickNext(k, &k.rq.fairQ) },
}

var backClass = SchedClass{
	next: &idleClass,
	name: "background",
	init: func(k *Kernel) { k.rq.backQ.Init() },
	enqueue: func(k *Kernel, t *Thread) { fifoEnqueue(k, &k.rq.backQ, t) },
	dequeue: fifoDequeue,
	pickNext: func(k *Kernel) *Thread { return fifoPickNext(k, &k.rq.backQ) },
}

var idleClass = SchedClass{
	next: nil,
	name: "idle",
	init: func(k *Kernel) { k.rq.idleThread = nil },
	enqueue: func(k *Kernel, t *Thread) { k.rq.idleThread = t },
	dequeue: func(k *Kernel, t *Thread) {},
	pickNext: func(k *Kernel) *Thread { return k.rq.idleThread },
}

// schedClass maps the creation-flag selector onto the class chain.
func (k *Kernel) schedClass(classNum uint32) *SchedClass {
	switch classNum {
	case SCHED_RT:
		return &rtClass
	case SCHED_FAIR:
		return &fairClass
	case SCHED_BACK:
		return &backClass
	case SCHED_IDLE:
		return &idleClass
	}
	k.m.Panic("no scheduling class %d", classNum)
	return nil
}
