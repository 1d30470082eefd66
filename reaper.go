// reaper.go - Thread exit and reaping for the Citrus Engine

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
reaper.go - Thread Exit and Reaping for the Citrus Engine

Exit marks the thread dead, detaches it from its class and parks the
control block on the reap list; the dying thread never frees anything
it is still standing on. A background-class reaper thread drains the
list: it releases the kernel stack and control block charge, frees the
id, unlinks group membership, and for the last thread of a process
returns the whole owned-page list to the buddy and flushes stale
translations.

A leader whose members are still alive keeps its address space; the
reaper re-queues it until the group has emptied.
*/

package main

// ThreadExit terminates the current thread. The caller's slice ends
// here; the forced reschedule picks the next runnable thread.
func (k *Kernel) ThreadExit() {
	t := k.rq.curr

	flags := k.m.AtomicEnter()
	t.class.dequeue(k, t)
	t.state = THREAD_DEAD
	k.reapList.PushBack(&t.node)
	k.m.AtomicLeave(flags)

	k.Kprintf("thread %q (pid %d) exiting\n", t.name, t.pid)
	k.coreSched(true)
}

// KillThread terminates another thread: off whatever queue it holds,
// onto the reap list. Killing the current thread is an exit.
func (k *Kernel) KillThread(t *Thread) {
	if t == k.rq.curr {
		k.ThreadExit()
		return
	}

	flags := k.m.AtomicEnter()
	switch t.state {
	case THREAD_SLEEP:
		Remove(&t.node)
	case THREAD_RUNNING:
		t.class.dequeue(k, t)
	}
	t.state = THREAD_DEAD
	k.reapList.PushBack(&t.node)
	k.m.AtomicLeave(flags)
}

// reaperInit creates the background reaper thread.
func (k *Kernel) reaperInit() {
	if _, err := k.CreateKernelThread(reaperBody, 1000, "reaper", 0, SCHED_BACK); err != nil {
		k.m.Panic("cannot create reaper: %v", err)
	}
}

func reaperBody(k *Kernel, t *Thread) {
	for {
		flags := k.m.AtomicEnter()
		n := k.reapList.PopFront()
		k.m.AtomicLeave(flags)
		if n == nil {
			return
		}
		k.reapThread(n.Owner())
	}
}

// reapThread releases everything a dead thread still holds.
func (k *Kernel) reapThread(t *Thread) {
	leader := t.process

	if leader == t && !t.threadGroup.Empty() {
		// Members still alive; try again on a later pass.
		flags := k.m.AtomicEnter()
		k.reapList.PushBack(&t.node)
		k.m.AtomicLeave(flags)
		return
	}

	flags := k.m.AtomicEnter()
	Remove(&t.threadNode)
	Remove(&t.groupNode)
	k.m.AtomicLeave(flags)

	if t.space == nil {
		// Kernel thread: the stack came from the kernel heap.
		k.mm.Kfree(t.stackBase)
	} else if leader == t {
		// Last thread of the process: the page list carries the
		// stacks, heap blocks, code and page tables.
		k.mm.Teardown(t.space)
	}

	k.pids.Free(t.pid)
	k.mm.Kfree(t.tcbBlock)
}
