package main

import "testing"

// TestTrapFrameLayout verifies the synthetic first-dispatch frame:
// status word, entry point, exit trampoline, sentinels, argument and
// the alignment pad, in stacking order.
func TestTrapFrameLayout(t *testing.T) {
	k := newTestKernel(t)

	th, err := k.CreateKernelThread(nil, 256, "frame-probe", 0xAB54A99C, SCHED_RT)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if th.sp != th.stackBase+th.stackSize-TRAP_FRAME_WORDS*4 {
		t.Fatalf("sp 0x%08X not one frame below the stack top", th.sp)
	}

	f := readTrapFrame(k.m.Bus, th.sp)
	if f.CPSR != PSR_MODE_SVC {
		t.Fatalf("CPSR = 0x%08X, expected supervisor mode", f.CPSR)
	}
	if f.PC != th.entryPC {
		t.Fatalf("PC = 0x%08X, expected 0x%08X", f.PC, th.entryPC)
	}
	if f.LR != EXIT_TRAMPOLINE_PC {
		t.Fatalf("LR = 0x%08X, expected the exit trampoline", f.LR)
	}
	if f.R0 != 0xAB54A99C {
		t.Fatalf("R0 = 0x%08X, expected the argument", f.R0)
	}
	if f.Pad != 0 {
		t.Fatalf("alignment pad = 0x%08X", f.Pad)
	}
	if f.R12 != 0x12121212 || f.R4 != 0x04040404 || f.R11 != 0x11111111 {
		t.Fatalf("register sentinels wrong: r12=%08X r11=%08X r4=%08X", f.R12, f.R11, f.R4)
	}
}

// TestKernelThreadCreation verifies bookkeeping: heap charges, the
// global list, the class queue and the name cap.
func TestKernelThreadCreation(t *testing.T) {
	k := newTestKernel(t)

	usedBefore := k.mm.slob.Used()
	longName := "a-name-well-beyond-the-sixty-three-byte-limit-the-control-block-allows-for-thread-names"

	th, err := k.CreateKernelThread(nil, 512, longName, 0, SCHED_FAIR)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(th.Name()) != THREAD_MAX_NAME-1 {
		t.Fatalf("name length %d, expected capped at %d", len(th.Name()), THREAD_MAX_NAME-1)
	}
	if k.mm.slob.Used() <= usedBefore {
		t.Fatalf("control block and stack not charged to the heap")
	}
	if k.FindThread(th.Pid()) != th {
		t.Fatalf("thread not on the global list")
	}
	if th.class != &fairClass {
		t.Fatalf("thread in class %q, expected fair", th.class.name)
	}
	if k.rq.fairQ.Len() != 1 {
		t.Fatalf("fair queue holds %d threads", k.rq.fairQ.Len())
	}
}

// TestProcessCreation verifies the leader: own address space, user
// stack mapped at the top of the user half, user-mode frame reachable
// through the kernel alias.
func TestProcessCreation(t *testing.T) {
	k := newTestKernel(t)

	proc, err := k.CreateProcess(nil, 2048, "init", 7, SCHED_FAIR)
	if err != nil {
		t.Fatalf("create process: %v", err)
	}

	if proc.space == nil || proc.process != proc {
		t.Fatalf("leader not anchored to its own address space")
	}
	if proc.space.stackE >= KERNEL_START {
		t.Fatalf("stack edge 0x%08X not in the user half", proc.space.stackE)
	}
	if proc.sp >= KERNEL_START || proc.sp < proc.space.stackE {
		t.Fatalf("saved sp 0x%08X outside the mapped stack", proc.sp)
	}

	// The stack pages are mapped where the saved sp points.
	pte := readPte(k, proc.space, proc.sp&^uint32(PAGE_SIZE-1))
	if pteIsEmpty(pte) {
		t.Fatalf("stack page under sp not mapped")
	}

	// The frame was written through the kernel alias of those pages.
	framePa := pte&LV2_SMALL_BASE_MSK + proc.sp&(PAGE_SIZE-1)
	f := readTrapFrame(k.m.Bus, PaToVa(framePa))
	if f.CPSR != PSR_MODE_USR {
		t.Fatalf("process frame CPSR = 0x%08X, expected user mode", f.CPSR)
	}
	if f.R0 != 7 {
		t.Fatalf("process frame argument = %d", f.R0)
	}
}

// TestUserThreadSharesSpace verifies that a member thread shares the
// leader's space, gets a distinct stack and joins the group list.
func TestUserThreadSharesSpace(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	proc, err := k.CreateProcess(nil, 1024, "app", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create process: %v", err)
	}

	// Make the process current so thread creation binds to it.
	k.RunTicks(1)
	if k.CurrThread() != proc {
		t.Fatalf("process did not reach the CPU")
	}

	stackBefore := proc.space.stackE
	member, err := k.CreateUserThread(nil, 1024, "app-worker", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	if member.space != proc.space {
		t.Fatalf("member thread has its own address space")
	}
	if member.process != proc {
		t.Fatalf("member not bound to the leader")
	}
	if proc.threadGroup.Len() != 1 {
		t.Fatalf("group list holds %d members", proc.threadGroup.Len())
	}
	if member.space.stackE >= stackBefore {
		t.Fatalf("member stack did not descend: 0x%08X", member.space.stackE)
	}
}

// TestReaperFreesThread verifies the exit path: the dead thread's
// heap charges return, its id frees, and it leaves the global list.
func TestReaperFreesThread(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	usedBefore := k.mm.slob.Used()

	th, err := k.CreateKernelThread(func(k *Kernel, t *Thread) {
		k.ThreadExit()
	}, 512, "short-lived", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pid := th.Pid()

	// Let the thread run, die, and the background reaper collect it.
	k.RunTicks(20)

	if k.FindThread(pid) != nil {
		t.Fatalf("dead thread still on the global list")
	}
	if k.mm.slob.Used() != usedBefore {
		t.Fatalf("heap charge leaked: used %d, expected %d", k.mm.slob.Used(), usedBefore)
	}

	// The id is free again: the PID allocator's first-free rule hands
	// it to the next creation.
	th2, err := k.CreateKernelThread(nil, 256, "successor", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create successor: %v", err)
	}
	if th2.Pid() != pid {
		t.Fatalf("freed id %d not reused (got %d)", pid, th2.Pid())
	}
}

// TestProcessTeardownOnExit verifies that the last thread of a
// process returns the whole owned-page list to the buddy.
func TestProcessTeardownOnExit(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	buddyBefore := k.mm.buddy.Used()

	_, err := k.CreateProcess(func(k *Kernel, t *Thread) {
		k.ThreadExit()
	}, 1024, "doomed", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	if k.mm.buddy.Used() == buddyBefore {
		t.Fatalf("process creation consumed no pages")
	}

	k.RunTicks(20)

	if k.mm.buddy.Used() != buddyBefore {
		t.Fatalf("teardown leaked pages: used %d, expected %d", k.mm.buddy.Used(), buddyBefore)
	}
}
