package main

import "testing"

// TestSyscallNumberDecode verifies the number travels through memory:
// the dispatcher recovers it from the low byte of the instruction
// word at lr minus four.
func TestSyscallNumberDecode(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	k.Syscall(SYS_GET_PSR, 0, 0, 0, 0)

	instr := k.m.Bus.KRead32(k.svcTextVA)
	if instr != 0xEF000000|SYS_GET_PSR {
		t.Fatalf("staged SVC instruction 0x%08X", instr)
	}
	if got := k.m.Bus.KRead8(k.svcTextVA + 4 - 4); got != SYS_GET_PSR {
		t.Fatalf("low byte at lr-4 is 0x%02X", got)
	}
}

// TestSyscallUnknownNumberUnchanged verifies an unhandled number
// leaves slot zero untouched.
func TestSyscallUnknownNumberUnchanged(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	if got := k.Syscall(42, 0xFEEDF00D, 1, 2, 3); got != 0xFEEDF00D {
		t.Fatalf("unknown SVC rewrote slot 0 to 0x%08X", got)
	}
}

// TestSyscallGetPsr verifies opcode 9 returns the saved program
// status register.
func TestSyscallGetPsr(t *testing.T) {
	k := newTestKernel(t)
	k.SchedStart()

	want := k.m.CPU.CPSR()
	if got := k.Syscall(SYS_GET_PSR, 0, 0, 0, 0); got != want {
		t.Fatalf("get-psr returned 0x%08X, expected 0x%08X", got, want)
	}
}

// TestSyscallSetBreak verifies opcode 1 against a process: the break
// grows by whole buddy blocks and reports back through slot zero.
func TestSyscallSetBreak(t *testing.T) {
	k := newTestKernel(t)

	var got [3]uint32
	proc, err := k.CreateProcess(func(k *Kernel, t *Thread) {
		got[0] = k.Syscall(SYS_SET_BREAK, 0, 0, 0, 0)
		got[1] = k.Syscall(SYS_SET_BREAK, PAGE_SIZE+1, 0, 0, 0)
		got[2] = k.Syscall(SYS_SET_BREAK, 0, 0, 0, 0)
		k.ThreadExit()
	}, 1024, "brk", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	proc.space.dataE = 0x00200000

	k.SchedStart()
	k.RunTicks(5)

	if got[0] != 0x00200000 {
		t.Fatalf("initial break 0x%08X", got[0])
	}
	if got[1] != got[0]+2*PAGE_SIZE {
		t.Fatalf("grown break 0x%08X, expected 0x%08X", got[1], got[0]+2*PAGE_SIZE)
	}
	if got[2] != got[1] {
		t.Fatalf("zero-byte query moved the break")
	}
}

// TestSyscallCreateThread verifies opcode 0 builds a sibling thread
// in the calling process and returns its id.
func TestSyscallCreateThread(t *testing.T) {
	k := newTestKernel(t)

	tok := k.RegisterEntry(nil)
	nameVA := k.mm.Kmalloc(16)
	for i, b := range []byte("sibling\x00") {
		k.m.Bus.KWrite8(nameVA+uint32(i), b)
	}

	var childPid uint32 = 0xFFFFFFFF
	spawned := false
	proc, err := k.CreateProcess(func(k *Kernel, t *Thread) {
		if !spawned {
			spawned = true
			childPid = k.Syscall(SYS_CREATE_THREAD, tok,
				1024|SCHED_RT<<SYS_CLASS_SHIFT, nameVA, 0)
		}
	}, 1024, "parent", 0, SCHED_RT)
	if err != nil {
		t.Fatalf("create process: %v", err)
	}

	k.SchedStart()
	k.RunTicks(5)

	if childPid == 0xFFFFFFFF {
		t.Fatalf("create-thread syscall failed")
	}
	child := k.FindThread(childPid)
	if child == nil {
		t.Fatalf("child %d not on the thread list", childPid)
	}
	if child.Name() != "sibling" {
		t.Fatalf("child name %q", child.Name())
	}
	if child.process != proc || child.space != proc.space {
		t.Fatalf("child not bound to the calling process")
	}
}

// TestSyscallKill verifies opcode 3 removes the target from its
// queue and the reaper releases it.
func TestSyscallKill(t *testing.T) {
	k := newTestKernel(t)

	victim, _ := k.CreateKernelThread(nil, 256, "victim", 0, SCHED_FAIR)
	pid := victim.Pid()

	k.SchedStart()
	if got := k.Syscall(SYS_KILL, pid, 0, 0, 0); got != 0 {
		t.Fatalf("kill returned 0x%08X", got)
	}
	if victim.State() != THREAD_DEAD {
		t.Fatalf("victim state %d after kill", victim.State())
	}

	k.RunTicks(20)
	if k.FindThread(pid) != nil {
		t.Fatalf("victim still on the thread list after reaping")
	}

	// Killing a nonexistent id reports failure.
	if got := k.Syscall(SYS_KILL, 999, 0, 0, 0); got != 0xFFFFFFFF {
		t.Fatalf("kill of a bogus id returned 0x%08X", got)
	}
}

// TestSyscallSleepRoundTrip verifies opcode 8 parks the caller on
// the sleep queue and the tick path brings it back.
func TestSyscallSleepRoundTrip(t *testing.T) {
	k := newTestKernel(t)

	runs := 0
	th, _ := k.CreateKernelThread(func(k *Kernel, t *Thread) {
		runs++
		k.Syscall(SYS_SLEEP, 2000, 0, 0, 0)
	}, 256, "napper", 0, SCHED_RT)

	k.SchedStart()
	k.RunTicks(2)

	if th.State() != THREAD_SLEEP {
		t.Fatalf("thread state %d mid-sleep", th.State())
	}
	if k.rq.sleepList.Len() != 1 {
		t.Fatalf("sleep list holds %d threads", k.rq.sleepList.Len())
	}

	k.RunTicks(6)
	if runs < 2 {
		t.Fatalf("thread never woke: %d runs", runs)
	}
}
