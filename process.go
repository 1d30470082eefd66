// process.go - Process and user thread creation for the Citrus Engine

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
process.go - Process and User Thread Creation for the Citrus Engine

A process is a thread that owns an address space: an 8 KiB level-1
table, region bounds for code, heap and stack, and the list of every
page the process will ever hold. Its first thread is the group leader;
additional threads share the leader's space and differ only in their
freshly mapped stack at the top of the user half.

The user stack is allocated from the buddy, mapped at the descending
stack edge, and the synthetic first-dispatch frame is written through
the kernel alias of those pages while the saved stack pointer holds
the user-half address. The frame carries the user-mode status word, so
first dispatch drops privilege exactly like any interrupt return.
*/

package main

// USER_CODE_BASE is where process text lands in the user half.
const USER_CODE_BASE = 0x00100000

// userStackAttr is the mapping every stack and heap page gets.
func userStackAttr() PteAttr {
	return PteAttr{Mem: MemWriteThrough, Access: AccessFull, Domain: USER_DOMAIN}
}

// createUserThreadCore maps a stack into the thread's address space,
// builds the user-mode frame and hands the thread to the scheduler.
func (k *Kernel) createUserThreadCore(t *Thread, stackWords uint32, name string, arg uint32, flags uint32) {
	if t.space == nil {
		k.m.Panic("user thread has no address space")
	}

	threadSetName(t, name)

	stackBytes := stackWords * 4
	stackPages := (stackBytes + PAGE_SIZE - 1) / PAGE_SIZE
	stackOrder := PagesToOrder(stackPages)

	stackPage := k.mm.AllocPages(stackOrder)
	if stackPage == nil {
		k.m.Panic("user stack allocation failed")
	}
	t.space.AddPage(stackPage)
	t.pageCnt += 1 << stackOrder

	mapped := uint32(1) << stackOrder
	t.space.stackE -= mapped * PAGE_SIZE
	if !k.mm.MapIn(t.space, stackPage, mapped, t.space.stackE, userStackAttr()) {
		k.m.Panic("cannot map user stack")
	}

	start := k.mm.PageToVa(stackPage)
	k.m.CPU.DCacheCleanInvalidate()

	// Build the frame through the kernel alias, keep the user-half
	// address in the saved stack pointer.
	t.entryPC = k.nextEntry()
	t.stackBase = t.space.stackE
	t.stackSize = mapped * PAGE_SIZE

	frame := newTrapFrame(t.entryPC, arg, PSR_MODE_USR)
	spKern := frame.Push(k.m.Bus, start+mapped*PAGE_SIZE)
	t.sp = t.space.stackE + (spKern - start)

	k.schedAddThread(t)
	k.threadSetClass(t, flags)
	k.schedEnqueueThread(t)
}

// CreateProcess builds a new address space and its group leader.
func (k *Kernel) CreateProcess(body ThreadFunc, stackWords uint32, name string, arg uint32, flags uint32) (*Thread, error) {
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

	as := k.mm.NewAddressSpace()
	if as == nil {
		k.m.Panic("cannot allocate address space")
	}
	t.space = as

	k.createUserThreadCore(t, stackWords, name, arg, flags)

	// The leader anchors the group; the core already initialised the
	// group list node.
	t.process = t

	k.m.CPU.DCacheClean()
	return t, nil
}

// CreateUserThread adds a thread to the current process: same address
// space, fresh stack, linked into the leader's group.
func (k *Kernel) CreateUserThread(body ThreadFunc, stackWords uint32, name string, arg uint32, flags uint32) (*Thread, error) {
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

	parent := k.CurrThread()
	leader := parent.process
	t.space = leader.space
	t.process = leader
	leader.threadGroup.PushFront(&t.groupNode)

	k.createUserThreadCore(t, stackWords, name, arg, flags)

	k.m.CPU.DCacheClean()
	return t, nil
}

// MapInCode maps a loaded text block at the process code base and
// pins the data-segment bounds behind it.
func (k *Kernel) MapInCode(codePage *Page, pages uint32, t *Thread) {
	attr := PteAttr{Mem: MemWriteThrough, Access: AccessFull, Domain: USER_DOMAIN}
	if !k.mm.MapIn(t.space, codePage, pages, USER_CODE_BASE, attr) {
		k.m.Panic("cannot map process code")
	}
	t.space.AddPage(codePage)
	t.space.dataS = USER_CODE_BASE
	t.space.dataE = USER_CODE_BASE + pages*PAGE_SIZE

	k.m.CPU.TLBInvalidate()
	k.m.CPU.ICacheInvalidate()
	k.m.CPU.DCacheClean()
}
