package main

import "testing"

// TestBusDramAccess verifies little-endian DRAM access through the
// physical window.
func TestBusDramAccess(t *testing.T) {
	bus := NewMachineBus()

	bus.Write32(DDR_BASE+0x1000, 0x12345678)
	if got := bus.Read32(DDR_BASE + 0x1000); got != 0x12345678 {
		t.Fatalf("Read32 = 0x%08X, expected 0x12345678", got)
	}
	if got := bus.Read8(DDR_BASE + 0x1000); got != 0x78 {
		t.Fatalf("low byte = 0x%02X, expected 0x78 (little endian)", got)
	}
	if got := bus.Read16(DDR_BASE + 0x1002); got != 0x1234 {
		t.Fatalf("high half = 0x%04X, expected 0x1234", got)
	}
}

// TestBusKernelWindow verifies that the kernel virtual accessors are
// the fixed-offset view of the same DRAM.
func TestBusKernelWindow(t *testing.T) {
	bus := NewMachineBus()

	bus.KWrite32(KERNEL_START+0x2000, 0xCAFEBABE)
	if got := bus.Read32(DDR_BASE + 0x2000); got != 0xCAFEBABE {
		t.Fatalf("kernel write not visible at physical alias: 0x%08X", got)
	}
	if got := bus.KRead32(KERNEL_START + 0x2000); got != 0xCAFEBABE {
		t.Fatalf("KRead32 = 0x%08X", got)
	}
}

type stubDevice struct {
	lastWrite uint32
	lastAddr  uint32
	readVal   uint32
}

func (d *stubDevice) ReadReg(pa uint32) uint32 { d.lastAddr = pa; return d.readVal }
func (d *stubDevice) WriteReg(pa uint32, v uint32) {
	d.lastAddr = pa
	d.lastWrite = v
}

// TestBusDeviceDispatch verifies that register accesses outside DRAM
// reach the mapped device and unmapped space reads as zero.
func TestBusDeviceDispatch(t *testing.T) {
	bus := NewMachineBus()
	dev := &stubDevice{readVal: 0x55AA55AA}
	bus.MapDevice(0xF0000000, 0xF0000100, dev)

	bus.Write32(0xF0000010, 0x1234)
	if dev.lastAddr != 0xF0000010 || dev.lastWrite != 0x1234 {
		t.Fatalf("device write not dispatched: addr 0x%08X val 0x%08X", dev.lastAddr, dev.lastWrite)
	}
	if got := bus.Read32(0xF0000020); got != 0x55AA55AA {
		t.Fatalf("device read = 0x%08X", got)
	}
	if got := bus.Read32(0xE0000000); got != 0 {
		t.Fatalf("unmapped read = 0x%08X, expected 0", got)
	}
}

// TestApicPendWhileMasked verifies that a forced line raised inside a
// critical section is delivered when the mask drops.
func TestApicPendWhileMasked(t *testing.T) {
	m := NewMachine()

	fired := 0
	m.APIC.AddHandler(5, func() { fired++ })
	m.APIC.Enable(5)
	m.CPU.IrqEnable()

	flags := m.AtomicEnter()
	m.APIC.Force(5)
	if fired != 0 {
		t.Fatalf("IRQ delivered inside a critical section")
	}
	m.AtomicLeave(flags)

	if fired != 1 {
		t.Fatalf("pended IRQ not delivered on unmask: fired=%d", fired)
	}
}

// TestApicClearDropsPending verifies that Clear removes a pending
// request before delivery.
func TestApicClearDropsPending(t *testing.T) {
	m := NewMachine()

	fired := 0
	m.APIC.AddHandler(7, func() { fired++ })
	m.APIC.Enable(7)

	// IRQs are masked out of reset, so the force stays pending.
	m.APIC.Force(7)
	m.APIC.Clear(7)
	m.CPU.IrqEnable()
	m.APIC.Poll()

	if fired != 0 {
		t.Fatalf("cleared IRQ still delivered")
	}
}

// TestApicProtectKey verifies the documented workaround: mode writes
// are dropped unless the key register was written first.
func TestApicProtectKey(t *testing.T) {
	m := NewMachine()
	bus := m.Bus

	bus.Write32(APIC_SSR, 9)
	bus.Write32(APIC_SMR, 5)
	if got := bus.Read32(APIC_SMR); got != 0 {
		t.Fatalf("unkeyed mode write accepted: priority %d", got)
	}

	bus.Write32(APIC_WPMR, APIC_WPKEY)
	bus.Write32(APIC_SMR, 5)
	if got := bus.Read32(APIC_SMR); got != 5 {
		t.Fatalf("keyed mode write dropped: priority %d", got)
	}

	// The key covers exactly one write.
	bus.Write32(APIC_SMR, 2)
	if got := bus.Read32(APIC_SMR); got != 5 {
		t.Fatalf("key outlived its write: priority %d", got)
	}
}

// TestTimerPeriod verifies the tick line fires once per period and
// the raw value tracks intra-period time.
func TestTimerPeriod(t *testing.T) {
	m := NewMachine()

	ticks := 0
	m.APIC.AddHandler(PIT_IRQ, func() { ticks++ })
	m.APIC.Enable(PIT_IRQ)
	m.CPU.IrqEnable()
	m.Timer.Init()

	m.Timer.Advance(400)
	if ticks != 0 {
		t.Fatalf("tick fired mid-period")
	}
	if got := m.Timer.ValueUs(); got != 400 {
		t.Fatalf("ValueUs = %d, expected 400", got)
	}

	m.Timer.Advance(600)
	if ticks != 1 {
		t.Fatalf("ticks = %d after one period, expected 1", ticks)
	}

	m.Timer.Advance(3000)
	if ticks != 4 {
		t.Fatalf("ticks = %d after four periods, expected 4", ticks)
	}
}
