package device

import (
	"testing"

	"github.com/intuitionamiga/coreforge/internal/bus"
)

func readReg(t *testing.T, tm *Timer, off uint64) uint64 {
	t.Helper()
	resp := tm.Read(bus.Access{Address: off, Size: 4, Type: bus.Read})
	if !resp.Success {
		t.Fatalf("read at 0x%x failed: %v", off, resp.Err)
	}
	return resp.Data
}

func TestTimerAdvancesOnTick(t *testing.T) {
	tm := NewTimer()
	tm.Sync(1000)
	if low := readReg(t, tm, timerLowOffset); low != 1000 {
		t.Fatalf("low register = %d, want 1000", low)
	}
}

func TestTimerResetOnControlWrite(t *testing.T) {
	tm := NewTimer()
	tm.Sync(5000)
	before := readReg(t, tm, timerLowOffset)
	if before == 0 {
		t.Fatal("timer did not advance before reset")
	}

	resp := tm.Write(bus.Access{Address: timerCtrlOffset, Size: 4, Type: bus.Write, Data: 1})
	if !resp.Success {
		t.Fatalf("control write failed: %v", resp.Err)
	}
	after := readReg(t, tm, timerLowOffset)
	if after >= before {
		t.Fatalf("post-reset low register %d not less than pre-reset %d", after, before)
	}
}

func TestTimerHighRegister(t *testing.T) {
	tm := NewTimer()
	tm.accumulated = (uint64(3) << 32) | 42
	if high := readReg(t, tm, timerHighOffset); high != 3 {
		t.Fatalf("high register = %d, want 3", high)
	}
	if low := readReg(t, tm, timerLowOffset); low != 42 {
		t.Fatalf("low register = %d, want 42", low)
	}
}

func TestTimerFaultsOnBadAccess(t *testing.T) {
	tm := NewTimer()
	if resp := tm.Read(bus.Access{Address: timerLowOffset, Size: 1}); resp.Success {
		t.Fatal("1-byte read succeeded, expected AccessFault")
	}
	if resp := tm.Read(bus.Access{Address: 0x40, Size: 4}); resp.Success {
		t.Fatal("read at unknown offset succeeded, expected DeviceFault")
	}
}
