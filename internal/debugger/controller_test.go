package debugger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/cpu/refcpu"
	"github.com/intuitionamiga/coreforge/internal/device"
	"github.com/intuitionamiga/coreforge/internal/logsink"
)

func encodeADDI(rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | rs1<<15 | 0<<12 | rd<<7 | 0x13
}

func putWord(t *testing.T, b *bus.Bus, addr uint64, word uint32) {
	t.Helper()
	resp := b.Write(bus.Access{Address: addr, Size: 4, Type: bus.Write, Data: uint64(word)})
	if !resp.Success {
		t.Fatalf("putWord(0x%x): %v", addr, resp.Err)
	}
}

func newTestController(t *testing.T) (*Controller, *refcpu.CPU, *bus.Bus) {
	t.Helper()
	b := bus.New()
	ram := device.NewRAM("ram", 0x100)
	if err := b.Register(ram, 0, 0x100, "ram"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	exec := refcpu.New()
	ctrl := New(b, exec, nil, nil, logsink.New(), 1_000_000, true)
	return ctrl, exec, b
}

func TestRunPauseQuitTransitions(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if ctrl.State() != Pause {
		t.Fatalf("initial state = %v, want Pause", ctrl.State())
	}
	ctrl.Execute("run")
	if ctrl.State() != Running {
		t.Fatalf("after run = %v, want Running", ctrl.State())
	}
	ctrl.Execute("pause")
	if ctrl.State() != Pause {
		t.Fatalf("after pause = %v, want Pause", ctrl.State())
	}
	ctrl.Execute("quit")
	if !ctrl.ShouldExit() {
		t.Fatal("quit did not set should_exit")
	}
}

func TestRunAndStepRejectedWhenHalted(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	ctrl.setState(Halted)
	if got := ctrl.Execute("run"); got != "CPU is halted. Cannot run/step." {
		t.Fatalf("run while halted = %q", got)
	}
	if got := ctrl.Execute("step"); got != "CPU is halted. Cannot run/step." {
		t.Fatalf("step while halted = %q", got)
	}
}

func TestBreakpointAddListDel(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if got := ctrl.Execute("bp list"); got != "no breakpoints" {
		t.Fatalf("bp list (empty) = %q", got)
	}
	ctrl.Execute("bp add 0x10")
	if !ctrl.IsBreakpoint(0x10) {
		t.Fatal("breakpoint not set")
	}
	if got := ctrl.Execute("bp list"); !strings.Contains(got, "0x10") {
		t.Fatalf("bp list = %q, want to contain 0x10", got)
	}
	ctrl.Execute("bp del 0x10")
	if ctrl.IsBreakpoint(0x10) {
		t.Fatal("breakpoint still set after del")
	}
}

func TestRegsFormatting(t *testing.T) {
	ctrl, exec, b := newTestController(t)
	putWord(t, b, 0, encodeADDI(1, 0, 7))
	exec.Step(1, 1000)
	out := ctrl.Execute("regs")
	if !strings.Contains(out, "r1   0x0000000000000007") {
		t.Fatalf("regs output missing r1=7: %q", out)
	}
}

func TestEvalAndMemCommands(t *testing.T) {
	ctrl, _, b := newTestController(t)
	putWord(t, b, 0x10, 0xDEADBEEF)
	if got := ctrl.Execute("eval 0x2+0x3"); got != "0x5 (5)" {
		t.Fatalf("eval = %q, want 0x5 (5)", got)
	}
	out := ctrl.Execute("mem 0x10 4")
	if !strings.Contains(out, "ef be ad de") {
		t.Fatalf("mem output = %q, want little-endian bytes of 0xDEADBEEF", out)
	}
}

func TestLogCommandUpdatesLevel(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if got := ctrl.Execute("log warn"); !strings.Contains(got, "warn") {
		t.Fatalf("log command = %q", got)
	}
	if got := ctrl.Execute("log bogus"); !strings.Contains(got, "unknown") {
		t.Fatalf("log command with bad level = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	if got := ctrl.Execute("frobnicate"); got != "Unknown command" {
		t.Fatalf("unknown command = %q", got)
	}
}

func TestControllerStopsAtBreakpoint(t *testing.T) {
	ctrl, exec, b := newTestController(t)
	putWord(t, b, 0, encodeADDI(1, 0, 1))
	putWord(t, b, 4, encodeADDI(2, 0, 2))
	putWord(t, b, 8, encodeADDI(3, 0, 3))

	ctrl.Execute("bp add 0x4")
	ctrl.Execute("run")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx, nil) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == Pause && exec.PC() == 4 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if ctrl.State() != Pause {
		t.Fatalf("state = %v, want Pause", ctrl.State())
	}
	if exec.PC() != 4 {
		t.Fatalf("PC = 0x%x, want 0x4", exec.PC())
	}
	if exec.Register(1) != 1 {
		t.Fatalf("r1 = %d, want 1 (instruction before breakpoint should have run)", exec.Register(1))
	}
	if exec.Register(2) != 0 {
		t.Fatalf("r2 = %d, want 0 (breakpointed instruction must not execute)", exec.Register(2))
	}

	ctrl.Execute("step")
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if exec.PC() == 8 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if exec.Register(2) != 2 {
		t.Fatalf("r2 = %d, want 2 after stepping past the breakpoint", exec.Register(2))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
