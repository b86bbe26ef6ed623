// Package cpu defines the executor contract every CPU back end implements
// and the narrow handle ("Debugger") through which an executor performs
// all bus traffic, breakpoint checks, and trace emission. Per spec 9's
// design note, the executor never holds a bus reference directly; it
// calls back through Debugger so the controller stays the sole owner of
// the bus and the sole place that transitions run state.
package cpu

import (
	"github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/trace"
)

// ErrorRecord is the executor's last-error state, populated before Step
// returns success=false (spec 4.7/7). Kind reuses bus.ErrorKind's five
// values: the executor's fault space is the same one the bus reports
// (InvalidOp and Halt are the kinds that never originate from the bus
// itself).
type ErrorRecord struct {
	Kind    bus.ErrorKind
	PC      uint64
	Address uint64
	Size    int
	Data    uint64
}

// StepResult reports what one burst of execution actually retired.
type StepResult struct {
	Success              bool
	InstructionsExecuted uint64
	CyclesExecuted       uint64
}

// Debugger is the handle an executor calls through for every bus access,
// breakpoint test, and trace emission. The controller implements this;
// the executor never sees a *bus.Bus directly.
type Debugger interface {
	BusRead(address uint64, size int) bus.Response
	BusWrite(address uint64, size int, data uint64) bus.Response
	HasBreakpoints() bool
	IsBreakpoint(pc uint64) bool
	LogTrace(rec trace.Record)
	TraceOptions() trace.Options
}

// Executor is the CPU contract every back end implements.
type Executor interface {
	Reset()
	Step(maxInstructions, maxCycles uint64) StepResult
	PC() uint64
	Cycle() uint64
	RegisterCount() int
	Register(index int) uint64
	LastError() ErrorRecord
	SetDebugger(handle Debugger)
	SetPC(pc uint64)
}
