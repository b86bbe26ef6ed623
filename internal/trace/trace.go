// Package trace defines the instruction trace model the debugger emits
// through and the executor populates: an immutable record per retired
// instruction, the category toggles that gate which ones are emitted, and
// a pluggable formatter contract.
package trace

import "github.com/intuitionamiga/coreforge/internal/bus"

// MemEventKind distinguishes a memory-trace entry's access type. Fetch
// accesses are never recorded here (spec 6's Mem: line excludes Fetch).
type MemEventKind int

const (
	MemRead MemEventKind = iota
	MemWrite
)

func (k MemEventKind) String() string {
	if k == MemWrite {
		return "W"
	}
	return "R"
}

// MemEvent is one memory access performed while retiring an instruction.
type MemEvent struct {
	Type    MemEventKind
	Address uint64
	Size    int
	Data    uint64
	Latency uint64
}

// Branch carries branch-prediction bookkeeping for one retired instruction.
// Predicted fields are only meaningful when the executor has a predictor;
// zero values are valid ("no prediction").
type Branch struct {
	Taken           bool
	Target          uint64
	PredictedTaken  bool
	PredictedTarget uint64
}

// Extra is a free-form (key, value) pair an executor can attach to a
// record for formatter-specific detail the core model doesn't name.
type Extra struct {
	Key   string
	Value string
}

// Record is one retired instruction's trace data. It is built once by the
// executor and never mutated after being handed to a Formatter.
type Record struct {
	PC          uint64
	InstBytes   uint64
	DecodedText string
	CycleBegin  uint64
	CycleEnd    uint64
	MemEvents   []MemEvent
	IsBranch    bool
	Branch      Branch
	Extra       []Extra
}

// Options gates which trace categories the controller honors. The
// executor reports a full record whenever any category is enabled; the
// controller's formatter decides which parts of it to keep
// (spec 3's "Trace options... honored by the controller, not the
// executor").
type Options struct {
	LogInstruction      bool
	LogMemEvents        bool
	LogBranchPrediction bool
}

// Enabled reports whether any category is on, which the executor uses to
// decide whether building a Record is worth the cost at all.
func (o Options) Enabled() bool {
	return o.LogInstruction || o.LogMemEvents || o.LogBranchPrediction
}

// Formatter renders a Record for the currently active Options. A custom
// formatter receives the full record regardless of which categories are
// enabled, but is expected to honor the same gating the default one does.
type Formatter interface {
	Format(r Record, opts Options) string
}

// AccessTypeToMemEventKind maps a bus.AccessType onto a MemEventKind, dropping Fetch
// accesses (the caller is responsible for not recording those at all).
func AccessTypeToMemEventKind(t bus.AccessType) (MemEventKind, bool) {
	switch t {
	case bus.Read:
		return MemRead, true
	case bus.Write:
		return MemWrite, true
	default:
		return 0, false
	}
}
