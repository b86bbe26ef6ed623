// Package debugger implements the controller described in spec 4.8: the
// one object that creates threads, owns run-state transitions, and is
// itself the handle the CPU executor calls back through for every bus
// access, breakpoint check, and trace emission. Grounded on
// debug_interface.go's DebuggableCPU adapter role and runtime_status.go's
// mutex-guarded snapshot pattern, generalized from a UI-facing monitor
// object into the spec's narrower run-state owner.
package debugger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/cpu"
	"github.com/intuitionamiga/coreforge/internal/device"
	"github.com/intuitionamiga/coreforge/internal/logsink"
	"github.com/intuitionamiga/coreforge/internal/presenter"
	"github.com/intuitionamiga/coreforge/internal/trace"
)

const (
	// burstInstructionCeiling is the nominal instructions-per-burst cap
	// (spec 4.8 "Burst sizing").
	burstInstructionCeiling = 1_000
	// presentIntervalDefault is used when no device declares an update
	// frequency to derive a burst cycle ceiling from.
	presentIntervalDefault = 60
)

// Controller owns the bus, CPU executor, breakpoint set, and run state,
// and is the cpu.Debugger every executor call passes through.
type Controller struct {
	bus          *bus.Bus
	exec         cpu.Executor
	fb           *device.Framebuffer
	presenter    presenter.Presenter
	log          *logsink.Sink
	cpuFreqHz    uint64

	mu    sync.Mutex
	cond  *sync.Cond
	state RunState
	steps uint32

	shouldExit atomic.Bool
	cancel     func()

	bpMu           sync.Mutex
	bps            map[uint64]bool
	suppressActive bool
	suppressAddr   uint64

	traceMu   sync.RWMutex
	traceOpts trace.Options
	formatter trace.Formatter

	statusMu     sync.RWMutex
	lastCommand  string
	totalInsts   uint64
	lastSnapTime time.Time
	lastSnapCyc  uint64
	cps          float64
}

// New builds a controller bound to bus b, executor exec, framebuffer fb
// (nil for a ROM/RAM/UART-only wiring without a display), presenter p,
// log sink, and the configured CPU frequency (used to derive the
// cycles-per-burst ceiling).
func New(b *bus.Bus, exec cpu.Executor, fb *device.Framebuffer, p presenter.Presenter, log *logsink.Sink, cpuFreqHz uint64, interactive bool) *Controller {
	c := &Controller{
		bus:        b,
		exec:       exec,
		fb:         fb,
		presenter:  p,
		log:        log,
		cpuFreqHz:  cpuFreqHz,
		bps:        make(map[uint64]bool),
		formatter:  trace.DefaultFormatter{},
		lastSnapTime: time.Time{},
	}
	c.cond = sync.NewCond(&c.mu)
	if interactive {
		c.state = Pause
	} else {
		c.state = Running
	}
	c.installSyncThresholds()
	exec.SetDebugger(c)
	return c
}

// installSyncThresholds converts each device's declared update frequency
// into a per-device cycle threshold (spec 4.2/2: "the controller converts
// [the declared update frequency] into per-device sync thresholds"), so
// due() inside syncState actually gates on something other than 0. A
// device with no declared frequency is skipped: its threshold stays 0,
// so it ticks on every SyncAll call.
func (c *Controller) installSyncThresholds() {
	for _, d := range c.bus.Devices() {
		freq := d.UpdateFrequencyHz()
		if freq == 0 {
			continue
		}
		threshold := c.cpuFreqHz / freq
		if threshold < 1 {
			threshold = 1
		}
		if s, ok := d.(syncThresholdSetter); ok {
			s.SetSyncThreshold(threshold)
		}
	}
}

// syncThresholdSetter is satisfied by devices that expose their embedded
// syncState for the controller to configure at wiring time.
type syncThresholdSetter interface {
	SetSyncThreshold(t uint64)
}

// SetFormatter installs a custom trace formatter (spec 6: "A custom
// formatter may be installed and receives the full TraceRecord and
// TraceOptions").
func (c *Controller) SetFormatter(f trace.Formatter) {
	c.traceMu.Lock()
	c.formatter = f
	c.traceMu.Unlock()
}

// SetTraceOptions updates which trace categories are enabled.
func (c *Controller) SetTraceOptions(opts trace.Options) {
	c.traceMu.Lock()
	c.traceOpts = opts
	c.traceMu.Unlock()
}

// --- cpu.Debugger ---

func (c *Controller) BusRead(address uint64, size int) bus.Response {
	return c.bus.Read(bus.Access{Address: address, Size: size, Type: bus.Read})
}

func (c *Controller) BusWrite(address uint64, size int, data uint64) bus.Response {
	return c.bus.Write(bus.Access{Address: address, Size: size, Type: bus.Write, Data: data})
}

func (c *Controller) HasBreakpoints() bool {
	c.bpMu.Lock()
	defer c.bpMu.Unlock()
	return len(c.bps) > 0
}

// IsBreakpoint reports whether pc is a set breakpoint, unless a step
// command explicitly suppressed it for this one fetch so the stepped
// instruction actually executes. This resolves an apparent tension
// between testable property 8 ("a step... starting at A does not
// execute the instruction at A") and the breakpoint-stop scenario
// ("step 1 executes the instruction at ROM base + 8 and advances PC"):
// the first stop at a breakpoint always halts before executing it, but
// once paused there, a step is the usual debugger gesture for moving
// past a breakpoint already hit, so it executes exactly that one
// instruction before any future stop can re-trigger on it.
func (c *Controller) IsBreakpoint(pc uint64) bool {
	c.bpMu.Lock()
	defer c.bpMu.Unlock()
	if c.suppressActive && pc == c.suppressAddr {
		return false
	}
	return c.bps[pc]
}

// suppressBreakpointAt disables breakpoint matching for exactly one
// fetch at addr, used by the CPU worker around a stepping burst so a
// step command can advance past the breakpoint the run just stopped at.
func (c *Controller) suppressBreakpointAt(addr uint64) {
	c.bpMu.Lock()
	c.suppressActive = true
	c.suppressAddr = addr
	c.bpMu.Unlock()
}

func (c *Controller) clearBreakpointSuppression() {
	c.bpMu.Lock()
	c.suppressActive = false
	c.bpMu.Unlock()
}

func (c *Controller) LogTrace(rec trace.Record) {
	c.traceMu.RLock()
	opts := c.traceOpts
	f := c.formatter
	c.traceMu.RUnlock()
	if !opts.Enabled() {
		return
	}
	line := f.Format(rec, opts)
	if line == "" {
		return
	}
	c.log.Write(logsink.LevelTrace, "", 0, "%s", line)
}

func (c *Controller) TraceOptions() trace.Options {
	c.traceMu.RLock()
	defer c.traceMu.RUnlock()
	return c.traceOpts
}

// --- run state ---

func (c *Controller) setState(s RunState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// requestExit is the single path that sets should_exit (spec 5: "Every
// wait point rechecks it on wakeup"); it wakes the CPU worker's
// condition wait and, if Run installed a cancel func, unblocks the
// context-based presenter/operator loops too.
func (c *Controller) requestExit() {
	c.shouldExit.Store(true)
	c.cond.Broadcast()
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) ShouldExit() bool {
	return c.shouldExit.Load()
}

// StatusLine is the one-line status snapshot spec 4.8 names: CPU state,
// PC, cycle count, total instructions, IPC, formatted CPS, and the last
// command that produced a transition.
type StatusLine struct {
	State         RunState
	PC            uint64
	Cycle         uint64
	Instructions  uint64
	IPC           float64
	CPS           float64
	CPSFormatted  string
	LastCommand   string
}

// Status returns the current status snapshot.
func (c *Controller) Status() StatusLine {
	c.statusMu.RLock()
	cps := c.cps
	insts := c.totalInsts
	lastCmd := c.lastCommand
	c.statusMu.RUnlock()

	pc := c.exec.PC()
	cyc := c.exec.Cycle()
	ipc := 0.0
	if cyc > 0 {
		ipc = float64(insts) / float64(cyc)
	}
	return StatusLine{
		State:        c.State(),
		PC:           pc,
		Cycle:        cyc,
		Instructions: insts,
		IPC:          ipc,
		CPS:          cps,
		CPSFormatted: formatCPS(cps),
		LastCommand:  lastCmd,
	}
}

func formatCPS(cps float64) string {
	switch {
	case cps >= 1_000_000:
		return fmt.Sprintf("%.2fM", cps/1_000_000)
	case cps >= 1_000:
		return fmt.Sprintf("%.2fK", cps/1_000)
	default:
		return fmt.Sprintf("%.0f", cps)
	}
}
