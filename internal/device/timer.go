package device

import "github.com/intuitionamiga/coreforge/internal/bus"

const (
	timerLowOffset  = 0x00
	timerHighOffset = 0x04
	timerCtrlOffset = 0x08
)

// Timer exposes a 64-bit microsecond counter split across a low/high
// register pair, advanced by CPU cycles at tick time (spec 4.5: one cycle
// equals one microsecond at the reference frequency; rescaling for a
// different declared CPU frequency is the controller's job, not this
// device's).
type Timer struct {
	accumulated uint64
	sync        syncState
}

// NewTimer returns a zeroed timer device.
func NewTimer() *Timer {
	return &Timer{}
}

func (t *Timer) Name() string             { return "timer" }
func (t *Timer) Kind() bus.Kind            { return bus.KindTimer }
func (t *Timer) UpdateFrequencyHz() uint64 { return 0 }

// SetSyncThreshold installs the minimum cycle delta between Sync ticks.
// The controller calls it at wiring time only for devices with a non-zero
// UpdateFrequencyHz; the timer declares 0, so its threshold stays 0.
func (t *Timer) SetSyncThreshold(th uint64) { t.sync.setThreshold(th) }

func (t *Timer) Read(a bus.Access) bus.Response {
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	switch a.Address {
	case timerLowOffset:
		return bus.OK(t.accumulated & 0xFFFFFFFF)
	case timerHighOffset:
		return bus.OK(t.accumulated >> 32)
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, 0)
	}
}

func (t *Timer) Write(a bus.Access) bus.Response {
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	switch a.Address {
	case timerCtrlOffset:
		t.accumulated = 0
		return bus.OK(0)
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, a.Data)
	}
}

// Sync advances the microsecond counter by the elapsed cycle delta.
func (t *Timer) Sync(currentCycle uint64) {
	if delta, ok := t.sync.due(currentCycle); ok {
		t.accumulated += delta
	}
}
