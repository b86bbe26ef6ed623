package device

import (
	"sync"

	"github.com/intuitionamiga/coreforge/internal/bus"
)

// DeviceLog is the narrow logging contract the UART needs to flush its
// transmit buffer: a single formatted-write method. The concrete sink
// (internal/logsink) satisfies this without the device package needing to
// import it.
type DeviceLog interface {
	Write(format string, args ...any)
}

const (
	uartDataOffset   = 0x00
	uartStatusOffset = 0x04

	uartTXFlushSize = 256
	// uartIdleFlushCycles is the nominal idle threshold (spec 4.4): TX
	// bytes sitting in the buffer for this many cycles without a new
	// write get flushed even if the buffer never fills.
	uartIdleFlushCycles = 10_000
)

// UART is a byte-oriented serial device: a host-fed receive queue and a
// transmit buffer flushed to the device log, grounded in the teacher's
// TerminalMMIO (terminal_io.go) ring-buffer design but narrowed to the
// spec's two-register map and generalised to flush through an injected
// DeviceLog instead of an in-process output buffer.
type UART struct {
	mu sync.Mutex

	rx []byte

	tx        []byte
	idleSince uint64

	log  DeviceLog
	sync syncState
}

// NewUART returns a UART that flushes its transmit buffer to log.
func NewUART(log DeviceLog) *UART {
	return &UART{log: log}
}

func (u *UART) Name() string             { return "uart" }
func (u *UART) Kind() bus.Kind            { return bus.KindUART }
func (u *UART) UpdateFrequencyHz() uint64 { return 0 }

// SetSyncThreshold installs the minimum cycle delta between Sync ticks.
// The controller calls it at wiring time only for devices with a non-zero
// UpdateFrequencyHz; the UART declares 0, so its threshold stays 0.
func (u *UART) SetSyncThreshold(t uint64) { u.sync.setThreshold(t) }

func (u *UART) Read(a bus.Access) bus.Response {
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	switch a.Address {
	case uartDataOffset:
		if len(u.rx) == 0 {
			return bus.OK(0)
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return bus.OK(uint64(b))
	case uartStatusOffset:
		var status uint64 = 1 << 1 // TX_READY always set
		if len(u.rx) > 0 {
			status |= 1 << 0
		}
		return bus.OK(status)
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, 0)
	}
}

func (u *UART) Write(a bus.Access) bus.Response {
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	switch a.Address {
	case uartDataOffset:
		u.mu.Lock()
		u.tx = append(u.tx, byte(a.Data))
		u.idleSince = 0
		full := len(u.tx) >= uartTXFlushSize
		u.mu.Unlock()
		if full {
			u.flush()
		}
		return bus.OK(0)
	case uartStatusOffset:
		return bus.OK(0) // write is a no-op clear hook
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, a.Data)
	}
}

// PushRX appends a byte to the receive queue, called by the operator or
// console-input thread.
func (u *UART) PushRX(b byte) {
	u.mu.Lock()
	u.rx = append(u.rx, b)
	u.mu.Unlock()
}

// Sync advances the idle counter and flushes the transmit buffer once it
// has been idle (no writes) for uartIdleFlushCycles.
func (u *UART) Sync(currentCycle uint64) {
	delta, ok := u.sync.due(currentCycle)
	if !ok {
		return
	}
	u.mu.Lock()
	u.idleSince += delta
	idle := u.idleSince >= uartIdleFlushCycles && len(u.tx) > 0
	u.mu.Unlock()
	if idle {
		u.flush()
	}
}

// flush appends the buffered TX bytes verbatim to the device log and
// clears the buffer.
func (u *UART) flush() {
	u.mu.Lock()
	if len(u.tx) == 0 {
		u.mu.Unlock()
		return
	}
	bytes := u.tx
	u.tx = nil
	u.idleSince = 0
	u.mu.Unlock()

	if u.log != nil {
		u.log.Write("%s", string(bytes))
	}
}
