// Package bus implements the guest address-space dispatcher: it maps a
// 64-bit guest address to the device that owns it and delivers reads,
// writes and time-sync ticks to that device.
//
// The mapping lookup is a linear scan guarded by a last-hit cache, the same
// shape as the teacher's page-mapped SystemBus (memory_bus.go) but keyed on
// an arbitrary [base, base+size) range instead of a fixed page grid, since
// devices here are fewer and far larger than 0x100-byte I/O pages.
package bus

import "fmt"

// AccessType distinguishes why an access is happening.
type AccessType int

const (
	Read AccessType = iota
	Write
	Fetch
)

func (t AccessType) String() string {
	switch t {
	case Read:
		return "R"
	case Write:
		return "W"
	case Fetch:
		return "F"
	default:
		return "?"
	}
}

// ErrorKind enumerates the core's fault categories.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrInvalidOp
	ErrAccessFault
	ErrDeviceFault
	ErrHalt
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "None"
	case ErrInvalidOp:
		return "InvalidOp"
	case ErrAccessFault:
		return "AccessFault"
	case ErrDeviceFault:
		return "DeviceFault"
	case ErrHalt:
		return "Halt"
	default:
		return "Unknown"
	}
}

// Fault carries enough context to reconstruct why an access failed.
type Fault struct {
	Kind    ErrorKind
	Address uint64
	Size    int
	Data    uint64
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at 0x%x size %d (data=0x%x)", f.Kind, f.Address, f.Size, f.Data)
}

// Access is a single bus transaction: a width-qualified read, write or
// instruction fetch at a guest (or, post-translation, device-local) address.
type Access struct {
	Address uint64
	Size    int // one of 1, 2, 4, 8
	Type    AccessType
	Data    uint64 // write payload; ignored for reads/fetches
}

// Response is what a device (or the bus itself, on an unmapped access)
// returns for an Access.
type Response struct {
	Success       bool
	Data          uint64
	LatencyCycles uint64
	Err           *Fault
}

// Fail builds a failed Response carrying the given fault.
func Fail(kind ErrorKind, addr uint64, size int, data uint64) Response {
	return Response{Err: &Fault{Kind: kind, Address: addr, Size: size, Data: data}}
}

// OK builds a successful Response.
func OK(data uint64) Response {
	return Response{Success: true, Data: data}
}

// ValidSize reports whether n is one of the widths the bus and devices
// understand.
func ValidSize(n int) bool {
	switch n {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

// Kind tags a device's broad category, used for wiring decisions (such as
// which devices the controller treats as the UART for console mirroring)
// and diagnostics. It is not consulted by the bus itself.
type Kind int

const (
	KindROM Kind = iota
	KindRAM
	KindUART
	KindTimer
	KindDisplay
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindROM:
		return "ROM"
	case KindRAM:
		return "RAM"
	case KindUART:
		return "UART"
	case KindTimer:
		return "Timer"
	case KindDisplay:
		return "Display"
	default:
		return "Other"
	}
}

// Device is the contract every memory-mapped peripheral implements: a
// read handler, a write handler, and a time-sync tick. There is no
// function-pointer "install handler" indirection — each concrete device
// type (ROM, RAM, UART, Timer, Framebuffer) implements these methods
// directly, so dispatch is a plain interface call.
type Device interface {
	Name() string
	Kind() Kind
	// UpdateFrequencyHz is the device's nominal tick rate; 0 means the
	// device has no pacing preference and ticks only when the controller's
	// burst boundary crosses it.
	UpdateFrequencyHz() uint64
	Read(access Access) Response
	Write(access Access) Response
	// Sync advances the device's notion of time to currentCycle, invoking
	// its internal tick only once its own sync threshold has elapsed.
	Sync(currentCycle uint64)
}

// Region is a half-open, named claim on the guest address space.
type Region struct {
	Base uint64
	Size uint64
	Name string
}

// End returns the exclusive upper bound of the region.
func (r Region) End() uint64 { return r.Base + r.Size }

// Overflows reports whether Base+Size wraps past the 64-bit address space.
func (r Region) Overflows() bool {
	return r.End() < r.Base
}

// Overlaps reports whether the two regions share any address.
func (r Region) Overlaps(o Region) bool {
	return r.Base < o.End() && o.Base < r.End()
}

// ValidateRegions checks the disjointness and non-wrap invariants the
// wiring layer must enforce before any region is registered (spec section
// 4.10, testable property 1).
func ValidateRegions(regions []Region) error {
	for _, r := range regions {
		if r.Size == 0 {
			return fmt.Errorf("region %q has zero size", r.Name)
		}
		if r.Overflows() {
			return fmt.Errorf("region %q overflows the address space", r.Name)
		}
	}
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].Overlaps(regions[j]) {
				return fmt.Errorf("region %q overlaps region %q", regions[i].Name, regions[j].Name)
			}
		}
	}
	return nil
}

// mapping binds a region to the device that owns it, plus its precomputed
// end address so the hot lookup path never recomputes it.
type mapping struct {
	region Region
	device Device
	end    uint64
}

// Bus is the memory bus: the single dispatcher every CPU fetch and
// load/store passes through.
//
// The last-hit cache (lastHit) is consulted before the linear scan and is
// only ever touched by Read/Write, which — per spec section 4.1/9 — is a
// single-threaded hot path (the CPU worker). If a caller needs concurrent
// bus traffic from more than one goroutine, it must not share a Bus
// instance's cache across goroutines. The Bus has no internal locking:
// Register and the lookup path are both unsynchronized.
type Bus struct {
	mappings []mapping
	devices  []Device
	seen     map[Device]bool
	lastHit  *mapping
}

// New returns an empty Bus with no registered devices.
func New() *Bus {
	return &Bus{seen: make(map[Device]bool)}
}

// Register appends a device mapping. It is idempotent for an identical
// (device, base, size) triple already registered, and records dev in the
// unique-device list (in registration order) the first time it is seen.
func (b *Bus) Register(dev Device, base, size uint64, name string) error {
	region := Region{Base: base, Size: size, Name: name}
	if region.Size == 0 {
		return fmt.Errorf("bus: region %q has zero size", name)
	}
	if region.Overflows() {
		return fmt.Errorf("bus: region %q overflows the address space", name)
	}
	for _, m := range b.mappings {
		if m.device == dev && m.region.Base == base && m.region.Size == size {
			return nil
		}
	}
	b.mappings = append(b.mappings, mapping{region: region, device: dev, end: region.End()})
	b.lastHit = nil
	if !b.seen[dev] {
		b.seen[dev] = true
		b.devices = append(b.devices, dev)
	}
	return nil
}

// find returns the mapping covering addr, consulting the last-hit cache
// first.
func (b *Bus) find(addr uint64) (*mapping, bool) {
	if b.lastHit != nil && addr >= b.lastHit.region.Base && addr < b.lastHit.end {
		return b.lastHit, true
	}
	for i := range b.mappings {
		m := &b.mappings[i]
		if addr >= m.region.Base && addr < m.end {
			b.lastHit = m
			return m, true
		}
	}
	return nil, false
}

// Read locates the owning mapping and delegates a device-local read.
func (b *Bus) Read(access Access) Response {
	return b.dispatch(access, false)
}

// Write locates the owning mapping and delegates a device-local write.
func (b *Bus) Write(access Access) Response {
	return b.dispatch(access, true)
}

func (b *Bus) dispatch(access Access, write bool) Response {
	m, ok := b.find(access.Address)
	if !ok {
		return Fail(ErrAccessFault, access.Address, access.Size, access.Data)
	}
	local := access
	local.Address = access.Address - m.region.Base
	if write {
		return m.device.Write(local)
	}
	return m.device.Read(local)
}

// DeviceByName scans the unique-device list for a matching name. O(n); used
// by wiring to fetch a handle to a device it just registered (e.g. the
// UART, to attach console plumbing).
func (b *Bus) DeviceByName(name string) (Device, bool) {
	for _, d := range b.devices {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// SyncAll advances every unique registered device's notion of time to
// currentCycle, in registration order.
func (b *Bus) SyncAll(currentCycle uint64) {
	for _, d := range b.devices {
		d.Sync(currentCycle)
	}
}

// Devices returns the unique device list in registration order. Used by
// wiring to compute per-device sync thresholds before the first burst.
func (b *Bus) Devices() []Device {
	out := make([]Device, len(b.devices))
	copy(out, b.devices)
	return out
}
