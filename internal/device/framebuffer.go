package device

import (
	"sync"

	"github.com/intuitionamiga/coreforge/internal/bus"
)

const (
	fbCtrlOffset      = 0x00
	fbWidthOffset     = 0x04
	fbHeightOffset    = 0x08
	fbPitchOffset     = 0x0C
	fbStatusOffset    = 0x10
	fbKeyDataOffset   = 0x20
	fbKeyStatusOffset = 0x24
	fbKeyLastOffset   = 0x28

	// ControlRegionSize is the fixed control-register window preceding the
	// pixel buffer.
	ControlRegionSize = 4096

	statusReadyBit = 1 << 0
	statusDirtyBit = 1 << 1
)

// Framebuffer is the display+keyboard device: a 4KiB control region
// followed by a contiguous ARGB8888 pixel buffer, plus a host key/quit
// input queue. It is the one device in the core with a genuine
// asynchronous input source — the presenter thread's event poll — so it
// carries its own input mutex separate from the pixel-buffer access path,
// matching spec section 4.6/9's note that the framebuffer device is the
// synchronization boundary for host callback threads.
type Framebuffer struct {
	width, height uint64

	mu      sync.Mutex
	pixels  []byte
	dirty   bool
	present bool
	ready   bool

	inputMu  sync.Mutex
	keys     []byte
	lastKey  byte

	quit bool

	sync syncState
}

// NewFramebuffer returns a Framebuffer with the given pixel dimensions.
// Size is the 4KiB control region plus width*height*4 bytes of ARGB8888
// storage (spec 4.6).
func NewFramebuffer(width, height uint64) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
		ready:  true,
	}
}

func (f *Framebuffer) Name() string             { return "framebuffer" }
func (f *Framebuffer) Kind() bus.Kind            { return bus.KindDisplay }
func (f *Framebuffer) UpdateFrequencyHz() uint64 { return 60 }

// SetSyncThreshold installs the minimum cycle delta between Sync ticks,
// derived by the controller from UpdateFrequencyHz at wiring time.
func (f *Framebuffer) SetSyncThreshold(t uint64) { f.sync.setThreshold(t) }

// Size reports the device's total mapped size: control region plus pixel
// buffer.
func (f *Framebuffer) Size() uint64 {
	return ControlRegionSize + f.width*f.height*4
}

func (f *Framebuffer) Read(a bus.Access) bus.Response {
	if a.Address >= ControlRegionSize {
		return f.readPixels(a)
	}
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	switch a.Address {
	case fbWidthOffset:
		return bus.OK(f.width)
	case fbHeightOffset:
		return bus.OK(f.height)
	case fbPitchOffset:
		return bus.OK(f.width * 4)
	case fbStatusOffset:
		f.mu.Lock()
		var status uint64
		if f.ready {
			status |= statusReadyBit
		}
		if f.dirty {
			status |= statusDirtyBit
		}
		f.mu.Unlock()
		return bus.OK(status)
	case fbKeyDataOffset:
		f.inputMu.Lock()
		defer f.inputMu.Unlock()
		if len(f.keys) == 0 {
			return bus.OK(0)
		}
		k := f.keys[0]
		f.keys = f.keys[1:]
		return bus.OK(uint64(k))
	case fbKeyStatusOffset:
		f.inputMu.Lock()
		defer f.inputMu.Unlock()
		if len(f.keys) > 0 {
			return bus.OK(1)
		}
		return bus.OK(0)
	case fbKeyLastOffset:
		f.inputMu.Lock()
		defer f.inputMu.Unlock()
		return bus.OK(uint64(f.lastKey))
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, 0)
	}
}

func (f *Framebuffer) Write(a bus.Access) bus.Response {
	if a.Address >= ControlRegionSize {
		return f.writePixels(a)
	}
	if a.Size != 4 {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	switch a.Address {
	case fbCtrlOffset:
		if a.Data&1 != 0 {
			f.mu.Lock()
			f.present = true
			f.mu.Unlock()
		}
		return bus.OK(0)
	case fbKeyStatusOffset:
		f.inputMu.Lock()
		f.keys = nil
		f.lastKey = 0
		f.inputMu.Unlock()
		return bus.OK(0)
	default:
		return bus.Fail(bus.ErrDeviceFault, a.Address, a.Size, a.Data)
	}
}

func (f *Framebuffer) readPixels(a bus.Access) bus.Response {
	if !bus.ValidSize(a.Size) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	off := a.Address - ControlRegionSize
	f.mu.Lock()
	defer f.mu.Unlock()
	if off+uint64(a.Size) > uint64(len(f.pixels)) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	buf := make([]byte, 8)
	copy(buf, f.pixels[off:off+uint64(a.Size)])
	return bus.OK(decodeLE(buf, a.Size))
}

func (f *Framebuffer) writePixels(a bus.Access) bus.Response {
	if !bus.ValidSize(a.Size) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	off := a.Address - ControlRegionSize
	f.mu.Lock()
	defer f.mu.Unlock()
	if off+uint64(a.Size) > uint64(len(f.pixels)) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	copy(f.pixels[off:off+uint64(a.Size)], encodeLE(a.Data, a.Size))
	f.dirty = true
	return bus.OK(0)
}

// Sync is a no-op on the cycle clock: the framebuffer's aging/present
// policy is driven by the presenter thread's wall-clock poll, not by CPU
// cycles (spec 4.6), but it still participates in SyncAll to keep its
// declared 60Hz frequency meaningful for burst sizing.
func (f *Framebuffer) Sync(currentCycle uint64) {
	f.sync.due(currentCycle)
}

// ConsumePresentRequest reports and clears the latched present-requested
// flag, consumed exactly once by the presenter (spec property 6).
func (f *Framebuffer) ConsumePresentRequest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present {
		return false
	}
	f.present = false
	return true
}

// IsDirty reports whether pixel memory has changed since the last
// ClearDirty.
func (f *Framebuffer) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// ClearDirty clears the DIRTY flag, called by the presenter after it has
// rendered a frame.
func (f *Framebuffer) ClearDirty() {
	f.mu.Lock()
	f.dirty = false
	f.mu.Unlock()
}

// Pixels returns a snapshot copy of the pixel buffer for the presenter to
// upload.
func (f *Framebuffer) Pixels() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.pixels))
	copy(out, f.pixels)
	return out
}

// Dimensions returns the device's pixel width and height.
func (f *Framebuffer) Dimensions() (width, height uint64) {
	return f.width, f.height
}

// PushKey enqueues a key code from the host (or, in headless mode, from a
// test/console driver) and records it as the last key seen.
func (f *Framebuffer) PushKey(code byte) {
	f.inputMu.Lock()
	f.keys = append(f.keys, code)
	f.lastKey = code
	f.inputMu.Unlock()
}

// PushQuit records a host quit event.
func (f *Framebuffer) PushQuit() {
	f.inputMu.Lock()
	f.quit = true
	f.inputMu.Unlock()
}

// ConsumeQuit reports and clears the quit flag.
func (f *Framebuffer) ConsumeQuit() bool {
	f.inputMu.Lock()
	defer f.inputMu.Unlock()
	q := f.quit
	f.quit = false
	return q
}
