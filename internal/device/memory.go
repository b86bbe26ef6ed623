package device

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/intuitionamiga/coreforge/internal/bus"
)

// Memory backs a contiguous, fixed-size byte region — used for both ROM
// and RAM, distinguished only by the readOnly flag. This mirrors the
// teacher's SystemBus main-memory slice (memory_bus.go) generalised into a
// standalone device rather than the bus's own backing store, since the
// bus here has no memory of its own — every byte lives in a device.
type Memory struct {
	name     string
	kind     bus.Kind
	readOnly bool
	storage  []byte
	sync     syncState
}

// NewRAM returns a writable Memory device of the given size.
func NewRAM(name string, size uint64) *Memory {
	return &Memory{name: name, kind: bus.KindRAM, storage: make([]byte, size)}
}

// NewROM returns a read-only Memory device of the given size. Its contents
// are zero until LoadImage populates them.
func NewROM(name string, size uint64) *Memory {
	return &Memory{name: name, kind: bus.KindROM, readOnly: true, storage: make([]byte, size)}
}

func (m *Memory) Name() string             { return m.name }
func (m *Memory) Kind() bus.Kind            { return m.kind }
func (m *Memory) UpdateFrequencyHz() uint64 { return 0 }

// LoadImage streams a file into storage starting at offset. It is a
// wiring-time operation (spec 4.3): a missing or unopenable file is an
// error, not a fault.
func (m *Memory) LoadImage(path string, offset uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load image %q: %w", path, err)
	}
	defer f.Close()

	if offset > uint64(len(m.storage)) {
		return fmt.Errorf("load image %q: offset 0x%x exceeds device size 0x%x", path, offset, len(m.storage))
	}
	n, err := io.ReadFull(f, m.storage[offset:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("load image %q: %w", path, err)
	}
	if n == 0 {
		st, statErr := os.Stat(path)
		if statErr == nil && st.Size() == 0 {
			return fmt.Errorf("load image %q: file is empty", path)
		}
	}
	return nil
}

// Size reports the device's storage size in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.storage)) }

func (m *Memory) Read(a bus.Access) bus.Response {
	if !bus.ValidSize(a.Size) || a.Address+uint64(a.Size) > uint64(len(m.storage)) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, 0)
	}
	buf := make([]byte, 8)
	copy(buf, m.storage[a.Address:a.Address+uint64(a.Size)])
	return bus.OK(decodeLE(buf, a.Size))
}

func (m *Memory) Write(a bus.Access) bus.Response {
	if m.readOnly {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	if !bus.ValidSize(a.Size) || a.Address+uint64(a.Size) > uint64(len(m.storage)) {
		return bus.Fail(bus.ErrAccessFault, a.Address, a.Size, a.Data)
	}
	buf := encodeLE(a.Data, a.Size)
	copy(m.storage[a.Address:a.Address+uint64(a.Size)], buf)
	return bus.OK(0)
}

// Sync is a no-op for memory devices: they declare no update frequency and
// have nothing to advance, but still participate in SyncAll so their
// syncState stays well-formed if a future variant needs it.
func (m *Memory) Sync(currentCycle uint64) {
	m.sync.due(currentCycle)
}

// decodeLE reads the low n bytes of buf as a little-endian unsigned value.
func decodeLE(buf []byte, n int) uint64 {
	switch n {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	default:
		return 0
	}
}

// encodeLE packs v's low n bytes into a little-endian buffer of length n.
func encodeLE(v uint64, n int) []byte {
	buf := make([]byte, n)
	switch n {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}
