package eval

import "testing"

type fakeRegs struct {
	pc   uint64
	regs []uint64
}

func (f fakeRegs) PC() uint64 { return f.pc }

func (f fakeRegs) Register(index int) uint64 {
	if index < 0 || index >= len(f.regs) {
		return 0
	}
	return f.regs[index]
}

type fakeMem map[uint64]uint64

func (m fakeMem) ReadWord(addr uint64) (uint64, bool) {
	v, ok := m[addr]
	return v, ok
}

func TestArithmeticPrecedenceAndHex(t *testing.T) {
	if got := Eval("0x10 + 0x20", nil, nil); got != 0x30 {
		t.Fatalf("got 0x%x, want 0x30", got)
	}
	if got := Eval("2 + 3 * 4", nil, nil); got != 14 {
		t.Fatalf("got %d, want 14", got)
	}
	if got := Eval("(2 + 3) * 4", nil, nil); got != 20 {
		t.Fatalf("got %d, want 20", got)
	}
}

func TestDivisionByZeroReturnsZero(t *testing.T) {
	if got := Eval("10 / 0", nil, nil); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestUnsignedWrapOnSubtraction(t *testing.T) {
	got := Eval("0 - 1", nil, nil)
	if got != ^uint64(0) {
		t.Fatalf("got 0x%x, want 0x%x", got, ^uint64(0))
	}
}

func TestMemoryDereference(t *testing.T) {
	mem := fakeMem{0x1000: 0xCAFEBABE}
	if got := Eval("[0x1000]", nil, mem); got != 0xCAFEBABE {
		t.Fatalf("got 0x%x, want 0xCAFEBABE", got)
	}
}

func TestMemoryDereferenceFailedReadIsZero(t *testing.T) {
	mem := fakeMem{}
	if got := Eval("[0x2000]", nil, mem); got != 0 {
		t.Fatalf("got 0x%x, want 0", got)
	}
}

func TestRegisterReferencePC(t *testing.T) {
	regs := fakeRegs{pc: 0x4000}
	if got := Eval("$pc", regs, nil); got != 0x4000 {
		t.Fatalf("got 0x%x, want 0x4000", got)
	}
}

func TestRegisterReferenceIndexed(t *testing.T) {
	regs := fakeRegs{regs: []uint64{0, 11, 22, 33}}
	if got := Eval("$r2", regs, nil); got != 22 {
		t.Fatalf("got %d, want 22", got)
	}
	if got := Eval("$2", regs, nil); got != 22 {
		t.Fatalf("got %d, want 22", got)
	}
}

func TestRegisterOutOfRangeIsZero(t *testing.T) {
	regs := fakeRegs{regs: []uint64{1, 2}}
	if got := Eval("$99", regs, nil); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestUnknownTokenDegradesToZeroWithoutAborting(t *testing.T) {
	if got := Eval("@@@ + 5", nil, nil); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestEmptyExpressionIsZero(t *testing.T) {
	if got := Eval("", nil, nil); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestCompositeExpressionWithMemoryAndRegister(t *testing.T) {
	regs := fakeRegs{regs: []uint64{0, 0x10}}
	mem := fakeMem{0x1010: 0x7}
	got := Eval("[$1 + 0x1000]", regs, mem)
	if got != 0x7 {
		t.Fatalf("got 0x%x, want 0x7", got)
	}
}
