// Package refcpu implements the RV32I-subset reference executor: a small,
// fully wired CPU back end that lets the rest of the core exercise
// spec section 8's end-to-end scenarios without depending on a specific
// production instruction set (explicitly out of scope per the core's
// Non-goals).
//
// Decoding follows the RV32I layout and immediate-extraction helpers from
// quminzhi-emurv's sim/cpu.go and sim/isa.go, adapted to call through a
// cpu.Debugger handle for every memory access instead of a direct bus
// pointer, to check breakpoints before fetch, and to populate
// cpu.ErrorRecord on any terminal condition.
package refcpu

import (
	"fmt"

	corebus "github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/cpu"
	"github.com/intuitionamiga/coreforge/internal/trace"
)

const numRegisters = 32

// CPU is the RV32I-subset reference executor. x0 is hardwired to zero.
type CPU struct {
	regs  [numRegisters]uint32
	pc    uint32
	cycle uint64

	dbg      cpu.Debugger
	lastErr  cpu.ErrorRecord
}

// New returns a freshly reset CPU. dbg may be installed later via
// SetDebugger.
func New() *CPU {
	c := &CPU{}
	c.Reset()
	return c
}

func (c *CPU) Reset() {
	c.regs = [numRegisters]uint32{}
	c.pc = 0
	c.cycle = 0
	c.lastErr = cpu.ErrorRecord{}
}

func (c *CPU) SetDebugger(handle cpu.Debugger) { c.dbg = handle }
func (c *CPU) SetPC(pc uint64)                 { c.pc = uint32(pc) }
func (c *CPU) PC() uint64                      { return uint64(c.pc) }
func (c *CPU) Cycle() uint64                   { return c.cycle }
func (c *CPU) RegisterCount() int              { return numRegisters }

func (c *CPU) Register(index int) uint64 {
	if index < 0 || index >= numRegisters {
		return 0
	}
	return uint64(c.regs[index])
}

func (c *CPU) LastError() cpu.ErrorRecord { return c.lastErr }

func (c *CPU) readReg(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return c.regs[i]
}

func (c *CPU) writeReg(i uint32, v uint32) {
	if i != 0 {
		c.regs[i] = v
	}
}

// Step executes up to maxInstructions instructions or maxCycles cycles,
// whichever is reached first, stopping early at a breakpoint boundary
// (checked before fetch, so the flagged instruction is never retired) or
// on the first faulting access. On any terminal condition lastErr is
// populated and Success is false, with the partial counts actually
// retired before the stop.
func (c *CPU) Step(maxInstructions, maxCycles uint64) cpu.StepResult {
	var insts, cycles uint64
	for insts < maxInstructions && cycles < maxCycles {
		if c.dbg != nil && c.dbg.HasBreakpoints() && c.dbg.IsBreakpoint(uint64(c.pc)) {
			return cpu.StepResult{Success: true, InstructionsExecuted: insts, CyclesExecuted: cycles}
		}

		ok := c.step1()
		insts++
		cycles++
		c.cycle++

		if !ok {
			return cpu.StepResult{Success: false, InstructionsExecuted: insts, CyclesExecuted: cycles}
		}
	}
	return cpu.StepResult{Success: true, InstructionsExecuted: insts, CyclesExecuted: cycles}
}

func (c *CPU) busRead(addr uint64, size int) (corebus.Response, bool) {
	if c.dbg == nil {
		return corebus.Response{}, false
	}
	resp := c.dbg.BusRead(addr, size)
	return resp, resp.Success
}

func (c *CPU) busWrite(addr uint64, size int, data uint64) (corebus.Response, bool) {
	if c.dbg == nil {
		return corebus.Response{}, false
	}
	resp := c.dbg.BusWrite(addr, size, data)
	return resp, resp.Success
}

func (c *CPU) fault(resp corebus.Response, pc uint64, fallback corebus.ErrorKind) {
	if resp.Err != nil {
		c.lastErr = cpu.ErrorRecord{Kind: resp.Err.Kind, PC: pc, Address: resp.Err.Address, Size: resp.Err.Size, Data: resp.Err.Data}
		return
	}
	c.lastErr = cpu.ErrorRecord{Kind: fallback, PC: pc}
}

// step1 retires exactly one instruction and reports whether execution may
// continue (false means a fault or halt terminated the burst).
func (c *CPU) step1() bool {
	startPC := uint64(c.pc)
	startCycle := c.cycle

	fetchResp, ok := c.busRead(startPC, 4)
	if !ok {
		c.fault(fetchResp, startPC, corebus.ErrAccessFault)
		return false
	}
	inst := uint32(fetchResp.Data)

	op := inst & 0x7F
	rd := (inst >> 7) & 0x1F
	f3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F
	rs2 := (inst >> 20) & 0x1F
	f7 := (inst >> 25) & 0x7F

	nextPC := c.pc + 4
	decoded := "?"
	var memEvents []trace.MemEvent
	branch := trace.Branch{}
	isBranch := false

	switch op {
	case 0x37: // LUI
		c.writeReg(rd, uint32(immU(inst)))
		decoded = "lui"
	case 0x17: // AUIPC
		c.writeReg(rd, uint32(int32(c.pc)+immU(inst)))
		decoded = "auipc"
	case 0x6F: // JAL
		imm := uint32(immJ(inst))
		c.writeReg(rd, c.pc+4)
		nextPC = c.pc + imm
		decoded = "jal"
		isBranch, branch.Taken, branch.Target = true, true, uint64(nextPC)
	case 0x67: // JALR
		imm := uint32(immI(inst))
		target := (c.readReg(rs1) + imm) &^ 1
		c.writeReg(rd, c.pc+4)
		nextPC = target
		decoded = "jalr"
		isBranch, branch.Taken, branch.Target = true, true, uint64(nextPC)

	case 0x63: // BRANCH
		a, b := c.readReg(rs1), c.readReg(rs2)
		imm := uint32(immB(inst))
		taken := false
		switch f3 {
		case 0x0:
			taken = a == b
			decoded = "beq"
		case 0x1:
			taken = a != b
			decoded = "bne"
		case 0x4:
			taken = int32(a) < int32(b)
			decoded = "blt"
		case 0x5:
			taken = int32(a) >= int32(b)
			decoded = "bge"
		case 0x6:
			taken = a < b
			decoded = "bltu"
		case 0x7:
			taken = a >= b
			decoded = "bgeu"
		default:
			c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC}
			return false
		}
		isBranch = true
		branch.Taken = taken
		if taken {
			nextPC = c.pc + imm
		}
		branch.Target = uint64(nextPC)

	case 0x03: // LOAD
		base := c.readReg(rs1)
		addr := uint64(base + uint32(immI(inst)))
		switch f3 {
		case 0x0: // LB
			resp, ok := c.busRead(addr, 1)
			if !ok {
				c.fault(resp, startPC, corebus.ErrAccessFault)
				return false
			}
			c.writeReg(rd, uint32(int32(int8(byte(resp.Data)))))
			decoded = "lb"
			memEvents = append(memEvents, trace.MemEvent{Type: trace.MemRead, Address: addr, Size: 1, Data: resp.Data})
		case 0x4: // LBU
			resp, ok := c.busRead(addr, 1)
			if !ok {
				c.fault(resp, startPC, corebus.ErrAccessFault)
				return false
			}
			c.writeReg(rd, uint32(resp.Data))
			decoded = "lbu"
			memEvents = append(memEvents, trace.MemEvent{Type: trace.MemRead, Address: addr, Size: 1, Data: resp.Data})
		case 0x2: // LW
			resp, ok := c.busRead(addr, 4)
			if !ok {
				c.fault(resp, startPC, corebus.ErrAccessFault)
				return false
			}
			c.writeReg(rd, uint32(resp.Data))
			decoded = "lw"
			memEvents = append(memEvents, trace.MemEvent{Type: trace.MemRead, Address: addr, Size: 4, Data: resp.Data})
		default:
			c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC}
			return false
		}

	case 0x23: // STORE
		base := c.readReg(rs1)
		addr := uint64(base + uint32(immS(inst)))
		switch f3 {
		case 0x0: // SB
			v := uint64(c.readReg(rs2) & 0xFF)
			resp, ok := c.busWrite(addr, 1, v)
			if !ok {
				c.fault(resp, startPC, corebus.ErrAccessFault)
				return false
			}
			decoded = "sb"
			memEvents = append(memEvents, trace.MemEvent{Type: trace.MemWrite, Address: addr, Size: 1, Data: v})
		case 0x2: // SW
			v := uint64(c.readReg(rs2))
			resp, ok := c.busWrite(addr, 4, v)
			if !ok {
				c.fault(resp, startPC, corebus.ErrAccessFault)
				return false
			}
			decoded = "sw"
			memEvents = append(memEvents, trace.MemEvent{Type: trace.MemWrite, Address: addr, Size: 4, Data: v})
		default:
			c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC}
			return false
		}

	case 0x13: // OP-IMM
		a := c.readReg(rs1)
		imm := uint32(immI(inst))
		switch f3 {
		case 0x0:
			c.writeReg(rd, a+imm)
			decoded = "addi"
		case 0x4:
			c.writeReg(rd, a^imm)
			decoded = "xori"
		case 0x6:
			c.writeReg(rd, a|imm)
			decoded = "ori"
		case 0x7:
			c.writeReg(rd, a&imm)
			decoded = "andi"
		case 0x1:
			c.writeReg(rd, a<<(imm&0x1F))
			decoded = "slli"
		case 0x5:
			if (imm>>10)&0x3F == 0x00 {
				c.writeReg(rd, a>>(imm&0x1F))
				decoded = "srli"
			} else {
				c.writeReg(rd, uint32(int32(a)>>(imm&0x1F)))
				decoded = "srai"
			}
		default:
			c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC}
			return false
		}

	case 0x33: // OP
		a, b := c.readReg(rs1), c.readReg(rs2)
		switch f3 {
		case 0x0:
			if f7 == 0x20 {
				c.writeReg(rd, a-b)
				decoded = "sub"
			} else {
				c.writeReg(rd, a+b)
				decoded = "add"
			}
		case 0x4:
			c.writeReg(rd, a^b)
			decoded = "xor"
		case 0x6:
			c.writeReg(rd, a|b)
			decoded = "or"
		case 0x7:
			c.writeReg(rd, a&b)
			decoded = "and"
		case 0x1:
			c.writeReg(rd, a<<(b&0x1F))
			decoded = "sll"
		case 0x5:
			if f7 == 0x20 {
				c.writeReg(rd, uint32(int32(a)>>(b&0x1F)))
				decoded = "sra"
			} else {
				c.writeReg(rd, a>>(b&0x1F))
				decoded = "srl"
			}
		case 0x2:
			if int32(a) < int32(b) {
				c.writeReg(rd, 1)
			} else {
				c.writeReg(rd, 0)
			}
			decoded = "slt"
		case 0x3:
			if a < b {
				c.writeReg(rd, 1)
			} else {
				c.writeReg(rd, 0)
			}
			decoded = "sltu"
		default:
			c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC}
			return false
		}

	case 0x73: // SYSTEM - ECALL treated as halt, per this executor's
		// documented halt convention (see package README): mapped to
		// cpu.ErrHalt rather than cpu.ErrNone, so a halted machine is
		// distinguishable from a plain successful Step return.
		c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrHalt, PC: startPC}
		return false

	default:
		c.lastErr = cpu.ErrorRecord{Kind: corebus.ErrInvalidOp, PC: startPC, Data: uint64(inst)}
		return false
	}

	c.pc = nextPC

	if c.dbg != nil {
		opts := c.dbg.TraceOptions()
		if opts.Enabled() {
			c.dbg.LogTrace(trace.Record{
				PC:          startPC,
				InstBytes:   uint64(inst),
				DecodedText: decoded,
				CycleBegin:  startCycle,
				CycleEnd:    c.cycle + 1,
				MemEvents:   memEvents,
				IsBranch:    isBranch,
				Branch:      branch,
			})
		}
	}

	return true
}

// String satisfies fmt.Stringer for convenient logging of the executor's
// architectural state.
func (c *CPU) String() string {
	return fmt.Sprintf("refcpu pc=0x%08x cycle=%d", c.pc, c.cycle)
}
