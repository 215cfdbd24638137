// Package cpu implements the Intel 8086 instruction-fetch/decode/execute
// engine: the architectural register file, ModR/M effective-address
// decoding, and the opcode dispatch table. The Cpu has no memory of its
// own; every read and write it performs goes through a *mem.Bus.
package cpu

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/matgla/ms-emu-sub000/mem"
)

// Flag bit positions within the 16-bit Flags word. Reserved bits are not
// named; they read back as written but participate in no semantics.
const (
	FlagC uint16 = 1 << 0 // carry
	FlagP uint16 = 1 << 2 // parity
	FlagA uint16 = 1 << 4 // auxiliary carry
	FlagZ uint16 = 1 << 6 // zero
	FlagS uint16 = 1 << 7 // sign
	FlagT uint16 = 1 << 8 // trap
	FlagI uint16 = 1 << 9 // interrupt enable
	FlagD uint16 = 1 << 10 // direction
	FlagO uint16 = 1 << 11 // overflow
)

// segOverride identifies the segment register latched by a prefix byte,
// or segNone if no override is in effect for the instruction currently
// being decoded.
type segOverride int

const (
	segNone segOverride = iota - 1
	segES
	segCS
	segSS
	segDS
)

// Segment register index, per the ordering the opcode tables (MOV
// Sreg,r/m and friends) use for ModR/M's reg field when it selects a
// segment register.
const (
	SegES = 0
	SegCS = 1
	SegSS = 2
	SegDS = 3
)

// Cpu holds all 8086 architectural state: the general/index/pointer
// registers, segment registers, instruction pointer, flags, and the
// transient decode state (pending segment override, last instruction's
// clock cost, and a sticky error channel) the Step loop depends on.
type Cpu struct {
	Bus *mem.Bus

	AX, BX, CX, DX uint16
	SI, DI         uint16
	BP, SP         uint16
	IP             uint16
	CS, DS, ES, SS uint16
	Flags          uint16

	// segOverridePending is latched by a 0x26/0x2E/0x36/0x3E prefix byte
	// and consumed by the next non-prefix opcode; it reverts to segNone
	// after that opcode executes.
	segOverridePending segOverride

	// lastCost is the clock-cycle cost Step recorded for the most
	// recently executed instruction.
	lastCost uint8

	// pendingOpCost accumulates the cost a handler reports for the
	// instruction currently executing, via setCost; Step folds it into
	// lastCost once the handler returns.
	pendingOpCost uint8

	// errMsg is the sticky error channel described in the core's error
	// handling design: an unimplemented opcode or AAM-by-zero sets it,
	// a later successful Step does not clear it automatically.
	errMsg string

	// baseOps is the 256-entry opcode dispatch table, built once at
	// construction time so this Cpu owns an instance-scoped copy rather
	// than relying on shared global state.
	baseOps [256]func(*Cpu)

	// Halted is set by HLT. Step is a no-op once Halted, a convenience
	// for embedders driving the core in a loop.
	Halted bool
}

// NewCpu returns a Cpu wired to the given Bus with its opcode table
// initialized and all state zeroed.
func NewCpu(bus *mem.Bus) *Cpu {
	c := &Cpu{Bus: bus}
	c.initOpcodes()
	c.segOverridePending = segNone
	return c
}

// JumpToBIOS sets CS:IP to the given reset vector and clears the pending
// segment-override latch and the Halted flag. The semantics of which
// vector to use are an embedder's choice; the core only guarantees that
// the next Step fetches from that address.
func (c *Cpu) JumpToBIOS(cs, ip uint16) {
	c.CS = cs
	c.IP = ip
	c.segOverridePending = segNone
	c.Halted = false
}

// LastInstructionCost returns the clock-cycle cost recorded by the most
// recent Step.
func (c *Cpu) LastInstructionCost() uint8 {
	return c.lastCost
}

// HasError reports whether the sticky error channel is non-empty.
func (c *Cpu) HasError() bool {
	return c.errMsg != ""
}

// LastError returns the current sticky error message, or the empty
// string if none is set. A cleared error is indistinguishable from no
// error, as the core's error-handling design specifies.
func (c *Cpu) LastError() string {
	return c.errMsg
}

func (c *Cpu) setError(format string, args ...any) {
	c.errMsg = fmt.Sprintf(format, args...)
}

// setCost records the clock-cycle cost of the instruction handler
// currently executing. Step adds any folded-in prefix cost on top.
func (c *Cpu) setCost(n uint8) {
	c.pendingOpCost = n
}

// DumpState renders the register file for debugging/error reporting.
func (c *Cpu) DumpState() string {
	return spew.Sdump(*c)
}

// Physical computes the 20-bit physical address for a segment:offset
// pair. Wrapping modulo 2^20 is permitted but not required by any tested
// opcode.
func Physical(segment, offset uint16) uint32 {
	return (uint32(segment) << 4) + uint32(offset)
}

// -----------------------------------------------------------------------
// Byte-alias register access
// -----------------------------------------------------------------------

// AL returns the low byte of AX.
func (c *Cpu) AL() byte { return byte(c.AX) }

// SetAL sets the low byte of AX, leaving AH untouched.
func (c *Cpu) SetAL(v byte) { c.AX = (c.AX & 0xFF00) | uint16(v) }

// AH returns the high byte of AX.
func (c *Cpu) AH() byte { return byte(c.AX >> 8) }

// SetAH sets the high byte of AX, leaving AL untouched.
func (c *Cpu) SetAH(v byte) { c.AX = (c.AX & 0x00FF) | uint16(v)<<8 }

// BL returns the low byte of BX.
func (c *Cpu) BL() byte { return byte(c.BX) }

// SetBL sets the low byte of BX, leaving BH untouched.
func (c *Cpu) SetBL(v byte) { c.BX = (c.BX & 0xFF00) | uint16(v) }

// BH returns the high byte of BX.
func (c *Cpu) BH() byte { return byte(c.BX >> 8) }

// SetBH sets the high byte of BX, leaving BL untouched.
func (c *Cpu) SetBH(v byte) { c.BX = (c.BX & 0x00FF) | uint16(v)<<8 }

// CL returns the low byte of CX.
func (c *Cpu) CL() byte { return byte(c.CX) }

// SetCL sets the low byte of CX, leaving CH untouched.
func (c *Cpu) SetCL(v byte) { c.CX = (c.CX & 0xFF00) | uint16(v) }

// CH returns the high byte of CX.
func (c *Cpu) CH() byte { return byte(c.CX >> 8) }

// SetCH sets the high byte of CX, leaving CL untouched.
func (c *Cpu) SetCH(v byte) { c.CX = (c.CX & 0x00FF) | uint16(v)<<8 }

// DL returns the low byte of DX.
func (c *Cpu) DL() byte { return byte(c.DX) }

// SetDL sets the low byte of DX, leaving DH untouched.
func (c *Cpu) SetDL(v byte) { c.DX = (c.DX & 0xFF00) | uint16(v) }

// DH returns the high byte of DX.
func (c *Cpu) DH() byte { return byte(c.DX >> 8) }

// SetDH sets the high byte of DX, leaving DL untouched.
func (c *Cpu) SetDH(v byte) { c.DX = (c.DX & 0x00FF) | uint16(v)<<8 }

// -----------------------------------------------------------------------
// Register access by opcode-table index (§4.B ordering conventions)
// -----------------------------------------------------------------------

// reg8 returns the 8-bit register selected by index 0..7: AL, CL, DL, BL,
// AH, CH, DH, BH.
func (c *Cpu) reg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.AL()
	case 1:
		return c.CL()
	case 2:
		return c.DL()
	case 3:
		return c.BL()
	case 4:
		return c.AH()
	case 5:
		return c.CH()
	case 6:
		return c.DH()
	default:
		return c.BH()
	}
}

// setReg8 sets the 8-bit register selected by index, per the same
// ordering as reg8.
func (c *Cpu) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.SetAL(v)
	case 1:
		c.SetCL(v)
	case 2:
		c.SetDL(v)
	case 3:
		c.SetBL(v)
	case 4:
		c.SetAH(v)
	case 5:
		c.SetCH(v)
	case 6:
		c.SetDH(v)
	default:
		c.SetBH(v)
	}
}

// reg16 returns the 16-bit register selected by index 0..7: AX, CX, DX,
// BX, SP, BP, SI, DI.
func (c *Cpu) reg16(idx byte) uint16 {
	switch idx & 7 {
	case 0:
		return c.AX
	case 1:
		return c.CX
	case 2:
		return c.DX
	case 3:
		return c.BX
	case 4:
		return c.SP
	case 5:
		return c.BP
	case 6:
		return c.SI
	default:
		return c.DI
	}
}

// setReg16 sets the 16-bit register selected by index, per the same
// ordering as reg16.
func (c *Cpu) setReg16(idx byte, v uint16) {
	switch idx & 7 {
	case 0:
		c.AX = v
	case 1:
		c.CX = v
	case 2:
		c.DX = v
	case 3:
		c.BX = v
	case 4:
		c.SP = v
	case 5:
		c.BP = v
	case 6:
		c.SI = v
	default:
		c.DI = v
	}
}

// segReg returns the segment register selected by index 0..3: ES, CS,
// SS, DS.
func (c *Cpu) segReg(idx int) uint16 {
	switch idx & 3 {
	case SegES:
		return c.ES
	case SegCS:
		return c.CS
	case SegSS:
		return c.SS
	default:
		return c.DS
	}
}

// setSegReg sets the segment register selected by index, per the same
// ordering as segReg.
func (c *Cpu) setSegReg(idx int, v uint16) {
	switch idx & 3 {
	case SegES:
		c.ES = v
	case SegCS:
		c.CS = v
	case SegSS:
		c.SS = v
	default:
		c.DS = v
	}
}

// -----------------------------------------------------------------------
// Flag access
// -----------------------------------------------------------------------

func (c *Cpu) getFlag(bit uint16) bool { return c.Flags&bit != 0 }

func (c *Cpu) setFlag(bit uint16, set bool) {
	if set {
		c.Flags |= bit
	} else {
		c.Flags &^= bit
	}
}

// CF returns the carry flag.
func (c *Cpu) CF() bool { return c.getFlag(FlagC) }

// ZF returns the zero flag.
func (c *Cpu) ZF() bool { return c.getFlag(FlagZ) }

// SF returns the sign flag.
func (c *Cpu) SF() bool { return c.getFlag(FlagS) }

// OF returns the overflow flag.
func (c *Cpu) OF() bool { return c.getFlag(FlagO) }

// PF returns the parity flag.
func (c *Cpu) PF() bool { return c.getFlag(FlagP) }

// AFlag returns the auxiliary carry flag.
func (c *Cpu) AFlag() bool { return c.getFlag(FlagA) }

// DF returns the direction flag.
func (c *Cpu) DF() bool { return c.getFlag(FlagD) }

// parity reports even parity (true) of the low 8 bits of v.
func parity(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

// setFlagsArith8 updates O/S/Z/A/P/C after an 8-bit add/adc (sub=false)
// or sub/sbb/cmp (sub=true). result carries the pre-mask 9-bit sum or
// difference so the carry/borrow-out can be read directly.
func (c *Cpu) setFlagsArith8(result uint16, a, b byte, sub bool) {
	r := byte(result)
	c.setFlag(FlagC, result > 0xFF)
	c.setFlag(FlagZ, r == 0)
	c.setFlag(FlagS, r&0x80 != 0)
	c.setFlag(FlagP, parity(r))
	if sub {
		c.setFlag(FlagO, (a^b)&(a^r)&0x80 != 0)
		c.setFlag(FlagA, a&0x0F < b&0x0F)
	} else {
		c.setFlag(FlagO, ^(a^b)&(a^r)&0x80 != 0)
		c.setFlag(FlagA, (a&0x0F)+(b&0x0F) > 0x0F)
	}
}

// setFlagsArith16 is setFlagsArith8's 16-bit counterpart.
func (c *Cpu) setFlagsArith16(result uint32, a, b uint16, sub bool) {
	r := uint16(result)
	c.setFlag(FlagC, result > 0xFFFF)
	c.setFlag(FlagZ, r == 0)
	c.setFlag(FlagS, r&0x8000 != 0)
	c.setFlag(FlagP, parity(byte(r)))
	if sub {
		c.setFlag(FlagO, (a^b)&(a^r)&0x8000 != 0)
		c.setFlag(FlagA, a&0x0F < b&0x0F)
	} else {
		c.setFlag(FlagO, ^(a^b)&(a^r)&0x8000 != 0)
		c.setFlag(FlagA, (a&0x0F)+(b&0x0F) > 0x0F)
	}
}

// setFlagsAdc8 updates flags after an 8-bit add-with-carry. The
// auxiliary-carry nibble check must account for the incoming carry bit,
// which setFlagsArith8 does not see; overflow and the other flags are
// unaffected by carry-in and are computed the same way as a plain add.
func (c *Cpu) setFlagsAdc8(result uint16, a, b byte, carryIn bool) {
	c.setFlagsArith8(result, a, b, false)
	cin := byte(0)
	if carryIn {
		cin = 1
	}
	c.setFlag(FlagA, (a&0x0F)+(b&0x0F)+cin > 0x0F)
}

// setFlagsAdc16 is setFlagsAdc8's 16-bit counterpart.
func (c *Cpu) setFlagsAdc16(result uint32, a, b uint16, carryIn bool) {
	c.setFlagsArith16(result, a, b, false)
	cin := uint16(0)
	if carryIn {
		cin = 1
	}
	c.setFlag(FlagA, (a&0x0F)+(b&0x0F)+cin > 0x0F)
}

// setFlagsLogic8 updates flags after an 8-bit logical op (AND/OR/XOR/
// TEST): C and O are cleared, A is left undefined (untouched).
func (c *Cpu) setFlagsLogic8(result byte) {
	c.setFlag(FlagC, false)
	c.setFlag(FlagO, false)
	c.setFlag(FlagZ, result == 0)
	c.setFlag(FlagS, result&0x80 != 0)
	c.setFlag(FlagP, parity(result))
}

// setFlagsLogic16 is setFlagsLogic8's 16-bit counterpart.
func (c *Cpu) setFlagsLogic16(result uint16) {
	c.setFlag(FlagC, false)
	c.setFlag(FlagO, false)
	c.setFlag(FlagZ, result == 0)
	c.setFlag(FlagS, result&0x8000 != 0)
	c.setFlag(FlagP, parity(byte(result)))
}
