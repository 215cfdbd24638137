package cpu

import "github.com/matgla/ms-emu-sub000/mask"

// modRM is the decoded form of a ModR/M byte: mod (2 bits), reg (3 bits),
// rm (3 bits), high to low. The byte round-trips as
// (mod<<6)|(reg<<3)|rm.
type modRM struct {
	mod byte
	reg byte
	rm  byte
}

// decodeModRM splits a ModR/M byte into its three fields using mask's
// 1-indexed-from-the-high-bit extraction: mod is the first 2 bits, reg
// the middle 3, rm the last 3.
func decodeModRM(b byte) modRM {
	return modRM{
		mod: mask.First(b, mask.I2),
		reg: mask.Range(b, mask.I3, mask.I5),
		rm:  mask.Last(b, mask.I3),
	}
}

// eaCostTable gives the clock-cycle cost of computing an effective
// address, indexed [mod][rm]. mod=11 (register operand) contributes no
// EA cost to a memory access, but its entries are kept for opcodes that
// use the cost of a register-form access directly.
var eaCostTable = [4][8]uint8{
	{7, 8, 8, 7, 5, 5, 6, 5},     // mod=00
	{11, 12, 12, 11, 9, 9, 9, 9}, // mod=01
	{11, 12, 12, 11, 9, 9, 9, 9}, // mod=10
	{6, 6, 6, 6, 6, 6, 6, 6},     // mod=11
}

// addr16 carries the decoded effective address of a ModR/M memory
// operand: the physical address to read/write, the clock cost of
// computing it, and the number of instruction bytes (beyond the ModR/M
// byte itself) its displacement consumed.
type addr16 struct {
	physical   uint32
	cost       uint8
	dispBytes  uint8
	isRegister bool
	regIndex   byte
}

// decodeAddress decodes a ModR/M byte (and any displacement bytes that
// follow it, fetched via the Cpu's own fetch8) into an effective-address
// descriptor, honoring a pending segment override. When mod=11 the
// descriptor carries the register index instead of a physical address;
// callers must check isRegister before dereferencing physical.
func (c *Cpu) decodeAddress(m modRM) addr16 {
	if m.mod == 3 {
		return addr16{isRegister: true, regIndex: m.rm, cost: eaCostTable[3][m.rm]}
	}

	var base uint16
	seg := segDS

	switch m.rm {
	case 0:
		base = c.BX + c.SI
	case 1:
		base = c.BX + c.DI
	case 2:
		base = c.BP + c.SI
		seg = segSS
	case 3:
		base = c.BP + c.DI
		seg = segSS
	case 4:
		base = c.SI
	case 5:
		base = c.DI
	case 6:
		if m.mod == 0 {
			base = c.fetch16()
		} else {
			base = c.BP
			seg = segSS
		}
	case 7:
		base = c.BX
	}

	var dispBytes uint8
	switch m.mod {
	case 0:
		if m.rm == 6 {
			dispBytes = 2 // disp16 already consumed by fetch16 above
		}
	case 1:
		disp := int8(c.fetch8())
		base = uint16(int16(base) + int16(disp))
		dispBytes = 1
	case 2:
		disp := c.fetch16()
		base += disp
		dispBytes = 2
	}

	if c.segOverridePending != segNone {
		seg = c.segOverridePending
	}

	return addr16{
		physical:  Physical(c.segValue(seg), base),
		cost:      eaCostTable[m.mod][m.rm],
		dispBytes: dispBytes,
	}
}

// segValue resolves a segOverride to the segment register's current
// value.
func (c *Cpu) segValue(s segOverride) uint16 {
	switch s {
	case segES:
		return c.ES
	case segCS:
		return c.CS
	case segSS:
		return c.SS
	default:
		return c.DS
	}
}

// -----------------------------------------------------------------------
// r/m operand access (mod=11 selects a register; otherwise memory)
// -----------------------------------------------------------------------

func (c *Cpu) readRM8(a addr16) byte {
	if a.isRegister {
		return c.reg8(a.regIndex)
	}
	return c.Bus.Read8(a.physical)
}

func (c *Cpu) writeRM8(a addr16, v byte) {
	if a.isRegister {
		c.setReg8(a.regIndex, v)
		return
	}
	c.Bus.Write8(a.physical, v)
}

func (c *Cpu) readRM16(a addr16) uint16 {
	if a.isRegister {
		return c.reg16(a.regIndex)
	}
	return c.Bus.Read16(a.physical)
}

func (c *Cpu) writeRM16(a addr16, v uint16) {
	if a.isRegister {
		c.setReg16(a.regIndex, v)
		return
	}
	c.Bus.Write16(a.physical, v)
}
