package cpu

// Handler bodies for the opcode dispatch table built in opcodes.go. Naming
// follows Intel mnemonic plus operand-encoding suffix (Eb/Ev = ModR/M r/m
// byte/word, Gb/Gv = ModR/M reg byte/word, Ib/Iv = immediate byte/word),
// the same scheme the wider x86 decoding literature uses.

// -----------------------------------------------------------------------
// ADD
// -----------------------------------------------------------------------

// ADD r/m8, r8
func (c *Cpu) opADD_Eb_Gb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.readRM8(a)
	src := c.reg8(m.reg)
	sum := uint16(dst) + uint16(src)
	c.writeRM8(a, byte(sum))
	c.setFlagsArith8(sum, dst, src, false)
	c.setCost(2 + ea(a))
}

// -----------------------------------------------------------------------
// ADC
// -----------------------------------------------------------------------

// ADC r8, r/m8
func (c *Cpu) opADC_Gb_Eb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.reg8(m.reg)
	src := c.readRM8(a)
	carry := uint16(0)
	if c.CF() {
		carry = 1
	}
	sum := uint16(dst) + uint16(src) + carry
	c.setReg8(m.reg, byte(sum))
	c.setFlagsAdc8(sum, dst, src, carry != 0)
	if a.isRegister {
		c.setCost(3)
	} else {
		c.setCost(9 + a.cost)
	}
}

// ADC r16, r/m16
func (c *Cpu) opADC_Gv_Ev() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.reg16(m.reg)
	src := c.readRM16(a)
	carry := uint32(0)
	if c.CF() {
		carry = 1
	}
	sum := uint32(dst) + uint32(src) + carry
	c.setReg16(m.reg, uint16(sum))
	c.setFlagsAdc16(sum, dst, src, carry != 0)
	if a.isRegister {
		c.setCost(3)
	} else {
		c.setCost(9 + a.cost)
	}
}

// ADC AL, imm8
func (c *Cpu) opADC_AL_Ib() {
	imm := c.fetch8()
	dst := c.AL()
	carry := uint16(0)
	if c.CF() {
		carry = 1
	}
	sum := uint16(dst) + uint16(imm) + carry
	c.SetAL(byte(sum))
	c.setFlagsAdc8(sum, dst, imm, carry != 0)
	c.setCost(4)
}

// ADC AX, imm16
func (c *Cpu) opADC_AX_Iv() {
	imm := c.fetch16()
	dst := c.AX
	carry := uint32(0)
	if c.CF() {
		carry = 1
	}
	sum := uint32(dst) + uint32(imm) + carry
	c.AX = uint16(sum)
	c.setFlagsAdc16(sum, dst, imm, carry != 0)
	c.setCost(4)
}

// -----------------------------------------------------------------------
// CMP (supplemented: the distillation carried ADD/ADC/XOR only, but a
// core that cannot compare two operands cannot run a conditional branch
// once those are added, so CMP's full ModR/M family is included here)
// -----------------------------------------------------------------------

func (c *Cpu) opCMP_Eb_Gb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.readRM8(a)
	src := c.reg8(m.reg)
	diff := uint16(dst) - uint16(src)
	c.setFlagsArith8(diff, dst, src, true)
	c.setCost(2 + ea(a))
}

func (c *Cpu) opCMP_Ev_Gv() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.readRM16(a)
	src := c.reg16(m.reg)
	diff := uint32(dst) - uint32(src)
	c.setFlagsArith16(diff, dst, src, true)
	c.setCost(2 + ea(a))
}

func (c *Cpu) opCMP_Gb_Eb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.reg8(m.reg)
	src := c.readRM8(a)
	diff := uint16(dst) - uint16(src)
	c.setFlagsArith8(diff, dst, src, true)
	c.setCost(2 + ea(a))
}

func (c *Cpu) opCMP_Gv_Ev() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	dst := c.reg16(m.reg)
	src := c.readRM16(a)
	diff := uint32(dst) - uint32(src)
	c.setFlagsArith16(diff, dst, src, true)
	c.setCost(2 + ea(a))
}

func (c *Cpu) opCMP_AL_Ib() {
	imm := c.fetch8()
	dst := c.AL()
	diff := uint16(dst) - uint16(imm)
	c.setFlagsArith8(diff, dst, imm, true)
	c.setCost(4)
}

func (c *Cpu) opCMP_AX_Iv() {
	imm := c.fetch16()
	dst := c.AX
	diff := uint32(dst) - uint32(imm)
	c.setFlagsArith16(diff, dst, imm, true)
	c.setCost(4)
}

// -----------------------------------------------------------------------
// XOR
// -----------------------------------------------------------------------

// XOR r/m16, r16
func (c *Cpu) opXOR_Ev_Gv() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	result := c.readRM16(a) ^ c.reg16(m.reg)
	c.writeRM16(a, result)
	c.setFlagsLogic16(result)
	if a.isRegister {
		c.setCost(3)
	} else {
		c.setCost(9 + a.cost)
	}
}

// -----------------------------------------------------------------------
// INC / DEC (16-bit register forms; DEC is required, INC is its
// supplemented mirror)
// -----------------------------------------------------------------------

func (c *Cpu) opINC_r16(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		before := c.reg16(idx)
		after := before + 1
		c.setReg16(idx, after)
		// INC/DEC leave carry untouched; reuse the arith helper and
		// restore C afterwards.
		carry := c.CF()
		c.setFlagsArith16(uint32(after), before, 1, false)
		c.setFlag(FlagC, carry)
		c.setCost(2)
	}
}

func (c *Cpu) opDEC_r16(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		before := c.reg16(idx)
		after := before - 1
		c.setReg16(idx, after)
		carry := c.CF()
		c.setFlagsArith16(uint32(after), before, 1, true)
		c.setFlag(FlagC, carry)
		c.setCost(2)
	}
}

// -----------------------------------------------------------------------
// Decimal adjust
// -----------------------------------------------------------------------

// AAA - ASCII adjust after addition.
func (c *Cpu) opAAA() {
	al := c.AL()
	if al&0x0F > 9 || c.AFlag() {
		c.SetAL(al + 6)
		c.SetAH(c.AH() + 1)
		c.setFlag(FlagA, true)
		c.setFlag(FlagC, true)
	} else {
		c.setFlag(FlagA, false)
		c.setFlag(FlagC, false)
	}
	c.SetAL(c.AL() & 0x0F)
	c.setCost(8)
}

// AAS - ASCII adjust after subtraction.
func (c *Cpu) opAAS() {
	al := c.AL()
	if al&0x0F > 9 || c.AFlag() {
		c.SetAL(al - 6)
		c.SetAH(c.AH() - 1)
		c.setFlag(FlagA, true)
		c.setFlag(FlagC, true)
	} else {
		c.setFlag(FlagA, false)
		c.setFlag(FlagC, false)
	}
	c.SetAL(c.AL() & 0x0F)
	c.setCost(8)
}

// AAM - ASCII adjust after multiplication. Divides AL by the following
// immediate byte (almost always 0x0A); a zero divisor sets the sticky
// error and leaves AX unmodified.
func (c *Cpu) opAAM() {
	start := c.IP - 1 // IP after Step's opcode fetch; back up to the opcode
	base := c.fetch8()
	if base == 0 {
		c.setError("AAM: division by zero")
		c.IP = start
		return
	}
	al := c.AL()
	c.SetAH(al / base)
	c.SetAL(al % base)
	c.setFlagsLogic8(c.AL())
	c.setCost(83)
}

// AAD - ASCII adjust before division. Folds AH*base into AL ahead of a
// following byte division.
func (c *Cpu) opAAD() {
	base := c.fetch8()
	al := c.AL()
	ah := c.AH()
	result := al + ah*base
	c.SetAL(result)
	c.SetAH(0)
	c.setFlagsLogic8(c.AL())
	c.setCost(60)
}

// -----------------------------------------------------------------------
// MOV
// -----------------------------------------------------------------------

func (c *Cpu) opMOV_Eb_Gb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.writeRM8(a, c.reg8(m.reg))
	c.setCost(movWriteCost(a))
}

func (c *Cpu) opMOV_Ev_Gv() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.writeRM16(a, c.reg16(m.reg))
	c.setCost(movWriteCost(a))
}

func (c *Cpu) opMOV_Gb_Eb() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.setReg8(m.reg, c.readRM8(a))
	c.setCost(2 + ea(a))
}

func (c *Cpu) opMOV_Gv_Ev() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.setReg16(m.reg, c.readRM16(a))
	c.setCost(2 + ea(a))
}

// MOV r/m16, Sreg
func (c *Cpu) opMOV_Ew_Sw() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.writeRM16(a, c.segReg(int(m.reg&3)))
	c.setCost(movWriteCost(a))
}

// MOV Sreg, r/m16
func (c *Cpu) opMOV_Sw_Ew() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.setSegReg(int(m.reg&3), c.readRM16(a))
	c.setCost(2 + ea(a))
}

// movWriteCost applies MOV's stated "8-9 for memory writes" cost: a
// memory destination costs 9 plus the EA table's own cost, a register
// destination stays at the flat reg,reg base of 2. Reads keep the plain
// "2 + EA" form (pinned by the segment-override scenario in the core's
// test suite), since the spec's memory-write clause is stated
// separately from its reg,reg/memory-read base.
func movWriteCost(a addr16) uint8 {
	if a.isRegister {
		return 2
	}
	return 9 + a.cost
}

func (c *Cpu) opMOV_r8_imm8(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		c.setReg8(idx, c.fetch8())
		c.setCost(4)
	}
}

func (c *Cpu) opMOV_r16_imm16(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		c.setReg16(idx, c.fetch16())
		c.setCost(4)
	}
}

// MOV AL, [moffs16] (always DS-relative unless a segment prefix is
// latched).
func (c *Cpu) opMOV_AL_moffs() {
	off := c.fetch16()
	c.SetAL(c.Bus.Read8(Physical(c.segValue(c.overrideOrDefault()), off)))
	c.setCost(10)
}

// MOV AX, [moffs16]
func (c *Cpu) opMOV_AX_moffs() {
	off := c.fetch16()
	c.AX = c.Bus.Read16(Physical(c.segValue(c.overrideOrDefault()), off))
	c.setCost(10)
}

// MOV [moffs16], AL
func (c *Cpu) opMOV_moffs_AL() {
	off := c.fetch16()
	c.Bus.Write8(Physical(c.segValue(c.overrideOrDefault()), off), c.AL())
	c.setCost(10)
}

// MOV [moffs16], AX
func (c *Cpu) opMOV_moffs_AX() {
	off := c.fetch16()
	c.Bus.Write16(Physical(c.segValue(c.overrideOrDefault()), off), c.AX)
	c.setCost(10)
}

// overrideOrDefault resolves the pending segment-override latch to a
// concrete segment, defaulting to DS.
func (c *Cpu) overrideOrDefault() segOverride {
	if c.segOverridePending != segNone {
		return c.segOverridePending
	}
	return segDS
}

// -----------------------------------------------------------------------
// PUSH / POP
// -----------------------------------------------------------------------

func (c *Cpu) opPUSH_r16(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		c.pushReg16(idx)
		c.setCost(15)
	}
}

func (c *Cpu) opPOP_r16(idx byte) func(*Cpu) {
	return func(c *Cpu) {
		c.setReg16(idx, c.pop16())
		c.setCost(12)
	}
}

func (c *Cpu) opPUSH_seg(idx int) func(*Cpu) {
	return func(c *Cpu) {
		c.push16(c.segReg(idx))
		c.setCost(14)
	}
}

func (c *Cpu) opPOP_seg(idx int) func(*Cpu) {
	return func(c *Cpu) {
		c.setSegReg(idx, c.pop16())
		c.setCost(12)
	}
}

// PUSH r/m16 (Grp5 /6)
func (c *Cpu) opPUSH_Ev() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.push16(c.readRM16(a))
	c.setCost(15 + ea(a))
}

// POP r/m16
func (c *Cpu) opPOP_Ev() {
	m := c.fetchModRM()
	a := c.decodeAddress(m)
	c.writeRM16(a, c.pop16())
	c.setCost(12 + ea(a))
}

// opGrp5_FF dispatches the 0xFF ModR/M extension group by reg field.
// Only /6 (PUSH r/m16) is wired; other sub-opcodes (INC/DEC/CALL/JMP
// r/m, not required by any end-to-end scenario) report unimplemented.
func (c *Cpu) opGrp5_FF() {
	peek := c.Bus.Read8(Physical(c.CS, c.IP))
	m := decodeModRM(peek)
	if m.reg != 6 {
		c.setError("opcode 0xFF /%d unimplemented", m.reg)
		c.IP++
		return
	}
	c.opPUSH_Ev()
}

// -----------------------------------------------------------------------
// Control flow / string / misc
// -----------------------------------------------------------------------

// RET - near return: pop IP.
func (c *Cpu) opRET() {
	c.IP = c.pop16()
	c.setCost(8)
}

// JMP short: IP-relative signed byte displacement from the address of
// the following instruction.
func (c *Cpu) opJMP_short() {
	disp := int8(c.fetch8())
	c.IP = uint16(int16(c.IP) + int16(disp))
	c.setCost(15)
}

// STOSB - store AL at ES:DI, then step DI by the direction flag.
func (c *Cpu) opSTOSB() {
	c.Bus.Write8(Physical(c.ES, c.DI), c.AL())
	c.stepDI(1)
	c.setCost(11)
}

// STOSW - store AX at ES:DI, then step DI by the direction flag.
func (c *Cpu) opSTOSW() {
	c.Bus.Write16(Physical(c.ES, c.DI), c.AX)
	c.stepDI(2)
	c.setCost(11)
}

func (c *Cpu) stepDI(width uint16) {
	if c.DF() {
		c.DI -= width
	} else {
		c.DI += width
	}
}

// CLD - clear direction flag.
func (c *Cpu) opCLD() {
	c.setFlag(FlagD, false)
	c.setCost(2)
}

// NOP (supplemented: XCHG AX, AX with no observable effect).
func (c *Cpu) opNOP() {
	c.setCost(3)
}

// HLT (supplemented). Step becomes a no-op once Halted is set; nothing
// but JumpToBIOS or direct field assignment clears it.
func (c *Cpu) opHLT() {
	c.Halted = true
	c.setCost(2)
}

// INT3 - one-byte breakpoint trap. Dispatch is an embedder's concern;
// the core only accounts for the instruction's length and cost.
func (c *Cpu) opINT3() {
	c.setCost(52)
}

// INT imm8 - software interrupt. As with INT3, no vector dispatch is
// performed; the immediate is consumed so instruction length is correct.
func (c *Cpu) opINT_imm8() {
	c.fetch8()
	c.setCost(51)
}

// ea returns a's EA cost, or 0 for a register operand (which contributes
// no addressing cost of its own to a 2-cycle base).
func ea(a addr16) uint8 {
	if a.isRegister {
		return 0
	}
	return a.cost
}
