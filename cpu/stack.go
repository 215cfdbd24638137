package cpu

// push16 decrements SP by two, then writes v at SS:SP. v must already be
// the value to store; callers pushing a register that might itself be SP
// must read it via pushReg16 instead, since v here is evaluated before
// the decrement.
func (c *Cpu) push16(v uint16) {
	c.SP -= 2
	c.Bus.Write16(Physical(c.SS, c.SP), v)
}

// pushReg16 decrements SP, then pushes the named general register,
// reading it only after the decrement. This is the 8086 PUSH SP quirk:
// PUSH SP stores the post-decrement value of SP, not the value SP held
// when the instruction started.
func (c *Cpu) pushReg16(idx byte) {
	c.SP -= 2
	c.Bus.Write16(Physical(c.SS, c.SP), c.reg16(idx))
}

// pop16 reads the word at SS:SP, then increments SP by two.
func (c *Cpu) pop16() uint16 {
	v := c.Bus.Read16(Physical(c.SS, c.SP))
	c.SP += 2
	return v
}
