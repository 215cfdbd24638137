package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matgla/ms-emu-sub000/mem"
)

func newTestCpu(program []byte) *Cpu {
	bus := mem.NewBus(mem.NewDevice("ram", 0, 0x10000))
	bus.WriteSpan(0, program)
	return NewCpu(bus)
}

func TestMovR8Imm8(t *testing.T) {
	c := newTestCpu([]byte{0xB0, 0x10})
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0x10), c.AL())
	assert.Equal(t, uint16(2), c.IP)
	assert.Equal(t, uint8(4), c.LastInstructionCost())
}

func TestMovR16Imm16(t *testing.T) {
	c := newTestCpu([]byte{0xB8, 0xCE, 0xFA})
	require.NoError(t, c.Step())
	assert.Equal(t, uint16(0xFACE), c.AX)
	assert.Equal(t, uint16(3), c.IP)
	assert.Equal(t, uint8(4), c.LastInstructionCost())
}

func TestAAA(t *testing.T) {
	c := newTestCpu([]byte{0x37})
	c.SetAL(0x0A)
	c.SetAH(0)
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0), c.AL())
	assert.Equal(t, byte(1), c.AH())
	assert.True(t, c.AFlag())
	assert.True(t, c.CF())
	assert.Equal(t, uint16(1), c.IP)
	assert.Equal(t, uint8(8), c.LastInstructionCost())
}

func TestAAD(t *testing.T) {
	c := newTestCpu([]byte{0xD5, 0x0A})
	c.AX = 0x0201
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0x15), c.AL())
	assert.Equal(t, byte(0), c.AH())
	assert.False(t, c.SF())
	assert.False(t, c.ZF())
	assert.False(t, c.PF())
	assert.Equal(t, uint16(2), c.IP)
	assert.Equal(t, uint8(60), c.LastInstructionCost())
}

func TestAAM(t *testing.T) {
	c := newTestCpu([]byte{0xD4, 0x0A})
	c.AX = 0xFFFF
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0x05), c.AL())
	assert.Equal(t, byte(0x19), c.AH())
	assert.True(t, c.PF())
	assert.False(t, c.ZF())
	assert.False(t, c.SF())
	assert.Equal(t, uint16(2), c.IP)
	assert.Equal(t, uint8(83), c.LastInstructionCost())
}

func TestAAMDivisionByZero(t *testing.T) {
	c := newTestCpu([]byte{0xD4, 0x00})
	err := c.Step()
	require.Error(t, err)
	assert.True(t, c.HasError())
	assert.Equal(t, uint16(0), c.IP)
}

func TestPushPopRoundTrip(t *testing.T) {
	c := newTestCpu([]byte{0x50, 0x5B}) // PUSH AX ; POP BX
	c.AX = 0xABCD
	c.SP = 0xFFF0
	c.SS = 0

	require.NoError(t, c.Step())
	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0xABCD), c.BX)
	assert.Equal(t, uint16(0xFFF0), c.SP)
	assert.Equal(t, byte(0xCD), c.Bus.Read8(0xFFEE))
	assert.Equal(t, byte(0xAB), c.Bus.Read8(0xFFEF))
}

func TestPushSPStoresPostDecrementValue(t *testing.T) {
	c := newTestCpu([]byte{0x54}) // PUSH SP
	c.SP = 0x1000
	c.SS = 0

	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0x0FFE), c.SP)
	assert.Equal(t, uint16(0x0FFE), c.Bus.Read16(0x0FFE))
}

func TestMovMemoryWriteCostsMoreThanRead(t *testing.T) {
	// MOV [BX+SI], AL  (mod=00, rm=000 -> EA cost 7)
	write := newTestCpu([]byte{0x88, 0x00})
	write.BX, write.SI = 0x10, 0x00
	require.NoError(t, write.Step())
	assert.Equal(t, uint8(9+7), write.LastInstructionCost())

	// MOV AL, [BX+SI]  (same addressing, read direction)
	read := newTestCpu([]byte{0x8A, 0x00})
	read.BX, read.SI = 0x10, 0x00
	require.NoError(t, read.Step())
	assert.Equal(t, uint8(2+7), read.LastInstructionCost())
}

func TestSegmentOverrideMov(t *testing.T) {
	c := newTestCpu([]byte{0x2E, 0x8B, 0x06, 0x20, 0x10}) // MOV AX, CS:[0x1020]
	c.CS = 0
	c.Bus.Write8(0x1020, 0x34)
	c.Bus.Write8(0x1021, 0x12)

	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0x1234), c.AX)
	assert.Equal(t, uint8(10), c.LastInstructionCost()) // 2 (MOV) + 6 (EA) + 2 (prefix)
}

func TestSegmentOverrideLatchClearsAfterOneInstruction(t *testing.T) {
	c := newTestCpu([]byte{0x2E, 0xB0, 0x01, 0xB0, 0x02})
	require.NoError(t, c.Step())
	assert.Equal(t, segNone, c.segOverridePending)
	require.NoError(t, c.Step())
	assert.Equal(t, segNone, c.segOverridePending)
}

func TestADCCarrying(t *testing.T) {
	c := newTestCpu([]byte{0x14, 0x00}) // ADC AL, 0x00
	c.SetAL(0xFF)
	c.setFlag(FlagC, true)

	require.NoError(t, c.Step())

	assert.Equal(t, byte(0x00), c.AL())
	assert.True(t, c.CF())
	assert.True(t, c.ZF())
	assert.True(t, c.AFlag())
	assert.True(t, c.PF())
	assert.False(t, c.OF())
	assert.Equal(t, uint16(2), c.IP)
}

func TestUnimplementedOpcodeAdvancesIPAndSticksError(t *testing.T) {
	c := newTestCpu([]byte{0x0F}) // not in the dispatch table
	err := c.Step()
	require.Error(t, err)
	assert.True(t, c.HasError())
	assert.Equal(t, uint16(1), c.IP)
	assert.NotEmpty(t, c.LastError())
}

func TestPhysicalAddressFormula(t *testing.T) {
	assert.Equal(t, uint32(0x10010), Physical(0x1000, 0x0010))
	assert.Equal(t, uint32(0), Physical(0, 0))
}

func TestByteAliasesDoNotClobberSiblingByte(t *testing.T) {
	c := newTestCpu(nil)
	c.AX = 0x1234
	c.SetAL(0xFF)
	assert.Equal(t, byte(0x12), c.AH())
	c.SetAH(0xFF)
	assert.Equal(t, byte(0xFF), c.AL())
}

func TestReg16RoundTrip(t *testing.T) {
	c := newTestCpu(nil)
	for i := byte(0); i < 8; i++ {
		c.setReg16(i, uint16(0x1000)+uint16(i))
		assert.Equal(t, uint16(0x1000)+uint16(i), c.reg16(i))
	}
}

func TestHaltStopsStepping(t *testing.T) {
	c := newTestCpu([]byte{0xF4, 0xB0, 0x99})
	require.NoError(t, c.Step())
	assert.True(t, c.Halted)
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0), c.AL())
	assert.Equal(t, uint16(1), c.IP)
}

func TestCMPDoesNotModifyOperands(t *testing.T) {
	c := newTestCpu([]byte{0x3C, 0x05}) // CMP AL, 0x05
	c.SetAL(0x05)
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0x05), c.AL())
	assert.True(t, c.ZF())
}

func TestXORClearsCarryAndOverflow(t *testing.T) {
	c := newTestCpu([]byte{0x31, 0xD8}) // XOR AX, BX  (Ev=AX, Gv=BX per mod=11)
	c.AX = 0x00FF
	c.BX = 0x000F
	c.setFlag(FlagC, true)
	c.setFlag(FlagO, true)

	require.NoError(t, c.Step())

	assert.Equal(t, uint16(0x00F0), c.AX)
	assert.False(t, c.CF())
	assert.False(t, c.OF())
}
