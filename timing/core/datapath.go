package core

import (
	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/timing/control"
)

// pair16 maps a control-unit pair onto the register file for the executing
// instruction. ok is false for the 8-bit and constant sources.
func (c *Core) pair16(p control.Pair, in emu.Instr) (emu.Pair, bool) {
	switch p {
	case control.PairPC:
		return emu.PC, true
	case control.PairSP:
		return emu.SP, true
	case control.PairBC:
		return emu.BC, true
	case control.PairDE:
		return emu.DE, true
	case control.PairHL:
		return in.HL(), true
	case control.PairWZ:
		return emu.WZ, true
	case control.PairAF:
		return emu.AF, true
	case control.PairIR:
		return emu.IR, true
	case control.PairRP:
		return in.Pair(false), true
	case control.PairRPAF:
		return in.Pair(true), true
	}
	return 0, false
}

// read16 returns the value of an address-path source.
func (c *Core) read16(p control.Pair, in emu.Instr) uint16 {
	if rp, ok := c.pair16(p, in); ok {
		return c.regFile.Get16(rp)
	}
	return 0
}

// write16 stores an incrementer result.
func (c *Core) write16(p control.Pair, in emu.Instr, v uint16) {
	if rp, ok := c.pair16(p, in); ok {
		c.regFile.Set16(rp, v)
	}
}

// read8 returns the byte a data-path select drives onto the bus.
func (c *Core) read8(p control.Pair, lane control.HiLo, in emu.Instr) uint8 {
	switch p {
	case control.PairR8Src:
		return c.regFile.Read8(in.Src())
	case control.PairR8Dst:
		return c.regFile.Read8(in.Dst())
	case control.PairTmp:
		return c.tmp
	case control.PairZero, control.PairNone:
		return 0
	}
	rp, _ := c.pair16(p, in)
	return c.regFile.Get8(rp, lane == control.Hi)
}

// write8 latches a bus byte into a data-path select.
func (c *Core) write8(p control.Pair, lane control.HiLo, in emu.Instr, v uint8) {
	switch p {
	case control.PairR8Src:
		c.regFile.Write8(in.Src(), v)
	case control.PairR8Dst:
		c.regFile.Write8(in.Dst(), v)
	case control.PairTmp:
		c.tmp = v
	case control.PairZero, control.PairNone:
	default:
		rp, _ := c.pair16(p, in)
		c.regFile.Set8(rp, lane == control.Hi, v)
	}
}

// increment computes the incrementer output from the address latch.
func (c *Core) increment(s control.Signals) uint16 {
	var carry uint16
	if s.On(control.PCInc) {
		carry = 1
	}
	switch s.IncMode() {
	case control.IncUp:
		return c.al + carry
	case control.IncDown:
		return c.al - carry
	case control.IncZero:
		return 0
	}
	return c.al
}

// transfer performs a register pair transfer.
func (c *Core) transfer(x control.Transfer, in emu.Instr) {
	r := c.regFile
	switch x {
	case control.XferWZToPC:
		r.PC = r.Get16(emu.WZ)
	case control.XferHLToPC:
		r.PC = r.Get16(in.HL())
	case control.XferHLToSP:
		r.SP = r.Get16(in.HL())
	case control.XferWZToHL:
		r.Set16(in.HL(), r.Get16(emu.WZ))
	case control.XferPCRel:
		r.PC += uint16(int16(int8(r.Z)))
	case control.XferRstToPC:
		r.PC = uint16(c.ir & 0x38)
	case control.XferNMIToPC:
		r.PC = nmiVector
	case control.XferIToW:
		r.W = r.I
	}
}

// indexAddress forms IX/IY + d in WZ from the displacement held in Z.
func (c *Core) indexAddress() {
	r := c.regFile
	base := r.Get16(emu.HLPair(c.index))
	r.Set16(emu.WZ, base+uint16(int16(int8(r.Z))))
}

// iff applies an interrupt flip-flop operation.
func (c *Core) iff(op control.IffOp) {
	r := c.regFile
	switch op {
	case control.IffSet:
		r.IFF1, r.IFF2 = true, true
	case control.IffClear:
		r.IFF1, r.IFF2 = false, false
	case control.IffRestore:
		r.IFF1 = r.IFF2
	}
}
