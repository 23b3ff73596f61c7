package emu

import "math/bits"

// ALU implements Z80 arithmetic and logic operations. Results go to the
// caller; flags go to F.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Accumulator operations selected by opcode bits 5..3.
const (
	OpADD uint8 = iota
	OpADC
	OpSUB
	OpSBC
	OpAND
	OpXOR
	OpOR
	OpCP
)

func parity(v uint8) bool { return bits.OnesCount8(v)%2 == 0 }

// szxy returns S, Z and the undocumented bits 5 and 3 for v.
func szxy(v uint8) uint8 {
	f := v & (FlagS | Flag5 | Flag3)
	if v == 0 {
		f |= FlagZ
	}
	return f
}

func szxyp(v uint8) uint8 {
	f := szxy(v)
	if parity(v) {
		f |= FlagPV
	}
	return f
}

func (a *ALU) carry() uint8 {
	return a.regFile.F & FlagC
}

// add computes x + y + c and its flags.
func add8(x, y, c uint8) (uint8, uint8) {
	sum := uint16(x) + uint16(y) + uint16(c)
	r := uint8(sum)
	f := szxy(r)
	if (x^y^r)&0x10 != 0 {
		f |= FlagH
	}
	if (x^r)&(y^r)&0x80 != 0 {
		f |= FlagPV
	}
	if sum > 0xFF {
		f |= FlagC
	}
	return r, f
}

// sub computes x - y - c and its flags.
func sub8(x, y, c uint8) (uint8, uint8) {
	diff := int(x) - int(y) - int(c)
	r := uint8(diff)
	f := szxy(r) | FlagN
	if (x^y^r)&0x10 != 0 {
		f |= FlagH
	}
	if (x^y)&(x^r)&0x80 != 0 {
		f |= FlagPV
	}
	if diff < 0 {
		f |= FlagC
	}
	return r, f
}

// Accumulate applies accumulator operation op with operand v to A.
func (a *ALU) Accumulate(op, v uint8) {
	r := a.regFile
	switch op & 7 {
	case OpADD:
		r.A, r.F = add8(r.A, v, 0)
	case OpADC:
		r.A, r.F = add8(r.A, v, a.carry())
	case OpSUB:
		r.A, r.F = sub8(r.A, v, 0)
	case OpSBC:
		r.A, r.F = sub8(r.A, v, a.carry())
	case OpAND:
		r.A &= v
		r.F = szxyp(r.A) | FlagH
	case OpXOR:
		r.A ^= v
		r.F = szxyp(r.A)
	case OpOR:
		r.A |= v
		r.F = szxyp(r.A)
	case OpCP:
		_, f := sub8(r.A, v, 0)
		r.F = f&^(Flag5|Flag3) | v&(Flag5|Flag3)
	}
}

// Inc8 returns v + 1; C is preserved.
func (a *ALU) Inc8(v uint8) uint8 {
	res, f := add8(v, 1, 0)
	a.regFile.F = f&^FlagC | a.carry()
	return res
}

// Dec8 returns v - 1; C is preserved.
func (a *ALU) Dec8(v uint8) uint8 {
	res, f := sub8(v, 1, 0)
	a.regFile.F = f&^FlagC | a.carry()
	return res
}

// Neg negates A.
func (a *ALU) Neg() {
	r := a.regFile
	r.A, r.F = sub8(0, r.A, 0)
}

// Misc runs the x=0 z=7 accumulator group selected by y: RLCA, RRCA, RLA,
// RRA, DAA, CPL, SCF, CCF.
func (a *ALU) Misc(y uint8) {
	r := a.regFile
	keep := r.F & (FlagS | FlagZ | FlagPV)
	switch y & 7 {
	case 0:
		c := r.A >> 7
		r.A = r.A<<1 | c
		r.F = keep | c
	case 1:
		c := r.A & 1
		r.A = r.A>>1 | c<<7
		r.F = keep | c
	case 2:
		c := r.A >> 7
		r.A = r.A<<1 | a.carry()
		r.F = keep | c
	case 3:
		c := r.A & 1
		r.A = r.A>>1 | a.carry()<<7
		r.F = keep | c
	case 4:
		a.daa()
		return
	case 5:
		r.A = ^r.A
		r.F = r.F&(FlagS|FlagZ|FlagPV|FlagC) | FlagH | FlagN
	case 6:
		r.F = keep | FlagC
	case 7:
		f := keep
		if r.F&FlagC != 0 {
			f |= FlagH
		} else {
			f |= FlagC
		}
		r.F = f
	}
	r.F = r.F&^(Flag5|Flag3) | r.A&(Flag5|Flag3)
}

func (a *ALU) daa() {
	r := a.regFile
	var adj uint8
	c := r.F & FlagC
	if r.F&FlagH != 0 || r.A&0x0F > 9 {
		adj |= 0x06
	}
	if c != 0 || r.A > 0x99 {
		adj |= 0x60
		c = FlagC
	}
	var res uint8
	if r.F&FlagN != 0 {
		res = r.A - adj
	} else {
		res = r.A + adj
	}
	f := szxyp(res) | c | r.F&FlagN
	if (r.A^res)&0x10 != 0 {
		f |= FlagH
	}
	r.A, r.F = res, f
}

// Rotate runs the CB shift/rotate selected by y on v.
func (a *ALU) Rotate(y, v uint8) uint8 {
	var res, c uint8
	switch y & 7 {
	case 0: // RLC
		c = v >> 7
		res = v<<1 | c
	case 1: // RRC
		c = v & 1
		res = v>>1 | c<<7
	case 2: // RL
		c = v >> 7
		res = v<<1 | a.carry()
	case 3: // RR
		c = v & 1
		res = v>>1 | a.carry()<<7
	case 4: // SLA
		c = v >> 7
		res = v << 1
	case 5: // SRA
		c = v & 1
		res = v>>1 | v&0x80
	case 6: // SLL
		c = v >> 7
		res = v<<1 | 1
	case 7: // SRL
		c = v & 1
		res = v >> 1
	}
	a.regFile.F = szxyp(res) | c
	return res
}

// Bit tests bit b of v. The undocumented bits come from xy, which is v for
// registers and the high byte of the effective address for memory operands.
func (a *ALU) Bit(b, v, xy uint8) {
	f := a.carry() | FlagH
	if v&(1<<(b&7)) == 0 {
		f |= FlagZ | FlagPV
	} else if b&7 == 7 {
		f |= FlagS
	}
	a.regFile.F = f | xy&(Flag5|Flag3)
}

// Add16 returns x + y; S, Z and P/V are preserved.
func (a *ALU) Add16(x, y uint16) uint16 {
	sum := uint32(x) + uint32(y)
	res := uint16(sum)
	f := a.regFile.F & (FlagS | FlagZ | FlagPV)
	if (x^y^res)&0x1000 != 0 {
		f |= FlagH
	}
	if sum > 0xFFFF {
		f |= FlagC
	}
	a.regFile.F = f | uint8(res>>8)&(Flag5|Flag3)
	return res
}

// Adc16 returns x + y + C.
func (a *ALU) Adc16(x, y uint16) uint16 {
	sum := uint32(x) + uint32(y) + uint32(a.carry())
	res := uint16(sum)
	f := uint8(res>>8) & (FlagS | Flag5 | Flag3)
	if res == 0 {
		f |= FlagZ
	}
	if (x^y^res)&0x1000 != 0 {
		f |= FlagH
	}
	if (x^res)&(y^res)&0x8000 != 0 {
		f |= FlagPV
	}
	if sum > 0xFFFF {
		f |= FlagC
	}
	a.regFile.F = f
	return res
}

// Sbc16 returns x - y - C.
func (a *ALU) Sbc16(x, y uint16) uint16 {
	diff := int32(x) - int32(y) - int32(a.carry())
	res := uint16(diff)
	f := uint8(res>>8)&(FlagS|Flag5|Flag3) | FlagN
	if res == 0 {
		f |= FlagZ
	}
	if (x^y^res)&0x1000 != 0 {
		f |= FlagH
	}
	if (x^y)&(x^res)&0x8000 != 0 {
		f |= FlagPV
	}
	if diff < 0 {
		f |= FlagC
	}
	a.regFile.F = f
	return res
}

// Rrd rotates the low nibbles of A and m right through each other and
// returns the new memory byte. With left set it performs RLD.
func (a *ALU) Rrd(m uint8, left bool) uint8 {
	r := a.regFile
	var res uint8
	if left {
		res = m<<4 | r.A&0x0F
		r.A = r.A&0xF0 | m>>4
	} else {
		res = r.A<<4 | m>>4
		r.A = r.A&0xF0 | m&0x0F
	}
	r.F = szxyp(r.A) | a.carry()
	return res
}

// InFlags sets the flags of IN r,(C) for the byte read.
func (a *ALU) InFlags(v uint8) {
	a.regFile.F = szxyp(v) | a.carry()
}

// LdAIRFlags sets the flags of LD A,I and LD A,R.
func (a *ALU) LdAIRFlags() {
	r := a.regFile
	f := szxy(r.A) | a.carry()
	if r.IFF2 {
		f |= FlagPV
	}
	r.F = f
}

// BlockLdFlags sets the flags of LDI/LDD after BC was decremented.
func (a *ALU) BlockLdFlags(v uint8) {
	r := a.regFile
	n := r.A + v
	f := r.F&(FlagS|FlagZ|FlagC) | n&Flag3 | (n<<4)&Flag5
	if r.Get16(BC) != 0 {
		f |= FlagPV
	}
	r.F = f
}

// BlockCpFlags sets the flags of CPI/CPD after BC was decremented.
func (a *ALU) BlockCpFlags(v uint8) {
	r := a.regFile
	res, f := sub8(r.A, v, 0)
	f = f&(FlagS|FlagZ|FlagH) | FlagN | a.carry()
	n := res
	if f&FlagH != 0 {
		n--
	}
	f |= n&Flag3 | (n<<4)&Flag5
	if r.Get16(BC) != 0 {
		f |= FlagPV
	}
	r.F = f
}

// BlockIOFlags sets the flags of INI/IND/OUTI/OUTD after B was decremented.
// k is the low byte the transfer is summed with: C+1, C-1 or L.
func (a *ALU) BlockIOFlags(v, k uint8) {
	r := a.regFile
	f := szxy(r.B)
	if v&0x80 != 0 {
		f |= FlagN
	}
	sum := uint16(v) + uint16(k)
	if sum > 0xFF {
		f |= FlagH | FlagC
	}
	if parity(uint8(sum)&7 ^ r.B) {
		f |= FlagPV
	}
	r.F = f
}
