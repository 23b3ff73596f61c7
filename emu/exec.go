package emu

import (
	"github.com/sarchlab/z80exec/insts"
)

// Instr is the instruction the datapath is currently executing.
type Instr struct {
	// Op is the full opcode byte held in the instruction register.
	Op uint8
	// Table is the opcode map Op was decoded in.
	Table insts.Table
	// Vector is the decode vector of Op.
	Vector insts.Vector
	// Index is the DD/FD prefix latch.
	Index Index
}

func (in Instr) x() uint8 { return in.Op >> 6 }
func (in Instr) y() uint8 { return (in.Op >> 3) & 7 }
func (in Instr) z() uint8 { return in.Op & 7 }
func (in Instr) p() uint8 { return (in.Op >> 4) & 3 }
func (in Instr) q() uint8 { return (in.Op >> 3) & 1 }

// Src returns the op0..op2 register. Classes that address memory through HL
// keep plain H and L even under an index prefix.
func (in Instr) Src() RegRef { return Reg8(in.z(), in.regIndex()) }

// Dst returns the op3..op5 register.
func (in Instr) Dst() RegRef { return Reg8(in.y(), in.regIndex()) }

func (in Instr) regIndex() Index {
	if in.Vector.Has(insts.ClassMemHL) || in.Table != insts.TableMain {
		return IndexNone
	}
	return in.Index
}

// Pair returns the op4..op5 register pair; af selects AF over SP.
func (in Instr) Pair(af bool) Pair {
	if in.Table == insts.TableED {
		return RegPair(in.p(), IndexNone, af)
	}
	return RegPair(in.p(), in.Index, af)
}

// HL returns HL or the selected index register.
func (in Instr) HL() Pair {
	if in.Table == insts.TableED {
		return HL
	}
	return HLPair(in.Index)
}

// IMode returns the interrupt mode IM n selects.
func IMode(op uint8) uint8 {
	switch (op >> 3) & 3 {
	case 2:
		return 1
	case 3:
		return 2
	}
	return 0
}

// ExecUnit performs the data operations of each instruction class at the
// points of its timeline where the operands are available. Address
// sequencing and bus transfers are the control unit's; the ALU work is here.
type ExecUnit struct {
	regFile    *RegFile
	alu        *ALU
	branchUnit *BranchUnit
}

// NewExecUnit creates an ExecUnit connected to the given register file.
func NewExecUnit(regFile *RegFile) *ExecUnit {
	return &ExecUnit{
		regFile:    regFile,
		alu:        NewALU(regFile),
		branchUnit: NewBranchUnit(regFile),
	}
}

// ALU returns the ALU.
func (e *ExecUnit) ALU() *ALU { return e.alu }

// Decoded runs at the first tick after the opcode is in the instruction
// register.
func (e *ExecUnit) Decoded(in Instr) {
	r := e.regFile
	switch {
	case in.Vector.Has(insts.ClassDjnz):
		r.B--
	case in.Vector.Has(insts.ClassOutNA), in.Vector.Has(insts.ClassInAN):
		// The port high byte is A.
		r.W = r.A
	case in.Vector.Has(insts.ClassOutCR) && in.y() == 6:
		// OUT (C),0 drives its register field, which maps to Z.
		r.Z = 0
	}
}

// Condition reports whether the condition of a conditional class holds.
func (e *ExecUnit) Condition(in Instr) bool {
	v := in.Vector
	switch {
	case v.Has(insts.ClassDjnz):
		return e.regFile.B != 0
	case v.Has(insts.ClassJrCC):
		return e.branchUnit.CheckCondition(Cond(in.y() - 4))
	case v.Has(insts.ClassJpCC), v.Has(insts.ClassCallCC), v.Has(insts.ClassRetCC):
		return e.branchUnit.CheckCondition(Cond(in.y()))
	}
	return false
}

// RepeatEnabled reports whether a block instruction's counter allows another
// pass.
func (e *ExecUnit) RepeatEnabled(in Instr) bool {
	v := in.Vector
	if v.Has(insts.ClassBlockIn) || v.Has(insts.ClassBlockOut) {
		return e.regFile.B != 0
	}
	return e.regFile.Get16(BC) != 0
}

func isBlock(v insts.Vector) bool {
	return v.Has(insts.ClassBlockLd) || v.Has(insts.ClassBlockCp) ||
		v.Has(insts.ClassBlockIn) || v.Has(insts.ClassBlockOut)
}

// Cycle runs at T1 of machine cycle m (m >= 2). write is set when the cycle
// writes memory. tmp is the ALU operand latch.
func (e *ExecUnit) Cycle(in Instr, m int, write bool, tmp *uint8) {
	v := in.Vector
	r := e.regFile

	if isBlock(v) {
		switch m {
		case 2:
			if v.Has(insts.ClassBlockIn) || v.Has(insts.ClassBlockOut) {
				r.B--
			} else {
				r.Set16(BC, r.Get16(BC)-1)
			}
		case 3:
			e.blockFlags(in, *tmp)
		}
		return
	}

	if !write {
		return
	}
	switch {
	case v.Has(insts.ClassIncDecHL):
		if in.z() == 4 {
			*tmp = e.alu.Inc8(*tmp)
		} else {
			*tmp = e.alu.Dec8(*tmp)
		}
	case v.Has(insts.ClassCbHL):
		*tmp = e.cbOp(in.x(), in.y(), *tmp)
	case v.Has(insts.ClassRrdRld):
		*tmp = e.alu.Rrd(*tmp, in.y() == 5)
	}
}

func (e *ExecUnit) blockFlags(in Instr, tmp uint8) {
	v := in.Vector
	r := e.regFile
	dec := in.Op&0x08 != 0
	switch {
	case v.Has(insts.ClassBlockLd):
		e.alu.BlockLdFlags(tmp)
	case v.Has(insts.ClassBlockCp):
		e.alu.BlockCpFlags(tmp)
	case v.Has(insts.ClassBlockIn):
		k := r.C + 1
		if dec {
			k = r.C - 1
		}
		e.alu.BlockIOFlags(tmp, k)
	case v.Has(insts.ClassBlockOut):
		e.alu.BlockIOFlags(tmp, r.L)
	}
}

func (e *ExecUnit) cbOp(x, y, v uint8) uint8 {
	switch x {
	case 0:
		return e.alu.Rotate(y, v)
	case 2:
		return v &^ (1 << y)
	case 3:
		return v | 1<<y
	}
	return v
}

// Finish runs on the tick that ends the instruction, after the tick's
// register writes and transfers.
func (e *ExecUnit) Finish(in Instr, tmp uint8) {
	v := in.Vector
	r := e.regFile
	a := e.alu

	switch {
	case v.Has(insts.ClassSpecial):
		e.special(in)
	case v.Has(insts.ClassLdRR):
		r.Write8(in.Dst(), r.Read8(in.Src()))
	case v.Has(insts.ClassAluR):
		a.Accumulate(in.y(), r.Read8(in.Src()))
	case v.Has(insts.ClassAluN), v.Has(insts.ClassAluHL):
		a.Accumulate(in.y(), tmp)
	case v.Has(insts.ClassIncDecR):
		if in.z() == 4 {
			r.Write8(in.Dst(), a.Inc8(r.Read8(in.Dst())))
		} else {
			r.Write8(in.Dst(), a.Dec8(r.Read8(in.Dst())))
		}
	case v.Has(insts.ClassCbR):
		ref := in.Src()
		if in.x() == 1 {
			val := r.Read8(ref)
			a.Bit(in.y(), val, val)
			return
		}
		r.Write8(ref, e.cbOp(in.x(), in.y(), r.Read8(ref)))
	case v.Has(insts.ClassBitHL):
		a.Bit(in.y(), tmp, r.W)
	case v.Has(insts.ClassCbHL):
		// DD CB d op with a register field also copies the result there.
		if in.Table == insts.TableIndexedCB && in.z() != 6 {
			r.Write8(Reg8(in.z(), IndexNone), tmp)
		}
	case v.Has(insts.ClassNeg):
		a.Neg()
	case v.Has(insts.ClassAddHLRP):
		hl := in.HL()
		r.Set16(hl, a.Add16(r.Get16(hl), r.Get16(in.Pair(false))))
	case v.Has(insts.ClassAdcSbcHL):
		hl, rp := r.Get16(HL), r.Get16(in.Pair(false))
		if in.q() == 1 {
			r.Set16(HL, a.Adc16(hl, rp))
		} else {
			r.Set16(HL, a.Sbc16(hl, rp))
		}
	case v.Has(insts.ClassInRC):
		a.InFlags(r.Read8(in.Dst()))
	case v.Has(insts.ClassLdIR):
		e.ldIR(in.y())
	}
}

func (e *ExecUnit) special(in Instr) {
	r := e.regFile
	switch in.Op {
	case 0x08:
		r.ExAF()
	case 0xD9:
		r.Exx()
	case 0xEB:
		r.D, r.H = r.H, r.D
		r.E, r.L = r.L, r.E
	default:
		if in.x() == 0 && in.z() == 7 {
			e.alu.Misc(in.y())
		}
	}
}

func (e *ExecUnit) ldIR(y uint8) {
	r := e.regFile
	switch y {
	case 0:
		r.I = r.A
	case 1:
		r.R = r.A
	case 2:
		r.A = r.I
		e.alu.LdAIRFlags()
	case 3:
		r.A = r.R
		e.alu.LdAIRFlags()
	}
}
