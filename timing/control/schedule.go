package control

import (
	"fmt"

	"github.com/sarchlab/z80exec/insts"
)

// Override building blocks.

func set(sig Signal, v uint8) Override { return Override{}.Set(sig, v) }

func on(sig Signal) Override { return set(sig, 1) }

func all(os ...Override) Override {
	var out Override
	for _, o := range os {
		out = out.With(o)
	}
	return out
}

// latch loads the address latch from p.
func latch(p Pair) Override {
	return all(on(ALatchWE), set(ALatchSrc, uint8(p)))
}

// next ends the machine cycle with the address of the next one in the latch.
func next(p Pair) Override { return all(latch(p), on(NextM)) }

var (
	advance = on(NextM)
	done    = on(SetM1)
)

// incr runs the incrementer on the address latch and writes the result to p.
func incr(mode IncMode, p Pair) Override {
	return all(set(Inc, uint8(mode)), set(IncWB, uint8(p)))
}

// toReg writes the data pins into a register byte.
func toReg(p Pair, lane HiLo) Override {
	return all(set(BusDrv, uint8(BusPins)), set(RegSel, uint8(p)), set(RegHiLo, uint8(lane)), on(RegWE))
}

// fromReg drives a register byte onto the data bus.
func fromReg(p Pair, lane HiLo) Override {
	return all(set(BusDrv, uint8(BusReg)), set(RegSel, uint8(p)), set(RegHiLo, uint8(lane)))
}

func xfer(x Transfer) Override { return set(Xfer, uint8(x)) }

// Machine cycle templates. Each returns one override per T-state.

// opRead reads the operand byte at PC and advances PC on T1.
func opRead(dst Pair, lane HiLo) []Override {
	return []Override{
		all(on(MRead), incr(IncUp, PairPC)),
		on(MRead),
		all(on(MRead), toReg(dst, lane)),
	}
}

// memRead reads the byte at the address latch; ticks past T3 are internal.
func memRead(n int, dst Pair, lane HiLo) []Override {
	steps := idleSteps(n)
	steps[0] = on(MRead)
	steps[1] = on(MRead)
	steps[2] = all(on(MRead), toReg(dst, lane))
	return steps
}

// memWrite writes a register byte to the address latch; ticks past T3 are
// internal.
func memWrite(n int, src Pair, lane HiLo) []Override {
	steps := idleSteps(n)
	steps[0] = on(MWrite)
	steps[1] = all(on(MWrite), fromReg(src, lane))
	steps[2] = on(MWrite)
	return steps
}

// ioRead is a four T-state port read; data is sampled on T3.
func ioRead(dst Pair, lane HiLo) []Override {
	return []Override{
		on(IORead),
		on(IORead),
		all(on(IORead), toReg(dst, lane)),
		on(IORead),
	}
}

// ioWrite is a four T-state port write.
func ioWrite(src Pair, lane HiLo) []Override {
	return []Override{
		on(IOWrite),
		all(on(IOWrite), fromReg(src, lane)),
		on(IOWrite),
		on(IOWrite),
	}
}

// pushHi pre-decrements SP and writes the high byte of src.
func pushHi(src Pair) []Override {
	return []Override{
		all(on(MWrite), incr(IncDown, PairSP), latch(PairSP)),
		all(on(MWrite), fromReg(src, Hi)),
		all(on(MWrite), incr(IncDown, PairSP), latch(PairSP), advance),
	}
}

// pushLo writes the low byte of src at the already decremented SP.
func pushLo(src Pair) []Override {
	return memWrite(3, src, Lo)
}

// pop reads one byte at SP into dst and post-increments SP.
func pop(dst Pair, lane HiLo) []Override {
	return with(memRead(3, dst, lane), 1, incr(IncUp, PairSP))
}

func idleSteps(n int) []Override { return make([]Override, n) }

// with merges o into step t (1-based).
func with(steps []Override, t int, o Override) []Override {
	out := append([]Override(nil), steps...)
	out[t-1] = out[t-1].With(o)
	return out
}

// indexPlan says how a MemHL class body is laid out behind the shared
// displacement sub-sequence.
type indexPlan uint8

const (
	// shiftBody moves every body machine cycle from M2 on back by two.
	shiftBody indexPlan = iota + 1
	// overlapBody reads the M2 operand during the address computation
	// cycle and moves the rest of the body back by one.
	overlapBody
)

// scheduleBuilder collects matrix entries.
type scheduleBuilder struct {
	entries []Entry
	plans   map[insts.Class]indexPlan
}

func (b *scheduleBuilder) at(c insts.Class, m, t int, g Guard, o Override) {
	if o.Empty() {
		return
	}
	b.entries = append(b.entries, Entry{Class: c, M: m, T: t, Guard: g, Override: o})
}

func (b *scheduleBuilder) cycle(c insts.Class, m int, g Guard, steps []Override) {
	for i, o := range steps {
		b.at(c, m, i+1, g, o)
	}
}

// Schedules returns the complete entry list of the instruction matrix.
func Schedules() ([]Entry, error) {
	b := &scheduleBuilder{plans: make(map[insts.Class]indexPlan)}
	b.fetch()
	b.singleCycle()
	b.loads()
	b.memHL()
	b.arithmetic()
	b.stack()
	b.jumps()
	b.calls()
	b.io()
	b.blocks()
	b.indexed()
	return b.expand()
}

// fetch is the shared M1 T1..T3 schedule. Halt, interrupt and NMI responses
// borrow its shape but hold PC and substitute the opcode.
func (b *scheduleBuilder) fetch() {
	const c = FetchClass
	normal := Unless(CondHalt | CondIntAck | CondNMI)
	halt := When(CondHalt).And(Unless(CondIntAck | CondNMI))
	ack := When(CondIntAck).And(Unless(CondNMI))
	nmi := When(CondNMI)
	hold := set(PCInc, 0)

	b.at(c, 1, 1, normal, incr(IncUp, PairPC))
	b.at(c, 1, 3, normal, all(set(BusDrv, uint8(BusPins)), set(IR, uint8(IRBus)), latch(PairIR)))

	b.at(c, 1, 1, halt, all(incr(IncUp, PairPC), hold))
	b.at(c, 1, 3, halt, all(set(IR, uint8(IRZero)), latch(PairIR)))

	b.at(c, 1, 1, ack, all(incr(IncUp, PairPC), hold, on(IORead)))
	b.at(c, 1, 2, ack, on(IORead))
	b.at(c, 1, 3, ack.And(Unless(CondIM1|CondIM2)),
		all(on(IORead), set(BusDrv, uint8(BusPins)), set(IR, uint8(IRBus)), latch(PairIR)))
	b.at(c, 1, 3, ack.And(When(CondIM1)).And(Unless(CondIM2)),
		all(on(IORead), set(IR, uint8(IRRst)), latch(PairIR)))
	b.at(c, 1, 3, ack.And(When(CondIM2)),
		all(on(IORead), toReg(PairWZ, Lo), xfer(XferIToW), set(IR, uint8(IRRst)), latch(PairIR)))

	b.at(c, 1, 1, nmi, all(incr(IncUp, PairPC), hold))
	b.at(c, 1, 3, nmi, all(set(IR, uint8(IRRst)), latch(PairIR)))
}

// singleCycle covers instructions that finish inside M1.
func (b *scheduleBuilder) singleCycle() {
	for _, c := range []insts.Class{
		insts.ClassSpecial, insts.ClassLdRR, insts.ClassAluR, insts.ClassIncDecR,
		insts.ClassCbR, insts.ClassNeg,
	} {
		b.at(c, 1, 4, Always, done)
	}
	b.at(insts.ClassDI, 1, 4, Always, all(set(Iff, uint8(IffClear)), done))
	b.at(insts.ClassEI, 1, 4, Always, all(set(Iff, uint8(IffSet)), done))
	b.at(insts.ClassHalt, 1, 4, Always, all(on(SetHalt), done))
	b.at(insts.ClassJpHL, 1, 4, Always, all(xfer(XferHLToPC), done))
	b.at(insts.ClassImN, 1, 4, Always, all(on(SetIM), done))
	b.at(insts.ClassLdIR, 1, 5, Always, done)
	b.at(insts.ClassLdSPHL, 1, 6, Always, all(xfer(XferHLToSP), done))

	b.at(insts.ClassIncRP, 1, 4, Always, latch(PairRP))
	b.at(insts.ClassIncRP, 1, 5, Always, incr(IncUp, PairRP))
	b.at(insts.ClassIncRP, 1, 6, Always, done)
	b.at(insts.ClassDecRP, 1, 4, Always, latch(PairRP))
	b.at(insts.ClassDecRP, 1, 5, Always, incr(IncDown, PairRP))
	b.at(insts.ClassDecRP, 1, 6, Always, done)

	b.at(insts.ClassPrefixED, 1, 4, Always, all(on(SetCBED), done))
	b.at(insts.ClassPrefixXY, 1, 4, Always, all(on(SetIXIY), done))
	b.at(insts.ClassPrefixCB, 1, 4, Unless(CondIndexed), all(on(SetCBED), done))
}

// loads covers immediate and absolute loads.
func (b *scheduleBuilder) loads() {
	for _, l := range []struct {
		c   insts.Class
		dst Pair
	}{
		{insts.ClassLdRN, PairR8Dst},
		{insts.ClassAluN, PairTmp},
	} {
		b.at(l.c, 1, 4, Always, next(PairPC))
		b.cycle(l.c, 2, Always, with(opRead(l.dst, Lo), 3, done))
	}

	c := insts.ClassLdRPNN
	b.at(c, 1, 4, Always, next(PairPC))
	b.cycle(c, 2, Always, with(opRead(PairRP, Lo), 3, next(PairPC)))
	b.cycle(c, 3, Always, with(opRead(PairRP, Hi), 3, done))

	// Absolute addressing: nn into WZ, then one or two data cycles at WZ.
	absolute := func(c insts.Class, data ...[]Override) {
		b.at(c, 1, 4, Always, next(PairPC))
		b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, next(PairPC)))
		b.cycle(c, 3, Always, with(opRead(PairWZ, Hi), 3, next(PairWZ)))
		for i, steps := range data {
			m := 4 + i
			if i == len(data)-1 {
				b.cycle(c, m, Always, with(steps, 3, done))
				continue
			}
			steps = with(steps, 1, incr(IncUp, PairWZ))
			b.cycle(c, m, Always, with(steps, 3, next(PairWZ)))
		}
	}
	absolute(insts.ClassLdANN, memRead(3, PairAF, Hi))
	absolute(insts.ClassLdNNA, memWrite(3, PairAF, Hi))
	absolute(insts.ClassLdHLNNInd, memRead(3, PairHL, Lo), memRead(3, PairHL, Hi))
	absolute(insts.ClassLdNNHL, memWrite(3, PairHL, Lo), memWrite(3, PairHL, Hi))
	absolute(insts.ClassLdRPNNInd, memRead(3, PairRP, Lo), memRead(3, PairRP, Hi))
	absolute(insts.ClassLdNNRP, memWrite(3, PairRP, Lo), memWrite(3, PairRP, Hi))

	c = insts.ClassLdARP
	b.at(c, 1, 4, Always, next(PairRP))
	b.cycle(c, 2, Always, with(memRead(3, PairAF, Hi), 3, done))

	c = insts.ClassLdRPA
	b.at(c, 1, 4, Always, next(PairRP))
	b.cycle(c, 2, Always, with(memWrite(3, PairAF, Hi), 3, done))
}

// memHL covers the classes addressing memory through HL. Their bodies are
// written for plain HL; indexed copies are generated by expand.
func (b *scheduleBuilder) memHL() {
	for _, r := range []struct {
		c   insts.Class
		dst Pair
	}{
		{insts.ClassLdRHL, PairR8Dst},
		{insts.ClassAluHL, PairTmp},
	} {
		b.at(r.c, 1, 4, Always, next(PairHL))
		b.cycle(r.c, 2, Always, with(memRead(3, r.dst, Lo), 3, done))
		b.plans[r.c] = shiftBody
	}

	c := insts.ClassLdHLR
	b.at(c, 1, 4, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memWrite(3, PairR8Src, Lo), 3, done))
	b.plans[c] = shiftBody

	c = insts.ClassLdHLN
	b.at(c, 1, 4, Always, next(PairPC))
	b.cycle(c, 2, Always, with(opRead(PairTmp, Lo), 3, next(PairHL)))
	b.cycle(c, 3, Always, with(memWrite(3, PairTmp, Lo), 3, done))
	b.plans[c] = overlapBody

	// Read-modify-write: INC/DEC (HL) and the CB rotates, shifts, RES, SET.
	for _, c := range []insts.Class{insts.ClassIncDecHL, insts.ClassCbHL} {
		b.at(c, 1, 4, Always, next(PairHL))
		b.cycle(c, 2, Always, with(memRead(4, PairTmp, Lo), 4, next(PairHL)))
		b.cycle(c, 3, Always, with(memWrite(3, PairTmp, Lo), 3, done))
		b.plans[c] = shiftBody
	}

	c = insts.ClassBitHL
	b.at(c, 1, 4, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memRead(4, PairTmp, Lo), 4, done))
	b.plans[c] = shiftBody

	c = insts.ClassRrdRld
	b.at(c, 1, 4, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memRead(3, PairTmp, Lo), 3, advance))
	b.cycle(c, 3, Always, with(idleSteps(4), 4, next(PairHL)))
	b.cycle(c, 4, Always, with(memWrite(3, PairTmp, Lo), 3, done))
}

// arithmetic covers the 16-bit ALU instructions with internal cycles.
func (b *scheduleBuilder) arithmetic() {
	for _, c := range []insts.Class{insts.ClassAddHLRP, insts.ClassAdcSbcHL} {
		b.at(c, 1, 4, Always, advance)
		b.cycle(c, 2, Always, with(idleSteps(4), 4, advance))
		b.cycle(c, 3, Always, with(idleSteps(3), 3, done))
	}
}

// stack covers PUSH, POP and EX (SP),HL.
func (b *scheduleBuilder) stack() {
	c := insts.ClassPush
	b.at(c, 1, 5, Always, next(PairSP))
	b.cycle(c, 2, Always, pushHi(PairRPAF))
	b.cycle(c, 3, Always, with(pushLo(PairRPAF), 3, done))

	c = insts.ClassPop
	b.at(c, 1, 4, Always, next(PairSP))
	b.cycle(c, 2, Always, with(pop(PairRPAF, Lo), 3, next(PairSP)))
	b.cycle(c, 3, Always, with(pop(PairRPAF, Hi), 3, done))

	// SP is walked up to read the high byte and back down to write it, so
	// it ends where it started.
	c = insts.ClassExSPHL
	b.at(c, 1, 4, Always, next(PairSP))
	b.cycle(c, 2, Always, with(memRead(3, PairWZ, Lo), 3,
		all(incr(IncUp, PairSP), latch(PairSP), advance)))
	b.cycle(c, 3, Always, with(memRead(4, PairWZ, Hi), 4, advance))
	b.cycle(c, 4, Always, with(memWrite(3, PairHL, Hi), 3,
		all(incr(IncDown, PairSP), latch(PairSP), advance)))
	b.cycle(c, 5, Always, with(memWrite(5, PairHL, Lo), 5, all(xfer(XferWZToHL), done)))
}

// ret pops WZ over M2 and M3 and jumps to it.
func (b *scheduleBuilder) ret(c insts.Class, g Guard) {
	b.cycle(c, 2, g, with(pop(PairWZ, Lo), 3, next(PairSP)))
	b.cycle(c, 3, g, with(pop(PairWZ, Hi), 3, all(xfer(XferWZToPC), done)))
}

// relative is the five T-state displacement add of JR and DJNZ.
func (b *scheduleBuilder) relative(c insts.Class) {
	b.cycle(c, 3, Always, with(idleSteps(5), 5, all(xfer(XferPCRel), done)))
}

// jumps covers JP, JR, DJNZ and RET.
func (b *scheduleBuilder) jumps() {
	taken, notTaken := When(CondTaken), Unless(CondTaken)

	for _, c := range []insts.Class{insts.ClassJpNN, insts.ClassJpCC} {
		b.at(c, 1, 4, Always, next(PairPC))
		b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, next(PairPC)))
		b.cycle(c, 3, Always, with(opRead(PairWZ, Hi), 3, done))
	}
	b.at(insts.ClassJpNN, 3, 3, Always, xfer(XferWZToPC))
	b.at(insts.ClassJpCC, 3, 3, taken, xfer(XferWZToPC))

	c := insts.ClassJr
	b.at(c, 1, 4, Always, next(PairPC))
	b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, advance))
	b.relative(c)

	for _, cc := range []struct {
		c   insts.Class
		end int
	}{
		{insts.ClassJrCC, 4},
		{insts.ClassDjnz, 5},
	} {
		b.at(cc.c, 1, cc.end, Always, next(PairPC))
		b.cycle(cc.c, 2, Always, opRead(PairWZ, Lo))
		b.at(cc.c, 2, 3, taken, advance)
		b.at(cc.c, 2, 3, notTaken, done)
		b.relative(cc.c)
	}

	c = insts.ClassRet
	b.at(c, 1, 4, Always, next(PairSP))
	b.ret(c, Always)

	c = insts.ClassRetn
	b.at(c, 1, 4, Always, next(PairSP))
	b.ret(c, Always)
	b.at(c, 3, 3, Always, set(Iff, uint8(IffRestore)))

	c = insts.ClassRetCC
	b.at(c, 1, 5, taken, next(PairSP))
	b.at(c, 1, 5, notTaken, done)
	b.ret(c, Always)
}

// calls covers CALL and RST, including RST as the interrupt response.
func (b *scheduleBuilder) calls() {
	taken, notTaken := When(CondTaken), Unless(CondTaken)

	for _, c := range []insts.Class{insts.ClassCall, insts.ClassCallCC} {
		b.at(c, 1, 4, Always, next(PairPC))
		b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, next(PairPC)))
		b.cycle(c, 3, Always, opRead(PairWZ, Hi))
		b.cycle(c, 4, Always, pushHi(PairPC))
		b.cycle(c, 5, Always, with(pushLo(PairPC), 3, all(xfer(XferWZToPC), done)))
	}
	b.at(insts.ClassCall, 3, 4, Always, next(PairSP))
	b.at(insts.ClassCallCC, 3, 3, notTaken, done)
	b.at(insts.ClassCallCC, 3, 4, taken, next(PairSP))

	c := insts.ClassRst
	b.at(c, 1, 5, Always, next(PairSP))
	b.cycle(c, 2, Always, pushHi(PairPC))
	b.cycle(c, 3, Always, pushLo(PairPC))

	// RST p, IM0 with a device-supplied RST, and IM1 jump to the restart
	// vector; NMI jumps to 0066h; IM2 reads the target from the table at
	// I:vector, which the acknowledge cycle left in WZ.
	im2 := When(CondIntAck | CondIM2).And(Unless(CondNMI))
	b.at(c, 3, 3, Unless(CondNMI|CondIntAck), all(xfer(XferRstToPC), done))
	b.at(c, 3, 3, When(CondIntAck).And(Unless(CondNMI|CondIM2)), all(xfer(XferRstToPC), done))
	b.at(c, 3, 3, When(CondNMI), all(xfer(XferNMIToPC), done))
	b.at(c, 3, 3, im2, next(PairWZ))
	b.cycle(c, 4, Always, with(with(memRead(3, PairPC, Lo), 1, incr(IncUp, PairWZ)), 3, next(PairWZ)))
	b.cycle(c, 5, Always, with(memRead(3, PairPC, Hi), 3, done))
}

// io covers the port instructions outside the block group.
func (b *scheduleBuilder) io() {
	c := insts.ClassOutNA
	b.at(c, 1, 4, Always, next(PairPC))
	b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, next(PairWZ)))
	b.cycle(c, 3, Always, with(ioWrite(PairAF, Hi), 4, done))

	c = insts.ClassInAN
	b.at(c, 1, 4, Always, next(PairPC))
	b.cycle(c, 2, Always, with(opRead(PairWZ, Lo), 3, next(PairWZ)))
	b.cycle(c, 3, Always, with(ioRead(PairAF, Hi), 4, done))

	c = insts.ClassInRC
	b.at(c, 1, 4, Always, next(PairBC))
	b.cycle(c, 2, Always, with(ioRead(PairR8Dst, Lo), 4, done))

	c = insts.ClassOutCR
	b.at(c, 1, 4, Always, next(PairBC))
	b.cycle(c, 2, Always, with(ioWrite(PairR8Dst, Lo), 4, done))
}

// step walks a block pointer up, or down for the op3 variants.
func (b *scheduleBuilder) step(c insts.Class, m, t int, p Pair) {
	b.at(c, m, t, Unless(CondDec), incr(IncUp, p))
	b.at(c, m, t, When(CondDec), incr(IncDown, p))
}

// finish ends a block iteration at (m, t): the non-repeating tail completes
// the instruction, the repeating tail runs one more machine cycle that moves
// PC back onto the ED prefix so the instruction is fetched again.
func (b *scheduleBuilder) finish(c insts.Class, m, t int) {
	b.at(c, m, t, Unless(CondRepeat), all(on(NonRep), done))
	b.at(c, m, t, When(CondRepeat), next(PairPC))
	b.cycle(c, m+1, Always, []Override{
		all(incr(IncDown, PairPC), latch(PairPC)),
		{},
		incr(IncDown, PairPC),
		{},
		done,
	})
}

// blocks covers the LDI/CPI/INI/OUTI groups and their repeating forms.
func (b *scheduleBuilder) blocks() {
	c := insts.ClassBlockLd
	b.at(c, 1, 4, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memRead(3, PairTmp, Lo), 3, next(PairDE)))
	b.step(c, 2, 1, PairHL)
	b.cycle(c, 3, Always, memWrite(5, PairTmp, Lo))
	b.step(c, 3, 1, PairDE)
	b.finish(c, 3, 5)

	c = insts.ClassBlockCp
	b.at(c, 1, 4, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memRead(3, PairTmp, Lo), 3, advance))
	b.step(c, 2, 1, PairHL)
	b.finish(c, 3, 5)

	c = insts.ClassBlockIn
	b.at(c, 1, 5, Always, next(PairBC))
	b.cycle(c, 2, Always, with(ioRead(PairTmp, Lo), 4, next(PairHL)))
	b.cycle(c, 3, Always, memWrite(3, PairTmp, Lo))
	b.step(c, 3, 1, PairHL)
	b.finish(c, 3, 3)

	c = insts.ClassBlockOut
	b.at(c, 1, 5, Always, next(PairHL))
	b.cycle(c, 2, Always, with(memRead(3, PairTmp, Lo), 3, next(PairBC)))
	b.step(c, 2, 1, PairHL)
	b.cycle(c, 3, Always, ioWrite(PairTmp, Lo))
	b.finish(c, 3, 4)
}

// indexed is the shared displacement sub-sequence of every MemHL class when
// the DD/FD prefix is active: M1 ends with PC in the latch, M2 reads d into
// Z, and M3 spends five T-states forming IX/IY+d in WZ. The DD CB d op form
// additionally reads its opcode during the first three of those T-states.
func (b *scheduleBuilder) indexed() {
	g := When(CondIndexed)
	c := insts.ClassMemHL
	b.at(c, 1, 4, g, next(PairPC))
	b.cycle(c, 2, g, with(opRead(PairWZ, Lo), 3, next(PairPC)))
	b.cycle(c, 3, g, []Override{on(IXYD), on(IXYD), on(IXYD), on(IXYD), all(on(IXYD), next(PairWZ))})

	c = insts.ClassPrefixCB
	b.at(c, 1, 4, g, on(SetCBED))
	b.cycle(c, 3, g, []Override{
		all(on(MRead), incr(IncUp, PairPC)),
		on(MRead),
		all(on(MRead), set(BusDrv, uint8(BusPins)), set(IR, uint8(IRBus))),
	})
}

// expand guards every MemHL body against the index prefix and appends the
// indexed copy laid out behind the displacement sub-sequence.
func (b *scheduleBuilder) expand() ([]Entry, error) {
	out := make([]Entry, 0, 2*len(b.entries))
	for _, e := range b.entries {
		plan, ok := b.plans[e.Class]
		if !ok {
			out = append(out, e)
			continue
		}

		plain := e
		plain.Guard = e.Guard.And(Unless(CondIndexed))
		out = append(out, plain)
		if e.M == 1 {
			continue
		}

		ix := e
		ix.Guard = e.Guard.And(When(CondIndexed))
		switch {
		case plan == overlapBody && e.M == 2:
			ix.M = 3
			ix.Override = e.Override.Without(ALatchWE, ALatchSrc, NextM, SetM1)
		case plan == overlapBody:
			ix.M = e.M + 1
		default:
			ix.M = e.M + 2
		}
		if ix.M > MaxCycle {
			return nil, fmt.Errorf("%w: indexed copy of %s", ErrPosition, e)
		}
		if ix.Override.Assigns(ALatchSrc) && Pair(ix.Override.Value(ALatchSrc)) == PairHL {
			ix.Override = ix.Override.Set(ALatchSrc, uint8(PairWZ))
		}
		if !ix.Override.Empty() {
			out = append(out, ix)
		}
	}
	return out, nil
}
