package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/insts"
)

var _ = Describe("ExecUnit", func() {
	var (
		regFile  *emu.RegFile
		execUnit *emu.ExecUnit
		decoder  *insts.Decoder
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		execUnit = emu.NewExecUnit(regFile)
		decoder = insts.NewDecoder()
	})

	instr := func(op uint8, table insts.Table, ix emu.Index) emu.Instr {
		return emu.Instr{Op: op, Table: table, Vector: decoder.Decode(op, table), Index: ix}
	}
	main := func(op uint8) emu.Instr { return instr(op, insts.TableMain, emu.IndexNone) }
	ed := func(op uint8) emu.Instr { return instr(op, insts.TableED, emu.IndexNone) }

	Describe("Decoded", func() {
		It("should decrement B for DJNZ", func() {
			regFile.B = 3
			execUnit.Decoded(main(0x10))
			Expect(regFile.B).To(Equal(uint8(2)))
		})

		It("should latch A as the port high byte for OUT (n),A", func() {
			regFile.A = 0x12
			execUnit.Decoded(main(0xD3))
			Expect(regFile.W).To(Equal(uint8(0x12)))
		})

		It("should output zero for OUT (C),0", func() {
			regFile.Z = 0x5A
			out := ed(0x71)
			execUnit.Decoded(out)
			Expect(regFile.Read8(out.Dst())).To(BeZero())
		})
	})

	Describe("Condition", func() {
		It("should test the JR condition field", func() {
			Expect(execUnit.Condition(main(0x20))).To(BeTrue())
			regFile.F = emu.FlagZ
			Expect(execUnit.Condition(main(0x20))).To(BeFalse())
			Expect(execUnit.Condition(main(0x28))).To(BeTrue())
		})

		It("should test the JP, CALL and RET condition field", func() {
			Expect(execUnit.Condition(main(0xCA))).To(BeFalse())
			regFile.F = emu.FlagC
			Expect(execUnit.Condition(main(0xDC))).To(BeTrue())
			Expect(execUnit.Condition(main(0xD0))).To(BeFalse())
		})

		It("should take DJNZ while B is non-zero", func() {
			regFile.B = 1
			djnz := main(0x10)
			execUnit.Decoded(djnz)
			Expect(execUnit.Condition(djnz)).To(BeFalse())
		})

		It("should be false for unconditional classes", func() {
			Expect(execUnit.Condition(main(0x00))).To(BeFalse())
		})
	})

	It("should enable repeats from BC or B", func() {
		Expect(execUnit.RepeatEnabled(ed(0xB0))).To(BeFalse())
		regFile.B = 1
		Expect(execUnit.RepeatEnabled(ed(0xB0))).To(BeTrue())
		Expect(execUnit.RepeatEnabled(ed(0xB2))).To(BeTrue())
		regFile.B, regFile.C = 0, 1
		Expect(execUnit.RepeatEnabled(ed(0xB0))).To(BeTrue())
		Expect(execUnit.RepeatEnabled(ed(0xB3))).To(BeFalse())
	})

	Describe("Finish", func() {
		It("should copy registers", func() {
			regFile.C = 0x42
			execUnit.Finish(main(0x41), 0)
			Expect(regFile.B).To(Equal(uint8(0x42)))
		})

		It("should substitute the index register halves", func() {
			regFile.B = 0x55
			execUnit.Finish(instr(0x60, insts.TableMain, emu.IndexIX), 0)
			Expect(regFile.IX).To(Equal(uint16(0x5500)))
			Expect(regFile.H).To(BeZero())
		})

		It("should keep H and L for memory forms under a prefix", func() {
			in := instr(0x66, insts.TableMain, emu.IndexIX)
			Expect(in.Dst()).To(Equal(emu.RegRef{Pair: emu.HL, Hi: true}))
		})

		It("should apply the ALU to the operand latch", func() {
			regFile.A = 3
			execUnit.Finish(main(0xC6), 5)
			Expect(regFile.A).To(Equal(uint8(8)))
		})

		It("should increment a register", func() {
			regFile.A = 0x7F
			execUnit.Finish(main(0x3C), 0)
			Expect(regFile.A).To(Equal(uint8(0x80)))
			Expect(regFile.F & emu.FlagPV).To(Equal(emu.FlagPV))
		})

		It("should test a register bit", func() {
			regFile.A = 0x80
			execUnit.Finish(instr(0x7F, insts.TableCB, emu.IndexNone), 0)
			Expect(regFile.A).To(Equal(uint8(0x80)))
			Expect(regFile.F).To(Equal(emu.FlagS | emu.FlagH))
		})

		It("should copy an indexed CB result into the register field", func() {
			execUnit.Finish(instr(0x00, insts.TableIndexedCB, emu.IndexIX), 0x42)
			Expect(regFile.B).To(Equal(uint8(0x42)))
		})

		It("should add a pair to the index register", func() {
			regFile.IX = 0x1000
			regFile.Set16(emu.BC, 0x0234)
			execUnit.Finish(instr(0x09, insts.TableMain, emu.IndexIX), 0)
			Expect(regFile.IX).To(Equal(uint16(0x1234)))
			Expect(regFile.Get16(emu.HL)).To(BeZero())
		})

		It("should subtract with carry into HL", func() {
			regFile.Set16(emu.HL, 0x1000)
			regFile.Set16(emu.BC, 0x0001)
			execUnit.Finish(ed(0x42), 0)
			Expect(regFile.Get16(emu.HL)).To(Equal(uint16(0x0FFF)))
		})

		It("should move between A and I", func() {
			regFile.A = 0x80
			execUnit.Finish(ed(0x47), 0)
			Expect(regFile.I).To(Equal(uint8(0x80)))

			regFile.A = 0
			regFile.IFF2 = true
			execUnit.Finish(ed(0x57), 0)
			Expect(regFile.A).To(Equal(uint8(0x80)))
			Expect(regFile.F & (emu.FlagS | emu.FlagPV)).To(Equal(emu.FlagS | emu.FlagPV))
		})

		It("should run the exchanges", func() {
			regFile.Set16(emu.DE, 0x1111)
			regFile.Set16(emu.HL, 0x2222)
			execUnit.Finish(main(0xEB), 0)
			Expect(regFile.Get16(emu.DE)).To(Equal(uint16(0x2222)))
			Expect(regFile.Get16(emu.HL)).To(Equal(uint16(0x1111)))

			execUnit.Finish(main(0xD9), 0)
			Expect(regFile.Get16(emu.HL)).To(BeZero())
			Expect(regFile.Alt.H).To(Equal(uint8(0x11)))

			regFile.A = 7
			execUnit.Finish(main(0x08), 0)
			Expect(regFile.A).To(BeZero())
			Expect(regFile.Alt.A).To(Equal(uint8(7)))
		})
	})

	Describe("Cycle", func() {
		It("should modify the latch on the write cycle only", func() {
			tmp := uint8(0x7F)
			execUnit.Cycle(main(0x34), 3, false, &tmp)
			Expect(tmp).To(Equal(uint8(0x7F)))
			execUnit.Cycle(main(0x34), 3, true, &tmp)
			Expect(tmp).To(Equal(uint8(0x80)))
		})

		It("should set a memory bit", func() {
			tmp := uint8(0x10)
			execUnit.Cycle(instr(0xC6, insts.TableCB, emu.IndexNone), 3, true, &tmp)
			Expect(tmp).To(Equal(uint8(0x11)))
		})

		It("should rotate digits through A", func() {
			regFile.A = 0x84
			tmp := uint8(0x20)
			execUnit.Cycle(ed(0x67), 4, true, &tmp)
			Expect(tmp).To(Equal(uint8(0x42)))
			Expect(regFile.A).To(Equal(uint8(0x80)))

			regFile.A = 0x7A
			tmp = 0x31
			execUnit.Cycle(ed(0x6F), 4, true, &tmp)
			Expect(tmp).To(Equal(uint8(0x1A)))
			Expect(regFile.A).To(Equal(uint8(0x73)))
		})

		It("should count a block transfer and then set its flags", func() {
			regFile.Set16(emu.BC, 2)
			tmp := uint8(0x08)
			execUnit.Cycle(ed(0xA0), 2, false, &tmp)
			Expect(regFile.Get16(emu.BC)).To(Equal(uint16(1)))

			execUnit.Cycle(ed(0xA0), 3, true, &tmp)
			Expect(regFile.F).To(Equal(emu.FlagPV | emu.Flag3))
		})

		It("should count block IO on B", func() {
			regFile.Set16(emu.BC, 0x0200)
			tmp := uint8(0)
			execUnit.Cycle(ed(0xA2), 2, false, &tmp)
			Expect(regFile.B).To(Equal(uint8(1)))
			Expect(regFile.C).To(BeZero())
		})
	})

	DescribeTable("IMode",
		func(op, want uint8) {
			Expect(emu.IMode(op)).To(Equal(want))
		},
		Entry("IM 0", uint8(0x46), uint8(0)),
		Entry("IM 1", uint8(0x56), uint8(1)),
		Entry("IM 2", uint8(0x5E), uint8(2)),
	)
})
