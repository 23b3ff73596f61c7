package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/emu"
)

var _ = Describe("BranchUnit", func() {
	var (
		regFile    *emu.RegFile
		branchUnit *emu.BranchUnit
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		branchUnit = emu.NewBranchUnit(regFile)
	})

	DescribeTable("CheckCondition",
		func(cond emu.Cond, f uint8, want bool) {
			regFile.F = f
			Expect(branchUnit.CheckCondition(cond)).To(Equal(want))
		},
		Entry("NZ with Z clear", emu.CondNZ, uint8(0), true),
		Entry("NZ with Z set", emu.CondNZ, emu.FlagZ, false),
		Entry("Z with Z set", emu.CondZ, emu.FlagZ, true),
		Entry("Z with Z clear", emu.CondZ, uint8(0), false),
		Entry("NC with C clear", emu.CondNC, emu.FlagZ, true),
		Entry("C with C set", emu.CondC, emu.FlagC, true),
		Entry("PO with P/V clear", emu.CondPO, uint8(0), true),
		Entry("PE with P/V set", emu.CondPE, emu.FlagPV, true),
		Entry("PE with P/V clear", emu.CondPE, emu.FlagC, false),
		Entry("P with S clear", emu.CondP, uint8(0), true),
		Entry("M with S set", emu.CondM, emu.FlagS, true),
		Entry("M with S clear", emu.CondM, emu.FlagZ|emu.FlagC, false),
	)

	It("should ignore unrelated flags", func() {
		regFile.F = 0xFF &^ emu.FlagZ
		Expect(branchUnit.CheckCondition(emu.CondNZ)).To(BeTrue())
		Expect(branchUnit.CheckCondition(emu.CondZ)).To(BeFalse())
	})
})
