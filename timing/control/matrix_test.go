package control_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/control"
)

var _ = Describe("Matrix", func() {
	read := control.Override{}.Set(control.MRead, 1)

	DescribeTable("construction errors",
		func(e control.Entry, want error) {
			_, err := control.NewMatrix([]control.Entry{e})
			Expect(err).To(MatchError(want))
		},
		Entry("class inside the fetch window",
			control.Entry{Class: insts.ClassLdRN, M: 1, T: 2, Override: read}, control.ErrFetchOwned),
		Entry("fetch entry outside the fetch window",
			control.Entry{Class: control.FetchClass, M: 1, T: 4, Override: read}, control.ErrPosition),
		Entry("machine cycle out of range",
			control.Entry{Class: insts.ClassLdRN, M: 7, T: 1, Override: read}, control.ErrPosition),
		Entry("fFetch assigned",
			control.Entry{Class: insts.ClassLdRN, M: 2, T: 1, Override: control.Override{}.Set(control.Fetch, 0)},
			control.ErrReservedLine),
		Entry("validPLA assigned",
			control.Entry{Class: insts.ClassLdRN, M: 2, T: 1, Override: control.Override{}.Set(control.Valid, 1)},
			control.ErrReservedLine),
		Entry("contradictory guard",
			control.Entry{
				Class: insts.ClassLdRN, M: 2, T: 1,
				Guard:    control.When(control.CondHalt).And(control.Unless(control.CondHalt)),
				Override: read,
			}, control.ErrGuard),
	)

	It("should reject overlapping entries that disagree in one cell", func() {
		_, err := control.NewMatrix([]control.Entry{
			{Class: insts.ClassLdRN, M: 2, T: 1, Guard: control.When(control.CondTaken), Override: read},
			{Class: insts.ClassLdRN, M: 2, T: 1, Override: control.Override{}.Set(control.MRead, 0)},
		})
		Expect(err).To(MatchError(control.ErrConflict))
	})

	It("should accept disagreeing entries under disjoint guards", func() {
		m, err := control.NewMatrix([]control.Entry{
			{Class: insts.ClassLdRN, M: 2, T: 1, Guard: control.When(control.CondTaken), Override: read},
			{Class: insts.ClassLdRN, M: 2, T: 1, Guard: control.Unless(control.CondTaken),
				Override: control.Override{}.Set(control.MRead, 0)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Cell(insts.ClassLdRN, 2, 1)).To(HaveLen(2))
	})

	It("should report every cross-class conflict once", func() {
		m, err := control.NewMatrix([]control.Entry{
			{Class: insts.ClassLdRHL, M: 2, T: 2, Override: read},
			{Class: insts.ClassMemHL, M: 2, T: 2, Override: control.Override{}.Set(control.MRead, 0)},
		})
		Expect(err).NotTo(HaveOccurred())

		v := insts.NewDecoder().Decode(0x46, insts.TableMain)
		err = m.Verify([]insts.Vector{v, v})
		Expect(err).To(MatchError(control.ErrConflict))
		Expect(err.Error()).To(ContainSubstring("fMRead"))
	})

	Describe("Guards", func() {
		It("should match conditions", func() {
			g := control.When(control.CondIntAck).And(control.Unless(control.CondNMI))
			Expect(g.Match(control.CondIntAck | control.CondIM1)).To(BeTrue())
			Expect(g.Match(control.CondIntAck | control.CondNMI)).To(BeFalse())
			Expect(g.Match(0)).To(BeFalse())
			Expect(g.String()).To(Equal("+intack -nmi"))
		})

		It("should detect overlap", func() {
			Expect(control.When(control.CondTaken).Overlaps(control.Unless(control.CondTaken))).To(BeFalse())
			Expect(control.When(control.CondTaken).Overlaps(control.Unless(control.CondHalt))).To(BeTrue())
			Expect(control.Always.Overlaps(control.When(control.CondNMI))).To(BeTrue())
		})

		It("should derive the repeat condition", func() {
			cpir := insts.NewDecoder().Decode(0xB1, insts.TableED)
			Expect(control.Conditions(cpir, control.Mode{RepeatEn: true})&control.CondRepeat).NotTo(BeZero())
			Expect(control.Conditions(cpir, control.Mode{RepeatEn: true, FlagZ: true})&control.CondRepeat).To(BeZero())

			ldir := insts.NewDecoder().Decode(0xB0, insts.TableED)
			Expect(control.Conditions(ldir, control.Mode{RepeatEn: true, FlagZ: true})&control.CondRepeat).NotTo(BeZero())

			ldi := insts.NewDecoder().Decode(0xA0, insts.TableED)
			Expect(control.Conditions(ldi, control.Mode{RepeatEn: true})&control.CondRepeat).To(BeZero())
		})
	})

	Describe("Positions", func() {
		It("should index one-hot positions", func() {
			m, t, ok := control.At(3, 5).Index()
			Expect(ok).To(BeTrue())
			Expect(m).To(Equal(3))
			Expect(t).To(Equal(5))
			Expect(control.At(3, 5).String()).To(Equal("M3T5"))
		})

		It("should reject positions with several bits set", func() {
			Expect(control.Position{M: control.M1 | control.M3, T: control.T1}.Valid()).To(BeFalse())
			Expect(control.Position{M: control.M1}.Valid()).To(BeFalse())
		})
	})
})
