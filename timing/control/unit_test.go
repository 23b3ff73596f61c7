package control_test

import (
	"math/rand"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/control"
)

// randomMode draws every mode flag independently.
func randomMode(rng *rand.Rand) control.Mode {
	b := func() bool { return rng.Intn(2) == 1 }
	return control.Mode{
		Reset: b(), TestMode: b(), InIntr: b(), InNMI: b(), InHalt: b(),
		IM1: b(), IM2: b(), UseIXIY: b(), RepeatEn: b(),
		FlagZ: b(), FlagN: b(), FlagS: b(), FlagC: b(), CondTrue: b(),
	}
}

func randomPosition(rng *rand.Rand) control.Position {
	return control.At(rng.Intn(control.MaxCycle)+1, rng.Intn(control.MaxCycle)+1)
}

var _ = Describe("Unit", func() {
	var (
		u       *control.Unit
		decoder *insts.Decoder
		vectors []insts.Vector
		rng     *rand.Rand
	)

	BeforeEach(func() {
		var err error
		u, err = control.New()
		Expect(err).NotTo(HaveOccurred())
		decoder = insts.NewDecoder()
		vectors = decoder.Vectors()
		rng = rand.New(rand.NewSource(1))
	})

	Describe("Construction", func() {
		It("should verify the built-in matrix against every decode vector", func() {
			Expect(u.Matrix().Len()).To(BeNumerically(">", 100))
			Expect(u.Matrix().Verify(vectors)).To(Succeed())
		})

		It("should keep the override stage in priority order", func() {
			names := []string{}
			for _, r := range u.Rules() {
				names = append(names, r.Name)
			}
			Expect(names).To(Equal([]string{"reset", "unrecognized", "reload"}))
		})

		It("should reject a matrix that fails cross-class verification", func() {
			entries := []control.Entry{
				{Class: insts.ClassLdRHL, M: 2, T: 1, Override: control.Override{}.Set(control.MRead, 1)},
				{Class: insts.ClassMemHL, M: 2, T: 1, Override: control.Override{}.Set(control.MRead, 0)},
			}
			_, err := control.New(control.WithEntries(entries))
			Expect(err).To(MatchError(control.ErrConflict))
		})
	})

	Describe("Totality and determinism", func() {
		It("should assign every line within its range", func() {
			for i := 0; i < 20000; i++ {
				in := control.Inputs{
					Vector: vectors[rng.Intn(len(vectors))],
					Pos:    randomPosition(rng),
					Mode:   randomMode(rng),
				}
				s := u.Evaluate(in)
				Expect(s.AddrSource()).To(BeNumerically("<=", control.PairZero))
				Expect(s.IncMode()).To(BeNumerically("<=", control.IncZero))
				Expect(s.IncTarget()).To(BeNumerically("<=", control.PairZero))
				Expect(s.Reg()).To(BeNumerically("<=", control.PairZero))
				Expect(s.Lane()).To(BeNumerically("<=", control.Hi))
				Expect(s.Bus()).To(BeNumerically("<=", control.BusPins))
				Expect(s.IRLoad()).To(BeNumerically("<=", control.IRRst))
				Expect(s.Transfer()).To(BeNumerically("<=", control.XferIToW))
				Expect(s.IffOp()).To(BeNumerically("<=", control.IffRestore))
				Expect(s.Get(control.PCInc)).To(BeNumerically("<=", 1))
			}
		})

		It("should return the same vector for the same inputs", func() {
			for i := 0; i < 2000; i++ {
				in := control.Inputs{
					Vector: vectors[rng.Intn(len(vectors))],
					Pos:    randomPosition(rng),
					Mode:   randomMode(rng),
				}
				first := u.Evaluate(in)
				Expect(cmp.Diff(first, u.Evaluate(in))).To(BeEmpty())
			}
		})

		It("should fall back to the defaults on an invalid position", func() {
			in := control.Inputs{
				Vector: decoder.Decode(0x7E, insts.TableMain),
				Pos:    control.Position{M: control.M1 | control.M2, T: control.T1},
			}
			s := u.Evaluate(in)
			Expect(s.On(control.Valid)).To(BeFalse())
			Expect(s.On(control.MRead)).To(BeFalse())
			Expect(s.On(control.NextM)).To(BeFalse())
		})
	})

	Describe("Reset dominance", func() {
		It("should force the reset vector regardless of the other inputs", func() {
			for i := 0; i < 5000; i++ {
				mode := randomMode(rng)
				mode.Reset = true
				in := control.Inputs{
					Vector: vectors[rng.Intn(len(vectors))],
					Pos:    randomPosition(rng),
					Mode:   mode,
				}
				want := control.ResetVector(in.Pos)
				want.Set(control.ALatchSrc, uint8(control.PairPC))
				Expect(cmp.Diff(want, u.Evaluate(in))).To(BeEmpty())
			}
		})

		It("should clear PC and load a NOP", func() {
			s := u.Evaluate(control.Inputs{Pos: control.At(3, 2), Mode: control.Mode{Reset: true}})
			Expect(s.IncMode()).To(Equal(control.IncZero))
			Expect(s.IncTarget()).To(Equal(control.PairPC))
			Expect(s.IRLoad()).To(Equal(control.IRZero))
			Expect(s.On(control.NextM)).To(BeTrue())
			Expect(s.On(control.SetM1)).To(BeTrue())
			Expect(s.On(control.MRead)).To(BeFalse())
			Expect(s.On(control.Valid)).To(BeFalse())
		})
	})

	Describe("Unrecognized opcodes", func() {
		It("should finish an empty vector at M1 T4 without bus cycles", func() {
			s := u.Evaluate(control.Inputs{Pos: control.At(1, 4)})
			Expect(s.On(control.Valid)).To(BeFalse())
			Expect(s.On(control.NextM)).To(BeTrue())
			Expect(s.On(control.SetM1)).To(BeTrue())
			Expect(s.On(control.MRead)).To(BeFalse())
			Expect(s.On(control.MWrite)).To(BeFalse())
			Expect(s.On(control.IORead)).To(BeFalse())
			Expect(s.On(control.IOWrite)).To(BeFalse())
		})

		It("should treat ED holes as unrecognized", func() {
			v := decoder.Decode(0x00, insts.TableED)
			Expect(v.Valid()).To(BeFalse())
			s := u.Evaluate(control.Inputs{Vector: v, Pos: control.At(1, 4)})
			Expect(s.On(control.SetM1)).To(BeTrue())
		})

		It("should mark recognized opcodes valid", func() {
			s := u.Evaluate(control.Inputs{Vector: decoder.Decode(0x00, insts.TableMain), Pos: control.At(1, 4)})
			Expect(s.On(control.Valid)).To(BeTrue())
		})
	})

	Describe("Fetch cycle identity", func() {
		It("should assert fFetch exactly when M1 is active", func() {
			for i := 0; i < 5000; i++ {
				in := control.Inputs{
					Vector: vectors[rng.Intn(len(vectors))],
					Pos:    randomPosition(rng),
					Mode:   randomMode(rng),
				}
				s := u.Evaluate(in)
				Expect(s.On(control.Fetch)).To(Equal(in.Pos.M == control.M1), in.Pos.String())
			}
		})

		It("should load the opcode from the bus at M1 T3", func() {
			s := u.Evaluate(control.Inputs{Pos: control.At(1, 3)})
			Expect(s.IRLoad()).To(Equal(control.IRBus))
			Expect(s.Bus()).To(Equal(control.BusPins))
			Expect(s.On(control.MRead)).To(BeFalse())
		})

		It("should hold PC and substitute a NOP while halted", func() {
			t1 := u.Evaluate(control.Inputs{Pos: control.At(1, 1), Mode: control.Mode{InHalt: true}})
			Expect(t1.Get(control.PCInc)).To(BeZero())
			t3 := u.Evaluate(control.Inputs{Pos: control.At(1, 3), Mode: control.Mode{InHalt: true}})
			Expect(t3.IRLoad()).To(Equal(control.IRZero))
		})

		DescribeTable("interrupt acknowledge opcode source",
			func(mode control.Mode, want control.IRLoad, io bool) {
				s := u.Evaluate(control.Inputs{Pos: control.At(1, 3), Mode: mode})
				Expect(s.IRLoad()).To(Equal(want))
				Expect(s.On(control.IORead)).To(Equal(io))
			},
			Entry("IM0 takes the opcode from the device", control.Mode{InIntr: true}, control.IRBus, true),
			Entry("IM1 forces RST 38h", control.Mode{InIntr: true, IM1: true}, control.IRRst, true),
			Entry("IM2 forces RST 38h", control.Mode{InIntr: true, IM2: true}, control.IRRst, true),
			Entry("NMI forces RST 38h", control.Mode{InNMI: true}, control.IRRst, false),
		)

		It("should latch the IM2 vector into WZ with I", func() {
			s := u.Evaluate(control.Inputs{Pos: control.At(1, 3), Mode: control.Mode{InIntr: true, IM2: true}})
			Expect(s.On(control.RegWE)).To(BeTrue())
			Expect(s.Reg()).To(Equal(control.PairWZ))
			Expect(s.Lane()).To(Equal(control.Lo))
			Expect(s.Transfer()).To(Equal(control.XferIToW))
		})
	})

	Describe("Cycle-boundary reload", func() {
		It("should load the address latch from PC whenever setM1 is asserted", func() {
			hits := 0
			for i := 0; i < 20000; i++ {
				in := control.Inputs{
					Vector: vectors[rng.Intn(len(vectors))],
					Pos:    randomPosition(rng),
					Mode:   randomMode(rng),
				}
				s := u.Evaluate(in)
				if !s.On(control.SetM1) {
					continue
				}
				hits++
				Expect(s.On(control.ALatchWE)).To(BeTrue())
				Expect(s.AddrSource()).To(Equal(control.PairPC))
			}
			Expect(hits).To(BeNumerically(">", 0))
		})

		It("should let a jump commit before the reload on the same tick", func() {
			v := decoder.Decode(0xC3, insts.TableMain) // JP nn
			s := u.Evaluate(control.Inputs{Vector: v, Pos: control.At(3, 3)})
			Expect(s.Transfer()).To(Equal(control.XferWZToPC))
			Expect(s.On(control.SetM1)).To(BeTrue())
			Expect(s.AddrSource()).To(Equal(control.PairPC))
		})
	})

	Describe("Rules", func() {
		It("should run custom rules after the matrix", func() {
			var seen bool
			probe := control.Rule{Name: "probe", Apply: func(s *control.Signals, _ control.Inputs) {
				seen = s.On(control.Valid)
			}}
			u2, err := control.New(control.WithRules(probe))
			Expect(err).NotTo(HaveOccurred())
			u2.Evaluate(control.Inputs{Vector: decoder.Decode(0x00, insts.TableMain), Pos: control.At(1, 4)})
			Expect(seen).To(BeTrue())
		})
	})
})
