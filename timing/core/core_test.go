package core_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/timing/control"
	"github.com/sarchlab/z80exec/timing/core"
)

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		ports   *emu.Ports
		c       *core.Core
	)

	load := func(origin uint16, program ...byte) {
		Expect(memory.Load(origin, program)).To(Succeed())
	}

	run := func() core.Stats {
		Expect(c.Run()).To(Succeed())
		return c.Stats()
	}

	BeforeEach(func() {
		regFile = &emu.RegFile{SP: 0x8000}
		memory = emu.NewMemory()
		ports = emu.NewPorts()

		var err error
		c, err = core.NewCore(regFile, memory, core.WithIOBus(ports))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start at M1 T1", func() {
		Expect(c.Position()).To(Equal(control.At(1, 1)))
		Expect(c.Halted()).To(BeFalse())
	})

	It("should run straight-line code", func() {
		load(0, 0x3E, 0x05, // LD A,5
			0x06, 0x03, // LD B,3
			0x80, // ADD A,B
			0x76) // HALT

		stats := run()

		Expect(regFile.A).To(Equal(uint8(8)))
		Expect(regFile.PC).To(Equal(uint16(6)))
		Expect(stats.Ticks).To(Equal(uint64(7 + 7 + 4 + 4)))
		Expect(stats.Instructions).To(Equal(uint64(4)))
		Expect(stats.FetchCycles).To(Equal(uint64(4)))
		Expect(stats.ReadCycles).To(Equal(uint64(2)))
		Expect(c.Halted()).To(BeTrue())
		Expect(c.Position()).To(Equal(control.At(1, 1)))
	})

	It("should loop with DJNZ", func() {
		load(0, 0x06, 0x0A, // LD B,10
			0x3E, 0x00, // LD A,0
			0x3C,       // INC A
			0x10, 0xFD, // DJNZ -3
			0x76) // HALT

		stats := run()

		Expect(regFile.A).To(Equal(uint8(10)))
		Expect(regFile.B).To(BeZero())
		Expect(stats.Ticks).To(Equal(uint64(7 + 7 + 10*4 + 9*13 + 8 + 4)))
		Expect(stats.Instructions).To(Equal(uint64(23)))
	})

	It("should call and return", func() {
		load(0, 0x31, 0x00, 0x80, // LD SP,8000h
			0xCD, 0x10, 0x00, // CALL 0010h
			0x76) // HALT
		load(0x10, 0x3E, 0x42, // LD A,42h
			0xC9) // RET

		stats := run()

		Expect(regFile.A).To(Equal(uint8(0x42)))
		Expect(regFile.SP).To(Equal(uint16(0x8000)))
		Expect(memory.Peek(0x7FFE)).To(Equal(uint8(0x06)))
		Expect(memory.Peek(0x7FFF)).To(Equal(uint8(0x00)))
		Expect(stats.Ticks).To(Equal(uint64(10 + 17 + 7 + 10 + 4)))
		Expect(stats.WriteCycles).To(Equal(uint64(2)))
	})

	It("should push the index register and pop it into BC", func() {
		regFile.IY = 0x1234
		load(0, 0xFD, 0xE5, // PUSH IY
			0xC1, // POP BC
			0x76) // HALT

		stats := run()

		Expect(regFile.Get16(emu.BC)).To(Equal(uint16(0x1234)))
		Expect(regFile.SP).To(Equal(uint16(0x8000)))
		Expect(stats.Ticks).To(Equal(uint64(15 + 10 + 4)))
		Expect(stats.Prefixes).To(Equal(uint64(1)))
	})

	It("should exchange HL with the top of the stack", func() {
		regFile.Set16(emu.HL, 0x1122)
		load(0x8000, 0x33, 0x44)
		load(0, 0xE3, 0x76) // EX (SP),HL; HALT

		stats := run()

		Expect(regFile.Get16(emu.HL)).To(Equal(uint16(0x4433)))
		Expect(memory.Peek(0x8000)).To(Equal(uint8(0x22)))
		Expect(memory.Peek(0x8001)).To(Equal(uint8(0x11)))
		Expect(regFile.SP).To(Equal(uint16(0x8000)))
		Expect(stats.Ticks).To(Equal(uint64(19 + 4)))
	})

	It("should copy a block with LDIR", func() {
		load(0x100, 1, 2, 3, 4)
		load(0, 0x21, 0x00, 0x01, // LD HL,0100h
			0x11, 0x00, 0x02, // LD DE,0200h
			0x01, 0x04, 0x00, // LD BC,4
			0xED, 0xB0, // LDIR
			0x76) // HALT

		stats := run()

		Expect(memory.Slice(0x200, 4)).To(Equal([]byte{1, 2, 3, 4}))
		Expect(regFile.Get16(emu.BC)).To(BeZero())
		Expect(regFile.Get16(emu.HL)).To(Equal(uint16(0x104)))
		Expect(regFile.Get16(emu.DE)).To(Equal(uint16(0x204)))
		Expect(regFile.Flag(emu.FlagPV)).To(BeFalse())
		Expect(stats.Ticks).To(Equal(uint64(30 + 3*21 + 16 + 4)))
		Expect(stats.BlockRepeats).To(Equal(uint64(3)))
	})

	It("should stop CPIR on a match", func() {
		load(0x100, 'a', 'b', 'c', 'X')
		regFile.A = 'c'
		regFile.Set16(emu.HL, 0x100)
		regFile.Set16(emu.BC, 10)
		load(0, 0xED, 0xB1, 0x76) // CPIR; HALT

		stats := run()

		Expect(regFile.Get16(emu.HL)).To(Equal(uint16(0x103)))
		Expect(regFile.Get16(emu.BC)).To(Equal(uint16(7)))
		Expect(regFile.Flag(emu.FlagZ)).To(BeTrue())
		Expect(stats.Ticks).To(Equal(uint64(21 + 21 + 16 + 4)))
	})

	It("should address memory through IX+d", func() {
		load(0x100, 0x10, 0x20, 0x30)
		load(0, 0xDD, 0x21, 0x00, 0x01, // LD IX,0100h
			0xDD, 0x7E, 0x02, // LD A,(IX+2)
			0xDD, 0x34, 0x01, // INC (IX+1)
			0x76) // HALT

		stats := run()

		Expect(regFile.IX).To(Equal(uint16(0x100)))
		Expect(regFile.A).To(Equal(uint8(0x30)))
		Expect(memory.Peek(0x101)).To(Equal(uint8(0x21)))
		Expect(regFile.Get16(emu.HL)).To(BeZero())
		Expect(stats.Ticks).To(Equal(uint64(14 + 19 + 23 + 4)))
		Expect(stats.IXYDTicks).To(Equal(uint64(10)))
		Expect(stats.Prefixes).To(Equal(uint64(3)))
		Expect(stats.Instructions).To(Equal(uint64(4)))
	})

	It("should handle negative displacements", func() {
		regFile.IY = 0x105
		load(0x103, 0x5A)
		load(0, 0xFD, 0x46, 0xFE, 0x76) // LD B,(IY-2); HALT

		run()

		Expect(regFile.B).To(Equal(uint8(0x5A)))
		Expect(regFile.Get16(emu.WZ)).To(Equal(uint16(0x103)))
	})

	It("should run DD CB d op instructions", func() {
		load(0, 0xDD, 0x21, 0x00, 0x01, // LD IX,0100h
			0xDD, 0xCB, 0x00, 0xDE, // SET 3,(IX+0)
			0xDD, 0xCB, 0x00, 0x5E, // BIT 3,(IX+0)
			0x76) // HALT

		stats := run()

		Expect(memory.Peek(0x100)).To(Equal(uint8(0x08)))
		Expect(regFile.Flag(emu.FlagZ)).To(BeFalse())
		Expect(regFile.PC).To(Equal(uint16(13)))
		Expect(stats.Ticks).To(Equal(uint64(14 + 23 + 20 + 4)))
		Expect(stats.Prefixes).To(Equal(uint64(5)))
	})

	It("should copy DD CB results into the register field", func() {
		regFile.IX = 0x100
		load(0x100, 0x80)
		load(0, 0xDD, 0xCB, 0x00, 0x07, 0x76) // RLC (IX+0),A; HALT

		run()

		Expect(memory.Peek(0x100)).To(Equal(uint8(0x01)))
		Expect(regFile.A).To(Equal(uint8(0x01)))
		Expect(regFile.Flag(emu.FlagC)).To(BeTrue())
	})

	It("should drive the ports", func() {
		ports.SetInput(0x56, 0x9A)
		load(0, 0x3E, 0x12, // LD A,12h
			0xD3, 0x34, // OUT (34h),A
			0xDB, 0x56, // IN A,(56h)
			0x76) // HALT

		stats := run()

		Expect(ports.Writes()).To(Equal([]emu.PortWrite{{Port: 0x1234, Value: 0x12}}))
		Expect(regFile.A).To(Equal(uint8(0x9A)))
		Expect(stats.Ticks).To(Equal(uint64(7 + 11 + 11 + 4)))
		Expect(stats.IOReadCycles).To(Equal(uint64(1)))
		Expect(stats.IOWriteCycles).To(Equal(uint64(1)))
	})

	It("should skip unrecognized ED opcodes in eight ticks", func() {
		load(0, 0xED, 0x00, 0x76)

		stats := run()

		Expect(stats.Ticks).To(Equal(uint64(8 + 4)))
		Expect(stats.Unrecognized).To(Equal(uint64(1)))
		Expect(regFile.PC).To(Equal(uint16(3)))
	})

	Describe("interrupts", func() {
		It("should respond in mode 1", func() {
			load(0, 0xED, 0x56, // IM 1
				0xFB, // EI
				0x76) // HALT
			load(0x38, 0x3E, 0x99, 0x76) // LD A,99h; HALT
			c.Schedule(20, core.EventIRQ)

			stats := run()

			Expect(regFile.IM).To(Equal(uint8(1)))
			Expect(regFile.A).To(Equal(uint8(0x99)))
			Expect(regFile.IFF1).To(BeFalse())
			Expect(memory.Peek(0x7FFE)).To(Equal(uint8(0x04)))
			Expect(stats.Interrupts).To(Equal(uint64(1)))
			Expect(stats.AckCycles).To(Equal(uint64(1)))
			Expect(stats.Ticks).To(Equal(uint64(24 + 11 + 7 + 4)))
		})

		It("should read the vector table in mode 2", func() {
			ports.SetVector(0x10)
			load(0x8010, 0x00, 0x02)
			load(0x200, 0x3E, 0x77, 0x76)
			load(0, 0x3E, 0x80, // LD A,80h
				0xED, 0x47, // LD I,A
				0xED, 0x5E, // IM 2
				0xFB, // EI
				0x76) // HALT
			c.RaiseIRQ()

			stats := run()

			Expect(regFile.I).To(Equal(uint8(0x80)))
			Expect(regFile.A).To(Equal(uint8(0x77)))
			Expect(memory.Peek(0x7FFE)).To(Equal(uint8(0x08)))
			Expect(stats.Ticks).To(Equal(uint64(7 + 9 + 8 + 4 + 4 + 17 + 7 + 4)))
		})

		It("should ignore the line while interrupts are disabled", func() {
			load(0, 0x3E, 0x01, 0x76)
			c.RaiseIRQ()

			stats := run()

			Expect(stats.Interrupts).To(BeZero())
			Expect(c.Halted()).To(BeTrue())
		})

		It("should take a non-maskable interrupt out of halt", func() {
			load(0, 0x3E, 0x01, 0x76)    // LD A,1; HALT
			load(0x66, 0x3E, 0x55, 0x76) // LD A,55h; HALT
			c.Schedule(20, core.EventNMI)

			stats := run()

			Expect(regFile.A).To(Equal(uint8(0x55)))
			Expect(memory.Peek(0x7FFE)).To(Equal(uint8(0x03)))
			Expect(stats.NMIs).To(Equal(uint64(1)))
			Expect(stats.Ticks).To(Equal(uint64(23 + 11 + 7 + 4)))
		})
	})

	It("should restart from address zero on reset", func() {
		load(0, 0x3E, 0x07, 0x76)          // LD A,7; HALT
		load(0x100, 0x3E, 0x01, 0x18, 0xFE) // LD A,1; JR $
		regFile.IFF1, regFile.IM = true, 2
		c.SetPC(0x100)
		c.Schedule(30, core.EventReset)

		stats := run()

		Expect(regFile.A).To(Equal(uint8(7)))
		Expect(regFile.IFF1).To(BeFalse())
		Expect(regFile.IM).To(BeZero())
		Expect(stats.Ticks).To(Equal(uint64(31 + 7 + 4)))
	})

	It("should stop at the tick limit", func() {
		config := core.DefaultConfig()
		config.MaxTicks = 100
		var err error
		c, err = core.NewCore(regFile, memory, core.WithConfig(config))
		Expect(err).NotTo(HaveOccurred())
		load(0, 0x18, 0xFE) // JR $

		Expect(c.Run()).To(MatchError(core.ErrTickLimit))
	})

	It("should reject an invalid configuration", func() {
		config := core.DefaultConfig()
		config.CacheWays = 0
		_, err := core.NewCore(regFile, memory, core.WithConfig(config))
		Expect(err).To(HaveOccurred())
	})

	It("should step one instruction at a time", func() {
		load(0, 0xDD, 0x21, 0x00, 0x01, 0x00, 0x76)

		n, err := c.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(14)))

		n, err = c.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(4)))
	})

	It("should trace every tick", func() {
		var buf bytes.Buffer
		var err error
		c, err = core.NewCore(regFile, memory, core.WithTrace(&buf))
		Expect(err).NotTo(HaveOccurred())
		load(0, 0x00, 0x76)

		run()

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(8))
		Expect(lines[0]).To(ContainSubstring("M1T1"))
		Expect(lines[3]).To(ContainSubstring("setM1"))
	})

	It("should give the same result with and without the memo", func() {
		program := []byte{0x06, 0x20, 0x3E, 0x00, 0xC6, 0x03, 0x10, 0xFC, 0x76}

		results := make([]core.Stats, 2)
		regs := make([]emu.RegFile, 2)
		for i, memo := range []bool{false, true} {
			rf := &emu.RegFile{SP: 0x8000}
			mem := emu.NewMemory()
			Expect(mem.Load(0, program)).To(Succeed())
			config := core.DefaultConfig()
			config.EvalCache = memo

			cc, err := core.NewCore(rf, mem, core.WithConfig(config))
			Expect(err).NotTo(HaveOccurred())
			Expect(cc.Run()).To(Succeed())

			results[i] = cc.Stats()
			regs[i] = *rf
		}

		Expect(regs[1]).To(Equal(regs[0]))
		Expect(results[1].Ticks).To(Equal(results[0].Ticks))
		Expect(results[0].Cache.Lookups).To(BeZero())
		Expect(results[1].Cache.Hits).To(BeNumerically(">", 0))
	})

	It("should clear statistics on reset", func() {
		load(0, 0x00, 0x76)
		run()

		c.Reset()
		c.SetPC(0)

		Expect(c.Stats()).To(Equal(core.Stats{}))
		Expect(c.Halted()).To(BeFalse())
	})
})
