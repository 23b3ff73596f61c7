package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/z80exec/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	DescribeTable("unprefixed opcodes",
		func(op uint8, classes ...insts.Class) {
			v := decoder.Decode(op, insts.TableMain)
			Expect(v.List()).To(ConsistOf(classes))
			Expect(v.Op).To(Equal(op & 0x3F))
		},
		Entry("NOP", uint8(0x00), insts.ClassSpecial),
		Entry("LD BC,nn", uint8(0x01), insts.ClassLdRPNN),
		Entry("LD (BC),A", uint8(0x02), insts.ClassLdRPA),
		Entry("INC BC", uint8(0x03), insts.ClassIncRP),
		Entry("INC B", uint8(0x04), insts.ClassIncDecR),
		Entry("LD B,n", uint8(0x06), insts.ClassLdRN),
		Entry("ADD HL,BC", uint8(0x09), insts.ClassAddHLRP),
		Entry("LD A,(BC)", uint8(0x0A), insts.ClassLdARP),
		Entry("DEC BC", uint8(0x0B), insts.ClassDecRP),
		Entry("DJNZ", uint8(0x10), insts.ClassDjnz),
		Entry("JR", uint8(0x18), insts.ClassJr),
		Entry("JR NZ", uint8(0x20), insts.ClassJrCC),
		Entry("LD (nn),HL", uint8(0x22), insts.ClassLdNNHL),
		Entry("LD HL,(nn)", uint8(0x2A), insts.ClassLdHLNNInd),
		Entry("LD (nn),A", uint8(0x32), insts.ClassLdNNA),
		Entry("INC (HL)", uint8(0x34), insts.ClassIncDecHL, insts.ClassMemHL),
		Entry("LD (HL),n", uint8(0x36), insts.ClassLdHLN, insts.ClassMemHL),
		Entry("LD A,(nn)", uint8(0x3A), insts.ClassLdANN),
		Entry("LD B,C", uint8(0x41), insts.ClassLdRR),
		Entry("LD B,(HL)", uint8(0x46), insts.ClassLdRHL, insts.ClassMemHL),
		Entry("LD (HL),B", uint8(0x70), insts.ClassLdHLR, insts.ClassMemHL),
		Entry("HALT", uint8(0x76), insts.ClassHalt),
		Entry("ADD A,B", uint8(0x80), insts.ClassAluR),
		Entry("CP (HL)", uint8(0xBE), insts.ClassAluHL, insts.ClassMemHL),
		Entry("RET NZ", uint8(0xC0), insts.ClassRetCC),
		Entry("POP BC", uint8(0xC1), insts.ClassPop),
		Entry("JP NZ,nn", uint8(0xC2), insts.ClassJpCC),
		Entry("JP nn", uint8(0xC3), insts.ClassJpNN),
		Entry("CALL NZ,nn", uint8(0xC4), insts.ClassCallCC),
		Entry("PUSH BC", uint8(0xC5), insts.ClassPush),
		Entry("ADD A,n", uint8(0xC6), insts.ClassAluN),
		Entry("RST 0", uint8(0xC7), insts.ClassRst),
		Entry("RET", uint8(0xC9), insts.ClassRet),
		Entry("CB prefix", uint8(0xCB), insts.ClassPrefixCB, insts.ClassMemHL),
		Entry("CALL nn", uint8(0xCD), insts.ClassCall),
		Entry("OUT (n),A", uint8(0xD3), insts.ClassOutNA),
		Entry("EXX", uint8(0xD9), insts.ClassSpecial),
		Entry("IN A,(n)", uint8(0xDB), insts.ClassInAN),
		Entry("DD prefix", uint8(0xDD), insts.ClassPrefixXY),
		Entry("EX (SP),HL", uint8(0xE3), insts.ClassExSPHL),
		Entry("JP (HL)", uint8(0xE9), insts.ClassJpHL),
		Entry("EX DE,HL", uint8(0xEB), insts.ClassSpecial),
		Entry("ED prefix", uint8(0xED), insts.ClassPrefixED),
		Entry("DI", uint8(0xF3), insts.ClassDI),
		Entry("LD SP,HL", uint8(0xF9), insts.ClassLdSPHL),
		Entry("EI", uint8(0xFB), insts.ClassEI),
		Entry("FD prefix", uint8(0xFD), insts.ClassPrefixXY),
		Entry("RST 38h", uint8(0xFF), insts.ClassRst),
	)

	It("should decode every unprefixed opcode", func() {
		for op := 0; op < 256; op++ {
			Expect(decoder.Decode(uint8(op), insts.TableMain).Valid()).To(BeTrue(), "op %02X", op)
		}
	})

	DescribeTable("CB opcodes",
		func(op uint8, table insts.Table, classes ...insts.Class) {
			Expect(decoder.Decode(op, table).List()).To(ConsistOf(classes))
		},
		Entry("RLC B", uint8(0x00), insts.TableCB, insts.ClassCbR),
		Entry("RLC (HL)", uint8(0x06), insts.TableCB, insts.ClassCbHL, insts.ClassMemHL),
		Entry("BIT 0,(HL)", uint8(0x46), insts.TableCB, insts.ClassBitHL, insts.ClassMemHL),
		Entry("SET 7,A", uint8(0xFF), insts.TableCB, insts.ClassCbR),
		Entry("indexed RLC", uint8(0x06), insts.TableIndexedCB, insts.ClassCbHL, insts.ClassMemHL),
		Entry("indexed RLC with copy to B", uint8(0x00), insts.TableIndexedCB, insts.ClassCbHL, insts.ClassMemHL),
		Entry("indexed BIT", uint8(0x40), insts.TableIndexedCB, insts.ClassBitHL, insts.ClassMemHL),
	)

	DescribeTable("ED opcodes",
		func(op uint8, classes ...insts.Class) {
			Expect(decoder.Decode(op, insts.TableED).List()).To(ConsistOf(classes))
		},
		Entry("IN B,(C)", uint8(0x40), insts.ClassInRC),
		Entry("OUT (C),B", uint8(0x41), insts.ClassOutCR),
		Entry("SBC HL,BC", uint8(0x42), insts.ClassAdcSbcHL),
		Entry("LD (nn),BC", uint8(0x43), insts.ClassLdNNRP),
		Entry("NEG", uint8(0x44), insts.ClassNeg),
		Entry("RETN", uint8(0x45), insts.ClassRetn),
		Entry("IM 0", uint8(0x46), insts.ClassImN),
		Entry("LD I,A", uint8(0x47), insts.ClassLdIR),
		Entry("LD BC,(nn)", uint8(0x4B), insts.ClassLdRPNNInd),
		Entry("RRD", uint8(0x67), insts.ClassRrdRld),
		Entry("LDI", uint8(0xA0), insts.ClassBlockLd),
		Entry("CPDR", uint8(0xB9), insts.ClassBlockCp),
		Entry("INIR", uint8(0xB2), insts.ClassBlockIn),
		Entry("OTDR", uint8(0xBB), insts.ClassBlockOut),
	)

	DescribeTable("ED holes",
		func(op uint8) {
			Expect(decoder.Decode(op, insts.TableED).Valid()).To(BeFalse())
		},
		Entry("ED 00", uint8(0x00)),
		Entry("ED 77", uint8(0x77)),
		Entry("ED 7F", uint8(0x7F)),
		Entry("ED 80", uint8(0x80)),
		Entry("ED A4", uint8(0xA4)),
		Entry("ED FF", uint8(0xFF)),
	)

	It("should treat an unknown table as unrecognized", func() {
		Expect(decoder.Decode(0x00, insts.NumTables).Valid()).To(BeFalse())
	})

	It("should list distinct vectors including the empty one", func() {
		vectors := decoder.Vectors()
		seen := map[insts.Vector]bool{}
		for _, v := range vectors {
			Expect(seen[v]).To(BeFalse())
			seen[v] = true
		}
		Expect(seen).To(HaveKey(insts.Vector{}))
	})

	It("should name opcode families", func() {
		Expect(insts.Mnemonic(decoder.Decode(0x46, insts.TableMain))).To(Equal("LdRHL"))
		Expect(insts.Mnemonic(insts.Vector{})).To(Equal("???"))
	})
})
