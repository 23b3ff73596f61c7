// Package insts provides Z80 instruction classes and the static decoder that
// turns an opcode byte into a decode vector.
//
// A decode vector is what the execute control unit consumes: the six opcode
// addressing fields op0..op5 plus a set of instruction-class bits. Every legal
// opcode sets exactly one primary class. Classes that address memory through
// HL additionally carry the shared MemHL tag, which is what enables the
// indexed (IX+d)/(IY+d) address computation when a DD/FD prefix is active.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	v := decoder.Decode(0x7E, insts.TableMain) // LD A,(HL)
//	fmt.Println(v.Has(insts.ClassLdRHL), v.Has(insts.ClassMemHL))
package insts

import (
	"math/bits"
	"strings"
)

// Class identifies one instruction class of the decode vector.
type Class uint8

// Instruction classes. The order is part of the decode vector layout.
const (
	ClassMemHL Class = iota // shared tag: operand addressed through HL/IX+d/IY+d

	// Main opcode table.
	ClassSpecial   // NOP, DAA, CPL, SCF, CCF, RLCA..RRA, EX AF,AF', EXX, EX DE,HL
	ClassLdRR      // LD r,r'
	ClassAluR      // ALU A,r
	ClassIncDecR   // INC r / DEC r
	ClassDI        // DI
	ClassEI        // EI
	ClassHalt      // HALT
	ClassJpHL      // JP (HL)
	ClassLdSPHL    // LD SP,HL
	ClassIncRP     // INC rr
	ClassDecRP     // DEC rr
	ClassLdRN      // LD r,n
	ClassAluN      // ALU A,n
	ClassLdRHL     // LD r,(HL)
	ClassAluHL     // ALU A,(HL)
	ClassLdHLR     // LD (HL),r
	ClassLdHLN     // LD (HL),n
	ClassIncDecHL  // INC (HL) / DEC (HL)
	ClassLdRPNN    // LD rr,nn
	ClassLdANN     // LD A,(nn)
	ClassLdNNA     // LD (nn),A
	ClassLdHLNNInd // LD HL,(nn)
	ClassLdNNHL    // LD (nn),HL
	ClassLdARP     // LD A,(BC) / LD A,(DE)
	ClassLdRPA     // LD (BC),A / LD (DE),A
	ClassAddHLRP   // ADD HL,rr
	ClassPush      // PUSH qq
	ClassPop       // POP qq
	ClassExSPHL    // EX (SP),HL
	ClassJpNN      // JP nn
	ClassJpCC      // JP cc,nn
	ClassJr        // JR e
	ClassJrCC      // JR cc,e
	ClassDjnz      // DJNZ e
	ClassCall      // CALL nn
	ClassCallCC    // CALL cc,nn
	ClassRet       // RET
	ClassRetCC     // RET cc
	ClassRst       // RST p, also the interrupt response
	ClassOutNA     // OUT (n),A
	ClassInAN      // IN A,(n)
	ClassPrefixCB  // CB prefix
	ClassPrefixED  // ED prefix
	ClassPrefixXY  // DD / FD prefix

	// CB opcode table.
	ClassCbR   // rotate/shift/BIT/RES/SET on a register
	ClassBitHL // BIT b,(HL)
	ClassCbHL  // rotate/shift/RES/SET on (HL)

	// ED opcode table.
	ClassInRC      // IN r,(C)
	ClassOutCR     // OUT (C),r
	ClassAdcSbcHL  // ADC HL,rr / SBC HL,rr
	ClassLdNNRP    // LD (nn),rr
	ClassLdRPNNInd // LD rr,(nn)
	ClassNeg       // NEG
	ClassRetn      // RETN / RETI
	ClassImN       // IM 0/1/2
	ClassLdIR      // LD I,A / LD R,A / LD A,I / LD A,R
	ClassRrdRld    // RRD / RLD
	ClassBlockLd   // LDI, LDD, LDIR, LDDR
	ClassBlockCp   // CPI, CPD, CPIR, CPDR
	ClassBlockIn   // INI, IND, INIR, INDR
	ClassBlockOut  // OUTI, OUTD, OTIR, OTDR

	NumClasses
)

var classNames = [NumClasses]string{
	"MemHL",
	"Special", "LdRR", "AluR", "IncDecR", "DI", "EI", "Halt", "JpHL", "LdSPHL",
	"IncRP", "DecRP", "LdRN", "AluN", "LdRHL", "AluHL", "LdHLR", "LdHLN",
	"IncDecHL", "LdRPNN", "LdANN", "LdNNA", "LdHLNNInd", "LdNNHL", "LdARP",
	"LdRPA", "AddHLRP", "Push", "Pop", "ExSPHL", "JpNN", "JpCC", "Jr", "JrCC",
	"Djnz", "Call", "CallCC", "Ret", "RetCC", "Rst", "OutNA", "InAN",
	"PrefixCB", "PrefixED", "PrefixXY",
	"CbR", "BitHL", "CbHL",
	"InRC", "OutCR", "AdcSbcHL", "LdNNRP", "LdRPNNInd", "Neg", "Retn", "ImN",
	"LdIR", "RrdRld", "BlockLd", "BlockCp", "BlockIn", "BlockOut",
}

// String returns the class name.
func (c Class) String() string {
	if c < NumClasses {
		return classNames[c]
	}
	return "Class?"
}

// Table selects which opcode map an opcode byte is decoded in.
type Table uint8

// Opcode tables.
const (
	TableMain      Table = iota // unprefixed (and DD/FD prefixed) opcodes
	TableCB                     // CB prefixed
	TableED                     // ED prefixed
	TableIndexedCB              // DD CB d op / FD CB d op
	NumTables
)

// String returns the table name.
func (t Table) String() string {
	switch t {
	case TableMain:
		return "main"
	case TableCB:
		return "cb"
	case TableED:
		return "ed"
	case TableIndexedCB:
		return "xycb"
	default:
		return "table?"
	}
}

// ClassSet is a bitset of instruction classes.
type ClassSet uint64

// Vector is a decode vector.
type Vector struct {
	// Op holds the addressing fields op0..op5 (the low six opcode bits).
	Op uint8
	// Classes holds the class bits.
	Classes ClassSet
}

// Has reports whether class c is asserted.
func (v Vector) Has(c Class) bool {
	return v.Classes&(1<<c) != 0
}

// With returns a copy of v with class c asserted.
func (v Vector) With(c Class) Vector {
	v.Classes |= 1 << c
	return v
}

// OpBit returns addressing field op<i>.
func (v Vector) OpBit(i uint) bool {
	return v.Op&(1<<i) != 0
}

// Valid reports whether any class is asserted.
func (v Vector) Valid() bool {
	return v.Classes != 0
}

// List returns the asserted classes in layout order.
func (v Vector) List() []Class {
	out := make([]Class, 0, bits.OnesCount64(uint64(v.Classes)))
	for set := uint64(v.Classes); set != 0; set &= set - 1 {
		out = append(out, Class(bits.TrailingZeros64(set)))
	}
	return out
}

// String renders the vector as "op=XX{Class,Class}".
func (v Vector) String() string {
	var sb strings.Builder
	sb.WriteString("op=")
	sb.WriteByte("0123456789ABCDEF"[v.Op>>4])
	sb.WriteByte("0123456789ABCDEF"[v.Op&0xF])
	sb.WriteByte('{')
	for i, c := range v.List() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(c.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
