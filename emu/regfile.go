// Package emu provides the Z80 datapath the control unit drives: register
// file, memory, IO ports, and the ALU.
package emu

// Flag bits of F.
const (
	FlagC  uint8 = 1 << 0 // carry
	FlagN  uint8 = 1 << 1 // add/subtract
	FlagPV uint8 = 1 << 2 // parity/overflow
	Flag3  uint8 = 1 << 3 // undocumented copy of bit 3
	FlagH  uint8 = 1 << 4 // half carry
	Flag5  uint8 = 1 << 5 // undocumented copy of bit 5
	FlagZ  uint8 = 1 << 6 // zero
	FlagS  uint8 = 1 << 7 // sign
)

// Index selects which index register replaces HL under a DD/FD prefix.
type Index uint8

// Index registers.
const (
	IndexNone Index = iota
	IndexIX
	IndexIY
)

// RegFile represents the Z80 register file, including the internal WZ
// (memptr) pair the control unit addresses directly.
type RegFile struct {
	A, F, B, C, D, E, H, L uint8

	// Alt holds the shadow set swapped in by EX AF,AF' and EXX.
	Alt struct {
		A, F, B, C, D, E, H, L uint8
	}

	IX, IY uint16
	SP, PC uint16
	W, Z   uint8

	// I is the interrupt vector base; R is the refresh counter.
	I, R uint8

	IFF1, IFF2 bool
	IM         uint8
}

// Pair identifies a 16-bit register pair.
type Pair uint8

// Register pairs.
const (
	BC Pair = iota
	DE
	HL
	SP
	AF
	PC
	WZ
	IX
	IY
	IR
)

// Get16 reads a register pair.
func (r *RegFile) Get16(p Pair) uint16 {
	switch p {
	case BC:
		return uint16(r.B)<<8 | uint16(r.C)
	case DE:
		return uint16(r.D)<<8 | uint16(r.E)
	case HL:
		return uint16(r.H)<<8 | uint16(r.L)
	case SP:
		return r.SP
	case AF:
		return uint16(r.A)<<8 | uint16(r.F)
	case PC:
		return r.PC
	case WZ:
		return uint16(r.W)<<8 | uint16(r.Z)
	case IX:
		return r.IX
	case IY:
		return r.IY
	case IR:
		return uint16(r.I)<<8 | uint16(r.R)
	}
	return 0
}

// Set16 writes a register pair.
func (r *RegFile) Set16(p Pair, v uint16) {
	hi, lo := uint8(v>>8), uint8(v)
	switch p {
	case BC:
		r.B, r.C = hi, lo
	case DE:
		r.D, r.E = hi, lo
	case HL:
		r.H, r.L = hi, lo
	case SP:
		r.SP = v
	case AF:
		r.A, r.F = hi, lo
	case PC:
		r.PC = v
	case WZ:
		r.W, r.Z = hi, lo
	case IX:
		r.IX = v
	case IY:
		r.IY = v
	case IR:
		r.I, r.R = hi, lo
	}
}

// Get8 reads one byte of a pair; hi selects the high byte.
func (r *RegFile) Get8(p Pair, hi bool) uint8 {
	v := r.Get16(p)
	if hi {
		return uint8(v >> 8)
	}
	return uint8(v)
}

// Set8 writes one byte of a pair; hi selects the high byte.
func (r *RegFile) Set8(p Pair, hi bool, b uint8) {
	v := r.Get16(p)
	if hi {
		v = v&0x00FF | uint16(b)<<8
	} else {
		v = v&0xFF00 | uint16(b)
	}
	r.Set16(p, v)
}

// HLPair returns HL, or the index register the prefix selects.
func HLPair(ix Index) Pair {
	switch ix {
	case IndexIX:
		return IX
	case IndexIY:
		return IY
	}
	return HL
}

// RegRef addresses an 8-bit register as a byte of a pair.
type RegRef struct {
	Pair Pair
	Hi   bool
}

// Reg8 maps the 3-bit register field (B C D E H L (HL) A) to a byte of a
// pair. H and L map to the index register halves when ix is set; code 6 has
// no register and maps to WZ low, which never aliases architectural state.
func Reg8(code uint8, ix Index) RegRef {
	hl := HLPair(ix)
	switch code & 7 {
	case 0:
		return RegRef{BC, true}
	case 1:
		return RegRef{BC, false}
	case 2:
		return RegRef{DE, true}
	case 3:
		return RegRef{DE, false}
	case 4:
		return RegRef{hl, true}
	case 5:
		return RegRef{hl, false}
	case 7:
		return RegRef{AF, true}
	}
	return RegRef{WZ, false}
}

// Read8 reads the referenced register.
func (r *RegFile) Read8(ref RegRef) uint8 { return r.Get8(ref.Pair, ref.Hi) }

// Write8 writes the referenced register.
func (r *RegFile) Write8(ref RegRef, v uint8) { r.Set8(ref.Pair, ref.Hi, v) }

// RegPair maps the 2-bit pair field to BC, DE, HL (or the index register), SP.
// With af set, code 3 selects AF instead of SP (PUSH and POP).
func RegPair(code uint8, ix Index, af bool) Pair {
	switch code & 3 {
	case 0:
		return BC
	case 1:
		return DE
	case 2:
		return HLPair(ix)
	}
	if af {
		return AF
	}
	return SP
}

// Flag reports whether every bit of mask is set in F.
func (r *RegFile) Flag(mask uint8) bool { return r.F&mask == mask }

// ExAF swaps AF with its shadow.
func (r *RegFile) ExAF() {
	r.A, r.Alt.A = r.Alt.A, r.A
	r.F, r.Alt.F = r.Alt.F, r.F
}

// Exx swaps BC, DE and HL with their shadows.
func (r *RegFile) Exx() {
	r.B, r.Alt.B = r.Alt.B, r.B
	r.C, r.Alt.C = r.Alt.C, r.C
	r.D, r.Alt.D = r.Alt.D, r.D
	r.E, r.Alt.E = r.Alt.E, r.E
	r.H, r.Alt.H = r.Alt.H, r.H
	r.L, r.Alt.L = r.Alt.L, r.L
}

// Refresh advances the low seven bits of R, as every opcode fetch does.
func (r *RegFile) Refresh() {
	r.R = r.R&0x80 | (r.R+1)&0x7F
}
