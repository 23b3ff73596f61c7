package insts

// Decoder decodes Z80 opcode bytes into decode vectors.
//
// The decoder is a pure table lookup; all four opcode maps are built once by
// NewDecoder.
type Decoder struct {
	tables [NumTables][256]Vector
}

// NewDecoder creates a new Z80 decoder.
func NewDecoder() *Decoder {
	d := &Decoder{}
	for op := 0; op < 256; op++ {
		b := uint8(op)
		d.tables[TableMain][op] = d.decodeMain(b)
		d.tables[TableCB][op] = d.decodeCB(b)
		d.tables[TableED][op] = d.decodeED(b)
		d.tables[TableIndexedCB][op] = d.decodeIndexedCB(b)
	}
	return d
}

// Decode returns the decode vector of opcode in the given table.
// Opcodes the table does not define yield a vector with no class bits.
func (d *Decoder) Decode(opcode uint8, table Table) Vector {
	if table >= NumTables {
		return Vector{Op: opcode & 0x3F}
	}
	return d.tables[table][opcode]
}

// Vectors returns every distinct vector the decoder can produce, across all
// tables, including the empty vector of unrecognized opcodes.
func (d *Decoder) Vectors() []Vector {
	seen := make(map[Vector]bool)
	var out []Vector
	for t := Table(0); t < NumTables; t++ {
		for op := 0; op < 256; op++ {
			v := d.tables[t][op]
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func vec(op uint8, classes ...Class) Vector {
	v := Vector{Op: op & 0x3F}
	for _, c := range classes {
		v = v.With(c)
	}
	return v
}

// Opcode fields, using the usual x/y/z/p/q split:
//
//	x = bits 7..6, y = bits 5..3, z = bits 2..0, p = y>>1, q = y&1
func fields(op uint8) (x, y, z, p, q uint8) {
	x = op >> 6
	y = (op >> 3) & 7
	z = op & 7
	return x, y, z, y >> 1, y & 1
}

// decodeMain decodes the unprefixed opcode map.
func (d *Decoder) decodeMain(op uint8) Vector {
	x, y, z, p, q := fields(op)

	switch x {
	case 0:
		return d.decodeMainX0(op, y, z, p, q)
	case 1:
		switch {
		case op == 0x76:
			return vec(op, ClassHalt)
		case z == 6:
			return vec(op, ClassLdRHL, ClassMemHL)
		case y == 6:
			return vec(op, ClassLdHLR, ClassMemHL)
		default:
			return vec(op, ClassLdRR)
		}
	case 2:
		if z == 6 {
			return vec(op, ClassAluHL, ClassMemHL)
		}
		return vec(op, ClassAluR)
	}
	return d.decodeMainX3(op, y, z, p, q)
}

func (d *Decoder) decodeMainX0(op, y, z, p, q uint8) Vector {
	switch z {
	case 0:
		switch y {
		case 0, 1:
			return vec(op, ClassSpecial) // NOP, EX AF,AF'
		case 2:
			return vec(op, ClassDjnz)
		case 3:
			return vec(op, ClassJr)
		default:
			return vec(op, ClassJrCC)
		}
	case 1:
		if q == 0 {
			return vec(op, ClassLdRPNN)
		}
		return vec(op, ClassAddHLRP)
	case 2:
		switch {
		case p < 2 && q == 0:
			return vec(op, ClassLdRPA)
		case p < 2:
			return vec(op, ClassLdARP)
		case p == 2 && q == 0:
			return vec(op, ClassLdNNHL)
		case p == 2:
			return vec(op, ClassLdHLNNInd)
		case q == 0:
			return vec(op, ClassLdNNA)
		default:
			return vec(op, ClassLdANN)
		}
	case 3:
		if q == 0 {
			return vec(op, ClassIncRP)
		}
		return vec(op, ClassDecRP)
	case 4, 5:
		if y == 6 {
			return vec(op, ClassIncDecHL, ClassMemHL)
		}
		return vec(op, ClassIncDecR)
	case 6:
		if y == 6 {
			return vec(op, ClassLdHLN, ClassMemHL)
		}
		return vec(op, ClassLdRN)
	}
	return vec(op, ClassSpecial) // RLCA, RRCA, RLA, RRA, DAA, CPL, SCF, CCF
}

func (d *Decoder) decodeMainX3(op, y, z, p, q uint8) Vector {
	switch z {
	case 0:
		return vec(op, ClassRetCC)
	case 1:
		if q == 0 {
			return vec(op, ClassPop)
		}
		switch p {
		case 0:
			return vec(op, ClassRet)
		case 1:
			return vec(op, ClassSpecial) // EXX
		case 2:
			return vec(op, ClassJpHL)
		}
		return vec(op, ClassLdSPHL)
	case 2:
		return vec(op, ClassJpCC)
	case 3:
		switch y {
		case 0:
			return vec(op, ClassJpNN)
		case 1:
			// The CB prefix carries MemHL so that DD CB d op runs the
			// displacement sub-sequence before the CB opcode is read.
			return vec(op, ClassPrefixCB, ClassMemHL)
		case 2:
			return vec(op, ClassOutNA)
		case 3:
			return vec(op, ClassInAN)
		case 4:
			return vec(op, ClassExSPHL)
		case 5:
			return vec(op, ClassSpecial) // EX DE,HL
		case 6:
			return vec(op, ClassDI)
		}
		return vec(op, ClassEI)
	case 4:
		return vec(op, ClassCallCC)
	case 5:
		if q == 0 {
			return vec(op, ClassPush)
		}
		switch p {
		case 0:
			return vec(op, ClassCall)
		case 2:
			return vec(op, ClassPrefixED)
		}
		return vec(op, ClassPrefixXY)
	case 6:
		return vec(op, ClassAluN)
	}
	return vec(op, ClassRst)
}

// decodeCB decodes the CB prefixed map.
func (d *Decoder) decodeCB(op uint8) Vector {
	x, _, z, _, _ := fields(op)
	switch {
	case z != 6:
		return vec(op, ClassCbR)
	case x == 1:
		return vec(op, ClassBitHL, ClassMemHL)
	default:
		return vec(op, ClassCbHL, ClassMemHL)
	}
}

// decodeIndexedCB decodes DD CB d op / FD CB d op. Every opcode operates on
// the indexed memory operand; the register forms also copy the result back,
// which is a register-file concern.
func (d *Decoder) decodeIndexedCB(op uint8) Vector {
	if op>>6 == 1 {
		return vec(op, ClassBitHL, ClassMemHL)
	}
	return vec(op, ClassCbHL, ClassMemHL)
}

// decodeED decodes the ED prefixed map. Holes in the map decode to an empty
// vector and execute as an eight T-state no-op.
func (d *Decoder) decodeED(op uint8) Vector {
	x, y, z, _, q := fields(op)

	switch x {
	case 1:
		switch z {
		case 0:
			return vec(op, ClassInRC)
		case 1:
			return vec(op, ClassOutCR)
		case 2:
			return vec(op, ClassAdcSbcHL)
		case 3:
			if q == 0 {
				return vec(op, ClassLdNNRP)
			}
			return vec(op, ClassLdRPNNInd)
		case 4:
			return vec(op, ClassNeg)
		case 5:
			return vec(op, ClassRetn)
		case 6:
			return vec(op, ClassImN)
		}
		switch {
		case y < 4:
			return vec(op, ClassLdIR)
		case y < 6:
			return vec(op, ClassRrdRld)
		}
	case 2:
		if y < 4 {
			break
		}
		switch z {
		case 0:
			return vec(op, ClassBlockLd)
		case 1:
			return vec(op, ClassBlockCp)
		case 2:
			return vec(op, ClassBlockIn)
		case 3:
			return vec(op, ClassBlockOut)
		}
	}
	return Vector{Op: op & 0x3F}
}

// Mnemonic returns a short opcode-family mnemonic for traces.
func Mnemonic(v Vector) string {
	for _, c := range v.List() {
		if c != ClassMemHL {
			return c.String()
		}
	}
	return "???"
}
