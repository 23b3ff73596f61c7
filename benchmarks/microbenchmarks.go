package benchmarks

import (
	"bytes"

	"github.com/sarchlab/z80exec/emu"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// exercises a group of instruction classes and carries its documented
// T-state total.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		djnzLoop(),
		memorySequential(),
		functionCalls(),
		branchHeavy(),
		blockCopy(),
		indexedAccess(),
		bitOperations(),
		portIO(),
		interruptResponse(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop,
// memory traffic and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		djnzLoop(),
		memorySequential(),
		branchHeavy(),
	}
}

// BuildProgram concatenates instruction encodings.
func BuildProgram(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// Word encodes a 16-bit operand little-endian.
func Word(v uint16) []byte {
	return []byte{uint8(v), uint8(v >> 8)}
}

// Repeat returns n copies of one instruction.
func Repeat(n int, inst ...byte) []byte {
	return bytes.Repeat(inst, n)
}

const halt = 0x76

func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 ADD A,B - register ALU at one M1 each",
		Program: BuildProgram(
			[]byte{0xAF},       // XOR A
			[]byte{0x06, 0x01}, // LD B,1
			Repeat(20, 0x80),   // ADD A,B
			[]byte{halt},
		),
		ExpectedTStates: 4 + 7 + 20*4 + 4,
		ExpectedA:       20,
	}
}

func djnzLoop() Benchmark {
	return Benchmark{
		Name:        "djnz_loop",
		Description: "50 passes of INC A; DJNZ - taken and final relative branch",
		Program: BuildProgram(
			[]byte{0x06, 50},   // LD B,50
			[]byte{0xAF},       // XOR A
			[]byte{0x3C},       // loop: INC A
			[]byte{0x10, 0xFD}, // DJNZ loop
			[]byte{halt},
		),
		ExpectedTStates: 7 + 4 + 50*4 + 49*13 + 8 + 4,
		ExpectedA:       50,
	}
}

func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "16 stores through HL, then one absolute load",
		Program: BuildProgram(
			[]byte{0x21}, Word(0x8000), // LD HL,8000h
			[]byte{0x06, 16}, // LD B,16
			[]byte{0xAF},     // XOR A
			[]byte{0x77},     // loop: LD (HL),A
			[]byte{0x23},     // INC HL
			[]byte{0x3C},     // INC A
			[]byte{0x10, 0xFB},         // DJNZ loop
			[]byte{0x3A}, Word(0x800F), // LD A,(800Fh)
			[]byte{halt},
		),
		ExpectedTStates: 10 + 7 + 4 + 16*(7+6+4) + 15*13 + 8 + 13 + 4,
		ExpectedA:       15,
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "8 CALL/RET pairs - stack writes and reads",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			_ = memory.Load(0x0010, []byte{
				0x3C, // INC A
				0xC9, // RET
			})
		},
		Program: BuildProgram(
			[]byte{0x06, 8},            // LD B,8
			[]byte{0xAF},               // XOR A
			[]byte{0xCD}, Word(0x0010), // loop: CALL 0010h
			[]byte{0x10, 0xFB},         // DJNZ loop
			[]byte{halt},
		),
		ExpectedTStates: 7 + 4 + 8*(17+4+10) + 7*13 + 8 + 4,
		ExpectedA:       8,
	}
}

func branchHeavy() Benchmark {
	return Benchmark{
		Name:        "branch_heavy",
		Description: "JR Z over INC A on alternate passes - taken and not-taken branches",
		Program: BuildProgram(
			[]byte{0x06, 20},   // LD B,20
			[]byte{0xAF},       // XOR A
			[]byte{0xCB, 0x40}, // loop: BIT 0,B
			[]byte{0x28, 0x01}, // JR Z,skip
			[]byte{0x3C},       // INC A
			[]byte{0x10, 0xF9}, // skip: DJNZ loop
			[]byte{halt},
		),
		ExpectedTStates: 7 + 4 + 10*(8+12) + 10*(8+7+4) + 19*13 + 8 + 4,
		ExpectedA:       10,
	}
}

func blockCopy() Benchmark {
	return Benchmark{
		Name:        "block_copy",
		Description: "LDIR over 32 bytes - repeating block transfer",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			src := make([]byte, 32)
			for i := range src {
				src[i] = uint8(i + 1)
			}
			_ = memory.Load(0x8000, src)
		},
		Program: BuildProgram(
			[]byte{0x21}, Word(0x8000), // LD HL,8000h
			[]byte{0x11}, Word(0x9000), // LD DE,9000h
			[]byte{0x01}, Word(32), // LD BC,32
			[]byte{0xED, 0xB0},         // LDIR
			[]byte{0x3A}, Word(0x901F), // LD A,(901Fh)
			[]byte{halt},
		),
		ExpectedTStates: 10 + 10 + 10 + 31*21 + 16 + 13 + 4,
		ExpectedA:       32,
	}
}

func indexedAccess() Benchmark {
	return Benchmark{
		Name:        "indexed_access",
		Description: "IX+d loads, stores and read-modify-write - displacement address cycles",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			_ = memory.Load(0x8000, []byte{1, 2, 3})
		},
		Program: BuildProgram(
			[]byte{0xDD, 0x21}, Word(0x8000), // LD IX,8000h
			[]byte{0xDD, 0x7E, 0x00}, // LD A,(IX+0)
			[]byte{0xDD, 0x86, 0x01}, // ADD A,(IX+1)
			[]byte{0xDD, 0x86, 0x02}, // ADD A,(IX+2)
			[]byte{0xDD, 0x77, 0x03}, // LD (IX+3),A
			[]byte{0xDD, 0x34, 0x03}, // INC (IX+3)
			[]byte{0xDD, 0x7E, 0x03}, // LD A,(IX+3)
			[]byte{halt},
		),
		ExpectedTStates: 14 + 5*19 + 23 + 4,
		ExpectedA:       7,
	}
}

func bitOperations() Benchmark {
	return Benchmark{
		Name:        "bit_operations",
		Description: "CB-prefixed rotate, set, reset and shift on A",
		Program: BuildProgram(
			[]byte{0x3E, 0x0F}, // LD A,0Fh
			[]byte{0xCB, 0x07}, // RLC A
			[]byte{0xCB, 0xFF}, // SET 7,A
			[]byte{0xCB, 0x87}, // RES 0,A
			[]byte{0xCB, 0x3F}, // SRL A
			[]byte{halt},
		),
		ExpectedTStates: 7 + 4*8 + 4,
		ExpectedA:       0x4F,
	}
}

func portIO() Benchmark {
	return Benchmark{
		Name:        "port_io",
		Description: "OUT (n),A and IN r,(C) - IO cycles with their wait state",
		Ports:       map[uint8]uint8{0x20: 0x33},
		Program: BuildProgram(
			[]byte{0x3E, 0x55}, // LD A,55h
			[]byte{0xD3, 0x10}, // OUT (10h),A
			[]byte{0x01}, Word(0x0020), // LD BC,0020h
			[]byte{0xED, 0x78}, // IN A,(C)
			[]byte{halt},
		),
		ExpectedTStates: 7 + 11 + 10 + 12 + 4,
		ExpectedA:       0x33,
	}
}

func interruptResponse() Benchmark {
	return Benchmark{
		Name:        "interrupt_im1",
		Description: "HALT woken by a mode 1 interrupt - acknowledge cycle and RST 38h",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			_ = memory.Load(0x0038, []byte{
				0x3E, 0x99, // LD A,99h
				halt,
			})
		},
		Program: BuildProgram(
			[]byte{0xED, 0x56}, // IM 1
			[]byte{0xFB},       // EI
			[]byte{halt},
		),
		IRQAt:           []uint64{20},
		ExpectedTStates: 8 + 4 + 4 + 2*4 + 11 + 7 + 4,
		ExpectedA:       0x99,
	}
}
