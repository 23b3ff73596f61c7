package control

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/z80exec/insts"
)

// MCycle is the one-hot machine cycle register.
type MCycle uint8

// Machine cycles.
const (
	M1 MCycle = 1 << iota
	M2
	M3
	M4
	M5
	M6
)

// TCycle is the one-hot sub-cycle register.
type TCycle uint8

// Sub-cycles.
const (
	T1 TCycle = 1 << iota
	T2
	T3
	T4
	T5
	T6
)

// MaxCycle is the highest M and T index.
const MaxCycle = 6

// Position is the current place in an instruction timeline. Both fields are
// one-hot; anything else violates the sequencer's contract.
type Position struct {
	M MCycle
	T TCycle
}

// At builds the position (Mm, Tt) from 1-based indexes.
func At(m, t int) Position {
	return Position{M: MCycle(1 << (m - 1)), T: TCycle(1 << (t - 1))}
}

// Index returns the 1-based M and T indexes. ok is false unless exactly one
// bit is set in each register and both are within range.
func (p Position) Index() (m, t int, ok bool) {
	if bits.OnesCount8(uint8(p.M)) != 1 || bits.OnesCount8(uint8(p.T)) != 1 {
		return 0, 0, false
	}
	m = bits.TrailingZeros8(uint8(p.M)) + 1
	t = bits.TrailingZeros8(uint8(p.T)) + 1
	if m > MaxCycle || t > MaxCycle {
		return 0, 0, false
	}
	return m, t, true
}

// Valid reports whether p is a legal one-hot position.
func (p Position) Valid() bool {
	_, _, ok := p.Index()
	return ok
}

// Is reports whether p is (Mm, Tt).
func (p Position) Is(m MCycle, t TCycle) bool {
	return p.M == m && p.T == t
}

// String renders the position as "M2T3".
func (p Position) String() string {
	m, t, ok := p.Index()
	if !ok {
		return fmt.Sprintf("M?%02xT?%02x", uint8(p.M), uint8(p.T))
	}
	return fmt.Sprintf("M%dT%d", m, t)
}

// Mode holds the processor-wide latched state the unit reads each tick.
type Mode struct {
	Reset    bool // reset pin asserted (the complement of nreset)
	TestMode bool // FPGA/test build
	InIntr   bool // servicing a maskable interrupt
	InNMI    bool // servicing a non-maskable interrupt
	InHalt   bool // halt state
	IM1      bool // interrupt mode 1
	IM2      bool // interrupt mode 2
	UseIXIY  bool // DD/FD prefix latch
	RepeatEn bool // block repeat condition (BC or B not exhausted)

	FlagZ bool
	FlagN bool
	FlagS bool
	FlagC bool

	CondTrue bool // condition code of the current instruction holds
}

// Inputs is everything the unit samples in one tick.
type Inputs struct {
	Vector insts.Vector
	Pos    Position
	Mode   Mode
}
