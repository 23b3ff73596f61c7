package emu

// Cond represents a Z80 condition code.
type Cond uint8

// Z80 condition codes, in opcode field order.
const (
	CondNZ Cond = iota // Z == 0
	CondZ              // Z == 1
	CondNC             // C == 0
	CondC              // C == 1
	CondPO             // P/V == 0 (parity odd)
	CondPE             // P/V == 1 (parity even)
	CondP              // S == 0
	CondM              // S == 1
)

// BranchUnit evaluates condition codes against F.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// CheckCondition evaluates cond against the current flags.
func (b *BranchUnit) CheckCondition(cond Cond) bool {
	f := b.regFile.F
	var set bool
	switch cond &^ 1 {
	case CondNZ:
		set = f&FlagZ != 0
	case CondNC:
		set = f&FlagC != 0
	case CondPO:
		set = f&FlagPV != 0
	case CondP:
		set = f&FlagS != 0
	}
	if cond&1 == 1 {
		return set
	}
	return !set
}
