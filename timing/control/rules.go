package control

// Rule is one step of the override stage. Rules run in list order after the
// matrix, each seeing the result of the ones before it.
type Rule struct {
	Name  string
	Apply func(s *Signals, in Inputs)
}

// DefaultRules returns the override stage in priority order.
func DefaultRules() []Rule {
	return []Rule{ResetRule, UnrecognizedRule, ReloadRule}
}

// ResetVector returns the control vector reset forces at pos: PC and the
// address latch cleared, a NOP in the instruction register, and a request to
// restart at M1 T1.
func ResetVector(pos Position) Signals {
	s := Defaults(pos)
	s[ALatchWE] = 1
	s[ALatchSrc] = uint8(PairZero)
	s[Inc] = uint8(IncZero)
	s[IncWB] = uint8(PairPC)
	s[IR] = uint8(IRZero)
	s[NextM] = 1
	s[SetM1] = 1
	return s
}

// ResetRule replaces everything computed so far with the reset vector.
var ResetRule = Rule{
	Name: "reset",
	Apply: func(s *Signals, in Inputs) {
		if in.Mode.Reset {
			*s = ResetVector(in.Pos)
		}
	},
}

// UnrecognizedRule completes an opcode no class claimed as a one-cycle no-op.
var UnrecognizedRule = Rule{
	Name: "unrecognized",
	Apply: func(s *Signals, in Inputs) {
		if in.Pos.Is(M1, T4) && !s.On(Valid) {
			s[NextM] = 1
			s[SetM1] = 1
		}
	},
}

// ReloadRule points the address latch at PC on every instruction boundary.
// Under reset the incrementer has already cleared PC, so the latch still
// loads zero.
var ReloadRule = Rule{
	Name: "reload",
	Apply: func(s *Signals, _ Inputs) {
		if s.On(SetM1) {
			s[ALatchWE] = 1
			s[ALatchSrc] = uint8(PairPC)
		}
	},
}
