package control

import (
	"strings"

	"github.com/sarchlab/z80exec/insts"
)

// Cond is a set of per-tick conditions a matrix entry can depend on.
type Cond uint16

// Conditions.
const (
	CondTaken   Cond = 1 << iota // flags_cond_true
	CondRepeat                   // repeating block variant whose repeat condition holds
	CondHalt                     // halt state
	CondIntAck                   // maskable interrupt response
	CondNMI                      // non-maskable interrupt response
	CondIM1                      // interrupt mode 1
	CondIM2                      // interrupt mode 2
	CondIndexed                  // DD/FD prefix active
	CondDec                      // op3: decrementing block variant
	numConds = iota
)

var condNames = [numConds]string{
	"taken", "repeat", "halt", "intack", "nmi", "im1", "im2", "indexed", "dec",
}

// String renders the set as "a|b".
func (c Cond) String() string {
	var parts []string
	for i := 0; i < numConds; i++ {
		if c&(1<<i) != 0 {
			parts = append(parts, condNames[i])
		}
	}
	return strings.Join(parts, "|")
}

// Conditions derives the condition set of one tick.
func Conditions(v insts.Vector, mode Mode) Cond {
	var c Cond
	if mode.CondTrue {
		c |= CondTaken
	}
	if v.OpBit(4) && mode.RepeatEn && !(v.Has(insts.ClassBlockCp) && mode.FlagZ) {
		c |= CondRepeat
	}
	if mode.InHalt {
		c |= CondHalt
	}
	if mode.InIntr {
		c |= CondIntAck
	}
	if mode.InNMI {
		c |= CondNMI
	}
	if mode.IM1 {
		c |= CondIM1
	}
	if mode.IM2 {
		c |= CondIM2
	}
	if mode.UseIXIY {
		c |= CondIndexed
	}
	if v.OpBit(3) {
		c |= CondDec
	}
	return c
}

// Guard restricts a matrix entry to ticks whose conditions include every
// Must bit and none of the MustNot bits.
type Guard struct {
	Must    Cond
	MustNot Cond
}

// Always matches every tick.
var Always = Guard{}

// When matches ticks where all of c hold.
func When(c Cond) Guard { return Guard{Must: c} }

// Unless matches ticks where none of c hold.
func Unless(c Cond) Guard { return Guard{MustNot: c} }

// And returns the conjunction of g and h.
func (g Guard) And(h Guard) Guard {
	return Guard{Must: g.Must | h.Must, MustNot: g.MustNot | h.MustNot}
}

// Match reports whether g accepts the condition set c.
func (g Guard) Match(c Cond) bool {
	return c&g.Must == g.Must && c&g.MustNot == 0
}

// Satisfiable reports whether some condition set matches g.
func (g Guard) Satisfiable() bool {
	return g.Must&g.MustNot == 0
}

// Overlaps reports whether some condition set matches both g and h.
func (g Guard) Overlaps(h Guard) bool {
	return g.And(h).Satisfiable()
}

// String renders the guard as "+a|b -c".
func (g Guard) String() string {
	if g == Always {
		return "always"
	}
	var parts []string
	if g.Must != 0 {
		parts = append(parts, "+"+g.Must.String())
	}
	if g.MustNot != 0 {
		parts = append(parts, "-"+g.MustNot.String())
	}
	return strings.Join(parts, " ")
}
