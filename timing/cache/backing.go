// Package cache memoises control unit evaluations using Akita cache
// components.
package cache

import (
	"github.com/sarchlab/z80exec/timing/control"
)

// Evaluator is anything that computes a control vector for one tick. The
// control unit is the backing store a Memo fills its lines from.
type Evaluator interface {
	Evaluate(in control.Inputs) control.Signals
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(in control.Inputs) control.Signals

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(in control.Inputs) control.Signals {
	return f(in)
}
