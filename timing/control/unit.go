package control

import (
	"fmt"

	"github.com/sarchlab/z80exec/insts"
)

// Unit is the control unit. It is immutable after construction and safe for
// concurrent use.
type Unit struct {
	matrix *Matrix
	rules  []Rule
}

// UnitOption configures a Unit.
type UnitOption func(*unitConfig)

type unitConfig struct {
	entries []Entry
	rules   []Rule
	vectors []insts.Vector
}

// WithEntries replaces the built-in matrix entries.
func WithEntries(entries []Entry) UnitOption {
	return func(c *unitConfig) { c.entries = entries }
}

// WithRules replaces the override stage.
func WithRules(rules ...Rule) UnitOption {
	return func(c *unitConfig) { c.rules = rules }
}

// WithVectors sets the decode vectors the matrix is verified against.
func WithVectors(vectors []insts.Vector) UnitOption {
	return func(c *unitConfig) { c.vectors = vectors }
}

// New builds the unit and verifies its matrix against every decode vector
// the Z80 decoder produces.
func New(opts ...UnitOption) (*Unit, error) {
	cfg := &unitConfig{rules: DefaultRules()}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.entries == nil {
		entries, err := Schedules()
		if err != nil {
			return nil, err
		}
		cfg.entries = entries
	}
	if cfg.vectors == nil {
		cfg.vectors = insts.NewDecoder().Vectors()
	}

	m, err := NewMatrix(cfg.entries)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(cfg.vectors); err != nil {
		return nil, fmt.Errorf("matrix verification: %w", err)
	}

	return &Unit{matrix: m, rules: cfg.rules}, nil
}

// MustNew is New for callers that treat a broken matrix as a programming
// error.
func MustNew(opts ...UnitOption) *Unit {
	u, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return u
}

// Evaluate computes the control vector of one tick.
func (u *Unit) Evaluate(in Inputs) Signals {
	s := Defaults(in.Pos)
	if mi, ti, ok := in.Pos.Index(); ok {
		if u.matrix.Apply(&s, in.Vector, mi, ti, Conditions(in.Vector, in.Mode)) {
			s[Valid] = 1
		}
	}
	for _, r := range u.rules {
		r.Apply(&s, in)
	}
	return s
}

// Matrix returns the instruction matrix.
func (u *Unit) Matrix() *Matrix { return u.matrix }

// Rules returns the override stage in order.
func (u *Unit) Rules() []Rule {
	return append([]Rule(nil), u.rules...)
}
