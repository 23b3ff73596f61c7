// Package latency provides the reference T-state table of the Z80
// instruction set.
//
// Counts are the documented totals per instruction class. They serve as the
// oracle the control unit's schedules are checked against and as the static
// cost model of the benchmark harness.
package latency

import (
	"github.com/sarchlab/z80exec/insts"
)

// Timing is the T-state count of one instruction class, prefix bytes
// excluded.
type Timing struct {
	// Base is the count of the unconditional, not-taken or non-repeating
	// form.
	Base uint64 `json:"base"`
	// Alt is the count of the taken or repeating form. Zero means the
	// class has a single form.
	Alt uint64 `json:"alt,omitempty"`
	// Indexed is the count under a DD/FD prefix, counted from the byte
	// after the prefix. Zero means the prefix does not change the body.
	Indexed uint64 `json:"indexed,omitempty"`
}

// Variant selects one form of an instruction.
type Variant struct {
	// Alt selects the taken or repeating form.
	Alt bool
	// Indexed selects the DD/FD prefixed form.
	Indexed bool
}

// Response identifies an interrupt response sequence.
type Response uint8

// Interrupt responses.
const (
	ResponseIM0 Response = iota // device-supplied RST opcode
	ResponseIM1
	ResponseIM2
	ResponseNMI
)

// String returns the response name.
func (r Response) String() string {
	switch r {
	case ResponseIM0:
		return "im0"
	case ResponseIM1:
		return "im1"
	case ResponseIM2:
		return "im2"
	case ResponseNMI:
		return "nmi"
	}
	return "response?"
}

// unrecognized is an opcode that decodes to no class: its own fetch only.
var unrecognized = Timing{Base: 4}

var reference = [insts.NumClasses]Timing{
	insts.ClassMemHL: {},

	insts.ClassSpecial:   {Base: 4},
	insts.ClassLdRR:      {Base: 4},
	insts.ClassAluR:      {Base: 4},
	insts.ClassIncDecR:   {Base: 4},
	insts.ClassDI:        {Base: 4},
	insts.ClassEI:        {Base: 4},
	insts.ClassHalt:      {Base: 4},
	insts.ClassJpHL:      {Base: 4},
	insts.ClassLdSPHL:    {Base: 6},
	insts.ClassIncRP:     {Base: 6},
	insts.ClassDecRP:     {Base: 6},
	insts.ClassLdRN:      {Base: 7},
	insts.ClassAluN:      {Base: 7},
	insts.ClassLdRHL:     {Base: 7, Indexed: 15},
	insts.ClassAluHL:     {Base: 7, Indexed: 15},
	insts.ClassLdHLR:     {Base: 7, Indexed: 15},
	insts.ClassLdHLN:     {Base: 10, Indexed: 15},
	insts.ClassIncDecHL:  {Base: 11, Indexed: 19},
	insts.ClassLdRPNN:    {Base: 10},
	insts.ClassLdANN:     {Base: 13},
	insts.ClassLdNNA:     {Base: 13},
	insts.ClassLdHLNNInd: {Base: 16},
	insts.ClassLdNNHL:    {Base: 16},
	insts.ClassLdARP:     {Base: 7},
	insts.ClassLdRPA:     {Base: 7},
	insts.ClassAddHLRP:   {Base: 11},
	insts.ClassPush:      {Base: 11},
	insts.ClassPop:       {Base: 10},
	insts.ClassExSPHL:    {Base: 19},
	insts.ClassJpNN:      {Base: 10},
	insts.ClassJpCC:      {Base: 10, Alt: 10},
	insts.ClassJr:        {Base: 12},
	insts.ClassJrCC:      {Base: 7, Alt: 12},
	insts.ClassDjnz:      {Base: 8, Alt: 13},
	insts.ClassCall:      {Base: 17},
	insts.ClassCallCC:    {Base: 10, Alt: 17},
	insts.ClassRet:       {Base: 10},
	insts.ClassRetCC:     {Base: 5, Alt: 11},
	insts.ClassRst:       {Base: 11},
	insts.ClassOutNA:     {Base: 11},
	insts.ClassInAN:      {Base: 11},
	insts.ClassPrefixCB:  {Base: 4},
	insts.ClassPrefixED:  {Base: 4},
	insts.ClassPrefixXY:  {Base: 4},

	insts.ClassCbR:   {Base: 4},
	insts.ClassBitHL: {Base: 8, Indexed: 16},
	insts.ClassCbHL:  {Base: 11, Indexed: 19},

	insts.ClassInRC:      {Base: 8},
	insts.ClassOutCR:     {Base: 8},
	insts.ClassAdcSbcHL:  {Base: 11},
	insts.ClassLdNNRP:    {Base: 16},
	insts.ClassLdRPNNInd: {Base: 16},
	insts.ClassNeg:       {Base: 4},
	insts.ClassRetn:      {Base: 10},
	insts.ClassImN:       {Base: 4},
	insts.ClassLdIR:      {Base: 5},
	insts.ClassRrdRld:    {Base: 14},
	insts.ClassBlockLd:   {Base: 12, Alt: 17},
	insts.ClassBlockCp:   {Base: 12, Alt: 17},
	insts.ClassBlockIn:   {Base: 12, Alt: 17},
	insts.ClassBlockOut:  {Base: 12, Alt: 17},
}

// Table provides T-state lookups.
type Table struct {
	config  *TimingConfig
	classes [insts.NumClasses]Timing
}

// NewTable creates a table with the default configuration.
func NewTable() *Table {
	return NewTableWithConfig(DefaultTimingConfig())
}

// NewTableWithConfig creates a table with a custom configuration. Unknown
// override names are ignored; Validate reports them.
func NewTableWithConfig(config *TimingConfig) *Table {
	t := &Table{config: config, classes: reference}
	for name, timing := range config.Overrides {
		if c, ok := classByName(name); ok {
			t.classes[c] = timing
		}
	}
	return t
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

// Lookup returns the timing of the primary class of v.
func (t *Table) Lookup(v insts.Vector) Timing {
	for _, c := range v.List() {
		if c != insts.ClassMemHL {
			return t.classes[c]
		}
	}
	return unrecognized
}

// Class returns the timing of class c.
func (t *Table) Class(c insts.Class) Timing {
	if c >= insts.NumClasses {
		return Timing{}
	}
	return t.classes[c]
}

// Body returns the T-states of v in the given variant, prefix bytes
// excluded. For the DD CB d op table the body starts at the CB byte.
func (t *Table) Body(v insts.Vector, variant Variant) uint64 {
	timing := t.Lookup(v)
	switch {
	case variant.Indexed && timing.Indexed != 0:
		return timing.Indexed
	case variant.Alt && timing.Alt != 0:
		return timing.Alt
	}
	return timing.Base
}

// Prefixes returns the number of prefix bytes an instruction decoded in
// table carries.
func Prefixes(table insts.Table, indexed bool) uint64 {
	var n uint64
	switch table {
	case insts.TableCB, insts.TableED:
		n = 1
	}
	if indexed {
		n++
	}
	return n
}

// TStates returns the total T-states of v decoded in table, prefixes
// included.
func (t *Table) TStates(v insts.Vector, table insts.Table, variant Variant) uint64 {
	if table == insts.TableIndexedCB {
		variant.Indexed = true
		return t.config.PrefixTStates + t.Body(v, variant)
	}
	if table == insts.TableED {
		variant.Indexed = false
	}
	return t.config.PrefixTStates*Prefixes(table, variant.Indexed) + t.Body(v, variant)
}

// ResponseTStates returns the length of an interrupt response.
func (t *Table) ResponseTStates(r Response) uint64 {
	switch r {
	case ResponseIM2:
		return 17 + t.config.AckWaitStates
	case ResponseNMI:
		return 11
	}
	return 11 + t.config.AckWaitStates
}

// IsMemoryOp reports whether v addresses data memory.
func (t *Table) IsMemoryOp(v insts.Vector) bool {
	if v.Has(insts.ClassMemHL) {
		return true
	}
	for _, c := range []insts.Class{
		insts.ClassLdANN, insts.ClassLdNNA, insts.ClassLdHLNNInd, insts.ClassLdNNHL,
		insts.ClassLdARP, insts.ClassLdRPA, insts.ClassLdNNRP, insts.ClassLdRPNNInd,
		insts.ClassPush, insts.ClassPop, insts.ClassExSPHL, insts.ClassRrdRld,
		insts.ClassBlockLd, insts.ClassBlockCp, insts.ClassBlockIn, insts.ClassBlockOut,
	} {
		if v.Has(c) {
			return true
		}
	}
	return false
}

// IsBranchOp reports whether v can change the flow of control.
func (t *Table) IsBranchOp(v insts.Vector) bool {
	for _, c := range []insts.Class{
		insts.ClassJpNN, insts.ClassJpCC, insts.ClassJpHL, insts.ClassJr,
		insts.ClassJrCC, insts.ClassDjnz, insts.ClassCall, insts.ClassCallCC,
		insts.ClassRet, insts.ClassRetCC, insts.ClassRetn, insts.ClassRst,
	} {
		if v.Has(c) {
			return true
		}
	}
	return false
}

// IsConditional reports whether v has a taken or repeating form.
func (t *Table) IsConditional(v insts.Vector) bool {
	return t.Lookup(v).Alt != 0
}
