// Package core drives the control unit over consecutive clock ticks.
//
// The Core owns everything the unit itself keeps out of: the cycle position,
// the instruction register and prefix latches, the address latch, and the
// interrupt and halt state. Each tick it decodes the instruction register,
// evaluates the unit and applies the resulting control vector to the
// datapath in a fixed order:
//
//  1. data bus (memory, IO or register source)
//  2. register byte write
//  3. instruction register load
//  4. register pair transfer and IX/IY+d address
//  5. end-of-instruction ALU work
//  6. incrementer write-back
//  7. address latch load
//  8. interrupt, halt and prefix latches
//  9. cycle sequencer
package core

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/cache"
	"github.com/sarchlab/z80exec/timing/control"
)

// Harness errors.
var (
	// ErrCycleOverflow reports a schedule that ran past M6 or T6 without
	// requesting the next machine cycle or instruction.
	ErrCycleOverflow = errors.New("cycle position overflow")
	// ErrTickLimit reports a run that exceeded its tick budget.
	ErrTickLimit = errors.New("tick limit exceeded")
)

const nmiVector = 0x0066

// Event is an external pin change delivered at a given tick.
type Event uint8

// Events.
const (
	EventIRQ      Event = iota // assert INT
	EventIRQClear              // release INT
	EventNMI                   // pulse NMI
	EventReset                 // pulse RESET for one tick
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventIRQ:
		return "irq"
	case EventIRQClear:
		return "irq-clear"
	case EventNMI:
		return "nmi"
	case EventReset:
		return "reset"
	}
	return "event?"
}

type scheduled struct {
	tick  uint64
	event Event
}

// Stats holds harness statistics.
type Stats struct {
	// Ticks is the number of T-states simulated.
	Ticks uint64
	// Instructions is the number of completed instructions, prefixes and
	// interrupt responses excluded.
	Instructions uint64
	// Prefixes is the number of CB/ED/DD/FD prefix bytes executed.
	Prefixes uint64

	// Machine cycles by kind, counted at their T1.
	FetchCycles    uint64
	AckCycles      uint64
	ReadCycles     uint64
	WriteCycles    uint64
	IOReadCycles   uint64
	IOWriteCycles  uint64
	InternalCycles uint64

	// IXYDTicks is the number of ticks spent forming IX/IY+d.
	IXYDTicks uint64
	// BlockRepeats counts block instruction iterations that repeated.
	BlockRepeats uint64
	// Unrecognized counts opcodes that decoded to no class.
	Unrecognized uint64

	Interrupts uint64
	NMIs       uint64

	// Cache holds evaluation memo statistics when the memo is enabled.
	Cache cache.Statistics
}

// TicksPerInstruction returns the mean T-states per instruction.
func (s Stats) TicksPerInstruction() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Ticks) / float64(s.Instructions)
}

// Option configures a Core.
type Option func(*Core)

// WithIOBus attaches the port space.
func WithIOBus(bus emu.IOBus) Option {
	return func(c *Core) {
		c.io = bus
	}
}

// WithTrace writes one line per tick to w.
func WithTrace(w io.Writer) Option {
	return func(c *Core) {
		c.trace = w
	}
}

// WithConfig sets the harness configuration.
func WithConfig(config *Config) Option {
	return func(c *Core) {
		c.config = config.Clone()
	}
}

// WithUnit replaces the control unit.
func WithUnit(u *control.Unit) Option {
	return func(c *Core) {
		c.unit = u
	}
}

// Core is a tick-accurate Z80 execute harness around the control unit.
type Core struct {
	regFile *emu.RegFile
	memory  *emu.Memory
	io      emu.IOBus
	exec    *emu.ExecUnit
	decoder *insts.Decoder

	unit      *control.Unit
	memo      *cache.Memo
	evaluator cache.Evaluator
	config    *Config
	trace     io.Writer

	pos    control.Position
	al     uint16
	ir     uint8
	table  insts.Table
	tmp    uint8
	index  emu.Index
	prefix insts.Table

	halted     bool
	inIntr     bool
	inNMI      bool
	nmiPending bool
	intLine    bool
	resetPin   bool

	events []scheduled
	stats  Stats
}

// NewCore creates a Core over the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...Option) (*Core, error) {
	c := &Core{
		regFile: regFile,
		memory:  memory,
		io:      emu.NewPorts(),
		exec:    emu.NewExecUnit(regFile),
		decoder: insts.NewDecoder(),
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}

	if c.unit == nil {
		u, err := control.New()
		if err != nil {
			return nil, err
		}
		c.unit = u
	}

	c.evaluator = c.unit
	if c.config.EvalCache {
		c.memo = cache.New(c.config.CacheConfig(), c.unit)
		c.evaluator = c.memo
	}

	c.restart()
	return c, nil
}

// restart puts the sequencer at M1 T1 with the address latch on PC.
func (c *Core) restart() {
	c.pos = control.At(1, 1)
	c.al = c.regFile.PC
}

// SetPC sets the program counter and restarts at an instruction boundary.
func (c *Core) SetPC(pc uint16) {
	c.regFile.PC = pc
	c.restart()
}

// Position returns the current cycle position.
func (c *Core) Position() control.Position {
	return c.pos
}

// Unit returns the control unit.
func (c *Core) Unit() *control.Unit {
	return c.unit
}

// Config returns the harness configuration.
func (c *Core) Config() *Config {
	return c.config
}

// RaiseIRQ asserts the maskable interrupt line. The line stays asserted
// until the interrupt is accepted or ClearIRQ is called.
func (c *Core) RaiseIRQ() {
	c.intLine = true
}

// ClearIRQ releases the maskable interrupt line.
func (c *Core) ClearIRQ() {
	c.intLine = false
}

// TriggerNMI latches a non-maskable interrupt request.
func (c *Core) TriggerNMI() {
	c.nmiPending = true
}

// AssertReset holds the reset pin for the next tick.
func (c *Core) AssertReset() {
	c.resetPin = true
}

// Schedule delivers ev before the tick numbered tick is evaluated.
func (c *Core) Schedule(tick uint64, ev Event) {
	c.events = append(c.events, scheduled{tick: tick, event: ev})
	sort.SliceStable(c.events, func(i, j int) bool {
		return c.events[i].tick < c.events[j].tick
	})
}

func (c *Core) deliver() {
	for len(c.events) > 0 && c.events[0].tick <= c.stats.Ticks {
		switch c.events[0].event {
		case EventIRQ:
			c.RaiseIRQ()
		case EventIRQClear:
			c.ClearIRQ()
		case EventNMI:
			c.TriggerNMI()
		case EventReset:
			c.AssertReset()
		}
		c.events = c.events[1:]
	}
}

// Halted reports whether the core is halted with nothing left that could
// wake it.
func (c *Core) Halted() bool {
	if !c.halted || c.nmiPending || len(c.events) > 0 {
		return false
	}
	return !(c.intLine && c.regFile.IFF1)
}

// InHalt reports whether the core is in the halt state.
func (c *Core) InHalt() bool {
	return c.halted
}

// Stats returns harness statistics.
func (c *Core) Stats() Stats {
	s := c.stats
	if c.memo != nil {
		s.Cache = c.memo.Stats()
	}
	return s
}

// instr is the instruction the datapath is executing this tick.
func (c *Core) instr() emu.Instr {
	return emu.Instr{
		Op:     c.ir,
		Table:  c.table,
		Vector: c.decoder.Decode(c.ir, c.table),
		Index:  c.index,
	}
}

// mode samples the processor state the unit reads.
func (c *Core) mode(in emu.Instr) control.Mode {
	r := c.regFile
	return control.Mode{
		Reset:    c.resetPin,
		InIntr:   c.inIntr,
		InNMI:    c.inNMI,
		InHalt:   c.halted,
		IM1:      r.IM == 1,
		IM2:      r.IM == 2,
		UseIXIY:  c.index != emu.IndexNone,
		RepeatEn: c.exec.RepeatEnabled(in),
		FlagZ:    r.Flag(emu.FlagZ),
		FlagN:    r.Flag(emu.FlagN),
		FlagS:    r.Flag(emu.FlagS),
		FlagC:    r.Flag(emu.FlagC),
		CondTrue: c.exec.Condition(in),
	}
}

// Tick simulates one T-state.
func (c *Core) Tick() error {
	c.deliver()

	mi, ti, ok := c.pos.Index()
	if !ok {
		return fmt.Errorf("%w: %s", ErrCycleOverflow, c.pos)
	}

	in := c.instr()
	if mi == 1 && ti == 4 {
		c.exec.Decoded(in)
	}

	mode := c.mode(in)
	s := c.evaluator.Evaluate(control.Inputs{Vector: in.Vector, Pos: c.pos, Mode: mode})
	c.resetPin = false

	if c.trace != nil {
		fmt.Fprintf(c.trace, "%10d %s %04X IR=%02X %-9s %s\n",
			c.stats.Ticks, c.pos, c.al, c.ir, insts.Mnemonic(in.Vector), s)
	}

	c.count(s, mi, ti, in, mode)

	if mi >= 2 && ti == 1 && !mode.Reset {
		c.exec.Cycle(in, mi, s.On(control.MWrite), &c.tmp)
	}

	c.apply(s, in, mi, mode.Reset)

	if mode.Reset {
		c.reset()
	}

	c.stats.Ticks++
	return c.advance(s)
}

// apply drives the datapath from one control vector.
func (c *Core) apply(s control.Signals, in emu.Instr, mi int, resetting bool) {
	r := c.regFile

	// Data bus.
	var bus uint8
	switch s.Bus() {
	case control.BusPins:
		switch {
		case s.On(control.IORead) && mi == 1:
			bus = c.io.Ack()
		case s.On(control.IORead):
			bus = c.io.In(c.al)
		default:
			bus = c.memory.Read8(c.al)
		}
	case control.BusReg:
		bus = c.read8(s.Reg(), s.Lane(), in)
		if s.On(control.MWrite) {
			c.memory.Write8(c.al, bus)
		}
		if s.On(control.IOWrite) {
			c.io.Out(c.al, bus)
		}
	}

	if s.On(control.RegWE) {
		c.write8(s.Reg(), s.Lane(), in, bus)
	}

	// Instruction register. The opcode fetch decodes under the prefix
	// latch; the only other bus load is the DD CB d op opcode.
	switch s.IRLoad() {
	case control.IRBus:
		c.ir = bus
		if mi == 1 {
			c.table = c.prefix
		} else {
			c.table = insts.TableIndexedCB
		}
	case control.IRZero:
		c.ir, c.table = 0x00, c.prefix
	case control.IRRst:
		c.ir, c.table = 0xFF, c.prefix
	}
	if s.IRLoad() != control.IRHold && mi == 1 {
		r.Refresh()
	}

	c.transfer(s.Transfer(), in)
	if s.On(control.IXYD) && s.On(control.ALatchWE) {
		c.indexAddress()
	}

	if s.On(control.SetM1) && !resetting {
		c.exec.Finish(in, c.tmp)
	}

	if s.IncTarget() != control.PairNone {
		c.write16(s.IncTarget(), in, c.increment(s))
	}

	if s.On(control.ALatchWE) {
		c.al = c.read16(s.AddrSource(), in)
	}

	c.latch(s, in, resetting)
}

// latch updates the interrupt, halt and prefix state.
func (c *Core) latch(s control.Signals, in emu.Instr, resetting bool) {
	r := c.regFile

	c.iff(s.IffOp())
	if s.On(control.SetIM) {
		r.IM = emu.IMode(in.Op)
	}
	if s.On(control.SetHalt) {
		c.halted = true
	}

	if s.On(control.SetIXIY) {
		c.index = emu.IndexIY
		if in.Op == 0xDD {
			c.index = emu.IndexIX
		}
	}
	if s.On(control.SetCBED) {
		switch {
		case in.Op != 0xCB:
			c.prefix = insts.TableED
			c.index = emu.IndexNone
		case c.index != emu.IndexNone:
			c.prefix = insts.TableIndexedCB
		default:
			c.prefix = insts.TableCB
		}
	}

	if !s.On(control.SetM1) || s.On(control.SetIXIY) || s.On(control.SetCBED) {
		return
	}

	// Instruction boundary.
	c.index = emu.IndexNone
	c.prefix = insts.TableMain
	c.inIntr, c.inNMI = false, false

	if resetting || s.IffOp() == control.IffSet {
		return
	}
	switch {
	case c.nmiPending:
		c.nmiPending = false
		c.inNMI = true
		c.halted = false
		r.IFF1 = false
		c.stats.NMIs++
	case c.intLine && r.IFF1:
		c.intLine = false
		c.inIntr = true
		c.halted = false
		r.IFF1, r.IFF2 = false, false
		c.stats.Interrupts++
	}
}

// reset applies the state the reset vector does not reach.
func (c *Core) reset() {
	r := c.regFile
	r.IFF1, r.IFF2 = false, false
	r.IM = 0
	r.I, r.R = 0, 0
	c.table = insts.TableMain
	c.prefix = insts.TableMain
	c.index = emu.IndexNone
	c.halted = false
	c.inIntr, c.inNMI = false, false
	c.nmiPending = false
}

// advance moves the sequencer.
func (c *Core) advance(s control.Signals) error {
	mi, ti, _ := c.pos.Index()
	switch {
	case s.On(control.SetM1):
		mi, ti = 1, 1
	case s.On(control.NextM):
		mi, ti = mi+1, 1
	default:
		ti++
	}
	if mi > control.MaxCycle || ti > control.MaxCycle {
		return fmt.Errorf("%w: after %s with IR=%02X (%s)",
			ErrCycleOverflow, c.pos, c.ir, c.table)
	}
	c.pos = control.At(mi, ti)
	return nil
}

// count updates the statistics for one tick.
func (c *Core) count(s control.Signals, mi, ti int, in emu.Instr, mode control.Mode) {
	st := &c.stats
	if ti == 1 {
		switch {
		case mi == 1 && s.On(control.IORead):
			st.AckCycles++
		case mi == 1:
			st.FetchCycles++
		case s.On(control.MRead):
			st.ReadCycles++
		case s.On(control.MWrite):
			st.WriteCycles++
		case s.On(control.IORead):
			st.IOReadCycles++
		case s.On(control.IOWrite):
			st.IOWriteCycles++
		default:
			st.InternalCycles++
		}
	}
	if s.On(control.IXYD) {
		st.IXYDTicks++
	}
	if mode.Reset {
		return
	}
	if mi == 1 && ti == 4 && !s.On(control.Valid) {
		st.Unrecognized++
	}

	switch {
	case s.On(control.SetIXIY), s.On(control.SetCBED):
		st.Prefixes++
	case s.On(control.SetM1) && !mode.InIntr && !mode.InNMI:
		st.Instructions++
		if isBlock(in.Vector) && !s.On(control.NonRep) {
			st.BlockRepeats++
		}
	}
}

func isBlock(v insts.Vector) bool {
	return v.Has(insts.ClassBlockLd) || v.Has(insts.ClassBlockCp) ||
		v.Has(insts.ClassBlockIn) || v.Has(insts.ClassBlockOut)
}

// Run ticks until the core halts with nothing left to wake it, or the
// configured tick budget is spent.
func (c *Core) Run() error {
	for !c.Halted() {
		if c.stats.Ticks >= c.config.MaxTicks {
			return fmt.Errorf("%w: %d ticks at PC=%04X", ErrTickLimit, c.stats.Ticks, c.regFile.PC)
		}
		if err := c.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunTicks simulates up to n ticks. It returns false once the core halts.
func (c *Core) RunTicks(n uint64) (bool, error) {
	for i := uint64(0); i < n; i++ {
		if c.Halted() {
			return false, nil
		}
		if err := c.Tick(); err != nil {
			return false, err
		}
	}
	return !c.Halted(), nil
}

// Step runs to the end of the current instruction, prefixes included, and
// returns the number of ticks it took.
func (c *Core) Step() (uint64, error) {
	start := c.stats.Ticks
	for {
		if err := c.Tick(); err != nil {
			return c.stats.Ticks - start, err
		}
		if c.pos == control.At(1, 1) && c.prefix == insts.TableMain && c.index == emu.IndexNone {
			return c.stats.Ticks - start, nil
		}
	}
}

// Reset returns the harness to its power-on state and clears statistics.
// Like the reset pin it clears IFF1, IFF2, IM, I and R; PC, the other
// registers and memory are left to the caller.
func (c *Core) Reset() {
	c.reset()
	c.ir, c.tmp = 0, 0
	c.intLine, c.resetPin = false, false
	c.events = nil
	c.stats = Stats{}
	if c.memo != nil {
		c.memo.Reset()
	}
	c.restart()
}
