// Package control implements the instruction-execute control unit.
//
// Every clock tick the unit maps (decode vector, cycle position, mode flags)
// to the complete control signal vector. Evaluation runs three stages in a
// fixed order: Defaults assigns every line, the Matrix overrides lines for the
// decoded instruction classes at the current cycle position, and an ordered
// list of Rules applies reset, unrecognized-opcode completion and the
// instruction-boundary address reload.
package control

import (
	"fmt"
	"math/bits"
	"strings"
)

// Signal identifies one control line.
type Signal uint8

// Control lines.
const (
	ALatchWE  Signal = iota // address latch write enable
	ALatchSrc               // address latch source (Pair)
	Inc                     // incrementer mode (IncMode)
	IncWB                   // incrementer write-back target (Pair)
	PCInc                   // incrementer carry-in; cleared to hold PC
	RegSel                  // register file select for data-bus transfers (Pair)
	RegHiLo                 // byte lane of RegSel (HiLo)
	RegWE                   // write data bus into RegSel/RegHiLo
	BusDrv                  // data bus driver (BusSource)
	IR                      // instruction register load (IRLoad)
	Xfer                    // register pair transfer (Transfer)
	Iff                     // interrupt enable flip-flops (IffOp)
	SetIM                   // latch interrupt mode from op3..op4
	SetHalt                 // enter the halt state
	Fetch                   // opcode fetch cycle
	MRead                   // memory read cycle
	MWrite                  // memory write cycle
	IORead                  // IO read cycle
	IOWrite                 // IO write cycle
	IXYD                    // IX/IY + d address computation
	SetIXIY                 // set the index prefix latch
	SetCBED                 // set the CB/ED prefix latch
	NonRep                  // block instruction finished without repeating
	NextM                   // advance to the next machine cycle
	SetM1                   // restart at M1 T1
	Valid                   // a decoded class matched this tick

	NumSignals
)

var signalNames = [NumSignals]string{
	"al_we", "al_src", "inc", "inc_wb", "pc_inc", "reg_sel", "reg_hilo",
	"reg_we", "bus", "ir", "xfer", "iff", "set_im", "set_halt",
	"fFetch", "fMRead", "fMWrite", "fIORead", "fIOWrite",
	"ixy_d", "setIXIY", "setCBED", "nonRep", "nextM", "setM1", "validPLA",
}

// String returns the line name.
func (sig Signal) String() string {
	if sig < NumSignals {
		return signalNames[sig]
	}
	return fmt.Sprintf("signal(%d)", uint8(sig))
}

// Pair selects a register pair, or a pseudo source, for the address and
// data paths.
type Pair uint8

// Register pairs.
const (
	PairNone  Pair = iota
	PairPC
	PairSP
	PairBC
	PairDE
	PairHL    // HL, or IX/IY when the index prefix latch is set
	PairWZ    // internal memptr
	PairAF    // A is the high byte
	PairIR    // refresh address
	PairRP    // BC/DE/HL/SP selected by op4..op5
	PairRPAF  // BC/DE/HL/AF selected by op4..op5 (PUSH/POP)
	PairR8Src // 8-bit register selected by op0..op2
	PairR8Dst // 8-bit register selected by op3..op5
	PairTmp   // ALU operand latch
	PairZero  // constant zero
)

var pairNames = []string{
	"-", "PC", "SP", "BC", "DE", "HL", "WZ", "AF", "IR", "rp", "rp2", "r", "r'",
	"TMP", "0",
}

// String returns the pair name.
func (p Pair) String() string {
	if int(p) < len(pairNames) {
		return pairNames[p]
	}
	return "pair?"
}

// IncMode is the incrementer/decrementer mode.
type IncMode uint8

// Incrementer modes.
const (
	IncPass IncMode = iota // pass the address latch through
	IncUp                  // address latch + carry-in
	IncDown                // address latch - carry-in
	IncZero                // constant zero
)

// String returns the mode name.
func (m IncMode) String() string {
	switch m {
	case IncPass:
		return "pass"
	case IncUp:
		return "+1"
	case IncDown:
		return "-1"
	case IncZero:
		return "zero"
	}
	return "inc?"
}

// HiLo selects a byte lane.
type HiLo uint8

// Byte lanes.
const (
	HiLoNone HiLo = iota
	Lo
	Hi
)

// String returns the lane name.
func (h HiLo) String() string {
	switch h {
	case Lo:
		return "lo"
	case Hi:
		return "hi"
	}
	return "-"
}

// BusSource selects what drives the internal data bus.
type BusSource uint8

// Data bus sources.
const (
	BusNone BusSource = iota
	BusReg            // RegSel/RegHiLo drives the bus
	BusPins           // external data pins drive the bus
)

// String returns the source name.
func (b BusSource) String() string {
	switch b {
	case BusReg:
		return "reg"
	case BusPins:
		return "pins"
	}
	return "-"
}

// IRLoad controls the instruction register.
type IRLoad uint8

// Instruction register loads.
const (
	IRHold IRLoad = iota
	IRBus         // load from the data bus
	IRZero        // load 0x00 (NOP)
	IRRst         // load 0xFF (RST 38h)
)

// String returns the load name.
func (l IRLoad) String() string {
	switch l {
	case IRBus:
		return "bus"
	case IRZero:
		return "nop"
	case IRRst:
		return "rst"
	}
	return "-"
}

// Transfer is a register pair transfer performed inside the register file.
type Transfer uint8

// Transfers.
const (
	XferNone    Transfer = iota
	XferWZToPC           // PC <- WZ
	XferHLToPC           // PC <- HL
	XferHLToSP           // SP <- HL
	XferWZToHL           // HL <- WZ
	XferPCRel            // PC <- PC + signed Z
	XferRstToPC          // PC <- IR & 0x38
	XferNMIToPC          // PC <- 0x0066
	XferIToW             // W <- I
)

var transferNames = []string{
	"-", "PC<-WZ", "PC<-HL", "SP<-HL", "HL<-WZ", "PC<-PC+e", "PC<-rst",
	"PC<-nmi", "W<-I",
}

// String returns the transfer name.
func (x Transfer) String() string {
	if int(x) < len(transferNames) {
		return transferNames[x]
	}
	return "xfer?"
}

// IffOp updates the interrupt enable flip-flops.
type IffOp uint8

// Flip-flop operations.
const (
	IffHold    IffOp = iota
	IffSet           // EI
	IffClear         // DI
	IffRestore       // RETN: IFF1 <- IFF2
)

// String returns the operation name.
func (o IffOp) String() string {
	switch o {
	case IffSet:
		return "ei"
	case IffClear:
		return "di"
	case IffRestore:
		return "retn"
	}
	return "-"
}

// Signals is the complete control signal vector. Every line always holds a
// value; multi-valued lines store their enum value.
type Signals [NumSignals]uint8

// Get returns the raw value of a line.
func (s Signals) Get(sig Signal) uint8 { return s[sig] }

// On reports whether a line is non-zero.
func (s Signals) On(sig Signal) bool { return s[sig] != 0 }

// Set assigns a line.
func (s *Signals) Set(sig Signal, v uint8) { s[sig] = v }

// AddrSource returns the address latch source.
func (s Signals) AddrSource() Pair { return Pair(s[ALatchSrc]) }

// IncMode returns the incrementer mode.
func (s Signals) IncMode() IncMode { return IncMode(s[Inc]) }

// IncTarget returns the incrementer write-back target.
func (s Signals) IncTarget() Pair { return Pair(s[IncWB]) }

// Reg returns the data-path register select.
func (s Signals) Reg() Pair { return Pair(s[RegSel]) }

// Lane returns the data-path byte lane.
func (s Signals) Lane() HiLo { return HiLo(s[RegHiLo]) }

// Bus returns the data bus driver.
func (s Signals) Bus() BusSource { return BusSource(s[BusDrv]) }

// IRLoad returns the instruction register load.
func (s Signals) IRLoad() IRLoad { return IRLoad(s[IR]) }

// Transfer returns the register pair transfer.
func (s Signals) Transfer() Transfer { return Transfer(s[Xfer]) }

// IffOp returns the interrupt flip-flop operation.
func (s Signals) IffOp() IffOp { return IffOp(s[Iff]) }

// String renders the lines that differ from the idle vector.
func (s Signals) String() string {
	var parts []string
	if s.On(ALatchWE) {
		parts = append(parts, "AL<-"+s.AddrSource().String())
	}
	if s.IncMode() != IncPass || s.IncTarget() != PairNone {
		inc := "inc" + s.IncMode().String()
		if s.IncTarget() != PairNone {
			inc += ">" + s.IncTarget().String()
		}
		parts = append(parts, inc)
	}
	if !s.On(PCInc) {
		parts = append(parts, "!pc_inc")
	}
	switch {
	case s.On(RegWE):
		parts = append(parts, s.Reg().String()+"."+s.Lane().String()+"<-"+s.Bus().String())
	case s.Bus() != BusNone:
		parts = append(parts, "bus<-"+s.Bus().String()+":"+s.Reg().String()+"."+s.Lane().String())
	}
	if s.IRLoad() != IRHold {
		parts = append(parts, "IR<-"+s.IRLoad().String())
	}
	if s.Transfer() != XferNone {
		parts = append(parts, s.Transfer().String())
	}
	if s.IffOp() != IffHold {
		parts = append(parts, s.IffOp().String())
	}
	for _, sig := range []Signal{
		SetIM, SetHalt, Fetch, MRead, MWrite, IORead, IOWrite,
		IXYD, SetIXIY, SetCBED, NonRep, NextM, SetM1, Valid,
	} {
		if s.On(sig) {
			parts = append(parts, sig.String())
		}
	}
	return strings.Join(parts, " ")
}

// Mask is a set of control lines.
type Mask uint32

// AllSignals is the mask of every control line.
const AllSignals Mask = 1<<NumSignals - 1

// Has reports whether sig is in the mask.
func (m Mask) Has(sig Signal) bool { return m&(1<<sig) != 0 }

// List returns the lines in the mask.
func (m Mask) List() []Signal {
	var out []Signal
	for set := uint32(m); set != 0; set &= set - 1 {
		out = append(out, Signal(bits.TrailingZeros32(set)))
	}
	return out
}

// Override is a partial assignment of control lines.
type Override struct {
	mask Mask
	vals Signals
}

// Set returns a copy of o with sig assigned v.
func (o Override) Set(sig Signal, v uint8) Override {
	o.mask |= 1 << sig
	o.vals[sig] = v
	return o
}

// With returns o with every assignment of p added; p wins on shared lines.
func (o Override) With(p Override) Override {
	for _, sig := range p.mask.List() {
		o = o.Set(sig, p.vals[sig])
	}
	return o
}

// Without returns o with the given lines unassigned.
func (o Override) Without(sigs ...Signal) Override {
	for _, sig := range sigs {
		o.mask &^= 1 << sig
		o.vals[sig] = 0
	}
	return o
}

// Assigns reports whether o assigns sig.
func (o Override) Assigns(sig Signal) bool { return o.mask.Has(sig) }

// Value returns the value o assigns to sig.
func (o Override) Value(sig Signal) uint8 { return o.vals[sig] }

// Mask returns the assigned lines.
func (o Override) Mask() Mask { return o.mask }

// Empty reports whether o assigns nothing.
func (o Override) Empty() bool { return o.mask == 0 }

// Conflicts returns the lines both overrides assign with different values.
func (o Override) Conflicts(p Override) Mask {
	var out Mask
	for _, sig := range (o.mask & p.mask).List() {
		if o.vals[sig] != p.vals[sig] {
			out |= 1 << sig
		}
	}
	return out
}

// ApplyTo writes the assigned lines into s.
func (o Override) ApplyTo(s *Signals) {
	for set := uint32(o.mask); set != 0; set &= set - 1 {
		sig := bits.TrailingZeros32(set)
		s[sig] = o.vals[sig]
	}
}

// String renders the assignments.
func (o Override) String() string {
	parts := make([]string, 0, bits.OnesCount32(uint32(o.mask)))
	for _, sig := range o.mask.List() {
		parts = append(parts, fmt.Sprintf("%s=%d", sig, o.vals[sig]))
	}
	return strings.Join(parts, " ")
}
