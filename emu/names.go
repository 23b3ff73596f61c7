package emu

import (
	"fmt"
	"sort"
	"strings"
)

type named struct {
	get func(r *RegFile) uint16
	set func(r *RegFile, v uint16)
	// wide is set for 16-bit registers.
	wide bool
}

func byte8(get func(r *RegFile) *uint8) named {
	return named{
		get: func(r *RegFile) uint16 { return uint16(*get(r)) },
		set: func(r *RegFile, v uint16) { *get(r) = uint8(v) },
	}
}

func pair(p Pair) named {
	return named{
		get:  func(r *RegFile) uint16 { return r.Get16(p) },
		set:  func(r *RegFile, v uint16) { r.Set16(p, v) },
		wide: true,
	}
}

func shadow(hi, lo func(r *RegFile) *uint8) named {
	return named{
		get: func(r *RegFile) uint16 { return uint16(*hi(r))<<8 | uint16(*lo(r)) },
		set: func(r *RegFile, v uint16) {
			*hi(r), *lo(r) = uint8(v>>8), uint8(v)
		},
		wide: true,
	}
}

var registers = map[string]named{
	"A": byte8(func(r *RegFile) *uint8 { return &r.A }),
	"F": byte8(func(r *RegFile) *uint8 { return &r.F }),
	"B": byte8(func(r *RegFile) *uint8 { return &r.B }),
	"C": byte8(func(r *RegFile) *uint8 { return &r.C }),
	"D": byte8(func(r *RegFile) *uint8 { return &r.D }),
	"E": byte8(func(r *RegFile) *uint8 { return &r.E }),
	"H": byte8(func(r *RegFile) *uint8 { return &r.H }),
	"L": byte8(func(r *RegFile) *uint8 { return &r.L }),
	"I": byte8(func(r *RegFile) *uint8 { return &r.I }),
	"R": byte8(func(r *RegFile) *uint8 { return &r.R }),
	"W": byte8(func(r *RegFile) *uint8 { return &r.W }),
	"Z": byte8(func(r *RegFile) *uint8 { return &r.Z }),

	"AF": pair(AF),
	"BC": pair(BC),
	"DE": pair(DE),
	"HL": pair(HL),
	"SP": pair(SP),
	"PC": pair(PC),
	"WZ": pair(WZ),
	"IX": pair(IX),
	"IY": pair(IY),

	"AF'": shadow(func(r *RegFile) *uint8 { return &r.Alt.A }, func(r *RegFile) *uint8 { return &r.Alt.F }),
	"BC'": shadow(func(r *RegFile) *uint8 { return &r.Alt.B }, func(r *RegFile) *uint8 { return &r.Alt.C }),
	"DE'": shadow(func(r *RegFile) *uint8 { return &r.Alt.D }, func(r *RegFile) *uint8 { return &r.Alt.E }),
	"HL'": shadow(func(r *RegFile) *uint8 { return &r.Alt.H }, func(r *RegFile) *uint8 { return &r.Alt.L }),
}

// RegisterNames returns every name Named and SetNamed accept, sorted.
func RegisterNames() []string {
	names := make([]string, 0, len(registers))
	for n := range registers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Named reads a register by its assembler name, such as "A", "HL" or
// "BC'". Names are case-insensitive.
func (r *RegFile) Named(name string) (uint16, error) {
	reg, ok := registers[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("unknown register %q", name)
	}
	return reg.get(r), nil
}

// SetNamed writes a register by its assembler name. Values wider than the
// register are rejected.
func (r *RegFile) SetNamed(name string, v uint16) error {
	reg, ok := registers[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("unknown register %q", name)
	}
	if !reg.wide && v > 0xFF {
		return fmt.Errorf("value %04Xh does not fit register %s", v, name)
	}
	reg.set(r, v)
	return nil
}

var flagNames = map[string]uint8{
	"C": FlagC, "N": FlagN, "PV": FlagPV, "P": FlagPV, "V": FlagPV,
	"H": FlagH, "Z": FlagZ, "S": FlagS, "X": Flag3, "Y": Flag5,
}

// SetFlag sets or clears a flag of F by name (C, N, PV, H, Z, S, X, Y).
func (r *RegFile) SetFlag(name string, on bool) error {
	mask, ok := flagNames[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("unknown flag %q", name)
	}
	if on {
		r.F |= mask
	} else {
		r.F &^= mask
	}
	return nil
}

// String renders the main registers.
func (r *RegFile) String() string {
	return fmt.Sprintf("AF=%04X BC=%04X DE=%04X HL=%04X IX=%04X IY=%04X SP=%04X PC=%04X I=%02X R=%02X IFF=%t/%t IM=%d",
		r.Get16(AF), r.Get16(BC), r.Get16(DE), r.Get16(HL), r.IX, r.IY, r.SP, r.PC,
		r.I, r.R, r.IFF1, r.IFF2, r.IM)
}
