// Package stimulus loads Starlark scripts that describe a harness run: the
// program image, the initial register and memory state, the interrupt pin
// activity and the expected outcome.
//
// A script assigns any of these globals:
//
//	origin    = 0x0100                     # load address of program
//	entry     = 0x0100                     # initial PC, default origin
//	program   = [0x3E, 0x05, 0x76]         # list of bytes, or a bytes value
//	image     = "prog.hex"                 # file, relative to the script
//	registers = {"SP": 0x8000, "A": 1}
//	flags     = {"Z": True}
//	memory    = {0x8000: [1, 2, 3]}
//	ports     = {0x56: 0x9A}
//	vector    = 0xFF                       # interrupt acknowledge byte
//	im        = 1
//	iff       = True
//	irq       = [100]                      # ticks at which INT is asserted
//	irq_clear = [150]
//	nmi       = [400]
//	reset     = []
//	max_ticks = 100000
//	expect    = {"A": 8, "ticks": 22}
//
// The predeclared function word(n) returns the little-endian bytes of n.
package stimulus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/loader"
	"github.com/sarchlab/z80exec/timing/core"
)

// Event is a pin change at a tick.
type Event struct {
	Tick  uint64
	Event core.Event
}

// Stimulus is a decoded script.
type Stimulus struct {
	// Dir is the directory relative image paths resolve against.
	Dir string

	Origin   uint16
	Entry    uint16
	HasEntry bool
	Program  []byte
	Image    string

	Registers map[string]uint16
	Flags     map[string]bool
	Memory    map[uint16][]byte
	Ports     map[uint8]uint8

	Vector    uint8
	HasVector bool
	IM        uint8
	IFF       bool

	Events   []Event
	MaxTicks uint64
	Expect   map[string]uint64
}

// LoadFile parses a script file. print() output goes to out when it is not
// nil.
func LoadFile(path string, out io.Writer) (*Stimulus, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stimulus: %w", err)
	}
	s, err := Parse(path, src, out)
	if err != nil {
		return nil, err
	}
	s.Dir = filepath.Dir(path)
	return s, nil
}

// Parse executes a script and decodes its globals.
func Parse(filename string, src []byte, out io.Writer) (*Stimulus, error) {
	thread := &starlark.Thread{Name: filename}
	thread.Print = func(_ *starlark.Thread, msg string) {
		if out != nil {
			fmt.Fprintln(out, msg)
		}
	}
	predeclared := starlark.StringDict{
		"word": starlark.NewBuiltin("word", word),
	}

	opts := syntax.FileOptions{}
	globals, err := starlark.ExecFileOptions(&opts, thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("failed to run stimulus %s: %w", filename, err)
	}

	s := &Stimulus{Dir: "."}
	if err := s.decode(globals); err != nil {
		return nil, fmt.Errorf("stimulus %s: %w", filename, err)
	}
	return s, nil
}

func word(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	if n < 0 || n > 0xFFFF {
		return nil, fmt.Errorf("word: %d out of range", n)
	}
	return starlark.NewList([]starlark.Value{
		starlark.MakeInt(n & 0xFF),
		starlark.MakeInt(n >> 8),
	}), nil
}

func (s *Stimulus) decode(g starlark.StringDict) error {
	var err error
	if v, ok := g["origin"]; ok {
		if s.Origin, err = toUint16(v); err != nil {
			return fmt.Errorf("origin: %w", err)
		}
	}
	if v, ok := g["entry"]; ok {
		if s.Entry, err = toUint16(v); err != nil {
			return fmt.Errorf("entry: %w", err)
		}
		s.HasEntry = true
	}
	if v, ok := g["program"]; ok {
		if s.Program, err = toBytes(v); err != nil {
			return fmt.Errorf("program: %w", err)
		}
	}
	if v, ok := g["image"]; ok {
		str, isStr := starlark.AsString(v)
		if !isStr {
			return fmt.Errorf("image: want string, got %s", v.Type())
		}
		s.Image = str
	}
	if s.Program != nil && s.Image != "" {
		return fmt.Errorf("program and image are mutually exclusive")
	}

	if err := s.decodeState(g); err != nil {
		return err
	}
	return s.decodeRun(g)
}

func (s *Stimulus) decodeState(g starlark.StringDict) error {
	s.Registers = make(map[string]uint16)
	if err := eachItem(g, "registers", func(k, v starlark.Value) error {
		name, ok := starlark.AsString(k)
		if !ok {
			return fmt.Errorf("want string key, got %s", k.Type())
		}
		n, err := toUint16(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		s.Registers[name] = n
		return nil
	}); err != nil {
		return err
	}

	s.Flags = make(map[string]bool)
	if err := eachItem(g, "flags", func(k, v starlark.Value) error {
		name, ok := starlark.AsString(k)
		if !ok {
			return fmt.Errorf("want string key, got %s", k.Type())
		}
		s.Flags[name] = bool(v.Truth())
		return nil
	}); err != nil {
		return err
	}

	s.Memory = make(map[uint16][]byte)
	if err := eachItem(g, "memory", func(k, v starlark.Value) error {
		addr, err := toUint16(k)
		if err != nil {
			return err
		}
		data, err := toBytes(v)
		if err != nil {
			return fmt.Errorf("%04Xh: %w", addr, err)
		}
		s.Memory[addr] = data
		return nil
	}); err != nil {
		return err
	}

	s.Ports = make(map[uint8]uint8)
	return eachItem(g, "ports", func(k, v starlark.Value) error {
		port, err := toUint8(k)
		if err != nil {
			return err
		}
		val, err := toUint8(v)
		if err != nil {
			return fmt.Errorf("port %02Xh: %w", port, err)
		}
		s.Ports[port] = val
		return nil
	})
}

func (s *Stimulus) decodeRun(g starlark.StringDict) error {
	var err error
	if v, ok := g["vector"]; ok {
		if s.Vector, err = toUint8(v); err != nil {
			return fmt.Errorf("vector: %w", err)
		}
		s.HasVector = true
	}
	if v, ok := g["im"]; ok {
		if s.IM, err = toUint8(v); err != nil || s.IM > 2 {
			return fmt.Errorf("im: want 0, 1 or 2")
		}
	}
	if v, ok := g["iff"]; ok {
		s.IFF = bool(v.Truth())
	}
	if v, ok := g["max_ticks"]; ok {
		n, err := toInt(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("max_ticks: want a positive int")
		}
		s.MaxTicks = uint64(n)
	}

	for name, ev := range map[string]core.Event{
		"irq":       core.EventIRQ,
		"irq_clear": core.EventIRQClear,
		"nmi":       core.EventNMI,
		"reset":     core.EventReset,
	} {
		v, ok := g[name]
		if !ok {
			continue
		}
		ticks, err := toInts(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, t := range ticks {
			if t < 0 {
				return fmt.Errorf("%s: negative tick %d", name, t)
			}
			s.Events = append(s.Events, Event{Tick: uint64(t), Event: ev})
		}
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		if s.Events[i].Tick != s.Events[j].Tick {
			return s.Events[i].Tick < s.Events[j].Tick
		}
		return s.Events[i].Event < s.Events[j].Event
	})

	s.Expect = make(map[string]uint64)
	return eachItem(g, "expect", func(k, v starlark.Value) error {
		name, ok := starlark.AsString(k)
		if !ok {
			return fmt.Errorf("want string key, got %s", k.Type())
		}
		n, err := toInt(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: want a non-negative int", name)
		}
		s.Expect[name] = uint64(n)
		return nil
	})
}

func eachItem(g starlark.StringDict, name string, fn func(k, v starlark.Value) error) error {
	v, ok := g[name]
	if !ok {
		return nil
	}
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("%s: want dict, got %s", name, v.Type())
	}
	for _, item := range dict.Items() {
		if err := fn(item[0], item[1]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func toInt(v starlark.Value) (int64, error) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("want int, got %s", v.Type())
	}
	n, ok := i.Int64()
	if !ok {
		return 0, fmt.Errorf("%s out of range", i)
	}
	return n, nil
}

func toUint16(v starlark.Value) (uint16, error) {
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xFFFF {
		return 0, fmt.Errorf("%d does not fit 16 bits", n)
	}
	return uint16(n), nil
}

func toUint8(v starlark.Value) (uint8, error) {
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xFF {
		return 0, fmt.Errorf("%d does not fit 8 bits", n)
	}
	return uint8(n), nil
}

func toInts(v starlark.Value) ([]int64, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want list, got %s", v.Type())
	}
	it := iterable.Iterate()
	defer it.Done()

	var out []int64
	var x starlark.Value
	for it.Next(&x) {
		n, err := toInt(x)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func toBytes(v starlark.Value) ([]byte, error) {
	if b, ok := v.(starlark.Bytes); ok {
		return []byte(string(b)), nil
	}
	ints, err := toInts(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 0xFF {
			return nil, fmt.Errorf("element %d: %d does not fit a byte", i, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}

// LoadProgram returns the image the script describes.
func (s *Stimulus) LoadProgram() (*loader.Program, error) {
	if s.Image != "" {
		path := s.Image
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.Dir, path)
		}
		return loader.Load(path, s.Origin)
	}
	if len(s.Program) == 0 {
		return nil, fmt.Errorf("stimulus has neither program nor image")
	}
	return loader.Binary(s.Program, s.Origin)
}

// Configure applies the script's run limits to a harness configuration.
func (s *Stimulus) Configure(config *core.Config) {
	if s.MaxTicks != 0 {
		config.MaxTicks = s.MaxTicks
	}
}

// Apply loads the program and initial state and schedules the pin events.
// ports may be nil when the script uses no ports.
func (s *Stimulus) Apply(c *core.Core, regFile *emu.RegFile, memory *emu.Memory, ports *emu.Ports) error {
	prog, err := s.LoadProgram()
	if err != nil {
		return err
	}
	if err := prog.LoadIntoMemory(memory); err != nil {
		return err
	}
	for addr, data := range s.Memory {
		if err := memory.Load(addr, data); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
	}

	for name, v := range s.Registers {
		if err := regFile.SetNamed(name, v); err != nil {
			return fmt.Errorf("registers: %w", err)
		}
	}
	for name, on := range s.Flags {
		if err := regFile.SetFlag(name, on); err != nil {
			return fmt.Errorf("flags: %w", err)
		}
	}
	regFile.IM = s.IM
	regFile.IFF1, regFile.IFF2 = s.IFF, s.IFF

	if ports != nil {
		for port, v := range s.Ports {
			ports.SetInput(port, v)
		}
		if s.HasVector {
			ports.SetVector(s.Vector)
		}
	} else if len(s.Ports) > 0 || s.HasVector {
		return fmt.Errorf("script drives ports but no port space is attached")
	}

	entry := prog.EntryPoint
	if s.HasEntry {
		entry = s.Entry
	} else if _, ok := s.Registers["PC"]; ok {
		entry = regFile.PC
	}
	c.SetPC(entry)

	for _, ev := range s.Events {
		c.Schedule(ev.Tick, ev.Event)
	}
	return nil
}

// Check compares the final state against the script's expectations and
// returns one line per mismatch. Keys are register names plus "ticks",
// "instructions", "interrupts" and "nmis".
func (s *Stimulus) Check(regFile *emu.RegFile, stats core.Stats) ([]string, error) {
	keys := make([]string, 0, len(s.Expect))
	for k := range s.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		want := s.Expect[k]
		var got uint64
		switch k {
		case "ticks":
			got = stats.Ticks
		case "instructions":
			got = stats.Instructions
		case "interrupts":
			got = stats.Interrupts
		case "nmis":
			got = stats.NMIs
		default:
			v, err := regFile.Named(k)
			if err != nil {
				return nil, fmt.Errorf("expect: %w", err)
			}
			got = uint64(v)
		}
		if got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s: got %d (%#x), want %d (%#x)", k, got, got, want, want))
		}
	}
	return mismatches, nil
}
