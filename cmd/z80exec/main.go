// Package main provides the z80exec command, which runs a Z80 program on
// the tick-accurate control unit harness.
//
// Usage:
//
//	z80exec [options] <program.bin|program.hex>
//	z80exec [options] -script run.star
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/loader"
	"github.com/sarchlab/z80exec/stimulus"
	"github.com/sarchlab/z80exec/timing/core"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	origin     uint
	sp         uint
	script     string
	configPath string
	maxTicks   uint64
	noMemo     bool
	trace      bool
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("z80exec", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.UintVar(&o.origin, "origin", 0, "Load address of raw binary images")
	fs.UintVar(&o.sp, "sp", 0xFFFF, "Initial stack pointer")
	fs.StringVar(&o.script, "script", "", "Starlark stimulus script")
	fs.StringVar(&o.configPath, "config", "", "Path to harness configuration JSON file")
	fs.Uint64Var(&o.maxTicks, "max-ticks", 0, "Override the tick limit")
	fs.BoolVar(&o.noMemo, "no-memo", false, "Evaluate the control unit on every tick")
	fs.BoolVar(&o.trace, "trace", false, "Print one line per tick")
	fs.BoolVar(&o.verbose, "v", false, "Verbose output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: z80exec [options] <program.bin|program.hex>\n")
		fmt.Fprintf(stderr, "       z80exec [options] -script run.star\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if o.origin > 0xFFFF || o.sp > 0xFFFF {
		return nil, fs, fmt.Errorf("origin and sp must fit 16 bits")
	}
	return o, fs, nil
}

func loadConfig(o *options) (*core.Config, error) {
	config := core.DefaultConfig()
	if o.configPath != "" {
		var err error
		config, err = core.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}
	if o.maxTicks != 0 {
		config.MaxTicks = o.maxTicks
	}
	if o.noMemo {
		config.EvalCache = false
	}
	return config, nil
}

// run executes the command and returns its exit status: 0 on success, 1 on
// failed expectations, 2 on usage or simulation errors.
func run(args []string, stdout, stderr io.Writer) int {
	o, fs, err := parseFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	var (
		script  *stimulus.Stimulus
		prog    *loader.Program
		program string
	)
	switch {
	case o.script != "":
		script, err = stimulus.LoadFile(o.script, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading script: %v\n", err)
			return 2
		}
		program = o.script
	case fs.NArg() == 1:
		program = fs.Arg(0)
		prog, err = loader.Load(program, uint16(o.origin))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading program: %v\n", err)
			return 2
		}
	default:
		fs.Usage()
		return 2
	}

	config, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 2
	}
	if script != nil {
		script.Configure(config)
	}

	regFile := &emu.RegFile{SP: uint16(o.sp)}
	memory := emu.NewMemory()
	ports := emu.NewPorts()

	opts := []core.Option{core.WithIOBus(ports), core.WithConfig(config)}
	if o.trace {
		opts = append(opts, core.WithTrace(stdout))
	}
	c, err := core.NewCore(regFile, memory, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if script != nil {
		if err := script.Apply(c, regFile, memory, ports); err != nil {
			fmt.Fprintf(stderr, "Error applying script: %v\n", err)
			return 2
		}
	} else {
		if err := prog.LoadIntoMemory(memory); err != nil {
			fmt.Fprintf(stderr, "Error loading program: %v\n", err)
			return 2
		}
		c.SetPC(prog.EntryPoint)
	}

	if o.verbose {
		fmt.Fprintf(stdout, "Loaded: %s\n", program)
		fmt.Fprintf(stdout, "Entry point: %04Xh\n", regFile.PC)
	}

	status := 0
	if err := c.Run(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		status = 2
	}

	report(stdout, program, c, regFile)
	if o.verbose {
		for _, w := range ports.Writes() {
			fmt.Fprintf(stdout, "OUT (%04Xh) <- %02Xh\n", w.Port, w.Value)
		}
	}

	if script != nil && status == 0 {
		mismatches, err := script.Check(regFile, c.Stats())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		for _, m := range mismatches {
			fmt.Fprintf(stdout, "FAIL %s\n", m)
		}
		if len(mismatches) > 0 {
			return 1
		}
		if len(script.Expect) > 0 {
			fmt.Fprintf(stdout, "PASS %d expectations\n", len(script.Expect))
		}
	}
	return status
}

func report(w io.Writer, program string, c *core.Core, regFile *emu.RegFile) {
	stats := c.Stats()

	mcycles := stats.FetchCycles + stats.AckCycles + stats.ReadCycles + stats.WriteCycles +
		stats.IOReadCycles + stats.IOWriteCycles + stats.InternalCycles
	total := mcycles
	if total == 0 {
		total = 1
	}
	pct := func(n uint64) float64 { return 100.0 * float64(n) / float64(total) }

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Program: %s\n", program)
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "Total T-states: %d\n", stats.Ticks)
	fmt.Fprintf(w, "TPI: %.2f\n", stats.TicksPerInstruction())
	fmt.Fprintf(w, "Simulated time: %v\n", c.Config().Duration(stats.Ticks))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Machine cycles: %d\n", mcycles)
	fmt.Fprintf(w, "  Opcode fetch:  %6d (%5.1f%%)\n", stats.FetchCycles, pct(stats.FetchCycles))
	fmt.Fprintf(w, "  Memory read:   %6d (%5.1f%%)\n", stats.ReadCycles, pct(stats.ReadCycles))
	fmt.Fprintf(w, "  Memory write:  %6d (%5.1f%%)\n", stats.WriteCycles, pct(stats.WriteCycles))
	fmt.Fprintf(w, "  IO read:       %6d (%5.1f%%)\n", stats.IOReadCycles, pct(stats.IOReadCycles))
	fmt.Fprintf(w, "  IO write:      %6d (%5.1f%%)\n", stats.IOWriteCycles, pct(stats.IOWriteCycles))
	fmt.Fprintf(w, "  Acknowledge:   %6d (%5.1f%%)\n", stats.AckCycles, pct(stats.AckCycles))
	fmt.Fprintf(w, "  Internal:      %6d (%5.1f%%)\n", stats.InternalCycles, pct(stats.InternalCycles))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Events:\n")
	fmt.Fprintf(w, "  Prefixes:      %d\n", stats.Prefixes)
	fmt.Fprintf(w, "  IX/IY+d ticks: %d\n", stats.IXYDTicks)
	fmt.Fprintf(w, "  Block repeats: %d\n", stats.BlockRepeats)
	fmt.Fprintf(w, "  Interrupts:    %d\n", stats.Interrupts)
	fmt.Fprintf(w, "  NMIs:          %d\n", stats.NMIs)
	if stats.Unrecognized > 0 {
		fmt.Fprintf(w, "  Unrecognized:  %d\n", stats.Unrecognized)
	}
	if stats.Cache.Lookups > 0 {
		fmt.Fprintf(w, "  Memo hit rate: %.1f%% of %d lookups\n", 100*stats.Cache.HitRate(), stats.Cache.Lookups)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Registers: %s\n", regFile)
}
