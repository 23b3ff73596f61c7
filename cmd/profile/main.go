// Package main provides a profiling wrapper for the z80exec harness to
// identify performance bottlenecks in control vector evaluation.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/loader"
	"github.com/sarchlab/z80exec/numfmt"
	"github.com/sarchlab/z80exec/timing/core"
)

var (
	origin     = flag.Uint("origin", 0, "load address of raw binary images")
	noMemo     = flag.Bool("no-memo", false, "evaluate the control unit on every tick")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxTicks   = flag.Uint64("max-ticks", 10_000_000, "max T-states to simulate")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 || *origin > 0xFFFF {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.bin|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath, uint16(*origin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: %04Xh\n", prog.EntryPoint)

	start := time.Now()

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	stats, err := runProfile(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run stopped: %v\n", err)
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	p := numfmt.Default()
	p.Printf("T-states simulated: %d\n", stats.Ticks)
	p.Printf("Instructions executed: %d\n", stats.Instructions)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if stats.Ticks > 0 {
		p.Printf("T-states/second: %.0f\n", float64(stats.Ticks)/elapsed.Seconds())
	}
	if stats.Cache.Lookups > 0 {
		fmt.Printf("Memo hit rate: %.1f%%\n", 100*stats.Cache.HitRate())
	}
}

// runProfile runs the program on the harness until it halts or the tick
// budget is spent.
func runProfile(prog *loader.Program) (core.Stats, error) {
	memory := emu.NewMemory()
	regFile := &emu.RegFile{SP: 0xFFFF}
	if err := prog.LoadIntoMemory(memory); err != nil {
		return core.Stats{}, err
	}

	config := core.DefaultConfig()
	config.MaxTicks = *maxTicks
	config.EvalCache = !*noMemo

	c, err := core.NewCore(regFile, memory, core.WithConfig(config))
	if err != nil {
		return core.Stats{}, err
	}
	c.SetPC(prog.EntryPoint)

	err = c.Run()
	return c.Stats(), err
}
