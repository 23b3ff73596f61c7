// Package benchmarks provides the T-state benchmark harness for the control
// unit.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/z80exec/emu"
	"github.com/sarchlab/z80exec/timing/core"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// TStates is the total tick count from the harness
	TStates uint64 `json:"t_states"`

	// ExpectedTStates is the documented count for the program
	ExpectedTStates uint64 `json:"expected_t_states"`

	// Instructions is the number of completed instructions
	Instructions uint64 `json:"instructions"`

	// TPI is T-states per instruction
	TPI float64 `json:"tpi"`

	// Machine cycles by kind
	FetchCycles    uint64 `json:"fetch_cycles"`
	ReadCycles     uint64 `json:"read_cycles"`
	WriteCycles    uint64 `json:"write_cycles"`
	IOCycles       uint64 `json:"io_cycles"`
	InternalCycles uint64 `json:"internal_cycles"`

	Prefixes     uint64 `json:"prefixes"`
	BlockRepeats uint64 `json:"block_repeats,omitempty"`
	Interrupts   uint64 `json:"interrupts,omitempty"`

	// Evaluation memo stats (if enabled)
	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// A is the accumulator at the final HALT
	A uint8 `json:"a"`

	// SimulatedTime is TStates at the configured clock
	SimulatedTime time.Duration `json:"simulated_time_ns"`

	// Error is set when the run did not reach a final HALT
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Match reports whether the run completed with the expected tick count.
func (r BenchmarkResult) Match() bool {
	return r.Error == "" && r.TStates == r.ExpectedTStates
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the register file and memory
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Origin is where Program is loaded and started
	Origin uint16

	// Program is the Z80 machine code to execute; it ends in HALT
	Program []byte

	// Ports holds the values IN reads
	Ports map[uint8]uint8

	// IRQAt lists ticks at which INT is asserted
	IRQAt []uint64

	// ExpectedTStates is the documented tick count
	ExpectedTStates uint64

	// ExpectedA is the accumulator at the final HALT
	ExpectedA uint8
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Core configures each run. Nil means core.DefaultConfig().
	Core *core.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Core:    core.DefaultConfig(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Core == nil {
		config.Core = core.DefaultConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d T-states\n", result.Name, result.TStates)
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		ExpectedTStates: bench.ExpectedTStates,
	}

	regFile := &emu.RegFile{SP: 0xF000}
	memory := emu.NewMemory()
	ports := emu.NewPorts()

	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}
	for port, v := range bench.Ports {
		ports.SetInput(port, v)
	}
	if err := memory.Load(bench.Origin, bench.Program); err != nil {
		result.Error = err.Error()
		return result
	}

	c, err := core.NewCore(regFile, memory,
		core.WithIOBus(ports),
		core.WithConfig(h.config.Core))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	c.SetPC(bench.Origin)
	for _, tick := range bench.IRQAt {
		c.Schedule(tick, core.EventIRQ)
	}

	start := time.Now()
	err = c.Run()
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	}

	stats := c.Stats()
	result.TStates = stats.Ticks
	result.Instructions = stats.Instructions
	result.TPI = stats.TicksPerInstruction()
	result.FetchCycles = stats.FetchCycles
	result.ReadCycles = stats.ReadCycles
	result.WriteCycles = stats.WriteCycles
	result.IOCycles = stats.IOReadCycles + stats.IOWriteCycles
	result.InternalCycles = stats.InternalCycles
	result.Prefixes = stats.Prefixes
	result.BlockRepeats = stats.BlockRepeats
	result.Interrupts = stats.Interrupts
	result.CacheHits = stats.Cache.Hits
	result.CacheMisses = stats.Cache.Misses
	result.A = regFile.A
	result.SimulatedTime = h.config.Core.Duration(stats.Ticks)

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Z80 Control Unit Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  A: %02Xh\n", r.A)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  T-states:         %d (expected %d)\n", r.TStates, r.ExpectedTStates)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions:     %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  TPI:              %.3f\n", r.TPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Time:   %v\n", r.SimulatedTime)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Machine Cycles ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Fetch:            %d\n", r.FetchCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Read:      %d\n", r.ReadCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Write:     %d\n", r.WriteCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  IO:               %d\n", r.IOCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Internal:         %d\n", r.InternalCycles)
		if r.Prefixes > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Prefixes:         %d\n", r.Prefixes)
		}
		if r.BlockRepeats > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Block Repeats:    %d\n", r.BlockRepeats)
		}
		if r.Interrupts > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Interrupts:       %d\n", r.Interrupts)
		}

		if r.CacheHits > 0 || r.CacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Evaluation Memo ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,t_states,expected,instructions,tpi,fetch,read,write,io,internal,prefixes,block_repeats,cache_hits,cache_misses,a")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.TStates,
			r.ExpectedTStates,
			r.Instructions,
			r.TPI,
			r.FetchCycles,
			r.ReadCycles,
			r.WriteCycles,
			r.IOCycles,
			r.InternalCycles,
			r.Prefixes,
			r.BlockRepeats,
			r.CacheHits,
			r.CacheMisses,
			r.A,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the harness
	Version string `json:"version"`

	// Config describes the harness configuration
	Config *core.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Matched is the number of benchmarks that hit their expected count
	Matched int `json:"matched"`

	// TotalTStates is the sum of all simulated T-states
	TotalTStates uint64 `json:"total_t_states"`

	// TotalInstructions is the sum of all completed instructions
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageTPI is the average T-states per instruction
	AverageTPI float64 `json:"average_tpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		s.TotalTStates += r.TStates
		s.TotalInstructions += r.Instructions
		s.TotalWallTime += r.WallTime
		if r.Match() {
			s.Matched++
		}
	}
	if s.TotalInstructions > 0 {
		s.AverageTPI = float64(s.TotalTStates) / float64(s.TotalInstructions)
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "0.1.0",
			Config:    h.config.Core,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
