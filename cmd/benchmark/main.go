// Command benchmark runs the Z80 T-state benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv      Output results in CSV format (default: human-readable)
//	-json     Output results as a JSON report
//	-core     Run only the quick validation set
//	-no-memo  Disable the control vector memo
//	-config   Harness configuration JSON file
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every benchmark carries its documented T-state total; the command exits
// non-zero when a run disagrees with it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/z80exec/benchmarks"
	"github.com/sarchlab/z80exec/numfmt"
	"github.com/sarchlab/z80exec/timing/core"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	coreOnly := flag.Bool("core", false, "Run only the quick validation set")
	noMemo := flag.Bool("no-memo", false, "Disable the control vector memo")
	configPath := flag.String("config", "", "Path to harness configuration JSON file")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	if *configPath != "" {
		c, err := core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(2)
		}
		config.Core = c
	}
	if *noMemo {
		config.Core.EvalCache = false
	}
	config.Output = os.Stdout

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	// Print configuration
	if !*csvOutput && !*jsonOutput {
		fmt.Println("Z80 Control Unit Benchmark Harness")
		fmt.Println("==================================")
		fmt.Printf("Clock: %d Hz\n", config.Core.ClockHz)
		fmt.Printf("Memo:  %v\n", config.Core.EvalCache)
		fmt.Println("")
	}

	// Run benchmarks
	results := harness.RunAll()

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(2)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		p := numfmt.Default()
		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Printf("Matched:      %d/%d\n", summary.Matched, summary.TotalBenchmarks)
		p.Printf("T-states:     %d\n", summary.TotalTStates)
		p.Printf("Instructions: %d\n", summary.TotalInstructions)
		fmt.Printf("Average TPI:  %.3f\n", summary.AverageTPI)
	}

	failed := false
	for _, r := range results {
		if !r.Match() {
			fmt.Fprintf(os.Stderr, "%s: %d T-states, expected %d %s\n",
				r.Name, r.TStates, r.ExpectedTStates, r.Error)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
