// Package main provides accuracy validation for the evaluation memo.
// Ensures that memoizing the control unit preserves simulation correctness.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sarchlab/z80exec/benchmarks"
	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/cache"
	"github.com/sarchlab/z80exec/timing/control"
	"github.com/sarchlab/z80exec/timing/core"
)

// sampleModes covers the mode bits that select alternate entries.
var sampleModes = []control.Mode{
	{},
	{CondTrue: true},
	{RepeatEn: true, FlagZ: true},
	{InIntr: true, IM1: true},
	{InIntr: true, IM2: true},
	{InNMI: true},
	{InHalt: true},
	{UseIXIY: true, CondTrue: true},
	{Reset: true},
}

// testMemoEvaluation validates that the memo returns exactly what the unit
// computes for every decode vector, position and sampled mode.
func testMemoEvaluation() bool {
	fmt.Println("Testing memoized evaluation accuracy...")

	unit := control.MustNew()
	memo := cache.New(cache.DefaultConfig(), unit)
	vectors := insts.NewDecoder().Vectors()

	checked := 0
	// Two passes: the first fills the memo, the second reads it back.
	for pass := 0; pass < 2; pass++ {
		for _, v := range vectors {
			for m := 1; m <= control.MaxCycle; m++ {
				for t := 1; t <= control.MaxCycle; t++ {
					for _, mode := range sampleModes {
						in := control.Inputs{Vector: v, Pos: control.At(m, t), Mode: mode}
						if got, want := memo.Evaluate(in), unit.Evaluate(in); got != want {
							fmt.Printf("❌ Mismatch for %v at %v\n", v, in.Pos)
							fmt.Printf("  memo: %v\n", got)
							fmt.Printf("  unit: %v\n", want)
							return false
						}
						checked++
					}
				}
			}
		}
	}

	stats := memo.Stats()
	fmt.Printf("✅ %d evaluations agree (hit rate %.1f%%)\n", checked, stats.HitRate()*100)
	return true
}

// testBenchmarkExecution validates that every microbenchmark ends in the
// same state and takes the same time with and without the memo.
func testBenchmarkExecution() bool {
	fmt.Println("\nTesting benchmark execution accuracy...")

	run := func(memo bool) []benchmarks.BenchmarkResult {
		config := benchmarks.DefaultConfig()
		config.Output = &bytes.Buffer{}
		config.Core = core.DefaultConfig()
		config.Core.EvalCache = memo
		harness := benchmarks.NewHarness(config)
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
		return harness.RunAll()
	}

	with, without := run(true), run(false)
	for i := range with {
		a, b := with[i], without[i]
		if a.TStates != b.TStates || a.A != b.A || a.Instructions != b.Instructions {
			fmt.Printf("❌ %s differs:\n", a.Name)
			fmt.Printf("  memo:    t=%d insts=%d A=%02X\n", a.TStates, a.Instructions, a.A)
			fmt.Printf("  no memo: t=%d insts=%d A=%02X\n", b.TStates, b.Instructions, b.A)
			return false
		}
		fmt.Printf("✅ %s: t=%d insts=%d A=%02X\n", a.Name, a.TStates, a.Instructions, a.A)
	}

	return true
}

// testMemoReset validates that a reset memo starts cold and still agrees.
func testMemoReset() bool {
	fmt.Println("\nTesting memo reset behavior...")

	unit := control.MustNew()
	memo := cache.New(cache.DefaultConfig(), unit)
	in := control.Inputs{
		Vector: insts.NewDecoder().Decode(0x10, insts.TableMain),
		Pos:    control.At(1, 4),
	}

	memo.Evaluate(in)
	memo.Evaluate(in)
	if memo.Stats().Hits == 0 {
		fmt.Println("❌ Repeated lookup did not hit")
		return false
	}

	memo.Reset()
	if memo.Stats() != (cache.Statistics{}) {
		fmt.Printf("❌ Statistics survived reset: %+v\n", memo.Stats())
		return false
	}
	if memo.Evaluate(in) != unit.Evaluate(in) || memo.Stats().Misses != 1 {
		fmt.Println("❌ Post-reset lookup was not a fresh miss")
		return false
	}

	fmt.Println("✅ Memo reset behavior validated")
	return true
}

func main() {
	fmt.Println("Z80Exec Accuracy Validation - Evaluation Memo")
	fmt.Println("=============================================")

	allPassed := true

	if !testMemoEvaluation() {
		allPassed = false
	}

	if !testBenchmarkExecution() {
		allPassed = false
	}

	if !testMemoReset() {
		allPassed = false
	}

	fmt.Println("\n=============================================")
	if allPassed {
		fmt.Println("🎉 ALL ACCURACY TESTS PASSED")
		fmt.Println("✅ The memo preserves simulation correctness")
		os.Exit(0)
	} else {
		fmt.Println("❌ ACCURACY TESTS FAILED")
		fmt.Println("🚨 The memo may have introduced errors")
		os.Exit(1)
	}
}
