// Validate the decode and evaluate path - measures allocations per tick
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/cache"
	"github.com/sarchlab/z80exec/timing/control"
)

func main() {
	decoder := insts.NewDecoder()
	unit := control.MustNew()
	memo := cache.New(cache.DefaultConfig(), unit)

	// The body of a DJNZ loop: INC A, ADD A,(HL), DJNZ.
	program := []uint8{0x3C, 0x86, 0x10}
	lengths := []int{4, 7, 13}

	tick := func() int {
		n := 0
		for i, op := range program {
			v := decoder.Decode(op, insts.TableMain)
			for m := 1; m <= control.MaxCycle; m++ {
				for t := 1; t <= control.MaxCycle && n < lengths[i]; t++ {
					memo.Evaluate(control.Inputs{
						Vector: v,
						Pos:    control.At(m, t),
						Mode:   control.Mode{CondTrue: true},
					})
					n++
				}
			}
		}
		return n
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		tick()
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000
	totalTicks := 0

	for i := 0; i < iterations; i++ {
		totalTicks += tick()
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decode/Evaluate Validation Results:\n")
	fmt.Printf("===================================\n")
	fmt.Printf("Total evaluations: %d\n", totalTicks)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Evaluations per second: %.0f\n", float64(totalTicks)/elapsed.Seconds())
	fmt.Printf("Memo hit rate: %.1f%%\n", memo.Stats().HitRate()*100)
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per evaluation: %.3f\n", float64(allocations)/float64(totalTicks))
	fmt.Printf("Bytes per evaluation: %.1f\n", float64(allocatedBytes)/float64(totalTicks))

	if allocations == 0 {
		fmt.Printf("\n✅ SUCCESS: Zero allocations detected!\n")
	} else if float64(allocations)/float64(totalTicks) < 0.1 {
		fmt.Printf("\n✅ GOOD: Low allocation rate (< 0.1 per evaluation)\n")
	} else {
		fmt.Printf("\n⚠️  WARNING: High allocation rate detected\n")
	}
}
