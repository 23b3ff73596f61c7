// Package main provides the entry point for z80exec.
// z80exec is a tick-accurate Z80 instruction-execute control unit with a
// datapath harness around it.
//
// For the full CLI, use: go run ./cmd/z80exec
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("z80exec - Z80 Instruction-Execute Control Unit")
	fmt.Println("Evaluation memo built on the Akita cache directory")
	fmt.Println("")
	fmt.Println("Usage: z80exec [options] <program.bin|program.hex>")
	fmt.Println("       z80exec [options] -script run.star")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -origin     Load address of raw binary images")
	fmt.Println("  -script     Starlark stimulus script")
	fmt.Println("  -config     Path to harness configuration JSON file")
	fmt.Println("  -trace      Print one line per tick")
	fmt.Println("  -v          Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/z80exec' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/matrix-check' to verify the instruction matrix.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/z80exec' instead.")
	}
}
