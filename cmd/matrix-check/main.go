// Package main provides a CLI tool that builds the instruction matrix,
// verifies it against every decode vector and cross-checks each schedule
// against the reference T-state table.
//
// The first line of output is the number of mismatches.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/z80exec/insts"
	"github.com/sarchlab/z80exec/timing/control"
	"github.com/sarchlab/z80exec/timing/latency"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// sample is the first opcode decoding to a class.
type sample struct {
	table insts.Table
	op    uint8
	v     insts.Vector
}

type checker struct {
	matrix  *control.Matrix
	table   *latency.Table
	decoder *insts.Decoder
	errs    []string
}

func (k *checker) check(tbl insts.Table, op uint8, conds control.Cond, variant latency.Variant) {
	v := k.decoder.Decode(op, tbl)
	lengths := k.matrix.Schedule(v, conds)
	if lengths == nil {
		k.errs = append(k.errs, fmt.Sprintf("%s %02Xh under [%s]: no completing schedule", tbl, op, conds))
		return
	}
	if got, want := sum(lengths), k.table.Body(v, variant); got != want {
		k.errs = append(k.errs, fmt.Sprintf("%s %02Xh (%s) under [%s]: %s, reference %d",
			tbl, op, insts.Mnemonic(v), conds, format(lengths), want))
	}
}

func (k *checker) checkAll() {
	for _, tbl := range []insts.Table{insts.TableMain, insts.TableCB, insts.TableED} {
		for op := 0; op < 256; op++ {
			v := k.decoder.Decode(uint8(op), tbl)
			if !v.Valid() {
				continue
			}
			k.check(tbl, uint8(op), 0, latency.Variant{})
			if k.table.IsConditional(v) && (tbl != insts.TableED || v.OpBit(4)) {
				k.check(tbl, uint8(op), control.CondTaken|control.CondRepeat, latency.Variant{Alt: true})
			}
			if tbl == insts.TableMain && !isPrefix(v) {
				k.check(tbl, uint8(op), control.CondIndexed, latency.Variant{Indexed: true})
			}
		}
	}
	for op := 0; op < 256; op++ {
		k.check(insts.TableIndexedCB, uint8(op), control.CondIndexed, latency.Variant{Indexed: true})
	}

	rst := k.decoder.Decode(0xFF, insts.TableMain)
	for _, r := range []struct {
		conds control.Cond
		resp  latency.Response
	}{
		{control.CondIntAck | control.CondIM1, latency.ResponseIM1},
		{control.CondIntAck | control.CondIM2, latency.ResponseIM2},
		{control.CondNMI, latency.ResponseNMI},
	} {
		lengths := k.matrix.Schedule(rst, r.conds)
		if got, want := sum(lengths), k.table.ResponseTStates(r.resp); got != want {
			k.errs = append(k.errs, fmt.Sprintf("%s response: %s, reference %d", r.resp, format(lengths), want))
		}
	}
}

func isPrefix(v insts.Vector) bool {
	return v.Has(insts.ClassPrefixCB) || v.Has(insts.ClassPrefixED) || v.Has(insts.ClassPrefixXY)
}

func primary(v insts.Vector) (insts.Class, bool) {
	for _, c := range v.List() {
		if c != insts.ClassMemHL {
			return c, true
		}
	}
	return 0, false
}

func (k *checker) samples() map[insts.Class]sample {
	out := make(map[insts.Class]sample)
	for _, tbl := range []insts.Table{insts.TableMain, insts.TableCB, insts.TableED} {
		for op := 0; op < 256; op++ {
			v := k.decoder.Decode(uint8(op), tbl)
			c, ok := primary(v)
			if !ok {
				continue
			}
			if _, seen := out[c]; !seen {
				out[c] = sample{table: tbl, op: uint8(op), v: v}
			}
		}
	}
	return out
}

func sum(lengths []int) uint64 {
	var n uint64
	for _, l := range lengths {
		n += uint64(l)
	}
	return n
}

func format(lengths []int) string {
	if lengths == nil {
		return "-"
	}
	parts := make([]string, len(lengths))
	for i, l := range lengths {
		parts[i] = fmt.Sprint(l)
	}
	return fmt.Sprintf("%s=%d", strings.Join(parts, ","), sum(lengths))
}

func (k *checker) summary(w io.Writer, filter string, verbose bool) {
	samples := k.samples()
	fmt.Fprintf(w, "%-10s %7s  %-8s %-18s %-18s %s\n", "class", "entries", "sample", "base", "taken/repeat", "indexed")
	for c := insts.Class(1); c < insts.NumClasses; c++ {
		if filter != "" && !strings.EqualFold(filter, c.String()) {
			continue
		}
		s, ok := samples[c]
		if !ok {
			continue
		}
		alt, indexed := "-", "-"
		if k.table.IsConditional(s.v) {
			alt = format(k.matrix.Schedule(s.v, control.CondTaken|control.CondRepeat))
		}
		if k.table.Class(c).Indexed != 0 {
			indexed = format(k.matrix.Schedule(s.v, control.CondIndexed))
		}
		fmt.Fprintf(w, "%-10s %7d  %-8s %-18s %-18s %s\n",
			c, len(k.matrix.Entries(c)),
			fmt.Sprintf("%s:%02X", s.table, s.op),
			format(k.matrix.Schedule(s.v, 0)), alt, indexed)
		if verbose {
			for _, e := range k.matrix.Entries(c) {
				fmt.Fprintf(w, "    %s\n", e)
			}
		}
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("matrix-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timingPath := fs.String("timing", "", "Path to reference timing configuration JSON file")
	class := fs.String("class", "", "Summarise one class only")
	verbose := fs.Bool("v", false, "List every matrix entry of each class")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	config := latency.DefaultTimingConfig()
	if *timingPath != "" {
		var err error
		config, err = latency.LoadConfig(*timingPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading timing config: %v\n", err)
			return 2
		}
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid timing config: %v\n", err)
		return 2
	}

	decoder := insts.NewDecoder()
	unit, err := control.New(control.WithVectors(decoder.Vectors()))
	if err != nil {
		fmt.Fprintf(stderr, "Matrix build failed: %v\n", err)
		fmt.Fprintln(stdout, "1")
		return 1
	}

	k := &checker{
		matrix:  unit.Matrix(),
		table:   latency.NewTableWithConfig(config),
		decoder: decoder,
	}
	k.checkAll()

	fmt.Fprintf(stdout, "%d\n", len(k.errs))
	fmt.Fprintf(stdout, "Matrix: %d entries over %d decode vectors\n\n", k.matrix.Len(), len(decoder.Vectors()))
	k.summary(stdout, *class, *verbose)

	if len(k.errs) > 0 {
		fmt.Fprintf(stderr, "\nSchedule mismatches (%d):\n", len(k.errs))
		for _, e := range k.errs {
			fmt.Fprintf(stderr, "  %s\n", e)
		}
		return 1
	}
	return 0
}
