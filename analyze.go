// Package avrstack statically bounds the worst-case call-stack depth of an
// AVR firmware image from its disassembly, its per-function frame sizes,
// and its linked section sizes, without executing the target.
package avrstack

import (
	"io"

	"avrstack/internal/callgraph"
	"avrstack/internal/diag"
	"avrstack/internal/frametable"
	"avrstack/internal/mcuprofile"
	"avrstack/internal/objdump"
	"avrstack/internal/sizereport"
	"avrstack/internal/stackdepth"
)

// Inputs bundles the three textual artifacts the analysis reads: an
// avr-gcc -fstack-usage listing, an avr-objdump -d disassembly, and an
// avr-size Berkeley-format summary.
type Inputs struct {
	FrameUsage   io.Reader
	Disassembly  io.Reader
	SectionSizes io.Reader
}

// Report is the result of a full analysis run, re-exported from
// internal/stackdepth so callers need only import this package.
type Report = stackdepth.Report

// Analyze runs the whole pipeline — frame-table parsing, disassembly
// parsing, call-graph reconstruction, and worst-case depth solving — as one
// pure function from inputs and configuration to a Report. It never mutates
// global state and is safe to call concurrently with different Inputs.
func Analyze(in Inputs, cfg mcuprofile.Config, mode diag.Mode) (Report, error) {
	d := &diag.Diags{}

	frames, err := frametable.Parse(in.FrameUsage, mode, d)
	if err != nil {
		return Report{}, err
	}

	funcs, err := objdump.Parse(in.Disassembly, cfg.ISRNamingPattern, mode, d)
	if err != nil {
		return Report{}, err
	}

	sizes, err := sizereport.Parse(in.SectionSizes)
	if err != nil {
		return Report{}, err
	}

	g := callgraph.Build(funcs)

	return stackdepth.Solve(g, frames, sizes, cfg, mode, d)
}
