package stackdepth

import (
	"strings"
	"testing"

	"avrstack/internal/callgraph"
	"avrstack/internal/diag"
	"avrstack/internal/frametable"
	"avrstack/internal/mcuprofile"
	"avrstack/internal/objdump"
	"avrstack/internal/sizereport"
)

func inst(addr uint64, mnemonic string, comment string, operands ...string) objdump.Instruction {
	return objdump.Instruction{Addr: addr, Mnemonic: mnemonic, Operands: operands, Comment: comment}
}

func table(entries map[string]int) frametable.Table {
	var lines string
	for name, bytes := range entries {
		lines += "f.c:1:1:" + name + "\t" + itoa(bytes) + "\tstatic\n"
	}
	tbl, err := frametable.Parse(strings.NewReader(lines), diag.ModeBestEffort, nil)
	if err != nil {
		panic(err)
	}
	return tbl
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func baseCfg() mcuprofile.Config {
	return mcuprofile.Config{
		MCU:                      "atmega328p",
		RAMTotal:                 2048,
		CallOverheadBytes:        2,
		ArgumentDomainDefault:    255,
		UnknownRecursionDepthCap: 32,
		ISRNamingPattern:         "__vector_",
	}
}

func TestSolve_LinearChain(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0, "call", "10 <a>", "10"),
		}},
		{Name: "a", Entry: 0x10, Insts: []objdump.Instruction{
			inst(10, "call", "20 <b>", "20"),
		}},
		{Name: "b", Entry: 0x20, Insts: []objdump.Instruction{
			inst(20, "ret", ""),
		}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"main": 10, "a": 20, "b": 30})
	sizes := sizereport.Sizes{Text: 100, Data: 0, Bss: 0}

	rep, err := Solve(g, frames, sizes, baseCfg(), diag.ModeBestEffort, &diag.Diags{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := 10 + 2 + 20 + 2 + 30 + 2
	if rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d", rep.StackWorstCase, want)
	}
	if rep.Overflow {
		t.Error("unexpected overflow")
	}
}

func TestSolve_RecursiveSelfMinusK(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "countdown", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0, "subi", "", "r24", "0x01"),
			inst(2, "rcall", "0 <countdown>", "0"),
		}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"countdown": 5})
	sizes := sizereport.Sizes{}
	cfg := baseCfg()

	rep, err := Solve(g, frames, sizes, cfg, diag.ModeBestEffort, &diag.Diags{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	wantMult := cfg.ArgumentDomainDefault/1 + 1 // ceil(255/1)+1
	want := (5 + cfg.CallOverheadBytes) * wantMult
	if rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d", rep.StackWorstCase, want)
	}
	if rep.BoundedByHeuristic {
		t.Error("minus_k is a closed form, should not be heuristic-bounded")
	}
}

func TestSolve_MutualRecursionIsHeuristicBounded(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "a", Entry: 1, Kind: objdump.KindEntry, Insts: []objdump.Instruction{inst(1, "rcall", "2 <b>", "2")}},
		{Name: "b", Entry: 2, Insts: []objdump.Instruction{inst(2, "rcall", "1 <a>", "1")}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"a": 8, "b": 12})
	cfg := baseCfg()

	rep, err := Solve(g, frames, sizereport.Sizes{}, cfg, diag.ModeBestEffort, &diag.Diags{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := (8 + cfg.CallOverheadBytes + 12 + cfg.CallOverheadBytes) * cfg.UnknownRecursionDepthCap
	if rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d", rep.StackWorstCase, want)
	}
	if !rep.BoundedByHeuristic {
		t.Error("mutual recursion should be flagged heuristic-bounded")
	}
}

func TestSolve_ISRComposesAdditively(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{inst(0, "ret", "")}},
		{Name: "__vector_3", Entry: 100, Kind: objdump.KindInterruptHandler, Insts: []objdump.Instruction{inst(100, "ret", "")}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"main": 16, "__vector_3": 24})
	cfg := baseCfg()

	rep, err := Solve(g, frames, sizereport.Sizes{}, cfg, diag.ModeBestEffort, &diag.Diags{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := (16 + cfg.CallOverheadBytes) + (24 + cfg.CallOverheadBytes) + cfg.CallOverheadBytes
	if rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d", rep.StackWorstCase, want)
	}
}

func TestSolve_OverflowDetected(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{inst(0, "ret", "")}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"main": 2000})
	cfg := baseCfg()
	cfg.RAMTotal = 512

	rep, err := Solve(g, frames, sizereport.Sizes{Data: 10, Bss: 10}, cfg, diag.ModeBestEffort, &diag.Diags{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !rep.Overflow {
		t.Error("expected overflow")
	}
	if rep.FreeRAM >= 0 {
		t.Errorf("FreeRAM = %d, want negative", rep.FreeRAM)
	}
}

func TestSolve_MissingFrameDefaultsToZeroWithWarning(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{inst(0, "ret", "")}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{}) // no entry for main
	d := &diag.Diags{}

	rep, err := Solve(g, frames, sizereport.Sizes{}, baseCfg(), diag.ModeBestEffort, d)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if want := baseCfg().CallOverheadBytes; rep.StackWorstCase != want {
		t.Errorf("StackWorstCase = %d, want %d (a 0-byte frame plus the call overhead)", rep.StackWorstCase, want)
	}
	if d.Count(diag.KindMissingFrame) != 1 {
		t.Errorf("missing-frame diagnostics = %d, want 1", d.Count(diag.KindMissingFrame))
	}
}

func TestSolve_UnresolvedCallCounted(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0, "icall", ""),
		}},
	}
	g := callgraph.Build(funcs)
	frames := table(map[string]int{"main": 4})
	d := &diag.Diags{}

	rep, err := Solve(g, frames, sizereport.Sizes{}, baseCfg(), diag.ModeBestEffort, d)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if rep.UnresolvedCalls != 1 {
		t.Errorf("UnresolvedCalls = %d, want 1", rep.UnresolvedCalls)
	}
}
