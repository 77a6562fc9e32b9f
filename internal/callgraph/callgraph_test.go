package callgraph

import (
	"testing"

	"avrstack/internal/objdump"
)

func inst(addr uint64, mnemonic string, comment string, operands ...string) objdump.Instruction {
	return objdump.Instruction{Addr: addr, Mnemonic: mnemonic, Operands: operands, Comment: comment}
}

func TestBuild_DirectCall(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0x68, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x6a, "call", "0xa0 <adc_read>", "0xa0"),
		}},
		{Name: "adc_read", Entry: 0xa0, Insts: []objdump.Instruction{
			inst(0xa2, "ret", ""),
		}},
	}
	g := Build(funcs)
	meta, ok := g.EdgeMetaFor("main", "adc_read")
	if !ok {
		t.Fatal("expected main->adc_read edge")
	}
	if meta.Kind != EdgeDirect {
		t.Errorf("Kind = %v, want EdgeDirect", meta.Kind)
	}
}

func TestBuild_TailCall(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "__vectors", Entry: 0x0, Insts: []objdump.Instruction{
			inst(0x0, "jmp", "0x68 <main>", "0x68"),
		}},
		{Name: "main", Entry: 0x68, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x6a, "ret", ""),
		}},
	}
	g := Build(funcs)
	meta, ok := g.EdgeMetaFor("__vectors", "main")
	if !ok || meta.Kind != EdgeTail {
		t.Fatalf("expected tail edge __vectors->main, got %+v ok=%v", meta, ok)
	}
}

func TestBuild_RecursiveSelf_MinusK(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "countdown", Entry: 0x100, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x100, "subi", "", "r24", "0x01"),
			inst(0x102, "rcall", "0x100 <countdown>", "0x100"),
			inst(0x104, "ret", ""),
		}},
	}
	g := Build(funcs)
	meta, ok := g.EdgeMetaFor("countdown", "countdown")
	if !ok {
		t.Fatal("expected self edge")
	}
	if meta.Kind != EdgeRecursiveSelf {
		t.Errorf("Kind = %v, want EdgeRecursiveSelf", meta.Kind)
	}
	if meta.Pattern != PatternMinusK || meta.PatternK != 1 {
		t.Errorf("Pattern = %v k=%d, want minus_k k=1", meta.Pattern, meta.PatternK)
	}
}

func TestBuild_IndirectCall_AddressTaken(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "dispatch", Entry: 0x200, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x200, "ldi", "", "r30", "pm_lo8(handler_a)"),
			inst(0x202, "ldi", "", "r31", "pm_hi8(handler_a)"),
			inst(0x204, "icall", ""),
		}},
		{Name: "handler_a", Entry: 0x300, Insts: []objdump.Instruction{
			inst(0x300, "ret", ""),
		}},
	}
	g := Build(funcs)
	meta, ok := g.EdgeMetaFor("dispatch", "handler_a")
	if !ok || meta.Kind != EdgeIndirect {
		t.Fatalf("expected indirect edge dispatch->handler_a, got %+v ok=%v", meta, ok)
	}
}

func TestBuild_IndirectCall_NoAddressTakenIsUnknownExternal(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "dispatch", Entry: 0x200, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x204, "icall", ""),
		}},
	}
	g := Build(funcs)
	if _, ok := g.EdgeMetaFor("dispatch", UnknownExternal); !ok {
		t.Fatal("expected dispatch->unknown-external edge")
	}
}

func TestBuild_UnresolvedDirectCallIsUnknownExternal(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "main", Entry: 0x0, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x2, "call", "", "0xdead"),
		}},
	}
	g := Build(funcs)
	if _, ok := g.EdgeMetaFor("main", UnknownExternal); !ok {
		t.Fatal("expected main->unknown-external edge")
	}
}

func TestBuild_MultiEdgeCollapsePrefersRecursiveSelf(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "loopy", Entry: 0x10, Kind: objdump.KindEntry, Insts: []objdump.Instruction{
			inst(0x10, "call", "0x10 <loopy>", "0x10"),
			inst(0x12, "rcall", "0x10 <loopy>", "0x10"),
		}},
	}
	g := Build(funcs)
	if len(g.G.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 after collapse", len(g.G.Edges))
	}
	meta, _ := g.EdgeMetaFor("loopy", "loopy")
	if meta.Kind != EdgeRecursiveSelf {
		t.Errorf("Kind = %v, want EdgeRecursiveSelf", meta.Kind)
	}
}

func TestSCCs_DetectsCycle(t *testing.T) {
	funcs := []objdump.Function{
		{Name: "a", Entry: 1, Kind: objdump.KindEntry, Insts: []objdump.Instruction{inst(1, "rcall", "2 <b>", "2")}},
		{Name: "b", Entry: 2, Insts: []objdump.Instruction{inst(2, "rcall", "1 <a>", "1")}},
		{Name: "c", Entry: 3, Insts: []objdump.Instruction{inst(3, "ret", "")}},
	}
	g := Build(funcs)
	sccs := SCCs(g)

	var foundCycle bool
	for _, s := range sccs {
		if len(s.Members) == 2 {
			foundCycle = true
		}
		if len(s.Members) > 2 {
			t.Errorf("unexpected SCC size %d: %+v", len(s.Members), s.Members)
		}
	}
	if !foundCycle {
		t.Errorf("expected a 2-member SCC for the a<->b cycle, got %+v", sccs)
	}
}
