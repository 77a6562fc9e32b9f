// Package callgraph reconstructs a whole-program call graph from
// disassembled AVR functions: direct, relative, tail, and indirect call
// edges; address-taken function resolution for indirect calls; and
// recursion-pattern classification on self-loops.
package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"

	"avrstack/internal/objdump"
)

// EdgeKind classifies a call edge. Priority for multi-edge collapse, highest
// first: RecursiveSelf > Tail > Direct > Indirect.
type EdgeKind int

const (
	EdgeIndirect EdgeKind = iota
	EdgeDirect
	EdgeTail
	EdgeRecursiveSelf
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeDirect:
		return "direct"
	case EdgeIndirect:
		return "indirect"
	case EdgeTail:
		return "tail"
	case EdgeRecursiveSelf:
		return "recursive-self"
	default:
		return "unknown"
	}
}

// UnknownExternal is the sentinel callee name used when a call site has no
// identifiable target (spec.md §3's "Invariant: ... an edge's callee may be
// unknown-external").
const UnknownExternal = "<unknown-external>"

// EdgeMeta holds the fields of spec.md's call-edge tuple that lattice.Edge
// (just Caller/Callee) doesn't carry.
type EdgeMeta struct {
	Site    uint64
	Kind    EdgeKind
	Pattern RecursionPattern // meaningful only when Kind == EdgeRecursiveSelf
	PatternK int
}

type edgeKey struct {
	Caller, Callee string
}

// Graph is the reconstructed whole-program call graph: a lattice.Graph node
// set and deduplicated edge set, decorated with the per-edge metadata the
// solver needs.
type Graph struct {
	G            *lattice.Graph
	Meta         map[edgeKey]EdgeMeta
	Roots        []string // {main} ∪ interrupt handlers
	EntryRoots   []string // just {main}-kind roots
	HandlerRoots []string // just interrupt-handler roots
}

// EdgeMetaFor returns the metadata recorded for caller->callee, if any.
func (g *Graph) EdgeMetaFor(caller, callee string) (EdgeMeta, bool) {
	m, ok := g.Meta[edgeKey{caller, callee}]
	return m, ok
}

// Successors returns the set of distinct callees reachable directly from fn,
// in deterministic (sorted) order.
func (g *Graph) Successors(fn string) []string {
	var out []string
	for k := range g.Meta {
		if k.Caller == fn {
			out = append(out, k.Callee)
		}
	}
	sort.Strings(out)
	return out
}

func addEdge(raw map[edgeKey]EdgeMeta, caller, callee string, meta EdgeMeta) {
	key := edgeKey{caller, callee}
	existing, ok := raw[key]
	if !ok || meta.Kind > existing.Kind {
		raw[key] = meta
		return
	}
	// Same or lower priority kind: keep the existing, higher-priority entry.
}

// Build reconstructs the call graph from parsed functions. The root sets
// are seeded from each function's Kind, which the objdump parser already
// tagged (entry for main, interrupt handler by naming pattern).
func Build(funcs []objdump.Function) *Graph {
	byAddr := objdump.ByAddress(funcs)
	addressTaken := AddressTakenSet(funcs, byAddr)

	raw := make(map[edgeKey]EdgeMeta)
	nodeSet := make(map[string]bool, len(funcs)+1)

	for _, f := range funcs {
		nodeSet[f.Name] = true
	}
	nodeSet[UnknownExternal] = true

	for _, f := range funcs {
		for i, inst := range f.Insts {
			switch inst.Mnemonic {
			case "call", "rcall":
				callee, resolved := resolveDirectTarget(inst, byAddr)
				kind := EdgeDirect
				if resolved && callee == f.Name {
					kind = EdgeRecursiveSelf
				}
				if !resolved {
					callee = UnknownExternal
				}
				meta := EdgeMeta{Site: inst.Addr, Kind: kind}
				if kind == EdgeRecursiveSelf {
					meta.Pattern, meta.PatternK = ClassifyRecursion(f.Insts, i)
				}
				addEdge(raw, f.Name, callee, meta)

			case "icall", "eicall":
				if len(addressTaken) == 0 {
					addEdge(raw, f.Name, UnknownExternal, EdgeMeta{Site: inst.Addr, Kind: EdgeIndirect})
					continue
				}
				for _, callee := range addressTaken {
					kind := EdgeIndirect
					meta := EdgeMeta{Site: inst.Addr, Kind: kind}
					if callee == f.Name {
						meta.Kind = EdgeRecursiveSelf
						meta.Pattern, meta.PatternK = ClassifyRecursion(f.Insts, i)
					}
					addEdge(raw, f.Name, callee, meta)
				}

			case "jmp", "rjmp":
				// A jmp/rjmp only counts as a tail call when it targets
				// another function's entry point exactly (spec.md §4.3);
				// intra-function jumps (loops, if/else) resolve to no
				// function entry and are ignored here.
				callee, resolved := resolveDirectTarget(inst, byAddr)
				if !resolved {
					continue
				}
				kind := EdgeTail
				if callee == f.Name {
					kind = EdgeRecursiveSelf
				}
				meta := EdgeMeta{Site: inst.Addr, Kind: kind}
				if kind == EdgeRecursiveSelf {
					meta.Pattern, meta.PatternK = ClassifyRecursion(f.Insts, i)
				}
				addEdge(raw, f.Name, callee, meta)
			}
		}
	}

	g := &lattice.Graph{}
	for n := range nodeSet {
		g.Nodes = append(g.Nodes, n)
	}
	sort.Strings(g.Nodes)
	for k := range raw {
		g.Edges = append(g.Edges, lattice.Edge{Caller: k.Caller, Callee: k.Callee})
	}
	g.Dedup()

	roots := rootSet(funcs)

	return &Graph{
		G:            g,
		Meta:         raw,
		Roots:        roots,
		EntryRoots:   NonISRRoots(funcs),
		HandlerRoots: ISRRoots(funcs),
	}
}

func rootSet(funcs []objdump.Function) []string {
	var roots []string
	for _, f := range funcs {
		if f.Kind == objdump.KindEntry || f.Kind == objdump.KindInterruptHandler {
			roots = append(roots, f.Name)
		}
	}
	sort.Strings(roots)
	return roots
}

// NonISRRoots returns roots that are not interrupt handlers.
func NonISRRoots(funcs []objdump.Function) []string {
	var roots []string
	for _, f := range funcs {
		if f.Kind == objdump.KindEntry {
			roots = append(roots, f.Name)
		}
	}
	sort.Strings(roots)
	return roots
}

// ISRRoots returns interrupt-handler roots.
func ISRRoots(funcs []objdump.Function) []string {
	var roots []string
	for _, f := range funcs {
		if f.Kind == objdump.KindInterruptHandler {
			roots = append(roots, f.Name)
		}
	}
	sort.Strings(roots)
	return roots
}
