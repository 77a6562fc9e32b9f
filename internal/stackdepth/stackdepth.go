// Package stackdepth solves the worst-case call-stack depth of a whole
// program from its call graph and per-function frame sizes: SCC
// condensation turns the (possibly cyclic) call graph into a DAG, each SCC
// is assigned a local cost (a closed-form recursion-depth bound for
// self-recursive functions, a configured cap for mutual recursion, the raw
// frame size otherwise), and a reverse-topological longest-path walk over
// the condensation yields the answer.
package stackdepth

import (
	"math"
	"math/bits"
	"sort"

	"github.com/samber/lo"

	"avrstack/internal/callgraph"
	"avrstack/internal/diag"
	"avrstack/internal/frametable"
	"avrstack/internal/mcuprofile"
	"avrstack/internal/sizereport"
)

// Report is the analysis result: spec.md §6's output record.
type Report struct {
	MCU                string   `json:"mcu"`
	RAMTotal           int      `json:"ram_total"`
	DataBytes          int      `json:"data_bytes"`
	BssBytes           int      `json:"bss_bytes"`
	StackWorstCase     int      `json:"stack_worst_case"`
	FreeRAM            int      `json:"free_ram"`
	Overflow           bool     `json:"overflow"`
	BoundedByHeuristic bool     `json:"bounded_by_heuristic"`
	UnresolvedCalls    int      `json:"unresolved_calls"`
	LongestPath        []string `json:"longest_path,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Solve runs the full stage-5 algorithm: SCC condensation, per-SCC cost
// assignment, and reverse-topological longest-path search from every root
// (non-ISR roots and ISR roots are solved separately and composed
// additively, per spec.md §5's ISR model).
func Solve(g *callgraph.Graph, frames frametable.Table, sizes sizereport.Sizes, cfg mcuprofile.Config, mode diag.Mode, d *diag.Diags) (Report, error) {
	sccs := callgraph.SCCs(g)

	sccOf := make(map[string]int, len(g.G.Nodes))
	for i, s := range sccs {
		for _, m := range s.Members {
			sccOf[m] = i
		}
	}

	costs := make([]sccCost, len(sccs))
	boundedByHeuristic := false
	for i, s := range sccs {
		c := computeCost(s, g, frames, cfg, d)
		costs[i] = c
		if c.heuristic {
			boundedByHeuristic = true
		}
	}

	succs := make([][]int, len(sccs))
	for i, s := range sccs {
		seen := make(map[int]bool)
		for _, m := range s.Members {
			for _, callee := range g.Successors(m) {
				j := sccOf[callee]
				if j == i || seen[j] {
					continue
				}
				seen[j] = true
				succs[i] = append(succs[i], j)
			}
		}
		sort.Ints(succs[i])
	}

	depth := make([]int, len(sccs))
	next := make([]int, len(sccs)) // successor SCC id chosen on the longest path, or -1
	for i := range next {
		next[i] = -1
	}
	unresolvedCalls := 0
	for key, meta := range g.Meta {
		if key.Callee == callgraph.UnknownExternal && meta.Kind != callgraph.EdgeRecursiveSelf {
			unresolvedCalls++
			d.Addf(diag.KindUnresolvedCall, "%s: call site 0x%x has no resolvable target", key.Caller, meta.Site)
		}
	}

	// sccs are produced in reverse topological order (a component is
	// finished, and appended, only after every component it can reach), so
	// processing in that order guarantees every successor's depth is
	// already known.
	for i := range sccs {
		best := 0
		bestJ := -1
		for _, j := range succs[i] {
			if depth[j] > best {
				best = depth[j]
				bestJ = j
			}
		}
		// Every SCC pays its own call_overhead_bytes unconditionally: it is
		// the cost of having been invoked at all, per spec.md §4.5's
		// Σ(F[v]+O) model, which charges O at the root (i=0) same as every
		// other node on the path. best already carries each successor's own
		// O (added when its depth was computed), so this adds exactly one O
		// per node on the path, never per edge.
		depth[i] = costs[i].bytes + cfg.CallOverheadBytes + best
		next[i] = bestJ
	}

	nonISRRoots := rootSCCs(sccOf, g.EntryRoots)
	isrRoots := rootSCCs(sccOf, g.HandlerRoots)
	if len(nonISRRoots) == 0 && len(isrRoots) == 0 {
		return Report{}, diag.Fatalf("stackdepth", "no reachable root: no entry function or interrupt handler in the call graph")
	}

	mainDepth, mainPath := maxOverRoots(nonISRRoots, depth, next, sccs)
	isrDepth, isrPath := maxOverRoots(isrRoots, depth, next, sccs)

	worst := mainDepth
	longest := mainPath
	if len(isrRoots) > 0 {
		worst = mainDepth + isrDepth + cfg.CallOverheadBytes
		longest = append(append([]string{}, mainPath...), isrPath...)
	}

	freeRAM := cfg.RAMTotal - sizes.Data - sizes.Bss - worst

	rep := Report{
		MCU:                cfg.MCU,
		RAMTotal:           cfg.RAMTotal,
		DataBytes:          sizes.Data,
		BssBytes:           sizes.Bss,
		StackWorstCase:     worst,
		FreeRAM:            freeRAM,
		Overflow:           freeRAM < 0,
		BoundedByHeuristic: boundedByHeuristic,
		UnresolvedCalls:    unresolvedCalls,
		LongestPath:        longest,
	}
	if d != nil {
		rep.Warnings = d.Strings()
	}
	return rep, nil
}

type sccCost struct {
	bytes     int
	heuristic bool
}

// computeCost assigns an SCC its local stack-byte contribution:
//   - a plain singleton (no self-loop) costs its own frame size.
//   - a self-recursive singleton costs its frame size plus
//     call_overhead_bytes, times the closed-form depth bound for its
//     classified recursion pattern.
//   - a multi-member SCC (mutual recursion) has no closed form here; it
//     costs the sum of every member's frame size plus call_overhead_bytes,
//     times the configured safety cap, and is flagged as heuristic-bounded.
//
// Solve adds one call_overhead_bytes to every SCC itself, so the two
// recursive costs above are returned less that one call_overhead_bytes.
// computeCost never escalates to a fatal error: spec.md §7 only lets
// Recoverable-parse abort under --strict, so Missing-frame and
// Heuristic-bound are recorded straight into d rather than routed through
// diag.Recover's strict-mode check.
func computeCost(s callgraph.SCC, g *callgraph.Graph, frames frametable.Table, cfg mcuprofile.Config, d *diag.Diags) sccCost {
	frame := func(name string) int {
		if name == callgraph.UnknownExternal {
			return 0
		}
		e, ok := frames.Lookup(name)
		if !ok {
			d.Addf(diag.KindMissingFrame, "no frame-size entry for %q, assuming 0", name)
			return 0
		}
		return e.Bytes
	}

	if len(s.Members) == 1 {
		name := s.Members[0]
		meta, selfLoop := g.EdgeMetaFor(name, name)
		if !selfLoop || meta.Kind != callgraph.EdgeRecursiveSelf {
			return sccCost{bytes: frame(name)}
		}
		mult, heuristic := depthMultiplier(meta.Pattern, meta.PatternK, cfg)
		if heuristic {
			d.Addf(diag.KindHeuristicBound,
				"%q: recursion pattern unresolved, using configured depth cap %d", name, cfg.UnknownRecursionDepthCap)
		}
		return sccCost{bytes: (frame(name)+cfg.CallOverheadBytes)*mult - cfg.CallOverheadBytes, heuristic: heuristic}
	}

	levelCosts := lo.Map(s.Members, func(m string, _ int) int { return frame(m) + cfg.CallOverheadBytes })
	d.Addf(diag.KindHeuristicBound,
		"mutually recursive group %v: no closed-form bound, using configured depth cap %d", s.Members, cfg.UnknownRecursionDepthCap)
	return sccCost{bytes: lo.Sum(levelCosts)*cfg.UnknownRecursionDepthCap - cfg.CallOverheadBytes, heuristic: true}
}

// depthMultiplier implements spec.md §5's closed-form recursion-depth
// bounds. U is the configured argument-domain bound.
func depthMultiplier(p callgraph.RecursionPattern, k int, cfg mcuprofile.Config) (mult int, heuristic bool) {
	u := cfg.ArgumentDomainDefault
	if k <= 0 {
		return cfg.UnknownRecursionDepthCap, true
	}
	switch p {
	case callgraph.PatternMinusK:
		return ceilDiv(u, k) + 1, false
	case callgraph.PatternDivK:
		if k <= 1 {
			return cfg.UnknownRecursionDepthCap, true
		}
		return ceilLog(u, k) + 1, false
	case callgraph.PatternShiftK:
		uBits := bits.Len(uint(u))
		if uBits == 0 {
			uBits = 1
		}
		return ceilDiv(uBits, k) + 1, false
	default:
		return cfg.UnknownRecursionDepthCap, true
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// ceilLog returns ceil(log_base(x)) for x >= 1, base >= 2.
func ceilLog(x, base int) int {
	if x <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log(float64(x)) / math.Log(float64(base))))
}

func rootSCCs(sccOf map[string]int, names []string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range names {
		id, ok := sccOf[n]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func maxOverRoots(roots []int, depth []int, next []int, sccs []callgraph.SCC) (int, []string) {
	best := 0
	bestRoot := -1
	for _, r := range roots {
		if bestRoot == -1 || depth[r] > best {
			best = depth[r]
			bestRoot = r
		}
	}
	if bestRoot == -1 {
		return 0, nil
	}
	var path []string
	for i := bestRoot; i != -1; i = next[i] {
		path = append(path, sccs[i].Members...)
	}
	return best, path
}
