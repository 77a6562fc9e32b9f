package render

import (
	"fmt"
	"sort"
	"strings"

	"avrstack/internal/callgraph"
)

// edgeColor returns the DOT color for a call-edge kind.
func edgeColor(kind callgraph.EdgeKind, t Theme) string {
	switch kind {
	case callgraph.EdgeTail:
		return t.EdgeTail
	case callgraph.EdgeIndirect:
		return t.EdgeIndirect
	case callgraph.EdgeRecursiveSelf:
		return t.EdgeRecursiveSelf
	default:
		return t.EdgeDirect
	}
}

// edgeStyle returns DOT style attributes for a call-edge kind.
func edgeStyle(kind callgraph.EdgeKind) string {
	switch kind {
	case callgraph.EdgeIndirect:
		return "dotted"
	case callgraph.EdgeRecursiveSelf:
		return "bold"
	default:
		return "solid"
	}
}

// CallgraphDOT renders the reconstructed call graph as Graphviz DOT.
// pathNodes, if non-nil, marks the worst-case longest path (as returned by
// stackdepth.Report.LongestPath) with PathFill.
func CallgraphDOT(g *callgraph.Graph, title string, t Theme, pathNodes []string) string {
	onPath := make(map[string]bool, len(pathNodes))
	for _, n := range pathNodes {
		onPath[n] = true
	}
	isrRoot := make(map[string]bool, len(g.HandlerRoots))
	for _, n := range g.HandlerRoots {
		isrRoot[n] = true
	}

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	nodes := append([]string(nil), g.G.Nodes...)
	sort.Strings(nodes)
	for _, name := range nodes {
		id := dotID(name)
		label := truncLabel(name, 60)
		switch {
		case name == callgraph.UnknownExternal:
			fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
				id, "unknown-external", t.ExternalFill)
		case onPath[name]:
			fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q];\n", id, label, t.PathFill)
		case isrRoot[name]:
			fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q];\n", id, label, t.ISRFill)
		default:
			fmt.Fprintf(&b, "  %s [label=%q];\n", id, label)
		}
	}
	b.WriteByte('\n')

	type edgeOut struct {
		caller, callee string
		kind           callgraph.EdgeKind
	}
	var edges []edgeOut
	for _, e := range g.G.Edges {
		meta, _ := g.EdgeMetaFor(e.Caller, e.Callee)
		edges = append(edges, edgeOut{e.Caller, e.Callee, meta.Kind})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].caller != edges[j].caller {
			return edges[i].caller < edges[j].caller
		}
		return edges[i].callee < edges[j].callee
	})

	for _, e := range edges {
		color := edgeColor(e.kind, t)
		style := edgeStyle(e.kind)
		fmt.Fprintf(&b, "  %s -> %s [color=%q, style=%q];\n", dotID(e.caller), dotID(e.callee), color, style)
	}

	b.WriteString("}\n")
	return b.String()
}

// CallgraphStats summarizes a reconstructed call graph for a text report.
type CallgraphStats struct {
	TotalFunctions int
	TotalEdges     int
	KindCounts     map[string]int
	UnresolvedCalls int
	TopCallers     []NameCount
	TopCallees     []NameCount
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string
	Count int
}

// ComputeStats computes summary statistics from a reconstructed call graph.
func ComputeStats(g *callgraph.Graph) CallgraphStats {
	stats := CallgraphStats{
		TotalEdges: len(g.G.Edges),
		KindCounts: make(map[string]int),
	}
	for _, n := range g.G.Nodes {
		if n != callgraph.UnknownExternal {
			stats.TotalFunctions++
		}
	}

	callerCount := make(map[string]int)
	calleeCount := make(map[string]int)

	for _, e := range g.G.Edges {
		meta, _ := g.EdgeMetaFor(e.Caller, e.Callee)
		stats.KindCounts[meta.Kind.String()]++
		callerCount[e.Caller]++
		calleeCount[e.Callee]++
		if e.Callee == callgraph.UnknownExternal {
			stats.UnresolvedCalls++
		}
	}

	stats.TopCallers = topNMap(callerCount, 20)
	stats.TopCallees = topNMap(calleeCount, 20)
	return stats
}

// topNMap returns the top N entries from a map, sorted descending by count
// then ascending by name for determinism.
func topNMap(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
