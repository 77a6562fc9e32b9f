package callgraph

import "sort"

// SCC is one strongly connected component of the call graph, in the order
// Tarjan's algorithm discovered its members.
type SCC struct {
	Members []string
}

// SCCs computes the strongly connected components of g using an iterative
// Tarjan's algorithm (recursion depth in the naive formulation tracks call
// graph depth, which a pathological program could make large; the explicit
// stack keeps this bounded by heap, not host stack).
func SCCs(g *Graph) []SCC {
	adj := make(map[string][]string, len(g.G.Nodes))
	for _, n := range g.G.Nodes {
		adj[n] = nil
	}
	for _, e := range g.G.Edges {
		adj[e.Caller] = append(adj[e.Caller], e.Callee)
	}
	for n := range adj {
		sort.Strings(adj[n])
	}

	t := &tarjan{
		adj:     adj,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	nodes := append([]string(nil), g.G.Nodes...)
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, visited := t.index[n]; !visited {
			t.strongconnect(n)
		}
	}
	return t.result
}

type frame struct {
	node     string
	children []string
	ci       int
}

type tarjan struct {
	adj     map[string][]string
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	result  []SCC
}

func (t *tarjan) strongconnect(root string) {
	var work []*frame
	work = append(work, t.push(root))

	for len(work) > 0 {
		top := work[len(work)-1]

		if top.ci < len(top.children) {
			child := top.children[top.ci]
			top.ci++
			if _, visited := t.index[child]; !visited {
				work = append(work, t.push(child))
				continue
			}
			if t.onStack[child] {
				if t.lowlink[child] < t.lowlink[top.node] {
					t.lowlink[top.node] = t.lowlink[child]
				}
			}
			continue
		}

		// All children processed; pop and finalize.
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1]
			if t.lowlink[top.node] < t.lowlink[parent.node] {
				t.lowlink[parent.node] = t.lowlink[top.node]
			}
		}
		if t.lowlink[top.node] == t.index[top.node] {
			var members []string
			for {
				n := t.stack[len(t.stack)-1]
				t.stack = t.stack[:len(t.stack)-1]
				t.onStack[n] = false
				members = append(members, n)
				if n == top.node {
					break
				}
			}
			t.result = append(t.result, SCC{Members: members})
		}
	}
}

func (t *tarjan) push(n string) *frame {
	t.index[n] = t.counter
	t.lowlink[n] = t.counter
	t.counter++
	t.stack = append(t.stack, n)
	t.onStack[n] = true
	return &frame{node: n, children: t.adj[n]}
}
