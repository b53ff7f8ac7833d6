package community

import "sort"

// EdgeAttr is what a community summary sees about an edge.
type EdgeAttr struct {
	Label       string
	Description string
}

// Graph is an undirected multigraph-free view of the stored triplets keyed by
// entity name. Setting an existing edge replaces its attributes.
type Graph struct {
	order []string
	adj   map[string]map[string]EdgeAttr
}

func NewGraph() *Graph {
	return &Graph{adj: make(map[string]map[string]EdgeAttr)}
}

func (g *Graph) addNode(name string) {
	if _, ok := g.adj[name]; ok {
		return
	}
	g.adj[name] = make(map[string]EdgeAttr)
	g.order = append(g.order, name)
}

// SetEdge connects a and b. A self-loop is kept as a neighbor of itself.
func (g *Graph) SetEdge(a, b string, attr EdgeAttr) {
	g.addNode(a)
	g.addNode(b)
	g.adj[a][b] = attr
	g.adj[b][a] = attr
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns node names in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Neighbors returns the neighbors of name sorted by name.
func (g *Graph) Neighbors(name string) []string {
	out := make([]string, 0, len(g.adj[name]))
	for n := range g.adj[name] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edge returns the attributes of the edge between a and b.
func (g *Graph) Edge(a, b string) (EdgeAttr, bool) {
	attr, ok := g.adj[a][b]
	return attr, ok
}
