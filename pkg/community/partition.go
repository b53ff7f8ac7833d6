package community

import (
	"math/rand/v2"
	"sort"

	louvain "gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Cluster assigns one node to one cluster. A node appears once per level it
// belongs to.
type Cluster struct {
	Node      string
	ClusterID int
	Level     int
}

// Partitioner splits a graph into clusters whose final level holds at most
// maxClusterSize nodes.
type Partitioner interface {
	Partition(g *Graph, maxClusterSize int) ([]Cluster, error)
}

// LouvainPartitioner clusters by Louvain modularity. Clusters larger than the
// maximum size are partitioned again one level down; when modularity cannot
// separate a cluster it is cut into name-ordered pieces.
type LouvainPartitioner struct {
	Resolution float64
	Seed       uint64
}

func NewLouvainPartitioner() *LouvainPartitioner {
	return &LouvainPartitioner{Resolution: 1, Seed: 0x5c11ab}
}

func (p *LouvainPartitioner) Partition(g *Graph, maxClusterSize int) ([]Cluster, error) {
	if g == nil || g.Len() == 0 {
		return nil, nil
	}
	if maxClusterSize <= 0 {
		maxClusterSize = g.Len()
	}

	nodes := g.Nodes()
	sort.Strings(nodes)

	var (
		out    []Cluster
		nextID int
	)
	var walk func(members []string, level int)
	walk = func(members []string, level int) {
		id := nextID
		nextID++
		for _, m := range members {
			out = append(out, Cluster{Node: m, ClusterID: id, Level: level})
		}
		if len(members) <= maxClusterSize {
			return
		}
		parts := p.modularize(g, members)
		if len(parts) <= 1 {
			parts = cut(members, maxClusterSize)
		}
		for _, part := range parts {
			walk(part, level+1)
		}
	}

	for _, part := range p.modularize(g, nodes) {
		walk(part, 0)
	}
	return out, nil
}

// modularize runs Louvain on the subgraph induced by members and returns the
// communities with their members sorted, ordered by first member.
func (p *LouvainPartitioner) modularize(g *Graph, members []string) [][]string {
	ids := make(map[string]int64, len(members))
	names := make([]string, len(members))
	for i, m := range members {
		ids[m] = int64(i)
		names[i] = m
	}

	ug := simple.NewUndirectedGraph()
	for i := range members {
		ug.AddNode(simple.Node(int64(i)))
	}
	edges := 0
	for _, m := range members {
		for _, n := range g.Neighbors(m) {
			nid, ok := ids[n]
			if !ok || n == m || ug.HasEdgeBetween(ids[m], nid) {
				continue
			}
			ug.SetEdge(ug.NewEdge(simple.Node(ids[m]), simple.Node(nid)))
			edges++
		}
	}

	var parts [][]string
	if edges == 0 {
		for _, m := range members {
			parts = append(parts, []string{m})
		}
		return parts
	}

	src := rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)
	reduced := louvain.Modularize(ug, p.Resolution, src)
	for _, comm := range reduced.Communities() {
		if len(comm) == 0 {
			continue
		}
		part := make([]string, 0, len(comm))
		for _, n := range comm {
			part = append(part, names[n.ID()])
		}
		sort.Strings(part)
		parts = append(parts, part)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i][0] < parts[j][0] })
	return parts
}

func cut(members []string, size int) [][]string {
	var parts [][]string
	for start := 0; start < len(members); start += size {
		parts = append(parts, members[start:min(start+size, len(members))])
	}
	return parts
}
