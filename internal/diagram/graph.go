package diagram

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"interdiag/internal/residue"
)

// energyGraph holds the surviving edges as a weighted undirected graph over
// the control sheet's residues. Weights are edge magnitudes.
type energyGraph struct {
	g     *simple.WeightedUndirectedGraph
	nodes map[residue.ID]int64
	ids   []residue.ID
}

func newEnergyGraph(residues []residue.ID) *energyGraph {
	eg := &energyGraph{
		g:     simple.NewWeightedUndirectedGraph(0, 0),
		nodes: make(map[residue.ID]int64, len(residues)),
	}
	for _, id := range residues {
		eg.node(id)
	}
	return eg
}

func (eg *energyGraph) node(id residue.ID) int64 {
	if n, ok := eg.nodes[id]; ok {
		return n
	}
	n := int64(len(eg.ids))
	eg.nodes[id] = n
	eg.ids = append(eg.ids, id)
	eg.g.AddNode(simple.Node(n))
	return n
}

func (eg *energyGraph) connect(p residue.Pair, weight float64) {
	if p.Self() {
		return
	}
	a, b := eg.node(p.A), eg.node(p.B)
	eg.g.SetWeightedEdge(eg.g.NewWeightedEdge(simple.Node(a), simple.Node(b), weight))
}

func (eg *energyGraph) degree(id residue.ID) int {
	n, ok := eg.nodes[id]
	if !ok {
		return 0
	}
	return eg.g.From(n).Len()
}

type neighbour struct {
	id     residue.ID
	weight float64
}

// neighbours lists the residues connected to id, sorted by id.
func (eg *energyGraph) neighbours(id residue.ID) []neighbour {
	n, ok := eg.nodes[id]
	if !ok {
		return nil
	}
	var out []neighbour
	it := eg.g.From(n)
	for it.Next() {
		other := it.Node().ID()
		w, _ := eg.g.Weight(n, other)
		out = append(out, neighbour{id: eg.ids[other], weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
