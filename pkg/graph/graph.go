// Package graph holds the directed, weighted road graph in Compressed
// Sparse Row (CSR) form, plus the plain adjacency list used by isochrone.
package graph

// Graph represents a directed graph in CSR (Compressed Sparse Row) format.
// Edge weights are travel times in milliseconds (always > 0, per spec.md
// §3's Edge invariant — zero-time segments are dropped by the builder).
type Graph struct {
	NumNodes uint32
	NumEdges uint32

	FirstOut []uint32 // len NumNodes+1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32 // len NumEdges; target node for each edge
	Weight   []uint32 // len NumEdges; travel time in milliseconds

	NodeLat []float64 // len NumNodes
	NodeLon []float64 // len NumNodes

	// MainRoad marks nodes incident to at least one main-road edge — the
	// candidate set fed to the spatial index (spec.md §3, §4.1).
	MainRoad []bool // len NumNodes
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// AdjacencyEntry is one out-edge in the plain adjacency list used by the
// isochrone Dijkstra (spec.md §3's "adjacency list" representation).
type AdjacencyEntry struct {
	Neighbor uint32
	WeightMS uint32
}

// AdjacencyList builds the plain (neighbor, weight) representation from the
// CSR graph. It describes the identical edge multiset as the CSR arrays
// (spec.md §3's CH/adjacency-list invariant).
func AdjacencyList(g *Graph) [][]AdjacencyEntry {
	adj := make([][]AdjacencyEntry, g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		if start == end {
			continue
		}
		adj[u] = make([]AdjacencyEntry, 0, end-start)
		for e := start; e < end; e++ {
			adj[u] = append(adj[u], AdjacencyEntry{Neighbor: g.Head[e], WeightMS: g.Weight[e]})
		}
	}
	return adj
}
