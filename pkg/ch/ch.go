// Package ch implements Contraction Hierarchies preprocessing and the
// overlay graph it produces, independent of the travel mode the weights
// were computed under.
package ch

// CHGraph is the contraction hierarchy overlay: a node ranking plus the
// forward and backward "upward" CSR graphs used by the bidirectional query
// (spec.md §4.3). Shortcut edges carry the node ID of the node they bypass
// in Middle; -1 marks an edge copied unchanged from the original graph.
type CHGraph struct {
	NumNodes uint32
	Rank     []uint32 // len NumNodes; contraction order of each node

	FwdFirstOut []uint32
	FwdHead     []uint32
	FwdWeight   []uint32
	FwdMiddle   []int32

	BwdFirstOut []uint32
	BwdHead     []uint32
	BwdWeight   []uint32
	BwdMiddle   []int32
}

// FwdEdgesFrom returns the forward-overlay edge range for node u.
func (c *CHGraph) FwdEdgesFrom(u uint32) (start, end uint32) {
	return c.FwdFirstOut[u], c.FwdFirstOut[u+1]
}

// BwdEdgesFrom returns the backward-overlay edge range for node u.
func (c *CHGraph) BwdEdgesFrom(u uint32) (start, end uint32) {
	return c.BwdFirstOut[u], c.BwdFirstOut[u+1]
}
