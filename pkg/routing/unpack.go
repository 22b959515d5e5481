package routing

import "routex/pkg/ch"

const maxUnpackDepth = 100

// UnpackPath expands the overlay edge path found by bidirectional CH search
// — a forward leg of edges from the source to the meet node, and a backward
// leg of edges from the meet node to the target — into the full sequence of
// original graph node IDs the shortest path actually traverses. CH does not
// renumber nodes, so unpacking never needs to consult the base graph: every
// shortcut bottoms out in atomic (middle == -1) edges whose endpoints are
// themselves original node IDs.
func UnpackPath(chg *ch.CHGraph, fwdEdges, bwdEdges []uint32) []uint32 {
	var nodes []uint32
	for _, e := range fwdEdges {
		unpackForwardEdge(chg, e, &nodes)
	}
	for _, e := range bwdEdges {
		unpackBackwardEdge(chg, e, &nodes)
	}
	return dedupeConsecutive(nodes)
}

type unpackStackItem struct {
	edgeIdx uint32
	depth   int
}

// unpackForwardEdge iteratively unpacks a forward overlay edge into the
// original node sequence it represents, in source-to-target order.
func unpackForwardEdge(chg *ch.CHGraph, edgeIdx uint32, result *[]uint32) {
	stack := []unpackStackItem{{edgeIdx, 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item.depth > maxUnpackDepth {
			continue
		}

		middle := chg.FwdMiddle[item.edgeIdx]
		from := findCSRSource(chg.FwdFirstOut, item.edgeIdx)
		head := chg.FwdHead[item.edgeIdx]

		if middle < 0 {
			*result = append(*result, from, head)
			continue
		}

		mid := uint32(middle)
		// mid ranks below both endpoints, so from→mid is stored in the
		// backward overlay as mid→from, and mid→head in the forward overlay.
		fromMidEdge := findEdge(chg.BwdFirstOut, chg.BwdHead, mid, from)
		midHeadEdge := findEdge(chg.FwdFirstOut, chg.FwdHead, mid, head)
		if fromMidEdge != noNode && midHeadEdge != noNode {
			// Emit from→mid now; mid→head goes on top of the stack next.
			unpackBackwardEdge(chg, fromMidEdge, result)
			stack = append(stack, unpackStackItem{midHeadEdge, item.depth + 1})
		}
	}
}

// unpackBackwardEdge iteratively unpacks a backward overlay edge. Backward
// edges are stored low-rank→high-rank (from→head) but represent the
// original direction head→from.
func unpackBackwardEdge(chg *ch.CHGraph, edgeIdx uint32, result *[]uint32) {
	stack := []unpackStackItem{{edgeIdx, 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item.depth > maxUnpackDepth {
			continue
		}

		middle := chg.BwdMiddle[item.edgeIdx]
		from := findCSRSource(chg.BwdFirstOut, item.edgeIdx)
		head := chg.BwdHead[item.edgeIdx]

		if middle < 0 {
			*result = append(*result, head, from)
			continue
		}

		mid := uint32(middle)
		// Shortcut represents head→mid→from in the original graph; head→mid
		// is stored in the backward overlay, mid→from in the forward one.
		headMidEdge := findEdge(chg.BwdFirstOut, chg.BwdHead, mid, head)
		midFromEdge := findEdge(chg.FwdFirstOut, chg.FwdHead, mid, from)
		if headMidEdge != noNode && midFromEdge != noNode {
			unpackBackwardEdge(chg, headMidEdge, result)
			unpackForwardEdge(chg, midFromEdge, result)
		}
	}
}

// findEdge finds an edge from source to target in a CSR graph.
func findEdge(firstOut, head []uint32, source, target uint32) uint32 {
	start, end := firstOut[source], firstOut[source+1]
	for e := start; e < end; e++ {
		if head[e] == target {
			return e
		}
	}
	return noNode
}

// findCSRSource finds the source node for an edge index in a CSR graph via
// binary search over the FirstOut prefix sums.
func findCSRSource(firstOut []uint32, edgeIdx uint32) uint32 {
	n := uint32(len(firstOut) - 1)
	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if firstOut[mid+1] <= edgeIdx {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// dedupeConsecutive collapses runs of repeated adjacent node IDs that arise
// at the seams between successively unpacked edges.
func dedupeConsecutive(nodes []uint32) []uint32 {
	if len(nodes) == 0 {
		return nodes
	}
	out := nodes[:1]
	for _, n := range nodes[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
