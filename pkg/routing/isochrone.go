package routing

import "math"

// IsochronePoint is one reachable node within an isochrone's cost budget.
type IsochronePoint struct {
	Lat     float64
	Lng     float64
	Seconds float64
}

// Isochrone runs a plain Dijkstra from origin over the adjacency list,
// returning every node reached within maxCostMS, up to cap entries, in
// non-decreasing order of cost (spec.md §4.7). A cap of -1 means unbounded.
func (e *Engine) Isochrone(origin LatLng, maxCostMS uint32, maxPoints int) ([]IsochronePoint, error) {
	startSnap, err := e.idx.Nearest(origin.Lat, origin.Lng)
	if err != nil {
		return nil, ErrNoRoute
	}

	dist := make([]uint32, e.g.NumNodes)
	for i := range dist {
		dist[i] = math.MaxUint32
	}
	dist[startSnap.Node] = 0

	var pq MinHeap
	pq.Push(startSnap.Node, 0)

	var out []IsochronePoint

	for pq.Len() > 0 {
		item := pq.Pop()
		node, cost := item.Node, item.Dist

		if cost > dist[node] {
			continue // stale entry
		}
		if cost > maxCostMS {
			continue // over budget: do not record, do not expand
		}

		if maxPoints < 0 || len(out) < maxPoints {
			out = append(out, IsochronePoint{
				Lat:     e.g.NodeLat[node],
				Lng:     e.g.NodeLon[node],
				Seconds: float64(cost) / 1000.0,
			})
		}

		for _, adj := range e.adj[node] {
			newCost := saturatingAdd(cost, adj.WeightMS)
			if newCost <= maxCostMS && newCost < dist[adj.Neighbor] {
				dist[adj.Neighbor] = newCost
				pq.Push(adj.Neighbor, newCost)
			}
		}
	}

	return out, nil
}

// saturatingAdd adds two uint32s, clamping to math.MaxUint32 on overflow.
func saturatingAdd(a, b uint32) uint32 {
	sum := a + b
	if sum < a {
		return math.MaxUint32
	}
	return sum
}
