// Package spatial provides nearest-road lookup over the main-road node set,
// backed by a bulk-loaded 2-D R-tree (spec.md §3/§4.4).
package spatial

import (
	"github.com/pkg/errors"
	"github.com/tidwall/rtree"

	"routex/pkg/geo"
	"routex/pkg/graph"
)

// ErrPointTooFar is returned when the query point is too far from any
// indexed road node.
var ErrPointTooFar = errors.New("point too far from road")

// MaxSnapDistMeters bounds how far a query point may be from the nearest
// indexed node before snapping is refused.
const MaxSnapDistMeters = 500.0

// initialSearchDeg is the half-width, in degrees, of the first expanding
// bounding box tried around a query point. ~0.005° is ~550m at the equator,
// comfortably covering MaxSnapDistMeters in one shot for most points; the
// box doubles on a miss.
const initialSearchDeg = 0.005

// SnapResult is a query point snapped to the nearest main-road node.
type SnapResult struct {
	Node uint32
	Dist float64 // meters from the query point to Node
}

// Index is a nearest-neighbor index over a graph's main-road nodes.
type Index struct {
	tree  rtree.RTree
	g     *graph.Graph
	empty bool
}

// Build bulk-inserts every node flagged MainRoad in g into a fresh R-tree.
func Build(g *graph.Graph) *Index {
	idx := &Index{g: g}
	var any bool
	for i := uint32(0); i < g.NumNodes; i++ {
		if !g.MainRoad[i] {
			continue
		}
		any = true
		p := [2]float64{g.NodeLon[i], g.NodeLat[i]}
		idx.tree.Insert(p, p, i)
	}
	idx.empty = !any
	return idx
}

// Nearest returns the nearest main-road node to (lat, lon), expanding the
// search box until a candidate is found or the safety margin is exhausted.
// A standard technique for libraries (like tidwall/rtree) whose public API
// is box Search rather than a built-in nearest-neighbor iterator. Candidates
// are ranked by planar L2 distance on raw (lon, lat) degrees, per spec.md
// §4.4; the winning candidate's Dist is then reported in meters via
// Haversine, since MaxSnapDistMeters and SnapResult.Dist are both metric.
func (idx *Index) Nearest(lat, lon float64) (SnapResult, error) {
	if idx.empty {
		return SnapResult{}, ErrPointTooFar
	}

	bestNode := uint32(0)
	bestSq := -1.0
	deg := initialSearchDeg
	foundAtDeg := 0.0

	for pass := 0; pass < 12; pass++ {
		min := [2]float64{lon - deg, lat - deg}
		max := [2]float64{lon + deg, lat + deg}

		idx.tree.Search(min, max, func(_, _ [2]float64, node any) bool {
			n := node.(uint32)
			dLon := idx.g.NodeLon[n] - lon
			dLat := idx.g.NodeLat[n] - lat
			sq := dLon*dLon + dLat*dLat
			if bestSq < 0 || sq < bestSq {
				bestNode, bestSq = n, sq
			}
			return true
		})

		if bestSq >= 0 {
			if foundAtDeg == 0 {
				foundAtDeg = deg
				deg *= 2 // one extra doubling past the first hit, for safety margin
				continue
			}
			break
		}

		if deg*111_000 > MaxSnapDistMeters*4 {
			break // no point found within a generous multiple of the max radius
		}
		deg *= 2
	}

	if bestSq < 0 {
		return SnapResult{}, ErrPointTooFar
	}

	distM := geo.Haversine(lat, lon, idx.g.NodeLat[bestNode], idx.g.NodeLon[bestNode])
	if distM > MaxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return SnapResult{Node: bestNode, Dist: distM}, nil
}
