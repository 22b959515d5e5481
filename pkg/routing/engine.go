package routing

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"routex/pkg/ch"
	"routex/pkg/geo"
	"routex/pkg/graph"
	"routex/pkg/spatial"
)

// ErrNoRoute is returned when no route exists between the two points, or
// when either endpoint fails to snap to a main-road node.
var ErrNoRoute = errors.New("no route found")

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// RouteResult is the output of a Route query: duration always reflects the
// full path weight, distance only the emitted (possibly truncated) points.
type RouteResult struct {
	DistanceMeters  float64
	DurationSeconds float64
	Points          []LatLng
}

// Router is the interface exposed by the query layer for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng, maxPoints int) (*RouteResult, error)
	TravelTime(ctx context.Context, start, end LatLng) (float64, error)
}

// Engine answers travel-time, route, and isochrone queries against a single
// mode's CH graph. One Engine is built per loaded mode slot.
type Engine struct {
	chg *ch.CHGraph
	g   *graph.Graph
	idx *spatial.Index
	adj [][]graph.AdjacencyEntry

	qsPool sync.Pool
}

// NewEngine builds a query engine from a contracted graph, its base graph
// (for node coordinates, geometry, and the isochrone's plain adjacency
// list), and a spatial index over the base graph's main-road nodes.
func NewEngine(chg *ch.CHGraph, g *graph.Graph, idx *spatial.Index) *Engine {
	e := &Engine{chg: chg, g: g, idx: idx, adj: graph.AdjacencyList(g)}
	e.qsPool.New = func() any {
		return NewQueryState(chg.NumNodes)
	}
	return e
}

// TravelTime returns the shortest-path weight between start and end, in
// seconds. ErrNoRoute covers both snap failure and CH absence of a path.
func (e *Engine) TravelTime(ctx context.Context, start, end LatLng) (float64, error) {
	qs := e.qsPool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.qsPool.Put(qs)
	}()

	startNode, endNode, err := e.snapEndpoints(start, end)
	if err != nil {
		return 0, err
	}

	qs.touchFwd(startNode, 0)
	qs.FwdPQ.Push(startNode, 0)
	qs.touchBwd(endNode, 0)
	qs.BwdPQ.Push(endNode, 0)

	mu, _, _ := e.runCHDijkstra(ctx, qs)
	if mu == math.MaxUint32 {
		return 0, ErrNoRoute
	}
	return float64(mu) / 1000.0, nil
}

// Route computes the shortest path between start and end and emits its
// geometry, up to maxPoints points (spec.md §4.7's Route operation).
func (e *Engine) Route(ctx context.Context, start, end LatLng, maxPoints int) (*RouteResult, error) {
	qs := e.qsPool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.qsPool.Put(qs)
	}()

	startNode, endNode, err := e.snapEndpoints(start, end)
	if err != nil {
		return nil, err
	}

	qs.touchFwd(startNode, 0)
	qs.FwdPQ.Push(startNode, 0)
	qs.touchBwd(endNode, 0)
	qs.BwdPQ.Push(endNode, 0)

	mu, fwdMeet, bwdMeet := e.runCHDijkstra(ctx, qs)
	if mu == math.MaxUint32 {
		return nil, ErrNoRoute
	}

	fwdEdges := traceEdgesToSeed(e.chg.FwdFirstOut, qs.PredEdgeFwd, fwdMeet)
	reverseUint32(fwdEdges) // walk collects meet→source; UnpackPath wants source→meet

	bwdEdges := traceEdgesToSeed(e.chg.BwdFirstOut, qs.PredEdgeBwd, bwdMeet)
	// Walk collects meet→target in order already, matching UnpackPath's
	// expected backward leg direction.

	nodes := UnpackPath(e.chg, fwdEdges, bwdEdges)

	durationS := float64(mu) / 1000.0

	if maxPoints >= 0 && len(nodes) > maxPoints {
		nodes = nodes[:maxPoints]
	}
	points := make([]LatLng, len(nodes))
	for i, n := range nodes {
		points[i] = LatLng{Lat: e.g.NodeLat[n], Lng: e.g.NodeLon[n]}
	}

	var distM float64
	for i := 1; i < len(points); i++ {
		distM += geo.Haversine(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}

	return &RouteResult{
		DistanceMeters:  distM,
		DurationSeconds: durationS,
		Points:          points,
	}, nil
}

// SnapResult is a query point resolved to its nearest main-road node.
type SnapResult struct {
	Point LatLng
	DistM float64
}

// Snap resolves pt to its nearest main-road node, exposing the spatial
// index directly for the query layer's standalone snap operation
// (spec.md §6's "snap" entry in the callable surface table).
func (e *Engine) Snap(pt LatLng) (SnapResult, error) {
	res, err := e.idx.Nearest(pt.Lat, pt.Lng)
	if err != nil {
		return SnapResult{}, err
	}
	return SnapResult{
		Point: LatLng{Lat: e.g.NodeLat[res.Node], Lng: e.g.NodeLon[res.Node]},
		DistM: res.Dist,
	}, nil
}

// NumNodes reports the base graph's node count.
func (e *Engine) NumNodes() uint32 {
	return e.g.NumNodes
}

// snapEndpoints resolves both query points to main-road graph nodes.
func (e *Engine) snapEndpoints(start, end LatLng) (startNode, endNode uint32, err error) {
	startSnap, err := e.idx.Nearest(start.Lat, start.Lng)
	if err != nil {
		return 0, 0, ErrNoRoute
	}
	endSnap, err := e.idx.Nearest(end.Lat, end.Lng)
	if err != nil {
		return 0, 0, ErrNoRoute
	}
	return startSnap.Node, endSnap.Node, nil
}

// traceEdgesToSeed walks a predecessor-edge array back from meetNode to its
// search seed, returning the edges in meetNode→seed order.
func traceEdgesToSeed(firstOut, predEdge []uint32, meetNode uint32) []uint32 {
	var edges []uint32
	node := meetNode
	for {
		ei := predEdge[node]
		if ei == noNode {
			break
		}
		edges = append(edges, ei)
		node = findCSRSource(firstOut, ei)
	}
	return edges
}

func reverseUint32(s []uint32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// runCHDijkstra runs bidirectional CH Dijkstra with predecessor-edge
// tracking, returning the best meeting distance and the node at which each
// direction's search met it.
func (e *Engine) runCHDijkstra(ctx context.Context, qs *QueryState) (mu uint32, fwdMeet, bwdMeet uint32) {
	mu = math.MaxUint32
	fwdMeet, bwdMeet = noNode, noNode

	iterations := uint32(0)

	for {
		fwdMin := qs.FwdPQ.PeekDist()
		bwdMin := qs.BwdPQ.PeekDist()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		iterations++
		if iterations&255 == 0 && ctx.Err() != nil {
			return mu, fwdMeet, bwdMeet
		}

		if fwdMin < mu {
			item := qs.FwdPQ.Pop()
			u, d := item.Node, item.Dist

			if d <= qs.DistFwd[u] {
				if qs.DistBwd[u] < math.MaxUint32 {
					if cand := d + qs.DistBwd[u]; cand < mu {
						mu = cand
						fwdMeet, bwdMeet = u, u
					}
				}

				start, end := e.chg.FwdEdgesFrom(u)
				for ei := start; ei < end; ei++ {
					v := e.chg.FwdHead[ei]
					newDist := d + e.chg.FwdWeight[ei]
					if newDist < qs.DistFwd[v] {
						qs.touchFwd(v, newDist)
						qs.FwdPQ.Push(v, newDist)
						qs.PredEdgeFwd[v] = ei
					}
				}
			}
		}

		if qs.BwdPQ.PeekDist() < mu {
			item := qs.BwdPQ.Pop()
			u, d := item.Node, item.Dist

			if d <= qs.DistBwd[u] {
				if qs.DistFwd[u] < math.MaxUint32 {
					if cand := qs.DistFwd[u] + d; cand < mu {
						mu = cand
						fwdMeet, bwdMeet = u, u
					}
				}

				start, end := e.chg.BwdEdgesFrom(u)
				for ei := start; ei < end; ei++ {
					v := e.chg.BwdHead[ei]
					newDist := d + e.chg.BwdWeight[ei]
					if newDist < qs.DistBwd[v] {
						qs.touchBwd(v, newDist)
						qs.BwdPQ.Push(v, newDist)
						qs.PredEdgeBwd[v] = ei
					}
				}
			}
		}
	}

	return mu, fwdMeet, bwdMeet
}
