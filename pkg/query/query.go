// Package query implements the four query-layer operations — travel-time,
// route, route-from-geometry, isochrone — plus batch travel-time, against
// a registry-held mode slot (spec.md §4.7). Every method returns the
// negative-sentinel convention spec.md §7 defines instead of a Go error,
// since this package's signatures are what cmd/libroutex's C ABI wraps
// almost verbatim.
package query

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"routex/pkg/geometry"
	"routex/pkg/registry"
	"routex/pkg/routing"
	"routex/pkg/speed"
)

// Sentinel return values, per spec.md §7.
const (
	// SentinelFail covers bad-argument and no-route failures.
	SentinelFail = -1.0
	// SentinelNotLoaded means the mode's slot is empty.
	SentinelNotLoaded = -2.0
)

// LatLng is a geographic coordinate.
type LatLng = routing.LatLng

// Engine is the query layer's entry point: one Engine wraps one Registry
// and exposes every operation of spec.md §4.7/§6 against it.
type Engine struct {
	reg *registry.Registry
}

// New wraps reg as a query Engine.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// resolve fetches mode's engine, reporting false for any lookup failure.
// It does not tell an unloaded slot from an unknown mode; callers check
// mode.Valid() first, so false there means the slot is not loaded.
func (e *Engine) resolve(mode speed.Mode) (*routing.Engine, bool) {
	eng, err := e.reg.Engine(mode)
	if err == nil {
		return eng, true
	}
	return nil, false
}

// TravelTime returns the shortest travel time between two points in
// seconds, or a negative sentinel on failure (spec.md §6's "travel_time").
func (e *Engine) TravelTime(ctx context.Context, lat1, lon1, lat2, lon2 float64, mode speed.Mode) float64 {
	if !mode.Valid() {
		return SentinelFail
	}
	eng, ok := e.resolve(mode)
	if !ok {
		return SentinelNotLoaded
	}
	seconds, err := eng.TravelTime(ctx, LatLng{Lat: lat1, Lng: lon1}, LatLng{Lat: lat2, Lng: lon2})
	if err != nil {
		return SentinelFail
	}
	return seconds
}

// SnapResult is a query point resolved to its nearest main-road node.
type SnapResult struct {
	Lat   float64
	Lng   float64
	DistM float64
}

// Snap resolves (lat, lon) to its nearest main-road node under mode,
// returning 0 on success, −1 on bad argument/no-match, −2 if unloaded
// (spec.md §6's "snap").
func (e *Engine) Snap(lat, lon float64, mode speed.Mode) (SnapResult, int) {
	if !mode.Valid() {
		return SnapResult{}, -1
	}
	eng, ok := e.resolve(mode)
	if !ok {
		return SnapResult{}, -2
	}
	res, err := eng.Snap(LatLng{Lat: lat, Lng: lon})
	if err != nil {
		return SnapResult{}, -1
	}
	return SnapResult{Lat: res.Point.Lat, Lng: res.Point.Lng, DistM: res.DistM}, 0
}

// RouteResult is the query-layer Route/RouteFromGeometry output, matching
// spec.md §4.7's `{distance_m, duration_s, num_points}` struct contract.
type RouteResult struct {
	DistanceM float64
	DurationS float64
	Points    []LatLng
}

// Route computes the shortest path between two points, emitting up to
// maxPoints points, returning the number written (spec.md §6's "route").
// A non-positive maxPoints is a bad-argument error.
func (e *Engine) Route(ctx context.Context, lat1, lon1, lat2, lon2 float64, mode speed.Mode, maxPoints int) (RouteResult, int) {
	if !mode.Valid() || maxPoints <= 0 {
		return RouteResult{}, -1
	}
	eng, ok := e.resolve(mode)
	if !ok {
		return RouteResult{}, -2
	}
	res, err := eng.Route(ctx, LatLng{Lat: lat1, Lng: lon1}, LatLng{Lat: lat2, Lng: lon2}, maxPoints)
	if err != nil {
		return RouteResult{}, -1
	}
	return RouteResult{
		DistanceM: res.DistanceMeters,
		DurationS: res.DurationSeconds,
		Points:    res.Points,
	}, len(res.Points)
}

// GeometryEncoding names which decoder RouteFromGeometry should use for a
// given endpoint.
type GeometryEncoding int

const (
	WKT GeometryEncoding = iota
	WKB
)

// GeometryInput is one opaque endpoint encoding for RouteFromGeometry
// (spec.md §6's "two opaque encodings").
type GeometryInput struct {
	Encoding GeometryEncoding
	Text     string // used when Encoding == WKT
	Bytes    []byte // used when Encoding == WKB
}

func (g GeometryInput) centroid() (lon, lat float64, err error) {
	switch g.Encoding {
	case WKT:
		return geometry.FromWKT(g.Text)
	case WKB:
		return geometry.FromWKB(g.Bytes)
	default:
		return 0, 0, geometry.ErrUnsupportedGeometry
	}
}

// RouteFromGeometry decodes start and end to centroids via the geometry
// collaborator, then behaves as Route (spec.md §4.7's "Route-from-geometry").
func (e *Engine) RouteFromGeometry(ctx context.Context, start, end GeometryInput, mode speed.Mode, maxPoints int) (RouteResult, int) {
	if !mode.Valid() || maxPoints <= 0 {
		return RouteResult{}, -1
	}
	startLon, startLat, err := start.centroid()
	if err != nil {
		return RouteResult{}, -1
	}
	endLon, endLat, err := end.centroid()
	if err != nil {
		return RouteResult{}, -1
	}
	return e.Route(ctx, startLat, startLon, endLat, endLon, mode, maxPoints)
}

// IsochroneResult is one reachable point, seconds from the origin.
type IsochroneResult struct {
	Lat     float64
	Lng     float64
	Seconds float64
}

// Isochrone returns every node reachable from (lat, lon) within maxSeconds,
// up to maxPoints entries in non-decreasing cost order, and the number
// emitted (spec.md §6's "isochrone"). A non-positive maxPoints or negative
// maxSeconds is a bad-argument error.
func (e *Engine) Isochrone(lat, lon, maxSeconds float64, mode speed.Mode, maxPoints int) ([]IsochroneResult, int) {
	if !mode.Valid() || maxPoints <= 0 || maxSeconds < 0 {
		return nil, -1
	}
	eng, ok := e.resolve(mode)
	if !ok {
		return nil, -2
	}
	maxCostMS := saturatingMS(maxSeconds)
	pts, err := eng.Isochrone(LatLng{Lat: lat, Lng: lon}, maxCostMS, maxPoints)
	if err != nil {
		return nil, -1
	}
	out := make([]IsochroneResult, len(pts))
	for i, p := range pts {
		out[i] = IsochroneResult{Lat: p.Lat, Lng: p.Lng, Seconds: p.Seconds}
	}
	return out, len(out)
}

func saturatingMS(seconds float64) uint32 {
	const maxMS = float64(^uint32(0))
	ms := seconds * 1000.0
	if ms >= maxMS {
		return ^uint32(0)
	}
	return uint32(ms)
}

// BatchTravelTime computes TravelTime independently for N coordinate
// pairs, writing results[i] for each index i, and returns the count of
// successful (non-negative) results (spec.md §4.7's "Batch travel-time").
// The registry mutex for mode is held once, for the whole batch, instead
// of once per query.
func (e *Engine) BatchTravelTime(ctx context.Context, lat1, lon1, lat2, lon2 []float64, mode speed.Mode) ([]float64, int) {
	n := len(lat1)
	results := make([]float64, n)
	for i := range results {
		results[i] = SentinelFail
	}
	if !mode.Valid() || len(lon1) != n || len(lat2) != n || len(lon2) != n {
		return results, -1
	}

	var successCount int
	err := e.reg.WithEngine(mode, func(eng *routing.Engine) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))

		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				seconds, err := eng.TravelTime(ctx, LatLng{Lat: lat1[i], Lng: lon1[i]}, LatLng{Lat: lat2[i], Lng: lon2[i]})
				if err != nil {
					results[i] = SentinelFail
					return nil
				}
				results[i] = seconds
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return results, -2
	}

	for _, v := range results {
		if v >= 0 {
			successCount++
		}
	}
	return results, successCount
}
