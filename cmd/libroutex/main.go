// Command libroutex builds a cgo C-compatible shared library
// (-buildmode=c-shared) exposing spec.md §6's callable surface table: one
// exported function per table row, each a synchronous wrapper around
// pkg/query/pkg/registry. No Go panic is allowed to cross into C — every
// exported function recovers and returns its documented sentinel instead
// (spec.md §7).
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"log/slog"
	"unsafe"

	"routex/pkg/query"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

// reg/q are process-wide: the three mode slots and the query layer wrapping
// them are singletons for the lifetime of the loaded library, matching
// spec.md §4.6's "process-wide mapping from mode" Registry.
var (
	reg = registry.New(slog.Default())
	q   = query.New(reg)
)

//export routex_load
func routex_load(pbfPath *C.char, mode *C.char) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	m := speed.Mode(C.GoString(mode))
	if pbfPath == nil || !m.Valid() {
		return -1
	}
	if err := reg.Load(context.Background(), C.GoString(pbfPath), m); err != nil {
		return -1
	}
	return 0
}

//export routex_is_loaded
func routex_is_loaded(mode *C.char) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = 0
		}
	}()

	m := speed.Mode(C.GoString(mode))
	if !m.Valid() {
		return 0
	}
	if reg.IsLoaded(m) {
		return 1
	}
	return 0
}

//export routex_unload
func routex_unload(mode *C.char) {
	defer func() { recover() }()

	m := speed.Mode(C.GoString(mode))
	if !m.Valid() {
		return
	}
	reg.Unload(m)
}

//export routex_node_count
func routex_node_count(mode *C.char) (ret C.longlong) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	m := speed.Mode(C.GoString(mode))
	if !m.Valid() {
		return -1
	}
	return C.longlong(reg.NodeCount(m))
}

//export routex_travel_time
func routex_travel_time(lat1, lon1, lat2, lon2 C.double, mode *C.char) (ret C.double) {
	defer func() {
		if recover() != nil {
			ret = -1.0
		}
	}()

	m := speed.Mode(C.GoString(mode))
	seconds := q.TravelTime(context.Background(), float64(lat1), float64(lon1), float64(lat2), float64(lon2), m)
	return C.double(seconds)
}

//export routex_snap
func routex_snap(lat, lon C.double, mode *C.char, outLat, outLon, outDistM *C.double) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	m := speed.Mode(C.GoString(mode))
	res, code := q.Snap(float64(lat), float64(lon), m)
	if code == 0 && outLat != nil && outLon != nil && outDistM != nil {
		*outLat = C.double(res.Lat)
		*outLon = C.double(res.Lng)
		*outDistM = C.double(res.DistM)
	}
	return C.int(code)
}

//export routex_route
func routex_route(lat1, lon1, lat2, lon2 C.double, mode *C.char, maxPoints C.int,
	outDistM, outDurationS *C.double, outLats, outLons *C.double) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	m := speed.Mode(C.GoString(mode))
	res, n := q.Route(context.Background(), float64(lat1), float64(lon1), float64(lat2), float64(lon2), m, int(maxPoints))
	if n < 0 {
		return C.int(n)
	}
	if outDistM != nil {
		*outDistM = C.double(res.DistanceM)
	}
	if outDurationS != nil {
		*outDurationS = C.double(res.DurationS)
	}
	writeLatLngs(res.Points, outLats, outLons, int(maxPoints))
	return C.int(n)
}

//export routex_route_from_geometry
func routex_route_from_geometry(startWKT, endWKT *C.char, mode *C.char, maxPoints C.int,
	outDistM, outDurationS *C.double, outLats, outLons *C.double) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	if startWKT == nil || endWKT == nil {
		return -1
	}
	m := speed.Mode(C.GoString(mode))
	start := query.GeometryInput{Encoding: query.WKT, Text: C.GoString(startWKT)}
	end := query.GeometryInput{Encoding: query.WKT, Text: C.GoString(endWKT)}

	res, n := q.RouteFromGeometry(context.Background(), start, end, m, int(maxPoints))
	if n < 0 {
		return C.int(n)
	}
	if outDistM != nil {
		*outDistM = C.double(res.DistanceM)
	}
	if outDurationS != nil {
		*outDurationS = C.double(res.DurationS)
	}
	writeLatLngs(res.Points, outLats, outLons, int(maxPoints))
	return C.int(n)
}

//export routex_isochrone
func routex_isochrone(lat, lon, maxSeconds C.double, mode *C.char, maxPoints C.int,
	outLats, outLons, outSeconds *C.double) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	m := speed.Mode(C.GoString(mode))
	pts, n := q.Isochrone(float64(lat), float64(lon), float64(maxSeconds), m, int(maxPoints))
	if n < 0 {
		return C.int(n)
	}

	cap := int(maxPoints)
	lats := unsafe.Slice(outLats, cap)
	lons := unsafe.Slice(outLons, cap)
	secs := unsafe.Slice(outSeconds, cap)
	for i, p := range pts {
		lats[i] = C.double(p.Lat)
		lons[i] = C.double(p.Lng)
		secs[i] = C.double(p.Seconds)
	}
	return C.int(n)
}

//export routex_batch_travel_time
func routex_batch_travel_time(lat1, lon1, lat2, lon2 *C.double, n C.int, mode *C.char, outResults *C.double) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = -1
		}
	}()

	count := int(n)
	m := speed.Mode(C.GoString(mode))
	results, successCount := q.BatchTravelTime(context.Background(),
		cDoublesToGo(lat1, count), cDoublesToGo(lon1, count),
		cDoublesToGo(lat2, count), cDoublesToGo(lon2, count), m)

	out := unsafe.Slice(outResults, count)
	for i, v := range results {
		out[i] = C.double(v)
	}
	return C.int(successCount)
}

// writeLatLngs copies pts' coordinates into caller-owned outLats/outLons
// arrays, each of length cap, truncating at cap (points is already capped
// at maxPoints by the query layer, so this is a defensive mirror of it).
func writeLatLngs(pts []query.LatLng, outLats, outLons *C.double, cap int) {
	if outLats == nil || outLons == nil {
		return
	}
	lats := unsafe.Slice(outLats, cap)
	lons := unsafe.Slice(outLons, cap)
	n := len(pts)
	if n > cap {
		n = cap
	}
	for i := 0; i < n; i++ {
		lats[i] = C.double(pts[i].Lat)
		lons[i] = C.double(pts[i].Lng)
	}
}

func cDoublesToGo(p *C.double, n int) []float64 {
	if p == nil {
		return make([]float64, n)
	}
	src := unsafe.Slice(p, n)
	out := make([]float64, n)
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

func main() {}
