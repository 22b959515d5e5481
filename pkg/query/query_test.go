package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routex/pkg/bundle"
	"routex/pkg/ch"
	"routex/pkg/graph"
	osmparser "routex/pkg/osm"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

// buildAndLoad writes a small 4-node line graph (A-B-C-D, 10 s/hop) to a
// bundle cache and loads it into a fresh registry under mode auto, mirroring
// spec.md §8's synthetic 4-node grid end-to-end scenario.
func buildAndLoad(t *testing.T) *registry.Registry {
	t.Helper()
	pbfPath := filepath.Join(t.TempDir(), "grid.osm.pbf")
	cachePath := registry.CachePath(pbfPath, speed.Auto)

	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, WeightMS: 10000, MainRoad: true},
			{FromNodeID: 2, ToNodeID: 1, WeightMS: 10000, MainRoad: true},
			{FromNodeID: 2, ToNodeID: 3, WeightMS: 10000, MainRoad: true},
			{FromNodeID: 3, ToNodeID: 2, WeightMS: 10000, MainRoad: true},
			{FromNodeID: 3, ToNodeID: 4, WeightMS: 10000, MainRoad: true},
			{FromNodeID: 4, ToNodeID: 3, WeightMS: 10000, MainRoad: true},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.300, 2: 1.301, 3: 1.302, 4: 1.303},
		NodeLon: map[osm.NodeID]float64{1: 103.800, 2: 103.800, 3: 103.800, 4: 103.800},
	}
	g := graph.Build(result)
	chg := ch.Contract(g, nil)
	require.NoError(t, bundle.Save(cachePath, g, chg))

	reg := registry.New(nil)
	require.NoError(t, reg.Load(context.Background(), pbfPath, speed.Auto))
	return reg
}

func TestTravelTimeEndToEnd(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	seconds := e.TravelTime(context.Background(), 1.300, 103.800, 1.303, 103.800, speed.Auto)
	assert.InDelta(t, 30.0, seconds, 0.5)
}

func TestTravelTimeUnloadedMode(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	seconds := e.TravelTime(context.Background(), 1.300, 103.800, 1.303, 103.800, speed.Pedestrian)
	assert.Equal(t, SentinelNotLoaded, seconds)
}

func TestTravelTimeUnknownMode(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	seconds := e.TravelTime(context.Background(), 1.300, 103.800, 1.303, 103.800, speed.Mode("scooter"))
	assert.Equal(t, SentinelFail, seconds)
}

func TestRouteEndToEnd(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	res, n := e.Route(context.Background(), 1.300, 103.800, 1.303, 103.800, speed.Auto, 64)
	require.Equal(t, 4, n)
	assert.InDelta(t, 30.0, res.DurationS, 0.5)
	assert.Greater(t, res.DistanceM, 0.0)
}

func TestRouteRejectsNonPositiveCap(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	_, n := e.Route(context.Background(), 1.300, 103.800, 1.303, 103.800, speed.Auto, 0)
	assert.Equal(t, -1, n)
}

func TestIsochroneEndToEnd(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	pts, n := e.Isochrone(1.300, 103.800, 25.0, speed.Auto, 64)
	require.Equal(t, 3, n)
	assert.Len(t, pts, 3)
	assert.Equal(t, 0.0, pts[0].Seconds)
}

func TestIsochroneUnloadedMode(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	_, n := e.Isochrone(1.300, 103.800, 25.0, speed.Bicycle, 64)
	assert.Equal(t, -2, n)
}

func TestSnapEndToEnd(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	res, code := e.Snap(1.3001, 103.800, speed.Auto)
	require.Equal(t, 0, code)
	assert.InDelta(t, 1.300, res.Lat, 1e-3)
}

func TestRouteFromGeometryWKT(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	start := GeometryInput{Encoding: WKT, Text: "POINT(103.800 1.300)"}
	end := GeometryInput{Encoding: WKT, Text: "POINT(103.800 1.303)"}

	res, n := e.RouteFromGeometry(context.Background(), start, end, speed.Auto, 64)
	require.Equal(t, 4, n)
	assert.InDelta(t, 30.0, res.DurationS, 0.5)
}

func TestRouteFromGeometryInvalid(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	start := GeometryInput{Encoding: WKT, Text: "NOT A GEOMETRY"}
	end := GeometryInput{Encoding: WKT, Text: "POINT(103.800 1.303)"}

	_, n := e.RouteFromGeometry(context.Background(), start, end, speed.Auto, 64)
	assert.Equal(t, -1, n)
}

func TestBatchTravelTimeEquivalence(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	n := 5
	lat1 := make([]float64, n)
	lon1 := make([]float64, n)
	lat2 := make([]float64, n)
	lon2 := make([]float64, n)
	for i := 0; i < n; i++ {
		lat1[i], lon1[i] = 1.300, 103.800
		lat2[i], lon2[i] = 1.303, 103.800
	}

	results, count := e.BatchTravelTime(context.Background(), lat1, lon1, lat2, lon2, speed.Auto)
	require.Equal(t, n, count)
	for _, v := range results {
		assert.InDelta(t, 30.0, v, 0.5)
	}
}

func TestBatchTravelTimeMismatchedLengths(t *testing.T) {
	reg := buildAndLoad(t)
	e := New(reg)

	_, count := e.BatchTravelTime(context.Background(), []float64{1.3}, []float64{103.8}, nil, nil, speed.Auto)
	assert.Equal(t, -1, count)
}
