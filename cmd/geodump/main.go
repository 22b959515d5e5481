// Command geodump runs a route or isochrone query against a loaded bundle
// and dumps the result as a GeoJSON FeatureCollection, for visual
// inspection in any GeoJSON viewer. Adapted from the teacher's HTML/
// Leaflet comparison dumper (cmd/visualize), repointed at this engine's own
// query layer instead of a third-party routing API comparison.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/paulmach/go.geojson"

	"routex/pkg/query"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

func main() {
	input := flag.String("input", "", "Path to the .osm.pbf extract whose bundle should be loaded")
	mode := flag.String("mode", "auto", "Transport mode")
	op := flag.String("op", "route", "Operation: route or isochrone")
	startLat := flag.Float64("start-lat", 0, "Start/origin latitude")
	startLng := flag.Float64("start-lng", 0, "Start/origin longitude")
	endLat := flag.Float64("end-lat", 0, "End latitude (route only)")
	endLng := flag.Float64("end-lng", 0, "End longitude (route only)")
	maxSeconds := flag.Float64("max-seconds", 300, "Isochrone cost budget, in seconds")
	maxPoints := flag.Int("max-points", 1024, "Output point cap")
	flag.Parse()

	if *input == "" {
		log.Fatal("Usage: geodump --input <file.osm.pbf> --op route|isochrone --start-lat ... --start-lng ... [--end-lat ... --end-lng ...]")
	}

	m := speed.Mode(*mode)
	if !m.Valid() {
		log.Fatalf("unknown mode %q", m)
	}

	reg := registry.New(nil)
	if err := reg.Load(context.Background(), *input, m); err != nil {
		log.Fatalf("load: %v", err)
	}
	q := query.New(reg)

	var fc *geojson.FeatureCollection
	switch *op {
	case "route":
		fc = dumpRoute(q, m, *startLat, *startLng, *endLat, *endLng, *maxPoints)
	case "isochrone":
		fc = dumpIsochrone(q, m, *startLat, *startLng, *maxSeconds, *maxPoints)
	default:
		log.Fatalf("unknown op %q (want route or isochrone)", *op)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		log.Fatalf("encode geojson: %v", err)
	}
}

func dumpRoute(q *query.Engine, mode speed.Mode, startLat, startLng, endLat, endLng float64, maxPoints int) *geojson.FeatureCollection {
	res, n := q.Route(context.Background(), startLat, startLng, endLat, endLng, mode, maxPoints)
	fc := geojson.NewFeatureCollection()
	if n < 0 {
		log.Fatalf("route failed: code %d", n)
	}

	coords := make([][]float64, len(res.Points))
	for i, p := range res.Points {
		coords[i] = []float64{p.Lng, p.Lat}
	}
	feat := geojson.NewLineStringFeature(coords)
	feat.SetProperty("distance_m", res.DistanceM)
	feat.SetProperty("duration_s", res.DurationS)
	fc.AddFeature(feat)
	return fc
}

func dumpIsochrone(q *query.Engine, mode speed.Mode, originLat, originLng, maxSeconds float64, maxPoints int) *geojson.FeatureCollection {
	pts, n := q.Isochrone(originLat, originLng, maxSeconds, mode, maxPoints)
	fc := geojson.NewFeatureCollection()
	if n < 0 {
		log.Fatalf("isochrone failed: code %d", n)
	}

	for _, p := range pts {
		feat := geojson.NewPointFeature([]float64{p.Lng, p.Lat})
		feat.SetProperty("seconds", p.Seconds)
		fc.AddFeature(feat)
	}
	return fc
}

