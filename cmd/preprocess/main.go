// Command preprocess builds a mode-aware Persisted Bundle from a raw OSM
// extract and writes it to the `<input>.<mode>.routing` cache path
// (spec.md §4.5/§4.6), so a later `serve`/`libroutex` run loads straight
// from cache instead of re-parsing the extract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"routex/pkg/bundle"
	"routex/pkg/ch"
	"routex/pkg/graph"
	osmparser "routex/pkg/osm"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	modesFlag := flag.String("modes", "auto,bicycle,pedestrian", "Comma-separated list of modes to build")
	bboxFlag := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng")
	singapore := flag.Bool("singapore", false, "Shortcut for --bbox 1.15,103.6,1.48,104.1 (Singapore bounding box)")
	kl := flag.Bool("kl", false, "Shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur bounding box)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--modes auto,bicycle,pedestrian] [--singapore | --kl | --bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	var bbox osmparser.BBox
	switch {
	case *kl:
		bbox = osmparser.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}
	case *singapore:
		bbox = osmparser.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
	case *bboxFlag != "":
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bboxFlag, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v", err)
		}
		bbox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
	}

	modes, err := parseModes(*modesFlag)
	if err != nil {
		log.Fatal(err)
	}

	for _, mode := range modes {
		if err := buildMode(*input, mode, bbox); err != nil {
			log.Fatalf("mode %s: %v", mode, err)
		}
	}
}

func parseModes(csv string) ([]speed.Mode, error) {
	var modes []speed.Mode
	for _, s := range strings.Split(csv, ",") {
		m := speed.Mode(strings.TrimSpace(s))
		if !m.Valid() {
			return nil, fmt.Errorf("unknown mode %q", m)
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func buildMode(input string, mode speed.Mode, bbox osmparser.BBox) error {
	start := time.Now()
	log.Printf("[%s] opening %s...", mode, input)

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	log.Printf("[%s] parsing OSM data...", mode)
	parseResult, err := osmparser.Parse(context.Background(), f, osmparser.ParseOptions{Mode: mode, BBox: bbox})
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	log.Printf("[%s] parsed %d edges, %d nodes", mode, len(parseResult.Edges), len(parseResult.NodeLat))

	g := graph.Build(parseResult)
	log.Printf("[%s] graph: %d nodes, %d edges", mode, g.NumNodes, g.NumEdges)

	componentNodes := graph.LargestComponent(g)
	log.Printf("[%s] largest component: %d nodes (%.1f%%)", mode, len(componentNodes), float64(len(componentNodes))/float64(g.NumNodes)*100)
	g = graph.FilterToComponent(g, componentNodes)
	log.Printf("[%s] filtered graph: %d nodes, %d edges", mode, g.NumNodes, g.NumEdges)

	log.Printf("[%s] running contraction hierarchies...", mode)
	chg := ch.Contract(g, nil)
	log.Printf("[%s] CH complete: %d fwd edges, %d bwd edges", mode, len(chg.FwdHead), len(chg.BwdHead))

	cachePath := registry.CachePath(input, mode)
	log.Printf("[%s] writing bundle to %s...", mode, cachePath)
	if err := bundle.Save(cachePath, g, chg); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	info, _ := os.Stat(cachePath)
	var size int64
	if info != nil {
		size = info.Size()
	}
	log.Printf("[%s] done in %s. bundle: %s (%.1f MB)", mode, time.Since(start).Round(time.Second), cachePath, float64(size)/(1024*1024))
	return nil
}
