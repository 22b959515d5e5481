// Command serve runs the ops HTTP surface (/health, /stats, /debug/route)
// against a registry of mode slots loaded from Persisted Bundles, for
// interactive inspection of an already-preprocessed dataset. This is the
// "host application" spec.md §1 scopes out of the core engine; it exists
// so the engine is runnable and demoable end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"routex/pkg/opsapi"
	"routex/pkg/query"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

func main() {
	input := flag.String("input", "", "Path to the .osm.pbf extract whose bundles should be loaded")
	modesFlag := flag.String("modes", "auto", "Comma-separated list of modes to load at startup")
	port := flag.Int("port", 8091, "HTTP port")
	flag.Parse()

	if *input == "" {
		log.Fatal("Usage: serve --input <file.osm.pbf> [--modes auto,bicycle,pedestrian] [--port 8091]")
	}

	reg := registry.New(nil)
	for _, s := range strings.Split(*modesFlag, ",") {
		mode := speed.Mode(strings.TrimSpace(s))
		if !mode.Valid() {
			log.Fatalf("unknown mode %q", mode)
		}
		log.Printf("loading mode %s from %s...", mode, *input)
		if err := reg.Load(context.Background(), *input, mode); err != nil {
			log.Fatalf("load %s: %v", mode, err)
		}
		log.Printf("%s ready: %d nodes", mode, reg.NodeCount(mode))
	}

	q := query.New(reg)
	handlers := opsapi.NewHandlers(q, reg)

	addr := fmt.Sprintf(":%d", *port)
	cfg := opsapi.DefaultConfig(addr)
	srv := opsapi.NewServer(cfg, handlers)

	if err := opsapi.ListenAndServe(srv, addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
