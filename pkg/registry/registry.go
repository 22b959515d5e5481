// Package registry is the process-wide mapping from transport mode to
// currently loaded bundle and query engine (spec.md §4.6). Three
// independent slots — auto, bicycle, pedestrian — are each guarded by their
// own mutex so that loading one mode never blocks queries against another.
package registry

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"routex/pkg/bundle"
	"routex/pkg/ch"
	"routex/pkg/graph"
	osmparser "routex/pkg/osm"
	"routex/pkg/routing"
	"routex/pkg/spatial"
	"routex/pkg/speed"
)

// ErrNotLoaded is returned by any per-slot operation against a mode whose
// slot is currently empty.
var ErrNotLoaded = errors.New("registry: mode slot not loaded")

// ErrUnknownMode is returned for a mode string outside {auto, bicycle,
// pedestrian}; unlike an unloaded slot, there is no slot to even look up.
var ErrUnknownMode = errors.New("registry: unknown mode")

// slot holds one mode's loaded bundle and the engine built from it. The
// mutex protects installation and teardown; it is not held across a single
// query's execution — the bundle is read-only once installed. WithEngine
// is the exception: it holds the mutex for a whole batch, so a load,
// unload or engine lookup on that slot waits until the batch finishes
// (spec.md §5's "shared resources" and §4.6's per-slot mutex rule).
type slot struct {
	mu     sync.Mutex
	engine *routing.Engine
	g      *graph.Graph
	loaded bool
}

// Registry owns the three mode slots and dedupes concurrent loads of the
// same mode via singleflight, so two callers racing to warm the same slot
// pay for one build instead of two.
type Registry struct {
	logger *slog.Logger
	slots  map[speed.Mode]*slot
	sf     singleflight.Group
}

// New creates a Registry with all three mode slots empty. A nil logger
// defaults to slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger, slots: make(map[speed.Mode]*slot, 3)}
	for _, m := range []speed.Mode{speed.Auto, speed.Bicycle, speed.Pedestrian} {
		r.slots[m] = &slot{}
	}
	return r
}

func (r *Registry) slotFor(mode speed.Mode) (*slot, error) {
	s, ok := r.slots[mode]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMode, "%q", mode)
	}
	return s, nil
}

// CachePath composes the on-disk bundle path for an extract and mode
// (spec.md §4.5/§8 invariant 4: "<pbf_path>.<mode>.routing").
func CachePath(pbfPath string, mode speed.Mode) string {
	return pbfPath + "." + string(mode) + ".routing"
}

// Load installs mode's bundle for pbfPath: a cache hit loads straight from
// disk; a miss or corrupt cache falls back to building from the raw
// extract and writes the result back (cache-write failure is logged and
// otherwise ignored, per spec.md §4.6 and §7). Concurrent Load calls for
// the same (pbfPath, mode) collapse into a single build.
func (r *Registry) Load(ctx context.Context, pbfPath string, mode speed.Mode) error {
	s, err := r.slotFor(mode)
	if err != nil {
		return err
	}

	key := string(mode) + "|" + pbfPath
	_, err, _ = r.sf.Do(key, func() (any, error) {
		return nil, r.load(ctx, s, pbfPath, mode)
	})
	return err
}

func (r *Registry) load(ctx context.Context, s *slot, pbfPath string, mode speed.Mode) error {
	cachePath := CachePath(pbfPath, mode)

	g, chg, err := bundle.Load(cachePath)
	if err != nil {
		r.logger.Info("bundle cache miss, rebuilding", "path", cachePath, "mode", string(mode), "reason", err)
		g, chg, err = buildFromExtract(ctx, pbfPath, mode, r.logger)
		if err != nil {
			return errors.Wrap(err, "registry: build")
		}
		if werr := bundle.Save(cachePath, g, chg); werr != nil {
			r.logger.Warn("bundle cache write failed", "path", cachePath, "error", werr)
		}
	}

	idx := spatial.Build(g)
	eng := routing.NewEngine(chg, g, idx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = eng
	s.g = g
	s.loaded = true
	return nil
}

// buildFromExtract runs the full pipeline — parse, build, contract — for a
// single mode against a raw OSM extract.
func buildFromExtract(ctx context.Context, pbfPath string, mode speed.Mode, logger *slog.Logger) (*graph.Graph, *ch.CHGraph, error) {
	f, err := os.Open(pbfPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "registry: open extract")
	}
	defer f.Close()

	result, err := osmparser.Parse(ctx, f, osmparser.ParseOptions{Mode: mode, Logger: logger})
	if err != nil {
		return nil, nil, errors.Wrap(err, "registry: parse extract")
	}

	g := graph.Build(result)
	g = graph.FilterToComponent(g, graph.LargestComponent(g))
	chg := ch.Contract(g, logger)
	return g, chg, nil
}

// Unload drops mode's slot contents (spec.md §4.6).
func (r *Registry) Unload(mode speed.Mode) {
	s, err := r.slotFor(mode)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = nil
	s.g = nil
	s.loaded = false
}

// IsLoaded reports whether mode currently has an installed bundle.
func (r *Registry) IsLoaded(mode speed.Mode) bool {
	s, err := r.slotFor(mode)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// NodeCount returns mode's node count, or −2 if its slot is unloaded
// (spec.md §6's callable surface table).
func (r *Registry) NodeCount(mode speed.Mode) int64 {
	s, err := r.slotFor(mode)
	if err != nil {
		return -2
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return -2
	}
	return int64(s.g.NumNodes)
}

// Engine returns mode's query engine. The slot mutex is held only long
// enough to read the reference — the engine's bundle is immutable once
// installed, so this is safe to call concurrently with other queries
// against the same slot.
func (r *Registry) Engine(mode speed.Mode) (*routing.Engine, error) {
	s, err := r.slotFor(mode)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	return s.engine, nil
}

// WithEngine holds mode's slot mutex for fn's entire duration, giving fn a
// stable engine reference without a per-query lock/unlock. Batch queries
// use this to take the slot mutex once for the whole batch, per spec.md
// §4.7: "the registry mutex is held once to obtain a reference for the
// batch's duration."
func (r *Registry) WithEngine(mode speed.Mode, fn func(*routing.Engine) error) error {
	s, err := r.slotFor(mode)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	return fn(s.engine)
}
