package opsapi

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"routex/pkg/query"
	"routex/pkg/registry"
	"routex/pkg/speed"
)

var allModes = []speed.Mode{speed.Auto, speed.Bicycle, speed.Pedestrian}

// Handlers holds the ops HTTP handlers and their dependencies. This is an
// ambient debugging/monitoring surface, not the engine's real query
// interface (that's cmd/libroutex's C ABI) — spec.md §1 scopes the "host
// application" out of the core, so this exists only to make the engine
// runnable and inspectable end to end.
type Handlers struct {
	q   *query.Engine
	reg *registry.Registry
}

// NewHandlers creates handlers backed by q and reg.
func NewHandlers(q *query.Engine, reg *registry.Registry) *Handlers {
	return &Handlers{q: q, reg: reg}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /stats.
func (h *Handlers) HandleStats(ctx *fasthttp.RequestCtx) {
	resp := StatsResponse{Modes: make([]ModeStats, 0, len(allModes))}
	for _, mode := range allModes {
		resp.Modes = append(resp.Modes, ModeStats{
			Mode:      string(mode),
			Loaded:    h.reg.IsLoaded(mode),
			NodeCount: h.reg.NodeCount(mode),
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

// HandleDebugRoute handles POST /debug/route: a thin pass-through to
// pkg/query.Engine.Route for manual inspection of a live bundle.
func (h *Handlers) HandleDebugRoute(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req DebugRouteRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid_request")
		return
	}

	maxPoints := 256
	if req.MaxPoints != nil {
		maxPoints = *req.MaxPoints
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, n := h.q.Route(reqCtx, req.Start.Lat, req.Start.Lng, req.End.Lat, req.End.Lng, speed.Mode(req.Mode), maxPoints)
	if n < 0 {
		switch n {
		case -2:
			writeError(ctx, fasthttp.StatusServiceUnavailable, "mode_not_loaded")
		default:
			writeError(ctx, fasthttp.StatusUnprocessableEntity, "no_route_found")
		}
		return
	}

	resp := DebugRouteResponse{
		DistanceMeters:  res.DistanceM,
		DurationSeconds: res.DurationS,
		NumPoints:       n,
	}
	resp.Points = make([]LatLngJSON, len(res.Points))
	for i, p := range res.Points {
		resp.Points[i] = LatLngJSON{Lat: p.Lat, Lng: p.Lng}
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	enc := json.NewEncoder(ctx)
	_ = enc.Encode(v)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code string) {
	writeJSON(ctx, status, ErrorResponse{Error: code})
}
