package opsapi

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxConcurrent int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:          addr,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		MaxConcurrent: runtime.NumCPU() * 2,
	}
}

// NewServer creates a fasthttp.Server with all routes and middleware wired.
func NewServer(cfg ServerConfig, handlers *Handlers) *fasthttp.Server {
	sem := make(chan struct{}, cfg.MaxConcurrent)

	router := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health":
			handlers.HandleHealth(ctx)
		case "/stats":
			handlers.HandleStats(ctx)
		case "/debug/route":
			handlers.HandleDebugRoute(ctx)
		default:
			writeError(ctx, fasthttp.StatusNotFound, "not_found")
		}
	}

	return &fasthttp.Server{
		Handler:      withMiddleware(router, sem),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts srv on addr and blocks until a shutdown signal.
func ListenAndServe(srv *fasthttp.Server, addr string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ops server listening on %s", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- srv.Shutdown() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// withMiddleware wraps handler with recovery and a concurrency limiter.
func withMiddleware(handler fasthttp.RequestHandler, sem chan struct{}) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set("X-Content-Type-Options", "nosniff")
		ctx.Response.Header.Set("Cache-Control", "no-store")

		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			ctx.Response.Header.Set("Retry-After", "1")
			writeError(ctx, fasthttp.StatusServiceUnavailable, "service_unavailable")
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic: %v", rec)
				writeError(ctx, fasthttp.StatusInternalServerError, "internal_error")
			}
		}()

		start := time.Now()
		handler(ctx)
		log.Printf("%s %s %s", ctx.Method(), ctx.Path(), time.Since(start).Round(time.Microsecond))
	}
}
