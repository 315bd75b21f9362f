// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the /css endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/css/health     - Liveness and parser backends
//	POST /v1/css/parse      - Memoized parse outcome
//	POST /v1/css/invalidate - Drop every cached outcome of a path
//	GET  /v1/css/keys       - Cached keys of a path
//	GET  /v1/css/stats      - Cache counters
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/css")
	g.GET("/health", h.HandleHealth)
	g.POST("/parse", h.HandleParse)
	g.POST("/invalidate", h.HandleInvalidate)
	g.GET("/keys", h.HandleKeys)
	g.GET("/stats", h.HandleStats)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Debug enables gin debug mode and request logging.
	Debug bool

	// RateLimit bounds /v1 requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// NewRouter returns a router with recovery, tracing, /metrics and the
// rate limited /v1/css routes.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("cssmod"))
	if opts.Debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1", RateLimit(opts.RateLimit, opts.Burst)), h)
	return router
}

// Serve runs handler on addr until ctx is canceled, then shuts down
// within timeout.
func Serve(ctx context.Context, addr string, handler http.Handler, timeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
