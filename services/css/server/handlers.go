// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the outcome cache over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/cache"
	"github.com/AleutianAI/cssmodules/services/css/telemetry"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

const tracerName = "cssmodules.server"

// Handlers serves parse outcomes from a shared cache.
type Handlers struct {
	engine     *css.Engine
	cache      *cache.Cache
	logger     *slog.Logger
	parserName string
}

// NewHandlers creates handlers parsing with engine through c.
func NewHandlers(engine *css.Engine, c *cache.Cache) *Handlers {
	return &Handlers{engine: engine, cache: c, logger: slog.Default()}
}

// WithLogger sets the logger.
func (h *Handlers) WithLogger(l *slog.Logger) *Handlers {
	if l != nil {
		h.logger = l
	}
	return h
}

// WithParserName sets the backend name reported by the health endpoint.
func (h *Handlers) WithParserName(name string) *Handlers {
	h.parserName = name
	return h
}

// HandleHealth handles GET /v1/css/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  Version,
		Parser:   h.parserName,
		Backends: css.Backends().Names(),
	})
}

// HandleParse handles POST /v1/css/parse.
//
// Description:
//
//	Returns the memoized outcome for the requested path, module type and
//	transform set, computing it on a miss. Unparseable and NotFound are
//	successful responses; only hard failures are errors.
//
// Response:
//
//	200 OK: ParseResponse
//	400 Bad Request: invalid body, module type or transform name
//	500 Internal Server Error: source, transform or compile failure
//	504 Gateway Timeout: the request context ended first
func (h *Handlers) HandleParse(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), tracerName, "Handlers.Parse")
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, h.logger).With(slog.String("handler", "HandleParse"))

	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid parse request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	mt := css.ClassifyByName(req.Path)
	if req.ModuleType != "" {
		parsed, err := css.ParseModuleType(req.ModuleType)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_MODULE_TYPE"})
			return
		}
		mt = parsed
	}

	pipeline, err := transform.FromNames(req.Transforms...)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_TRANSFORM"})
		return
	}

	key := cache.NewKey(req.Path, mt, pipeline)
	out, err := h.cache.Get(ctx, key, cache.EngineCompute(h.engine, pipeline))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("parse failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		h.writeError(c, err)
		return
	}
	telemetry.SetSpanOK(span)

	resp := ParseResponse{
		Path:       req.Path,
		ModuleType: mt.String(),
		Outcome:    out.Kind().String(),
		Imports:    out.Imports(),
		Exports:    out.Exports(),
	}
	if e, ok := h.cache.Peek(key); ok && e.Outcome == out {
		resp.EntryID = e.ID.String()
		resp.ComputedAt = e.ComputedAt
	}
	if req.Print && out.IsParsed() {
		resp.CSS = ast.Format(out.Stylesheet())
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	var cerr *css.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Code: "CANCELED"})
	case errors.As(err, &cerr):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "PARSE_FAILED",
			Stage: string(cerr.Stage),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
	}
}

// HandleInvalidate handles POST /v1/css/invalidate.
func (h *Handlers) HandleInvalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	n := h.cache.Invalidate(req.Path)
	h.logger.Info("invalidated stylesheet", slog.String("path", req.Path), slog.Int("removed", n))
	c.JSON(http.StatusOK, InvalidateResponse{Path: req.Path, Removed: n})
}

// HandleKeys handles GET /v1/css/keys?path=...
func (h *Handlers) HandleKeys(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path is required", Code: "INVALID_REQUEST"})
		return
	}
	keys := h.cache.KeysFor(path)
	resp := make([]KeyResponse, len(keys))
	for i, k := range keys {
		resp[i] = KeyResponse{Path: k.Path, ModuleType: k.ModuleType.String(), TransformSetID: k.TransformSetID}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/css/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	s := h.cache.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Entries:       s.Entries,
		Hits:          s.Hits,
		Misses:        s.Misses,
		Computations:  s.Computations,
		Errors:        s.Errors,
		Evictions:     s.Evictions,
		Invalidations: s.Invalidations,
		MaxEntries:    s.MaxEntries,
		MaxAge:        s.MaxAge.String(),
	})
}
