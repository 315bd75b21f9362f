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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/cache"
	"github.com/AleutianAI/cssmodules/services/css/modules"
	"github.com/AleutianAI/cssmodules/services/css/source"
)

type testServer struct {
	router *gin.Engine
	mem    *source.Memory
	cache  *cache.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := source.NewMemory()
	c := cache.New()
	h := NewHandlers(css.NewEngine(mem), c).WithParserName("native")

	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router.Group("/v1"), h)
	return &testServer{router: router, mem: mem, cache: c}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/v1/css/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	h := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "native", h.Parser)
	assert.Contains(t, h.Backends, "tree-sitter")
}

func TestParse_Module(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.SetString("card.module.css", `.card { composes: base from "./base.css"; color: red }`)

	resp := ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "card.module.css", Print: true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	pr := decode[ParseResponse](t, resp)
	assert.Equal(t, "module", pr.ModuleType)
	assert.Equal(t, "parsed", pr.Outcome)
	assert.Equal(t, []string{"./base.css"}, pr.Imports)
	require.Len(t, pr.Exports, 1)
	assert.Equal(t, "card", pr.Exports[0].Local)
	assert.Equal(t, []modules.ClassName{
		modules.Local("card◽card.module.css"),
		modules.Import("base", "./base.css"),
	}, pr.Exports[0].Names)
	assert.Contains(t, pr.CSS, ".card◽card.module.css {")
	assert.NotEmpty(t, pr.EntryID)
}

func TestParse_Memoized(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.SetString("a.css", ".a{}")

	first := decode[ParseResponse](t, ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"}))
	second := decode[ParseResponse](t, ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"}))

	assert.Equal(t, "global", first.ModuleType)
	assert.Equal(t, first.EntryID, second.EntryID)
	assert.Equal(t, 1, ts.mem.Reads("a.css"))
	assert.Empty(t, first.CSS)
}

func TestParse_ExplicitModuleTypeAndTransforms(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.SetString("a.css", ".a { .b {} }")

	resp := ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{
		Path:       "a.css",
		ModuleType: "module",
		Transforms: []string{"nesting", "drop-empty"},
		Print:      true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	pr := decode[ParseResponse](t, resp)
	assert.Equal(t, "module", pr.ModuleType)
	assert.Empty(t, pr.CSS, "every rule is empty after flattening")

	keys := decode[[]KeyResponse](t, ts.do(t, http.MethodGet, "/v1/css/keys?path=a.css", nil))
	require.Len(t, keys, 1)
	assert.Equal(t, "module", keys[0].ModuleType)
}

func TestParse_NotFoundAndUnparseable(t *testing.T) {
	ts := newTestServer(t)
	pr := decode[ParseResponse](t, ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "missing.css"}))
	assert.Equal(t, "not_found", pr.Outcome)
	assert.Empty(t, pr.Exports)

	ts.mem.SetRedirect("link.css", "/target.css")
	pr = decode[ParseResponse](t, ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "link.css"}))
	assert.Equal(t, "unparseable", pr.Outcome)
}

func TestParse_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing path", map[string]any{}, "INVALID_REQUEST"},
		{"bad module type", ParseRequest{Path: "a.css", ModuleType: "esm"}, "INVALID_REQUEST"},
		{"unknown transform", ParseRequest{Path: "a.css", Transforms: []string{"minify"}}, "UNKNOWN_TRANSFORM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/v1/css/parse", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Code)
		})
	}
}

func TestParse_HardFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	failing := source.ProviderFunc(func(context.Context, string) (source.Content, error) {
		return nil, errors.New("disk on fire")
	})
	h := NewHandlers(css.NewEngine(failing), cache.New())
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), h)
	ts := &testServer{router: router}

	resp := ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	er := decode[ErrorResponse](t, resp)
	assert.Equal(t, "PARSE_FAILED", er.Code)
	assert.Equal(t, "source", er.Stage)
}

func TestInvalidate(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.SetString("a.css", ".a{}")
	ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"})
	ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css", ModuleType: "module"})

	resp := ts.do(t, http.MethodPost, "/v1/css/invalidate", InvalidateRequest{Path: "a.css"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, decode[InvalidateResponse](t, resp).Removed)
	assert.Zero(t, ts.cache.Len())

	resp = ts.do(t, http.MethodPost, "/v1/css/invalidate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestKeys_RequiresPath(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/v1/css/keys", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.SetString("a.css", ".a{}")
	ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"})
	ts.do(t, http.MethodPost, "/v1/css/parse", ParseRequest{Path: "a.css"})

	s := decode[StatsResponse](t, ts.do(t, http.MethodGet, "/v1/css/stats", nil))
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, "0s", s.MaxAge)
}

func TestNewRouter_Metrics(t *testing.T) {
	h := NewHandlers(css.NewEngine(source.NewMemory()), cache.New())
	router := NewRouter(h, RouterOptions{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "cssmod_cache_hits_total")

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/css/health", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestNewRouter_RateLimit(t *testing.T) {
	h := NewHandlers(css.NewEngine(source.NewMemory()), cache.New())
	router := NewRouter(h, RouterOptions{RateLimit: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/css/health", nil))
		codes = append(codes, resp.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// /metrics is not limited.
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusNoContent, resp.Code)
	}
}

func TestServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()
	cancel()
	assert.NoError(t, <-done)
}
