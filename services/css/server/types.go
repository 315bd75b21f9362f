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
	"time"

	"github.com/AleutianAI/cssmodules/services/css/modules"
)

// ParseRequest is the body of POST /v1/css/parse.
type ParseRequest struct {
	// Path is the stylesheet path as the source provider knows it.
	Path string `json:"path" binding:"required"`

	// ModuleType is "global" or "module". Empty classifies by file name.
	ModuleType string `json:"module_type" binding:"omitempty,oneof=global module"`

	// Transforms are built-in transform names, applied in order.
	Transforms []string `json:"transforms"`

	// Print includes the rendered stylesheet in the response.
	Print bool `json:"print"`
}

// ParseResponse describes one outcome.
type ParseResponse struct {
	Path       string          `json:"path"`
	ModuleType string          `json:"module_type"`
	Outcome    string          `json:"outcome"`
	Imports    []string        `json:"imports,omitempty"`
	Exports    modules.Exports `json:"exports,omitempty"`
	CSS        string          `json:"css,omitempty"`

	// EntryID identifies the cached computation that produced the
	// outcome.
	EntryID    string    `json:"entry_id,omitempty"`
	ComputedAt time.Time `json:"computed_at,omitempty"`
}

// InvalidateRequest is the body of POST /v1/css/invalidate.
type InvalidateRequest struct {
	Path string `json:"path" binding:"required"`
}

// InvalidateResponse reports how many cached outcomes were dropped.
type InvalidateResponse struct {
	Path    string `json:"path"`
	Removed int    `json:"removed"`
}

// KeyResponse is one cached key.
type KeyResponse struct {
	Path           string `json:"path"`
	ModuleType     string `json:"module_type"`
	TransformSetID string `json:"transform_set_id"`
}

// StatsResponse mirrors cache.Stats.
type StatsResponse struct {
	Entries       int    `json:"entries"`
	Hits          int64  `json:"hits"`
	Misses        int64  `json:"misses"`
	Computations  int64  `json:"computations"`
	Errors        int64  `json:"errors"`
	Evictions     int64  `json:"evictions"`
	Invalidations int64  `json:"invalidations"`
	MaxEntries    int    `json:"max_entries"`
	MaxAge        string `json:"max_age"`
}

// HealthResponse is the body of GET /v1/css/health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Parser   string   `json:"parser"`
	Backends []string `json:"backends"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Stage string `json:"stage,omitempty"`
}
