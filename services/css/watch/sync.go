// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/cache"
)

// Refreshed reports the result of recomputing one cached key after a change.
type Refreshed struct {
	Change  Change
	Key     cache.Key
	Outcome *css.ParseOutcome
	Changed bool
	Err     error
}

// PathFunc maps an absolute changed path to the path cache keys use. It
// returns false for paths the cache does not know about.
type PathFunc func(abs string) (string, bool)

// RelativeTo returns a PathFunc producing slash-separated paths relative
// to root. Paths outside root are rejected.
func RelativeTo(root string) PathFunc {
	return func(abs string) (string, bool) {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", false
		}
		return filepath.ToSlash(rel), true
	}
}

// Syncer keeps a cache in step with file changes.
//
// Description:
//
//	For each changed path, every cached key of that path is recomputed
//	with Refresh and reported to OnRefresh. Removed and renamed files are
//	recomputed too, which turns their entries into NotFound outcomes.
//	Paths with no cached keys are skipped.
type Syncer struct {
	Cache   *cache.Cache
	Compute cache.ComputeFunc
	Path    PathFunc

	// OnRefresh is called once per recomputed key. May be nil.
	OnRefresh func(Refreshed)

	Logger *slog.Logger
}

// Handler returns a Handler that syncs under ctx.
func (s *Syncer) Handler(ctx context.Context) Handler {
	return func(changes []Change) {
		s.Sync(ctx, changes)
	}
}

// Sync refreshes the cache for changes and returns how many keys were
// recomputed.
func (s *Syncer) Sync(ctx context.Context, changes []Change) int {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := 0
	for _, change := range changes {
		if ctx.Err() != nil {
			return n
		}
		path := change.Path
		if s.Path != nil {
			p, ok := s.Path(change.Path)
			if !ok {
				continue
			}
			path = p
		}
		for _, key := range s.Cache.KeysFor(path) {
			out, changed, err := s.Cache.Refresh(ctx, key, s.Compute)
			n++
			if err != nil {
				logger.Warn("refresh stylesheet",
					slog.String("path", path),
					slog.String("op", change.Op.String()),
					slog.String("error", err.Error()))
			} else {
				logger.Debug("refreshed stylesheet",
					slog.String("path", path),
					slog.String("outcome", out.Kind().String()),
					slog.Bool("changed", changed))
			}
			if s.OnRefresh != nil {
				s.OnRefresh(Refreshed{Change: change, Key: key, Outcome: out, Changed: changed, Err: err})
			}
		}
	}
	return n
}
