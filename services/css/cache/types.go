// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

// Default limits.
const (
	// DefaultMaxEntries is the default bound on cached outcomes.
	DefaultMaxEntries = 4096

	// DefaultMaxAge is zero: entries live until evicted or invalidated.
	DefaultMaxAge time.Duration = 0
)

// Errors returned by the cache.
var (
	// ErrNilOutcome is returned when a compute function returns neither an
	// outcome nor an error.
	ErrNilOutcome = errors.New("compute returned a nil outcome")

	// ErrTransformSetMismatch is returned by EngineCompute for keys built
	// for another pipeline.
	ErrTransformSetMismatch = errors.New("key transform set does not match the pipeline")
)

// Key identifies one memoized outcome.
type Key struct {
	Path           string
	ModuleType     css.ModuleType
	TransformSetID string
}

// NewKey returns the key for parsing path as moduleType with pipeline.
func NewKey(path string, moduleType css.ModuleType, pipeline *transform.Pipeline) Key {
	return Key{Path: path, ModuleType: moduleType, TransformSetID: pipeline.ID()}
}

// String renders the key. It is also the singleflight key.
func (k Key) String() string {
	return k.Path + "\x00" + k.ModuleType.String() + "\x00" + k.TransformSetID
}

// ComputeFunc produces the outcome for key.
type ComputeFunc func(ctx context.Context, key Key) (*css.ParseOutcome, error)

// EngineCompute returns a ComputeFunc that parses with e and pipeline.
func EngineCompute(e *css.Engine, pipeline *transform.Pipeline) ComputeFunc {
	id := pipeline.ID()
	return func(ctx context.Context, key Key) (*css.ParseOutcome, error) {
		if key.TransformSetID != id {
			return nil, ErrTransformSetMismatch
		}
		return e.Parse(ctx, key.Path, key.ModuleType, pipeline)
	}
}

// Entry is a cached outcome.
type Entry struct {
	// ID identifies this computation. A recomputed outcome gets a new ID.
	ID uuid.UUID

	Key     Key
	Outcome *css.ParseOutcome

	ComputedAt time.Time
	LastAccess time.Time

	lruElement *list.Element
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Computations  int64
	Errors        int64
	Evictions     int64
	Invalidations int64
	MaxEntries    int
	MaxAge        time.Duration
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of cached outcomes.
	MaxEntries int

	// MaxAge expires entries after this long. Zero disables expiry.
	MaxAge time.Duration

	// Logger receives debug logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		MaxEntries: DefaultMaxEntries,
		MaxAge:     DefaultMaxAge,
	}
}

// Option is a functional option for configuring a Cache.
type Option func(*Options)

// WithMaxEntries sets the maximum number of cached entries.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithMaxAge sets the TTL for cached entries.
func WithMaxAge(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.MaxAge = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// abandonedError marks a computation that failed because the context it
// ran under was canceled. Waiters with a live context retry.
type abandonedError struct {
	err error
}

func (e *abandonedError) Error() string { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }
