// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes parse outcomes per (path, module type, transform
// set) with at most one computation in flight per key.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/cssmodules/services/css"
)

// Cache is an LRU cache of parse outcomes.
//
// Description:
//
//	Get returns the cached outcome for a key or computes it. Concurrent
//	Gets for the same key share one computation. A computation that fails,
//	including by cancellation, stores nothing, so the next Get recomputes.
//	A waiter whose shared computation was canceled by another caller
//	retries under its own context. Invalidate drops every entry of a path;
//	computations that started before it still answer their waiters but are
//	neither stored nor joined by later Gets.
//
// Thread Safety:
//
//	Cache is safe for concurrent use. Stored outcomes are never mutated.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*Entry
	byPath  map[string]map[Key]struct{}
	gens    map[string]uint64
	seq     uint64
	cleared uint64
	lru     *list.List
	flight  singleflight.Group
	options Options
	logger  *slog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	computations  atomic.Int64
	failures      atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

// New creates a cache.
func New(opts ...Option) *Cache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[Key]*Entry),
		byPath:  make(map[string]map[Key]struct{}),
		gens:    make(map[string]uint64),
		lru:     list.New(),
		options: options,
		logger:  logger,
	}
}

// Get returns the outcome for key, computing it with compute on a miss.
//
// Inputs:
//
//	ctx     - Context for cancellation. Canceling it abandons the wait; the
//	          computation is canceled too when this caller started it.
//	key     - Cache key.
//	compute - Producer of the outcome.
//
// Outputs:
//
//	*css.ParseOutcome - The shared outcome. Must not be modified.
//	error - The computation's error, or the context error.
func (c *Cache) Get(ctx context.Context, key Key, compute ComputeFunc) (*css.ParseOutcome, error) {
	ctx, span := startCacheSpan(ctx, "Get", key)
	defer span.End()

	if e, ok := c.lookup(key); ok {
		c.hits.Add(1)
		cacheHitsTotal.Inc()
		setCacheSpanResult(span, true)
		return e.Outcome, nil
	}
	c.misses.Add(1)
	cacheMissesTotal.Inc()
	setCacheSpanResult(span, false)

	e, err := c.await(ctx, key, compute)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return e.Outcome, nil
}

// Refresh recomputes key and reports whether the outcome changed.
//
// Description:
//
//	The cached entry is dropped and recomputed. Changes are judged with
//	css.ParseOutcome.Equal, so a Parsed outcome always counts as changed
//	while Unparseable to Unparseable does not. A key that was not cached
//	counts as changed.
func (c *Cache) Refresh(ctx context.Context, key Key, compute ComputeFunc) (*css.ParseOutcome, bool, error) {
	ctx, span := startCacheSpan(ctx, "Refresh", key)
	defer span.End()

	c.mu.Lock()
	var prev *css.ParseOutcome
	if e, ok := c.entries[key]; ok {
		prev = e.Outcome
		c.removeLocked(e)
	}
	c.bumpLocked(key.Path)
	c.mu.Unlock()

	e, err := c.await(ctx, key, compute)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return e.Outcome, prev == nil || !prev.Equal(e.Outcome), nil
}

func (c *Cache) await(ctx context.Context, key Key, compute ComputeFunc) (*Entry, error) {
	for {
		// The generation keeps callers from joining a computation that
		// started before the path was invalidated.
		gen := c.generation(key.Path)
		ch := c.flight.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
			return c.compute(ctx, key, gen, compute)
		})
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", key.Path, ctx.Err())
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*Entry), nil
			}
			var abandoned *abandonedError
			if errors.As(res.Err, &abandoned) {
				if ctx.Err() == nil {
					c.logger.Debug("shared computation was canceled, retrying", slog.String("path", key.Path))
					continue
				}
				return nil, abandoned.err
			}
			return nil, res.Err
		}
	}
}

// compute runs inside the singleflight call.
func (c *Cache) compute(ctx context.Context, key Key, gen uint64, compute ComputeFunc) (*Entry, error) {
	// Another call may have stored the key since the caller's lookup.
	if e, ok := c.lookup(key); ok {
		return e, nil
	}

	out, err := compute(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			cacheComputationsTotal.WithLabelValues("canceled").Inc()
			return nil, &abandonedError{err: err}
		}
		c.failures.Add(1)
		cacheComputationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if out == nil {
		c.failures.Add(1)
		cacheComputationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", key.Path, ErrNilOutcome)
	}
	c.computations.Add(1)
	cacheComputationsTotal.WithLabelValues(out.Kind().String()).Inc()

	now := time.Now()
	e := &Entry{
		ID:         uuid.New(),
		Key:        key,
		Outcome:    out,
		ComputedAt: now,
		LastAccess: now,
	}
	c.store(e, gen)
	return e, nil
}

func (c *Cache) generation(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(path)
}

// generationLocked changes whenever path is invalidated or the cache is
// cleared. Caller holds c.mu.
func (c *Cache) generationLocked(path string) uint64 {
	return max(c.gens[path], c.cleared)
}

// bumpLocked moves path to a new generation. Caller holds c.mu.
func (c *Cache) bumpLocked(path string) {
	c.seq++
	c.gens[path] = c.seq
}

func (c *Cache) lookup(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.isExpired(e) {
		c.removeLocked(e)
		return nil, false
	}
	e.LastAccess = time.Now()
	c.lru.MoveToFront(e.lruElement)
	return e, true
}

func (c *Cache) store(e *Entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generationLocked(e.Key.Path) != gen {
		c.logger.Debug("discarding outcome computed before invalidation", slog.String("path", e.Key.Path))
		return
	}
	if old, ok := c.entries[e.Key]; ok {
		c.removeLocked(old)
	}
	c.evictIfNeeded()

	e.lruElement = c.lru.PushFront(e.Key)
	c.entries[e.Key] = e
	keys := c.byPath[e.Key.Path]
	if keys == nil {
		keys = make(map[Key]struct{})
		c.byPath[e.Key.Path] = keys
	}
	keys[e.Key] = struct{}{}
}

func (c *Cache) isExpired(e *Entry) bool {
	if c.options.MaxAge == 0 {
		return false
	}
	return time.Since(e.ComputedAt) > c.options.MaxAge
}

// evictIfNeeded makes room for one entry. Caller holds c.mu.
func (c *Cache) evictIfNeeded() {
	for len(c.entries) >= c.options.MaxEntries {
		back := c.lru.Back()
		if back == nil {
			return
		}
		e := c.entries[back.Value.(Key)]
		c.removeLocked(e)
		c.evictions.Add(1)
		cacheEvictionsTotal.Inc()
		c.logger.Debug("evicted outcome", slog.String("path", e.Key.Path), slog.String("id", e.ID.String()))
	}
}

// removeLocked removes e. Caller holds c.mu.
func (c *Cache) removeLocked(e *Entry) {
	if e.lruElement != nil {
		c.lru.Remove(e.lruElement)
		e.lruElement = nil
	}
	delete(c.entries, e.Key)
	if keys := c.byPath[e.Key.Path]; keys != nil {
		delete(keys, e.Key)
		if len(keys) == 0 {
			delete(c.byPath, e.Key.Path)
		}
	}
}

// Peek returns a copy of the entry for key without computing it or
// touching the LRU order.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.isExpired(e) {
		return Entry{}, false
	}
	cp := *e
	cp.lruElement = nil
	return cp, true
}

// KeysFor returns the cached keys of path, ordered by module type and
// transform set.
func (c *Cache) KeysFor(path string) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.byPath[path]))
	for k := range c.byPath[path] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ModuleType != keys[j].ModuleType {
			return keys[i].ModuleType < keys[j].ModuleType
		}
		return keys[i].TransformSetID < keys[j].TransformSetID
	})
	return keys
}

// Invalidate removes every entry of path and returns how many there were.
// Computations of path already running are not stored.
func (c *Cache) Invalidate(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bumpLocked(path)
	n := 0
	for k := range c.byPath[path] {
		c.removeLocked(c.entries[k])
		n++
	}
	c.invalidations.Add(int64(n))
	cacheInvalidationsTotal.Add(float64(n))
	return n
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.cleared = c.seq
	c.gens = make(map[string]uint64)
	c.entries = make(map[Key]*Entry)
	c.byPath = make(map[string]map[Key]struct{})
	c.lru.Init()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MaxEntries returns the size bound.
func (c *Cache) MaxEntries() int {
	return c.options.MaxEntries
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Computations:  c.computations.Load(),
		Errors:        c.failures.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		MaxEntries:    c.options.MaxEntries,
		MaxAge:        c.options.MaxAge,
	}
}
