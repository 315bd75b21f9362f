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
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cssmodules.cache"

// Prometheus counters shared by every Cache in the process.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cssmod_cache_hits_total",
		Help: "Outcome cache lookups answered from memory",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cssmod_cache_misses_total",
		Help: "Outcome cache lookups that had to wait for a computation",
	})

	cacheComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cssmod_cache_computations_total",
		Help: "Outcome computations by result",
	}, []string{"result"})

	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cssmod_cache_evictions_total",
		Help: "Entries evicted to respect the size bound",
	})

	cacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cssmod_cache_invalidations_total",
		Help: "Entries removed by invalidation",
	})
)

// startCacheSpan creates a span for a cache operation.
func startCacheSpan(ctx context.Context, operation string, key Key) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "Cache."+operation,
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("css.path", key.Path),
			attribute.String("css.module_type", key.ModuleType.String()),
		),
	)
}

// setCacheSpanResult sets the result attributes on a cache span.
func setCacheSpanResult(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}
