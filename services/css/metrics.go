// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package css

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "cssmodules.css"

var (
	parseDuration metric.Float64Histogram
	parseOutcomes metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use. The meter is looked up
// then, so a provider installed by telemetry.Init before the first parse
// receives the measurements.
func initMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		var err error

		parseDuration, err = meter.Float64Histogram(
			"css_parse_duration_seconds",
			metric.WithDescription("Duration of stylesheet parses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseOutcomes, err = meter.Int64Counter(
			"css_parse_outcomes_total",
			metric.WithDescription("Parse outcomes by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParse records the duration and outcome of one parse. kind is
// "error" for hard failures.
func recordParse(ctx context.Context, kind string, moduleType ModuleType, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("module_type", moduleType.String()),
	)
	parseDuration.Record(ctx, d.Seconds(), attrs)
	parseOutcomes.Add(ctx, 1, attrs)
}

// startParseSpan starts the span covering one parse.
func startParseSpan(ctx context.Context, path string, moduleType ModuleType, transformSet string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "css.Parse",
		trace.WithAttributes(
			attribute.String("css.path", path),
			attribute.String("css.module_type", moduleType.String()),
			attribute.String("css.transform_set", transformSet),
		),
	)
}
