// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for the cssmod tools.
//
// The css packages record spans with otel.Tracer and instruments with
// otel.Meter. Until Init installs providers those calls are no-ops, so
// library users pay nothing unless they opt in.
//
// # Exporters
//
// Traces go to an OTLP gRPC receiver, to a writer as JSON ("stdout"), or
// nowhere ("none"). Metrics go to the default Prometheus registry, to a
// writer, or nowhere. The Prometheus registry also carries the cache
// counters, so one /metrics endpoint or one text dump shows both.
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - CSSMOD_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry

import "errors"

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an exporter name Init does not
	// know.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)
