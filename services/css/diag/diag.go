// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diag defines structured diagnostics and the sinks that receive
// them.
//
// Diagnostics never change control flow. A parser collects them, the
// result layer forwards them to a caller-owned Sink, and the caller decides
// how to render or store them.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/cssmodules/services/css/token"
)

// Categories identify the stage that produced a diagnostic.
const (
	// CategoryParse is used for every diagnostic produced while parsing.
	CategoryParse = "css/parse"
)

// TitleParse is the headline shown for parse diagnostics.
const TitleParse = "Parsing css source code failed"

// Severity is the importance of a diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns "warning" or "error".
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", s)
	}
}

// Diagnostic is a single message attributed to a source span.
type Diagnostic struct {
	Category string
	Title    string
	Severity Severity
	Message  string
	Span     token.Span

	// Position is the resolved start of Span. It is filled in by Resolve
	// and may be zero for diagnostics without a location.
	Position token.Position
}

// Error formats the diagnostic like a compiler message.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Position, d.Severity, d.Message)
}

// Errorf returns an error-severity diagnostic.
func Errorf(span token.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Warningf returns a warning-severity diagnostic.
func Warningf(span token.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Span: span, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Resolve fills in Position using sm. Diagnostics whose span is outside
// the map keep a zero Position.
func Resolve(sm *token.SourceMap, diags []Diagnostic) {
	if sm == nil {
		return
	}
	for i := range diags {
		if pos, ok := sm.Lookup(diags[i].Span.Start); ok {
			diags[i].Position = pos
		}
	}
}

// Sink receives diagnostics. Emit must not block for long and must be safe
// for concurrent use.
type Sink interface {
	Emit(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

// Emit calls f(d).
func (f SinkFunc) Emit(d Diagnostic) { f(d) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Collector is a Sink that keeps every diagnostic in memory.
//
// Thread Safety:
//
//	Collector is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Emit records d.
func (c *Collector) Emit(d Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

// Diagnostics returns a copy of everything emitted so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Len returns the number of diagnostics emitted so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// Reset drops all collected diagnostics.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.diags = nil
	c.mu.Unlock()
}

// LogSink writes each diagnostic as a structured log record. Errors are
// logged at slog.LevelError and warnings at slog.LevelWarn.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger, or to slog.Default()
// when logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

// Emit logs d.
func (s *LogSink) Emit(d Diagnostic) {
	level := slog.LevelWarn
	if d.Severity >= SeverityError {
		level = slog.LevelError
	}
	title := d.Title
	if title == "" {
		title = d.Message
	}
	s.Logger.LogAttrs(context.Background(), level, title,
		slog.String("category", d.Category),
		slog.String("severity", d.Severity.String()),
		slog.String("message", d.Message),
		slog.String("file", d.Position.Filename),
		slog.Int("line", d.Position.Line),
		slog.Int("column", d.Position.Column),
	)
}

// Multi fans each diagnostic out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(d Diagnostic) {
		for _, s := range out {
			s.Emit(d)
		}
	})
}
