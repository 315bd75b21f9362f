// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package css turns stylesheet sources into ParseOutcomes.
//
// A parse reads the source through a source.Provider, decodes it, parses
// it with a parser backend, runs a transform pipeline over the tree and,
// for CSS Modules, scopes local names and collects imports and exports.
// Malformed input never fails a parse: it yields an Unparseable outcome
// plus diagnostics. Only processing faults are returned as errors.
package css

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/cssmodules/services/css/decode"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/modules"
	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/parser/treesitter"
	"github.com/AleutianAI/cssmodules/services/css/source"
	"github.com/AleutianAI/cssmodules/services/css/token"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

// Backends returns a registry holding every parser backend.
func Backends() *parser.Registry {
	return parser.NewRegistry(parser.NewNative(), treesitter.New())
}

// Engine runs the parse pipeline.
//
// Thread Safety:
//
//	Engine is safe for concurrent use when its provider, parser, sink and
//	transforms are.
type Engine struct {
	provider source.Provider
	parser   parser.Parser
	config   parser.Config
	sink     diag.Sink
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser selects the parser backend. The default is the native parser.
func WithParser(p parser.Parser) Option {
	return func(e *Engine) {
		if p != nil {
			e.parser = p
		}
	}
}

// WithParserConfig sets the base parser configuration. CSSModules is
// overridden per parse from the module type.
func WithParserConfig(cfg parser.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithSink sets where diagnostics go. The default discards them.
func WithSink(s diag.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine reading sources from provider.
func NewEngine(provider source.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		parser:   parser.NewNative(),
		config:   parser.DefaultConfig(),
		sink:     diag.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses path with a default engine.
func Parse(ctx context.Context, provider source.Provider, path string, moduleType ModuleType, transforms *transform.Pipeline, sink diag.Sink) (*ParseOutcome, error) {
	return NewEngine(provider, WithSink(sink)).Parse(ctx, path, moduleType, transforms)
}

// Parse produces the outcome for one stylesheet.
//
// Description:
//
//	A redirect, undecodable bytes or an error-severity diagnostic yield
//	Unparseable; a missing source yields NotFound. All diagnostics,
//	warnings included, are sent to the sink before Parse returns. A fatal
//	parse error is reported as one more error diagnostic. For module
//	stylesheets, imports are collected from the transformed tree before
//	local names are scoped with the "◽"+path suffix.
//
// Inputs:
//
//	ctx        - Context for cancellation and tracing.
//	path       - Source path, also used to scope local names.
//	moduleType - Global or Module.
//	transforms - Pipeline applied to the tree. May be nil.
//
// Outputs:
//
//	*ParseOutcome - The outcome; nil when error is non-nil.
//	error - *Error for provider failures, transform failures, compile
//	        failures and cancellation.
func (e *Engine) Parse(ctx context.Context, path string, moduleType ModuleType, transforms *transform.Pipeline) (*ParseOutcome, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, path, moduleType, transforms.ID())
	defer span.End()

	out, err := e.parse(ctx, path, moduleType, transforms)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordParse(ctx, "error", moduleType, elapsed)
		e.logger.Debug("css parse failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	kind := out.Kind().String()
	span.SetAttributes(attribute.String("css.outcome", kind))
	span.SetStatus(codes.Ok, "")
	recordParse(ctx, kind, moduleType, elapsed)
	e.logger.Debug("css parsed",
		slog.String("path", path),
		slog.String("module_type", moduleType.String()),
		slog.String("outcome", kind),
		slog.Duration("duration", elapsed),
	)
	return out, nil
}

func (e *Engine) parse(ctx context.Context, path string, moduleType ModuleType, transforms *transform.Pipeline) (*ParseOutcome, error) {
	content, err := e.provider.Content(ctx, path)
	if err != nil {
		return nil, &Error{Path: path, Stage: StageSource, Err: err}
	}

	var raw []byte
	switch c := content.(type) {
	case source.Redirect:
		e.logger.Debug("css source is a redirect", slog.String("path", path), slog.String("target", c.Target))
		return Unparseable(), nil
	case source.File:
		if !c.Found {
			return NotFound(), nil
		}
		raw = c.Bytes
	default:
		return nil, &Error{Path: path, Stage: StageSource, Err: fmt.Errorf("unexpected content %T", content)}
	}

	text, err := decode.Decode(raw)
	if err != nil {
		e.logger.Debug("css source is not valid text", slog.String("path", path), slog.String("error", err.Error()))
		return Unparseable(), nil
	}

	sm := token.NewSourceMap()
	file := sm.AddFile(path, text)
	cfg := e.config
	cfg.CSSModules = moduleType == Module

	res, err := e.parser.Parse(ctx, file, cfg)
	var diags []diag.Diagnostic
	if res != nil {
		diags = res.Diagnostics
	}
	if err != nil {
		var fatal *parser.FatalError
		if !errors.As(err, &fatal) {
			return nil, &Error{Path: path, Stage: StageParse, Err: err}
		}
		d := diag.Errorf(fatal.Span, "%s", fatal.Error())
		d.Category, d.Title = diag.CategoryParse, diag.TitleParse
		diags = append(diags, d)
	}
	diag.Resolve(sm, diags)
	for _, d := range diags {
		e.sink.Emit(d)
	}
	if err != nil || res == nil || res.Stylesheet == nil || diag.HasErrors(diags) {
		return Unparseable(), nil
	}
	ss := res.Stylesheet

	tc := &transform.Context{SourceMap: sm, File: file, FileName: filepath.Base(path)}
	if err := transforms.Apply(ctx, ss, tc); err != nil {
		return nil, &Error{Path: path, Stage: StageTransform, Err: err}
	}

	if moduleType != Module {
		return NewParsed(ss, sm, nil, nil), nil
	}
	imports := modules.AnalyzeImports(ss)
	compiled, err := modules.Compile(ss, modules.ForPath(path))
	if err != nil {
		return nil, &Error{Path: path, Stage: StageCompile, Err: err}
	}
	return NewParsed(ss, sm, imports, compiled.Exports), nil
}
