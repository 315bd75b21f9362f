// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/cssmodules/pkg/ux"
	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/modules"
	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/source"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

type parseOptions struct {
	module      bool
	global      bool
	backend     string
	transforms  []string
	print       bool
	json        bool
	jobs        int
	metricsFile string
}

// fileResult is the report for one stylesheet. It is also the JSON line
// written with --json.
type fileResult struct {
	Path        string           `json:"path"`
	ModuleType  string           `json:"module_type"`
	Outcome     string           `json:"outcome"`
	Imports     []string         `json:"imports,omitempty"`
	Exports     modules.Exports  `json:"exports,omitempty"`
	Diagnostics []diagnosticJSON `json:"diagnostics,omitempty"`
	CSS         string           `json:"css,omitempty"`

	kind css.OutcomeKind
}

type diagnosticJSON struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

func newParseCmd(a *app) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse stylesheets and report their outcomes",
		Long: `Parse each stylesheet and print its outcome. Files named *.module.css are
CSS Modules unless --module or --global says otherwise.

The exit code is 0 when every file parsed, 1 when any file was
unparseable or not found, and 2 on errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParse(cmd.Context(), opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.module, "module", false, "treat every file as a CSS Module")
	flags.BoolVar(&opts.global, "global", false, "treat every file as a global stylesheet")
	flags.StringVar(&opts.backend, "backend", "", "parser backend (default from config)")
	flags.StringSliceVarP(&opts.transforms, "transform", "t", nil, "transform to apply, repeatable: "+strings.Join(transform.BuiltinNames(), ", "))
	flags.BoolVar(&opts.print, "print", false, "print the transformed stylesheet")
	flags.BoolVar(&opts.json, "json", false, "write one JSON object per file")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "files parsed concurrently")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after parsing")
	cmd.MarkFlagsMutuallyExclusive("module", "global")
	return cmd
}

func (a *app) runParse(ctx context.Context, opts parseOptions, paths []string) error {
	cfg := a.cfg
	if opts.backend != "" {
		cfg.Parser.Backend = opts.backend
	}
	if len(opts.transforms) > 0 {
		cfg.Transforms = opts.transforms
	}
	p, err := cfg.NewParser()
	if err != nil {
		return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
	}
	logger := a.logger.Slog()
	provider, closeSource, err := cfg.OpenSource(logger)
	if err != nil {
		return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
	}
	defer func() {
		if err := closeSource(); err != nil {
			logger.Warn("close source", slog.String("error", err.Error()))
		}
	}()

	results := make([]*fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, path := range paths {
		moduleType := css.ClassifyByName(path)
		switch {
		case opts.module:
			moduleType = css.Module
		case opts.global:
			moduleType = css.Global
		}
		g.Go(func() error {
			res, err := parseFile(gctx, provider, p, cfg.ParserConfig(), logger, path, moduleType, pipeline, opts.print)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
	}

	if err := a.writeResults(results, opts.json); err != nil {
		return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
	}
	if opts.metricsFile != "" {
		if err := writeMetricsFile(opts.metricsFile, prometheus.DefaultGatherer); err != nil {
			return &ExitError{Command: "parse", Code: ExitFailure, Wrapped: err}
		}
	}

	notParsed := 0
	for _, r := range results {
		if r.kind != css.OutcomeParsed {
			notParsed++
		}
	}
	if notParsed > 0 {
		return &ExitError{
			Command: "parse",
			Code:    ExitNotParsed,
			Reason:  fmt.Sprintf("%d of %d stylesheets not parsed", notParsed, len(results)),
			Silent:  true,
		}
	}
	return nil
}

// parseFile parses one stylesheet with its own diagnostic collector. A
// pipeline error is returned and stops the whole run.
func parseFile(ctx context.Context, provider source.Provider, p parser.Parser, pc parser.Config, logger *slog.Logger, path string, moduleType css.ModuleType, pipeline *transform.Pipeline, printCSS bool) (*fileResult, error) {
	collector := &diag.Collector{}
	engine := css.NewEngine(provider,
		css.WithParser(p),
		css.WithParserConfig(pc),
		css.WithSink(collector),
		css.WithLogger(logger),
	)
	out, err := engine.Parse(ctx, path, moduleType, pipeline)
	if err != nil {
		return nil, err
	}

	res := &fileResult{
		Path:        path,
		ModuleType:  moduleType.String(),
		Outcome:     out.Kind().String(),
		Imports:     out.Imports(),
		Exports:     out.Exports(),
		Diagnostics: toDiagnostics(collector.Diagnostics()),
		kind:        out.Kind(),
	}
	if printCSS && out.IsParsed() {
		res.CSS = ast.Format(out.Stylesheet())
	}
	return res, nil
}

func toDiagnostics(diags []diag.Diagnostic) []diagnosticJSON {
	out := make([]diagnosticJSON, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagnosticJSON{
			Severity: d.Severity.String(),
			Message:  d.Message,
			Line:     d.Position.Line,
			Column:   d.Position.Column,
		})
	}
	return out
}

func (a *app) writeResults(results []*fileResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(a.out)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	var parsed, unparseable, notFound int
	for _, r := range results {
		switch r.kind {
		case css.OutcomeParsed:
			parsed++
			a.printer.FileStatus(r.Path, ux.IconSuccess, r.ModuleType)
		case css.OutcomeUnparseable:
			unparseable++
			a.printer.FileStatus(r.Path, ux.IconError, "unparseable")
		default:
			notFound++
			a.printer.FileStatus(r.Path, ux.IconWarning, "not found")
		}
		for _, d := range r.Diagnostics {
			line := fmt.Sprintf("%s:%d:%d: %s", r.Path, d.Line, d.Column, d.Message)
			if d.Severity == diag.SeverityError.String() {
				a.printer.Error(line)
			} else {
				a.printer.Warning(line)
			}
		}
		for _, ex := range r.Exports {
			names := make([]string, len(ex.Names))
			for i, n := range ex.Names {
				names[i] = n.Name
			}
			a.printer.Info(fmt.Sprintf("%s %s %s", ex.Local, ux.IconArrow, strings.Join(names, " ")))
		}
		if r.CSS != "" {
			a.printer.Box(r.Path, r.CSS)
		}
	}
	a.printer.Summary(parsed, unparseable, notFound)
	return nil
}

// writeMetricsFile writes every metric family of g in the Prometheus text
// format.
func writeMetricsFile(path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := writeFamilies(f, families); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
