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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/cssmodules/pkg/ux"
	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/cache"
	"github.com/AleutianAI/cssmodules/services/css/config"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/server"
	"github.com/AleutianAI/cssmodules/services/css/transform"
	"github.com/AleutianAI/cssmodules/services/css/watch"
)

type watchOptions struct {
	listen string
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Parse a directory and re-parse stylesheets as they change",
		Long: `Parse every stylesheet under DIR, then watch the tree and report each
stylesheet whose outcome changes. With --listen the outcome cache is also
served over HTTP.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if len(args) == 1 {
				cfg.Source.Root = args[0]
			}
			if opts.listen != "" {
				cfg.Server.Listen = opts.listen
			}
			return a.runWatch(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "serve the cache over HTTP on this address, e.g. :8080")
	return cmd
}

// watchSession is the state of one "cssmod watch" run.
type watchSession struct {
	app      *app
	cache    *cache.Cache
	compute  cache.ComputeFunc
	pipeline *transform.Pipeline
	toKey    watch.PathFunc
	logger   *slog.Logger
}

func (a *app) runWatch(ctx context.Context, cfg config.Config) error {
	if cfg.Source.Kind != config.SourceFS {
		return &ExitError{Command: "watch", Code: ExitFailure, Reason: "watch needs the fs source"}
	}
	logger := a.logger.Slog()

	p, err := cfg.NewParser()
	if err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	provider, closeSource, err := cfg.OpenSource(logger)
	if err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	defer func() { _ = closeSource() }()

	engine := css.NewEngine(provider,
		css.WithParser(p),
		css.WithParserConfig(cfg.ParserConfig()),
		css.WithSink(diag.NewLogSink(logger)),
		css.WithLogger(logger),
	)
	c := cache.New(cfg.CacheOptions(logger)...)

	s := &watchSession{
		app:      a,
		cache:    c,
		compute:  cache.EngineCompute(engine, pipeline),
		pipeline: pipeline,
		logger:   logger,
	}

	wopts := cfg.WatchOptions(logger)
	files, err := watch.Scan(cfg.Source.Root, wopts)
	if err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}

	syncer := &watch.Syncer{
		Cache:     c,
		Compute:   s.compute,
		OnRefresh: s.report,
		Logger:    logger,
	}
	w, err := watch.New(cfg.Source.Root, func(changes []watch.Change) {
		syncer.Sync(ctx, changes)
		s.addNew(ctx, changes)
	}, wopts)
	if err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	s.toKey = watch.RelativeTo(w.Root())
	syncer.Path = s.toKey

	a.printer.Title(fmt.Sprintf("Watching %s", w.Root()))
	for _, f := range files {
		s.load(ctx, f)
	}

	if err := w.Start(ctx); err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	defer w.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Listen != "" {
		h := server.NewHandlers(engine, c).WithLogger(logger).WithParserName(p.Name())
		router := server.NewRouter(h, server.RouterOptions{
			Debug:     cfg.Server.Debug,
			RateLimit: cfg.Server.RateLimit,
			Burst:     cfg.Server.Burst,
		})
		g.Go(func() error {
			return server.Serve(gctx, cfg.Server.Listen, router, cfg.Server.ShutdownTimeout, logger)
		})
		a.printer.Info(fmt.Sprintf("Serving on %s", cfg.Server.Listen))
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return &ExitError{Command: "watch", Code: ExitFailure, Wrapped: err}
	}
	logger.Info("watch stopped", slog.Int("entries", c.Len()))
	return nil
}

// load parses the file at abs into the cache and prints its outcome.
func (s *watchSession) load(ctx context.Context, abs string) {
	path, ok := s.toKey(abs)
	if !ok {
		return
	}
	key := cache.NewKey(path, css.ClassifyByName(path), s.pipeline)
	out, err := s.cache.Get(ctx, key, s.compute)
	if err != nil {
		s.app.printer.Error(fmt.Sprintf("%s: %v", path, err))
		return
	}
	s.printOutcome(path, out)
}

// addNew loads created or written files the cache does not know yet.
func (s *watchSession) addNew(ctx context.Context, changes []watch.Change) {
	for _, change := range changes {
		if change.Op != watch.OpCreate && change.Op != watch.OpWrite {
			continue
		}
		path, ok := s.toKey(change.Path)
		if !ok || len(s.cache.KeysFor(path)) > 0 {
			continue
		}
		s.load(ctx, change.Path)
	}
}

// report prints refreshed keys whose outcome changed.
func (s *watchSession) report(r watch.Refreshed) {
	if r.Err != nil {
		s.app.printer.Error(fmt.Sprintf("%s: %v", r.Key.Path, r.Err))
		return
	}
	if !r.Changed {
		return
	}
	s.printOutcome(r.Key.Path, r.Outcome)
}

func (s *watchSession) printOutcome(path string, out *css.ParseOutcome) {
	switch out.Kind() {
	case css.OutcomeParsed:
		s.app.printer.FileStatus(path, ux.IconSuccess, fmt.Sprintf("%d exports", len(out.Exports())))
	case css.OutcomeUnparseable:
		s.app.printer.FileStatus(path, ux.IconError, "unparseable")
	default:
		s.app.printer.FileStatus(path, ux.IconWarning, "not found")
	}
}
