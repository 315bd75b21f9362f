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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cssmodules/pkg/logging"
	"github.com/AleutianAI/cssmodules/pkg/ux"
	"github.com/AleutianAI/cssmodules/services/css/config"
	"github.com/AleutianAI/cssmodules/services/css/telemetry"
)

// app holds the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	logLevel    string
	logJSON     bool
	personality string

	cfg      config.Config
	logger   *logging.Logger
	printer  *ux.Printer
	shutdown func(context.Context) error
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

// execute runs the command line and releases logging and telemetry, also
// when the command fails.
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cssmod",
		Short: "Parse stylesheets and scope CSS Modules names",
		Long: `cssmod parses stylesheets into a tree, applies transforms, scopes the
local names of CSS Modules and reports each file's outcome: parsed,
unparseable or not found.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")
	flags.StringVar(&a.personality, "output", "", "output style: full, standard, minimal or machine")

	rootCmd.AddCommand(newParseCmd(a), newWatchCmd(a), newVersionCmd(a))
	return rootCmd
}

// setup loads configuration and starts logging and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return &ExitError{Command: cmd.Name(), Code: ExitFailure, Wrapped: err}
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logJSON {
		cfg.Logging.JSON = true
	}
	a.cfg = cfg

	lc, err := cfg.LoggingConfig(cmd.Root().Name())
	if err != nil {
		return &ExitError{Command: cmd.Name(), Code: ExitFailure, Wrapped: err}
	}
	lc.Writer = a.errOut
	a.logger = logging.New(lc)

	a.printer = ux.NewPrinter(a.out, a.errOut)
	if a.personality != "" {
		a.printer.Level = ux.ParsePersonalityLevel(a.personality)
	}

	tc := cfg.Telemetry
	tc.Writer = a.errOut
	shutdown, err := telemetry.Init(cmd.Context(), tc)
	if err != nil {
		return &ExitError{Command: cmd.Name(), Code: ExitFailure, Wrapped: err}
	}
	a.shutdown = shutdown

	a.logger.Debug("configuration loaded",
		slog.String("config", a.configPath),
		slog.String("backend", cfg.Parser.Backend),
		slog.String("source", cfg.Source.Kind))
	return nil
}

// teardown flushes telemetry and closes the logger.
func (a *app) teardown() error {
	var errs []error
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		a.shutdown = nil
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
		a.logger = nil
	}
	return errors.Join(errs...)
}
