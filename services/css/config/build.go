// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/cssmodules/pkg/logging"
	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/cache"
	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/source"
	"github.com/AleutianAI/cssmodules/services/css/transform"
	"github.com/AleutianAI/cssmodules/services/css/watch"
)

// ParserConfig returns the parser settings. CSSModules is set per parse
// by the engine.
func (c Config) ParserConfig() parser.Config {
	return parser.Config{
		LegacyNesting: c.Parser.LegacyNesting,
		MaxFileSize:   c.Parser.MaxFileSize,
		MaxDepth:      c.Parser.MaxDepth,
	}
}

// NewParser returns the configured backend.
func (c Config) NewParser() (parser.Parser, error) {
	return css.Backends().Get(c.Parser.Backend)
}

// Pipeline returns the configured transform pipeline.
func (c Config) Pipeline() (*transform.Pipeline, error) {
	return transform.FromNames(c.Transforms...)
}

// OpenSource opens the configured provider. The returned close function
// must be called when done; it is a no-op for the fs source.
func (c Config) OpenSource(logger *slog.Logger) (source.Provider, func() error, error) {
	switch c.Source.Kind {
	case SourceBadger:
		bc := source.BadgerConfig{
			Path:           c.Source.Badger.Path,
			InMemory:       c.Source.Badger.InMemory,
			SyncWrites:     c.Source.Badger.SyncWrites,
			Logger:         logger,
			GCInterval:     c.Source.Badger.GCInterval,
			GCDiscardRatio: c.Source.Badger.GCDiscardRatio,
		}
		store, err := source.OpenBadger(bc)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger source: %w", err)
		}
		return store, store.Close, nil
	default:
		fs := source.NewFS(c.Source.Root)
		if c.Parser.MaxFileSize > 0 {
			fs.MaxFileSize = int64(c.Parser.MaxFileSize)
		}
		return fs, func() error { return nil }, nil
	}
}

// CacheOptions returns the cache options.
func (c Config) CacheOptions(logger *slog.Logger) []cache.Option {
	return []cache.Option{
		cache.WithMaxEntries(c.Cache.MaxEntries),
		cache.WithMaxAge(c.Cache.MaxAge),
		cache.WithLogger(logger),
	}
}

// WatchOptions returns the watcher options.
func (c Config) WatchOptions(logger *slog.Logger) watch.Options {
	return watch.Options{
		Debounce:       c.Watch.Debounce,
		IgnorePatterns: append([]string(nil), c.Watch.IgnorePatterns...),
		Extensions:     append([]string(nil), c.Watch.Extensions...),
		Logger:         logger,
	}
}

// LoggingConfig returns the logger settings for service.
func (c Config) LoggingConfig(service string) (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
		Pretty:  c.Logging.Pretty,
	}, nil
}
