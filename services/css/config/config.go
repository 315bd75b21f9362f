// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration of the cssmod tools.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. Durations are written as Go duration strings ("250ms").
//
//	parser:
//	  backend: tree-sitter
//	transforms: [nesting, drop-empty]
//	source:
//	  kind: badger
//	  badger:
//	    path: /var/lib/cssmod
//	cache:
//	  max_entries: 10000
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/parser/treesitter"
	"github.com/AleutianAI/cssmodules/services/css/telemetry"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

// Source kinds.
const (
	SourceFS     = "fs"
	SourceBadger = "badger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration.
type Config struct {
	Parser     ParserConfig     `yaml:"parser"`
	Transforms []string         `yaml:"transforms" validate:"dive,transform"`
	Source     SourceConfig     `yaml:"source"`
	Cache      CacheConfig      `yaml:"cache"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
}

// ParserConfig selects and bounds the parser.
type ParserConfig struct {
	// Backend is the parser name, "native" or "tree-sitter".
	Backend string `yaml:"backend" validate:"required,backend"`

	// MaxFileSize is the largest stylesheet parsed, in bytes.
	MaxFileSize int `yaml:"max_file_size" validate:"gte=0"`

	// MaxDepth bounds block and selector nesting.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`

	// LegacyNesting accepts style rules nested in style rules.
	LegacyNesting bool `yaml:"legacy_nesting"`
}

// SourceConfig selects where stylesheets are read from.
type SourceConfig struct {
	Kind string `yaml:"kind" validate:"oneof=fs badger"`

	// Root resolves relative paths for the fs source.
	Root string `yaml:"root"`

	Badger BadgerConfig `yaml:"badger"`
}

// BadgerConfig configures the badger source store.
type BadgerConfig struct {
	Path           string        `yaml:"path" validate:"required_without=InMemory"`
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// CacheConfig bounds the outcome cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries" validate:"gte=1"`
	MaxAge     time.Duration `yaml:"max_age" validate:"gte=0"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce       time.Duration `yaml:"debounce" validate:"gt=0"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	Extensions     []string      `yaml:"extensions" validate:"min=1,dive,startswith=."`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON   bool   `yaml:"json"`
	Pretty bool   `yaml:"pretty"`
	Dir    string `yaml:"dir"`
}

// ServerConfig configures the HTTP service started by "cssmod watch
// --listen".
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	Debug           bool          `yaml:"debug"`

	// RateLimit bounds API requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Parser: ParserConfig{
			Backend:       parser.NativeName,
			MaxFileSize:   parser.DefaultMaxFileSize,
			MaxDepth:      parser.DefaultMaxDepth,
			LegacyNesting: true,
		},
		Source: SourceConfig{
			Kind: SourceFS,
			Root: ".",
			Badger: BadgerConfig{
				Path:           ".cssmod/badger",
				GCInterval:     10 * time.Minute,
				GCDiscardRatio: 0.5,
			},
		},
		Cache: CacheConfig{
			MaxEntries: 4096,
		},
		Watch: WatchConfig{
			Debounce:       100 * time.Millisecond,
			IgnorePatterns: []string{".git", "node_modules", ".idea", "*.swp", "*.tmp"},
			Extensions:     []string{".css"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Server: ServerConfig{
			ShutdownTimeout: 5 * time.Second,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML from r over Default and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("transform", func(fl validator.FieldLevel) bool {
		_, err := transform.Lookup(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("backend", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case parser.NativeName, treesitter.Name:
			return true
		}
		return false
	})
	return v
}

// Validate checks field constraints. Badger settings are only checked
// when the badger source is selected.
func (c Config) Validate() error {
	cp := c
	if cp.Source.Kind != SourceBadger {
		cp.Source.Badger = Default().Source.Badger
	}
	if err := validate.Struct(cp); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), describeTag(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
