// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parser turns CSS text into an ast.Stylesheet.
//
// Parsers recover from malformed input wherever the CSS grammar allows it
// and report every problem as a diagnostic instead of stopping at the first
// one. Only resource limits and cancellation abort a parse.
package parser

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// Sentinel errors for fatal parse failures.
var (
	// ErrFatal marks a failure after which no tree can be produced.
	ErrFatal = errors.New("fatal parse error")

	// ErrFileTooLarge indicates the input exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrTooDeep indicates nesting deeper than Config.MaxDepth.
	ErrTooDeep = errors.New("nesting too deep")

	// ErrUnknownBackend indicates no parser is registered under a name.
	ErrUnknownBackend = errors.New("unknown parser backend")
)

// FatalError is a non-recoverable parse failure at a location.
//
// It matches both ErrFatal and its cause with errors.Is.
type FatalError struct {
	Span token.Span
	Err  error
}

func (e *FatalError) Error() string {
	return ErrFatal.Error() + ": " + e.Err.Error()
}

// Unwrap returns ErrFatal and the cause.
func (e *FatalError) Unwrap() []error {
	return []error{ErrFatal, e.Err}
}

// Default limits.
const (
	// DefaultMaxFileSize is the largest input parsed by default (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultMaxDepth bounds nesting of blocks, functions and selectors.
	DefaultMaxDepth = 256
)

// Config selects grammar extensions and limits for one parse.
type Config struct {
	// CSSModules enables ":local"/":global" selector arguments and the
	// structured "composes" declaration.
	CSSModules bool

	// LegacyNesting accepts style rules nested inside style rules.
	LegacyNesting bool

	// MaxFileSize is the largest accepted input in bytes. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int

	// MaxDepth is the deepest accepted nesting. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// DefaultConfig returns the configuration used for global stylesheets.
func DefaultConfig() Config {
	return Config{
		LegacyNesting: true,
		MaxFileSize:   DefaultMaxFileSize,
		MaxDepth:      DefaultMaxDepth,
	}
}

func (c Config) maxFileSize() int {
	if c.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return c.MaxFileSize
}

func (c Config) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Result is the output of a parse.
type Result struct {
	// Stylesheet is the parsed tree. It is never nil when Parse returns a
	// nil error.
	Stylesheet *ast.Stylesheet

	// Diagnostics holds every problem found, in source order of discovery.
	Diagnostics []diag.Diagnostic
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	return r != nil && diag.HasErrors(r.Diagnostics)
}

// Parser parses one file.
//
// Description:
//
//	Implementations tokenize and parse the file content into an
//	ast.Stylesheet. Syntax problems become diagnostics; the returned error
//	is reserved for fatal failures (a *FatalError) and cancellation (the
//	context error, wrapped).
//
// Inputs:
//
//	ctx  - Context for cancellation. Checked periodically.
//	file - Source file registered in a token.SourceMap. Spans in the tree
//	       and diagnostics are positions in that map.
//	cfg  - Grammar extensions and limits.
//
// Outputs:
//
//	*Result - Tree and diagnostics. On a fatal error it may still carry the
//	          diagnostics found before the failure.
//	error   - Non-nil only for fatal failures and cancellation.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Parser interface {
	Parse(ctx context.Context, file *token.File, cfg Config) (*Result, error)

	// Name identifies the backend, e.g. "native" or "tree-sitter".
	Name() string
}

// Registry maps backend names to parsers.
//
// Thread Safety:
//
//	Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry returns a registry holding the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a parser under its Name. Nil is ignored.
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Name()] = p
}

// Get returns the parser registered under name.
func (r *Registry) Get(name string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[name]
	if !ok {
		return nil, &unknownBackendError{name: name}
	}
	return p, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type unknownBackendError struct {
	name string
}

func (e *unknownBackendError) Error() string {
	return ErrUnknownBackend.Error() + ": " + e.name
}

func (e *unknownBackendError) Unwrap() error {
	return ErrUnknownBackend
}
