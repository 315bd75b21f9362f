// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transform runs an ordered list of stylesheet rewrites.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// Context is the read-only environment handed to each transform.
type Context struct {
	// SourceMap resolves spans in the tree. Transforms may register
	// synthetic files in it.
	SourceMap *token.SourceMap

	// File is the source file the tree was parsed from.
	File *token.File

	// FileName is the base name of the source path.
	FileName string
}

// Transform rewrites a stylesheet in place.
type Transform interface {
	// Name identifies the transform. It is part of the pipeline identity,
	// so two transforms with different behavior need different names.
	Name() string

	Apply(ctx context.Context, ss *ast.Stylesheet, tc *Context) error
}

// Func adapts a function to the Transform interface.
type Func struct {
	ID string
	Fn func(ctx context.Context, ss *ast.Stylesheet, tc *Context) error
}

// Name returns f.ID.
func (f Func) Name() string { return f.ID }

// Apply calls f.Fn.
func (f Func) Apply(ctx context.Context, ss *ast.Stylesheet, tc *Context) error {
	return f.Fn(ctx, ss, tc)
}

// Error reports which transform failed.
type Error struct {
	Index int
	Name  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pipeline is an immutable ordered list of transforms.
//
// Thread Safety:
//
//	A Pipeline is safe for concurrent use when its transforms are.
type Pipeline struct {
	transforms []Transform
	id         string
}

// NewPipeline returns a pipeline running transforms in the given order.
// Nil entries are skipped.
func NewPipeline(transforms ...Transform) *Pipeline {
	p := &Pipeline{}
	for _, t := range transforms {
		if t != nil {
			p.transforms = append(p.transforms, t)
		}
	}
	p.id = computeID(p.transforms)
	return p
}

// computeID hashes the length-prefixed transform names in order.
func computeID(transforms []Transform) string {
	h := sha256.New()
	var buf [8]byte
	for _, t := range transforms {
		name := t.Name()
		binary.BigEndian.PutUint64(buf[:], uint64(len(name)))
		h.Write(buf[:])
		h.Write([]byte(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ID returns a stable identity of the ordered transform set. Pipelines
// with the same transform names in the same order share an ID. A nil
// pipeline has the ID of an empty one.
func (p *Pipeline) ID() string {
	if p == nil {
		return computeID(nil)
	}
	return p.id
}

// Len returns the number of transforms.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.transforms)
}

// Names returns the transform names in order.
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.transforms))
	for i, t := range p.transforms {
		names[i] = t.Name()
	}
	return names
}

// Apply runs every transform in order.
//
// Description:
//
//	Each transform sees the tree as left by the previous one. The first
//	failure stops the pipeline and is returned as an *Error. The context
//	is checked before each transform; cancellation is returned as the
//	wrapped context error.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ss  - Stylesheet to rewrite in place.
//	tc  - Environment for the transforms.
//
// Outputs:
//
//	error - *Error on transform failure, wrapped context error on
//	        cancellation, nil otherwise.
func (p *Pipeline) Apply(ctx context.Context, ss *ast.Stylesheet, tc *Context) error {
	if p == nil {
		return nil
	}
	for i, t := range p.transforms {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transform pipeline canceled: %w", err)
		}
		if err := t.Apply(ctx, ss, tc); err != nil {
			return &Error{Index: i, Name: t.Name(), Err: err}
		}
	}
	return nil
}
