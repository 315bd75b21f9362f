// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source supplies the raw bytes of stylesheets.
//
// A Provider answers with either a Redirect (the path is an alias, such as
// a symlink, for another path) or a File, which may be absent. Absence is
// not an error; I/O failures are.
package source

import (
	"context"
	"errors"
)

// ErrEmptyPath is returned for an empty path.
var ErrEmptyPath = errors.New("empty source path")

// Content is the answer of a Provider: Redirect or File.
type Content interface {
	content()
}

// Redirect reports that the path resolves to another path.
type Redirect struct {
	Target string
}

// File is the content of a regular file. Bytes is only meaningful when
// Found is true.
type File struct {
	Found bool
	Bytes []byte
}

func (Redirect) content() {}
func (File) content()     {}

// Found returns a File holding b.
func Found(b []byte) File {
	return File{Found: true, Bytes: b}
}

// Missing returns an absent File.
func Missing() File {
	return File{}
}

// Provider retrieves stylesheet content by path.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Provider interface {
	// Content returns the content at path. A missing file is reported as
	// a File with Found false and a nil error.
	Content(ctx context.Context, path string) (Content, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, path string) (Content, error)

// Content calls f(ctx, path).
func (f ProviderFunc) Content(ctx context.Context, path string) (Content, error) {
	return f(ctx, path)
}
