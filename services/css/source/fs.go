// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize bounds the files FS reads.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ErrTooLarge is returned for files above the size limit.
var ErrTooLarge = errors.New("source file too large")

// FS reads stylesheets from the local file system.
//
// Description:
//
//	Relative paths are resolved against Root. Symbolic links are not
//	followed; they are reported as a Redirect to the link target, made
//	absolute relative to the link's directory. Directories and missing
//	paths are reported as absent files.
//
// Thread Safety:
//
//	FS is safe for concurrent use.
type FS struct {
	// Root is the directory relative paths are resolved against. Empty
	// means the working directory.
	Root string

	// MaxFileSize bounds the size of files read. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int64
}

// NewFS returns a provider rooted at root.
func NewFS(root string) *FS {
	return &FS{Root: root, MaxFileSize: DefaultMaxFileSize}
}

// Resolve returns the file system path for path.
func (f *FS) Resolve(path string) string {
	if filepath.IsAbs(path) || f.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(f.Root, path)
}

// Content implements Provider.
func (f *FS) Content(ctx context.Context, path string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if path == "" {
		return nil, ErrEmptyPath
	}

	full := f.Resolve(path)
	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Missing(), nil
		}
		return nil, fmt.Errorf("stat %s: %w", full, err)
	}

	switch mode := info.Mode(); {
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(full)
		if err != nil {
			return nil, fmt.Errorf("read link %s: %w", full, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(full), target)
		}
		return Redirect{Target: target}, nil
	case !mode.IsRegular():
		return Missing(), nil
	}

	limit := f.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, full, info.Size(), limit)
	}

	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Missing(), nil
		}
		return nil, fmt.Errorf("read %s: %w", full, err)
	}
	return Found(b), nil
}
