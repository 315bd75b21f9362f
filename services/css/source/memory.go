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
	"fmt"
	"sync"
)

// Memory is an in-memory Provider. Paths are used verbatim.
//
// Thread Safety:
//
//	Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Content
	reads   map[string]int
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Content),
		reads:   make(map[string]int),
	}
}

// Set stores the bytes of a file. b is copied.
func (m *Memory) Set(path string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = Found(append([]byte(nil), b...))
}

// SetString stores a file from a string.
func (m *Memory) SetString(path, s string) {
	m.Set(path, []byte(s))
}

// SetRedirect makes path an alias for target.
func (m *Memory) SetRedirect(path, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = Redirect{Target: target}
}

// Delete removes path.
func (m *Memory) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, path)
}

// Reads returns how many times Content was called for path.
func (m *Memory) Reads(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[path]
}

// Content implements Provider. The returned bytes are a copy.
func (m *Memory) Content(ctx context.Context, path string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if path == "" {
		return nil, ErrEmptyPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[path]++
	switch c := m.entries[path].(type) {
	case File:
		return Found(append([]byte(nil), c.Bytes...)), nil
	case Redirect:
		return c, nil
	default:
		return Missing(), nil
	}
}
