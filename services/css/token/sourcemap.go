// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package token

import (
	"fmt"
	"sort"
	"sync"
)

// Position is a resolved source location.
type Position struct {
	// Filename is the name the file was registered under.
	Filename string

	// Offset is the 0-indexed byte offset within the file.
	Offset int

	// Line is the 1-indexed line number.
	Line int

	// Column is the 1-indexed byte column.
	Column int
}

// IsValid reports whether the position was resolved.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String formats the position as "file:line:column".
func (p Position) String() string {
	if !p.IsValid() {
		if p.Filename == "" {
			return "-"
		}
		return p.Filename
	}
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// File is a single source registered in a SourceMap.
//
// Thread Safety:
//
//	File is immutable after creation and safe for concurrent use.
type File struct {
	name    string
	base    int
	content string
	lines   []int
}

// Name returns the name the file was registered under.
func (f *File) Name() string { return f.name }

// Base returns the global position of the first byte of the file.
func (f *File) Base() Pos { return Pos(f.base) }

// Size returns the file length in bytes.
func (f *File) Size() int { return len(f.content) }

// Content returns the full file text.
func (f *File) Content() string { return f.content }

// Pos converts a file-local byte offset into a global position.
// Offsets are clamped to [0, Size()].
func (f *File) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.content) {
		offset = len(f.content)
	}
	return Pos(f.base + offset)
}

// Offset converts a global position into a file-local byte offset.
func (f *File) Offset(p Pos) int {
	off := int(p) - f.base
	if off < 0 {
		return 0
	}
	if off > len(f.content) {
		return len(f.content)
	}
	return off
}

// Contains reports whether p lies within the file (end inclusive).
func (f *File) Contains(p Pos) bool {
	return int(p) >= f.base && int(p) <= f.base+len(f.content)
}

// Text returns the source text covered by a span that lies in this file.
func (f *File) Text(s Span) string {
	return f.content[f.Offset(s.Start):f.Offset(s.End)]
}

// Position resolves a global position to line and column.
func (f *File) Position(p Pos) Position {
	off := f.Offset(p)
	i := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return Position{
		Filename: f.name,
		Offset:   off,
		Line:     i + 1,
		Column:   off - f.lines[i] + 1,
	}
}

// SourceMap maps global positions to files.
//
// Description:
//
//	Every file added receives a disjoint range of positions, so a single Pos
//	identifies both the file and the offset. Positions start at 1; NoPos is
//	never inside a file.
//
// Thread Safety:
//
//	SourceMap is safe for concurrent use. Parsers and transforms may add
//	synthetic files while diagnostics are being resolved.
type SourceMap struct {
	mu    sync.RWMutex
	files []*File
	next  int
}

// NewSourceMap returns an empty source map.
func NewSourceMap() *SourceMap {
	return &SourceMap{next: 1}
}

// AddFile registers content under name and returns the new File.
func (m *SourceMap) AddFile(name, content string) *File {
	lines := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, i+1)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f := &File{name: name, base: m.next, content: content, lines: lines}
	// +1 keeps the end position of one file distinct from the base of the next.
	m.next += len(content) + 1
	m.files = append(m.files, f)
	return f
}

// File returns the file containing p, or nil.
func (m *SourceMap) File(p Pos) *File {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.files), func(i int) bool { return m.files[i].base > int(p) }) - 1
	if i < 0 {
		return nil
	}
	if f := m.files[i]; f.Contains(p) {
		return f
	}
	return nil
}

// Files returns the registered files in registration order.
func (m *SourceMap) Files() []*File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*File, len(m.files))
	copy(out, m.files)
	return out
}

// Lookup resolves p. The boolean is false when p is not inside any file.
func (m *SourceMap) Lookup(p Pos) (Position, bool) {
	if !p.IsValid() {
		return Position{}, false
	}
	f := m.File(p)
	if f == nil {
		return Position{}, false
	}
	return f.Position(p), true
}
