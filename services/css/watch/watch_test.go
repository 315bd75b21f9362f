// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/cache"
	"github.com/AleutianAI/cssmodules/services/css/source"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]Change
	got     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 16)}
}

func (r *recorder) handle(changes []Change) {
	r.mu.Lock()
	r.batches = append(r.batches, changes)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		for _, c := range b {
			out = append(out, c.Path)
		}
	}
	return out
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for changes")
	}
}

func startWatcher(t *testing.T, root string, r *recorder) *Watcher {
	t.Helper()
	opts := DefaultOptions()
	opts.Debounce = 50 * time.Millisecond
	w, err := New(root, r.handle, opts)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReportsCSSChanges(t *testing.T) {
	root := t.TempDir()
	r := newRecorder()
	w := startWatcher(t, root, r)

	path := filepath.Join(w.Root(), "a.css")
	require.NoError(t, os.WriteFile(path, []byte(".a{}"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(".a{color:red}"), 0o644))
	r.wait(t)

	paths := r.paths()
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.Equal(t, path, p)
	}
}

func TestWatcher_FiltersOtherFiles(t *testing.T) {
	root := t.TempDir()
	r := newRecorder()
	w := startWatcher(t, root, r)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "b.css"), []byte(".b{}"), 0o644))
	r.wait(t)

	for _, p := range r.paths() {
		assert.Equal(t, ".css", filepath.Ext(p))
	}
}

func TestWatcher_NewDirectories(t *testing.T) {
	root := t.TempDir()
	r := newRecorder()
	w := startWatcher(t, root, r)

	dir := filepath.Join(w.Root(), "components")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// Give the watcher time to register the new directory.
	time.Sleep(200 * time.Millisecond)
	path := filepath.Join(dir, "button.module.css")
	require.NoError(t, os.WriteFile(path, []byte(".b{}"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-r.got:
			for _, p := range r.paths() {
				if p == path {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for %s, got %v", path, r.paths())
		}
	}
}

func TestWatcher_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0o755))
	w, err := New(root, nil, DefaultOptions())
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.shouldIgnore(filepath.Join(w.Root(), "node_modules", "x.css")))
	assert.True(t, w.shouldIgnore(filepath.Join(w.Root(), "a.swp")))
	assert.False(t, w.shouldIgnore(filepath.Join(w.Root(), "src", "a.css")))
}

func TestWatcher_StartTwice(t *testing.T) {
	r := newRecorder()
	w := startWatcher(t, t.TempDir(), r)
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	for _, name := range []string{"b.css", "a.module.css", "notes.txt", "sub/c.CSS", "node_modules/pkg/d.css", "e.css.swp"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(".x {}"), 0o644))
	}

	files, err := Scan(root, DefaultOptions())
	require.NoError(t, err)

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(abs, "a.module.css"),
		filepath.Join(abs, "b.css"),
		filepath.Join(abs, "sub", "c.CSS"),
	}, files)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), DefaultOptions())
	assert.Error(t, err)
}

func TestDedupe(t *testing.T) {
	now := time.Now()
	got := Dedupe([]Change{
		{Path: "a.css", Op: OpCreate, Time: now},
		{Path: "b.css", Op: OpWrite, Time: now},
		{Path: "a.css", Op: OpRemove, Time: now.Add(time.Millisecond)},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "a.css", got[0].Path)
	assert.Equal(t, OpRemove, got[0].Op)
	assert.Equal(t, "b.css", got[1].Path)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", Op(42).String())
}

func TestRelativeTo(t *testing.T) {
	root := filepath.FromSlash("/srv/app")
	rel := RelativeTo(root)

	p, ok := rel(filepath.Join(root, "src", "a.css"))
	assert.True(t, ok)
	assert.Equal(t, "src/a.css", p)

	_, ok = rel(filepath.FromSlash("/etc/a.css"))
	assert.False(t, ok)
}

func TestSyncer_RefreshesCachedKeys(t *testing.T) {
	mem := source.NewMemory()
	mem.SetString("a.css", ".a{}")
	mem.SetString("b.css", ".b{}")

	pipeline := transform.NewPipeline()
	compute := cache.EngineCompute(css.NewEngine(mem), pipeline)
	c := cache.New()
	ctx := context.Background()

	for _, mt := range []css.ModuleType{css.Global, css.Module} {
		_, err := c.Get(ctx, cache.NewKey("a.css", mt, pipeline), compute)
		require.NoError(t, err)
	}

	mem.Delete("a.css")
	var got []Refreshed
	s := &Syncer{
		Cache:     c,
		Compute:   compute,
		OnRefresh: func(r Refreshed) { got = append(got, r) },
	}
	n := s.Sync(ctx, []Change{
		{Path: "a.css", Op: OpRemove},
		{Path: "b.css", Op: OpWrite},
	})

	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	for _, r := range got {
		require.NoError(t, r.Err)
		assert.True(t, r.Changed)
		assert.Equal(t, css.OutcomeNotFound, r.Outcome.Kind())
	}
	assert.Equal(t, 0, mem.Reads("b.css"))
}

func TestSyncer_UnchangedUnparseable(t *testing.T) {
	mem := source.NewMemory()
	mem.SetRedirect("a.css", "/elsewhere.css")

	pipeline := transform.NewPipeline()
	compute := cache.EngineCompute(css.NewEngine(mem), pipeline)
	c := cache.New()
	ctx := context.Background()
	_, err := c.Get(ctx, cache.NewKey("a.css", css.Global, pipeline), compute)
	require.NoError(t, err)

	var got []Refreshed
	s := &Syncer{Cache: c, Compute: compute, OnRefresh: func(r Refreshed) { got = append(got, r) }}
	s.Handler(ctx)([]Change{{Path: "a.css", Op: OpWrite}})

	require.Len(t, got, 1)
	assert.False(t, got[0].Changed)
	assert.Equal(t, css.OutcomeUnparseable, got[0].Outcome.Kind())
}

func TestSyncer_PathFunc(t *testing.T) {
	mem := source.NewMemory()
	mem.SetString("src/a.css", ".a{}")

	pipeline := transform.NewPipeline()
	compute := cache.EngineCompute(css.NewEngine(mem), pipeline)
	c := cache.New()
	ctx := context.Background()
	_, err := c.Get(ctx, cache.NewKey("src/a.css", css.Global, pipeline), compute)
	require.NoError(t, err)

	root := filepath.FromSlash("/srv/app")
	s := &Syncer{Cache: c, Compute: compute, Path: RelativeTo(root)}
	n := s.Sync(ctx, []Change{
		{Path: filepath.Join(root, "src", "a.css"), Op: OpWrite},
		{Path: filepath.FromSlash("/tmp/other.css"), Op: OpWrite},
	})
	assert.Equal(t, 1, n)
}
