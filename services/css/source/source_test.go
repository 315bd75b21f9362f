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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFS_Content(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.css"), ".a {}")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	fsys := NewFS(dir)
	ctx := context.Background()

	t.Run("relative path", func(t *testing.T) {
		c, err := fsys.Content(ctx, "a.css")
		require.NoError(t, err)
		assert.Equal(t, Found([]byte(".a {}")), c)
	})

	t.Run("absolute path", func(t *testing.T) {
		c, err := fsys.Content(ctx, filepath.Join(dir, "a.css"))
		require.NoError(t, err)
		assert.Equal(t, Found([]byte(".a {}")), c)
	})

	t.Run("missing", func(t *testing.T) {
		c, err := fsys.Content(ctx, "missing.css")
		require.NoError(t, err)
		assert.Equal(t, Missing(), c)
	})

	t.Run("directory", func(t *testing.T) {
		c, err := fsys.Content(ctx, "sub")
		require.NoError(t, err)
		assert.Equal(t, Missing(), c)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := fsys.Content(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})
}

func TestFS_Symlink(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real.css"), ".a {}")
	if err := os.Symlink("real.css", filepath.Join(dir, "link.css")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	c, err := NewFS(dir).Content(context.Background(), "link.css")
	require.NoError(t, err)
	assert.Equal(t, Redirect{Target: filepath.Join(dir, "real.css")}, c)
}

func TestFS_TooLarge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.css"), "0123456789")
	fsys := &FS{Root: dir, MaxFileSize: 4}

	_, err := fsys.Content(context.Background(), "big.css")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFS_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFS(t.TempDir()).Content(ctx, "a.css")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte(".a {}")
	m.Set("a.css", buf)
	buf[0] = '#'
	m.SetRedirect("alias.css", "a.css")

	c, err := m.Content(ctx, "a.css")
	require.NoError(t, err)
	assert.Equal(t, Found([]byte(".a {}")), c)

	c.(File).Bytes[0] = '#'
	c, err = m.Content(ctx, "a.css")
	require.NoError(t, err)
	assert.Equal(t, Found([]byte(".a {}")), c, "stored bytes must not be shared")

	c, err = m.Content(ctx, "alias.css")
	require.NoError(t, err)
	assert.Equal(t, Redirect{Target: "a.css"}, c)

	c, err = m.Content(ctx, "nope.css")
	require.NoError(t, err)
	assert.Equal(t, Missing(), c)

	m.Delete("a.css")
	c, err = m.Content(ctx, "a.css")
	require.NoError(t, err)
	assert.False(t, c.(File).Found)

	assert.Equal(t, 3, m.Reads("a.css"))
	assert.Equal(t, 0, m.Reads("other.css"))
}

func TestProviderFunc(t *testing.T) {
	boom := errors.New("boom")
	p := ProviderFunc(func(context.Context, string) (Content, error) { return nil, boom })

	_, err := p.Content(context.Background(), "x.css")
	assert.ErrorIs(t, err, boom)
}

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_PutAndContent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/p/a.css", []byte(".a {}")))
	require.NoError(t, s.PutRedirect(ctx, "/p/alias.css", "/p/a.css"))

	c, err := s.Content(ctx, "/p/a.css")
	require.NoError(t, err)
	assert.Equal(t, Found([]byte(".a {}")), c)

	c, err = s.Content(ctx, "/p/alias.css")
	require.NoError(t, err)
	assert.Equal(t, Redirect{Target: "/p/a.css"}, c)

	c, err = s.Content(ctx, "/p/missing.css")
	require.NoError(t, err)
	assert.Equal(t, Missing(), c)

	paths, err := s.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.css", "/p/alias.css"}, paths)
}

func TestBadgerStore_EmptyFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "empty.css", nil))

	c, err := s.Content(ctx, "empty.css")
	require.NoError(t, err)
	f, ok := c.(File)
	require.True(t, ok)
	assert.True(t, f.Found)
	assert.Empty(t, f.Bytes)
}

func TestBadgerStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a.css", []byte("x")))
	require.NoError(t, s.Delete(ctx, "a.css"))
	require.NoError(t, s.Delete(ctx, "never.css"))

	c, err := s.Content(ctx, "a.css")
	require.NoError(t, err)
	assert.Equal(t, Missing(), c)
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	cfg := DefaultBadgerConfig(dir)
	cfg.SyncWrites = false
	ctx := context.Background()

	s, err := OpenBadger(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a.css", []byte(".a {}")))
	require.NoError(t, s.Close())

	s, err = OpenBadger(cfg)
	require.NoError(t, err)
	defer s.Close()
	c, err := s.Content(ctx, "a.css")
	require.NoError(t, err)
	assert.Equal(t, Found([]byte(".a {}")), c)
}

func TestBadgerStore_Errors(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)

	s := openTestStore(t)
	assert.ErrorIs(t, s.Put(context.Background(), "", nil), ErrEmptyPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "a.css", nil), context.Canceled)
	_, err = s.Content(ctx, "a.css")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeEntry_Corrupt(t *testing.T) {
	_, err := decodeEntry("x", nil)
	assert.ErrorIs(t, err, ErrCorruptEntry)
	_, err = decodeEntry("x", []byte("zabc"))
	assert.ErrorIs(t, err, ErrCorruptEntry)
}
