// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" Warn ", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("ParseLevel(loud) error = %v, want %v", err, ErrUnknownLevel)
	}
}

func TestLevel_RoundTripSlog(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		if got := levelFromSlog(l.toSlogLevel()); got != l {
			t.Errorf("levelFromSlog(%v.toSlogLevel()) = %v", l, got)
		}
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_TextLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Writer: &buf, Service: "cssmod"})
	defer logger.Close()

	logger.Info("hidden")
	logger.Warn("shown", "path", "a.css")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line was not filtered: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "path=a.css") {
		t.Errorf("warn line missing: %s", out)
	}
	if !strings.Contains(out, "service=cssmod") {
		t.Errorf("service attribute missing: %s", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Writer: &buf, JSON: true})
	defer logger.Close()

	logger.Slog().Debug("parsed", slog.String("outcome", "parsed"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if rec["msg"] != "parsed" || rec["outcome"] != "parsed" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_PrettyFallsBackWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Pretty: true})
	defer logger.Close()

	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("expected text handler output, got %s", buf.String())
	}
}

func TestNew_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Quiet: true})
	defer logger.Close()

	logger.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_LogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, LogDir: dir, Service: "watch"})

	logger.Info("to file", "n", 1)
	path := logger.FilePath()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "watch_"+time.Now().Format("2006-01-02")+".log")
	if path != want {
		t.Errorf("FilePath() = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("log file lacks record: %s", data)
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("console lacks record: %s", buf.String())
	}
}

func TestNew_LogFileFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, LogDir: filepath.Join(blocker, "logs")})
	defer logger.Close()

	if logger.FilePath() != "" {
		t.Error("expected no log file")
	}
	if !strings.Contains(buf.String(), "log file disabled") {
		t.Errorf("expected a warning, got %s", buf.String())
	}
}

func TestExporter(t *testing.T) {
	exp := NewBufferedExporter()
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Writer: &buf, Service: "cssmod", Exporter: exp})

	logger.Debug("skipped")
	logger.With("path", "a.css").Slog().WithGroup("cache").Info("hit", slog.Int("entries", 3))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := exp.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "hit" || e.Level != LevelInfo || e.Service != "cssmod" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Attrs["path"] != "a.css" {
		t.Errorf("path attr = %v", e.Attrs["path"])
	}
	if e.Attrs["cache.entries"] != int64(3) {
		t.Errorf("cache.entries attr = %v (%T)", e.Attrs["cache.entries"], e.Attrs["cache.entries"])
	}
	if !exp.Closed() {
		t.Error("exporter was not closed")
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelInfo)
	logger := slog.New(h).With("service", "cssmod")

	logger.Debug("hidden")
	logger.Info("refreshed stylesheet", "path", "src/a b.css")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line was not filtered: %s", out)
	}
	for _, want := range []string{"INFO", "refreshed stylesheet", "cssmod", `"src/a b.css"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q: %s", want, out)
		}
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected one line, got %q", out)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
