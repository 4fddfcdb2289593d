// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the slog logger the bidsight binaries install
// as the process default.
//
// Output goes to stderr (text by default, JSON with Config.JSON) and,
// when Config.LogDir is set, additionally to a daily JSON file named
// {service}_{date}.log under that directory:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Service: "gateway",
//	    LogDir:  "~/.bidsight/logs",
//	})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// Nothing here redacts; keep API keys and document contents out of
// log attributes.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures New. The zero value writes Info+ text to stderr.
type Config struct {
	// Level is the minimum level for every destination.
	Level Level

	// LogDir enables the daily JSON file, with ~ expansion. Empty
	// disables file output. An unusable directory degrades to
	// stderr-only rather than failing construction.
	LogDir string

	// Service names the component; attached to every entry as the
	// "service" attribute and used in the log file name.
	Service string

	// JSON switches stderr to JSON. The file is always JSON.
	JSON bool
}

// Logger owns the configured slog handler chain and the log file, if
// any. Close releases the file; the Logger itself is just a handle and
// is safe for concurrent use through Slog.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a Logger for the configuration. Close it when the process
// exits so the file is synced.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}

	var stderr slog.Handler
	if cfg.JSON {
		stderr = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderr = slog.NewTextHandler(os.Stderr, opts)
	}

	l := &Logger{}
	handler := stderr
	if file := openLogFile(cfg); file != nil {
		l.file = file
		handler = &teeHandler{stderr, slog.NewJSONHandler(file, opts)}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.slog = slog.New(handler)
	return l
}

// Slog returns the underlying slog.Logger, typically for
// slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file. Safe when no file is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// openLogFile opens today's log file, or nil when file logging is off
// or the directory cannot be used.
func openLogFile(cfg Config) *os.File {
	if cfg.LogDir == "" {
		return nil
	}
	dir := expandPath(cfg.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	service := cfg.Service
	if service == "" {
		service = "bidsight"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// teeHandler duplicates records to the stderr and file handlers.
type teeHandler struct {
	a, b slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.a.Enabled(ctx, level) || h.b.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.a.Enabled(ctx, r.Level) {
		firstErr = h.a.Handle(ctx, r)
	}
	if h.b.Enabled(ctx, r.Level) {
		if err := h.b.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{h.a.WithAttrs(attrs), h.b.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{h.a.WithGroup(name), h.b.WithGroup(name)}
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
