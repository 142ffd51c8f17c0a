// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wingedpig/burrow/internal/config"
)

// ANSI colors for log levels when color output is enabled.
var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\x1b[36m",
	slog.LevelInfo:  "\x1b[32m",
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelError: "\x1b[31m",
}

// logManager owns the process logger and re-applies log settings when
// the configuration changes.
type logManager struct {
	mu      sync.Mutex
	dataDir string
	verbose bool
	level   *slog.LevelVar
	file    *os.File
}

func newLogManager(dataDir string, verbose bool) *logManager {
	lm := &logManager{dataDir: dataDir, verbose: verbose, level: &slog.LevelVar{}}
	if verbose {
		lm.level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lm.level})))
	return lm
}

// levelFromConfig maps the config's level names onto slog levels.
func levelFromConfig(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "notice", "message":
		return slog.LevelInfo
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Apply reconfigures the process logger. The -v flag pins the level to
// debug regardless of configuration.
func (lm *logManager) Apply(cfg config.Log) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.verbose {
		lm.level.Set(slog.LevelDebug)
	} else {
		lm.level.Set(levelFromConfig(cfg.Level))
	}

	out := os.Stdout
	if cfg.Output == "file" {
		path := filepath.Join(lm.dataDir, "burrow.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			slog.Error("cannot open log file, keeping stdout", "path", path, "error", err)
		} else {
			if lm.file != nil {
				lm.file.Close()
			}
			lm.file = f
			out = f
		}
	} else if lm.file != nil {
		lm.file.Close()
		lm.file = nil
	}

	opts := &slog.HandlerOptions{
		Level:       lm.level,
		ReplaceAttr: replaceAttr(cfg),
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, opts)))
}

// replaceAttr applies the timestampFormat and color settings.
func replaceAttr(cfg config.Log) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			switch cfg.TimestampFormat {
			case "none":
				return slog.Attr{}
			case "", "default":
				return a
			default:
				return slog.String(slog.TimeKey, a.Value.Time().Format(cfg.TimestampFormat))
			}
		case slog.LevelKey:
			if cfg.Color {
				level := a.Value.Any().(slog.Level)
				if color, ok := levelColors[level]; ok {
					return slog.String(slog.LevelKey, color+level.String()+"\x1b[0m")
				}
			}
		}
		return a
	}
}
