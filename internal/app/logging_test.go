// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/burrow/internal/config"
)

func TestLevelFromConfig(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromConfig("debug"))
	assert.Equal(t, slog.LevelInfo, levelFromConfig("message"))
	assert.Equal(t, slog.LevelInfo, levelFromConfig("notice"))
	assert.Equal(t, slog.LevelWarn, levelFromConfig("warning"))
	assert.Equal(t, slog.LevelError, levelFromConfig("error"))
	assert.Equal(t, slog.LevelInfo, levelFromConfig("bogus"))
}

func TestApplySetsLevel(t *testing.T) {
	lm := newLogManager(t.TempDir(), false)

	lm.Apply(config.Log{Level: "error", Output: "stdout"})
	assert.Equal(t, slog.LevelError, lm.level.Level())

	lm.Apply(config.Log{Level: "debug", Output: "stdout"})
	assert.Equal(t, slog.LevelDebug, lm.level.Level())
}

func TestVerbosePinsDebug(t *testing.T) {
	lm := newLogManager(t.TempDir(), true)

	lm.Apply(config.Log{Level: "error", Output: "stdout"})
	assert.Equal(t, slog.LevelDebug, lm.level.Level())
}

func TestApplyFileOutput(t *testing.T) {
	dir := t.TempDir()
	lm := newLogManager(dir, false)

	lm.Apply(config.Log{Level: "message", Output: "file"})
	t.Cleanup(func() { lm.Apply(config.Log{Level: "message", Output: "stdout"}) })

	slog.Info("hello from the log file test")

	data, err := os.ReadFile(filepath.Join(dir, "burrow.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the log file test")
}
