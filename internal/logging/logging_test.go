// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scribe.log")

	logger, closer, err := Setup(path, "debug")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info().Str("component", "test").Msg("hello")
	if err := closer(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("expected structured log line, got %q", data)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")

	logger, closer, err := Setup(path, "error")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info().Msg("filtered out")
	logger.Error().Msg("kept")
	closer()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "filtered out") {
		t.Error("info line should have been filtered at error level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("error line missing")
	}
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	if got := parseLevel("bogus"); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %v", got)
	}
	if got := parseLevel("warn"); got != zerolog.WarnLevel {
		t.Errorf("expected warn, got %v", got)
	}
}
