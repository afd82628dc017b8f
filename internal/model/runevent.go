// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// RUN EVENT TYPE
// =============================================================================

// Level is the severity of a run progress event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// RunEvent is one progress event emitted by a generation run.
//
// IDs are assigned by the producer in emission order and are strictly
// increasing per run; they exist purely for de-duplication, since the
// transport may redeliver or slightly reorder frames.
type RunEvent struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// PayloadString returns the named payload field as a string, or "" when the
// field is missing or not a string.
func (e RunEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
