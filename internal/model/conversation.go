// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds lightweight conversation metadata for listing. Message
// contents live in the paginated cache, not here.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetTitle returns the conversation title or a default.
func (c Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// RUN STATE
// =============================================================================

// RunStatus is the lifecycle status of a generation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunStopping  RunStatus = "stopping"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Terminal reports whether the status ends a run's event stream. Stopping is
// an intermediate, client-only state shown while a cancel is in flight.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunCanceled:
		return true
	}
	return false
}

// RunState is the live view of one generation run. It is created when a send
// response or action indicates a run started, mutated only by the run event
// consumer, and cleared once a terminal status has been fully handled.
type RunState struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	PrimaryText   string    `json:"primary_text"`
	SecondaryText string    `json:"secondary_text,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	Err           string    `json:"error,omitempty"`
}

// NewRunState constructs a running RunState for a freshly started run.
func NewRunState(runID string) *RunState {
	return &RunState{
		RunID:       runID,
		Status:      RunRunning,
		PrimaryText: "Starting...",
		StartedAt:   time.Now(),
	}
}
