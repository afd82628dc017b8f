// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat interface.
// Messages are organized into the following categories:
//   - Cache: snapshot changes pushed from the send coordinator
//   - Sending: send completion and history paging results
//   - Runs: run lifecycle, SSE event batches, stream teardown
//   - Reports: parsed sections and export results
//   - Conversations: list refreshes
//   - UI state: errors, config reloads
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/config"
	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
	"github.com/jeranaias/scribe-tui/internal/session"
)

// =============================================================================
// CACHE MESSAGES
// =============================================================================

// SnapshotMsg delivers the coordinator's cache snapshot after any mutation.
// Snapshots are immutable values, so holding one across frames is safe.
type SnapshotMsg struct {
	Snapshot model.Snapshot
}

// =============================================================================
// SENDING / HISTORY MESSAGES
// =============================================================================

// HistoryLoadedMsg reports the initial newest-page load.
type HistoryLoadedMsg struct {
	Err error
}

// OlderLoadedMsg reports an older-page fetch. More is false once the start
// of history has been reached.
type OlderLoadedMsg struct {
	More bool
	Err  error
}

// SendFinishedMsg reports the outcome of one optimistic send attempt.
type SendFinishedMsg struct {
	Result session.SendResult
}

// =============================================================================
// RUN MESSAGES
// =============================================================================

// RunStartedMsg hands a freshly started run to the view, which begins the
// consumer and subscribes to the event feed.
type RunStartedMsg struct {
	RunID string
}

// RunEventsMsg delivers a drained batch of SSE events for the active run.
type RunEventsMsg struct {
	RunID  string
	Events []model.RunEvent
}

// RunStreamClosedMsg signals that the SSE channel ended. A nil Err is a
// clean server-side close; anything else triggers the reconnect path.
type RunStreamClosedMsg struct {
	RunID       string
	LastEventID int64
	Err         error
}

// RunUpdatedMsg delivers the consumer's current run state after a coalesced
// progress change or terminal transition.
type RunUpdatedMsg struct {
	State model.RunState
}

// RunClearedMsg signals that the run is over and the status line goes away.
type RunClearedMsg struct{}

// RunUnsubscribeMsg tears down the SSE subscription for the current run.
// Sent by the consumer's Unsubscribe hook exactly once per run.
type RunUnsubscribeMsg struct{}

// ReconnectTickMsg fires after the reconnect backoff to resubscribe.
type ReconnectTickMsg struct {
	RunID string
	At    time.Time
}

// RunCanceledMsg reports the outcome of a cancel request.
type RunCanceledMsg struct {
	RunID string
	Err   error
}

// RunRetriedMsg reports the outcome of a retry request. On success the new
// run replaces the failed one.
type RunRetriedMsg struct {
	Run api.Run
	Err error
}

// =============================================================================
// REPORT MESSAGES
// =============================================================================

// ReportSectionsMsg delivers parsed report sections from a succeeded run.
type ReportSectionsMsg struct {
	Sections []report.Section
}

// ReportSavedMsg reports persisting the report to the local store.
type ReportSavedMsg struct {
	Err error
}

// ReportClearedMsg reports removal of the persisted report row after a user
// clear.
type ReportClearedMsg struct {
	Err error
}

// ExportDoneMsg reports a report export to disk.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ConversationsMsg delivers the refreshed conversation list.
type ConversationsMsg struct {
	Conversations []model.Conversation
	Err           error
}

// ConversationsInvalidatedMsg signals that server-side conversation metadata
// may have moved and the list should be refetched.
type ConversationsInvalidatedMsg struct{}

// =============================================================================
// UI STATE MESSAGES
// =============================================================================

// ErrorMsg displays an error banner to the user.
type ErrorMsg struct {
	Title    string
	Message  string
	CanRetry bool
}

// ErrorDismissMsg dismisses the current error banner.
type ErrorDismissMsg struct{}

// ConfigReloadedMsg delivers a hot-reloaded configuration.
type ConfigReloadedMsg struct {
	Config *config.Config
}
