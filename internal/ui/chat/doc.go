// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The Bubble Tea event loop is the single scheduler: all state mutation
// happens in Update, and asynchronous work (HTTP requests, SSE reads,
// timers) runs in tea.Cmd goroutines that report back as messages. The
// send coordinator and run event consumer own their domains; this package
// is glue that translates key presses into operations on them and their
// hook callbacks into rendered state.
//
// Run event flow:
//
//	send commits -> OnRunStarted hook -> RunStartedMsg -> consumer.Begin +
//	SSE subscribe -> RunEventsMsg batches -> consumer.HandleBatch ->
//	RunUpdatedMsg / ReportSectionsMsg / RunClearedMsg back from hooks.
//
// When the SSE channel drops before a terminal event, the view shows a
// reconnecting indicator, lets the consumer issue its throttled fallback
// poll, and resubscribes with the last seen event id.
package chat
