// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable rendering components for the TUI.
//
// Components here are pure: they take model state plus a theme and return a
// rendered string. They do not participate in the Bubble Tea update loop, so
// they can be unit tested without a terminal.
//
// Components:
//   - RunLine: live status line for an in-flight generation run
//   - StatusBar: bottom bar with connection state and shortcuts
//   - ErrorBanner: dismissible error display with a retry hint
//   - ReportPane: structured, citation-aware report rendering
package components
