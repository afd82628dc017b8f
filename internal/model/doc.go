// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// It defines the core domain types used throughout the application and the
// pure snapshot operations that keep the paginated message cache consistent
// under optimistic inserts and server reconciliation.
//
// # Key Types
//
//   - Message: Single message with role, kind, text, and reconciliation state
//   - Page: One cursor-paginated slice of message history
//   - Snapshot: The ordered sequence of loaded pages (newest page first)
//   - Conversation: Lightweight conversation metadata for listing
//
// # Cache Operations
//
// Merge, Upsert, Remove and ReplaceID are total, pure functions: they never
// mutate their inputs and always return a snapshot whose flattened contents
// have unique ids sorted by (CreatedAt, ID).
//
//	snap = model.Upsert(snap, msg, true)
//	snap = model.ReplaceID(snap, placeholderID, serverMsg)
package model
