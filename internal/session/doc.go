// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the message lifecycle for one open conversation.
//
// The central type is Coordinator, which holds the paginated message cache
// and runs the optimistic send protocol against it:
//
//  1. A provisional user message with a client-local id appears in the
//     cache immediately.
//  2. The request carries an idempotency token, so a retried send cannot
//     create a duplicate on the server.
//  3. On success the placeholder is swapped for the server's copy; on
//     failure the cache is restored byte-for-byte to its pre-submit
//     snapshot and the draft text is preserved for a retry.
//
// Cache snapshots are immutable values, so the rollback copy is simply the
// snapshot taken before the placeholder was inserted.
//
// # Usage
//
//	coord := session.NewCoordinator(client, convID, hooks, logger)
//	if err := coord.LoadNewest(ctx); err != nil { ... }
//	result := coord.Send(ctx, "compare vendors", session.SendOptions{})
//	if result.State == session.SendRolledBack {
//	    // draft preserved, safe to retry
//	}
package session
