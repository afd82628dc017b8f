// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package run consumes the per-run progress event feed and drives the
// RunState shown in the UI. The consumer does not own the feed: it is handed
// batches of events by whoever holds the connection, de-duplicates them by
// monotonic id, coalesces bursty progress updates, and resolves exactly one
// terminal transition per run. On failure it fetches the authoritative run
// record for a complete error message; on success it fetches artifacts and
// hands their text to the report parser.
package run
