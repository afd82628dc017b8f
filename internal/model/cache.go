// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sort"

// =============================================================================
// PAGE AND SNAPSHOT TYPES
// =============================================================================

// Page is one cursor-paginated slice of message history.
type Page struct {
	Items      []Message `json:"items"`
	NextCursor *string   `json:"next_cursor"`
}

// Snapshot is the ordered sequence of loaded pages, newest page first. The
// user-facing message order is the reverse flattening (oldest message first).
//
// Snapshots are treated as immutable values: every operation below returns a
// new snapshot and leaves its input untouched. Pages that an operation does
// not modify are shared between the old and new snapshot, not copied.
type Snapshot []Page

// =============================================================================
// CACHE OPERATIONS
// =============================================================================

// Merge combines two message lists, de-duplicating by id (a later entry wins)
// and sorting by (CreatedAt, ID) ascending with the id breaking ties
// lexicographically.
//
// Merge is idempotent and, for disjoint-id inputs, commutative with respect
// to final membership. Duplicate ids inside either input are tolerated by the
// same last-write-wins rule rather than rejected.
func Merge(existing, additions []Message) []Message {
	byID := make(map[string]Message, len(existing)+len(additions))
	for _, m := range existing {
		byID[m.ID] = m
	}
	for _, m := range additions {
		byID[m.ID] = m
	}

	out := make([]Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sortMessages(out)
	return out
}

// Upsert inserts or replaces a message in the snapshot.
//
// If the id already exists on any page, the message is replaced in place and
// only that page is re-sorted. Otherwise it is inserted into the newest page
// (or the oldest, when preferNewest is false) and that page is re-sorted.
// Pages other than the affected one are untouched. The returned snapshot
// never contains duplicate ids.
func Upsert(s Snapshot, m Message, preferNewest bool) Snapshot {
	for i, page := range s {
		for j, existing := range page.Items {
			if existing.ID == m.ID {
				return replaceAt(s, i, j, m)
			}
		}
	}

	if len(s) == 0 {
		return Snapshot{{Items: []Message{m}}}
	}

	target := 0
	if !preferNewest {
		target = len(s) - 1
	}
	return insertAt(s, target, m)
}

// Remove filters the id out of every page. It is a no-op (returning an
// equal-membership snapshot) when the id is absent.
func Remove(s Snapshot, id string) Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	for i, page := range s {
		hit := false
		for _, m := range page.Items {
			if m.ID == id {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		items := make([]Message, 0, len(page.Items)-1)
		for _, m := range page.Items {
			if m.ID != id {
				items = append(items, m)
			}
		}
		out[i] = Page{Items: items, NextCursor: page.NextCursor}
	}
	return out
}

// ReplaceID swaps the message carrying fromID for to, re-sorting the page it
// lives on. If fromID is absent the call degrades to Upsert(s, to, true),
// which covers the race where the server response was recorded before the
// local placeholder insertion completed, and the retry case where the same
// server message is delivered twice.
func ReplaceID(s Snapshot, fromID string, to Message) Snapshot {
	found := false
	for _, page := range s {
		for _, m := range page.Items {
			if m.ID == fromID {
				found = true
				break
			}
		}
	}
	if !found {
		return Upsert(s, to, true)
	}

	// Drop any prior copy of the target id so the swap cannot introduce a
	// duplicate, then replace the placeholder where it sits.
	if to.ID != fromID {
		s = Remove(s, to.ID)
	}
	for i, page := range s {
		for j, m := range page.Items {
			if m.ID == fromID {
				return replaceAt(s, i, j, to)
			}
		}
	}
	return Upsert(s, to, true)
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// Flatten returns all messages in user-facing order, oldest first. Pages are
// stored newest-first, so the page sequence is walked in reverse.
func Flatten(s Snapshot) []Message {
	total := 0
	for _, page := range s {
		total += len(page.Items)
	}
	out := make([]Message, 0, total)
	for i := len(s) - 1; i >= 0; i-- {
		out = append(out, s[i].Items...)
	}
	return out
}

// Find returns the message with the given id and whether it exists.
func Find(s Snapshot, id string) (Message, bool) {
	for _, page := range s {
		for _, m := range page.Items {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Message{}, false
}

// Count returns the total number of cached messages.
func Count(s Snapshot) int {
	n := 0
	for _, page := range s {
		n += len(page.Items)
	}
	return n
}

// NextCursor returns the pagination cursor of the oldest loaded page, or nil
// when history is fully loaded (or nothing is loaded yet).
func NextCursor(s Snapshot) *string {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1].NextCursor
}

// AppendOlderPage attaches a freshly fetched page of older history to the end
// of the snapshot, merging out any ids already cached on newer pages.
func AppendOlderPage(s Snapshot, page Page) Snapshot {
	items := make([]Message, 0, len(page.Items))
	for _, m := range page.Items {
		if _, ok := Find(s, m.ID); ok {
			continue
		}
		items = append(items, m)
	}
	sortMessages(items)

	out := make(Snapshot, len(s), len(s)+1)
	copy(out, s)
	return append(out, Page{Items: items, NextCursor: page.NextCursor})
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// replaceAt swaps out one message on one page, copying only that page.
func replaceAt(s Snapshot, pageIdx, itemIdx int, m Message) Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)

	page := s[pageIdx]
	items := make([]Message, len(page.Items))
	copy(items, page.Items)
	items[itemIdx] = m
	sortMessages(items)

	out[pageIdx] = Page{Items: items, NextCursor: page.NextCursor}
	return out
}

// insertAt appends a message to one page, copying only that page.
func insertAt(s Snapshot, pageIdx int, m Message) Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)

	page := s[pageIdx]
	items := make([]Message, 0, len(page.Items)+1)
	items = append(items, page.Items...)
	items = append(items, m)
	sortMessages(items)

	out[pageIdx] = Page{Items: items, NextCursor: page.NextCursor}
	return out
}

// sortMessages orders messages by (CreatedAt, ID) ascending in place.
func sortMessages(items []Message) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Before(items[j])
	})
}
