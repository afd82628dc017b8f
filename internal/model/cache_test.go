// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// msg builds a message whose CreatedAt is offset seconds after the test epoch.
func msg(id string, offset int) Message {
	return Message{
		ID:        id,
		Role:      RoleUser,
		Kind:      KindChat,
		Text:      "text-" + id,
		CreatedAt: testEpoch.Add(time.Duration(offset) * time.Second),
	}
}

// ids extracts the id sequence from a message list.
func ids(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

// checkInvariants asserts the cache-wide invariants: unique ids everywhere
// and (CreatedAt, ID) order within every page.
func checkInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	seen := make(map[string]bool)
	for _, page := range s {
		for i, m := range page.Items {
			if seen[m.ID] {
				t.Fatalf("duplicate id %q in snapshot", m.ID)
			}
			seen[m.ID] = true
			if i > 0 && m.Before(page.Items[i-1]) {
				t.Fatalf("page out of order at %q", m.ID)
			}
		}
	}
}

// =============================================================================
// MERGE TESTS
// =============================================================================

func TestMerge_DeduplicatesLaterWins(t *testing.T) {
	a := msg("m1", 0)
	b := msg("m1", 0)
	b.Text = "updated"

	merged := Merge([]Message{a}, []Message{b})
	require.Len(t, merged, 1)
	assert.Equal(t, "updated", merged[0].Text)
}

func TestMerge_SortsByCreatedAtThenID(t *testing.T) {
	later := msg("a-later", 10)
	early := msg("z-early", 1)
	tieA := msg("tie-a", 5)
	tieB := msg("tie-b", 5)

	merged := Merge([]Message{later, tieB}, []Message{early, tieA})
	assert.Equal(t, []string{"z-early", "tie-a", "tie-b", "a-later"}, ids(merged))
}

func TestMerge_Idempotent(t *testing.T) {
	a := []Message{msg("m1", 0), msg("m2", 1)}
	b := []Message{msg("m2", 1), msg("m3", 2)}

	once := Merge(a, b)
	twice := Merge(once, b)
	assert.Equal(t, once, twice)
}

func TestMerge_CommutativeMembershipForDisjointInputs(t *testing.T) {
	a := []Message{msg("m1", 0), msg("m2", 1)}
	b := []Message{msg("m3", 2), msg("m4", 3)}

	ab := Merge(a, b)
	ba := Merge(b, a)
	assert.ElementsMatch(t, ab, ba)
}

func TestMerge_ToleratesDuplicateExistingIDs(t *testing.T) {
	// Malformed upstream input: the same id twice in one list.
	dup1 := msg("m1", 0)
	dup2 := msg("m1", 0)
	dup2.Text = "second"

	merged := Merge([]Message{dup1, dup2}, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, "second", merged[0].Text)
}

// =============================================================================
// UPSERT TESTS
// =============================================================================

func TestUpsert_InsertsIntoNewestPage(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("new1", 10)}},
		{Items: []Message{msg("old1", 1)}},
	}

	out := Upsert(s, msg("new2", 11), true)
	checkInvariants(t, out)
	assert.Equal(t, []string{"new1", "new2"}, ids(out[0].Items))
	assert.Equal(t, []string{"old1"}, ids(out[1].Items))
}

func TestUpsert_InsertsIntoOldestPage(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("new1", 10)}},
		{Items: []Message{msg("old1", 5)}},
	}

	out := Upsert(s, msg("old0", 1), false)
	checkInvariants(t, out)
	assert.Equal(t, []string{"old0", "old1"}, ids(out[1].Items))
}

func TestUpsert_ReplacesInPlaceAcrossPages(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("new1", 10)}},
		{Items: []Message{msg("old1", 1), msg("old2", 2)}},
	}

	updated := msg("old2", 2)
	updated.Text = "edited"
	out := Upsert(s, updated, true)

	checkInvariants(t, out)
	got, ok := Find(out, "old2")
	require.True(t, ok)
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, 3, Count(out))
}

func TestUpsert_EmptySnapshotCreatesPage(t *testing.T) {
	out := Upsert(Snapshot{}, msg("m1", 0), true)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"m1"}, ids(out[0].Items))
}

func TestUpsert_DoesNotMutateInput(t *testing.T) {
	s := Snapshot{{Items: []Message{msg("m1", 0)}}}
	before := Count(s)

	_ = Upsert(s, msg("m2", 1), true)
	assert.Equal(t, before, Count(s))
	assert.Equal(t, []string{"m1"}, ids(s[0].Items))
}

// =============================================================================
// REMOVE TESTS
// =============================================================================

func TestRemove_FiltersEveryPage(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("m1", 0)}},
		{Items: []Message{msg("m2", 1)}},
	}

	out := Remove(s, "m2")
	checkInvariants(t, out)
	_, ok := Find(out, "m2")
	assert.False(t, ok)
	assert.Equal(t, 1, Count(out))
}

func TestRemove_AbsentIDIsNoop(t *testing.T) {
	s := Snapshot{{Items: []Message{msg("m1", 0)}}}
	out := Remove(s, "nope")
	assert.Equal(t, Flatten(s), Flatten(out))
}

// =============================================================================
// REPLACE-ID TESTS
// =============================================================================

func TestReplaceID_SwapsPlaceholderForServerMessage(t *testing.T) {
	placeholder := NewOptimisticMessage(LocalIDPrefix+"abc", "tok-1", "hello")
	s := Upsert(Snapshot{}, placeholder, true)

	server := msg("srv-1", 5)
	out := ReplaceID(s, placeholder.ID, server)

	checkInvariants(t, out)
	_, ok := Find(out, placeholder.ID)
	assert.False(t, ok)
	got, ok := Find(out, "srv-1")
	require.True(t, ok)
	assert.False(t, got.Optimistic)
}

func TestReplaceID_MissingFromFallsBackToUpsert(t *testing.T) {
	// Race: the server response landed before the placeholder insertion, or a
	// retry delivered the same server message twice.
	s := Snapshot{{Items: []Message{msg("srv-1", 5)}}}

	updated := msg("srv-1", 5)
	updated.Text = "retry copy"
	out := ReplaceID(s, LocalIDPrefix+"gone", updated)

	checkInvariants(t, out)
	assert.Equal(t, 1, Count(out))
	got, _ := Find(out, "srv-1")
	assert.Equal(t, "retry copy", got.Text)
}

func TestReplaceID_BothPresentKeepsSingleCopy(t *testing.T) {
	placeholder := NewOptimisticMessage(LocalIDPrefix+"abc", "tok-1", "hello")
	s := Upsert(Snapshot{}, placeholder, true)
	s = Upsert(s, msg("srv-1", 5), true)

	out := ReplaceID(s, placeholder.ID, msg("srv-1", 5))
	checkInvariants(t, out)
	assert.Equal(t, 1, Count(out))
}

func TestReplaceID_EquivalentToRemoveThenUpsert(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("new1", 10)}},
		{Items: []Message{msg("old1", 1), msg("target", 2)}},
	}
	to := msg("srv-9", 4)

	left := Flatten(ReplaceID(s, "target", to))
	right := Flatten(Upsert(Remove(s, "target"), to, true))
	assert.ElementsMatch(t, left, right)
}

// =============================================================================
// PROPERTY TESTS
// =============================================================================

func TestOperationSequencesPreserveInvariants(t *testing.T) {
	s := Snapshot{}
	for i := 0; i < 20; i++ {
		s = Upsert(s, msg(string(rune('a'+i%5))+"-m", i%7), i%2 == 0)
		checkInvariants(t, s)
	}
	s = Remove(s, "a-m")
	checkInvariants(t, s)
	s = ReplaceID(s, "b-m", msg("srv-b", 3))
	checkInvariants(t, s)
}

func TestFlatten_OldestFirstAcrossPages(t *testing.T) {
	s := Snapshot{
		{Items: []Message{msg("new1", 10), msg("new2", 11)}},
		{Items: []Message{msg("old1", 1), msg("old2", 2)}},
	}
	assert.Equal(t, []string{"old1", "old2", "new1", "new2"}, ids(Flatten(s)))
}

func TestAppendOlderPage_SkipsAlreadyCachedIDs(t *testing.T) {
	s := Snapshot{{Items: []Message{msg("m1", 5), msg("m2", 6)}}}
	cursor := "before-m0"

	out := AppendOlderPage(s, Page{
		Items:      []Message{msg("m0", 1), msg("m1", 5)},
		NextCursor: &cursor,
	})

	checkInvariants(t, out)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"m0"}, ids(out[1].Items))
	require.NotNil(t, NextCursor(out))
	assert.Equal(t, "before-m0", *NextCursor(out))
}
