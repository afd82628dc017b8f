// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	r := New("Market Study")
	r.Append([]Section{{
		ID:      "sec-1",
		Heading: "Findings",
		Content: []ContentItem{{Text: "finding", Citations: []int{1}}},
	}})

	if err := store.Save("conv-1", r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected report, got nil")
	}
	if got.Title != "Market Study" {
		t.Errorf("Title = %q, want %q", got.Title, "Market Study")
	}
	if len(got.Sections) != 1 || got.Sections[0].Heading != "Findings" {
		t.Errorf("unexpected sections: %+v", got.Sections)
	}
}

func TestStore_MissingReportIsAbsentNotError(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Load("never-saved")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil report, got %+v", got)
	}
}

func TestStore_CorruptedRowTreatedAsAbsent(t *testing.T) {
	store := openTestStore(t)

	_, err := store.db.Exec(
		`INSERT INTO reports (conversation_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		"conv-bad", "{not json",
	)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := store.Load("conv-bad")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Errorf("corrupted report should read as absent, got %+v", got)
	}
}

func TestStore_ShapeCheckRejectsNullSections(t *testing.T) {
	store := openTestStore(t)

	_, err := store.db.Exec(
		`INSERT INTO reports (conversation_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		"conv-shape", `{"title":"x","sections":null}`,
	)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := store.Load("conv-shape")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Errorf("shape-invalid report should read as absent, got %+v", got)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save("conv-1", New("v1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save("conv-1", New("v2")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.Title != "v2" {
		t.Errorf("expected overwritten report v2, got %+v", got)
	}
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save("conv-1", New("doomed")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete("conv-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := store.Load("conv-1")
	if err != nil || got != nil {
		t.Errorf("expected absent after delete, got %+v err=%v", got, err)
	}

	// Deleting again is not an error.
	if err := store.Delete("conv-1"); err != nil {
		t.Errorf("Delete of missing report failed: %v", err)
	}
}
