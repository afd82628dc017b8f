// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// REPORT STORE
// =============================================================================

// Store persists one report per conversation in a local SQLite database.
//
// Reads are tolerant by contract: a row that fails to decode or fails the
// basic shape check is treated as absent, never as a hard error. The report
// is the only entity persisted beyond the in-memory session.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	conversation_id TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);`

// OpenStore opens (creating if needed) the report database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize report schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the report stored for a conversation, or nil when no usable
// report exists. Corrupted rows are reported as absent.
func (s *Store) Load(conversationID string) (*Report, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT data FROM reports WHERE conversation_id = ?`, conversationID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, nil
	}
	if !r.wellFormed() {
		return nil, nil
	}
	return &r, nil
}

// Save upserts the report for a conversation.
func (s *Store) Save(conversationID string, r *Report) error {
	if r == nil {
		return errors.New("report is nil")
	}
	if r.Sections == nil {
		r.Sections = make([]Section, 0)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO reports (conversation_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		conversationID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Delete removes the stored report for a conversation. Deleting a missing
// report is not an error.
func (s *Store) Delete(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM reports WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
