// Package sqlite persists a Replica's records, tombstones, and column
// versions to a SQLite file between process runs. The core crdt
// package does no I/O and stores no history beyond current state
// (spec.md §1), so this is a snapshot convenience, not something the
// core depends on: a caller can run entirely in memory, or swap in a
// different adapter.
//
// It uses ncruces/go-sqlite3's CGO-free WASM driver, the same engine
// the sibling beads lineage (untoldecay/BeadsLog) uses for its own
// sync-branch metadata reads.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/driftline/driftline/crdt"
)

const schema = `
CREATE TABLE IF NOT EXISTS column_versions (
	record_id   TEXT NOT NULL,
	col_name    TEXT NOT NULL,
	value       TEXT,
	has_value   INTEGER NOT NULL,
	col_version INTEGER NOT NULL,
	db_version  INTEGER NOT NULL,
	site_id     INTEGER NOT NULL,
	seq         INTEGER NOT NULL,
	PRIMARY KEY (record_id, col_name)
);
`

// Store is a SQLite-backed snapshot of a crdt.Replica[string, json.RawMessage].
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path.
func Open(path string) (*Store, error) {
	connStr := fmt.Sprintf("file:%s", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with replica's current
// changes_since(0) — the full current state, since the core keeps no
// history beyond that (spec.md §1).
func (s *Store) Save(ctx context.Context, replica *crdt.Replica[string, json.RawMessage]) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store/sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op if Commit succeeds

	if _, err := tx.ExecContext(ctx, `DELETE FROM column_versions`); err != nil {
		return fmt.Errorf("store/sqlite: clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO column_versions
			(record_id, col_name, value, has_value, col_version, db_version, site_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store/sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, change := range replica.ChangesSince(0) {
		var value string
		hasValue := 0
		if change.HasValue {
			value = string(change.Value)
			hasValue = 1
		}
		if _, err := stmt.ExecContext(ctx, change.RecordID, change.ColName, value, hasValue,
			change.ColVersion, change.DBVersion, change.SiteID, change.Seq); err != nil {
			return fmt.Errorf("store/sqlite: insert %s/%s: %w", change.RecordID, change.ColName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store/sqlite: commit: %w", err)
	}
	return nil
}

// Load reconstructs a Replica by merging every stored column version
// into a fresh one, the same way two live replicas converge: it is
// just MergeChanges applied to a snapshot instead of a peer's batch.
//
// This recovers all observable record/tombstone state exactly, but
// the clock value after Load may be lower than it was before Save if
// the original replica had advanced its clock past rejected or
// malformed merges that left no trace in any stored column version.
// That only affects how far ahead of peers this replica's own next
// local db_version starts, not correctness of convergence.
func (s *Store) Load(ctx context.Context, nodeID uint64) (*crdt.Replica[string, json.RawMessage], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, col_name, value, has_value, col_version, db_version, site_id, seq
		FROM column_versions`)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: query snapshot: %w", err)
	}
	defer rows.Close()

	var changes []crdt.Change[string, json.RawMessage]
	for rows.Next() {
		var c crdt.Change[string, json.RawMessage]
		var value string
		var hasValue int
		if err := rows.Scan(&c.RecordID, &c.ColName, &value, &hasValue,
			&c.ColVersion, &c.DBVersion, &c.SiteID, &c.Seq); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan row: %w", err)
		}
		if hasValue != 0 {
			c.Value = json.RawMessage(value)
			c.HasValue = true
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/sqlite: iterate rows: %w", err)
	}

	replica := crdt.New[string, json.RawMessage](nodeID)
	replica.MergeChanges(changes)
	return replica, nil
}
