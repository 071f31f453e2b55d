// Package store persists aggregation snapshots and parsed row sets in a
// local SQLite file. Semantics are deliberately small: get-by-key returns
// the last written value or absence, set-by-key is last-write-wins, clear
// removes the key. No transactions span keys.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"funnelgrid/pkg/pipeerr"
)

// schemaVersion is written alongside every value so stale payload shapes
// can be rejected after upgrades.
const schemaVersion = 1

const (
	tableSnapshots = "snapshots"
	tableRowsets   = "rowsets"
)

// Store wraps the two persistent-store roles: a small-value snapshot table
// (metrics, time series, records) and a larger blob table for parsed row
// sets that enables re-aggregation without re-uploading files.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open creates or opens the store file and ensures both tables exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pipeerr.Newf(pipeerr.StoreFailed, "open %s: %v", path, err)
	}
	// Single connection avoids "database is locked" under the write path.
	db.SetMaxOpenConns(1)

	for _, table := range []string{tableSnapshots, tableRowsets} {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				value BLOB NOT NULL,
				version INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`, table)
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, pipeerr.Newf(pipeerr.StoreFailed, "create table %s: %v", table, err)
		}
	}
	return &Store{db: db, clock: time.Now}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSnapshot returns the raw snapshot value for key, with ok=false on
// absence or version mismatch.
func (s *Store) GetSnapshot(key string) ([]byte, bool, error) {
	return s.get(tableSnapshots, key)
}

// SetSnapshot writes a snapshot value, replacing any prior value.
func (s *Store) SetSnapshot(key string, value []byte) error {
	return s.set(tableSnapshots, key, value)
}

// ClearSnapshot removes a snapshot key. Missing keys are not an error.
func (s *Store) ClearSnapshot(key string) error {
	return s.clear(tableSnapshots, key)
}

// GetRowset returns the stored parsed row set for a source key.
func (s *Store) GetRowset(key string) ([]byte, bool, error) {
	return s.get(tableRowsets, key)
}

// SetRowset stores a parsed row set blob for a source key.
func (s *Store) SetRowset(key string, value []byte) error {
	return s.set(tableRowsets, key, value)
}

// ClearRowset removes a stored row set.
func (s *Store) ClearRowset(key string) error {
	return s.clear(tableRowsets, key)
}

// GetJSON unmarshals a snapshot into out, reporting absence without error.
func (s *Store) GetJSON(key string, out any) (bool, error) {
	raw, ok, err := s.GetSnapshot(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, pipeerr.Newf(pipeerr.StoreFailed, "decode snapshot %s: %v", key, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return pipeerr.Newf(pipeerr.StoreFailed, "encode snapshot %s: %v", key, err)
	}
	return s.SetSnapshot(key, raw)
}

func (s *Store) get(table, key string) ([]byte, bool, error) {
	var value []byte
	var version int
	query := fmt.Sprintf(`SELECT value, version FROM %s WHERE key = ?`, table)
	err := s.db.QueryRow(query, key).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pipeerr.Newf(pipeerr.StoreFailed, "get %s/%s: %v", table, key, err)
	}
	if version != schemaVersion {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) set(table, key string, value []byte) error {
	query := fmt.Sprintf(
		`INSERT OR REPLACE INTO %s (key, value, version, updated_at) VALUES (?, ?, ?, ?)`, table)
	if _, err := s.db.Exec(query, key, value, schemaVersion, s.clock().Unix()); err != nil {
		return pipeerr.Newf(pipeerr.StoreFailed, "set %s/%s: %v", table, key, err)
	}
	return nil
}

func (s *Store) clear(table, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table)
	if _, err := s.db.Exec(query, key); err != nil {
		return pipeerr.Newf(pipeerr.StoreFailed, "clear %s/%s: %v", table, key, err)
	}
	return nil
}
