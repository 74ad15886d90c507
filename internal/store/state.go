package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrStateNotFound is returned by LoadState when no blob is stored under the key.
var ErrStateNotFound = errors.New("state not found")

// SaveState replaces the blob stored under key.
func (db *DB) SaveState(key string, version int, blob []byte) error {
	_, err := db.Exec(`
		INSERT INTO state (key, version, blob, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET version = excluded.version, blob = excluded.blob, updated_at = excluded.updated_at`,
		key, version, blob, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save state %s: %w", key, err)
	}
	return nil
}

// LoadState returns the blob stored under key.
func (db *DB) LoadState(key string) (*StateRecord, error) {
	rec := &StateRecord{Key: key}
	err := db.QueryRow(`SELECT version, blob, updated_at FROM state WHERE key = ?`, key).
		Scan(&rec.Version, &rec.Blob, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", key, err)
	}
	return rec, nil
}

// DeleteState removes the blob stored under key.
func (db *DB) DeleteState(key string) error {
	if _, err := db.Exec(`DELETE FROM state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
