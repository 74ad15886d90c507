package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// BusyTimeout is how long a statement waits on a locked database.
const BusyTimeout = 5 * time.Second

// DB is the per-profile inbox.db connection.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the SQLite file at path, creating its directory when needed.
// The connection runs in WAL mode with foreign keys enforced.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", strconv.FormatInt(BusyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// Path is the file the connection was opened on.
func (db *DB) Path() string { return db.path }

// JournalMode reports the journal mode SQLite settled on. It is "wal" unless the
// filesystem cannot host the shared-memory index.
func (db *DB) JournalMode() (string, error) {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("read journal mode: %w", err)
	}
	return mode, nil
}
