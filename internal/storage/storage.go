// Package storage persists enriched captures and runtime settings in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mindmorass/spiegel/internal/events"
	_ "modernc.org/sqlite"
)

const (
	// DBFile is the database filename inside the data directory
	DBFile = "spiegel.db"

	// CurrentSchemaVersion is the latest user_version. Bump it with each migration.
	CurrentSchemaVersion = 1

	// FilePermissions for the database file
	FilePermissions = 0600

	// DirPermissions for the data directory
	DirPermissions = 0700
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrNoLocation = errors.New("no data directory configured")
)

// Store wraps the database shared by records and settings
type Store struct {
	db      *sql.DB
	emitter events.Emitter
	now     func() time.Time
}

// Open creates baseDir if needed, opens baseDir/spiegel.db and migrates it.
// Deletions are announced on emitter; nil discards them.
func Open(baseDir string, emitter events.Emitter) (*Store, error) {
	if baseDir == "" {
		return nil, ErrNoLocation
	}
	if err := os.MkdirAll(baseDir, DirPermissions); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, DBFile)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, FilePermissions)

	if emitter == nil {
		emitter = events.Discard
	}
	return &Store{db: db, emitter: emitter, now: time.Now}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for diagnostics
func (s *Store) DB() *sql.DB {
	return s.db
}

func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS clips (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  clip       TEXT NOT NULL,
		  category   TEXT NOT NULL,
		  summary    TEXT,
		  tags       TEXT,
		  created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_clips_created
		ON clips(created_at DESC, id DESC);

		CREATE TABLE IF NOT EXISTS settings (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  key        TEXT NOT NULL UNIQUE,
		  value      TEXT NOT NULL,
		  created_at INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}
