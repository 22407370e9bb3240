// Package storage persists alerts, rules and incidents in SQLite.
//
// Connections are split into a single-writer pool and a concurrent read
// pool to leverage WAL mode. Rule records are validated on the way in
// (create/update) and adapted on the way out (defaulted CF, "unknown"
// conclusion) so the engine only ever sees valid rules.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the database connection pools.
type SQLite struct {
	WriteDB *sql.DB // single writer (WAL mode allows one writer at a time)
	ReadDB  *sql.DB // concurrent readers
	Path    string
	Logger  *zap.SugaredLogger
}

// configureConnection applies the standard pragmas to a pool and verifies
// they took effect. SQLite silently ignores unknown pragmas, so each one is
// read back.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report journal mode "memory", not "wal".
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}

	return nil
}

// NewSQLite opens the database at dbPath, creating the parent directory if
// needed, and runs migrations.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetConnMaxLifetime(time.Hour)
	if err := configureConnection(writeDB, dbPath); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("write pool: %w", err)
	}

	// In-memory databases are per-connection; a second pool would see an
	// empty schema. Reads share the writer connection in that case.
	readDB := writeDB
	if dbPath != ":memory:" {
		readDB, err = sql.Open("sqlite", dbPath)
		if err != nil {
			writeDB.Close()
			return nil, fmt.Errorf("failed to open SQLite read pool: %w", err)
		}
		readDB.SetMaxOpenConns(10)
		readDB.SetConnMaxLifetime(time.Hour)
		if err := configureConnection(readDB, dbPath); err != nil {
			writeDB.Close()
			readDB.Close()
			return nil, fmt.Errorf("read pool: %w", err)
		}
	}

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}

	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infow("SQLite storage ready", "path", dbPath)
	return s, nil
}

// Close closes both pools.
func (s *SQLite) Close() error {
	var firstErr error
	if s.ReadDB != nil && s.ReadDB != s.WriteDB {
		if err := s.ReadDB.Close(); err != nil {
			firstErr = err
		}
	}
	if s.WriteDB != nil {
		if err := s.WriteDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
