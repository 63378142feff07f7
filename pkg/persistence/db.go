// Package persistence provides the SQLite-backed run ledger. Every gate run
// records its terminal result so CI history survives individual job logs.
package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // CGo-free SQLite driver

	"mergegate/pkg/logx"
)

// Store wraps the ledger database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens the ledger database at dbPath, creating the file and parent
// directory as needed, and brings the schema up to date.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	// Pragmas ride the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Debug("ledger database ready: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close ledger database: %w", err)
	}
	return nil
}
