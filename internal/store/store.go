// Package store provides SQLite storage for translation history and sign templates.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DefaultMaxEntries caps the translation history when no limit is configured.
const DefaultMaxEntries = 100

// Store is a SQLite database holding translations, templates and samples.
type Store struct {
	db         *sql.DB
	path       string
	maxEntries int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries caps the number of history entries kept. Zero or a negative
// value disables trimming.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// New opens the database at dbPath, enables foreign keys and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection; keep exactly one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
