package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/spotify-manager/internal/schema"
	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the local cache of catalog entities
type Store struct {
	db       *sql.DB
	path     string
	registry *schema.Registry
	loose    bool
	now      func() time.Time

	// active is the single open transaction scope, if any
	active *Scope
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	// Registry overrides the shipped schema registry
	Registry *schema.Registry

	// LooseScope makes mutations issued outside a transaction log a warning
	// and do nothing instead of failing with ErrOutOfScope
	LooseScope bool
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options.
// Tables are not created; see CreateTables and UpgradeTables.
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = schema.DefaultRegistry()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the transaction scope and every read share it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{
		db:       db,
		path:     path,
		registry: registry,
		loose:    opts.LooseScope,
		now:      time.Now,
	}, nil
}

// Close closes the database connection. An open scope is rolled back.
func (s *Store) Close() error {
	if s.active != nil {
		s.active.Rollback()
	}
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Registry returns the schema registry the store migrates with
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var result string
	err := s.reader().QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// Orphans counts rows whose parent reference does not resolve
type Orphans struct {
	Tracks int // tracks whose album is missing
	Albums int // albums whose artist is missing
}

// CountOrphans reports rows that break the artists → albums → tracks
// insertion order. Requires the latest schema.
func (s *Store) CountOrphans(ctx context.Context) (*Orphans, error) {
	var o Orphans
	err := s.reader().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tracks
		 WHERE album_id NOT IN (SELECT id FROM albums)
	`).Scan(&o.Tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to count orphan tracks: %w", err)
	}

	err = s.reader().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM albums
		 WHERE artist_id NOT IN (SELECT id FROM artists)
	`).Scan(&o.Albums)
	if err != nil {
		return nil, fmt.Errorf("failed to count orphan albums: %w", err)
	}

	return &o, nil
}
