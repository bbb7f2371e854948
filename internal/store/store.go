package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations are applied in order to databases whose user_version is lower.
// Version 0 is the bare schema.sql.
var migrations = []migration{
	{
		version: 1,
		name:    "index events by type",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_events_type ON events(session_id, type, seq)`,
	},
	{
		version: 2,
		name:    "index sessions by start time",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at, id)`,
	},
}

// currentSchemaVersion is the user_version of a fully migrated database.
var currentSchemaVersion = migrations[len(migrations)-1].version

// pragma is a connection setting applied on Open.
type pragma struct {
	name  string
	value string
}

// pragmas configure every store:
//   - WAL so "nbsim trace" can read while "nbsim run" records
//   - NORMAL synchronous, enough for a trace log
//   - 5-second busy timeout for lock contention
//   - foreign keys, so events cannot outlive their session
var pragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is the durable trace log of notebook sessions.
//
// A Store is safe for concurrent use, but it holds a single connection:
// SQLite has one writer at a time, and ":memory:" databases exist per
// connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the trace database at path and brings its schema up
// to date. path may be ":memory:" for a private in-memory database.
// Opening an existing database again is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates missing tables, then applies every migration newer than
// the database's user_version in one transaction.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

// pragmaValue reads the current value of a pragma.
func (s *Store) pragmaValue(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return strings.ToLower(value), nil
}
