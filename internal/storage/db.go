// Package storage persists analysis history, the task ledger mirror, and
// context snapshots in a single SQLite file.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection.
type DB struct {
	conn *sql.DB
	path string
}

// New opens (creating if necessary) the SQLite database at dbPath in WAL
// mode and verifies the connection.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the on-disk location of the database file, used by the
// backup service.
func (db *DB) Path() string {
	return db.path
}

// Begin starts a new transaction.
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows.
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Migrate creates the schema when it does not exist yet. The schema is
// additive-only; existing rows are never rewritten by a migration.
func (db *DB) Migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_results (
			query_id         TEXT NOT NULL,
			code             TEXT NOT NULL,
			name             TEXT NOT NULL DEFAULT '',
			market           TEXT NOT NULL DEFAULT '',
			generated_at     TIMESTAMP NOT NULL,
			sentiment_score  REAL NOT NULL DEFAULT 0,
			operation_advice TEXT NOT NULL DEFAULT '',
			decision_type    TEXT NOT NULL DEFAULT 'hold',
			trend_prediction TEXT NOT NULL DEFAULT '',
			confidence       REAL NOT NULL DEFAULT 0,
			narrative        TEXT NOT NULL DEFAULT '',
			dashboard        TEXT NOT NULL DEFAULT '{}',
			news_items       TEXT NOT NULL DEFAULT '[]',
			data_sources     TEXT NOT NULL DEFAULT '[]',
			search_performed INTEGER NOT NULL DEFAULT 0,
			success          INTEGER NOT NULL DEFAULT 0,
			error_message    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (query_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_code ON analysis_results(code, generated_at)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id     TEXT PRIMARY KEY,
			code        TEXT NOT NULL,
			report_type TEXT NOT NULL DEFAULT 'simple',
			status      TEXT NOT NULL,
			submitted_at TIMESTAMP NOT NULL,
			finished_at  TIMESTAMP,
			error        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS market_reviews (
			review_date TEXT PRIMARY KEY,
			body        TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS context_snapshots (
			query_id   TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
