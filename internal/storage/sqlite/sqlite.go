// Package sqlite provides the file-backed result cache, the default backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/AaronLay10/plannerbench/internal/storage"

	_ "modernc.org/sqlite"
)

// BusyTimeoutMS is how long a writer waits for a lock held by another worker process.
const BusyTimeoutMS = 30000

// Dialect is the SQLite flavor of the results table.
var Dialect = storage.Dialect{
	Name: "sqlite",
	Schema: `
		CREATE TABLE IF NOT EXISTS planner_results (
			planner_name     TEXT NOT NULL,
			problem_name     TEXT NOT NULL,
			running_mode     TEXT NOT NULL,
			jobs             INTEGER NOT NULL,
			memory_limit     INTEGER NOT NULL,
			timeout          REAL NOT NULL,
			domain           TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			computation_time REAL,
			plan_quality     REAL,
			error_message    TEXT,
			plan             TEXT,
			created_at       DATETIME NOT NULL,
			UNIQUE (planner_name, problem_name, running_mode, jobs, memory_limit, timeout)
		);`,
}

// DSN builds the connection string for a database file.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", BusyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// New creates a result store backed by the SQLite file at path.
func New(path string) (*storage.SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := DSN(path)
	open := func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return storage.NewSQLStore(open, Dialect), nil
}
