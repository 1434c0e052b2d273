// Package postgres provides the shared PostgreSQL result cache.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/AaronLay10/plannerbench/internal/config"
	"github.com/AaronLay10/plannerbench/internal/storage"

	_ "github.com/lib/pq"
)

// Dialect is the PostgreSQL flavor of the results table.
var Dialect = storage.Dialect{
	Name:     "postgres",
	Numbered: true,
	Schema: `
		CREATE TABLE IF NOT EXISTS planner_results (
			planner_name     TEXT NOT NULL,
			problem_name     TEXT NOT NULL,
			running_mode     TEXT NOT NULL,
			jobs             INTEGER NOT NULL,
			memory_limit     BIGINT NOT NULL,
			timeout          DOUBLE PRECISION NOT NULL,
			domain           TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			computation_time DOUBLE PRECISION,
			plan_quality     DOUBLE PRECISION,
			error_message    TEXT,
			plan             TEXT,
			created_at       TIMESTAMPTZ NOT NULL,
			UNIQUE (planner_name, problem_name, running_mode, jobs, memory_limit, timeout)
		);
		CREATE INDEX IF NOT EXISTS idx_planner_results_created_at ON planner_results(created_at DESC);
	`,
}

// ConnStringFromEnv builds a connection string from the PG* environment variables.
// The password is resolved with the *_FILE convention.
func ConnStringFromEnv() (string, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "plannerbench")
	dbname := getEnv("PGDATABASE", "plannerbench")
	sslmode := getEnv("PGSSLMODE", "disable")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode), nil
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, sslmode), nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// New creates a result store on the given connection string.
// An empty connection string is resolved from the environment.
func New(connStr string) (*storage.SQLStore, error) {
	if connStr == "" {
		var err error
		connStr, err = ConnStringFromEnv()
		if err != nil {
			return nil, err
		}
	}
	open := func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("postgres", connStr)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return storage.NewSQLStore(open, Dialect), nil
}
