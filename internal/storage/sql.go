package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AaronLay10/plannerbench/internal/model"
)

// Opener opens a fresh database handle. SQLStore closes it after every call.
type Opener func(ctx context.Context) (*sql.DB, error)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Schema creates the results table. It must be idempotent.
	Schema string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
}

// SQLStore is a ResultStore over database/sql.
type SQLStore struct {
	open    Opener
	dialect Dialect
	now     func() time.Time
}

var _ ResultStore = (*SQLStore)(nil)

// NewSQLStore creates a store that opens a connection per call.
func NewSQLStore(open Opener, dialect Dialect) *SQLStore {
	return &SQLStore{
		open:    open,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dialect returns the store's SQL dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

const upsertResult = `
	INSERT INTO planner_results (
		planner_name, problem_name, running_mode, jobs, memory_limit, timeout,
		domain, status, computation_time, plan_quality, error_message, plan, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (planner_name, problem_name, running_mode, jobs, memory_limit, timeout) DO UPDATE SET
		domain = excluded.domain,
		status = excluded.status,
		computation_time = excluded.computation_time,
		plan_quality = excluded.plan_quality,
		error_message = excluded.error_message,
		plan = excluded.plan,
		created_at = excluded.created_at
`

const selectResult = `
	SELECT domain, status, computation_time, plan_quality, error_message, plan
	FROM planner_results
	WHERE planner_name = ? AND problem_name = ? AND running_mode = ?
		AND jobs = ? AND memory_limit = ? AND timeout = ?
`

func (s *SQLStore) withDB(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	db, err := s.open(ctx)
	if err != nil {
		return ioError(op, fmt.Errorf("failed to open %s: %w", s.dialect.Name, err))
	}
	defer db.Close()
	if err := fn(db); err != nil {
		return ioError(op, err)
	}
	return nil
}

// EnsureSchema creates the results table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	return s.withDB(ctx, "ensure schema", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, s.dialect.Schema)
		return err
	})
}

// Save upserts the result keyed by its fingerprint.
func (s *SQLStore) Save(ctx context.Context, r model.PlannerResult, solve model.SolveConfig) error {
	fp := model.NewFingerprint(r.PlannerName, r.ProblemName, r.RunningMode, solve)
	return s.withDB(ctx, "save", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, s.rebind(upsertResult),
			fp.PlannerName, fp.ProblemName, string(fp.RunningMode), fp.Jobs, fp.MemoryLimitBytes, fp.TimeoutSeconds,
			r.Domain, string(r.Status), nullFloat(r.ComputationTime), nullFloat(r.PlanQuality),
			nullString(r.ErrorMessage), nullString(r.Plan), s.now(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert result: %w", err)
		}
		return nil
	})
}

// Load returns the cached result for the fingerprint, or nil on a miss.
func (s *SQLStore) Load(ctx context.Context, planner, problem string, mode model.RunningMode, solve model.SolveConfig) (*model.PlannerResult, error) {
	fp := model.NewFingerprint(planner, problem, mode, solve)
	var out *model.PlannerResult
	err := s.withDB(ctx, "load", func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, s.rebind(selectResult),
			fp.PlannerName, fp.ProblemName, string(fp.RunningMode), fp.Jobs, fp.MemoryLimitBytes, fp.TimeoutSeconds)

		var (
			domain, status  string
			compTime, qual  sql.NullFloat64
			errMsg, planTxt sql.NullString
		)
		err := row.Scan(&domain, &status, &compTime, &qual, &errMsg, &planTxt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query result: %w", err)
		}
		st, err := model.ParseStatus(status)
		if err != nil {
			return err
		}
		out = &model.PlannerResult{
			PlannerName:  planner,
			ProblemName:  problem,
			Domain:       domain,
			RunningMode:  mode,
			Status:       st,
			ErrorMessage: errMsg.String,
			Plan:         planTxt.String,
			FromDatabase: true,
		}
		if compTime.Valid {
			out.ComputationTime = model.Float(compTime.Float64)
		}
		if qual.Valid {
			out.PlanQuality = model.Float(qual.Float64)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rebind rewrites '?' placeholders for dialects with numbered parameters.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
