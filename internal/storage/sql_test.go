package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/plannerbench/internal/model"
)

var numbered = Dialect{Name: "postgres", Numbered: true, Schema: "CREATE TABLE IF NOT EXISTS planner_results (x INT)"}

// mockStore returns a store whose every call is served by the same sqlmock handle.
func mockStore(t *testing.T, dialect Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewSQLStore(func(ctx context.Context) (*sql.DB, error) { return db, nil }, dialect)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestRebind(t *testing.T) {
	s := NewSQLStore(nil, numbered)
	assert.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))

	plain := NewSQLStore(nil, Dialect{Name: "sqlite"})
	assert.Equal(t, "a = ?", plain.rebind("a = ?"))
}

func TestSQLStoreSave(t *testing.T) {
	s, mock := mockStore(t, numbered)
	solve := model.SolveConfig{Jobs: 2, MemoryLimitBytes: 1024, TimeoutSeconds: 5}
	r := model.PlannerResult{
		PlannerName:     "lama",
		ProblemName:     "blocks:01",
		Domain:          "blocks",
		RunningMode:     model.ModeOneshot,
		Status:          model.StatusSolved,
		ComputationTime: model.Float(1.5),
		PlanQuality:     model.Float(4),
		Plan:            "p",
	}

	mock.ExpectExec(`INSERT INTO planner_results .* VALUES \(\$1, \$2, .*\$13\)\s+ON CONFLICT`).
		WithArgs("lama", "blocks:01", "oneshot", 2, int64(1024), 5.0,
			"blocks", "SOLVED", 1.5, 4.0, nil, "p", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	require.NoError(t, s.Save(context.Background(), r, solve))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoadHit(t *testing.T) {
	s, mock := mockStore(t, numbered)
	solve := model.SolveConfig{Jobs: 1, TimeoutSeconds: 5}

	rows := sqlmock.NewRows([]string{"domain", "status", "computation_time", "plan_quality", "error_message", "plan"}).
		AddRow("blocks", "TIMEOUT", 5.0, nil, nil, nil)
	mock.ExpectQuery(`SELECT domain, status .* FROM planner_results\s+WHERE planner_name = \$1`).
		WithArgs("lama", "blocks:01", "oneshot", 1, int64(0), 5.0).
		WillReturnRows(rows)
	mock.ExpectClose()

	got, err := s.Load(context.Background(), "lama", "blocks:01", model.ModeOneshot, solve)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusTimeout, got.Status)
	assert.Equal(t, "blocks", got.Domain)
	assert.True(t, got.FromDatabase)
	require.NotNil(t, got.ComputationTime)
	assert.Equal(t, 5.0, *got.ComputationTime)
	assert.Nil(t, got.PlanQuality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoadMiss(t *testing.T) {
	s, mock := mockStore(t, numbered)
	mock.ExpectQuery(`SELECT domain`).
		WillReturnRows(sqlmock.NewRows([]string{"domain", "status", "computation_time", "plan_quality", "error_message", "plan"}))
	mock.ExpectClose()

	got, err := s.Load(context.Background(), "lama", "blocks:01", model.ModeAnytime, model.SolveConfig{TimeoutSeconds: 5})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreErrorsAreStoreIO(t *testing.T) {
	s, mock := mockStore(t, numbered)
	mock.ExpectExec(`INSERT INTO planner_results`).WillReturnError(errors.New("connection reset"))
	mock.ExpectClose()

	err := s.Save(context.Background(), model.PlannerResult{PlannerName: "lama", Status: model.StatusError}, model.SolveConfig{TimeoutSeconds: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreIO)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSQLStoreOpenFailure(t *testing.T) {
	s := NewSQLStore(func(ctx context.Context) (*sql.DB, error) {
		return nil, errors.New("no route to host")
	}, numbered)
	err := s.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, ErrStoreIO)
}

func TestSQLStoreUnknownStatus(t *testing.T) {
	s, mock := mockStore(t, numbered)
	mock.ExpectQuery(`SELECT domain`).
		WillReturnRows(sqlmock.NewRows([]string{"domain", "status", "computation_time", "plan_quality", "error_message", "plan"}).
			AddRow("blocks", "EXPLODED", nil, nil, nil, nil))
	mock.ExpectClose()

	_, err := s.Load(context.Background(), "lama", "blocks:01", model.ModeOneshot, model.SolveConfig{TimeoutSeconds: 5})
	assert.ErrorIs(t, err, ErrStoreIO)
}

func TestSQLStoreEnsureSchema(t *testing.T) {
	s, mock := mockStore(t, numbered)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS planner_results`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
