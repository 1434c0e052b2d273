// Package storage provides the durable result cache.
//
// The cache maps a job fingerprint to its terminal outcome. Every call
// acquires and releases its own connection so nothing is held while a
// job computes; concurrent writers from separate worker processes are
// serialized by the storage engine and the last write wins.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/AaronLay10/plannerbench/internal/model"
)

// ErrStoreIO marks cache read/write failures. They are fatal to a run.
var ErrStoreIO = errors.New("result store I/O failure")

// StoreError wraps a backend failure with the operation that caused it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("result store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreIO.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreIO
}

func ioError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// ResultStore is the durable fingerprint -> outcome cache.
type ResultStore interface {
	// EnsureSchema creates the backing structures if absent. Idempotent.
	EnsureSchema(ctx context.Context) error
	// Save upserts the terminal result for its fingerprint.
	Save(ctx context.Context, result model.PlannerResult, solve model.SolveConfig) error
	// Load returns the cached result for an exact fingerprint match, or nil on a miss.
	Load(ctx context.Context, planner, problem string, mode model.RunningMode, solve model.SolveConfig) (*model.PlannerResult, error)
}
