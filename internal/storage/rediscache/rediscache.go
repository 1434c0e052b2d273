// Package rediscache provides a networked result cache on Redis hashes.
package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/storage"
)

// KeyPrefix namespaces result hashes.
const KeyPrefix = "plannerbench:result:"

// Store keeps one hash per fingerprint.
type Store struct {
	opts *redis.Options
	now  func() time.Time
}

var _ storage.ResultStore = (*Store)(nil)

// New creates a Redis-backed store. A client is created and closed per call.
func New(addr, password string, db int) *Store {
	return &Store{
		opts: &redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the hash key for a fingerprint.
func Key(fp model.Fingerprint) string {
	return KeyPrefix + fp.Key()
}

func (s *Store) withClient(ctx context.Context, op string, fn func(c *redis.Client) error) error {
	c := redis.NewClient(s.opts)
	defer c.Close()
	if err := fn(c); err != nil {
		return &storage.StoreError{Op: op, Err: err}
	}
	return nil
}

// EnsureSchema checks connectivity; hashes need no schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.withClient(ctx, "ensure schema", func(c *redis.Client) error {
		return c.Ping(ctx).Err()
	})
}

// Save overwrites the fingerprint's hash.
func (s *Store) Save(ctx context.Context, r model.PlannerResult, solve model.SolveConfig) error {
	key := Key(model.NewFingerprint(r.PlannerName, r.ProblemName, r.RunningMode, solve))
	fields := map[string]interface{}{
		"domain":     r.Domain,
		"status":     string(r.Status),
		"error":      r.ErrorMessage,
		"plan":       r.Plan,
		"created_at": s.now().Format(time.RFC3339Nano),
	}
	if r.ComputationTime != nil {
		fields["computation_time"] = strconv.FormatFloat(*r.ComputationTime, 'g', -1, 64)
	}
	if r.PlanQuality != nil {
		fields["plan_quality"] = strconv.FormatFloat(*r.PlanQuality, 'g', -1, 64)
	}
	return s.withClient(ctx, "save", func(c *redis.Client) error {
		_, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.HSet(ctx, key, fields)
			return nil
		})
		return err
	})
}

// Load returns the cached result or nil on a miss.
func (s *Store) Load(ctx context.Context, planner, problem string, mode model.RunningMode, solve model.SolveConfig) (*model.PlannerResult, error) {
	key := Key(model.NewFingerprint(planner, problem, mode, solve))
	var out *model.PlannerResult
	err := s.withClient(ctx, "load", func(c *redis.Client) error {
		h, err := c.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return nil
		}
		r, err := decode(h)
		if err != nil {
			return fmt.Errorf("corrupt result %s: %w", key, err)
		}
		r.PlannerName = planner
		r.ProblemName = problem
		r.RunningMode = mode
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decode(h map[string]string) (*model.PlannerResult, error) {
	st, err := model.ParseStatus(h["status"])
	if err != nil {
		return nil, err
	}
	r := &model.PlannerResult{
		Domain:       h["domain"],
		Status:       st,
		ErrorMessage: h["error"],
		Plan:         h["plan"],
		FromDatabase: true,
	}
	if v, ok := h["computation_time"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		r.ComputationTime = model.Float(f)
	}
	if v, ok := h["plan_quality"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		r.PlanQuality = model.Float(f)
	}
	return r, nil
}
