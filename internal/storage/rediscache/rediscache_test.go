package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AaronLay10/plannerbench/internal/model"
)

func TestDecode(t *testing.T) {
	r, err := decode(map[string]string{
		"domain":           "blocks",
		"status":           "SOLVED",
		"plan":             "(move a b)",
		"computation_time": "1.25",
		"plan_quality":     "3",
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Status != model.StatusSolved || *r.ComputationTime != 1.25 || *r.PlanQuality != 3 {
		t.Errorf("unexpected result %+v", r)
	}
	if !r.FromDatabase {
		t.Error("decoded results must be marked from_database")
	}

	if _, err := decode(map[string]string{"status": "BOGUS"}); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := decode(map[string]string{"status": "TIMEOUT", "computation_time": "x"}); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestKeyIncludesTimeout(t *testing.T) {
	a := Key(model.NewFingerprint("lama", "blocks:01", model.ModeOneshot, model.SolveConfig{TimeoutSeconds: 5}))
	b := Key(model.NewFingerprint("lama", "blocks:01", model.ModeOneshot, model.SolveConfig{TimeoutSeconds: 10}))
	if a == b {
		t.Errorf("keys must differ by timeout: %s", a)
	}
}

// TestStore_Integration requires a running Redis.
// We skip if connection fails.
func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	store := New("localhost:6379", "", 0)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	problem := fmt.Sprintf("test:%d", time.Now().UnixNano())
	solve := model.SolveConfig{Jobs: 1, TimeoutSeconds: 5}
	t.Cleanup(func() {
		c := redis.NewClient(store.opts)
		defer c.Close()
		c.Del(ctx, Key(model.NewFingerprint("lama", problem, model.ModeOneshot, solve)))
	})

	if got, err := store.Load(ctx, "lama", problem, model.ModeOneshot, solve); err != nil || got != nil {
		t.Fatalf("expected miss, got %v, %v", got, err)
	}

	first := model.PlannerResult{
		PlannerName: "lama", ProblemName: problem, Domain: "test", RunningMode: model.ModeOneshot,
		Status: model.StatusSolved, ComputationTime: model.Float(1), PlanQuality: model.Float(2), Plan: "a",
	}
	if err := store.Save(ctx, first, solve); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := first
	second.Status = model.StatusMemout
	second.PlanQuality = nil
	second.Plan = ""
	if err := store.Save(ctx, second, solve); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "lama", problem, model.ModeOneshot, solve)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || !got.SameOutcome(second) {
		t.Errorf("expected last write to win, got %v", got)
	}
	if got.PlanQuality != nil {
		t.Errorf("stale plan_quality survived overwrite: %v", *got.PlanQuality)
	}
}
