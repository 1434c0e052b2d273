package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	SetOutput(io.Discard)
	os.Exit(m.Run())
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Publish(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	if _, err := Emit("info", "node.started", "", nil); err == nil {
		t.Fatal("expected error for unknown event name")
	}
}

func TestEmitWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	b, err := Emit("info", "job.completed", "done", map[string]interface{}{"status": "SOLVED"})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("expected newline-terminated output, got %q", buf.String())
	}
	if strings.TrimSpace(buf.String()) != string(b) {
		t.Errorf("output %q does not match returned bytes %q", buf.String(), b)
	}

	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if e.Name != "job.completed" || e.Level != "info" || e.Fields["status"] != "SOLVED" {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestEmitForwardsToSink(t *testing.T) {
	s := &recordingSink{}
	SetSink(s)
	defer SetSink(nil)

	Emit("info", "run.started", "", nil)
	Emit("info", "run.completed", "", nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 2 || s.events[1].Name != "run.completed" {
		t.Errorf("unexpected sink events: %+v", s.events)
	}
}

func TestSinkErrorLoggedOnce(t *testing.T) {
	Clear()
	SetSink(&recordingSink{err: errors.New("broker down")})
	defer SetSink(nil)

	for i := 0; i < 3; i++ {
		Emit("info", "job.progress", "", nil)
	}

	var errs int
	for _, e := range Snapshot() {
		if e.Name == "system.error" {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("expected exactly one system.error, got %d", errs)
	}
}

func TestTotalCountSurvivesEviction(t *testing.T) {
	Clear()
	for i := 0; i < 300; i++ {
		Emit("debug", "job.progress", "", nil)
	}
	if got := len(Snapshot()); got != 256 {
		t.Errorf("expected buffer capped at 256, got %d", got)
	}
	if TotalCount() != 300 {
		t.Errorf("expected total 300, got %d", TotalCount())
	}
}

func TestUnsubscribeAfterCloseAll(t *testing.T) {
	sub := Subscribe()
	CloseAllSubscribers()
	Unsubscribe(sub)
}
