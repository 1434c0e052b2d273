package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscriber) Event {
	t.Helper()
	select {
	case e, ok := <-sub:
		if !ok {
			t.Fatal("subscriber closed")
		}
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for broadcast event")
	}
	return Event{}
}

func TestSubscriberCount(t *testing.T) {
	CloseAllSubscribers()

	subs := []Subscriber{Subscribe(), Subscribe(), Subscribe()}
	if n := SubscriberCount(); n != 3 {
		t.Fatalf("expected 3 subscribers, got %d", n)
	}
	for i, sub := range subs {
		Unsubscribe(sub)
		if n := SubscriberCount(); n != len(subs)-i-1 {
			t.Errorf("after %d unsubscribes: %d subscribers", i+1, n)
		}
	}
	if _, ok := <-subs[0]; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestSubscriberSeesJobLifecycleInOrder(t *testing.T) {
	sub := Subscribe()
	defer Unsubscribe(sub)

	job := map[string]interface{}{"planner": "lama", "problem": "blocks:p1", "mode": "anytime"}
	lifecycle := []string{"job.started", "job.solution", "job.solution", "job.completed"}
	for _, name := range lifecycle {
		if _, err := Emit("info", name, "", job); err != nil {
			t.Fatalf("Emit(%s): %v", name, err)
		}
	}

	for _, want := range lifecycle {
		e := receive(t, sub)
		if e.Name != want {
			t.Errorf("expected %s, got %s", want, e.Name)
		}
		if e.Fields["problem"] != "blocks:p1" {
			t.Errorf("%s lost its fields: %v", e.Name, e.Fields)
		}
	}
}

func TestEveryClientReceivesRunCompleted(t *testing.T) {
	sub1, sub2 := Subscribe(), Subscribe()
	defer Unsubscribe(sub1)
	defer Unsubscribe(sub2)

	Emit("info", "run.completed", "", map[string]interface{}{"run_id": "r1", "SOLVED": 4})

	for i, sub := range []Subscriber{sub1, sub2} {
		if e := receive(t, sub); e.Name != "run.completed" || e.Fields["SOLVED"] != 4 {
			t.Errorf("sub%d: unexpected event %+v", i+1, e)
		}
	}
}

func TestStalledSubscriberDoesNotBlockProgress(t *testing.T) {
	Clear()
	sub := Subscribe()
	defer Unsubscribe(sub)

	// A large matrix reports far more progress than a client buffers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 200; i++ {
			Emit("info", "job.progress", "", map[string]interface{}{"completed": i, "total": 200})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a stalled subscriber")
	}

	if n := len(sub); n != cap(sub) {
		t.Errorf("expected the subscriber buffer to be full (%d), got %d", cap(sub), n)
	}
	if first := receive(t, sub); first.Fields["completed"] != 1 {
		t.Errorf("expected the oldest progress first, got %v", first.Fields["completed"])
	}
	if TotalCount() != 200 {
		t.Errorf("expected 200 events counted, got %d", TotalCount())
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		filter Filter
		name   string
		want   bool
	}{
		{nil, "store.ready", true},
		{Filter{"job."}, "job.completed", true},
		{Filter{"job."}, "run.completed", false},
		{Filter{"run.", "job."}, "run.started", true},
		{Filter{"job.solution"}, "job.solution", true},
		{Filter{"job.solution"}, "job.started", false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(Event{Name: tt.name}); got != tt.want {
			t.Errorf("%v.Match(%s) = %v, want %v", tt.filter, tt.name, got, tt.want)
		}
	}
}

func TestFilterRecent(t *testing.T) {
	Clear()
	Emit("info", "store.ready", "", nil)
	Emit("info", "run.started", "", nil)
	for i := 1; i <= 3; i++ {
		Emit("info", "job.started", "", map[string]interface{}{"i": i})
		Emit("info", "job.completed", "", map[string]interface{}{"i": i})
	}
	Emit("info", "run.completed", "", nil)

	jobs := Filter{"job."}.Recent(2)
	if len(jobs) != 2 || jobs[0].Name != "job.started" || jobs[1].Name != "job.completed" || jobs[1].Fields["i"] != 3 {
		t.Errorf("unexpected recent job events %+v", jobs)
	}

	runs := Filter{"run."}.Recent(0)
	if len(runs) != 2 || runs[0].Name != "run.started" || runs[1].Name != "run.completed" {
		t.Errorf("unexpected run events %+v", runs)
	}

	if all := Filter(nil).Recent(0); len(all) != 9 {
		t.Errorf("expected 9 events, got %d", len(all))
	}
	if recent := RecentEvents(3); len(recent) != 3 || recent[0].Fields["i"] != 3 {
		t.Errorf("unexpected RecentEvents(3) %+v", recent)
	}
}

func TestCloseAllSubscribers(t *testing.T) {
	CloseAllSubscribers()
	subs := []Subscriber{Subscribe(), Subscribe(), Subscribe()}

	CloseAllSubscribers()

	for i, sub := range subs {
		if _, ok := <-sub; ok {
			t.Errorf("sub%d still open", i+1)
		}
	}
	if n := SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after CloseAllSubscribers, got %d", n)
	}
}
