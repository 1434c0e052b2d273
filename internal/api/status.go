package api

import (
	"sync"
	"time"

	"github.com/AaronLay10/plannerbench/internal/model"
)

var status = &runStatus{}

// runStatus is the state of the current run as seen by the status API.
type runStatus struct {
	mu            sync.RWMutex
	startTime     time.Time
	runID         string
	planned       int
	completed     int
	cached        int
	byStatus      map[model.PlannerResultStatus]int
	storeReady    bool
	mqttConnected bool
}

type statusSnapshot struct {
	startTime     time.Time
	runID         string
	planned       int
	completed     int
	cached        int
	byStatus      map[model.PlannerResultStatus]int
	storeReady    bool
	mqttConnected bool
}

func (s *runStatus) snapshot() statusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.PlannerResultStatus]int, len(s.byStatus))
	for k, v := range s.byStatus {
		counts[k] = v
	}
	return statusSnapshot{
		startTime:     s.startTime,
		runID:         s.runID,
		planned:       s.planned,
		completed:     s.completed,
		cached:        s.cached,
		byStatus:      counts,
		storeReady:    s.storeReady,
		mqttConnected: s.mqttConnected,
	}
}

// Init resets the status state. Must be called at startup.
func Init() {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.startTime = time.Now()
	status.runID = ""
	status.planned = 0
	status.completed = 0
	status.cached = 0
	status.byStatus = make(map[model.PlannerResultStatus]int)
	status.storeReady = false
	status.mqttConnected = false
}

// SetRun records the run being served and its planned job count.
func SetRun(runID string, planned int) {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.runID = runID
	status.planned = planned
}

// RecordResult counts a terminal result. It fits Orchestrator.OnResult.
func RecordResult(r model.PlannerResult) {
	status.mu.Lock()
	defer status.mu.Unlock()
	if status.byStatus == nil {
		status.byStatus = make(map[model.PlannerResultStatus]int)
	}
	status.completed++
	status.byStatus[r.Status]++
	if r.FromDatabase {
		status.cached++
	}
}

// SetStoreReady marks whether the result store is reachable.
func SetStoreReady(ready bool) {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.storeReady = ready
}

// SetMQTTConnected marks whether the MQTT publisher is connected.
func SetMQTTConnected(connected bool) {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.mqttConnected = connected
}

// ProgressResponse is the body of /progress.
type ProgressResponse struct {
	RunID     string         `json:"run_id,omitempty"`
	Planned   int            `json:"planned"`
	Completed int            `json:"completed"`
	Cached    int            `json:"cached"`
	ByStatus  map[string]int `json:"by_status"`
}

// Progress returns the current run's progress.
func Progress() ProgressResponse {
	s := status.snapshot()
	resp := ProgressResponse{
		RunID:     s.runID,
		Planned:   s.planned,
		Completed: s.completed,
		Cached:    s.cached,
		ByStatus:  make(map[string]int, len(s.byStatus)),
	}
	for k, v := range s.byStatus {
		resp.ByStatus[string(k)] = v
	}
	return resp
}
