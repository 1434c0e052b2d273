package api

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/AaronLay10/plannerbench/internal/events"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/version"
)

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s := status.snapshot()
	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	header := func(name, mtype, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
	}
	labels := fmt.Sprintf(`instance="%s",version="%s",run_id="%s"`, hostname, version.Version, s.runID)
	writeMetric := func(name, mtype, help string, value interface{}) {
		header(name, mtype, help)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	writeMetric("plannerbench_uptime_seconds", "gauge",
		"Number of seconds since the benchmark process started", uptime)

	writeMetric("plannerbench_jobs_planned", "gauge",
		"Number of jobs in the current run", s.planned)

	writeMetric("plannerbench_jobs_completed_total", "counter",
		"Number of jobs that produced a terminal result", s.completed)

	writeMetric("plannerbench_jobs_cached_total", "counter",
		"Number of terminal results served from the result cache", s.cached)

	// One series per status, zero included, so dashboards see every status.
	statuses := model.AllStatuses()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	header("plannerbench_jobs_total", "counter", "Terminal results by status")
	for _, st := range statuses {
		fmt.Fprintf(w, "plannerbench_jobs_total{%s,status=\"%s\"} %d\n", labels, st, s.byStatus[st])
	}

	writeMetric("plannerbench_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount())

	writeMetric("plannerbench_store_ready", "gauge",
		"Whether the result store is reachable (1) or not (0)", boolGauge(s.storeReady))

	writeMetric("plannerbench_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolGauge(s.mqttConnected))

	writeMetric("plannerbench_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount())
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
