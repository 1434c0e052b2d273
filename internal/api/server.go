// Package api serves the status of a running benchmark over HTTP: health,
// recent events, progress, Prometheus metrics and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/AaronLay10/plannerbench/internal/events"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "plannerbench",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ReadyResponse struct {
	Ready         bool `json:"ready"`
	Store         bool `json:"store"`
	MQTTConnected bool `json:"mqtt_connected"`
}

// readyHandler reports 200 once the result store is reachable.
func readyHandler(w http.ResponseWriter, r *http.Request) {
	s := status.snapshot()
	resp := ReadyResponse{Ready: s.storeReady, Store: s.storeReady, MQTTConnected: s.mqttConnected}
	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

func progressHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Progress())
}

// NewHandler returns the status server's routes.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/events", eventsHandler)
	mux.HandleFunc("/progress", progressHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/ws", wsEventsHandler)
	return mux
}

// ListenAndServe serves the status API on port until ctx is done.
func ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events.CloseAllSubscribers()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("status API listening on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start starts the status API in a goroutine.
// Errors are logged but do not stop the caller.
func Start(ctx context.Context, port int) {
	go func() {
		if err := ListenAndServe(ctx, port); err != nil {
			log.Printf("status API error: %v", err)
		}
	}()
}
