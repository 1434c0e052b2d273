package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/plannerbench/internal/events"
)

func TestMain(m *testing.M) {
	events.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "job.progress", "", map[string]interface{}{"completed": i})
	}

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dial(t, server, "")
	defer conn.Close()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "job.progress" {
			t.Errorf("expected 'job.progress', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dial(t, server, "")
	defer conn.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "job.completed", "", map[string]interface{}{"status": "SOLVED"})
	}()

	e := readEvent(t, conn)
	if e.Name != "job.completed" {
		t.Errorf("expected 'job.completed', got '%s'", e.Name)
	}
	if e.Fields["status"] != "SOLVED" {
		t.Errorf("expected status 'SOLVED', got '%v'", e.Fields["status"])
	}
}

func TestWebSocketPrefixFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", "store.ready", "", nil)
	events.Emit("info", "job.started", "", nil)

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dial(t, server, "?prefix=run.&prefix=job.")
	defer conn.Close()

	if e := readEvent(t, conn); e.Name != "job.started" {
		t.Errorf("backlog: expected 'job.started', got '%s'", e.Name)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "system.error", "", nil)
		events.Emit("info", "run.completed", "", nil)
	}()
	if e := readEvent(t, conn); e.Name != "run.completed" {
		t.Errorf("live: expected 'run.completed', got '%s'", e.Name)
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dial(t, server, "")

	go func() {
		time.Sleep(20 * time.Millisecond)
		events.Emit("info", "job.started", "", map[string]interface{}{"test": "cleanup"})
	}()
	if e := readEvent(t, conn); e.Name != "job.started" {
		t.Errorf("expected 'job.started', got '%s'", e.Name)
	}

	conn.Close()
	for i := 0; i < 5; i++ {
		events.Emit("info", "job.progress", "", nil)
		time.Sleep(50 * time.Millisecond)
	}

	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestWebSocketMultipleClients(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn1 := dial(t, server, "")
	defer conn1.Close()
	conn2 := dial(t, server, "")
	defer conn2.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "run.completed", "", map[string]interface{}{"run_id": "r1"})
	}()

	if e := readEvent(t, conn1); e.Name != "run.completed" {
		t.Errorf("client1: expected 'run.completed', got '%s'", e.Name)
	}
	if e := readEvent(t, conn2); e.Name != "run.completed" {
		t.Errorf("client2: expected 'run.completed', got '%s'", e.Name)
	}
}
