package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/habitflow/habitflow-go/pkg/client"
	"github.com/habitflow/habitflow-go/pkg/clock"
	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

func newTestServer(t *testing.T, mutate ...func(*ServerConfig)) *Server {
	t.Helper()

	cfg := ServerConfig{
		Config:  DefaultConfig(),
		Version: "1.0.0-test",
		Clock:   clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	cfg.DBPath = ":memory:"
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %q", resp["status"])
	}
	if resp["version"] != "1.0.0-test" {
		t.Errorf("Expected version '1.0.0-test', got %q", resp["version"])
	}
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, http.MethodPost, "/api/v1/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHealthEndpointDefaultVersion(t *testing.T) {
	srv := newTestServer(t, func(c *ServerConfig) { c.Version = "" })

	w := serve(srv, http.MethodGet, "/api/v1/health", "")
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["version"] != "dev" {
		t.Errorf("Expected version 'dev', got %q", resp["version"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	srv := newTestServer(t)

	serve(srv, http.MethodPost, "/api/v1/timers", `{"name":"tea","duration":180}`)
	w := serve(srv, http.MethodPost, "/api/v1/timers", `{"name":"egg","duration":420}`)
	var def store.Definition
	json.Unmarshal(w.Body.Bytes(), &def)
	serve(srv, http.MethodPost, "/api/v1/timers/"+def.ID+"/commands", `{"action":"start"}`)

	w = serve(srv, http.MethodGet, "/api/v1/info", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["timer_count"] != 2 {
		t.Errorf("Expected timer_count 2, got %d", resp["timer_count"])
	}
	if resp["active_count"] != 1 {
		t.Errorf("Expected active_count 1, got %d", resp["active_count"])
	}
	if resp["connections"] != 0 {
		t.Errorf("Expected connections 0, got %d", resp["connections"])
	}
}

func TestPeersInvalidTimeout(t *testing.T) {
	srv := newTestServer(t)

	for _, v := range []string{"soon", "-1s", "0s"} {
		w := serve(srv, http.MethodGet, "/api/v1/peers?timeout="+v, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("timeout=%s: expected status 400, got %d", v, w.Code)
		}
	}
	if w := serve(srv, http.MethodDelete, "/api/v1/peers", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestWebSocketRoute(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.mux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api := client.NewAPI(ts.URL, ts.Client())
	def, err := api.CreateTimer(ctx, "tea", 5)
	if err != nil {
		t.Fatalf("CreateTimer failed: %v", err)
	}

	conn, err := client.Dial(ctx, ts.URL, def.ID)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	expect := func(want timer.Snapshot) {
		t.Helper()
		select {
		case got, ok := <-conn.Snapshots():
			if !ok {
				t.Fatalf("Connection closed: %v", conn.Err())
			}
			if got != want {
				t.Fatalf("Expected %+v, got %+v", want, got)
			}
		case <-ctx.Done():
			t.Fatalf("Timed out waiting for %+v", want)
		}
	}

	expect(timer.Snapshot{Remaining: "000005", Status: timer.StatusStopped})

	if err := conn.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	expect(timer.Snapshot{Remaining: "000005", Status: timer.StatusRolling})

	if _, err := api.Command(ctx, def.ID, timer.Request{Command: timer.CmdPause}); err != nil {
		t.Fatalf("Pause over REST failed: %v", err)
	}
	expect(timer.Snapshot{Remaining: "000005", Status: timer.StatusPaused})

	if w := serve(srv, http.MethodGet, "/api/v1/info", ""); w.Code == http.StatusOK {
		var resp map[string]int
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["connections"] != 1 {
			t.Errorf("Expected 1 connection, got %d", resp["connections"])
		}
	}

	resp, err := http.Get(ts.URL + "/timer/ws/ghost")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown timer, got %d", resp.StatusCode)
	}
}

func TestServerEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tlog")
	srv := newTestServer(t, func(c *ServerConfig) { c.EventLog = path })

	w := serve(srv, http.MethodPost, "/api/v1/timers", `{"name":"tea","duration":60}`)
	var def store.Definition
	json.Unmarshal(w.Body.Bytes(), &def)
	serve(srv, http.MethodPost, "/api/v1/timers/"+def.ID+"/commands", `{"action":"start"}`)
	serve(srv, http.MethodPost, "/api/v1/timers/"+def.ID+"/commands", `{"action":"resume"}`)
	serve(srv, http.MethodPost, "/api/v1/timers/"+def.ID+"/commands", `{"action":`)

	if err := srv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("Failed to open event log: %v", err)
	}
	defer r.Close()

	var commands, apiErrors int
	for {
		ev, err := r.Next()
		if err != nil {
			break
		}
		if ev.Category == log.CategoryCommand {
			commands++
		}
		if ev.Layer == log.LayerAPI && ev.Error != nil && ev.Error.Context == "decode command" {
			apiErrors++
		}
	}
	if commands != 2 {
		t.Errorf("Expected 2 command events, got %d", commands)
	}
	if apiErrors != 1 {
		t.Errorf("Expected 1 API decode error, got %d", apiErrors)
	}
}

func TestServerCloseIdempotent(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
