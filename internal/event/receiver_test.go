package event

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
)

func TestHandleEvent(t *testing.T) {
	reg := registry.New()
	reg.Upsert(types.Agent{ID: "a1", Status: types.StatusOffline, Capacity: 5})
	r := NewReceiver(reg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/internal/event",
		strings.NewReader(`{"agentId":"a1","status":"online"}`))
	rec := httptest.NewRecorder()
	r.HandleEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	agent, ok := reg.Get("a1")
	if !ok {
		t.Fatal("agent missing")
	}
	if agent.Status != types.StatusOnline {
		t.Errorf("expected online, got %s", agent.Status)
	}
}

func TestHandleEventValidation(t *testing.T) {
	r := NewReceiver(registry.New(), zerolog.Nop())

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, `{`, http.StatusBadRequest},
		{"missing agent id", http.MethodPost, `{"status":"online"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/internal/event", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.HandleEvent(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	reg := registry.New()
	reg.Upsert(types.Agent{ID: "a1", Capacity: 5})
	r := NewReceiver(reg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/internal/event",
		strings.NewReader(`{"agentId":"a1","status":"busy"}`))
	r.HandleEvent(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	r.GetStats(rec, httptest.NewRequest(http.MethodGet, "/internal/event/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if stats["events_received"].(float64) != 1 {
		t.Errorf("expected 1 event received, got %v", stats["events_received"])
	}
	if stats["tracked_agents"].(float64) != 1 {
		t.Errorf("expected 1 tracked agent, got %v", stats["tracked_agents"])
	}
}
