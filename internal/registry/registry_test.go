package registry

import (
	"testing"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

func TestUpsertPreservesEngineOwnedFields(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Name: "Alice", Status: types.StatusOnline, Capacity: 5})

	if err := r.AdjustLoad("a1", 2); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	// Roster sync replaces the snapshot but must not reset the live load
	r.Upsert(types.Agent{ID: "a1", Name: "Alice Updated", Status: types.StatusOnline, Capacity: 8})

	agent, ok := r.Get("a1")
	if !ok {
		t.Fatal("agent missing after upsert")
	}
	if agent.ActiveLeadCount != 2 {
		t.Errorf("expected active lead count preserved, got %d", agent.ActiveLeadCount)
	}
	if agent.Capacity != 8 || agent.Name != "Alice Updated" {
		t.Errorf("expected updated snapshot fields, got %+v", agent)
	}
}

func TestUpsertTracksStatusSince(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	first, _ := r.Get("a1")

	// Same status keeps the original StatusSince
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})
	same, _ := r.Get("a1")
	if !same.StatusSince.Equal(first.StatusSince) {
		t.Error("expected StatusSince to survive same-status upsert")
	}

	// Status change resets it
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusAway, Capacity: 5})
	changed, _ := r.Get("a1")
	if changed.StatusSince.Before(first.StatusSince) {
		t.Error("expected StatusSince refreshed on status change")
	}
}

func TestAdjustLoadInvariant(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 2})

	if err := r.AdjustLoad("a1", 1); err != nil {
		t.Fatalf("first increment failed: %v", err)
	}
	if err := r.AdjustLoad("a1", 1); err != nil {
		t.Fatalf("second increment failed: %v", err)
	}
	if err := r.AdjustLoad("a1", 1); err != ErrAtCapacity {
		t.Errorf("expected ErrAtCapacity, got %v", err)
	}

	if err := r.AdjustLoad("a1", -2); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if err := r.AdjustLoad("a1", -1); err != ErrNoActiveLeads {
		t.Errorf("expected ErrNoActiveLeads, got %v", err)
	}

	if err := r.AdjustLoad("missing", 1); err != ErrAgentNotFound {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	at := time.Now().Add(-time.Minute)
	r.UpdateStatus("a1", types.StatusBusy, at)

	agent, _ := r.Get("a1")
	if agent.Status != types.StatusBusy {
		t.Errorf("expected busy, got %s", agent.Status)
	}
	if !agent.StatusSince.Equal(at) {
		t.Errorf("expected StatusSince %v, got %v", at, agent.StatusSince)
	}

	// Unknown agents are ignored, not created
	r.UpdateStatus("ghost", types.StatusOnline, time.Now())
	if _, ok := r.Get("ghost"); ok {
		t.Error("expected unknown agent to stay unknown")
	}
}

func TestCheckStaleAgents(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5, Connection: types.ConnectionConnected})

	// Fresh heartbeat: stays connected
	r.CheckStaleAgents()
	agent, _ := r.Get("a1")
	if agent.Connection != types.ConnectionConnected {
		t.Errorf("expected connected, got %s", agent.Connection)
	}

	// Age the heartbeat past the threshold
	r.mu.Lock()
	r.agents["a1"].LastHeartbeat = time.Now().Add(-2 * StaleThreshold)
	r.mu.Unlock()

	r.CheckStaleAgents()
	agent, _ = r.Get("a1")
	if agent.Connection != types.ConnectionStale {
		t.Errorf("expected stale, got %s", agent.Connection)
	}
}

func TestRemoveDisconnectedKeepsLoadedAgents(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "idle", Status: types.StatusOffline, Capacity: 5})
	r.Upsert(types.Agent{ID: "loaded", Status: types.StatusOffline, Capacity: 5})
	r.AdjustLoad("loaded", 1)

	r.mu.Lock()
	for _, agent := range r.agents {
		agent.Connection = types.ConnectionDisconnected
		agent.LastHeartbeat = time.Now().Add(-2 * time.Hour)
	}
	r.mu.Unlock()

	removed := r.RemoveDisconnected(time.Hour)
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := r.Get("loaded"); !ok {
		t.Error("expected agent with active leads to survive pruning")
	}
	if _, ok := r.Get("idle"); ok {
		t.Error("expected idle disconnected agent to be pruned")
	}
}

func TestClearAndCount(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Capacity: 5})
	r.Upsert(types.Agent{ID: "a2", Capacity: 5})

	if r.Count() != 2 {
		t.Errorf("expected 2 agents, got %d", r.Count())
	}
	if cleared := r.Clear(); cleared != 2 {
		t.Errorf("expected 2 cleared, got %d", cleared)
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestConnectionStats(t *testing.T) {
	r := New()
	r.Upsert(types.Agent{ID: "a1", Capacity: 5, Connection: types.ConnectionConnected})
	r.Upsert(types.Agent{ID: "a2", Capacity: 5, Connection: types.ConnectionStale})
	r.Upsert(types.Agent{ID: "a3", Capacity: 5, Connection: types.ConnectionDisconnected})

	connected, stale, disconnected := r.ConnectionStats()
	if connected != 1 || stale != 1 || disconnected != 1 {
		t.Errorf("expected 1/1/1, got %d/%d/%d", connected, stale, disconnected)
	}

	listed := r.ListConnected()
	if len(listed) != 1 || listed[0].ID != "a1" {
		t.Errorf("expected only connected agent listed, got %+v", listed)
	}
}
