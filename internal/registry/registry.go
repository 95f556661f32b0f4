package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

const (
	// StaleThreshold is the duration after which a connected agent is
	// considered stale (3 missed heartbeats)
	StaleThreshold = 6 * time.Second
)

var (
	ErrAgentNotFound = errors.New("registry: agent not found")
	ErrAtCapacity    = errors.New("registry: agent at capacity")
	ErrNoActiveLeads = errors.New("registry: agent has no active leads")
)

// AgentRepository is the agent access surface the engine depends on
type AgentRepository interface {
	Get(id string) (types.Agent, bool)
	List() []types.Agent
	AdjustLoad(id string, delta int) error
}

// Registry maintains the current snapshot of all known agents. It is the
// in-memory AgentRepository implementation; agent records are created and
// updated by external collaborators (roster sync, agent channel), while
// the engine itself only adjusts active lead counts.
type Registry struct {
	agents map[string]*types.Agent // agentID -> current snapshot
	mu     sync.RWMutex
}

// New creates an empty agent registry
func New() *Registry {
	return &Registry{
		agents: make(map[string]*types.Agent),
	}
}

// Upsert registers or replaces an agent snapshot. The engine-owned fields
// (active lead count, status start) survive the update.
func (r *Registry) Upsert(agent types.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, exists := r.agents[agent.ID]

	if exists {
		agent.ActiveLeadCount = existing.ActiveLeadCount
		agent.StatusSince = existing.StatusSince
		if existing.Status != agent.Status {
			agent.StatusSince = now
		}
		if agent.Connection == "" {
			agent.Connection = existing.Connection
		}
	} else {
		agent.StatusSince = now
		if agent.Connection == "" {
			agent.Connection = types.ConnectionDisconnected
		}
	}

	agent.LastActivityAt = now
	agent.LastHeartbeat = now
	r.agents[agent.ID] = &agent
}

// UpdateStatus changes an agent's availability status
func (r *Registry) UpdateStatus(agentID string, status types.AgentStatus, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return
	}

	if agent.Status != status {
		agent.Status = status
		agent.StatusSince = at
	}
	agent.LastActivityAt = at
	agent.LastHeartbeat = time.Now()
	agent.Connection = types.ConnectionConnected
}

// UpdateFromHeartbeat refreshes an agent from a channel heartbeat. Unknown
// agents are ignored; they must register first.
func (r *Registry) UpdateFromHeartbeat(hb *types.AgentHeartbeat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[hb.AgentID]
	if !exists {
		return
	}

	if agent.Status != hb.Status {
		agent.Status = hb.Status
		agent.StatusSince = time.Now()
	}
	agent.LastHeartbeat = time.Now()
	agent.LastActivityAt = time.Now()
	agent.Connection = types.ConnectionConnected
}

// SetConnected updates the connection status of an agent
func (r *Registry) SetConnected(agentID string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return
	}

	if connected {
		agent.Connection = types.ConnectionConnected
	} else {
		agent.Connection = types.ConnectionDisconnected
	}
	agent.LastHeartbeat = time.Now()
}

// AdjustLoad changes an agent's active lead count by delta, holding the
// 0 <= activeLeadCount <= capacity invariant. Increments happen on
// dispatch, decrements on reject/expire/cancel; both paths run
// concurrently, so the check and the mutation stay under one lock.
func (r *Registry) AdjustLoad(agentID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return ErrAgentNotFound
	}

	next := agent.ActiveLeadCount + delta
	if next < 0 {
		return ErrNoActiveLeads
	}
	if next > agent.Capacity {
		return ErrAtCapacity
	}

	agent.ActiveLeadCount = next
	agent.LastActivityAt = time.Now()
	return nil
}

// Get returns a copy of the agent snapshot
func (r *Registry) Get(agentID string) (types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return types.Agent{}, false
	}
	return *agent, true
}

// List returns copies of all agent snapshots
func (r *Registry) List() []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, *agent)
	}
	return agents
}

// ListConnected returns only agents with a live channel connection
func (r *Registry) ListConnected() []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		if agent.Connection == types.ConnectionConnected {
			agents = append(agents, *agent)
		}
	}
	return agents
}

// CheckStaleAgents marks agents as stale if no heartbeat arrived within
// the threshold
func (r *Registry) CheckStaleAgents() {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := time.Now().Add(-StaleThreshold)
	for _, agent := range r.agents {
		if agent.Connection == types.ConnectionConnected &&
			agent.LastHeartbeat.Before(threshold) {
			agent.Connection = types.ConnectionStale
		}
	}
}

// RemoveDisconnected removes agents disconnected for longer than maxAge,
// unless they still carry active leads
func (r *Registry) RemoveDisconnected(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	removed := 0
	for id, agent := range r.agents {
		if agent.Connection == types.ConnectionDisconnected &&
			agent.LastHeartbeat.Before(threshold) &&
			agent.ActiveLeadCount == 0 {
			delete(r.agents, id)
			removed++
		}
	}
	return removed
}

// Clear removes all agents, returning how many were removed
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.agents)
	r.agents = make(map[string]*types.Agent)
	return count
}

// Count returns the total number of tracked agents
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// ConnectionStats returns connection counters for observability
func (r *Registry) ConnectionStats() (connected, stale, disconnected int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, agent := range r.agents {
		switch agent.Connection {
		case types.ConnectionConnected:
			connected++
		case types.ConnectionStale:
			stale++
		case types.ConnectionDisconnected:
			disconnected++
		}
	}
	return
}
