package ingestion

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
)

// fakeResponder records lead responses routed through the processor
type fakeResponder struct {
	mu       sync.Mutex
	accepted []string
	rejected []string
}

func (f *fakeResponder) Accept(distID, agentID string) (types.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, distID)
	return types.Distribution{ID: distID, AgentID: agentID}, nil
}

func (f *fakeResponder) Reject(distID, agentID, reason string) (types.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, distID)
	return types.Distribution{ID: distID, AgentID: agentID}, nil
}

// failingResponder always errors, e.g. for already resolved distributions
type failingResponder struct{}

func (failingResponder) Accept(_, _ string) (types.Distribution, error) {
	return types.Distribution{}, errors.New("already resolved")
}

func (failingResponder) Reject(_, _, _ string) (types.Distribution, error) {
	return types.Distribution{}, errors.New("already resolved")
}

func TestProcessRegister(t *testing.T) {
	reg := registry.New()
	p := NewDefaultProcessor(reg, zerolog.Nop())

	p.ProcessRegister(&types.AgentRegister{
		Type:  "agent_register",
		Agent: types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5},
	})

	agent, ok := reg.Get("a1")
	if !ok {
		t.Fatal("agent not registered")
	}
	if agent.Connection != types.ConnectionConnected {
		t.Errorf("expected connected, got %s", agent.Connection)
	}
}

func TestProcessStatusChange(t *testing.T) {
	reg := registry.New()
	reg.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})
	p := NewDefaultProcessor(reg, zerolog.Nop())

	p.ProcessStatusChange(&types.AgentStatusChange{
		AgentID:   "a1",
		NewStatus: types.StatusAway,
		Timestamp: time.Now(),
	})

	agent, _ := reg.Get("a1")
	if agent.Status != types.StatusAway {
		t.Errorf("expected away, got %s", agent.Status)
	}
}

func TestProcessHeartbeat(t *testing.T) {
	reg := registry.New()
	reg.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})
	p := NewDefaultProcessor(reg, zerolog.Nop())

	p.ProcessHeartbeat(&types.AgentHeartbeat{AgentID: "a1", Status: types.StatusBusy})

	agent, _ := reg.Get("a1")
	if agent.Status != types.StatusBusy {
		t.Errorf("expected busy, got %s", agent.Status)
	}
	if agent.Connection != types.ConnectionConnected {
		t.Errorf("expected connected after heartbeat, got %s", agent.Connection)
	}
}

func TestProcessLeadResponse(t *testing.T) {
	p := NewDefaultProcessor(registry.New(), zerolog.Nop())
	responder := &fakeResponder{}
	p.SetResponder(responder)

	p.ProcessLeadResponse(&types.LeadResponse{DistributionID: "d1", AgentID: "a1", Accepted: true})
	p.ProcessLeadResponse(&types.LeadResponse{DistributionID: "d2", AgentID: "a1", Accepted: false, Reason: "busy"})

	if len(responder.accepted) != 1 || responder.accepted[0] != "d1" {
		t.Errorf("expected d1 accepted, got %v", responder.accepted)
	}
	if len(responder.rejected) != 1 || responder.rejected[0] != "d2" {
		t.Errorf("expected d2 rejected, got %v", responder.rejected)
	}
}

func TestProcessLeadResponseWithoutResponder(t *testing.T) {
	p := NewDefaultProcessor(registry.New(), zerolog.Nop())

	// Must not panic when no responder is wired yet
	p.ProcessLeadResponse(&types.LeadResponse{DistributionID: "d1", AgentID: "a1", Accepted: true})
}

func TestProcessLeadResponseSwallowsErrors(t *testing.T) {
	p := NewDefaultProcessor(registry.New(), zerolog.Nop())
	p.SetResponder(failingResponder{})

	// A late response on a resolved distribution is logged, not propagated
	p.ProcessLeadResponse(&types.LeadResponse{DistributionID: "d1", AgentID: "a1", Accepted: true})
}
