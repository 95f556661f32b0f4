package ingestion

import (
	"context"

	"github.com/salesklug/leadflow/internal/types"
)

// EventProcessor processes agent channel events from any source
type EventProcessor interface {
	ProcessRegister(reg *types.AgentRegister)
	ProcessHeartbeat(hb *types.AgentHeartbeat)
	ProcessStatusChange(sc *types.AgentStatusChange)
	ProcessLeadResponse(lr *types.LeadResponse)
}

// EventSource represents a source of agent events (WebSocket hub, CRM
// adapter, etc.)
type EventSource interface {
	// Start begins receiving events and forwarding them to the processor
	Start(ctx context.Context, processor EventProcessor) error

	// SendToAgent sends a message to a specific agent by ID
	SendToAgent(agentID string, message []byte) bool

	// AgentCount returns the number of connected agents
	AgentCount() int
}

// Responder resolves lead offers from agent responses. Implemented by the
// dispatcher; declared here so the processor doesn't import it.
type Responder interface {
	Accept(distributionID, agentID string) (types.Distribution, error)
	Reject(distributionID, agentID, reason string) (types.Distribution, error)
}
