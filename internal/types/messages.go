package types

import "time"

// AgentRegister is sent by an agent when it connects to the engine
type AgentRegister struct {
	Type  string `json:"type"` // "agent_register"
	Agent Agent  `json:"agent"`
}

// AgentHeartbeat is sent periodically by a connected agent
type AgentHeartbeat struct {
	Type      string      `json:"type"` // "heartbeat"
	AgentID   string      `json:"agentId"`
	Status    AgentStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// AgentStatusChange is sent by an agent when its availability changes
type AgentStatusChange struct {
	Type           string      `json:"type"` // "status_change"
	AgentID        string      `json:"agentId"`
	PreviousStatus AgentStatus `json:"previousStatus"`
	NewStatus      AgentStatus `json:"newStatus"`
	Timestamp      time.Time   `json:"timestamp"`
}

// LeadOffer is sent from the engine to an agent when a lead is assigned
type LeadOffer struct {
	Type           string            `json:"type"` // "lead_offer"
	DistributionID string            `json:"distributionId"`
	LeadID         string            `json:"leadId"`
	AgentID        string            `json:"agentId"`
	Attempt        int               `json:"attempt"`
	Payload        map[string]string `json:"payload,omitempty"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}

// LeadResponse is sent from an agent to the engine to accept or reject an
// offered lead
type LeadResponse struct {
	Type           string    `json:"type"` // "lead_response"
	DistributionID string    `json:"distributionId"`
	AgentID        string    `json:"agentId"`
	Accepted       bool      `json:"accepted"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// OfferCancelled is sent from the engine to an agent when a previously
// offered lead is withdrawn or has expired
type OfferCancelled struct {
	Type           string `json:"type"` // "offer_cancelled"
	DistributionID string `json:"distributionId"`
	AgentID        string `json:"agentId"`
	Reason         string `json:"reason"`
}

// ServerAck acknowledges an agent registration
type ServerAck struct {
	Type    string `json:"type"` // "ack"
	AgentID string `json:"agentId"`
}

// ForceDisconnect is sent from the engine to an agent to force logout
type ForceDisconnect struct {
	Type    string `json:"type"` // "force_disconnect"
	AgentID string `json:"agentId"`
}
