package types

import "time"

// DistributionStatus represents the lifecycle state of a dispatch attempt
type DistributionStatus string

const (
	DistributionPending       DistributionStatus = "pending"
	DistributionSent          DistributionStatus = "sent"
	DistributionAccepted      DistributionStatus = "accepted"
	DistributionRejected      DistributionStatus = "rejected"
	DistributionExpired       DistributionStatus = "expired"
	DistributionRedistributed DistributionStatus = "redistributed"
)

// Terminal reports whether the status ends the attempt's state machine
func (s DistributionStatus) Terminal() bool {
	switch s {
	case DistributionAccepted, DistributionRejected, DistributionExpired, DistributionRedistributed:
		return true
	}
	return false
}

// DistributionEvent is one append-only history entry on a distribution
type DistributionEvent struct {
	AgentID   string             `json:"agentId"`
	Status    DistributionStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Note      string             `json:"note,omitempty"`
}

// Distribution represents one attempt to assign a specific lead to a
// specific agent
type Distribution struct {
	ID              string              `json:"id"`
	LeadID          string              `json:"leadId"`
	AgentID         string              `json:"agentId"`
	RuleID          string              `json:"ruleId"`
	Attempt         int                 `json:"attempt"` // 1-based
	Status          DistributionStatus  `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	RespondedAt     *time.Time          `json:"respondedAt,omitempty"`
	ResponseMinutes float64             `json:"responseMinutes,omitempty"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
	History         []DistributionEvent `json:"history"`
}
