package types

import "time"

// AgentStats is the per-agent slice of the distribution statistics
type AgentStats struct {
	AgentID            string  `json:"agentId"`
	Assigned           int     `json:"assigned"`
	Accepted           int     `json:"accepted"`
	Rejected           int     `json:"rejected"`
	Expired            int     `json:"expired"`
	AvgResponseMinutes float64 `json:"avgResponseMinutes"`
}

// DistributionStats aggregates engine-wide distribution outcomes
type DistributionStats struct {
	Sent               int                   `json:"sent"`
	Accepted           int                   `json:"accepted"`
	Rejected           int                   `json:"rejected"`
	Expired            int                   `json:"expired"`
	Redistributed      int                   `json:"redistributed"`
	Active             int                   `json:"active"`
	Escalations        int                   `json:"escalations"`
	AcceptanceRate     float64               `json:"acceptanceRate"` // 0-100%
	AvgResponseMinutes float64               `json:"avgResponseMinutes"`
	PerAgent           map[string]AgentStats `json:"perAgent"`
}

// StatsSnapshot is the dashboard broadcast envelope for distribution stats
type StatsSnapshot struct {
	Type            string            `json:"type"` // "distribution_stats"
	Timestamp       time.Time         `json:"timestamp"`
	Stats           DistributionStats `json:"stats"`
	ConnectedAgents int               `json:"connectedAgents"`
	OnlineAgents    int               `json:"onlineAgents"`
}
