package alerts

import (
	"fmt"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// Severity grades an alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// GracePeriod is how far past its response deadline a sent distribution
// may sit before it counts as stuck. Covers timer delivery jitter.
const GracePeriod = 1 * time.Minute

// Alert is one watchdog finding
type Alert struct {
	Rule           string   `json:"rule"`
	Severity       Severity `json:"severity"`
	AgentID        string   `json:"agentId,omitempty"`
	DistributionID string   `json:"distributionId,omitempty"`
	Message        string   `json:"message"`
}

// CheckAgentAlerts evaluates alert rules for a slice of agents
func CheckAgentAlerts(agents []types.Agent, now time.Time) []Alert {
	var alerts []Alert
	for _, agent := range agents {
		if !agent.HasCapacity() && agent.Capacity > 0 {
			dur := now.Sub(agent.LastActivityAt)
			if dur > 15*time.Minute {
				alerts = append(alerts, Alert{
					Rule:     "at_capacity_long",
					Severity: SeverityWarning,
					AgentID:  agent.ID,
					Message:  fmt.Sprintf("at capacity for %s", formatDuration(dur)),
				})
			}
		}

		if agent.Status == types.StatusAway && agent.ActiveLeadCount > 0 {
			dur := now.Sub(agent.StatusSince)
			if dur > 10*time.Minute {
				alerts = append(alerts, Alert{
					Rule:     "away_with_leads",
					Severity: SeverityCritical,
					AgentID:  agent.ID,
					Message:  fmt.Sprintf("away for %s holding %d active leads", formatDuration(dur), agent.ActiveLeadCount),
				})
			}
		}

		if agent.Connection == types.ConnectionStale && agent.ActiveLeadCount > 0 {
			alerts = append(alerts, Alert{
				Rule:     "stale_with_leads",
				Severity: SeverityWarning,
				AgentID:  agent.ID,
				Message:  fmt.Sprintf("connection stale holding %d active leads", agent.ActiveLeadCount),
			})
		}
	}
	return alerts
}

// CheckStuckDistributions flags sent distributions that outlived their
// response deadline plus grace. A hit means a timer was lost or delayed;
// the ledger still holds the truth, this only surfaces the anomaly.
func CheckStuckDistributions(dists []types.Distribution, timeoutFor func(ruleID string) time.Duration, now time.Time) []Alert {
	var alerts []Alert
	for _, d := range dists {
		if d.Status != types.DistributionSent {
			continue
		}

		deadline := d.CreatedAt.Add(timeoutFor(d.RuleID)).Add(GracePeriod)
		if now.After(deadline) {
			alerts = append(alerts, Alert{
				Rule:           "distribution_stuck",
				Severity:       SeverityCritical,
				AgentID:        d.AgentID,
				DistributionID: d.ID,
				Message:        fmt.Sprintf("sent %s ago without resolution", formatDuration(now.Sub(d.CreatedAt))),
			})
		}
	}
	return alerts
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
