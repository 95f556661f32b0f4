package dispatcher

import (
	"github.com/salesklug/leadflow/internal/types"
)

// Stats aggregates outcomes across every distribution the ledger has
// seen, engine-wide and per agent.
func (d *Dispatcher) Stats() types.DistributionStats {
	snapshot := d.ledger.Snapshot()

	stats := types.DistributionStats{
		Active:      d.ledger.ActiveCount(),
		Escalations: d.Escalations(),
		PerAgent:    make(map[string]types.AgentStats),
	}

	var responseSum float64
	var responseCount int
	perAgentResponse := make(map[string]float64)
	perAgentResponded := make(map[string]int)

	for _, dist := range snapshot {
		agent := stats.PerAgent[dist.AgentID]
		agent.AgentID = dist.AgentID
		agent.Assigned++

		switch dist.Status {
		case types.DistributionAccepted:
			stats.Accepted++
			agent.Accepted++
		case types.DistributionRejected:
			stats.Rejected++
			agent.Rejected++
		case types.DistributionExpired:
			stats.Expired++
			agent.Expired++
		case types.DistributionRedistributed:
			stats.Redistributed++
		}

		if dist.Status != types.DistributionPending {
			stats.Sent++
		}

		if dist.RespondedAt != nil {
			responseSum += dist.ResponseMinutes
			responseCount++
			perAgentResponse[dist.AgentID] += dist.ResponseMinutes
			perAgentResponded[dist.AgentID]++
		}

		stats.PerAgent[dist.AgentID] = agent
	}

	resolved := stats.Accepted + stats.Rejected + stats.Expired
	if resolved > 0 {
		stats.AcceptanceRate = float64(stats.Accepted) / float64(resolved) * 100
	}
	if responseCount > 0 {
		stats.AvgResponseMinutes = responseSum / float64(responseCount)
	}

	for agentID, agent := range stats.PerAgent {
		if n := perAgentResponded[agentID]; n > 0 {
			agent.AvgResponseMinutes = perAgentResponse[agentID] / float64(n)
			stats.PerAgent[agentID] = agent
		}
	}

	return stats
}
