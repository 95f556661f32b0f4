package dispatcher

import (
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// Eligible returns the agents that may receive the lead under the given
// rule at time now. Every condition must hold: any status except
// offline, spare capacity, working hours covering now, lead value inside
// the agent's accepted range, property type preference, rule agent
// restriction, and absence from the exclusion set (the agent the lead
// was offered to in the preceding attempt). Busy and away agents stay in
// the pool; the capacity and working-hours checks cover real
// unavailability.
func Eligible(rule types.DistributionRule, lead types.Lead, agents []types.Agent, exclude map[string]struct{}, now time.Time) []types.Agent {
	eligible := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if _, excluded := exclude[agent.ID]; excluded {
			continue
		}
		if agent.Status == types.StatusOffline {
			continue
		}
		if !agent.HasCapacity() {
			continue
		}
		if !agent.WorkingHours.Covers(now) {
			continue
		}
		if !agent.ValueRange.Accepts(lead.Value) {
			continue
		}
		if !agent.AcceptsPropertyType(lead.PropertyType) {
			continue
		}
		if !rule.AllowsAgent(agent.ID) {
			continue
		}
		eligible = append(eligible, agent)
	}
	return eligible
}
