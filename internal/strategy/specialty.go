package strategy

import (
	"github.com/salesklug/leadflow/internal/types"
)

// highValueThreshold is the lead value above which the "high-value"
// specialty tag is required
const highValueThreshold = 1_000_000

// Specialty restricts candidates to those whose specialties intersect the
// lead's required tags, then picks the best performer among them. When no
// candidate carries a matching specialty it falls back to least load over
// the full set.
type Specialty struct{}

// RequiredTags derives the specialty tags a lead asks for from its
// property type and value tier
func RequiredTags(lead types.Lead) []string {
	var tags []string
	if lead.PropertyType != "" {
		tags = append(tags, lead.PropertyType)
	}
	if lead.Value >= highValueThreshold {
		tags = append(tags, "high-value")
	}
	return tags
}

// Choose returns the best performing specialist, or the least loaded
// candidate when no specialist matches
func (Specialty) Choose(lead types.Lead, candidates []types.Agent) types.Agent {
	tags := RequiredTags(lead)
	if len(tags) == 0 {
		return LeastLoad{}.Choose(lead, candidates)
	}

	specialists := make([]types.Agent, 0, len(candidates))
	for _, agent := range candidates {
		if intersects(agent.Specialties, tags) {
			specialists = append(specialists, agent)
		}
	}

	if len(specialists) == 0 {
		return LeastLoad{}.Choose(lead, candidates)
	}
	return BestPerformance{}.Choose(lead, specialists)
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
