package strategy

import (
	"github.com/salesklug/leadflow/internal/types"
)

// LeastLoad picks the candidate with the fewest active leads, ties broken
// by agent id ascending
type LeastLoad struct{}

// Choose returns the least loaded candidate
func (LeastLoad) Choose(_ types.Lead, candidates []types.Agent) types.Agent {
	sorted := sortByID(candidates)
	best := sorted[0]
	for _, agent := range sorted[1:] {
		if agent.ActiveLeadCount < best.ActiveLeadCount {
			best = agent
		}
	}
	return best
}
