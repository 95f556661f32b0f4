package strategy

import (
	"github.com/salesklug/leadflow/internal/types"
)

// BestPerformance picks the candidate with the highest composite
// performance score, ties broken by agent id ascending
type BestPerformance struct{}

// Score weighs conversion rate (40%), responsiveness (30%, capped at
// 60 minutes) and customer satisfaction (30%, 1-5 scaled to 0-30)
func Score(agent types.Agent) float64 {
	response := agent.Performance.AvgResponseMinutes
	if response > 60 {
		response = 60
	}
	return 0.4*agent.Performance.ConversionRate +
		0.3*(60-response) +
		0.3*(agent.Performance.SatisfactionScore*6)
}

// Choose returns the highest scoring candidate
func (BestPerformance) Choose(_ types.Lead, candidates []types.Agent) types.Agent {
	sorted := sortByID(candidates)
	best := sorted[0]
	bestScore := Score(best)
	for _, agent := range sorted[1:] {
		if s := Score(agent); s > bestScore {
			best = agent
			bestScore = s
		}
	}
	return best
}
