package strategy

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/salesklug/leadflow/internal/types"
)

// Strategy selects one agent from a set of eligible candidates. Callers
// guarantee candidates is non-empty.
type Strategy interface {
	Choose(lead types.Lead, candidates []types.Agent) types.Agent
}

// builders maps strategy names to constructors. Adding a strategy means
// adding an entry here; the dispatcher never switches on names.
var builders = map[types.StrategyName]func(cursor *atomic.Uint64) Strategy{
	types.StrategyRoundRobin:      func(c *atomic.Uint64) Strategy { return &RoundRobin{Cursor: c} },
	types.StrategyLeastLoad:       func(*atomic.Uint64) Strategy { return LeastLoad{} },
	types.StrategyBestPerformance: func(*atomic.Uint64) Strategy { return BestPerformance{} },
	types.StrategyProximity:       func(*atomic.Uint64) Strategy { return Proximity{} },
	types.StrategySpecialty:       func(*atomic.Uint64) Strategy { return Specialty{} },
}

// ForRule builds the strategy named by the rule. The cursor is the rule's
// shared round-robin counter; strategies that don't need it ignore it.
func ForRule(name types.StrategyName, cursor *atomic.Uint64) (Strategy, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return build(cursor), nil
}

// sortByID returns a copy of candidates ordered by agent id ascending,
// the deterministic order every strategy ranks within
func sortByID(candidates []types.Agent) []types.Agent {
	sorted := make([]types.Agent, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
