package strategy

import (
	"sync/atomic"

	"github.com/salesklug/leadflow/internal/types"
)

// RoundRobin cycles through candidates using a monotonically increasing
// counter shared per rule. The counter is mapped via modulo onto the
// id-ordered candidate set rather than indexing a remembered list, so a
// changing candidate set degrades to approximate fairness instead of
// skipping agents.
type RoundRobin struct {
	Cursor *atomic.Uint64
}

// Choose picks the next candidate in rotation
func (r *RoundRobin) Choose(_ types.Lead, candidates []types.Agent) types.Agent {
	sorted := sortByID(candidates)
	n := r.Cursor.Add(1) - 1
	return sorted[n%uint64(len(sorted))]
}
