package dispatcher

import "errors"

var (
	// ErrNoRuleApplicable means no active rule's criteria matched the lead
	ErrNoRuleApplicable = errors.New("dispatcher: no distribution rule applies to lead")

	// ErrNoAgentAvailable means the matched rule produced an empty candidate
	// set after filtering
	ErrNoAgentAvailable = errors.New("dispatcher: no eligible agent available")

	// ErrNoActiveDistribution means the lead has no unresolved distribution
	// to act on
	ErrNoActiveDistribution = errors.New("dispatcher: lead has no active distribution")
)
