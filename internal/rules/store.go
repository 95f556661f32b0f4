package rules

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// ErrNoRule is returned by Match when no active rule applies to a lead
var ErrNoRule = errors.New("rules: no active rule matches lead")

// RuleRepository is the rule access surface the engine depends on
type RuleRepository interface {
	ListActive() []types.DistributionRule
}

// Store holds the ordered set of distribution rules and the per-rule
// round-robin cursors. Rules are evaluated by ascending priority, ties
// broken by rule id, so matching is deterministic.
type Store struct {
	mu      sync.RWMutex
	rules   []types.DistributionRule
	cursors map[string]*atomic.Uint64
}

// NewStore creates a rule store seeded with the given rules
func NewStore(ruleSet []types.DistributionRule) *Store {
	s := &Store{
		cursors: make(map[string]*atomic.Uint64),
	}
	s.Replace(ruleSet)
	return s
}

// Replace swaps the full rule set. Cursors of surviving rules keep their
// position so round-robin fairness carries across reloads.
func (s *Store) Replace(ruleSet []types.DistributionRule) {
	sorted := make([]types.DistributionRule, len(ruleSet))
	copy(sorted, ruleSet)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = sorted

	keep := make(map[string]*atomic.Uint64, len(sorted))
	for _, rule := range sorted {
		if cursor, ok := s.cursors[rule.ID]; ok {
			keep[rule.ID] = cursor
		}
	}
	s.cursors = keep
}

// ListActive returns the active rules in evaluation order
func (s *Store) ListActive() []types.DistributionRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]types.DistributionRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return active
}

// List returns all rules, active or not, in evaluation order
func (s *Store) List() []types.DistributionRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.DistributionRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Get returns a rule by id
func (s *Store) Get(ruleID string) (types.DistributionRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if rule.ID == ruleID {
			return rule, true
		}
	}
	return types.DistributionRule{}, false
}

// Match returns the first active rule whose criteria all hold for the
// lead at the given wall-clock time, or ErrNoRule
func (s *Store) Match(lead types.Lead, now time.Time) (types.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if !rule.Active {
			continue
		}
		if criteriaMatch(rule.Criteria, lead, now) {
			return rule, nil
		}
	}
	return types.DistributionRule{}, ErrNoRule
}

// Cursor returns the round-robin counter for a rule, creating it on first
// use. The counter is shared across concurrent Distribute calls; callers
// advance it atomically.
func (s *Store) Cursor(ruleID string) *atomic.Uint64 {
	s.mu.RLock()
	cursor, ok := s.cursors[ruleID]
	s.mu.RUnlock()
	if ok {
		return cursor
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor, ok = s.cursors[ruleID]; ok {
		return cursor
	}
	cursor = new(atomic.Uint64)
	s.cursors[ruleID] = cursor
	return cursor
}
