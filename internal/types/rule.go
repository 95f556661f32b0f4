package types

import "time"

// StrategyName identifies a selection strategy family
type StrategyName string

const (
	StrategyRoundRobin      StrategyName = "roundRobin"
	StrategyLeastLoad       StrategyName = "leastLoad"
	StrategyBestPerformance StrategyName = "bestPerformance"
	StrategyProximity       StrategyName = "proximity"
	StrategySpecialty       StrategyName = "specialty"
)

// TimeWindow is a daily "HH:MM"-"HH:MM" window
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Covers reports whether t's wall-clock time falls inside the window.
// A Start after End wraps past midnight.
func (w TimeWindow) Covers(t time.Time) bool {
	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil {
		return true
	}

	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	return minutes >= startMin || minutes < endMin
}

// RuleCriteria narrows which leads a rule applies to. Absent fields are
// wildcards: an empty origin list matches any origin, a nil value bound
// matches any value, and so on.
type RuleCriteria struct {
	Origins       []string       `json:"origins,omitempty"`
	MinValue      *float64       `json:"minValue,omitempty"`
	MaxValue      *float64       `json:"maxValue,omitempty"`
	PropertyTypes []string       `json:"propertyTypes,omitempty"`
	TimeWindow    *TimeWindow    `json:"timeWindow,omitempty"`
	Weekdays      []time.Weekday `json:"weekdays,omitempty"`
}

// DistributionRule is a named policy selecting which strategy applies to
// which leads
type DistributionRule struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	Active                 bool         `json:"active"`
	Priority               int          `json:"priority"` // lower = evaluated first
	Criteria               RuleCriteria `json:"criteria"`
	Strategy               StrategyName `json:"strategy"`
	SpecificAgentIDs       []string     `json:"specificAgentIds,omitempty"`
	MaxAttempts            int          `json:"maxAttempts"`
	ResponseTimeoutMinutes int          `json:"responseTimeoutMinutes"`
	RedistributeOnTimeout  bool         `json:"redistributeOnTimeout"`
	EscalateToManager      bool         `json:"escalateToManager"`
}

// ResponseTimeout returns the rule's response deadline as a duration
func (r DistributionRule) ResponseTimeout() time.Duration {
	return time.Duration(r.ResponseTimeoutMinutes) * time.Minute
}

// AllowsAgent reports whether the rule restricts assignment to specific
// agents and, if so, whether agentID is among them
func (r DistributionRule) AllowsAgent(agentID string) bool {
	if len(r.SpecificAgentIDs) == 0 {
		return true
	}
	for _, id := range r.SpecificAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}
