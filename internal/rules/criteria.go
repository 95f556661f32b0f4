package rules

import (
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// criteriaMatch reports whether every populated criterion holds for the
// lead. Absent criteria are wildcards.
func criteriaMatch(c types.RuleCriteria, lead types.Lead, now time.Time) bool {
	if len(c.Origins) > 0 && !contains(c.Origins, lead.Origin) {
		return false
	}

	if c.MinValue != nil && lead.Value < *c.MinValue {
		return false
	}
	if c.MaxValue != nil && lead.Value > *c.MaxValue {
		return false
	}

	if len(c.PropertyTypes) > 0 && !contains(c.PropertyTypes, lead.PropertyType) {
		return false
	}

	if c.TimeWindow != nil && !c.TimeWindow.Covers(now) {
		return false
	}

	if len(c.Weekdays) > 0 {
		found := false
		for _, day := range c.Weekdays {
			if now.Weekday() == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
