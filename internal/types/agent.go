package types

import (
	"time"
)

// AgentStatus represents the availability state of an agent
type AgentStatus string

const (
	StatusOnline  AgentStatus = "online"
	StatusBusy    AgentStatus = "busy"
	StatusAway    AgentStatus = "away"
	StatusOffline AgentStatus = "offline"
)

// ConnectionStatus represents the health of an agent's channel connection
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionStale        ConnectionStatus = "stale"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WorkingHours defines when an agent can receive leads.
// Start and End are "HH:MM" wall-clock times; an empty window means always.
// A Start after End wraps past midnight.
type WorkingHours struct {
	Start    string         `json:"start,omitempty"`
	End      string         `json:"end,omitempty"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// Covers reports whether t falls inside the working hours window
func (w WorkingHours) Covers(t time.Time) bool {
	if len(w.Weekdays) > 0 {
		found := false
		for _, day := range w.Weekdays {
			if t.Weekday() == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if w.Start == "" || w.End == "" {
		return true
	}

	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil {
		// Malformed window, treat as always open rather than blocking the agent
		return true
	}

	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	// Window wraps past midnight (e.g. 22:00-06:00)
	return minutes >= startMin || minutes < endMin
}

// Performance holds an agent's historical performance indicators
type Performance struct {
	ConversionRate     float64 `json:"conversionRate"`     // 0-100%
	AvgResponseMinutes float64 `json:"avgResponseMinutes"` // minutes
	SatisfactionScore  float64 `json:"satisfactionScore"`  // 1-5
}

// ValueRange bounds the lead values an agent accepts. A nil range means
// no restriction; a nil Max means unbounded above, so an explicit zero
// Max still acts as a bound.
type ValueRange struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max,omitempty"`
}

// Accepts reports whether value falls inside the range
func (v *ValueRange) Accepts(value float64) bool {
	if v == nil {
		return true
	}
	if value < v.Min {
		return false
	}
	if v.Max != nil && value > *v.Max {
		return false
	}
	return true
}

// Agent represents a sales representative eligible to receive leads
type Agent struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	Status                 AgentStatus      `json:"status"`
	Capacity               int              `json:"capacity"`
	ActiveLeadCount        int              `json:"activeLeadCount"`
	Specialties            []string         `json:"specialties,omitempty"`
	WorkingHours           WorkingHours     `json:"workingHours"`
	Performance            Performance      `json:"performance"`
	ValueRange             *ValueRange      `json:"valueRange,omitempty"`
	PreferredPropertyTypes []string         `json:"preferredPropertyTypes,omitempty"`
	Location               *GeoPoint        `json:"location,omitempty"`
	LastActivityAt         time.Time        `json:"lastActivityAt"`
	Connection             ConnectionStatus `json:"connection,omitempty"`
	StatusSince            time.Time        `json:"statusSince,omitempty"`
	LastHeartbeat          time.Time        `json:"-"`
}

// HasCapacity reports whether the agent can take one more lead
func (a Agent) HasCapacity() bool {
	return a.ActiveLeadCount < a.Capacity
}

// AcceptsPropertyType reports whether the agent handles the given property
// type. An empty preference list accepts everything.
func (a Agent) AcceptsPropertyType(propertyType string) bool {
	if propertyType == "" || len(a.PreferredPropertyTypes) == 0 {
		return true
	}
	for _, pt := range a.PreferredPropertyTypes {
		if pt == propertyType {
			return true
		}
	}
	return false
}

// AgentEvent represents an agent status update from an external source
type AgentEvent struct {
	AgentID   string      `json:"agentId"`
	Status    AgentStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}
