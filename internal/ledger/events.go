package ledger

import (
	"sync"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// maxLogEvents caps the in-memory event log
const maxLogEvents = 1000

// Event is one dashboard-facing distribution lifecycle event
type Event struct {
	DistributionID string                   `json:"distributionId"`
	LeadID         string                   `json:"leadId"`
	AgentID        string                   `json:"agentId"`
	Status         types.DistributionStatus `json:"status"`
	Attempt        int                      `json:"attempt"`
	Timestamp      time.Time                `json:"timestamp"`
	Note           string                   `json:"note,omitempty"`
}

// EventLog keeps the most recent distribution events in memory for
// dashboards and the stats broadcaster
type EventLog struct {
	events []Event
	mu     sync.RWMutex
}

// NewEventLog creates an empty event log
func NewEventLog() *EventLog {
	return &EventLog{
		events: make([]Event, 0, maxLogEvents),
	}
}

// Add appends an event, dropping the oldest entries past the cap
func (c *EventLog) Add(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
	if len(c.events) > maxLogEvents {
		c.events = c.events[len(c.events)-maxLogEvents:]
	}
}

// Recent returns up to n most recent events, newest last
func (c *EventLog) Recent(n int) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.events) {
		n = len(c.events)
	}
	out := make([]Event, n)
	copy(out, c.events[len(c.events)-n:])
	return out
}

// Size returns the current number of cached events
func (c *EventLog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}
