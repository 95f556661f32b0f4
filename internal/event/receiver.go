package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/metrics"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
)

// Receiver handles agent status events pushed over HTTP by systems that
// don't hold a WebSocket connection (CRM sync jobs, shift planners)
type Receiver struct {
	registry       *registry.Registry
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(reg *registry.Registry, logger zerolog.Logger) *Receiver {
	return &Receiver{
		registry: reg,
		logger:   logger,
	}
}

// HandleEvent receives an individual agent status event
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event types.AgentEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event")
		m.RecordIntakeError()
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if event.AgentID == "" {
		http.Error(w, "agentId required", http.StatusBadRequest)
		return
	}

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	r.registry.UpdateStatus(event.AgentID, event.Status, at)

	// Update stats
	atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	// Log periodically
	count := atomic.LoadInt64(&r.eventsReceived)
	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Msg("agent events received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":   lastReceived,
		"tracked_agents":  r.registry.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
