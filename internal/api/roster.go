package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
)

// RosterHandler handles roster sync from the CRM and roster reads
type RosterHandler struct {
	registry *registry.Registry
	logger   zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(reg *registry.Registry, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		registry: reg,
		logger:   logger.With().Str("component", "roster").Logger(),
	}
}

// HandleRoster handles POST /internal/agents/roster. The CRM pushes the
// full agent list; agents without a live connection default to offline.
func (h *RosterHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	var roster []types.Agent
	if err := json.NewDecoder(r.Body).Decode(&roster); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	registered := 0
	for _, agent := range roster {
		if agent.ID == "" {
			continue
		}
		if agent.Status == "" {
			agent.Status = types.StatusOffline
		}
		h.registry.Upsert(agent)
		registered++
	}

	h.logger.Info().Int("registered", registered).Msg("roster received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"registered": registered})
}

// ListAgents handles GET /api/agents
func (h *RosterHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.List())
}
