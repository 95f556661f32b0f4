package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/websocket"
)

// AgentActionsHandler provides REST endpoints for agent control actions
type AgentActionsHandler struct {
	agentHub *websocket.AgentHub
	logger   zerolog.Logger
}

// NewAgentActionsHandler creates a new AgentActionsHandler
func NewAgentActionsHandler(agentHub *websocket.AgentHub, logger zerolog.Logger) *AgentActionsHandler {
	return &AgentActionsHandler{
		agentHub: agentHub,
		logger:   logger.With().Str("component", "agent_actions").Logger(),
	}
}

// Logout handles POST /api/agents/{agentId}/logout
func (h *AgentActionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	// Force-disconnect the agent (hub handles cleanup)
	ok := h.agentHub.ForceDisconnect(agentID)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not connected")
		return
	}

	h.logger.Info().
		Str("agent_id", agentID).
		Msg("force-disconnected agent via API")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "agent logged out",
		"agentId": agentID,
	})
}
