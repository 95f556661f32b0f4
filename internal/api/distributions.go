package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/dispatcher"
	"github.com/salesklug/leadflow/internal/ledger"
)

// DistributionsHandler handles distribution lookups and agent responses
// arriving over HTTP instead of the agent channel
type DistributionsHandler struct {
	dispatcher *dispatcher.Dispatcher
	ledger     *ledger.Ledger
	events     *ledger.EventLog
	logger     zerolog.Logger
}

// NewDistributionsHandler creates a new DistributionsHandler
func NewDistributionsHandler(d *dispatcher.Dispatcher, led *ledger.Ledger, events *ledger.EventLog, logger zerolog.Logger) *DistributionsHandler {
	return &DistributionsHandler{
		dispatcher: d,
		ledger:     led,
		events:     events,
		logger:     logger.With().Str("component", "distributions_handler").Logger(),
	}
}

// Get handles GET /api/distributions/{id}
func (h *DistributionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	distID := chi.URLParam(r, "id")

	dist, err := h.ledger.Get(distID)
	if err != nil {
		writeError(w, http.StatusNotFound, "distribution not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dist)
}

type responseRequest struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason,omitempty"`
}

// Accept handles POST /api/distributions/{id}/accept
func (h *DistributionsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Reject handles POST /api/distributions/{id}/reject
func (h *DistributionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *DistributionsHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	distID := chi.URLParam(r, "id")

	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	var dist interface{}
	var err error
	if accept {
		dist, err = h.dispatcher.Accept(distID, req.AgentID)
	} else {
		dist, err = h.dispatcher.Reject(distID, req.AgentID, req.Reason)
	}
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			writeError(w, http.StatusNotFound, "distribution not found")
		case errors.Is(err, ledger.ErrWrongAgent):
			writeError(w, http.StatusConflict, "distribution belongs to another agent")
		case errors.Is(err, ledger.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, "distribution already resolved")
		default:
			h.logger.Error().Err(err).Str("distribution_id", distID).Msg("response handling failed")
			writeError(w, http.StatusInternalServerError, "response handling failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dist)
}

// Stats handles GET /api/stats
func (h *DistributionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.dispatcher.Stats())
}

// Events handles GET /api/events?limit=n
func (h *DistributionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.events.Recent(limit))
}
