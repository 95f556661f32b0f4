package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/dispatcher"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/metrics"
	"github.com/salesklug/leadflow/internal/types"
)

// LeadsHandler handles lead intake and withdrawal
type LeadsHandler struct {
	dispatcher *dispatcher.Dispatcher
	logger     zerolog.Logger
}

// NewLeadsHandler creates a new LeadsHandler
func NewLeadsHandler(d *dispatcher.Dispatcher, logger zerolog.Logger) *LeadsHandler {
	return &LeadsHandler{
		dispatcher: d,
		logger:     logger.With().Str("component", "leads_handler").Logger(),
	}
}

// Intake handles POST /internal/leads
func (h *LeadsHandler) Intake(w http.ResponseWriter, r *http.Request) {
	m := metrics.Get()

	var lead types.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		m.RecordIntakeError()
		writeError(w, http.StatusBadRequest, "invalid lead payload")
		return
	}
	if lead.Origin == "" {
		m.RecordIntakeError()
		writeError(w, http.StatusBadRequest, "origin is required")
		return
	}
	if lead.Value < 0 {
		m.RecordIntakeError()
		writeError(w, http.StatusBadRequest, "value must not be negative")
		return
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}

	m.RecordLeadReceived()

	dist, err := h.dispatcher.Distribute(lead)
	if err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrNoRuleApplicable):
			writeError(w, http.StatusUnprocessableEntity, "no distribution rule applies to lead")
		case errors.Is(err, dispatcher.ErrNoAgentAvailable):
			writeError(w, http.StatusUnprocessableEntity, "no eligible agent available")
		case errors.Is(err, ledger.ErrLeadActive):
			writeError(w, http.StatusConflict, "lead already has an active distribution")
		default:
			h.logger.Error().Err(err).Str("lead_id", lead.ID).Msg("lead distribution failed")
			writeError(w, http.StatusInternalServerError, "distribution failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(dist)
}

// Cancel handles DELETE /api/leads/{leadId}
func (h *LeadsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadId")
	if leadID == "" {
		writeError(w, http.StatusBadRequest, "leadId is required")
		return
	}

	dist, err := h.dispatcher.Cancel(leadID)
	if err != nil {
		if errors.Is(err, dispatcher.ErrNoActiveDistribution) {
			writeError(w, http.StatusNotFound, "lead has no active distribution")
			return
		}
		h.logger.Error().Err(err).Str("lead_id", leadID).Msg("lead cancellation failed")
		writeError(w, http.StatusInternalServerError, "cancellation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dist)
}

// writeError writes a JSON error body with the given status
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
