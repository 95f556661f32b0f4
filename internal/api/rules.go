package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/rules"
	"github.com/salesklug/leadflow/internal/types"
)

// RulesHandler manages the distribution rule set
type RulesHandler struct {
	store  *rules.Store
	logger zerolog.Logger
}

// NewRulesHandler creates a new RulesHandler
func NewRulesHandler(store *rules.Store, logger zerolog.Logger) *RulesHandler {
	return &RulesHandler{
		store:  store,
		logger: logger.With().Str("component", "rules_handler").Logger(),
	}
}

// List handles GET /api/rules
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.store.List())
}

// Replace handles PUT /internal/rules: swap the full rule set. Round
// robin cursors of surviving rules keep their position.
func (h *RulesHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var ruleSet []types.DistributionRule
	if err := json.NewDecoder(r.Body).Decode(&ruleSet); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	seen := make(map[string]bool, len(ruleSet))
	for _, rule := range ruleSet {
		if rule.ID == "" {
			writeError(w, http.StatusBadRequest, "rule id is required")
			return
		}
		if seen[rule.ID] {
			writeError(w, http.StatusBadRequest, "duplicate rule id: "+rule.ID)
			return
		}
		seen[rule.ID] = true
		if rule.Strategy == "" {
			writeError(w, http.StatusBadRequest, "rule "+rule.ID+" has no strategy")
			return
		}
	}

	h.store.Replace(ruleSet)
	h.logger.Info().Int("rules", len(ruleSet)).Msg("rule set replaced")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"rules": len(ruleSet)})
}
