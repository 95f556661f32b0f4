package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/auth"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/storage"
)

// AdminHandler handles operational resets and wipes
type AdminHandler struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	store    storage.Store
	logger   zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(reg *registry.Registry, led *ledger.Ledger, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		registry: reg,
		ledger:   led,
		store:    store,
		logger:   logger,
	}
}

// RequireAdmin middleware — only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireManagerOrAdmin middleware — manager or admin role allowed
func RequireManagerOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "manager") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"manager or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResetMemory clears in-memory state (agent registry + distribution ledger)
func (h *AdminHandler) ResetMemory(w http.ResponseWriter, r *http.Request) {
	agentsCleared := h.registry.Clear()
	distributionsCleared := h.ledger.Wipe()

	h.logger.Info().
		Int("agents", agentsCleared).
		Int("distributions", distributionsCleared).
		Msg("engine memory reset")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":              "engine memory reset",
		"agentsCleared":        agentsCleared,
		"distributionsCleared": distributionsCleared,
	})
}

// WipeDynamo truncates all DynamoDB tables
func (h *AdminHandler) WipeDynamo(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate DynamoDB tables")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("DynamoDB tables truncated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "DynamoDB tables truncated",
	})
}
