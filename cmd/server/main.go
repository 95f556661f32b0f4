package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/salesklug/leadflow/internal/alerts"
	"github.com/salesklug/leadflow/internal/api"
	"github.com/salesklug/leadflow/internal/auth"
	"github.com/salesklug/leadflow/internal/config"
	"github.com/salesklug/leadflow/internal/dispatcher"
	"github.com/salesklug/leadflow/internal/event"
	"github.com/salesklug/leadflow/internal/ingestion"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/metrics"
	"github.com/salesklug/leadflow/internal/notify"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/rules"
	"github.com/salesklug/leadflow/internal/stats"
	"github.com/salesklug/leadflow/internal/storage"
	"github.com/salesklug/leadflow/internal/types"
	"github.com/salesklug/leadflow/internal/websocket"
	"github.com/salesklug/leadflow/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting leadflow engine")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core state
	agentRegistry := registry.New()
	distLedger := ledger.New()
	eventLog := ledger.NewEventLog()
	ruleStore := rules.NewStore(loadRules(cfg.RulesFile))

	// Persistence
	store := buildStore(ctx)

	// Dashboard WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Agent channel
	processor := ingestion.NewDefaultProcessor(agentRegistry, log.Logger)
	agentHub := websocket.NewAgentHub(agentRegistry, processor, log.Logger)
	go agentHub.Run()
	agentHandler := websocket.NewAgentHandler(agentHub, log.Logger)

	// Distribution engine
	notifier := notify.NewChannelNotifier(agentHub, log.Logger)
	escalation := notify.NewLogEscalation(log.Logger)
	disp := dispatcher.New(agentRegistry, ruleStore, distLedger, eventLog, notifier, notifier, escalation, store, log.Logger)
	processor.SetResponder(disp)

	// Background services
	broadcaster := stats.NewBroadcaster(disp, agentRegistry, hub, cfg.StatsInterval, log.Logger)
	go broadcaster.Start(ctx)

	watchdog := alerts.NewWatchdog(agentRegistry, distLedger, ruleStore, escalation, cfg.AlertInterval, log.Logger)
	go watchdog.Start(ctx)

	go staleSweep(ctx, agentRegistry)

	// HTTP handlers
	eventReceiver := event.NewReceiver(agentRegistry, log.Logger)
	leadsHandler := api.NewLeadsHandler(disp, log.Logger)
	distHandler := api.NewDistributionsHandler(disp, distLedger, eventLog, log.Logger)
	rosterHandler := api.NewRosterHandler(agentRegistry, log.Logger)
	historyHandler := api.NewAgentHistoryHandler(store, log.Logger)
	actionsHandler := api.NewAgentActionsHandler(agentHub, log.Logger)
	rulesHandler := api.NewRulesHandler(ruleStore, log.Logger)
	adminHandler := api.NewAdminHandler(agentRegistry, distLedger, store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for trusted internal producers)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/leads", leadsHandler.Intake)
		r.Post("/event", eventReceiver.HandleEvent)
		r.Get("/event/stats", eventReceiver.GetStats)
		r.Post("/agents/roster", rosterHandler.HandleRoster)
		r.Put("/rules", rulesHandler.Replace)
	})

	// Agent channel (agents authenticate at registration)
	r.Get("/ws/agent", agentHandler.ServeHTTP)
	r.Get("/ws/agents", agentHandler.ServeMultiplexedHTTP)

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/stats", distHandler.Stats)
			r.Get("/events", distHandler.Events)
			r.Get("/rules", rulesHandler.List)
			r.Get("/agents", rosterHandler.ListAgents)
			r.Get("/agents/{agentId}/history", historyHandler.GetHistory)
			r.Get("/agents/{agentId}/distributions", historyHandler.GetDistributions)
			r.Get("/distributions/{id}", distHandler.Get)
			r.Post("/distributions/{id}/accept", distHandler.Accept)
			r.Post("/distributions/{id}/reject", distHandler.Reject)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireManagerOrAdmin)
				r.Delete("/leads/{leadId}", leadsHandler.Cancel)
				r.Post("/agents/{agentId}/logout", actionsHandler.Logout)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Post("/reset", adminHandler.ResetMemory)
				r.Post("/wipe-dynamo", adminHandler.WipeDynamo)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services and pending deadlines
	cancel()
	disp.Stop()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildStore selects the persistence backend from the environment
func buildStore(ctx context.Context) storage.Store {
	dynamoCfg := storage.LoadDynamoConfig()
	if dynamoCfg.Mode == storage.DynamoModeNone {
		log.Info().Msg("DynamoDB disabled, using in-memory noop store")
		return storage.NewNoopStore()
	}

	store, err := storage.NewDynamoDBStore(ctx, dynamoCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize DynamoDB store")
	}
	return store
}

// loadRules seeds the rule store from a JSON file. An empty path or a
// missing file starts the engine with no rules; the rule set is then
// managed over the internal API.
func loadRules(path string) []types.DistributionRule {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("rules file not readable, starting with empty rule set")
		return nil
	}

	var ruleSet []types.DistributionRule
	if err := json.Unmarshal(data, &ruleSet); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("rules file is not valid JSON")
	}

	log.Info().Int("rules", len(ruleSet)).Str("path", path).Msg("rule set loaded")
	return ruleSet
}

// staleSweep periodically downgrades agents that stopped heartbeating and
// prunes long-disconnected ones
func staleSweep(ctx context.Context, reg *registry.Registry) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	cleanup := time.NewTicker(10 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.CheckStaleAgents()
		case <-cleanup.C:
			if removed := reg.RemoveDisconnected(time.Hour); removed > 0 {
				log.Info().Int("removed", removed).Msg("pruned disconnected agents")
			}
		}
	}
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"leadflow"}`)
}
