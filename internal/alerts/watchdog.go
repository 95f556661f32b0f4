package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/notify"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/rules"
)

// Watchdog periodically sweeps agents and the ledger for alert
// conditions. Warnings go to the log; critical findings also reach the
// escalation sink.
type Watchdog struct {
	registry   *registry.Registry
	ledger     *ledger.Ledger
	rules      *rules.Store
	escalation notify.EscalationSink
	interval   time.Duration
	logger     zerolog.Logger
}

// NewWatchdog creates a watchdog sweeping at the given interval
func NewWatchdog(reg *registry.Registry, led *ledger.Ledger, ruleStore *rules.Store, escalation notify.EscalationSink, interval time.Duration, logger zerolog.Logger) *Watchdog {
	return &Watchdog{
		registry:   reg,
		ledger:     led,
		rules:      ruleStore,
		escalation: escalation,
		interval:   interval,
		logger:     logger.With().Str("component", "watchdog").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("watchdog started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watchdog stopped")
			return

		case now := <-ticker.C:
			w.sweep(now)
		}
	}
}

func (w *Watchdog) sweep(now time.Time) {
	found := CheckAgentAlerts(w.registry.List(), now)
	found = append(found, CheckStuckDistributions(w.ledger.Snapshot(), w.timeoutFor, now)...)

	for _, alert := range found {
		event := w.logger.Warn().
			Str("rule", alert.Rule).
			Str("severity", string(alert.Severity))
		if alert.AgentID != "" {
			event = event.Str("agent_id", alert.AgentID)
		}
		if alert.DistributionID != "" {
			event = event.Str("distribution_id", alert.DistributionID)
		}
		event.Msg(alert.Message)

		if alert.Severity == SeverityCritical && w.escalation != nil {
			w.escalation.NotifyManager(alert.Rule, map[string]any{
				"agentId":        alert.AgentID,
				"distributionId": alert.DistributionID,
				"message":        alert.Message,
			})
		}
	}
}

func (w *Watchdog) timeoutFor(ruleID string) time.Duration {
	rule, ok := w.rules.Get(ruleID)
	if !ok || rule.ResponseTimeoutMinutes <= 0 {
		return 15 * time.Minute
	}
	return rule.ResponseTimeout()
}
