package dispatcher

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/metrics"
	"github.com/salesklug/leadflow/internal/notify"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/rules"
	"github.com/salesklug/leadflow/internal/storage"
	"github.com/salesklug/leadflow/internal/strategy"
	"github.com/salesklug/leadflow/internal/timeout"
	"github.com/salesklug/leadflow/internal/types"
)

const (
	// DefaultMaxAttempts applies when a rule leaves MaxAttempts unset
	DefaultMaxAttempts = 3

	// DefaultResponseTimeout applies when a rule leaves
	// ResponseTimeoutMinutes unset
	DefaultResponseTimeout = 15 * time.Minute
)

// Dispatcher drives the full distribution lifecycle: rule matching,
// candidate filtering, strategy selection, offer delivery, response
// deadlines, and redistribution after rejection or timeout.
type Dispatcher struct {
	registry   registry.AgentRepository
	rules      *rules.Store
	ledger     *ledger.Ledger
	events     *ledger.EventLog
	scheduler  *timeout.Scheduler
	notifier   notify.Notifier
	canceller  notify.OfferCanceller
	escalation notify.EscalationSink
	store      storage.Store
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu        sync.Mutex
	leads     map[string]types.Lead // leadID -> lead, kept while the chain may redistribute
	lastAgent map[string]string     // leadID -> agent of the current attempt, excluded for one cycle

	escalations atomic.Int64
}

// New wires a dispatcher. The timeout scheduler is created here because
// its fire callback closes over the dispatcher.
func New(
	reg registry.AgentRepository,
	ruleStore *rules.Store,
	led *ledger.Ledger,
	events *ledger.EventLog,
	notifier notify.Notifier,
	canceller notify.OfferCanceller,
	escalation notify.EscalationSink,
	store storage.Store,
	logger zerolog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		registry:   reg,
		rules:      ruleStore,
		ledger:     led,
		events:     events,
		notifier:   notifier,
		canceller:  canceller,
		escalation: escalation,
		store:      store,
		metrics:    metrics.Get(),
		logger:     logger.With().Str("component", "dispatcher").Logger(),
		leads:      make(map[string]types.Lead),
		lastAgent:  make(map[string]string),
	}
	d.scheduler = timeout.New(d.handleTimeout, logger)
	return d
}

// Distribute assigns an incoming lead to exactly one agent. It matches
// the lead against the rule set, filters candidates, lets the rule's
// strategy pick one, and starts the response deadline.
func (d *Dispatcher) Distribute(lead types.Lead) (types.Distribution, error) {
	rule, err := d.rules.Match(lead, time.Now())
	if err != nil {
		d.logger.Warn().
			Str("lead_id", lead.ID).
			Str("origin", lead.Origin).
			Msg("no rule applies to lead")
		d.metrics.RecordLeadUnmatched()
		return types.Distribution{}, ErrNoRuleApplicable
	}

	d.mu.Lock()
	d.leads[lead.ID] = lead
	delete(d.lastAgent, lead.ID)
	d.mu.Unlock()

	dist, err := d.dispatch(lead, rule, 1)
	if err != nil {
		d.forgetLead(lead.ID)
		if err == ErrNoAgentAvailable {
			d.metrics.RecordLeadUnmatched()
			if rule.EscalateToManager {
				d.escalate("no eligible agent for new lead", map[string]any{
					"leadId": lead.ID,
					"ruleId": rule.ID,
				})
			}
		}
		return types.Distribution{}, err
	}
	return dist, nil
}

// dispatch runs one attempt of the assignment pipeline for a lead under
// an already-matched rule.
func (d *Dispatcher) dispatch(lead types.Lead, rule types.DistributionRule, attempt int) (types.Distribution, error) {
	now := time.Now()
	candidates := Eligible(rule, lead, d.registry.List(), d.excludeFor(lead.ID), now)
	if len(candidates) == 0 {
		return types.Distribution{}, ErrNoAgentAvailable
	}

	strat, err := strategy.ForRule(rule.Strategy, d.rules.Cursor(rule.ID))
	if err != nil {
		return types.Distribution{}, err
	}
	agent := strat.Choose(lead, candidates)

	dist, err := d.ledger.Create(lead, agent.ID, rule.ID, attempt)
	if err != nil {
		return types.Distribution{}, err
	}

	// The candidate snapshot is taken outside the registry lock, so the
	// chosen agent may have filled up since. AdjustLoad re-checks under the
	// lock and is the authority.
	if err := d.registry.AdjustLoad(agent.ID, 1); err != nil {
		d.ledger.Redistribute(dist.ID, "agent unavailable at dispatch: "+err.Error())
		return types.Distribution{}, ErrNoAgentAvailable
	}

	d.rememberOffer(lead.ID, agent.ID)

	dist, err = d.ledger.MarkSent(dist.ID)
	if err != nil {
		return types.Distribution{}, err
	}

	respTimeout := responseTimeout(rule)
	d.scheduler.Arm(dist.ID, respTimeout)

	d.events.Add(ledger.Event{
		DistributionID: dist.ID,
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		Status:         types.DistributionSent,
		Attempt:        attempt,
		Timestamp:      time.Now(),
	})
	d.metrics.RecordDistribution(rule.Strategy)

	d.logger.Info().
		Str("lead_id", lead.ID).
		Str("distribution_id", dist.ID).
		Str("agent_id", agent.ID).
		Str("rule_id", rule.ID).
		Str("strategy", string(rule.Strategy)).
		Int("attempt", attempt).
		Msg("lead dispatched")

	// Delivery runs off the hot path. A failed send never fails the
	// distribution; the deadline covers the silent-agent case either way.
	go d.deliver(dist, lead, respTimeout)

	return dist, nil
}

func (d *Dispatcher) deliver(dist types.Distribution, lead types.Lead, respTimeout time.Duration) {
	payload := map[string]string{
		"origin":       lead.Origin,
		"value":        strconv.FormatFloat(lead.Value, 'f', -1, 64),
		"propertyType": lead.PropertyType,
		"attempt":      strconv.Itoa(dist.Attempt),
		"expiresAt":    time.Now().Add(respTimeout).UTC().Format(time.RFC3339),
	}
	if err := d.notifier.Notify(dist.AgentID, dist.LeadID, dist.ID, payload); err != nil {
		d.logger.Warn().
			Err(err).
			Str("distribution_id", dist.ID).
			Str("agent_id", dist.AgentID).
			Msg("offer delivery failed")
		d.ledger.NoteDeliveryFailure(dist.ID, err.Error())
		d.metrics.RecordNotifyFailure()
	}
}

// Accept records the agent taking the lead. The lead stays on the
// agent's active count.
func (d *Dispatcher) Accept(distID, agentID string) (types.Distribution, error) {
	dist, err := d.ledger.Accept(distID, agentID)
	if err != nil {
		return dist, err
	}

	d.scheduler.Disarm(distID)
	d.events.Add(ledger.Event{
		DistributionID: dist.ID,
		LeadID:         dist.LeadID,
		AgentID:        dist.AgentID,
		Status:         types.DistributionAccepted,
		Attempt:        dist.Attempt,
		Timestamp:      time.Now(),
	})
	d.metrics.RecordOutcome(types.DistributionAccepted)
	d.persist(dist, false)
	d.forgetLead(dist.LeadID)

	d.logger.Info().
		Str("distribution_id", dist.ID).
		Str("lead_id", dist.LeadID).
		Str("agent_id", dist.AgentID).
		Float64("response_minutes", dist.ResponseMinutes).
		Msg("lead accepted")
	return dist, nil
}

// Reject records the agent declining the lead and redistributes it to
// another agent while attempts remain.
func (d *Dispatcher) Reject(distID, agentID, reason string) (types.Distribution, error) {
	dist, err := d.ledger.Reject(distID, agentID, reason)
	if err != nil {
		return dist, err
	}

	d.scheduler.Disarm(distID)
	if err := d.registry.AdjustLoad(dist.AgentID, -1); err != nil {
		d.logger.Error().Err(err).Str("agent_id", dist.AgentID).Msg("load decrement failed on reject")
	}

	d.events.Add(ledger.Event{
		DistributionID: dist.ID,
		LeadID:         dist.LeadID,
		AgentID:        dist.AgentID,
		Status:         types.DistributionRejected,
		Attempt:        dist.Attempt,
		Timestamp:      time.Now(),
		Note:           reason,
	})
	d.metrics.RecordOutcome(types.DistributionRejected)

	d.logger.Info().
		Str("distribution_id", dist.ID).
		Str("lead_id", dist.LeadID).
		Str("agent_id", dist.AgentID).
		Str("reason", reason).
		Msg("lead rejected")

	rule, ok := d.rules.Get(dist.RuleID)
	escalated := d.continueChain(dist, rule, ok, "all agents rejected lead")
	d.persist(dist, escalated)
	return dist, nil
}

// handleTimeout is the scheduler callback for an expired response
// deadline. Expire loses cleanly against a response that already
// resolved the distribution.
func (d *Dispatcher) handleTimeout(distID string) {
	dist, err := d.ledger.Get(distID)
	if err != nil {
		return
	}
	rule, ok := d.rules.Get(dist.RuleID)

	dist, changed := d.ledger.Expire(distID, timeoutMinutes(rule, ok))
	if !changed {
		return
	}

	if err := d.registry.AdjustLoad(dist.AgentID, -1); err != nil {
		d.logger.Error().Err(err).Str("agent_id", dist.AgentID).Msg("load decrement failed on expiry")
	}
	if d.canceller != nil {
		d.canceller.CancelOffer(dist.AgentID, dist.ID, "response timeout")
	}

	d.events.Add(ledger.Event{
		DistributionID: dist.ID,
		LeadID:         dist.LeadID,
		AgentID:        dist.AgentID,
		Status:         types.DistributionExpired,
		Attempt:        dist.Attempt,
		Timestamp:      time.Now(),
		Note:           "response timeout",
	})
	d.metrics.RecordOutcome(types.DistributionExpired)

	d.logger.Warn().
		Str("distribution_id", dist.ID).
		Str("lead_id", dist.LeadID).
		Str("agent_id", dist.AgentID).
		Int("attempt", dist.Attempt).
		Msg("lead offer expired")

	escalated := false
	if !ok || rule.RedistributeOnTimeout {
		escalated = d.continueChain(dist, rule, ok, "lead expired on all attempts")
	} else {
		escalated = d.endChain(dist, rule, ok, "lead expired, redistribution disabled")
	}
	d.persist(dist, escalated)
}

// continueChain redistributes a lead after a failed attempt, or ends the
// chain when attempts are exhausted or no agent remains. Returns whether
// a manager escalation was raised.
func (d *Dispatcher) continueChain(dist types.Distribution, rule types.DistributionRule, ruleOK bool, exhaustedReason string) bool {
	lead, known := d.leadFor(dist.LeadID)
	if !known {
		return false
	}

	if dist.Attempt >= maxAttempts(rule, ruleOK) {
		return d.endChain(dist, rule, ruleOK, exhaustedReason)
	}

	if _, err := d.dispatch(lead, rule, dist.Attempt+1); err != nil {
		d.logger.Warn().
			Err(err).
			Str("lead_id", dist.LeadID).
			Int("attempt", dist.Attempt+1).
			Msg("redistribution failed")
		return d.endChain(dist, rule, ruleOK, "no eligible agent for redistribution")
	}
	return false
}

// endChain finishes a lead's distribution chain without an acceptance.
// The final distribution keeps its own resolution status; the exhaustion
// is recorded on its history instead.
func (d *Dispatcher) endChain(dist types.Distribution, rule types.DistributionRule, ruleOK bool, reason string) bool {
	d.forgetLead(dist.LeadID)
	d.ledger.NoteChainEnded(dist.ID, reason)

	if ruleOK && rule.EscalateToManager {
		d.escalate(reason, map[string]any{
			"leadId":   dist.LeadID,
			"ruleId":   dist.RuleID,
			"attempts": dist.Attempt,
		})
		return true
	}
	return false
}

// Cancel withdraws a lead before any agent accepted it. The active
// distribution, if any, is terminated and its offer retracted.
func (d *Dispatcher) Cancel(leadID string) (types.Distribution, error) {
	dist, active := d.ledger.ActiveForLead(leadID)
	if !active {
		d.forgetLead(leadID)
		return types.Distribution{}, ErrNoActiveDistribution
	}

	dist, err := d.ledger.Redistribute(dist.ID, "lead cancelled")
	if err != nil {
		return dist, err
	}

	d.scheduler.Disarm(dist.ID)
	if err := d.registry.AdjustLoad(dist.AgentID, -1); err != nil {
		d.logger.Error().Err(err).Str("agent_id", dist.AgentID).Msg("load decrement failed on cancel")
	}
	if d.canceller != nil {
		d.canceller.CancelOffer(dist.AgentID, dist.ID, "lead cancelled")
	}

	d.events.Add(ledger.Event{
		DistributionID: dist.ID,
		LeadID:         dist.LeadID,
		AgentID:        dist.AgentID,
		Status:         types.DistributionRedistributed,
		Attempt:        dist.Attempt,
		Timestamp:      time.Now(),
		Note:           "lead cancelled",
	})
	d.metrics.RecordOutcome(types.DistributionRedistributed)
	d.metrics.RecordLeadCancelled()
	d.persist(dist, false)
	d.forgetLead(leadID)

	d.logger.Info().
		Str("lead_id", leadID).
		Str("distribution_id", dist.ID).
		Msg("lead cancelled")
	return dist, nil
}

// PendingDeadlines returns the number of armed response deadlines
func (d *Dispatcher) PendingDeadlines() int {
	return d.scheduler.Pending()
}

// Escalations returns the number of manager escalations raised
func (d *Dispatcher) Escalations() int {
	return int(d.escalations.Load())
}

// Stop disarms all deadlines. In-flight responses still resolve through
// the ledger.
func (d *Dispatcher) Stop() {
	d.scheduler.Stop()
}

func (d *Dispatcher) escalate(reason string, context map[string]any) {
	d.escalations.Add(1)
	d.metrics.RecordEscalation()
	if d.escalation == nil {
		return
	}
	if err := d.escalation.NotifyManager(reason, context); err != nil {
		d.logger.Error().Err(err).Str("reason", reason).Msg("manager escalation failed")
	}
}

// persist writes the resolved distribution to the store off the hot path
func (d *Dispatcher) persist(dist types.Distribution, escalated bool) {
	if d.store == nil {
		return
	}

	rule, _ := d.rules.Get(dist.RuleID)
	resolvedAt := time.Now()
	if dist.RespondedAt != nil {
		resolvedAt = *dist.RespondedAt
	}

	record := types.DistributionRecord{
		DateKey:         dist.CreatedAt.UTC().Format("2006-01-02"),
		DistributionID:  dist.ID,
		LeadID:          dist.LeadID,
		AgentID:         dist.AgentID,
		RuleID:          dist.RuleID,
		Strategy:        string(rule.Strategy),
		Attempt:         dist.Attempt,
		Status:          string(dist.Status),
		CreatedAt:       dist.CreatedAt.UTC().Format(time.RFC3339),
		ResolvedAt:      resolvedAt.UTC().Format(time.RFC3339),
		ResponseMinutes: dist.ResponseMinutes,
		RejectionReason: dist.RejectionReason,
		Escalated:       escalated,
	}

	go func() {
		if err := d.store.SaveDistributionRecord(record); err != nil {
			d.logger.Error().
				Err(err).
				Str("distribution_id", record.DistributionID).
				Msg("failed to persist distribution record")
		}
	}()
}

func (d *Dispatcher) leadFor(leadID string) (types.Lead, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lead, ok := d.leads[leadID]
	return lead, ok
}

// excludeFor returns the exclusion set for the lead's next attempt: only
// the agent from the immediately preceding attempt. An unresponsive or
// rejecting agent sits out one cycle, not the rest of the chain, so a
// pool smaller than maxAttempts can still carry the chain to its cap.
func (d *Dispatcher) excludeFor(leadID string) map[string]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	if agentID, ok := d.lastAgent[leadID]; ok {
		return map[string]struct{}{agentID: {}}
	}
	return nil
}

func (d *Dispatcher) rememberOffer(leadID, agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAgent[leadID] = agentID
}

func (d *Dispatcher) forgetLead(leadID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.leads, leadID)
	delete(d.lastAgent, leadID)
}

func maxAttempts(rule types.DistributionRule, ok bool) int {
	if !ok || rule.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return rule.MaxAttempts
}

func responseTimeout(rule types.DistributionRule) time.Duration {
	if rule.ResponseTimeoutMinutes <= 0 {
		return DefaultResponseTimeout
	}
	return rule.ResponseTimeout()
}

func timeoutMinutes(rule types.DistributionRule, ok bool) float64 {
	if !ok || rule.ResponseTimeoutMinutes <= 0 {
		return DefaultResponseTimeout.Minutes()
	}
	return float64(rule.ResponseTimeoutMinutes)
}
