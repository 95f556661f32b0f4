package dispatcher

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/rules"
	"github.com/salesklug/leadflow/internal/storage"
	"github.com/salesklug/leadflow/internal/types"
)

// fakeNotifier records delivered offers and cancellations
type fakeNotifier struct {
	mu        sync.Mutex
	offers    []string // agent ids in delivery order
	cancelled []string // distribution ids
}

func (f *fakeNotifier) Notify(agentID, leadID, distributionID string, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, agentID)
	return nil
}

func (f *fakeNotifier) CancelOffer(agentID, distributionID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, distributionID)
}

func (f *fakeNotifier) offeredAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.offers))
	copy(out, f.offers)
	return out
}

func (f *fakeNotifier) cancelledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

// fakeEscalation counts manager notifications
type fakeEscalation struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeEscalation) NotifyManager(reason string, context map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakeEscalation) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

type fixture struct {
	registry   *registry.Registry
	rules      *rules.Store
	ledger     *ledger.Ledger
	notifier   *fakeNotifier
	escalation *fakeEscalation
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, ruleSet []types.DistributionRule) *fixture {
	t.Helper()

	f := &fixture{
		registry:   registry.New(),
		rules:      rules.NewStore(ruleSet),
		ledger:     ledger.New(),
		notifier:   &fakeNotifier{},
		escalation: &fakeEscalation{},
	}
	f.dispatcher = New(
		f.registry,
		f.rules,
		f.ledger,
		ledger.NewEventLog(),
		f.notifier,
		f.notifier,
		f.escalation,
		storage.NewNoopStore(),
		zerolog.Nop(),
	)
	t.Cleanup(f.dispatcher.Stop)
	return f
}

func (f *fixture) addAgent(id string, capacity int) {
	f.registry.Upsert(types.Agent{ID: id, Status: types.StatusOnline, Capacity: capacity})
}

func (f *fixture) load(t *testing.T, agentID string) int {
	t.Helper()
	agent, ok := f.registry.Get(agentID)
	if !ok {
		t.Fatalf("agent %s missing", agentID)
	}
	return agent.ActiveLeadCount
}

func defaultRule() types.DistributionRule {
	return types.DistributionRule{
		ID:                    "default",
		Active:                true,
		Priority:              1,
		Strategy:              types.StrategyRoundRobin,
		MaxAttempts:           3,
		RedistributeOnTimeout: true,
	}
}

func TestDistributeAssignsOneAgent(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web", Value: 200_000})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if dist.AgentID != "a1" {
		t.Errorf("expected assignment to a1, got %s", dist.AgentID)
	}
	if dist.Status != types.DistributionSent {
		t.Errorf("expected sent, got %s", dist.Status)
	}
	if dist.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", dist.Attempt)
	}
	if f.load(t, "a1") != 1 {
		t.Errorf("expected load 1 after dispatch, got %d", f.load(t, "a1"))
	}
	if f.dispatcher.PendingDeadlines() != 1 {
		t.Errorf("expected one armed deadline, got %d", f.dispatcher.PendingDeadlines())
	}
}

func TestDistributeNoRule(t *testing.T) {
	f := newFixture(t, nil)
	f.addAgent("a1", 5)

	_, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != ErrNoRuleApplicable {
		t.Errorf("expected ErrNoRuleApplicable, got %v", err)
	}
}

func TestDistributeNoAgent(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})

	_, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != ErrNoAgentAvailable {
		t.Errorf("expected ErrNoAgentAvailable, got %v", err)
	}
}

func TestDistributeNoAgentEscalates(t *testing.T) {
	rule := defaultRule()
	rule.EscalateToManager = true
	f := newFixture(t, []types.DistributionRule{rule})

	f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})

	if f.escalation.count() != 1 {
		t.Errorf("expected one escalation, got %d", f.escalation.count())
	}
	if f.dispatcher.Escalations() != 1 {
		t.Errorf("expected escalation counter at 1, got %d", f.dispatcher.Escalations())
	}
}

func TestAcceptKeepsLoad(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	accepted, err := f.dispatcher.Accept(dist.ID, "a1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != types.DistributionAccepted {
		t.Errorf("expected accepted, got %s", accepted.Status)
	}
	if f.load(t, "a1") != 1 {
		t.Errorf("expected accepted lead to stay on agent load, got %d", f.load(t, "a1"))
	}
	if f.dispatcher.PendingDeadlines() != 0 {
		t.Errorf("expected deadline disarmed, got %d pending", f.dispatcher.PendingDeadlines())
	}
}

func TestRejectRedistributesToAnotherAgent(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	firstAgent := dist.AgentID

	rejected, err := f.dispatcher.Reject(dist.ID, firstAgent, "not my area")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != types.DistributionRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
	if f.load(t, firstAgent) != 0 {
		t.Errorf("expected load released on reject, got %d", f.load(t, firstAgent))
	}

	// The lead must now sit with the other agent on attempt 2
	active, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected an active redistribution")
	}
	if active.AgentID == firstAgent {
		t.Error("expected redistribution to exclude the rejecting agent")
	}
	if active.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", active.Attempt)
	}
	if f.load(t, active.AgentID) != 1 {
		t.Errorf("expected load 1 on new agent, got %d", f.load(t, active.AgentID))
	}
}

func TestRejectExhaustsAttemptsAndEscalates(t *testing.T) {
	rule := defaultRule()
	rule.MaxAttempts = 2
	rule.EscalateToManager = true
	f := newFixture(t, []types.DistributionRule{rule})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)
	f.addAgent("a3", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if _, err := f.dispatcher.Reject(dist.ID, dist.AgentID, "busy"); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}

	second, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected second attempt")
	}
	if _, err := f.dispatcher.Reject(second.ID, second.AgentID, "busy"); err != nil {
		t.Fatalf("second reject failed: %v", err)
	}

	// Attempt cap reached: chain ends, manager notified, no third attempt
	if _, ok := f.ledger.ActiveForLead("lead-1"); ok {
		t.Error("expected chain to end at max attempts")
	}
	if f.escalation.count() != 1 {
		t.Errorf("expected one escalation, got %d", f.escalation.count())
	}
}

func TestRejectWithNoRemainingAgentEndsChain(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if _, err := f.dispatcher.Reject(dist.ID, "a1", "busy"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, ok := f.ledger.ActiveForLead("lead-1"); ok {
		t.Error("expected no redistribution when the only agent already declined")
	}
}

func TestSmallPoolReoffersAfterOneCycle(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	first := dist.AgentID

	if _, err := f.dispatcher.Reject(dist.ID, first, "busy"); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	second, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected second attempt")
	}
	if second.AgentID == first {
		t.Fatalf("expected second attempt away from %s", first)
	}
	if _, err := f.dispatcher.Reject(second.ID, second.AgentID, "busy"); err != nil {
		t.Fatalf("second reject failed: %v", err)
	}

	// Two agents, three attempts: the first agent sat out exactly one
	// cycle and must be back in the pool for attempt 3
	third, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected a third attempt with a two-agent pool")
	}
	if third.Attempt != 3 {
		t.Errorf("expected attempt 3, got %d", third.Attempt)
	}
	if third.AgentID != first {
		t.Errorf("expected %s back in the pool, got %s", first, third.AgentID)
	}
}

func TestExhaustedChainNotedOnFinalRow(t *testing.T) {
	rule := defaultRule()
	rule.MaxAttempts = 2
	f := newFixture(t, []types.DistributionRule{rule})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if _, err := f.dispatcher.Reject(dist.ID, dist.AgentID, "busy"); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	second, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected second attempt")
	}
	if _, err := f.dispatcher.Reject(second.ID, second.AgentID, "busy"); err != nil {
		t.Fatalf("second reject failed: %v", err)
	}

	final, err := f.ledger.Get(second.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if final.Status != types.DistributionRejected {
		t.Errorf("expected final row to keep rejected, got %s", final.Status)
	}
	last := final.History[len(final.History)-1]
	if !strings.HasPrefix(last.Note, "no further attempts:") {
		t.Errorf("expected exhaustion note on final history entry, got %q", last.Note)
	}
}

func TestTimeoutRedistributes(t *testing.T) {
	rule := defaultRule()
	f := newFixture(t, []types.DistributionRule{rule})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	firstAgent := dist.AgentID

	// Drive the deadline directly instead of waiting out a real timer
	f.dispatcher.handleTimeout(dist.ID)

	expired, err := f.ledger.Get(dist.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if expired.Status != types.DistributionExpired {
		t.Errorf("expected expired, got %s", expired.Status)
	}
	if f.load(t, firstAgent) != 0 {
		t.Errorf("expected load released on expiry, got %d", f.load(t, firstAgent))
	}
	if f.notifier.cancelledCount() != 1 {
		t.Errorf("expected one offer cancellation, got %d", f.notifier.cancelledCount())
	}

	active, ok := f.ledger.ActiveForLead("lead-1")
	if !ok {
		t.Fatal("expected redistribution after timeout")
	}
	if active.AgentID == firstAgent {
		t.Error("expected timed-out agent to be excluded")
	}
}

func TestTimeoutWithoutRedistributionEndsChain(t *testing.T) {
	rule := defaultRule()
	rule.RedistributeOnTimeout = false
	rule.EscalateToManager = true
	f := newFixture(t, []types.DistributionRule{rule})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	f.dispatcher.handleTimeout(dist.ID)

	if _, ok := f.ledger.ActiveForLead("lead-1"); ok {
		t.Error("expected no redistribution when disabled by rule")
	}
	if f.escalation.count() != 1 {
		t.Errorf("expected one escalation, got %d", f.escalation.count())
	}
}

func TestTimeoutLosesToAcceptance(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if _, err := f.dispatcher.Accept(dist.ID, "a1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// A stale deadline firing after acceptance must change nothing
	f.dispatcher.handleTimeout(dist.ID)

	got, _ := f.ledger.Get(dist.ID)
	if got.Status != types.DistributionAccepted {
		t.Errorf("expected accepted to stand, got %s", got.Status)
	}
	if f.load(t, "a1") != 1 {
		t.Errorf("expected load untouched by stale deadline, got %d", f.load(t, "a1"))
	}
}

func TestCancelWithdrawsActiveOffer(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)

	dist, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	cancelled, err := f.dispatcher.Cancel("lead-1")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.ID != dist.ID {
		t.Errorf("expected active distribution cancelled, got %s", cancelled.ID)
	}
	if cancelled.Status != types.DistributionRedistributed {
		t.Errorf("expected redistributed status, got %s", cancelled.Status)
	}
	if f.load(t, "a1") != 0 {
		t.Errorf("expected load released on cancel, got %d", f.load(t, "a1"))
	}
	if f.notifier.cancelledCount() != 1 {
		t.Errorf("expected offer retraction, got %d", f.notifier.cancelledCount())
	}
	if f.dispatcher.PendingDeadlines() != 0 {
		t.Errorf("expected deadline disarmed, got %d", f.dispatcher.PendingDeadlines())
	}
}

func TestCancelUnknownLead(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})

	if _, err := f.dispatcher.Cancel("ghost"); err != ErrNoActiveDistribution {
		t.Errorf("expected ErrNoActiveDistribution, got %v", err)
	}
}

func TestDuplicateLeadRefused(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 5)
	f.addAgent("a2", 5)

	if _, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"}); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if _, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"}); err != ledger.ErrLeadActive {
		t.Errorf("expected ErrLeadActive for duplicate lead, got %v", err)
	}
}

func TestRoundRobinSpreadsLeads(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 10)
	f.addAgent("a2", 10)

	first, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	second, err := f.dispatcher.Distribute(types.Lead{ID: "lead-2", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if first.AgentID == second.AgentID {
		t.Errorf("expected round robin to alternate agents, both went to %s", first.AgentID)
	}
}

func TestStatsAggregation(t *testing.T) {
	f := newFixture(t, []types.DistributionRule{defaultRule()})
	f.addAgent("a1", 10)
	f.addAgent("a2", 10)

	first, err := f.dispatcher.Distribute(types.Lead{ID: "lead-1", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	f.dispatcher.Accept(first.ID, first.AgentID)

	second, err := f.dispatcher.Distribute(types.Lead{ID: "lead-2", Origin: "web"})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	f.dispatcher.Reject(second.ID, second.AgentID, "busy")

	stats := f.dispatcher.Stats()
	if stats.Accepted != 1 {
		t.Errorf("expected 1 accepted, got %d", stats.Accepted)
	}
	if stats.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", stats.Rejected)
	}
	if stats.AcceptanceRate != 50 {
		t.Errorf("expected 50%% acceptance, got %v", stats.AcceptanceRate)
	}
	if len(stats.PerAgent) == 0 {
		t.Error("expected per-agent stats")
	}

	agent := stats.PerAgent[first.AgentID]
	if agent.Accepted != 1 {
		t.Errorf("expected agent %s with 1 accepted, got %d", first.AgentID, agent.Accepted)
	}
}
