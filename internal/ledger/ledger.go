package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesklug/leadflow/internal/types"
)

var (
	ErrNotFound        = errors.New("ledger: distribution not found")
	ErrAlreadyResolved = errors.New("ledger: distribution already resolved")
	ErrWrongAgent      = errors.New("ledger: agent does not own distribution")
	ErrLeadActive      = errors.New("ledger: lead already has an active distribution")
)

// entry pairs a distribution with its own lock. All transitions for one
// distribution are linearized through this lock, which is what keeps a
// late reject and a concurrently firing timeout from both winning.
type entry struct {
	mu sync.Mutex
	d  types.Distribution
}

// Ledger is the authoritative record of every dispatch attempt and its
// state machine. It holds at most one non-terminal distribution per lead.
type Ledger struct {
	mu            sync.RWMutex
	distributions map[string]*entry
	activeByLead  map[string]string // leadID -> active distribution id
	order         []string          // creation order, for stats iteration
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		distributions: make(map[string]*entry),
		activeByLead:  make(map[string]string),
	}
}

// Create records a new dispatch attempt in state pending. It fails with
// ErrLeadActive if the lead already has an unresolved distribution.
func (l *Ledger) Create(lead types.Lead, agentID, ruleID string, attempt int) (types.Distribution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, active := l.activeByLead[lead.ID]; active {
		return types.Distribution{}, ErrLeadActive
	}

	now := time.Now()
	d := types.Distribution{
		ID:        uuid.New().String(),
		LeadID:    lead.ID,
		AgentID:   agentID,
		RuleID:    ruleID,
		Attempt:   attempt,
		Status:    types.DistributionPending,
		CreatedAt: now,
		History: []types.DistributionEvent{
			{AgentID: agentID, Status: types.DistributionPending, Timestamp: now},
		},
	}

	l.distributions[d.ID] = &entry{d: d}
	l.activeByLead[lead.ID] = d.ID
	l.order = append(l.order, d.ID)
	return d, nil
}

// MarkSent promotes a pending distribution to sent. Called synchronously
// by the dispatcher once the notification has been handed off.
func (l *Ledger) MarkSent(distID string) (types.Distribution, error) {
	e, err := l.entry(distID)
	if err != nil {
		return types.Distribution{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.d.Status != types.DistributionPending {
		return e.d, ErrAlreadyResolved
	}
	e.d.Status = types.DistributionSent
	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   e.d.AgentID,
		Status:    types.DistributionSent,
		Timestamp: time.Now(),
	})
	return e.d, nil
}

// Accept resolves a sent distribution as accepted by its agent. Only the
// assigned agent may respond, and only while the distribution is sent; a
// response after resolution returns ErrAlreadyResolved without touching
// history.
func (l *Ledger) Accept(distID, agentID string) (types.Distribution, error) {
	return l.resolve(distID, agentID, types.DistributionAccepted, "")
}

// Reject resolves a sent distribution as rejected by its agent
func (l *Ledger) Reject(distID, agentID, reason string) (types.Distribution, error) {
	return l.resolve(distID, agentID, types.DistributionRejected, reason)
}

func (l *Ledger) resolve(distID, agentID string, status types.DistributionStatus, reason string) (types.Distribution, error) {
	e, err := l.entry(distID)
	if err != nil {
		return types.Distribution{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.d.AgentID != agentID {
		return e.d, ErrWrongAgent
	}
	if e.d.Status != types.DistributionSent {
		return e.d, ErrAlreadyResolved
	}

	now := time.Now()
	e.d.Status = status
	e.d.RespondedAt = &now
	e.d.ResponseMinutes = now.Sub(e.d.CreatedAt).Minutes()
	e.d.RejectionReason = reason
	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   agentID,
		Status:    status,
		Timestamp: now,
		Note:      reason,
	})

	l.clearActive(e.d.LeadID, distID)
	return e.d, nil
}

// Expire marks a still-sent distribution as expired, recording the
// configured timeout as its response time. It reports false when the
// distribution was already resolved, which is the expected outcome of the
// race between a timer firing and a late agent response.
func (l *Ledger) Expire(distID string, timeoutMinutes float64) (types.Distribution, bool) {
	e, err := l.entry(distID)
	if err != nil {
		return types.Distribution{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.d.Status != types.DistributionSent {
		return e.d, false
	}

	now := time.Now()
	e.d.Status = types.DistributionExpired
	e.d.ResponseMinutes = timeoutMinutes
	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   e.d.AgentID,
		Status:    types.DistributionExpired,
		Timestamp: now,
		Note:      "response timeout",
	})

	l.clearActive(e.d.LeadID, distID)
	return e.d, true
}

// Redistribute terminates a distribution with the redistributed status and
// the given note. Used when a lead is withdrawn before a response.
func (l *Ledger) Redistribute(distID, note string) (types.Distribution, error) {
	e, err := l.entry(distID)
	if err != nil {
		return types.Distribution{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.d.Status.Terminal() {
		return e.d, ErrAlreadyResolved
	}

	e.d.Status = types.DistributionRedistributed
	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   e.d.AgentID,
		Status:    types.DistributionRedistributed,
		Timestamp: time.Now(),
		Note:      note,
	})

	l.clearActive(e.d.LeadID, distID)
	return e.d, nil
}

// NoteDeliveryFailure appends a history entry recording a notifier
// failure. The state machine is untouched; absence of acknowledgement is
// handled by the timeout path, not by the transport outcome.
func (l *Ledger) NoteDeliveryFailure(distID string, cause string) {
	e, err := l.entry(distID)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   e.d.AgentID,
		Status:    e.d.Status,
		Timestamp: time.Now(),
		Note:      "notify failed: " + cause,
	})
}

// NoteChainEnded appends a history entry marking that no further attempt
// follows this distribution. The row keeps the status it resolved with;
// terminal states are never reopened.
func (l *Ledger) NoteChainEnded(distID string, reason string) {
	e, err := l.entry(distID)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.d.History = append(e.d.History, types.DistributionEvent{
		AgentID:   e.d.AgentID,
		Status:    e.d.Status,
		Timestamp: time.Now(),
		Note:      "no further attempts: " + reason,
	})
}

// Get returns a copy of a distribution
func (l *Ledger) Get(distID string) (types.Distribution, error) {
	e, err := l.entry(distID)
	if err != nil {
		return types.Distribution{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d, nil
}

// ActiveForLead returns the lead's unresolved distribution, if any
func (l *Ledger) ActiveForLead(leadID string) (types.Distribution, bool) {
	l.mu.RLock()
	distID, ok := l.activeByLead[leadID]
	l.mu.RUnlock()
	if !ok {
		return types.Distribution{}, false
	}

	d, err := l.Get(distID)
	if err != nil {
		return types.Distribution{}, false
	}
	return d, true
}

// ActiveCount returns the number of unresolved distributions
func (l *Ledger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.activeByLead)
}

// Snapshot returns copies of all distributions in creation order
func (l *Ledger) Snapshot() []types.Distribution {
	l.mu.RLock()
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	l.mu.RUnlock()

	out := make([]types.Distribution, 0, len(ids))
	for _, id := range ids {
		if d, err := l.Get(id); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Wipe clears all distributions, returning how many were removed
func (l *Ledger) Wipe() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := len(l.distributions)
	l.distributions = make(map[string]*entry)
	l.activeByLead = make(map[string]string)
	l.order = nil
	return count
}

func (l *Ledger) entry(distID string) (*entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.distributions[distID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// clearActive drops the lead's active marker when it still points at the
// resolving distribution. Callers hold the entry lock.
func (l *Ledger) clearActive(leadID, distID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeByLead[leadID] == distID {
		delete(l.activeByLead, leadID)
	}
}
