package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/dispatcher"
	"github.com/salesklug/leadflow/internal/ledger"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/rules"
	"github.com/salesklug/leadflow/internal/storage"
	"github.com/salesklug/leadflow/internal/types"
)

// silentNotifier accepts everything without delivering anywhere
type silentNotifier struct{}

func (silentNotifier) Notify(_, _, _ string, _ map[string]string) error { return nil }
func (silentNotifier) CancelOffer(_, _, _ string)                       {}
func (silentNotifier) NotifyManager(_ string, _ map[string]any) error   { return nil }

type apiFixture struct {
	registry   *registry.Registry
	ledger     *ledger.Ledger
	events     *ledger.EventLog
	dispatcher *dispatcher.Dispatcher
	router     *chi.Mux
}

func newAPIFixture(t *testing.T, ruleSet []types.DistributionRule) *apiFixture {
	t.Helper()

	f := &apiFixture{
		registry: registry.New(),
		ledger:   ledger.New(),
		events:   ledger.NewEventLog(),
	}
	f.dispatcher = dispatcher.New(
		f.registry,
		rules.NewStore(ruleSet),
		f.ledger,
		f.events,
		silentNotifier{},
		silentNotifier{},
		silentNotifier{},
		storage.NewNoopStore(),
		zerolog.Nop(),
	)
	t.Cleanup(f.dispatcher.Stop)

	leads := NewLeadsHandler(f.dispatcher, zerolog.Nop())
	dists := NewDistributionsHandler(f.dispatcher, f.ledger, f.events, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/internal/leads", leads.Intake)
	r.Delete("/api/leads/{leadId}", leads.Cancel)
	r.Get("/api/distributions/{id}", dists.Get)
	r.Post("/api/distributions/{id}/accept", dists.Accept)
	r.Post("/api/distributions/{id}/reject", dists.Reject)
	r.Get("/api/stats", dists.Stats)
	r.Get("/api/events", dists.Events)
	f.router = r
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func testRuleSet() []types.DistributionRule {
	return []types.DistributionRule{{
		ID:       "default",
		Active:   true,
		Priority: 1,
		Strategy: types.StrategyRoundRobin,
	}}
}

func TestIntakeAccepted(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())
	f.registry.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	rec := f.do(http.MethodPost, "/internal/leads", `{"origin":"web","value":250000}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var dist types.Distribution
	if err := json.Unmarshal(rec.Body.Bytes(), &dist); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if dist.AgentID != "a1" {
		t.Errorf("expected assignment to a1, got %s", dist.AgentID)
	}
	if dist.LeadID == "" {
		t.Error("expected lead id to be generated")
	}
}

func TestIntakeValidation(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())
	f.registry.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing origin", `{"value":100}`, http.StatusBadRequest},
		{"negative value", `{"origin":"web","value":-1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/internal/leads", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestIntakeNoRule(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.registry.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	rec := f.do(http.MethodPost, "/internal/leads", `{"origin":"web"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unmatched lead, got %d", rec.Code)
	}
}

func TestIntakeNoAgent(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())

	rec := f.do(http.MethodPost, "/internal/leads", `{"origin":"web"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without eligible agents, got %d", rec.Code)
	}
}

func TestIntakeDuplicateLead(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())
	f.registry.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})
	f.registry.Upsert(types.Agent{ID: "a2", Status: types.StatusOnline, Capacity: 5})

	first := f.do(http.MethodPost, "/internal/leads", `{"id":"lead-1","origin":"web"}`)
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", first.Code)
	}

	second := f.do(http.MethodPost, "/internal/leads", `{"id":"lead-1","origin":"web"}`)
	if second.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate lead, got %d", second.Code)
	}
}

func TestCancelLead(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())
	f.registry.Upsert(types.Agent{ID: "a1", Status: types.StatusOnline, Capacity: 5})

	f.do(http.MethodPost, "/internal/leads", `{"id":"lead-1","origin":"web"}`)

	rec := f.do(http.MethodDelete, "/api/leads/lead-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var dist types.Distribution
	if err := json.Unmarshal(rec.Body.Bytes(), &dist); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if dist.Status != types.DistributionRedistributed {
		t.Errorf("expected redistributed status, got %s", dist.Status)
	}
}

func TestCancelUnknownLead(t *testing.T) {
	f := newAPIFixture(t, testRuleSet())

	rec := f.do(http.MethodDelete, "/api/leads/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
