package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/salesklug/leadflow/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Lead intake metrics
	LeadsReceivedTotal   int64
	LeadsUnmatchedTotal  int64
	LeadsCancelledTotal  int64
	IntakeErrorsTotal    int64

	// Distribution metrics
	distributionsByStrategy map[types.StrategyName]int64
	distributionsByStatus   map[types.DistributionStatus]int64
	EscalationsTotal        int64
	NotifyFailuresTotal     int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Stats broadcast metrics
	BroadcastCyclesTotal  int64
	BroadcastErrorsTotal  int64
	lastBroadcastDuration time.Duration

	// Agent metrics
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int
	totalCapacity  int
	totalActive    int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			distributionsByStrategy: make(map[types.StrategyName]int64),
			distributionsByStatus:   make(map[types.DistributionStatus]int64),
			agentsByStatus:          make(map[types.AgentStatus]int),
			httpRequestsTotal:       make(map[string]map[int]int64),
			httpRequestDurations:    make(map[string][]float64),
			startTime:               time.Now(),
		}
	})
	return instance
}

// RecordLeadReceived increments the lead intake counter
func (m *Metrics) RecordLeadReceived() {
	m.mu.Lock()
	m.LeadsReceivedTotal++
	m.mu.Unlock()
}

// RecordLeadUnmatched counts leads no rule or no agent could serve
func (m *Metrics) RecordLeadUnmatched() {
	m.mu.Lock()
	m.LeadsUnmatchedTotal++
	m.mu.Unlock()
}

// RecordLeadCancelled increments the cancellation counter
func (m *Metrics) RecordLeadCancelled() {
	m.mu.Lock()
	m.LeadsCancelledTotal++
	m.mu.Unlock()
}

// RecordIntakeError increments the intake error counter
func (m *Metrics) RecordIntakeError() {
	m.mu.Lock()
	m.IntakeErrorsTotal++
	m.mu.Unlock()
}

// RecordDistribution counts a dispatched assignment by strategy
func (m *Metrics) RecordDistribution(strategy types.StrategyName) {
	m.mu.Lock()
	m.distributionsByStrategy[strategy]++
	m.mu.Unlock()
}

// RecordOutcome counts a distribution reaching the given status
func (m *Metrics) RecordOutcome(status types.DistributionStatus) {
	m.mu.Lock()
	m.distributionsByStatus[status]++
	m.mu.Unlock()
}

// RecordEscalation increments the manager escalation counter
func (m *Metrics) RecordEscalation() {
	m.mu.Lock()
	m.EscalationsTotal++
	m.mu.Unlock()
}

// RecordNotifyFailure counts offers that could not reach the agent
func (m *Metrics) RecordNotifyFailure() {
	m.mu.Lock()
	m.NotifyFailuresTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordBroadcastCycle records a stats broadcast cycle
func (m *Metrics) RecordBroadcastCycle(duration time.Duration) {
	m.mu.Lock()
	m.BroadcastCyclesTotal++
	m.lastBroadcastDuration = duration
	m.mu.Unlock()
}

// RecordBroadcastError increments broadcast error counter
func (m *Metrics) RecordBroadcastError() {
	m.mu.Lock()
	m.BroadcastErrorsTotal++
	m.mu.Unlock()
}

// UpdateAgentStats updates agent roster metrics
func (m *Metrics) UpdateAgentStats(agents []types.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)
	m.totalCapacity = 0
	m.totalActive = 0

	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
		m.totalCapacity += agent.Capacity
		m.totalActive += agent.ActiveLeadCount
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("leadflow_uptime_seconds", time.Since(m.startTime).Seconds())

		// Lead intake metrics
		write("leadflow_leads_received_total", m.LeadsReceivedTotal)
		write("leadflow_leads_unmatched_total", m.LeadsUnmatchedTotal)
		write("leadflow_leads_cancelled_total", m.LeadsCancelledTotal)
		write("leadflow_intake_errors_total", m.IntakeErrorsTotal)

		// Distribution metrics
		for strategy, count := range m.distributionsByStrategy {
			write("leadflow_distributions_total", count, "strategy", string(strategy))
		}
		for status, count := range m.distributionsByStatus {
			write("leadflow_distribution_outcomes_total", count, "status", string(status))
		}
		write("leadflow_escalations_total", m.EscalationsTotal)
		write("leadflow_notify_failures_total", m.NotifyFailuresTotal)

		// WebSocket metrics
		write("leadflow_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("leadflow_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("leadflow_websocket_active_connections", m.activeConnections)
		write("leadflow_websocket_messages_total", m.WebSocketMessagesTotal)
		write("leadflow_websocket_errors_total", m.WebSocketErrorsTotal)

		// Stats broadcast metrics
		write("leadflow_broadcast_cycles_total", m.BroadcastCyclesTotal)
		write("leadflow_broadcast_errors_total", m.BroadcastErrorsTotal)
		write("leadflow_broadcast_duration_seconds", m.lastBroadcastDuration.Seconds())

		// Agent metrics
		write("leadflow_agents_total", m.totalAgents)
		write("leadflow_agents_capacity_total", m.totalCapacity)
		write("leadflow_agents_active_leads_total", m.totalActive)

		for status, count := range m.agentsByStatus {
			write("leadflow_agents_by_status", count, "status", string(status))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("leadflow_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
