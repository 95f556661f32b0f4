package notify

// Notifier delivers a lead assignment message to an agent and reports the
// delivery outcome. Failures are recorded by the caller but never change
// distribution state; the timeout path stays authoritative for "no
// response".
type Notifier interface {
	Notify(agentID, leadID, distributionID string, payload map[string]string) error
}

// OfferCanceller withdraws a previously delivered offer, used when a
// distribution expires or its lead is cancelled
type OfferCanceller interface {
	CancelOffer(agentID, distributionID, reason string)
}

// EscalationSink notifies a manager when normal distribution cannot
// complete
type EscalationSink interface {
	NotifyManager(reason string, context map[string]any) error
}

// AgentSender is the delivery capability of the agent channel
type AgentSender interface {
	SendToAgent(agentID string, message []byte) bool
}
