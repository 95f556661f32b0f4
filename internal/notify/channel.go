package notify

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/types"
)

// ErrAgentUnreachable reports that the agent has no live channel
// connection to deliver over
var ErrAgentUnreachable = errors.New("notify: agent not connected")

// ChannelNotifier delivers lead offers over the agent WebSocket channel
type ChannelNotifier struct {
	sender AgentSender
	logger zerolog.Logger
}

// NewChannelNotifier creates a notifier backed by the given sender
func NewChannelNotifier(sender AgentSender, logger zerolog.Logger) *ChannelNotifier {
	return &ChannelNotifier{
		sender: sender,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify pushes a lead_offer message to the agent
func (n *ChannelNotifier) Notify(agentID, leadID, distributionID string, payload map[string]string) error {
	offer := types.LeadOffer{
		Type:           "lead_offer",
		DistributionID: distributionID,
		LeadID:         leadID,
		AgentID:        agentID,
		Payload:        payload,
	}
	if v, ok := payload["attempt"]; ok {
		if attempt, err := strconv.Atoi(v); err == nil {
			offer.Attempt = attempt
		}
	}
	if v, ok := payload["expiresAt"]; ok {
		if expires, err := time.Parse(time.RFC3339, v); err == nil {
			offer.ExpiresAt = expires
		}
	}

	data, err := json.Marshal(offer)
	if err != nil {
		return err
	}

	if !n.sender.SendToAgent(agentID, data) {
		return ErrAgentUnreachable
	}

	n.logger.Debug().
		Str("agent_id", agentID).
		Str("lead_id", leadID).
		Str("distribution_id", distributionID).
		Msg("lead offer delivered")
	return nil
}

// CancelOffer pushes an offer_cancelled message to the agent. Best effort;
// a disconnected agent simply misses the withdrawal.
func (n *ChannelNotifier) CancelOffer(agentID, distributionID, reason string) {
	msg := types.OfferCancelled{
		Type:           "offer_cancelled",
		DistributionID: distributionID,
		AgentID:        agentID,
		Reason:         reason,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to marshal offer_cancelled")
		return
	}

	if !n.sender.SendToAgent(agentID, data) {
		n.logger.Debug().
			Str("agent_id", agentID).
			Str("distribution_id", distributionID).
			Msg("offer cancellation not delivered, agent offline")
	}
}
