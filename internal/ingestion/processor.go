package ingestion

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
)

// DefaultProcessor implements EventProcessor by delegating registration
// and status traffic to the agent registry and lead responses to the
// dispatcher.
type DefaultProcessor struct {
	registry  *registry.Registry
	responder Responder
	logger    zerolog.Logger
}

// NewDefaultProcessor creates a new DefaultProcessor
func NewDefaultProcessor(reg *registry.Registry, logger zerolog.Logger) *DefaultProcessor {
	return &DefaultProcessor{
		registry: reg,
		logger:   logger,
	}
}

// SetResponder sets the lead response handler (to avoid circular init)
func (p *DefaultProcessor) SetResponder(r Responder) {
	p.responder = r
}

func (p *DefaultProcessor) ProcessRegister(reg *types.AgentRegister) {
	agent := reg.Agent
	agent.Connection = types.ConnectionConnected
	p.registry.Upsert(agent)

	p.logger.Debug().
		Str("agent_id", agent.ID).
		Str("status", string(agent.Status)).
		Int("capacity", agent.Capacity).
		Msg("agent registered via processor")
}

func (p *DefaultProcessor) ProcessHeartbeat(hb *types.AgentHeartbeat) {
	p.registry.UpdateFromHeartbeat(hb)
}

func (p *DefaultProcessor) ProcessStatusChange(sc *types.AgentStatusChange) {
	at := sc.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	p.registry.UpdateStatus(sc.AgentID, sc.NewStatus, at)

	p.logger.Debug().
		Str("agent_id", sc.AgentID).
		Str("prev_status", string(sc.PreviousStatus)).
		Str("new_status", string(sc.NewStatus)).
		Msg("agent status change via processor")
}

func (p *DefaultProcessor) ProcessLeadResponse(lr *types.LeadResponse) {
	if p.responder == nil {
		p.logger.Warn().Msg("lead response dropped, no responder wired")
		return
	}

	var err error
	if lr.Accepted {
		_, err = p.responder.Accept(lr.DistributionID, lr.AgentID)
	} else {
		_, err = p.responder.Reject(lr.DistributionID, lr.AgentID, lr.Reason)
	}
	if err != nil {
		p.logger.Debug().
			Err(err).
			Str("distribution_id", lr.DistributionID).
			Str("agent_id", lr.AgentID).
			Bool("accepted", lr.Accepted).
			Msg("lead response not applied")
	}
}
