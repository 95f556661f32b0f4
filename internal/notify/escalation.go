package notify

import (
	"github.com/rs/zerolog"
)

// LogEscalation is the default escalation sink: it records manager
// escalations in the structured log, where the operations team alerts on
// them. Deployments with a paging integration swap in their own sink.
type LogEscalation struct {
	logger zerolog.Logger
}

// NewLogEscalation creates the log-backed escalation sink
func NewLogEscalation(logger zerolog.Logger) *LogEscalation {
	return &LogEscalation{
		logger: logger.With().Str("component", "escalation").Logger(),
	}
}

// NotifyManager logs the escalation with its context fields
func (s *LogEscalation) NotifyManager(reason string, context map[string]any) error {
	event := s.logger.Warn().Str("reason", reason)
	for k, v := range context {
		event = event.Interface(k, v)
	}
	event.Msg("manager escalation")
	return nil
}
