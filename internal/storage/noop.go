package storage

import "github.com/salesklug/leadflow/internal/types"

// Store defines the persistence interface for resolved distributions
type Store interface {
	SaveDistributionRecord(record types.DistributionRecord) error
	SaveAgentDailyStats(stats types.AgentDailyStats) error
	GetDistributionRecords(dateKey string) ([]types.DistributionRecord, error)
	GetAgentDailyStats(agentID string) ([]types.AgentDailyStats, error)
	GetAgentDistributionsByDate(agentID, date string) ([]types.DistributionRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveDistributionRecord(_ types.DistributionRecord) error { return nil }
func (s *NoopStore) SaveAgentDailyStats(_ types.AgentDailyStats) error       { return nil }
func (s *NoopStore) GetDistributionRecords(_ string) ([]types.DistributionRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetAgentDailyStats(_ string) ([]types.AgentDailyStats, error) { return nil, nil }
func (s *NoopStore) GetAgentDistributionsByDate(_, _ string) ([]types.DistributionRecord, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
