package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/salesklug/leadflow/internal/metrics"
	"github.com/salesklug/leadflow/internal/registry"
	"github.com/salesklug/leadflow/internal/types"
	"github.com/salesklug/leadflow/internal/websocket"
)

// Source produces the engine-wide distribution statistics. Implemented
// by the dispatcher.
type Source interface {
	Stats() types.DistributionStats
}

// Broadcaster periodically assembles a stats snapshot and pushes it to
// every dashboard client
type Broadcaster struct {
	source   Source
	registry *registry.Registry
	hub      *websocket.Hub
	interval time.Duration
	logger   zerolog.Logger
}

// NewBroadcaster creates a stats broadcaster
func NewBroadcaster(source Source, reg *registry.Registry, hub *websocket.Hub, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		source:   source,
		registry: reg,
		hub:      hub,
		interval: interval,
		logger:   logger.With().Str("component", "stats").Logger(),
	}
}

// Start begins broadcasting snapshots until the context is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	m := metrics.Get()
	b.logger.Info().Dur("interval", b.interval).Msg("stats broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("stats broadcaster stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()

			agents := b.registry.List()
			m.UpdateAgentStats(agents)

			connected, _, _ := b.registry.ConnectionStats()
			online := 0
			for _, agent := range agents {
				if agent.Status == types.StatusOnline {
					online++
				}
			}

			snapshot := types.StatsSnapshot{
				Type:            "distribution_stats",
				Timestamp:       time.Now(),
				Stats:           b.source.Stats(),
				ConnectedAgents: connected,
				OnlineAgents:    online,
			}

			data, err := json.Marshal(snapshot)
			if err != nil {
				b.logger.Error().Err(err).Msg("failed to marshal stats snapshot")
				m.RecordBroadcastError()
				continue
			}

			b.hub.Broadcast(data)
			m.RecordBroadcastCycle(time.Since(cycleStart))

			b.logger.Debug().
				Int("agents", len(agents)).
				Int("clients", b.hub.ClientCount()).
				Msg("stats snapshot broadcasted")
		}
	}
}
