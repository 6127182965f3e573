package core

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const heartbeatEvery = 15 * time.Second

// HeartbeatState holds the aggregated counters of one sweeper process.
type HeartbeatState struct {
	mu sync.Mutex
	hb SweeperHeartbeat
}

func NewHeartbeatState(sweeperID, store string, interval time.Duration) *HeartbeatState {
	hostname, _ := os.Hostname()
	now := nowFunc()
	return &HeartbeatState{
		hb: SweeperHeartbeat{
			SweeperID:       sweeperID,
			Hostname:        hostname,
			PID:             os.Getpid(),
			Store:           store,
			IntervalSeconds: int64(interval.Seconds()),
			Status:          "starting",
			StartedAt:       now,
			UpdatedAt:       now,
		},
	}
}

// Start publishes the heartbeat immediately and then periodically until ctx is done.
func (s *HeartbeatState) Start(ctx context.Context, client RedisClientRaw) {
	s.flush(ctx, client)
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx, client)
		}
	}
}

func (s *HeartbeatState) SweepStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.Status = "sweeping"
}

// SweepFinished records the outcome of one sweep.
func (s *HeartbeatState) SweepFinished(removed int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowFunc()
	s.hb.Status = "idle"
	s.hb.SweepsTotal++
	s.hb.RemovedTotal += removed
	s.hb.LastSweepAt = &now
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	}
}

// Snapshot returns a copy of the current heartbeat with runtime stats refreshed.
func (s *HeartbeatState) Snapshot() SweeperHeartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.UptimeSeconds = int64(nowFunc().Sub(s.hb.StartedAt).Seconds())
	s.hb.UpdateRuntimeStats()
	return s.hb
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	if err := SaveSweeperHeartbeat(ctx, client, s.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("failed to publish sweeper heartbeat")
	}
}
