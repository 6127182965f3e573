package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// expiredDeleter is implemented by stores that can drop expired tokens in bulk.
type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically removes expired tokens that lazy expiry has not reached yet.
type ExpirySweeper struct {
	tokens    TokenManager
	interval  time.Duration
	id        string
	heartbeat *HeartbeatState
}

func NewExpirySweeper(tokens TokenManager, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{tokens: tokens, interval: interval, id: NewInstanceID()}
}

// ID identifies this sweeper in logs and heartbeats.
func (s *ExpirySweeper) ID() string { return s.id }

// WithHeartbeat makes the sweeper report every sweep to state.
func (s *ExpirySweeper) WithHeartbeat(state *HeartbeatState) *ExpirySweeper {
	s.heartbeat = state
	return s
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	log.Info().Str("sweeper", s.id).Dur("interval", s.interval).Msg("expiry sweeper started")
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *ExpirySweeper) sweepAndLog(ctx context.Context) {
	if s.heartbeat != nil {
		s.heartbeat.SweepStarted()
	}
	n, err := s.Sweep(ctx)
	if s.heartbeat != nil {
		s.heartbeat.SweepFinished(n, err)
	}
	if err != nil {
		log.Error().Err(err).Str("sweeper", s.id).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Str("sweeper", s.id).Int64("removed", n).Msg("expired tokens removed")
	}
}

// Sweep removes every token expired at the current time and returns the count.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	now := nowFunc()
	if d, ok := s.tokens.(expiredDeleter); ok {
		return d.DeleteExpired(ctx, now)
	}

	snapshot, err := s.tokens.Tokens(ctx)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, t := range snapshot {
		if !t.ExpiredAt(now) {
			continue
		}
		if err := s.tokens.Remove(ctx, t.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
