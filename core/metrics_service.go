package core

import (
	"context"
	"sort"
	"time"
)

// SessionInfo is the diagnostic view of one token. The id is truncated so the
// listing can never be replayed as a cookie.
type SessionInfo struct {
	IDPrefix  string     `json:"id_prefix"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Current   bool       `json:"current"`
}

// SessionOverview counts live sessions.
type SessionOverview struct {
	Active        int `json:"active"`
	DistinctUsers int `json:"distinct_users"`
	Expired       int `json:"expired_candidate"`
}

// MetricsService summarizes the token store from Tokens() snapshots.
type MetricsService struct {
	tokens TokenManager
}

func NewMetricsService(tokens TokenManager) *MetricsService {
	return &MetricsService{tokens: tokens}
}

// Overview counts active sessions, the users holding them, and expired tokens awaiting a sweep.
func (s *MetricsService) Overview(ctx context.Context) (SessionOverview, error) {
	snapshot, err := s.tokens.Tokens(ctx)
	if err != nil {
		return SessionOverview{}, err
	}
	now := nowFunc()
	users := make(map[string]struct{})
	var ov SessionOverview
	for _, t := range snapshot {
		if t.ExpiredAt(now) {
			ov.Expired++
			continue
		}
		ov.Active++
		users[t.Username] = struct{}{}
	}
	ov.DistinctUsers = len(users)
	return ov, nil
}

// ForUser lists username's live sessions, oldest first; currentID is flagged.
func (s *MetricsService) ForUser(ctx context.Context, username, currentID string) ([]SessionInfo, error) {
	snapshot, err := s.tokens.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	res := []SessionInfo{}
	for _, t := range snapshot {
		if t.Username != username || t.ExpiredAt(now) {
			continue
		}
		res = append(res, SessionInfo{
			IDPrefix:  idPrefix(t.ID),
			IssuedAt:  t.IssuedAt,
			ExpiresAt: t.ExpiresAt,
			Current:   t.ID == currentID,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IssuedAt.Before(res[j].IssuedAt) })
	return res, nil
}

func idPrefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
