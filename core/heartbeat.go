package core

import (
	"context"
	"encoding/json"
	"runtime"
	"sort"
	"time"
)

const (
	SweeperHeartbeatPrefix = "authgate:sweeper:heartbeat:"
	SweeperHeartbeatTTL    = 45 * time.Second
)

// SweeperHeartbeatKey returns the Redis key for the given sweeper id.
func SweeperHeartbeatKey(id string) string {
	return SweeperHeartbeatPrefix + id
}

// SweeperHeartbeat is the liveness record a sweeper process publishes to Redis.
// It expires on its own when the process stops refreshing it.
type SweeperHeartbeat struct {
	SweeperID       string     `json:"sweeper_id"`
	Hostname        string     `json:"hostname"`
	PID             int        `json:"pid"`
	Store           string     `json:"store"`
	IntervalSeconds int64      `json:"interval_seconds"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	Status          string     `json:"status"` // starting|idle|sweeping
	SweepsTotal     int64      `json:"sweeps_total"`
	RemovedTotal    int64      `json:"removed_total"`
	FailedTotal     int64      `json:"failed_total"`
	LastError       string     `json:"last_error,omitempty"`
	LastSweepAt     *time.Time `json:"last_sweep_at,omitempty"`
	MemorySysBytes  uint64     `json:"memory_sys_bytes"`
	NumGoroutine    int        `json:"num_goroutine"`
	StartedAt       time.Time  `json:"started_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UpdateRuntimeStats overwrites the memory and goroutine figures with current values.
func (h *SweeperHeartbeat) UpdateRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.MemorySysBytes = ms.Sys
	h.NumGoroutine = runtime.NumGoroutine()
}

// SaveSweeperHeartbeat stores hb as JSON with SweeperHeartbeatTTL.
func SaveSweeperHeartbeat(ctx context.Context, client RedisClientRaw, hb SweeperHeartbeat) error {
	hb.UpdatedAt = nowFunc()
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return client.Set(ctx, SweeperHeartbeatKey(hb.SweeperID), data, SweeperHeartbeatTTL).Err()
}

// SweeperHeartbeats lists the heartbeats of sweepers currently alive, ordered by id.
func (m *RedisTokenManager) SweeperHeartbeats(ctx context.Context) ([]SweeperHeartbeat, error) {
	iter := m.client.Scan(ctx, 0, SweeperHeartbeatPrefix+"*", 100).Iterator()
	res := []SweeperHeartbeat{}
	for iter.Next(ctx) {
		val, err := m.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var hb SweeperHeartbeat
		if err := json.Unmarshal([]byte(val), &hb); err != nil {
			continue
		}
		res = append(res, hb)
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan heartbeats", err)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SweeperID < res[j].SweeperID })
	return res, nil
}
