package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostMemory is the host-wide memory picture reported by /account/status.
type HostMemory struct {
	UsedBytes   uint64  `json:"used_bytes"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemStatus is the aggregated status served at /account/status.
type SystemStatus struct {
	Sessions      SessionOverview    `json:"sessions"`
	Memory        *HostMemory        `json:"memory,omitempty"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Sweepers      []SweeperHeartbeat `json:"sweepers,omitempty"`
}

// heartbeatLister is implemented by token stores that also carry sweeper heartbeats.
type heartbeatLister interface {
	SweeperHeartbeats(ctx context.Context) ([]SweeperHeartbeat, error)
}

// memoryProbe is swapped in tests.
var memoryProbe = func(ctx context.Context) (*HostMemory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &HostMemory{UsedBytes: vm.Used, TotalBytes: vm.Total, UsedPercent: vm.UsedPercent}, nil
}

// CollectSystemStatus aggregates the current status. A token store failure is
// returned as-is; memory and sweeper heartbeats are best-effort.
func CollectSystemStatus(ctx context.Context, metrics *MetricsService, sweepers heartbeatLister, startedAt time.Time) (SystemStatus, error) {
	var st SystemStatus

	if metrics != nil {
		ov, err := metrics.Overview(ctx)
		if err != nil {
			return st, err
		}
		st.Sessions = ov
	}

	if sweepers != nil {
		if hbs, err := sweepers.SweeperHeartbeats(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to list sweeper heartbeats")
		} else {
			st.Sweepers = hbs
		}
	}

	if m, err := memoryProbe(ctx); err != nil {
		log.Debug().Err(err).Msg("host memory unavailable")
	} else {
		st.Memory = m
	}

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(nowFunc().Sub(startedAt).Seconds())
	}
	return st, nil
}
