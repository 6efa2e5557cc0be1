package service

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/pkg/types"
)

// StatusResponse aggregates operational state for GET /status
type StatusResponse struct {
	Service  ServiceStatus    `json:"service"`
	Runtime  RuntimeStatus    `json:"runtime"`
	System   SystemStatus     `json:"system"`
	Profiles types.ProfileSet `json:"profiles"`
}

type ServiceStatus struct {
	InstanceID    string `json:"instance_id"`
	Backend       string `json:"backend"`
	UptimeSeconds int    `json:"uptime_seconds"`
}

type RuntimeStatus struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	GCCycles       uint32 `json:"gc_cycles"`
}

type SystemStatus struct {
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// handleStatus serves the operational status endpoint. When internal.auth_key
// is configured the X-Internal-Auth header must match; an empty key leaves
// the endpoint open.
func (s *Server) handleStatus(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	if !s.authorizeInternal(ctx, "/status", logger) {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := StatusResponse{
		Service: ServiceStatus{
			InstanceID:    s.instanceID,
			Backend:       s.measurer.Backend(),
			UptimeSeconds: int(time.Since(s.startTime).Seconds()),
		},
		Runtime: RuntimeStatus{
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: memStats.HeapAlloc,
			GCCycles:       memStats.NumGC,
		},
		Profiles: s.analyzer.Profiles(),
	}

	if v, err := mem.VirtualMemory(); err != nil {
		logger.Warn("Failed to read system memory", zap.Error(err))
	} else {
		status.System = SystemStatus{
			MemoryTotalBytes:  v.Total,
			MemoryUsedPercent: v.UsedPercent,
		}
	}

	s.writeData(ctx, "/status", status, fasthttp.StatusOK)
}
