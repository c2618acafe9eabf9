// Package monitor samples host and process health for the status endpoint.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	gopsutilNet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	snapshotCacheTTL   = 2 * time.Second
	networkSpeedWindow = 6 * time.Second
)

// Snapshot is one point-in-time health reading of the host and this process.
type Snapshot struct {
	Platform string `json:"platform"`

	CPUUsage    float64   `json:"cpu_usage"`
	CPUCores    int       `json:"cpu_cores"`
	LoadAverage []float64 `json:"load_average,omitempty"`

	ProcessRSSBytes uint64  `json:"process_rss_bytes"`
	ProcessCPU      float64 `json:"process_cpu"`
	Goroutines      int     `json:"goroutines"`
	UptimeSec       int64   `json:"uptime_sec"`

	NetworkBytesReceived uint64  `json:"network_bytes_received"`
	NetworkBytesSent     uint64  `json:"network_bytes_sent"`
	NetworkSpeedReceived float64 `json:"network_speed_received"`
	NetworkSpeedSent     float64 `json:"network_speed_sent"`

	TimestampMs int64 `json:"timestamp_ms"`
}

// Service caches health snapshots so a polling status endpoint never hammers
// the host counters.
type Service struct {
	log       *slog.Logger
	startedAt time.Time

	mu      sync.Mutex
	hasSnap bool
	snap    Snapshot
	takenAt time.Time

	speeds *speedTracker
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:       log,
		startedAt: time.Now(),
		speeds:    newSpeedTracker(networkSpeedWindow),
	}
}

// Status returns the current snapshot, reusing a recent one when available.
func (s *Service) Status(ctx context.Context) Snapshot {
	now := time.Now()

	s.mu.Lock()
	if s.hasSnap && now.Sub(s.takenAt) < snapshotCacheTTL {
		out := s.snap
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()

	snap := s.collect(ctx)

	s.mu.Lock()
	s.snap = snap
	s.hasSnap = true
	s.takenAt = now
	s.mu.Unlock()

	return snap
}

func (s *Service) collect(ctx context.Context) Snapshot {
	collectedAt := time.Now()

	snap := Snapshot{
		Platform:   runtime.GOOS,
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  int64(collectedAt.Sub(s.startedAt).Seconds()),
	}

	// CPU usage: non-blocking sampling (diff from last call) first, with a
	// short blocking interval as a bootstrap fallback.
	if usage, err := readCPUUsage(ctx); err == nil {
		snap.CPUUsage = usage
	} else {
		s.log.Warn("status: get cpu percent failed", "error", err)
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPUCores = cores
	} else {
		s.log.Warn("status: get cpu cores failed", "error", err)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		snap.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	} else if err != nil {
		s.log.Warn("status: get load average failed", "error", err)
	}

	if rss, procCPU, err := readSelfUsage(ctx); err == nil {
		snap.ProcessRSSBytes = rss
		snap.ProcessCPU = procCPU
	} else {
		s.log.Warn("status: get process usage failed", "error", err)
	}

	if ioStats, err := gopsutilNet.IOCountersWithContext(ctx, false); err == nil && len(ioStats) > 0 {
		snap.NetworkBytesReceived = ioStats[0].BytesRecv
		snap.NetworkBytesSent = ioStats[0].BytesSent

		s.speeds.observe(ioStats[0].BytesRecv, ioStats[0].BytesSent, collectedAt)
		snap.NetworkSpeedReceived, snap.NetworkSpeedSent = s.speeds.rates(collectedAt)
	} else if err != nil {
		s.log.Warn("status: get network io failed", "error", err)
	}

	snap.TimestampMs = collectedAt.UnixMilli()
	return snap
}

func readCPUUsage(ctx context.Context) (float64, error) {
	var errs []error

	// Non-blocking: compare against the last call. This avoids short-interval
	// sampling returning 0 on newer macOS versions due to coarse aggregated
	// tick updates.
	if p, err := cpu.PercentWithContext(ctx, 0, true); err == nil && len(p) > 0 {
		return average(p), nil
	} else if err != nil {
		errs = append(errs, err)
	}
	if p, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(p) > 0 {
		return p[0], nil
	} else if err != nil {
		errs = append(errs, err)
	}

	// Fallback: take a short blocking interval to bootstrap lastTimes if needed.
	if p, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false); err == nil && len(p) > 0 {
		return p[0], nil
	} else if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return 0, fmt.Errorf("cpu percent unavailable")
}

func readSelfUsage(ctx context.Context) (rssBytes uint64, cpuPercent float64, err error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, 0, err
	}
	if memInfo, err := p.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		rssBytes = memInfo.RSS
	}
	if pct, err := p.CPUPercentWithContext(ctx); err == nil {
		cpuPercent = pct
	}
	return rssBytes, cpuPercent, nil
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
