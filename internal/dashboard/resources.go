package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"botflow/logger"
)

// resourceSnapshot is one sample of host-level utilisation.
type resourceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	DiskPct     float64   `json:"disk_percent"`
}

// Sampling functions are variables so tests can stub the host probes.
var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

// resourceSampler periodically probes CPU, memory and disk usage through
// gopsutil and keeps the recent samples for the dashboard. The CPU probe
// itself blocks for one interval, which paces the loop.
type resourceSampler struct {
	*ring[resourceSnapshot]
	interval time.Duration
	diskPath string

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	log     *logger.Log
}

func newResourceSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	if interval <= 0 {
		interval = time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &resourceSampler{
		ring:     newRing[resourceSnapshot](limit),
		interval: interval,
		diskPath: diskPath,
		log:      log,
	}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s == nil {
		return
	}
	if s.running.Swap(true) {
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx)
	}()
}

func (s *resourceSampler) stop() {
	if s == nil {
		return
	}
	if cancel := s.cancel; cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

func (s *resourceSampler) run(ctx context.Context) {
	defer s.running.Store(false)

	for ctx.Err() == nil {
		snap, ok := s.sample(ctx)
		if !ok {
			continue
		}
		s.push(snap)
	}
}

func (s *resourceSampler) sample(ctx context.Context) (resourceSnapshot, bool) {
	slog := s.log.WithComponent("resource_sampler")

	cpuSamples, err := cpuPercentFn(ctx, s.interval)
	if err != nil {
		slog.WithError(err).Debug("failed to sample cpu usage")
		return resourceSnapshot{}, false
	}
	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		slog.WithError(err).Debug("failed to sample memory usage")
		return resourceSnapshot{}, false
	}
	diskStats, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		slog.WithError(err).Debug("failed to sample disk usage")
		return resourceSnapshot{}, false
	}

	var cpuPct float64
	if len(cpuSamples) > 0 {
		cpuPct = cpuSamples[0]
	}

	return resourceSnapshot{
		Timestamp:   time.Now(),
		CPUPercent:  cpuPct,
		MemoryUsed:  memStats.Used,
		MemoryTotal: memStats.Total,
		MemoryPct:   memStats.UsedPercent,
		DiskUsed:    diskStats.Used,
		DiskTotal:   diskStats.Total,
		DiskPct:     diskStats.UsedPercent,
	}, true
}
