package performance

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// SystemSample is one reading of host load.
type SystemSample = tool.SystemMetrics

// SystemMonitor samples system load for availability scoring.
type SystemMonitor interface {
	Sample() SystemSample
}

// StaticMonitor always reports the same sample.
type StaticMonitor struct {
	Metrics SystemSample
}

func (m StaticMonitor) Sample() SystemSample {
	return m.Metrics
}

const (
	processCPUSeconds     = "process_cpu_seconds_total"
	processResidentMemory = "process_resident_memory_bytes"
)

// MinSampleWindow is the shortest wall interval over which ProcessMonitor
// computes CPU utilisation.
const MinSampleWindow = time.Second

// ProcessMonitor reads CPU time and resident memory of this process from
// the Prometheus process collector. CPU utilisation is CPU seconds spent
// since the baseline divided by wall time and GOMAXPROCS. Samples taken
// less than MinSampleWindow after the baseline repeat the last utilisation
// and leave the baseline where it is.
// On platforms without process metrics every sample is zero.
type ProcessMonitor struct {
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	now      func() time.Time
	window   time.Duration

	mu       sync.Mutex
	lastCPU  float64
	lastWall time.Time
	lastUtil float64
}

// NewProcessMonitor creates a monitor backed by a private registry so the
// collector can coexist with the one exposed on /metrics.
func NewProcessMonitor(logger *zap.Logger) *ProcessMonitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return newProcessMonitor(reg, logger, time.Now)
}

func newProcessMonitor(g prometheus.Gatherer, logger *zap.Logger, now func() time.Time) *ProcessMonitor {
	return &ProcessMonitor{gatherer: g, logger: logger, now: now, window: MinSampleWindow}
}

func (m *ProcessMonitor) Sample() SystemSample {
	families, err := m.gatherer.Gather()
	if err != nil {
		m.logger.Debug("process metrics unavailable", zap.Error(err))
	}

	var cpuSeconds, rss float64
	for _, mf := range families {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		switch mf.GetName() {
		case processCPUSeconds:
			cpuSeconds = mf.GetMetric()[0].GetCounter().GetValue()
		case processResidentMemory:
			rss = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	sample := SystemSample{MemoryBytes: uint64(rss)}
	if m.lastWall.IsZero() {
		m.lastCPU, m.lastWall = cpuSeconds, now
		return sample
	}

	wall := now.Sub(m.lastWall)
	if wall < m.window {
		sample.CPUUtilization = m.lastUtil
		return sample
	}

	m.lastUtil = clamp01((cpuSeconds - m.lastCPU) / wall.Seconds() / float64(runtime.GOMAXPROCS(0)))
	m.lastCPU, m.lastWall = cpuSeconds, now
	sample.CPUUtilization = m.lastUtil
	return sample
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
