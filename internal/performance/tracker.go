// Package performance keeps running per-tool execution statistics and the
// availability score that reacts to system load.
package performance

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
)

// DefaultSampleInterval is how often StartSampling reads system load.
const DefaultSampleInterval = time.Second

const (
	metricsNamespace = "tool_router"
	labelTool        = "tool"
	labelOutcome     = "outcome"
)

// Tracker owns every tool's Metrics. All mutation goes through Record,
// SampleLoad, Ensure and Reset. Availability follows system load
// independently of executions.
type Tracker struct {
	scoring config.Scoring
	monitor SystemMonitor
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	metrics map[string]*Metrics

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}

	promExecutions  *prometheus.CounterVec
	promLatency     *prometheus.HistogramVec
	promAvailable   *prometheus.GaugeVec
	promSuccessRate *prometheus.GaugeVec
}

// NewTracker creates a tracker. Collectors are registered on reg; pass
// prometheus.NewRegistry() in tests.
func NewTracker(scoring config.Scoring, monitor SystemMonitor, reg prometheus.Registerer, logger *zap.Logger) *Tracker {
	if monitor == nil {
		monitor = StaticMonitor{}
	}
	factory := promauto.With(reg)
	return &Tracker{
		scoring: scoring,
		monitor: monitor,
		logger:  logger,
		now:     time.Now,
		metrics: make(map[string]*Metrics),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),

		promExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_executions_total",
			Help:      "Completed tool executions, labeled by tool id and outcome",
		}, []string{labelTool, labelOutcome}),
		promLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tool_execution_seconds",
			Help:      "Tool execution latency in seconds, labeled by tool id",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}, []string{labelTool}),
		promAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tool_availability_score",
			Help:      "Availability score in [0,1], labeled by tool id",
		}, []string{labelTool}),
		promSuccessRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tool_success_rate",
			Help:      "Running success rate, labeled by tool id",
		}, []string{labelTool}),
	}
}

// Scoring returns the constants the tracker was built with.
func (t *Tracker) Scoring() config.Scoring {
	return t.scoring
}

// Ensure creates a default record for id if none exists. It reports
// whether a record was created.
func (t *Tracker) Ensure(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.metrics[id]; ok {
		return false
	}
	m := NewMetrics()
	t.metrics[id] = &m
	t.promAvailable.WithLabelValues(id).Set(m.AvailabilityScore)
	return true
}

// Record folds one completed execution into the tool's metrics.
func (t *Tracker) Record(id string, elapsed time.Duration, success bool) Metrics {
	t.mu.Lock()
	m, ok := t.metrics[id]
	if !ok {
		fresh := NewMetrics()
		m = &fresh
		t.metrics[id] = m
	}
	m.record(elapsed, success, t.now(), t.scoring)
	out := *m
	t.mu.Unlock()

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.promExecutions.WithLabelValues(id, outcome).Inc()
	t.promLatency.WithLabelValues(id).Observe(elapsed.Seconds())
	t.promAvailable.WithLabelValues(id).Set(out.AvailabilityScore)
	t.promSuccessRate.WithLabelValues(id).Set(out.SuccessRate)

	t.logger.Debug("execution recorded",
		zap.String("tool_id", id),
		zap.Bool("success", success),
		zap.Duration("elapsed", elapsed),
		zap.Float64("success_rate", out.SuccessRate),
		zap.Float64("availability", out.AvailabilityScore),
	)
	return out
}

// SampleLoad reads the monitor once and nudges every tracked tool's
// availability score.
func (t *Tracker) SampleLoad() {
	t.ObserveLoad(t.monitor.Sample())
}

// ObserveLoad nudges every tracked tool's availability score from sample.
func (t *Tracker) ObserveLoad(sample SystemSample) {
	t.mu.Lock()
	scores := make(map[string]float64, len(t.metrics))
	for id, m := range t.metrics {
		m.AvailabilityScore = nudgeAvailability(m.AvailabilityScore, sample, t.scoring)
		scores[id] = m.AvailabilityScore
	}
	t.mu.Unlock()

	for id, score := range scores {
		t.promAvailable.WithLabelValues(id).Set(score)
	}
	t.logger.Debug("system load sampled",
		zap.Float64("cpu", sample.CPUUtilization),
		zap.Uint64("memory_bytes", sample.MemoryBytes),
		zap.Int("tools", len(scores)),
	)
}

// StartSampling calls SampleLoad every interval until Close. Only the first
// call starts the loop.
func (t *Tracker) StartSampling(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	t.startOnce.Do(func() {
		go t.sampleLoop(interval)
	})
}

func (t *Tracker) sampleLoop(interval time.Duration) {
	defer close(t.stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.SampleLoad()
		}
	}
}

// Close stops the sampling loop and waits for it to exit.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		started := true
		t.startOnce.Do(func() { started = false })
		if started {
			<-t.stopped
		}
	})
}

// Get returns a copy of the tool's metrics.
func (t *Tracker) Get(id string) (Metrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.metrics[id]
	if !ok {
		return NewMetrics(), false
	}
	return *m, true
}

// Admits applies the admission rule to id. Unknown tools are admitted.
func (t *Tracker) Admits(id string) bool {
	m, _ := t.Get(id)
	return Admits(m, t.scoring)
}

// Available reports whether id's availability score clears the configured
// minimum.
func (t *Tracker) Available(id string) bool {
	m, _ := t.Get(id)
	return m.AvailabilityScore >= t.scoring.MinAvailability
}

// Snapshot returns a consistent copy of every record.
func (t *Tracker) Snapshot() map[string]Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Metrics, len(t.metrics))
	for id, m := range t.metrics {
		out[id] = *m
	}
	return out
}

// IDs returns the tracked tool ids in sorted order.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.metrics))
	for id := range t.metrics {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reset returns every known tool to default metrics.
func (t *Tracker) Reset() {
	t.mu.Lock()
	for id := range t.metrics {
		m := NewMetrics()
		t.metrics[id] = &m
		t.promAvailable.WithLabelValues(id).Set(m.AvailabilityScore)
		t.promSuccessRate.WithLabelValues(id).Set(0)
	}
	t.mu.Unlock()
	t.logger.Info("performance metrics reset")
}
