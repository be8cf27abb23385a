package performance

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
)

func newTestTracker(monitor SystemMonitor) *Tracker {
	return NewTracker(config.DefaultScoring(), monitor, prometheus.NewRegistry(), zap.NewNop())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecord_SuccessRateIsExact(t *testing.T) {
	tr := newTestTracker(nil)
	pattern := []bool{true, false, true, true, false, false, true}
	successes := 0
	for i, ok := range pattern {
		if ok {
			successes++
		}
		m := tr.Record("summarizer", time.Second, ok)
		want := float64(successes) / float64(i+1)
		if m.SuccessRate != want {
			t.Fatalf("after %d executions: success rate %v, want %v", i+1, m.SuccessRate, want)
		}
		if m.TotalExecutions != i+1 {
			t.Fatalf("total executions %d, want %d", m.TotalExecutions, i+1)
		}
	}
}

func TestRecord_AverageAndOverall(t *testing.T) {
	tr := newTestTracker(nil)
	tr.Record("t", 2*time.Second, true)
	m := tr.Record("t", 4*time.Second, false)

	if m.AverageExecutionTime != 3*time.Second {
		t.Fatalf("average %v, want 3s", m.AverageExecutionTime)
	}
	if m.TotalExecutionTime != 6*time.Second {
		t.Fatalf("total time %v, want 6s", m.TotalExecutionTime)
	}
	// 0.5*0.4 + (1-0.3)*0.3 + (2/100)*0.3
	want := 0.2 + 0.21 + 0.006
	if !approx(m.OverallScore, want) {
		t.Fatalf("overall %v, want %v", m.OverallScore, want)
	}
	if m.LastExecuted.IsZero() {
		t.Fatal("expected last executed timestamp")
	}
}

func TestOverallScore_SpeedFloorsAtZero(t *testing.T) {
	s := config.DefaultScoring()
	got := OverallScore(1, 20*time.Second, 200, s)
	// speed 0, reliability capped at 1
	if !approx(got, 0.4+0.3) {
		t.Fatalf("overall %v, want 0.7", got)
	}
}

func TestAdmits(t *testing.T) {
	s := config.DefaultScoring()
	tests := []struct {
		name string
		m    Metrics
		want bool
	}{
		{"no history", NewMetrics(), true},
		{"healthy", Metrics{TotalExecutions: 10, SuccessRate: 0.9, AverageExecutionTime: time.Second}, true},
		{"success rate at threshold", Metrics{TotalExecutions: 10, SuccessRate: 0.5, AverageExecutionTime: time.Second}, false},
		{"low success rate", Metrics{TotalExecutions: 10, SuccessRate: 0.3, AverageExecutionTime: time.Second}, false},
		{"too slow", Metrics{TotalExecutions: 10, SuccessRate: 1, AverageExecutionTime: 30 * time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Admits(tt.m, s); got != tt.want {
				t.Fatalf("Admits = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_LowSuccessToolNotAdmitted(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 10; i++ {
		tr.Record("flaky", 100*time.Millisecond, i < 3)
	}
	m, _ := tr.Get("flaky")
	if !approx(m.SuccessRate, 0.3) {
		t.Fatalf("success rate %v, want 0.3", m.SuccessRate)
	}
	if tr.Admits("flaky") {
		t.Fatal("expected tool with 0.3 success rate to be rejected")
	}
	if !tr.Admits("never-run") {
		t.Fatal("expected unknown tool to be admitted")
	}
}

// switchMonitor reports busy or idle load on demand.
type switchMonitor struct {
	busy atomic.Bool
}

func (m *switchMonitor) Sample() SystemSample {
	if m.busy.Load() {
		return SystemSample{CPUUtilization: 0.95}
	}
	return SystemSample{CPUUtilization: 0.1}
}

func TestAvailability_NudgedByLoad(t *testing.T) {
	s := config.DefaultScoring()
	busy := StaticMonitor{Metrics: SystemSample{CPUUtilization: 0.95}}
	tr := NewTracker(s, busy, prometheus.NewRegistry(), zap.NewNop())
	tr.Ensure("t")

	want := []float64{0.8, 0.6, 0.4, 0.2, 0.1, 0.1}
	for i, w := range want {
		tr.SampleLoad()
		m, _ := tr.Get("t")
		if !approx(m.AvailabilityScore, w) {
			t.Fatalf("step %d: availability %v, want %v", i, m.AvailabilityScore, w)
		}
	}
	if tr.Available("t") {
		t.Fatal("expected tool below minimum availability to be unavailable")
	}
}

func TestAvailability_RecoversWithoutExecutions(t *testing.T) {
	mon := &switchMonitor{}
	tr := newTestTracker(mon)
	tr.Ensure("t")

	mon.busy.Store(true)
	for i := 0; i < 4; i++ {
		tr.SampleLoad()
	}
	if tr.Available("t") {
		t.Fatal("expected tool to be unavailable during the load spike")
	}

	mon.busy.Store(false)
	for i := 0; i < 3; i++ {
		tr.SampleLoad()
	}
	m, _ := tr.Get("t")
	if !tr.Available("t") {
		t.Fatalf("expected tool to recover once load clears, availability %v", m.AvailabilityScore)
	}
	if m.TotalExecutions != 0 {
		t.Fatalf("sampling must not count executions, got %d", m.TotalExecutions)
	}
}

func TestAvailability_NudgesEveryTool(t *testing.T) {
	tr := newTestTracker(nil)
	tr.Ensure("a")
	tr.Ensure("b")
	tr.ObserveLoad(SystemSample{CPUUtilization: 0.9})

	for _, id := range []string{"a", "b"} {
		m, _ := tr.Get(id)
		if !approx(m.AvailabilityScore, 0.8) {
			t.Fatalf("%s: availability %v, want 0.8", id, m.AvailabilityScore)
		}
	}
}

func TestAvailability_MemoryCeiling(t *testing.T) {
	s := config.DefaultScoring()
	tr := NewTracker(s, nil, prometheus.NewRegistry(), zap.NewNop())
	tr.Ensure("t")
	tr.ObserveLoad(SystemSample{MemoryBytes: s.MemoryCeilingBytes + 1})
	m, _ := tr.Get("t")
	if !approx(m.AvailabilityScore, 0.8) {
		t.Fatalf("availability %v, want 0.8", m.AvailabilityScore)
	}
}

func TestAvailability_RecoveryCapped(t *testing.T) {
	tr := newTestTracker(StaticMonitor{})
	tr.Ensure("t")
	tr.SampleLoad()
	m, _ := tr.Get("t")
	if m.AvailabilityScore != 1.0 {
		t.Fatalf("availability %v, want 1.0", m.AvailabilityScore)
	}
}

func TestRecord_LeavesAvailabilityAlone(t *testing.T) {
	busy := StaticMonitor{Metrics: SystemSample{CPUUtilization: 0.99}}
	tr := newTestTracker(busy)
	for i := 0; i < 5; i++ {
		tr.Record("t", time.Millisecond, true)
	}
	m, _ := tr.Get("t")
	if m.AvailabilityScore != DefaultAvailability {
		t.Fatalf("availability %v, want %v", m.AvailabilityScore, DefaultAvailability)
	}
}

// countingMonitor reports busy load and counts samples.
type countingMonitor struct {
	n atomic.Int32
}

func (m *countingMonitor) Sample() SystemSample {
	m.n.Add(1)
	return SystemSample{CPUUtilization: 0.99}
}

func TestStartSampling_TicksUntilClose(t *testing.T) {
	mon := &countingMonitor{}
	tr := newTestTracker(mon)
	tr.Ensure("t")

	tr.StartSampling(time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for tr.Available("t") {
		if time.Now().After(deadline) {
			t.Fatal("sampling loop never lowered availability")
		}
		time.Sleep(time.Millisecond)
	}
	tr.Close()
	tr.Close()

	n := mon.n.Load()
	time.Sleep(10 * time.Millisecond)
	if got := mon.n.Load(); got != n {
		t.Fatalf("expected no samples after Close, got %d more", got-n)
	}
}

func TestClose_WithoutStart(t *testing.T) {
	tr := newTestTracker(nil)
	tr.Close()
	tr.StartSampling(time.Millisecond)
	tr.Close()
}

func TestEnsureAndReset(t *testing.T) {
	tr := newTestTracker(nil)
	if !tr.Ensure("a") {
		t.Fatal("expected first Ensure to create a record")
	}
	if tr.Ensure("a") {
		t.Fatal("expected second Ensure to be a no-op")
	}
	tr.Record("a", time.Second, true)
	tr.Record("b", time.Second, false)

	tr.Reset()

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 records after reset, got %d", len(snap))
	}
	for id, m := range snap {
		if m != NewMetrics() {
			t.Fatalf("%s not reset: %+v", id, m)
		}
	}
	if ids := tr.IDs(); ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	tr := newTestTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Record("t", time.Millisecond, i%2 == 0)
		}(i)
	}
	wg.Wait()
	m, _ := tr.Get("t")
	if m.TotalExecutions != 50 || m.SuccessfulExecutions != 25 {
		t.Fatalf("unexpected counters %+v", m)
	}
}

func TestRecord_PrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewTracker(config.DefaultScoring(), nil, reg, zap.NewNop())
	tr.Record("t", time.Millisecond, true)
	tr.Record("t", time.Millisecond, false)
	tr.Record("t", time.Millisecond, false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "tool_router_tool_executions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == labelOutcome {
					counts[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["failure"] != 2 || counts["success"] != 1 {
		t.Fatalf("unexpected execution counters %v", counts)
	}
}

func TestProcessMonitor_Utilisation(t *testing.T) {
	var cpu float64
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{Name: processCPUSeconds, Help: "cpu"}, func() float64 { return cpu }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: processResidentMemory, Help: "rss"}, func() float64 { return 4096 }),
	)
	clock := time.Unix(0, 0)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	m := newProcessMonitor(reg, zap.NewNop(), now)

	first := m.Sample()
	if first.CPUUtilization != 0 {
		t.Fatalf("first sample utilisation %v, want 0", first.CPUUtilization)
	}
	if first.MemoryBytes != 4096 {
		t.Fatalf("memory %d, want 4096", first.MemoryBytes)
	}

	cpu += 0.5 * float64(runtime.GOMAXPROCS(0))
	second := m.Sample()
	if !approx(second.CPUUtilization, 0.5) {
		t.Fatalf("utilisation %v, want 0.5", second.CPUUtilization)
	}
}

func TestProcessMonitor_ShortWindowKeepsBaseline(t *testing.T) {
	var cpu float64
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{Name: processCPUSeconds, Help: "cpu"}, func() float64 { return cpu }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: processResidentMemory, Help: "rss"}, func() float64 { return 4096 }),
	)
	clock := time.Unix(0, 0)
	m := newProcessMonitor(reg, zap.NewNop(), func() time.Time { return clock })
	procs := float64(runtime.GOMAXPROCS(0))

	m.Sample()

	// 10ms of CPU inside 1ms of wall time would read as saturated.
	clock = clock.Add(time.Millisecond)
	cpu += 0.01 * procs
	if got := m.Sample().CPUUtilization; got != 0 {
		t.Fatalf("sample inside window = %v, want 0", got)
	}

	clock = clock.Add(MinSampleWindow - time.Millisecond)
	cpu += 0.24 * procs
	if got := m.Sample().CPUUtilization; !approx(got, 0.25) {
		t.Fatalf("utilisation over full window = %v, want 0.25", got)
	}

	// inside the next window the previous reading is repeated
	clock = clock.Add(10 * time.Millisecond)
	cpu += 0.5 * procs
	if got := m.Sample().CPUUtilization; !approx(got, 0.25) {
		t.Fatalf("repeated utilisation = %v, want 0.25", got)
	}

	clock = clock.Add(MinSampleWindow)
	if got := m.Sample().CPUUtilization; !approx(got, 0.5/1.01) {
		t.Fatalf("utilisation after window = %v, want %v", got, 0.5/1.01)
	}
}
