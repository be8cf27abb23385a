package performance

import (
	"math"
	"time"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
)

// DefaultAvailability is the availability score of a tool with no samples.
const DefaultAvailability = 1.0

// Metrics is the running aggregate for one tool.
// SuccessRate and AverageExecutionTime are always derived from the counters.
type Metrics struct {
	TotalExecutions      int           `json:"total_executions"`
	SuccessfulExecutions int           `json:"successful_executions"`
	TotalExecutionTime   time.Duration `json:"total_execution_time"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	SuccessRate          float64       `json:"success_rate"`
	OverallScore         float64       `json:"overall_score"`
	AvailabilityScore    float64       `json:"availability_score"`
	LastExecuted         time.Time     `json:"last_executed"`
}

// NewMetrics returns the zero-valued record a tool starts with.
func NewMetrics() Metrics {
	return Metrics{AvailabilityScore: DefaultAvailability}
}

// HasHistory reports whether the tool has completed at least one execution.
func (m Metrics) HasHistory() bool {
	return m.TotalExecutions > 0
}

func (m *Metrics) record(elapsed time.Duration, success bool, at time.Time, s config.Scoring) {
	if elapsed < 0 {
		elapsed = 0
	}
	m.TotalExecutions++
	if success {
		m.SuccessfulExecutions++
	}
	m.TotalExecutionTime += elapsed
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.TotalExecutions)
	m.SuccessRate = float64(m.SuccessfulExecutions) / float64(m.TotalExecutions)
	m.OverallScore = OverallScore(m.SuccessRate, m.AverageExecutionTime, m.TotalExecutions, s)
	m.LastExecuted = at
}

// OverallScore blends success rate, speed and reliability.
func OverallScore(successRate float64, avg time.Duration, executions int, s config.Scoring) float64 {
	speed := math.Max(0, 1-float64(avg)/float64(s.SpeedReference))
	reliability := math.Min(1, float64(executions)/float64(s.ReliabilityExecutions))
	return successRate*s.SuccessWeight + speed*s.SpeedWeight + reliability*s.ReliabilityWeight
}

// Admits is the admission rule used by registry filtering and the
// execution gate. A tool with no history is admitted.
func Admits(m Metrics, s config.Scoring) bool {
	if !m.HasHistory() {
		return true
	}
	return m.SuccessRate > s.MinSuccessRate && m.AverageExecutionTime < s.MaxAverageExecutionTime
}

// nudgeAvailability moves the availability score according to a system sample.
func nudgeAvailability(current float64, sample SystemSample, s config.Scoring) float64 {
	if sample.CPUUtilization > s.HighCPUThreshold || sample.MemoryBytes > s.MemoryCeilingBytes {
		return math.Max(s.AvailabilityFloor, current-s.AvailabilityPenalty)
	}
	return math.Min(s.AvailabilityCeiling, current+s.AvailabilityRecovery)
}
