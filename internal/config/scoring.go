package config

import (
	"errors"
	"fmt"
	"time"
)

// Scoring holds every weight and threshold used by routing and performance
// tracking. Values come from DefaultScoring and may be overridden by the
// scoring section of the YAML config file.
type Scoring struct {
	// Admission
	MinSuccessRate          float64       `yaml:"min_success_rate"`
	MaxAverageExecutionTime time.Duration `yaml:"max_average_execution_time"`
	MinAvailability         float64       `yaml:"min_availability"`

	// Overall score
	SuccessWeight         float64       `yaml:"success_weight"`
	SpeedWeight           float64       `yaml:"speed_weight"`
	ReliabilityWeight     float64       `yaml:"reliability_weight"`
	SpeedReference        time.Duration `yaml:"speed_reference"`
	ReliabilityExecutions int           `yaml:"reliability_executions"`

	// Availability
	HighCPUThreshold     float64 `yaml:"high_cpu_threshold"`
	MemoryCeilingBytes   uint64  `yaml:"memory_ceiling_bytes"`
	AvailabilityPenalty  float64 `yaml:"availability_penalty"`
	AvailabilityRecovery float64 `yaml:"availability_recovery"`
	AvailabilityFloor    float64 `yaml:"availability_floor"`
	AvailabilityCeiling  float64 `yaml:"availability_ceiling"`

	// Relevance for context
	RelevanceBase          float64 `yaml:"relevance_base"`
	OptimalContextWeight   float64 `yaml:"optimal_context_weight"`
	WorkspaceAffinityBonus float64 `yaml:"workspace_affinity_bonus"`
	GeneralTextBonus       float64 `yaml:"general_text_bonus"`

	// Recommendation
	RecommendationBase      float64 `yaml:"recommendation_base"`
	PerformanceWeight       float64 `yaml:"performance_weight"`
	ComplexityMatchBonus    float64 `yaml:"complexity_match_bonus"`
	ComplexityAdjacentBonus float64 `yaml:"complexity_adjacent_bonus"`
	ResourceCapabilityBonus float64 `yaml:"resource_capability_bonus"`
	CriticalScore           float64 `yaml:"critical_score"`
	HighScore               float64 `yaml:"high_score"`
	MediumScore             float64 `yaml:"medium_score"`
	MaxSuggestions          int     `yaml:"max_suggestions"`

	// Optimization recommendations and pattern mining
	LowSuccessRate           float64       `yaml:"low_success_rate"`
	LowSuccessMinExecutions  int           `yaml:"low_success_min_executions"`
	SlowAverageExecutionTime time.Duration `yaml:"slow_average_execution_time"`
	UnusedWindow             int           `yaml:"unused_window"`
	UnusedToolsThreshold     int           `yaml:"unused_tools_threshold"`
	HourPatternMin           int           `yaml:"hour_pattern_min"`
	WorkspacePatternMin      int           `yaml:"workspace_pattern_min"`
}

// DefaultScoring returns the stock constants.
func DefaultScoring() Scoring {
	return Scoring{
		MinSuccessRate:          0.5,
		MaxAverageExecutionTime: 30 * time.Second,
		MinAvailability:         0.3,

		SuccessWeight:         0.4,
		SpeedWeight:           0.3,
		ReliabilityWeight:     0.3,
		SpeedReference:        10 * time.Second,
		ReliabilityExecutions: 100,

		HighCPUThreshold:     0.8,
		MemoryCeilingBytes:   2 << 30,
		AvailabilityPenalty:  0.2,
		AvailabilityRecovery: 0.1,
		AvailabilityFloor:    0.1,
		AvailabilityCeiling:  1.0,

		RelevanceBase:          0.5,
		OptimalContextWeight:   0.3,
		WorkspaceAffinityBonus: 0.4,
		GeneralTextBonus:       0.2,

		RecommendationBase:      0.5,
		PerformanceWeight:       0.3,
		ComplexityMatchBonus:    0.2,
		ComplexityAdjacentBonus: 0.1,
		ResourceCapabilityBonus: 0.1,
		CriticalScore:           0.8,
		HighScore:               0.7,
		MediumScore:             0.6,
		MaxSuggestions:          5,

		LowSuccessRate:           0.7,
		LowSuccessMinExecutions:  5,
		SlowAverageExecutionTime: 10 * time.Second,
		UnusedWindow:             50,
		UnusedToolsThreshold:     3,
		HourPatternMin:           2,
		WorkspacePatternMin:      3,
	}
}

// Validate rejects constants that would make scoring meaningless.
func (s Scoring) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"min_success_rate":   s.MinSuccessRate,
		"min_availability":   s.MinAvailability,
		"high_cpu_threshold": s.HighCPUThreshold,
		"availability_floor": s.AvailabilityFloor,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if s.SuccessWeight < 0 || s.SpeedWeight < 0 || s.ReliabilityWeight < 0 {
		errs = append(errs, errors.New("overall score weights must be non-negative"))
	}
	if s.SpeedReference <= 0 {
		errs = append(errs, errors.New("speed_reference must be positive"))
	}
	if s.ReliabilityExecutions <= 0 {
		errs = append(errs, errors.New("reliability_executions must be positive"))
	}
	if s.AvailabilityFloor > s.AvailabilityCeiling {
		errs = append(errs, errors.New("availability_floor must not exceed availability_ceiling"))
	}
	if s.MaxSuggestions <= 0 {
		errs = append(errs, errors.New("max_suggestions must be positive"))
	}
	if s.UnusedWindow <= 0 {
		errs = append(errs, errors.New("unused_window must be positive"))
	}
	return errors.Join(errs...)
}
