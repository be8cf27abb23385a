package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const DataAnalyzerID = "data-analyzer"

// agreementTolerance is how far the two computations may drift apart.
const agreementTolerance = 1e-9

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

var errNoData = errors.New("no numeric data found")

// DataAnalyzer computes descriptive statistics over the "values" array or
// the numbers found in the input.
type DataAnalyzer struct {
	schemaParams
}

// NewDataAnalyzer returns the data analyzer tool. High-accuracy requests
// recompute the statistics with a streaming algorithm and compare.
func NewDataAnalyzer(v *validation.SchemaValidator) *tool.Tool {
	h := &DataAnalyzer{schemaParams{
		key: DataAnalyzerID,
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input":  map[string]any{"type": "string"},
				"values": map[string]any{"type": "array", "items": map[string]any{"type": "number"}, "minItems": 1},
			},
			"anyOf": []any{
				map[string]any{"required": []any{"values"}},
				map[string]any{"properties": map[string]any{"input": map[string]any{"minLength": 1}}},
			},
		},
		validator: v,
	}}
	return &tool.Tool{
		ID:           DataAnalyzerID,
		Name:         "Data Analyzer",
		Description:  "Computes descriptive statistics over numeric data",
		Category:     tool.CategoryAnalysis,
		Capabilities: []tool.Capability{tool.CapabilityAnalysis, tool.CapabilityTransform},
		Complexity:   tool.ComplexityHigh,
		Handler:      h,
		Ensemble:     streamingValidator{},
	}
}

// Stats are descriptive statistics of a sample.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	StdDev float64
}

func (d *DataAnalyzer) Execute(ctx context.Context, p tool.Parameters, _ tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := sample(p)
	if len(data) == 0 {
		return nil, errNoData
	}
	s := describe(data)
	return &tool.ExecutionResult{
		Success: true,
		Output: fmt.Sprintf("n=%d mean=%.4g median=%.4g min=%.4g max=%.4g stddev=%.4g",
			s.Count, s.Mean, s.Median, s.Min, s.Max, s.StdDev),
		Confidence: 0.85,
		Metadata: tool.Metadata{
			"count":  tool.Int(s.Count),
			"mean":   tool.Number(s.Mean),
			"median": tool.Number(s.Median),
			"min":    tool.Number(s.Min),
			"max":    tool.Number(s.Max),
			"stddev": tool.Number(s.StdDev),
		},
	}, nil
}

func sample(p tool.Parameters) []float64 {
	if vals, ok := floatList(p, "values"); ok && len(vals) > 0 {
		return vals
	}
	var out []float64
	for _, m := range numberPattern.FindAllString(p.Input, -1) {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// describe computes population statistics in two passes.
func describe(data []float64) Stats {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	mean := sum / float64(n)

	sq := 0.0
	for _, v := range sorted {
		sq += (v - mean) * (v - mean)
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return Stats{
		Count:  n,
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: math.Sqrt(sq / float64(n)),
	}
}

// streamingValidator recomputes mean and deviation with Welford's method.
type streamingValidator struct{}

func (streamingValidator) Validate(ctx context.Context, primary *tool.ExecutionResult, p tool.Parameters, _ tool.ConversationContext) (tool.Validation, error) {
	if err := ctx.Err(); err != nil {
		return tool.Validation{}, err
	}
	data := sample(p)
	if len(data) == 0 {
		return tool.Validation{}, errNoData
	}

	var mean, m2 float64
	for i, v := range data {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	stddev := math.Sqrt(m2 / float64(len(data)))

	gotMean, _ := primary.Metadata["mean"].AsNumber()
	gotStd, _ := primary.Metadata["stddev"].AsNumber()
	scale := math.Max(1, math.Abs(mean))
	agree := math.Abs(gotMean-mean) <= agreementTolerance*scale &&
		math.Abs(gotStd-stddev) <= agreementTolerance*math.Max(1, stddev)

	confidence := 0.5
	if agree {
		confidence = 0.97
	}
	return tool.Validation{
		Confidence: confidence,
		Metadata: tool.Metadata{
			"validated_by":    tool.String("welford"),
			"results_agree":   tool.Bool(agree),
			"streaming_mean":  tool.Number(mean),
			"streaming_stdev": tool.Number(stddev),
		},
	}, nil
}
