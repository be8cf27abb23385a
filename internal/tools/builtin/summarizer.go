package builtin

import (
	"context"
	"sort"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const (
	SummarizerID           = "text-summarizer"
	defaultSummarySentence = 3
	summaryKeywords        = 8
)

// Summarizer extracts the highest-scoring sentences of the input.
type Summarizer struct {
	schemaParams
}

// NewSummarizer returns the summarizer tool. High-accuracy requests run
// through the keyword-coverage validator.
func NewSummarizer(v *validation.SchemaValidator) *tool.Tool {
	h := &Summarizer{schemaParams{
		key: SummarizerID,
		schema: inputSchema(map[string]any{
			"max_sentences": map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		}),
		validator: v,
	}}
	return &tool.Tool{
		ID:              SummarizerID,
		Name:            "Text Summarizer",
		Description:     "Condenses long text into its most informative sentences",
		Category:        tool.CategoryTextProcessing,
		Capabilities:    []tool.Capability{tool.CapabilitySummarize, tool.CapabilityExtract},
		RequiredContext: []tool.Requirement{tool.RequireTextInput},
		OptimalContext:  []tool.Requirement{tool.RequireRecentMessages},
		Complexity:      tool.ComplexityHigh,
		Handler:         h,
		Ensemble:        coverageValidator{},
	}
}

func (s *Summarizer) Execute(ctx context.Context, p tool.Parameters, _ tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := sentences(p.Input)
	limit := intValue(p, "max_sentences", defaultSummarySentence)
	picked := topSentences(all, termFrequencies(p.Input), limit)

	summary := strings.Join(picked, " ")
	ratio := 1.0
	if len(p.Input) > 0 {
		ratio = float64(len(summary)) / float64(len(p.Input))
	}
	return &tool.ExecutionResult{
		Success:    len(picked) > 0,
		Output:     summary,
		Confidence: 0.6 + 0.3*(1-ratio),
		Metadata: tool.Metadata{
			"sentences_in":      tool.Int(len(all)),
			"sentences_out":     tool.Int(len(picked)),
			"compression_ratio": tool.Number(ratio),
		},
	}, nil
}

// topSentences keeps the limit best sentences by summed term frequency,
// in their original order.
func topSentences(all []string, tf map[string]int, limit int) []string {
	if len(all) <= limit {
		return all
	}
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(all))
	for i, s := range all {
		ws := words(s)
		total := 0
		for _, w := range ws {
			total += tf[w]
		}
		score := 0.0
		if len(ws) > 0 {
			score = float64(total) / float64(len(ws))
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	ranked = ranked[:limit]
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].idx < ranked[j].idx })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = all[r.idx]
	}
	return out
}

// coverageValidator scores a summary by how many of the source's top
// keywords it retains.
type coverageValidator struct{}

func (coverageValidator) Validate(ctx context.Context, primary *tool.ExecutionResult, p tool.Parameters, _ tool.ConversationContext) (tool.Validation, error) {
	if err := ctx.Err(); err != nil {
		return tool.Validation{}, err
	}
	kws := keywords(p.Input, summaryKeywords)
	if len(kws) == 0 {
		return tool.Validation{Confidence: primary.Confidence}, nil
	}

	kept := termFrequencies(primary.Output)
	var covered []string
	for _, k := range kws {
		if kept[k] > 0 {
			covered = append(covered, k)
		}
	}
	coverage := float64(len(covered)) / float64(len(kws))
	return tool.Validation{
		Confidence: (primary.Confidence + coverage) / 2,
		Metadata: tool.Metadata{
			"keyword_coverage": tool.Number(coverage),
			"validated_by":     tool.String("keyword-coverage"),
			"missing_keywords": tool.Int(len(kws) - len(covered)),
		},
	}, nil
}
