package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const (
	WebResearchID   = "web-research"
	defaultMaxHits  = 3
	searchTimeout   = 10 * time.Second
	maxQueriesSplit = 8
)

// Hit is one search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher answers one query.
type Searcher interface {
	Search(ctx context.Context, query string, conv tool.ConversationContext, limit int) ([]Hit, error)
}

// ConversationSearcher ranks the conversation's own messages against the
// query. It is the searcher used when no endpoint is configured.
type ConversationSearcher struct{}

func (ConversationSearcher) Search(ctx context.Context, query string, conv tool.ConversationContext, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := termFrequencies(query)
	var hits []Hit
	for i, msg := range conv.RecentMessages {
		overlap := 0
		for w := range termFrequencies(msg) {
			if terms[w] > 0 {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		hits = append(hits, Hit{
			Title:   fmt.Sprintf("message %d", i+1),
			Snippet: msg,
			Score:   float64(overlap) / float64(len(terms)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// HTTPSearcher queries a JSON search endpoint with GET ?q=<query>&limit=<n>.
// The endpoint answers {"results":[{"title":..,"url":..,"snippet":..}]}.
type HTTPSearcher struct {
	Endpoint string
	Client   *http.Client
}

func (s HTTPSearcher) Search(ctx context.Context, query string, _ tool.ConversationContext, limit int) ([]Hit, error) {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: searchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %s", resp.Status)
	}

	var body struct {
		Results []Hit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Results) > limit {
		body.Results = body.Results[:limit]
	}
	return body.Results, nil
}

// WebResearch answers one or more queries, one parallel unit per query.
type WebResearch struct {
	schemaParams
	searcher Searcher
	logger   *zap.Logger
}

// NewWebResearch returns the research tool backed by searcher.
func NewWebResearch(v *validation.SchemaValidator, searcher Searcher, logger *zap.Logger) *tool.Tool {
	h := &WebResearch{
		schemaParams: schemaParams{
			key: WebResearchID,
			schema: inputSchema(map[string]any{
				"queries":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": maxQueriesSplit},
				"max_hits": map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
			}),
			validator: v,
		},
		searcher: searcher,
		logger:   logger,
	}
	return &tool.Tool{
		ID:               WebResearchID,
		Name:             "Web Research",
		Description:      "Looks up sources for one or more questions",
		Category:         tool.CategoryResearch,
		Capabilities:     []tool.Capability{tool.CapabilitySearch, tool.CapabilitySummarize},
		RequiredContext:  []tool.Requirement{tool.RequireTextInput},
		OptimalContext:   []tool.Requirement{tool.RequireNetworkAccess, tool.RequireResearchWorkspace},
		Complexity:       tool.ComplexityMedium,
		IsParallelizable: true,
		Handler:          h,
		Parallel:         h,
	}
}

// Execute searches for the "query" value, falling back to the input.
func (w *WebResearch) Execute(ctx context.Context, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	query := p.String("query")
	if query == "" {
		query = p.Input
	}
	hits, err := w.searcher.Search(ctx, query, conv, intValue(p, "max_hits", defaultMaxHits))
	if err != nil {
		return nil, err
	}
	w.logger.Debug("research query answered", zap.String("query", query), zap.Int("hits", len(hits)))

	var b strings.Builder
	fmt.Fprintf(&b, "%s:", query)
	for _, h := range hits {
		fmt.Fprintf(&b, "\n- %s: %s", h.Title, h.Snippet)
	}
	if len(hits) == 0 {
		b.WriteString(" no sources found")
	}
	confidence := 0.3
	if len(hits) > 0 {
		confidence = 0.5 + 0.1*float64(min(len(hits), 4))
	}
	return &tool.ExecutionResult{
		Success:    true,
		Output:     b.String(),
		Confidence: confidence,
		Metadata:   tool.Metadata{"hits": tool.Int(len(hits))},
	}, nil
}

// SplitParameters yields one unit per entry of "queries", or per
// semicolon-separated clause of the input.
func (w *WebResearch) SplitParameters(p tool.Parameters) []tool.Parameters {
	queries := stringList(p, "queries")
	if len(queries) == 0 {
		for _, q := range strings.Split(p.Input, ";") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
	}
	if len(queries) > maxQueriesSplit {
		queries = queries[:maxQueriesSplit]
	}
	units := make([]tool.Parameters, len(queries))
	for i, q := range queries {
		units[i] = p.With("query", q)
	}
	return units
}

func (w *WebResearch) CombineResults(results []*tool.ExecutionResult) *tool.ExecutionResult {
	outs := make([]string, len(results))
	total, hits := 0.0, 0.0
	for i, r := range results {
		outs[i] = r.Output
		total += r.Confidence
		n, _ := r.Metadata["hits"].AsNumber()
		hits += n
	}
	return &tool.ExecutionResult{
		Success:    true,
		Output:     strings.Join(outs, "\n\n"),
		Confidence: total / float64(len(results)),
		Metadata: tool.Metadata{
			"queries": tool.Int(len(results)),
			"hits":    tool.Number(hits),
		},
	}
}
