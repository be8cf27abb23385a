// Package builtin provides the tools every router instance registers at
// startup. Each handler validates its parameters against a JSON schema.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

// Options configures the built-in tool set.
type Options struct {
	Validator *validation.SchemaValidator
	Searcher  Searcher
	Logger    *zap.Logger
}

// Tools returns fresh descriptors for every built-in tool.
func Tools(opts Options) []*tool.Tool {
	if opts.Validator == nil {
		opts.Validator = validation.NewSchemaValidator(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Searcher == nil {
		opts.Searcher = ConversationSearcher{}
	}
	return []*tool.Tool{
		NewSummarizer(opts.Validator),
		NewCodeReviewer(opts.Validator),
		NewWebResearch(opts.Validator, opts.Searcher, opts.Logger),
		NewDocumentAnalyzer(opts.Validator),
		NewCreativeWriter(opts.Validator),
		NewDataAnalyzer(opts.Validator),
		NewTaskAutomator(opts.Validator),
	}
}

// schemaParams implements ValidateParameters and Initialize for handlers
// described by a JSON schema.
type schemaParams struct {
	key       string
	schema    map[string]any
	validator *validation.SchemaValidator
}

func (s schemaParams) ValidateParameters(p tool.Parameters) bool {
	return s.validator.Valid(s.key, s.schema, p)
}

// Initialize checks that the schema compiles.
func (s schemaParams) Initialize(context.Context) error {
	if _, err := validation.Compile(s.schema); err != nil {
		return fmt.Errorf("%s: %w", s.key, err)
	}
	return nil
}

// inputSchema is the common schema shape: a non-empty input plus extra
// properties.
func inputSchema(props map[string]any) map[string]any {
	properties := map[string]any{
		"input": map[string]any{"type": "string", "minLength": 1},
	}
	for k, v := range props {
		properties[k] = v
	}
	return map[string]any{
		"type":       "object",
		"required":   []any{"input"},
		"properties": properties,
	}
}

func intValue(p tool.Parameters, key string, def int) int {
	switch v := p.Values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func stringList(p tool.Parameters, key string) []string {
	switch v := p.Values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func floatList(p tool.Parameters, key string) ([]float64, bool) {
	switch v := p.Values[key].(type) {
	case []float64:
		return v, true
	case []any:
		out := make([]float64, 0, len(v))
		for _, x := range v {
			switch n := x.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			case json.Number:
				if f, err := n.Float64(); err == nil {
					out = append(out, f)
				}
			}
		}
		return out, true
	}
	return nil, false
}
