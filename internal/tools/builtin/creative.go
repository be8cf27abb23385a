package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const CreativeWriterID = "creative-writer"

const (
	formOutline = "outline"
	formPoem    = "poem"
	formStory   = "story"
)

// CreativeWriter drafts a poem, story or outline seeded by the input's
// key terms.
type CreativeWriter struct {
	schemaParams
}

// NewCreativeWriter returns the creative writer tool.
func NewCreativeWriter(v *validation.SchemaValidator) *tool.Tool {
	h := &CreativeWriter{schemaParams{
		key: CreativeWriterID,
		schema: inputSchema(map[string]any{
			"form": map[string]any{"enum": []any{formOutline, formPoem, formStory}},
		}),
		validator: v,
	}}
	return &tool.Tool{
		ID:              CreativeWriterID,
		Name:            "Creative Writer",
		Description:     "Drafts poems, short stories and outlines",
		Category:        tool.CategoryCreative,
		Capabilities:    []tool.Capability{tool.CapabilityGenerate},
		RequiredContext: []tool.Requirement{tool.RequireTextInput},
		OptimalContext:  []tool.Requirement{tool.RequireCreativeWorkspace},
		Complexity:      tool.ComplexityMedium,
		Handler:         h,
	}
}

func (c *CreativeWriter) Execute(ctx context.Context, p tool.Parameters, _ tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	form := p.String("form")
	if form == "" {
		form = inferForm(p.Input)
	}
	themes := keywords(p.Input, 4)
	if len(themes) == 0 {
		themes = []string{"something new"}
	}

	var draft string
	switch form {
	case formPoem:
		draft = poem(themes)
	case formStory:
		draft = story(themes)
	default:
		form = formOutline
		draft = outline(themes)
	}
	return &tool.ExecutionResult{
		Success:    true,
		Output:     draft,
		Confidence: 0.6,
		Metadata: tool.Metadata{
			"form":   tool.String(form),
			"themes": tool.String(strings.Join(themes, ",")),
		},
	}, nil
}

func inferForm(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "poem"), strings.Contains(lower, "verse"):
		return formPoem
	case strings.Contains(lower, "story"), strings.Contains(lower, "tale"):
		return formStory
	default:
		return formOutline
	}
}

func poem(themes []string) string {
	lines := make([]string, 0, len(themes)+1)
	for _, t := range themes {
		lines = append(lines, fmt.Sprintf("Of %s I keep a quiet count,", t))
	}
	lines = append(lines, "and every line returns to where it started.")
	return strings.Join(lines, "\n")
}

func story(themes []string) string {
	first := themes[0]
	rest := "nothing else"
	if len(themes) > 1 {
		rest = strings.Join(themes[1:], " and ")
	}
	return fmt.Sprintf("It began with %s. Nobody expected %s to matter, until it did. By the end, %s was all anyone talked about.",
		first, rest, first)
}

func outline(themes []string) string {
	var b strings.Builder
	for i, t := range themes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ToUpper(t[:1])+t[1:])
	}
	return strings.TrimSuffix(b.String(), "\n")
}
