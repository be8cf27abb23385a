package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const (
	CodeReviewerID = "code-reviewer"
	maxLineLength  = 120
	maxNesting     = 4
)

const (
	stageSyntax     = "syntax"
	stageStyle      = "style"
	stageComplexity = "complexity"
)

// CodeReviewer inspects source in three stages: bracket balance, style,
// and nesting depth. A syntax failure ends the review.
type CodeReviewer struct {
	schemaParams
}

// NewCodeReviewer returns the code reviewer tool.
func NewCodeReviewer(v *validation.SchemaValidator) *tool.Tool {
	h := &CodeReviewer{schemaParams{
		key: CodeReviewerID,
		schema: inputSchema(map[string]any{
			"stage":    map[string]any{"enum": []any{stageSyntax, stageStyle, stageComplexity}},
			"language": map[string]any{"type": "string"},
		}),
		validator: v,
	}}
	return &tool.Tool{
		ID:                CodeReviewerID,
		Name:              "Code Reviewer",
		Description:       "Reviews source code for syntax, style and complexity problems",
		Category:          tool.CategoryCodeProcessing,
		Capabilities:      []tool.Capability{tool.CapabilityAnalysis},
		RequiredContext:   []tool.Requirement{tool.RequireCodeContent},
		OptimalContext:    []tool.Requirement{tool.RequireCodeWorkspace},
		Complexity:        tool.ComplexityMedium,
		SupportsCascading: true,
		Handler:           h,
		Cascading:         h,
	}
}

// Execute runs the stage named by the "stage" value, or every stage when
// none is set.
func (c *CodeReviewer) Execute(ctx context.Context, p tool.Parameters, _ tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stage := p.String("stage"); stage != "" {
		return reviewStage(stage, p.Input), nil
	}

	var combined *tool.ExecutionResult
	for _, st := range c.Stages() {
		res := reviewStage(st.Name, p.Input)
		combined = c.CombineStageResult(combined, st, res)
		if c.ShouldStopEarly(res, st) {
			break
		}
	}
	return combined, nil
}

func reviewStage(stage, src string) *tool.ExecutionResult {
	var findings []string
	switch stage {
	case stageSyntax:
		findings = checkBrackets(src)
	case stageStyle:
		findings = checkStyle(src)
	case stageComplexity:
		findings = checkNesting(src)
	}
	res := &tool.ExecutionResult{
		Success:    true,
		Output:     strings.Join(findings, "\n"),
		Confidence: 0.9,
		Metadata: tool.Metadata{
			"stage":    tool.String(stage),
			"findings": tool.Int(len(findings)),
		},
	}
	if len(findings) > 0 {
		res.Confidence = 0.8
	}
	return res
}

func checkBrackets(src string) []string {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	var findings []string
	line := 1
	for _, r := range src {
		switch r {
		case '\n':
			line++
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				findings = append(findings, fmt.Sprintf("syntax: line %d: unexpected %q", line, r))
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		findings = append(findings, fmt.Sprintf("syntax: %d unclosed bracket(s)", len(stack)))
	}
	return findings
}

func checkStyle(src string) []string {
	var findings []string
	tabs, spaces := false, false
	for i, l := range strings.Split(src, "\n") {
		if len(l) > maxLineLength {
			findings = append(findings, fmt.Sprintf("style: line %d: %d characters exceeds %d", i+1, len(l), maxLineLength))
		}
		if strings.TrimRight(l, " \t") != l {
			findings = append(findings, fmt.Sprintf("style: line %d: trailing whitespace", i+1))
		}
		if strings.HasPrefix(l, "\t") {
			tabs = true
		} else if strings.HasPrefix(l, "  ") {
			spaces = true
		}
		if strings.Contains(l, "TODO") || strings.Contains(l, "FIXME") {
			findings = append(findings, fmt.Sprintf("style: line %d: unresolved marker", i+1))
		}
	}
	if tabs && spaces {
		findings = append(findings, "style: mixed tab and space indentation")
	}
	return findings
}

func checkNesting(src string) []string {
	var findings []string
	depth, deepest, deepestLine := 0, 0, 0
	line := 1
	for _, r := range src {
		switch r {
		case '\n':
			line++
		case '{':
			depth++
			if depth > deepest {
				deepest, deepestLine = depth, line
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	if deepest > maxNesting {
		findings = append(findings, fmt.Sprintf("complexity: line %d: nesting depth %d exceeds %d", deepestLine, deepest, maxNesting))
	}
	return findings
}

func (c *CodeReviewer) Stages() []tool.Stage {
	return []tool.Stage{
		{Name: stageSyntax, Values: map[string]any{"stage": stageSyntax}},
		{Name: stageStyle, Values: map[string]any{"stage": stageStyle}},
		{Name: stageComplexity, Values: map[string]any{"stage": stageComplexity}},
	}
}

func (c *CodeReviewer) CombineStageResult(combined *tool.ExecutionResult, stage tool.Stage, res *tool.ExecutionResult) *tool.ExecutionResult {
	if combined == nil {
		combined = &tool.ExecutionResult{Success: true, Confidence: 1}
	}
	run, _ := combined.Metadata["stages_run"].AsNumber()
	found, _ := res.Metadata["findings"].AsNumber()

	out := *combined
	out.Metadata = combined.Metadata.Merge(tool.Metadata{
		"stages_run":             tool.Number(run + 1),
		"findings_" + stage.Name: tool.Number(found),
	})
	if res.Output != "" {
		if out.Output != "" {
			out.Output += "\n"
		}
		out.Output += res.Output
	}
	out.Confidence = min(out.Confidence, res.Confidence)
	return &out
}

// PrepareNextStage switches the stage value and keeps the rest.
func (c *CodeReviewer) PrepareNextStage(_ *tool.ExecutionResult, current tool.Parameters, next tool.Stage) tool.Parameters {
	return current.WithValues(next.Values)
}

// ShouldStopEarly stops after a syntax stage that found problems; style
// and nesting reports on unbalanced source are noise.
func (c *CodeReviewer) ShouldStopEarly(res *tool.ExecutionResult, stage tool.Stage) bool {
	n, _ := res.Metadata["findings"].AsNumber()
	return stage.Name == stageSyntax && n > 0
}
