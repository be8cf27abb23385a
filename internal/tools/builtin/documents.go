package builtin

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const DocumentAnalyzerID = "document-analyzer"

var documentKinds = map[string]string{
	".md": "markdown", ".txt": "text", ".pdf": "pdf", ".doc": "word", ".docx": "word",
	".csv": "table", ".tsv": "table", ".xlsx": "spreadsheet", ".json": "data", ".yaml": "data",
	".yml": "data", ".go": "source", ".py": "source", ".ts": "source", ".js": "source",
	".png": "image", ".jpg": "image", ".jpeg": "image",
}

// DocumentAnalyzer profiles attached documents, one parallel unit each.
type DocumentAnalyzer struct {
	schemaParams
}

// NewDocumentAnalyzer returns the document analyzer tool.
func NewDocumentAnalyzer(v *validation.SchemaValidator) *tool.Tool {
	h := &DocumentAnalyzer{schemaParams{
		key: DocumentAnalyzerID,
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input":     map[string]any{"type": "string"},
				"documents": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"document":  map[string]any{"type": "string"},
				"content":   map[string]any{"type": "string"},
			},
		},
		validator: v,
	}}
	return &tool.Tool{
		ID:               DocumentAnalyzerID,
		Name:             "Document Analyzer",
		Description:      "Profiles attached documents: type, size and key terms",
		Category:         tool.CategoryFileProcessing,
		Capabilities:     []tool.Capability{tool.CapabilityExtract, tool.CapabilityAnalysis},
		RequiredContext:  []tool.Requirement{tool.RequireFileAttachment},
		Complexity:       tool.ComplexityMedium,
		IsParallelizable: true,
		Handler:          h,
		Parallel:         h,
	}
}

// Execute profiles the document named by "document" with its optional
// "content". Without a document value every attachment is profiled in turn.
func (d *DocumentAnalyzer) Execute(ctx context.Context, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name := p.String("document"); name != "" {
		return profileDocument(name, p.String("content")), nil
	}

	names := stringList(p, "documents")
	if len(names) == 0 {
		names = conv.Attachments
	}
	if len(names) == 0 {
		return &tool.ExecutionResult{Success: false, Output: "no documents to analyze"}, nil
	}
	results := make([]*tool.ExecutionResult, len(names))
	for i, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = profileDocument(n, "")
	}
	return d.CombineResults(results), nil
}

func profileDocument(name, content string) *tool.ExecutionResult {
	kind, ok := documentKinds[strings.ToLower(path.Ext(name))]
	if !ok {
		kind = "unknown"
	}
	md := tool.Metadata{
		"document": tool.String(name),
		"kind":     tool.String(kind),
	}
	line := fmt.Sprintf("%s (%s)", name, kind)
	confidence := 0.5
	if content != "" {
		ws := words(content)
		md["words"] = tool.Int(len(ws))
		md["lines"] = tool.Int(strings.Count(content, "\n") + 1)
		if kws := keywords(content, 5); len(kws) > 0 {
			line += ": " + strings.Join(kws, ", ")
		}
		confidence = 0.8
	}
	if kind == "unknown" {
		confidence -= 0.2
	}
	return &tool.ExecutionResult{Success: true, Output: line, Confidence: confidence, Metadata: md}
}

// SplitParameters yields one unit per entry of "documents". An empty list
// runs the whole request directly over the attachments.
func (d *DocumentAnalyzer) SplitParameters(p tool.Parameters) []tool.Parameters {
	names := stringList(p, "documents")
	units := make([]tool.Parameters, len(names))
	for i, n := range names {
		units[i] = p.With("document", n)
	}
	return units
}

func (d *DocumentAnalyzer) CombineResults(results []*tool.ExecutionResult) *tool.ExecutionResult {
	lines := make([]string, len(results))
	kinds := make(tool.Metadata)
	total := 0.0
	for i, r := range results {
		lines[i] = r.Output
		total += r.Confidence
		if k, ok := r.Metadata["kind"].AsString(); ok {
			n, _ := kinds[k].AsNumber()
			kinds[k] = tool.Number(n + 1)
		}
	}
	return &tool.ExecutionResult{
		Success:    true,
		Output:     strings.Join(lines, "\n"),
		Confidence: total / float64(len(results)),
		Metadata: tool.Metadata{
			"documents": tool.Int(len(results)),
			"kinds":     tool.Map(kinds),
		},
	}
}
