// Package remote adapts tools served over gRPC. A remote tool is a unary
// method taking and returning google.protobuf.Struct.
//
// Request fields: input (string), values (struct), workspace_type (string),
// attachments (list), network_available (bool).
// Response fields: success (bool), output (string), confidence (number),
// metadata (struct). A response without success counts as successful.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

// DefaultTimeout bounds a single remote call when none is configured.
const DefaultTimeout = 15 * time.Second

var ErrEmptyResponse = errors.New("remote tool returned an empty response")

// Handler invokes one remote method.
type Handler struct {
	id        string
	method    string
	schema    map[string]any
	conn      grpc.ClientConnInterface
	validator *validation.SchemaValidator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTool builds a tool descriptor for rt whose handler calls conn.
func NewTool(rt config.RemoteTool, conn grpc.ClientConnInterface, v *validation.SchemaValidator, timeout time.Duration, logger *zap.Logger) (*tool.Tool, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	category := tool.CategoryAnalysis
	if rt.Category != "" {
		c, err := tool.ParseCategory(rt.Category)
		if err != nil {
			return nil, fmt.Errorf("remote tool %q: %w", rt.ID, err)
		}
		category = c
	}
	complexity := tool.ComplexityMedium
	if rt.Complexity != "" {
		c, err := tool.ParseComplexity(rt.Complexity)
		if err != nil {
			return nil, fmt.Errorf("remote tool %q: %w", rt.ID, err)
		}
		complexity = c
	}
	required, err := requirements(rt.RequiredContext)
	if err != nil {
		return nil, fmt.Errorf("remote tool %q: %w", rt.ID, err)
	}
	optimal, err := requirements(rt.OptimalContext)
	if err != nil {
		return nil, fmt.Errorf("remote tool %q: %w", rt.ID, err)
	}
	caps := make([]tool.Capability, len(rt.Capabilities))
	for i, c := range rt.Capabilities {
		caps[i] = tool.Capability(c)
	}

	name := rt.Name
	if name == "" {
		name = rt.ID
	}
	return &tool.Tool{
		ID:              rt.ID,
		Name:            name,
		Description:     rt.Description,
		Category:        category,
		Capabilities:    caps,
		RequiredContext: required,
		OptimalContext:  optimal,
		Complexity:      complexity,
		Handler: &Handler{
			id:        rt.ID,
			method:    rt.Method,
			schema:    rt.Schema,
			conn:      conn,
			validator: v,
			timeout:   timeout,
			logger:    logger,
		},
	}, nil
}

func requirements(names []string) ([]tool.Requirement, error) {
	out := make([]tool.Requirement, 0, len(names))
	for _, n := range names {
		r, err := tool.ParseRequirement(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Execute calls the remote method once.
func (h *Handler) Execute(ctx context.Context, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	req, err := encodeRequest(p, conv)
	if err != nil {
		return nil, fmt.Errorf("Execute: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := h.conn.Invoke(ctx, h.method, req, resp); err != nil {
		h.logger.Warn("remote tool call failed",
			zap.String("tool_id", h.id),
			zap.String("method", h.method),
			zap.Error(err),
		)
		return nil, fmt.Errorf("Execute: %w", err)
	}
	return decodeResponse(resp)
}

// ValidateParameters checks params against the declared schema. Without a
// schema any non-empty input is accepted.
func (h *Handler) ValidateParameters(p tool.Parameters) bool {
	if h.schema == nil {
		return p.Input != ""
	}
	return h.validator.Valid(h.id, h.schema, p)
}

// Initialize compiles the schema and asks the connection to start
// connecting.
func (h *Handler) Initialize(context.Context) error {
	if h.schema != nil {
		if _, err := validation.Compile(h.schema); err != nil {
			return fmt.Errorf("remote tool %q: %w", h.id, err)
		}
	}
	if c, ok := h.conn.(interface{ Connect() }); ok {
		c.Connect()
	}
	return nil
}

func encodeRequest(p tool.Parameters, conv tool.ConversationContext) (*structpb.Struct, error) {
	attachments := make([]any, len(conv.Attachments))
	for i, a := range conv.Attachments {
		attachments[i] = a
	}
	values := make(map[string]any, len(p.Values))
	for k, v := range p.Values {
		values[k] = jsonCompatible(v)
	}
	return structpb.NewStruct(map[string]any{
		"input":             p.Input,
		"values":            values,
		"workspace_type":    string(conv.Workspace.Normalize()),
		"attachments":       attachments,
		"network_available": conv.NetworkAvailable,
	})
}

// jsonCompatible converts the typed slices handlers commonly use into
// forms structpb accepts.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = jsonCompatible(inner)
		}
		return out
	}
	return v
}

func decodeResponse(resp *structpb.Struct) (*tool.ExecutionResult, error) {
	fields := resp.GetFields()
	if len(fields) == 0 {
		return nil, ErrEmptyResponse
	}
	res := &tool.ExecutionResult{Success: true}
	if v, ok := fields["success"]; ok {
		res.Success = v.GetBoolValue()
	}
	res.Output = fields["output"].GetStringValue()
	res.Confidence = fields["confidence"].GetNumberValue()
	if md := fields["metadata"].GetStructValue(); md != nil {
		res.Metadata = make(tool.Metadata, len(md.GetFields()))
		for k, v := range md.AsMap() {
			res.Metadata[k] = tool.ValueOf(v)
		}
	}
	return res, nil
}
