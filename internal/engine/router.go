// Package engine routes requests to tools: it builds the per-request
// context, ranks suggestions, validates and executes invocations with the
// selected strategy, and feeds outcomes back into performance tracking and
// usage history.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/engine/checks"
	"github.com/triage-ai/palisade/services/tool_router/internal/history"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/recommend"
	"github.com/triage-ai/palisade/services/tool_router/internal/registry"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/tracing"
)

var ErrMissingDependency = errors.New("router requires a registry and a tracker")

// Options carries the router's collaborators. Registry and Tracker are
// required; every other field has a default.
type Options struct {
	Registry    *registry.Registry
	Tracker     *performance.Tracker
	Usage       *history.UsageLog
	Learning    *history.LearningStore
	Recommender *recommend.Engine
	Checks      []checks.Check
	Temporal    tool.TemporalSource
	Monitor     performance.SystemMonitor
	Tracer      trace.Tracer
	Logger      *zap.Logger

	MaxParallelism int
	RecentUsage    int
	Now            func() time.Time
}

// Router is the entry point for suggestion and execution requests.
type Router struct {
	registry    *registry.Registry
	tracker     *performance.Tracker
	usage       *history.UsageLog
	learning    *history.LearningStore
	recommender *recommend.Engine
	gate        *checks.Gate
	executor    *Executor
	temporal    tool.TemporalSource
	monitor     performance.SystemMonitor
	tracer      trace.Tracer
	logger      *zap.Logger
	recentUsage int
	now         func() time.Time

	observers observerList
}

// NewRouter wires a router from opts.
func NewRouter(opts Options) (*Router, error) {
	if opts.Registry == nil || opts.Tracker == nil {
		return nil, ErrMissingDependency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Usage == nil {
		opts.Usage = history.NewUsageLog(history.DefaultMaxRecords)
	}
	if opts.Learning == nil {
		opts.Learning = history.NewLearningStore()
	}
	if opts.Recommender == nil {
		opts.Recommender = recommend.New(opts.Tracker.Scoring())
	}
	if opts.Temporal == nil {
		opts.Temporal = tool.ClockTemporalSource{}
	}
	if opts.Monitor == nil {
		opts.Monitor = performance.StaticMonitor{}
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.RecentUsage <= 0 {
		opts.RecentUsage = DefaultRecentUsage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Router{
		registry:    opts.Registry,
		tracker:     opts.Tracker,
		usage:       opts.Usage,
		learning:    opts.Learning,
		recommender: opts.Recommender,
		gate:        checks.NewGate(opts.Checks, opts.Logger),
		executor:    NewExecutor(opts.MaxParallelism, opts.Logger),
		temporal:    opts.Temporal,
		monitor:     opts.Monitor,
		tracer:      opts.Tracer,
		logger:      opts.Logger,
		recentUsage: opts.RecentUsage,
		now:         opts.Now,
	}, nil
}

// Subscribe registers o for every subsequent event and returns a function
// that removes it.
func (r *Router) Subscribe(o Observer) func() {
	return r.observers.add(o)
}

func (r *Router) emit(e Event) {
	e.ID = uuid.New().String()
	e.Timestamp = r.now()
	r.observers.notify(e)
}

// Register adds or replaces a tool.
func (r *Router) Register(t *tool.Tool) error {
	if err := r.registry.Register(t); err != nil {
		return err
	}
	r.emit(Event{Type: EventToolRegistered, ToolID: t.ID})
	return nil
}

// Unregister removes a tool. Its metrics are kept.
func (r *Router) Unregister(id string) bool {
	if !r.registry.Unregister(id) {
		return false
	}
	r.emit(Event{Type: EventToolUnregistered, ToolID: id})
	return true
}

// Lookup returns a registered tool.
func (r *Router) Lookup(id string) (*tool.Tool, bool) {
	return r.registry.Lookup(id)
}

// Tools lists registered tools by id.
func (r *Router) Tools() []*tool.Tool {
	return r.registry.List()
}

// Metrics returns the current performance record of id.
func (r *Router) Metrics(id string) (performance.Metrics, bool) {
	return r.tracker.Get(id)
}

// BuildContext snapshots everything a suggestion request needs.
func (r *Router) BuildContext(input string, conv tool.ConversationContext, prefs *tool.Preferences) *tool.ToolContext {
	return &tool.ToolContext{
		Input:          input,
		Conversation:   conv,
		Temporal:       r.temporal.Current(),
		Preferences:    prefs,
		AvailableTools: r.registry.ListAvailable(conv, input),
		System:         r.monitor.Sample(),
		RecentUsage:    r.usage.Recent(r.recentUsage),
	}
}

// SuggestRequest is the input of Suggest.
type SuggestRequest struct {
	Input        string                   `json:"input"`
	Conversation tool.ConversationContext `json:"conversation"`
	Preferences  *tool.Preferences        `json:"preferences,omitempty"`
}

// SuggestResponse is the ranked outcome of Suggest.
type SuggestResponse struct {
	RequestID   string                   `json:"request_id"`
	Analysis    analysis.ContextAnalysis `json:"analysis"`
	Intent      analysis.Intent          `json:"intent"`
	Suggestions []tool.Suggestion        `json:"suggestions"`
}

// Suggest analyses the request and ranks the available tools. The request
// and its suggestions are appended to the learning store.
func (r *Router) Suggest(ctx context.Context, req SuggestRequest) (*SuggestResponse, error) {
	_, span := tracing.SuggestSpan(ctx, r.tracer)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tc := r.BuildContext(req.Input, req.Conversation, req.Preferences)
	ca := analysis.AnalyzeContext(tc)
	intent := analysis.PredictIntent(tc)
	suggestions := r.recommender.Generate(intent, ca, tc.AvailableTools, r.tracker.Snapshot(), tc.Preferences)

	rec := history.NewContextRecord(req.Input, req.Conversation, ca, intent, suggestions, r.now())
	r.learning.RecordContext(rec)

	r.logger.Debug("suggestions generated",
		zap.String("request_id", rec.ID),
		zap.String("intent", string(intent)),
		zap.String("domain", string(ca.Domain)),
		zap.Int("available_tools", len(tc.AvailableTools)),
		zap.Strings("suggested", rec.SuggestedTools),
	)
	r.emit(Event{
		Type:           EventSuggestionsGenerated,
		InputDigest:    rec.InputDigest,
		Workspace:      rec.Workspace,
		Intent:         string(intent),
		SuggestedTools: rec.SuggestedTools,
	})

	return &SuggestResponse{
		RequestID:   rec.ID,
		Analysis:    ca,
		Intent:      intent,
		Suggestions: suggestions,
	}, nil
}

// Execution is a completed invocation.
type Execution struct {
	InvocationID string                `json:"invocation_id"`
	ToolID       string                `json:"tool_id"`
	Strategy     tool.Strategy         `json:"strategy"`
	Elapsed      time.Duration         `json:"elapsed"`
	Result       *tool.ExecutionResult `json:"result"`
}

// Execute validates and runs one invocation of toolID.
//
// Gate failures return a *tool.Error of the failing check's kind and leave
// metrics and history untouched. Once the gate passes the invocation is
// logged, and its outcome and elapsed time are recorded whether it
// succeeds, fails or is cancelled. Runtime failures are returned as
// ErrExecutionFailed. A result with Success=false is returned without
// error but counts as a failure.
func (r *Router) Execute(ctx context.Context, toolID string, params tool.Parameters, conv tool.ConversationContext) (*Execution, error) {
	ctx, span := tracing.ToolSpan(ctx, r.tracer, toolID)

	t, _ := r.registry.Lookup(toolID)
	metrics, _ := r.tracker.Get(toolID)
	if err := r.gate.Evaluate(ctx, &checks.Request{
		ToolID:       toolID,
		Tool:         t,
		Params:       params,
		Conversation: conv,
		Metrics:      metrics,
		Scoring:      r.tracker.Scoring(),
	}); err != nil {
		tracing.EndExecution(span, "", 0, err)
		r.logger.Info("execution rejected", zap.String("tool_id", toolID), zap.Error(err))
		return nil, err
	}

	strategy := SelectStrategy(t, params)
	usage := history.NewUsageRecord(t, params.Input, conv, r.temporal.Current(), r.now())
	r.usage.Append(usage)

	start := r.now()
	res, runErr := r.executor.Run(ctx, strategy, t, params, conv)
	elapsed := r.now().Sub(start)

	var err error
	if runErr != nil {
		err = executionError(ctx, toolID, runErr)
	}
	success := err == nil && res.Success

	updated := r.tracker.Record(toolID, elapsed, success)

	var confidence float64
	if res != nil {
		res.ExecutionTime = elapsed
		confidence = res.Confidence
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	r.learning.RecordExecution(history.ExecutionRecord{
		InvocationID: usage.InvocationID,
		Timestamp:    usage.Timestamp,
		ToolID:       toolID,
		Strategy:     strategy,
		Elapsed:      elapsed,
		Success:      success,
		Confidence:   confidence,
		Error:        errText,
	})
	r.emit(Event{
		Type:         EventExecutionCompleted,
		ToolID:       toolID,
		InvocationID: usage.InvocationID,
		InputDigest:  usage.Context.InputDigest,
		Workspace:    usage.Context.Workspace,
		Strategy:     strategy,
		Success:      success,
		Elapsed:      elapsed,
		Confidence:   confidence,
		Error:        errText,
		Metrics:      updated,
	})
	tracing.EndExecution(span, string(strategy), elapsed, err)

	fields := []zap.Field{
		zap.String("tool_id", toolID),
		zap.String("invocation_id", usage.InvocationID),
		zap.String("strategy", string(strategy)),
		zap.Bool("success", success),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		r.logger.Warn("execution failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	r.logger.Info("execution completed", fields...)

	return &Execution{
		InvocationID: usage.InvocationID,
		ToolID:       toolID,
		Strategy:     strategy,
		Elapsed:      elapsed,
		Result:       res,
	}, nil
}

func executionError(ctx context.Context, toolID string, runErr error) error {
	var terr *tool.Error
	if errors.As(runErr, &terr) && errors.Is(terr.Kind, tool.ErrExecutionFailed) {
		return runErr
	}
	reason := "handler error"
	if ctx.Err() != nil {
		reason = "invocation cancelled"
	}
	return tool.NewError(tool.ErrExecutionFailed, toolID, reason, runErr)
}

// Analytics summarises usage, performance, patterns and optimisation hints.
func (r *Router) Analytics() history.ToolAnalytics {
	return history.BuildAnalytics(
		r.registry.List(),
		r.tracker.Snapshot(),
		r.usage.Records(),
		r.tracker.Scoring(),
		r.now(),
	)
}

// Export returns a full snapshot for external persistence.
func (r *Router) Export() history.ToolDataExport {
	return history.BuildExport(
		r.registry.List(),
		r.tracker.Snapshot(),
		r.usage.Records(),
		r.learning,
		r.now(),
	)
}

// Reset clears usage history and learning records and returns every
// performance record to its defaults. Registered tools are kept.
func (r *Router) Reset() {
	r.usage.Reset()
	r.learning.Reset()
	r.tracker.Reset()
	r.logger.Info("router state reset")
	r.emit(Event{Type: EventStateReset})
}
