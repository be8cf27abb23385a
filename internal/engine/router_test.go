package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/history"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/registry"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

type routerFixture struct {
	router   *Router
	tracker  *performance.Tracker
	usage    *history.UsageLog
	learning *history.LearningStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureWithMonitor(t, nil)
}

func newRouterFixtureWithMonitor(t *testing.T, monitor performance.SystemMonitor) *routerFixture {
	t.Helper()
	logger := zap.NewNop()
	tracker := performance.NewTracker(config.DefaultScoring(), monitor, prometheus.NewRegistry(), logger)
	usage := history.NewUsageLog(history.DefaultMaxRecords)
	learning := history.NewLearningStore()
	r, err := NewRouter(Options{
		Registry: registry.New(tracker, logger),
		Tracker:  tracker,
		Usage:    usage,
		Learning: learning,
		Logger:   logger,
	})
	require.NoError(t, err)
	return &routerFixture{router: r, tracker: tracker, usage: usage, learning: learning}
}

func (f *routerFixture) register(t *testing.T, tl *tool.Tool) {
	t.Helper()
	require.NoError(t, f.router.Register(tl))
}

func TestNewRouter_RequiresRegistryAndTracker(t *testing.T) {
	_, err := NewRouter(Options{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRouter_MetricsEntryPerRegisteredTool(t *testing.T) {
	f := newRouterFixture(t)
	for _, id := range []string{"alpha", "beta", "gamma"} {
		f.register(t, &tool.Tool{ID: id, Name: id, Category: tool.CategoryAnalysis, Handler: &funcHandler{}})
	}
	// re-registering must not create a second record
	f.register(t, &tool.Tool{ID: "beta", Name: "beta v2", Category: tool.CategoryAnalysis, Handler: &funcHandler{}})

	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, f.tracker.IDs())
	for _, id := range f.tracker.IDs() {
		m, ok := f.router.Metrics(id)
		require.True(t, ok)
		assert.Equal(t, performance.NewMetrics(), m)
	}
	beta, ok := f.router.Lookup("beta")
	require.True(t, ok)
	assert.Equal(t, "beta v2", beta.Name)
}

func TestRouter_SuggestDebugScenario(t *testing.T) {
	f := newRouterFixture(t)
	input := "please debug this function"
	ca := analysis.Analyze(input)

	f.register(t, &tool.Tool{
		ID:           "code-reviewer",
		Name:         "Code Reviewer",
		Category:     tool.CategoryCodeProcessing,
		Complexity:   ca.Complexity,
		Capabilities: []tool.Capability{tool.CapabilityAnalysis},
		Handler:      &funcHandler{},
	})
	f.register(t, &tool.Tool{
		ID:       "poet",
		Name:     "Poet",
		Category: tool.CategoryCreative,
		Handler:  &funcHandler{},
	})

	resp, err := f.router.Suggest(context.Background(), SuggestRequest{
		Input:        input,
		Conversation: tool.ConversationContext{Workspace: tool.WorkspaceCode},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, analysis.DomainProgramming, resp.Analysis.Domain)
	assert.Equal(t, analysis.IntentProblemSolving, resp.Intent)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "code-reviewer", resp.Suggestions[0].ToolID)
	assert.GreaterOrEqual(t, resp.Suggestions[0].Priority, tool.PriorityMedium)

	contexts := f.learning.Contexts()
	require.Len(t, contexts, 1)
	assert.Equal(t, []string{"code-reviewer"}, contexts[0].SuggestedTools)
}

func TestRouter_SuggestHonoursDisabledTools(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "code-reviewer", Category: tool.CategoryCodeProcessing, Handler: &funcHandler{}})

	resp, err := f.router.Suggest(context.Background(), SuggestRequest{
		Input:       "please debug this function",
		Preferences: &tool.Preferences{DisabledTools: []string{"code-reviewer"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Nil(t, resp.Suggestions[0].Tool)
	assert.Equal(t, tool.PriorityLow, resp.Suggestions[0].Priority)
}

func TestRouter_SuggestCancelled(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.router.Suggest(ctx, SuggestRequest{Input: "hello"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.learning.Contexts())
}

func TestRouter_ExecuteSuccess(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "echo", Category: tool.CategoryTextProcessing, Handler: &funcHandler{}})

	exec, err := f.router.Execute(context.Background(), "echo", tool.Parameters{Input: "hi"}, tool.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, tool.StrategyDirect, exec.Strategy)
	assert.Equal(t, "hi", exec.Result.Output)
	assert.NotEmpty(t, exec.InvocationID)

	m, _ := f.router.Metrics("echo")
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Equal(t, 1, m.SuccessfulExecutions)
	assert.Equal(t, 1.0, m.SuccessRate)

	require.Equal(t, 1, f.usage.Len())
	assert.Equal(t, exec.InvocationID, f.usage.Records()[0].InvocationID)
	execs := f.learning.Executions()
	require.Len(t, execs, 1)
	assert.True(t, execs[0].Success)
}

func TestRouter_GateFailuresLeaveStateUntouched(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "picky", Handler: &funcHandler{invalid: true}})
	f.register(t, &tool.Tool{
		ID:              "needs-files",
		RequiredContext: []tool.Requirement{tool.RequireFileAttachment},
		Handler:         &funcHandler{},
	})

	tests := []struct {
		id   string
		kind error
	}{
		{"missing", tool.ErrToolNotAvailable},
		{"picky", tool.ErrInvalidParameters},
		{"needs-files", tool.ErrContextNotSuitable},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := f.router.Execute(context.Background(), tt.id, tool.Parameters{Input: "x"}, tool.ConversationContext{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			var terr *tool.Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.id, terr.ToolID)
		})
	}

	for _, id := range []string{"picky", "needs-files"} {
		m, _ := f.router.Metrics(id)
		assert.Equal(t, performance.NewMetrics(), m, id)
	}
	assert.Zero(t, f.usage.Len())
	assert.Empty(t, f.learning.Executions())
}

func TestRouter_ExecuteFailureRecorded(t *testing.T) {
	f := newRouterFixture(t)
	boom := errors.New("upstream timeout")
	f.register(t, &tool.Tool{ID: "flaky", Handler: &funcHandler{
		exec: func(context.Context, tool.Parameters) (*tool.ExecutionResult, error) { return nil, boom },
	}})

	_, err := f.router.Execute(context.Background(), "flaky", tool.Parameters{}, tool.ConversationContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrExecutionFailed)
	assert.ErrorIs(t, err, boom)

	m, _ := f.router.Metrics("flaky")
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Zero(t, m.SuccessfulExecutions)
	assert.Equal(t, 1, f.usage.Len())
	execs := f.learning.Executions()
	require.Len(t, execs, 1)
	assert.False(t, execs[0].Success)
	assert.Contains(t, execs[0].Error, "upstream timeout")

	// a 0% success rate now fails admission
	_, err = f.router.Execute(context.Background(), "flaky", tool.Parameters{}, tool.ConversationContext{})
	assert.ErrorIs(t, err, tool.ErrPerformanceThresholdNotMet)
	m, _ = f.router.Metrics("flaky")
	assert.Equal(t, 1, m.TotalExecutions)
}

func TestRouter_UnsuccessfulResultCountsAsFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "soft-fail", Handler: &funcHandler{
		exec: func(context.Context, tool.Parameters) (*tool.ExecutionResult, error) {
			return &tool.ExecutionResult{Success: false, Output: "nothing found"}, nil
		},
	}})

	exec, err := f.router.Execute(context.Background(), "soft-fail", tool.Parameters{}, tool.ConversationContext{})
	require.NoError(t, err)
	assert.False(t, exec.Result.Success)

	m, _ := f.router.Metrics("soft-fail")
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Zero(t, m.SuccessfulExecutions)
}

func TestRouter_CancelledInvocationRecordedAsFailure(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.register(t, &tool.Tool{ID: "slow", Handler: &funcHandler{
		exec: func(ctx context.Context, _ tool.Parameters) (*tool.ExecutionResult, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}})

	_, err := f.router.Execute(ctx, "slow", tool.Parameters{}, tool.ConversationContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrExecutionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "invocation cancelled")

	m, _ := f.router.Metrics("slow")
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Zero(t, m.SuccessfulExecutions)
}

func TestRouter_ExecuteUsesSelectedStrategy(t *testing.T) {
	f := newRouterFixture(t)
	c := &pipeline{}
	f.register(t, &tool.Tool{
		ID:                "writer",
		SupportsCascading: true,
		Handler:           &funcHandler{exec: stageEcho},
		Cascading:         c,
	})

	exec, err := f.router.Execute(context.Background(), "writer", tool.Parameters{PreferCascading: true}, tool.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, tool.StrategyCascading, exec.Strategy)
	assert.Equal(t, "draft|refine|polish", exec.Result.Output)
	assert.Equal(t, exec.Elapsed, exec.Result.ExecutionTime)
}

func TestRouter_ObserversAndUnsubscribe(t *testing.T) {
	f := newRouterFixture(t)
	var first, second []EventType
	unsubscribe := f.router.Subscribe(ObserverFunc(func(e Event) {
		assert.NotEmpty(t, e.ID)
		first = append(first, e.Type)
	}))
	f.router.Subscribe(ObserverFunc(func(e Event) { second = append(second, e.Type) }))

	f.register(t, &tool.Tool{ID: "echo", Handler: &funcHandler{}})
	_, err := f.router.Execute(context.Background(), "echo", tool.Parameters{Input: "x"}, tool.ConversationContext{})
	require.NoError(t, err)

	unsubscribe()
	f.router.Unregister("echo")

	assert.Equal(t, []EventType{EventToolRegistered, EventExecutionCompleted}, first)
	assert.Equal(t, []EventType{EventToolRegistered, EventExecutionCompleted, EventToolUnregistered}, second)
}

func TestRouter_ExecutionEventCarriesMetrics(t *testing.T) {
	f := newRouterFixture(t)
	var got Event
	f.router.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventExecutionCompleted {
			got = e
		}
	}))
	f.register(t, &tool.Tool{ID: "echo", Handler: &funcHandler{}})

	exec, err := f.router.Execute(context.Background(), "echo", tool.Parameters{Input: "secret"},
		tool.ConversationContext{Workspace: tool.WorkspaceResearch})
	require.NoError(t, err)

	assert.Equal(t, exec.InvocationID, got.InvocationID)
	assert.Equal(t, "echo", got.ToolID)
	assert.True(t, got.Success)
	assert.Equal(t, history.Digest("secret"), got.InputDigest)
	assert.Equal(t, tool.WorkspaceResearch, got.Workspace)
	assert.Equal(t, 1, got.Metrics.TotalExecutions)
}

func TestRouter_ResetThenExport(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "echo", Category: tool.CategoryTextProcessing, Handler: &funcHandler{}})
	for i := 0; i < 3; i++ {
		_, err := f.router.Execute(context.Background(), "echo", tool.Parameters{Input: "x"}, tool.ConversationContext{})
		require.NoError(t, err)
	}
	_, err := f.router.Suggest(context.Background(), SuggestRequest{Input: "summarize this"})
	require.NoError(t, err)

	before := f.router.Export()
	assert.Len(t, before.UsageHistory, 3)
	assert.Len(t, before.ExecutionRecords, 3)
	assert.Len(t, before.ContextRecords, 1)

	f.router.Reset()

	after := f.router.Export()
	assert.NotNil(t, after.UsageHistory)
	assert.Empty(t, after.UsageHistory)
	assert.Empty(t, after.ExecutionRecords)
	assert.Empty(t, after.ContextRecords)
	require.Len(t, after.Tools, 1)
	assert.Equal(t, "echo", after.Tools[0].ID)
	assert.Equal(t, performance.NewMetrics(), after.Metrics["echo"])
}

func TestRouter_Analytics(t *testing.T) {
	f := newRouterFixture(t)
	f.register(t, &tool.Tool{ID: "echo", Handler: &funcHandler{}})
	f.register(t, &tool.Tool{ID: "idle", Handler: &funcHandler{}})
	for i := 0; i < 2; i++ {
		_, err := f.router.Execute(context.Background(), "echo", tool.Parameters{}, tool.ConversationContext{})
		require.NoError(t, err)
	}

	a := f.router.Analytics()
	assert.Equal(t, 2, a.RegisteredTools)
	assert.Equal(t, 2, a.UsageRecords)
	assert.Equal(t, 2, a.TotalExecutions)
	assert.Equal(t, 1.0, a.SuccessRate)
	require.NotEmpty(t, a.MostUsed)
	assert.Equal(t, "echo", a.MostUsed[0].ToolID)
}

// loadMonitor reports busy or idle CPU on demand.
type loadMonitor struct {
	busy atomic.Bool
}

func (m *loadMonitor) Sample() performance.SystemSample {
	if m.busy.Load() {
		return performance.SystemSample{CPUUtilization: 0.95}
	}
	return performance.SystemSample{CPUUtilization: 0.1}
}

func TestRouter_ToolRecoversAfterLoadSpike(t *testing.T) {
	mon := &loadMonitor{}
	f := newRouterFixtureWithMonitor(t, mon)
	f.register(t, &tool.Tool{ID: "t", Category: tool.CategoryTextProcessing, Handler: &funcHandler{}})
	ctx := context.Background()

	mon.busy.Store(true)
	for i := 0; i < 4; i++ {
		_, err := f.router.Execute(ctx, "t", tool.Parameters{Input: "x"}, tool.ConversationContext{})
		require.NoError(t, err)
		f.tracker.SampleLoad()
	}

	_, err := f.router.Execute(ctx, "t", tool.Parameters{Input: "x"}, tool.ConversationContext{})
	require.ErrorIs(t, err, tool.ErrToolNotAvailable)
	assert.Empty(t, f.router.BuildContext("x", tool.ConversationContext{}, nil).AvailableTools)

	mon.busy.Store(false)
	for i := 0; i < 3; i++ {
		f.tracker.SampleLoad()
	}

	assert.Len(t, f.router.BuildContext("x", tool.ConversationContext{}, nil).AvailableTools, 1)
	_, err = f.router.Execute(ctx, "t", tool.Parameters{Input: "x"}, tool.ConversationContext{})
	require.NoError(t, err)
	m, _ := f.router.Metrics("t")
	assert.Equal(t, 5, m.TotalExecutions)
}

func TestRouter_CancelDuringParallelFanOut(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started, sawDone atomic.Int32
	s := &splitter{}
	f.register(t, &tool.Tool{
		ID:               "fan",
		IsParallelizable: true,
		Parallel:         s,
		Handler: &funcHandler{exec: func(ctx context.Context, _ tool.Parameters) (*tool.ExecutionResult, error) {
			if started.Add(1) == 3 {
				cancel()
			}
			<-ctx.Done()
			sawDone.Add(1)
			return nil, ctx.Err()
		}},
	})

	p := tool.Parameters{AllowParallel: true}.With("parts", []string{"a", "b", "c"})
	_, err := f.router.Execute(ctx, "fan", p, tool.ConversationContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrExecutionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), sawDone.Load())
	assert.Zero(t, s.combineCalls.Load())

	m, _ := f.router.Metrics("fan")
	assert.Equal(t, 1, m.TotalExecutions)
	assert.Zero(t, m.SuccessfulExecutions)
	execs := f.learning.Executions()
	require.Len(t, execs, 1)
	assert.False(t, execs[0].Success)
	assert.Equal(t, tool.StrategyParallel, execs[0].Strategy)
}
