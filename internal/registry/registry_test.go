package registry

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

type stubHandler struct {
	initCalls atomic.Int32
	initErr   error
}

func (h *stubHandler) Execute(context.Context, tool.Parameters, tool.ConversationContext) (*tool.ExecutionResult, error) {
	return &tool.ExecutionResult{Success: true}, nil
}

func (h *stubHandler) ValidateParameters(tool.Parameters) bool { return true }

func (h *stubHandler) Initialize(context.Context) error {
	h.initCalls.Add(1)
	return h.initErr
}

func newTestRegistry(monitor performance.SystemMonitor) (*Registry, *performance.Tracker) {
	logger := zap.NewNop()
	tracker := performance.NewTracker(config.DefaultScoring(), monitor, prometheus.NewRegistry(), logger)
	return New(tracker, logger), tracker
}

func newTool(id string, cat tool.Category) *tool.Tool {
	return &tool.Tool{ID: id, Name: id, Category: cat, Handler: &stubHandler{}}
}

func TestRegister_LookupAndOverwrite(t *testing.T) {
	reg, tracker := newTestRegistry(nil)

	if err := reg.Register(newTool("summarizer", tool.CategoryTextProcessing)); err != nil {
		t.Fatal(err)
	}
	if _, ok := tracker.Get("summarizer"); !ok {
		t.Fatal("expected performance record for new tool")
	}

	replacement := newTool("summarizer", tool.CategoryAnalysis)
	replacement.Name = "Summarizer v2"
	if err := reg.Register(replacement); err != nil {
		t.Fatal(err)
	}

	got, ok := reg.Lookup("summarizer")
	if !ok {
		t.Fatal("expected tool to be registered")
	}
	if got.Name != "Summarizer v2" || got.Category != tool.CategoryAnalysis {
		t.Fatalf("expected overwritten descriptor, got %+v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Len())
	}
}

func TestRegister_KeepsExistingMetrics(t *testing.T) {
	reg, tracker := newTestRegistry(nil)
	_ = reg.Register(newTool("a", tool.CategoryAnalysis))
	tracker.Record("a", time.Second, true)

	_ = reg.Register(newTool("a", tool.CategoryAnalysis))
	m, _ := tracker.Get("a")
	if m.TotalExecutions != 1 {
		t.Fatalf("re-registering must not reset metrics, got %+v", m)
	}
}

func TestRegister_StoresCopy(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	orig := newTool("a", tool.CategoryAnalysis)
	orig.Capabilities = []tool.Capability{tool.CapabilityAnalysis}
	_ = reg.Register(orig)

	orig.Capabilities[0] = tool.CapabilitySearch
	got, _ := reg.Lookup("a")
	if got.Capabilities[0] != tool.CapabilityAnalysis {
		t.Fatal("registry descriptor changed through caller's slice")
	}
}

func TestRegister_Invalid(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	if err := reg.Register(&tool.Tool{Handler: &stubHandler{}}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := reg.Register(&tool.Tool{ID: "x"}); !errors.Is(err, ErrMissingHandler) {
		t.Fatalf("expected ErrMissingHandler, got %v", err)
	}
}

func TestRegister_InitializesInBackground(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	h := &stubHandler{initErr: errors.New("model not loaded")}
	_ = reg.Register(&tool.Tool{ID: "a", Handler: h})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.WaitInitialized(ctx); err != nil {
		t.Fatal(err)
	}
	if h.initCalls.Load() != 1 {
		t.Fatalf("expected 1 Initialize call, got %d", h.initCalls.Load())
	}
	if _, ok := reg.Lookup("a"); !ok {
		t.Fatal("failed initialization must not unregister the tool")
	}
}

func TestUnregister(t *testing.T) {
	reg, tracker := newTestRegistry(nil)
	_ = reg.Register(newTool("a", tool.CategoryAnalysis))
	if !reg.Unregister("a") {
		t.Fatal("expected Unregister to report removal")
	}
	if reg.Unregister("a") {
		t.Fatal("expected second Unregister to be a no-op")
	}
	if _, ok := reg.Lookup("a"); ok {
		t.Fatal("expected tool to be gone")
	}
	if _, ok := tracker.Get("a"); !ok {
		t.Fatal("expected metrics to survive unregistration")
	}
}

func TestList_SortedByID(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	for _, id := range []string{"c", "a", "b"} {
		_ = reg.Register(newTool(id, tool.CategoryAnalysis))
	}
	list := reg.List()
	if list[0].ID != "a" || list[1].ID != "b" || list[2].ID != "c" {
		t.Fatalf("unexpected order: %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestListAvailable_RequiredContext(t *testing.T) {
	reg, _ := newTestRegistry(nil)
	web := newTool("web", tool.CategoryResearch)
	web.RequiredContext = []tool.Requirement{tool.RequireNetworkAccess}
	_ = reg.Register(web)
	_ = reg.Register(newTool("plain", tool.CategoryAnalysis))

	offline := reg.ListAvailable(tool.ConversationContext{}, "hello")
	if len(offline) != 1 || offline[0].ID != "plain" {
		t.Fatalf("expected only plain offline, got %d tools", len(offline))
	}

	online := reg.ListAvailable(tool.ConversationContext{NetworkAvailable: true}, "hello")
	if len(online) != 2 {
		t.Fatalf("expected both tools online, got %d", len(online))
	}
}

func TestListAvailable_LowSuccessRateExcluded(t *testing.T) {
	reg, tracker := newTestRegistry(nil)
	_ = reg.Register(newTool("flaky", tool.CategoryAnalysis))
	_ = reg.Register(newTool("steady", tool.CategoryAnalysis))
	for i := 0; i < 10; i++ {
		tracker.Record("flaky", 10*time.Millisecond, i < 3)
	}

	workspaces := []tool.WorkspaceType{tool.WorkspaceGeneral, tool.WorkspaceCode, tool.WorkspaceResearch, tool.WorkspaceCreative}
	for _, ws := range workspaces {
		for _, tl := range reg.ListAvailable(tool.ConversationContext{Workspace: ws}, "anything") {
			if tl.ID == "flaky" {
				t.Fatalf("flaky tool listed for workspace %s", ws)
			}
		}
	}
}

func TestListAvailable_LowAvailabilityExcluded(t *testing.T) {
	busy := performance.StaticMonitor{Metrics: performance.SystemSample{CPUUtilization: 0.99}}
	reg, tracker := newTestRegistry(busy)
	_ = reg.Register(newTool("a", tool.CategoryAnalysis))
	for i := 0; i < 4; i++ {
		tracker.SampleLoad()
	}
	// 1.0 -> 0.2 after four penalties
	if got := reg.ListAvailable(tool.ConversationContext{}, "x"); len(got) != 0 {
		t.Fatalf("expected tool under availability minimum to be hidden, got %d", len(got))
	}
}

func TestListAvailable_Ordering(t *testing.T) {
	reg, tracker := newTestRegistry(nil)
	_ = reg.Register(newTool("z-code", tool.CategoryCodeProcessing))
	_ = reg.Register(newTool("b-analysis", tool.CategoryAnalysis))
	_ = reg.Register(newTool("a-analysis", tool.CategoryAnalysis))
	tracker.Record("b-analysis", time.Second, true)

	got := reg.ListAvailable(tool.ConversationContext{Workspace: tool.WorkspaceCode}, "x")
	ids := []string{got[0].ID, got[1].ID, got[2].ID}
	// code affinity first, then higher overall score, then id
	want := []string{"z-code", "b-analysis", "a-analysis"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order %v, want %v", ids, want)
		}
	}
}

func TestRelevance(t *testing.T) {
	reg, _ := newTestRegistry(nil)

	code := newTool("code", tool.CategoryCodeProcessing)
	code.OptimalContext = []tool.Requirement{tool.RequireCodeContent, tool.RequireRecentMessages}

	text := newTool("text", tool.CategoryTextProcessing)

	tests := []struct {
		name string
		t    *tool.Tool
		conv tool.ConversationContext
		want float64
	}{
		// base + 1/2*0.3 + 0.4
		{"code in code workspace", code, tool.ConversationContext{Workspace: tool.WorkspaceCode}, 1.0},
		{"code in general workspace", code, tool.ConversationContext{}, 0.5},
		{"text in general workspace", text, tool.ConversationContext{}, 0.7},
		{"text in research workspace", text, tool.ConversationContext{Workspace: tool.WorkspaceResearch}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.Relevance(tt.t, tt.conv, "plain words")
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("relevance %v, want %v", got, tt.want)
			}
		})
	}
}

// mockCatalogStore is a test helper.
type mockCatalogStore struct {
	rows []catalogRow
	err  error
}

func (m *mockCatalogStore) ListRemoteTools(context.Context) ([]catalogRow, error) {
	return m.rows, m.err
}

func TestPostgresCatalog_Load(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := &mockCatalogStore{rows: []catalogRow{
		{
			ID:              "translator",
			Name:            "Translator",
			Description:     sql.NullString{String: "Translates text", Valid: true},
			Category:        "text-processing",
			Complexity:      "medium",
			Capabilities:    `["transform"]`,
			RequiredContext: `["text-input"]`,
			OptimalContext:  `[]`,
			Target:          "translator:9000",
			Method:          "/tools.v1.Translator/Invoke",
			ParameterSchema: sql.NullString{String: `{"type":"object"}`, Valid: true},
		},
		{
			ID:           "broken",
			Capabilities: `not json`,
		},
	}}
	cat := newPostgresCatalogWithStore(store, logger)

	tools, err := cat.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 {
		t.Fatalf("expected bad row to be skipped, got %d tools", len(tools))
	}
	rt := tools[0]
	if rt.ID != "translator" || rt.Description != "Translates text" {
		t.Fatalf("unexpected tool %+v", rt)
	}
	if len(rt.Capabilities) != 1 || rt.Capabilities[0] != "transform" {
		t.Fatalf("unexpected capabilities %v", rt.Capabilities)
	}
	if len(rt.OptimalContext) != 0 {
		t.Fatalf("expected empty optimal context, got %v", rt.OptimalContext)
	}
	if rt.Schema["type"] != "object" {
		t.Fatalf("expected schema to be parsed, got %v", rt.Schema)
	}
}

func TestPostgresCatalog_StoreError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cat := newPostgresCatalogWithStore(&mockCatalogStore{err: sql.ErrConnDone}, logger)
	if _, err := cat.Load(context.Background()); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
