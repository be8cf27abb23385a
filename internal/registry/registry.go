// Package registry holds the set of routable tools and answers which of
// them fit a given conversation.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// DefaultInitTimeout bounds a handler's Initialize call.
const DefaultInitTimeout = 30 * time.Second

var (
	ErrMissingID      = errors.New("tool id is required")
	ErrMissingHandler = errors.New("tool handler is required")
)

// Registry is the in-memory tool table. Writers are serialised; readers
// get the stored descriptors, which are never mutated after Register.
type Registry struct {
	tracker     *performance.Tracker
	logger      *zap.Logger
	initTimeout time.Duration

	mu    sync.RWMutex
	tools map[string]*tool.Tool

	inits sync.WaitGroup
}

// New creates an empty registry whose performance records live in tracker.
func New(tracker *performance.Tracker, logger *zap.Logger) *Registry {
	return &Registry{
		tracker:     tracker,
		logger:      logger,
		initTimeout: DefaultInitTimeout,
		tools:       make(map[string]*tool.Tool),
	}
}

// Register inserts or overwrites t by id. A default performance record is
// created for ids seen for the first time. Handler initialisation runs in
// the background; failures are logged and do not unregister the tool.
func (r *Registry) Register(t *tool.Tool) error {
	if t == nil || t.ID == "" {
		return ErrMissingID
	}
	if t.Handler == nil {
		return ErrMissingHandler
	}
	stored := t.Clone()

	r.mu.Lock()
	_, replaced := r.tools[stored.ID]
	r.tools[stored.ID] = stored
	r.mu.Unlock()

	r.tracker.Ensure(stored.ID)

	r.logger.Info("tool registered",
		zap.String("tool_id", stored.ID),
		zap.String("category", string(stored.Category)),
		zap.Bool("replaced", replaced),
	)

	r.inits.Add(1)
	go r.initialize(stored)
	return nil
}

func (r *Registry) initialize(t *tool.Tool) {
	defer r.inits.Done()
	ctx, cancel := context.WithTimeout(context.Background(), r.initTimeout)
	defer cancel()

	if err := t.Handler.Initialize(ctx); err != nil {
		r.logger.Warn("tool initialization failed",
			zap.String("tool_id", t.ID),
			zap.Error(err),
		)
	}
}

// WaitInitialized blocks until every pending handler initialisation has
// returned or ctx is done.
func (r *Registry) WaitInitialized(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inits.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes id. Its performance record is kept.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	_, ok := r.tools[id]
	delete(r.tools, id)
	r.mu.Unlock()
	if ok {
		r.logger.Info("tool unregistered", zap.String("tool_id", id))
	}
	return ok
}

// Lookup returns the tool registered under id.
func (r *Registry) Lookup(id string) (*tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns every registered tool sorted by id.
func (r *Registry) List() []*tool.Tool {
	r.mu.RLock()
	out := make([]*tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAvailable returns the tools whose required context holds for conv
// and input and whose performance clears admission and the availability
// minimum. Results are ordered by relevance, then overall score, then id.
func (r *Registry) ListAvailable(conv tool.ConversationContext, input string) []*tool.Tool {
	scoring := r.tracker.Scoring()
	metrics := r.tracker.Snapshot()

	type ranked struct {
		t         *tool.Tool
		relevance float64
		overall   float64
	}
	var candidates []ranked
	for _, t := range r.List() {
		if len(tool.Unsatisfied(t.RequiredContext, conv, input)) > 0 {
			continue
		}
		m, ok := metrics[t.ID]
		if !ok {
			m = performance.NewMetrics()
		}
		if !performance.Admits(m, scoring) || m.AvailabilityScore < scoring.MinAvailability {
			continue
		}
		candidates = append(candidates, ranked{
			t:         t,
			relevance: r.Relevance(t, conv, input),
			overall:   m.OverallScore,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.relevance != b.relevance {
			return a.relevance > b.relevance
		}
		if a.overall != b.overall {
			return a.overall > b.overall
		}
		return a.t.ID < b.t.ID
	})

	out := make([]*tool.Tool, len(candidates))
	for i, c := range candidates {
		out[i] = c.t
	}
	return out
}

// Relevance scores how well t fits the conversation, in [0,1].
func (r *Registry) Relevance(t *tool.Tool, conv tool.ConversationContext, input string) float64 {
	s := r.tracker.Scoring()
	score := s.RelevanceBase

	if n := len(t.OptimalContext); n > 0 {
		satisfied := n - len(tool.Unsatisfied(t.OptimalContext, conv, input))
		score += float64(satisfied) / float64(n) * s.OptimalContextWeight
	}

	switch ws := conv.Workspace.Normalize(); {
	case t.Category == tool.CategoryCodeProcessing && ws == tool.WorkspaceCode,
		t.Category == tool.CategoryCreative && ws == tool.WorkspaceCreative,
		t.Category == tool.CategoryResearch && ws == tool.WorkspaceResearch:
		score += s.WorkspaceAffinityBonus
	case t.Category == tool.CategoryTextProcessing && ws == tool.WorkspaceGeneral:
		score += s.GeneralTextBonus
	}

	return clamp(score, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
