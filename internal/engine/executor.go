package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

var (
	errNoResult        = errors.New("handler returned no result")
	errNothingCombined = errors.New("no combined result produced")
)

// Executor runs a tool with a given strategy. It neither validates nor
// records; the Router does both around it.
type Executor struct {
	maxParallelism int
	logger         *zap.Logger
}

// NewExecutor creates an executor. maxParallelism <= 0 uses
// DefaultMaxParallelism.
func NewExecutor(maxParallelism int, logger *zap.Logger) *Executor {
	if maxParallelism <= 0 {
		maxParallelism = DefaultMaxParallelism
	}
	return &Executor{maxParallelism: maxParallelism, logger: logger}
}

// Run executes t with strategy s.
func (e *Executor) Run(ctx context.Context, s tool.Strategy, t *tool.Tool, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	switch s {
	case tool.StrategyEnsemble:
		return e.ensemble(ctx, t, p, conv)
	case tool.StrategyParallel:
		return e.parallel(ctx, t, p, conv)
	case tool.StrategyCascading:
		return e.cascading(ctx, t, p, conv)
	default:
		return e.direct(ctx, t, p, conv)
	}
}

func (e *Executor) direct(ctx context.Context, t *tool.Tool, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	res, err := t.Handler.Execute(ctx, p, conv)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNoResult
	}
	return res, nil
}

// ensemble runs the handler once and lets the validator revise confidence
// and add metadata. Validator metadata wins on key collisions.
func (e *Executor) ensemble(ctx context.Context, t *tool.Tool, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	primary, err := e.direct(ctx, t, p, conv)
	if err != nil || t.Ensemble == nil {
		return primary, err
	}

	v, err := t.Ensemble.Validate(ctx, primary, p, conv)
	if err != nil {
		return nil, fmt.Errorf("ensemble validation: %w", err)
	}

	out := *primary
	out.Confidence = clamp01(v.Confidence)
	out.Metadata = primary.Metadata.Merge(v.Metadata)
	return &out, nil
}

// parallel fans sub-parameter sets out to the handler. Any failed unit
// cancels its siblings and fails the call without combining.
func (e *Executor) parallel(ctx context.Context, t *tool.Tool, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	if t.Parallel == nil {
		return e.direct(ctx, t, p, conv)
	}
	units := t.Parallel.SplitParameters(p)
	if len(units) == 0 {
		return e.direct(ctx, t, p, conv)
	}

	results := make([]*tool.ExecutionResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallelism)
	for i, unit := range units {
		g.Go(func() error {
			res, err := t.Handler.Execute(gctx, unit, conv)
			if err != nil {
				return fmt.Errorf("sub-unit %d: %w", i, err)
			}
			if res == nil {
				return fmt.Errorf("sub-unit %d: %w", i, errNoResult)
			}
			if !res.Success {
				return fmt.Errorf("sub-unit %d reported failure", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("parallel units complete",
		zap.String("tool_id", t.ID),
		zap.Int("units", len(units)),
	)
	combined := t.Parallel.CombineResults(results)
	if combined == nil {
		return nil, errNothingCombined
	}
	return combined, nil
}

// cascading runs the handler once per stage, folding each stage result
// into a running result, until the stages run out or a stage asks to stop.
func (e *Executor) cascading(ctx context.Context, t *tool.Tool, p tool.Parameters, conv tool.ConversationContext) (*tool.ExecutionResult, error) {
	if t.Cascading == nil {
		return e.direct(ctx, t, p, conv)
	}
	stages := t.Cascading.Stages()
	if len(stages) == 0 {
		return e.direct(ctx, t, p, conv)
	}

	var combined *tool.ExecutionResult
	current := p.WithValues(stages[0].Values)
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}

		res, err := e.direct(ctx, t, current, conv)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}
		combined = t.Cascading.CombineStageResult(combined, stage, res)

		if t.Cascading.ShouldStopEarly(res, stage) {
			e.logger.Debug("cascade stopped early",
				zap.String("tool_id", t.ID),
				zap.String("stage", stage.Name),
				zap.Int("stages_run", i+1),
			)
			break
		}
		if i+1 < len(stages) {
			current = t.Cascading.PrepareNextStage(res, current, stages[i+1])
		}
	}

	if combined == nil {
		return nil, errNothingCombined
	}
	return combined, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
