// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives one research run through a fixed sequence of
// stages: plan, collect, analyze, synthesize, evaluate, and optionally one
// refinement loop back to planning. State is checkpointed after every
// transition.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/aggregate"
	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/pkg/types"
)

// ErrNoData is the terminal error for a run whose collection found nothing.
var ErrNoData = eris.New("no data found for query")

// Engine defaults.
const (
	DefaultQualityThreshold = 0.7
	DefaultMaxRefinements   = 1

	// workingStages is the number of non-terminal stages.
	workingStages = 6

	// MaxTransitions bounds a run, allowing for one refinement loop.
	MaxTransitions = 2 * workingStages
)

// plannedSources is recorded in planning metadata.
var plannedSources = []string{"arxiv", "github", "hackernews", "reddit", "devto", "rss", "web"}

// Collector gathers items for a request.
type Collector interface {
	Collect(ctx context.Context, req aggregate.Request) types.ResultSet
}

// Analyzer turns a result set into an analysis. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, rs types.ResultSet, query string) types.Analysis
}

// Renderer produces the report outputs keyed by format.
type Renderer interface {
	Render(query string, rs types.ResultSet, a types.Analysis) (map[string]string, error)
}

// Evaluator scores a finished run.
type Evaluator interface {
	Score(query string, rs types.ResultSet, a types.Analysis, outputs map[string]string) types.QualityReport
}

// Memory stores completed runs for later recall.
type Memory interface {
	Remember(ctx context.Context, query string, rs types.ResultSet, a types.Analysis) error
}

// Deps are the engine's collaborators. Collector, Analyzer, Renderer and
// Evaluator are required; the rest are optional.
type Deps struct {
	Collector Collector
	Analyzer  Analyzer
	Renderer  Renderer
	Evaluator Evaluator

	// Checkpoints receives a snapshot after every transition. Nil disables
	// checkpointing.
	Checkpoints *Store

	// Memory remembers completed runs. Nil disables it.
	Memory Memory

	// Refiner adjusts the config before a refinement loop. Defaults to
	// DefaultRefiner.
	Refiner Refiner

	Now   func() time.Time
	NewID func() string
}

// Options tune the refinement policy.
type Options struct {
	// QualityThreshold is the overall score below which a run is refined.
	QualityThreshold float64

	// MaxRefinements bounds loop-backs to planning.
	MaxRefinements int
}

// Engine runs research workflows. It holds no per-run state and may run
// several workflows concurrently if its collaborators allow it.
type Engine struct {
	deps Deps
	opts Options
}

// New creates an engine. Zero options use the defaults.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Collector == nil || deps.Analyzer == nil || deps.Renderer == nil || deps.Evaluator == nil {
		return nil, eris.New("workflow: collector, analyzer, renderer and evaluator are required")
	}
	if deps.Refiner == nil {
		deps.Refiner = DefaultRefiner
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = DefaultQualityThreshold
	}
	if opts.MaxRefinements <= 0 {
		opts.MaxRefinements = DefaultMaxRefinements
	}
	return &Engine{deps: deps, opts: opts}, nil
}

// Execute runs a new workflow for query to a terminal stage. The returned
// state is never nil once the run has started. The error is the one that
// failed the run, if any; ErrNoData can be tested with eris.Is.
func (e *Engine) Execute(ctx context.Context, query string, cfg types.RunConfig) (*types.WorkflowState, error) {
	if query == "" {
		return nil, eris.New("workflow: query is required")
	}
	now := e.deps.Now()
	state := &types.WorkflowState{
		RunID:     e.deps.NewID(),
		Query:     query,
		Config:    cfg,
		Stage:     types.StageInit,
		Metadata:  map[string]any{},
		Errors:    []string{},
		StartedAt: now,
		UpdatedAt: now,
	}
	e.checkpoint(state)
	return e.run(ctx, state)
}

// Resume re-enters the loop from a checkpointed state.
func (e *Engine) Resume(ctx context.Context, state *types.WorkflowState) (*types.WorkflowState, error) {
	if state == nil {
		return nil, eris.New("workflow: nothing to resume")
	}
	if state.Stage.Terminal() {
		return state, eris.Errorf("workflow: run %s already %s", state.RunID, state.Stage)
	}
	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}
	if state.Errors == nil {
		state.Errors = []string{}
	}
	zap.L().Info("resuming run",
		zap.String("run_id", state.RunID),
		zap.String("stage", string(state.Stage)),
		zap.Int("transitions", state.Transitions),
	)
	return e.run(ctx, state)
}

func (e *Engine) run(ctx context.Context, state *types.WorkflowState) (_ *types.WorkflowState, runErr error) {
	ctx, span := observability.StartSpan(ctx, "workflow.run",
		observability.AttrRunID.String(state.RunID),
	)
	defer func() { observability.EndSpan(span, runErr) }()

	for !state.Stage.Terminal() {
		if state.Transitions >= MaxTransitions-1 {
			runErr = eris.Errorf("workflow: exceeded %d transitions", MaxTransitions)
			e.fail(state, runErr)
			break
		}

		from := state.Stage
		next, err := e.step(ctx, state)
		if err != nil {
			runErr = err
			e.fail(state, err)
			zap.L().Error("workflow transition failed",
				zap.String("run_id", state.RunID),
				zap.String("stage", string(from)),
				zap.Error(err),
			)
			break
		}

		state.Stage = next
		state.Transitions++
		state.UpdatedAt = e.deps.Now()
		zap.L().Info("workflow transition",
			zap.String("run_id", state.RunID),
			zap.String("from", string(from)),
			zap.String("to", string(next)),
			zap.Int("transitions", state.Transitions),
		)
		e.checkpoint(state)
	}

	if state.Stage == types.StageComplete {
		e.remember(ctx, state)
	}
	observability.RecordRun(string(state.Stage))
	return state, runErr
}

// fail records err and moves the run to failed.
func (e *Engine) fail(state *types.WorkflowState, err error) {
	state.Errors = append(state.Errors, err.Error())
	state.Stage = types.StageFailed
	state.Transitions++
	state.UpdatedAt = e.deps.Now()
	e.checkpoint(state)
}

// step performs the transition out of the current stage and returns the
// next stage. Panics in collaborators become errors.
func (e *Engine) step(ctx context.Context, state *types.WorkflowState) (next types.Stage, err error) {
	stage := state.Stage
	ctx, span := observability.StartSpan(ctx, "workflow."+string(stage),
		observability.AttrRunID.String(state.RunID),
		observability.AttrStage.String(string(stage)),
	)
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("workflow: panic in %s: %v", stage, r)
		}
		observability.EndSpan(span, err)
	}()

	switch stage {
	case types.StageInit:
		return e.plan(state), nil
	case types.StagePlanning:
		return e.collect(ctx, state)
	case types.StageCollecting:
		return e.analyze(ctx, state), nil
	case types.StageAnalyzing:
		return e.synthesize(state)
	case types.StageSynthesizing:
		if state.Config.SkipEvaluation {
			return types.StageComplete, nil
		}
		return e.evaluate(state), nil
	case types.StageEvaluating:
		return e.decide(state), nil
	default:
		return "", eris.Errorf("workflow: no transition from stage %q", stage)
	}
}

func (e *Engine) plan(state *types.WorkflowState) types.Stage {
	state.Metadata["sources"] = plannedSources
	state.Metadata["config"] = map[string]any{
		"depth":           string(state.Config.Depth),
		"focus":           string(state.Config.Focus),
		"time_range":      string(state.Config.Window),
		"skip_evaluation": state.Config.SkipEvaluation,
	}
	state.Metadata["planned_at"] = e.deps.Now().UTC().Format(time.RFC3339)
	return types.StagePlanning
}

func (e *Engine) collect(ctx context.Context, state *types.WorkflowState) (types.Stage, error) {
	clearPass(state)
	rs := e.deps.Collector.Collect(ctx, aggregate.Request{
		Query:  state.Query,
		Focus:  state.Config.Focus,
		Window: state.Config.Window,
		Depth:  state.Config.Depth,
	})
	if rs == nil {
		rs = types.NewResultSet()
	}
	state.ResultSet = rs

	counts := make(map[string]int, len(types.Categories))
	for c, n := range rs.Counts() {
		counts[string(c)] = n
	}
	state.Metadata["item_counts"] = counts
	state.Metadata["total_items"] = rs.Total()

	if rs.Total() == 0 {
		return "", ErrNoData
	}
	return types.StageCollecting, nil
}

// clearPass drops the outputs of a previous pass so a refined run that
// fails never carries an earlier report or score.
func clearPass(state *types.WorkflowState) {
	state.Analysis = nil
	state.Report = nil
	state.Quality = nil
	state.QualityScore = nil
	delete(state.Metadata, "analysis_fallback")
}

func (e *Engine) analyze(ctx context.Context, state *types.WorkflowState) types.Stage {
	a := e.deps.Analyzer.Analyze(ctx, state.ResultSet, state.Query)
	state.Analysis = &a
	state.Metadata["analysis_fallback"] = a.Fallback
	return types.StageAnalyzing
}

func (e *Engine) synthesize(state *types.WorkflowState) (types.Stage, error) {
	outputs, err := e.deps.Renderer.Render(state.Query, state.ResultSet, e.analysis(state))
	if err != nil {
		return "", eris.Wrap(err, "workflow: render report")
	}
	if len(outputs) == 0 {
		return "", eris.New("workflow: renderer produced no outputs")
	}
	if js, ok := outputs[report.FormatJSON]; ok && !json.Valid([]byte(js)) {
		return "", eris.New("workflow: renderer produced invalid JSON")
	}
	state.Report = outputs
	return types.StageSynthesizing, nil
}

func (e *Engine) evaluate(state *types.WorkflowState) types.Stage {
	q := e.deps.Evaluator.Score(state.Query, state.ResultSet, e.analysis(state), state.Report)
	state.Quality = &q
	score := q.Overall
	state.QualityScore = &score
	observability.RecordQuality(score)
	return types.StageEvaluating
}

func (e *Engine) decide(state *types.WorkflowState) types.Stage {
	if state.QualityScore != nil && *state.QualityScore < e.opts.QualityThreshold && state.RefinementCount < e.opts.MaxRefinements {
		state.RefinementCount++
		e.deps.Refiner(state)
		observability.RecordRefinement()
		zap.L().Info("refining run",
			zap.String("run_id", state.RunID),
			zap.Float64("quality", *state.QualityScore),
			zap.Int("refinement", state.RefinementCount),
			zap.String("depth", string(state.Config.Depth)),
			zap.String("focus", string(state.Config.Focus)),
			zap.String("time_range", string(state.Config.Window)),
		)
		return types.StagePlanning
	}
	return types.StageComplete
}

func (e *Engine) analysis(state *types.WorkflowState) types.Analysis {
	if state.Analysis == nil {
		return types.Analysis{}
	}
	return *state.Analysis
}

func (e *Engine) checkpoint(state *types.WorkflowState) {
	if e.deps.Checkpoints == nil {
		return
	}
	path, err := e.deps.Checkpoints.Save(state)
	if err != nil {
		zap.L().Warn("checkpoint not written", zap.String("run_id", state.RunID), zap.Error(err))
		return
	}
	zap.L().Debug("checkpoint written", zap.String("path", path))
}

func (e *Engine) remember(ctx context.Context, state *types.WorkflowState) {
	if e.deps.Memory == nil {
		return
	}
	if err := e.deps.Memory.Remember(ctx, state.Query, state.ResultSet, e.analysis(state)); err != nil {
		zap.L().Warn("remembering run failed", zap.String("run_id", state.RunID), zap.Error(err))
	}
}

// Summary is a one-line description of a finished run.
func Summary(state *types.WorkflowState) string {
	if state == nil {
		return ""
	}
	s := fmt.Sprintf("run %s %s after %d transitions", state.RunID, state.Stage, state.Transitions)
	if state.QualityScore != nil {
		s += fmt.Sprintf(", quality %.2f", *state.QualityScore)
	}
	if state.RefinementCount > 0 {
		s += fmt.Sprintf(", %d refinement(s)", state.RefinementCount)
	}
	return s
}
