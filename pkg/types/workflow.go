// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage is a WorkflowEngine state.
type Stage string

const (
	StageInit         Stage = "init"
	StagePlanning     Stage = "planning"
	StageCollecting   Stage = "collecting"
	StageAnalyzing    Stage = "analyzing"
	StageSynthesizing Stage = "synthesizing"
	StageEvaluating   Stage = "evaluating"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// RunConfig is the per-run collection configuration.
type RunConfig struct {
	Depth  Depth  `json:"depth" yaml:"depth"`
	Focus  Focus  `json:"focus" yaml:"focus"`
	Window Window `json:"time_range" yaml:"time_range"`

	// SkipEvaluation ends the run after synthesis without scoring or refinement.
	SkipEvaluation bool `json:"skip_evaluation,omitempty" yaml:"skip_evaluation,omitempty"`
}

// QualityReport is the evaluator's verdict on one run.
type QualityReport struct {
	// Overall is the weighted score in [0,1].
	Overall float64 `json:"overall" yaml:"overall"`

	// Dimensions holds per-dimension scores in [0,1]: comprehensiveness,
	// relevance, analysis, outputs.
	Dimensions map[string]float64 `json:"per_dimension" yaml:"per_dimension"`

	// Rating is the human label for Overall (e.g. "Good").
	Rating string `json:"rating" yaml:"rating"`

	// Details holds the sub-scores behind each dimension, keyed
	// "dimension.metric" (e.g. "comprehensiveness.coverage").
	Details map[string]float64 `json:"details,omitempty" yaml:"details,omitempty"`

	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// WorkflowState is the single mutable record threaded through one engine
// execution. Each checkpoint is a snapshot of it.
type WorkflowState struct {
	RunID  string    `json:"run_id" yaml:"run_id"`
	Query  string    `json:"query" yaml:"query"`
	Config RunConfig `json:"config" yaml:"config"`
	Stage  Stage     `json:"stage" yaml:"stage"`

	// Metadata carries planning output and per-stage statistics.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	ResultSet ResultSet         `json:"result_set,omitempty" yaml:"result_set,omitempty"`
	Analysis  *Analysis         `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Report    map[string]string `json:"report,omitempty" yaml:"report,omitempty"`
	Quality   *QualityReport    `json:"quality,omitempty" yaml:"quality,omitempty"`

	// QualityScore is the overall quality in [0,1], set after evaluation.
	QualityScore *float64 `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`

	Errors          []string `json:"errors" yaml:"errors"`
	RefinementCount int      `json:"refinement_count" yaml:"refinement_count"`

	// Transitions counts stage transitions taken so far.
	Transitions int       `json:"transitions" yaml:"transitions"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}
