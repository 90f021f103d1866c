// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/model"
	"github.com/pdiddy/research-agent/pkg/types"
)

const decomposition = `Here are the sub-questions:
1. What hardware platforms exist for quantum computing?
2) **Which algorithms show a quantum advantage?**
4. This line is out of range
3. How mature is quantum error correction?`

func TestParseSubQuestions(t *testing.T) {
	got := ParseSubQuestions(decomposition, 3)
	assert.Equal(t, []string{
		"What hardware platforms exist for quantum computing?",
		"Which algorithms show a quantum advantage?",
		"How mature is quantum error correction?",
	}, got)

	assert.Equal(t, []string{"What hardware platforms exist for quantum computing?"}, ParseSubQuestions(decomposition, 1))
	assert.Empty(t, ParseSubQuestions("no numbered lines here", 3))
}

func TestDecompose(t *testing.T) {
	gen := &mockGenerator{responses: []string{decomposition}}
	got := New(gen, nil, Config{Model: "llama"}).Decompose(context.Background(), "state of quantum computing", 3)

	require.Len(t, got, 3)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "into 3 simpler sub-questions")
	assert.Contains(t, gen.prompts[0], "Question: state of quantum computing")
	assert.Equal(t, "llama", gen.opts[0].Model)
}

func TestDecompose_FallsBackToQuery(t *testing.T) {
	tests := []struct {
		name  string
		gen   *mockGenerator
		steps int
	}{
		{"single step skips the model", &mockGenerator{}, 1},
		{"model error", &mockGenerator{errs: []error{model.ErrBackendUnavailable}}, 3},
		{"unnumbered reply", &mockGenerator{responses: []string{"I cannot split this."}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.gen, nil, Config{}).Decompose(context.Background(), "quantum computing", tt.steps)
			assert.Equal(t, []string{"quantum computing"}, got)
		})
	}
}

func TestDecompose_CapsSteps(t *testing.T) {
	gen := &mockGenerator{responses: []string{"1. a"}}
	New(gen, nil, Config{}).Decompose(context.Background(), "q", 50)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "into 10 simpler sub-questions")
}

func TestSynthesize(t *testing.T) {
	steps := []Step{
		{Question: "What hardware exists?", Answer: "Superconducting and trapped ion."},
		{Question: "Which algorithms?", Error: "no data found for query"},
		{Question: "How mature is QEC?", Answer: "Below threshold on small codes."},
	}

	gen := &mockGenerator{responses: []string{"  Quantum computing is early but real.  "}}
	got := New(gen, nil, Config{}).Synthesize(context.Background(), "state of quantum computing", steps)

	assert.Equal(t, "Quantum computing is early but real.", got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Original Question: state of quantum computing")
	assert.Contains(t, gen.prompts[0], "1. What hardware exists?")
	assert.Contains(t, gen.prompts[0], "2. How mature is QEC?")
	assert.NotContains(t, gen.prompts[0], "Which algorithms?")
}

func TestSynthesize_JoinsAnswersWithoutModel(t *testing.T) {
	steps := []Step{
		{Question: "A?", Answer: "alpha"},
		{Question: "B?", Answer: "beta"},
	}
	gen := &mockGenerator{errs: []error{model.ErrBackendUnavailable}}
	got := New(gen, nil, Config{}).Synthesize(context.Background(), "q", steps)
	assert.Equal(t, "## A?\n\nalpha\n\n## B?\n\nbeta", got)

	assert.Empty(t, New(gen, nil, Config{}).Synthesize(context.Background(), "q", []Step{{Question: "C?"}}))
}

func TestAnswer(t *testing.T) {
	a := types.Analysis{Structured: &types.StructuredAnalysis{
		Summary:     "Summary.",
		KeyFindings: []string{"one", "two"},
	}}
	assert.Equal(t, "Summary.\n- one\n- two", Answer(a))
	assert.Equal(t, "raw text", Answer(types.Analysis{Raw: &types.RawTextAnalysis{Text: "raw text"}}))
}

func TestResearchSteps(t *testing.T) {
	gen := &mockGenerator{responses: []string{
		"1. hardware?\n2. algorithms?\n3. error correction?",
		"Final synthesized answer.",
	}}
	s := New(gen, nil, Config{})

	var asked []string
	run := func(_ context.Context, q string) (string, *types.Analysis, error) {
		asked = append(asked, q)
		if q == "algorithms?" {
			return "run-2", nil, errors.New("no data found for query")
		}
		return "run-" + q, &types.Analysis{Structured: &types.StructuredAnalysis{Summary: "about " + q}}, nil
	}

	got, err := s.ResearchSteps(context.Background(), "quantum computing", 3, run)
	require.NoError(t, err)

	assert.Equal(t, []string{"hardware?", "algorithms?", "error correction?"}, asked)
	assert.Equal(t, asked, got.SubQuestions)
	assert.Equal(t, 3, got.StepsTaken)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "about hardware?", got.Steps[0].Answer)
	assert.Equal(t, "no data found for query", got.Steps[1].Error)
	assert.Empty(t, got.Steps[1].Answer)
	assert.Equal(t, "Final synthesized answer.", got.FinalAnswer)
	require.Len(t, gen.prompts, 2)
	assert.NotContains(t, gen.prompts[1], "algorithms?")
}

func TestResearchSteps_NoAnswers(t *testing.T) {
	gen := &mockGenerator{responses: []string{"1. a\n2. b"}}
	run := func(context.Context, string) (string, *types.Analysis, error) {
		return "", nil, errors.New("no data found for query")
	}
	got, err := New(gen, nil, Config{}).ResearchSteps(context.Background(), "q", 2, run)
	assert.Error(t, err)
	assert.Equal(t, 2, got.StepsTaken)
	assert.Empty(t, got.FinalAnswer)
}

func TestResearchSteps_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	run := func(context.Context, string) (string, *types.Analysis, error) {
		calls++
		cancel()
		return "r", &types.Analysis{Structured: &types.StructuredAnalysis{Summary: "s"}}, nil
	}
	gen := &mockGenerator{responses: []string{"1. a\n2. b"}}
	_, err := New(gen, nil, Config{}).ResearchSteps(ctx, "q", 2, run)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
