// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/aggregate"
	"github.com/pdiddy/research-agent/internal/evaluate"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/internal/source"
	"github.com/pdiddy/research-agent/pkg/types"
)

// uniformAdapter returns three complete items for any query.
type uniformAdapter struct {
	name     string
	category types.Category
}

func (u uniformAdapter) Name() string             { return u.name }
func (u uniformAdapter) Category() types.Category { return u.category }

func (u uniformAdapter) Fetch(_ context.Context, req source.Request) []types.Item {
	out := make([]types.Item, 0, 3)
	for i := 1; i <= 3 && i <= req.Limit; i++ {
		out = append(out, types.Item{
			Title:  fmt.Sprintf("%s on %s #%d", req.Query, u.name, i),
			URL:    fmt.Sprintf("https://%s.example/%d", u.name, i),
			Body:   "quantum computing result",
			Source: u.category,
			Origin: u.name,
		})
	}
	return out
}

func TestExecute_QuantumScenarioFullCoverage(t *testing.T) {
	collector := aggregate.New(aggregate.Adapters{
		Arxiv:      uniformAdapter{"arxiv", types.CategoryPaper},
		GitHub:     uniformAdapter{"github", types.CategoryRepository},
		HackerNews: uniformAdapter{"hackernews", types.CategoryNews},
		Reddit:     uniformAdapter{"reddit", types.CategoryDiscussion},
	}, 4)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }
	e, err := New(Deps{
		Collector:   collector,
		Analyzer:    &fakeAnalyzer{},
		Renderer:    report.Renderer{Now: now},
		Evaluator:   evaluate.Evaluator{},
		Checkpoints: store,
		Now:         now,
		NewID:       func() string { return "quantum" },
	}, Options{})
	require.NoError(t, err)

	state, err := e.Execute(context.Background(), "quantum computing", types.RunConfig{
		Depth:  types.DepthQuick,
		Focus:  types.FocusAll,
		Window: types.WindowMonth,
	})
	require.NoError(t, err)

	assert.Equal(t, types.StageComplete, state.Stage)
	assert.Equal(t, 12, state.ResultSet.Total())
	for _, c := range []types.Category{types.CategoryPaper, types.CategoryRepository, types.CategoryNews, types.CategoryDiscussion} {
		assert.Len(t, state.ResultSet[c], 3, "category %s", c)
	}

	require.NotNil(t, state.Quality)
	assert.InDelta(t, 1.0, state.Quality.Details["comprehensiveness.coverage"], 1e-9)
	assert.InDelta(t, 0.12, state.Quality.Details["comprehensiveness.quantity"], 1e-9)

	direct := evaluate.Score(state.Query, state.ResultSet, *state.Analysis, state.Report)
	assert.InDelta(t, 1.0, direct.Details["comprehensiveness.coverage"], 1e-9)
}
