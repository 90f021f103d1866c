// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

func newTestRecall(t *testing.T) *Recall {
	t.Helper()
	r, err := OpenRecall(filepath.Join(t.TempDir(), "memory", "research.db"))
	if err != nil && strings.Contains(err.Error(), "fts5") {
		t.Skip("sqlite built without FTS5; run with -tags sqlite_fts5")
	}
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	r.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func analysisWith(summary string, findings ...string) types.Analysis {
	return types.Analysis{Structured: &types.StructuredAnalysis{Summary: summary, KeyFindings: findings}}
}

func TestRecall_RememberAndRecall(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	rs := types.NewResultSet()
	rs[types.CategoryPaper] = []types.Item{{Title: "a"}, {Title: "b"}}

	require.NoError(t, r.Remember(ctx, "quantum error correction", rs, analysisWith("Surface codes lead.", "Thresholds crossed")))
	require.NoError(t, r.Remember(ctx, "rust web frameworks", types.NewResultSet(), analysisWith("Axum grows.")))

	got := r.RecallSimilar(ctx, "Quantum computing?", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "quantum error correction", got[0].Query)
	assert.Equal(t, "Surface codes lead.", got[0].Summary)
	assert.Equal(t, []string{"Thresholds crossed"}, got[0].KeyFindings)
	assert.Equal(t, 2, got[0].ItemCount)
	assert.Equal(t, 2026, got[0].CreatedAt.Year())

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecall_MatchesSummaryText(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	require.NoError(t, r.Remember(ctx, "new web stacks", types.NewResultSet(), analysisWith("Axum and actix dominate.")))

	got := r.RecallSimilar(ctx, "axum", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "new web stacks", got[0].Query)
}

func TestRecall_Limit(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Remember(ctx, "llm agents", types.NewResultSet(), types.Analysis{}))
	}
	assert.Len(t, r.RecallSimilar(ctx, "agents", 2), 2)
	assert.Len(t, r.RecallSimilar(ctx, "agents", 0), DefaultRecallLimit)
}

func TestRecall_PunctuationAndEmpty(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	require.NoError(t, r.Remember(ctx, "c++ compilers", types.NewResultSet(), types.Analysis{}))

	assert.Len(t, r.RecallSimilar(ctx, `"c++" AND (compilers`, 3), 1)
	assert.Empty(t, r.RecallSimilar(ctx, "!!!", 3))
	assert.Empty(t, r.RecallSimilar(ctx, "nothing matches", 3))
}

func TestRecall_FailureYieldsEmpty(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	require.NoError(t, r.Remember(ctx, "quantum", types.NewResultSet(), types.Analysis{}))
	r.Close()

	assert.Empty(t, r.RecallSimilar(ctx, "quantum", 3))
	assert.Equal(t, "", r.ContextFor(ctx, "quantum", 3))
}

func TestRecall_ContextFor(t *testing.T) {
	r := newTestRecall(t)
	ctx := context.Background()
	require.NoError(t, r.Remember(ctx, "quantum annealing", types.NewResultSet(),
		analysisWith(strings.Repeat("s", 300), "first", "second", "third")))

	out := r.ContextFor(ctx, "quantum computing", 3)
	assert.True(t, strings.HasPrefix(out, "Relevant Past Research:\n"))
	assert.Contains(t, out, `- "quantum annealing" (2026-09-01, 0 items): `+strings.Repeat("s", 200)+"...")
	assert.Contains(t, out, "  * first\n")
	assert.Contains(t, out, "  * second\n")
	assert.NotContains(t, out, "third")

	assert.Equal(t, "", r.ContextFor(ctx, "unrelated", 3))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"quantum" OR "computing"`, ftsQuery("Quantum computing, quantum!"))
	assert.Equal(t, "", ftsQuery("  ?? "))
}

func TestOpenRecall_RequiresPath(t *testing.T) {
	_, err := OpenRecall("")
	assert.Error(t, err)
}

func TestOpenRecall_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.db")
	r, err := OpenRecall(path)
	if err != nil && strings.Contains(err.Error(), "fts5") {
		t.Skip("sqlite built without FTS5")
	}
	require.NoError(t, err)
	require.NoError(t, r.Remember(context.Background(), "persisted query", types.NewResultSet(), types.Analysis{}))
	require.NoError(t, r.Close())

	r, err = OpenRecall(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.RecallSimilar(context.Background(), "persisted", 3), 1)
}
