// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

func snapshot(runID string, seq int, stage types.Stage) *types.WorkflowState {
	return &types.WorkflowState{
		RunID:       runID,
		Query:       "quantum computing",
		Stage:       stage,
		Transitions: seq,
		Errors:      []string{},
		Metadata:    map[string]any{"seq": seq},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(snapshot("r1", 2, types.StageCollecting))
	require.NoError(t, err)
	assert.Equal(t, "02-collecting.json", filepath.Base(path))

	got, err := store.Load("r1", types.StageCollecting)
	require.NoError(t, err)
	assert.Equal(t, "quantum computing", got.Query)
	assert.Equal(t, 2, got.Transitions)
}

func TestStore_WriteOnce(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(snapshot("r1", 1, types.StagePlanning))
	require.NoError(t, err)
	_, err = store.Save(snapshot("r1", 1, types.StagePlanning))
	assert.Error(t, err, "existing checkpoint is not overwritten")
}

func TestStore_LoadPicksLatestForStage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	for _, s := range []*types.WorkflowState{
		snapshot("r1", 1, types.StagePlanning),
		snapshot("r1", 2, types.StageCollecting),
		snapshot("r1", 6, types.StagePlanning),
		snapshot("r1", 10, types.StageEvaluating),
		snapshot("r1", 11, types.StageFailed),
	} {
		_, err := store.Save(s)
		require.NoError(t, err)
	}

	got, err := store.Load("r1", types.StagePlanning)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Transitions)

	latest, err := store.Latest("r1")
	require.NoError(t, err)
	assert.Equal(t, types.StageFailed, latest.Stage)

	resumable, err := store.Resumable("r1")
	require.NoError(t, err)
	assert.Equal(t, types.StageEvaluating, resumable.Stage)

	stages, err := store.Stages("r1")
	require.NoError(t, err)
	assert.Equal(t, []types.Stage{
		types.StagePlanning, types.StageCollecting, types.StagePlanning, types.StageEvaluating, types.StageFailed,
	}, stages)
}

func TestStore_NotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Latest("missing")
	assert.True(t, eris.Is(err, ErrCheckpointNotFound))

	_, err = store.Save(snapshot("r1", 1, types.StagePlanning))
	require.NoError(t, err)
	_, err = store.Load("r1", types.StageComplete)
	assert.True(t, eris.Is(err, ErrCheckpointNotFound))

	_, err = store.Save(snapshot("r2", 3, types.StageComplete))
	require.NoError(t, err)
	_, err = store.Resumable("r2")
	assert.True(t, eris.Is(err, ErrCheckpointNotFound))
}

func TestStore_Runs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"b", "a"} {
		_, err := store.Save(snapshot(id, 0, types.StageInit))
		require.NoError(t, err)
	}

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, runs)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
