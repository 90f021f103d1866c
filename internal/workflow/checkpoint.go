// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/pkg/types"
)

// ErrCheckpointNotFound is returned when no checkpoint matches a lookup.
var ErrCheckpointNotFound = eris.New("checkpoint not found")

// Store persists workflow state snapshots as JSON files laid out as
// dir/<run_id>/<seq>-<stage>.json. Files are written once and never
// modified.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, eris.New("workflow: checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "workflow: create checkpoint dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

// checkpointRef names one checkpoint file.
type checkpointRef struct {
	seq   int
	stage types.Stage
	path  string
}

// Save writes a snapshot of state and returns its path. A snapshot with the
// same run, sequence and stage is never overwritten.
func (s *Store) Save(state *types.WorkflowState) (string, error) {
	runDir := filepath.Join(s.dir, state.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "workflow: create run dir %s", runDir)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "workflow: encode checkpoint")
	}

	path := filepath.Join(runDir, fmt.Sprintf("%02d-%s.json", state.Transitions, state.Stage))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", eris.Wrapf(err, "workflow: create checkpoint %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", eris.Wrapf(err, "workflow: write checkpoint %s", path)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "workflow: close checkpoint %s", path)
	}
	return path, nil
}

// Load returns the most recent checkpoint of runID taken at stage.
func (s *Store) Load(runID string, stage types.Stage) (*types.WorkflowState, error) {
	refs, err := s.list(runID)
	if err != nil {
		return nil, err
	}
	for i := len(refs) - 1; i >= 0; i-- {
		if refs[i].stage == stage {
			return readCheckpoint(refs[i].path)
		}
	}
	return nil, eris.Wrapf(ErrCheckpointNotFound, "run %s stage %s", runID, stage)
}

// Latest returns the most recent checkpoint of runID.
func (s *Store) Latest(runID string) (*types.WorkflowState, error) {
	refs, err := s.list(runID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, eris.Wrapf(ErrCheckpointNotFound, "run %s", runID)
	}
	return readCheckpoint(refs[len(refs)-1].path)
}

// Resumable returns the most recent non-terminal checkpoint of runID.
func (s *Store) Resumable(runID string) (*types.WorkflowState, error) {
	refs, err := s.list(runID)
	if err != nil {
		return nil, err
	}
	for i := len(refs) - 1; i >= 0; i-- {
		if !refs[i].stage.Terminal() {
			return readCheckpoint(refs[i].path)
		}
	}
	return nil, eris.Wrapf(ErrCheckpointNotFound, "run %s has no resumable stage", runID)
}

// Stages lists the checkpointed stages of runID in sequence order.
func (s *Store) Stages(runID string) ([]types.Stage, error) {
	refs, err := s.list(runID)
	if err != nil {
		return nil, err
	}
	stages := make([]types.Stage, len(refs))
	for i, r := range refs {
		stages[i] = r.stage
	}
	return stages, nil
}

// Runs lists the run IDs that have checkpoints, sorted.
func (s *Store) Runs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: read checkpoint dir %s", s.dir)
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

func (s *Store) list(runID string) ([]checkpointRef, error) {
	runDir := filepath.Join(s.dir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrCheckpointNotFound, "run %s", runID)
		}
		return nil, eris.Wrapf(err, "workflow: read run dir %s", runDir)
	}

	var refs []checkpointRef
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		seqStr, stage, ok := strings.Cut(strings.TrimSuffix(name, ".json"), "-")
		if !ok {
			continue
		}
		seq, err := strconv.Atoi(seqStr)
		if err != nil {
			continue
		}
		refs = append(refs, checkpointRef{seq: seq, stage: types.Stage(stage), path: filepath.Join(runDir, name)})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].seq < refs[j].seq })
	return refs, nil
}

func readCheckpoint(path string) (*types.WorkflowState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: read checkpoint %s", path)
	}
	var state types.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, eris.Wrapf(err, "workflow: decode checkpoint %s", path)
	}
	return &state, nil
}
