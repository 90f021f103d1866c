// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/internal/analysis"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/pkg/types"
)

// stepPlanner splits a query and synthesizes the answers to its parts.
type stepPlanner interface {
	ResearchSteps(ctx context.Context, query string, n int, run analysis.StepFunc) (analysis.MultiStep, error)
}

// executor runs one research workflow.
type executor interface {
	Execute(ctx context.Context, query string, cfg types.RunConfig) (*types.WorkflowState, error)
}

// runSteps researches query through up to steps sub-questions. Each
// completed sub-run saves its own reports; the combined result is written
// to <query>_multistep.json.
func runSteps(ctx context.Context, w io.Writer, planner stepPlanner, exec executor, query string, cfg types.RunConfig, steps int, outputDir, format string) error {
	run := func(ctx context.Context, q string) (string, *types.Analysis, error) {
		state, err := exec.Execute(ctx, q, cfg)
		if state == nil {
			return "", nil, err
		}
		if err == nil && state.Stage == types.StageComplete {
			if serr := saveReports(outputDir, state); serr != nil {
				zap.L().Error("saving sub-question reports", zap.String("question", q), zap.Error(serr))
			}
		}
		return state.RunID, state.Analysis, err
	}

	result, err := planner.ResearchSteps(ctx, query, steps, run)
	if result.FinalAnswer != "" {
		if serr := saveMultiStep(outputDir, result); serr != nil {
			zap.L().Error("saving multi-step result", zap.Error(serr))
		}
	}
	if perr := printMultiStep(w, result, format); perr != nil {
		return perr
	}
	return err
}

func saveMultiStep(dir string, result analysis.MultiStep) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", dir)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode multi-step result")
	}
	path := filepath.Join(dir, report.FileBase(result.Query)+"_multistep.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	zap.L().Debug("wrote multi-step result", zap.String("path", path))
	return nil
}

// printMultiStep writes the result in format, or the sub-questions and the
// final answer when format is empty.
func printMultiStep(w io.Writer, result analysis.MultiStep, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode multi-step result")
		}
		return enc.Close()
	}

	for i, st := range result.Steps {
		status := "ok"
		if st.Error != "" {
			status = st.Error
		}
		if _, err := fmt.Fprintf(w, "%d. %s [%s]\n", i+1, st.Question, status); err != nil {
			return err
		}
	}
	if result.FinalAnswer == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "\n%s\n", result.FinalAnswer)
	return err
}
