// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/internal/config"
	"github.com/pdiddy/research-agent/internal/github"
	"github.com/pdiddy/research-agent/internal/issue"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/internal/workflow"
	"github.com/pdiddy/research-agent/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Run a research workflow to completion",
	Long: `Run collects, analyzes, renders and scores research on a query, refining
the run when its quality score is below the configured threshold. Reports are
written to the output directory as <query>.md, .json, .html, .bib, .csv and
.mmd, with the quality report in <query>_evaluation.json.

The query is the positional argument or, for issue-driven runs, the issue
title with any "Research:" prefix removed. Run options in the issue body's
YAML front matter (depth, focus, time_range, skip_evaluation) are applied
before command-line flags. With --repo and --issue the result is posted as a
comment and the issue is labeled on success.

With --steps N (N > 1) the query is first split by the model into up to N
sub-questions. Each is researched as its own run, and the answers are
synthesized into one final answer written to <query>_multistep.json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRunConfigFlags(runCmd)
	runCmd.Flags().String("issue-title", "", "issue title to take the query from")
	runCmd.Flags().String("issue-body", "", "issue body with optional YAML front matter")
	runCmd.Flags().String("repo", "", "repository (owner/name) to publish results to")
	runCmd.Flags().Int("issue", 0, "issue number to publish results to")
	runCmd.Flags().String("model", "", "force a registered model for analysis")
	runCmd.Flags().String("output-dir", "", "directory for rendered reports (default: workflow.output_dir)")
	runCmd.Flags().String("format", "", "print the final state as json or yaml")
	runCmd.Flags().Int("steps", 1, "split the query into up to this many sub-questions and synthesize their answers")

	rootCmd.AddCommand(runCmd)
}

// addRunConfigFlags registers the flags that override a run's config.
func addRunConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("depth", "", "collection depth: quick, standard, deep")
	cmd.Flags().String("focus", "", "source focus: papers, tools, trends, all")
	cmd.Flags().String("time-range", "", "time window: week, month, year, all")
	cmd.Flags().Bool("skip-evaluation", false, "complete after synthesis without scoring")
}

// runConfigFromFlags layers explicitly set flags over base.
func runConfigFromFlags(cmd *cobra.Command, base types.RunConfig) types.RunConfig {
	flags := cmd.Flags()
	if flags.Changed("depth") {
		v, _ := flags.GetString("depth")
		base.Depth = types.ParseDepth(v)
	}
	if flags.Changed("focus") {
		v, _ := flags.GetString("focus")
		base.Focus = types.ParseFocus(v)
	}
	if flags.Changed("time-range") {
		v, _ := flags.GetString("time-range")
		base.Window = types.ParseWindow(v)
	}
	if flags.Changed("skip-evaluation") {
		base.SkipEvaluation, _ = flags.GetBool("skip-evaluation")
	}
	return base
}

// issueTarget identifies where results are published. A zero value
// disables publishing.
type issueTarget struct {
	repo   string
	number int
}

func (t issueTarget) enabled() bool { return t.repo != "" && t.number > 0 }

func runRun(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("issue-title")
	body, _ := cmd.Flags().GetString("issue-body")
	forceModel, _ := cmd.Flags().GetString("model")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	format, _ := cmd.Flags().GetString("format")
	repo, _ := cmd.Flags().GetString("repo")
	number, _ := cmd.Flags().GetInt("issue")
	steps, _ := cmd.Flags().GetInt("steps")
	target := issueTarget{repo: repo, number: number}

	var query string
	switch {
	case len(args) == 1:
		query = strings.TrimSpace(args[0])
	case title != "":
		query = issue.ExtractQuery(title)
	}
	if query == "" {
		return eris.New("a query or --issue-title is required")
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	if steps > 1 && target.enabled() {
		return eris.New("--steps cannot be combined with --repo and --issue")
	}

	base := config.RunDefaults(agentCfg.Workflow)
	if body != "" {
		base = issue.ParseConfig(body)
	}
	runCfg := runConfigFromFlags(cmd, base)
	if outputDir == "" {
		outputDir = agentCfg.Workflow.OutputDir
	}

	p, err := newPipeline(agentCfg, forceModel)
	if err != nil {
		return err
	}
	defer p.Close()

	zap.L().Info("starting research",
		zap.String("query", query),
		zap.String("depth", string(runCfg.Depth)),
		zap.String("focus", string(runCfg.Focus)),
		zap.String("window", string(runCfg.Window)),
	)

	ctx := cmd.Context()
	if steps > 1 {
		return runSteps(ctx, cmd.OutOrStdout(), p.analyzer, p.engine, query, runCfg, steps, outputDir, format)
	}
	state, runErr := p.engine.Execute(ctx, query, runCfg)
	return finishRun(ctx, cmd.OutOrStdout(), state, runErr, outputDir, format, target)
}

// finishRun saves reports, publishes to the issue and prints the final
// state. It returns runErr so a failed run exits non-zero.
func finishRun(ctx context.Context, w io.Writer, state *types.WorkflowState, runErr error, outputDir, format string, target issueTarget) error {
	if state != nil && state.Stage == types.StageComplete {
		if err := saveReports(outputDir, state); err != nil {
			zap.L().Error("saving reports", zap.Error(err))
		}
	}

	if target.enabled() {
		publish(ctx, target, state, runErr)
	}

	if state != nil {
		if err := printState(w, state, format); err != nil {
			return err
		}
	}
	return runErr
}

// saveReports writes the rendered outputs and the quality report.
func saveReports(dir string, state *types.WorkflowState) error {
	base := report.FileBase(state.Query)
	paths, err := report.Save(dir, base, state.Report)
	if err != nil {
		return err
	}
	if state.Quality != nil {
		data, err := json.MarshalIndent(state.Quality, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode quality report")
		}
		path := filepath.Join(dir, base+"_evaluation.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}
		paths = append(paths, path)
	}
	for _, p := range paths {
		zap.L().Debug("wrote report", zap.String("path", p))
	}
	return nil
}

// publish posts the run outcome to the issue. Failures are logged and never
// change the run's result.
func publish(ctx context.Context, target issueTarget, state *types.WorkflowState, runErr error) {
	client := github.NewClient(agentCfg.GitHub.Token)

	switch {
	case runErr == nil && state != nil && state.Stage == types.StageComplete:
		if !client.PostComment(ctx, target.repo, target.number, github.SummaryComment(state.Report, state.Quality)) {
			return
		}
		label := agentCfg.GitHub.CompletedLabel
		if label == "" {
			label = github.DefaultCompletedLabel
		}
		if err := client.AddLabel(ctx, target.repo, target.number, label); err != nil {
			zap.L().Warn("labeling issue", zap.String("repo", target.repo), zap.Int("issue", target.number), zap.Error(err))
		}
	case eris.Is(runErr, workflow.ErrNoData):
		query := ""
		if state != nil {
			query = state.Query
		}
		client.PostComment(ctx, target.repo, target.number, github.NoDataComment(query))
	case runErr != nil:
		client.PostComment(ctx, target.repo, target.number, github.FailureComment(runErr))
	}
}

func checkFormat(format string) error {
	switch format {
	case "", "json", "yaml":
		return nil
	}
	return eris.Errorf("unknown format %q (want json or yaml)", format)
}

// printState writes the state in format, or a one-line summary when format
// is empty.
func printState(w io.Writer, state *types.WorkflowState, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(state); err != nil {
			return eris.Wrap(err, "encode state")
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, workflow.Summary(state))
		return err
	}
}
