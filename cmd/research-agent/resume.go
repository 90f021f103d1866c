// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/workflow"
	"github.com/pdiddy/research-agent/pkg/types"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run from a checkpoint",
	Long: `Resume continues a run from its latest non-terminal checkpoint, or from the
checkpoint of the stage named by --stage. The resumed run writes new
checkpoints alongside the existing ones and saves reports as run does.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		forceModel, _ := cmd.Flags().GetString("model")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		if outputDir == "" {
			outputDir = agentCfg.Workflow.OutputDir
		}

		p, err := newPipeline(agentCfg, forceModel)
		if err != nil {
			return err
		}
		defer p.Close()

		var state *types.WorkflowState
		if stage != "" {
			state, err = p.checkpoints.Load(args[0], types.Stage(stage))
		} else {
			state, err = p.checkpoints.Resumable(args[0])
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		final, runErr := p.engine.Resume(ctx, state)
		return finishRun(ctx, cmd.OutOrStdout(), final, runErr, outputDir, format, issueTarget{})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List checkpointed runs, or the checkpoints of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workflow.NewStore(agentCfg.Workflow.CheckpointDir)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if len(args) == 1 {
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format); err != nil {
				return err
			}
			if format != "" {
				state, err := store.Latest(args[0])
				if err != nil {
					return err
				}
				return printState(w, state, format)
			}
			stages, err := store.Stages(args[0])
			if err != nil {
				return err
			}
			names := make([]string, len(stages))
			for i, s := range stages {
				names[i] = string(s)
			}
			fmt.Fprintf(w, "%s: %s\n", args[0], strings.Join(names, " -> "))
			return nil
		}

		ids, err := store.Runs()
		if err != nil {
			return err
		}
		for _, id := range ids {
			state, err := store.Latest(id)
			if err != nil {
				fmt.Fprintf(w, "%s\t(unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%q\n", id, state.UpdatedAt.Format("2006-01-02 15:04"), state.Stage, state.Query)
		}
		return nil
	},
}

func init() {
	resumeCmd.Flags().String("stage", "", "resume from this stage's checkpoint instead of the latest")
	resumeCmd.Flags().String("model", "", "force a registered model for analysis")
	resumeCmd.Flags().String("output-dir", "", "directory for rendered reports (default: workflow.output_dir)")
	resumeCmd.Flags().String("format", "", "print the final state as json or yaml")

	runsCmd.Flags().String("format", "", "print the latest state of the run as json or yaml")

	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(runsCmd)
}
