// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/memory"
	"github.com/pdiddy/research-agent/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and exercise the model registry",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := model.FromConfig(agentCfg.Models, http.DefaultClient)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tMODEL\tENDPOINT\tMAX TOKENS")
		for _, name := range reg.Names() {
			d, _ := reg.Descriptor(name)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", d.Name, d.Kind, d.Model, d.Endpoint, d.MaxTokens)
		}
		return tw.Flush()
	},
}

var modelsSelectCmd = &cobra.Command{
	Use:   "select <text>",
	Short: "Show the task type and model chosen for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := model.FromConfig(agentCfg.Models, http.DefaultClient)
		if err != nil {
			return err
		}
		task := model.ClassifyTask(strings.Join(args, " "))
		fmt.Fprintf(cmd.OutOrStdout(), "task: %s\nmodel: %s\n", task, reg.SelectBackend(task))
		return nil
	},
}

var modelsGenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Run one completion through the registry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("model")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")

		reg, err := model.FromConfig(agentCfg.Models, &http.Client{Timeout: agentCfg.Models.GenerationTimeout})
		if err != nil {
			return err
		}
		defer reg.UnloadAll()

		var gen model.Generator = reg
		if agentCfg.Cache.Enabled {
			cache, err := memory.NewCache(agentCfg.Cache)
			if err != nil {
				return err
			}
			gen = memory.NewCachedGenerator(reg, cache)
		}

		text, err := gen.Generate(cmd.Context(), strings.Join(args, " "), model.Options{Model: name, MaxTokens: maxTokens})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	modelsGenerateCmd.Flags().String("model", "", "registered model name (default: selected from the prompt)")
	modelsGenerateCmd.Flags().Int("max-tokens", 0, "override the model's max tokens")

	modelsCmd.AddCommand(modelsListCmd, modelsSelectCmd, modelsGenerateCmd)
	rootCmd.AddCommand(modelsCmd)
}
