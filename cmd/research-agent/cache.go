// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/memory"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the response cache and past-research memory",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and the number of remembered runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := memory.NewCache(agentCfg.Cache)
		if err != nil {
			return err
		}
		st, err := cache.Stats()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "cache dir: %s\nentries: %d (%d expired)\nsize: %d bytes\n",
			agentCfg.Cache.Dir, st.Entries, st.Expired, st.Bytes)

		if agentCfg.Memory.Enabled {
			n, err := rememberedRuns(cmd.Context())
			if err != nil {
				fmt.Fprintf(w, "memory: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(w, "memory: %d remembered runs in %s\n", n, agentCfg.Memory.Path)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := memory.NewCache(agentCfg.Cache)
		if err != nil {
			return err
		}
		n, err := cache.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	},
}

var cacheRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Show past research related to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		recall, err := memory.OpenRecall(agentCfg.Memory.Path)
		if err != nil {
			return err
		}
		defer recall.Close()

		text := recall.ContextFor(cmd.Context(), args[0], limit)
		if text == "" {
			text = "no related past research"
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func rememberedRuns(ctx context.Context) (int, error) {
	recall, err := memory.OpenRecall(agentCfg.Memory.Path)
	if err != nil {
		return 0, err
	}
	defer recall.Close()
	return recall.Count(ctx)
}

func init() {
	cacheRecallCmd.Flags().Int("limit", memory.DefaultRecallLimit, "maximum number of past records")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheRecallCmd)
	rootCmd.AddCommand(cacheCmd)
}
