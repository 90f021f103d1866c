// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/internal/aggregate"
	"github.com/pdiddy/research-agent/internal/config"
	"github.com/pdiddy/research-agent/internal/memory"
	"github.com/pdiddy/research-agent/pkg/types"
)

var collectCmd = &cobra.Command{
	Use:   "collect <query>",
	Short: "Collect items from all sources without analysis",
	Long: `Collect runs the source adapters for a query under the focus and depth
policy and prints the result set. Results are cached for the configured TTL;
--refresh bypasses the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		refresh, _ := cmd.Flags().GetBool("refresh")
		if format == "" {
			format = "json"
		}
		if err := checkFormat(format); err != nil {
			return err
		}

		runCfg := runConfigFromFlags(cmd, config.RunDefaults(agentCfg.Workflow))
		req := aggregate.Request{Query: args[0], Focus: runCfg.Focus, Window: runCfg.Window, Depth: runCfg.Depth}

		var cache *memory.Cache
		if agentCfg.Cache.Enabled {
			c, err := memory.NewCache(agentCfg.Cache)
			if err != nil {
				return err
			}
			cache = c
		}
		key := memory.Key("collect", req.Query, string(req.Focus), string(req.Window), string(req.Depth))

		rs := types.NewResultSet()
		hit := cache != nil && !refresh && cache.GetInto(key, &rs)
		if !hit {
			agg := aggregate.New(aggregate.NewAdapters(agentCfg.Sources), agentCfg.Sources.Concurrency)
			rs = agg.Collect(cmd.Context(), req)
			if cache != nil && rs.Total() > 0 {
				if err := cache.Set(key, rs); err != nil {
					zap.L().Warn("caching result set", zap.Error(err))
				}
			}
		}
		zap.L().Info("collected", zap.String("query", req.Query), zap.Int("items", rs.Total()), zap.Bool("cached", hit))

		w := cmd.OutOrStdout()
		if format == "yaml" {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(rs); err != nil {
				return err
			}
			return enc.Close()
		}
		data, err := json.MarshalIndent(rs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	},
}

func init() {
	addRunConfigFlags(collectCmd)
	collectCmd.Flags().String("format", "json", "output format: json or yaml")
	collectCmd.Flags().Bool("refresh", false, "ignore cached results")

	rootCmd.AddCommand(collectCmd)
}
