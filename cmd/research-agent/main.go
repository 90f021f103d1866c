// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-agent CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/config"
	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/internal/secrets"
	"github.com/pdiddy/research-agent/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// agentCfg is the configuration built once per invocation.
var agentCfg *types.AgentConfig

var tracer *observability.TracerProvider

// rootCmd is the base command for the research-agent CLI.
var rootCmd = &cobra.Command{
	Use:   "research-agent",
	Short: "Collect, analyze and report on a research topic",
	Long: `research-agent runs a research workflow for a free-text query: it collects
papers, repositories, news, discussions and web results from public sources,
synthesizes them with a language model, renders reports in several formats
and scores their quality, refining the run once when the score is low.

Runs are checkpointed after every stage and can be resumed. When started from
a GitHub issue, results are posted back as a comment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		config.ApplySecrets(cfg, s)
		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		agentCfg = cfg

		if len(s) > 0 {
			zap.L().Debug("loaded secrets", zap.Strings("keys", secrets.Names(s)))
		}
		if f := viper.ConfigFileUsed(); f != "" {
			zap.L().Debug("using config file", zap.String("path", f))
		}

		if cfg.Observability.Tracing {
			tp, err := observability.NewTracerProvider("research-agent", version, os.Stderr)
			if err != nil {
				return err
			}
			tracer = tp
		}
		if addr := cfg.Observability.MetricsAddr; addr != "" {
			go serveMetrics(addr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(ctx); err != nil {
				zap.L().Warn("flushing traces", zap.Error(err))
			}
		}
		_ = zap.L().Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-agent.yaml or ~/.config/research-agent/research-agent.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-agent"))
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Reading config:", err)
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	zap.L().Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("metrics server stopped", zap.Error(err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
