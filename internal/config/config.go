// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the agent configuration from defaults, an optional
// YAML file, RESEARCH_AGENT_* environment variables and the .secrets/
// directory, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-agent/internal/secrets"
	"github.com/pdiddy/research-agent/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g.
// RESEARCH_AGENT_WORKFLOW_OUTPUT_DIR.
const EnvPrefix = "RESEARCH_AGENT"

// SetDefaults registers every configuration key with its default value.
// Keys must be registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("sources.user_agent", "research-agent/0.1")
	v.SetDefault("sources.max_retries", 3)
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("sources.github_token", "")
	v.SetDefault("sources.brave_api_key", "")
	v.SetDefault("sources.rss_feeds", []string{})

	v.SetDefault("models.generation_timeout", 120*time.Second)
	v.SetDefault("models.anthropic_api_key", "")

	v.SetDefault("workflow.checkpoint_dir", ".research/checkpoints")
	v.SetDefault("workflow.output_dir", "output")
	v.SetDefault("workflow.quality_threshold", 0.7)
	v.SetDefault("workflow.max_refinements", 1)
	v.SetDefault("workflow.depth", "standard")
	v.SetDefault("workflow.focus", "all")
	v.SetDefault("workflow.time_range", "month")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", ".research/cache")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("memory.enabled", true)
	v.SetDefault("memory.path", ".research/memory.db")
	v.SetDefault("memory.recall_limit", 3)

	v.SetDefault("feedback.dir", ".research/feedback")

	v.SetDefault("github.token", "")
	v.SetDefault("github.completed_label", "completed")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("observability.tracing", false)
	v.SetDefault("observability.metrics_addr", "")
}

// BindEnv enables RESEARCH_AGENT_* overrides for every registered key.
// GITHUB_TOKEN is also accepted for the issue client, as set by CI runners.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return eris.Wrap(err, "config: bind github token")
	}
	return nil
}

// Load sets defaults and environment bindings on v and unmarshals the
// result. A config file, if any, must already be read into v.
func Load(v *viper.Viper) (*types.AgentConfig, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	var cfg types.AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// ApplySecrets fills empty credentials from the loaded secrets directory.
func ApplySecrets(cfg *types.AgentConfig, s map[string]string) {
	cfg.Sources.GitHubToken = secrets.Fill(cfg.Sources.GitHubToken, s, secrets.GitHubToken)
	cfg.Sources.BraveAPIKey = secrets.Fill(cfg.Sources.BraveAPIKey, s, secrets.BraveAPIKey)
	cfg.Models.AnthropicAPIKey = secrets.Fill(cfg.Models.AnthropicAPIKey, s, secrets.AnthropicAPIKey)
	cfg.GitHub.Token = secrets.Fill(cfg.GitHub.Token, s, secrets.GitHubToken)
}

// RunDefaults returns the run configuration implied by the workflow
// section.
func RunDefaults(w types.WorkflowConfig) types.RunConfig {
	return types.RunConfig{
		Depth:  types.ParseDepth(w.Depth),
		Focus:  types.ParseFocus(w.Focus),
		Window: types.ParseWindow(w.TimeRange),
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg types.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
