// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/secrets"
	"github.com/pdiddy/research-agent/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, "research-agent/0.1", cfg.Sources.UserAgent)
	assert.Equal(t, 3, cfg.Sources.MaxRetries)
	assert.Equal(t, 4, cfg.Sources.Concurrency)
	assert.Equal(t, 120*time.Second, cfg.Models.GenerationTimeout)
	assert.Empty(t, cfg.Models.Descriptors)
	assert.InDelta(t, 0.7, cfg.Workflow.QualityThreshold, 0.001)
	assert.Equal(t, 1, cfg.Workflow.MaxRefinements)
	assert.Equal(t, "standard", cfg.Workflow.Depth)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Memory.RecallLimit)
	assert.Equal(t, "completed", cfg.GitHub.CompletedLabel)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Observability.Tracing)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
sources:
  timeout: 10s
  concurrency: 2
  rss_feeds:
    - https://example.com/feed.xml
models:
  generation_timeout: 30s
  descriptors:
    - name: claude
      kind: anthropic
      model: claude-sonnet-4-5
      max_tokens: 4096
    - name: llama
      kind: remote-http
      model: llama3.1:8b
      endpoint: http://gpu:11434
workflow:
  depth: deep
  time_range: year
cache:
  ttl: 1h
log:
  level: debug
`)))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, 2, cfg.Sources.Concurrency)
	assert.Equal(t, []string{"https://example.com/feed.xml"}, cfg.Sources.RSSFeeds)
	assert.Equal(t, 30*time.Second, cfg.Models.GenerationTimeout)
	require.Len(t, cfg.Models.Descriptors, 2)
	assert.Equal(t, types.ModelDescriptor{Name: "claude", Kind: types.KindAnthropic, Model: "claude-sonnet-4-5", MaxTokens: 4096}, cfg.Models.Descriptors[0])
	assert.Equal(t, "http://gpu:11434", cfg.Models.Descriptors[1].Endpoint)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "all", cfg.Workflow.Focus)
	assert.Equal(t, "research-agent/0.1", cfg.Sources.UserAgent)

	run := RunDefaults(cfg.Workflow)
	assert.Equal(t, types.RunConfig{Depth: types.DepthDeep, Focus: types.FocusAll, Window: types.WindowYear}, run)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RESEARCH_AGENT_WORKFLOW_OUTPUT_DIR", "/tmp/reports")
	t.Setenv("RESEARCH_AGENT_SOURCES_CONCURRENCY", "8")
	t.Setenv("GITHUB_TOKEN", "ci-token")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reports", cfg.Workflow.OutputDir)
	assert.Equal(t, 8, cfg.Sources.Concurrency)
	assert.Equal(t, "ci-token", cfg.GitHub.Token)
}

func TestApplySecrets(t *testing.T) {
	cfg := &types.AgentConfig{}
	cfg.Sources.BraveAPIKey = "configured"

	ApplySecrets(cfg, map[string]string{
		secrets.GitHubToken:     "gh",
		secrets.BraveAPIKey:     "from-file",
		secrets.AnthropicAPIKey: "sk-ant",
	})

	assert.Equal(t, "gh", cfg.Sources.GitHubToken)
	assert.Equal(t, "configured", cfg.Sources.BraveAPIKey, "configured values win")
	assert.Equal(t, "sk-ant", cfg.Models.AnthropicAPIKey)
	assert.Equal(t, "gh", cfg.GitHub.Token)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(types.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(types.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(types.LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
