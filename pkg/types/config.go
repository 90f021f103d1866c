package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout applied to every adapter call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-agent/0.1"). Reddit rejects requests without one.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SourcesConfig holds settings for the source adapters.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// GitHubToken raises the GitHub search rate limit when set.
	GitHubToken string `json:"-" yaml:"-" mapstructure:"github_token"`

	// BraveAPIKey enables Brave Search for web queries. Without it the web
	// adapter uses the DuckDuckGo Instant Answer API.
	BraveAPIKey string `json:"-" yaml:"-" mapstructure:"brave_api_key"`

	// RSSFeeds overrides the default feed list.
	RSSFeeds []string `json:"rss_feeds,omitempty" yaml:"rss_feeds,omitempty" mapstructure:"rss_feeds"`

	// Concurrency bounds the number of adapters running at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// ModelsConfig holds the model registry settings.
type ModelsConfig struct {
	// Descriptors are registered in order; the first is the fallback model.
	Descriptors []ModelDescriptor `json:"descriptors" yaml:"descriptors" mapstructure:"descriptors"`

	// GenerationTimeout is the fixed deadline for a single generate call (default 120s).
	GenerationTimeout time.Duration `json:"generation_timeout" yaml:"generation_timeout" mapstructure:"generation_timeout"`

	// AnthropicAPIKey is used by anthropic-kind descriptors without their own key.
	AnthropicAPIKey string `json:"-" yaml:"-" mapstructure:"anthropic_api_key"`
}

// WorkflowConfig holds settings for the workflow engine.
type WorkflowConfig struct {
	// CheckpointDir is where state snapshots are written (one subdirectory per run).
	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`

	// OutputDir is where rendered reports are saved.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// QualityThreshold is the score below which a run is refined (default 0.7).
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold" mapstructure:"quality_threshold"`

	// MaxRefinements bounds loop-backs to planning (default 1).
	MaxRefinements int `json:"max_refinements" yaml:"max_refinements" mapstructure:"max_refinements"`

	// Defaults for runs that do not specify their own.
	Depth     string `json:"depth" yaml:"depth" mapstructure:"depth"`
	Focus     string `json:"focus" yaml:"focus" mapstructure:"focus"`
	TimeRange string `json:"time_range" yaml:"time_range" mapstructure:"time_range"`
}

// CacheConfig holds settings for the response cache.
type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `json:"dir" yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// MemoryConfig holds settings for the past-research store.
type MemoryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// RecallLimit is the number of past records added to analysis context (default 3).
	RecallLimit int `json:"recall_limit" yaml:"recall_limit" mapstructure:"recall_limit"`
}

// FeedbackConfig holds settings for the feedback store.
type FeedbackConfig struct {
	// Dir holds one JSON file per feedback record.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// GitHubConfig holds settings for publishing results to an issue.
type GitHubConfig struct {
	Token string `json:"-" yaml:"-" mapstructure:"token"`

	// CompletedLabel is added to the issue after a successful run (default "completed").
	CompletedLabel string `json:"completed_label" yaml:"completed_label" mapstructure:"completed_label"`
}

// LogConfig selects the zap logger flavor.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "json" (production) or "console" (development).
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// ObservabilityConfig controls tracing and the metrics endpoint.
type ObservabilityConfig struct {
	// Tracing enables the stdout span exporter.
	Tracing bool `json:"tracing" yaml:"tracing" mapstructure:"tracing"`

	// MetricsAddr, when set, serves Prometheus metrics at /metrics (e.g. ":9090").
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// AgentConfig groups every component configuration. It is built once by the
// config loader and passed explicitly to constructors.
type AgentConfig struct {
	Sources       SourcesConfig       `json:"sources" yaml:"sources" mapstructure:"sources"`
	Models        ModelsConfig        `json:"models" yaml:"models" mapstructure:"models"`
	Workflow      WorkflowConfig      `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
	Cache         CacheConfig         `json:"cache" yaml:"cache" mapstructure:"cache"`
	Memory        MemoryConfig        `json:"memory" yaml:"memory" mapstructure:"memory"`
	Feedback      FeedbackConfig      `json:"feedback" yaml:"feedback" mapstructure:"feedback"`
	GitHub        GitHubConfig        `json:"github" yaml:"github" mapstructure:"github"`
	Log           LogConfig           `json:"log" yaml:"log" mapstructure:"log"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability" mapstructure:"observability"`
}
