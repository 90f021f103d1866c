// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BackendKind selects the Backend implementation for a model.
type BackendKind string

const (
	// KindRemoteHTTP is an Ollama-compatible generate endpoint.
	KindRemoteHTTP BackendKind = "remote-http"

	// KindAnthropic is the Anthropic Messages API.
	KindAnthropic BackendKind = "anthropic"

	// KindLocalWeights runs a local inference binary against a weights file.
	KindLocalWeights BackendKind = "local-weights"
)

// ModelDescriptor describes one named model. It is immutable once
// registered; re-registering the name replaces it.
type ModelDescriptor struct {
	// Name is the registry key (e.g. "llama").
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind selects the backend implementation.
	Kind BackendKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Model is the provider-side model identifier (e.g. "llama3.1:8b").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Endpoint is the base URL for remote backends or the weights path for
	// local-weights backends.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// APIKey authenticates remote backends that need one.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p" mapstructure:"top_p"`
}

// TaskType is the classification used to pick a model.
type TaskType string

const (
	TaskCode      TaskType = "code"
	TaskReasoning TaskType = "reasoning"
	TaskFast      TaskType = "fast"
	TaskCreative  TaskType = "creative"
	TaskGeneral   TaskType = "general"
)
