// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model holds named model descriptors, lazily loads inference
// backends for them, picks a model for a task, and exposes one generate
// call with a fixed deadline and typed failures.
package model

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Failure categories returned by Registry.Generate. Callers test with
// eris.Is and decide their own retry policy.
var (
	ErrBackendUnavailable = eris.New("model: backend unavailable")
	ErrGenerationTimeout  = eris.New("model: generation timed out")
	ErrBackendError       = eris.New("model: backend error")
)

// Params are the sampling parameters for one generate call.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Backend is one loaded inference engine.
type Backend interface {
	// Load prepares the backend. It fails when the engine is unreachable
	// or misconfigured.
	Load(ctx context.Context) error

	// Generate runs one synchronous completion.
	Generate(ctx context.Context, prompt string, p Params) (string, error)

	// Unload releases any held resources.
	Unload() error
}

// Factory builds an unloaded Backend from a descriptor.
type Factory func(desc types.ModelDescriptor) (Backend, error)

// DefaultFactory builds the backend matching desc.Kind.
func DefaultFactory(client *http.Client) Factory {
	return func(desc types.ModelDescriptor) (Backend, error) {
		switch desc.Kind {
		case types.KindRemoteHTTP, "":
			return NewRemoteHTTPBackend(desc, client), nil
		case types.KindAnthropic:
			return NewAnthropicBackend(desc), nil
		case types.KindLocalWeights:
			return NewLocalWeightsBackend(desc), nil
		default:
			return nil, eris.Errorf("model: unknown backend kind %q for %s", desc.Kind, desc.Name)
		}
	}
}
