// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultEndpoint is the Ollama server address used when a remote
// descriptor has none.
const DefaultEndpoint = "http://localhost:11434"

// RemoteHTTPBackend talks to an Ollama-compatible generate endpoint.
type RemoteHTTPBackend struct {
	desc   types.ModelDescriptor
	client *http.Client
}

// NewRemoteHTTPBackend returns an unloaded backend for desc.
func NewRemoteHTTPBackend(desc types.ModelDescriptor, client *http.Client) *RemoteHTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteHTTPBackend{desc: desc, client: client}
}

func (b *RemoteHTTPBackend) endpoint() string {
	if b.desc.Endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(b.desc.Endpoint, "/")
}

// Load checks that the server answers its model listing.
func (b *RemoteHTTPBackend) Load(ctx context.Context) error {
	err := httputil.GetJSON(ctx, b.client, httputil.Request{URL: b.endpoint() + "/api/tags"}, nil)
	if err != nil {
		return eris.Wrapf(err, "model: probe %s", b.endpoint())
	}
	return nil
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate posts one non-streaming completion request.
func (b *RemoteHTTPBackend) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	body := generateRequest{
		Model:  b.desc.Model,
		Prompt: prompt,
		Options: generateOptions{
			NumPredict:  p.MaxTokens,
			Temperature: p.Temperature,
			TopP:        p.TopP,
		},
	}

	var resp generateResponse
	err := httputil.PostJSON(ctx, b.client, httputil.Request{URL: b.endpoint() + "/api/generate"}, body, &resp)
	if err != nil {
		return "", eris.Wrapf(err, "model: generate with %s", b.desc.Model)
	}
	if resp.Error != "" {
		return "", eris.Errorf("model: %s: %s", b.desc.Model, resp.Error)
	}
	return resp.Response, nil
}

// Unload is a no-op; the server owns the model lifecycle.
func (b *RemoteHTTPBackend) Unload() error { return nil }
