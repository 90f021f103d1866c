// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

func TestRemoteHTTPBackend_LoadAndGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`{"models":[{"name":"llama3.1:8b"}]}`))
		case "/api/generate":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"response":"generated text","done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewRemoteHTTPBackend(types.ModelDescriptor{Name: "llama", Model: "llama3.1:8b", Endpoint: srv.URL + "/"}, srv.Client())
	require.NoError(t, b.Load(context.Background()))

	out, err := b.Generate(context.Background(), "hello", Params{MaxTokens: 100, Temperature: 0.5, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)

	assert.Equal(t, "llama3.1:8b", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, generateOptions{NumPredict: 100, Temperature: 0.5, TopP: 0.9}, got.Options)
	assert.NoError(t, b.Unload())
}

func TestRemoteHTTPBackend_LoadFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	b := NewRemoteHTTPBackend(types.ModelDescriptor{Name: "llama", Endpoint: url}, nil)
	assert.Error(t, b.Load(context.Background()))
}

func TestRemoteHTTPBackend_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantMsg: "Internal Server Error"},
		{name: "error field", status: http.StatusOK, body: `{"error":"model not found"}`, wantMsg: "model not found"},
		{name: "malformed", status: http.StatusOK, body: `{"response":`, wantMsg: "generate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := NewRemoteHTTPBackend(types.ModelDescriptor{Name: "m", Model: "m", Endpoint: srv.URL}, srv.Client())
			_, err := b.Generate(context.Background(), "p", Params{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRemoteHTTPBackend_DefaultEndpoint(t *testing.T) {
	b := NewRemoteHTTPBackend(types.ModelDescriptor{Name: "m"}, nil)
	assert.Equal(t, DefaultEndpoint, b.endpoint())
}

// fakeMessages implements messageCreator.
type fakeMessages struct {
	params sdk.MessageNewParams
	msg    *sdk.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.params = body
	return f.msg, f.err
}

func TestAnthropicBackend_LoadRequiresKey(t *testing.T) {
	b := NewAnthropicBackend(types.ModelDescriptor{Name: "claude", Kind: types.KindAnthropic})
	err := b.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	b = NewAnthropicBackend(types.ModelDescriptor{Name: "claude", Kind: types.KindAnthropic, APIKey: "sk-test"})
	require.NoError(t, b.Load(context.Background()))
	assert.NotNil(t, b.messages)
	require.NoError(t, b.Unload())
	assert.Nil(t, b.messages)
}

func TestAnthropicBackend_Generate(t *testing.T) {
	fake := &fakeMessages{msg: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "first "},
			{Type: "thinking"},
			{Type: "text", Text: "second"},
		},
	}}
	b := NewAnthropicBackend(types.ModelDescriptor{Name: "claude", Model: "claude-haiku-4-5-20251001"})
	b.messages = fake

	out, err := b.Generate(context.Background(), "summarize", Params{MaxTokens: 512, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "first second", out)
	assert.Equal(t, sdk.Model("claude-haiku-4-5-20251001"), fake.params.Model)
	assert.Equal(t, int64(512), fake.params.MaxTokens)
	require.Len(t, fake.params.Messages, 1)
}

func TestAnthropicBackend_GenerateErrors(t *testing.T) {
	b := NewAnthropicBackend(types.ModelDescriptor{Name: "claude"})
	_, err := b.Generate(context.Background(), "p", Params{})
	assert.Error(t, err, "not loaded")

	b.messages = &fakeMessages{err: errors.New("overloaded")}
	_, err = b.Generate(context.Background(), "p", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool
	files         map[string]bool
	runPipedFunc  func(name string, args []string, stdout io.Writer) error
	lastArgs      []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Stat(path string) error {
	if m.files[path] {
		return nil
	}
	return errors.New("no such file: " + path)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdout io.Writer) error {
	m.lastArgs = args
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdout)
	}
	return nil
}

func TestLocalWeightsBackend_Load(t *testing.T) {
	tests := []struct {
		name    string
		desc    types.ModelDescriptor
		exec    *mockExecutor
		wantErr string
	}{
		{
			name: "binary and weights present",
			desc: types.ModelDescriptor{Name: "local", Endpoint: "/models/llama.gguf"},
			exec: &mockExecutor{
				availableBins: map[string]bool{"llama-cli": true},
				files:         map[string]bool{"/models/llama.gguf": true},
			},
		},
		{
			name:    "binary missing",
			desc:    types.ModelDescriptor{Name: "local", Endpoint: "/models/llama.gguf"},
			exec:    &mockExecutor{files: map[string]bool{"/models/llama.gguf": true}},
			wantErr: "not found on PATH",
		},
		{
			name:    "weights path empty",
			desc:    types.ModelDescriptor{Name: "local"},
			exec:    &mockExecutor{availableBins: map[string]bool{"llama-cli": true}},
			wantErr: "weights path not configured",
		},
		{
			name:    "weights missing",
			desc:    types.ModelDescriptor{Name: "local", Endpoint: "/models/missing.gguf"},
			exec:    &mockExecutor{availableBins: map[string]bool{"llama-cli": true}},
			wantErr: "missing.gguf",
		},
		{
			name: "custom binary",
			desc: types.ModelDescriptor{Name: "local", Model: "llamafile", Endpoint: "/m.gguf"},
			exec: &mockExecutor{
				availableBins: map[string]bool{"llamafile": true},
				files:         map[string]bool{"/m.gguf": true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newLocalWeightsBackend(tt.desc, tt.exec)
			err := b.Load(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocalWeightsBackend_Generate(t *testing.T) {
	m := &mockExecutor{
		runPipedFunc: func(name string, args []string, stdout io.Writer) error {
			assert.Equal(t, "llama-cli", name)
			_, err := io.WriteString(stdout, "the prompt the answer\n")
			return err
		},
	}
	b := newLocalWeightsBackend(types.ModelDescriptor{Name: "local", Endpoint: "/m.gguf"}, m)

	out, err := b.Generate(context.Background(), "the prompt", Params{MaxTokens: 128, Temperature: 0.7, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)

	joined := strings.Join(m.lastArgs, " ")
	assert.Contains(t, joined, "-m /m.gguf")
	assert.Contains(t, joined, "-n 128")
	assert.Contains(t, joined, "--temp 0.7")
	assert.Contains(t, joined, "--top-p 0.9")
	assert.NoError(t, b.Unload())
}

func TestLocalWeightsBackend_GenerateError(t *testing.T) {
	m := &mockExecutor{
		runPipedFunc: func(string, []string, io.Writer) error {
			return errors.New("exit status 1")
		},
	}
	b := newLocalWeightsBackend(types.ModelDescriptor{Name: "local", Endpoint: "/m.gguf"}, m)
	_, err := b.Generate(context.Background(), "p", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama-cli")
}
