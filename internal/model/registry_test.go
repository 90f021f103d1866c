// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

// fakeBackend records calls and returns configured responses.
type fakeBackend struct {
	loadErr  error
	genFunc  func(ctx context.Context, prompt string, p Params) (string, error)
	loads    atomic.Int32
	unloads  atomic.Int32
	lastSeen Params
	mu       sync.Mutex
}

func (f *fakeBackend) Load(context.Context) error {
	f.loads.Add(1)
	return f.loadErr
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	f.mu.Lock()
	f.lastSeen = p
	f.mu.Unlock()
	if f.genFunc != nil {
		return f.genFunc(ctx, prompt, p)
	}
	return "echo: " + prompt, nil
}

func (f *fakeBackend) Unload() error {
	f.unloads.Add(1)
	return nil
}

// fakeFactory hands out one fakeBackend per descriptor name and counts
// how many times each was built.
type fakeFactory struct {
	mu       sync.Mutex
	backends map[string]*fakeBackend
	builds   map[string]int
	descs    map[string]types.ModelDescriptor
	delay    time.Duration
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		backends: make(map[string]*fakeBackend),
		builds:   make(map[string]int),
		descs:    make(map[string]types.ModelDescriptor),
	}
}

func (f *fakeFactory) build(desc types.ModelDescriptor) (Backend, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds[desc.Name]++
	f.descs[desc.Name] = desc
	b, ok := f.backends[desc.Name]
	if !ok {
		b = &fakeBackend{}
		f.backends[desc.Name] = b
	}
	return b, nil
}

func (f *fakeFactory) backend(name string) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.backends[name]
	if !ok {
		b = &fakeBackend{}
		f.backends[name] = b
	}
	return b
}

func newTestRegistry(t *testing.T, names ...string) (*Registry, *fakeFactory) {
	t.Helper()
	ff := newFakeFactory()
	r := NewRegistry(ff.build, time.Second)
	for _, n := range names {
		require.NoError(t, r.Register(types.ModelDescriptor{Name: n, Model: n + "-model", Temperature: 0.7}))
	}
	return r, ff
}

func TestClassifyTask(t *testing.T) {
	tests := []struct {
		query string
		want  types.TaskType
	}{
		{"debug this function", types.TaskCode},
		{"explain how transformers work", types.TaskReasoning},
		{"a quick summary", types.TaskFast},
		{"tell me a story", types.TaskCreative},
		{"quantum computing", types.TaskGeneral},
		{"", types.TaskGeneral},
		{"Explain the CODE", types.TaskCode},
		{"quick story", types.TaskFast},
		{"why, imagine!", types.TaskReasoning},
		{"codebase decoding", types.TaskGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTask(tt.query))
		})
	}
}

func TestSelectBackend_Table(t *testing.T) {
	r, _ := newTestRegistry(t, "llama", "mistral", "phi")

	assert.Equal(t, "llama", r.SelectBackend(types.TaskCode))
	assert.Equal(t, "llama", r.SelectBackend(types.TaskReasoning))
	assert.Equal(t, "mistral", r.SelectBackend(types.TaskGeneral))
	assert.Equal(t, "phi", r.SelectBackend(types.TaskFast))
	assert.Equal(t, "mistral", r.SelectBackend(types.TaskCreative))
	assert.Equal(t, "mistral", r.SelectBackend(types.TaskType("unknown")))
}

func TestSelectBackend_FallsBackToFirstRegistered(t *testing.T) {
	r, _ := newTestRegistry(t, "claude", "llama")

	assert.Equal(t, "llama", r.SelectBackend(types.TaskCode))
	assert.Equal(t, "claude", r.SelectBackend(types.TaskFast))
	assert.Equal(t, "claude", r.SelectBackend(types.TaskGeneral))
}

func TestSelectBackend_AlwaysRegisteredName(t *testing.T) {
	r, _ := newTestRegistry(t, "only")
	for _, task := range []types.TaskType{types.TaskCode, types.TaskReasoning, types.TaskFast, types.TaskCreative, types.TaskGeneral} {
		assert.Contains(t, r.Names(), r.SelectBackend(task))
	}

	empty, _ := newTestRegistry(t)
	assert.Equal(t, "", empty.SelectBackend(types.TaskGeneral))
}

func TestRegister(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.Error(t, r.Register(types.ModelDescriptor{}))

	require.NoError(t, r.Register(types.ModelDescriptor{Name: "a"}))
	require.NoError(t, r.Register(types.ModelDescriptor{Name: "b"}))
	require.NoError(t, r.Register(types.ModelDescriptor{Name: "a", Model: "new"}))

	assert.Equal(t, []string{"a", "b"}, r.Names(), "re-registering keeps position")
	d, ok := r.Descriptor("a")
	require.True(t, ok)
	assert.Equal(t, "new", d.Model)
	assert.Equal(t, DefaultMaxTokens, d.MaxTokens)
	assert.Equal(t, DefaultTopP, d.TopP)
}

func TestGenerate_LazyLoadOnce(t *testing.T) {
	r, ff := newTestRegistry(t, "llama")
	assert.Empty(t, r.Loaded())

	for i := 0; i < 3; i++ {
		out, err := r.Generate(context.Background(), "hello", Options{Model: "llama"})
		require.NoError(t, err)
		assert.Equal(t, "echo: hello", out)
	}

	assert.Equal(t, 1, ff.builds["llama"])
	assert.Equal(t, int32(1), ff.backend("llama").loads.Load())
	assert.Equal(t, []string{"llama"}, r.Loaded())
}

func TestGenerate_ConcurrentLoadsSerialized(t *testing.T) {
	r, ff := newTestRegistry(t, "llama")
	ff.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Generate(context.Background(), "p", Options{Model: "llama"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ff.builds["llama"])
}

func TestGenerate_SelectsFromPrompt(t *testing.T) {
	r, ff := newTestRegistry(t, "llama", "mistral", "phi")

	_, err := r.Generate(context.Background(), "debug my program", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, ff.builds["llama"])
	assert.Zero(t, ff.builds["mistral"])
}

func TestGenerate_Overrides(t *testing.T) {
	r, ff := newTestRegistry(t, "llama")

	_, err := r.Generate(context.Background(), "p", Options{Model: "llama"})
	require.NoError(t, err)
	assert.Equal(t, Params{MaxTokens: DefaultMaxTokens, Temperature: 0.7, TopP: DefaultTopP}, ff.backend("llama").lastSeen)

	temp := 0.0
	_, err = r.Generate(context.Background(), "p", Options{Model: "llama", MaxTokens: 64, Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, Params{MaxTokens: 64, Temperature: 0, TopP: DefaultTopP}, ff.backend("llama").lastSeen)
}

func TestGenerate_Unavailable(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Generate(context.Background(), "p", Options{})
		assert.True(t, eris.Is(err, ErrBackendUnavailable))
	})

	t.Run("unknown model", func(t *testing.T) {
		r, _ := newTestRegistry(t, "llama")
		_, err := r.Generate(context.Background(), "p", Options{Model: "gpt"})
		assert.True(t, eris.Is(err, ErrBackendUnavailable))
	})

	t.Run("load failure", func(t *testing.T) {
		r, ff := newTestRegistry(t, "llama")
		ff.backend("llama").loadErr = errors.New("connection refused")

		_, err := r.Generate(context.Background(), "p", Options{Model: "llama"})
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrBackendUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
		assert.Empty(t, r.Loaded(), "failed load is not cached")
	})

	t.Run("factory failure", func(t *testing.T) {
		r := NewRegistry(func(types.ModelDescriptor) (Backend, error) {
			return nil, errors.New("bad kind")
		}, time.Second)
		require.NoError(t, r.Register(types.ModelDescriptor{Name: "x"}))

		err := r.Load(context.Background(), "x")
		assert.True(t, eris.Is(err, ErrBackendUnavailable))
	})
}

func TestGenerate_Timeout(t *testing.T) {
	ff := newFakeFactory()
	r := NewRegistry(ff.build, 20*time.Millisecond)
	require.NoError(t, r.Register(types.ModelDescriptor{Name: "slow"}))
	ff.backend("slow").genFunc = func(ctx context.Context, _ string, _ Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	start := time.Now()
	_, err := r.Generate(context.Background(), "p", Options{Model: "slow"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGenerationTimeout))
	assert.False(t, eris.Is(err, ErrBackendError))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGenerate_TimeoutWhenBackendIgnoresContext(t *testing.T) {
	ff := newFakeFactory()
	r := NewRegistry(ff.build, 20*time.Millisecond)
	require.NoError(t, r.Register(types.ModelDescriptor{Name: "stuck"}))
	release := make(chan struct{})
	defer close(release)
	ff.backend("stuck").genFunc = func(context.Context, string, Params) (string, error) {
		<-release
		return "late", nil
	}

	_, err := r.Generate(context.Background(), "p", Options{Model: "stuck"})
	assert.True(t, eris.Is(err, ErrGenerationTimeout))
}

func TestGenerate_BackendError(t *testing.T) {
	r, ff := newTestRegistry(t, "llama")
	ff.backend("llama").genFunc = func(context.Context, string, Params) (string, error) {
		return "", errors.New("HTTP 500")
	}

	_, err := r.Generate(context.Background(), "p", Options{Model: "llama"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrBackendError))
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestRegister_LoadedInstanceSurvivesReRegistration(t *testing.T) {
	r, ff := newTestRegistry(t, "llama")
	require.NoError(t, r.Load(context.Background(), "llama"))
	require.NoError(t, r.Register(types.ModelDescriptor{Name: "llama", Model: "llama3.2"}))

	_, err := r.Generate(context.Background(), "p", Options{Model: "llama"})
	require.NoError(t, err)
	assert.Equal(t, 1, ff.builds["llama"], "loaded backend is reused")
	assert.Equal(t, "llama-model", ff.descs["llama"].Model)

	require.NoError(t, r.Unload("llama"))
	require.NoError(t, r.Load(context.Background(), "llama"))
	assert.Equal(t, 2, ff.builds["llama"])
	assert.Equal(t, "llama3.2", ff.descs["llama"].Model, "new descriptor applies on next load")
}

func TestUnload(t *testing.T) {
	r, ff := newTestRegistry(t, "llama", "phi")
	require.NoError(t, r.Load(context.Background(), "llama"))
	require.NoError(t, r.Load(context.Background(), "phi"))
	assert.Equal(t, []string{"llama", "phi"}, r.Loaded())

	require.NoError(t, r.Unload("llama"))
	require.NoError(t, r.Unload("llama"))
	require.NoError(t, r.Unload("never-registered"))
	assert.Equal(t, int32(1), ff.backend("llama").unloads.Load())
	assert.Equal(t, []string{"phi"}, r.Loaded())

	r.UnloadAll()
	assert.Empty(t, r.Loaded())
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(types.ModelsConfig{}, http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama", "mistral", "phi"}, r.Names())
	d, _ := r.Descriptor("llama")
	assert.Equal(t, "llama3.1:8b", d.Model)
	assert.Equal(t, DefaultEndpoint, d.Endpoint)

	r, err = FromConfig(types.ModelsConfig{
		AnthropicAPIKey: "sk-test",
		Descriptors: []types.ModelDescriptor{
			{Name: "claude", Kind: types.KindAnthropic, Model: "claude-haiku-4-5-20251001"},
		},
	}, nil)
	require.NoError(t, err)
	d, ok := r.Descriptor("claude")
	require.True(t, ok)
	assert.Equal(t, "sk-test", d.APIKey)
}

func TestDefaultFactory(t *testing.T) {
	f := DefaultFactory(nil)

	b, err := f(types.ModelDescriptor{Name: "a", Kind: types.KindRemoteHTTP})
	require.NoError(t, err)
	assert.IsType(t, &RemoteHTTPBackend{}, b)

	b, err = f(types.ModelDescriptor{Name: "b", Kind: types.KindAnthropic})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicBackend{}, b)

	b, err = f(types.ModelDescriptor{Name: "c", Kind: types.KindLocalWeights})
	require.NoError(t, err)
	assert.IsType(t, &LocalWeightsBackend{}, b)

	_, err = f(types.ModelDescriptor{Name: "d", Kind: "bogus"})
	assert.Error(t, err)
}
