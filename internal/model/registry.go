// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Registry defaults.
const (
	DefaultDeadline    = 120 * time.Second
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// DefaultDescriptors returns the built-in llama, mistral and phi models
// served by a local Ollama instance.
func DefaultDescriptors() []types.ModelDescriptor {
	mk := func(name, model string) types.ModelDescriptor {
		return types.ModelDescriptor{
			Name:        name,
			Kind:        types.KindRemoteHTTP,
			Model:       model,
			Endpoint:    DefaultEndpoint,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		}
	}
	return []types.ModelDescriptor{
		mk("llama", "llama3.1:8b"),
		mk("mistral", "mistral:7b"),
		mk("phi", "phi3:medium"),
	}
}

// Options override a generate call. Zero values use the model's descriptor.
type Options struct {
	// Model names the registered model. Empty selects one from the prompt.
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Selector picks a registered model name for a task type.
type Selector interface {
	SelectBackend(task types.TaskType) string
}

// Registry holds model descriptors and the backends loaded from them.
// Backends are created on first use and live until Unload.
type Registry struct {
	factory  Factory
	deadline time.Duration

	mu          sync.Mutex
	descriptors map[string]types.ModelDescriptor
	order       []string
	loaded      map[string]Backend
	loadLocks   map[string]*sync.Mutex
}

// NewRegistry returns an empty registry. A non-positive deadline uses
// DefaultDeadline.
func NewRegistry(factory Factory, deadline time.Duration) *Registry {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Registry{
		factory:     factory,
		deadline:    deadline,
		descriptors: make(map[string]types.ModelDescriptor),
		loaded:      make(map[string]Backend),
		loadLocks:   make(map[string]*sync.Mutex),
	}
}

// FromConfig builds a registry with the configured descriptors, or the
// defaults when none are configured.
func FromConfig(cfg types.ModelsConfig, client *http.Client) (*Registry, error) {
	r := NewRegistry(DefaultFactory(client), cfg.GenerationTimeout)
	descs := cfg.Descriptors
	if len(descs) == 0 {
		descs = DefaultDescriptors()
	}
	for _, d := range descs {
		if d.Kind == types.KindAnthropic && d.APIKey == "" {
			d.APIKey = cfg.AnthropicAPIKey
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a descriptor. A backend already loaded under
// the name keeps running; the new descriptor applies on its next load.
func (r *Registry) Register(desc types.ModelDescriptor) error {
	if desc.Name == "" {
		return eris.New("model: descriptor name is required")
	}
	if desc.MaxTokens <= 0 {
		desc.MaxTokens = DefaultMaxTokens
	}
	if desc.TopP <= 0 {
		desc.TopP = DefaultTopP
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[desc.Name]; !ok {
		r.order = append(r.order, desc.Name)
	}
	r.descriptors[desc.Name] = desc
	return nil
}

// Names returns registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Descriptor returns the registered descriptor for name.
func (r *Registry) Descriptor(name string) (types.ModelDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Loaded returns the names of loaded models, sorted.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loaded))
	for name := range r.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectBackend returns the model name for task. When the preferred model
// is not registered it falls back to the first registered name; an empty
// registry yields "".
func (r *Registry) SelectBackend(task types.TaskType) string {
	pick := PreferredModel(task)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[pick]; ok {
		return pick
	}
	if len(r.order) > 0 {
		return r.order[0]
	}
	return ""
}

// Load creates and loads the backend for name if it is not loaded yet.
// Concurrent loads of one name are serialized so at most one runs.
func (r *Registry) Load(ctx context.Context, name string) error {
	_, err := r.backend(ctx, name)
	return err
}

func (r *Registry) backend(ctx context.Context, name string) (Backend, error) {
	r.mu.Lock()
	if _, ok := r.descriptors[name]; !ok {
		r.mu.Unlock()
		return nil, eris.Wrapf(ErrBackendUnavailable, "model %q is not registered", name)
	}
	if b, ok := r.loaded[name]; ok {
		r.mu.Unlock()
		return b, nil
	}
	lock, ok := r.loadLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.loadLocks[name] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if b, ok := r.loaded[name]; ok {
		r.mu.Unlock()
		return b, nil
	}
	desc := r.descriptors[name]
	r.mu.Unlock()

	b, err := r.factory(desc)
	if err == nil {
		err = b.Load(ctx)
	}
	if err != nil {
		observability.RecordModelLoad(name, false)
		zap.L().Warn("model load failed", zap.String("model", name), zap.Error(err))
		return nil, eris.Wrapf(ErrBackendUnavailable, "load %s: %v", name, err)
	}

	r.mu.Lock()
	r.loaded[name] = b
	r.mu.Unlock()

	observability.RecordModelLoad(name, true)
	zap.L().Info("model loaded",
		zap.String("model", name),
		zap.String("kind", string(desc.Kind)),
		zap.String("provider_model", desc.Model),
	)
	return b, nil
}

// Unload releases the backend for name. Unloading a model that is not
// loaded is a no-op.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	b, ok := r.loaded[name]
	delete(r.loaded, name)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := b.Unload(); err != nil {
		return eris.Wrapf(err, "model: unload %s", name)
	}
	zap.L().Info("model unloaded", zap.String("model", name))
	return nil
}

// UnloadAll releases every loaded backend.
func (r *Registry) UnloadAll() {
	for _, name := range r.Loaded() {
		if err := r.Unload(name); err != nil {
			zap.L().Warn("model unload failed", zap.String("model", name), zap.Error(err))
		}
	}
}

type generateResult struct {
	text string
	err  error
}

// Generate runs one completion. When opts.Model is empty the model is
// selected from the prompt's task type. The call is bounded by the
// registry deadline and never retried. Failures wrap ErrBackendUnavailable,
// ErrGenerationTimeout, or ErrBackendError.
func (r *Registry) Generate(ctx context.Context, prompt string, opts Options) (text string, err error) {
	name := opts.Model
	if name == "" {
		name = r.SelectBackend(ClassifyTask(prompt))
	}
	if name == "" {
		return "", eris.Wrap(ErrBackendUnavailable, "no models registered")
	}

	ctx, span := observability.StartSpan(ctx, "model.generate", observability.AttrModel.String(name))
	defer func() { observability.EndSpan(span, err) }()

	b, err := r.backend(ctx, name)
	if err != nil {
		observability.RecordGenerate(name, "unavailable", 0)
		return "", err
	}

	desc, _ := r.Descriptor(name)
	p := Params{MaxTokens: desc.MaxTokens, Temperature: desc.Temperature, TopP: desc.TopP}
	if opts.MaxTokens > 0 {
		p.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		p.Temperature = *opts.Temperature
	}

	cctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	start := time.Now()
	done := make(chan generateResult, 1)
	go func() {
		t, err := b.Generate(cctx, prompt, p)
		done <- generateResult{text: t, err: err}
	}()

	var res generateResult
	select {
	case res = <-done:
	case <-cctx.Done():
		res = generateResult{err: cctx.Err()}
	}
	elapsed := time.Since(start)

	switch {
	case res.err == nil:
		observability.RecordGenerate(name, "ok", elapsed)
		zap.L().Debug("generation finished", zap.String("model", name), zap.Duration("elapsed", elapsed))
		return res.text, nil
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		observability.RecordGenerate(name, "timeout", elapsed)
		return "", eris.Wrapf(ErrGenerationTimeout, "%s after %s", name, r.deadline)
	default:
		observability.RecordGenerate(name, "error", elapsed)
		return "", eris.Wrapf(ErrBackendError, "%s: %v", name, res.err)
	}
}
