// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/model"
	"github.com/pdiddy/research-agent/pkg/types"
)

// CachedGenerator answers repeated prompts from the cache and forwards
// everything else to the wrapped generator. Only successful responses are
// stored.
type CachedGenerator struct {
	next  model.Generator
	cache *Cache
}

// NewCachedGenerator wraps next. A nil cache disables caching.
func NewCachedGenerator(next model.Generator, cache *Cache) *CachedGenerator {
	return &CachedGenerator{next: next, cache: cache}
}

// Generate implements model.Generator.
func (g *CachedGenerator) Generate(ctx context.Context, prompt string, opts model.Options) (string, error) {
	if g.cache == nil {
		return g.next.Generate(ctx, prompt, opts)
	}

	key := generateKey(prompt, opts)
	var cached string
	if g.cache.GetInto(key, &cached) {
		zap.L().Debug("generate cache hit", zap.String("model", opts.Model))
		return cached, nil
	}

	text, err := g.next.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if err := g.cache.Set(key, text); err != nil {
		zap.L().Warn("caching generate response failed", zap.Error(err))
	}
	return text, nil
}

// SelectBackend forwards to the wrapped generator when it can select
// models, and returns "" otherwise.
func (g *CachedGenerator) SelectBackend(task types.TaskType) string {
	if sel, ok := g.next.(model.Selector); ok {
		return sel.SelectBackend(task)
	}
	return ""
}

func generateKey(prompt string, opts model.Options) string {
	temp := ""
	if opts.Temperature != nil {
		temp = strconv.FormatFloat(*opts.Temperature, 'f', -1, 64)
	}
	return Key("generate", opts.Model, strconv.Itoa(opts.MaxTokens), temp, prompt)
}
