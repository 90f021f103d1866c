// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/model"
	"github.com/pdiddy/research-agent/pkg/types"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	c, err := NewCache(types.CacheConfig{Enabled: true, Dir: filepath.Join(t.TempDir(), "cache"), TTL: ttl})
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

func TestKey(t *testing.T) {
	k := Key("arxiv", "quantum computing", "month")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("arxiv", "quantum computing", "month"))
	assert.NotEqual(t, k, Key("arxiv", "quantum computing", "week"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"), "parts are separated")
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	items := []types.Item{{Title: "Surface codes", URL: "https://arxiv.org/abs/1", Source: types.CategoryPaper, Origin: "arxiv"}}

	require.NoError(t, c.Set("k", items))

	raw, ok := c.Get("k")
	require.True(t, ok)
	var got []types.Item
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, items, got)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCache_OverwriteKeepsLatest(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	require.NoError(t, c.Set("k", "first"))
	require.NoError(t, c.Set("k", "second"))

	var s string
	require.True(t, c.GetInto("k", &s))
	assert.Equal(t, "second", s)
}

func TestCache_ExpiredEntryIsDeleted(t *testing.T) {
	c, clock := newTestCache(t, time.Hour)
	require.NoError(t, c.Set("k", 42))

	clock.t = clock.t.Add(time.Hour)
	_, ok := c.Get("k")
	assert.False(t, ok)

	_, err := os.Stat(c.path("k"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "expired entry removed on read")
}

func TestCache_UnreadableEntryIsMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	require.NoError(t, os.WriteFile(c.path("bad"), []byte("{not json"), 0o644))

	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestCache_NoTempFilesLeft(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	require.NoError(t, c.Set("k", map[string]int{"a": 1}))

	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestCache_StatsAndClear(t *testing.T) {
	c, clock := newTestCache(t, time.Hour)
	require.NoError(t, c.Set("old", "x"))
	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, c.Set("new", "y"))

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Expired)
	assert.Positive(t, st.Bytes)

	n, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err = c.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Entries)
}

func TestNewCache_Defaults(t *testing.T) {
	c, err := NewCache(types.CacheConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, c.ttl)

	_, err = NewCache(types.CacheConfig{})
	assert.Error(t, err)
}

// countingGenerator counts calls and can fail.
type countingGenerator struct {
	calls int
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, prompt string, _ model.Options) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "reply to " + prompt, nil
}

func TestCachedGenerator(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	next := &countingGenerator{}
	gen := NewCachedGenerator(next, c)
	ctx := context.Background()

	out, err := gen.Generate(ctx, "p", model.Options{Model: "llama"})
	require.NoError(t, err)
	assert.Equal(t, "reply to p", out)

	out, err = gen.Generate(ctx, "p", model.Options{Model: "llama"})
	require.NoError(t, err)
	assert.Equal(t, "reply to p", out)
	assert.Equal(t, 1, next.calls, "second call served from cache")

	_, err = gen.Generate(ctx, "p", model.Options{Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "model is part of the key")
}

func TestCachedGenerator_ErrorsNotCached(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	next := &countingGenerator{err: errors.New("boom")}
	gen := NewCachedGenerator(next, c)

	_, err := gen.Generate(context.Background(), "p", model.Options{})
	assert.Error(t, err)
	_, err = gen.Generate(context.Background(), "p", model.Options{})
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedGenerator_NilCache(t *testing.T) {
	next := &countingGenerator{}
	gen := NewCachedGenerator(next, nil)
	gen.Generate(context.Background(), "p", model.Options{})
	gen.Generate(context.Background(), "p", model.Options{})
	assert.Equal(t, 2, next.calls)
}

func TestCachedGenerator_SelectBackendForwards(t *testing.T) {
	reg := model.NewRegistry(nil, time.Second)
	require.NoError(t, reg.Register(types.ModelDescriptor{Name: "llama"}))
	require.NoError(t, reg.Register(types.ModelDescriptor{Name: "mistral"}))

	gen := NewCachedGenerator(reg, nil)
	assert.Equal(t, "mistral", gen.SelectBackend(types.TaskGeneral))
	assert.Equal(t, "llama", gen.SelectBackend(types.TaskCode))
	assert.Equal(t, "llama", gen.SelectBackend(types.TaskFast), "unregistered preference falls back to the first model")

	assert.Empty(t, NewCachedGenerator(&countingGenerator{}, nil).SelectBackend(types.TaskGeneral))
}

func TestCache_ExpiryUsesCurrentTTL(t *testing.T) {
	long, clock := newTestCache(t, 24*time.Hour)
	require.NoError(t, long.Set("k", "v"))

	short, err := NewCache(types.CacheConfig{Enabled: true, Dir: long.dir, TTL: time.Hour})
	require.NoError(t, err)
	short.now = clock.Now

	clock.t = clock.t.Add(30 * time.Minute)
	st, err := short.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Expired)

	clock.t = clock.t.Add(90 * time.Minute)
	st, err = short.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Expired, "2h old entry is expired under a 1h TTL")

	_, ok := short.Get("k")
	assert.False(t, ok)
	_, ok = long.Get("k")
	assert.False(t, ok, "expired read removed the entry")
}
