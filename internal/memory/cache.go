// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memory holds the agent's persistence across runs: a file-backed
// JSON response cache with a TTL, and a SQLite full-text store of past
// research used to enrich new analyses.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 24 * time.Hour

const entryExt = ".json"

// Cache stores JSON values in one file per key under a directory. Concurrent
// writers to the same key are last-writer-wins.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// entry is the on-disk form of a cached value.
type entry struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	Value     json.RawMessage `json:"value"`
}

// CacheStats summarizes the cache directory.
type CacheStats struct {
	Entries int   `json:"entries" yaml:"entries"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
	Expired int   `json:"expired" yaml:"expired"`
}

// NewCache creates the cache directory if needed.
func NewCache(cfg types.CacheConfig) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, eris.New("memory: cache directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "memory: create cache dir %s", cfg.Dir)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{dir: cfg.Dir, ttl: ttl, now: time.Now}, nil
}

// Key derives a cache key from the parts of a request.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// Get returns the cached value for key. Expired entries are deleted and
// reported as a miss.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		observability.RecordCacheLookup("miss")
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		zap.L().Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		os.Remove(c.path(key))
		observability.RecordCacheLookup("miss")
		return nil, false
	}

	if c.expired(e, c.now()) {
		os.Remove(c.path(key))
		observability.RecordCacheLookup("expired")
		return nil, false
	}

	observability.RecordCacheLookup("hit")
	return e.Value, true
}

// expired reports whether e is at least one TTL old. The TTL is the one
// configured now, not the one in force when e was written.
func (c *Cache) expired(e entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= c.ttl
}

// GetInto decodes the cached value for key into v.
func (c *Cache) GetInto(key string, v any) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// Set stores value under key, replacing any previous entry. The file is
// written to a temporary name and renamed into place.
func (c *Cache) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrap(err, "memory: encode cache value")
	}
	now := c.now()
	data, err := json.Marshal(entry{
		Key:       key,
		CreatedAt: now,
		Value:     raw,
	})
	if err != nil {
		return eris.Wrap(err, "memory: encode cache entry")
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "memory: create temp entry")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "memory: write temp entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "memory: close temp entry")
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "memory: commit cache entry")
	}
	return nil
}

// Clear removes every entry and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, eris.Wrapf(err, "memory: read cache dir %s", c.dir)
	}
	n := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, de.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, eris.Wrapf(err, "memory: remove %s", de.Name())
		}
		n++
	}
	zap.L().Info("cache cleared", zap.String("dir", c.dir), zap.Int("entries", n))
	return n, nil
}

// Stats counts entries, their total size and how many have expired.
func (c *Cache) Stats() (CacheStats, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return CacheStats{}, eris.Wrapf(err, "memory: read cache dir %s", c.dir)
	}

	var st CacheStats
	now := c.now()
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		st.Entries++
		st.Bytes += int64(len(data))

		var e entry
		if json.Unmarshal(data, &e) != nil || c.expired(e, now) {
			st.Expired++
		}
	}
	return st, nil
}
