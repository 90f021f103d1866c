// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source fetches research items from external data sources and
// normalizes them into types.Item. Each adapter fails independently: a
// network, status, or parse failure is logged and yields no items, so one
// unreliable source never affects another.
package source

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "research-agent/0.1"

// Request is the input to one adapter call.
type Request struct {
	Query  string
	Limit  int
	Window types.Window
}

// Adapter fetches items for a query from one source. Fetch never fails:
// on any error it logs and returns an empty slice.
type Adapter interface {
	Name() string
	Category() types.Category
	Fetch(ctx context.Context, req Request) []types.Item
}

// Options holds the HTTP settings shared by all adapters.
type Options struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int

	// Now returns the reference time for window cutoffs. Defaults to time.Now.
	Now func() time.Time
}

// NewOptions builds adapter options from the shared HTTP config.
func NewOptions(cfg types.HTTPConfig) Options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Options{
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
	}
}

func (o Options) client() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

func (o Options) userAgent() string {
	if o.UserAgent == "" {
		return DefaultUserAgent
	}
	return o.UserAgent
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// searchFunc is the fallible core of an adapter.
type searchFunc func(ctx context.Context, req Request) ([]types.Item, error)

// recovered converts a recovered panic value into an error with a stack.
func recovered(r any) error {
	return eris.Errorf("panic: %v", r)
}

// guard runs fn inside the adapter boundary. Errors and panics are logged,
// counted, and turned into an empty result. The result is capped at
// req.Limit and every item is stamped with the adapter's category and name.
func guard(ctx context.Context, name string, category types.Category, req Request, fn searchFunc) (items []types.Item) {
	if req.Limit <= 0 {
		return []types.Item{}
	}

	ctx, span := observability.StartSpan(ctx, "source."+name,
		observability.AttrAdapter.String(name),
		observability.AttrCategory.String(string(category)),
	)
	var spanErr error
	defer func() {
		span.SetAttributes(observability.AttrItems.Int(len(items)))
		observability.EndSpan(span, spanErr)
	}()

	defer func() {
		if r := recover(); r != nil {
			spanErr = recovered(r)
			zap.L().Error("source adapter panicked",
				zap.String("adapter", name),
				zap.Any("panic", r),
			)
			observability.RecordAdapter(name, 0, true)
			items = []types.Item{}
		}
	}()

	start := time.Now()
	found, err := fn(ctx, req)
	if err != nil {
		spanErr = err
		zap.L().Warn("source adapter failed",
			zap.String("adapter", name),
			zap.String("query", req.Query),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		observability.RecordAdapter(name, 0, true)
		return []types.Item{}
	}

	if len(found) > req.Limit {
		found = found[:req.Limit]
	}
	items = make([]types.Item, 0, len(found))
	for _, it := range found {
		it.Source = category
		if it.Origin == "" {
			it.Origin = name
		}
		items = append(items, it)
	}

	zap.L().Debug("source adapter finished",
		zap.String("adapter", name),
		zap.Int("items", len(items)),
		zap.Duration("elapsed", time.Since(start)),
	)
	observability.RecordAdapter(name, len(items), false)
	return items
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// stripHTML returns the text content of an HTML fragment with whitespace
// collapsed. Input that fails to parse is returned with whitespace collapsed.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// matchesQuery reports whether text mentions the query: either the whole
// phrase or every query term, case-insensitively. An empty query matches.
func matchesQuery(query string, text ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	hay := strings.ToLower(strings.Join(text, " "))
	if strings.Contains(hay, q) {
		return true
	}
	for _, term := range strings.Fields(q) {
		if !strings.Contains(hay, term) {
			return false
		}
	}
	return true
}

// before reports whether t falls before the non-zero cutoff.
func before(t time.Time, cutoff time.Time) bool {
	return !cutoff.IsZero() && !t.IsZero() && t.Before(cutoff)
}
