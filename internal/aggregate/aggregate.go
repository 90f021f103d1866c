// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a query out to the source adapters selected by a
// focus and depth policy, and merges their items into one ResultSet.
package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/internal/source"
	"github.com/pdiddy/research-agent/pkg/types"
)

const defaultConcurrency = 4

// Budget is the per-category item budget for one depth tier.
type Budget struct {
	Papers int
	Repos  int
	News   int
	Web    int
}

// budgets holds the fixed item budget for each depth.
var budgets = map[types.Depth]Budget{
	types.DepthQuick:    {Papers: 20, Repos: 15, News: 10, Web: 5},
	types.DepthStandard: {Papers: 50, Repos: 30, News: 20, Web: 15},
	types.DepthDeep:     {Papers: 100, Repos: 50, News: 40, Web: 30},
}

// BudgetFor returns the item budget for depth. Unknown depths use standard.
func BudgetFor(d types.Depth) Budget {
	if b, ok := budgets[d]; ok {
		return b
	}
	return budgets[types.DepthStandard]
}

// Limit returns the cap for one category. Discussions share the news budget.
func (b Budget) Limit(c types.Category) int {
	switch c {
	case types.CategoryPaper:
		return b.Papers
	case types.CategoryRepository:
		return b.Repos
	case types.CategoryNews, types.CategoryDiscussion:
		return b.News
	case types.CategoryWeb:
		return b.Web
	}
	return 0
}

// Adapters is the set of source adapters the aggregator may call. A nil
// field disables that source.
type Adapters struct {
	Arxiv      source.Adapter
	GitHub     source.Adapter
	HackerNews source.Adapter
	Reddit     source.Adapter
	DevTo      source.Adapter
	RSS        source.Adapter
	Web        source.Adapter
	WebTools   source.Adapter
	WebTrends  source.Adapter
}

// NewAdapters builds the production adapter set from configuration. All
// web adapters share one throttle.
func NewAdapters(cfg types.SourcesConfig) Adapters {
	opts := source.NewOptions(cfg.HTTPConfig)
	throttle := source.NewWebThrottle()
	web := func(mode source.WebMode) source.Adapter {
		return &source.WebAdapter{Options: opts, Mode: mode, BraveKey: cfg.BraveAPIKey, Throttle: throttle}
	}
	return Adapters{
		Arxiv:      &source.ArxivAdapter{Options: opts},
		GitHub:     &source.GitHubAdapter{Options: opts, Token: cfg.GitHubToken},
		HackerNews: &source.HackerNewsAdapter{Options: opts},
		Reddit:     &source.RedditAdapter{Options: opts},
		DevTo:      &source.DevToAdapter{Options: opts},
		RSS:        &source.RSSAdapter{Options: opts, Feeds: cfg.RSSFeeds},
		Web:        web(source.WebGeneral),
		WebTools:   web(source.WebTools),
		WebTrends:  web(source.WebTrends),
	}
}

// Request is one collection run.
type Request struct {
	Query  string
	Focus  types.Focus
	Window types.Window
	Depth  types.Depth
}

// Aggregator runs adapters under a focus/depth policy.
type Aggregator struct {
	adapters    Adapters
	concurrency int
}

// New returns an Aggregator. A concurrency below 1 uses the default.
func New(adapters Adapters, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Aggregator{adapters: adapters, concurrency: concurrency}
}

// job is one planned adapter call.
type job struct {
	adapter  source.Adapter
	category types.Category
	limit    int
}

// plan returns the adapter calls for req in their fixed concatenation order.
func (a *Aggregator) plan(req Request) []job {
	b := BudgetFor(req.Depth)
	ad := a.adapters
	var jobs []job
	add := func(ad source.Adapter, c types.Category, limit int) {
		if ad == nil || limit <= 0 {
			return
		}
		jobs = append(jobs, job{adapter: ad, category: c, limit: limit})
	}

	focus := req.Focus
	if focus == types.FocusPapers || focus == types.FocusAll {
		add(ad.Arxiv, types.CategoryPaper, b.Papers)
	}
	if focus == types.FocusTools || focus == types.FocusAll {
		add(ad.GitHub, types.CategoryRepository, b.Repos)
		if req.Depth == types.DepthStandard || req.Depth == types.DepthDeep {
			add(ad.WebTools, types.CategoryWeb, b.Web/2)
		}
	}
	if focus == types.FocusTrends || focus == types.FocusAll {
		perFeed := b.News / 3
		add(ad.HackerNews, types.CategoryNews, perFeed)
		add(ad.DevTo, types.CategoryNews, perFeed)
		add(ad.RSS, types.CategoryNews, perFeed)
		add(ad.Reddit, types.CategoryDiscussion, b.News)
		add(ad.WebTrends, types.CategoryWeb, b.Web/2)
	}
	if focus == types.FocusAll || req.Depth == types.DepthDeep {
		add(ad.Web, types.CategoryWeb, b.Web)
	}
	return jobs
}

// Collect runs every planned adapter and merges the results. Adapters run
// concurrently, but items are concatenated in plan order once all finish.
// Every category is present in the result, possibly empty. Collect never
// fails: adapter failures surface as missing items.
func (a *Aggregator) Collect(ctx context.Context, req Request) types.ResultSet {
	ctx, span := observability.StartSpan(ctx, "aggregate.collect")
	defer span.End()

	jobs := a.plan(req)
	slots := make([][]types.Item, len(jobs))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			slots[i] = j.adapter.Fetch(gctx, source.Request{
				Query:  req.Query,
				Limit:  j.limit,
				Window: req.Window,
			})
			return nil
		})
	}
	g.Wait()

	rs := types.NewResultSet()
	for i, j := range jobs {
		rs[j.category] = append(rs[j.category], slots[i]...)
	}

	b := BudgetFor(req.Depth)
	rs[types.CategoryWeb] = DedupByURL(rs[types.CategoryWeb])
	for _, c := range types.Categories {
		if limit := b.Limit(c); len(rs[c]) > limit {
			rs[c] = rs[c][:limit]
		}
	}

	span.SetAttributes(observability.AttrItems.Int(rs.Total()))
	zap.L().Info("collection finished",
		zap.String("query", req.Query),
		zap.String("focus", string(req.Focus)),
		zap.String("depth", string(req.Depth)),
		zap.Int("adapters", len(jobs)),
		zap.Int("items", rs.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rs
}

// DedupByURL drops items whose URL was already seen, keeping the first
// occurrence. Items without a URL are kept.
func DedupByURL(items []types.Item) []types.Item {
	seen := make(map[string]bool, len(items))
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if it.URL != "" {
			if seen[it.URL] {
				continue
			}
			seen[it.URL] = true
		}
		out = append(out, it)
	}
	return out
}
