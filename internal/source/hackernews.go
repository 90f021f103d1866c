// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// hnAPIBase is the Hacker News Firebase API root. Package-level var for test substitution.
var hnAPIBase = "https://hacker-news.firebaseio.com/v0"

// hnItemDelay spaces item requests. Tests set it to zero.
var hnItemDelay = 100 * time.Millisecond

// hnScanFactor bounds how many top stories are inspected per wanted item.
const hnScanFactor = 5

// HackerNewsAdapter filters the current Hacker News top stories by query.
type HackerNewsAdapter struct {
	Options
}

// Name returns the adapter identifier.
func (a *HackerNewsAdapter) Name() string { return "hackernews" }

// Category returns the category of items this adapter produces.
func (a *HackerNewsAdapter) Category() types.Category { return types.CategoryNews }

// Fetch returns top stories whose title or text mentions the query.
func (a *HackerNewsAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

type hnItem struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Score int    `json:"score"`
	Time  int64  `json:"time"`
}

func (a *HackerNewsAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	var ids []int
	if err := httputil.GetJSON(ctx, a.client(), a.request(hnAPIBase+"/topstories.json"), &ids); err != nil {
		return nil, eris.Wrap(err, "hackernews: top stories")
	}

	scan := min(len(ids), req.Limit*hnScanFactor)
	cutoff := req.Window.Cutoff(a.now())
	throttle := httputil.NewThrottle(hnItemDelay)

	var items []types.Item
	for _, id := range ids[:scan] {
		if len(items) >= req.Limit {
			break
		}
		if err := throttle.Wait(ctx); err != nil {
			return items, nil
		}

		var it hnItem
		if err := httputil.GetJSON(ctx, a.client(), a.request(fmt.Sprintf("%s/item/%d.json", hnAPIBase, id)), &it); err != nil {
			zap.L().Debug("hackernews item skipped", zap.Int("id", id), zap.Error(err))
			continue
		}
		if it.Type != "story" {
			continue
		}
		text := stripHTML(it.Text)
		if !matchesQuery(req.Query, it.Title, text) {
			continue
		}
		published := time.Unix(it.Time, 0).UTC()
		if before(published, cutoff) {
			continue
		}

		link := it.URL
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
		}
		items = append(items, types.Item{
			Title:       it.Title,
			URL:         link,
			Body:        truncate(text, 300),
			Score:       types.Float(float64(it.Score)),
			PublishedAt: types.Time(published),
		})
	}
	return items, nil
}

func (a *HackerNewsAdapter) request(u string) httputil.Request {
	return httputil.Request{
		URL:        u,
		Headers:    map[string]string{"User-Agent": a.userAgent()},
		MaxRetries: a.MaxRetries,
	}
}
