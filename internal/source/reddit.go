// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// redditAPIBase is the Reddit site root. Package-level var for test substitution.
var redditAPIBase = "https://www.reddit.com"

// RedditAdapter searches posts across all subreddits.
type RedditAdapter struct {
	Options

	// Subreddit narrows the search (default "all").
	Subreddit string
}

// Name returns the adapter identifier.
func (a *RedditAdapter) Name() string { return "reddit" }

// Category returns the category of items this adapter produces.
func (a *RedditAdapter) Category() types.Category { return types.CategoryDiscussion }

// Fetch returns posts matching the query inside the window.
func (a *RedditAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Permalink  string  `json:"permalink"`
				Selftext   string  `json:"selftext"`
				Subreddit  string  `json:"subreddit"`
				Ups        int     `json:"ups"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *RedditAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, eris.New("reddit: empty query")
	}
	sub := a.Subreddit
	if sub == "" {
		sub = "all"
	}

	u := fmt.Sprintf("%s/r/%s/search.json?q=%s&sort=relevance&t=%s&limit=%d",
		redditAPIBase, sub, url.QueryEscape(req.Query), redditTimeFilter(req.Window), min(req.Limit, 100))

	var listing redditListing
	err := httputil.GetJSON(ctx, a.client(), httputil.Request{
		URL:        u,
		Headers:    map[string]string{"User-Agent": a.userAgent()},
		MaxRetries: a.MaxRetries,
	}, &listing)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: search")
	}

	items := make([]types.Item, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		d := c.Data
		body := strings.TrimSpace(d.Selftext)
		if body == "" {
			body = "r/" + d.Subreddit
		}
		items = append(items, types.Item{
			Title:       d.Title,
			URL:         "https://www.reddit.com" + d.Permalink,
			Body:        truncate(strings.Join(strings.Fields(body), " "), 300),
			Score:       types.Float(float64(d.Ups)),
			PublishedAt: types.Time(time.Unix(int64(d.CreatedUTC), 0).UTC()),
		})
	}
	return items, nil
}

// redditTimeFilter maps a window to Reddit's t parameter.
func redditTimeFilter(w types.Window) string {
	switch w {
	case types.WindowWeek:
		return "week"
	case types.WindowYear:
		return "year"
	case types.WindowUnbounded:
		return "all"
	default:
		return "month"
	}
}
