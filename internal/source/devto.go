// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// devtoAPIBase is the Dev.to API root. Package-level var for test substitution.
var devtoAPIBase = "https://dev.to/api"

// DevToAdapter lists Dev.to articles tagged with the query's leading term.
type DevToAdapter struct {
	Options
}

// Name returns the adapter identifier.
func (a *DevToAdapter) Name() string { return "devto" }

// Category returns the category of items this adapter produces.
func (a *DevToAdapter) Category() types.Category { return types.CategoryNews }

// Fetch returns articles for the query inside the window.
func (a *DevToAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

type devtoArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Reactions   int       `json:"positive_reactions_count"`
}

func (a *DevToAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	u := fmt.Sprintf("%s/articles?per_page=%d", devtoAPIBase, min(req.Limit, 1000))
	if tag := devtoTag(req.Query); tag != "" {
		u += "&tag=" + url.QueryEscape(tag)
	}

	var articles []devtoArticle
	err := httputil.GetJSON(ctx, a.client(), httputil.Request{
		URL:        u,
		Headers:    map[string]string{"User-Agent": a.userAgent()},
		MaxRetries: a.MaxRetries,
	}, &articles)
	if err != nil {
		return nil, eris.Wrap(err, "devto: list articles")
	}

	cutoff := req.Window.Cutoff(a.now())
	items := make([]types.Item, 0, len(articles))
	for _, art := range articles {
		if before(art.PublishedAt, cutoff) {
			continue
		}
		items = append(items, types.Item{
			Title:       art.Title,
			URL:         art.URL,
			Body:        truncate(art.Description, 300),
			Score:       types.Float(float64(art.Reactions)),
			PublishedAt: types.Time(art.PublishedAt),
		})
	}
	return items, nil
}

// devtoTag derives a Dev.to tag from the first query word: lowercase
// letters and digits only.
func devtoTag(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(fields[0]) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
