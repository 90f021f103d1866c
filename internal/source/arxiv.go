// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const arxivSummaryLimit = 500

// ArxivAdapter queries the arXiv API for recent papers.
type ArxivAdapter struct {
	Options
}

// Name returns the adapter identifier.
func (a *ArxivAdapter) Name() string { return "arxiv" }

// Category returns the category of items this adapter produces.
func (a *ArxivAdapter) Category() types.Category { return types.CategoryPaper }

// Fetch returns papers matching the query, newest first, published inside
// the window.
func (a *ArxivAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

func (a *ArxivAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	q := buildArxivQuery(req.Query)
	if q == "" {
		return nil, eris.New("arxiv: empty query")
	}

	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, q, req.Limit)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: create request")
	}
	httpReq.Header.Set("User-Agent", a.userAgent())

	resp, err := httputil.DoWithRetry(ctx, a.client(), httpReq, a.MaxRetries)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("arxiv: API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, eris.Wrap(err, "arxiv: parse response")
	}

	cutoff := req.Window.Cutoff(a.now())
	total := len(feed.Entries)
	var items []types.Item
	for i, entry := range feed.Entries {
		published, _ := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published))
		if before(published, cutoff) {
			continue
		}

		// Position-based relevance score.
		score := 1.0
		if total > 1 {
			score = 1.0 - float64(i)/float64(total-1)*0.9
		}

		items = append(items, types.Item{
			Title:       strings.Join(strings.Fields(entry.Title), " "),
			URL:         entryURL(entry),
			Body:        truncate(strings.Join(strings.Fields(entry.Summary), " "), arxivSummaryLimit),
			Score:       types.Float(score),
			PublishedAt: types.Time(published),
		})
	}
	return items, nil
}

// buildArxivQuery constructs the search_query parameter: every query term
// is searched across all fields.
func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = url.QueryEscape(t)
	}
	return "all:" + strings.Join(terms, "+")
}

// entryURL prefers the HTML abstract link over the Atom id.
func entryURL(e arxivEntry) string {
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	return strings.TrimSpace(e.ID)
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Links     []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}
