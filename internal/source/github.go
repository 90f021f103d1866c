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

// githubAPIBase is the GitHub REST API root. Package-level var for test substitution.
var githubAPIBase = "https://api.github.com"

const githubMaxPerPage = 100

// GitHubAdapter searches GitHub for repositories created inside the window,
// most-starred first.
type GitHubAdapter struct {
	Options

	// Token is an optional personal access token for higher rate limits.
	Token string
}

// Name returns the adapter identifier.
func (a *GitHubAdapter) Name() string { return "github" }

// Category returns the category of items this adapter produces.
func (a *GitHubAdapter) Category() types.Category { return types.CategoryRepository }

// Fetch returns repositories matching the query.
func (a *GitHubAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

type githubSearchResponse struct {
	Items []struct {
		FullName    string    `json:"full_name"`
		HTMLURL     string    `json:"html_url"`
		Description string    `json:"description"`
		Stars       int       `json:"stargazers_count"`
		Language    string    `json:"language"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"items"`
}

func (a *GitHubAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, eris.New("github: empty query")
	}
	if cutoff := req.Window.Cutoff(a.now()); !cutoff.IsZero() {
		q += " created:>" + cutoff.Format("2006-01-02")
	}

	perPage := min(req.Limit, githubMaxPerPage)
	u := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&order=desc&per_page=%d",
		githubAPIBase, url.QueryEscape(q), perPage)

	headers := map[string]string{
		"Accept":     "application/vnd.github+json",
		"User-Agent": a.userAgent(),
	}
	if a.Token != "" {
		headers["Authorization"] = "Bearer " + a.Token
	}

	var resp githubSearchResponse
	if err := httputil.GetJSON(ctx, a.client(), httputil.Request{URL: u, Headers: headers, MaxRetries: a.MaxRetries}, &resp); err != nil {
		return nil, eris.Wrap(err, "github: search repositories")
	}

	items := make([]types.Item, 0, len(resp.Items))
	for _, r := range resp.Items {
		body := r.Description
		if r.Language != "" {
			body = strings.TrimSpace(body + " [" + r.Language + "]")
		}
		items = append(items, types.Item{
			Title:       r.FullName,
			URL:         r.HTMLURL,
			Body:        truncate(body, 300),
			Score:       types.Float(float64(r.Stars)),
			PublishedAt: types.Time(r.CreatedAt),
		})
	}
	return items, nil
}
