// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Web search endpoints. Package-level vars for test substitution.
var (
	braveAPIBase   = "https://api.search.brave.com/res/v1/web/search"
	ddgAPIBase     = "https://api.duckduckgo.com/"
	ddgHTMLBase    = "https://html.duckduckgo.com/html/"
	braveMaxCount  = 20
	webMinInterval = time.Second
)

// WebMode selects which queries a WebAdapter issues.
type WebMode int

const (
	// WebGeneral searches the query as given.
	WebGeneral WebMode = iota
	// WebTools searches for new tools and libraries in the query's domain.
	WebTools
	// WebTrends searches for recent trends in the query's domain.
	WebTrends
)

// WebAdapter searches the web with Brave Search when an API key is set and
// falls back to DuckDuckGo. Adapters that share a Throttle share its
// minimum request interval.
type WebAdapter struct {
	Options

	Mode     WebMode
	BraveKey string
	Throttle *httputil.Throttle
}

// NewWebThrottle returns the throttle web adapters should share.
func NewWebThrottle() *httputil.Throttle {
	return httputil.NewThrottle(webMinInterval)
}

// Name returns the adapter identifier.
func (a *WebAdapter) Name() string {
	switch a.Mode {
	case WebTools:
		return "web-tools"
	case WebTrends:
		return "web-trends"
	default:
		return "web"
	}
}

// Category returns the category of items this adapter produces.
func (a *WebAdapter) Category() types.Category { return types.CategoryWeb }

// Fetch returns web results for the query.
func (a *WebAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

// TrendQueries returns the queries used to find recent trends in a domain.
func TrendQueries(domain string, w types.Window) []string {
	return []string{
		fmt.Sprintf("%s latest trends %s", domain, windowPhrase(w)),
		fmt.Sprintf("%s new tools %s", domain, windowPhrase(w)),
	}
}

// ToolsQuery returns the query used to find new tools in a domain.
func ToolsQuery(domain string, w types.Window) string {
	return fmt.Sprintf("%s new tools libraries frameworks %s", domain, windowPhrase(w))
}

func windowPhrase(w types.Window) string {
	switch w {
	case types.WindowWeek:
		return "this week"
	case types.WindowYear:
		return "this year"
	case types.WindowUnbounded:
		return ""
	default:
		return "this month"
	}
}

func (a *WebAdapter) queries(q string, w types.Window) []string {
	switch a.Mode {
	case WebTools:
		return []string{strings.TrimSpace(ToolsQuery(q, w))}
	case WebTrends:
		qs := TrendQueries(q, w)
		for i := range qs {
			qs[i] = strings.TrimSpace(qs[i])
		}
		return qs
	default:
		return []string{q}
	}
}

func (a *WebAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, eris.New("web: empty query")
	}

	var (
		items   []types.Item
		lastErr error
		ok      bool
	)
	seen := make(map[string]bool)
	for _, q := range a.queries(req.Query, req.Window) {
		found, err := a.searchOne(ctx, q, req)
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		for _, it := range found {
			if it.URL == "" || seen[it.URL] {
				continue
			}
			seen[it.URL] = true
			items = append(items, it)
		}
	}
	if !ok {
		return nil, lastErr
	}
	return items, nil
}

// searchOne tries Brave, then the DuckDuckGo Instant Answer API, then the
// DuckDuckGo HTML results page. The first provider with results wins.
func (a *WebAdapter) searchOne(ctx context.Context, q string, req Request) ([]types.Item, error) {
	var errs []string

	if a.BraveKey != "" {
		items, err := a.searchBrave(ctx, q, req)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			errs = append(errs, err.Error())
			zap.L().Warn("brave search failed, falling back to duckduckgo", zap.Error(err))
		}
	}

	items, err := a.searchDDG(ctx, q, req.Limit)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		errs = append(errs, err.Error())
	}

	items, err = a.searchDDGHTML(ctx, q, req.Limit)
	if err == nil {
		return items, nil
	}
	errs = append(errs, err.Error())
	return nil, eris.Errorf("web: all providers failed: %s", strings.Join(errs, "; "))
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

func (a *WebAdapter) searchBrave(ctx context.Context, q string, req Request) ([]types.Item, error) {
	if err := a.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?q=%s&count=%d", braveAPIBase, url.QueryEscape(q), min(req.Limit, braveMaxCount))
	if f := braveFreshness(req.Window); f != "" {
		u += "&freshness=" + f
	}

	var resp braveResponse
	err := httputil.GetJSON(ctx, a.client(), httputil.Request{
		URL:        u,
		Headers:    map[string]string{"X-Subscription-Token": a.BraveKey},
		MaxRetries: a.MaxRetries,
	}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "web: brave search")
	}

	items := make([]types.Item, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		published, _ := time.Parse("2006-01-02T15:04:05", r.PageAge)
		items = append(items, types.Item{
			Title:       stripHTML(r.Title),
			URL:         r.URL,
			Body:        truncate(stripHTML(r.Description), 300),
			PublishedAt: types.Time(published),
			Origin:      "brave",
		})
	}
	return items, nil
}

func braveFreshness(w types.Window) string {
	switch w {
	case types.WindowWeek:
		return "pw"
	case types.WindowMonth:
		return "pm"
	case types.WindowYear:
		return "py"
	default:
		return ""
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (a *WebAdapter) searchDDG(ctx context.Context, q string, limit int) ([]types.Item, error) {
	if err := a.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1", ddgAPIBase, url.QueryEscape(q))
	var resp ddgResponse
	err := httputil.GetJSON(ctx, a.client(), httputil.Request{
		URL:        u,
		Headers:    map[string]string{"User-Agent": a.userAgent()},
		MaxRetries: a.MaxRetries,
	}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "web: duckduckgo instant answer")
	}

	var items []types.Item
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		title := resp.Heading
		if title == "" {
			title = "Summary"
		}
		items = append(items, types.Item{
			Title:  title,
			URL:    resp.AbstractURL,
			Body:   truncate(resp.AbstractText, 300),
			Origin: "duckduckgo",
		})
	}

	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(items) >= limit {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.FirstURL == "" {
				continue
			}
			title := t.Text
			if i := strings.Index(title, " - "); i > 0 {
				title = title[:i]
			}
			items = append(items, types.Item{
				Title:  title,
				URL:    t.FirstURL,
				Body:   truncate(t.Text, 300),
				Origin: "duckduckgo",
			})
		}
	}
	walk(resp.RelatedTopics)
	return items, nil
}

// searchDDGHTML parses the DuckDuckGo HTML results page.
func (a *WebAdapter) searchDDGHTML(ctx context.Context, q string, limit int) ([]types.Item, error) {
	if err := a.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"q": {q}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgHTMLBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "web: create duckduckgo html request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", a.userAgent())

	resp, err := httputil.DoWithRetry(ctx, a.client(), httpReq, a.MaxRetries)
	if err != nil {
		return nil, eris.Wrap(err, "web: duckduckgo html")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("web: duckduckgo html returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "web: parse duckduckgo html")
	}

	var items []types.Item
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		items = append(items, types.Item{
			Title:  strings.Join(strings.Fields(link.Text()), " "),
			URL:    resolveDDGLink(href),
			Body:   truncate(strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "), 300),
			Origin: "duckduckgo-html",
		})
		return true
	})
	return items, nil
}

// resolveDDGLink unwraps DuckDuckGo redirect links ("//duckduckgo.com/l/?uddg=...").
func resolveDDGLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
