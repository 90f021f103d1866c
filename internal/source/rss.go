// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// DefaultFeeds are the technology news feeds read when none are configured.
var DefaultFeeds = []string{
	"https://news.ycombinator.com/rss",
	"https://techcrunch.com/feed/",
	"https://www.theverge.com/rss/index.xml",
}

const (
	rssEntriesPerFeed = 10
	rssSummaryLimit   = 300
)

// RSSAdapter reads RSS 2.0 and Atom feeds and keeps entries that mention
// the query.
type RSSAdapter struct {
	Options

	// Feeds overrides DefaultFeeds.
	Feeds []string
}

// Name returns the adapter identifier.
func (a *RSSAdapter) Name() string { return "rss" }

// Category returns the category of items this adapter produces.
func (a *RSSAdapter) Category() types.Category { return types.CategoryNews }

// Fetch returns feed entries for the query inside the window. A feed that
// cannot be read is skipped; the adapter fails only when every feed fails.
func (a *RSSAdapter) Fetch(ctx context.Context, req Request) []types.Item {
	return guard(ctx, a.Name(), a.Category(), req, a.search)
}

func (a *RSSAdapter) search(ctx context.Context, req Request) ([]types.Item, error) {
	feeds := a.Feeds
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}

	cutoff := req.Window.Cutoff(a.now())
	var (
		items    []types.Item
		failures int
		lastErr  error
	)
	for _, feedURL := range feeds {
		entries, err := a.readFeed(ctx, feedURL)
		if err != nil {
			failures++
			lastErr = err
			zap.L().Debug("rss feed skipped", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		if len(entries) > rssEntriesPerFeed {
			entries = entries[:rssEntriesPerFeed]
		}
		for _, e := range entries {
			if before(e.published, cutoff) {
				continue
			}
			if !matchesQuery(req.Query, e.title, e.summary) {
				continue
			}
			items = append(items, types.Item{
				Title:       e.title,
				URL:         e.link,
				Body:        truncate(e.summary, rssSummaryLimit),
				PublishedAt: types.Time(e.published),
				Origin:      "rss:" + feedHost(feedURL),
			})
		}
	}

	if failures == len(feeds) {
		return nil, eris.Wrap(lastErr, "rss: every feed failed")
	}
	return items, nil
}

// feedEntry is the normalized form of an RSS item or Atom entry.
type feedEntry struct {
	title     string
	link      string
	summary   string
	published time.Time
}

func (a *RSSAdapter) readFeed(ctx context.Context, feedURL string) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "rss: create request")
	}
	req.Header.Set("User-Agent", a.userAgent())

	resp, err := httputil.DoWithRetry(ctx, a.client(), req, a.MaxRetries)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: fetch %s", feedURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("rss: %s returned HTTP %d", feedURL, resp.StatusCode)
	}

	var doc feedDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, eris.Wrapf(err, "rss: parse %s", feedURL)
	}
	return doc.entries(), nil
}

// feedDocument decodes either an RSS 2.0 <rss> or an Atom <feed> root.
type feedDocument struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
	Entries []struct {
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Updated string `xml:"updated"`
		Pub     string `xml:"published"`
		Links   []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (d feedDocument) entries() []feedEntry {
	var out []feedEntry
	for _, it := range d.Channel.Items {
		out = append(out, feedEntry{
			title:     strings.TrimSpace(it.Title),
			link:      strings.TrimSpace(it.Link),
			summary:   stripHTML(it.Description),
			published: parseFeedTime(it.PubDate),
		})
	}
	for _, e := range d.Entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Content
		}
		published := e.Pub
		if published == "" {
			published = e.Updated
		}
		out = append(out, feedEntry{
			title:     strings.TrimSpace(e.Title),
			link:      link,
			summary:   stripHTML(summary),
			published: parseFeedTime(published),
		})
	}
	return out
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// parseFeedTime accepts the date formats seen in RSS and Atom feeds. An
// unparseable date yields the zero time, which passes every window filter.
func parseFeedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func feedHost(feedURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(feedURL, "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
