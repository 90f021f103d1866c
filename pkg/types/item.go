// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-agent pipeline:
// harvested items and result sets, model descriptors, workflow state, analysis
// results, feedback records, and configuration.
package types

import (
	"strings"
	"time"
)

// Category classifies an Item by the kind of source it came from.
type Category string

const (
	CategoryPaper      Category = "paper"
	CategoryRepository Category = "repository"
	CategoryNews       Category = "news"
	CategoryDiscussion Category = "discussion"
	CategoryWeb        Category = "web"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryPaper,
	CategoryRepository,
	CategoryNews,
	CategoryDiscussion,
	CategoryWeb,
}

// Item is one harvested unit of information from a source adapter.
type Item struct {
	// Title is the headline as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Source is the category of the item. Always set.
	Source Category `json:"source" yaml:"source"`

	// URL links to the item. Unique within the web category after aggregation.
	URL string `json:"url" yaml:"url"`

	// Body is the summary or description, already truncated by the adapter.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Score is the source-native ranking signal: stars, points, upvotes,
	// reactions, or a position-based relevance.
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`

	// PublishedAt is the publication or creation time when the source reports one.
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// Origin names the adapter that produced the item (e.g. "arxiv"). Always set.
	Origin string `json:"origin" yaml:"origin"`
}

// ScoreValue returns the score or zero when the source reported none.
func (it Item) ScoreValue() float64 {
	if it.Score == nil {
		return 0
	}
	return *it.Score
}

// Float returns a pointer to v, for populating optional numeric fields.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to t, or nil for the zero time.
func Time(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ResultSet maps each category to the items collected for it, in adapter
// return order.
type ResultSet map[Category][]Item

// NewResultSet returns a ResultSet with every category present and empty.
func NewResultSet() ResultSet {
	rs := make(ResultSet, len(Categories))
	for _, c := range Categories {
		rs[c] = []Item{}
	}
	return rs
}

// Total returns the number of items across all categories.
func (rs ResultSet) Total() int {
	n := 0
	for _, items := range rs {
		n += len(items)
	}
	return n
}

// Counts returns the item count per category, including empty ones.
func (rs ResultSet) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = len(rs[c])
	}
	return counts
}

// Window is the time range a source adapter filters by.
type Window string

const (
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
	WindowYear      Window = "year"
	WindowUnbounded Window = "unbounded"
)

// ParseWindow maps a user-facing time range to a Window. Unknown values map
// to WindowMonth. "all" is accepted as an alias for unbounded.
func ParseWindow(s string) Window {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week":
		return WindowWeek
	case "year":
		return WindowYear
	case "unbounded", "all":
		return WindowUnbounded
	default:
		return WindowMonth
	}
}

// Days returns the window length in days, or 0 when unbounded.
func (w Window) Days() int {
	switch w {
	case WindowWeek:
		return 7
	case WindowMonth:
		return 30
	case WindowYear:
		return 365
	default:
		return 0
	}
}

// Cutoff returns the earliest time inside the window relative to now.
// The zero time is returned for an unbounded window.
func (w Window) Cutoff(now time.Time) time.Time {
	d := w.Days()
	if d == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -d)
}

// Depth controls per-category item budgets.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// ParseDepth maps a string to a Depth; unknown values map to DepthStandard.
func ParseDepth(s string) Depth {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quick":
		return DepthQuick
	case "deep":
		return DepthDeep
	default:
		return DepthStandard
	}
}

// Focus controls which source adapters run.
type Focus string

const (
	FocusPapers Focus = "papers"
	FocusTools  Focus = "tools"
	FocusTrends Focus = "trends"
	FocusAll    Focus = "all"
)

// ParseFocus maps a string to a Focus; unknown values map to FocusAll.
func ParseFocus(s string) Focus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "papers":
		return FocusPapers
	case "tools":
		return FocusTools
	case "trends":
		return FocusTrends
	default:
		return FocusAll
	}
}
