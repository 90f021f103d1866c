// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a finished research run into Markdown, JSON,
// HTML, BibTeX, CSV and Mermaid outputs, and saves them to disk.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Output format names.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatBibTeX   = "bibtex"
	FormatCSV      = "csv"
	FormatDiagram  = "diagram"
)

// Formats lists every format Render produces.
var Formats = []string{FormatMarkdown, FormatJSON, FormatHTML, FormatBibTeX, FormatCSV, FormatDiagram}

// extensions maps each format to its file extension.
var extensions = map[string]string{
	FormatMarkdown: "md",
	FormatJSON:     "json",
	FormatHTML:     "html",
	FormatBibTeX:   "bib",
	FormatCSV:      "csv",
	FormatDiagram:  "mmd",
}

// maxListed bounds the items listed per category in prose formats.
const maxListed = 10

// Renderer renders reports. The zero value uses the wall clock.
type Renderer struct {
	// Now stamps the generation time. Defaults to time.Now.
	Now func() time.Time
}

func (r Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Render produces every output format for one run.
func (r Renderer) Render(query string, rs types.ResultSet, a types.Analysis) (map[string]string, error) {
	d := newDocument(query, rs, a, r.now())

	js, err := renderJSON(d)
	if err != nil {
		return nil, err
	}
	html, err := renderHTML(d)
	if err != nil {
		return nil, err
	}
	csv, err := renderCSV(d)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		FormatMarkdown: renderMarkdown(d),
		FormatJSON:     js,
		FormatHTML:     html,
		FormatBibTeX:   renderBibTeX(d),
		FormatCSV:      csv,
		FormatDiagram:  renderDiagram(d),
	}, nil
}

// Render produces every output format using the wall clock.
func Render(query string, rs types.ResultSet, a types.Analysis) (map[string]string, error) {
	return Renderer{}.Render(query, rs, a)
}

// Save writes each output to dir as <base>.<ext> and returns the written
// paths sorted. Empty outputs and unknown formats are skipped.
func Save(dir, base string, outputs map[string]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}

	var paths []string
	for format, content := range outputs {
		ext, ok := extensions[format]
		if !ok || content == "" {
			continue
		}
		path := filepath.Join(dir, base+"."+ext)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, eris.Wrapf(err, "report: write %s", path)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	zap.L().Info("report saved", zap.String("dir", dir), zap.Int("files", len(paths)))
	return paths, nil
}

// FileBase derives a file name stem from a query: lowercase alphanumerics
// joined by underscores, at most 50 characters.
func FileBase(query string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('_')
			lastSep = true
		}
		if b.Len() >= 50 {
			break
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "research"
	}
	return s
}

// document is the shared view every renderer reads from.
type document struct {
	Query       string
	GeneratedAt time.Time
	Analysis    types.Analysis
	Results     types.ResultSet
	Counts      map[types.Category]int
}

func newDocument(query string, rs types.ResultSet, a types.Analysis, now time.Time) document {
	if rs == nil {
		rs = types.NewResultSet()
	}
	return document{
		Query:       query,
		GeneratedAt: now,
		Analysis:    a,
		Results:     rs,
		Counts:      rs.Counts(),
	}
}

// listed returns at most maxListed items of category c.
func (d document) listed(c types.Category) []types.Item {
	items := d.Results[c]
	if len(items) > maxListed {
		items = items[:maxListed]
	}
	return items
}

// categoryLabels names each category in prose outputs.
var categoryLabels = map[types.Category]string{
	types.CategoryPaper:      "Academic Papers",
	types.CategoryRepository: "GitHub Repositories",
	types.CategoryNews:       "News & Articles",
	types.CategoryDiscussion: "Community Discussions",
	types.CategoryWeb:        "Web Results",
}
