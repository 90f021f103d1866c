// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/research-agent/pkg/types"
)

func renderMarkdown(d document) string {
	var b strings.Builder
	a := d.Analysis

	fmt.Fprintf(&b, "# Research Report: %s\n\n", d.Query)
	fmt.Fprintf(&b, "*Generated on %s*\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Executive Summary\n\n")
	if s := a.Summary(); s != "" {
		b.WriteString(s + "\n\n")
	} else {
		b.WriteString("No summary available.\n\n")
	}

	if findings := a.KeyFindings(); len(findings) > 0 {
		b.WriteString("## Key Findings\n\n")
		for i, f := range findings {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
		b.WriteString("\n")
	}

	if t := a.Trends(); t != "" {
		b.WriteString("## Trends and Patterns\n\n" + t + "\n\n")
	}

	if notable := a.NotableItems(); len(notable) > 0 {
		b.WriteString("## Notable Items\n\n")
		for _, n := range notable {
			b.WriteString("- " + n + "\n")
		}
		b.WriteString("\n")
	}

	for _, c := range types.Categories {
		items := d.listed(c)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d found)\n\n", categoryLabels[c], d.Counts[c])
		for i, it := range items {
			fmt.Fprintf(&b, "%d. [%s](%s)", i+1, it.Title, it.URL)
			if it.Score != nil {
				fmt.Fprintf(&b, " (%s)", scoreLabel(c, *it.Score))
			}
			fmt.Fprintf(&b, " - *%s*\n", it.Origin)
			if it.Body != "" {
				fmt.Fprintf(&b, "   %s\n", it.Body)
			}
		}
		b.WriteString("\n")
	}

	if recs := a.Recommendations(); len(recs) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, r := range recs {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Statistics\n\n")
	for _, c := range types.Categories {
		fmt.Fprintf(&b, "- %s: %d\n", categoryLabels[c], d.Counts[c])
	}
	return b.String()
}

func scoreLabel(c types.Category, score float64) string {
	switch c {
	case types.CategoryRepository:
		return fmt.Sprintf("%.0f stars", score)
	case types.CategoryPaper:
		return fmt.Sprintf("relevance %.2f", score)
	default:
		return fmt.Sprintf("%.0f points", score)
	}
}

// jsonReport is the JSON output document.
type jsonReport struct {
	Query       string                 `json:"query"`
	GeneratedAt time.Time              `json:"generated_at"`
	Analysis    jsonAnalysis           `json:"analysis"`
	Data        types.ResultSet        `json:"data"`
	Statistics  map[types.Category]int `json:"statistics"`
}

type jsonAnalysis struct {
	KeyFindings     []string `json:"key_findings"`
	Trends          string   `json:"trends"`
	NotableItems    []string `json:"notable_items"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	Raw             bool     `json:"raw"`
	Fallback        bool     `json:"fallback"`
}

func renderJSON(d document) (string, error) {
	a := d.Analysis
	out := jsonReport{
		Query:       d.Query,
		GeneratedAt: d.GeneratedAt,
		Analysis: jsonAnalysis{
			KeyFindings:     nonNil(a.KeyFindings()),
			Trends:          a.Trends(),
			NotableItems:    nonNil(a.NotableItems()),
			Recommendations: nonNil(a.Recommendations()),
			Summary:         a.Summary(),
			Raw:             a.IsRaw(),
			Fallback:        a.Fallback,
		},
		Data:       d.Results,
		Statistics: d.Counts,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "report: marshal json")
	}
	return string(data), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"label": func(c types.Category) string { return categoryLabels[c] },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Research Report: {{.Query}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 40px; border-radius: 10px; margin-bottom: 30px; }
.section { background: white; padding: 30px; border-radius: 10px; margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 20px; margin-bottom: 30px; }
.stat-card { background: white; padding: 20px; border-radius: 10px; text-align: center; }
.stat-card .number { font-size: 40px; font-weight: bold; color: #667eea; }
.item { padding: 15px; border-left: 4px solid #667eea; margin: 15px 0; background: #f9f9f9; }
</style>
</head>
<body>
<div class="header">
<h1>Research Report: {{.Query}}</h1>
<p>Generated on {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
</div>
<div class="section">
<h2>Executive Summary</h2>
<p>{{with .Summary}}{{.}}{{else}}No summary available.{{end}}</p>
</div>
<div class="stats">
{{- range .Sections}}
<div class="stat-card"><div class="number">{{.Count}}</div><div class="label">{{label .Category}}</div></div>
{{- end}}
</div>
{{- if .Findings}}
<div class="section">
<h2>Key Findings</h2>
<ul>
{{- range .Findings}}
<li>{{.}}</li>
{{- end}}
</ul>
</div>
{{- end}}
{{- range .Sections}}{{if .Items}}
<div class="section">
<h2>{{label .Category}} ({{.Count}} found)</h2>
{{- range .Items}}
<div class="item">
<h3><a href="{{.URL}}" target="_blank">{{.Title}}</a></h3>
{{- if .Body}}
<p>{{.Body}}</p>
{{- end}}
</div>
{{- end}}
</div>
{{- end}}{{end}}
{{- if .Recommendations}}
<div class="section">
<h2>Recommendations</h2>
<ol>
{{- range .Recommendations}}
<li>{{.}}</li>
{{- end}}
</ol>
</div>
{{- end}}
</body>
</html>
`))

type htmlSection struct {
	Category types.Category
	Count    int
	Items    []types.Item
}

func renderHTML(d document) (string, error) {
	sections := make([]htmlSection, 0, len(types.Categories))
	for _, c := range types.Categories {
		sections = append(sections, htmlSection{Category: c, Count: d.Counts[c], Items: d.listed(c)})
	}

	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, struct {
		Query           string
		GeneratedAt     time.Time
		Summary         string
		Findings        []string
		Recommendations []string
		Sections        []htmlSection
	}{
		Query:           d.Query,
		GeneratedAt:     d.GeneratedAt,
		Summary:         d.Analysis.Summary(),
		Findings:        d.Analysis.KeyFindings(),
		Recommendations: d.Analysis.Recommendations(),
		Sections:        sections,
	})
	if err != nil {
		return "", eris.Wrap(err, "report: render html")
	}
	return buf.String(), nil
}

var arxivIDPattern = regexp.MustCompile(`arxiv\.org/abs/(\d+\.\d+)`)

// renderBibTeX emits one @article entry per paper.
func renderBibTeX(d document) string {
	var b strings.Builder
	for i, p := range d.Results[types.CategoryPaper] {
		key := "unknown" + strconv.Itoa(i+1)
		if m := arxivIDPattern.FindStringSubmatch(p.URL); m != nil {
			key = m[1]
		}
		fmt.Fprintf(&b, "@article{%s,\n", key)
		fmt.Fprintf(&b, "  title = {%s},\n", p.Title)
		if p.PublishedAt != nil {
			fmt.Fprintf(&b, "  year = {%d},\n", p.PublishedAt.Year())
		}
		fmt.Fprintf(&b, "  journal = {arXiv preprint arXiv:%s},\n", key)
		if p.URL != "" {
			fmt.Fprintf(&b, "  url = {%s},\n", p.URL)
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}

var csvTypeLabels = map[types.Category]string{
	types.CategoryPaper:      "Paper",
	types.CategoryRepository: "Repository",
	types.CategoryNews:       "News",
	types.CategoryDiscussion: "Discussion",
	types.CategoryWeb:        "Web",
}

func renderCSV(d document) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Type", "Title", "Description", "URL", "Date", "Score", "Origin"}); err != nil {
		return "", eris.Wrap(err, "report: write csv header")
	}

	for _, c := range types.Categories {
		for _, it := range d.Results[c] {
			var date, score string
			if it.PublishedAt != nil {
				date = it.PublishedAt.Format("2006-01-02")
			}
			if it.Score != nil {
				score = strconv.FormatFloat(*it.Score, 'f', -1, 64)
			}
			row := []string{csvTypeLabels[c], it.Title, it.Body, it.URL, date, score, it.Origin}
			if err := w.Write(row); err != nil {
				return "", eris.Wrap(err, "report: write csv row")
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "report: flush csv")
	}
	return buf.String(), nil
}

// diagramNodes names the Mermaid node for each category.
var diagramNodes = map[types.Category]string{
	types.CategoryPaper:      "PAPERS",
	types.CategoryRepository: "REPOS",
	types.CategoryNews:       "NEWS",
	types.CategoryDiscussion: "DISC",
	types.CategoryWeb:        "WEB",
}

var diagramPrefixes = map[types.Category]string{
	types.CategoryPaper:      "P",
	types.CategoryRepository: "R",
	types.CategoryNews:       "N",
	types.CategoryDiscussion: "D",
	types.CategoryWeb:        "W",
}

// renderDiagram emits a Mermaid graph linking the query to each non-empty
// category and its top three items.
func renderDiagram(d document) string {
	lines := []string{"graph TD", fmt.Sprintf(`    QUERY["%s"]`, mermaidLabel(d.Query, 80))}
	for _, c := range types.Categories {
		n := d.Counts[c]
		if n == 0 {
			continue
		}
		node := diagramNodes[c]
		lines = append(lines,
			fmt.Sprintf(`    %s["%s: %d"]`, node, categoryLabels[c], n),
			fmt.Sprintf("    QUERY --> %s", node),
		)
		for i, it := range d.Results[c] {
			if i == 3 {
				break
			}
			id := fmt.Sprintf("%s%d", diagramPrefixes[c], i+1)
			lines = append(lines,
				fmt.Sprintf(`    %s["%s"]`, id, mermaidLabel(it.Title, 30)),
				fmt.Sprintf("    %s --> %s", node, id),
			)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// mermaidLabel truncates s and replaces characters that break node labels.
func mermaidLabel(s string, max int) string {
	s = strings.NewReplacer(`"`, "'", "\n", " ", "[", "(", "]", ")").Replace(s)
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
