// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Context limits.
const (
	maxItemsPerCategory = 20
	maxContextChars     = 8000
	paperBodyLimit      = 200
	otherBodyLimit      = 150
)

// analysisPromptTmpl asks the model for a JSON synthesis of the collected
// items.
var analysisPromptTmpl = template.Must(template.New("analysis").Parse(`You are a research analyst. Analyze the following research data about "{{.Query}}" and provide a comprehensive synthesis.
{{if .Past}}
{{.Past}}
{{end}}
Research Data:
{{.Context}}

Provide a structured analysis with:
1. Key Findings (3-5 main points)
2. Trends and Patterns
3. Notable Papers/Projects (if applicable)
4. Recommendations for further exploration
5. Summary

Respond with a JSON object with these keys: "key_findings" (array of strings), "trends" (string), "notable_items" (array of strings), "recommendations" (array of strings), "summary" (string). Do not include any text outside the JSON object.
`))

// renderPrompt executes the analysis prompt template.
func renderPrompt(query, context, past string) (string, error) {
	var buf bytes.Buffer
	err := analysisPromptTmpl.Execute(&buf, struct {
		Query   string
		Context string
		Past    string
	}{Query: query, Context: context, Past: past})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sectionTitles names the context block for each category.
var sectionTitles = map[types.Category]string{
	types.CategoryPaper:      "PAPERS",
	types.CategoryRepository: "REPOSITORIES",
	types.CategoryNews:       "NEWS & ARTICLES",
	types.CategoryDiscussion: "DISCUSSIONS",
	types.CategoryWeb:        "WEB",
}

// BuildContext renders at most 20 items per category into labelled
// sections. Bodies are truncated before concatenation and the result is
// capped at 8000 characters, keeping the earliest items.
func BuildContext(rs types.ResultSet) string {
	var lines []string
	for _, c := range types.Categories {
		items := rs[c]
		if len(items) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, sectionTitles[c]+":")

		if len(items) > maxItemsPerCategory {
			items = items[:maxItemsPerCategory]
		}
		for i, it := range items {
			lines = append(lines, itemLines(c, i+1, it)...)
		}
	}
	return truncate(strings.Join(lines, "\n"), maxContextChars)
}

func itemLines(c types.Category, n int, it types.Item) []string {
	title := it.Title
	if title == "" {
		title = "N/A"
	}

	switch c {
	case types.CategoryPaper:
		return withBody([]string{fmt.Sprintf("%d. %s", n, title)}, "   Summary: ", it.Body, paperBodyLimit)
	case types.CategoryRepository:
		return withBody([]string{fmt.Sprintf("%d. %s (%.0f stars)", n, title, it.ScoreValue())}, "   ", it.Body, otherBodyLimit)
	case types.CategoryDiscussion:
		return withBody([]string{fmt.Sprintf("%d. %s (%.0f score)", n, title, it.ScoreValue())}, "   ", it.Body, otherBodyLimit)
	case types.CategoryWeb:
		lines := []string{fmt.Sprintf("%d. %s", n, title)}
		if it.URL != "" {
			lines = append(lines, "   "+it.URL)
		}
		return withBody(lines, "   ", it.Body, otherBodyLimit)
	default:
		return withBody([]string{fmt.Sprintf("%d. %s", n, title)}, "   ", it.Body, otherBodyLimit)
	}
}

func withBody(lines []string, prefix, body string, limit int) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return lines
	}
	return append(lines, prefix+truncate(body, limit))
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
