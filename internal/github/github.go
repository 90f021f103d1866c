// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package github publishes research results to a GitHub issue: a summary
// comment and a completion label.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/pkg/types"
)

// githubAPIBase is the GitHub REST API root. Package-level var for test substitution.
var githubAPIBase = "https://api.github.com"

// DefaultCompletedLabel is added to an issue after a successful run.
const DefaultCompletedLabel = "completed"

// maxCommentChars stays under GitHub's 65536 character comment limit.
const maxCommentChars = 60000

// Client posts to issues in one or more repositories.
type Client struct {
	Token      string
	UserAgent  string
	MaxRetries int
	HTTPClient *http.Client
}

// NewClient returns a client authenticated with token.
func NewClient(token string) *Client {
	return &Client{
		Token:      token,
		UserAgent:  "research-agent",
		MaxRetries: 3,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) request(repo string, issue int, resource string) httputil.Request {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
		"User-Agent":           c.UserAgent,
	}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}
	return httputil.Request{
		URL:        fmt.Sprintf("%s/repos/%s/issues/%d/%s", githubAPIBase, repo, issue, resource),
		Headers:    headers,
		MaxRetries: c.MaxRetries,
	}
}

// PostComment adds a comment to an issue and reports whether it was
// accepted. Failures are logged, never returned.
func (c *Client) PostComment(ctx context.Context, repo string, issue int, body string) bool {
	if repo == "" || issue <= 0 {
		zap.L().Warn("issue comment skipped: no repository or issue number")
		return false
	}
	err := httputil.PostJSON(ctx, c.HTTPClient, c.request(repo, issue, "comments"),
		map[string]string{"body": body}, nil)
	if err != nil {
		zap.L().Error("posting issue comment failed",
			zap.String("repo", repo), zap.Int("issue", issue), zap.Error(err))
		return false
	}
	zap.L().Info("issue comment posted", zap.String("repo", repo), zap.Int("issue", issue))
	return true
}

// AddLabel adds label to an issue.
func (c *Client) AddLabel(ctx context.Context, repo string, issue int, label string) error {
	if repo == "" || issue <= 0 {
		return eris.New("github: repository and issue number are required")
	}
	err := httputil.PostJSON(ctx, c.HTTPClient, c.request(repo, issue, "labels"),
		map[string][]string{"labels": {label}}, nil)
	if err != nil {
		return eris.Wrapf(err, "github: add label %q to %s#%d", label, repo, issue)
	}
	return nil
}

// SummaryComment builds the comment posted after a successful run: the
// markdown report, the source diagram and, when present, quality metrics.
// The report is cut short if the comment would exceed GitHub's limit.
func SummaryComment(outputs map[string]string, q *types.QualityReport) string {
	var tail strings.Builder
	if diagram := outputs[report.FormatDiagram]; diagram != "" {
		fmt.Fprintf(&tail, "\n\n## Source Overview\n\n```mermaid\n%s\n```\n", strings.TrimSpace(diagram))
	}
	if q != nil {
		tail.WriteString("\n## Quality Metrics\n\n")
		fmt.Fprintf(&tail, "- **Overall Score**: %.2f / 1.0\n", q.Overall)
		fmt.Fprintf(&tail, "- **Quality Rating**: %s\n", q.Rating)
		for _, dim := range []string{"comprehensiveness", "relevance", "analysis", "outputs"} {
			if v, ok := q.Dimensions[dim]; ok {
				fmt.Fprintf(&tail, "- **%s**: %.2f\n", strings.ToUpper(dim[:1])+dim[1:], v)
			}
		}
		if len(q.Recommendations) > 0 {
			tail.WriteString("\n### Recommendations\n\n")
			for _, r := range q.Recommendations {
				fmt.Fprintf(&tail, "- %s\n", r)
			}
		}
	}

	md := outputs[report.FormatMarkdown]
	if budget := maxCommentChars - tail.Len(); len(md) > budget {
		if budget < 0 {
			budget = 0
		}
		md = md[:budget] + "\n\n*Report truncated; see the full report in the workflow artifacts.*"
	}
	return md + tail.String()
}

// NoDataComment is posted when collection found nothing.
func NoDataComment(query string) string {
	return fmt.Sprintf("No research data found for query: %q\n\nPlease try a different search term or adjust the configuration.", query)
}

// FailureComment is posted when a run fails for any other reason.
func FailureComment(err error) string {
	return fmt.Sprintf("Research failed with error:\n\n```\n%v\n```\n\nPlease check the workflow logs for details.", err)
}
