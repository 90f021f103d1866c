// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis turns a collected ResultSet into a model prompt, calls
// the generator, and parses the reply into a structured analysis. When no
// model can answer it builds a deterministic summary from item counts.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/model"
	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/pkg/types"
)

// backoffBase is the initial retry delay. Package-level var for test
// substitution.
var backoffBase = time.Second

const defaultRecallLimit = 3

// PastContext supplies a block of related past research for the prompt.
type PastContext interface {
	ContextFor(ctx context.Context, query string, limit int) string
}

// Config tunes a Stage.
type Config struct {
	// Model forces a registered model. Empty lets the generator choose.
	Model string

	// MaxRetries bounds retries after a backend error. Unavailable and
	// timed-out backends are never retried.
	MaxRetries int

	// RecallLimit is the number of past records added to the prompt.
	RecallLimit int
}

// Stage analyzes result sets with a generator.
type Stage struct {
	gen    model.Generator
	past   PastContext
	config Config
}

// New returns a Stage. past may be nil.
func New(gen model.Generator, past PastContext, cfg Config) *Stage {
	if cfg.RecallLimit <= 0 {
		cfg.RecallLimit = defaultRecallLimit
	}
	return &Stage{gen: gen, past: past, config: cfg}
}

// Analyze synthesizes rs for query. It never fails: generator errors
// produce the deterministic fallback and unparseable replies produce a raw
// text analysis.
func (s *Stage) Analyze(ctx context.Context, rs types.ResultSet, query string) types.Analysis {
	ctx, span := observability.StartSpan(ctx, "analysis.analyze")
	defer span.End()

	var past string
	if s.past != nil {
		past = s.past.ContextFor(ctx, query, s.config.RecallLimit)
	}

	prompt, err := renderPrompt(query, BuildContext(rs), past)
	if err != nil {
		zap.L().Error("rendering analysis prompt", zap.Error(err))
		return Fallback(rs, query)
	}

	if s.gen == nil {
		return Fallback(rs, query)
	}

	name := s.modelFor(query)
	start := time.Now()
	text, err := s.callWithRetry(ctx, prompt, name)
	if err != nil {
		zap.L().Warn("analysis falling back to counts",
			zap.String("query", query),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Fallback(rs, query)
	}

	a := Parse(text)
	a.Model = name
	zap.L().Info("analysis finished",
		zap.String("query", query),
		zap.Bool("raw", a.IsRaw()),
		zap.Int("findings", len(a.KeyFindings())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a
}

// modelFor returns the forced model, or the one selected for the query's
// task type. The prompt is never classified: it carries harvested item text.
func (s *Stage) modelFor(query string) string {
	if s.config.Model != "" {
		return s.config.Model
	}
	if sel, ok := s.gen.(model.Selector); ok {
		return sel.SelectBackend(model.ClassifyTask(query))
	}
	return ""
}

// callWithRetry retries backend errors with exponential backoff.
func (s *Stage) callWithRetry(ctx context.Context, prompt, name string) (string, error) {
	opts := model.Options{Model: name}
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := s.gen.Generate(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !eris.Is(err, model.ErrBackendError) {
			return "", err
		}
	}
	return "", eris.Wrapf(lastErr, "after %d retries", s.config.MaxRetries)
}

// structuredReply mirrors StructuredAnalysis but accepts either a string or
// a list of strings for every field.
type structuredReply struct {
	KeyFindings     flexText `json:"key_findings"`
	Trends          flexText `json:"trends"`
	NotableItems    flexText `json:"notable_items"`
	Recommendations flexText `json:"recommendations"`
	Summary         flexText `json:"summary"`
}

// flexText decodes a JSON string or array of strings.
type flexText []string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			*f = flexText{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

// Parse decodes a model reply. Markdown code fences are stripped first. A
// reply that is not a JSON object with at least a summary or findings
// becomes a raw text analysis.
func Parse(text string) types.Analysis {
	var reply structuredReply
	err := json.Unmarshal([]byte(StripFences(text)), &reply)
	if err != nil || (len(reply.Summary) == 0 && len(reply.KeyFindings) == 0) {
		return types.Analysis{Raw: &types.RawTextAnalysis{Text: text}}
	}
	return types.Analysis{Structured: &types.StructuredAnalysis{
		KeyFindings:     reply.KeyFindings,
		Trends:          strings.Join(reply.Trends, "\n"),
		NotableItems:    reply.NotableItems,
		Recommendations: reply.Recommendations,
		Summary:         strings.Join(reply.Summary, "\n"),
	}}
}

// StripFences removes a surrounding markdown code fence such as ```json.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// Fallback builds an analysis from item counts without a model call.
func Fallback(rs types.ResultSet, query string) types.Analysis {
	findings := []string{
		fmt.Sprintf("Found %d academic papers", len(rs[types.CategoryPaper])),
		fmt.Sprintf("Found %d GitHub repositories", len(rs[types.CategoryRepository])),
		fmt.Sprintf("Found %d news articles", len(rs[types.CategoryNews])),
		fmt.Sprintf("Found %d discussions", len(rs[types.CategoryDiscussion])),
	}
	if n := len(rs[types.CategoryWeb]); n > 0 {
		findings = append(findings, fmt.Sprintf("Found %d web results", n))
	}

	return types.Analysis{
		Fallback: true,
		Structured: &types.StructuredAnalysis{
			KeyFindings:  findings,
			Trends:       fmt.Sprintf("Research on %s shows active development across multiple platforms.", query),
			NotableItems: topItems(rs),
			Recommendations: []string{
				"Review the top papers for academic insights",
				"Explore trending repositories for practical implementations",
				"Follow ongoing discussions for community perspectives",
			},
			Summary: fmt.Sprintf("Comprehensive research on '%s' reveals significant activity across academic papers, open-source projects, and community discussions.", query),
		},
	}
}

// topItems names the first paper and the most-starred repository.
func topItems(rs types.ResultSet) []string {
	var items []string
	if papers := rs[types.CategoryPaper]; len(papers) > 0 {
		items = append(items, "Paper: "+papers[0].Title)
	}
	if repos := rs[types.CategoryRepository]; len(repos) > 0 {
		top := repos[0]
		for _, r := range repos[1:] {
			if r.ScoreValue() > top.ScoreValue() {
				top = r
			}
		}
		items = append(items, fmt.Sprintf("Repository: %s (%.0f stars)", top.Title, top.ScoreValue()))
	}
	return items
}
