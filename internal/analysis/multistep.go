// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/observability"
	"github.com/pdiddy/research-agent/pkg/types"
)

// MaxSteps bounds the number of sub-questions a query is split into.
const MaxSteps = 10

// Step is one researched sub-question.
type Step struct {
	Question string `json:"question" yaml:"question"`
	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Answer   string `json:"answer" yaml:"answer"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// MultiStep is the result of researching a query through sub-questions.
type MultiStep struct {
	Query        string   `json:"query" yaml:"query"`
	SubQuestions []string `json:"sub_questions" yaml:"sub_questions"`
	Steps        []Step   `json:"steps" yaml:"steps"`
	FinalAnswer  string   `json:"final_answer" yaml:"final_answer"`
	StepsTaken   int      `json:"steps_taken" yaml:"steps_taken"`
}

var decomposeTmpl = template.Must(template.New("decompose").Parse(`Break down the following complex question into {{.N}} simpler sub-questions that, when answered together, would fully address the original question.

Question: {{.Query}}

Provide exactly {{.N}} sub-questions, numbered 1-{{.N}}, one per line:
`))

var synthesizeTmpl = template.Must(template.New("synthesize").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Based on the following research, provide a comprehensive answer to the original question.

Original Question: {{.Query}}

Research Findings:
{{range $i, $s := .Steps}}
{{inc $i}}. {{$s.Question}}
   {{$s.Answer}}
{{end}}
Provide a well-structured answer that synthesizes all the findings.
`))

// numbered matches "1. question" and "1) question".
var numbered = regexp.MustCompile(`^(\d+)[.)]\s*(.+)$`)

// StepFunc researches one sub-question, returning the run's ID and its
// analysis. The analysis is nil when the run produced none.
type StepFunc func(ctx context.Context, question string) (runID string, a *types.Analysis, err error)

// ResearchSteps decomposes query into up to n sub-questions, researches each
// in order with run, and synthesizes the answers. A failed step is recorded
// and the next one still runs. It fails only when the context is cancelled
// or no step produced an answer.
func (s *Stage) ResearchSteps(ctx context.Context, query string, n int, run StepFunc) (MultiStep, error) {
	questions := s.Decompose(ctx, query, n)
	out := MultiStep{Query: query, SubQuestions: questions}

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		zap.L().Info("researching sub-question",
			zap.Int("step", i+1),
			zap.Int("of", len(questions)),
			zap.String("question", q),
		)
		id, a, err := run(ctx, q)
		step := Step{Question: q, RunID: id}
		switch {
		case err != nil:
			step.Error = err.Error()
		case a != nil:
			step.Answer = Answer(*a)
		}
		out.Steps = append(out.Steps, step)
		out.StepsTaken++
	}

	out.FinalAnswer = s.Synthesize(ctx, query, out.Steps)
	if out.FinalAnswer == "" {
		return out, eris.Errorf("no sub-question of %q produced an answer", query)
	}
	return out, nil
}

// Decompose asks the model to split query into at most n sub-questions.
// It returns []string{query} when n < 2, when no model answers, or when the
// reply holds no numbered lines.
func (s *Stage) Decompose(ctx context.Context, query string, n int) []string {
	ctx, span := observability.StartSpan(ctx, "analysis.decompose")
	defer span.End()

	n = min(n, MaxSteps)
	if n < 2 || s.gen == nil {
		return []string{query}
	}

	var buf bytes.Buffer
	if err := decomposeTmpl.Execute(&buf, struct {
		Query string
		N     int
	}{query, n}); err != nil {
		zap.L().Error("rendering decomposition prompt", zap.Error(err))
		return []string{query}
	}

	text, err := s.callWithRetry(ctx, buf.String(), s.modelFor(query))
	if err != nil {
		zap.L().Warn("decomposition failed, researching the query as is", zap.String("query", query), zap.Error(err))
		return []string{query}
	}

	questions := ParseSubQuestions(text, n)
	if len(questions) == 0 {
		return []string{query}
	}
	zap.L().Info("decomposed query", zap.String("query", query), zap.Int("sub_questions", len(questions)))
	return questions
}

// ParseSubQuestions extracts lines numbered 1..n from text, in reply order,
// keeping at most n.
func ParseSubQuestions(text string, n int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		m := numbered.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > n {
			continue
		}
		q := strings.Trim(strings.TrimSpace(m[2]), "*")
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == n {
			break
		}
	}
	return out
}

// Synthesize combines the answers to the sub-questions into one answer.
// Steps without an answer are left out. Without a model reply the answers
// are joined under their questions.
func (s *Stage) Synthesize(ctx context.Context, query string, steps []Step) string {
	ctx, span := observability.StartSpan(ctx, "analysis.synthesize")
	defer span.End()

	var answered []Step
	for _, st := range steps {
		if st.Answer != "" {
			answered = append(answered, st)
		}
	}
	if len(answered) == 0 {
		return ""
	}
	if s.gen == nil {
		return joinAnswers(answered)
	}

	var buf bytes.Buffer
	if err := synthesizeTmpl.Execute(&buf, struct {
		Query string
		Steps []Step
	}{query, answered}); err != nil {
		zap.L().Error("rendering synthesis prompt", zap.Error(err))
		return joinAnswers(answered)
	}

	text, err := s.callWithRetry(ctx, buf.String(), s.modelFor(query))
	if err != nil || strings.TrimSpace(text) == "" {
		zap.L().Warn("synthesis failed, joining answers", zap.String("query", query), zap.Error(err))
		return joinAnswers(answered)
	}
	return strings.TrimSpace(text)
}

func joinAnswers(steps []Step) string {
	var b strings.Builder
	for i, st := range steps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", st.Question, st.Answer)
	}
	return b.String()
}

// Answer condenses an analysis into the text used as a step's answer: the
// summary followed by the key findings.
func Answer(a types.Analysis) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Summary()))
	for _, f := range a.KeyFindings() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + f)
	}
	return b.String()
}
