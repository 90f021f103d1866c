// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores a finished research run on four weighted
// dimensions: comprehensiveness, relevance, analysis quality and output
// quality.
package evaluate

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Dimension names used in QualityReport.Dimensions.
const (
	DimComprehensiveness = "comprehensiveness"
	DimRelevance         = "relevance"
	DimAnalysis          = "analysis"
	DimOutputs           = "outputs"
)

// weights for the overall score. They sum to 1.
var weights = map[string]float64{
	DimComprehensiveness: 0.25,
	DimRelevance:         0.30,
	DimAnalysis:          0.25,
	DimOutputs:           0.20,
}

// recommendationThreshold is the dimension score below which a
// recommendation is added.
const recommendationThreshold = 0.7

var dimensionAdvice = []struct {
	dim    string
	advice string
}{
	{DimComprehensiveness, "Increase data collection from more diverse sources"},
	{DimRelevance, "Refine search terms to improve relevance of results"},
	{DimAnalysis, "Enhance analysis depth with more detailed findings"},
	{DimOutputs, "Improve output format completeness and quality"},
}

// expectedCategories are the categories counted for source coverage.
var expectedCategories = []types.Category{
	types.CategoryPaper,
	types.CategoryRepository,
	types.CategoryNews,
	types.CategoryDiscussion,
}

// Evaluator scores runs. It holds no state.
type Evaluator struct{}

// Score implements the workflow evaluator with the package-level Score.
func (Evaluator) Score(query string, rs types.ResultSet, a types.Analysis, outputs map[string]string) types.QualityReport {
	return Score(query, rs, a, outputs)
}

// Score computes the quality report for one run.
func Score(query string, rs types.ResultSet, a types.Analysis, outputs map[string]string) types.QualityReport {
	details := make(map[string]float64)

	dims := map[string]float64{
		DimComprehensiveness: comprehensiveness(rs, details),
		DimRelevance:         relevance(query, rs, details),
		DimAnalysis:          analysisQuality(a, details),
		DimOutputs:           outputQuality(outputs, details),
	}

	var overall float64
	for dim, w := range weights {
		overall += dims[dim] * w
	}
	overall = round2(overall)

	var recs []string
	for _, da := range dimensionAdvice {
		if dims[da.dim] < recommendationThreshold {
			recs = append(recs, da.advice)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Maintain current high quality standards")
	}

	q := types.QualityReport{
		Overall:         overall,
		Dimensions:      dims,
		Rating:          Rating(overall),
		Details:         details,
		Recommendations: recs,
	}
	zap.L().Info("evaluation complete",
		zap.String("rating", q.Rating),
		zap.Float64("overall", q.Overall),
		zap.Float64(DimComprehensiveness, dims[DimComprehensiveness]),
		zap.Float64(DimRelevance, dims[DimRelevance]),
		zap.Float64(DimAnalysis, dims[DimAnalysis]),
		zap.Float64(DimOutputs, dims[DimOutputs]),
	)
	return q
}

// Rating labels an overall score.
func Rating(overall float64) string {
	switch {
	case overall >= 0.8:
		return "Excellent"
	case overall >= 0.6:
		return "Good"
	case overall >= 0.4:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// comprehensiveness averages source coverage, item quantity and sampled
// item quality.
func comprehensiveness(rs types.ResultSet, details map[string]float64) float64 {
	present := 0
	for _, c := range expectedCategories {
		if len(rs[c]) > 0 {
			present++
		}
	}
	coverage := float64(present) / float64(len(expectedCategories))
	quantity := math.Min(float64(rs.Total())/100, 1)

	var qualities []float64
	for _, c := range types.Categories {
		items := rs[c]
		if len(items) == 0 {
			continue
		}
		if len(items) > 5 {
			items = items[:5]
		}
		complete := 0
		for _, it := range items {
			if it.Title != "" && it.URL != "" && len([]rune(it.Body)) > 20 {
				complete++
			}
		}
		qualities = append(qualities, float64(complete)/float64(len(items)))
	}
	quality := mean(qualities)

	details["comprehensiveness.coverage"] = coverage
	details["comprehensiveness.quantity"] = quantity
	details["comprehensiveness.item_quality"] = quality
	return round2(mean([]float64{coverage, quantity, quality}))
}

// relevance measures query-term overlap over the first ten items of each
// non-empty category.
func relevance(query string, rs types.ResultSet, details map[string]float64) float64 {
	terms := wordSet(query)
	if len(terms) == 0 {
		return 0
	}

	var perCategory []float64
	for _, c := range types.Categories {
		items := rs[c]
		if len(items) == 0 {
			continue
		}
		if len(items) > 10 {
			items = items[:10]
		}
		var scores []float64
		for _, it := range items {
			words := wordSet(it.Title + " " + it.Body)
			overlap := 0
			for t := range terms {
				if words[t] {
					overlap++
				}
			}
			scores = append(scores, float64(overlap)/float64(len(terms)))
		}
		avg := mean(scores)
		details["relevance."+string(c)] = round2(avg)
		perCategory = append(perCategory, avg)
	}
	return round2(mean(perCategory))
}

// analysisQuality averages section completeness, finding depth and summary
// length.
func analysisQuality(a types.Analysis, details map[string]float64) float64 {
	findings := a.KeyFindings()
	summary := a.Summary()

	present := 0
	for _, ok := range []bool{len(findings) > 0, summary != "", len(a.Recommendations()) > 0} {
		if ok {
			present++
		}
	}
	completeness := float64(present) / 3

	var depth float64
	if len(findings) > 0 {
		total := 0
		for _, f := range findings {
			total += len([]rune(f))
		}
		depth = math.Min(float64(total)/float64(len(findings))/100, 1)
	}

	var summaryScore float64
	switch n := len([]rune(summary)); {
	case n == 0:
		summaryScore = 0
	case n < 100:
		summaryScore = float64(n) / 100
	case n <= 500:
		summaryScore = 1
	default:
		summaryScore = 0.8
	}

	details["analysis.completeness"] = completeness
	details["analysis.depth"] = depth
	details["analysis.summary"] = summaryScore
	return round2(mean([]float64{completeness, depth, summaryScore}))
}

// outputQuality averages format completeness and the structural quality of
// the markdown, json and html outputs.
func outputQuality(outputs map[string]string, details map[string]float64) float64 {
	present := 0
	for _, f := range report.Formats {
		if outputs[f] != "" {
			present++
		}
	}
	completeness := float64(present) / float64(len(report.Formats))
	details["outputs.completeness"] = completeness

	var quality []float64
	if md, ok := outputs[report.FormatMarkdown]; ok {
		s := (boolScore(strings.Contains(md, "##")) + boolScore(len(md) > 500)) / 2
		details["outputs.markdown"] = s
		quality = append(quality, s)
	}
	if js, ok := outputs[report.FormatJSON]; ok {
		s := boolScore(json.Valid([]byte(js)))
		details["outputs.json"] = s
		quality = append(quality, s)
	}
	if html, ok := outputs[report.FormatHTML]; ok {
		s := (boolScore(strings.Contains(html, "<!DOCTYPE")) + boolScore(strings.Contains(html, "<body>"))) / 2
		details["outputs.html"] = s
		quality = append(quality, s)
	}

	if len(quality) == 0 {
		return round2(completeness)
	}
	return round2(mean([]float64{completeness, mean(quality)}))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
