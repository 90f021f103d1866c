// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StructuredAnalysis is a fully parsed analysis returned by a model.
type StructuredAnalysis struct {
	KeyFindings     []string `json:"key_findings" yaml:"key_findings"`
	Trends          string   `json:"trends" yaml:"trends"`
	NotableItems    []string `json:"notable_items" yaml:"notable_items"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	Summary         string   `json:"summary" yaml:"summary"`
}

// RawTextAnalysis holds model output that could not be parsed into the
// structured shape.
type RawTextAnalysis struct {
	// Text is the complete model response.
	Text string `json:"text" yaml:"text"`
}

// rawSummaryLimit bounds the summary derived from raw text.
const rawSummaryLimit = 500

// Analysis is either a StructuredAnalysis or a RawTextAnalysis. Exactly one
// of the two pointers is set.
type Analysis struct {
	Structured *StructuredAnalysis `json:"structured,omitempty" yaml:"structured,omitempty"`
	Raw        *RawTextAnalysis    `json:"raw,omitempty" yaml:"raw,omitempty"`

	// Fallback is true when the analysis was built without a model call.
	Fallback bool `json:"fallback" yaml:"fallback"`

	// Model names the backend that produced the analysis, if any.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// IsRaw reports whether the analysis holds unparsed model text.
func (a Analysis) IsRaw() bool { return a.Structured == nil && a.Raw != nil }

// KeyFindings returns the findings, or nil for a raw analysis.
func (a Analysis) KeyFindings() []string {
	if a.Structured != nil {
		return a.Structured.KeyFindings
	}
	return nil
}

// Trends returns the trend narrative. For a raw analysis this is the whole text.
func (a Analysis) Trends() string {
	switch {
	case a.Structured != nil:
		return a.Structured.Trends
	case a.Raw != nil:
		return a.Raw.Text
	}
	return ""
}

// NotableItems returns the notable items, or nil for a raw analysis.
func (a Analysis) NotableItems() []string {
	if a.Structured != nil {
		return a.Structured.NotableItems
	}
	return nil
}

// Recommendations returns the recommendations, or nil for a raw analysis.
func (a Analysis) Recommendations() []string {
	if a.Structured != nil {
		return a.Structured.Recommendations
	}
	return nil
}

// Summary returns the summary. For a raw analysis it is the leading part of
// the text.
func (a Analysis) Summary() string {
	switch {
	case a.Structured != nil:
		return a.Structured.Summary
	case a.Raw != nil:
		r := []rune(a.Raw.Text)
		if len(r) > rawSummaryLimit {
			return string(r[:rawSummaryLimit])
		}
		return a.Raw.Text
	}
	return ""
}
