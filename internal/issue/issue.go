// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package issue turns a GitHub issue into a research request: the query
// comes from the title and the run configuration from YAML front matter in
// the body.
package issue

import (
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/pkg/types"
)

// frontMatter is the optional YAML block at the top of an issue body:
//
//	---
//	depth: deep
//	focus: papers
//	time_range: year
//	---
type frontMatter struct {
	Depth          string `yaml:"depth"`
	Focus          string `yaml:"focus"`
	TimeRange      string `yaml:"time_range"`
	SkipEvaluation bool   `yaml:"skip_evaluation"`
}

// DefaultConfig is the run configuration used when a body sets nothing.
func DefaultConfig() types.RunConfig {
	return types.RunConfig{
		Depth:  types.DepthStandard,
		Focus:  types.FocusAll,
		Window: types.WindowMonth,
	}
}

// ParseConfig reads the run configuration from an issue body. Missing or
// malformed front matter yields the defaults; unknown values map to the
// defaults of their field.
func ParseConfig(body string) types.RunConfig {
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "---") {
		return cfg
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return cfg
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		zap.L().Warn("ignoring malformed issue front matter", zap.Error(err))
		return cfg
	}
	if fm.Depth != "" {
		cfg.Depth = types.ParseDepth(fm.Depth)
	}
	if fm.Focus != "" {
		cfg.Focus = types.ParseFocus(fm.Focus)
	}
	if fm.TimeRange != "" {
		cfg.Window = types.ParseWindow(fm.TimeRange)
	}
	cfg.SkipEvaluation = fm.SkipEvaluation

	zap.L().Info("parsed issue config",
		zap.String("depth", string(cfg.Depth)),
		zap.String("focus", string(cfg.Focus)),
		zap.String("time_range", string(cfg.Window)),
	)
	return cfg
}

// titlePrefixes are stripped from issue titles, first match wins.
var titlePrefixes = []string{"Research:", "research:", "Research -", "research -"}

// ExtractQuery returns the research query from an issue title.
func ExtractQuery(title string) string {
	for _, p := range titlePrefixes {
		if strings.HasPrefix(title, p) {
			return strings.TrimSpace(title[len(p):])
		}
	}
	return strings.TrimSpace(title)
}
