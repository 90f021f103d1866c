// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"strings"
	"unicode"

	"github.com/pdiddy/research-agent/pkg/types"
)

// taskKeywords lists the keyword set per task type in priority order.
var taskKeywords = []struct {
	task     types.TaskType
	keywords []string
}{
	{types.TaskCode, []string{"code", "program", "function", "debug"}},
	{types.TaskReasoning, []string{"explain", "why", "how", "reason"}},
	{types.TaskFast, []string{"quick", "simple", "brief"}},
	{types.TaskCreative, []string{"story", "creative", "imagine"}},
}

// selection maps each task type to its preferred model name.
var selection = map[types.TaskType]string{
	types.TaskCode:      "llama",
	types.TaskReasoning: "llama",
	types.TaskGeneral:   "mistral",
	types.TaskFast:      "phi",
	types.TaskCreative:  "mistral",
}

// ClassifyTask assigns a task type from keywords in the query. Words are
// compared whole and lowercased; the first class in priority order with a
// match wins, and a query with no match is general.
func ClassifyTask(query string) types.TaskType {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	for _, tk := range taskKeywords {
		for _, kw := range tk.keywords {
			if words[kw] {
				return tk.task
			}
		}
	}
	return types.TaskGeneral
}

// PreferredModel returns the model name the selection table assigns to
// task. Unknown tasks use the general entry.
func PreferredModel(task types.TaskType) string {
	if name, ok := selection[task]; ok {
		return name
	}
	return selection[types.TaskGeneral]
}
