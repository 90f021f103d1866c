// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"github.com/pdiddy/research-agent/internal/evaluate"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Refiner adjusts a run's configuration before it loops back to planning.
// It must not change the query.
type Refiner func(state *types.WorkflowState)

// sparseItems is the result count below which a narrow window is widened.
const sparseItems = 10

// DefaultRefiner broadens collection for a low-scoring run. Thin coverage
// promotes the depth one tier and widens the focus to all sources; a sparse
// result set from a window narrower than a year widens the window one step.
// The changes are recorded in metadata under "refinement".
func DefaultRefiner(state *types.WorkflowState) {
	changes := map[string]string{}

	if state.Quality != nil && state.Quality.Dimensions[evaluate.DimComprehensiveness] < 0.7 {
		if d := promoteDepth(state.Config.Depth); d != state.Config.Depth {
			changes["depth"] = string(state.Config.Depth) + " -> " + string(d)
			state.Config.Depth = d
		}
		if state.Config.Focus != types.FocusAll {
			changes["focus"] = string(state.Config.Focus) + " -> " + string(types.FocusAll)
			state.Config.Focus = types.FocusAll
		}
	}

	if days := state.Config.Window.Days(); days > 0 && days < types.WindowYear.Days() && state.ResultSet.Total() < sparseItems {
		w := widenWindow(state.Config.Window)
		changes["time_range"] = string(state.Config.Window) + " -> " + string(w)
		state.Config.Window = w
	}

	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}
	state.Metadata["refinement"] = map[string]any{
		"round":   state.RefinementCount,
		"changes": changes,
	}
}

func promoteDepth(d types.Depth) types.Depth {
	switch d {
	case types.DepthQuick:
		return types.DepthStandard
	case types.DepthStandard:
		return types.DepthDeep
	default:
		return types.DepthDeep
	}
}

func widenWindow(w types.Window) types.Window {
	switch w {
	case types.WindowWeek:
		return types.WindowMonth
	case types.WindowMonth:
		return types.WindowYear
	default:
		return w
	}
}
