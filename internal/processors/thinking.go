// Package processors holds the small, pure, I/O-free transformations
// composed by the dialect transformers (spec §4.2): thinking, tools,
// multimodal, generation-config, and Claude's streaming framing helper.
package processors

import (
	"math"
	"strings"

	"github.com/relaymesh/geminigate/internal/gemini"
)

const (
	minThinkingBudget = 256
	defaultThinkingBudgetFraction = 0.25
	maxThinkingBudgetFraction     = 0.5
	maxDerivedThinkingFraction    = 0.33
)

// ThinkingRequest is the Claude-side `thinking` config (spec §3).
type ThinkingRequest struct {
	Enabled bool
	Budget  *int64
}

// ModelSupportsThinking reports whether the upstream model accepts a
// thinkingConfig at all (spec §4.2: "currently the non-2.5 family" lacks
// it). Exported so transformers can decide whether to omit the field
// entirely, distinct from the processor's own "off" representation.
func ModelSupportsThinking(upstreamModel string) bool {
	return strings.Contains(upstreamModel, "2.5")
}

// Thinking computes the Gemini thinkingConfig for a request. Per spec §4.2
// this always returns a concrete config, even for an unsupported model
// (`{includeThoughts:false}`); callers that need to omit the field entirely
// for unsupported models (spec §4.3 Claude transformer) should check
// ModelSupportsThinking first.
func Thinking(req *ThinkingRequest, upstreamModel string, maxOutputTokens int64) *gemini.ThinkingConfig {
	if !ModelSupportsThinking(upstreamModel) {
		return &gemini.ThinkingConfig{IncludeThoughts: false}
	}

	if req == nil || !req.Enabled {
		budget := int64(0)
		return &gemini.ThinkingConfig{IncludeThoughts: false, ThinkingBudget: &budget}
	}

	budget := deriveThinkingBudget(req.Budget, maxOutputTokens)

	return &gemini.ThinkingConfig{IncludeThoughts: true, ThinkingBudget: &budget}
}

func deriveThinkingBudget(requested *int64, maxOutputTokens int64) int64 {
	if requested != nil {
		return clampInt64(*requested, minThinkingBudget, int64(math.Floor(float64(maxOutputTokens)*maxThinkingBudgetFraction)))
	}

	derived := int64(math.Floor(float64(maxOutputTokens) * defaultThinkingBudgetFraction))

	return clampInt64(derived, minThinkingBudget, int64(math.Floor(float64(maxOutputTokens)*maxDerivedThinkingFraction)))
}

func clampInt64(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
