// Package tokenizer abstracts token counting so the character heuristic can be
// swapped for an exact tokenizer without touching call sites.
package tokenizer

import "strings"

// Estimator estimates the token count of a piece of content.
type Estimator interface {
	Estimate(content string) int
}

// HeuristicEstimator approximates tokens as ceil(len(trimmed)/4). The same
// estimate is used at message creation, editing and aggregation so stored
// counters never drift from recomputed sums.
type HeuristicEstimator struct{}

// NewHeuristicEstimator returns the default character-count estimator.
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{}
}

func (HeuristicEstimator) Estimate(content string) int {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0
	}
	return (len(trimmed) + 3) / 4
}
