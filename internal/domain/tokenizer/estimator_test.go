package tokenizer

import (
	"strings"
	"testing"
)

func TestHeuristicEstimate(t *testing.T) {
	est := NewHeuristicEstimator()

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "empty", content: "", want: 0},
		{name: "whitespace only", content: "   \n\t ", want: 0},
		{name: "one char rounds up", content: "a", want: 1},
		{name: "four chars one token", content: "abcd", want: 1},
		{name: "five chars two tokens", content: "abcde", want: 2},
		{name: "trims before counting", content: "  abcd  ", want: 1},
		{name: "forty chars", content: strings.Repeat("x", 40), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := est.Estimate(tt.content); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}
