package chat

import (
	"strings"
	"testing"
)

func TestApplyUsageFallbackEstimatesFromChars(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		// ceil(len/4), not word count
		{name: "three words seventeen chars", content: "hello world there", want: 5},
		{name: "single long token", content: strings.Repeat("x", 40), want: 10},
		{name: "one char rounds up", content: "a", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &StreamResult{Content: tt.content, Usage: TokenUsage{PromptTokens: 7}}
			applyUsageFallback(result)

			if result.Usage.CompletionTokens != tt.want {
				t.Errorf("completion tokens = %d, want %d", result.Usage.CompletionTokens, tt.want)
			}
			if result.Usage.TotalTokens != 7+tt.want {
				t.Errorf("total tokens = %d, want %d", result.Usage.TotalTokens, 7+tt.want)
			}
		})
	}
}

func TestApplyUsageFallbackKeepsProviderUsage(t *testing.T) {
	result := &StreamResult{
		Content: "a reply long enough that an estimate would differ",
		Usage:   TokenUsage{PromptTokens: 10, CompletionTokens: 99, TotalTokens: 109},
	}
	applyUsageFallback(result)

	if result.Usage.CompletionTokens != 99 || result.Usage.TotalTokens != 109 {
		t.Errorf("provider usage overridden: %+v", result.Usage)
	}
}

func TestApplyUsageFallbackEmptyContent(t *testing.T) {
	result := &StreamResult{Usage: TokenUsage{PromptTokens: 4}}
	applyUsageFallback(result)

	if result.Usage.CompletionTokens != 0 {
		t.Errorf("empty stream gained tokens: %d", result.Usage.CompletionTokens)
	}
}
