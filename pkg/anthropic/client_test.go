package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "Semen "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "50kg"},
	}}
	assert.Equal(t, "Semen 50kg", resp.Text())
}

func TestEstimateCostKnownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)
}

func TestEstimateCostUnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000}
	assert.Zero(t, usage.EstimateCost("not-a-model"))
}

func TestEstimateCostCacheReads(t *testing.T) {
	usage := TokenUsage{CacheReadInputTokens: 1_000_000}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.08, cost, 1e-9)
}
