package promptsynth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

var sampleTools = []types.ToolDeclaration{
	{Name: "get_weather", Description: "fetch current weather", SchemaJSON: `{"type":"object","properties":{"city":{"type":"string"}}}`},
	{Name: "get_time", Description: "fetch current time", SchemaJSON: `{}`},
}

func TestSynthesizeEmptyToolsReturnsEmpty(t *testing.T) {
	assert.Empty(t, Synthesize(nil, VariantDetailed))
}

func TestSynthesizeDetailedContainsGrammarAndTools(t *testing.T) {
	out := Synthesize(sampleTools, VariantDetailed)
	assert.Contains(t, out, TagToolCallOpen)
	assert.Contains(t, out, TagNameOpen)
	assert.Contains(t, out, TagArgsOpen)
	assert.Contains(t, out, "get_weather")
	assert.Contains(t, out, "get_time")
}

func TestSynthesizeOptimizedIsMuchShorterThanDetailed(t *testing.T) {
	detailed := Synthesize(sampleTools, VariantDetailed)
	optimized := Synthesize(sampleTools, VariantOptimized)

	assert.NotEmpty(t, optimized)
	assert.Less(t, len(optimized), len(detailed)/2)
}

func TestSynthesizeOptimizedListsToolNames(t *testing.T) {
	out := Synthesize(sampleTools, VariantOptimized)
	assert.Contains(t, out, "get_weather")
	assert.Contains(t, out, "get_time")
}
