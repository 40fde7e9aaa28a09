package toolxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsToolCall(t *testing.T) {
	assert.True(t, ContainsToolCall("before <tool_call><name>x</name><arguments>{}</arguments></tool_call> after"))
	assert.False(t, ContainsToolCall("just plain text"))
}

func TestParseSingleToolCall(t *testing.T) {
	input := `Let me check that. <tool_call><name>get_weather</name><arguments>{"city":"nyc"}</arguments></tool_call>`
	result := Parse(input)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "get_weather", result.ToolCalls[0].Name)
	assert.Equal(t, `{"city":"nyc"}`, result.ToolCalls[0].ArgsJSON)
	assert.True(t, result.ToolCalls[0].ArgsValid)
	assert.NotContains(t, result.Text, "tool_call")
	assert.Contains(t, result.Text, "Let me check that.")
}

func TestParseMalformedArgumentsFallsBackToRawString(t *testing.T) {
	input := `<tool_call><name>f</name><arguments>not json at all</arguments></tool_call>`
	result := Parse(input)

	require.Len(t, result.ToolCalls, 1)
	assert.False(t, result.ToolCalls[0].ArgsValid)
	assert.Equal(t, "not json at all", result.ToolCalls[0].ArgsJSON)
}

// TestParsePassesThroughThinkBlocks is spec.md §4.3/§4.4 step 5: think
// blocks are not tool calls and are never scanned as one, but their
// text (tags included) reaches the client unchanged.
func TestParsePassesThroughThinkBlocks(t *testing.T) {
	input := `<think>internal reasoning here</think>The answer is 4.`
	result := Parse(input)

	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, input, result.Text)
}

// TestParseIgnoresToolCallSubstringInsideThinkBlock guards the
// think-block-safety invariant of spec.md §4.5 for the buffered parser:
// a <tool_call> substring written inside reasoning text must not be
// extracted as a real tool call.
func TestParseIgnoresToolCallSubstringInsideThinkBlock(t *testing.T) {
	input := `<think>I could write <tool_call><name>x</name><arguments>{}</arguments></tool_call> here but won't</think>plain reply`
	result := Parse(input)

	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, input, result.Text)
}

func TestParseMultipleToolCalls(t *testing.T) {
	input := `<tool_call><name>a</name><arguments>{}</arguments></tool_call>` +
		`<tool_call><name>b</name><arguments>{}</arguments></tool_call>`
	result := Parse(input)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "a", result.ToolCalls[0].Name)
	assert.Equal(t, "b", result.ToolCalls[1].Name)
}
