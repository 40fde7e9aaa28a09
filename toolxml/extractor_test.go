package toolxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func collectText(deltas []types.Delta) string {
	var s string
	for _, d := range deltas {
		if d.Kind == types.DeltaText {
			s += d.Text
		}
	}
	return s
}

// TestPlainTextPassesThroughByteForByte is the invariant property of
// spec.md §4.5: text containing no trigger substring passes through
// unchanged regardless of how it is chunked.
func TestPlainTextPassesThroughByteForByte(t *testing.T) {
	e := NewExtractor()
	input := "the quick brown fox jumps over the lazy dog"

	var got string
	for i := 0; i < len(input); i++ {
		for _, d := range e.Feed([]byte{input[i]}) {
			if d.Kind == types.DeltaText {
				got += d.Text
			}
		}
	}
	for _, d := range e.Flush() {
		if d.Kind == types.DeltaText {
			got += d.Text
		}
	}

	assert.Equal(t, input, got)
}

func TestToolCallSplitAcrossArbitraryChunkBoundaries(t *testing.T) {
	full := `before <tool_call><name>get_weather</name><arguments>{"city":"nyc"}</arguments></tool_call> after`

	// Feed one byte at a time: the hardest possible chunk boundary case.
	e := NewExtractor()
	var deltas []types.Delta
	for i := 0; i < len(full); i++ {
		deltas = append(deltas, e.Feed([]byte{full[i]})...)
	}
	deltas = append(deltas, e.Flush()...)

	var start *types.Delta
	var args string
	var end, gotStartBeforeArgs bool
	seenArgs := false
	for i := range deltas {
		d := deltas[i]
		switch d.Kind {
		case types.DeltaToolCallStart:
			start = &deltas[i]
			gotStartBeforeArgs = !seenArgs
		case types.DeltaToolCallArguments:
			args += d.ArgsChunk
			seenArgs = true
		case types.DeltaToolCallEnd:
			end = true
		}
	}

	require.NotNil(t, start)
	assert.Equal(t, "get_weather", start.ToolName)
	assert.True(t, gotStartBeforeArgs)
	assert.Equal(t, `{"city":"nyc"}`, args)
	assert.True(t, end)

	text := collectText(deltas)
	assert.Equal(t, "before  after", text)
}

func TestToolCallInOneChunk(t *testing.T) {
	e := NewExtractor()
	full := `<tool_call><name>ping</name><arguments>{}</arguments></tool_call>`
	deltas := e.Feed([]byte(full))
	deltas = append(deltas, e.Flush()...)

	var names []string
	for _, d := range deltas {
		if d.Kind == types.DeltaToolCallStart {
			names = append(names, d.ToolName)
		}
	}
	require.Len(t, names, 1)
	assert.Equal(t, "ping", names[0])
}

// TestThinkBlockContainingToolCallSubstringDoesNotTrigger is the
// think-block-safety invariant of spec.md §4.5: a <tool_call>
// substring inside a think block must never trigger extraction, but
// the think block's own text (tags included) still reaches the client
// verbatim as assistant text (spec.md §4.3/§4.4 step 5).
func TestThinkBlockContainingToolCallSubstringDoesNotTrigger(t *testing.T) {
	e := NewExtractor()
	input := `<think>I could write <tool_call> here but won't</think>plain reply`

	var deltas []types.Delta
	for i := 0; i < len(input); i++ {
		deltas = append(deltas, e.Feed([]byte{input[i]})...)
	}
	deltas = append(deltas, e.Flush()...)

	for _, d := range deltas {
		assert.NotEqual(t, types.DeltaToolCallStart, d.Kind, "tool_call substring inside a think block must not trigger extraction")
	}
	assert.Equal(t, input, collectText(deltas))
}

func TestTwoToolCallsGetDistinctIndices(t *testing.T) {
	e := NewExtractor()
	input := `<tool_call><name>a</name><arguments>{}</arguments></tool_call>` +
		`<tool_call><name>b</name><arguments>{}</arguments></tool_call>`
	deltas := e.Feed([]byte(input))
	deltas = append(deltas, e.Flush()...)

	var indices []int
	for _, d := range deltas {
		if d.Kind == types.DeltaToolCallStart {
			indices = append(indices, d.Index)
		}
	}
	require.Len(t, indices, 2)
	assert.Equal(t, 0, indices[0])
	assert.Equal(t, 1, indices[1])
}

func TestFalseAlarmAngleBracketPassesThrough(t *testing.T) {
	e := NewExtractor()
	input := "a < b and c > d, not a tag"
	var got string
	deltas := e.Feed([]byte(input))
	deltas = append(deltas, e.Flush()...)
	got = collectText(deltas)
	assert.Equal(t, input, got)
}
