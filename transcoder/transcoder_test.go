package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImogeneOctaviap794/Toolify-code/codec"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func TestTranscodeRequestRoundTrip(t *testing.T) {
	tr := New(codec.NewDefaultRegistry())

	anthropicBody := []byte(`{
		"model": "claude-3-5-sonnet",
		"max_tokens": 512,
		"system": "be concise",
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	cases := []struct {
		name string
		dst  types.Format
	}{
		{"anthropic to openai", types.FormatOpenAI},
		{"anthropic to gemini", types.FormatGemini},
		{"anthropic to anthropic", types.FormatAnthropic},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := tr.Transcode(types.FormatAnthropic, c.dst, anthropicBody, true)
			require.NoError(t, err)
			assert.NotEmpty(t, out)

			req, err := tr.DecodeRequest(c.dst, out)
			require.NoError(t, err)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, types.RoleUser, req.Messages[0].Role)
			require.Len(t, req.Messages[0].Content, 1)
			assert.Equal(t, "hello", req.Messages[0].Content[0].Text)
			assert.Equal(t, "be concise", req.System)
		})
	}
}

func TestTranscodeUnknownFormat(t *testing.T) {
	tr := New(codec.Registry{})
	_, err := tr.Transcode(types.FormatOpenAI, types.FormatAnthropic, []byte(`{}`), true)
	require.Error(t, err)
}

func TestTranscodeToolCallRoundTrip(t *testing.T) {
	tr := New(codec.NewDefaultRegistry())

	openAIBody := []byte(`{
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": "what is the weather"}],
		"tools": [{
			"type": "function",
			"function": {"name": "get_weather", "description": "fetch weather", "parameters": {"type": "object"}}
		}]
	}`)

	out, err := tr.Transcode(types.FormatOpenAI, types.FormatGemini, openAIBody, true)
	require.NoError(t, err)

	req, err := tr.DecodeRequest(types.FormatGemini, out)
	require.NoError(t, err)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Name)
}

func TestTranscodeResponseWithToolUse(t *testing.T) {
	tr := New(codec.NewDefaultRegistry())

	resp := types.Response{
		ID:    "resp_1",
		Model: "m",
		Content: []types.ContentPart{
			{Kind: types.PartToolUse, ToolCallID: "call_abc", ToolName: "get_weather", ToolArgsJSON: `{"city":"nyc"}`},
		},
		FinishReason: types.FinishToolUse,
	}

	for _, dst := range []types.Format{types.FormatOpenAI, types.FormatAnthropic, types.FormatGemini} {
		body, err := tr.EncodeResponse(dst, resp)
		require.NoError(t, err)

		decoded, err := tr.DecodeResponse(dst, body)
		require.NoError(t, err)
		require.Len(t, decoded.Content, 1)
		assert.Equal(t, types.PartToolUse, decoded.Content[0].Kind)
		assert.Equal(t, "get_weather", decoded.Content[0].ToolName)
	}
}
