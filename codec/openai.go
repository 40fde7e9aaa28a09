package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Wire-level OpenAI Chat Completions types. These mirror the teacher's
// types/openai.go shapes; kept private to this file since nothing
// outside the codec layer should ever touch a wire-format struct.

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  interface{}     `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    interface{}      `json:"content"` // string or []openAIContentPart
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openAIToolCallFunction `json:"function"`
	Index    *int                   `json:"index,omitempty"`
}

type openAIToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason *string       `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
}

type openAIStreamChoice struct {
	Index        int              `json:"index"`
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAICodec struct{}

// NewOpenAICodec returns the OpenAI Chat Completions Codec.
func NewOpenAICodec() Codec { return openAICodec{} }

func (openAICodec) Format() types.Format { return types.FormatOpenAI }

func (openAICodec) DecodeRequest(body []byte) (types.Request, error) {
	var wire openAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Request{}, fmt.Errorf("openai: decode request: %w", err)
	}

	req := types.Request{
		Model:       wire.Model,
		MaxTokens:   wire.MaxTokens,
		Temperature: wire.Temperature,
		TopP:        wire.TopP,
		Stop:        wire.Stop,
		Stream:      wire.Stream,
	}

	for _, m := range wire.Messages {
		if m.Role == "system" {
			if s, ok := m.Content.(string); ok {
				req.System = joinSystem(req.System, s)
				continue
			}
		}
		req.Messages = append(req.Messages, decodeOpenAIMessage(m))
	}

	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, types.ToolDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			SchemaJSON:  string(t.Function.Parameters),
		})
	}

	req.ToolChoice = decodeOpenAIToolChoice(wire.ToolChoice)
	return req, nil
}

func joinSystem(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "\n\n" + add
}

func decodeOpenAIToolChoice(raw interface{}) types.ToolChoice {
	switch v := raw.(type) {
	case string:
		switch v {
		case "none":
			return types.ToolChoice{Mode: types.ToolChoiceNone}
		case "required":
			return types.ToolChoice{Mode: types.ToolChoiceRequired}
		default:
			return types.ToolChoice{Mode: types.ToolChoiceAuto}
		}
	case map[string]interface{}:
		if fn, ok := v["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok {
				return types.ToolChoice{Mode: types.ToolChoiceSpecific, Name: name}
			}
		}
	}
	return types.ToolChoice{Mode: types.ToolChoiceAuto}
}

func decodeOpenAIMessage(m openAIMessage) types.Message {
	role := types.RoleUser
	switch m.Role {
	case "assistant":
		role = types.RoleAssistant
	case "tool":
		role = types.RoleTool
	case "system":
		role = types.RoleSystem
	}

	msg := types.Message{Role: role}

	switch c := m.Content.(type) {
	case string:
		if c != "" {
			msg.Content = append(msg.Content, types.ContentPart{Kind: types.PartText, Text: c})
		}
	case []interface{}:
		for _, raw := range c {
			part, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch part["type"] {
			case "text":
				if s, ok := part["text"].(string); ok {
					msg.Content = append(msg.Content, types.ContentPart{Kind: types.PartText, Text: s})
				}
			case "image_url":
				if img, ok := part["image_url"].(map[string]interface{}); ok {
					if url, ok := img["url"].(string); ok {
						mime, data := splitDataURL(url)
						msg.Content = append(msg.Content, types.ContentPart{
							Kind: types.PartImage, ImageMIMEType: mime, ImageData: data,
						})
					}
				}
			}
		}
	}

	if m.Role == "tool" {
		text := ""
		if s, ok := m.Content.(string); ok {
			text = s
		}
		msg.Content = []types.ContentPart{{
			Kind:            types.PartToolResult,
			ToolResultForID: m.ToolCallID,
			ToolResultText:  text,
		}}
	}

	for _, tc := range m.ToolCalls {
		msg.Content = append(msg.Content, types.ContentPart{
			Kind:         types.PartToolUse,
			ToolCallID:   tc.ID,
			ToolName:     tc.Function.Name,
			ToolArgsJSON: tc.Function.Arguments,
		})
	}

	return msg
}

func splitDataURL(url string) (mime, data string) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", url
	}
	rest := url[len(prefix):]
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", url
	}
	return rest[:idx], rest[idx+len(";base64,"):]
}

func (openAICodec) EncodeRequest(req types.Request) ([]byte, error) {
	wire := openAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}

	if req.System != "" {
		wire.Messages = append(wire.Messages, openAIMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, encodeOpenAIMessage(m))
	}

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(nonEmptyJSON(t.SchemaJSON)),
			},
		})
	}

	wire.ToolChoice = encodeOpenAIToolChoice(req.ToolChoice)

	return json.Marshal(wire)
}

func nonEmptyJSON(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

func encodeOpenAIToolChoice(tc types.ToolChoice) interface{} {
	switch tc.Mode {
	case types.ToolChoiceNone:
		return "none"
	case types.ToolChoiceRequired:
		return "required"
	case types.ToolChoiceSpecific:
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": tc.Name},
		}
	default:
		return nil
	}
}

func encodeOpenAIMessage(m types.Message) openAIMessage {
	role := "user"
	switch m.Role {
	case types.RoleAssistant:
		role = "assistant"
	case types.RoleTool:
		role = "tool"
	case types.RoleSystem:
		role = "system"
	}

	wire := openAIMessage{Role: role}

	for _, part := range m.Content {
		switch part.Kind {
		case types.PartText:
			if s, ok := wire.Content.(string); ok {
				wire.Content = s + part.Text
			} else if wire.Content == nil {
				wire.Content = part.Text
			}
		case types.PartToolUse:
			wire.ToolCalls = append(wire.ToolCalls, openAIToolCall{
				ID:   part.ToolCallID,
				Type: "function",
				Function: openAIToolCallFunction{
					Name:      part.ToolName,
					Arguments: part.ToolArgsJSON,
				},
			})
		case types.PartToolResult:
			wire.Role = "tool"
			wire.ToolCallID = part.ToolResultForID
			wire.Content = part.ToolResultText
		case types.PartImage:
			wire.Content = []openAIContentPart{{
				Type:     "image_url",
				ImageURL: &openAIImageURL{URL: "data:" + part.ImageMIMEType + ";base64," + part.ImageData},
			}}
		}
	}

	return wire
}

func (openAICodec) DecodeResponse(body []byte) (types.Response, error) {
	var wire openAIResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Response{}, fmt.Errorf("openai: decode response: %w", err)
	}

	resp := types.Response{
		ID:    wire.ID,
		Model: wire.Model,
		Usage: types.Usage{InputTokens: wire.Usage.PromptTokens, OutputTokens: wire.Usage.CompletionTokens},
	}

	if len(wire.Choices) == 0 {
		return resp, nil
	}
	choice := wire.Choices[0]

	if s, ok := choice.Message.Content.(string); ok && s != "" {
		resp.Content = append(resp.Content, types.ContentPart{Kind: types.PartText, Text: s})
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.Content = append(resp.Content, types.ContentPart{
			Kind: types.PartToolUse, ToolCallID: tc.ID, ToolName: tc.Function.Name, ToolArgsJSON: tc.Function.Arguments,
		})
	}

	resp.FinishReason = mapOpenAIFinishReason(choice.FinishReason)
	return resp, nil
}

func mapOpenAIFinishReason(r *string) types.FinishReason {
	if r == nil {
		return types.FinishStop
	}
	switch *r {
	case "length":
		return types.FinishLength
	case "tool_calls":
		return types.FinishToolUse
	default:
		return types.FinishStop
	}
}

func (openAICodec) EncodeResponse(resp types.Response) ([]byte, error) {
	wire := openAIResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Usage: openAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	msg := openAIMessage{Role: "assistant"}
	var text strings.Builder
	for _, part := range resp.Content {
		switch part.Kind {
		case types.PartText:
			text.WriteString(part.Text)
		case types.PartToolUse:
			msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
				ID:   part.ToolCallID,
				Type: "function",
				Function: openAIToolCallFunction{
					Name:      part.ToolName,
					Arguments: part.ToolArgsJSON,
				},
			})
		}
	}
	if text.Len() > 0 {
		msg.Content = text.String()
	}

	finish := encodeOpenAIFinishReason(resp.FinishReason)
	wire.Choices = []openAIChoice{{Index: 0, Message: msg, FinishReason: &finish}}

	return json.Marshal(wire)
}

func encodeOpenAIFinishReason(f types.FinishReason) string {
	switch f {
	case types.FinishLength:
		return "length"
	case types.FinishToolUse:
		return "tool_calls"
	default:
		return "stop"
	}
}

// streaming

type openAIStreamEncoder struct {
	w           io.Writer
	sentRole    bool
	err         error
}

func (openAICodec) NewStreamEncoder(w io.Writer) StreamEncoder {
	return &openAIStreamEncoder{w: w}
}

func (e *openAIStreamEncoder) Encode(d types.Delta) error {
	if e.err != nil {
		return e.err
	}

	chunk := openAIStreamChunk{Object: "chat.completion.chunk"}
	choice := openAIStreamChoice{Index: 0}

	if !e.sentRole {
		choice.Delta.Role = "assistant"
		e.sentRole = true
	}

	switch d.Kind {
	case types.DeltaText:
		choice.Delta.Content = d.Text
	case types.DeltaToolCallStart:
		idx := d.Index
		choice.Delta.ToolCalls = []openAIToolCall{{
			ID: d.ToolCallID, Type: "function", Index: &idx,
			Function: openAIToolCallFunction{Name: d.ToolName},
		}}
	case types.DeltaToolCallArguments:
		idx := d.Index
		choice.Delta.ToolCalls = []openAIToolCall{{
			Index:    &idx,
			Function: openAIToolCallFunction{Arguments: d.ArgsChunk},
		}}
	case types.DeltaToolCallEnd:
		return nil // OpenAI needs no explicit end-of-call event
	case types.DeltaDone:
		finish := encodeOpenAIFinishReason(d.FinishReason)
		choice.FinishReason = &finish
	}

	chunk.Choices = []openAIStreamChoice{choice}
	payload, err := json.Marshal(chunk)
	if err != nil {
		e.err = err
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		e.err = err
		return err
	}
	if d.Kind == types.DeltaDone {
		_, err = fmt.Fprint(e.w, "data: [DONE]\n\n")
		e.err = err
		return err
	}
	return nil
}

type openAIStreamDecoder struct {
	scanner  *bufio.Scanner
	model    string
	sentIdx  map[int]bool
	doneSent bool
}

func (openAICodec) NewStreamDecoder(r io.Reader) StreamDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &openAIStreamDecoder{scanner: scanner, sentIdx: make(map[int]bool)}
}

func (d *openAIStreamDecoder) Next() ([]types.Delta, error) {
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			if d.doneSent {
				return nil, io.EOF
			}
			return []types.Delta{{Kind: types.DeltaDone, FinishReason: types.FinishStop}}, io.EOF
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		var out []types.Delta
		if choice.Delta.Content != "" {
			out = append(out, types.Delta{Kind: types.DeltaText, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if tc.Function.Name != "" && !d.sentIdx[idx] {
				d.sentIdx[idx] = true
				out = append(out, types.Delta{
					Kind: types.DeltaToolCallStart, Index: idx, ToolCallID: tc.ID, ToolName: tc.Function.Name,
				})
			}
			if tc.Function.Arguments != "" {
				out = append(out, types.Delta{Kind: types.DeltaToolCallArguments, Index: idx, ArgsChunk: tc.Function.Arguments})
			}
		}
		if choice.FinishReason != nil {
			out = append(out, types.Delta{Kind: types.DeltaDone, FinishReason: mapOpenAIFinishReason(choice.FinishReason)})
			d.doneSent = true
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
