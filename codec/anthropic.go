package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Wire-level Anthropic Messages types, grounded on the teacher's
// types/anthropic.go shapes and extended with streaming event types
// (the teacher's handler.go assembled SSE events ad hoc; this codec
// gives them named wire types like the rest of the codec package).

type anthropicRequest struct {
	Model      string             `json:"model"`
	Messages   []anthropicMessage `json:"messages"`
	System     interface{}        `json:"system,omitempty"` // string or []anthropicSystemBlock
	Tools      []anthropicTool    `json:"tools,omitempty"`
	ToolChoice interface{}        `json:"tool_choice,omitempty"`
	MaxTokens  int                `json:"max_tokens"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream     bool               `json:"stream,omitempty"`
	Thinking   *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type anthropicSystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContentBlock
}

type anthropicContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   interface{}            `json:"content,omitempty"` // tool_result content
	IsError   bool                   `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	InputSchema json.RawMessage     `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicCodec struct{}

// NewAnthropicCodec returns the Anthropic Messages Codec.
func NewAnthropicCodec() Codec { return anthropicCodec{} }

func (anthropicCodec) Format() types.Format { return types.FormatAnthropic }

func (anthropicCodec) DecodeRequest(body []byte) (types.Request, error) {
	var wire anthropicRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Request{}, fmt.Errorf("anthropic: decode request: %w", err)
	}

	req := types.Request{
		Model:       wire.Model,
		MaxTokens:   wire.MaxTokens,
		Temperature: wire.Temperature,
		TopP:        wire.TopP,
		Stop:        wire.StopSequences,
		Stream:      wire.Stream,
	}

	switch sys := wire.System.(type) {
	case string:
		req.System = sys
	case []interface{}:
		var b strings.Builder
		for _, raw := range sys {
			if block, ok := raw.(map[string]interface{}); ok {
				if text, ok := block["text"].(string); ok {
					if b.Len() > 0 {
						b.WriteString("\n\n")
					}
					b.WriteString(text)
				}
			}
		}
		req.System = b.String()
	}

	if wire.Thinking != nil {
		req.ReasoningEffort = types.BudgetToEffort(wire.Thinking.BudgetTokens)
	}

	for _, m := range wire.Messages {
		req.Messages = append(req.Messages, decodeAnthropicMessage(m))
	}

	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, types.ToolDeclaration{
			Name:        t.Name,
			Description: t.Description,
			SchemaJSON:  string(t.InputSchema),
		})
	}

	req.ToolChoice = decodeAnthropicToolChoice(wire.ToolChoice)
	return req, nil
}

func decodeAnthropicToolChoice(raw interface{}) types.ToolChoice {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return types.ToolChoice{Mode: types.ToolChoiceAuto}
	}
	switch m["type"] {
	case "none":
		return types.ToolChoice{Mode: types.ToolChoiceNone}
	case "any":
		return types.ToolChoice{Mode: types.ToolChoiceRequired}
	case "tool":
		if name, ok := m["name"].(string); ok {
			return types.ToolChoice{Mode: types.ToolChoiceSpecific, Name: name}
		}
	}
	return types.ToolChoice{Mode: types.ToolChoiceAuto}
}

func decodeAnthropicMessage(m anthropicMessage) types.Message {
	role := types.RoleUser
	if m.Role == "assistant" {
		role = types.RoleAssistant
	}
	msg := types.Message{Role: role}

	switch c := m.Content.(type) {
	case string:
		if c != "" {
			msg.Content = append(msg.Content, types.ContentPart{Kind: types.PartText, Text: c})
		}
	case []interface{}:
		for _, raw := range c {
			block, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				if s, ok := block["text"].(string); ok {
					msg.Content = append(msg.Content, types.ContentPart{Kind: types.PartText, Text: s})
				}
			case "tool_use":
				argsJSON := "{}"
				if input, ok := block["input"]; ok {
					if b, err := json.Marshal(input); err == nil {
						argsJSON = string(b)
					}
				}
				msg.Content = append(msg.Content, types.ContentPart{
					Kind:         types.PartToolUse,
					ToolCallID:   str(block["id"]),
					ToolName:     str(block["name"]),
					ToolArgsJSON: argsJSON,
				})
			case "tool_result":
				text := ""
				switch v := block["content"].(type) {
				case string:
					text = v
				default:
					if b, err := json.Marshal(v); err == nil {
						text = string(b)
					}
				}
				isErr, _ := block["is_error"].(bool)
				msg.Content = append(msg.Content, types.ContentPart{
					Kind:            types.PartToolResult,
					ToolResultForID: str(block["tool_use_id"]),
					ToolResultText:  text,
					ToolResultError: isErr,
				})
			case "image":
				if src, ok := block["source"].(map[string]interface{}); ok {
					msg.Content = append(msg.Content, types.ContentPart{
						Kind:          types.PartImage,
						ImageMIMEType: str(src["media_type"]),
						ImageData:     str(src["data"]),
					})
				}
			}
		}
	}
	return msg
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func (anthropicCodec) EncodeRequest(req types.Request) ([]byte, error) {
	wire := anthropicRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
		System:        req.System,
	}

	if budget := types.EffortToBudget(req.ReasoningEffort); budget > 0 {
		wire.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: budget}
	}

	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, encodeAnthropicMessage(m))
	}

	for _, t := range req.Tools {
		schema := json.RawMessage(nonEmptyJSON(t.SchemaJSON))
		wire.Tools = append(wire.Tools, anthropicTool{
			Name: t.Name, Description: t.Description, InputSchema: schema,
		})
	}

	wire.ToolChoice = encodeAnthropicToolChoice(req.ToolChoice)

	return json.Marshal(wire)
}

func encodeAnthropicToolChoice(tc types.ToolChoice) interface{} {
	switch tc.Mode {
	case types.ToolChoiceNone:
		return map[string]string{"type": "none"}
	case types.ToolChoiceRequired:
		return map[string]string{"type": "any"}
	case types.ToolChoiceSpecific:
		return map[string]string{"type": "tool", "name": tc.Name}
	default:
		return nil
	}
}

func encodeAnthropicMessage(m types.Message) anthropicMessage {
	role := "user"
	if m.Role == types.RoleAssistant {
		role = "assistant"
	}
	// Anthropic has no "tool" or "system" role at the message level;
	// tool results are encoded as a user-role tool_result block.
	var blocks []anthropicContentBlock
	for _, part := range m.Content {
		switch part.Kind {
		case types.PartText:
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: part.Text})
		case types.PartToolUse:
			var input map[string]interface{}
			_ = json.Unmarshal([]byte(nonEmptyJSON(part.ToolArgsJSON)), &input)
			blocks = append(blocks, anthropicContentBlock{
				Type: "tool_use", ID: part.ToolCallID, Name: part.ToolName, Input: input,
			})
		case types.PartToolResult:
			role = "user"
			blocks = append(blocks, anthropicContentBlock{
				Type: "tool_result", ToolUseID: part.ToolResultForID,
				Content: part.ToolResultText, IsError: part.ToolResultError,
			})
		case types.PartImage:
			blocks = append(blocks, anthropicContentBlock{
				Type: "image",
				Content: map[string]interface{}{
					"type": "base64", "media_type": part.ImageMIMEType, "data": part.ImageData,
				},
			})
		}
	}

	if len(blocks) == 1 && blocks[0].Type == "text" {
		return anthropicMessage{Role: role, Content: blocks[0].Text}
	}
	return anthropicMessage{Role: role, Content: blocks}
}

func (anthropicCodec) DecodeResponse(body []byte) (types.Response, error) {
	var wire anthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Response{}, fmt.Errorf("anthropic: decode response: %w", err)
	}

	resp := types.Response{
		ID:    wire.ID,
		Model: wire.Model,
		Usage: types.Usage{InputTokens: wire.Usage.InputTokens, OutputTokens: wire.Usage.OutputTokens},
	}

	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, types.ContentPart{Kind: types.PartText, Text: block.Text})
		case "tool_use":
			argsJSON := "{}"
			if b, err := json.Marshal(block.Input); err == nil {
				argsJSON = string(b)
			}
			resp.Content = append(resp.Content, types.ContentPart{
				Kind: types.PartToolUse, ToolCallID: block.ID, ToolName: block.Name, ToolArgsJSON: argsJSON,
			})
		}
	}

	resp.FinishReason = mapAnthropicFinishReason(wire.StopReason)
	return resp, nil
}

func mapAnthropicFinishReason(reason string) types.FinishReason {
	switch reason {
	case "max_tokens":
		return types.FinishLength
	case "tool_use":
		return types.FinishToolUse
	default:
		return types.FinishStop
	}
}

func (anthropicCodec) EncodeResponse(resp types.Response) ([]byte, error) {
	wire := anthropicResponse{
		ID:    resp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: resp.Model,
		Usage: anthropicUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}

	for _, part := range resp.Content {
		switch part.Kind {
		case types.PartText:
			wire.Content = append(wire.Content, anthropicContentBlock{Type: "text", Text: part.Text})
		case types.PartToolUse:
			var input map[string]interface{}
			_ = json.Unmarshal([]byte(nonEmptyJSON(part.ToolArgsJSON)), &input)
			wire.Content = append(wire.Content, anthropicContentBlock{
				Type: "tool_use", ID: part.ToolCallID, Name: part.ToolName, Input: input,
			})
		}
	}

	wire.StopReason = encodeAnthropicFinishReason(resp.FinishReason)
	return json.Marshal(wire)
}

func encodeAnthropicFinishReason(f types.FinishReason) string {
	switch f {
	case types.FinishLength:
		return "max_tokens"
	case types.FinishToolUse:
		return "tool_use"
	default:
		return "end_turn"
	}
}

// streaming

type anthropicStreamEncoder struct {
	w          io.Writer
	started    bool
	openBlock  int // -1 when no content block is currently open
	blockIndex int
	err        error
}

func (anthropicCodec) NewStreamEncoder(w io.Writer) StreamEncoder {
	return &anthropicStreamEncoder{w: w, openBlock: -1}
}

func (e *anthropicStreamEncoder) writeEvent(event string, payload interface{}) error {
	if e.err != nil {
		return e.err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.err = err
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *anthropicStreamEncoder) ensureStarted() {
	if e.started {
		return
	}
	e.started = true
	e.writeEvent("message_start", map[string]interface{}{
		"type": "message_start",
		"message": map[string]interface{}{
			"id": "", "type": "message", "role": "assistant", "content": []interface{}{},
		},
	})
}

func (e *anthropicStreamEncoder) closeBlockIfOpen() {
	if e.openBlock >= 0 {
		e.writeEvent("content_block_stop", map[string]interface{}{
			"type": "content_block_stop", "index": e.openBlock,
		})
		e.openBlock = -1
	}
}

func (e *anthropicStreamEncoder) Encode(d types.Delta) error {
	e.ensureStarted()

	switch d.Kind {
	case types.DeltaText:
		if e.openBlock < 0 {
			e.openBlock = e.blockIndex
			e.blockIndex++
			e.writeEvent("content_block_start", map[string]interface{}{
				"type": "content_block_start", "index": e.openBlock,
				"content_block": map[string]interface{}{"type": "text", "text": ""},
			})
		}
		e.writeEvent("content_block_delta", map[string]interface{}{
			"type": "content_block_delta", "index": e.openBlock,
			"delta": map[string]interface{}{"type": "text_delta", "text": d.Text},
		})
	case types.DeltaToolCallStart:
		e.closeBlockIfOpen()
		e.openBlock = e.blockIndex
		e.blockIndex++
		// See SPEC_FULL.md §10: Anthropic's grammar has no field-only
		// update for a tool_use block's name, so content_block_start is
		// written only when ToolName is non-empty; the Streaming
		// Extractor buffers the name before emitting the start. A start
		// with an empty name opens the block index but never writes a
		// content_block_start.
		if d.ToolName != "" {
			e.writeEvent("content_block_start", map[string]interface{}{
				"type": "content_block_start", "index": e.openBlock,
				"content_block": map[string]interface{}{"type": "tool_use", "id": d.ToolCallID, "name": d.ToolName, "input": map[string]interface{}{}},
			})
		}
	case types.DeltaToolCallArguments:
		if e.openBlock < 0 {
			break
		}
		e.writeEvent("content_block_delta", map[string]interface{}{
			"type": "content_block_delta", "index": e.openBlock,
			"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": d.ArgsChunk},
		})
	case types.DeltaToolCallEnd:
		e.closeBlockIfOpen()
	case types.DeltaDone:
		e.closeBlockIfOpen()
		e.writeEvent("message_delta", map[string]interface{}{
			"type": "message_delta",
			"delta": map[string]interface{}{"stop_reason": encodeAnthropicFinishReason(d.FinishReason)},
			"usage": map[string]interface{}{"output_tokens": d.Usage.OutputTokens},
		})
		e.writeEvent("message_stop", map[string]interface{}{"type": "message_stop"})
	}
	return e.err
}

type anthropicStreamDecoder struct {
	scanner    *bufio.Scanner
	openToolID string
	doneSent   bool
}

func (anthropicCodec) NewStreamDecoder(r io.Reader) StreamDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &anthropicStreamDecoder{scanner: scanner}
}

func (d *anthropicStreamDecoder) Next() ([]types.Delta, error) {
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var envelope map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			continue
		}

		switch envelope["type"] {
		case "content_block_start":
			block, _ := envelope["content_block"].(map[string]interface{})
			if block != nil && block["type"] == "tool_use" {
				return []types.Delta{{
					Kind: types.DeltaToolCallStart, ToolCallID: str(block["id"]), ToolName: str(block["name"]),
				}}, nil
			}
		case "content_block_delta":
			delta, _ := envelope["delta"].(map[string]interface{})
			if delta == nil {
				continue
			}
			switch delta["type"] {
			case "text_delta":
				return []types.Delta{{Kind: types.DeltaText, Text: str(delta["text"])}}, nil
			case "input_json_delta":
				return []types.Delta{{Kind: types.DeltaToolCallArguments, ArgsChunk: str(delta["partial_json"])}}, nil
			}
		case "content_block_stop":
			return []types.Delta{{Kind: types.DeltaToolCallEnd}}, nil
		case "message_delta":
			delta, _ := envelope["delta"].(map[string]interface{})
			reason := mapAnthropicFinishReason(str(delta["stop_reason"]))
			d.doneSent = true
			return []types.Delta{{Kind: types.DeltaDone, FinishReason: reason}}, nil
		case "message_stop":
			if d.doneSent {
				return nil, io.EOF
			}
			return []types.Delta{{Kind: types.DeltaDone, FinishReason: types.FinishStop}}, io.EOF
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
