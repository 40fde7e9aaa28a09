package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Wire-level Gemini generateContent types, grounded on
// other_examples/e4856f43_zqverse0-Go-LLM-Router__core-mapper-gemini_inbound.go.go:
// systemInstruction.parts[].text, contents[].role in {user, model},
// parts[].{text, inlineData, functionCall, functionResponse},
// generationConfig.{temperature, topP, maxOutputTokens, stopSequences},
// tools[].functionDeclarations[].{name, description, parameters}.

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *geminiInlineData       `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Index         int           `json:"index"`
	Content       geminiContent `json:"content"`
	FinishReason  string        `json:"finishReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCodec struct{}

// NewGeminiCodec returns the Gemini generateContent Codec.
func NewGeminiCodec() Codec { return geminiCodec{} }

func (geminiCodec) Format() types.Format { return types.FormatGemini }

func (geminiCodec) DecodeRequest(body []byte) (types.Request, error) {
	var wire geminiRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Request{}, fmt.Errorf("gemini: decode request: %w", err)
	}

	req := types.Request{}

	if wire.SystemInstruction != nil {
		var b strings.Builder
		for _, p := range wire.SystemInstruction.Parts {
			b.WriteString(p.Text)
		}
		req.System = b.String()
	}

	for _, c := range wire.Contents {
		req.Messages = append(req.Messages, decodeGeminiContent(c))
	}

	if wire.GenerationConfig != nil {
		gc := wire.GenerationConfig
		if gc.Temperature != 0 {
			t := gc.Temperature
			req.Temperature = &t
		}
		if gc.TopP != 0 {
			p := gc.TopP
			req.TopP = &p
		}
		req.MaxTokens = gc.MaxOutputTokens
		req.Stop = gc.StopSequences
		if gc.ThinkingConfig != nil {
			req.ReasoningEffort = types.BudgetToEffort(gc.ThinkingConfig.ThinkingBudget)
		}
	}

	for _, t := range wire.Tools {
		for _, fd := range t.FunctionDeclarations {
			req.Tools = append(req.Tools, types.ToolDeclaration{
				Name: fd.Name, Description: fd.Description, SchemaJSON: string(fd.Parameters),
			})
		}
	}

	req.ToolChoice = types.ToolChoice{Mode: types.ToolChoiceAuto}
	return req, nil
}

func decodeGeminiContent(c geminiContent) types.Message {
	role := types.RoleUser
	switch c.Role {
	case "model":
		role = types.RoleAssistant
	case "function":
		role = types.RoleTool
	}

	msg := types.Message{Role: role}
	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil:
			argsJSON := "{}"
			if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
				argsJSON = string(b)
			}
			msg.Content = append(msg.Content, types.ContentPart{
				Kind: types.PartToolUse, ToolName: p.FunctionCall.Name, ToolArgsJSON: argsJSON,
				ToolCallID: "call_" + p.FunctionCall.Name,
			})
		case p.FunctionResponse != nil:
			msg.Role = types.RoleTool
			text := ""
			if b, err := json.Marshal(p.FunctionResponse.Response); err == nil {
				text = string(b)
			}
			msg.Content = append(msg.Content, types.ContentPart{
				Kind: types.PartToolResult, ToolResultForID: "call_" + p.FunctionResponse.Name, ToolResultText: text,
			})
		case p.InlineData != nil:
			msg.Content = append(msg.Content, types.ContentPart{
				Kind: types.PartImage, ImageMIMEType: p.InlineData.MimeType, ImageData: p.InlineData.Data,
			})
		case p.Text != "":
			msg.Content = append(msg.Content, types.ContentPart{Kind: types.PartText, Text: p.Text})
		}
	}
	return msg
}

func (geminiCodec) EncodeRequest(req types.Request) ([]byte, error) {
	wire := geminiRequest{}

	if req.System != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		wire.Contents = append(wire.Contents, encodeGeminiContent(m))
	}

	gc := &geminiGenerationConfig{StopSequences: req.Stop, MaxOutputTokens: req.MaxTokens}
	if req.Temperature != nil {
		gc.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		gc.TopP = *req.TopP
	}
	if budget := types.EffortToBudget(req.ReasoningEffort); budget > 0 {
		gc.ThinkingConfig = &geminiThinkingConfig{ThinkingBudget: budget}
	}
	wire.GenerationConfig = gc

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name: t.Name, Description: t.Description, Parameters: json.RawMessage(nonEmptyJSON(t.SchemaJSON)),
			})
		}
		wire.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	return json.Marshal(wire)
}

func encodeGeminiContent(m types.Message) geminiContent {
	role := "user"
	if m.Role == types.RoleAssistant {
		role = "model"
	}

	c := geminiContent{Role: role}
	for _, part := range m.Content {
		switch part.Kind {
		case types.PartText:
			c.Parts = append(c.Parts, geminiPart{Text: part.Text})
		case types.PartToolUse:
			var args map[string]interface{}
			_ = json.Unmarshal([]byte(nonEmptyJSON(part.ToolArgsJSON)), &args)
			c.Parts = append(c.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: part.ToolName, Args: args}})
		case types.PartToolResult:
			c.Role = "function"
			var resp map[string]interface{}
			if err := json.Unmarshal([]byte(part.ToolResultText), &resp); err != nil {
				resp = map[string]interface{}{"result": part.ToolResultText}
			}
			c.Parts = append(c.Parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name: strings.TrimPrefix(part.ToolResultForID, "call_"), Response: resp,
			}})
		case types.PartImage:
			c.Parts = append(c.Parts, geminiPart{InlineData: &geminiInlineData{MimeType: part.ImageMIMEType, Data: part.ImageData}})
		}
	}
	return c
}

func (geminiCodec) DecodeResponse(body []byte) (types.Response, error) {
	var wire geminiResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.Response{}, fmt.Errorf("gemini: decode response: %w", err)
	}

	resp := types.Response{}
	if wire.UsageMetadata != nil {
		resp.Usage = types.Usage{
			InputTokens: wire.UsageMetadata.PromptTokenCount, OutputTokens: wire.UsageMetadata.CandidatesTokenCount,
		}
	}
	if len(wire.Candidates) == 0 {
		return resp, nil
	}
	cand := wire.Candidates[0]
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			argsJSON := "{}"
			if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
				argsJSON = string(b)
			}
			resp.Content = append(resp.Content, types.ContentPart{
				Kind: types.PartToolUse, ToolName: p.FunctionCall.Name, ToolArgsJSON: argsJSON,
				ToolCallID: "call_" + p.FunctionCall.Name,
			})
		case p.Text != "":
			resp.Content = append(resp.Content, types.ContentPart{Kind: types.PartText, Text: p.Text})
		}
	}
	resp.FinishReason = mapGeminiFinishReason(cand.FinishReason)
	return resp, nil
}

func mapGeminiFinishReason(r string) types.FinishReason {
	switch r {
	case "MAX_TOKENS":
		return types.FinishLength
	default:
		return types.FinishStop
	}
}

func (geminiCodec) EncodeResponse(resp types.Response) ([]byte, error) {
	wire := geminiResponse{
		UsageMetadata: &geminiUsage{
			PromptTokenCount: resp.Usage.InputTokens, CandidatesTokenCount: resp.Usage.OutputTokens,
			TotalTokenCount: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	cand := geminiCandidate{Index: 0, Content: geminiContent{Role: "model"}}
	hasToolCall := false
	for _, part := range resp.Content {
		switch part.Kind {
		case types.PartText:
			cand.Content.Parts = append(cand.Content.Parts, geminiPart{Text: part.Text})
		case types.PartToolUse:
			hasToolCall = true
			var args map[string]interface{}
			_ = json.Unmarshal([]byte(nonEmptyJSON(part.ToolArgsJSON)), &args)
			cand.Content.Parts = append(cand.Content.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: part.ToolName, Args: args}})
		}
	}

	cand.FinishReason = encodeGeminiFinishReason(resp.FinishReason, hasToolCall)
	wire.Candidates = []geminiCandidate{cand}

	return json.Marshal(wire)
}

func encodeGeminiFinishReason(f types.FinishReason, hasToolCall bool) string {
	if hasToolCall {
		return "STOP"
	}
	switch f {
	case types.FinishLength:
		return "MAX_TOKENS"
	default:
		return "STOP"
	}
}

// streaming — Gemini's streamGenerateContent emits a JSON array of
// candidate objects over the wire, one flushed chunk per generateContent
// response fragment, not an SSE event stream. Toolify encodes each
// Delta batch as a standalone JSON array entry written with its own
// comma/bracket framing so a client reading incrementally sees valid
// growing JSON, matching the real API's streaming behavior.

type geminiStreamEncoder struct {
	w        io.Writer
	started  bool
	toolName string
	argsBuf  bytes.Buffer
	err      error
}

func (geminiCodec) NewStreamEncoder(w io.Writer) StreamEncoder {
	return &geminiStreamEncoder{w: w}
}

func (e *geminiStreamEncoder) writeChunk(cand geminiCandidate) error {
	if e.err != nil {
		return e.err
	}
	wire := geminiResponse{Candidates: []geminiCandidate{cand}}
	data, err := json.Marshal(wire)
	if err != nil {
		e.err = err
		return err
	}
	prefix := ",\n"
	if !e.started {
		prefix = "[\n"
		e.started = true
	}
	_, err = fmt.Fprintf(e.w, "%s%s", prefix, data)
	e.err = err
	return err
}

func (e *geminiStreamEncoder) Encode(d types.Delta) error {
	switch d.Kind {
	case types.DeltaText:
		return e.writeChunk(geminiCandidate{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: d.Text}}}})
	case types.DeltaToolCallStart:
		e.toolName = d.ToolName
		e.argsBuf.Reset()
		return nil
	case types.DeltaToolCallArguments:
		e.argsBuf.WriteString(d.ArgsChunk)
		return nil
	case types.DeltaToolCallEnd:
		var args map[string]interface{}
		_ = json.Unmarshal(e.argsBuf.Bytes(), &args)
		return e.writeChunk(geminiCandidate{Content: geminiContent{Role: "model", Parts: []geminiPart{{
			FunctionCall: &geminiFunctionCall{Name: e.toolName, Args: args},
		}}}})
	case types.DeltaDone:
		cand := geminiCandidate{FinishReason: encodeGeminiFinishReason(d.FinishReason, e.toolName != "")}
		if err := e.writeChunk(cand); err != nil {
			return err
		}
		if e.err == nil {
			_, e.err = fmt.Fprint(e.w, "\n]\n")
		}
		return e.err
	}
	return nil
}

type geminiStreamDecoder struct {
	dec *json.Decoder
}

func (geminiCodec) NewStreamDecoder(r io.Reader) StreamDecoder {
	return &geminiStreamDecoder{dec: json.NewDecoder(bufio.NewReader(r))}
}

func (d *geminiStreamDecoder) Next() ([]types.Delta, error) {
	var resp geminiResponse
	if err := d.dec.Decode(&resp); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	cand := resp.Candidates[0]
	var out []types.Delta
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			out = append(out, types.Delta{Kind: types.DeltaText, Text: p.Text})
		}
		if p.FunctionCall != nil {
			argsJSON := "{}"
			if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
				argsJSON = string(b)
			}
			out = append(out,
				types.Delta{Kind: types.DeltaToolCallStart, ToolName: p.FunctionCall.Name},
				types.Delta{Kind: types.DeltaToolCallArguments, ArgsChunk: argsJSON},
				types.Delta{Kind: types.DeltaToolCallEnd},
			)
		}
	}
	if cand.FinishReason != "" {
		out = append(out, types.Delta{Kind: types.DeltaDone, FinishReason: mapGeminiFinishReason(cand.FinishReason)})
	}
	return out, nil
}
