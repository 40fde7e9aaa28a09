// Package types defines the canonical, wire-format-independent request
// and response model that every codec translates to and from. Nothing
// outside the codec package should construct or inspect a wire-format
// payload directly; everything else in Toolify operates on these types.
package types

import "time"

// Format identifies one of the three supported client/upstream wire
// protocols.
type Format string

const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatGemini    Format = "gemini"
)

// Role is the canonical speaker of a Message, independent of the
// per-format role vocabulary (OpenAI's "assistant", Anthropic's
// "assistant", Gemini's "model" all collapse to RoleAssistant).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind tags the variant held by a ContentPart.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartToolUse    PartKind = "tool_use"
	PartToolResult PartKind = "tool_result"
)

// ContentPart is a tagged union over the four content shapes every
// supported wire format can express in a message. Only the fields for
// Kind are populated; codecs must not read fields belonging to another
// kind.
type ContentPart struct {
	Kind PartKind

	// PartText
	Text string

	// PartImage
	ImageMIMEType string
	ImageData     string // base64, no data: prefix

	// PartToolUse
	ToolCallID   string
	ToolName     string
	ToolArgsJSON string // raw JSON object text, forwarded faithfully

	// PartToolResult
	ToolResultForID string
	ToolResultText  string
	ToolResultError bool
}

// Message is one turn of a canonical conversation.
type Message struct {
	Role    Role
	Content []ContentPart
}

// ReasoningEffort is a coarse, vendor-neutral knob mapped to each
// upstream's own thinking-budget representation at the wire boundary.
type ReasoningEffort string

const (
	EffortNone   ReasoningEffort = ""
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// budget thresholds from spec.md §4.1: low<->2048, medium<->8192,
// high<->16384 thinking tokens.
const (
	BudgetLow    = 2048
	BudgetMedium = 8192
	BudgetHigh   = 16384
)

// EffortToBudget maps a reasoning effort to its thinking-token budget.
// Unrecognized or empty efforts map to zero (no extended thinking).
func EffortToBudget(e ReasoningEffort) int {
	switch e {
	case EffortLow:
		return BudgetLow
	case EffortMedium:
		return BudgetMedium
	case EffortHigh:
		return BudgetHigh
	default:
		return 0
	}
}

// BudgetToEffort maps an arbitrary thinking-token budget back to an
// effort bucket, per spec.md §4.1's nearest-below bucketing rule:
// budgets at or below BudgetLow map to low, at or below BudgetMedium
// map to medium, and everything above that maps to high.
func BudgetToEffort(budget int) ReasoningEffort {
	switch {
	case budget <= BudgetLow:
		return EffortLow
	case budget <= BudgetMedium:
		return EffortMedium
	default:
		return EffortHigh
	}
}

// ToolDeclaration is a single tool a client made available to the
// model, in canonical form. Schema is forwarded as a raw JSON object
// so that arbitrary upstream-specific schema keywords survive
// round-tripping without Toolify needing to understand them.
type ToolDeclaration struct {
	Name        string
	Description string
	SchemaJSON  string
}

// ToolChoiceMode controls whether and how the model must call a tool.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice captures the canonical form of a client's tool_choice.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // set only when Mode == ToolChoiceSpecific
}

// Request is the canonical, format-independent representation of an
// inbound chat/messages/generateContent call.
type Request struct {
	Model           string
	Messages        []Message
	System          string
	Tools           []ToolDeclaration
	ToolChoice      ToolChoice
	MaxTokens       int
	Temperature     *float64
	TopP            *float64
	Stop            []string
	Stream          bool
	ReasoningEffort ReasoningEffort

	// Injected is set by the Proxy Core once it has decided this
	// request needs function-calling injection (spec.md §4.3); codecs
	// never set this field themselves.
	Injected bool
}

// FinishReason is the canonical reason generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolUse   FinishReason = "tool_use"
	FinishErrorStop FinishReason = "error"
)

// Usage mirrors the token accounting every wire format reports in some
// shape.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the canonical, format-independent representation of a
// complete (non-streaming) model reply.
type Response struct {
	ID           string
	Model        string
	Content      []ContentPart
	FinishReason FinishReason
	Usage        Usage
}

// DeltaKind tags the variant held by a Delta.
type DeltaKind string

const (
	DeltaText               DeltaKind = "text_delta"
	DeltaToolCallStart       DeltaKind = "tool_call_start"
	DeltaToolCallArguments   DeltaKind = "tool_call_arguments_delta"
	DeltaToolCallEnd         DeltaKind = "tool_call_end"
	DeltaDone                DeltaKind = "done"
)

// Delta is one increment of a streaming Response. A stream is a
// finite, lazily-produced, non-restartable sequence of Deltas
// terminated by exactly one DeltaDone.
type Delta struct {
	Kind DeltaKind

	// DeltaText
	Text string

	// DeltaToolCallStart / DeltaToolCallArguments / DeltaToolCallEnd
	// Index is the tool call's position among tool calls emitted in
	// this response, assigned in first-seen order.
	Index      int
	ToolCallID string // empty until the upstream assigns or Toolify synthesizes one
	ToolName   string // set on DeltaToolCallStart (the extractor buffers the name first); see SPEC_FULL.md §10
	ArgsChunk  string // partial JSON text, DeltaToolCallArguments only

	// DeltaDone
	FinishReason FinishReason
	Usage        Usage
}

// UpstreamService is one configured backend the router can forward to.
type UpstreamService struct {
	Name                  string
	ServiceType           Format
	BaseURL               string
	APIKey                string
	Priority              int
	Models                []string // empty means "matches any model"
	ModelMapping          map[string]string
	InjectFunctionCalling *bool // nil = inherit the global default
	OptimizePrompt        bool
}

// MatchesModel reports whether this upstream is a candidate for the
// given (already client-mapped) model name.
func (u UpstreamService) MatchesModel(model string) bool {
	if len(u.Models) == 0 {
		return true
	}
	for _, m := range u.Models {
		if m == model {
			return true
		}
	}
	return false
}

// MappedModel applies this upstream's model_mapping, if any, returning
// the model name to send upstream.
func (u UpstreamService) MappedModel(model string) string {
	if mapped, ok := u.ModelMapping[model]; ok {
		return mapped
	}
	return model
}

// ShouldInject resolves this upstream's effective injection decision
// against a global default.
func (u UpstreamService) ShouldInject(globalDefault bool) bool {
	if u.InjectFunctionCalling != nil {
		return *u.InjectFunctionCalling
	}
	return globalDefault
}

// ToolCallIdentity is one entry of the Tool-Call Identity Map: the
// correlation between a client-facing synthesized ID and the
// upstream-facing ID or ordinal it actually corresponds to.
type ToolCallIdentity struct {
	ClientID    string
	UpstreamID  string
	CreatedAt   time.Time
	LastTouched time.Time
}
