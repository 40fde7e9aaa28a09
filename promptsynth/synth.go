// Package promptsynth renders the system-prompt instructions that
// teach a model without native tool-calling support to emit tool calls
// as an XML sublanguage the Streaming Extractor and XML Tool Parser
// understand. Grounded in idiom on config/config.go's
// GetToolDescription/ApplySystemMessageOverrides string-assembly style
// (plain fmt.Sprintf/strings.Builder, no template engine) and on
// parser/harmony.go's convention of documenting a token grammar as
// exported constants.
package promptsynth

import (
	"fmt"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Grammar tags for the injected tool-call sublanguage (spec.md §4.3).
const (
	TagToolCallOpen  = "<tool_call>"
	TagToolCallClose = "</tool_call>"
	TagNameOpen      = "<name>"
	TagNameClose     = "</name>"
	TagArgsOpen      = "<arguments>"
	TagArgsClose     = "</arguments>"
	TagThinkOpen     = "<think>"
	TagThinkClose    = "</think>"
)

// Variant selects between the detailed (example-laden, for smaller or
// less capable models) and optimized (terse, for models that already
// reliably follow structured instructions) synthesized prompt.
type Variant string

const (
	VariantDetailed  Variant = "detailed"
	VariantOptimized Variant = "optimized"
)

// Synthesize renders the system-prompt text teaching the model to emit
// tool calls in the XML grammar above for the given tool declarations.
func Synthesize(tools []types.ToolDeclaration, variant Variant) string {
	if len(tools) == 0 {
		return ""
	}
	if variant == VariantOptimized {
		return synthesizeOptimized(tools)
	}
	return synthesizeDetailed(tools)
}

func synthesizeOptimized(tools []types.ToolDeclaration) string {
	var b strings.Builder
	b.WriteString("You can call tools. To call one, emit exactly:\n")
	fmt.Fprintf(&b, "%s%sTOOL_NAME%s%s{...json args...}%s%s\n\n", TagToolCallOpen, TagNameOpen, TagNameClose, TagArgsOpen, TagArgsClose, TagToolCallClose)
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

func synthesizeDetailed(tools []types.ToolDeclaration) string {
	var b strings.Builder

	b.WriteString("You have access to tools, but the runtime you are connected to does not pass them to you natively. ")
	b.WriteString("When you need to call a tool, stop writing prose and emit a tool call using this exact format:\n\n")
	fmt.Fprintf(&b, "%s\n%sSOME_TOOL_NAME%s\n%s{\"argument_name\": \"value\"}%s\n%s\n\n", TagToolCallOpen, TagNameOpen, TagNameClose, TagArgsOpen, TagArgsClose, TagToolCallClose)
	b.WriteString("Rules:\n")
	b.WriteString("- Emit at most one tool call per reply unless asked to call several in sequence.\n")
	b.WriteString("- The arguments block must be a single JSON object, nothing else.\n")
	b.WriteString("- Do not wrap the tool call in a code fence or any other markup.\n")
	fmt.Fprintf(&b, "- You may think before calling a tool inside %s...%s.\n\n", TagThinkOpen, TagThinkClose)

	b.WriteString("Available tools:\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "## %s\n%s\n", t.Name, t.Description)
		if t.SchemaJSON != "" && t.SchemaJSON != "{}" {
			fmt.Fprintf(&b, "Arguments schema: %s\n", t.SchemaJSON)
		}
		b.WriteString("\n")
	}

	if len(tools) > 0 {
		b.WriteString("Example:\n")
		fmt.Fprintf(&b, "%s\n%s%s%s\n%s%s%s\n%s\n", TagToolCallOpen, TagNameOpen, tools[0].Name, TagNameClose, TagArgsOpen, exampleArgsFor(tools[0]), TagArgsClose, TagToolCallClose)
	}

	return b.String()
}

func exampleArgsFor(t types.ToolDeclaration) string {
	if t.SchemaJSON == "" || t.SchemaJSON == "{}" {
		return "{}"
	}
	return "{\"...\": \"...\"}"
}
