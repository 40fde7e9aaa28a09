// Package toolxml recognizes and parses the `<tool_call>` sublanguage
// injected by promptsynth, both as a one-shot parse over a complete
// response (this file) and as a true incremental byte-stream state
// machine (extractor.go). Grounded on parser/harmony.go's
// TokenRecognizer architecture — compiled-once regexps, a
// package-level default recognizer, an IsHarmonyFormat-style
// predicate — retargeted from the `<|start|>...<|end|>` grammar to
// this package's `<tool_call>`/`<name>`/`<arguments>` grammar.
package toolxml

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/promptsynth"
)

// ToolCall is one parsed `<tool_call>` block.
type ToolCall struct {
	Name string
	// ArgsJSON holds the raw arguments text. When the text between
	// <arguments> and </arguments> failed to parse as JSON, ArgsJSON
	// still holds that raw text verbatim (spec.md §4.4 step 3: never
	// discard on parse failure) and ArgsValid is false.
	ArgsJSON  string
	ArgsValid bool
}

// ParseResult is the outcome of parsing a complete response string.
type ParseResult struct {
	// Text is the response with all <tool_call>...</tool_call> blocks
	// removed. <think>...</think> blocks are left in place verbatim —
	// reasoning text is passed through as assistant text (spec.md
	// §4.3/§4.4 step 5) — but are never scanned for tool calls.
	Text      string
	ToolCalls []ToolCall
}

var (
	toolCallPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(promptsynth.TagToolCallOpen) + `(.*?)` + regexp.QuoteMeta(promptsynth.TagToolCallClose))
	namePattern     = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(promptsynth.TagNameOpen) + `(.*?)` + regexp.QuoteMeta(promptsynth.TagNameClose))
	argsPattern     = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(promptsynth.TagArgsOpen) + `(.*?)` + regexp.QuoteMeta(promptsynth.TagArgsClose))
	thinkPattern    = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(promptsynth.TagThinkOpen) + `.*?` + regexp.QuoteMeta(promptsynth.TagThinkClose))
)

// ContainsToolCall reports whether s contains at least one complete
// <tool_call> block, the precondition for running Parse at all.
func ContainsToolCall(s string) bool {
	return toolCallPattern.MatchString(s)
}

// Parse scans a complete response string for <tool_call> blocks,
// extracting each one's name and arguments and stripping them from the
// surrounding text. <think>...</think> blocks are never scanned as
// tool calls but are left untouched in Text.
func Parse(s string) ParseResult {
	thinkRanges := thinkPattern.FindAllStringIndex(s, -1)
	matches := toolCallPattern.FindAllStringIndex(s, -1)

	var calls []ToolCall
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if insideAnyRange(start, thinkRanges) {
			continue
		}
		b.WriteString(s[last:start])
		calls = append(calls, parseOneBlock(s[start:end]))
		last = end
	}
	b.WriteString(s[last:])

	return ParseResult{Text: b.String(), ToolCalls: calls}
}

func insideAnyRange(pos int, ranges [][]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func parseOneBlock(block string) ToolCall {
	call := ToolCall{}

	if m := namePattern.FindStringSubmatch(block); len(m) == 2 {
		call.Name = trimSpace(m[1])
	}

	argsText := "{}"
	if m := argsPattern.FindStringSubmatch(block); len(m) == 2 {
		argsText = trimSpace(m[1])
	}

	call.ArgsJSON = argsText
	var js json.RawMessage
	if err := json.Unmarshal([]byte(argsText), &js); err == nil {
		call.ArgsValid = true
	}

	return call
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
