package toolxml

import (
	"bytes"

	"github.com/ImogeneOctaviap794/Toolify-code/promptsynth"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// state is the Streaming Extractor's coarse position in the grammar
// (spec.md §4.5): PassThrough, TriggerSuspected (folded into
// PassThrough below, see buf handling), InCall, InArguments, plus an
// InThink overlay that passes its content through as text without
// scanning it for tool call triggers.
type state int

const (
	statePassThrough state = iota
	stateInThink
	stateInCall       // saw <tool_call>, scanning for <name>...</name>
	stateAfterName    // saw </name>, scanning for <arguments>
	stateInArguments  // streaming argument bytes until </arguments>
	stateAfterArgs    // saw </arguments>, scanning for </tool_call>
)

// triggerTags are the tags PassThrough watches for; maxTagLen bounds
// how many unresolved bytes PassThrough ever holds back while deciding
// whether they are the start of a trigger tag
// (spec.md §4.5's "10-byte trigger lookahead", rounded up here to the
// longest trigger tag's own length so a real tag is never
// misclassified as a false alarm).
var triggerTags = []string{promptsynth.TagToolCallOpen, promptsynth.TagThinkOpen}

func maxTagLen() int {
	max := 0
	for _, t := range triggerTags {
		if len(t) > max {
			max = len(t)
		}
	}
	return max
}

// Extractor is the incremental `Feed([]byte) []types.Delta` state
// machine. A zero-value Extractor is not usable; use NewExtractor.
// Not safe for concurrent use: one Extractor serves exactly one
// in-flight streaming response.
type Extractor struct {
	st        state
	buf       []byte
	callIndex int
	pendingName string
}

// NewExtractor returns a fresh Extractor in PassThrough state.
func NewExtractor() *Extractor {
	return &Extractor{st: statePassThrough}
}

// Feed consumes newly-arrived upstream text bytes and returns however
// many Deltas can now be conclusively emitted. It is safe to call Feed
// with arbitrarily small or arbitrarily split chunks: the invariant is
// that any run of bytes containing no <tool_call> or <think> substring
// passes through as DeltaText byte-for-byte (modulo the bounded
// lookahead buffer held back until it can be resolved).
func (e *Extractor) Feed(data []byte) []types.Delta {
	e.buf = append(e.buf, data...)
	var out []types.Delta

	for {
		switch e.st {
		case statePassThrough:
			d, progressed := e.stepPassThrough()
			out = append(out, d...)
			if !progressed {
				return out
			}
		case stateInThink:
			d, progressed := e.stepInThink()
			out = append(out, d...)
			if !progressed {
				return out
			}
		case stateInCall:
			if !e.stepInCall() {
				return out
			}
		case stateAfterName:
			d, progressed := e.stepAfterName()
			out = append(out, d...)
			if !progressed {
				return out
			}
		case stateInArguments:
			d, progressed := e.stepInArguments()
			out = append(out, d...)
			if !progressed {
				return out
			}
		case stateAfterArgs:
			d, progressed := e.stepAfterArgs()
			out = append(out, d...)
			if !progressed {
				return out
			}
		}
	}
}

// stepPassThrough advances the scan by at most one decision, returning
// whatever Deltas that decision produced and whether it made progress
// (false means: need more bytes before the next decision can be made).
func (e *Extractor) stepPassThrough() ([]types.Delta, bool) {
	if len(e.buf) == 0 {
		return nil, false
	}

	idx := bytes.IndexByte(e.buf, '<')
	if idx == -1 {
		text := string(e.buf)
		e.buf = nil
		return []types.Delta{{Kind: types.DeltaText, Text: text}}, true
	}
	if idx > 0 {
		text := string(e.buf[:idx])
		e.buf = e.buf[idx:]
		return []types.Delta{{Kind: types.DeltaText, Text: text}}, true
	}

	// e.buf[0] == '<': check for a fully-matched trigger tag first.
	if bytes.HasPrefix(e.buf, []byte(promptsynth.TagToolCallOpen)) {
		e.buf = e.buf[len(promptsynth.TagToolCallOpen):]
		e.st = stateInCall
		return nil, true
	}
	if bytes.HasPrefix(e.buf, []byte(promptsynth.TagThinkOpen)) {
		tag := promptsynth.TagThinkOpen
		e.buf = e.buf[len(tag):]
		e.st = stateInThink
		return []types.Delta{{Kind: types.DeltaText, Text: tag}}, true
	}

	// Not yet fully matched: is buf a prefix of some trigger tag?
	if isPrefixOfAnyTag(e.buf) {
		if len(e.buf) < maxTagLen() {
			return nil, false // need more bytes to resolve
		}
		// Exceeded the lookahead budget without resolving: false alarm,
		// flush one byte as text and keep scanning.
	}

	text := string(e.buf[:1])
	e.buf = e.buf[1:]
	return []types.Delta{{Kind: types.DeltaText, Text: text}}, true
}

func isPrefixOfAnyTag(buf []byte) bool {
	for _, tag := range triggerTags {
		n := len(buf)
		if n > len(tag) {
			n = len(tag)
		}
		if bytes.Equal(buf[:n], []byte(tag)[:n]) {
			return true
		}
	}
	return false
}

// stepInThink emits everything up to the next </think> as plain text
// (reasoning content is passed through to the client unchanged,
// spec.md §4.3/§4.4 step 5) without ever scanning it for a tool call
// trigger (the think-block-safety invariant of spec.md §4.5). The
// closing tag itself is emitted as text too, then scanning resumes in
// PassThrough.
func (e *Extractor) stepInThink() ([]types.Delta, bool) {
	closeTag := []byte(promptsynth.TagThinkClose)
	idx := bytes.Index(e.buf, closeTag)
	if idx == -1 {
		// Emit everything except a tail that could still be a partial
		// </think>, so a close tag split across chunk boundaries is
		// still found once the rest arrives.
		holdBack := len(closeTag) - 1
		if len(e.buf) <= holdBack {
			return nil, false
		}
		text := string(e.buf[:len(e.buf)-holdBack])
		e.buf = e.buf[len(e.buf)-holdBack:]
		return []types.Delta{{Kind: types.DeltaText, Text: text}}, true
	}
	text := string(e.buf[:idx+len(closeTag)])
	e.buf = e.buf[idx+len(closeTag):]
	e.st = statePassThrough
	return []types.Delta{{Kind: types.DeltaText, Text: text}}, true
}

// stepInCall scans for a complete <name>...</name> block before
// emitting ToolCallStart, per SPEC_FULL.md §10: names are bounded and
// arrive whole, so there is no reason to stream them.
func (e *Extractor) stepInCall() bool {
	openIdx := bytes.Index(e.buf, []byte(promptsynth.TagNameOpen))
	if openIdx == -1 {
		return false
	}
	afterOpen := e.buf[openIdx+len(promptsynth.TagNameOpen):]
	closeIdx := bytes.Index(afterOpen, []byte(promptsynth.TagNameClose))
	if closeIdx == -1 {
		return false
	}
	e.pendingName = trimSpace(string(afterOpen[:closeIdx]))
	e.buf = afterOpen[closeIdx+len(promptsynth.TagNameClose):]
	e.st = stateAfterName
	return true
}

func (e *Extractor) stepAfterName() ([]types.Delta, bool) {
	idx := bytes.Index(e.buf, []byte(promptsynth.TagArgsOpen))
	if idx == -1 {
		// Keep only a bounded tail in case <arguments> is split; the
		// skipped whitespace between </name> and <arguments> is
		// discarded, never emitted as text (it is grammar, not content).
		if len(e.buf) > len(promptsynth.TagArgsOpen) {
			e.buf = e.buf[len(e.buf)-len(promptsynth.TagArgsOpen):]
		}
		return nil, false
	}
	e.buf = e.buf[idx+len(promptsynth.TagArgsOpen):]
	e.st = stateInArguments

	// The name is already fully known at this point (stepInCall only
	// transitions here once <name>...</name> has fully arrived), so
	// ToolCallStart is emitted now, strictly before any
	// ToolCallArguments delta for this call's Index.
	start := types.Delta{Kind: types.DeltaToolCallStart, Index: e.callIndex, ToolName: e.pendingName}
	return []types.Delta{start}, true
}

func (e *Extractor) stepInArguments() ([]types.Delta, bool) {
	closeTag := []byte(promptsynth.TagArgsClose)
	idx := bytes.Index(e.buf, closeTag)
	if idx == -1 {
		// Hold back a tail that could be a partial </arguments>, flush
		// the rest as argument bytes.
		holdBack := len(closeTag) - 1
		if len(e.buf) <= holdBack {
			return nil, false
		}
		chunk := e.buf[:len(e.buf)-holdBack]
		e.buf = e.buf[len(e.buf)-holdBack:]
		return []types.Delta{{Kind: types.DeltaToolCallArguments, Index: e.callIndex, ArgsChunk: string(chunk)}}, true
	}

	var out []types.Delta
	if idx > 0 {
		out = append(out, types.Delta{Kind: types.DeltaToolCallArguments, Index: e.callIndex, ArgsChunk: string(e.buf[:idx])})
	}
	e.buf = e.buf[idx+len(closeTag):]
	e.st = stateAfterArgs
	return out, true
}

func (e *Extractor) stepAfterArgs() ([]types.Delta, bool) {
	closeTag := []byte(promptsynth.TagToolCallClose)
	idx := bytes.Index(e.buf, closeTag)
	if idx == -1 {
		if len(e.buf) > len(closeTag) {
			e.buf = e.buf[len(e.buf)-len(closeTag):]
		}
		return nil, false
	}
	e.buf = e.buf[idx+len(closeTag):]
	idxCall := e.callIndex
	e.callIndex++
	e.pendingName = ""
	e.st = statePassThrough

	return []types.Delta{{Kind: types.DeltaToolCallEnd, Index: idxCall}}, true
}

// Flush signals end-of-stream: any content still held in an ambiguous
// PassThrough lookahead buffer is emitted as plain text (it never
// resolved into a real trigger), an unterminated think block's
// buffered text is emitted rather than dropped, and an unterminated
// tool call's buffered argument bytes are emitted as a final arguments
// chunk rather than silently dropped.
func (e *Extractor) Flush() []types.Delta {
	if len(e.buf) == 0 {
		return nil
	}
	defer func() { e.buf = nil }()

	switch e.st {
	case statePassThrough, stateInThink:
		return []types.Delta{{Kind: types.DeltaText, Text: string(e.buf)}}
	case stateInArguments:
		return []types.Delta{{Kind: types.DeltaToolCallArguments, Index: e.callIndex, ArgsChunk: string(e.buf)}}
	default:
		return nil
	}
}
