// Package codec implements the per-wire-format translation layer
// between OpenAI Chat Completions, Anthropic Messages, and Google
// Gemini generateContent and the canonical model in package types.
// Codecs are the only format-aware layer above the canonical model;
// everything above a codec (transcoder, router, proxy core) deals
// exclusively in types.Request/Response/Delta.
package codec

import (
	"io"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// StreamEncoder renders canonical Deltas into one wire format's
// streaming wire representation (SSE for OpenAI/Anthropic, a streamed
// JSON array for Gemini), writing directly to the underlying
// writer as each Delta arrives.
type StreamEncoder interface {
	Encode(d types.Delta) error
}

// StreamDecoder turns a wire-format streaming upstream response into
// canonical Deltas. It is used on every streaming path; on the
// injected path the decoded text deltas are additionally fed through
// the toolxml Streaming Extractor (proxy/stream.go).
type StreamDecoder interface {
	// Next blocks until it has at least one Delta to return, or the
	// stream ends (io.EOF) or fails.
	Next() ([]types.Delta, error)
}

// Codec implements decode/encode in both directions for one wire
// format.
type Codec interface {
	Format() types.Format

	DecodeRequest(body []byte) (types.Request, error)
	EncodeRequest(req types.Request) ([]byte, error)

	DecodeResponse(body []byte) (types.Response, error)
	EncodeResponse(resp types.Response) ([]byte, error)

	NewStreamEncoder(w io.Writer) StreamEncoder
	NewStreamDecoder(r io.Reader) StreamDecoder
}

// Registry is a lookup of Codec by format, used by the transcoder and
// proxy core instead of a hardcoded format pair.
type Registry map[types.Format]Codec

// NewDefaultRegistry returns the registry wired with all three
// supported codecs.
func NewDefaultRegistry() Registry {
	return Registry{
		types.FormatOpenAI:    NewOpenAICodec(),
		types.FormatAnthropic: NewAnthropicCodec(),
		types.FormatGemini:    NewGeminiCodec(),
	}
}
