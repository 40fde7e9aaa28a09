package proxy

import (
	"context"
	"errors"
	"io"

	"github.com/ImogeneOctaviap794/Toolify-code/toolmap"
	"github.com/ImogeneOctaviap794/Toolify-code/toolxml"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// streamResponse drives one upstream's streaming body to completion
// against the client. On the non-injected path, upstream Deltas are
// decoded and re-encoded as-is. On the injected path, upstream text
// deltas are additionally run through the Streaming Extractor before
// being handed to the client encoder, so a `<tool_call>` the upstream
// emits as plain text surfaces to the client as native streamed tool
// call deltas (spec.md §4.5).
func streamResponse(ctx context.Context, ac *attemptContext, svc types.UpstreamService, candReq types.Request, upstreamBody io.Reader, wroteAny *bool) error {
	decoder, err := ac.transcoder.StreamDecoder(svc.ServiceType, upstreamBody)
	if err != nil {
		return err
	}
	encoder, err := ac.transcoder.StreamEncoder(ac.clientFormat, ac.w)
	if err != nil {
		return err
	}

	var extractor *toolxml.Extractor
	if candReq.Injected {
		extractor = toolxml.NewExtractor()
	}

	// clientIDs maps an upstream tool-call Index to the client-facing ID
	// synthesized for it, so argument/end deltas for the same call stay
	// consistent across the whole stream.
	clientIDs := make(map[int]string)
	nextIndex := 0

	emit := func(d types.Delta) error {
		if err := encoder.Encode(d); err != nil {
			return err
		}
		*wroteAny = true
		if ac.flusher != nil {
			ac.flusher.Flush()
		}
		return nil
	}

	emitExtracted := func(deltas []types.Delta) error {
		for i := range deltas {
			d := deltas[i]
			switch d.Kind {
			case types.DeltaToolCallStart:
				d.Index = nextIndex
				id := toolmap.NewClientID()
				clientIDs[d.Index] = id
				ac.toolMap.Put(types.ToolCallIdentity{ClientID: id, UpstreamID: id})
				d.ToolCallID = id
				nextIndex++
			case types.DeltaToolCallArguments, types.DeltaToolCallEnd:
				d.ToolCallID = clientIDs[d.Index]
			}
			if err := emit(d); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deltas, nextErr := decoder.Next()
		for _, d := range deltas {
			if extractor != nil && d.Kind == types.DeltaText {
				if extractErr := emitExtracted(extractor.Feed([]byte(d.Text))); extractErr != nil {
					return extractErr
				}
				continue
			}
			if extractor != nil && d.Kind == types.DeltaDone {
				// Drain anything still buffered before the terminal delta,
				// so a trailing partial tag is never silently dropped.
				if extractErr := emitExtracted(extractor.Flush()); extractErr != nil {
					return extractErr
				}
			}
			if emitErr := emit(d); emitErr != nil {
				return emitErr
			}
		}
		if nextErr == nil {
			continue
		}
		if errors.Is(nextErr, io.EOF) {
			if extractor != nil {
				if extractErr := emitExtracted(extractor.Flush()); extractErr != nil {
					return extractErr
				}
			}
			return nil
		}
		return nextErr
	}
}
