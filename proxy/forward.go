package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ImogeneOctaviap794/Toolify-code/logger"
	"github.com/ImogeneOctaviap794/Toolify-code/router"
	"github.com/ImogeneOctaviap794/Toolify-code/toolmap"
	"github.com/ImogeneOctaviap794/Toolify-code/toolxml"
	"github.com/ImogeneOctaviap794/Toolify-code/transcoder"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// newUpstreamClient builds the shared HTTP client used for every
// upstream attempt, with a dedicated connect timeout and no overall
// client-side timeout, so a long legitimate stream is never cut off
// by a fixed http.Client.Timeout the way the teacher's handler did for
// its big-model endpoints. No per-request deadline is set on the
// context either: attempts run under the client request's own context,
// which ends only when the client goes away.
func newUpstreamClient(connectTimeoutSeconds int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: time.Duration(connectTimeoutSeconds) * time.Second,
			}).DialContext,
		},
	}
}

// upstreamURL resolves the full URL for one candidate upstream, given
// the already-mapped model the candidate should see and whether this is
// the streaming variant of a Gemini route. Gemini carries no model
// field in its request body, so the model and method both live in the
// path instead (spec.md §6).
func upstreamURL(svc types.UpstreamService, model string, streaming bool) string {
	if svc.ServiceType != types.FormatGemini {
		return svc.BaseURL
	}
	method := "generateContent"
	if streaming {
		method = "streamGenerateContent"
	}
	return fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", svc.BaseURL, model, method, svc.APIKey)
}

// newUpstreamHTTPRequest builds the outbound request with the
// credential header idiomatic to the candidate's service_type.
func newUpstreamHTTPRequest(ctx context.Context, svc types.UpstreamService, model string, streaming bool, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL(svc, model, streaming), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	switch svc.ServiceType {
	case types.FormatAnthropic:
		req.Header.Set("x-api-key", svc.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	case types.FormatGemini:
		// credential already embedded as a ?key= query parameter.
	default:
		req.Header.Set("Authorization", "Bearer "+svc.APIKey)
	}
	return req, nil
}

// attemptContext bundles everything one candidate attempt needs beyond
// the router's own (ctx, svc) pair, so the Attemptor closure in
// handler.go stays short.
type attemptContext struct {
	client       *http.Client
	transcoder   *transcoder.Transcoder
	toolMap      toolmap.IDStore
	clientFormat types.Format
	req          types.Request
	globalInject bool
	requestID    string
	w            http.ResponseWriter
	flusher      http.Flusher
	log          logger.Logger
	convLogger   *logger.ConversationLogger
}

// forwardOne performs exactly one candidate attempt: build the
// per-candidate request, forward it, and either write a buffered
// response or drive the streaming path. wroteAny reports whether any
// bytes reached the client during this attempt (used as the
// router.Forward streamingStarted signal so a post-commit failure
// surfaces as a stream abort rather than triggering failover).
func forwardOne(ctx context.Context, ac *attemptContext, svc types.UpstreamService, wroteAny *bool) router.Attempt {
	*wroteAny = false

	candReq, systemPrompt := prepareUpstreamRequest(ac.req, svc, ac.globalInject)
	ac.log.WithField("upstream", svc.Name).Debug("injection decision: injected=%v tools=%d", candReq.Injected, len(ac.req.Tools))
	if ac.convLogger != nil {
		ac.convLogger.LogInjection(ctx, ac.requestID, svc.Name, candReq.Injected, systemPrompt)
	}

	body, err := ac.transcoder.EncodeRequest(svc.ServiceType, candReq)
	if err != nil {
		return router.Attempt{Service: svc, Class: router.ClassClientError, Err: fmt.Errorf("encode upstream request: %w", err)}
	}

	httpReq, err := newUpstreamHTTPRequest(ctx, svc, candReq.Model, candReq.Stream, body)
	if err != nil {
		return router.Attempt{Service: svc, Class: router.ClassClientError, Err: fmt.Errorf("build upstream request: %w", err)}
	}

	resp, err := ac.client.Do(httpReq)
	if err != nil {
		return router.Attempt{Service: svc, Class: router.ClassifyError(err), Err: err}
	}
	defer resp.Body.Close()

	class := router.ClassifyHTTPStatus(resp.StatusCode)
	if class != router.ClassSuccess {
		respBody, _ := io.ReadAll(resp.Body)
		return router.Attempt{
			Service: svc, Class: class,
			Err: fmt.Errorf("upstream %s returned %d: %s", svc.Name, resp.StatusCode, string(respBody)),
		}
	}

	if candReq.Stream {
		err := streamResponse(ctx, ac, svc, candReq, resp.Body, wroteAny)
		return router.Attempt{Service: svc, Class: router.ClassSuccess, Err: err}
	}

	err = forwardNonStreaming(ctx, ac, svc, candReq, resp.Body)
	if err != nil {
		// Response arrived with a 2xx but Toolify failed to transcode or
		// write it; nothing left to retry against another candidate, the
		// failure is on our side of the boundary.
		return router.Attempt{Service: svc, Class: router.ClassSuccess, Err: err}
	}
	*wroteAny = true
	return router.Attempt{Service: svc, Class: router.ClassSuccess}
}

// forwardNonStreaming decodes the complete upstream body, resolves the
// native-tool-calls-vs-XML precedence (SPEC_FULL.md §10), synthesizes
// client-facing tool call IDs for any XML-extracted calls, re-encodes
// for the client's format and writes it.
func forwardNonStreaming(ctx context.Context, ac *attemptContext, svc types.UpstreamService, candReq types.Request, upstreamBody io.Reader) error {
	raw, err := io.ReadAll(upstreamBody)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}

	canonResp, err := ac.transcoder.DecodeResponse(svc.ServiceType, raw)
	if err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	canonResp.Model = ac.req.Model

	if candReq.Injected && !hasToolUse(canonResp.Content) {
		canonResp.Content = extractInjectedToolCalls(ac.toolMap, canonResp.Content)
		if hasToolUse(canonResp.Content) {
			canonResp.FinishReason = types.FinishToolUse
		}
	}

	out, err := ac.transcoder.EncodeResponse(ac.clientFormat, canonResp)
	if err != nil {
		return fmt.Errorf("encode client response: %w", err)
	}

	if ac.convLogger != nil {
		ac.convLogger.LogResponse(ctx, ac.requestID, canonResp)
	}

	ac.w.Header().Set("Content-Type", "application/json")
	_, err = ac.w.Write(out)
	return err
}

// hasToolUse reports whether content already contains a native tool
// call, per the decided precedence rule: native tool_calls wins over
// any XML grammar present in accompanying text.
func hasToolUse(content []types.ContentPart) bool {
	for _, c := range content {
		if c.Kind == types.PartToolUse {
			return true
		}
	}
	return false
}

// extractInjectedToolCalls runs the one-shot XML parser over every
// text part, replacing each one with its stripped text (if non-empty)
// followed by a PartToolUse part per recovered <tool_call> block. Each
// call gets a freshly synthesized client-facing ID, recorded in the
// identity map keyed to itself since a buffered (non-streaming)
// response has no separate upstream-assigned ID to correlate against.
func extractInjectedToolCalls(store toolmap.IDStore, content []types.ContentPart) []types.ContentPart {
	var out []types.ContentPart
	for _, part := range content {
		if part.Kind != types.PartText || !toolxml.ContainsToolCall(part.Text) {
			out = append(out, part)
			continue
		}
		result := toolxml.Parse(part.Text)
		if result.Text != "" {
			out = append(out, types.ContentPart{Kind: types.PartText, Text: result.Text})
		}
		for _, call := range result.ToolCalls {
			id := toolmap.NewClientID()
			store.Put(types.ToolCallIdentity{ClientID: id, UpstreamID: id})
			out = append(out, types.ContentPart{
				Kind:         types.PartToolUse,
				ToolCallID:   id,
				ToolName:     call.Name,
				ToolArgsJSON: call.ArgsJSON,
			})
		}
	}
	return out
}
