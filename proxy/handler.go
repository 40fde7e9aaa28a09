// Package proxy implements the Proxy Core (spec.md §4.7): the HTTP
// handlers that decode an inbound request by its wire format, route it
// across the configured upstreams, forward it with per-candidate
// function-calling injection, and re-encode the result for the client.
//
// Grounded on proxy/handler.go's HandleAnthropicRequest assembly shape
// (decode -> transform -> route -> forward -> transform -> respond),
// generalized from the teacher's single Anthropic-only route to the
// five routes spec.md §6 names across three client formats.
package proxy

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ImogeneOctaviap794/Toolify-code/config"
	"github.com/ImogeneOctaviap794/Toolify-code/logger"
	"github.com/ImogeneOctaviap794/Toolify-code/router"
	"github.com/ImogeneOctaviap794/Toolify-code/toolifyerr"
	"github.com/ImogeneOctaviap794/Toolify-code/toolmap"
	"github.com/ImogeneOctaviap794/Toolify-code/transcoder"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// obsLogger is the narrow structured-logging surface the Proxy Core
// needs from either concrete observability backend (logrus file sink
// or Loki HTTP push), matching circuitbreaker.HealthManager's own
// SetObservabilityLogger parameter shape.
type obsLogger interface {
	Info(component, category, requestID, message string, fields map[string]interface{})
	Warn(component, category, requestID, message string, fields map[string]interface{})
	Error(component, category, requestID, message string, fields map[string]interface{})
}

// Handler wires every piece the Proxy Core depends on: the live
// configuration snapshot, the format transcoder, the upstream router,
// the tool-call identity map, and the two logging sinks.
type Handler struct {
	snapshot   *config.Snapshot
	transcoder *transcoder.Transcoder
	router     *router.Router
	toolMap    toolmap.IDStore
	obs        obsLogger
	convLogger *logger.ConversationLogger
}

// NewHandler assembles a Handler from its dependencies. obs and
// convLogger may be nil: a nil obs disables structured component
// logging and a nil convLogger disables full-conversation file
// logging, both independently of request handling succeeding.
func NewHandler(snapshot *config.Snapshot, tc *transcoder.Transcoder, rtr *router.Router, toolMap toolmap.IDStore, obs obsLogger, convLogger *logger.ConversationLogger) *Handler {
	return &Handler{
		snapshot:   snapshot,
		transcoder: tc,
		router:     rtr,
		toolMap:    toolMap,
		obs:        obs,
		convLogger: convLogger,
	}
}

// HandleOpenAI serves POST /v1/chat/completions.
func (h *Handler) HandleOpenAI(w http.ResponseWriter, r *http.Request) {
	h.handleWithModelOverride(w, r, types.FormatOpenAI, "", false)
}

// HandleAnthropic serves POST /v1/messages.
func (h *Handler) HandleAnthropic(w http.ResponseWriter, r *http.Request) {
	h.handleWithModelOverride(w, r, types.FormatAnthropic, "", false)
}

// HandleGeminiGenerate serves POST /v1beta/models/{model}:generateContent.
func (h *Handler) HandleGeminiGenerate(w http.ResponseWriter, r *http.Request) {
	h.handleWithModelOverride(w, r, types.FormatGemini, geminiModelFromPath(r.URL.Path), false)
}

// HandleGeminiStream serves POST /v1beta/models/{model}:streamGenerateContent.
func (h *Handler) HandleGeminiStream(w http.ResponseWriter, r *http.Request) {
	h.handleWithModelOverride(w, r, types.FormatGemini, geminiModelFromPath(r.URL.Path), true)
}

// geminiModelFromPath extracts {model} from a path of the shape
// /v1beta/models/{model}:generateContent or
// /v1beta/models/{model}:streamGenerateContent.
func geminiModelFromPath(path string) string {
	const prefix = "/v1beta/models/"
	rest := strings.TrimPrefix(path, prefix)
	if idx := strings.LastIndex(rest, ":"); idx != -1 {
		return rest[:idx]
	}
	return rest
}

// handleWithModelOverride is the shared core behind every route:
// authenticate, decode, route, forward, respond. modelOverride is set
// only for Gemini, whose model name travels in the URL path rather
// than the request body; forceStream likewise only matters for
// Gemini, whose streaming-vs-not distinction is a separate URL suffix
// rather than a body field.
func (h *Handler) handleWithModelOverride(w http.ResponseWriter, r *http.Request, clientFormat types.Format, modelOverride string, forceStream bool) {
	requestID := generateRequestID()
	ctx := withRequestID(r.Context(), requestID)
	r = r.WithContext(ctx)

	cfg := h.snapshot.Get()
	log := logger.FromContext(ctx, logger.NewConfigAdapter(cfg)).WithComponent(logger.ComponentProxy)

	cred := clientCredential(r, clientFormat)
	if !cfg.AuthenticateClient(cred) {
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.New(toolifyerr.KindUnauthorized, "invalid or missing API key", nil))
		return
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.New(toolifyerr.KindMalformedRequest, "failed to read request body", err))
		return
	}

	req, err := h.transcoder.DecodeRequest(clientFormat, body)
	if err != nil {
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.New(toolifyerr.KindMalformedRequest, "failed to decode request", err))
		return
	}
	if modelOverride != "" {
		req.Model = modelOverride
	}
	if forceStream {
		req.Stream = true
	}

	for _, warning := range transcoder.CheckToolSchemas(req.Tools) {
		log.Warn("malformed tool declaration: %s", warning)
	}

	if h.convLogger != nil {
		h.convLogger.LogConversationStart(ctx, requestID)
		h.convLogger.LogRequest(ctx, requestID, req)
	}

	candidates := h.router.Candidates(req.Model)
	if len(candidates) == 0 {
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.New(toolifyerr.KindModelUnavailable, "no upstream configured for model \""+req.Model+"\"", nil))
		return
	}

	client := newUpstreamClient(cfg.Server.DefaultConnectionTimeout)
	flusher, _ := w.(http.Flusher)

	var wroteAny bool
	attempt := func(attemptCtx context.Context, svc types.UpstreamService) router.Attempt {
		ac := &attemptContext{
			client:       client,
			transcoder:   h.transcoder,
			toolMap:      h.toolMap,
			clientFormat: clientFormat,
			req:          req,
			globalInject: cfg.Features.DefaultInjectFunctionCalling,
			requestID:    requestID,
			w:            w,
			flusher:      flusher,
			log:          log,
			convLogger:   h.convLogger,
		}
		return forwardOne(attemptCtx, ac, svc, &wroteAny)
	}

	result, forwardErr := h.router.Forward(ctx, req.Model, attempt, func() bool { return wroteAny })
	h.logOutcome(log, result, forwardErr)

	switch {
	case forwardErr != nil:
		// Every retriable candidate was exhausted, or no candidate was
		// healthy to begin with; streaming-commit means wroteAny can
		// never be true here (spec.md §4.6).
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.Wrapf(toolifyerr.KindUpstreamExhausted, forwardErr, "all upstream candidates failed"))
	case result.Class == router.ClassClientError:
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.Wrapf(toolifyerr.KindUpstreamRefused, result.Err, "upstream %s refused the request", result.Service.Name))
	case result.Err != nil && !wroteAny:
		// A local encode/decode/write failure after a 2xx upstream
		// response; not the upstream's fault, but nothing was sent yet.
		toolifyerr.WriteJSON(w, clientFormat, toolifyerr.Wrapf(toolifyerr.KindUpstreamExhausted, result.Err, "failed to render upstream response"))
	}

	if h.convLogger != nil {
		h.convLogger.LogConversationEnd(ctx, requestID, map[string]interface{}{"upstream": result.Service.Name})
	}
}

func (h *Handler) logOutcome(log logger.Logger, result router.Attempt, forwardErr error) {
	if forwardErr == nil && result.Err == nil {
		return
	}
	err := result.Err
	if err == nil {
		err = forwardErr
	}
	if h.obs != nil {
		h.obs.Error(logger.ComponentProxy, logger.CategoryFailover, "", err.Error(), map[string]interface{}{
			"upstream": result.Service.Name,
		})
	}
	log.WithField("upstream", result.Service.Name).Warn("forward failed: %v", err)
}
