package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ImogeneOctaviap794/Toolify-code/codec"
	"github.com/ImogeneOctaviap794/Toolify-code/config"
	"github.com/ImogeneOctaviap794/Toolify-code/logger"
	"github.com/ImogeneOctaviap794/Toolify-code/proxy"
	"github.com/ImogeneOctaviap794/Toolify-code/router"
	"github.com/ImogeneOctaviap794/Toolify-code/toolmap"
	"github.com/ImogeneOctaviap794/Toolify-code/transcoder"
)

func main() {
	fmt.Println(GetBuildInfo())
	fmt.Println()

	cfg, err := config.LoadConfigWithEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	obs := setupObservability(cfg)
	cfg.SetObservabilityLogger(obs)

	convLogger := setupConversationLogger(cfg)

	snapshot := config.NewSnapshot(cfg)
	tc := transcoder.New(codec.NewDefaultRegistry())

	endpointNames := make([]string, 0, len(cfg.Upstreams))
	for _, svc := range cfg.Upstreams {
		endpointNames = append(endpointNames, svc.Name)
	}
	cfg.HealthManager.InitializeEndpoints(endpointNames)

	rtr := router.New(cfg.Upstreams, cfg.HealthManager)
	store := setupToolMap(cfg)

	handler := proxy.NewHandler(snapshot, tc, rtr, store, obs, convLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/chat/completions", handler.HandleOpenAI)
	mux.HandleFunc("/v1/messages", handler.HandleAnthropic)
	mux.HandleFunc("/v1/models", handler.HandleModels)
	mux.HandleFunc("/v1/health/upstreams", handler.HandleUpstreamHealth)
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		if hasSuffix(r.URL.Path, ":streamGenerateContent") {
			handler.HandleGeminiStream(w, r)
			return
		}
		handler.HandleGeminiGenerate(w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // long enough for a legitimate SSE stream
		IdleTimeout:  60 * time.Second,
	}

	obs.Info(logger.ComponentProxy, logger.CategoryRequest, "", "Toolify starting", map[string]interface{}{
		"address":    fmt.Sprintf("http://%s", server.Addr),
		"upstreams":  len(cfg.Upstreams),
		"version":    GetVersionInfo(),
		"git_commit": GetGitCommit(),
	})

	if err := server.ListenAndServe(); err != nil {
		obs.Error(logger.ComponentProxy, logger.CategoryError, "", "server failed to start", map[string]interface{}{"error": err.Error()})
		log.Fatalf("server failed to start: %v", err)
	}
}

// setupObservability always wires the Loki HTTP push sink, taking its
// URL from the features config, then LOKI_URL, and falling back to
// http://localhost:3100 when neither is set, matching the teacher's own
// direct-HTTP-push logging setup.
func setupObservability(cfg *config.Config) *logger.LokiObservabilityLogger {
	lokiURL := cfg.Features.LokiURL
	if lokiURL == "" {
		lokiURL = os.Getenv("LOKI_URL")
	}
	if lokiURL == "" {
		lokiURL = "http://localhost:3100"
	}

	loggerCfg := logger.NewConfigAdapter(cfg)
	lokiLogger, err := logger.NewLokiLogger(context.Background(), loggerCfg, lokiURL)
	if err != nil {
		log.Fatalf("failed to initialize Loki logger: %v", err)
	}
	return &logger.LokiObservabilityLogger{LokiLogger: lokiLogger.(*logger.LokiLogger)}
}

func setupConversationLogger(cfg *config.Config) *logger.ConversationLogger {
	if !cfg.Features.ConversationLoggingEnabled {
		return nil
	}
	cl, err := logger.NewConversationLogger("logs/conversations", logger.INFO, cfg.Features.ConversationMaskSensitive, false, cfg.Features.ConversationTruncation)
	if err != nil {
		log.Printf("conversation logging disabled: failed to initialize: %v", err)
		return nil
	}
	return cl
}

// setupToolMap builds the configured Tool-Call Identity Map backend:
// an in-process LRU map by default, or a Redis-backed store when
// tool_map_backend is "redis" (spec.md §5.5's optional persistence).
func setupToolMap(cfg *config.Config) toolmap.IDStore {
	if cfg.Features.ToolMapBackend != "redis" {
		return toolmap.New()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Features.RedisAddr})
	return toolmap.NewRedisStore(client, cfg.Features.RedisKeyPrefix)
}

func hasSuffix(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return s[len(s)-len(suffix):] == suffix
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
  "service": "Toolify",
  "version": %q,
  "status": "running",
  "endpoints": [
    "/v1/chat/completions",
    "/v1/messages",
    "/v1beta/models/{model}:generateContent",
    "/v1beta/models/{model}:streamGenerateContent",
    "/v1/models",
    "/v1/health/upstreams"
  ]
}`, GetVersionInfo())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
