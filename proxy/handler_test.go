package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ImogeneOctaviap794/Toolify-code/circuitbreaker"
	"github.com/ImogeneOctaviap794/Toolify-code/codec"
	"github.com/ImogeneOctaviap794/Toolify-code/config"
	"github.com/ImogeneOctaviap794/Toolify-code/router"
	"github.com/ImogeneOctaviap794/Toolify-code/toolmap"
	"github.com/ImogeneOctaviap794/Toolify-code/transcoder"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func newTestHandler(t *testing.T, upstreams []types.UpstreamService) *Handler {
	t.Helper()
	health := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig())
	names := make([]string, 0, len(upstreams))
	for _, u := range upstreams {
		names = append(names, u.Name)
	}
	health.InitializeEndpoints(names)

	cfg := &config.Config{
		Server:     config.ServerConfig{DefaultConnectionTimeout: 5},
		Upstreams:  upstreams,
		ClientAuth: config.ClientAuthConfig{},
		Features:   config.FeaturesConfig{DefaultInjectFunctionCalling: false},
	}
	snapshot := config.NewSnapshot(cfg)
	tc := transcoder.New(codec.NewDefaultRegistry())
	rtr := router.New(upstreams, health)
	return NewHandler(snapshot, tc, rtr, toolmap.New(), nil, nil)
}

// Scenario A — OpenAI in, OpenAI out, pass-through (spec.md §8).
func TestHandleOpenAI_PassThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	h := newTestHandler(t, []types.UpstreamService{
		{Name: "openai-primary", ServiceType: types.FormatOpenAI, BaseURL: upstream.URL, APIKey: "key", Priority: 100},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	h.HandleOpenAI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	choices, _ := out["choices"].([]interface{})
	if len(choices) != 1 {
		t.Fatalf("expected one choice, got %v", out)
	}
}

// Scenario C — priority failover: primary returns 429, backup succeeds.
func TestHandleOpenAI_PriorityFailover(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer primary.Close()

	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer backup.Close()

	h := newTestHandler(t, []types.UpstreamService{
		{Name: "primary", ServiceType: types.FormatOpenAI, BaseURL: primary.URL, APIKey: "key", Priority: 100},
		{Name: "backup", ServiceType: types.FormatOpenAI, BaseURL: backup.URL, APIKey: "key", Priority: 50},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	h.HandleOpenAI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected success from backup, got status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("expected backup's response body, got %s", w.Body.String())
	}
}

// Scenario E — non-retriable error: upstream returns 401, no failover attempted.
func TestHandleOpenAI_NonRetriableError(t *testing.T) {
	calls := 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer primary.Close()

	backupCalls := 0
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupCalls++
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"should not be reached"},"finish_reason":"stop"}]}`))
	}))
	defer backup.Close()

	h := newTestHandler(t, []types.UpstreamService{
		{Name: "primary", ServiceType: types.FormatOpenAI, BaseURL: primary.URL, APIKey: "key", Priority: 100},
		{Name: "backup", ServiceType: types.FormatOpenAI, BaseURL: backup.URL, APIKey: "key", Priority: 50},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	h.HandleOpenAI(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 surfaced to client, got %d body %s", w.Code, w.Body.String())
	}
	if backupCalls != 0 {
		t.Fatalf("backup should never be attempted after a terminal 4xx, got %d calls", backupCalls)
	}
}

// Scenario B — Anthropic in, OpenAI upstream, tool injection over a
// buffered (non-streaming) response.
func TestHandleAnthropic_ToolInjectionBuffered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var decoded map[string]interface{}
		json.NewDecoder(r.Body).Decode(&decoded)
		if _, hasTools := decoded["tools"]; hasTools {
			t.Errorf("expected tools to be stripped from the injected upstream request")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` +
			`<tool_call><name>get_weather</name><arguments>{\"city\":\"Tokyo\"}</arguments></tool_call>` +
			`"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	inject := true
	h := newTestHandler(t, []types.UpstreamService{
		{Name: "openai-noncall", ServiceType: types.FormatOpenAI, BaseURL: upstream.URL, APIKey: "key", Priority: 100, InjectFunctionCalling: &inject},
	})

	body := `{"model":"claude-3","max_tokens":100,"messages":[{"role":"user","content":"weather in tokyo?"}],` +
		`"tools":[{"name":"get_weather","description":"gets weather","input_schema":{"type":"object"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleAnthropic(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["stop_reason"] != "tool_use" {
		t.Fatalf("expected stop_reason tool_use, got %v", out)
	}
	content, _ := out["content"].([]interface{})
	var sawToolUse bool
	for _, c := range content {
		block, _ := c.(map[string]interface{})
		if block["type"] == "tool_use" && block["name"] == "get_weather" {
			sawToolUse = true
		}
	}
	if !sawToolUse {
		t.Fatalf("expected a tool_use content block, got %v", content)
	}
}
