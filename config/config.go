package config

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/ImogeneOctaviap794/Toolify-code/circuitbreaker"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Config is the complete, immutable snapshot of Toolify's runtime
// configuration: server binding, the priority-ordered upstream
// service list, client/admin authentication, and feature defaults.
//
// Configuration sources (in order of precedence):
//  1. Environment variables from .env file (required: server + auth)
//  2. A YAML services file (required: at least one upstream service)
//  3. Default values (feature flags only)
//
// A Config is never mutated after LoadConfigWithEnv returns it; runtime
// reloads swap a whole new *Config into the atomic.Pointer held by the
// proxy core rather than mutating fields in place.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Upstreams  []types.UpstreamService `json:"upstream_services"`
	ClientAuth ClientAuthConfig `json:"client_authentication"`
	AdminAuth  AdminAuthConfig  `json:"admin_authentication"`
	Features   FeaturesConfig   `json:"features"`

	// HealthManager tracks per-upstream circuit breaker state, shared
	// with the router.
	HealthManager *circuitbreaker.HealthManager `json:"-"`

	obsLogger interface {
		Info(component, category, requestID, message string, fields map[string]interface{})
		Warn(component, category, requestID, message string, fields map[string]interface{})
		Error(component, category, requestID, message string, fields map[string]interface{})
	} `json:"-"`
}

// ServerConfig holds the HTTP listener's own settings.
type ServerConfig struct {
	Host                     string `json:"host"`
	Port                     string `json:"port"`
	DefaultConnectionTimeout int    `json:"default_connection_timeout"` // seconds
}

// ClientAuthConfig lists the API keys this proxy accepts from clients.
// An empty AllowedKeys disables authentication entirely (local/dev use).
type ClientAuthConfig struct {
	AllowedKeys []string `json:"allowed_keys"`
}

// AdminAuthConfig is retained for forward compatibility with an admin
// API (reload config, inspect router health) that is out of scope for
// this proxy core; fields are loaded but never read by request
// handling.
type AdminAuthConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
}

// FeaturesConfig holds proxy-wide feature defaults. Per-upstream
// settings on types.UpstreamService override these when set.
type FeaturesConfig struct {
	DefaultInjectFunctionCalling bool `json:"default_inject_function_calling"`
	DefaultOptimizePrompt        bool `json:"default_optimize_prompt"`

	ToolMapBackend  string `json:"tool_map_backend"`  // "memory" (default) or "redis"
	RedisAddr       string `json:"redis_addr"`
	RedisKeyPrefix  string `json:"redis_key_prefix"`

	ConversationLoggingEnabled bool `json:"conversation_logging_enabled"`
	ConversationMaskSensitive  bool `json:"conversation_mask_sensitive"`
	ConversationTruncation     int  `json:"conversation_truncation"`

	LokiURL string `json:"loki_url"` // empty disables the Loki sink
}

// SetObservabilityLogger wires structured logging into the config
// loader and its shared HealthManager.
func (c *Config) SetObservabilityLogger(obsLogger interface {
	Info(component, category, requestID, message string, fields map[string]interface{})
	Warn(component, category, requestID, message string, fields map[string]interface{})
	Error(component, category, requestID, message string, fields map[string]interface{})
}) {
	c.obsLogger = obsLogger
	if c.HealthManager != nil {
		c.HealthManager.SetObservabilityLogger(obsLogger)
	}
}

func (c *Config) logInfo(component, category, requestID, message string, fields map[string]interface{}) {
	if c.obsLogger != nil {
		c.obsLogger.Info(component, category, requestID, message, fields)
	}
}

func (c *Config) logWarn(component, category, requestID, message string, fields map[string]interface{}) {
	if c.obsLogger != nil {
		c.obsLogger.Warn(component, category, requestID, message, fields)
	}
}

// GetDefaultConfig returns a Config populated with sensible defaults
// for testing; it has no upstream services and accepts any client.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     "3456",
			DefaultConnectionTimeout: 10,
		},
		Upstreams:  []types.UpstreamService{},
		ClientAuth: ClientAuthConfig{AllowedKeys: []string{}},
		Features: FeaturesConfig{
			ToolMapBackend:            "memory",
			ConversationMaskSensitive: true,
		},
		HealthManager: circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig()),
	}
}

// upstreamServicesYAML is the on-disk shape of the required services
// file (default path "upstream_services.yaml", overridable via the
// UPSTREAM_SERVICES_FILE env var).
type upstreamServicesYAML struct {
	UpstreamServices []upstreamServiceYAML `yaml:"upstream_services"`
}

type upstreamServiceYAML struct {
	Name                   string            `yaml:"name"`
	ServiceType            string            `yaml:"service_type"` // "openai" | "anthropic" | "gemini"
	BaseURL                string            `yaml:"base_url"`
	APIKey                 string            `yaml:"api_key"` // supports ${ENV_VAR} expansion
	Priority               int               `yaml:"priority"`
	Models                 []string          `yaml:"models"`
	ModelMapping           map[string]string `yaml:"model_mapping"`
	InjectFunctionCalling  *bool             `yaml:"inject_function_calling"`
	OptimizePrompt         bool              `yaml:"optimize_prompt"`
}

// LoadConfigWithEnv loads the complete proxy configuration: required
// scalar settings from .env, the upstream service list from a YAML
// file, and feature defaults layered under both. Any missing required
// value fails the whole load — this proxy never starts half-configured.
func LoadConfigWithEnv() (*Config, error) {
	envVars, err := loadEnvFile()
	if err != nil {
		return nil, fmt.Errorf(".env file is required for configuration: %v", err)
	}

	cfg := GetDefaultConfig()

	if port, ok := envVars["PORT"]; ok && port != "" {
		cfg.Server.Port = port
	}
	if host, ok := envVars["HOST"]; ok && host != "" {
		cfg.Server.Host = host
	}
	if timeout, ok := envVars["DEFAULT_CONNECTION_TIMEOUT"]; ok && timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_CONNECTION_TIMEOUT must be an integer: %v", err)
		}
		cfg.Server.DefaultConnectionTimeout = n
	}

	if keys, ok := envVars["CLIENT_API_KEYS"]; ok && keys != "" {
		cfg.ClientAuth.AllowedKeys = splitAndTrim(keys)
	}

	if adminKey, ok := envVars["ADMIN_API_KEY"]; ok && adminKey != "" {
		cfg.AdminAuth.Enabled = true
		cfg.AdminAuth.APIKey = adminKey
	}

	if v, ok := envVars["DEFAULT_INJECT_FUNCTION_CALLING"]; ok {
		cfg.Features.DefaultInjectFunctionCalling = parseBoolDefault(v, cfg.Features.DefaultInjectFunctionCalling)
	}
	if v, ok := envVars["DEFAULT_OPTIMIZE_PROMPT"]; ok {
		cfg.Features.DefaultOptimizePrompt = parseBoolDefault(v, cfg.Features.DefaultOptimizePrompt)
	}
	if v, ok := envVars["TOOL_MAP_BACKEND"]; ok && v != "" {
		cfg.Features.ToolMapBackend = v
	}
	if v, ok := envVars["REDIS_ADDR"]; ok {
		cfg.Features.RedisAddr = v
	}
	if v, ok := envVars["REDIS_KEY_PREFIX"]; ok && v != "" {
		cfg.Features.RedisKeyPrefix = v
	}
	if v, ok := envVars["LOKI_URL"]; ok {
		cfg.Features.LokiURL = v
	}
	if v, ok := envVars["CONVERSATION_LOGGING_ENABLED"]; ok {
		cfg.Features.ConversationLoggingEnabled = parseBoolDefault(v, false)
	}
	if v, ok := envVars["CONVERSATION_MASK_SENSITIVE"]; ok {
		cfg.Features.ConversationMaskSensitive = parseBoolDefault(v, true)
	}
	if v, ok := envVars["CONVERSATION_TRUNCATION"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CONVERSATION_TRUNCATION must be an integer: %v", err)
		}
		cfg.Features.ConversationTruncation = n
	}

	servicesFile := "upstream_services.yaml"
	if v, ok := envVars["UPSTREAM_SERVICES_FILE"]; ok && v != "" {
		servicesFile = v
	}
	services, err := loadUpstreamServices(servicesFile)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("at least one upstream service must be configured in %s", servicesFile)
	}
	cfg.Upstreams = services

	for _, s := range services {
		cfg.logInfo("configuration", "request", "", "upstream service configured", map[string]interface{}{
			"name":           s.Name,
			"service_type":   s.ServiceType,
			"priority":       s.Priority,
			"api_key_masked": maskAPIKey(s.APIKey),
		})
	}

	cfg.logInfo("configuration", "request", "", "configuration loaded", map[string]interface{}{
		"upstream_count": len(services),
		"client_key_count": len(cfg.ClientAuth.AllowedKeys),
	})

	return cfg, nil
}

// loadUpstreamServices reads and validates the YAML upstream service
// list, expanding ${VAR} references in base_url/api_key against the
// process environment (os.ExpandEnv) so secrets never need to be
// committed to the services file itself.
func loadUpstreamServices(path string) ([]types.UpstreamService, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	var raw upstreamServicesYAML
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}

	out := make([]types.UpstreamService, 0, len(raw.UpstreamServices))
	for _, s := range raw.UpstreamServices {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: an upstream service entry is missing name", path)
		}
		serviceType, err := parseServiceType(s.ServiceType)
		if err != nil {
			return nil, fmt.Errorf("%s: service %q: %v", path, s.Name, err)
		}
		out = append(out, types.UpstreamService{
			Name:                  s.Name,
			ServiceType:           serviceType,
			BaseURL:               os.ExpandEnv(s.BaseURL),
			APIKey:                os.ExpandEnv(s.APIKey),
			Priority:              s.Priority,
			Models:                s.Models,
			ModelMapping:          s.ModelMapping,
			InjectFunctionCalling: s.InjectFunctionCalling,
			OptimizePrompt:        s.OptimizePrompt,
		})
	}
	return out, nil
}

func parseServiceType(s string) (types.Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return types.FormatOpenAI, nil
	case "anthropic":
		return types.FormatAnthropic, nil
	case "gemini":
		return types.FormatGemini, nil
	default:
		return "", fmt.Errorf("unknown service_type %q (want openai, anthropic, or gemini)", s)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolDefault(s string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// loadEnvFile loads environment variables from .env file in current directory.
func loadEnvFile() (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(".env")
	if err != nil {
		return envVars, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if commentIndex := strings.Index(value, "#"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}

		envVars[key] = value
	}

	return envVars, scanner.Err()
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}

// AuthenticateClient reports whether key is one of the configured
// client API keys. An empty AllowedKeys list means authentication is
// disabled and any key (including none) is accepted.
func (c *Config) AuthenticateClient(key string) bool {
	if len(c.ClientAuth.AllowedKeys) == 0 {
		return true
	}
	for _, allowed := range c.ClientAuth.AllowedKeys {
		if subtle.ConstantTimeCompare([]byte(allowed), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Snapshot is an atomically-swappable holder for the current Config,
// letting the proxy core reload configuration (new upstream priorities,
// new client keys) without interrupting in-flight requests: readers
// always see either the old or the new Config in full, never a mix of
// fields from both. Generalizes the teacher's single long-lived,
// field-mutex-protected Config struct to a whole-struct atomic swap.
type Snapshot struct {
	ptr atomic.Pointer[Config]
}

// NewSnapshot wraps an initial Config in a Snapshot.
func NewSnapshot(initial *Config) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(initial)
	return s
}

// Get returns the currently active Config. Safe for concurrent use
// with Store.
func (s *Snapshot) Get() *Config {
	return s.ptr.Load()
}

// Store atomically replaces the active Config.
func (s *Snapshot) Store(cfg *Config) {
	s.ptr.Store(cfg)
}
