package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "CAMPUSDESK_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Store      StoreConfig      `koanf:"store"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Governance GovernanceConfig `koanf:"governance"`
	Server     ServerConfig     `koanf:"server"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // openai, ollama, mock
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
}

type TelemetryConfig struct {
	Exporter       string `koanf:"exporter"` // none, stdout, otlp, prometheus
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	OTLPInsecure   bool   `koanf:"otlp_insecure"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
}

type StoreConfig struct {
	Path     string `koanf:"path"` // ":memory:" for a throwaway database
	Fixtures string `koanf:"fixtures"`
	Audit    bool   `koanf:"audit"`
	Redact   string `koanf:"redact"` // mask, hash, off
}

type DispatcherConfig struct {
	MaxRounds   int    `koanf:"max_rounds"`
	MaxParallel int    `koanf:"max_parallel"`
	PromptsFile string `koanf:"prompts_file"`
}

// GovernanceConfig narrows role tool sets beyond the built-in grants.
type GovernanceConfig struct {
	DenyTools []string           `koanf:"deny_tools"`
	Policies  []PolicyRuleConfig `koanf:"policies"`
}

type PolicyRuleConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"` // allow, deny
	Role   string `koanf:"role"`
	Tool   string `koanf:"tool"` // glob
	Reason string `koanf:"reason"`
}

type ServerConfig struct {
	Addr      string        `koanf:"addr"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second per identity
	RateBurst int           `koanf:"rate_burst"`
	Tokens    []TokenConfig `koanf:"tokens"`
}

// TokenConfig maps a bearer token onto verified claims.
type TokenConfig struct {
	Token string `koanf:"token"`
	Role  string `koanf:"role"`
	Sub   int64  `koanf:"sub"`
	Name  string `koanf:"name"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                 "info",
		"log.format":                "text",
		"llm.provider":              "openai",
		"llm.model":                 "llama-3.3-70b-versatile",
		"llm.base_url":              "https://api.groq.com/openai/v1",
		"llm.temperature":           0.0,
		"llm.timeout":               "60s",
		"llm.max_retries":           2,
		"telemetry.exporter":        "none",
		"telemetry.otlp_endpoint":   "localhost:4317",
		"telemetry.otlp_insecure":   true,
		"telemetry.service_name":    "campusdesk",
		"telemetry.service_version": "dev",
		"store.path":                "campusdesk.db",
		"store.audit":               true,
		"store.redact":              "mask",
		"dispatcher.max_rounds":     25,
		"dispatcher.max_parallel":   4,
		"server.addr":               ":8080",
		"server.rate_limit":         2.0,
		"server.rate_burst":         5,
	}
}

// Load reads defaults, then the YAML file at path (if any), then
// CAMPUSDESK_* environment variables, then key=value overrides.
func Load(path string, overrides ...string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// CAMPUSDESK_LLM_API_KEY -> llm.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid override %q, want key=value", o)
		}
		if err := k.Set(strings.TrimSpace(key), value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps an environment variable onto a koanf path. Only the first
// underscore separates section from key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ollama", "mock":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp", "prometheus":
	default:
		return fmt.Errorf("telemetry.exporter %q is not supported", c.Telemetry.Exporter)
	}
	switch c.Store.Redact {
	case "", "mask", "hash", "off":
	default:
		return fmt.Errorf("store.redact %q must be mask, hash or off", c.Store.Redact)
	}
	if c.Dispatcher.MaxRounds < 1 {
		return fmt.Errorf("dispatcher.max_rounds must be positive")
	}
	if c.Dispatcher.MaxParallel < 1 {
		return fmt.Errorf("dispatcher.max_parallel must be positive")
	}
	for i, p := range c.Governance.Policies {
		switch strings.ToLower(p.Effect) {
		case "allow", "deny":
		default:
			return fmt.Errorf("governance.policies[%d]: effect %q must be allow or deny", i, p.Effect)
		}
	}
	return nil
}
