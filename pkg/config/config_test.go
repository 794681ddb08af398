package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Dispatcher.MaxRounds != 25 {
		t.Errorf("expected 25 max rounds, got %d", cfg.Dispatcher.MaxRounds)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.LLM.Timeout)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Server.Addr)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CAMPUSDESK_LLM_API_KEY", "gsk-test")
	t.Setenv("CAMPUSDESK_DISPATCHER_MAX_ROUNDS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.APIKey != "gsk-test" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Dispatcher.MaxRounds != 7 {
		t.Errorf("expected max rounds 7 from env, got %d", cfg.Dispatcher.MaxRounds)
	}
}

func TestLoadFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campusdesk.yaml")
	content := `
llm:
  provider: ollama
  model: llama3.1
  base_url: http://localhost:11434
store:
  path: ":memory:"
governance:
  deny_tools: ["delete_*"]
  policies:
    - id: no-student-events
      effect: deny
      role: student
      tool: "*_event*"
      reason: events are announced in class
server:
  tokens:
    - token: t-admin
      role: admin
      sub: 1
      name: Root
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, "llm.model=qwen2.5", "dispatcher.max_parallel=2")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider from file, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "qwen2.5" {
		t.Errorf("expected override model, got %s", cfg.LLM.Model)
	}
	if cfg.Dispatcher.MaxParallel != 2 {
		t.Errorf("expected max_parallel 2, got %d", cfg.Dispatcher.MaxParallel)
	}
	if cfg.Store.Path != ":memory:" {
		t.Errorf("expected in-memory store, got %s", cfg.Store.Path)
	}
	if len(cfg.Governance.DenyTools) != 1 || cfg.Governance.DenyTools[0] != "delete_*" {
		t.Errorf("unexpected deny tools %v", cfg.Governance.DenyTools)
	}
	if len(cfg.Governance.Policies) != 1 || cfg.Governance.Policies[0].Role != "student" {
		t.Errorf("unexpected policies %+v", cfg.Governance.Policies)
	}
	if len(cfg.Server.Tokens) != 1 || cfg.Server.Tokens[0].Sub != 1 {
		t.Errorf("unexpected tokens %+v", cfg.Server.Tokens)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
	}{
		{"provider", []string{"llm.provider=anthropic"}},
		{"exporter", []string{"telemetry.exporter=jaeger"}},
		{"rounds", []string{"dispatcher.max_rounds=0"}},
		{"redact", []string{"store.redact=shred"}},
		{"malformed", []string{"no-equals-sign"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load("", tt.overrides...); err == nil {
				t.Fatalf("expected error for %v", tt.overrides)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CAMPUSDESK_LLM_API_KEY":      "llm.api_key",
		"CAMPUSDESK_LOG_LEVEL":        "log.level",
		"CAMPUSDESK_SERVER_RATE_BURST": "server.rate_burst",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%s) = %s, want %s", in, got, want)
		}
	}
}
