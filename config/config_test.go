package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmanager.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	path := writeConfig(t, `
server:
  addr: ":9999"
ai:
  provider: mock
  model: test-model
  max_tool_rounds: 5
reminders:
  interval: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9999")
	}
	if cfg.AI.MaxToolRounds != 5 {
		t.Errorf("AI.MaxToolRounds = %d, want 5", cfg.AI.MaxToolRounds)
	}
	if cfg.Reminders.Interval != 30*time.Second {
		t.Errorf("Reminders.Interval = %v, want 30s", cfg.Reminders.Interval)
	}
	// Untouched defaults survive.
	if cfg.Speech.Model != "whisper-large-v3-turbo" {
		t.Errorf("Speech.Model = %q", cfg.Speech.Model)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TASKMANAGER_AI_API_KEY", "sk-env")
	t.Setenv("TASKMANAGER_AI_NATIVE_TOOLS", "true")
	t.Setenv("TASKMANAGER_SERVER_ADDR", ":7000")
	t.Setenv("TASKMANAGER_AUTH_TOKEN_TTL", "2h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "sk-env" {
		t.Errorf("AI.APIKey = %q, want sk-env", cfg.AI.APIKey)
	}
	if !cfg.AI.NativeTools {
		t.Error("AI.NativeTools = false, want true")
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want :7000", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 2h", cfg.Auth.TokenTTL)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKMANAGER_AI_API_KEY=sk-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TASKMANAGER_AI_API_KEY") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "sk-dotenv" {
		t.Errorf("AI.APIKey = %q, want sk-dotenv", cfg.AI.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults need an api key", func(*Config) {}, "ai.api_key"},
		{"mock needs no key", func(c *Config) { c.AI.Provider = "mock" }, ""},
		{"unknown provider", func(c *Config) { c.AI.Provider = "llama"; c.AI.APIKey = "k" }, "Provider"},
		{"bad log level", func(c *Config) { c.AI.Provider = "mock"; c.LogLevel = "loud" }, "LogLevel"},
		{"rounds out of range", func(c *Config) { c.AI.Provider = "mock"; c.AI.MaxToolRounds = 0 }, "MaxToolRounds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("logger output = %q", out)
	}
}
