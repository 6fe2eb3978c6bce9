// Package config defines the taskmanager application configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. TASKMANAGER_AI_API_KEY.
const EnvPrefix = "TASKMANAGER"

// Config is the top-level taskmanager configuration.
type Config struct {
	Server    ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Auth      AuthConfig     `json:"auth" yaml:"auth" mapstructure:"auth"`
	Database  DatabaseConfig `json:"database" yaml:"database" mapstructure:"database"`
	AI        AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Speech    SpeechConfig   `json:"speech" yaml:"speech" mapstructure:"speech"`
	Reminders ReminderConfig `json:"reminders" yaml:"reminders" mapstructure:"reminders"`
	SMTP      SMTPConfig     `json:"smtp" yaml:"smtp" mapstructure:"smtp"`
	Storage   StorageConfig  `json:"storage" yaml:"storage" mapstructure:"storage"`
	LogLevel  string         `json:"log_level" yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string         `json:"log_format" yaml:"log_format" mapstructure:"log_format" validate:"oneof=text json"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"` // listen address, e.g., ":8000"
}

// AuthConfig controls account authentication.
type AuthConfig struct {
	JWTSecret       string        `json:"jwt_secret" yaml:"jwt_secret" mapstructure:"jwt_secret"` // generated per process when empty
	TokenTTL        time.Duration `json:"token_ttl" yaml:"token_ttl" mapstructure:"token_ttl" validate:"gt=0"`
	BcryptCost      int           `json:"bcrypt_cost" yaml:"bcrypt_cost" mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=31"`
	RequireVerified bool          `json:"require_verified" yaml:"require_verified" mapstructure:"require_verified"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required"`
}

// AIConfig selects the completion backend used by the assistant.
type AIConfig struct {
	Provider      string        `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=openai gemini mock"`
	BaseURL       string        `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey        string        `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	Model         string        `json:"model" yaml:"model" mapstructure:"model" validate:"required"`
	NativeTools   bool          `json:"native_tools" yaml:"native_tools" mapstructure:"native_tools"`
	MaxToolRounds int           `json:"max_tool_rounds" yaml:"max_tool_rounds" mapstructure:"max_tool_rounds" validate:"min=1,max=10"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"` // 0 = client default
}

// SpeechConfig points at an OpenAI-compatible transcription endpoint.
type SpeechConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	Model          string `json:"model" yaml:"model" mapstructure:"model"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// ReminderConfig controls the reminder dispatcher.
type ReminderConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval" validate:"gt=0"`
}

// SMTPConfig holds outgoing mail settings. An empty host logs mail instead of sending it.
type SMTPConfig struct {
	Host     string `json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `json:"port" yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	From     string `json:"from" yaml:"from" mapstructure:"from" validate:"omitempty,email"`
}

// StorageConfig controls where uploaded files go.
type StorageConfig struct {
	AttachmentsDir     string `json:"attachments_dir" yaml:"attachments_dir" mapstructure:"attachments_dir" validate:"required"`
	MaxAttachmentBytes int64  `json:"max_attachment_bytes" yaml:"max_attachment_bytes" mapstructure:"max_attachment_bytes" validate:"gt=0"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: "./data/taskmanager.db",
		},
		AI: AIConfig{
			Provider:      "openai",
			BaseURL:       "https://openrouter.ai/api/v1",
			Model:         "mistralai/mistral-7b-instruct",
			MaxToolRounds: 3,
		},
		Speech: SpeechConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "whisper-large-v3-turbo",
			MaxUploadBytes: 25 << 20,
		},
		Reminders: ReminderConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Storage: StorageConfig{
			AttachmentsDir:     "./data/attachments",
			MaxAttachmentBytes: 10 << 20,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

var validate = validator.New()

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory, then
// TASKMANAGER_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Every key of the current
// config is seeded into viper so AutomaticEnv can see it.
func applyEnv(cfg *Config) error {
	seed, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(seed)); err != nil {
		return fmt.Errorf("seed config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AI.Provider != "mock" && c.AI.APIKey == "" {
		return fmt.Errorf("invalid config: ai.api_key is required for provider %q", c.AI.Provider)
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
