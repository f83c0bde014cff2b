package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend names accepted by MODEL_BACKEND.
const (
	BackendGemini = "gemini"
	BackendClaude = "claude"
	BackendOllama = "ollama"
)

type Config struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	DBPath            string        `mapstructure:"db_path"`
	ModelBackend      string        `mapstructure:"model_backend"`
	GoogleAPIKey      string        `mapstructure:"google_api_key"`
	GeminiModel       string        `mapstructure:"gemini_model"`
	ClaudeAPIKey      string        `mapstructure:"claude_api_key"`
	ClaudeModel       string        `mapstructure:"claude_model"`
	OllamaHost        string        `mapstructure:"ollama_host"`
	OllamaModel       string        `mapstructure:"ollama_model"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	MaxImageBytes     int64         `mapstructure:"max_image_bytes"`
	ScanRatePerMinute int           `mapstructure:"scan_rate_per_minute"`
	ScanBurst         int           `mapstructure:"scan_burst"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	LogFile           string        `mapstructure:"log_file"`
}

// Load reads configuration from an optional .env file, an optional
// eatinformed.yaml and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigName("eatinformed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/eatinformed")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv overrides are visible to
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "/data/eatinformed.db")
	v.SetDefault("model_backend", BackendGemini)
	v.SetDefault("google_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("claude_api_key", "")
	v.SetDefault("claude_model", "claude-sonnet-4-5")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("ollama_model", "llava")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("max_image_bytes", 10<<20)
	v.SetDefault("scan_rate_per_minute", 10)
	v.SetDefault("scan_burst", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
}

func (c *Config) validate() error {
	switch c.ModelBackend {
	case BackendGemini, BackendClaude, BackendOllama:
	default:
		return fmt.Errorf("unknown MODEL_BACKEND %q", c.ModelBackend)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
