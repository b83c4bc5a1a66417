package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application settings
type Config struct {
	Port    string `env:"PORT"     envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON"  envDefault:"false"`

	// GeminiAPIKey may be empty: the site still renders and estimates fail closed.
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL"    envDefault:"gemini-2.0-flash"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT"  envDefault:"60s"`

	// Name used by the earlier Vite build, accepted as a fallback.
	LegacyAPIKey string `env:"VITE_GEMINI_API_KEY"`

	PolicyFile      string        `env:"POLICY_FILE"`
	SessionTTL      time.Duration `env:"SESSION_TTL"      envDefault:"30m"`
	CookieSecure    bool          `env:"COOKIE_SECURE"    envDefault:"false"`
	TracingEnabled  bool          `env:"TRACING_ENABLED"  envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads .env files (when present) and parses the environment
func Load() (*Config, error) {
	_ = godotenv.Load()          // ./.env
	_ = godotenv.Load("../.env") // parent directory

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = cfg.LegacyAPIKey
	}

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}

	return cfg, nil
}

// HasAPIKey reports whether the estimator can reach the generative API
func (c *Config) HasAPIKey() bool {
	return c.GeminiAPIKey != ""
}
