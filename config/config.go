package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// AuthConfig holds JWT authentication configuration
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
}

// ProvidersConfig holds AI provider configurations
type ProvidersConfig struct {
	OpenAI ProviderConfig
	Gemini ProviderConfig
}

// ProviderConfig holds one provider's connection and resilience settings.
// Zero-valued resilience fields fall back to the adapter's own defaults.
type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	TextModel       string
	ImageModel      string
	VideoModel      string
	RequestTimeout  time.Duration
	OverallTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxRequests     int
	RateWindow      time.Duration
	WaitForSlot     bool
	MaxWait         time.Duration
}

// Enabled reports whether the provider has a credential configured.
func (p ProviderConfig) Enabled() bool { return p.APIKey != "" }

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGIN", "http://localhost:5173")},
		},
		Auth: AuthConfig{
			Enabled:   getEnvAsBool("AUTH_ENABLED", true),
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "postflow"),
		},
		Providers: ProvidersConfig{
			OpenAI: loadProviderConfig("OPENAI"),
			Gemini: loadProviderConfig("GEMINI"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth is enabled")
	}

	if c.IsProduction() {
		if !c.Providers.OpenAI.Enabled() && !c.Providers.Gemini.Enabled() {
			return fmt.Errorf("at least one AI provider must be configured in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadProviderConfig loads one provider's settings from <PREFIX>_* env vars.
func loadProviderConfig(prefix string) ProviderConfig {
	return ProviderConfig{
		APIKey:          getEnv(prefix+"_API_KEY", ""),
		BaseURL:         getEnv(prefix+"_BASE_URL", ""),
		TextModel:       getEnv(prefix+"_TEXT_MODEL", ""),
		ImageModel:      getEnv(prefix+"_IMAGE_MODEL", ""),
		VideoModel:      getEnv(prefix+"_VIDEO_MODEL", ""),
		RequestTimeout:  getEnvAsDuration(prefix+"_REQUEST_TIMEOUT", 0),
		OverallTimeout:  getEnvAsDuration(prefix+"_OVERALL_TIMEOUT", 0),
		PollInterval:    getEnvAsDuration(prefix+"_POLL_INTERVAL", 0),
		MaxPollAttempts: getEnvAsInt(prefix+"_MAX_POLL_ATTEMPTS", 0),
		MaxRequests:     getEnvAsInt(prefix+"_RATE_MAX_REQUESTS", 0),
		RateWindow:      getEnvAsDuration(prefix+"_RATE_WINDOW", 0),
		WaitForSlot:     getEnvAsBool(prefix+"_RATE_WAIT", true),
		MaxWait:         getEnvAsDuration(prefix+"_RATE_MAX_WAIT", 0),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
