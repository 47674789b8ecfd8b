package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT":  "development",
				"AUTH_ENABLED": "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, "info", cfg.Observability.LogLevel)
				assert.Equal(t, "json", cfg.Observability.LogFormat)
			},
		},
		{
			name: "production configuration with providers",
			envVars: map[string]string{
				"ENVIRONMENT":    "production",
				"SERVER_PORT":    "9000",
				"JWT_SECRET":     "super-secret",
				"OPENAI_API_KEY": "sk-xxxxx",
				"GEMINI_API_KEY": "AIzaXXXX",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Providers.OpenAI.Enabled())
				assert.True(t, cfg.Providers.Gemini.Enabled())
			},
		},
		{
			name: "provider resilience overrides",
			envVars: map[string]string{
				"AUTH_ENABLED":              "false",
				"OPENAI_API_KEY":            "sk-xxxxx",
				"OPENAI_REQUEST_TIMEOUT":    "45s",
				"OPENAI_OVERALL_TIMEOUT":    "5m",
				"OPENAI_RATE_MAX_REQUESTS":  "12",
				"OPENAI_RATE_WINDOW":        "30s",
				"OPENAI_RATE_WAIT":          "false",
				"GEMINI_API_KEY":            "AIzaXXXX",
				"GEMINI_POLL_INTERVAL":      "2s",
				"GEMINI_MAX_POLL_ATTEMPTS":  "120",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.Providers.OpenAI.RequestTimeout)
				assert.Equal(t, 5*time.Minute, cfg.Providers.OpenAI.OverallTimeout)
				assert.Equal(t, 12, cfg.Providers.OpenAI.MaxRequests)
				assert.Equal(t, 30*time.Second, cfg.Providers.OpenAI.RateWindow)
				assert.False(t, cfg.Providers.OpenAI.WaitForSlot)
				assert.Equal(t, 2*time.Second, cfg.Providers.Gemini.PollInterval)
				assert.Equal(t, 120, cfg.Providers.Gemini.MaxPollAttempts)
			},
		},
		{
			name: "model overrides",
			envVars: map[string]string{
				"AUTH_ENABLED":       "false",
				"OPENAI_API_KEY":     "sk-xxxxx",
				"OPENAI_TEXT_MODEL":  "gpt-4.1",
				"OPENAI_IMAGE_MODEL": "dall-e-3",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "gpt-4.1", cfg.Providers.OpenAI.TextModel)
				assert.Equal(t, "dall-e-3", cfg.Providers.OpenAI.ImageModel)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"AUTH_ENABLED": "false",
				"PORT":         "9443",
				"SERVER_PORT":  "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "auth enabled requires a secret",
			envVars: map[string]string{
				"ENVIRONMENT":  "development",
				"AUTH_ENABLED": "true",
			},
			wantErr: true,
		},
		{
			name: "production without any provider",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"JWT_SECRET":  "super-secret",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
}
