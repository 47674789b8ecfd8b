package providers

import (
	"context"
	"time"

	"github.com/postflow/aicore/services/circuitbreaker"
	"github.com/postflow/aicore/services/ratelimit"
)

// Capability identifies one generation modality.
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityVideo Capability = "video"
)

// Adapter is the unified generation interface every provider implements.
// Calling a capability the provider does not support returns a
// CapabilityNotSupported canonical error, never a panic.
type Adapter interface {
	// Name returns the provider identifier (e.g. "openai", "gemini").
	Name() string

	// Supports reports whether the provider implements the capability.
	Supports(cap Capability) bool

	// Capabilities lists the supported capabilities.
	Capabilities() []Capability

	// GenerateText produces text for the request.
	GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error)

	// GenerateImage produces one or more images for the request.
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error)

	// GenerateVideo produces one or more videos for the request.
	GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoResponse, error)

	// Health snapshots the adapter's limiter and breaker state.
	Health() Health
}

// TextRequest is a provider-independent text generation request.
type TextRequest struct {
	// Prompt is the user prompt. Required.
	Prompt string

	// SystemInstruction is an optional higher-privilege instruction.
	SystemInstruction string

	// Temperature controls randomness. Nil applies the provider default.
	Temperature *float64

	// MaxOutputTokens bounds the response length. Zero applies the
	// provider default.
	MaxOutputTokens int
}

// Usage holds token accounting for text generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextResponse is the normalized text generation result.
type TextResponse struct {
	Text     string        `json:"text"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Usage    Usage         `json:"usage"`
	Latency  time.Duration `json:"-"`
}

// ImageRequest is a provider-independent image generation request. All
// fields beyond Prompt are optional; adapters apply provider defaults.
type ImageRequest struct {
	Prompt           string
	NegativePrompt   string
	AspectRatio      string
	Resolution       string
	PersonGeneration string
	Count            int
}

// GeneratedImage is one image payload: a URL, or inline bytes plus MIME type.
type GeneratedImage struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// ImageResponse is the normalized image generation result. A successful
// response always carries at least one image; adapters convert zero-item
// provider successes into generation-failure errors.
type ImageResponse struct {
	Images   []GeneratedImage `json:"images"`
	Model    string           `json:"model"`
	Provider string           `json:"provider"`
	Latency  time.Duration    `json:"-"`
}

// VideoRequest is a provider-independent video generation request.
type VideoRequest struct {
	Prompt           string
	NegativePrompt   string
	AspectRatio      string
	Resolution       string
	PersonGeneration string
	DurationSeconds  int
}

// GeneratedVideo is one video payload.
type GeneratedVideo struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type,omitempty"`
}

// VideoResponse is the normalized video generation result. Same zero-item
// rule as ImageResponse.
type VideoResponse struct {
	Videos   []GeneratedVideo `json:"videos"`
	Model    string           `json:"model"`
	Provider string           `json:"provider"`
	Latency  time.Duration    `json:"-"`
}

// Health is a read-only snapshot of an adapter's admission and failure
// isolation state.
type Health struct {
	RateLimit ratelimit.Status       `json:"rate_limit"`
	Breaker   circuitbreaker.Snapshot `json:"breaker"`
}

// Config is the per-adapter configuration. It is constructed once at
// adapter-creation time and immutable thereafter.
type Config struct {
	// Provider is the provider identifier the factory dispatches on.
	Provider string

	// APIKey is the provider credential.
	APIKey string

	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string

	// Models maps capabilities to model names, overriding adapter defaults.
	Models map[Capability]string

	// RequestTimeout is the hard deadline for a single request/response
	// call, including one polling iteration.
	RequestTimeout time.Duration

	// OverallTimeout is the absolute deadline spanning an entire
	// operation, including a full polling sequence.
	OverallTimeout time.Duration

	// PollInterval is the sleep between poll attempts for async providers.
	PollInterval time.Duration

	// MaxPollAttempts bounds the polling loop.
	MaxPollAttempts int

	// RateLimit overrides the adapter's limiter defaults when non-nil.
	RateLimit *ratelimit.Config

	// Breaker overrides the adapter's breaker defaults when non-nil.
	Breaker *circuitbreaker.Config
}

// RequestTimeoutOrDefault returns the per-call timeout, defaulting to 30s.
func (c Config) RequestTimeoutOrDefault() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return 30 * time.Second
}

// OverallTimeoutOrDefault returns the operation deadline, defaulting to 10m.
func (c Config) OverallTimeoutOrDefault() time.Duration {
	if c.OverallTimeout > 0 {
		return c.OverallTimeout
	}
	return 10 * time.Minute
}

// Model returns the configured model for a capability, or the fallback.
func (c Config) Model(cap Capability, fallback string) string {
	if m, ok := c.Models[cap]; ok && m != "" {
		return m
	}
	return fallback
}
