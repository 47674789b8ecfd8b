package generation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/postflow/aicore/services/providers"
)

// TextRequest is a client-facing text generation request.
type TextRequest struct {
	Provider          string   `json:"provider"`
	Prompt            string   `json:"prompt"`
	SystemInstruction string   `json:"system_instruction,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	MaxOutputTokens   int      `json:"max_output_tokens,omitempty"`
}

// TextResponse is the client-facing text generation result.
type TextResponse struct {
	RequestID string          `json:"request_id"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Text      string          `json:"text"`
	Usage     providers.Usage `json:"usage"`
	LatencyMs int             `json:"latency_ms"`
}

// ImageRequest is a client-facing image generation request.
type ImageRequest struct {
	Provider         string `json:"provider"`
	Prompt           string `json:"prompt"`
	NegativePrompt   string `json:"negative_prompt,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	Count            int    `json:"count,omitempty"`
}

// ImageResponse is the client-facing image generation result.
type ImageResponse struct {
	RequestID string                     `json:"request_id"`
	Provider  string                     `json:"provider"`
	Model     string                     `json:"model"`
	Images    []providers.GeneratedImage `json:"images"`
	LatencyMs int                        `json:"latency_ms"`
}

// VideoRequest is a client-facing video generation request.
type VideoRequest struct {
	Provider         string `json:"provider"`
	Prompt           string `json:"prompt"`
	NegativePrompt   string `json:"negative_prompt,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	DurationSeconds  int    `json:"duration_seconds,omitempty"`
}

// VideoResponse is the client-facing video generation result.
type VideoResponse struct {
	RequestID string                     `json:"request_id"`
	Provider  string                     `json:"provider"`
	Model     string                     `json:"model"`
	Videos    []providers.GeneratedVideo `json:"videos"`
	LatencyMs int                        `json:"latency_ms"`
}

// ProviderStatus is one provider's health snapshot for the listing endpoint.
type ProviderStatus struct {
	Name         string                 `json:"name"`
	Capabilities []providers.Capability `json:"capabilities"`
	Health       providers.Health       `json:"health"`
}

// SafetyError reports a prompt rejected before reaching any provider. It
// carries the matched rule so callers can surface actionable feedback.
type SafetyError struct {
	RequestID uuid.UUID `json:"request_id"`
	RuleID    string    `json:"rule_id"`
	Reason    string    `json:"reason"`
}

// Error implements the error interface.
func (e *SafetyError) Error() string {
	return fmt.Sprintf("prompt rejected by safety filter (%s): %s", e.RuleID, e.Reason)
}

// ValidationError reports a structurally invalid request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
