package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/postflow/aicore/services/circuitbreaker"
	"github.com/postflow/aicore/services/providers"
	"github.com/postflow/aicore/services/ratelimit"
	"go.uber.org/zap"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"

	defaultTextModel  = "gpt-4o-mini"
	defaultImageModel = "gpt-image-1"
)

// defaultRateLimit reflects a paid-tier allowance: generous burst, short wait.
func defaultRateLimit() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: 30,
		Window:      time.Minute,
		WaitForSlot: true,
		MaxWait:     time.Minute,
	}
}

// Adapter implements the unified generation interface against the OpenAI
// API. Both capabilities are synchronous request/response calls.
type Adapter struct {
	cfg        providers.Config
	baseURL    string
	httpClient *http.Client
	guard      *providers.Guard
	logger     *zap.Logger
}

// New builds an OpenAI adapter. It is registered with the factory as the
// builder for the "openai" provider identifier.
func New(cfg providers.Config, logger *zap.Logger) (providers.Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai adapter requires an API key")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Adapter{
		cfg:     cfg,
		baseURL: baseURL,
		// Per-call deadlines come from the request context; the client
		// itself stays unbounded so polling-style reuse is possible.
		httpClient: &http.Client{},
		guard:      providers.NewGuard(providerName, defaultRateLimit(), circuitbreaker.DefaultConfig(), cfg, logger),
		logger:     logger,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return providerName }

// Supports reports whether the capability is implemented.
func (a *Adapter) Supports(cap providers.Capability) bool {
	return cap == providers.CapabilityText || cap == providers.CapabilityImage
}

// Capabilities lists the supported capabilities.
func (a *Adapter) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityText, providers.CapabilityImage}
}

// Health snapshots the adapter's limiter and breaker.
func (a *Adapter) Health() providers.Health { return a.guard.Health() }

// GenerateText performs one chat completion call.
func (a *Adapter) GenerateText(ctx context.Context, req *providers.TextRequest) (*providers.TextResponse, error) {
	if req.Prompt == "" {
		return nil, providers.NewError(providers.KindTextGenerationFailed, providerName, "prompt cannot be empty")
	}

	model := a.cfg.Model(providers.CapabilityText, defaultTextModel)
	start := time.Now()

	var out *providers.TextResponse
	err := a.guard.Run(ctx, a.cfg.OverallTimeoutOrDefault(), func(ctx context.Context) error {
		return providers.RunWithTimeout(ctx, providerName, a.cfg.RequestTimeoutOrDefault(), func(ctx context.Context) error {
			body := chatRequest{
				Model:       model,
				Temperature: req.Temperature,
			}
			if req.SystemInstruction != "" {
				body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemInstruction})
			}
			body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
			if req.MaxOutputTokens > 0 {
				body.MaxTokens = &req.MaxOutputTokens
			}

			var resp chatResponse
			if err := a.doJSON(ctx, "/chat/completions", body, &resp); err != nil {
				return err
			}

			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return providers.NewError(providers.KindTextGenerationFailed, providerName,
					emptyResultMessage("text", finishReason(resp)))
			}

			out = &providers.TextResponse{
				Text:     resp.Choices[0].Message.Content,
				Model:    resp.Model,
				Provider: providerName,
				Usage: providers.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out.Latency = time.Since(start)
	return out, nil
}

// GenerateImage performs one image generation call.
func (a *Adapter) GenerateImage(ctx context.Context, req *providers.ImageRequest) (*providers.ImageResponse, error) {
	if req.Prompt == "" {
		return nil, providers.NewError(providers.KindImageGenerationFailed, providerName, "prompt cannot be empty")
	}

	model := a.cfg.Model(providers.CapabilityImage, defaultImageModel)
	start := time.Now()

	var out *providers.ImageResponse
	err := a.guard.Run(ctx, a.cfg.OverallTimeoutOrDefault(), func(ctx context.Context) error {
		return providers.RunWithTimeout(ctx, providerName, a.cfg.RequestTimeoutOrDefault(), func(ctx context.Context) error {
			count := req.Count
			if count <= 0 {
				count = 1
			}
			body := imageRequest{
				Model:  model,
				Prompt: req.Prompt,
				N:      count,
				Size:   sizeForAspectRatio(req.AspectRatio),
			}

			var resp imageResponse
			if err := a.doJSON(ctx, "/images/generations", body, &resp); err != nil {
				return err
			}

			images := make([]providers.GeneratedImage, 0, len(resp.Data))
			for _, item := range resp.Data {
				img := providers.GeneratedImage{URL: item.URL}
				if item.B64JSON != "" {
					img.Data = []byte(item.B64JSON)
					img.MIMEType = "image/png"
				}
				if img.URL != "" || len(img.Data) > 0 {
					images = append(images, img)
				}
			}
			if len(images) == 0 {
				// Zero items on a 200 response is a failure, never an
				// empty success.
				return providers.NewError(providers.KindImageGenerationFailed, providerName,
					emptyResultMessage("image", ""))
			}

			out = &providers.ImageResponse{
				Images:   images,
				Model:    model,
				Provider: providerName,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out.Latency = time.Since(start)
	return out, nil
}

// GenerateVideo is not supported by this provider family.
func (a *Adapter) GenerateVideo(ctx context.Context, req *providers.VideoRequest) (*providers.VideoResponse, error) {
	return nil, providers.NewError(providers.KindCapabilityNotSupported, providerName,
		"video generation is not supported by this provider")
}

// doJSON posts a JSON body and decodes a JSON response, classifying
// transport failures and non-200 statuses into canonical errors.
func (a *Adapter) doJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return providers.WrapError(providers.KindHTTPError, providerName, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return providers.WrapError(providers.KindHTTPError, providerName, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providers.WrapError(providers.KindHTTPError, providerName, "", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return providers.WrapError(providers.KindHTTPError, providerName, "failed to read response", err).
			WithStatus(httpResp.StatusCode)
	}

	if httpResp.StatusCode != http.StatusOK {
		return a.classifyErrorResponse(httpResp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return providers.WrapError(providers.KindHTTPError, providerName, "failed to decode response", err).
			WithStatus(httpResp.StatusCode)
	}
	return nil
}

// classifyErrorResponse maps a non-200 provider response onto the taxonomy.
func (a *Adapter) classifyErrorResponse(status int, body []byte) error {
	var errResp errorResponse
	message := "provider request failed"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	a.logger.Warn("provider returned error response",
		zap.Int("status", status),
		zap.String("error_type", errResp.Error.Type))

	if status == http.StatusTooManyRequests {
		return providers.NewError(providers.KindProviderRateLimited, providerName, message).WithStatus(status)
	}
	return providers.NewError(providers.KindHTTPError, providerName, message).WithStatus(status)
}

// finishReason extracts the first choice's finish reason, if any.
func finishReason(resp chatResponse) string {
	if len(resp.Choices) > 0 {
		return resp.Choices[0].FinishReason
	}
	return ""
}

// emptyResultMessage derives a caller-facing failure message for a
// zero-item provider success, using finish-reason metadata when present.
func emptyResultMessage(capability, reason string) string {
	switch reason {
	case "content_filter":
		return fmt.Sprintf("%s generation was blocked by the provider's content filter", capability)
	case "length":
		return fmt.Sprintf("%s generation was cut off before producing output", capability)
	case "":
		return fmt.Sprintf("provider returned no %s output", capability)
	default:
		return fmt.Sprintf("provider returned no %s output (finish reason: %s)", capability, reason)
	}
}

// sizeForAspectRatio maps the portable aspect-ratio hint onto the sizes the
// image endpoint accepts.
func sizeForAspectRatio(ratio string) string {
	switch ratio {
	case "16:9":
		return "1536x1024"
	case "9:16":
		return "1024x1536"
	case "", "1:1":
		return "1024x1024"
	default:
		return "1024x1024"
	}
}

// Wire types for the OpenAI API.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
