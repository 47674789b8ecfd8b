package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postflow/aicore/services/circuitbreaker"
	"github.com/postflow/aicore/services/providers"
	"github.com/postflow/aicore/services/ratelimit"
	"go.uber.org/zap"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	defaultTextModel  = "gemini-2.0-flash"
	defaultImageModel = "imagen-3.0-generate-002"
	defaultVideoModel = "veo-2.0-generate-001"
)

// defaultRateLimit reflects the free-tier allowance: a longer window with a
// smaller burst than the paid providers, waiting for slots by default.
func defaultRateLimit() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: 8,
		Window:      2 * time.Minute,
		WaitForSlot: true,
		MaxWait:     3 * time.Minute,
	}
}

// Adapter implements the unified generation interface against the Gemini
// API. Text and image are synchronous; video runs as a long-running
// operation that is polled until terminal.
type Adapter struct {
	cfg        providers.Config
	baseURL    string
	httpClient *http.Client
	guard      *providers.Guard
	poll       providers.PollConfig
	logger     *zap.Logger
}

// New builds a Gemini adapter. It is registered with the factory as the
// builder for the "gemini" provider identifier.
func New(cfg providers.Config, logger *zap.Logger) (providers.Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini adapter requires an API key")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	poll := providers.PollDefaults()
	if cfg.PollInterval > 0 {
		poll.Interval = cfg.PollInterval
	}
	if cfg.MaxPollAttempts > 0 {
		poll.MaxAttempts = cfg.MaxPollAttempts
	}

	return &Adapter{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		guard:      providers.NewGuard(providerName, defaultRateLimit(), circuitbreaker.DefaultConfig(), cfg, logger),
		poll:       poll,
		logger:     logger,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return providerName }

// Supports reports whether the capability is implemented.
func (a *Adapter) Supports(cap providers.Capability) bool {
	switch cap {
	case providers.CapabilityText, providers.CapabilityImage, providers.CapabilityVideo:
		return true
	}
	return false
}

// Capabilities lists the supported capabilities.
func (a *Adapter) Capabilities() []providers.Capability {
	return []providers.Capability{
		providers.CapabilityText,
		providers.CapabilityImage,
		providers.CapabilityVideo,
	}
}

// Health snapshots the adapter's limiter and breaker.
func (a *Adapter) Health() providers.Health { return a.guard.Health() }

// GenerateText performs one generateContent call.
func (a *Adapter) GenerateText(ctx context.Context, req *providers.TextRequest) (*providers.TextResponse, error) {
	if req.Prompt == "" {
		return nil, providers.NewError(providers.KindTextGenerationFailed, providerName, "prompt cannot be empty")
	}

	model := a.cfg.Model(providers.CapabilityText, defaultTextModel)
	start := time.Now()

	var out *providers.TextResponse
	err := a.guard.Run(ctx, a.cfg.OverallTimeoutOrDefault(), func(ctx context.Context) error {
		return providers.RunWithTimeout(ctx, providerName, a.cfg.RequestTimeoutOrDefault(), func(ctx context.Context) error {
			body := generateContentRequest{
				Contents: []content{{
					Role:  "user",
					Parts: []part{{Text: req.Prompt}},
				}},
			}
			if req.SystemInstruction != "" {
				body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
			}
			if req.Temperature != nil || req.MaxOutputTokens > 0 {
				body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
				if req.MaxOutputTokens > 0 {
					body.GenerationConfig.MaxOutputTokens = req.MaxOutputTokens
				}
			}

			var resp generateContentResponse
			path := fmt.Sprintf("/models/%s:generateContent", model)
			if err := a.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
				return err
			}

			text := firstText(resp)
			if text == "" {
				return providers.NewError(providers.KindTextGenerationFailed, providerName,
					blockedMessage("text", candidateFinishReason(resp)))
			}

			out = &providers.TextResponse{
				Text:     text,
				Model:    model,
				Provider: providerName,
				Usage: providers.Usage{
					PromptTokens:     resp.UsageMetadata.PromptTokenCount,
					CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      resp.UsageMetadata.TotalTokenCount,
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

// GenerateImage performs one predict call against the image model.
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
			body := predictRequest{
				Instances: []predictInstance{{Prompt: req.Prompt}},
				Parameters: predictParameters{
					SampleCount:      count,
					AspectRatio:      req.AspectRatio,
					NegativePrompt:   req.NegativePrompt,
					PersonGeneration: req.PersonGeneration,
				},
			}

			var resp predictResponse
			path := fmt.Sprintf("/models/%s:predict", model)
			if err := a.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
				return err
			}

			images := make([]providers.GeneratedImage, 0, len(resp.Predictions))
			for _, pred := range resp.Predictions {
				if pred.BytesBase64Encoded == "" {
					continue
				}
				data, err := base64.StdEncoding.DecodeString(pred.BytesBase64Encoded)
				if err != nil {
					continue
				}
				mime := pred.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				images = append(images, providers.GeneratedImage{Data: data, MIMEType: mime})
			}
			if len(images) == 0 {
				return providers.NewError(providers.KindImageGenerationFailed, providerName,
					blockedMessage("image", strings.Join(resp.FilteredReasons(), ", ")))
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

// GenerateVideo submits a long-running operation and polls it to a terminal
// state. Task creation consumes the rate-limit slot; status polls do not.
func (a *Adapter) GenerateVideo(ctx context.Context, req *providers.VideoRequest) (*providers.VideoResponse, error) {
	if req.Prompt == "" {
		return nil, providers.NewError(providers.KindVideoGenerationFailed, providerName, "prompt cannot be empty")
	}

	model := a.cfg.Model(providers.CapabilityVideo, defaultVideoModel)
	start := time.Now()

	var out *providers.VideoResponse
	err := a.guard.Run(ctx, a.cfg.OverallTimeoutOrDefault(), func(ctx context.Context) error {
		opName, err := a.createVideoTask(ctx, model, req)
		if err != nil {
			return err
		}

		var final operationResponse
		pollErr := providers.PollUntilDone(ctx, providerName, a.poll, a.logger, func(ctx context.Context) (providers.TaskStatus, error) {
			var op operationResponse
			err := providers.RunWithTimeout(ctx, providerName, a.cfg.RequestTimeoutOrDefault(), func(ctx context.Context) error {
				return a.doJSON(ctx, http.MethodGet, "/"+opName, nil, &op)
			})
			if err != nil {
				return providers.TaskStatus{}, err
			}

			switch {
			case !op.Done:
				return providers.TaskStatus{State: providers.TaskGenerating}, nil
			case op.Error != nil:
				return providers.TaskStatus{State: providers.TaskFail, Message: op.Error.Message}, nil
			default:
				final = op
				return providers.TaskStatus{State: providers.TaskSuccess}, nil
			}
		})
		if pollErr != nil {
			return pollErr
		}

		videos := make([]providers.GeneratedVideo, 0)
		for _, sample := range final.Response.GenerateVideoResponse.GeneratedSamples {
			if sample.Video.URI == "" {
				continue
			}
			videos = append(videos, providers.GeneratedVideo{
				URL:      sample.Video.URI,
				MIMEType: "video/mp4",
			})
		}
		if len(videos) == 0 {
			return providers.NewError(providers.KindVideoGenerationFailed, providerName,
				blockedMessage("video", strings.Join(final.Response.GenerateVideoResponse.RAIMediaFilteredReasons, ", ")))
		}

		out = &providers.VideoResponse{
			Videos:   videos,
			Model:    model,
			Provider: providerName,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Latency = time.Since(start)
	return out, nil
}

// createVideoTask submits the long-running operation. Creation failure is
// terminal; the task itself is never retried.
func (a *Adapter) createVideoTask(ctx context.Context, model string, req *providers.VideoRequest) (string, error) {
	body := predictRequest{
		Instances: []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{
			AspectRatio:      req.AspectRatio,
			NegativePrompt:   req.NegativePrompt,
			PersonGeneration: req.PersonGeneration,
			DurationSeconds:  req.DurationSeconds,
			Resolution:       req.Resolution,
		},
	}

	var resp operationRef
	path := fmt.Sprintf("/models/%s:predictLongRunning", model)
	err := providers.RunWithTimeout(ctx, providerName, a.cfg.RequestTimeoutOrDefault(), func(ctx context.Context) error {
		return a.doJSON(ctx, http.MethodPost, path, body, &resp)
	})
	if err != nil {
		if kind := providers.KindOf(err); kind == providers.KindTimeout || kind == providers.KindProviderRateLimited {
			return "", err
		}
		return "", providers.WrapError(providers.KindTaskCreationFailed, providerName, "failed to submit video generation task", err)
	}
	if resp.Name == "" {
		return "", providers.NewError(providers.KindTaskCreationFailed, providerName, "provider did not return a task identifier")
	}
	return resp.Name, nil
}

// doJSON executes one API call with the key header, classifying transport
// failures and non-200 statuses into canonical errors.
func (a *Adapter) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return providers.WrapError(providers.KindHTTPError, providerName, "failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return providers.WrapError(providers.KindHTTPError, providerName, "failed to create request", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)

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
	var errResp apiErrorResponse
	message := "provider request failed"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	a.logger.Warn("provider returned error response",
		zap.Int("status", status),
		zap.String("error_status", errResp.Error.Status))

	if status == http.StatusTooManyRequests {
		return providers.NewError(providers.KindProviderRateLimited, providerName, message).WithStatus(status)
	}
	return providers.NewError(providers.KindHTTPError, providerName, message).WithStatus(status)
}

// firstText returns the first candidate's concatenated text parts.
func firstText(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// candidateFinishReason returns the first candidate's finish reason, or the
// prompt-level block reason when no candidate came back.
func candidateFinishReason(resp generateContentResponse) string {
	if len(resp.Candidates) > 0 {
		return resp.Candidates[0].FinishReason
	}
	return resp.PromptFeedback.BlockReason
}

// blockedMessage derives a caller-facing failure message for a zero-item
// provider success from the provider's finish or filter reason metadata.
// The recognized reason set is best effort, not exhaustive.
func blockedMessage(capability, reason string) string {
	switch {
	case reason == "":
		return fmt.Sprintf("provider returned no %s output", capability)
	case strings.Contains(reason, "SAFETY") || strings.Contains(reason, "RAI"):
		return fmt.Sprintf("%s generation was blocked by the provider's safety filter (%s)", capability, reason)
	default:
		return fmt.Sprintf("provider returned no %s output (reason: %s)", capability, reason)
	}
}

// Wire types for the Gemini API.

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount      int    `json:"sampleCount,omitempty"`
	AspectRatio      string `json:"aspectRatio,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MIMEType           string `json:"mimeType"`
		RAIFilteredReason  string `json:"raiFilteredReason"`
	} `json:"predictions"`
}

// FilteredReasons collects non-empty filter reasons from the predictions.
func (r predictResponse) FilteredReasons() []string {
	var reasons []string
	for _, p := range r.Predictions {
		if p.RAIFilteredReason != "" {
			reasons = append(reasons, p.RAIFilteredReason)
		}
	}
	return reasons
}

type operationRef struct {
	Name string `json:"name"`
}

type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
