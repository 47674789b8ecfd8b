package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/postflow/aicore/middleware"
	"github.com/postflow/aicore/services/generation"
	"github.com/postflow/aicore/utils"
	"go.uber.org/zap"
)

// TextGenerationRequest is the request body for POST /api/v1/generate/text
type TextGenerationRequest struct {
	Provider          string   `json:"provider" validate:"required"`
	Prompt            string   `json:"prompt" validate:"required"`
	SystemInstruction string   `json:"system_instruction,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens   int      `json:"max_output_tokens,omitempty" validate:"omitempty,gt=0"`
}

// ImageGenerationRequest is the request body for POST /api/v1/generate/image
type ImageGenerationRequest struct {
	Provider         string `json:"provider" validate:"required"`
	Prompt           string `json:"prompt" validate:"required"`
	NegativePrompt   string `json:"negative_prompt,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 16:9 9:16"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	Count            int    `json:"count,omitempty" validate:"omitempty,gte=1,lte=4"`
}

// VideoGenerationRequest is the request body for POST /api/v1/generate/video
type VideoGenerationRequest struct {
	Provider         string `json:"provider" validate:"required"`
	Prompt           string `json:"prompt" validate:"required"`
	NegativePrompt   string `json:"negative_prompt,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 16:9 9:16"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	DurationSeconds  int    `json:"duration_seconds,omitempty" validate:"omitempty,gte=1,lte=60"`
}

// GenerationService defines the pipeline operations the handler depends on
type GenerationService interface {
	GenerateText(ctx context.Context, req *generation.TextRequest) (*generation.TextResponse, error)
	GenerateImage(ctx context.Context, req *generation.ImageRequest) (*generation.ImageResponse, error)
	GenerateVideo(ctx context.Context, req *generation.VideoRequest) (*generation.VideoResponse, error)
	Providers() []generation.ProviderStatus
}

// GenerateHandler handles generation HTTP requests
type GenerateHandler struct {
	service GenerationService
	logger  *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(service GenerationService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerateText handles POST /api/v1/generate/text
func (h *GenerateHandler) HandleGenerateText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req TextGenerationRequest
	if ok := h.decodeAndValidate(w, r, requestID, &req); !ok {
		return
	}

	result, err := h.service.GenerateText(ctx, &generation.TextRequest{
		Provider:          req.Provider,
		Prompt:            req.Prompt,
		SystemInstruction: req.SystemInstruction,
		Temperature:       req.Temperature,
		MaxOutputTokens:   req.MaxOutputTokens,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("text generation request completed",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.Int("latency_ms", result.LatencyMs))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleGenerateImage handles POST /api/v1/generate/image
func (h *GenerateHandler) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ImageGenerationRequest
	if ok := h.decodeAndValidate(w, r, requestID, &req); !ok {
		return
	}

	result, err := h.service.GenerateImage(ctx, &generation.ImageRequest{
		Provider:         req.Provider,
		Prompt:           req.Prompt,
		NegativePrompt:   req.NegativePrompt,
		AspectRatio:      req.AspectRatio,
		Resolution:       req.Resolution,
		PersonGeneration: req.PersonGeneration,
		Count:            req.Count,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("image generation request completed",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.Int("images", len(result.Images)),
		zap.Int("latency_ms", result.LatencyMs))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleGenerateVideo handles POST /api/v1/generate/video. The response is
// written only after the provider task reaches a terminal state, so this can
// block for minutes.
func (h *GenerateHandler) HandleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req VideoGenerationRequest
	if ok := h.decodeAndValidate(w, r, requestID, &req); !ok {
		return
	}

	result, err := h.service.GenerateVideo(ctx, &generation.VideoRequest{
		Provider:         req.Provider,
		Prompt:           req.Prompt,
		NegativePrompt:   req.NegativePrompt,
		AspectRatio:      req.AspectRatio,
		Resolution:       req.Resolution,
		PersonGeneration: req.PersonGeneration,
		DurationSeconds:  req.DurationSeconds,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("video generation request completed",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.Int("videos", len(result.Videos)),
		zap.Int("latency_ms", result.LatencyMs))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleListProviders handles GET /api/v1/providers
func (h *GenerateHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.service.Providers()); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func (h *GenerateHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, requestID string, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return false
	}

	return true
}
