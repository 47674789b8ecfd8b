package generation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/postflow/aicore/services/providers"
	"github.com/postflow/aicore/services/safety"
	"go.uber.org/zap"
)

// Service orchestrates the generation pipeline: request validation, the
// safety filter, then dispatch to the provider adapter. The filter runs
// before any rate-limit slot is consumed, so rejected prompts never count
// against provider admission.
type Service struct {
	adapters map[string]providers.Adapter
	filter   *safety.Filter
	logger   *zap.Logger
}

// NewService creates the generation service over a fixed set of adapters.
func NewService(adapters map[string]providers.Adapter, filter *safety.Filter, logger *zap.Logger) *Service {
	return &Service{
		adapters: adapters,
		filter:   filter,
		logger:   logger,
	}
}

// GenerateText runs the text pipeline.
func (s *Service) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	requestID := uuid.New()
	start := time.Now()

	adapter, err := s.admit(requestID, req.Provider, providers.CapabilityText, req.Prompt, req.SystemInstruction)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting text generation",
		zap.String("request_id", requestID.String()),
		zap.String("provider", adapter.Name()))

	resp, err := adapter.GenerateText(ctx, &providers.TextRequest{
		Prompt:            req.Prompt,
		SystemInstruction: req.SystemInstruction,
		Temperature:       req.Temperature,
		MaxOutputTokens:   req.MaxOutputTokens,
	})
	if err != nil {
		s.logFailure(requestID, adapter.Name(), providers.CapabilityText, err)
		return nil, err
	}

	latencyMs := int(time.Since(start).Milliseconds())
	s.logger.Info("text generation completed",
		zap.String("request_id", requestID.String()),
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Int("latency_ms", latencyMs))

	return &TextResponse{
		RequestID: requestID.String(),
		Provider:  resp.Provider,
		Model:     resp.Model,
		Text:      resp.Text,
		Usage:     resp.Usage,
		LatencyMs: latencyMs,
	}, nil
}

// GenerateImage runs the image pipeline.
func (s *Service) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error) {
	requestID := uuid.New()
	start := time.Now()

	adapter, err := s.admit(requestID, req.Provider, providers.CapabilityImage, req.Prompt, "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting image generation",
		zap.String("request_id", requestID.String()),
		zap.String("provider", adapter.Name()))

	resp, err := adapter.GenerateImage(ctx, &providers.ImageRequest{
		Prompt:           req.Prompt,
		NegativePrompt:   req.NegativePrompt,
		AspectRatio:      req.AspectRatio,
		Resolution:       req.Resolution,
		PersonGeneration: req.PersonGeneration,
		Count:            req.Count,
	})
	if err != nil {
		s.logFailure(requestID, adapter.Name(), providers.CapabilityImage, err)
		return nil, err
	}

	latencyMs := int(time.Since(start).Milliseconds())
	s.logger.Info("image generation completed",
		zap.String("request_id", requestID.String()),
		zap.String("provider", resp.Provider),
		zap.Int("images", len(resp.Images)),
		zap.Int("latency_ms", latencyMs))

	return &ImageResponse{
		RequestID: requestID.String(),
		Provider:  resp.Provider,
		Model:     resp.Model,
		Images:    resp.Images,
		LatencyMs: latencyMs,
	}, nil
}

// GenerateVideo runs the video pipeline. The call blocks until the
// provider's task reaches a terminal state or the overall deadline expires.
func (s *Service) GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoResponse, error) {
	requestID := uuid.New()
	start := time.Now()

	adapter, err := s.admit(requestID, req.Provider, providers.CapabilityVideo, req.Prompt, "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting video generation",
		zap.String("request_id", requestID.String()),
		zap.String("provider", adapter.Name()))

	resp, err := adapter.GenerateVideo(ctx, &providers.VideoRequest{
		Prompt:           req.Prompt,
		NegativePrompt:   req.NegativePrompt,
		AspectRatio:      req.AspectRatio,
		Resolution:       req.Resolution,
		PersonGeneration: req.PersonGeneration,
		DurationSeconds:  req.DurationSeconds,
	})
	if err != nil {
		s.logFailure(requestID, adapter.Name(), providers.CapabilityVideo, err)
		return nil, err
	}

	latencyMs := int(time.Since(start).Milliseconds())
	s.logger.Info("video generation completed",
		zap.String("request_id", requestID.String()),
		zap.String("provider", resp.Provider),
		zap.Int("videos", len(resp.Videos)),
		zap.Int("latency_ms", latencyMs))

	return &VideoResponse{
		RequestID: requestID.String(),
		Provider:  resp.Provider,
		Model:     resp.Model,
		Videos:    resp.Videos,
		LatencyMs: latencyMs,
	}, nil
}

// Providers lists every configured adapter with its current health snapshot,
// sorted by name.
func (s *Service) Providers() []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(s.adapters))
	for _, adapter := range s.adapters {
		statuses = append(statuses, ProviderStatus{
			Name:         adapter.Name(),
			Capabilities: adapter.Capabilities(),
			Health:       adapter.Health(),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// admit performs the pre-dispatch steps shared by all pipelines: resolve the
// adapter, verify the capability, and run the safety filter.
func (s *Service) admit(requestID uuid.UUID, provider string, cap providers.Capability, prompt, system string) (providers.Adapter, error) {
	if prompt == "" {
		return nil, &ValidationError{Field: "prompt", Message: "prompt is required"}
	}

	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", providers.ErrUnknownProvider, provider)
	}
	if !adapter.Supports(cap) {
		return nil, providers.NewError(providers.KindCapabilityNotSupported, adapter.Name(),
			fmt.Sprintf("%s generation is not supported by this provider", cap))
	}

	if result := s.filter.Check(prompt, system); !result.Safe {
		s.logger.Warn("prompt rejected by safety filter",
			zap.String("request_id", requestID.String()),
			zap.String("rule_id", result.RuleID))
		return nil, &SafetyError{
			RequestID: requestID,
			RuleID:    result.RuleID,
			Reason:    result.Reason,
		}
	}

	return adapter, nil
}

func (s *Service) logFailure(requestID uuid.UUID, provider string, cap providers.Capability, err error) {
	s.logger.Error("generation failed",
		zap.String("request_id", requestID.String()),
		zap.String("provider", provider),
		zap.String("capability", string(cap)),
		zap.String("kind", string(providers.KindOf(err))),
		zap.Error(err))
}
