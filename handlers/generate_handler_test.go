package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/postflow/aicore/services/generation"
	"github.com/postflow/aicore/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	textResp  *generation.TextResponse
	textErr   error
	imageResp *generation.ImageResponse
	imageErr  error
	videoResp *generation.VideoResponse
	videoErr  error
	statuses  []generation.ProviderStatus
}

func (s *stubService) GenerateText(ctx context.Context, req *generation.TextRequest) (*generation.TextResponse, error) {
	return s.textResp, s.textErr
}

func (s *stubService) GenerateImage(ctx context.Context, req *generation.ImageRequest) (*generation.ImageResponse, error) {
	return s.imageResp, s.imageErr
}

func (s *stubService) GenerateVideo(ctx context.Context, req *generation.VideoRequest) (*generation.VideoResponse, error) {
	return s.videoResp, s.videoErr
}

func (s *stubService) Providers() []generation.ProviderStatus { return s.statuses }

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleGenerateText_Success(t *testing.T) {
	h := NewGenerateHandler(&stubService{
		textResp: &generation.TextResponse{
			RequestID: uuid.NewString(),
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Text:      "generated",
			LatencyMs: 120,
		},
	}, zap.NewNop())

	rec := postJSON(t, h.HandleGenerateText, `{"provider":"openai","prompt":"write a post"}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data generation.TextResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.Data.Text)
	assert.Equal(t, "openai", resp.Data.Provider)
}

func TestHandleGenerateText_InvalidBody(t *testing.T) {
	h := NewGenerateHandler(&stubService{}, zap.NewNop())

	rec := postJSON(t, h.HandleGenerateText, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateText_MissingFields(t *testing.T) {
	h := NewGenerateHandler(&stubService{}, zap.NewNop())

	rec := postJSON(t, h.HandleGenerateText, `{"provider":"openai"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Prompt")
}

func TestHandleGenerateText_TemperatureOutOfRange(t *testing.T) {
	h := NewGenerateHandler(&stubService{}, zap.NewNop())

	rec := postJSON(t, h.HandleGenerateText, `{"provider":"openai","prompt":"p","temperature":3.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateImage_CountOutOfRange(t *testing.T) {
	h := NewGenerateHandler(&stubService{}, zap.NewNop())

	rec := postJSON(t, h.HandleGenerateImage, `{"provider":"gemini","prompt":"p","count":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateText_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "rate limited",
			err:        providers.NewError(providers.KindRateLimited, "openai", "rate limit reached"),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "provider rate limited",
			err:        providers.NewError(providers.KindProviderRateLimited, "openai", "quota exhausted"),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "circuit open",
			err:        providers.NewError(providers.KindCircuitOpen, "openai", "temporarily unavailable"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "timeout",
			err:        providers.NewError(providers.KindTimeout, "openai", "deadline exceeded"),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "task timeout",
			err:        providers.NewError(providers.KindTaskTimeout, "gemini", "polling budget exhausted"),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "capability not supported",
			err:        providers.NewError(providers.KindCapabilityNotSupported, "openai", "video not supported"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "generation failed",
			err:        providers.NewError(providers.KindTextGenerationFailed, "openai", "no output"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "task failed",
			err:        providers.NewError(providers.KindTaskFailed, "gemini", "rendering error"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "safety rejection",
			err:        &generation.SafetyError{RequestID: uuid.New(), RuleID: "instruction_override", Reason: "rejected"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown provider",
			err:        providers.ErrUnknownProvider,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGenerateHandler(&stubService{textErr: tt.err}, zap.NewNop())

			rec := postJSON(t, h.HandleGenerateText, `{"provider":"openai","prompt":"p"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleListProviders(t *testing.T) {
	h := NewGenerateHandler(&stubService{
		statuses: []generation.ProviderStatus{
			{Name: "gemini", Capabilities: []providers.Capability{providers.CapabilityText}},
			{Name: "openai", Capabilities: []providers.Capability{providers.CapabilityText}},
		},
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.HandleListProviders(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gemini")
	assert.Contains(t, rec.Body.String(), "openai")
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthz always ok", func(t *testing.T) {
		h := NewHealthHandler(&stubService{}, zap.NewNop())
		rec := httptest.NewRecorder()
		h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz with providers", func(t *testing.T) {
		h := NewHealthHandler(&stubService{
			statuses: []generation.ProviderStatus{{Name: "openai"}},
		}, zap.NewNop())
		rec := httptest.NewRecorder()
		h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz without providers", func(t *testing.T) {
		h := NewHealthHandler(&stubService{}, zap.NewNop())
		rec := httptest.NewRecorder()
		h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
