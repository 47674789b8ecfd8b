package handlers

import (
	"errors"
	"net/http"

	"github.com/postflow/aicore/services/generation"
	"github.com/postflow/aicore/services/providers"
	"github.com/postflow/aicore/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps generation pipeline errors to HTTP responses.
// Messages reaching this point have already been sanitized at the adapter
// boundary.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var validationErr *generation.ValidationError
	if errors.As(err, &validationErr) {
		_ = utils.WriteBadRequest(w, validationErr.Message, map[string]interface{}{
			"field": validationErr.Field,
		})
		return
	}

	var safetyErr *generation.SafetyError
	if errors.As(err, &safetyErr) {
		_ = utils.WriteUnprocessableEntity(w, safetyErr.Reason, map[string]interface{}{
			"rule_id":    safetyErr.RuleID,
			"request_id": safetyErr.RequestID.String(),
		})
		return
	}

	if errors.Is(err, providers.ErrUnknownProvider) {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	switch providers.KindOf(err) {
	case providers.KindCapabilityNotSupported:
		_ = utils.WriteBadRequest(w, err.Error(), nil)

	case providers.KindRateLimited, providers.KindRateLimitTimeout, providers.KindProviderRateLimited:
		_ = utils.WriteTooManyRequests(w, err.Error(), nil)

	case providers.KindCircuitOpen:
		_ = utils.WriteServiceUnavailable(w, err.Error(), nil)

	case providers.KindTimeout, providers.KindTaskTimeout:
		_ = utils.WriteGatewayTimeout(w, err.Error(), nil)

	case providers.KindTaskCreationFailed, providers.KindTaskFailed, providers.KindHTTPError,
		providers.KindTextGenerationFailed, providers.KindImageGenerationFailed, providers.KindVideoGenerationFailed:
		_ = utils.WriteBadGateway(w, err.Error(), nil)

	default:
		logger.Error("unhandled service error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
