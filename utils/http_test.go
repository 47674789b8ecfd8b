package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, http.StatusOK, map[string]string{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestWriteJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, http.StatusOK, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad", nil) },
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
		},
		{
			name:       "unauthorized default message",
			write:      func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
		},
		{
			name:       "unprocessable entity",
			write:      func(w http.ResponseWriter) error { return WriteUnprocessableEntity(w, "rejected", nil) },
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "unprocessable_entity",
		},
		{
			name:       "too many requests",
			write:      func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) },
			wantStatus: http.StatusTooManyRequests,
			wantError:  "rate_limit_exceeded",
		},
		{
			name:       "bad gateway",
			write:      func(w http.ResponseWriter) error { return WriteBadGateway(w, "upstream failed", nil) },
			wantStatus: http.StatusBadGateway,
			wantError:  "bad_gateway",
		},
		{
			name:       "service unavailable",
			write:      func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "", nil) },
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "service_unavailable",
		},
		{
			name:       "gateway timeout",
			write:      func(w http.ResponseWriter) error { return WriteGatewayTimeout(w, "", nil) },
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "gateway_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, tt.write(rec))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestValidateStruct(t *testing.T) {
	type request struct {
		Prompt string `validate:"required"`
		Count  int    `validate:"gte=0,lte=4"`
	}

	assert.NoError(t, ValidateStruct(request{Prompt: "p", Count: 2}))

	err := ValidateStruct(request{Count: 9})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields, "Prompt")
	assert.Contains(t, fields, "Count")
}
