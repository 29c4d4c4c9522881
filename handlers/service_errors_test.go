package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/authd/repositories"
	"github.com/upb/authd/services"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedMsg    string
	}{
		{
			name:           "not found",
			err:            services.ErrGroupNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
			expectedMsg:    "group not found",
		},
		{
			name:           "validation",
			err:            services.ErrWeakPassword,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
			expectedMsg:    "password does not meet policy",
		},
		{
			name:           "unauthorized",
			err:            services.ErrTokenExpired,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
			expectedMsg:    "authentication token expired",
		},
		{
			name:           "invalid credentials",
			err:            services.ErrInvalidCredentials,
			expectedStatus: http.StatusForbidden,
			expectedError:  "forbidden",
			expectedMsg:    "invalid username or password",
		},
		{
			name:           "rate limit",
			err:            services.ErrTooManySignInTrials,
			expectedStatus: http.StatusTooManyRequests,
			expectedError:  "rate_limit_exceeded",
			expectedMsg:    "too many sign-in attempts",
		},
		{
			name: "conflict hides driver text",
			err: services.FromStoreError(
				repositories.NewStoreError(repositories.ErrConflict, "groups.create", errors.New(`pq: duplicate key value violates unique constraint "groups_name_key"`)),
				"", "group already exists"),
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
			expectedMsg:    "group already exists",
		},
		{
			name:           "store unavailable",
			err:            services.FromStoreError(repositories.NewStoreError(repositories.ErrTemporary, "users.get", errors.New("connection refused")), "", ""),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "unavailable",
			expectedMsg:    "Service temporarily unavailable",
		},
		{
			name:           "internal",
			err:            services.ErrDatabaseError,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
			expectedMsg:    "An internal error occurred",
		},
		{
			name:           "plain error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
			expectedMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			HandleServiceError(w, r, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeErrorBody(t, w)
			assert.Equal(t, tt.expectedError, resp.Error)
			assert.Equal(t, tt.expectedMsg, resp.Message)
			assert.NotContains(t, w.Body.String(), "pq:")
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}

	t.Run("unavailable sets Retry-After", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		HandleServiceError(w, r, services.ErrStoreUnavailable, logger)

		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		HandleServiceError(w, r, nil, logger)

		assert.Empty(t, w.Body.String())
	})
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("field errors become details", func(t *testing.T) {
		err := utils.ValidateStruct(&CreateGroupRequest{})
		w := httptest.NewRecorder()

		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeErrorBody(t, w)
		assert.Equal(t, "Validation failed", resp.Message)
		assert.Contains(t, resp.Details, "group_name")
	})

	t.Run("other errors keep their message", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleValidationError(w, errors.New("bad input"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad input", decodeErrorBody(t, w).Message)
	})
}
