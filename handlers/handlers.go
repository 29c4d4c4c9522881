// Package handlers exposes the use cases over HTTP. Handlers stay thin:
// decode and validate the request, call one service method, and map the
// result or domain error to a JSON response.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/authd/middleware"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// requestIDFrom returns the chi request id of r
func requestIDFrom(r *http.Request) string {
	return middleware.GetRequestIDFromContext(r.Context())
}

// decodeRequest parses and validates a JSON body. On failure it writes the
// 400 response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		logger.Debug("failed to parse request body",
			zap.String("request_id", requestIDFrom(r)),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		logger.Debug("request validation failed",
			zap.String("request_id", requestIDFrom(r)),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// pathID reads a positive integer chi URL parameter. On failure it writes
// the 400 response and returns false.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := utils.ParseID(chi.URLParam(r, name), name)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return 0, false
	}
	return id, true
}

// requireClaims returns the caller's claims or writes a 401
func requireClaims(w http.ResponseWriter, r *http.Request) (*middleware.Claims, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return claims, true
}
