package handlers

import (
	"net/http"
	"time"

	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// CurrentUserResponse is the response body for GET /api/v1/users/me
type CurrentUserResponse struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Enabled     bool      `json:"enabled"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"token_expires_at"`
}

// UserHandler handles user administration
type UserHandler struct {
	identity IdentityService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(identity IdentityService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		identity: identity,
		logger:   logger,
	}
}

// HandleCreateUser handles POST /api/v1/users
func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.identity.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("user created",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int64("user_id", user.ID))

	_ = utils.WriteCreated(w, user)
}

// HandleGetUser handles GET /api/v1/users/{id}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.identity.GetUser(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleDisableUser handles DELETE /api/v1/users/{id}. Missing and already
// disabled users both yield 204.
func (h *UserHandler) HandleDisableUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.identity.DisableUser(r.Context(), id); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleCurrentUser handles GET /api/v1/users/me
func (h *UserHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	user, err := h.identity.GetUser(r.Context(), claims.UserID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, CurrentUserResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Enabled:     user.Enabled,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt,
	})
}
