package handlers

import (
	"context"
	"net/http"

	"github.com/upb/authd/internal/observability"
	"github.com/upb/authd/models"
	"github.com/upb/authd/services"
	"github.com/upb/authd/services/identity"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// IdentityService defines the user and credential operations the HTTP
// layer needs
type IdentityService interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	SignIn(ctx context.Context, username, password string) (*identity.SignInResult, error)
	ValidateToken(ctx context.Context, raw string) (*identity.TokenInfo, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	DisableUser(ctx context.Context, id int64) error
}

// CredentialsRequest is the body of sign-in and sign-up
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,username,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// AuthHandler handles sign-in, self sign-up and token introspection
type AuthHandler struct {
	identity    IdentityService
	metrics     *observability.Metrics
	allowSignUp bool
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. metrics may be nil.
func NewAuthHandler(identity IdentityService, metrics *observability.Metrics, allowSignUp bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity:    identity,
		metrics:     metrics,
		allowSignUp: allowSignUp,
		logger:      logger,
	}
}

// HandleSignIn handles POST /auth/v1/sign_in
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.identity.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		if services.IsForbiddenError(err) {
			h.metrics.SignIn(observability.SignInFailure)
		}
		HandleServiceError(w, r, err, h.logger)
		return
	}
	h.metrics.SignIn(observability.SignInSuccess)

	h.logger.Info("user signed in",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int64("user_id", result.UserID))

	_ = utils.WriteOK(w, result)
}

// HandleSignUp handles POST /auth/v1/sign_up
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	if !h.allowSignUp {
		_ = utils.WriteForbidden(w, "Sign-up is disabled")
		return
	}

	var req CredentialsRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.identity.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("user signed up",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int64("user_id", user.ID))

	_ = utils.WriteCreated(w, user)
}

// HandleValidate handles GET /srv/v1/validate. RequireAuth has already
// validated the bearer token; the claims are echoed back for other services.
func (h *AuthHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	_ = utils.WriteOK(w, identity.TokenInfo{
		UserID:      claims.UserID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt,
	})
}
