package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/authd/internal/observability"
	"github.com/upb/authd/models"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	// ValidateToken validates a token and returns the caller's claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// AuthMiddleware provides authentication and role gates
type AuthMiddleware struct {
	validator TokenValidator
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. metrics may be nil.
func NewAuthMiddleware(validator TokenValidator, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// unauthenticatedMessage is shared by every 401 so responses do not reveal
// why a token was rejected.
const unauthenticatedMessage = "Missing or invalid authorization"

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Debug("missing bearer token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			m.metrics.AccessDecision(observability.DecisionUnauthenticated)
			_ = utils.WriteUnauthorized(w, unauthenticatedMessage)
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil || claims == nil {
			m.logger.Info("token validation failed",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.metrics.AccessDecision(observability.DecisionUnauthenticated)
			_ = utils.WriteUnauthorized(w, unauthenticatedMessage)
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.Int64("user_id", claims.UserID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAnyRole admits callers holding at least one of roles. It must run
// after RequireAuth.
func (m *AuthMiddleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				m.metrics.AccessDecision(observability.DecisionUnauthenticated)
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !models.HasAnyRole(claims.Roles, roles...) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.Int64("user_id", claims.UserID),
					zap.Strings("required_roles", roles),
					zap.Strings("user_roles", claims.Roles))
				m.metrics.AccessDecision(observability.DecisionForbidden)
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			m.metrics.AccessDecision(observability.DecisionAllow)
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
