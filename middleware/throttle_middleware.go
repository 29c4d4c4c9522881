package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/authd/internal/observability"
	"github.com/upb/authd/services/ratelimit"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// ThrottleMiddleware limits requests per client address with a fixed-window
// limiter. It guards the sign-in endpoint against password guessing.
type ThrottleMiddleware struct {
	limiter ratelimit.Limiter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewThrottleMiddleware creates a new ThrottleMiddleware. metrics may be nil.
func NewThrottleMiddleware(limiter ratelimit.Limiter, metrics *observability.Metrics, logger *zap.Logger) *ThrottleMiddleware {
	return &ThrottleMiddleware{
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Limit rejects a client with 429 once it exhausts its window. Limiter
// failures let the request through.
func (m *ThrottleMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		clientIP := ClientIP(r)

		result, err := m.limiter.Allow(ctx, clientIP)
		if err != nil {
			m.logger.Error("throttle check failed, allowing request",
				zap.String("request_id", requestID),
				zap.String("client_ip", clientIP),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !result.Allowed {
			retryAfter := retryAfterSeconds(result.RetryAfter)

			m.logger.Warn("request throttled",
				zap.String("request_id", requestID),
				zap.String("client_ip", clientIP),
				zap.Int64("hits", result.Hits),
				zap.Int("retry_after_seconds", retryAfter))
			m.metrics.SignIn(observability.SignInThrottled)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			_ = utils.WriteTooManyRequests(w, "Too many sign-in attempts", map[string]interface{}{
				"retry_after": retryAfter,
				"reset_at":    result.ResetAt.UTC().Format(time.RFC3339),
			})
			return
		}

		if !result.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds up so clients never retry inside the window
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
