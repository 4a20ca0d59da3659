package middleware

import (
	"net/http"

	logpkg "github.com/benvon/originguard/internal/logger"
	"github.com/benvon/originguard/internal/request"
	"go.uber.org/zap"
)

// Audit logs rate limit violations. It sits just outside RateLimit, whose
// 429 responses are otherwise silent.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode == http.StatusTooManyRequests {
				logger.Warn("rate_limit_violation",
					zap.String("request_id", request.RequestID(r)),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("origin", logpkg.SanitizeOrigin(r.Header.Get("Origin"))),
					zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				)
			}
		})
	}
}
