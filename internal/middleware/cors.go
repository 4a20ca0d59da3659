package middleware

import (
	"net/http"

	"github.com/benvon/originguard/internal/cors"
	logpkg "github.com/benvon/originguard/internal/logger"
	"github.com/benvon/originguard/internal/metrics"
	"github.com/benvon/originguard/internal/request"
	"go.uber.org/zap"
)

// CORS is the only place CORS response headers are written. Rejected origins
// get a 403 and never reach next. Allowed OPTIONS requests are answered with
// 200 here regardless of path.
func CORS(authz *cors.Authorizer, logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	logger.Info("cors_middleware_initialized",
		zap.Stringers("allowed_origins", authz.Patterns()),
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			decision, err := authz.Authorize(origin)
			if err != nil {
				m.ObserveCORSDecision(metrics.DecisionRejected)
				logger.Warn("cors_origin_rejected",
					zap.String("origin", logpkg.SanitizeOrigin(origin)),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("request_id", request.RequestID(r)),
				)
				respondError(w, r, http.StatusForbidden, cors.ErrOriginRejected.Error(), logger)
				return
			}

			if origin == "" {
				m.ObserveCORSDecision(metrics.DecisionNoOrigin)
			} else {
				m.ObserveCORSDecision(metrics.DecisionAllowed)
			}
			decision.Apply(w.Header())

			if r.Method == http.MethodOptions {
				m.ObservePreflight()
				logger.Debug("cors_preflight",
					zap.String("origin", logpkg.SanitizeOrigin(origin)),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				)
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
