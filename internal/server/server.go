// Package server assembles the HTTP handler: routes plus the middleware chain.
package server

import (
	"fmt"
	"net/http"

	"github.com/benvon/originguard/internal/cors"
	"github.com/benvon/originguard/internal/handlers"
	"github.com/benvon/originguard/internal/metrics"
	"github.com/benvon/originguard/internal/middleware"
	"github.com/benvon/originguard/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// Options carries everything NewHandler wires together. Metrics, RateLimitStore
// and Checks may be nil.
type Options struct {
	Authorizer     *cors.Authorizer
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	RateLimitStore limiter.Store
	RateLimit      string
	EnableHSTS     bool
	Tracing        bool
	Checks         map[string]handlers.Pinger
}

// NewHandler returns the router wrapped in the full middleware chain.
// The chain wraps the router rather than being registered with Use, since mux
// only runs Use middleware for matched routes and CORS must see every request.
// Tracing is the exception: otelmux needs the matched route to name spans.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	if opts.Tracing {
		r.Use(telemetry.Middleware(telemetry.ServiceName))
	}
	r.HandleFunc("/", handlers.Root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handlers.NewHealthChecker(opts.Checks).HealthCheck).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(r)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Innermost first.
	chain := []func(http.Handler) http.Handler{
		middleware.ErrorHandler(logger),
		middleware.Timeout(middleware.DefaultRequestTimeout),
		middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, logger),
	}
	if opts.RateLimitStore != nil {
		rl, err := middleware.RateLimit(opts.RateLimitStore, opts.RateLimit)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rl, middleware.Audit(logger))
	}
	chain = append(chain,
		middleware.CORS(opts.Authorizer, logger, opts.Metrics),
		middleware.SecurityHeaders(opts.EnableHSTS),
		middleware.Logging(logger),
		middleware.RequestID,
	)
	if opts.Metrics != nil {
		chain = append(chain, middleware.Metrics(opts.Metrics))
	}

	var h http.Handler = r
	for _, mw := range chain {
		h = mw(h)
	}
	return h, nil
}
