package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/originguard/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitStore is the limiter backend plus whatever must be closed on shutdown.
type RateLimitStore struct {
	limiter.Store
	redis *redis.Client
}

// NewRateLimitStore returns an in-process store when redisURL is empty, and a
// Redis-backed store shared between replicas otherwise.
func NewRateLimitStore(ctx context.Context, redisURL string) (*RateLimitStore, error) {
	if redisURL == "" {
		return &RateLimitStore{Store: memorystore.NewStore()}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store, err := redisstore.NewStore(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return &RateLimitStore{Store: store, redis: client}, nil
}

// Backend names the store for logs and health output.
func (s *RateLimitStore) Backend() string {
	if s.redis != nil {
		return "redis"
	}
	return "memory"
}

// Ping checks the Redis connection. The memory store is always reachable.
func (s *RateLimitStore) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx).Err()
}

// Close releases the Redis connection, if any.
func (s *RateLimitStore) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

// RateLimit limits requests per client IP. rate uses the limiter format, e.g. "100-M".
func RateLimit(store limiter.Store, rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	instance := limiter.New(store, parsed)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
