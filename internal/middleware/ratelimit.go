package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/otakon/companion/internal/request"
)

// DefaultRateLimit is the per-client rate applied when none is configured.
// Chat turns are slow by nature, so a modest per-second rate is plenty.
const DefaultRateLimit = "5-S"

// RedisRateLimiter owns the Redis connection backing the rate limit store.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter connects to Redis and verifies the connection.
func NewRedisRateLimiter(redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRateLimiter{client: client}, nil
}

// Close closes the Redis connection
func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable
func (r *RedisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RateLimit returns middleware using ulule/limiter with the Redis store.
// Authenticated requests are keyed by user ID, everything else by client IP.
func (r *RedisRateLimiter) RateLimit(rateStr string) (func(http.Handler) http.Handler, error) {
	if rateStr == "" {
		rateStr = DefaultRateLimit
	}
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rateStr, err)
	}
	store, err := redisstore.NewStore(r.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter store: %w", err)
	}
	instance := limiter.New(store, rate)
	keyGetter := func(req *http.Request) string {
		if u := request.UserFromContext(req); u != nil {
			return "user:" + u.ID
		}
		return "ip:" + request.ClientIP(req)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
