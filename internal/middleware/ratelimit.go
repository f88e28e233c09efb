package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/httpapi"
)

const storePrefix = "backoffice:ratelimit"

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          storePrefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix:   storePrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, nil
}

// NewStoreFromConfig picks the limiter backend. A redis store that cannot be
// created falls back to memory, so limits are then enforced per instance only.
func NewStoreFromConfig(cfg config.RateLimitConfig) limiter.Store {
	if cfg.Storage != "redis" {
		return NewMemoryStore()
	}
	store, err := NewRedisStore(cfg.RedisURL)
	if err != nil {
		slog.Warn("failed to create redis store for rate limiting, falling back to memory", "error", err)
		return NewMemoryStore()
	}
	return store
}

// RateLimit limits requests per client IP. rate uses the limiter's formatted
// notation, e.g. "60-M" for sixty requests a minute.
func RateLimit(store limiter.Store, rate string) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	return mgin.NewMiddleware(limiter.New(store, parsed),
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			httpapi.Abort(c, http.StatusTooManyRequests, httpapi.CodeTooManyRequests, "too many requests", nil)
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			slog.ErrorContext(c.Request.Context(), "rate limiter failed", "error", err)
			httpapi.Abort(c, http.StatusInternalServerError, httpapi.CodeInternal, "internal server error", nil)
		}),
	), nil
}
