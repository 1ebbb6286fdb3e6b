package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/kanban-assistant/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	// DefaultRateLimit applies to the REST API when none is configured
	DefaultRateLimit = "10-S"
	// DefaultChatRateLimit applies to the relay and chat routes, which fan out to the paid gateway
	DefaultChatRateLimit = "30-M"
)

// RateLimit returns ulule/limiter middleware backed by Redis. Requests are
// keyed by authenticated user when available and by client IP otherwise.
// prefix separates the counters of independently limited route groups.
func RateLimit(redisClient *redis.Client, rate, prefix string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRateLimit
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "kanban_" + prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return newRateLimiter(limiter.New(store, parsed)), nil
}

func newRateLimiter(instance *limiter.Limiter) func(http.Handler) http.Handler {
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(request.RateLimitKey),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limited, retry later")
		}),
	)
	return mw.Handler
}
