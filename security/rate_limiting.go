package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis     *redis.Client
	perMinute int64
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: redisClient, perMinute: int64(perMinute)}
}

// QueueRateLimit caps queue mutations per caller per minute. The counter
// is a Redis key with a one minute TTL, keyed by user when authenticated
// and by IP otherwise.
func (r *RateLimiter) QueueRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ua := e.Request.Header.Get("User-Agent")
		if r.isSuspiciousUserAgent(ua) {
			return apis.NewForbiddenError("Access denied", nil)
		}

		key := fmt.Sprintf("ratelimit:%s", e.RealIP())
		if e.Auth != nil {
			key = fmt.Sprintf("ratelimit:user:%s", e.Auth.Id)
		}

		ctx := e.Request.Context()
		count, err := r.redis.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(ctx, key, time.Minute)
			}
			if count > r.perMinute {
				return apis.NewTooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
			}
		}

		return e.Next()
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
