package middleware

import (
	"strconv"
	"sync"
	"time"

	"sportshub/pkg/config"
	"sportshub/pkg/errors"
	"sportshub/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterPruneTick = time.Minute
)

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	store := ratelimit.NewKeyed(rate.Limit(rps), cfg.RateLimiting.HTTP.Burst)
	retryAfter := strconv.Itoa(int(time.Duration(float64(time.Second)/rps).Seconds()) + 1)

	var (
		pruneMu   sync.Mutex
		lastPrune = time.Now()
	)

	return func(c *gin.Context) {
		pruneMu.Lock()
		if time.Since(lastPrune) > limiterPruneTick {
			lastPrune = time.Now()
			store.Prune(limiterIdleTTL)
		}
		pruneMu.Unlock()

		if !store.Allow(ratelimit.ClientIP(c.Request)) {
			c.Header("Retry-After", retryAfter)
			c.Error(errors.NewRateLimitError())
			c.Abort()
			return
		}
		c.Next()
	}
}
