package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bakery/storefront/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

// redisRateLimiter counts requests per key in fixed windows
type redisRateLimiter struct {
	redisClient *redis.Client
	keyPrefix   string
	maxRequests int
	window      time.Duration
}

func NewRedisRateLimiter(redisClient *redis.Client, keyPrefix string, cfg config.RateLimitConfig) RateLimiter {
	return &redisRateLimiter{
		redisClient: redisClient,
		keyPrefix:   keyPrefix + "rl:",
		maxRequests: cfg.MaxRequests,
		window:      time.Duration(cfg.Window) * time.Second,
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	key = l.keyPrefix + key

	pipe := l.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateDecision{}, fmt.Errorf("failed to count request: %w", err)
	}

	count := int(incr.Val())
	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = l.window
	}

	return RateDecision{
		Allowed:   count <= l.maxRequests,
		Limit:     l.maxRequests,
		Remaining: max(0, l.maxRequests-count),
		ResetIn:   resetIn,
	}, nil
}

// RateLimit keys requests per client, method and route. A limiter failure
// lets the request through.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.Request.Method + ":" + c.FullPath()

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Errorf("❌ Rate limiter unavailable: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(decision.ResetIn.Seconds())))

		if !decision.Allowed {
			log.Warnf("🚫 Rate limit exceeded for %s", key)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
