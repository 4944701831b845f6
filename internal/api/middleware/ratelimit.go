package middleware

import (
	"log/slog"
	"net/http"

	"tourhive/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit rejects clients that exhausted their per-IP token bucket.
//
// Redis 故障时放行（fail-open），只记日志。
func RateLimit(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests from this IP, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}
