package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lingohub/internal/observability/logger"
	"go.uber.org/zap"
)

// BookingRateLimit throttles checkout creation per client address. A limiter
// backend error lets the request through.
func (s *Server) BookingRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.bookingLimiter == nil || !s.bookingLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.bookingLimiter.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("booking rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.FromContext(ctx).Warn("booking rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.Int("retry_after_s", retryAfter),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
