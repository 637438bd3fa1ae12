package middleware

import (
	"context"
	"net/http"
	"strconv"

	"workchat/internal/redis"
	"workchat/internal/services"
	"workchat/internal/transport/httpdto"
	"workchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// MessageRateLimitMiddleware caps message sends per user. It must run after
// AuthMiddleware. A failing limiter lets the request through.
func MessageRateLimitMiddleware(limiter MessageLimiter, l *logger.Logger) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowMessage(c.Request.Context(), userID.String())
		if err != nil {
			l.WithContext(c.Request.Context()).Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("message rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
