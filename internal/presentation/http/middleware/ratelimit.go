package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/clientip"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/metrics"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/ratelimit"
)

// ContextClientIP is the gin context key carrying the resolved caller
// address for downstream stamping.
const ContextClientIP = "client_ip"

// ClientIP resolves the effective caller address once per request,
// honoring forwarding headers only from trusted proxies.
func ClientIP(resolver *clientip.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextClientIP, resolver.Resolve(c.Request.RemoteAddr, c.Request.Header))
		c.Next()
	}
}

// RateLimit enforces a fixed-window budget per resolved client address.
// Rejections carry Retry-After and persist nothing.
func RateLimit(limiter *ratelimit.Limiter, counters *metrics.IngestionCounters) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString(ContextClientIP)
		if identity == "" {
			identity = c.Request.RemoteAddr
		}
		allowed, retryAfter := limiter.Allow(identity)
		if !allowed {
			counters.RateLimited()
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
