package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
)

// EventsKeyAuth gates the public ingestion endpoints behind a shared
// write key. With no keys configured the gate is open; ingestion is a
// public surface and the key only raises the abuse bar.
func EventsKeyAuth(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		presented := c.GetHeader("X-Events-Key")
		for _, key := range keys {
			if security.SecureCompare(presented, key) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid events key"})
	}
}
