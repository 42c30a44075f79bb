package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
	"github.com/zirconsol/drshaq-backend/pkg/config"
)

const (
	// ContextActor is the gin context key carrying the authenticated
	// subject for audit attribution.
	ContextActor = "actor"
	// ContextRole is the gin context key carrying the validated role.
	ContextRole = "role"
)

// AdminAuth validates the Bearer token and requires one of the given
// roles. Admin endpoints never fall through anonymously.
func AdminAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := security.ValidateJWT(token, config.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role := security.RoleFromClaims(claims)
		allowed := false
		for _, candidate := range roles {
			if role == candidate {
				allowed = true
				break
			}
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Set(ContextActor, security.SubjectFromClaims(claims))
		c.Set(ContextRole, role)
		c.Next()
	}
}
