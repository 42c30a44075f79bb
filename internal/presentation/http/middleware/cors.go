package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/pkg/config"
)

// CORSMiddleware provides the CORS configuration for the storefront and
// admin dashboard origins.
func CORSMiddleware() gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Requested-With", "X-Events-Key",
			"Cache-Control",
		},
		AllowCredentials: true,
		ExposeHeaders: []string{
			"Content-Type", "Retry-After",
		},
	}

	return cors.New(corsConfig)
}
