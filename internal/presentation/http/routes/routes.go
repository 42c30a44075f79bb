// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/application/container"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
	"github.com/zirconsol/drshaq-backend/internal/presentation/http/handlers"
	"github.com/zirconsol/drshaq-backend/internal/presentation/http/middleware"
	"github.com/zirconsol/drshaq-backend/pkg/config"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ClientIP(c.ClientIPResolver))

	trackingHandlers := handlers.NewTrackingHandlers(c.TrackingService, c.Logger)
	requestAdminHandlers := handlers.NewRequestAdminHandlers(c.LifecycleService, c.Logger)
	reportingHandlers := handlers.NewReportingHandlers(c.ReportingService, c.Logger)
	metricsHandlers := handlers.NewMetricsHandlers(c.Counters, c.MetricsBroadcaster, c.Logger)
	healthHandlers := handlers.NewHealthHandlers(c.DB)

	api := r.Group("/api/v1")

	api.GET("/health", healthHandlers.GetHealth)

	// Public ingestion. Gated by the shared write key when configured,
	// and rate limited per resolved client address.
	track := api.Group("/track")
	track.Use(middleware.EventsKeyAuth(config.PublicEventWriteKeys))
	{
		track.POST("/events",
			middleware.RateLimit(c.EventLimiter, c.Counters),
			trackingHandlers.PostEvent)
		track.POST("/requests",
			middleware.RateLimit(c.RequestLimiter, c.Counters),
			trackingHandlers.PostRequest)
	}

	// Admin request lifecycle.
	requests := api.Group("/requests")
	requests.Use(middleware.AdminAuth(security.RoleAdmin, security.RoleEditor))
	{
		requests.GET("", requestAdminHandlers.ListRequests)
		requests.GET("/:id", requestAdminHandlers.GetRequest)
		requests.GET("/:id/history", requestAdminHandlers.GetRequestHistory)
	}
	api.PATCH("/requests/:id/status",
		middleware.AdminAuth(security.RoleAdmin),
		requestAdminHandlers.PatchRequestStatus)

	// Admin reporting.
	reporting := api.Group("/reporting")
	reporting.Use(middleware.AdminAuth(security.RoleAdmin, security.RoleEditor))
	{
		reporting.GET("/kpis", reportingHandlers.GetKPIs)
		reporting.GET("/top-products", reportingHandlers.GetTopProducts)
		reporting.GET("/top-requested-products", reportingHandlers.GetTopRequestedProducts)
		reporting.GET("/utm-referrer", reportingHandlers.GetUTMReferrer)
		reporting.GET("/funnel", reportingHandlers.GetFunnel)
	}

	// Live ingestion metrics for the admin dashboard.
	metricsGroup := api.Group("/metrics")
	metricsGroup.Use(middleware.AdminAuth(security.RoleAdmin, security.RoleEditor))
	{
		metricsGroup.GET("/ingestion", metricsHandlers.GetIngestionMetrics)
		metricsGroup.GET("/ingestion/stream", metricsHandlers.StreamIngestionMetrics)
	}

	return r
}
