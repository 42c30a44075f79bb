// Package container wires the subsystem's dependencies in one place.
package container

import (
	"fmt"

	"github.com/zirconsol/drshaq-backend/internal/application/services"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/clientip"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/messaging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/metrics"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
	persistence "github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/ratelimit"
	"github.com/zirconsol/drshaq-backend/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Logger   *logging.ChanneledLogger
	DB       *database.DB
	Counters *metrics.IngestionCounters

	ClientIPResolver *clientip.Resolver
	EventLimiter     *ratelimit.Limiter
	RequestLimiter   *ratelimit.Limiter

	MetricsBroadcaster *messaging.MetricsBroadcaster

	TrackingService  *services.TrackingService
	LifecycleService *services.LifecycleService
	ReportingService *services.ReportingService
	RetentionService *services.RetentionService
}

// New builds the full dependency graph from configuration.
func New(logger *logging.ChanneledLogger) (*Container, error) {
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.EnsureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	counters := metrics.NewIngestionCounters()

	eventRepo := persistence.NewSQLEventRepository(db, logger)
	requestRepo := persistence.NewSQLRequestRepository(db, logger)
	reportRepo := persistence.NewSQLReportRepository(db, logger)
	registry := persistence.NewSQLProductRegistry(db)

	return &Container{
		Logger:   logger,
		DB:       db,
		Counters: counters,

		ClientIPResolver: clientip.NewResolver(config.TrustProxyHeaders, config.TrustedProxyCIDRs),
		EventLimiter: ratelimit.NewLimiter(
			ratelimit.NewMemoryCounterStore(config.RateLimitMaxTrackedBuckets),
			config.EventRateLimitRequests,
			config.EventRateLimitWindow,
		),
		RequestLimiter: ratelimit.NewLimiter(
			ratelimit.NewMemoryCounterStore(config.RateLimitMaxTrackedBuckets),
			config.RequestRateLimitRequests,
			config.RequestRateLimitWindow,
		),

		MetricsBroadcaster: messaging.NewMetricsBroadcaster(counters, logger, config.MetricsStreamInterval),

		TrackingService:  services.NewTrackingService(eventRepo, requestRepo, registry, counters, logger),
		LifecycleService: services.NewLifecycleService(requestRepo, config.RequestReopenEnabled, logger),
		ReportingService: services.NewReportingService(reportRepo, logger),
		RetentionService: services.NewRetentionService(eventRepo, requestRepo, config.PurgeTerminalRequests, logger),
	}, nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
