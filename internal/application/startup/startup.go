// Package startup boots the process: logging, dependency wiring, the
// HTTP server, and graceful shutdown.
package startup

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/application/container"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/presentation/http/server"
	"github.com/zirconsol/drshaq-backend/pkg/config"
)

const shutdownGrace = 10 * time.Second

// Initialize wires the subsystem and runs the HTTP server until a
// termination signal arrives.
func Initialize() error {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	c, err := container.New(logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer c.Close()

	go c.MetricsBroadcaster.Run()

	srv := server.New(config.Port, c)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Startup().Info("Tracking subsystem started",
		"port", config.Port,
		"driver", config.DBDriver,
		"retentionDays", config.TrackingRetentionDays)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Shutdown().Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	logger.Shutdown().Info("Shutdown complete")
	return nil
}
