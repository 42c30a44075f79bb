// Command retention runs one purge pass over the tracking tables. It is
// meant to be invoked from cron; -dry-run is the default so an operator
// must opt into deletion with -apply.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/application/services"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
	persistence "github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/tracking"
	"github.com/zirconsol/drshaq-backend/pkg/config"
)

func main() {
	days := flag.Int("days", config.TrackingRetentionDays, "retention horizon in days")
	apply := flag.Bool("apply", false, "delete candidates instead of only counting them")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	if *days <= 0 {
		log.Fatalf("retention horizon must be positive, got %d", *days)
	}

	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}

	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	eventRepo := persistence.NewSQLEventRepository(db, logger)
	requestRepo := persistence.NewSQLRequestRepository(db, logger)
	retention := services.NewRetentionService(eventRepo, requestRepo, config.PurgeTerminalRequests, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	run, err := retention.Run(ctx, *days, *apply)
	if err != nil {
		log.Fatalf("retention pass failed: %v", err)
	}

	encoded, err := json.Marshal(run)
	if err != nil {
		log.Fatalf("failed to encode run report: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))
}
