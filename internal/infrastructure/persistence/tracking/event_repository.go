// Package tracking provides the concrete SQL-based implementations
// for tracking event and product request persistence.
//
// Dedupe lives here: the unique index on idempotency_key is the only
// arbitration point for concurrent writers. A uniqueness violation is
// reinterpreted as "already accepted" and the prior row is returned.
package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
)

// SQLEventRepository persists tracking events to the database.
type SQLEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLEventRepository {
	return &SQLEventRepository{
		db:     db,
		logger: logger,
	}
}

const insertEventQuery = `
	INSERT INTO tracking_events (
		id, event_name, source, visitor_id, session_id, page_path,
		idempotency_key, product_id, catalog_id, request_id,
		utm_source, utm_medium, utm_campaign, referrer,
		occurred_at, received_at, client_ip
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Insert persists the event, or returns the prior outcome when the
// idempotency key was already accepted by an earlier (possibly
// concurrent) caller.
func (r *SQLEventRepository) Insert(ctx context.Context, event *tracking.TrackingEvent) (*tracking.InsertOutcome, error) {
	start := time.Now()
	r.logger.Database().Debug("Executing tracking event insert",
		"eventId", event.ID,
		"eventName", string(event.EventName),
		"sessionId", event.SessionID)

	_, err := insertEvent(ctx, r.db.DB, event)
	database.CheckAndLogSlowQuery(r.logger, insertEventQuery, time.Since(start))

	if err != nil {
		if !isUniqueViolation(err) {
			r.logger.Database().Error("Failed to insert tracking event",
				"error", err, "eventId", event.ID)
			return nil, fmt.Errorf("failed to insert tracking event: %w", err)
		}
		existing, findErr := r.FindByIdempotencyKey(ctx, event.IdempotencyKey)
		if findErr != nil {
			return nil, fmt.Errorf("failed to resolve duplicate event: %w", findErr)
		}
		return &tracking.InsertOutcome{Created: false, EventID: existing.ID}, nil
	}

	return &tracking.InsertOutcome{Created: true, EventID: event.ID}, nil
}

// FindByIdempotencyKey returns the accepted event for a key.
func (r *SQLEventRepository) FindByIdempotencyKey(ctx context.Context, key string) (*tracking.TrackingEvent, error) {
	const query = `
		SELECT id, event_name, source, visitor_id, session_id, page_path,
		       idempotency_key, product_id, catalog_id, request_id,
		       utm_source, utm_medium, utm_campaign, referrer,
		       occurred_at, received_at, client_ip
		FROM tracking_events WHERE idempotency_key = ?`

	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, key)
	event, err := scanEvent(row)
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tracking.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tracking event: %w", err)
	}
	return event, nil
}

// CountBefore counts purge candidates received strictly before the cutoff.
func (r *SQLEventRepository) CountBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM tracking_events WHERE received_at < ?`

	start := time.Now()
	var count int
	err := r.db.QueryRowContext(ctx, query, cutoff.UTC()).Scan(&count)
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	if err != nil {
		return 0, fmt.Errorf("failed to count purgeable events: %w", err)
	}
	return count, nil
}

// DeleteBefore deletes events received strictly before the cutoff and
// returns the number of rows removed.
func (r *SQLEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM tracking_events WHERE received_at < ?`

	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	if err != nil {
		r.logger.Database().Error("Failed to purge tracking events",
			"error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to purge tracking events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge row count: %w", err)
	}
	return int(deleted), nil
}

// execer lets the insert helpers run against both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, ex execer, event *tracking.TrackingEvent) (sql.Result, error) {
	var occurredAt any
	if event.OccurredAt != nil {
		occurredAt = event.OccurredAt.UTC()
	}
	return ex.ExecContext(ctx, insertEventQuery,
		event.ID,
		string(event.EventName),
		string(event.Source),
		event.VisitorID,
		event.SessionID,
		event.PagePath,
		event.IdempotencyKey,
		event.ProductID,
		event.CatalogID,
		event.RequestID,
		event.UTMSource,
		event.UTMMedium,
		event.UTMCampaign,
		event.Referrer,
		occurredAt,
		event.ReceivedAt.UTC(),
		event.ClientIP,
	)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*tracking.TrackingEvent, error) {
	var (
		event      tracking.TrackingEvent
		eventName  string
		source     string
		occurredAt sql.NullTime
		receivedAt time.Time
	)
	err := row.Scan(
		&event.ID,
		&eventName,
		&source,
		&event.VisitorID,
		&event.SessionID,
		&event.PagePath,
		&event.IdempotencyKey,
		&event.ProductID,
		&event.CatalogID,
		&event.RequestID,
		&event.UTMSource,
		&event.UTMMedium,
		&event.UTMCampaign,
		&event.Referrer,
		&occurredAt,
		&receivedAt,
		&event.ClientIP,
	)
	if err != nil {
		return nil, err
	}
	event.EventName = tracking.EventName(eventName)
	event.Source = tracking.Source(source)
	if occurredAt.Valid {
		t := occurredAt.Time.UTC()
		event.OccurredAt = &t
	}
	event.ReceivedAt = receivedAt.UTC()
	return &event, nil
}

// isUniqueViolation reports whether err is a uniqueness constraint
// failure. The sqlite3 driver surfaces a typed error; the libsql driver
// only surfaces text, so the message check is the fallback.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
