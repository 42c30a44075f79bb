package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
)

// SQLRequestRepository persists product requests, their item snapshots,
// the linked submission event, and the status audit trail.
type SQLRequestRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLRequestRepository creates a new instance of the repository.
func NewSQLRequestRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLRequestRepository {
	return &SQLRequestRepository{
		db:     db,
		logger: logger,
	}
}

const insertRequestQuery = `
	INSERT INTO product_requests (
		id, status, idempotency_key, source, session_id, visitor_id,
		page_path, customer_name, customer_email, customer_phone, notes,
		utm_source, utm_medium, utm_campaign, referrer, client_ip,
		created_at, updated_at, contacted_at, resolved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)`

const insertRequestItemQuery = `
	INSERT INTO product_request_items (
		request_id, product_id, product_name, variant_size, variant_color,
		unit_price_cents, quantity, sort_order
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Create persists the request, its item snapshots, and the linked
// request_submitted event in one transaction. Either everything lands
// or nothing does; a duplicate idempotency key rolls back and resolves
// to the previously accepted request.
func (r *SQLRequestRepository) Create(ctx context.Context, request *tracking.ProductRequest, linked *tracking.TrackingEvent) (*tracking.InsertOutcome, error) {
	start := time.Now()
	r.logger.Database().Debug("Executing product request insert",
		"requestId", request.ID,
		"sessionId", request.SessionID,
		"items", len(request.Items))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin request transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertRequestQuery,
		request.ID,
		string(request.Status),
		request.IdempotencyKey,
		string(request.Source),
		request.SessionID,
		request.VisitorID,
		request.PagePath,
		request.CustomerName,
		request.CustomerEmail,
		request.CustomerPhone,
		request.Notes,
		request.UTMSource,
		request.UTMMedium,
		request.UTMCampaign,
		request.Referrer,
		request.ClientIP,
		request.CreatedAt.UTC(),
		request.UpdatedAt.UTC(),
	)
	database.CheckAndLogSlowQuery(r.logger, insertRequestQuery, time.Since(start))
	if err != nil {
		if !isUniqueViolation(err) {
			r.logger.Database().Error("Failed to insert product request",
				"error", err, "requestId", request.ID)
			return nil, fmt.Errorf("failed to insert product request: %w", err)
		}
		existing, findErr := r.findByIdempotencyKey(ctx, request.IdempotencyKey)
		if findErr != nil {
			return nil, fmt.Errorf("failed to resolve duplicate request: %w", findErr)
		}
		outcome := &tracking.InsertOutcome{Created: false, RequestID: existing.ID}
		if linked != nil {
			outcome.EventID = linked.ID
		}
		return outcome, nil
	}

	for i, item := range request.Items {
		_, err = tx.ExecContext(ctx, insertRequestItemQuery,
			request.ID,
			item.ProductID,
			item.ProductName,
			item.VariantSize,
			item.VariantColor,
			item.UnitPriceCents,
			item.Quantity,
			i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert request item: %w", err)
		}
	}

	if linked != nil {
		if _, err := insertEvent(ctx, tx, linked); err != nil {
			// The request key was fresh, so a uniqueness failure here means
			// the derived event key is already held by an unrelated event.
			if isUniqueViolation(err) {
				r.logger.Database().Warn("Linked event key already taken",
					"requestId", request.ID,
					"idempotencyKey", linked.IdempotencyKey)
				return nil, tracking.ErrIdempotencyConflict
			}
			return nil, fmt.Errorf("failed to insert linked event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit request transaction: %w", err)
	}
	outcome := &tracking.InsertOutcome{Created: true, RequestID: request.ID}
	if linked != nil {
		outcome.EventID = linked.ID
	}
	return outcome, nil
}

const selectRequestColumns = `
	id, status, idempotency_key, source, session_id, visitor_id,
	page_path, customer_name, customer_email, customer_phone, notes,
	utm_source, utm_medium, utm_campaign, referrer, client_ip,
	created_at, updated_at, contacted_at, resolved_at`

// Get returns a request with its items, or ErrNotFound.
func (r *SQLRequestRepository) Get(ctx context.Context, id string) (*tracking.ProductRequest, error) {
	query := `SELECT` + selectRequestColumns + ` FROM product_requests WHERE id = ?`

	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, id)
	request, err := scanRequest(row)
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tracking.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load product request: %w", err)
	}
	if err := r.loadItems(ctx, []*tracking.ProductRequest{request}); err != nil {
		return nil, err
	}
	return request, nil
}

func (r *SQLRequestRepository) findByIdempotencyKey(ctx context.Context, key string) (*tracking.ProductRequest, error) {
	query := `SELECT` + selectRequestColumns + ` FROM product_requests WHERE idempotency_key = ?`
	row := r.db.QueryRowContext(ctx, query, key)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tracking.ErrNotFound
		}
		return nil, err
	}
	return request, nil
}

// List returns requests matching the filter, newest first, plus the
// total match count for pagination.
func (r *SQLRequestRepository) List(ctx context.Context, filter tracking.RequestFilter) ([]*tracking.ProductRequest, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.ProductID != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM product_request_items i
			WHERE i.request_id = product_requests.id AND i.product_id = ?)`)
		args = append(args, filter.ProductID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	start := time.Now()
	countQuery := `SELECT COUNT(*) FROM product_requests` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count product requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	listQuery := `SELECT` + selectRequestColumns + ` FROM product_requests` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	listArgs := append(append([]any{}, args...), limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list product requests: %w", err)
	}
	defer rows.Close()

	var requests []*tracking.ProductRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate product requests: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, listQuery, time.Since(start))

	if err := r.loadItems(ctx, requests); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// UpdateStatus applies an evaluated transition and its audit entry in
// one transaction, then returns the refreshed request.
func (r *SQLRequestRepository) UpdateStatus(ctx context.Context, id string, change *tracking.StatusChange, update tracking.StatusUpdate) (*tracking.ProductRequest, error) {
	start := time.Now()

	setClauses := []string{"status = ?", "updated_at = ?"}
	args := []any{string(update.Status), update.UpdatedAt.UTC()}
	switch {
	case update.ClearContacted:
		setClauses = append(setClauses, "contacted_at = NULL")
	case update.TouchContacted:
		setClauses = append(setClauses, "contacted_at = COALESCE(contacted_at, ?)")
		args = append(args, update.UpdatedAt.UTC())
	}
	switch {
	case update.ClearResolved:
		setClauses = append(setClauses, "resolved_at = NULL")
	case update.SetResolved:
		setClauses = append(setClauses, "resolved_at = ?")
		args = append(args, update.UpdatedAt.UTC())
	}
	query := `UPDATE product_requests SET ` + strings.Join(setClauses, ", ") + ` WHERE id = ?`
	args = append(args, id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read status update row count: %w", err)
	}
	if affected == 0 {
		return nil, tracking.ErrNotFound
	}

	const auditQuery = `
		INSERT INTO request_status_changes (
			id, request_id, actor, from_status, to_status, action, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, auditQuery,
		change.ID,
		change.RequestID,
		change.Actor,
		string(change.FromStatus),
		string(change.ToStatus),
		string(change.Action),
		change.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Failed to record status change",
			"error", err, "requestId", id)
		return nil, fmt.Errorf("failed to record status change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status transaction: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	return r.Get(ctx, id)
}

// StatusHistory returns the audit trail for a request, oldest first.
func (r *SQLRequestRepository) StatusHistory(ctx context.Context, id string) ([]*tracking.StatusChange, error) {
	const query = `
		SELECT id, request_id, actor, from_status, to_status, action, created_at
		FROM request_status_changes
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	defer rows.Close()

	var changes []*tracking.StatusChange
	for rows.Next() {
		var (
			change     tracking.StatusChange
			fromStatus string
			toStatus   string
			action     string
			createdAt  time.Time
		)
		if err := rows.Scan(&change.ID, &change.RequestID, &change.Actor,
			&fromStatus, &toStatus, &action, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		change.FromStatus = tracking.RequestStatus(fromStatus)
		change.ToStatus = tracking.RequestStatus(toStatus)
		change.Action = tracking.TransitionKind(action)
		change.CreatedAt = createdAt.UTC()
		changes = append(changes, &change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status history: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return changes, nil
}

var terminalStatuses = []any{
	string(tracking.StatusFulfilled),
	string(tracking.StatusDeclinedCustomer),
	string(tracking.StatusDeclinedBusiness),
}

// CountTerminalBefore counts terminal requests created strictly before
// the cutoff.
func (r *SQLRequestRepository) CountTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM product_requests
		WHERE status IN (?, ?, ?) AND created_at < ?`

	args := append(append([]any{}, terminalStatuses...), cutoff.UTC())
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count purgeable requests: %w", err)
	}
	return count, nil
}

// DeleteTerminalBefore deletes terminal requests created strictly before
// the cutoff. Items and audit rows go with them via cascading deletes.
func (r *SQLRequestRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `
		DELETE FROM product_requests
		WHERE status IN (?, ?, ?) AND created_at < ?`

	start := time.Now()
	args := append(append([]any{}, terminalStatuses...), cutoff.UTC())
	result, err := r.db.ExecContext(ctx, query, args...)
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))

	if err != nil {
		r.logger.Database().Error("Failed to purge product requests",
			"error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to purge product requests: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge row count: %w", err)
	}
	return int(deleted), nil
}

func (r *SQLRequestRepository) loadItems(ctx context.Context, requests []*tracking.ProductRequest) error {
	if len(requests) == 0 {
		return nil
	}
	byID := make(map[string]*tracking.ProductRequest, len(requests))
	placeholders := make([]string, 0, len(requests))
	args := make([]any, 0, len(requests))
	for _, request := range requests {
		byID[request.ID] = request
		placeholders = append(placeholders, "?")
		args = append(args, request.ID)
	}

	query := `
		SELECT request_id, product_id, product_name, variant_size,
		       variant_color, unit_price_cents, quantity
		FROM product_request_items
		WHERE request_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY request_id, sort_order`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load request items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			requestID string
			item      tracking.RequestItem
		)
		if err := rows.Scan(&requestID, &item.ProductID, &item.ProductName,
			&item.VariantSize, &item.VariantColor,
			&item.UnitPriceCents, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan request item: %w", err)
		}
		if request, ok := byID[requestID]; ok {
			request.Items = append(request.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate request items: %w", err)
	}
	return nil
}

func scanRequest(row rowScanner) (*tracking.ProductRequest, error) {
	var (
		request     tracking.ProductRequest
		status      string
		source      string
		createdAt   time.Time
		updatedAt   time.Time
		contactedAt sql.NullTime
		resolvedAt  sql.NullTime
	)
	err := row.Scan(
		&request.ID,
		&status,
		&request.IdempotencyKey,
		&source,
		&request.SessionID,
		&request.VisitorID,
		&request.PagePath,
		&request.CustomerName,
		&request.CustomerEmail,
		&request.CustomerPhone,
		&request.Notes,
		&request.UTMSource,
		&request.UTMMedium,
		&request.UTMCampaign,
		&request.Referrer,
		&request.ClientIP,
		&createdAt,
		&updatedAt,
		&contactedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	request.Status = tracking.RequestStatus(status)
	request.Source = tracking.Source(source)
	request.CreatedAt = createdAt.UTC()
	request.UpdatedAt = updatedAt.UTC()
	if contactedAt.Valid {
		t := contactedAt.Time.UTC()
		request.ContactedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		request.ResolvedAt = &t
	}
	return &request, nil
}
