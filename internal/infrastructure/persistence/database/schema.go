package database

import "fmt"

// The schema is externally versioned via formal migrations in production;
// EnsureSchema exists so fresh deployments and tests start from a known
// shape. Statements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tracking_events (
		id TEXT PRIMARY KEY,
		event_name TEXT NOT NULL,
		source TEXT NOT NULL,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		page_path TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		product_id TEXT,
		catalog_id TEXT,
		request_id TEXT,
		utm_source TEXT,
		utm_medium TEXT,
		utm_campaign TEXT,
		referrer TEXT,
		occurred_at TIMESTAMP,
		received_at TIMESTAMP NOT NULL,
		client_ip TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_events_idempotency_key
		ON tracking_events (idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_events_received_at
		ON tracking_events (received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_events_name_received
		ON tracking_events (event_name, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_events_session
		ON tracking_events (session_id)`,

	`CREATE TABLE IF NOT EXISTS product_requests (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		source TEXT NOT NULL,
		session_id TEXT NOT NULL,
		visitor_id TEXT NOT NULL,
		page_path TEXT NOT NULL,
		customer_name TEXT,
		customer_email TEXT,
		customer_phone TEXT,
		notes TEXT,
		utm_source TEXT,
		utm_medium TEXT,
		utm_campaign TEXT,
		referrer TEXT,
		client_ip TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		contacted_at TIMESTAMP,
		resolved_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_product_requests_idempotency_key
		ON product_requests (idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS idx_product_requests_status
		ON product_requests (status)`,
	`CREATE INDEX IF NOT EXISTS idx_product_requests_created_at
		ON product_requests (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_product_requests_session
		ON product_requests (session_id)`,

	`CREATE TABLE IF NOT EXISTS product_request_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL REFERENCES product_requests(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		variant_size TEXT,
		variant_color TEXT,
		unit_price_cents INTEGER NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_items_request
		ON product_request_items (request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_request_items_product
		ON product_request_items (product_id)`,

	`CREATE TABLE IF NOT EXISTS request_status_changes (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES product_requests(id) ON DELETE CASCADE,
		actor TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_changes_request
		ON request_status_changes (request_id, created_at)`,
}

// EnsureSchema creates the tracking tables and indexes if absent.
func (db *DB) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
