package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
)

// SQLProductRegistry resolves product ids against the catalog's products
// table. The catalog owns that table; this subsystem only reads id and
// name from it.
type SQLProductRegistry struct {
	db *database.DB
}

// NewSQLProductRegistry creates a new instance of the registry.
func NewSQLProductRegistry(db *database.DB) *SQLProductRegistry {
	return &SQLProductRegistry{db: db}
}

// MissingProducts returns the subset of ids with no products row.
func (r *SQLProductRegistry) MissingProducts(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT id FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product ids: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ProductName resolves the catalog display name for an item snapshot.
func (r *SQLProductRegistry) ProductName(ctx context.Context, id string) (string, error) {
	const query = `SELECT name FROM products WHERE id = ?`
	var name string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve product name: %w", err)
	}
	return name, nil
}
