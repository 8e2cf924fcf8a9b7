// package repositories provides persistence layer implementations for all model types.
//
// Asset and label repositories implement models.Repository[T], handling CRUD operations,
// soft deletes, and sequence generation. Publication records are upserted and never deleted.
package repositories

import (
	"database/sql"
	"fmt"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// querier runs a single-row query, as both [sql.DB] and [sql.Tx] do.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence bumps the counter row of table's sequence table and returns the new value.
//
// Sequences give assets, labels and publications a stable creation order independent of their UUIDs.
func NextSequence(q querier, table string) (int, error) {
	var next int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRow(query).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return next, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// expectRow fails when an update or delete touched no row.
func expectRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found or already deleted: %s", kind, id)
	}
	return nil
}
