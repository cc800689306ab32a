// package repositories provides persistence layer implementations for the run history.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// NextSequence increments and returns the counter kept in the {table}_sequence table.
//
// Sequence numbers give download records an insertion order that survives equal timestamps.
func NextSequence(db *sql.DB, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	switch err := db.QueryRow(query).Scan(&sequence); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("sequence table for %s is not seeded", table)
	case err != nil:
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
