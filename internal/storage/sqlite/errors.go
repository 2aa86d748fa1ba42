package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/draftline/draftline/internal/storage"
)

// wrapDBError wraps a database error with operation context. It converts
// sql.ErrNoRows to storage.ErrNotFound for consistent error handling.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation reports whether err is a SQLite unique/primary-key
// constraint failure. The driver surfaces these as textual errors, so the
// check is by message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
