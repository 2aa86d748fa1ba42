package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// querier is the subset of database/sql methods shared by *sql.DB,
// *sql.Conn, and *sql.Tx. Storage operations are written against it so the
// same code serves both direct calls and transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// beginImmediateWithRetry starts a BEGIN IMMEDIATE transaction on conn,
// retrying with exponential backoff when SQLITE_BUSY is returned under
// concurrent write load. IMMEDIATE acquires the write lock up front, which
// serializes per-branch mutations across writers.
//
// Raw Exec is used instead of BeginTx because database/sql does not support
// transaction modes and the driver's BeginTx always uses DEFERRED.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, maxRetries uint64, initialInterval time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// formatJSONStringArray serializes a string slice as a JSON array for
// storage in a TEXT column. Nil serializes as "[]".
func formatJSONStringArray(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// parseJSONStringArray deserializes a JSON array column. Malformed data
// yields nil rather than an error: a bad labels blob should not make the
// branch unreadable.
func parseJSONStringArray(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

// formatJSONObject serializes transition metadata for storage.
func formatJSONObject(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// parseJSONObject deserializes transition metadata.
func parseJSONObject(raw string) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
