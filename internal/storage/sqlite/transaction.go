package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// Verify txStore implements storage.Transaction at compile time
var _ storage.Transaction = (*txStore)(nil)

// txStore implements the storage.Transaction interface. It wraps a dedicated
// database connection with an active transaction.
type txStore struct {
	conn *sql.Conn
}

// RunInTransaction executes a function within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to acquire the write lock early,
// which serializes competing per-branch mutations instead of letting them
// deadlock on lock upgrades.
//
// Lifecycle:
//  1. Acquire a dedicated connection from the pool
//  2. BEGIN IMMEDIATE with retry on SQLITE_BUSY
//  3. Execute the callback with the Transaction interface
//  4. COMMIT on success; ROLLBACK on error or panic
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	// All statements in the transaction must use the same connection;
	// database/sql's pool would otherwise spread them across connections.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	tx := &txStore{conn: conn}
	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// GetBranch retrieves a branch within the transaction (read-your-writes).
func (t *txStore) GetBranch(ctx context.Context, id string) (*types.Branch, error) {
	return getBranch(ctx, t.conn, "id", id)
}

// UpdateBranch applies a column update map within the transaction.
func (t *txStore) UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateBranch(ctx, t.conn, id, updates)
}

// AddReviewer adds a reviewer within the transaction.
func (t *txStore) AddReviewer(ctx context.Context, branchID, userID string) error {
	return addMember(ctx, t.conn, branchID, userID, roleReviewer)
}

// RemoveReviewer removes a reviewer within the transaction.
func (t *txStore) RemoveReviewer(ctx context.Context, branchID, userID string) error {
	return removeMember(ctx, t.conn, branchID, userID, roleReviewer)
}

// AddCollaborator adds a collaborator within the transaction.
func (t *txStore) AddCollaborator(ctx context.Context, branchID, userID string) error {
	return addMember(ctx, t.conn, branchID, userID, roleCollaborator)
}

// RemoveCollaborator removes a collaborator within the transaction.
func (t *txStore) RemoveCollaborator(ctx context.Context, branchID, userID string) error {
	return removeMember(ctx, t.conn, branchID, userID, roleCollaborator)
}

// AppendTransition appends a transition row within the transaction.
func (t *txStore) AppendTransition(ctx context.Context, tr *types.StateTransition) error {
	return appendTransition(ctx, t.conn, tr)
}
