package sqlite

import (
	"context"
	"fmt"

	"github.com/draftline/draftline/internal/storage"
)

// Member role values in branch_members.role.
const (
	roleReviewer     = "reviewer"
	roleCollaborator = "collaborator"
)

// AddReviewer adds userID to the branch's reviewer set. The primary key on
// (branch_id, user_id) rejects a user already present in either set, which
// enforces reviewer/collaborator mutual exclusion at the storage layer.
func (s *Store) AddReviewer(ctx context.Context, branchID, userID string) error {
	return addMember(ctx, s.db, branchID, userID, roleReviewer)
}

// RemoveReviewer removes userID from the branch's reviewer set.
func (s *Store) RemoveReviewer(ctx context.Context, branchID, userID string) error {
	return removeMember(ctx, s.db, branchID, userID, roleReviewer)
}

// AddCollaborator adds userID to the branch's collaborator set.
func (s *Store) AddCollaborator(ctx context.Context, branchID, userID string) error {
	return addMember(ctx, s.db, branchID, userID, roleCollaborator)
}

// RemoveCollaborator removes userID from the branch's collaborator set.
func (s *Store) RemoveCollaborator(ctx context.Context, branchID, userID string) error {
	return removeMember(ctx, s.db, branchID, userID, roleCollaborator)
}

func addMember(ctx context.Context, q querier, branchID, userID, role string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO branch_members (branch_id, user_id, role) VALUES (?, ?, ?)`,
		branchID, userID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("add %s %s to %s: %w", role, userID, branchID, storage.ErrDuplicateMember)
		}
		return fmt.Errorf("failed to add %s: %w", role, err)
	}
	return nil
}

func removeMember(ctx context.Context, q querier, branchID, userID, role string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM branch_members WHERE branch_id = ? AND user_id = ? AND role = ?`,
		branchID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", role, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("remove %s %s from %s: %w", role, userID, branchID, storage.ErrNotFound)
	}
	return nil
}
