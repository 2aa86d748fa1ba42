package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/draftline/draftline/internal/types"
)

// AppendTransition writes one row to the append-only transition log.
func (s *Store) AppendTransition(ctx context.Context, tr *types.StateTransition) error {
	return appendTransition(ctx, s.db, tr)
}

func appendTransition(ctx context.Context, q querier, tr *types.StateTransition) error {
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO branch_transitions (
			id, branch_id, from_state, to_state, event,
			actor_id, actor_type, reason, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tr.ID, tr.BranchID, tr.FromState, tr.ToState, tr.Event,
		tr.ActorID, tr.ActorType, tr.Reason, formatJSONObject(tr.Metadata), tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// GetTransitions returns transitions for a branch, newest first. A limit of
// zero or less returns all of them.
func (s *Store) GetTransitions(ctx context.Context, branchID string, limit int) ([]*types.StateTransition, error) {
	query := `
		SELECT id, branch_id, from_state, to_state, event,
		       actor_id, actor_type, reason, metadata, created_at
		FROM branch_transitions
		WHERE branch_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{branchID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get transitions", err)
	}
	defer func() { _ = rows.Close() }()

	var transitions []*types.StateTransition
	for rows.Next() {
		var tr types.StateTransition
		var metadata string
		err := rows.Scan(
			&tr.ID, &tr.BranchID, &tr.FromState, &tr.ToState, &tr.Event,
			&tr.ActorID, &tr.ActorType, &tr.Reason, &metadata, &tr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Metadata = parseJSONObject(metadata)
		transitions = append(transitions, &tr)
	}
	return transitions, rows.Err()
}
