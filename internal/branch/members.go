package branch

import (
	"context"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/membership"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// AddReviewers assigns one or more reviewers. The whole batch is validated
// against current membership before any row is written, and the batch is
// atomic: one bad user ID rejects them all.
func (e *Engine) AddReviewers(ctx context.Context, id string, actor access.Actor, userIDs []string) (*types.Branch, error) {
	if len(userIDs) == 0 {
		return nil, fault.Validation("at least one reviewer is required")
	}
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if err := e.requireMembershipEdit(b, actor); err != nil {
		return nil, err
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(userIDs))
		for _, userID := range userIDs {
			if seen[userID] {
				return fault.Validation("duplicate reviewer %s in request", userID)
			}
			seen[userID] = true
			if err := membership.ValidateAddition(current, userID, membership.RoleReviewer); err != nil {
				return err
			}
			if e.members != nil {
				if _, err := e.members.ResolveUser(ctx, userID); err != nil {
					return err
				}
			}
			if err := tx.AddReviewer(ctx, id, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if fault.CodeOf(err) != "" {
			return nil, err
		}
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}

// RemoveReviewer unassigns a reviewer. Removing the last reviewer from a
// branch in review returns it to draft in the same transaction, so the
// branch is never observable in review with nobody to review it.
func (e *Engine) RemoveReviewer(ctx context.Context, id string, actor access.Actor, userID string) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if err := e.requireMembershipEdit(b, actor); err != nil {
		return nil, err
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsReviewer(userID) {
			return fault.NotFound("user %s is not a reviewer on branch %s", userID, id)
		}
		if err := tx.RemoveReviewer(ctx, id, userID); err != nil {
			return err
		}
		if current.State == types.StateReview && len(current.Reviewers) == 1 {
			if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
				"state":        types.StateDraft,
				"submitted_at": nil,
			}); err != nil {
				return err
			}
			return tx.AppendTransition(ctx, &types.StateTransition{
				BranchID:  id,
				FromState: types.StateReview,
				ToState:   types.StateDraft,
				Event:     types.EventReturnToDraft,
				ActorID:   actor.UserID,
				ActorType: types.ActorUser,
				Reason:    "last reviewer removed",
			})
		}
		return nil
	})
	if err != nil {
		if fault.CodeOf(err) != "" {
			return nil, err
		}
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}

// AddCollaborator grants a user edit access to the branch content.
func (e *Engine) AddCollaborator(ctx context.Context, id string, actor access.Actor, userID string) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if err := e.requireMembershipEdit(b, actor); err != nil {
		return nil, err
	}
	if err := membership.ValidateAddition(b, userID, membership.RoleCollaborator); err != nil {
		return nil, err
	}
	if e.members != nil {
		if _, err := e.members.ResolveUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := e.store.AddCollaborator(ctx, id, userID); err != nil {
		return nil, storageFault(err, "user "+userID)
	}
	return e.store.GetBranch(ctx, id)
}

// RemoveCollaborator revokes a user's edit access.
func (e *Engine) RemoveCollaborator(ctx context.Context, id string, actor access.Actor, userID string) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if err := e.requireMembershipEdit(b, actor); err != nil {
		return nil, err
	}
	if !b.IsCollaborator(userID) {
		return nil, fault.NotFound("user %s is not a collaborator on branch %s", userID, id)
	}
	if err := e.store.RemoveCollaborator(ctx, id, userID); err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}

// SearchReviewerCandidates returns directory users eligible to be added as
// reviewers on the branch.
func (e *Engine) SearchReviewerCandidates(ctx context.Context, id string, query string, limit int) ([]*types.User, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if e.members == nil {
		return nil, fault.Validation("no user directory is configured")
	}
	return e.members.SearchCandidates(ctx, b, query, limit)
}

// requireMembershipEdit gates reviewer and collaborator changes. Owner and
// admins may edit membership until the branch reaches a terminal state.
func (e *Engine) requireMembershipEdit(b *types.Branch, actor access.Actor) error {
	if b.State.IsTerminal() {
		return fault.InvalidState("branch %s is %s; membership is frozen", b.ID, b.State)
	}
	if actor.IsAdmin() {
		return nil
	}
	if !actor.Authenticated || actor.UserID != b.OwnerID {
		return fault.Forbidden("only the owner or an administrator can change membership on branch %s", b.ID)
	}
	return nil
}
