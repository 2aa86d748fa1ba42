package branch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// UpdateInput carries the mutable free-form fields. Nil pointers leave the
// field unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Labels      []string
}

// Update mutates a branch's free-form fields. Ownership and draft state
// are re-checked against current stored state before anything changes.
// The slug is fixed at creation; renames do not move the branch's URL.
func (e *Engine) Update(ctx context.Context, id string, actor access.Actor, input UpdateInput) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	perms := access.EffectivePermissions(b, actor)
	if !perms.CanEdit {
		if b.State != types.StateDraft {
			return nil, fault.Forbidden("branch %s is in %s and can no longer be edited", id, b.State)
		}
		return nil, fault.Forbidden("only the owner, a collaborator, or an administrator can edit branch %s", id)
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		if len(*input.Name) == 0 || len(*input.Name) > 200 {
			return nil, fault.Validation("name must be between 1 and 200 characters")
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Labels != nil {
		updates["labels"] = input.Labels
	}
	if len(updates) == 0 {
		return b, nil
	}

	if err := e.store.UpdateBranch(ctx, id, updates); err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	b, err = e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return b, nil
}

// Delete soft-archives a draft branch. Branches that have left draft are
// never deleted through this path; they go through the explicit archive
// flows. The isolated ref is removed best-effort after the database
// archival commits: a failed ref deletion is cleanup debt, never a reason
// to roll the archival back.
func (e *Engine) Delete(ctx context.Context, id string, actor access.Actor) error {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return storageFault(err, "branch "+id)
	}
	perms := access.EffectivePermissions(b, actor)
	if !perms.CanDelete {
		if b.State != types.StateDraft {
			return fault.InvalidState("branch %s is in %s; only draft branches can be deleted", id, b.State)
		}
		return fault.Forbidden("only the owner or an administrator can delete branch %s", id)
	}

	if err := e.archive(ctx, b, actor, types.EventArchived, "deleted by "+actor.UserID); err != nil {
		return err
	}

	if err := e.provider.DeleteIsolatedRef(ctx, b.Slug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to delete ref %s after archival: %v\n", b.Slug, err)
	}
	return nil
}

// Archive retires a branch from any non-archived state. This is the
// explicit admin flow for branches beyond draft; draft branches may also
// be archived by their owner.
func (e *Engine) Archive(ctx context.Context, id string, actor access.Actor, reason string) error {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return storageFault(err, "branch "+id)
	}
	if b.State == types.StateArchived {
		return fault.InvalidState("branch %s is already archived", id)
	}
	isOwnerDraft := actor.Authenticated && actor.UserID == b.OwnerID && b.State == types.StateDraft
	if !actor.IsAdmin() && !isOwnerDraft {
		return fault.Forbidden("archiving branch %s from %s requires an administrator", id, b.State)
	}
	return e.archive(ctx, b, actor, types.EventArchived, reason)
}

func (e *Engine) archive(ctx context.Context, b *types.Branch, actor access.Actor, event, reason string) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, b.ID)
		if err != nil {
			return err
		}
		if current.State == types.StateArchived {
			return nil
		}
		if !transitionAllowed(current.State, types.StateArchived) {
			return fault.InvalidState("cannot archive branch %s from %s", b.ID, current.State)
		}
		now := time.Now().UTC()
		if err := tx.UpdateBranch(ctx, b.ID, map[string]interface{}{
			"state":       types.StateArchived,
			"archived_at": touchTime(now),
		}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  b.ID,
			FromState: current.State,
			ToState:   types.StateArchived,
			Event:     event,
			ActorID:   actor.UserID,
			ActorType: types.ActorUser,
			Reason:    reason,
		})
	})
}

// UpdateVisibility changes a branch's visibility. Owner/admin, draft-only,
// and narrowing to private is rejected while reviewers remain assigned.
func (e *Engine) UpdateVisibility(ctx context.Context, id string, actor access.Actor, target types.Visibility) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	decision := access.CanChangeVisibilityTo(b, actor, target)
	if !decision.Allowed {
		return nil, fault.Forbidden("%s", decision.Reason)
	}
	if b.Visibility == target {
		return b, nil
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		// Re-check inside the transaction; a racing reviewer add or
		// submit can invalidate the decision.
		decision := access.CanChangeVisibilityTo(current, actor, target)
		if !decision.Allowed {
			return fault.Forbidden("%s", decision.Reason)
		}
		if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
			"visibility": target,
		}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  id,
			FromState: current.State,
			ToState:   current.State,
			Event:     types.EventVisibilityChange,
			ActorID:   actor.UserID,
			ActorType: types.ActorUser,
			Metadata: map[string]any{
				"from": string(current.Visibility),
				"to":   string(target),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetBranch(ctx, id)
}

// SetRequiredApprovals changes the approval threshold. Admin-only, bounded
// to the allowed range, and never retroactively evaluated: an accumulated
// approval count is only compared against the threshold when the next
// approval arrives.
func (e *Engine) SetRequiredApprovals(ctx context.Context, id string, actor access.Actor, n int) (*types.Branch, error) {
	if !actor.IsAdmin() {
		return nil, fault.Forbidden("only administrators can change the approval threshold")
	}
	if err := approval.ValidateThreshold(n); err != nil {
		return nil, err
	}
	if _, err := e.store.GetBranch(ctx, id); err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if err := e.store.UpdateBranch(ctx, id, map[string]interface{}{
		"required_approvals": n,
	}); err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}

// UpdateHeadCommit records a new tip for the branch's isolated ref.
// Published and archived branches are immutable.
func (e *Engine) UpdateHeadCommit(ctx context.Context, id string, actor access.Actor, commit string) (*types.Branch, error) {
	if commit == "" {
		return nil, fault.Validation("commit is required")
	}
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if b.State.IsTerminal() {
		return nil, fault.InvalidState("branch %s is %s and no longer accepts commits", id, b.State)
	}
	isOwner := actor.Authenticated && actor.UserID == b.OwnerID
	if !isOwner && !b.IsCollaborator(actor.UserID) && !actor.IsAdmin() {
		return nil, fault.Forbidden("only the owner, a collaborator, or an administrator can update branch %s", id)
	}
	if err := e.store.UpdateBranch(ctx, id, map[string]interface{}{
		"head_commit": commit,
	}); err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}
