package branch

import (
	"context"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/lineage"
	"github.com/draftline/draftline/internal/types"
)

// ValidateLineage re-runs the lineage check for a single branch on demand.
func (e *Engine) ValidateLineage(ctx context.Context, id string) (*lineage.Validation, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return e.guard.ValidateBranchLineage(ctx, b.BaseRef, b.BaseCommit)
}

// DetectOrphans scans all non-archived branches for broken lineage.
func (e *Engine) DetectOrphans(ctx context.Context) ([]lineage.Orphan, error) {
	return e.guard.DetectOrphanedBranches(ctx)
}

// HandleOrphans applies an action (archive or flag) to the given orphaned
// branches. Admin only: archival here bypasses the per-branch permission
// checks since it is a repair, not an authored transition.
func (e *Engine) HandleOrphans(ctx context.Context, actor access.Actor, ids []string, action lineage.OrphanAction, reason string) error {
	if !actor.IsAdmin() {
		return fault.Forbidden("handling orphaned branches requires an administrator")
	}
	return e.guard.HandleOrphanedBranches(ctx, ids, action, reason)
}

// IsConvergenceReady reports whether a branch can begin converging into its
// trunk: approved state, intact lineage, and no publish attempt already in
// flight. The reason explains the first failing condition.
func (e *Engine) IsConvergenceReady(ctx context.Context, id string) (bool, string, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return false, "", storageFault(err, "branch "+id)
	}
	if b.State != types.StateApproved {
		return false, "branch is in " + string(b.State) + "; convergence requires approved", nil
	}

	validation, err := e.guard.ValidateBranchLineage(ctx, b.BaseRef, b.BaseCommit)
	if err != nil {
		return false, "", err
	}
	if !validation.Valid {
		return false, validation.Reason, nil
	}

	if e.convergence != nil {
		rec, err := e.convergence.GetForBranch(ctx, id)
		if err != nil {
			return false, "", err
		}
		if rec != nil && rec.Status.InFlight() {
			return false, "a publish attempt is already in flight", nil
		}
	}
	return true, "", nil
}

// CheckAccess answers whether an actor may read the branch.
func (e *Engine) CheckAccess(ctx context.Context, id string, actor access.Actor) (access.Decision, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return access.Decision{}, storageFault(err, "branch "+id)
	}
	return access.CheckAccess(b, actor), nil
}

// Permissions computes the actor's effective capability set on the branch.
func (e *Engine) Permissions(ctx context.Context, id string, actor access.Actor) (access.Permissions, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return access.Permissions{}, storageFault(err, "branch "+id)
	}
	return access.EffectivePermissions(b, actor), nil
}
