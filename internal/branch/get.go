package branch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// Get returns a branch by ID. Branches found in review are first run
// through the reconcile check, so a read can surface (and perform) the
// stuck-state correction. A failed repair never masks the read: the caller
// gets the branch as stored.
func (e *Engine) Get(ctx context.Context, id string) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if b.State != types.StateReview {
		return b, nil
	}

	repaired, err := e.Reconcile(ctx, id)
	if err != nil {
		// Repair is an optimization, not a correctness requirement for
		// reads; log and return the branch as it was.
		fmt.Fprintf(os.Stderr, "Warning: reconcile of branch %s failed: %v\n", id, err)
		return b, nil
	}
	if !repaired {
		return b, nil
	}

	b, err = e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return b, nil
}

// GetBySlug returns a branch by its URL-safe slug, with the same reconcile
// behavior as Get.
func (e *Engine) GetBySlug(ctx context.Context, slug string) (*types.Branch, error) {
	b, err := e.store.GetBranchBySlug(ctx, slug)
	if err != nil {
		return nil, storageFault(err, "branch "+slug)
	}
	if b.State != types.StateReview {
		return b, nil
	}
	return e.Get(ctx, b.ID)
}

// List returns branches matching the filter.
func (e *Engine) List(ctx context.Context, filter types.BranchFilter) ([]*types.Branch, error) {
	return e.store.ListBranches(ctx, filter)
}

// GetTransitions returns the transition log for a branch, newest first.
func (e *Engine) GetTransitions(ctx context.Context, branchID string, limit int) ([]*types.StateTransition, error) {
	if _, err := e.store.GetBranch(ctx, branchID); err != nil {
		return nil, storageFault(err, "branch "+branchID)
	}
	return e.store.GetTransitions(ctx, branchID, limit)
}

// Stats returns aggregate branch counts.
func (e *Engine) Stats(ctx context.Context) (*types.Statistics, error) {
	return e.store.GetStatistics(ctx)
}

// IsSlugAvailable reports whether a slug is free. Read-only helper for
// creation pickers.
func (e *Engine) IsSlugAvailable(ctx context.Context, slug string) (bool, error) {
	return e.store.SlugAvailable(ctx, slug)
}

// Reconcile checks the stuck-state precondition for a branch in review and
// performs the draft-reversion when it holds. Returns true when a repair
// transition fired. The precondition is re-validated inside the repair
// transaction, since a racing approval or resubmission can change it
// between check and write.
//
// A branch is stuck iff it is in review, a completed changes-requested
// decision from the current cycle exists for it, and no review from that
// cycle is still pending or in progress. Decisions from before the latest
// submission never trigger a repair, so a resubmitted branch stays in
// review.
func (e *Engine) Reconcile(ctx context.Context, id string) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "branch.Reconcile")
	defer span.End()

	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return false, storageFault(err, "branch "+id)
	}
	stuck, reason, err := e.aggregator.IsStuck(ctx, b)
	if err != nil {
		return false, err
	}
	if !stuck {
		return false, nil
	}

	repaired := false
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		// Re-validate inside the transaction: the branch may have moved on
		// or a new review may have been opened since the check above.
		stuck, reason, err = e.aggregator.IsStuck(ctx, current)
		if err != nil {
			return err
		}
		if !stuck {
			return nil
		}
		if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
			"state":        types.StateDraft,
			"submitted_at": nil,
		}); err != nil {
			return err
		}
		repaired = true
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  id,
			FromState: types.StateReview,
			ToState:   types.StateDraft,
			Event:     types.EventReturnToDraft,
			ActorID:   "reconciler",
			ActorType: types.ActorSystem,
			Reason:    reason,
			Metadata:  map[string]any{"autoRepair": true},
		})
	})
	if err != nil {
		return false, err
	}
	return repaired, nil
}

// RepairStuckBranch is the operator-initiated recovery path. It shares the
// reconcile implementation with the read path; the difference is contract:
// a branch that is not in review, or not actually stuck, is an error here
// rather than a quiet no-op.
func (e *Engine) RepairStuckBranch(ctx context.Context, id string) (*types.Branch, error) {
	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if b.State != types.StateReview {
		return nil, fault.InvalidState("branch %s is in %s, not review; nothing to repair", id, b.State)
	}

	repaired, err := e.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !repaired {
		return nil, fault.InvalidState("branch %s is not stuck: an active review exists or no changes were requested", id)
	}

	b, err = e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	return b, nil
}

// touchTime returns a pointer to the given instant; helper for timestamp
// columns.
func touchTime(t time.Time) *time.Time { return &t }
