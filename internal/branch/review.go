package branch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/draftline/draftline/internal/access"
	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// Submit moves a branch from draft into review. Owner only, and at least
// one reviewer must already be assigned so the review cycle can complete.
func (e *Engine) Submit(ctx context.Context, id string, actor access.Actor) (*types.Branch, error) {
	ctx, span := e.tracer.Start(ctx, "branch.Submit",
		trace.WithAttributes(attribute.String("branch.id", id)))
	defer span.End()

	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if !actor.Authenticated || (actor.UserID != b.OwnerID && !actor.IsAdmin()) {
		return nil, fault.Forbidden("only the owner can submit branch %s for review", id)
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		if current.State != types.StateDraft {
			return fault.InvalidState("branch %s is in %s; only draft branches can be submitted", id, current.State)
		}
		if len(current.Reviewers) == 0 {
			return fault.Validation("branch %s has no reviewers assigned; assign at least one before submitting", id)
		}
		now := time.Now().UTC()
		if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
			"state":        types.StateReview,
			"submitted_at": touchTime(now),
		}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  id,
			FromState: types.StateDraft,
			ToState:   types.StateReview,
			Event:     types.EventSubmitted,
			ActorID:   actor.UserID,
			ActorType: types.ActorUser,
		})
	})
	if err != nil {
		if fault.CodeOf(err) != "" {
			return nil, err
		}
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}

// RecordReviewDecision feeds one completed review decision through the
// approval aggregator and applies whatever transition it fires. Reaching
// the threshold moves the branch to approved; a changes-requested decision
// returns it to draft regardless of accumulated approvals. Below-threshold
// approvals leave the state untouched but still produce an Outcome so
// callers can report progress.
func (e *Engine) RecordReviewDecision(ctx context.Context, id string, decision *types.ReviewDecision) (*approval.Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "branch.RecordReviewDecision",
		trace.WithAttributes(
			attribute.String("branch.id", id),
			attribute.String("decision", string(decision.Decision)),
		))
	defer span.End()

	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	if b.State != types.StateReview {
		return nil, fault.InvalidState("branch %s is in %s; decisions only apply while in review", id, b.State)
	}
	if !b.IsReviewer(decision.ReviewerID) {
		return nil, fault.Forbidden("user %s is not a reviewer on branch %s", decision.ReviewerID, id)
	}

	outcome, err := e.aggregator.Evaluate(ctx, b, decision)
	if err != nil {
		return nil, err
	}
	if outcome.Action == approval.ActionNone {
		return outcome, nil
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		// The state can have moved between evaluation and commit; a
		// decision against a branch that already left review is a no-op
		// conflict, not a silent double transition.
		if current.State != types.StateReview {
			return fault.Conflict("branch %s left review before the decision was applied", id)
		}
		now := time.Now().UTC()
		switch outcome.Action {
		case approval.ActionApprove:
			if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
				"state":       types.StateApproved,
				"approved_at": touchTime(now),
			}); err != nil {
				return err
			}
			return tx.AppendTransition(ctx, &types.StateTransition{
				BranchID:  id,
				FromState: types.StateReview,
				ToState:   types.StateApproved,
				Event:     types.EventApproved,
				ActorID:   decision.ReviewerID,
				ActorType: types.ActorUser,
				Metadata: map[string]any{
					"approvalCount":     outcome.ApprovalCount,
					"requiredApprovals": outcome.RequiredApprovals,
				},
			})
		case approval.ActionReturnToDraft:
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
				ActorID:   decision.ReviewerID,
				ActorType: types.ActorUser,
				Reason:    outcome.Reason,
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
	return outcome, nil
}

// Publish moves an approved branch to published. The owner, a publisher,
// or an administrator may publish; the lineage check runs one last time so
// an orphaned-but-approved branch can never reach published.
func (e *Engine) Publish(ctx context.Context, id string, actor access.Actor) (*types.Branch, error) {
	ctx, span := e.tracer.Start(ctx, "branch.Publish",
		trace.WithAttributes(attribute.String("branch.id", id)))
	defer span.End()

	b, err := e.store.GetBranch(ctx, id)
	if err != nil {
		return nil, storageFault(err, "branch "+id)
	}
	isOwner := actor.Authenticated && actor.UserID == b.OwnerID
	if !isOwner && !actor.HasRole(access.RolePublisher) && !actor.IsAdmin() {
		return nil, fault.Forbidden("publishing branch %s requires the owner, a publisher, or an administrator", id)
	}
	if b.State != types.StateApproved {
		return nil, fault.InvalidState("branch %s is in %s; only approved branches can be published", id, b.State)
	}

	validation, err := e.guard.ValidateBranchLineage(ctx, b.BaseRef, b.BaseCommit)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, fault.InvalidState("branch %s cannot be published: %s", id, validation.Reason)
	}

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		if current.State != types.StateApproved {
			return fault.InvalidState("branch %s is in %s; only approved branches can be published", id, current.State)
		}
		now := time.Now().UTC()
		if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
			"state":        types.StatePublished,
			"published_at": touchTime(now),
		}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  id,
			FromState: types.StateApproved,
			ToState:   types.StatePublished,
			Event:     types.EventPublished,
			ActorID:   actor.UserID,
			ActorType: types.ActorUser,
		})
	})
	if err != nil {
		if fault.CodeOf(err) != "" {
			return nil, err
		}
		return nil, storageFault(err, "branch "+id)
	}
	return e.store.GetBranch(ctx, id)
}
