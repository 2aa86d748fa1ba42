// Package approval counts completed review approvals against a per-branch
// threshold and decides which lifecycle transition, if any, a new decision
// fires.
package approval

import (
	"context"
	"fmt"

	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/types"
)

// ReviewReader is the read-only port onto the review subsystem: the
// aggregator reads decisions, it never owns their storage.
type ReviewReader interface {
	// ListDecisions returns all review decisions recorded for a branch,
	// pending and completed.
	ListDecisions(ctx context.Context, branchID string) ([]*types.ReviewDecision, error)
}

// Action is the transition the aggregator asks the lifecycle engine to fire.
type Action string

// Aggregation actions
const (
	// ActionNone: the branch stays in review awaiting more approvals.
	ActionNone Action = "none"
	// ActionApprove: the approval threshold is met; fire review -> approved.
	ActionApprove Action = "approve"
	// ActionReturnToDraft: changes were requested; fire review -> draft.
	ActionReturnToDraft Action = "return_to_draft"
)

// Outcome is the aggregator's verdict for one completed decision.
type Outcome struct {
	Action            Action `json:"action"`
	ApprovalCount     int    `json:"approval_count"`
	RequiredApprovals int    `json:"required_approvals"`
	Reason            string `json:"reason,omitempty"`
}

// Aggregator evaluates completed review decisions for the lifecycle engine.
type Aggregator struct {
	reviews ReviewReader
}

// NewAggregator constructs an Aggregator over a review reader.
func NewAggregator(reviews ReviewReader) *Aggregator {
	return &Aggregator{reviews: reviews}
}

// Evaluate processes one completed decision against the branch's threshold.
//
// Approved: recompute the count of completed approvals in the current
// review cycle and compare against the branch's effective threshold; at or
// above it, the approve action fires with the counts attached. Below it,
// nothing happens.
//
// Changes requested: the return-to-draft action fires immediately. Approval
// progress resets with the cycle: a resubmission stamps a fresh SubmittedAt,
// and decisions from before it carry no weight, so the new cycle must
// re-accumulate approvals from zero.
func (a *Aggregator) Evaluate(ctx context.Context, branch *types.Branch, decision *types.ReviewDecision) (*Outcome, error) {
	if decision.Status != types.ReviewCompleted {
		return nil, fault.Validation("decision %s is not completed (status %s)", decision.ID, decision.Status)
	}
	if !decision.Decision.IsValid() {
		return nil, fault.Validation("decision %s carries unknown outcome %q", decision.ID, decision.Decision)
	}

	required := branch.EffectiveRequiredApprovals()

	if decision.Decision == types.DecisionChangesRequested {
		return &Outcome{
			Action:            ActionReturnToDraft,
			RequiredApprovals: required,
			Reason:            decision.Reason,
		}, nil
	}

	count, err := a.countApprovals(ctx, branch)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Action:            ActionNone,
		ApprovalCount:     count,
		RequiredApprovals: required,
	}
	if count >= required {
		out.Action = ActionApprove
	}
	return out, nil
}

// countApprovals counts distinct reviewers with a completed approval in the
// branch's current review cycle.
func (a *Aggregator) countApprovals(ctx context.Context, branch *types.Branch) (int, error) {
	decisions, err := a.reviews.ListDecisions(ctx, branch.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list decisions for %s: %w", branch.ID, err)
	}
	approvedBy := make(map[string]bool)
	for _, d := range currentCycle(branch, decisions) {
		if d.Status == types.ReviewCompleted && d.Decision == types.DecisionApproved {
			approvedBy[d.ReviewerID] = true
		}
	}
	return len(approvedBy), nil
}

// currentCycle filters decisions down to the branch's active review cycle.
// Each submission stamps a fresh SubmittedAt; anything opened or decided
// before it belongs to a dead cycle and carries no weight, so a stale
// changes-requested cannot strand a resubmitted branch and stale approvals
// cannot satisfy the threshold.
func currentCycle(branch *types.Branch, decisions []*types.ReviewDecision) []*types.ReviewDecision {
	if branch.SubmittedAt == nil {
		return decisions
	}
	cutoff := *branch.SubmittedAt
	current := make([]*types.ReviewDecision, 0, len(decisions))
	for _, d := range decisions {
		at := d.CreatedAt
		if d.DecidedAt != nil {
			at = *d.DecidedAt
		}
		if at.Before(cutoff) {
			continue
		}
		current = append(current, d)
	}
	return current
}

// IsStuck reports whether a branch in review is stranded: at least one
// completed changes-requested decision from the current cycle exists and no
// review is still pending or in progress. The repair itself belongs to the
// lifecycle engine; this is only the precondition.
func (a *Aggregator) IsStuck(ctx context.Context, branch *types.Branch) (bool, string, error) {
	if branch.State != types.StateReview {
		return false, "", nil
	}
	decisions, err := a.reviews.ListDecisions(ctx, branch.ID)
	if err != nil {
		return false, "", fmt.Errorf("failed to list decisions for %s: %w", branch.ID, err)
	}

	var changesRequested bool
	for _, d := range currentCycle(branch, decisions) {
		if d.IsActive() {
			// A legitimate resubmission is underway; never repair past it.
			return false, "", nil
		}
		if d.Status == types.ReviewCompleted && d.Decision == types.DecisionChangesRequested {
			changesRequested = true
		}
	}
	if !changesRequested {
		return false, "", nil
	}
	return true, "changes were requested and no review remains active", nil
}

// ValidateThreshold bounds a requested approval threshold.
func ValidateThreshold(n int) error {
	if n < types.MinRequiredApprovals || n > types.MaxRequiredApprovals {
		return fault.Validation("required approvals must be between %d and %d (got %d)",
			types.MinRequiredApprovals, types.MaxRequiredApprovals, n)
	}
	return nil
}
