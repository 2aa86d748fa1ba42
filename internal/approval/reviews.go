package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftline/draftline/internal/types"
)

// MemoryReviews is an in-process review store implementing ReviewReader.
// The production review subsystem is external; this backs tests and
// single-node CLI deployments where reviews live alongside the engine.
type MemoryReviews struct {
	mu        sync.Mutex
	decisions map[string][]*types.ReviewDecision // branch id -> decisions
}

var _ ReviewReader = (*MemoryReviews)(nil)

// NewMemoryReviews creates an empty review store.
func NewMemoryReviews() *MemoryReviews {
	return &MemoryReviews{decisions: make(map[string][]*types.ReviewDecision)}
}

// ListDecisions returns all decisions recorded for a branch.
func (r *MemoryReviews) ListDecisions(ctx context.Context, branchID string) ([]*types.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.ReviewDecision, 0, len(r.decisions[branchID]))
	for _, d := range r.decisions[branchID] {
		clone := *d
		out = append(out, &clone)
	}
	return out, nil
}

// Open records a pending review for a reviewer on a branch.
func (r *MemoryReviews) Open(branchID, reviewerID string) *types.ReviewDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &types.ReviewDecision{
		ID:         uuid.NewString(),
		BranchID:   branchID,
		ReviewerID: reviewerID,
		Status:     types.ReviewPending,
		CreatedAt:  time.Now().UTC(),
	}
	r.decisions[branchID] = append(r.decisions[branchID], d)
	clone := *d
	return &clone
}

// Complete marks a reviewer's open review as completed with the given
// outcome and returns the completed decision.
func (r *MemoryReviews) Complete(branchID, reviewerID string, outcome types.DecisionKind, reason string) (*types.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.decisions[branchID] {
		if d.ReviewerID == reviewerID && d.IsActive() {
			now := time.Now().UTC()
			d.Status = types.ReviewCompleted
			d.Decision = outcome
			d.Reason = reason
			d.DecidedAt = &now
			clone := *d
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("no active review for %s on branch %s", reviewerID, branchID)
}
