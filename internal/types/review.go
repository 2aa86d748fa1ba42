package types

import "time"

// ReviewDecision is the slice of the review subsystem this engine consumes.
// The engine reads decisions to drive approval aggregation and stuck-branch
// repair; it does not own their storage.
type ReviewDecision struct {
	ID         string       `json:"id"`
	BranchID   string       `json:"branch_id"`
	ReviewerID string       `json:"reviewer_id"`
	Status     ReviewStatus `json:"status"`
	Decision   DecisionKind `json:"decision,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	DecidedAt  *time.Time   `json:"decided_at,omitempty"`
}

// IsActive reports whether the review is still awaiting a decision.
func (d *ReviewDecision) IsActive() bool {
	return d.Status == ReviewPending || d.Status == ReviewInProgress
}

// ReviewStatus represents the progress of a review.
type ReviewStatus string

// Review status constants
const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewCompleted  ReviewStatus = "completed"
)

// IsValid checks if the review status value is valid.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewPending, ReviewInProgress, ReviewCompleted:
		return true
	}
	return false
}

// DecisionKind is the outcome of a completed review.
type DecisionKind string

// Decision constants
const (
	DecisionApproved         DecisionKind = "approved"
	DecisionChangesRequested DecisionKind = "changes_requested"
)

// IsValid checks if the decision value is valid.
func (d DecisionKind) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionChangesRequested:
		return true
	}
	return false
}

// ConvergenceStatus is the status of a publish attempt record.
type ConvergenceStatus string

// Convergence status constants
const (
	ConvergencePending   ConvergenceStatus = "pending"
	ConvergenceRunning   ConvergenceStatus = "running"
	ConvergenceSucceeded ConvergenceStatus = "succeeded"
	ConvergenceFailed    ConvergenceStatus = "failed"
)

// InFlight reports whether the convergence attempt is still underway.
func (s ConvergenceStatus) InFlight() bool {
	return s == ConvergencePending || s == ConvergenceRunning
}

// ConvergenceRecord links a branch to one publish attempt. The engine only
// inspects existence and status for readiness queries.
type ConvergenceRecord struct {
	ID        string            `json:"id"`
	BranchID  string            `json:"branch_id"`
	Status    ConvergenceStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// User is the minimal directory record the membership pickers need.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Active bool   `json:"active"`
}
