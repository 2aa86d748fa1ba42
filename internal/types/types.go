// Package types defines core data structures for the draftline branch engine.
package types

import (
	"fmt"
	"time"
)

// MinRequiredApprovals and MaxRequiredApprovals bound the per-branch
// approval threshold.
const (
	MinRequiredApprovals = 1
	MaxRequiredApprovals = 10

	// DefaultRequiredApprovals applies when a branch does not set a threshold.
	DefaultRequiredApprovals = 1
)

// Branch represents a unit of isolated drafting work.
type Branch struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id"`

	// Lineage pointers back to the published trunk.
	BaseRef    string `json:"base_ref"`
	BaseCommit string `json:"base_commit"`
	HeadCommit string `json:"head_commit"`

	State      BranchState `json:"state,omitempty"`
	Visibility Visibility  `json:"visibility,omitempty"`

	// RequiredApprovals is the approval threshold for review -> approved.
	// Zero means "unset"; callers should treat it as DefaultRequiredApprovals.
	RequiredApprovals int `json:"required_approvals,omitempty"`

	Reviewers     []string `json:"reviewers,omitempty"`
	Collaborators []string `json:"collaborators,omitempty"`

	Labels []string `json:"labels,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// EffectiveRequiredApprovals returns the approval threshold, applying the
// default when the branch never set one.
func (b *Branch) EffectiveRequiredApprovals() int {
	if b.RequiredApprovals == 0 {
		return DefaultRequiredApprovals
	}
	return b.RequiredApprovals
}

// IsReviewer reports whether userID is an assigned reviewer.
func (b *Branch) IsReviewer(userID string) bool {
	for _, r := range b.Reviewers {
		if r == userID {
			return true
		}
	}
	return false
}

// IsCollaborator reports whether userID is an assigned collaborator.
func (b *Branch) IsCollaborator(userID string) bool {
	for _, c := range b.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

// Validate checks cross-field invariants on the branch record.
func (b *Branch) Validate() error {
	if len(b.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	if len(b.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(b.Name))
	}
	if b.OwnerID == "" {
		return fmt.Errorf("owner is required")
	}
	if b.BaseRef == "" {
		return fmt.Errorf("base ref is required")
	}
	if !b.State.IsValid() {
		return fmt.Errorf("invalid state: %s", b.State)
	}
	if !b.Visibility.IsValid() {
		return fmt.Errorf("invalid visibility: %s", b.Visibility)
	}
	if b.RequiredApprovals != 0 &&
		(b.RequiredApprovals < MinRequiredApprovals || b.RequiredApprovals > MaxRequiredApprovals) {
		return fmt.Errorf("required approvals must be between %d and %d (got %d)",
			MinRequiredApprovals, MaxRequiredApprovals, b.RequiredApprovals)
	}
	// Owner never appears in either member set.
	if b.IsReviewer(b.OwnerID) || b.IsCollaborator(b.OwnerID) {
		return fmt.Errorf("owner cannot be a reviewer or collaborator")
	}
	// Reviewer and collaborator sets are disjoint at all times.
	for _, r := range b.Reviewers {
		if b.IsCollaborator(r) {
			return fmt.Errorf("user %s cannot be both reviewer and collaborator", r)
		}
	}
	// Timestamp invariants track state.
	if b.State == StateReview && b.SubmittedAt == nil {
		return fmt.Errorf("branches in review must have submitted_at timestamp")
	}
	if b.State == StateArchived && b.ArchivedAt == nil {
		return fmt.Errorf("archived branches must have archived_at timestamp")
	}
	if b.State != StateArchived && b.ArchivedAt != nil {
		return fmt.Errorf("non-archived branches cannot have archived_at timestamp")
	}
	return nil
}

// SetDefaults applies default values for fields omitted on import or create.
func (b *Branch) SetDefaults() {
	if b.State == "" {
		b.State = StateDraft
	}
	if b.Visibility == "" {
		b.Visibility = VisibilityPrivate
	}
}

// BranchState represents the lifecycle state of a branch.
type BranchState string

// Branch state constants
const (
	StateDraft     BranchState = "draft"
	StateReview    BranchState = "review"
	StateApproved  BranchState = "approved"
	StatePublished BranchState = "published"
	StateArchived  BranchState = "archived"
)

// IsValid checks if the state value is valid.
func (s BranchState) IsValid() bool {
	switch s {
	case StateDraft, StateReview, StateApproved, StatePublished, StateArchived:
		return true
	}
	return false
}

// IsTerminal reports whether the state accepts no further content mutation.
// Published branches are immutable; archived branches are retired.
func (s BranchState) IsTerminal() bool {
	return s == StatePublished || s == StateArchived
}

// Visibility controls who can read a branch.
type Visibility string

// Visibility constants
const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// IsValid checks if the visibility value is valid.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityTeam, VisibilityPublic:
		return true
	}
	return false
}

// BranchFilter is used to filter branch list queries.
type BranchFilter struct {
	OwnerID     *string
	State       *BranchState
	Visibility  *Visibility
	TitleSearch string

	// Labels filtering: branch must carry ALL these labels.
	Labels []string

	// IncludeArchived controls whether archived branches appear in results.
	// Default false: archived branches are excluded.
	IncludeArchived bool

	Limit  int
	Offset int
}

// Statistics provides aggregate branch metrics.
type Statistics struct {
	Total          int `json:"total"`
	DraftCount     int `json:"draft_count"`
	ReviewCount    int `json:"review_count"`
	ApprovedCount  int `json:"approved_count"`
	PublishedCount int `json:"published_count"`
	ArchivedCount  int `json:"archived_count"`
}
