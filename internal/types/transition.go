package types

import (
	"fmt"
	"time"
)

// StateTransition is an append-only audit record of a branch state change.
// Rows are never mutated or deleted; the transition log is the sole source
// of truth for reconstructing how a branch reached its current state.
type StateTransition struct {
	ID        string      `json:"id"`
	BranchID  string      `json:"branch_id"`
	FromState BranchState `json:"from_state"`
	ToState   BranchState `json:"to_state"`
	Event     string      `json:"event,omitempty"`
	ActorID   string      `json:"actor_id"`
	ActorType ActorType   `json:"actor_type"`
	Reason    string      `json:"reason,omitempty"`
	// Metadata carries transition-specific detail as a JSON object
	// (approval counts, autoRepair markers, orphan reasons).
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the transition record before it is appended.
func (t *StateTransition) Validate() error {
	if t.BranchID == "" {
		return fmt.Errorf("branch id is required")
	}
	if !t.FromState.IsValid() {
		return fmt.Errorf("invalid from state: %s", t.FromState)
	}
	if !t.ToState.IsValid() {
		return fmt.Errorf("invalid to state: %s", t.ToState)
	}
	if !t.ActorType.IsValid() {
		return fmt.Errorf("invalid actor type: %s", t.ActorType)
	}
	return nil
}

// ActorType identifies who drove a state transition.
type ActorType string

// Actor type constants
const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// IsValid checks if the actor type value is valid.
func (a ActorType) IsValid() bool {
	switch a {
	case ActorUser, ActorSystem:
		return true
	}
	return false
}

// Well-known transition event names.
const (
	EventCreated          = "created"
	EventSubmitted        = "submitted"
	EventReturnToDraft    = "return_to_draft"
	EventApproved         = "approved"
	EventPublished        = "published"
	EventArchived         = "archived"
	EventOrphanArchived   = "orphan_archived"
	EventVisibilityChange = "visibility_changed"
)
