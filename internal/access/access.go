// Package access computes effective permissions and read visibility for
// (branch, actor) pairs. Rules are pure functions over the role set,
// membership, branch state, and visibility, so they are testable without
// any persistence.
package access

import (
	"fmt"

	"github.com/draftline/draftline/internal/types"
)

// Role is a finite tag in the actor's role set.
type Role string

// Role constants
const (
	RoleAdmin       Role = "admin"
	RolePublisher   Role = "publisher"
	RoleReviewer    Role = "reviewer"
	RoleContributor Role = "contributor"
)

// IsValid checks if the role value is valid.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RolePublisher, RoleReviewer, RoleContributor:
		return true
	}
	return false
}

// Actor is the caller context access decisions are computed against. An
// anonymous caller has Authenticated=false and an empty UserID.
type Actor struct {
	UserID        string
	Authenticated bool
	Roles         []Role
}

// HasRole reports whether the actor holds the given role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Authenticated && a.HasRole(RoleAdmin)
}

// Decision is an allow/deny outcome plus a human-readable reason suitable
// for surfacing to callers, including anonymous ones.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// CheckAccess decides read visibility of a branch for an actor. Rules apply
// in priority order; the first match wins.
func CheckAccess(branch *types.Branch, actor Actor) Decision {
	// Administrators always pass.
	if actor.IsAdmin() {
		return allow()
	}
	// Public branches are visible to anyone, authenticated or not.
	if branch.Visibility == types.VisibilityPublic {
		return allow()
	}
	// Everything below requires authentication.
	if !actor.Authenticated {
		return deny("branch %q is %s and not published; sign in to request access",
			branch.Slug, branch.Visibility)
	}
	// Owner always passes.
	if actor.UserID == branch.OwnerID {
		return allow()
	}
	// Assigned reviewers and collaborators always pass.
	if branch.IsReviewer(actor.UserID) || branch.IsCollaborator(actor.UserID) {
		return allow()
	}
	// Publishers see branches moving toward publication.
	if actor.HasRole(RolePublisher) &&
		(branch.State == types.StateReview || branch.State == types.StateApproved) {
		return allow()
	}
	// The reviewer role sees branches under review.
	if actor.HasRole(RoleReviewer) && branch.State == types.StateReview {
		return allow()
	}
	// Team visibility admits reviewer/publisher role holders. Real team
	// membership is approximated by role.
	if branch.Visibility == types.VisibilityTeam &&
		(actor.HasRole(RoleReviewer) || actor.HasRole(RolePublisher)) {
		return allow()
	}
	if branch.Visibility == types.VisibilityPrivate {
		return deny("branch %q is private; ask the owner to add you as a reviewer or collaborator", branch.Slug)
	}
	return deny("branch %q (state %s) is restricted to its team; a reviewer or publisher role is required",
		branch.Slug, branch.State)
}

// Permissions is the full effective-permission set for one (branch, actor)
// pair. Each field is derived independently.
type Permissions struct {
	CanView             bool `json:"can_view"`
	CanEdit             bool `json:"can_edit"`
	CanReview           bool `json:"can_review"`
	CanPublish          bool `json:"can_publish"`
	CanDelete           bool `json:"can_delete"`
	CanChangeVisibility bool `json:"can_change_visibility"`
}

// EffectivePermissions computes the permission set.
func EffectivePermissions(branch *types.Branch, actor Actor) Permissions {
	isOwner := actor.Authenticated && actor.UserID == branch.OwnerID
	isCollaborator := actor.Authenticated && branch.IsCollaborator(actor.UserID)
	isReviewer := actor.Authenticated && branch.IsReviewer(actor.UserID)
	isAdmin := actor.IsAdmin()

	return Permissions{
		CanView: CheckAccess(branch, actor).Allowed,
		CanEdit: (isOwner || isCollaborator || isAdmin) &&
			branch.State == types.StateDraft,
		CanReview: (isReviewer || (actor.Authenticated && actor.HasRole(RoleReviewer)) || isAdmin) &&
			branch.State == types.StateReview,
		CanPublish: ((actor.Authenticated && actor.HasRole(RolePublisher)) || isAdmin) &&
			branch.State == types.StateApproved,
		CanDelete: (isOwner || isAdmin) &&
			branch.State == types.StateDraft,
		CanChangeVisibility: (isOwner || isAdmin) &&
			branch.State == types.StateDraft,
	}
}

// CanChangeVisibilityTo decides whether the actor may change the branch's
// visibility to target. Narrowing to private while reviewers are still
// assigned is rejected so active reviewers are not orphaned from access.
func CanChangeVisibilityTo(branch *types.Branch, actor Actor, target types.Visibility) Decision {
	if !target.IsValid() {
		return deny("invalid visibility %q", target)
	}
	perms := EffectivePermissions(branch, actor)
	if !perms.CanChangeVisibility {
		if branch.State != types.StateDraft {
			return deny("visibility can only change while the branch is in draft (current state: %s)", branch.State)
		}
		return deny("only the branch owner or an administrator can change visibility")
	}
	if target == types.VisibilityPrivate && len(branch.Reviewers) > 0 {
		return deny("cannot make the branch private while %d reviewer(s) are assigned; remove reviewers first",
			len(branch.Reviewers))
	}
	return allow()
}
