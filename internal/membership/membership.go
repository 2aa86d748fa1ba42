// Package membership maintains the reviewer and collaborator sets on a
// branch under the mutual-exclusion invariant, and drives the candidate
// pickers for adding members.
package membership

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/types"
)

// MemberRole distinguishes the two member sets.
type MemberRole string

// Member roles
const (
	RoleReviewer     MemberRole = "reviewer"
	RoleCollaborator MemberRole = "collaborator"
)

// ValidateAddition checks whether userID may join the given set on the
// branch. Rejections: the owner, a duplicate in the same set, or a user
// already present in the other set (mutual exclusion).
func ValidateAddition(b *types.Branch, userID string, role MemberRole) error {
	if userID == "" {
		return fault.Validation("user id is required")
	}
	if userID == b.OwnerID {
		return fault.Forbidden("the branch owner cannot be added as a %s", role)
	}
	switch role {
	case RoleReviewer:
		if b.IsReviewer(userID) {
			return fault.Conflict("user %s is already a reviewer on branch %s", userID, b.ID)
		}
		if b.IsCollaborator(userID) {
			return fault.Forbidden("user %s is a collaborator on branch %s and cannot also review it", userID, b.ID)
		}
	case RoleCollaborator:
		if b.IsCollaborator(userID) {
			return fault.Conflict("user %s is already a collaborator on branch %s", userID, b.ID)
		}
		if b.IsReviewer(userID) {
			return fault.Forbidden("user %s is a reviewer on branch %s and cannot also collaborate on it", userID, b.ID)
		}
	default:
		return fault.Validation("unknown member role %q", role)
	}
	return nil
}

// Directory is the read-only user lookup the candidate pickers search over.
type Directory interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*types.User, error)
}

// Manager answers picker queries against a Directory. It is read-only
// convenience; the actual set mutations go through the lifecycle engine.
type Manager struct {
	dir Directory
}

// NewManager constructs a Manager over a user directory.
func NewManager(dir Directory) *Manager {
	return &Manager{dir: dir}
}

// SearchCandidates returns active users matching query who are not the
// owner and not already in either member set.
func (m *Manager) SearchCandidates(ctx context.Context, b *types.Branch, query string, limit int) ([]*types.User, error) {
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch so post-filtering still fills the page.
	users, err := m.dir.SearchUsers(ctx, query, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	var out []*types.User
	for _, u := range users {
		if !u.Active {
			continue
		}
		if u.ID == b.OwnerID || b.IsReviewer(u.ID) || b.IsCollaborator(u.ID) {
			continue
		}
		out = append(out, u)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ResolveUser loads a user and verifies they exist and are active, for use
// before adding them to a member set.
func (m *Manager) ResolveUser(ctx context.Context, id string) (*types.User, error) {
	u, err := m.dir.GetUser(ctx, id)
	if err != nil {
		return nil, fault.NotFound("user %s not found", id)
	}
	if !u.Active {
		return nil, fault.Validation("user %s is not active", id)
	}
	return u, nil
}

// StaticDirectory is an in-memory Directory backed by a fixed user list.
// Used by tests and single-node CLI deployments.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]*types.User
}

// NewStaticDirectory builds a directory from the given users.
func NewStaticDirectory(users ...*types.User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]*types.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// AddUser inserts or replaces a user record.
func (d *StaticDirectory) AddUser(u *types.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// GetUser retrieves a user by ID.
func (d *StaticDirectory) GetUser(ctx context.Context, id string) (*types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	clone := *u
	return &clone, nil
}

// SearchUsers returns users whose ID, name, or email contains query.
func (d *StaticDirectory) SearchUsers(ctx context.Context, query string, limit int) ([]*types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	needle := strings.ToLower(query)
	var out []*types.User
	for _, u := range d.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.ID), needle) ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			clone := *u
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
