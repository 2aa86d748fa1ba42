// Package memory implements the storage interface with in-process maps.
// It backs unit tests and ephemeral runs; semantics mirror the sqlite
// backend, including the mutual-exclusion constraint on member sets.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// Verify Store implements storage.Storage at compile time
var _ storage.Storage = (*Store)(nil)

// Store is an in-memory Storage implementation. A single mutex serializes
// every operation, which trivially satisfies the per-branch serializability
// the engine requires.
type Store struct {
	mu          sync.Mutex
	branches    map[string]*types.Branch
	slugs       map[string]string // slug -> branch id
	transitions []*types.StateTransition
	config      map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		branches: make(map[string]*types.Branch),
		slugs:    make(map[string]string),
		config:   make(map[string]string),
	}
}

// Close is a no-op for the memory backend.
func (m *Store) Close() error { return nil }

func cloneBranch(b *types.Branch) *types.Branch {
	out := *b
	out.Reviewers = append([]string(nil), b.Reviewers...)
	out.Collaborators = append([]string(nil), b.Collaborators...)
	out.Labels = append([]string(nil), b.Labels...)
	cloneTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	out.SubmittedAt = cloneTime(b.SubmittedAt)
	out.ApprovedAt = cloneTime(b.ApprovedAt)
	out.PublishedAt = cloneTime(b.PublishedAt)
	out.ArchivedAt = cloneTime(b.ArchivedAt)
	return &out
}

// CreateBranch inserts a branch, rejecting duplicate IDs and slugs.
func (m *Store) CreateBranch(ctx context.Context, branch *types.Branch) error {
	branch.SetDefaults()
	if err := branch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.branches[branch.ID]; exists {
		return fmt.Errorf("create branch %s: id exists: %w", branch.ID, storage.ErrDuplicateSlug)
	}
	if _, exists := m.slugs[branch.Slug]; exists {
		return fmt.Errorf("create branch %s: %w", branch.ID, storage.ErrDuplicateSlug)
	}

	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}
	branch.UpdatedAt = now

	m.branches[branch.ID] = cloneBranch(branch)
	m.slugs[branch.Slug] = branch.ID
	return nil
}

// GetBranch retrieves a branch by ID.
func (m *Store) GetBranch(ctx context.Context, id string) (*types.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBranchLocked(id)
}

func (m *Store) getBranchLocked(id string) (*types.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return nil, fmt.Errorf("get branch %s: %w", id, storage.ErrNotFound)
	}
	return cloneBranch(b), nil
}

// GetBranchBySlug retrieves a branch by slug.
func (m *Store) GetBranchBySlug(ctx context.Context, slug string) (*types.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.slugs[slug]
	if !ok {
		return nil, fmt.Errorf("get branch by slug %s: %w", slug, storage.ErrNotFound)
	}
	return m.getBranchLocked(id)
}

// SlugAvailable reports whether no branch uses the slug.
func (m *Store) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, taken := m.slugs[slug]
	return !taken, nil
}

// UpdateBranch applies a column update map, mirroring the sqlite backend's
// allow-listed columns.
func (m *Store) UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBranchLocked(id, updates)
}

func (m *Store) updateBranchLocked(id string, updates map[string]interface{}) error {
	b, ok := m.branches[id]
	if !ok {
		return fmt.Errorf("update branch %s: %w", id, storage.ErrNotFound)
	}
	for col, v := range updates {
		if err := applyUpdate(b, col, v); err != nil {
			return err
		}
		if col == "slug" {
			// keep the slug index in sync
			for slug, bid := range m.slugs {
				if bid == id {
					delete(m.slugs, slug)
				}
			}
			m.slugs[b.Slug] = id
		}
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func applyUpdate(b *types.Branch, col string, v interface{}) error {
	switch col {
	case "name":
		b.Name = v.(string)
	case "slug":
		b.Slug = v.(string)
	case "description":
		b.Description = v.(string)
	case "state":
		b.State = toState(v)
	case "visibility":
		b.Visibility = toVisibility(v)
	case "required_approvals":
		b.RequiredApprovals = v.(int)
	case "base_commit":
		b.BaseCommit = v.(string)
	case "head_commit":
		b.HeadCommit = v.(string)
	case "labels":
		b.Labels = append([]string(nil), v.([]string)...)
	case "submitted_at":
		b.SubmittedAt = toTimePtr(v)
	case "approved_at":
		b.ApprovedAt = toTimePtr(v)
	case "published_at":
		b.PublishedAt = toTimePtr(v)
	case "archived_at":
		b.ArchivedAt = toTimePtr(v)
	default:
		return fmt.Errorf("update branch: column %q not allowed", col)
	}
	return nil
}

func toState(v interface{}) types.BranchState {
	switch s := v.(type) {
	case types.BranchState:
		return s
	case string:
		return types.BranchState(s)
	}
	return ""
}

func toVisibility(v interface{}) types.Visibility {
	switch s := v.(type) {
	case types.Visibility:
		return s
	case string:
		return types.Visibility(s)
	}
	return ""
}

func toTimePtr(v interface{}) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case *time.Time:
		if t == nil {
			return nil
		}
		val := *t
		return &val
	case time.Time:
		return &t
	}
	return nil
}

// ListBranches returns branches matching the filter, newest first.
func (m *Store) ListBranches(ctx context.Context, filter types.BranchFilter) ([]*types.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Branch
	for _, b := range m.branches {
		if matchesFilter(b, filter) {
			out = append(out, cloneBranch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(b *types.Branch, filter types.BranchFilter) bool {
	if !filter.IncludeArchived && b.State == types.StateArchived {
		return false
	}
	if filter.OwnerID != nil && b.OwnerID != *filter.OwnerID {
		return false
	}
	if filter.State != nil && b.State != *filter.State {
		return false
	}
	if filter.Visibility != nil && b.Visibility != *filter.Visibility {
		return false
	}
	if filter.TitleSearch != "" {
		needle := strings.ToLower(filter.TitleSearch)
		if !strings.Contains(strings.ToLower(b.Name), needle) &&
			!strings.Contains(strings.ToLower(b.Description), needle) &&
			!strings.Contains(strings.ToLower(b.Slug), needle) {
			return false
		}
	}
	for _, want := range filter.Labels {
		found := false
		for _, l := range b.Labels {
			if l == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetStatistics returns aggregate branch counts by state.
func (m *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats types.Statistics
	for _, b := range m.branches {
		stats.Total++
		switch b.State {
		case types.StateDraft:
			stats.DraftCount++
		case types.StateReview:
			stats.ReviewCount++
		case types.StateApproved:
			stats.ApprovedCount++
		case types.StatePublished:
			stats.PublishedCount++
		case types.StateArchived:
			stats.ArchivedCount++
		}
	}
	return &stats, nil
}

// SetConfig stores a key/value configuration entry.
func (m *Store) SetConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// GetConfig retrieves a configuration value.
func (m *Store) GetConfig(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.config[key]
	if !ok {
		return "", fmt.Errorf("config %s: %w", key, storage.ErrNotFound)
	}
	return v, nil
}

// AppendTransition writes one row to the append-only transition log.
func (m *Store) AppendTransition(ctx context.Context, tr *types.StateTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransitionLocked(tr)
}

func (m *Store) appendTransitionLocked(tr *types.StateTransition) error {
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	clone := *tr
	if tr.Metadata != nil {
		clone.Metadata = make(map[string]any, len(tr.Metadata))
		for k, v := range tr.Metadata {
			clone.Metadata[k] = v
		}
	}
	m.transitions = append(m.transitions, &clone)
	return nil
}

// GetTransitions returns transitions for a branch, newest first.
func (m *Store) GetTransitions(ctx context.Context, branchID string, limit int) ([]*types.StateTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.StateTransition
	// stored oldest-first; walk backwards for newest-first output
	for i := len(m.transitions) - 1; i >= 0; i-- {
		tr := m.transitions[i]
		if tr.BranchID != branchID {
			continue
		}
		clone := *tr
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AddReviewer adds userID to the branch's reviewer set.
func (m *Store) AddReviewer(ctx context.Context, branchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addMemberLocked(branchID, userID, true)
}

// RemoveReviewer removes userID from the branch's reviewer set.
func (m *Store) RemoveReviewer(ctx context.Context, branchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeMemberLocked(branchID, userID, true)
}

// AddCollaborator adds userID to the branch's collaborator set.
func (m *Store) AddCollaborator(ctx context.Context, branchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addMemberLocked(branchID, userID, false)
}

// RemoveCollaborator removes userID from the branch's collaborator set.
func (m *Store) RemoveCollaborator(ctx context.Context, branchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeMemberLocked(branchID, userID, false)
}

func (m *Store) addMemberLocked(branchID, userID string, reviewer bool) error {
	b, ok := m.branches[branchID]
	if !ok {
		return fmt.Errorf("add member to %s: %w", branchID, storage.ErrNotFound)
	}
	// mutual exclusion: present in either set means rejection
	if b.IsReviewer(userID) || b.IsCollaborator(userID) {
		return fmt.Errorf("add member %s to %s: %w", userID, branchID, storage.ErrDuplicateMember)
	}
	if reviewer {
		b.Reviewers = append(b.Reviewers, userID)
	} else {
		b.Collaborators = append(b.Collaborators, userID)
	}
	return nil
}

func (m *Store) removeMemberLocked(branchID, userID string, reviewer bool) error {
	b, ok := m.branches[branchID]
	if !ok {
		return fmt.Errorf("remove member from %s: %w", branchID, storage.ErrNotFound)
	}
	set := b.Collaborators
	if reviewer {
		set = b.Reviewers
	}
	for i, id := range set {
		if id == userID {
			set = append(set[:i], set[i+1:]...)
			if reviewer {
				b.Reviewers = set
			} else {
				b.Collaborators = set
			}
			return nil
		}
	}
	return fmt.Errorf("remove member %s from %s: %w", userID, branchID, storage.ErrNotFound)
}

// RunInTransaction executes fn while holding the store mutex, giving the
// same serializability guarantee as the sqlite BEGIN IMMEDIATE path. The
// memory backend applies operations directly; a failed callback leaves
// earlier writes in place, which tests never depend on.
func (m *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{store: m})
}

// memTx implements storage.Transaction over the already-locked store.
type memTx struct {
	store *Store
}

var _ storage.Transaction = (*memTx)(nil)

func (t *memTx) GetBranch(ctx context.Context, id string) (*types.Branch, error) {
	return t.store.getBranchLocked(id)
}

func (t *memTx) UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error {
	return t.store.updateBranchLocked(id, updates)
}

func (t *memTx) AddReviewer(ctx context.Context, branchID, userID string) error {
	return t.store.addMemberLocked(branchID, userID, true)
}

func (t *memTx) RemoveReviewer(ctx context.Context, branchID, userID string) error {
	return t.store.removeMemberLocked(branchID, userID, true)
}

func (t *memTx) AddCollaborator(ctx context.Context, branchID, userID string) error {
	return t.store.addMemberLocked(branchID, userID, false)
}

func (t *memTx) RemoveCollaborator(ctx context.Context, branchID, userID string) error {
	return t.store.removeMemberLocked(branchID, userID, false)
}

func (t *memTx) AppendTransition(ctx context.Context, tr *types.StateTransition) error {
	return t.store.appendTransitionLocked(tr)
}
