// Package storage provides shared types for branch storage.
//
// Concrete implementations live in the sqlite and memory sub-packages. This
// package holds the interface and sentinel errors referenced by both the
// implementations and their consumers (internal/branch, cmd/dl).
package storage

import (
	"context"
	"errors"

	"github.com/draftline/draftline/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateSlug is returned when creating a branch whose slug is taken.
var ErrDuplicateSlug = errors.New("slug already exists")

// ErrDuplicateMember is returned when adding a user already present in the
// target member set.
var ErrDuplicateMember = errors.New("member already present")

// ErrNotInitialized is returned when the database has not been initialized.
var ErrNotInitialized = errors.New("database not initialized")

// Storage is the interface satisfied by *sqlite.Store and *memory.Store.
// Consumers depend on this interface rather than on a concrete type so that
// alternative backends and mocks can be substituted.
type Storage interface {
	// Branch CRUD
	CreateBranch(ctx context.Context, branch *types.Branch) error
	GetBranch(ctx context.Context, id string) (*types.Branch, error)
	GetBranchBySlug(ctx context.Context, slug string) (*types.Branch, error)
	ListBranches(ctx context.Context, filter types.BranchFilter) ([]*types.Branch, error)
	UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error
	SlugAvailable(ctx context.Context, slug string) (bool, error)

	// Membership
	AddReviewer(ctx context.Context, branchID, userID string) error
	RemoveReviewer(ctx context.Context, branchID, userID string) error
	AddCollaborator(ctx context.Context, branchID, userID string) error
	RemoveCollaborator(ctx context.Context, branchID, userID string) error

	// Transition log (append-only)
	AppendTransition(ctx context.Context, tr *types.StateTransition) error
	GetTransitions(ctx context.Context, branchID string, limit int) ([]*types.StateTransition, error)

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Configuration
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)

	// Transactions: per-branch mutations that must observe and change state
	// atomically (state transitions, approval firing, auto-repair) run here.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
}

// Transaction exposes the subset of storage operations that execute within a
// single database transaction. Per-branch state transitions re-validate
// their preconditions through GetBranch inside the transaction, so a racing
// writer cannot invalidate them between check and write.
type Transaction interface {
	GetBranch(ctx context.Context, id string) (*types.Branch, error)
	UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error

	AddReviewer(ctx context.Context, branchID, userID string) error
	RemoveReviewer(ctx context.Context, branchID, userID string) error
	AddCollaborator(ctx context.Context, branchID, userID string) error
	RemoveCollaborator(ctx context.Context, branchID, userID string) error

	AppendTransition(ctx context.Context, tr *types.StateTransition) error
}
