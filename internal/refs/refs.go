// Package refs defines the Ref Provider port: the external primitive that
// materializes isolated refs from base points and answers commit-existence
// queries. The branch engine treats these calls as blocking I/O with no
// retry contract of its own.
package refs

import (
	"context"
	"errors"
)

// ErrRefExists is returned when creating a ref whose name is taken.
var ErrRefExists = errors.New("ref already exists")

// ErrRefNotFound is returned when a named ref does not exist.
var ErrRefNotFound = errors.New("ref not found")

// RefInfo describes a materialized ref.
type RefInfo struct {
	Ref        string `json:"ref"`
	BaseCommit string `json:"base_commit"`
	HeadCommit string `json:"head_commit"`
}

// DiffStat summarizes the difference between two refs.
type DiffStat struct {
	FilesChanged int `json:"files_changed"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

// Provider is the external ref-and-commit abstraction consumed by the
// branch engine.
type Provider interface {
	// EnsureInitialized verifies the underlying content store is usable.
	EnsureInitialized(ctx context.Context) error

	// CreateIsolatedRef forks a new ref named name from the tip of baseRef.
	// Fails with ErrRefExists when the name is taken, ErrRefNotFound when
	// the base ref is unknown.
	CreateIsolatedRef(ctx context.Context, name, baseRef string) (*RefInfo, error)

	// DeleteIsolatedRef removes a ref. Deleting an absent ref returns
	// ErrRefNotFound.
	DeleteIsolatedRef(ctx context.Context, ref string) error

	// CommitExistsOnRef reports whether commit is reachable from the tip
	// of ref.
	CommitExistsOnRef(ctx context.Context, commit, ref string) (bool, error)

	// DiffRefs summarizes the content difference between two refs.
	DiffRefs(ctx context.Context, from, to string) (*DiffStat, error)
}
