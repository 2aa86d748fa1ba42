// Package gitrefs implements the Provider port over a real git repository
// using go-git. The engine's "isolated refs" map onto branch references in
// a single repository that carries the published trunks.
package gitrefs

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/draftline/draftline/internal/refs"
)

// Verify Provider implements refs.Provider at compile time
var _ refs.Provider = (*Provider)(nil)

// Provider backs the ref abstraction with branch references in a git
// repository.
type Provider struct {
	path string
	repo *gogit.Repository
}

// Open opens the git repository at path.
func Open(path string) (*Provider, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("not a git repository at %s: %w", path, err)
	}
	return &Provider{path: path, repo: repo}, nil
}

// EnsureInitialized verifies the repository has at least one resolvable
// reference, which means the content store can serve fork requests.
func (p *Provider) EnsureInitialized(ctx context.Context) error {
	if _, err := p.repo.Head(); err != nil {
		return fmt.Errorf("repository at %s has no usable HEAD: %w", p.path, err)
	}
	return nil
}

// resolveRef resolves a ref name (short branch name or full ref) to its tip
// hash.
func (p *Provider) resolveRef(name string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.ReferenceName(name),
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName("origin", name),
	}
	for _, candidate := range candidates {
		if ref, err := p.repo.Reference(candidate, true); err == nil {
			return ref.Hash(), nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", name, refs.ErrRefNotFound)
}

// CreateIsolatedRef creates a branch reference named name at the tip of
// baseRef.
func (p *Provider) CreateIsolatedRef(ctx context.Context, name, baseRef string) (*refs.RefInfo, error) {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := p.repo.Reference(refName, false); err == nil {
		return nil, fmt.Errorf("create ref %s: %w", name, refs.ErrRefExists)
	}

	baseHash, err := p.resolveRef(baseRef)
	if err != nil {
		return nil, err
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(refName, baseHash)); err != nil {
		return nil, fmt.Errorf("failed to create ref %s: %w", name, err)
	}

	return &refs.RefInfo{
		Ref:        name,
		BaseCommit: baseHash.String(),
		HeadCommit: baseHash.String(),
	}, nil
}

// DeleteIsolatedRef removes the branch reference named ref.
func (p *Provider) DeleteIsolatedRef(ctx context.Context, ref string) error {
	refName := plumbing.NewBranchReferenceName(ref)
	if _, err := p.repo.Reference(refName, false); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("delete ref %s: %w", ref, refs.ErrRefNotFound)
		}
		return fmt.Errorf("failed to look up ref %s: %w", ref, err)
	}
	if err := p.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("failed to delete ref %s: %w", ref, err)
	}
	return nil
}

// CommitExistsOnRef reports whether commit is reachable from the tip of ref.
func (p *Provider) CommitExistsOnRef(ctx context.Context, commit, ref string) (bool, error) {
	tipHash, err := p.resolveRef(ref)
	if err != nil {
		if errors.Is(err, refs.ErrRefNotFound) {
			return false, nil
		}
		return false, err
	}

	target, err := p.repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load commit %s: %w", commit, err)
	}

	tip, err := p.repo.CommitObject(tipHash)
	if err != nil {
		return false, fmt.Errorf("failed to load tip of %s: %w", ref, err)
	}

	if target.Hash == tip.Hash {
		return true, nil
	}
	reachable, err := target.IsAncestor(tip)
	if err != nil {
		return false, fmt.Errorf("failed ancestry walk on %s: %w", ref, err)
	}
	return reachable, nil
}

// DiffRefs summarizes the tree difference between the tips of two refs.
func (p *Provider) DiffRefs(ctx context.Context, from, to string) (*refs.DiffStat, error) {
	fromCommit, err := p.commitAtTip(from)
	if err != nil {
		return nil, err
	}
	toCommit, err := p.commitAtTip(to)
	if err != nil {
		return nil, err
	}

	patch, err := fromCommit.Patch(toCommit)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}

	var stat refs.DiffStat
	for _, fs := range patch.Stats() {
		stat.FilesChanged++
		stat.Additions += fs.Addition
		stat.Deletions += fs.Deletion
	}
	return &stat, nil
}

func (p *Provider) commitAtTip(ref string) (*object.Commit, error) {
	hash, err := p.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load tip commit of %s: %w", ref, err)
	}
	return commit, nil
}
