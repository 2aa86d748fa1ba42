// Package memory provides a deterministic in-process Provider for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/draftline/draftline/internal/refs"
)

// Verify Provider implements refs.Provider at compile time
var _ refs.Provider = (*Provider)(nil)

// Provider is a fake ref store. Each ref holds an ordered commit history;
// forking copies the base history so later base rewrites can orphan the
// fork, which is exactly what orphan-detection tests need to simulate.
type Provider struct {
	mu     sync.Mutex
	refs   map[string][]string // ref name -> commit history, oldest first
	nextID int
}

// New creates a provider seeded with the given trunk refs, each starting
// with a single root commit.
func New(trunks ...string) *Provider {
	p := &Provider{refs: make(map[string][]string)}
	for _, t := range trunks {
		p.refs[t] = []string{p.newCommit()}
	}
	return p
}

func (p *Provider) newCommit() string {
	p.nextID++
	return fmt.Sprintf("commit-%04d", p.nextID)
}

// EnsureInitialized is a no-op for the fake provider.
func (p *Provider) EnsureInitialized(ctx context.Context) error { return nil }

// CreateIsolatedRef forks name from the tip of baseRef.
func (p *Provider) CreateIsolatedRef(ctx context.Context, name, baseRef string) (*refs.RefInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.refs[name]; exists {
		return nil, fmt.Errorf("create ref %s: %w", name, refs.ErrRefExists)
	}
	history, ok := p.refs[baseRef]
	if !ok || len(history) == 0 {
		return nil, fmt.Errorf("create ref %s from %s: %w", name, baseRef, refs.ErrRefNotFound)
	}

	fork := append([]string(nil), history...)
	p.refs[name] = fork
	tip := fork[len(fork)-1]
	return &refs.RefInfo{Ref: name, BaseCommit: tip, HeadCommit: tip}, nil
}

// DeleteIsolatedRef removes a ref.
func (p *Provider) DeleteIsolatedRef(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.refs[ref]; !ok {
		return fmt.Errorf("delete ref %s: %w", ref, refs.ErrRefNotFound)
	}
	delete(p.refs, ref)
	return nil
}

// CommitExistsOnRef reports whether commit appears in ref's history.
func (p *Provider) CommitExistsOnRef(ctx context.Context, commit, ref string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, ok := p.refs[ref]
	if !ok {
		return false, nil
	}
	for _, c := range history {
		if c == commit {
			return true, nil
		}
	}
	return false, nil
}

// DiffRefs reports a synthetic diff: the number of commits by which the
// histories diverge.
func (p *Provider) DiffRefs(ctx context.Context, from, to string) (*refs.DiffStat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.refs[from]
	if !ok {
		return nil, fmt.Errorf("diff %s: %w", from, refs.ErrRefNotFound)
	}
	b, ok := p.refs[to]
	if !ok {
		return nil, fmt.Errorf("diff %s: %w", to, refs.ErrRefNotFound)
	}
	common := 0
	for common < len(a) && common < len(b) && a[common] == b[common] {
		common++
	}
	divergent := (len(a) - common) + (len(b) - common)
	return &refs.DiffStat{FilesChanged: divergent, Additions: divergent, Deletions: 0}, nil
}

// Commit appends a new commit to ref and returns its ID. Test helper for
// advancing a ref's history.
func (p *Provider) Commit(ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, ok := p.refs[ref]
	if !ok {
		return "", fmt.Errorf("commit on %s: %w", ref, refs.ErrRefNotFound)
	}
	c := p.newCommit()
	p.refs[ref] = append(history, c)
	return c, nil
}

// Rewrite replaces ref's history with a fresh root commit, simulating a
// force-push that strands previously forked branches.
func (p *Provider) Rewrite(ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.refs[ref]; !ok {
		return "", fmt.Errorf("rewrite %s: %w", ref, refs.ErrRefNotFound)
	}
	c := p.newCommit()
	p.refs[ref] = []string{c}
	return c, nil
}

// Tip returns the current head commit of ref.
func (p *Provider) Tip(ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, ok := p.refs[ref]
	if !ok || len(history) == 0 {
		return "", fmt.Errorf("tip of %s: %w", ref, refs.ErrRefNotFound)
	}
	return history[len(history)-1], nil
}
