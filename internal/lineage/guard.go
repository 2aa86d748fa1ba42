// Package lineage validates branch ancestry against the recognized trunks
// and detects branches whose recorded fork point no longer exists.
package lineage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/draftline/draftline/internal/refs"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

// DefaultTrunks are the published-state carriers recognized when no trunk
// configuration is supplied.
var DefaultTrunks = []string{"main", "staging"}

// Guard checks that branch lineage traces to an allowed trunk point and
// scans existing branches for broken ancestry.
type Guard struct {
	store    storage.Storage
	provider refs.Provider
	trunks   []string
}

// NewGuard constructs a Guard. An empty trunks list falls back to
// DefaultTrunks.
func NewGuard(store storage.Storage, provider refs.Provider, trunks []string) *Guard {
	if len(trunks) == 0 {
		trunks = DefaultTrunks
	}
	return &Guard{store: store, provider: provider, trunks: trunks}
}

// Trunks returns the recognized trunk refs.
func (g *Guard) Trunks() []string {
	return append([]string(nil), g.trunks...)
}

// IsTrunk reports whether ref is a recognized published-state carrier.
func (g *Guard) IsTrunk(ref string) bool {
	for _, t := range g.trunks {
		if t == ref {
			return true
		}
	}
	return false
}

// Validation is the outcome of a lineage check. A rejection always carries
// a reason; the check never silently allows.
type Validation struct {
	Valid        bool   `json:"valid"`
	TracesToMain bool   `json:"traces_to_main"`
	Reason       string `json:"reason,omitempty"`
}

// ValidateBranchLineage checks that baseRef is a recognized trunk carrier
// and that baseCommit still exists on it.
func (g *Guard) ValidateBranchLineage(ctx context.Context, baseRef, baseCommit string) (*Validation, error) {
	if !g.IsTrunk(baseRef) {
		return &Validation{
			Valid:  false,
			Reason: fmt.Sprintf("base ref %q is not a recognized trunk (allowed: %v)", baseRef, g.trunks),
		}, nil
	}

	exists, err := g.provider.CommitExistsOnRef(ctx, baseCommit, baseRef)
	if err != nil {
		return nil, fmt.Errorf("failed to check commit %s on %s: %w", baseCommit, baseRef, err)
	}
	if !exists {
		return &Validation{
			Valid:  false,
			Reason: fmt.Sprintf("base commit %s no longer exists on %s", baseCommit, baseRef),
		}, nil
	}

	return &Validation{Valid: true, TracesToMain: baseRef == "main"}, nil
}

// CanCreateBranch is the pre-creation gate: allow/deny plus reason.
func (g *Guard) CanCreateBranch(ctx context.Context, baseRef string) (bool, string) {
	if !g.IsTrunk(baseRef) {
		return false, fmt.Sprintf("branches must fork from a trunk ref (allowed: %v), got %q", g.trunks, baseRef)
	}
	return true, ""
}

// Orphan describes a branch whose base commit no longer exists on its base
// ref.
type Orphan struct {
	BranchID   string `json:"branch_id"`
	Slug       string `json:"slug"`
	BaseRef    string `json:"base_ref"`
	BaseCommit string `json:"base_commit"`
	Reason     string `json:"reason"`
}

// DetectOrphanedBranches scans all non-archived branches and re-checks each
// recorded fork point. The scan always completes: per-branch problems are
// reported in the result, never raised as errors.
func (g *Guard) DetectOrphanedBranches(ctx context.Context) ([]Orphan, error) {
	branches, err := g.store.ListBranches(ctx, types.BranchFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches for orphan scan: %w", err)
	}

	var orphans []Orphan
	for _, b := range branches {
		if !g.IsTrunk(b.BaseRef) {
			orphans = append(orphans, Orphan{
				BranchID:   b.ID,
				Slug:       b.Slug,
				BaseRef:    b.BaseRef,
				BaseCommit: b.BaseCommit,
				Reason:     fmt.Sprintf("base ref %q is no longer a recognized trunk", b.BaseRef),
			})
			continue
		}
		exists, err := g.provider.CommitExistsOnRef(ctx, b.BaseCommit, b.BaseRef)
		if err != nil {
			orphans = append(orphans, Orphan{
				BranchID:   b.ID,
				Slug:       b.Slug,
				BaseRef:    b.BaseRef,
				BaseCommit: b.BaseCommit,
				Reason:     fmt.Sprintf("could not verify base commit: %v", err),
			})
			continue
		}
		if !exists {
			orphans = append(orphans, Orphan{
				BranchID:   b.ID,
				Slug:       b.Slug,
				BaseRef:    b.BaseRef,
				BaseCommit: b.BaseCommit,
				Reason:     fmt.Sprintf("base commit %s no longer exists on %s", b.BaseCommit, b.BaseRef),
			})
		}
	}
	return orphans, nil
}

// OrphanAction selects what HandleOrphanedBranches does with each branch.
type OrphanAction string

// Orphan handling actions
const (
	// ActionArchive transitions the orphans to archived with full
	// transition bookkeeping.
	ActionArchive OrphanAction = "archive"
	// ActionFlag only logs a warning per orphan; no state changes.
	ActionFlag OrphanAction = "flag"
)

// HandleOrphanedBranches archives or flags the given branches. Archiving
// runs through the same archived-state transition bookkeeping as manual
// deletion: state change, archived_at stamp, and a system-attributed log
// entry, all within one transaction per branch.
func (g *Guard) HandleOrphanedBranches(ctx context.Context, ids []string, action OrphanAction, reason string) error {
	switch action {
	case ActionFlag:
		for _, id := range ids {
			fmt.Fprintf(os.Stderr, "Warning: branch %s has broken lineage: %s\n", id, reason)
		}
		return nil
	case ActionArchive:
		for _, id := range ids {
			if err := g.archiveOrphan(ctx, id, reason); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown orphan action: %s", action)
	}
}

func (g *Guard) archiveOrphan(ctx context.Context, id, reason string) error {
	return g.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		b, err := tx.GetBranch(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load branch %s: %w", id, err)
		}
		if b.State == types.StateArchived {
			return nil // already handled
		}
		now := time.Now().UTC()
		if err := tx.UpdateBranch(ctx, id, map[string]interface{}{
			"state":       types.StateArchived,
			"archived_at": &now,
		}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  id,
			FromState: b.State,
			ToState:   types.StateArchived,
			Event:     types.EventOrphanArchived,
			ActorID:   "lineage-guard",
			ActorType: types.ActorSystem,
			Reason:    reason,
			Metadata:  map[string]any{"orphaned": true},
		})
	})
}
