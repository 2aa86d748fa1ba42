package lineage

import (
	"context"
	"testing"

	refsmemory "github.com/draftline/draftline/internal/refs/memory"
	"github.com/draftline/draftline/internal/storage/memory"
	"github.com/draftline/draftline/internal/types"
)

func seedBranch(t *testing.T, store *memory.Store, id, slug, baseRef, baseCommit string) {
	t.Helper()
	b := &types.Branch{
		ID:         id,
		Slug:       slug,
		Name:       slug,
		OwnerID:    "owner",
		BaseRef:    baseRef,
		BaseCommit: baseCommit,
		HeadCommit: baseCommit,
		State:      types.StateDraft,
		Visibility: types.VisibilityTeam,
	}
	if err := store.CreateBranch(context.Background(), b); err != nil {
		t.Fatalf("CreateBranch(%s): %v", id, err)
	}
}

func TestValidateBranchLineage(t *testing.T) {
	ctx := context.Background()
	provider := refsmemory.New("main", "staging")
	g := NewGuard(memory.New(), provider, nil)

	tip, err := provider.Tip("main")
	if err != nil {
		t.Fatal(err)
	}

	v, err := g.ValidateBranchLineage(ctx, "main", tip)
	if err != nil {
		t.Fatalf("ValidateBranchLineage: %v", err)
	}
	if !v.Valid || !v.TracesToMain {
		t.Errorf("valid main lineage = %+v, want Valid with TracesToMain", v)
	}

	stagingTip, err := provider.Tip("staging")
	if err != nil {
		t.Fatal(err)
	}
	v, err = g.ValidateBranchLineage(ctx, "staging", stagingTip)
	if err != nil {
		t.Fatalf("ValidateBranchLineage: %v", err)
	}
	if !v.Valid || v.TracesToMain {
		t.Errorf("staging lineage = %+v, want Valid without TracesToMain", v)
	}

	v, err = g.ValidateBranchLineage(ctx, "feature/x", tip)
	if err != nil {
		t.Fatalf("ValidateBranchLineage: %v", err)
	}
	if v.Valid || v.Reason == "" {
		t.Errorf("non-trunk base = %+v, want rejection with reason", v)
	}

	v, err = g.ValidateBranchLineage(ctx, "main", "commit-9999")
	if err != nil {
		t.Fatalf("ValidateBranchLineage: %v", err)
	}
	if v.Valid || v.Reason == "" {
		t.Errorf("missing commit = %+v, want rejection with reason", v)
	}
}

func TestCanCreateBranch(t *testing.T) {
	g := NewGuard(memory.New(), refsmemory.New("main"), []string{"main"})

	if ok, reason := g.CanCreateBranch(context.Background(), "main"); !ok || reason != "" {
		t.Errorf("CanCreateBranch(main) = (%v, %q), want allowed", ok, reason)
	}
	if ok, reason := g.CanCreateBranch(context.Background(), "release/v2"); ok || reason == "" {
		t.Errorf("CanCreateBranch(release/v2) = (%v, %q), want denied with reason", ok, reason)
	}
}

func TestDetectOrphanedBranches(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	provider := refsmemory.New("main", "staging")
	g := NewGuard(store, provider, nil)

	mainTip, err := provider.Tip("main")
	if err != nil {
		t.Fatal(err)
	}
	seedBranch(t, store, "br-good", "good", "main", mainTip)
	seedBranch(t, store, "br-bad-ref", "bad-ref", "release/v2", "commit-0001")

	stagingTip, err := provider.Tip("staging")
	if err != nil {
		t.Fatal(err)
	}
	seedBranch(t, store, "br-stranded", "stranded", "staging", stagingTip)
	// Simulate a force-push that rewrites staging's history.
	if _, err := provider.Rewrite("staging"); err != nil {
		t.Fatal(err)
	}

	orphans, err := g.DetectOrphanedBranches(ctx)
	if err != nil {
		t.Fatalf("DetectOrphanedBranches: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("got %d orphans, want 2: %+v", len(orphans), orphans)
	}
	byID := make(map[string]Orphan)
	for _, o := range orphans {
		byID[o.BranchID] = o
	}
	if _, ok := byID["br-good"]; ok {
		t.Error("healthy branch reported as orphaned")
	}
	if o, ok := byID["br-bad-ref"]; !ok || o.Reason == "" {
		t.Errorf("br-bad-ref = %+v, want orphan with reason", o)
	}
	if o, ok := byID["br-stranded"]; !ok || o.Reason == "" {
		t.Errorf("br-stranded = %+v, want orphan with reason", o)
	}
}

func TestHandleOrphanedBranchesArchive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	provider := refsmemory.New("main")
	g := NewGuard(store, provider, nil)

	seedBranch(t, store, "br-orphan", "orphan", "main", "commit-9999")

	if err := g.HandleOrphanedBranches(ctx, []string{"br-orphan"}, ActionArchive, "base rewritten"); err != nil {
		t.Fatalf("HandleOrphanedBranches: %v", err)
	}

	b, err := store.GetBranch(ctx, "br-orphan")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if b.State != types.StateArchived {
		t.Errorf("state = %q, want archived", b.State)
	}
	if b.ArchivedAt == nil {
		t.Error("archived_at not stamped")
	}

	trs, err := store.GetTransitions(ctx, "br-orphan", 10)
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}
	if len(trs) != 1 {
		t.Fatalf("got %d transitions, want 1", len(trs))
	}
	tr := trs[0]
	if tr.Event != types.EventOrphanArchived {
		t.Errorf("event = %q, want %q", tr.Event, types.EventOrphanArchived)
	}
	if tr.ActorType != types.ActorSystem {
		t.Errorf("actor type = %q, want system", tr.ActorType)
	}
	if tr.Reason != "base rewritten" {
		t.Errorf("reason = %q, want the handling reason", tr.Reason)
	}

	// Archiving again is a no-op, not an error.
	if err := g.HandleOrphanedBranches(ctx, []string{"br-orphan"}, ActionArchive, "again"); err != nil {
		t.Fatalf("second archive: %v", err)
	}
	trs, err = store.GetTransitions(ctx, "br-orphan", 10)
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}
	if len(trs) != 1 {
		t.Errorf("got %d transitions after repeat archive, want 1", len(trs))
	}
}

func TestHandleOrphanedBranchesUnknownAction(t *testing.T) {
	g := NewGuard(memory.New(), refsmemory.New("main"), nil)
	if err := g.HandleOrphanedBranches(context.Background(), []string{"br-x"}, OrphanAction("purge"), ""); err == nil {
		t.Error("unknown action succeeded, want error")
	}
}
