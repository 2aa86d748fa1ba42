package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "draftline.db")
	s, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("New(%s): %v", path, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBranch(id, slug string) *types.Branch {
	return &types.Branch{
		ID:         id,
		Slug:       slug,
		Name:       "Branch " + slug,
		OwnerID:    "owner",
		BaseRef:    "main",
		BaseCommit: "abc123",
		HeadCommit: "abc123",
		Labels:     []string{"infra", "urgent"},
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if b.Name != "Branch one" || b.State != types.StateDraft || b.Visibility != types.VisibilityPrivate {
		t.Errorf("loaded branch = %+v", b)
	}
	if len(b.Labels) != 2 || b.Labels[0] != "infra" {
		t.Errorf("labels = %v, want [infra urgent]", b.Labels)
	}

	bySlug, err := s.GetBranchBySlug(ctx, "one")
	if err != nil {
		t.Fatalf("GetBranchBySlug: %v", err)
	}
	if bySlug.ID != "br-1" {
		t.Errorf("GetBranchBySlug ID = %q, want br-1", bySlug.ID)
	}

	if _, err := s.GetBranch(ctx, "br-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBranch(missing) = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	err := s.CreateBranch(ctx, testBranch("br-2", "one"))
	if !errors.Is(err, storage.ErrDuplicateSlug) {
		t.Errorf("duplicate slug = %v, want ErrDuplicateSlug", err)
	}

	ok, err := s.SlugAvailable(ctx, "one")
	if err != nil {
		t.Fatalf("SlugAvailable: %v", err)
	}
	if ok {
		t.Error("SlugAvailable(one) = true for a taken slug")
	}
	ok, err = s.SlugAvailable(ctx, "two")
	if err != nil {
		t.Fatalf("SlugAvailable: %v", err)
	}
	if !ok {
		t.Error("SlugAvailable(two) = false for a free slug")
	}
}

func TestSQLiteUpdateBranch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{
		"state":        types.StateReview,
		"submitted_at": &now,
		"description":  "ready for eyes",
	})
	if err != nil {
		t.Fatalf("UpdateBranch: %v", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.State != types.StateReview || b.Description != "ready for eyes" {
		t.Errorf("after update: state %q desc %q", b.State, b.Description)
	}
	if b.SubmittedAt == nil || !b.SubmittedAt.Equal(now) {
		t.Errorf("submitted_at = %v, want %v", b.SubmittedAt, now)
	}

	if err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{"submitted_at": nil}); err != nil {
		t.Fatalf("UpdateBranch(nil): %v", err)
	}
	b, _ = s.GetBranch(ctx, "br-1")
	if b.SubmittedAt != nil {
		t.Errorf("submitted_at = %v after clearing, want nil", b.SubmittedAt)
	}

	if err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{"id": "br-2"}); err == nil {
		t.Error("disallowed column accepted, want error")
	}
	if err := s.UpdateBranch(ctx, "br-missing", map[string]interface{}{"name": "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteMembers(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}

	if err := s.AddReviewer(ctx, "br-1", "alice"); err != nil {
		t.Fatalf("AddReviewer: %v", err)
	}
	if err := s.AddReviewer(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Errorf("duplicate reviewer = %v, want ErrDuplicateMember", err)
	}
	if err := s.AddCollaborator(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Errorf("cross-set add = %v, want ErrDuplicateMember", err)
	}
	if err := s.AddCollaborator(ctx, "br-1", "bob"); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Reviewers) != 1 || b.Reviewers[0] != "alice" {
		t.Errorf("reviewers = %v, want [alice]", b.Reviewers)
	}
	if len(b.Collaborators) != 1 || b.Collaborators[0] != "bob" {
		t.Errorf("collaborators = %v, want [bob]", b.Collaborators)
	}

	if err := s.RemoveReviewer(ctx, "br-1", "alice"); err != nil {
		t.Fatalf("RemoveReviewer: %v", err)
	}
	if err := s.RemoveReviewer(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("remove absent = %v, want ErrNotFound", err)
	}
}

func TestSQLiteTransitions(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}

	first := &types.StateTransition{
		BranchID:  "br-1",
		FromState: types.StateDraft,
		ToState:   types.StateReview,
		Event:     types.EventSubmitted,
		ActorID:   "owner",
		ActorType: types.ActorUser,
	}
	if err := s.AppendTransition(ctx, first); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}
	second := &types.StateTransition{
		BranchID:  "br-1",
		FromState: types.StateReview,
		ToState:   types.StateApproved,
		Event:     types.EventApproved,
		ActorID:   "alice",
		ActorType: types.ActorUser,
		Metadata:  map[string]any{"approvalCount": 2, "requiredApprovals": 2},
	}
	if err := s.AppendTransition(ctx, second); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}

	trs, err := s.GetTransitions(ctx, "br-1", 0)
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}
	if len(trs) != 2 {
		t.Fatalf("got %d transitions, want 2", len(trs))
	}
	if trs[0].Event != types.EventApproved {
		t.Errorf("first returned = %q, want newest (approved)", trs[0].Event)
	}
	if trs[0].Metadata == nil {
		t.Fatal("metadata lost in round trip")
	}
	// JSON numbers come back as float64.
	if got, ok := trs[0].Metadata["approvalCount"].(float64); !ok || got != 2 {
		t.Errorf("approvalCount = %v, want 2", trs[0].Metadata["approvalCount"])
	}
}

func TestSQLiteRunInTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpdateBranch(ctx, "br-1", map[string]interface{}{"state": types.StateReview}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction = %v, want boom", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.State != types.StateDraft {
		t.Errorf("state = %q after rollback, want draft", b.State)
	}
}

func TestSQLiteRunInTransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		b, err := tx.GetBranch(ctx, "br-1")
		if err != nil {
			return err
		}
		if err := tx.UpdateBranch(ctx, "br-1", map[string]interface{}{"state": types.StateReview}); err != nil {
			return err
		}
		return tx.AppendTransition(ctx, &types.StateTransition{
			BranchID:  "br-1",
			FromState: b.State,
			ToState:   types.StateReview,
			Event:     types.EventSubmitted,
			ActorID:   "owner",
			ActorType: types.ActorUser,
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.State != types.StateReview {
		t.Errorf("state = %q after commit, want review", b.State)
	}
	trs, err := s.GetTransitions(ctx, "br-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trs) != 1 {
		t.Errorf("got %d transitions, want 1", len(trs))
	}
}

func TestSQLiteConfigAndStats(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, err := s.GetConfig(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConfig(missing) = %v, want ErrNotFound", err)
	}
	if err := s.SetConfig(ctx, "initialized", "true"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	// Upsert semantics.
	if err := s.SetConfig(ctx, "initialized", "yes"); err != nil {
		t.Fatalf("SetConfig(overwrite): %v", err)
	}
	v, err := s.GetConfig(ctx, "initialized")
	if err != nil {
		t.Fatal(err)
	}
	if v != "yes" {
		t.Errorf("config value = %q, want yes", v)
	}

	if err := s.CreateBranch(ctx, testBranch("br-1", "one")); err != nil {
		t.Fatal(err)
	}
	stats, err := s.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.Total != 1 || stats.DraftCount != 1 {
		t.Errorf("stats = %+v, want total 1 draft 1", stats)
	}
}

func TestSQLiteListBranches(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a := testBranch("br-a", "alpha")
	if err := s.CreateBranch(ctx, a); err != nil {
		t.Fatal(err)
	}
	b := testBranch("br-b", "beta")
	b.OwnerID = "carol"
	b.Labels = nil
	if err := s.CreateBranch(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateBranch(ctx, "br-b", map[string]interface{}{"state": types.StateArchived}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBranches(ctx, types.BranchFilter{})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 1 || got[0].ID != "br-a" {
		t.Errorf("default list = %+v, want just br-a", got)
	}

	got, err = s.ListBranches(ctx, types.BranchFilter{IncludeArchived: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("IncludeArchived = %d branches, want 2", len(got))
	}

	got, err = s.ListBranches(ctx, types.BranchFilter{Labels: []string{"urgent"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "br-a" {
		t.Errorf("label filter = %+v, want just br-a", got)
	}
}
