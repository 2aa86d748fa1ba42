package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

func newBranch(id, slug string) *types.Branch {
	return &types.Branch{
		ID:         id,
		Slug:       slug,
		Name:       "Branch " + slug,
		OwnerID:    "owner",
		BaseRef:    "main",
		BaseCommit: "commit-0001",
		HeadCommit: "commit-0001",
	}
}

func mustCreate(t *testing.T, s *Store, b *types.Branch) {
	t.Helper()
	if err := s.CreateBranch(context.Background(), b); err != nil {
		t.Fatalf("CreateBranch(%s): %v", b.ID, err)
	}
}

func TestCreateAndGetBranch(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if b.State != types.StateDraft {
		t.Errorf("default state = %q, want draft", b.State)
	}
	if b.Visibility != types.VisibilityPrivate {
		t.Errorf("default visibility = %q, want private", b.Visibility)
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped on create")
	}

	if _, err := s.GetBranch(ctx, "br-nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBranch(missing) = %v, want ErrNotFound", err)
	}

	bySlug, err := s.GetBranchBySlug(ctx, "one")
	if err != nil {
		t.Fatalf("GetBranchBySlug: %v", err)
	}
	if bySlug.ID != "br-1" {
		t.Errorf("GetBranchBySlug ID = %q, want br-1", bySlug.ID)
	}
}

func TestCreateBranchDuplicateSlug(t *testing.T) {
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

	err := s.CreateBranch(context.Background(), newBranch("br-2", "one"))
	if !errors.Is(err, storage.ErrDuplicateSlug) {
		t.Errorf("duplicate slug error = %v, want ErrDuplicateSlug", err)
	}

	ok, err := s.SlugAvailable(context.Background(), "one")
	if err != nil {
		t.Fatalf("SlugAvailable: %v", err)
	}
	if ok {
		t.Error("SlugAvailable(one) = true for a taken slug")
	}
}

func TestUpdateBranch(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

	now := time.Now().UTC()
	err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{
		"state":        types.StateReview,
		"submitted_at": &now,
		"description":  "updated",
	})
	if err != nil {
		t.Fatalf("UpdateBranch: %v", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if b.State != types.StateReview || b.Description != "updated" {
		t.Errorf("after update: state %q desc %q", b.State, b.Description)
	}
	if b.SubmittedAt == nil || !b.SubmittedAt.Equal(now) {
		t.Errorf("submitted_at = %v, want %v", b.SubmittedAt, now)
	}

	// Clearing a timestamp with nil.
	if err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{"submitted_at": nil}); err != nil {
		t.Fatalf("UpdateBranch(nil timestamp): %v", err)
	}
	b, _ = s.GetBranch(ctx, "br-1")
	if b.SubmittedAt != nil {
		t.Errorf("submitted_at = %v after clearing, want nil", b.SubmittedAt)
	}

	if err := s.UpdateBranch(ctx, "br-1", map[string]interface{}{"owner_id": "eve"}); err == nil {
		t.Error("disallowed column accepted, want error")
	}
}

func TestListBranchesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := newBranch("br-a", "alpha")
	a.Labels = []string{"infra"}
	mustCreate(t, s, a)

	b := newBranch("br-b", "beta")
	b.OwnerID = "carol"
	mustCreate(t, s, b)

	c := newBranch("br-c", "gamma")
	mustCreate(t, s, c)
	if err := s.UpdateBranch(ctx, "br-c", map[string]interface{}{"state": types.StateArchived}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBranches(ctx, types.BranchFilter{})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("default list = %d branches, want 2 (archived hidden)", len(got))
	}

	got, err = s.ListBranches(ctx, types.BranchFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("IncludeArchived list = %d branches, want 3", len(got))
	}

	owner := "carol"
	got, err = s.ListBranches(ctx, types.BranchFilter{OwnerID: &owner})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 1 || got[0].ID != "br-b" {
		t.Errorf("owner filter = %+v, want just br-b", got)
	}

	got, err = s.ListBranches(ctx, types.BranchFilter{Labels: []string{"infra"}})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 1 || got[0].ID != "br-a" {
		t.Errorf("label filter = %+v, want just br-a", got)
	}

	got, err = s.ListBranches(ctx, types.BranchFilter{TitleSearch: "beta"})
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(got) != 1 || got[0].ID != "br-b" {
		t.Errorf("search filter = %+v, want just br-b", got)
	}
}

func TestMemberMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

	if err := s.AddReviewer(ctx, "br-1", "alice"); err != nil {
		t.Fatalf("AddReviewer: %v", err)
	}
	if err := s.AddReviewer(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Errorf("duplicate reviewer = %v, want ErrDuplicateMember", err)
	}
	if err := s.AddCollaborator(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Errorf("reviewer as collaborator = %v, want ErrDuplicateMember", err)
	}

	if err := s.AddCollaborator(ctx, "br-1", "bob"); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if err := s.AddReviewer(ctx, "br-1", "bob"); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Errorf("collaborator as reviewer = %v, want ErrDuplicateMember", err)
	}

	if err := s.RemoveReviewer(ctx, "br-1", "alice"); err != nil {
		t.Fatalf("RemoveReviewer: %v", err)
	}
	if err := s.RemoveReviewer(ctx, "br-1", "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("remove absent reviewer = %v, want ErrNotFound", err)
	}

	b, err := s.GetBranch(ctx, "br-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Reviewers) != 0 || len(b.Collaborators) != 1 {
		t.Errorf("sets = reviewers %v collaborators %v", b.Reviewers, b.Collaborators)
	}
}

func TestTransitionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

	events := []string{types.EventCreated, types.EventSubmitted, types.EventApproved}
	states := [][2]types.BranchState{
		{types.StateDraft, types.StateDraft},
		{types.StateDraft, types.StateReview},
		{types.StateReview, types.StateApproved},
	}
	for i, ev := range events {
		err := s.AppendTransition(ctx, &types.StateTransition{
			BranchID:  "br-1",
			FromState: states[i][0],
			ToState:   states[i][1],
			Event:     ev,
			ActorID:   "owner",
			ActorType: types.ActorUser,
		})
		if err != nil {
			t.Fatalf("AppendTransition(%s): %v", ev, err)
		}
	}

	trs, err := s.GetTransitions(ctx, "br-1", 0)
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}
	if len(trs) != 3 {
		t.Fatalf("got %d transitions, want 3", len(trs))
	}
	if trs[0].Event != types.EventApproved || trs[2].Event != types.EventCreated {
		t.Errorf("order = [%s %s %s], want newest first", trs[0].Event, trs[1].Event, trs[2].Event)
	}
	for _, tr := range trs {
		if tr.ID == "" || tr.CreatedAt.IsZero() {
			t.Errorf("transition %s missing id or timestamp", tr.Event)
		}
	}

	limited, err := s.GetTransitions(ctx, "br-1", 2)
	if err != nil {
		t.Fatalf("GetTransitions(limit): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d transitions, want 2", len(limited))
	}
}

func TestRunInTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))

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
		t.Errorf("state = %q after tx, want review", b.State)
	}
	trs, err := s.GetTransitions(ctx, "br-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trs) != 1 {
		t.Errorf("got %d transitions, want 1", len(trs))
	}
}

func TestStatisticsAndConfig(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, newBranch("br-1", "one"))
	b2 := newBranch("br-2", "two")
	mustCreate(t, s, b2)
	if err := s.UpdateBranch(ctx, "br-2", map[string]interface{}{"state": types.StatePublished}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.Total != 2 || stats.DraftCount != 1 || stats.PublishedCount != 1 {
		t.Errorf("stats = %+v, want total 2, draft 1, published 1", stats)
	}

	if _, err := s.GetConfig(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConfig(missing) = %v, want ErrNotFound", err)
	}
	if err := s.SetConfig(ctx, "initialized", "true"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	v, err := s.GetConfig(ctx, "initialized")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if v != "true" {
		t.Errorf("config value = %q, want true", v)
	}
}
