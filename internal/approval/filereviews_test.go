package approval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/draftline/draftline/internal/types"
)

func TestFileReviewsPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reviews.jsonl")

	r, err := OpenFileReviews(path)
	if err != nil {
		t.Fatalf("OpenFileReviews: %v", err)
	}
	if _, err := r.Open("br-1", "alice"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := r.Complete("br-1", "alice", types.DecisionApproved, "lgtm"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := r.Open("br-1", "bob"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// A fresh process sees everything the first one recorded.
	r2, err := OpenFileReviews(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	decisions, err := r2.ListDecisions(ctx, "br-1")
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions after reload, want 2", len(decisions))
	}

	byReviewer := make(map[string]*types.ReviewDecision)
	for _, d := range decisions {
		byReviewer[d.ReviewerID] = d
	}
	alice := byReviewer["alice"]
	if alice == nil || alice.Status != types.ReviewCompleted || alice.Decision != types.DecisionApproved {
		t.Errorf("alice's decision = %+v, want completed approval", alice)
	}
	if alice != nil && (alice.Reason != "lgtm" || alice.DecidedAt == nil) {
		t.Errorf("alice's decision lost its reason or timestamp: %+v", alice)
	}
	bob := byReviewer["bob"]
	if bob == nil || !bob.IsActive() {
		t.Errorf("bob's decision = %+v, want still active", bob)
	}
}

func TestFileReviewsMissingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	r, err := OpenFileReviews(path)
	if err != nil {
		t.Fatalf("OpenFileReviews on absent file: %v", err)
	}
	decisions, err := r.ListDecisions(context.Background(), "br-1")
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("got %d decisions from an empty log, want 0", len(decisions))
	}
}

func TestFileReviewsCorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	if err := os.WriteFile(path, []byte("{not json\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileReviews(path); err == nil {
		t.Error("OpenFileReviews on a corrupt log succeeded, want error")
	}
}

func TestFileReviewsImplicitOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	r, err := OpenFileReviews(path)
	if err != nil {
		t.Fatalf("OpenFileReviews: %v", err)
	}

	// Complete without a prior Open still records a completed decision.
	d, err := r.Complete("br-1", "alice", types.DecisionChangesRequested, "typo in the title")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if d.Status != types.ReviewCompleted || d.Decision != types.DecisionChangesRequested {
		t.Errorf("decision = %+v, want completed changes_requested", d)
	}

	decisions, err := r.ListDecisions(context.Background(), "br-1")
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(decisions) != 1 {
		t.Errorf("got %d decisions, want 1", len(decisions))
	}
}
