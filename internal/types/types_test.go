package types

import (
	"strings"
	"testing"
	"time"
)

func validBranch() *Branch {
	return &Branch{
		ID:         "br-abc123",
		Name:       "Add checkout flow",
		Slug:       "add-checkout-flow-x1a",
		OwnerID:    "alice",
		BaseRef:    "main",
		BaseCommit: "commit-0001",
		HeadCommit: "commit-0001",
		State:      StateDraft,
		Visibility: VisibilityPrivate,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestBranchValidate(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		mutate  func(*Branch)
		wantErr string
	}{
		{
			name:   "valid draft",
			mutate: func(b *Branch) {},
		},
		{
			name:    "missing name",
			mutate:  func(b *Branch) { b.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "name too long",
			mutate:  func(b *Branch) { b.Name = strings.Repeat("x", 201) },
			wantErr: "200 characters",
		},
		{
			name:    "missing owner",
			mutate:  func(b *Branch) { b.OwnerID = "" },
			wantErr: "owner is required",
		},
		{
			name:    "missing base ref",
			mutate:  func(b *Branch) { b.BaseRef = "" },
			wantErr: "base ref is required",
		},
		{
			name:    "invalid state",
			mutate:  func(b *Branch) { b.State = "limbo" },
			wantErr: "invalid state",
		},
		{
			name:    "threshold too high",
			mutate:  func(b *Branch) { b.RequiredApprovals = 11 },
			wantErr: "required approvals",
		},
		{
			name:   "threshold zero means unset",
			mutate: func(b *Branch) { b.RequiredApprovals = 0 },
		},
		{
			name:    "owner as reviewer",
			mutate:  func(b *Branch) { b.Reviewers = []string{"alice"} },
			wantErr: "owner cannot be",
		},
		{
			name:    "owner as collaborator",
			mutate:  func(b *Branch) { b.Collaborators = []string{"alice"} },
			wantErr: "owner cannot be",
		},
		{
			name: "reviewer also collaborator",
			mutate: func(b *Branch) {
				b.Reviewers = []string{"bob"}
				b.Collaborators = []string{"bob"}
			},
			wantErr: "both reviewer and collaborator",
		},
		{
			name: "disjoint sets are fine",
			mutate: func(b *Branch) {
				b.Reviewers = []string{"bob"}
				b.Collaborators = []string{"carol"}
			},
		},
		{
			name: "review without submitted_at",
			mutate: func(b *Branch) {
				b.State = StateReview
				b.Reviewers = []string{"bob"}
			},
			wantErr: "submitted_at",
		},
		{
			name: "review with submitted_at",
			mutate: func(b *Branch) {
				b.State = StateReview
				b.Reviewers = []string{"bob"}
				b.SubmittedAt = &now
			},
		},
		{
			name:    "archived without archived_at",
			mutate:  func(b *Branch) { b.State = StateArchived },
			wantErr: "archived_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBranch()
			tt.mutate(b)
			err := b.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveRequiredApprovals(t *testing.T) {
	b := validBranch()
	if got := b.EffectiveRequiredApprovals(); got != DefaultRequiredApprovals {
		t.Errorf("unset threshold = %d, want default %d", got, DefaultRequiredApprovals)
	}
	b.RequiredApprovals = 3
	if got := b.EffectiveRequiredApprovals(); got != 3 {
		t.Errorf("threshold = %d, want 3", got)
	}
}

func TestSetDefaults(t *testing.T) {
	b := &Branch{}
	b.SetDefaults()
	if b.State != StateDraft {
		t.Errorf("default state = %s, want draft", b.State)
	}
	if b.Visibility != VisibilityPrivate {
		t.Errorf("default visibility = %s, want private", b.Visibility)
	}
}

func TestBranchStateIsTerminal(t *testing.T) {
	terminal := map[BranchState]bool{
		StateDraft:     false,
		StateReview:    false,
		StateApproved:  false,
		StatePublished: true,
		StateArchived:  true,
	}
	for state, want := range terminal {
		if got := state.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", state, got, want)
		}
	}
}

func TestStateTransitionValidate(t *testing.T) {
	tr := &StateTransition{
		BranchID:  "br-abc123",
		FromState: StateDraft,
		ToState:   StateReview,
		Event:     EventSubmitted,
		ActorID:   "alice",
		ActorType: ActorUser,
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	bad := *tr
	bad.ActorType = "robot"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown actor type")
	}

	missing := *tr
	missing.BranchID = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing branch id")
	}
}
