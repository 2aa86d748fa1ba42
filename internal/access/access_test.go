package access

import (
	"testing"
	"time"

	"github.com/draftline/draftline/internal/types"
)

func branchFixture(state types.BranchState, visibility types.Visibility) *types.Branch {
	now := time.Now().UTC()
	b := &types.Branch{
		ID:         "br-test01",
		Name:       "Fixture",
		Slug:       "fixture-abc",
		OwnerID:    "owner",
		BaseRef:    "main",
		State:      state,
		Visibility: visibility,
		Reviewers:  []string{"rev"},
	}
	if state == types.StateReview {
		b.SubmittedAt = &now
	}
	return b
}

func user(id string, roles ...Role) Actor {
	return Actor{UserID: id, Authenticated: true, Roles: roles}
}

func TestCheckAccess(t *testing.T) {
	anonymous := Actor{}

	tests := []struct {
		name   string
		branch *types.Branch
		actor  Actor
		want   bool
	}{
		{"admin sees everything", branchFixture(types.StateDraft, types.VisibilityPrivate), user("x", RoleAdmin), true},
		{"public visible to anonymous", branchFixture(types.StateDraft, types.VisibilityPublic), anonymous, true},
		{"private denied to anonymous", branchFixture(types.StateDraft, types.VisibilityPrivate), anonymous, false},
		{"owner sees own private", branchFixture(types.StateDraft, types.VisibilityPrivate), user("owner"), true},
		{"assigned reviewer sees private", branchFixture(types.StateReview, types.VisibilityPrivate), user("rev"), true},
		{"stranger denied private", branchFixture(types.StateDraft, types.VisibilityPrivate), user("stranger"), false},
		{"publisher sees review state", branchFixture(types.StateReview, types.VisibilityPrivate), user("pub", RolePublisher), true},
		{"publisher sees approved state", branchFixture(types.StateApproved, types.VisibilityPrivate), user("pub", RolePublisher), true},
		{"publisher denied draft", branchFixture(types.StateDraft, types.VisibilityPrivate), user("pub", RolePublisher), false},
		{"reviewer role sees review state", branchFixture(types.StateReview, types.VisibilityPrivate), user("r2", RoleReviewer), true},
		{"reviewer role denied draft", branchFixture(types.StateDraft, types.VisibilityPrivate), user("r2", RoleReviewer), false},
		{"team visible to reviewer role", branchFixture(types.StateDraft, types.VisibilityTeam), user("r2", RoleReviewer), true},
		{"team denied to contributor", branchFixture(types.StateDraft, types.VisibilityTeam), user("c", RoleContributor), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckAccess(tt.branch, tt.actor)
			if got.Allowed != tt.want {
				t.Errorf("CheckAccess() = %v (%s), want allowed=%v", got.Allowed, got.Reason, tt.want)
			}
			if !got.Allowed && got.Reason == "" {
				t.Error("denials must carry a reason")
			}
		})
	}
}

func TestEffectivePermissions(t *testing.T) {
	t.Run("owner on draft", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityPrivate)
		p := EffectivePermissions(b, user("owner"))
		if !p.CanEdit || !p.CanDelete || !p.CanChangeVisibility {
			t.Errorf("owner draft permissions = %+v, want edit/delete/visibility", p)
		}
		if p.CanReview || p.CanPublish {
			t.Errorf("owner should not review or publish own draft: %+v", p)
		}
	})

	t.Run("owner after submit", func(t *testing.T) {
		b := branchFixture(types.StateReview, types.VisibilityPrivate)
		p := EffectivePermissions(b, user("owner"))
		if p.CanEdit {
			t.Error("editing must stop once the branch leaves draft")
		}
	})

	t.Run("assigned reviewer during review", func(t *testing.T) {
		b := branchFixture(types.StateReview, types.VisibilityPrivate)
		p := EffectivePermissions(b, user("rev"))
		if !p.CanReview {
			t.Error("assigned reviewer should be able to review")
		}
		if p.CanEdit || p.CanPublish {
			t.Errorf("reviewer permissions too broad: %+v", p)
		}
	})

	t.Run("publisher on approved", func(t *testing.T) {
		b := branchFixture(types.StateApproved, types.VisibilityPrivate)
		p := EffectivePermissions(b, user("pub", RolePublisher))
		if !p.CanPublish {
			t.Error("publisher should be able to publish an approved branch")
		}
	})

	t.Run("publisher on draft", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityPrivate)
		p := EffectivePermissions(b, user("pub", RolePublisher))
		if p.CanPublish {
			t.Error("nothing publishes before approval")
		}
	})
}

func TestCanChangeVisibilityTo(t *testing.T) {
	t.Run("private rejected while reviewers assigned", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityTeam)
		d := CanChangeVisibilityTo(b, user("owner"), types.VisibilityPrivate)
		if d.Allowed {
			t.Error("narrowing to private with reviewers assigned must be rejected")
		}
	})

	t.Run("private allowed with no reviewers", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityTeam)
		b.Reviewers = nil
		d := CanChangeVisibilityTo(b, user("owner"), types.VisibilityPrivate)
		if !d.Allowed {
			t.Errorf("expected allow, got %s", d.Reason)
		}
	})

	t.Run("widening always fine in draft", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityPrivate)
		d := CanChangeVisibilityTo(b, user("owner"), types.VisibilityPublic)
		if !d.Allowed {
			t.Errorf("expected allow, got %s", d.Reason)
		}
	})

	t.Run("rejected outside draft", func(t *testing.T) {
		b := branchFixture(types.StateReview, types.VisibilityTeam)
		d := CanChangeVisibilityTo(b, user("owner"), types.VisibilityPublic)
		if d.Allowed {
			t.Error("visibility is frozen outside draft")
		}
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityPrivate)
		d := CanChangeVisibilityTo(b, user("stranger"), types.VisibilityPublic)
		if d.Allowed {
			t.Error("only owner or admin may change visibility")
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		b := branchFixture(types.StateDraft, types.VisibilityPrivate)
		d := CanChangeVisibilityTo(b, user("owner"), "secret")
		if d.Allowed {
			t.Error("unknown visibility must be rejected")
		}
	})
}
