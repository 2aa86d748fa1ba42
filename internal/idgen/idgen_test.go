package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeBase36Padding(t *testing.T) {
	got := EncodeBase36([]byte{0x00, 0x01}, 4)
	if len(got) != 4 {
		t.Errorf("expected length 4, got %d (%q)", len(got), got)
	}
	if !strings.HasPrefix(got, "000") {
		t.Errorf("expected zero padding, got %q", got)
	}
}

func TestGenerateBranchIDStable(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := GenerateBranchID("Pricing update", "user-1", ts, 0)
	b := GenerateBranchID("Pricing update", "user-1", ts, 0)
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "br-") {
		t.Errorf("expected br- prefix, got %s", a)
	}
	if len(a) != len("br-")+BranchIDLength {
		t.Errorf("unexpected ID length: %s", a)
	}
}

func TestGenerateBranchIDNonceChangesID(t *testing.T) {
	ts := time.Now()
	a := GenerateBranchID("Pricing update", "user-1", ts, 0)
	b := GenerateBranchID("Pricing update", "user-1", ts, 1)
	if a == b {
		t.Errorf("nonce did not change ID: %s", a)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		want  string // base prefix only; hash suffix varies
	}{
		{"Pricing Update Q3", "user-1", "pricing-update-q3-"},
		{"  weird___chars!! ", "user-1", "weird-chars-"},
		{"", "user-1", "branch-"},
		{"日本語タイトル", "user-1", "日本語タイトル-"},
	}
	for _, tt := range tests {
		got := Slugify(tt.name, tt.owner)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("Slugify(%q) = %q, want prefix %q", tt.name, got, tt.want)
		}
	}
}

func TestSlugifyOwnerDisambiguates(t *testing.T) {
	a := Slugify("Pricing Update", "user-1")
	b := Slugify("Pricing Update", "user-2")
	if a == b {
		t.Errorf("different owners produced the same slug: %s", a)
	}
}
