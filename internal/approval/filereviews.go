package approval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftline/draftline/internal/types"
)

// FileReviews is a JSONL-backed review store: one decision per line,
// append-only on disk, with completed decisions rewritten in place on the
// next full save. It gives the CLI review persistence across invocations
// without a second database.
type FileReviews struct {
	mu        sync.Mutex
	path      string
	decisions map[string][]*types.ReviewDecision // branch id -> decisions
}

var _ ReviewReader = (*FileReviews)(nil)

// OpenFileReviews loads (or creates) the review log at path.
func OpenFileReviews(path string) (*FileReviews, error) {
	r := &FileReviews{
		path:      path,
		decisions: make(map[string][]*types.ReviewDecision),
	}
	f, err := os.Open(path) // #nosec G304 - path comes from the project config
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open review log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var d types.ReviewDecision
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("review log %s line %d: %w", path, line, err)
		}
		r.decisions[d.BranchID] = append(r.decisions[d.BranchID], &d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review log: %w", err)
	}
	return r, nil
}

// ListDecisions returns all decisions recorded for a branch.
func (r *FileReviews) ListDecisions(ctx context.Context, branchID string) ([]*types.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.ReviewDecision, 0, len(r.decisions[branchID]))
	for _, d := range r.decisions[branchID] {
		clone := *d
		out = append(out, &clone)
	}
	return out, nil
}

// Open records a pending review for a reviewer on a branch and persists the
// full log.
func (r *FileReviews) Open(branchID, reviewerID string) (*types.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &types.ReviewDecision{
		ID:         uuid.NewString(),
		BranchID:   branchID,
		ReviewerID: reviewerID,
		Status:     types.ReviewPending,
		CreatedAt:  time.Now().UTC(),
	}
	r.decisions[branchID] = append(r.decisions[branchID], d)
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	clone := *d
	return &clone, nil
}

// Complete marks a reviewer's open review as completed with the given
// outcome, opening one implicitly when none exists (the CLI records
// decisions in a single step).
func (r *FileReviews) Complete(branchID, reviewerID string, outcome types.DecisionKind, reason string) (*types.ReviewDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *types.ReviewDecision
	for _, d := range r.decisions[branchID] {
		if d.ReviewerID == reviewerID && d.IsActive() {
			target = d
			break
		}
	}
	if target == nil {
		target = &types.ReviewDecision{
			ID:         uuid.NewString(),
			BranchID:   branchID,
			ReviewerID: reviewerID,
			Status:     types.ReviewPending,
			CreatedAt:  time.Now().UTC(),
		}
		r.decisions[branchID] = append(r.decisions[branchID], target)
	}

	now := time.Now().UTC()
	target.Status = types.ReviewCompleted
	target.Decision = outcome
	target.Reason = reason
	target.DecidedAt = &now

	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	clone := *target
	return &clone, nil
}

// saveLocked rewrites the whole log. Writes go through a temp file and
// rename so a crash never leaves a truncated log.
func (r *FileReviews) saveLocked() error {
	tmp := r.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to write review log: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, branch := range r.decisions {
		for _, d := range branch {
			data, err := json.Marshal(d)
			if err != nil {
				f.Close()
				return fmt.Errorf("failed to encode decision %s: %w", d.ID, err)
			}
			w.Write(data)
			w.WriteByte('\n')
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush review log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close review log: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace review log: %w", err)
	}
	return nil
}
