package branch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/idgen"
	"github.com/draftline/draftline/internal/types"
)

// CreateInput carries the caller-supplied fields for branch creation.
type CreateInput struct {
	Name              string
	Description       string
	BaseRef           string
	Visibility        types.Visibility
	RequiredApprovals int
	Labels            []string
}

// Create forks a new branch in draft state. The sequence is: validate
// input, reserve the slug, materialize the isolated ref, confirm the fork
// point with the lineage guard, persist the row, and write the creation
// self-transition. A lineage rejection after the ref exists rolls the ref
// back before failing.
func (e *Engine) Create(ctx context.Context, input CreateInput, ownerID string) (*types.Branch, error) {
	ctx, span := e.tracer.Start(ctx, "branch.Create")
	defer span.End()

	if ownerID == "" {
		return nil, fault.Validation("owner is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fault.Validation("branch name is required")
	}
	if input.Visibility != "" && !input.Visibility.IsValid() {
		return nil, fault.Validation("invalid visibility %q", input.Visibility)
	}
	if input.RequiredApprovals != 0 {
		if err := approval.ValidateThreshold(input.RequiredApprovals); err != nil {
			return nil, err
		}
	}

	slug := idgen.Slugify(input.Name, ownerID)
	span.SetAttributes(attribute.String("branch.slug", slug))

	available, err := e.store.SlugAvailable(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug availability: %w", err)
	}
	if !available {
		return nil, fault.Conflict("a branch named %q by this owner already exists (slug %s)", input.Name, slug)
	}

	if ok, reason := e.guard.CanCreateBranch(ctx, input.BaseRef); !ok {
		return nil, fault.Validation("%s", reason)
	}

	info, err := e.provider.CreateIsolatedRef(ctx, slug, input.BaseRef)
	if err != nil {
		return nil, refFault(err, slug, input.BaseRef)
	}

	// Confirm the fork point before anything is persisted. On rejection the
	// just-created ref is rolled back, best effort.
	validation, err := e.guard.ValidateBranchLineage(ctx, input.BaseRef, info.BaseCommit)
	if err != nil {
		e.rollbackRef(ctx, info.Ref)
		return nil, fmt.Errorf("failed to validate lineage: %w", err)
	}
	if !validation.Valid {
		e.rollbackRef(ctx, info.Ref)
		return nil, fault.Validation("lineage rejected: %s", validation.Reason)
	}

	now := time.Now().UTC()
	b := &types.Branch{
		ID:                idgen.GenerateBranchID(input.Name, ownerID, now, 0),
		Name:              input.Name,
		Slug:              slug,
		Description:       input.Description,
		OwnerID:           ownerID,
		BaseRef:           input.BaseRef,
		BaseCommit:        info.BaseCommit,
		HeadCommit:        info.HeadCommit,
		State:             types.StateDraft,
		Visibility:        input.Visibility,
		RequiredApprovals: input.RequiredApprovals,
		Labels:            input.Labels,
		CreatedAt:         now,
	}
	b.SetDefaults()

	if err := e.store.CreateBranch(ctx, b); err != nil {
		e.rollbackRef(ctx, info.Ref)
		return nil, storageFault(err, "branch "+slug)
	}

	// Degenerate self-transition marking creation; the log must explain
	// every branch from its first moment.
	if err := e.store.AppendTransition(ctx, &types.StateTransition{
		BranchID:  b.ID,
		FromState: types.StateDraft,
		ToState:   types.StateDraft,
		Event:     types.EventCreated,
		ActorID:   ownerID,
		ActorType: types.ActorUser,
		Metadata: map[string]any{
			"baseRef":    b.BaseRef,
			"baseCommit": b.BaseCommit,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to log creation: %w", err)
	}

	// Content inheritance from the trunk is best-effort: the branch is
	// valid even when the copy-forward is incomplete.
	if e.seeder != nil && e.guard.IsTrunk(input.BaseRef) {
		if err := e.seeder.SeedFromTrunk(ctx, b.Slug, input.BaseRef); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: content inheritance for branch %s failed: %v\n", b.Slug, err)
		}
	}

	return b, nil
}

// rollbackRef deletes a ref created during a failed branch creation. A
// failed deletion is cleanup debt, not an error the caller should see.
func (e *Engine) rollbackRef(ctx context.Context, ref string) {
	if err := e.provider.DeleteIsolatedRef(ctx, ref); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to roll back ref %s: %v\n", ref, err)
	}
}

// refFault maps ref-provider errors onto service-boundary faults.
func refFault(err error, ref, baseRef string) error {
	switch {
	case err == nil:
		return nil
	case isRefExists(err):
		return fault.Wrap(fault.CodeConflict, err, "ref %s already exists", ref)
	case isRefNotFound(err):
		return fault.Wrap(fault.CodeValidation, err, "base ref %s does not exist", baseRef)
	default:
		return err
	}
}
