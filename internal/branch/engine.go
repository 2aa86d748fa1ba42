// Package branch implements the branch lifecycle engine: creation, state
// transitions, membership changes, approval coupling, and the self-healing
// checks that keep every branch traceable to a published trunk state.
package branch

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/draftline/draftline/internal/approval"
	"github.com/draftline/draftline/internal/fault"
	"github.com/draftline/draftline/internal/lineage"
	"github.com/draftline/draftline/internal/membership"
	"github.com/draftline/draftline/internal/refs"
	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

const instrumentationScope = "github.com/draftline/draftline/internal/branch"

// ContentSeeder copies published trunk content into a freshly forked
// branch. Seeding is best-effort: a failure leaves the branch valid but
// without inherited content, and is logged rather than raised.
type ContentSeeder interface {
	SeedFromTrunk(ctx context.Context, branchRef, trunkRef string) error
}

// ConvergenceReader exposes publish-attempt records. The engine only needs
// existence and status for readiness queries. A nil record means no attempt
// has been made.
type ConvergenceReader interface {
	GetForBranch(ctx context.Context, branchID string) (*types.ConvergenceRecord, error)
}

// Engine orchestrates the branch state machine. It is stateless: all
// persistent state lives behind the injected storage handle, so one engine
// value can serve many concurrent request handlers.
type Engine struct {
	store       storage.Storage
	provider    refs.Provider
	guard       *lineage.Guard
	aggregator  *approval.Aggregator
	members     *membership.Manager
	seeder      ContentSeeder
	convergence ConvergenceReader
	tracer      trace.Tracer
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithSeeder wires the best-effort content inheritance hook.
func WithSeeder(s ContentSeeder) Option {
	return func(e *Engine) { e.seeder = s }
}

// WithConvergenceReader wires the publish-attempt record source.
func WithConvergenceReader(c ConvergenceReader) Option {
	return func(e *Engine) { e.convergence = c }
}

// New constructs an Engine from its required collaborators.
func New(store storage.Storage, provider refs.Provider, guard *lineage.Guard,
	aggregator *approval.Aggregator, members *membership.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		provider:   provider,
		guard:      guard,
		aggregator: aggregator,
		members:    members,
		tracer:     otel.Tracer(instrumentationScope),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// validTransitions is the branch state machine. Guards beyond shape
// (ownership, thresholds, reviewer counts) are enforced by the operations.
var validTransitions = map[types.BranchState]map[types.BranchState]bool{
	types.StateDraft: {
		types.StateReview:   true,
		types.StateArchived: true,
	},
	types.StateReview: {
		types.StateDraft:    true,
		types.StateApproved: true,
		types.StateArchived: true,
	},
	types.StateApproved: {
		types.StatePublished: true,
		types.StateArchived:  true,
	},
	types.StatePublished: {
		types.StateArchived: true,
	},
	types.StateArchived: {},
}

func transitionAllowed(from, to types.BranchState) bool {
	return validTransitions[from][to]
}

func isRefExists(err error) bool   { return errors.Is(err, refs.ErrRefExists) }
func isRefNotFound(err error) bool { return errors.Is(err, refs.ErrRefNotFound) }

// storageFault maps storage sentinel errors onto service-boundary faults.
// Unrecognized errors pass through unchanged.
func storageFault(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fault.Wrap(fault.CodeNotFound, err, "%s not found", what)
	case errors.Is(err, storage.ErrDuplicateSlug):
		return fault.Wrap(fault.CodeConflict, err, "%s already exists", what)
	case errors.Is(err, storage.ErrDuplicateMember):
		return fault.Wrap(fault.CodeConflict, err, "%s is already a member", what)
	default:
		return err
	}
}
