package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

const storageScopeName = "github.com/draftline/draftline/internal/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in dl.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner       storage.Storage
	tracer      trace.Tracer
	ops         metric.Int64Counter
	dur         metric.Float64Histogram
	errs        metric.Int64Counter
	branchGauge metric.Int64Gauge
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("dl.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("dl.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("dl.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	branchGauge, _ := m.Int64Gauge("dl.branch.count",
		metric.WithDescription("Current number of branches by state (snapshot from GetStatistics)"),
	)
	return &InstrumentedStorage{
		inner:       s,
		tracer:      Tracer(storageScopeName),
		ops:         ops,
		dur:         dur,
		errs:        errs,
		branchGauge: branchGauge,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStorage) CreateBranch(ctx context.Context, branch *types.Branch) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.slug", branch.Slug),
		attribute.String("dl.branch.owner", branch.OwnerID),
	}
	ctx, span, t := s.op(ctx, "CreateBranch", attrs...)
	err := s.inner.CreateBranch(ctx, branch)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetBranch(ctx context.Context, id string) (*types.Branch, error) {
	attrs := []attribute.KeyValue{attribute.String("dl.branch.id", id)}
	ctx, span, t := s.op(ctx, "GetBranch", attrs...)
	v, err := s.inner.GetBranch(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetBranchBySlug(ctx context.Context, slug string) (*types.Branch, error) {
	attrs := []attribute.KeyValue{attribute.String("dl.branch.slug", slug)}
	ctx, span, t := s.op(ctx, "GetBranchBySlug", attrs...)
	v, err := s.inner.GetBranchBySlug(ctx, slug)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListBranches(ctx context.Context, filter types.BranchFilter) ([]*types.Branch, error) {
	ctx, span, t := s.op(ctx, "ListBranches")
	v, err := s.inner.ListBranches(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("dl.result.count", len(v)))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", id),
		attribute.Int("dl.update.fields", len(updates)),
	}
	ctx, span, t := s.op(ctx, "UpdateBranch", attrs...)
	err := s.inner.UpdateBranch(ctx, id, updates)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	attrs := []attribute.KeyValue{attribute.String("dl.branch.slug", slug)}
	ctx, span, t := s.op(ctx, "SlugAvailable", attrs...)
	v, err := s.inner.SlugAvailable(ctx, slug)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) AddReviewer(ctx context.Context, branchID, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", branchID),
		attribute.String("dl.user.id", userID),
	}
	ctx, span, t := s.op(ctx, "AddReviewer", attrs...)
	err := s.inner.AddReviewer(ctx, branchID, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) RemoveReviewer(ctx context.Context, branchID, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", branchID),
		attribute.String("dl.user.id", userID),
	}
	ctx, span, t := s.op(ctx, "RemoveReviewer", attrs...)
	err := s.inner.RemoveReviewer(ctx, branchID, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) AddCollaborator(ctx context.Context, branchID, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", branchID),
		attribute.String("dl.user.id", userID),
	}
	ctx, span, t := s.op(ctx, "AddCollaborator", attrs...)
	err := s.inner.AddCollaborator(ctx, branchID, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) RemoveCollaborator(ctx context.Context, branchID, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", branchID),
		attribute.String("dl.user.id", userID),
	}
	ctx, span, t := s.op(ctx, "RemoveCollaborator", attrs...)
	err := s.inner.RemoveCollaborator(ctx, branchID, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) AppendTransition(ctx context.Context, tr *types.StateTransition) error {
	attrs := []attribute.KeyValue{
		attribute.String("dl.branch.id", tr.BranchID),
		attribute.String("dl.transition.event", tr.Event),
	}
	ctx, span, t := s.op(ctx, "AppendTransition", attrs...)
	err := s.inner.AppendTransition(ctx, tr)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetTransitions(ctx context.Context, branchID string, limit int) ([]*types.StateTransition, error) {
	attrs := []attribute.KeyValue{attribute.String("dl.branch.id", branchID)}
	ctx, span, t := s.op(ctx, "GetTransitions", attrs...)
	v, err := s.inner.GetTransitions(ctx, branchID, limit)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	ctx, span, t := s.op(ctx, "GetStatistics")
	v, err := s.inner.GetStatistics(ctx)
	if err == nil && v != nil {
		s.branchGauge.Record(ctx, int64(v.Total),
			metric.WithAttributes(attribute.String("dl.branch.state", "all")))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) SetConfig(ctx context.Context, key, value string) error {
	attrs := []attribute.KeyValue{attribute.String("dl.config.key", key)}
	ctx, span, t := s.op(ctx, "SetConfig", attrs...)
	err := s.inner.SetConfig(ctx, key, value)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetConfig(ctx context.Context, key string) (string, error) {
	attrs := []attribute.KeyValue{attribute.String("dl.config.key", key)}
	ctx, span, t := s.op(ctx, "GetConfig", attrs...)
	v, err := s.inner.GetConfig(ctx, key)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, fn)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
