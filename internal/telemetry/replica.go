package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftline/driftline/crdt"
)

// crdtTracer is the OTel tracer for merge/extraction spans. It uses
// the global provider, which is a no-op until Init runs.
var crdtTracer = otel.Tracer("github.com/driftline/driftline/crdt")

// crdtMetrics holds OTel metric instruments for replica operations.
var crdtMetrics struct {
	changesAccepted metric.Int64Counter
	changesRejected metric.Int64Counter
	changesSkipped  metric.Int64Counter
	mergeBatchSize  metric.Int64Histogram
}

func init() {
	m := otel.Meter("github.com/driftline/driftline/crdt")
	crdtMetrics.changesAccepted, _ = m.Int64Counter("driftline.merge.accepted",
		metric.WithDescription("Incoming changes applied by the merge decision function"),
		metric.WithUnit("{change}"),
	)
	crdtMetrics.changesRejected, _ = m.Int64Counter("driftline.merge.rejected",
		metric.WithDescription("Incoming changes that lost the merge decision to local state"),
		metric.WithUnit("{change}"),
	)
	crdtMetrics.changesSkipped, _ = m.Int64Counter("driftline.merge.skipped",
		metric.WithDescription("Incoming changes dropped as malformed"),
		metric.WithUnit("{change}"),
	)
	crdtMetrics.mergeBatchSize, _ = m.Int64Histogram("driftline.merge.batch_size",
		metric.WithDescription("Size of change batches passed to MergeChanges"),
		metric.WithUnit("{change}"),
	)
}

// Replica wraps a *crdt.Replica with tracing and metrics around its
// merge and extraction calls. The wrapped replica's mutation API
// (Insert/Update/Delete) is exposed unchanged via Unwrap, since those
// are purely local and carry no network or sync semantics worth a span.
type Replica[K comparable, V any] struct {
	*crdt.Replica[K, V]
}

// Wrap returns an instrumented view of r.
func Wrap[K comparable, V any](r *crdt.Replica[K, V]) *Replica[K, V] {
	return &Replica[K, V]{Replica: r}
}

// Unwrap returns the underlying, uninstrumented replica.
func (r *Replica[K, V]) Unwrap() *crdt.Replica[K, V] {
	return r.Replica
}

// MergeChanges merges changes into the wrapped replica inside a span,
// and records per-outcome counters plus a batch-size histogram.
func (r *Replica[K, V]) MergeChanges(ctx context.Context, changes []crdt.Change[K, V]) crdt.MergeReport[K] {
	ctx, span := crdtTracer.Start(ctx, "crdt.MergeChanges", trace.WithAttributes(
		attribute.Int64("driftline.node_id", int64(r.NodeID)),
		attribute.Int("driftline.batch_size", len(changes)),
	))
	defer span.End()

	crdtMetrics.mergeBatchSize.Record(ctx, int64(len(changes)))

	report := r.Replica.MergeChanges(changes)

	var accepted, rejected, skipped int64
	for _, o := range report.Outcomes {
		switch o.Outcome {
		case crdt.OutcomeApplied:
			accepted++
		case crdt.OutcomeRejected:
			rejected++
		case crdt.OutcomeMalformed:
			skipped++
		}
	}
	crdtMetrics.changesAccepted.Add(ctx, accepted)
	crdtMetrics.changesRejected.Add(ctx, rejected)
	crdtMetrics.changesSkipped.Add(ctx, skipped)

	span.SetAttributes(
		attribute.Int64("driftline.accepted", accepted),
		attribute.Int64("driftline.rejected", rejected),
		attribute.Int64("driftline.skipped", skipped),
	)
	span.SetStatus(codes.Ok, "")
	return report
}

// ChangesSince extracts changes inside a span sized to the result.
func (r *Replica[K, V]) ChangesSince(ctx context.Context, lastDBVersion uint64) []crdt.Change[K, V] {
	_, span := crdtTracer.Start(ctx, "crdt.ChangesSince", trace.WithAttributes(
		attribute.Int64("driftline.node_id", int64(r.NodeID)),
		attribute.Int64("driftline.watermark", int64(lastDBVersion)),
	))
	defer span.End()

	changes := r.Replica.ChangesSince(lastDBVersion)
	span.SetAttributes(attribute.Int("driftline.changes_extracted", len(changes)))
	span.SetStatus(codes.Ok, "")
	return changes
}
