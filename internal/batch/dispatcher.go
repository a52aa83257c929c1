package batch

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// dispatchGroup is the outgoing content for one destination in a cycle:
// retried points first, then new points.
type dispatchGroup struct {
	dest   point.Destination
	points []*point.Point
	fresh  []*point.Point
	merged []*retryEntry
}

// dispatcher sends cycles to the transport and routes failures.
//
// Not safe for concurrent use; only the pipeline loop calls it, which is
// what keeps a single flush in flight.
type dispatcher struct {
	transport   Transport
	retries     *retryBuffer
	hook        FailureHook
	maxAttempts int
	capacity    int
	logger      Logger
	counters    *counters
	now         func() time.Time
}

// cycle dispatches one snapshot together with previously drained retry
// entries. It makes exactly one Transport.Send per destination.
//
// A failed send is re-buffered piecewise: each merged entry goes back as
// itself and the cycle's new points become one more entry. No entry ever
// grows, so RetryBufferCapacity bounds the retained points. Merged entries
// are re-queued before any new entry of the cycle, so entries that were
// already buffered are never displaced by an overrun.
//
// When final is set the pipeline is shutting down: retryable failures can
// no longer be re-queued and go to the failure hook instead.
func (d *dispatcher) cycle(ctx context.Context, snap snapshot, retries []*retryEntry, final bool) {
	groups := mergeGroups(retries, snap)
	if len(groups) == 0 {
		return
	}
	d.counters.cycles.Add(1)

	var pending []pendingEntry
	for _, g := range groups {
		if p, ok := d.send(ctx, g, final); ok {
			pending = append(pending, p)
		}
	}
	for _, p := range pending {
		d.enqueue(p.entry, p.outcome)
	}
	retryBufferEntries.Set(float64(d.retries.len()))
}

// pendingEntry is a new retry entry waiting for the merged entries of the
// same cycle to be re-queued first.
type pendingEntry struct {
	entry   *retryEntry
	outcome classify.Outcome
}

// send performs one transport call for g and routes its outcome. It returns
// the entry for g's new points when they should be retried.
func (d *dispatcher) send(ctx context.Context, g *dispatchGroup, final bool) (pendingEntry, bool) {
	b := point.NewBatch(g.dest, g.points...)

	start := d.now()
	err := d.transport.Send(ctx, b)
	dispatchDuration.Observe(d.now().Sub(start).Seconds())

	if err == nil {
		d.counters.batchesSent.Add(1)
		d.counters.pointsSent.Add(uint64(b.Len()))
		batchesSent.Inc()
		pointsSent.Add(float64(b.Len()))
		d.logger.Debug("batch written",
			"destination", b.Destination().String(),
			"points", b.Len(),
			"retried_entries", len(g.merged),
		)
		return pendingEntry{}, false
	}

	outcome := classify.Error(err)
	d.counters.sendFailures.Add(1)
	sendFailures.WithLabelValues(outcome.Kind.String()).Inc()

	if !outcome.Retryable {
		d.fail(b, outcome)
		return pendingEntry{}, false
	}
	if final {
		d.logger.Warn("retryable write failed during shutdown, not retrying",
			"destination", b.Destination().String(),
			"points", b.Len(),
			"kind", outcome.Kind.String(),
		)
		d.fail(b, outcome)
		return pendingEntry{}, false
	}

	d.logger.Warn("write failed, queued for retry",
		"destination", b.Destination().String(),
		"points", b.Len(),
		"retried_entries", len(g.merged),
		"kind", outcome.Kind.String(),
		"error", outcome.Message,
	)

	now := d.now()
	for _, m := range g.merged {
		m.attempts++
		m.lastAttempt = now
		d.enqueue(m, outcome)
	}
	if len(g.fresh) == 0 {
		return pendingEntry{}, false
	}
	return pendingEntry{entry: newRetryEntry(point.NewBatch(g.dest, g.fresh...), now), outcome: outcome}, true
}

// enqueue buffers e for another attempt, or hands it to the failure hook
// when it has used up MaxAttempts or the buffer is full.
func (d *dispatcher) enqueue(e *retryEntry, outcome classify.Outcome) {
	if d.maxAttempts > 0 && e.attempts >= d.maxAttempts {
		outcome.Retryable = false
		d.fail(e.batch, outcome)
		return
	}
	if !d.retries.tryEnqueue(e) {
		retryOverruns.Inc()
		d.fail(e.batch, classify.Overrun(d.capacity, outcome))
		return
	}
	retryEnqueues.Inc()
}

// fail hands a batch to the failure hook. A panicking hook is contained so
// it cannot take the pipeline loop down.
func (d *dispatcher) fail(b *point.Batch, outcome classify.Outcome) {
	d.counters.pointsFailed.Add(uint64(b.Len()))
	pointsDropped.WithLabelValues(outcome.Kind.String()).Add(float64(b.Len()))
	d.logger.Error("batch write failed permanently",
		"destination", b.Destination().String(),
		"points", b.Len(),
		"kind", outcome.Kind.String(),
		"error", outcome.Message,
	)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("failure hook panic recovered",
				"destination", b.Destination().String(),
				"panic", r,
			)
		}
	}()
	d.hook(b, outcome)
}

// mergeGroups orders a cycle's content by destination. Destinations appear
// in the order first seen, retries before new points, and within a
// destination retried points precede new ones.
func mergeGroups(retries []*retryEntry, snap snapshot) []*dispatchGroup {
	var groups []*dispatchGroup
	index := make(map[point.Destination]*dispatchGroup)

	groupFor := func(dest point.Destination) *dispatchGroup {
		if g, ok := index[dest]; ok {
			return g
		}
		g := &dispatchGroup{dest: dest}
		index[dest] = g
		groups = append(groups, g)
		return g
	}

	for _, e := range retries {
		g := groupFor(e.batch.Destination())
		g.points = append(g.points, e.batch.Points()...)
		g.merged = append(g.merged, e)
	}
	for _, b := range snap {
		if b.Len() == 0 {
			continue
		}
		g := groupFor(b.Destination())
		g.points = append(g.points, b.Points()...)
		g.fresh = append(g.fresh, b.Points()...)
	}
	return groups
}
