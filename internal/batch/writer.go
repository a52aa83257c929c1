package batch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Logger is the logging surface the writer needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a Writer at construction.
type Option func(*Writer)

// WithDatabase sets the database used by Write.
func WithDatabase(db string) Option {
	return func(w *Writer) { w.database = db }
}

// WithRetentionPolicy sets the retention policy used by Write.
func WithRetentionPolicy(rp string) Option {
	return func(w *Writer) { w.retentionPolicy = rp }
}

// WithConsistency sets the consistency used by Write while batching is
// disabled. When batching is enabled Config.Consistency applies.
func WithConsistency(c point.Consistency) Option {
	return func(w *Writer) { w.consistency = c.OrDefault() }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// counters are lifetime totals, kept across batching sessions.
type counters struct {
	pointsSubmitted atomic.Uint64
	batchesSent     atomic.Uint64
	pointsSent      atomic.Uint64
	sendFailures    atomic.Uint64
	pointsFailed    atomic.Uint64
	cycles          atomic.Uint64
}

// Stats is a point-in-time view of the writer.
type Stats struct {
	BatchingEnabled bool   `json:"batching_enabled"`
	BufferedPoints  int    `json:"buffered_points"`
	RetryEntries    int    `json:"retry_entries"`
	RetryPoints     int    `json:"retry_points"`
	PointsSubmitted uint64 `json:"points_submitted"`
	BatchesSent     uint64 `json:"batches_sent"`
	PointsSent      uint64 `json:"points_sent"`
	SendFailures    uint64 `json:"send_failures"`
	PointsFailed    uint64 `json:"points_failed"`
	FlushCycles     uint64 `json:"flush_cycles"`
}

// Writer is the client-side write path to a time-series server.
//
// With batching disabled every Write is a synchronous Transport.Send and
// failures are returned to the caller. With batching enabled writes are
// buffered and returned immediately; a single background loop flushes on
// threshold or timer, retries retryable failures, and reports permanent ones
// through Config.FailureHook.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Writer struct {
	transport       Transport
	database        string
	retentionPolicy string
	consistency     point.Consistency
	logger          Logger
	now             func() time.Time

	// mu guards pl. Writers hold it shared while appending so that
	// DisableBatching cannot start the final drain under them.
	mu sync.RWMutex
	pl *pipeline

	counters counters
}

// New creates a Writer with batching disabled.
//
// Parameters:
//   - transport: Delivers batches to the server
//   - opts: Default destination and logger options
//
// Returns:
//   - *Writer: Ready for synchronous writes or EnableBatching
func New(transport Transport, opts ...Option) *Writer {
	w := &Writer{
		transport:   transport,
		consistency: point.ConsistencyOne,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnableBatching validates cfg, applies defaults and starts the pipeline.
//
// Returns:
//   - error: ErrAlreadyEnabled, ErrInvalidConfig, or nil
func (w *Writer) EnableBatching(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	w.mu.Lock()
	if w.pl != nil {
		w.mu.Unlock()
		return ErrAlreadyEnabled
	}
	pl := newPipeline(w, cfg)
	w.pl = pl
	w.mu.Unlock()

	// Started outside the lock: an Executor may run the loop before returning.
	cfg.Executor(pl.run)

	w.logger.Info("batching enabled",
		"action_threshold", cfg.ActionThreshold,
		"flush_interval", cfg.FlushInterval.String(),
		"jitter_window", cfg.JitterWindow.String(),
		"retry_buffer_capacity", cfg.RetryBufferCapacity,
		"consistency", string(cfg.Consistency),
	)
	return nil
}

// DisableBatching stops the pipeline after one final flush of everything
// buffered and queued for retry. It blocks until the loop has exited.
//
// Batches that fail during the final flush go to the failure hook,
// retryable or not. Writes made after this returns are synchronous.
//
// Returns:
//   - error: ErrBatchingDisabled if batching was not enabled
func (w *Writer) DisableBatching() error {
	w.mu.Lock()
	pl := w.pl
	w.pl = nil
	w.mu.Unlock()

	if pl == nil {
		return ErrBatchingDisabled
	}

	close(pl.stop)
	<-pl.stopped

	w.logger.Info("batching disabled")
	return nil
}

// IsBatchingEnabled reports whether a pipeline is running.
func (w *Writer) IsBatchingEnabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pl != nil
}

// Write submits points to the writer's default database and retention
// policy. Each point keeps its own precision.
//
// With batching enabled this never blocks on I/O and always returns nil;
// delivery failures reach the failure hook. Otherwise the points are sent
// synchronously and a *WriteError is returned on failure.
func (w *Writer) Write(ctx context.Context, points ...*point.Point) error {
	w.mu.RLock()
	if pl := w.pl; pl != nil {
		defer w.mu.RUnlock()
		submitted := 0
		for _, run := range w.runs(points, pl.cfg.Consistency) {
			pl.submit(run.Destination(), run.Points())
			submitted += run.Len()
		}
		w.recordSubmitted("batched", submitted)
		return nil
	}
	w.mu.RUnlock()

	runs := w.runs(points, w.consistency)
	submitted := 0
	for _, run := range runs {
		submitted += run.Len()
	}
	w.recordSubmitted("direct", submitted)
	for _, run := range runs {
		if err := w.sendDirect(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch submits a pre-built batch to its own destination.
// Blocking and error behaviour match Write.
func (w *Writer) WriteBatch(ctx context.Context, b *point.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	w.mu.RLock()
	if pl := w.pl; pl != nil {
		defer w.mu.RUnlock()
		pl.submit(b.Destination(), b.Points())
		w.recordSubmitted("batched", b.Len())
		return nil
	}
	w.mu.RUnlock()

	w.recordSubmitted("direct", b.Len())
	return w.sendDirect(ctx, b)
}

// FlushNow runs one dispatch cycle over everything buffered plus due
// retries and waits for it to finish.
//
// Returns:
//   - error: ErrBatchingDisabled if batching is off (or is switched off
//     before the flush starts), ctx.Err() if ctx ends first
func (w *Writer) FlushNow(ctx context.Context) error {
	w.mu.RLock()
	pl := w.pl
	w.mu.RUnlock()

	if pl == nil {
		return ErrBatchingDisabled
	}

	done := make(chan struct{})
	select {
	case pl.flushReq <- done:
	case <-pl.stopped:
		return ErrBatchingDisabled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-pl.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current buffer sizes and lifetime counters.
func (w *Writer) Stats() Stats {
	s := Stats{
		PointsSubmitted: w.counters.pointsSubmitted.Load(),
		BatchesSent:     w.counters.batchesSent.Load(),
		PointsSent:      w.counters.pointsSent.Load(),
		SendFailures:    w.counters.sendFailures.Load(),
		PointsFailed:    w.counters.pointsFailed.Load(),
		FlushCycles:     w.counters.cycles.Load(),
	}

	w.mu.RLock()
	pl := w.pl
	w.mu.RUnlock()

	if pl != nil {
		s.BatchingEnabled = true
		s.BufferedPoints = pl.collector.buffered()
		s.RetryEntries = pl.retries.len()
		s.RetryPoints = pl.retries.points()
	}
	return s
}

// runs splits points into consecutive batches that share a destination.
func (w *Writer) runs(points []*point.Point, consistency point.Consistency) []*point.Batch {
	var out []*point.Batch
	var cur []*point.Point
	var curDest point.Destination

	for _, p := range points {
		if p == nil {
			continue
		}
		dest := point.Destination{
			Database:        w.database,
			RetentionPolicy: w.retentionPolicy,
			Consistency:     consistency,
			Precision:       p.Precision(),
		}
		if len(cur) > 0 && dest != curDest {
			out = append(out, point.NewBatch(curDest, cur...))
			cur = nil
		}
		curDest = dest
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		out = append(out, point.NewBatch(curDest, cur...))
	}
	return out
}

// sendDirect performs a synchronous write and classifies any failure.
func (w *Writer) sendDirect(ctx context.Context, b *point.Batch) error {
	if err := w.transport.Send(ctx, b); err != nil {
		outcome := classify.Error(err)
		w.counters.sendFailures.Add(1)
		sendFailures.WithLabelValues(outcome.Kind.String()).Inc()
		return &WriteError{Outcome: outcome, Err: err}
	}
	w.counters.batchesSent.Add(1)
	w.counters.pointsSent.Add(uint64(b.Len()))
	return nil
}

func (w *Writer) recordSubmitted(mode string, n int) {
	w.counters.pointsSubmitted.Add(uint64(n))
	pointsSubmitted.WithLabelValues(mode).Add(float64(n))
}

// pipeline is the state of one batching session.
type pipeline struct {
	cfg        Config
	collector  *collector
	retries    *retryBuffer
	dispatcher *dispatcher
	sched      *scheduler
	logger     Logger
	now        func() time.Time

	wake     chan struct{}
	flushReq chan chan struct{}
	stop     chan struct{}
	stopped  chan struct{}
}

func newPipeline(w *Writer, cfg Config) *pipeline {
	retries := newRetryBuffer(cfg.RetryBufferCapacity, cfg.RetryInterval)
	return &pipeline{
		cfg:       cfg,
		collector: newCollector(cfg.ActionThreshold, w.now),
		retries:   retries,
		dispatcher: &dispatcher{
			transport:   w.transport,
			retries:     retries,
			hook:        cfg.FailureHook,
			maxAttempts: cfg.MaxAttempts,
			capacity:    cfg.RetryBufferCapacity,
			logger:      w.logger,
			counters:    &w.counters,
			now:         w.now,
		},
		sched:    newScheduler(cfg.FlushInterval, cfg.JitterWindow, w.now),
		logger:   w.logger,
		now:      w.now,
		wake:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// submit hands points to the collector and nudges the loop when a snapshot
// was sealed or a new buffer generation needs its timer.
func (p *pipeline) submit(dest point.Destination, pts []*point.Point) {
	sealed, started := p.collector.add(dest, pts)
	if sealed || started {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// run is the pipeline loop. It is the only goroutine that dispatches.
func (p *pipeline) run() {
	defer close(p.stopped)
	ctx := context.Background()

	for {
		p.sched.reconcile(p.collector.state(), p.retries.len() > 0)

		select {
		case <-p.wake:
			for _, snap := range p.collector.takeSealed() {
				p.dispatch(ctx, snap, triggerThreshold)
			}
		case <-p.sched.C():
			p.sched.fired()
			p.flush(ctx, triggerTimer)
		case done := <-p.flushReq:
			p.flush(ctx, triggerManual)
			close(done)
		case <-p.stop:
			p.sched.stop()
			p.shutdown(ctx)
			return
		}
	}
}

// flush dispatches every pending snapshot, or a retry-only cycle when
// nothing new is buffered but retries are due.
func (p *pipeline) flush(ctx context.Context, trigger string) {
	snaps := p.collector.takeAll()
	if len(snaps) == 0 {
		if p.retries.hasDue(p.now()) {
			p.dispatch(ctx, nil, trigger)
		}
		return
	}
	for _, snap := range snaps {
		p.dispatch(ctx, snap, trigger)
	}
}

// dispatch runs one cycle: due retries ahead of the snapshot.
func (p *pipeline) dispatch(ctx context.Context, snap snapshot, trigger string) {
	retries := p.retries.drainDue(p.now())
	if len(snap) == 0 && len(retries) == 0 {
		return
	}
	flushCycles.WithLabelValues(trigger).Inc()
	p.logger.Debug("flush cycle",
		"trigger", trigger,
		"points", snap.points(),
		"retries", len(retries),
	)
	p.dispatcher.cycle(ctx, snap, retries, false)
}

// shutdown runs the final cycle over all buffered content and every retry
// entry, due or not.
func (p *pipeline) shutdown(ctx context.Context) {
	snaps := p.collector.takeAll()
	retries := p.retries.drainAll()

	if len(snaps) == 0 {
		if len(retries) > 0 {
			flushCycles.WithLabelValues(triggerShutdown).Inc()
			p.dispatcher.cycle(ctx, nil, retries, true)
		}
		return
	}

	for i, snap := range snaps {
		var merged []*retryEntry
		if i == 0 {
			merged = retries
		}
		flushCycles.WithLabelValues(triggerShutdown).Inc()
		p.dispatcher.cycle(ctx, snap, merged, true)
	}
	p.logger.Debug("final flush complete", "cycles", len(snaps))
}
