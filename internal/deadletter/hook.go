package deadletter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/gray-logic-ingest/internal/batch"
	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// recordTimeout bounds one insert; the hook runs on the pipeline goroutine.
const recordTimeout = 5 * time.Second

var (
	// lettersRecorded tracks dead letters persisted by kind
	lettersRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_dead_letters_recorded_total",
			Help: "Total number of undeliverable batches stored as dead letters",
		},
		[]string{"kind"},
	)

	// recordFailures tracks dead letters that could not be stored
	recordFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_dead_letter_record_failures_total",
			Help: "Total number of dead letters that could not be stored",
		},
	)
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Hook returns a batch.FailureHook that stores every dropped batch in repo.
// Storage errors are logged; the batch is lost in that case.
func Hook(repo Repository, logger Logger) batch.FailureHook {
	return func(b *point.Batch, outcome classify.Outcome) {
		letter, err := FromBatch(b, outcome)
		if err != nil {
			recordFailures.Inc()
			logger.Error("dead letter encode failed",
				"destination", b.Destination().String(),
				"points", b.Len(),
				"error", err,
			)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := repo.Create(ctx, letter); err != nil {
			recordFailures.Inc()
			logger.Error("dead letter store failed",
				"destination", b.Destination().String(),
				"points", b.Len(),
				"kind", outcome.Kind.String(),
				"error", err,
			)
			return
		}

		lettersRecorded.WithLabelValues(letter.Kind).Inc()
		logger.Warn("batch dead-lettered",
			"id", letter.ID,
			"destination", b.Destination().String(),
			"points", letter.PointCount,
			"kind", letter.Kind,
			"message", outcome.Message,
		)
	}
}

// Replayer writes a dead letter back through a writer and deletes it once
// the write has been accepted.
type Replayer struct {
	repo   Repository
	writer BatchWriter
}

// BatchWriter is the part of batch.Writer a replay needs.
type BatchWriter interface {
	WriteBatch(ctx context.Context, b *point.Batch) error
}

// NewReplayer creates a Replayer.
func NewReplayer(repo Repository, writer BatchWriter) *Replayer {
	return &Replayer{repo: repo, writer: writer}
}

// Replay resubmits the dead letter with the given ID.
//
// With batching enabled the write is accepted into the buffer and a later
// failure produces a new dead letter; the replayed one is deleted either way.
//
// Returns:
//   - int: Number of points resubmitted
//   - error: ErrNotFound, a decode error, or the writer's error
func (r *Replayer) Replay(ctx context.Context, id string) (int, error) {
	letter, err := r.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	b, err := letter.Batch()
	if err != nil {
		return 0, err
	}

	if err := r.writer.WriteBatch(ctx, b); err != nil {
		return 0, err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return b.Len(), err
	}
	return b.Len(), nil
}
