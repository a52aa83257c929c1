package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultActionThreshold     = 1000
	DefaultFlushInterval       = time.Second
	DefaultRetryBufferCapacity = 50
)

// Transport sends one batch to the time-series server synchronously.
//
// Implementations own their timeouts, encoding and connection handling. The
// pipeline treats any returned error as an opaque message and classifies its
// text; no structured error types are required.
type Transport interface {
	Send(ctx context.Context, b *point.Batch) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, b *point.Batch) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, b *point.Batch) error {
	return f(ctx, b)
}

// FailureHook receives batches that will not be delivered or retried,
// together with their classified outcome. It is the only channel through
// which batched-write failures reach calling code.
//
// The hook runs on the pipeline goroutine; a slow hook delays the next flush.
type FailureHook func(b *point.Batch, outcome classify.Outcome)

// Executor starts the long-running pipeline loop. The default runs it on a
// new goroutine. An Executor may also run loop itself; EnableBatching then
// returns once DisableBatching has stopped the loop.
type Executor func(loop func())

// Config describes one batching session. It is copied at EnableBatching and
// never changes while the pipeline is running.
type Config struct {
	// ActionThreshold is the buffered point count that triggers an
	// immediate flush. Default: 1000.
	ActionThreshold int

	// FlushInterval is the base flush period, measured from the first point
	// buffered since the previous flush. Default: 1s.
	FlushInterval time.Duration

	// JitterWindow is the upper bound of a uniformly random delay added to
	// FlushInterval, redrawn before every cycle. Default: 0.
	JitterWindow time.Duration

	// RetryBufferCapacity is the maximum number of failed batches held for
	// retry. A retryable failure beyond it is reported to FailureHook as
	// RetryBufferOverrun. Default: 50.
	RetryBufferCapacity int

	// RetryInterval is the minimum time between attempts of a buffered
	// batch. Zero retries on the very next cycle.
	RetryInterval time.Duration

	// MaxAttempts caps the number of sends of a retried batch. Zero means
	// no cap beyond RetryBufferCapacity.
	MaxAttempts int

	// Consistency is passed through to the transport for points written
	// with Write. Default: ONE.
	Consistency point.Consistency

	// Executor runs the background loop. Default: a plain goroutine.
	Executor Executor

	// FailureHook receives permanently failed batches. Default: no-op.
	FailureHook FailureHook
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// withDefaults replaces zero values with package defaults.
func (c Config) withDefaults() Config {
	if c.ActionThreshold == 0 {
		c.ActionThreshold = DefaultActionThreshold
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.RetryBufferCapacity == 0 {
		c.RetryBufferCapacity = DefaultRetryBufferCapacity
	}
	if cons, err := point.ParseConsistency(string(c.Consistency)); err == nil {
		c.Consistency = cons
	}
	if c.Executor == nil {
		c.Executor = func(loop func()) { go loop() }
	}
	if c.FailureHook == nil {
		c.FailureHook = func(*point.Batch, classify.Outcome) {}
	}
	return c
}

// Validate checks the configuration for errors.
//
// Zero values are valid (they select defaults); negative values and unknown
// consistency levels are not.
//
// Returns:
//   - error: ErrInvalidConfig describing every problem, or nil if valid
func (c Config) Validate() error {
	var errs []string

	if c.ActionThreshold < 0 {
		errs = append(errs, "action threshold must not be negative")
	}
	if c.FlushInterval < 0 {
		errs = append(errs, "flush interval must not be negative")
	}
	if c.JitterWindow < 0 {
		errs = append(errs, "jitter window must not be negative")
	}
	if c.RetryBufferCapacity < 0 {
		errs = append(errs, "retry buffer capacity must not be negative")
	}
	if c.RetryInterval < 0 {
		errs = append(errs, "retry interval must not be negative")
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, "max attempts must not be negative")
	}
	if _, err := point.ParseConsistency(string(c.Consistency)); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
