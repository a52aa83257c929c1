// Package batch implements the asynchronous write pipeline for Gray Logic Ingest.
//
// A Writer sends points synchronously until EnableBatching is called. From
// then on Write and WriteBatch only append to an in-memory buffer, and a
// single background loop dispatches the buffer when it reaches the action
// threshold or when the flush timer fires, whichever comes first.
//
// # Flush cycle
//
// Each cycle makes one Transport.Send per destination. Points from failed,
// retryable batches are sent ahead of new points for the same destination.
// Failures are classified (see package classify):
//
//   - Non-retryable outcomes go straight to Config.FailureHook.
//   - Retryable outcomes are queued in a bounded retry buffer. When the
//     buffer is full the batch goes to the hook as RetryBufferOverrun.
//
// # Shutdown
//
// DisableBatching runs one last cycle over everything buffered and every
// queued retry, then waits for the loop to exit. Nothing is retried after
// that; remaining failures go to the hook.
//
// # Usage
//
//	w := batch.New(transport, batch.WithDatabase("graylogic"))
//	err := w.EnableBatching(batch.Config{
//	    ActionThreshold: 5000,
//	    FlushInterval:   time.Second,
//	    JitterWindow:    200 * time.Millisecond,
//	    FailureHook:     store.Hook(),
//	})
//	...
//	_ = w.Write(ctx, p1, p2)
//	...
//	_ = w.DisableBatching()
package batch
