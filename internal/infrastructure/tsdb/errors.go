package tsdb

import "errors"

// ErrWriteFailed wraps every failed write. When the server answered, the
// wrapped text is its error message verbatim so the batch writer can
// classify it ("partial write", "unable to parse", ...).
var ErrWriteFailed = errors.New("tsdb: write failed")

var (
	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed is returned by Connect when the startup ping fails.
	ErrConnectionFailed = errors.New("tsdb: connection failed")
)
