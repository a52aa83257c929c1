package influxdb

import "errors"

// Errors returned by Client. Write errors from the client library are
// wrapped in ErrWriteFailed with the server text preserved.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrWriteFailed      = errors.New("influxdb: write failed")
)
