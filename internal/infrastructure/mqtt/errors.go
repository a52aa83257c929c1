package mqtt

import "errors"

// Sentinel errors. Transport failures surface to the batch writer wrapped in
// one of these, and none of their texts match a non-retryable server
// message, so the writer retries them.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects anything outside 0-2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics and ingest topics with no database.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
