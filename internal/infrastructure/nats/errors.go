package nats

import "errors"

// Sentinel errors for NATS operations.
var (
	// ErrNotConnected indicates the client has been closed or has lost its connection.
	ErrNotConnected = errors.New("nats: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("nats: connection failed")

	// ErrPublishFailed indicates a batch could not be handed to the server.
	ErrPublishFailed = errors.New("nats: publish failed")
)
