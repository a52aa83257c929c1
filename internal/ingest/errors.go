package ingest

import "errors"

// Domain-specific errors for telemetry ingest.
var (
	// ErrInvalidPayload is returned when a message cannot be decoded into points.
	ErrInvalidPayload = errors.New("ingest: invalid payload")

	// ErrUnsupportedContentType is returned for an unknown content type.
	ErrUnsupportedContentType = errors.New("ingest: unsupported content type")
)
