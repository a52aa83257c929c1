// Package ingest bridges MQTT telemetry into the batch writer.
//
// Producers publish to graylogic/ingest/{database}[/{retention_policy}]; the
// topic selects the destination and the payload carries the points, either
// as JSON or as line protocol depending on configuration.
//
// JSON payloads are one object or an array of objects:
//
//	{
//	  "measurement": "energy",
//	  "tags": {"device_id": "meter-01"},
//	  "fields": {"power_watts": 230.5, "pulses": 12},
//	  "timestamp": "2026-09-01T12:00:00Z"
//	}
//
// Whole-number field values are written as integers. A numeric timestamp is
// an epoch count in the configured precision; a missing one means now.
package ingest
