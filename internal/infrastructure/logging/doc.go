// Package logging builds the structured logger for Gray Logic Ingest.
//
// Entries are JSON by default and colourised text (github.com/lmittmann/tint)
// with format "text". Every entry carries service and version; subsystems
// add component via Component. Attributes named password, token,
// authorization or secret are replaced with "[REDACTED]" in both formats.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// The returned *Logger satisfies the small Logger interfaces declared by
// the batch, ingest, deadletter, mqtt and nats packages.
package logging
