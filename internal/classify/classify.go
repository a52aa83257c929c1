// Package classify maps time-series server error messages onto a fixed
// taxonomy with a retry-worthiness flag.
//
// Classification is a pure, total function: every message yields an Outcome.
// Messages matching no known fragment are Generic and retryable, so unknown
// server errors are retried optimistically.
package classify

import (
	"fmt"
	"strings"
)

// Kind identifies the class of a write outcome.
type Kind int

// Outcome kinds. Success is the zero value.
const (
	Success Kind = iota
	DatabaseNotFound
	FieldTypeConflict
	PointsBeyondRetentionPolicy
	UnableToParse
	HintedHandoffQueueNotEmpty
	CacheMaxMemoryExceeded
	AuthorizationFailed
	RetryBufferOverrun
	Generic
)

var kindNames = map[Kind]string{
	Success:                     "success",
	DatabaseNotFound:            "database_not_found",
	FieldTypeConflict:           "field_type_conflict",
	PointsBeyondRetentionPolicy: "points_beyond_retention_policy",
	UnableToParse:               "unable_to_parse",
	HintedHandoffQueueNotEmpty:  "hinted_handoff_queue_not_empty",
	CacheMaxMemoryExceeded:      "cache_max_memory_exceeded",
	AuthorizationFailed:         "authorization_failed",
	RetryBufferOverrun:          "retry_buffer_overrun",
	Generic:                     "generic",
}

// String returns a stable snake_case name, used for logs and metric labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// AllKinds returns every failure kind (Success excluded) in declaration order.
func AllKinds() []Kind {
	return []Kind{
		DatabaseNotFound,
		FieldTypeConflict,
		PointsBeyondRetentionPolicy,
		UnableToParse,
		HintedHandoffQueueNotEmpty,
		CacheMaxMemoryExceeded,
		AuthorizationFailed,
		RetryBufferOverrun,
		Generic,
	}
}

// Outcome is the classified result of one write attempt.
type Outcome struct {
	Kind      Kind
	Retryable bool
	Message   string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// String renders the outcome for logs.
func (o Outcome) String() string {
	if o.OK() {
		return "success"
	}
	return fmt.Sprintf("%s (retryable=%t): %s", o.Kind, o.Retryable, o.Message)
}

// rule is one entry of the ordered fragment table.
type rule struct {
	fragment  string
	kind      Kind
	retryable bool
}

// rules is matched top to bottom; the first fragment contained in the
// message wins. Fragments are lower case.
var rules = []rule{
	{fragment: "database not found", kind: DatabaseNotFound},
	{fragment: "points beyond retention policy", kind: PointsBeyondRetentionPolicy},
	{fragment: "field type conflict", kind: FieldTypeConflict},
	{fragment: "unable to parse", kind: UnableToParse},
	{fragment: "hinted handoff queue not empty", kind: HintedHandoffQueueNotEmpty},
	{fragment: "cache-max-memory-size exceeded", kind: CacheMaxMemoryExceeded, retryable: true},
	{fragment: "authorization failed", kind: AuthorizationFailed},
	{fragment: "user required", kind: AuthorizationFailed},
	{fragment: "user not authorized", kind: AuthorizationFailed},
	{fragment: "user is not authorized", kind: AuthorizationFailed},
}

// Message classifies a raw server or transport error message.
//
// Matching is case-insensitive substring containment against the ordered
// fragment table. Unknown messages classify as Generic (retryable).
//
// Example:
//
//	o := classify.Message(`{"error":"database not found: \"metrics\""}`)
//	// o.Kind == classify.DatabaseNotFound, o.Retryable == false
func Message(msg string) Outcome {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if strings.Contains(lower, r.fragment) {
			return Outcome{Kind: r.kind, Retryable: r.retryable, Message: msg}
		}
	}
	return Outcome{Kind: Generic, Retryable: true, Message: msg}
}

// Error classifies err by its message. A nil error is Success.
func Error(err error) Outcome {
	if err == nil {
		return Outcome{Kind: Success}
	}
	return Message(err.Error())
}

// Overrun builds the local, permanent outcome used when the retry buffer
// rejects a batch.
func Overrun(capacity int, cause Outcome) Outcome {
	return Outcome{
		Kind:      RetryBufferOverrun,
		Retryable: false,
		Message:   fmt.Sprintf("retry buffer full (capacity %d), dropping batch after: %s", capacity, cause.Message),
	}
}
