package classify_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name          string
		msg           string
		wantKind      classify.Kind
		wantRetryable bool
	}{
		{
			name:     "database not found",
			msg:      `{"error":"database not found: \"metrics\""}`,
			wantKind: classify.DatabaseNotFound,
		},
		{
			name:     "field type conflict",
			msg:      `partial write: field type conflict: input field "value" on measurement "m" is type integer, already exists as type float dropped=1`,
			wantKind: classify.FieldTypeConflict,
		},
		{
			name:     "points beyond retention policy",
			msg:      "partial write: points beyond retention policy dropped=3",
			wantKind: classify.PointsBeyondRetentionPolicy,
		},
		{
			name:     "unable to parse",
			msg:      `unable to parse 'm v=': missing field value`,
			wantKind: classify.UnableToParse,
		},
		{
			name:     "hinted handoff",
			msg:      "write failed: hinted handoff queue not empty",
			wantKind: classify.HintedHandoffQueueNotEmpty,
		},
		{
			name:          "cache max memory",
			msg:           "engine: cache-max-memory-size exceeded: (1073741824/1073741824)",
			wantKind:      classify.CacheMaxMemoryExceeded,
			wantRetryable: true,
		},
		{
			name:     "authorization failed",
			msg:      "authorization failed",
			wantKind: classify.AuthorizationFailed,
		},
		{
			name:     "user required",
			msg:      `{"error":"user required"}`,
			wantKind: classify.AuthorizationFailed,
		},
		{
			name:     "user not authorized",
			msg:      `user not authorized to write to database "x"`,
			wantKind: classify.AuthorizationFailed,
		},
		{
			name:     "case insensitive",
			msg:      "DATABASE NOT FOUND",
			wantKind: classify.DatabaseNotFound,
		},
		{
			name:          "unknown message is generic and retryable",
			msg:           "dial tcp 127.0.0.1:8086: connect: connection refused",
			wantKind:      classify.Generic,
			wantRetryable: true,
		},
		{
			name:          "empty message is generic",
			msg:           "",
			wantKind:      classify.Generic,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify.Message(tt.msg)
			if got.Kind != tt.wantKind {
				t.Errorf("Message(%q).Kind = %v, want %v", tt.msg, got.Kind, tt.wantKind)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Message(%q).Retryable = %v, want %v", tt.msg, got.Retryable, tt.wantRetryable)
			}
			if got.Message != tt.msg {
				t.Errorf("Message(%q).Message = %q, want original text", tt.msg, got.Message)
			}
		})
	}
}

func TestMessage_PriorityOrder(t *testing.T) {
	// Both fragments present: the earlier rule wins.
	msg := "database not found; also field type conflict"
	if got := classify.Message(msg).Kind; got != classify.DatabaseNotFound {
		t.Errorf("Kind = %v, want database_not_found", got)
	}

	msg = "field type conflict after points beyond retention policy"
	if got := classify.Message(msg).Kind; got != classify.PointsBeyondRetentionPolicy {
		t.Errorf("Kind = %v, want points_beyond_retention_policy", got)
	}

	msg = "cache-max-memory-size exceeded while authorization failed"
	if got := classify.Message(msg).Kind; got != classify.CacheMaxMemoryExceeded {
		t.Errorf("Kind = %v, want cache_max_memory_exceeded", got)
	}
}

func TestError(t *testing.T) {
	if got := classify.Error(nil); !got.OK() {
		t.Errorf("Error(nil) = %v, want success", got)
	}

	got := classify.Error(errors.New("tsdb: write failed: database not found"))
	if got.Kind != classify.DatabaseNotFound {
		t.Errorf("Error().Kind = %v, want database_not_found", got.Kind)
	}
}

func TestOverrun(t *testing.T) {
	cause := classify.Message("timeout")
	got := classify.Overrun(4, cause)

	if got.Kind != classify.RetryBufferOverrun {
		t.Errorf("Kind = %v, want retry_buffer_overrun", got.Kind)
	}
	if got.Retryable {
		t.Error("overrun must not be retryable")
	}
	if !strings.Contains(got.Message, "capacity 4") || !strings.Contains(got.Message, "timeout") {
		t.Errorf("Message = %q, want capacity and cause", got.Message)
	}
}

func TestKind_String(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range classify.AllKinds() {
		name := k.String()
		if strings.HasPrefix(name, "kind(") {
			t.Errorf("kind %d has no name", int(k))
		}
		if seen[name] {
			t.Errorf("duplicate kind name %q", name)
		}
		seen[name] = true
	}

	if got := classify.Kind(99).String(); got != "kind(99)" {
		t.Errorf("unknown kind String() = %q", got)
	}
}

func TestOnlyCacheMaxMemoryIsRetryableAmongNamedKinds(t *testing.T) {
	msgs := map[classify.Kind]string{
		classify.DatabaseNotFound:            "database not found",
		classify.FieldTypeConflict:           "field type conflict",
		classify.PointsBeyondRetentionPolicy: "points beyond retention policy",
		classify.UnableToParse:               "unable to parse",
		classify.HintedHandoffQueueNotEmpty:  "hinted handoff queue not empty",
		classify.CacheMaxMemoryExceeded:      "cache-max-memory-size exceeded",
		classify.AuthorizationFailed:         "authorization failed",
	}
	for kind, msg := range msgs {
		got := classify.Message(msg)
		want := kind == classify.CacheMaxMemoryExceeded
		if got.Retryable != want {
			t.Errorf("%v retryable = %v, want %v", kind, got.Retryable, want)
		}
	}
}
