package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Message is one telemetry point in JSON form.
type Message struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags,omitempty"`
	Fields      map[string]any    `json:"fields"`

	// Timestamp is an RFC3339 string or an epoch count in the ingest
	// precision. Zero means "now".
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// decodeJSON parses a single Message or an array of them.
func decodeJSON(payload []byte, precision point.Precision, now time.Time) ([]*point.Point, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	var msgs []Message
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var err error
	if payload[0] == '[' {
		err = dec.Decode(&msgs)
	} else {
		var m Message
		err = dec.Decode(&m)
		msgs = []Message{m}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidPayload)
	}

	pts := make([]*point.Point, 0, len(msgs))
	for i, m := range msgs {
		p, err := m.toPoint(precision, now)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrInvalidPayload, i, err)
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func (m Message) toPoint(precision point.Precision, now time.Time) (*point.Point, error) {
	ts, err := parseTimestamp(m.Timestamp, precision, now)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(m.Fields))
	for k, v := range m.Fields {
		fields[k] = numberValue(v)
	}

	p, err := point.New(m.Measurement, m.Tags, fields, ts)
	if err != nil {
		return nil, err
	}
	return p.WithPrecision(precision), nil
}

// numberValue turns json.Number into int64 when it is whole, float64 otherwise.
func numberValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func parseTimestamp(raw json.RawMessage, precision point.Precision, now time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return now, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
		}
		return t, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC3339 or integer epoch: %s", raw)
	}
	return time.Unix(0, 0).Add(time.Duration(n) * precision.Duration()), nil
}
