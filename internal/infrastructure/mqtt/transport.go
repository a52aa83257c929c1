package mqtt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-ingest/internal/lineproto"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Publisher is the part of Client the transport needs.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Transport forwards batches to the broker as line protocol on the
// destination's write topic. A downstream consumer (Telegraf's
// mqtt_consumer, for example) performs the database write.
//
// A batch normally travels as one message. Batches whose encoding exceeds
// MaxPayloadSize are split at line boundaries into several messages,
// published in order; a failure part-way leaves the earlier parts
// delivered, so consumers may see a retried batch's first points twice.
//
// MQTT 3.1.1 messages have no headers, so the payload cannot say which
// precision it uses. Timestamps are therefore always nanoseconds, truncated
// to the batch's precision, which is what line-protocol consumers assume by
// default. Write consistency is a setting of the consumer.
//
// Transport implements batch.Transport. Failures are publish failures only;
// server-side write errors are not visible through the broker.
type Transport struct {
	pub        Publisher
	prefix     string
	qos        byte
	maxPayload int
	encoder    *lineproto.Encoder
}

// NewTransport creates a transport publishing through pub.
//
// Parameters:
//   - pub: Connected publisher (normally *Client)
//   - prefix: Write topic prefix; empty uses DefaultWritePrefix
//   - qos: Publish QoS (0, 1, or 2)
func NewTransport(pub Publisher, prefix string, qos byte) *Transport {
	return &Transport{
		pub:        pub,
		prefix:     prefix,
		qos:        qos,
		maxPayload: MaxPayloadSize,
		encoder:    lineproto.NewEncoder(0).Nanoseconds(),
	}
}

// Send publishes one batch.
//
// Returns:
//   - error: nil on success; encoding failures and single points larger
//     than MaxPayloadSize read "unable to parse" so they are not retried,
//     publish failures are returned as-is
func (t *Transport) Send(ctx context.Context, b *point.Batch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if b.Len() == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := t.encoder.Encode(&buf, b); err != nil {
		return fmt.Errorf("%w: unable to parse batch: %w", ErrPublishFailed, err)
	}

	parts, err := splitLines(buf.Bytes(), t.maxPayload)
	if err != nil {
		return fmt.Errorf("%w: unable to parse batch: %w", ErrPublishFailed, err)
	}

	topic := Topics{}.Write(t.prefix, b.Destination())
	for _, part := range parts {
		if err := t.pub.PublishContext(ctx, topic, part, t.qos, false); err != nil {
			return err
		}
	}
	return nil
}

// splitLines cuts newline-terminated line protocol into chunks of at most
// limit bytes without breaking a line.
func splitLines(data []byte, limit int) ([][]byte, error) {
	if len(data) <= limit {
		return [][]byte{data}, nil
	}

	var parts [][]byte
	start := 0
	for start < len(data) {
		end := start
		for end < len(data) {
			nl := bytes.IndexByte(data[end:], '\n')
			next := len(data)
			if nl >= 0 {
				next = end + nl + 1
			}
			if next-start > limit {
				break
			}
			end = next
		}
		if end == start {
			return nil, fmt.Errorf("line exceeds maximum payload of %d bytes", limit)
		}
		parts = append(parts, data[start:end])
		start = end
	}
	return parts, nil
}
