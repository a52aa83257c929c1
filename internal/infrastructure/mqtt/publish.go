package mqtt

import (
	"context"
	"fmt"
)

// MaxPayloadSize is the largest message the client will publish (1 MiB),
// a common broker default. Transport splits larger batches.
const MaxPayloadSize = 1 << 20

// Publish sends one message, waiting up to the publish timeout for the
// broker's acknowledgement (none for QoS 0).
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrPublishFailed (oversized payload, timeout, broker error)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return c.PublishContext(context.Background(), topic, payload, qos, retained)
}

// PublishContext is Publish that also gives up when ctx is done.
//
// Parameters:
//   - ctx: Bounds the wait for the broker's acknowledgement
//   - topic: Destination topic, e.g. "graylogic/tsdb/write/graylogic/autogen"
//   - payload: Message body, at most MaxPayloadSize bytes
//   - qos: 0, 1, or 2
//   - retained: Only the service status document is retained
func (c *Client) PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > MaxPayloadSize:
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), MaxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	if err := awaitToken(ctx, c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) // #nosec G115 -- validated 0-2 by config
}
