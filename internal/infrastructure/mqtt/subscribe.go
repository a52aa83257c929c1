package mqtt

import (
	"context"
	"fmt"
	"sync"
)

// subscription is what is needed to re-issue a subscription after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptions is the set of subscriptions the client restores on reconnect.
type subscriptions struct {
	mu      sync.RWMutex
	byTopic map[string]subscription
}

func (s *subscriptions) put(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byTopic == nil {
		s.byTopic = make(map[string]subscription)
	}
	s.byTopic[sub.topic] = sub
}

func (s *subscriptions) remove(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byTopic, topic)
}

func (s *subscriptions) all() []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]subscription, 0, len(s.byTopic))
	for _, sub := range s.byTopic {
		out = append(out, sub)
	}
	return out
}

func (s *subscriptions) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTopic)
}

// Subscribe registers handler for topic and remembers it for reconnects.
//
// Topics may use MQTT wildcards; the ingest bridge subscribes to
// Topics{}.AllIngest() ("graylogic/ingest/#"). paho calls handler on its own
// goroutines, so a slow handler delays later messages.
//
// Parameters:
//   - topic: Topic filter
//   - qos: Maximum QoS for delivered messages (0, 1, or 2)
//   - handler: Called for each message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrSubscribeFailed wrapping the broker's answer
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}

	// Track first so a reconnect racing this call restores it.
	c.subs.put(sub)

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if err := awaitToken(context.Background(), token, defaultPublishTimeout); err != nil {
		c.subs.remove(topic)
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Unsubscribe stops delivery for a topic filter previously passed to
// Subscribe. Messages already in flight may still reach the handler.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.remove(topic)

	if err := awaitToken(context.Background(), c.client.Unsubscribe(topic), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, topic, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	return c.subs.len()
}
