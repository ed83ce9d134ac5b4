package mqtt

import "fmt"

// Subscribe registers handler for topic, which may contain MQTT
// wildcards ("helios/state/+", "helios/#"). The subscription is
// remembered and replayed automatically after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > 2 {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	tok := c.paho.Subscribe(topic, qos, c.dispatch(handler))
	if !tok.WaitTimeout(ackTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: no ack within %v", ErrSubscribeFailed, ackTimeout)
	}
	if err := tok.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe stops delivery for the exact topic pattern passed to
// Subscribe. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	tok := c.paho.Unsubscribe(topic)
	if !tok.WaitTimeout(ackTimeout) {
		return fmt.Errorf("%w: no ack within %v", ErrUnsubscribeFailed, ackTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
}

// SubscriptionCount returns how many topic patterns are tracked.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
