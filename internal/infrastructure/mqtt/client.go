package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/helioshome/helios-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second

	// disconnectQuiesceMS is how long Disconnect waits for in-flight
	// messages, in milliseconds as paho expects.
	disconnectQuiesceMS = 1000
)

// MessageHandler receives inbound messages. Paho invokes handlers on
// its own goroutines, so they must not block for long.
type MessageHandler func(topic string, payload []byte) error

// Logger is the narrow logging surface the client needs. *logging.Logger
// satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription is remembered so it can be replayed after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps the paho MQTT client with connection state tracking,
// subscription replay on reconnect, and online/offline status
// publication on helios/system/status. Safe for concurrent use.
type Client struct {
	paho paho.Client
	cfg  config.MQTTConfig

	mu        sync.RWMutex
	connected bool
	subs      map[string]subscription

	onConnect    func()
	onDisconnect func(err error)
	log          Logger
}

// statusMessage is the retained payload on the system status topic.
// The broker publishes the "unexpected_disconnect" variant as our last
// will if the connection dies without a clean shutdown.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(cfg config.MQTTConfig, status, reason string) []byte {
	b, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  cfg.Broker.ClientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// Connect dials the broker described by cfg and blocks until the first
// connection succeeds or times out. Auto-reconnect stays on afterwards;
// tracked subscriptions are replayed on every reconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := dialOptions(cfg)
	opts.SetWill(Topics{}.SystemStatus(),
		string(statusPayload(cfg, "offline", "unexpected_disconnect")), 1, true)
	opts.SetOnConnectHandler(func(paho.Client) { c.becameConnected() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) { c.becameDisconnected(err) })

	c.paho = paho.NewClient(opts)

	tok := c.paho.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no broker response within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark connected here so
	// IsConnected is true as soon as Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) becameConnected() {
	c.mu.Lock()
	c.connected = true
	cb := c.onConnect
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		c.paho.Subscribe(topic, s.qos, c.dispatch(s.handler))
	}

	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(c.cfg, "online", ""))

	if cb != nil {
		cb()
	}
}

func (c *Client) becameDisconnected(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// Close publishes a graceful offline status and disconnects. The
// retained status lets subscribers distinguish a clean shutdown from a
// crash, which triggers the last will instead.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		tok := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(c.cfg, "offline", "graceful_shutdown"))
		tok.WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMS)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho.IsConnected()
}

// HealthCheck reports an error when the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetOnConnect registers a callback invoked on the initial connection
// and every reconnect.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onConnect = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked whenever the connection
// drops, with the cause.
func (c *Client) SetOnDisconnect(cb func(err error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}

// SetLogger enables logging of handler errors and recovered panics.
func (c *Client) SetLogger(log Logger) {
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()
}

func (c *Client) logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// dispatch adapts a MessageHandler to paho's callback shape and keeps a
// panicking handler from killing the paho router goroutine.
func (c *Client) dispatch(h MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.logger(); log != nil {
					log.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if log := c.logger(); log != nil {
				log.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
