package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Client wraps paho.mqtt.golang for the bridge.
//
// All methods are safe for concurrent use. Subscriptions are tracked and
// restored automatically after a reconnect, and the availability topic is
// republished on every connect.
type Client struct {
	client pahomqtt.Client
	opts   Options
	logger *logrus.Logger

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// subscription holds what is needed to re-subscribe after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages. Handlers
// run on paho goroutines and should not block; a returned error is logged
// and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes the broker connection and blocks until it is up or
// the connect timeout expires.
func Connect(opts Options, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}

	c := &Client{
		opts:          opts,
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}

	popts := buildClientOptions(opts)
	popts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	popts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	popts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.logger.Info("Reconnecting to MQTT broker...")
	})

	c.client = pahomqtt.NewClient(popts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired
	// yet; mark the state here so IsConnected is immediately true.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.logger.Info("MQTT broker connected")

	c.restoreSubscriptions()
	if n := c.SubscriptionCount(); n > 0 {
		c.logger.WithField("subscriptions", n).Debug("Restored subscriptions")
	}
	c.publishOnline()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.logger.WithField("error", err).Warn("MQTT broker connection lost")

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics. Errors are
// ignored; paho retries the connection and this runs again.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

func (c *Client) publishOnline() {
	if c.opts.WillTopic == "" {
		return
	}
	if err := c.PublishString(c.opts.WillTopic, payloadOnline, 1, true); err != nil {
		c.logger.WithField("error", err).Warn("Failed to publish availability")
	}
}

// Close publishes a graceful offline state and disconnects. Unlike the
// will message, this offline transition is deliberate.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() && c.opts.WillTopic != "" {
		if err := c.PublishString(c.opts.WillTopic, payloadOffline, 1, true); err != nil {
			c.logger.WithField("error", err).Warn("Failed to publish offline state")
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked on initial connect and every
// reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// wrapHandler adds panic recovery and error logging around a handler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.WithFields(logrus.Fields{
					"topic": msg.Topic(),
					"panic": r,
				}).Error("MQTT handler panicked")
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.WithFields(logrus.Fields{
				"topic": msg.Topic(),
				"error": err,
			}).Warn("MQTT handler returned error")
		}
	}
}
